package chain

import (
	"fmt"
	"math/big"
	"strings"
)

// SafeExec is the destination and value of a Safe execTransaction call.
type SafeExec struct {
	To       Address
	ValueWei *big.Int
}

// DecodeSafeExecTransaction decodes Safe v1.4.1 execTransaction calldata.
//
// Only the first two ABI parameters are needed:
//   - 4 bytes function selector
//   - 32 bytes `to` (address right-aligned)
//   - 32 bytes `value`
func DecodeSafeExecTransaction(input string) (SafeExec, error) {
	h := strings.ToLower(strings.TrimSpace(input))
	h = strings.TrimPrefix(h, "0x")
	if len(h) < 8+64+64 {
		return SafeExec{}, fmt.Errorf("execTransaction calldata too short (%d hex chars): %w", len(h), ErrDecode)
	}

	toWord := h[8 : 8+64]
	valueWord := h[8+64 : 8+64+64]

	value, ok := new(big.Int).SetString(valueWord, 16)
	if !ok {
		return SafeExec{}, fmt.Errorf("execTransaction value word %q: %w", valueWord, ErrDecode)
	}

	return SafeExec{
		To:       Address("0x" + toWord[len(toWord)-40:]),
		ValueWei: value,
	}, nil
}
