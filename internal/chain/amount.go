package chain

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// NativeDecimals is the native asset's (ETH) decimal scale.
const NativeDecimals int32 = 18

// Normalize converts a raw smallest-unit amount into a human decimal amount,
// raw / 10^decimals. The conversion is a pure exponent shift so it is exact
// for any raw value; binary floating point is never involved.
func Normalize(raw *big.Int, decimals int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -decimals)
}

// ToRaw converts a decimal amount string into raw smallest units, truncating
// (never rounding up) anything below the asset's resolution.
func ToRaw(amount string, decimals int32) (*big.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("bad decimal amount %q: %w", amount, err)
	}
	return d.Shift(decimals).BigInt(), nil
}

// SumDecimals adds amounts with exact decimal arithmetic.
func SumDecimals(amounts ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}
