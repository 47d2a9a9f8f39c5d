package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/hedisam/ethrecon/internal/eth"
)

// TransferTopic0 is keccak256("Transfer(address,address,uint256)").
const TransferTopic0 = "0xddf252ad1be2c89b69c2b068fc378daa952ba7f163c4a11628f55a4df523b3ef"

// TokenTransfer is a decoded ERC-20 Transfer event. Immutable once decoded.
type TokenTransfer struct {
	From     Address
	To       Address
	Value    *big.Int
	Token    Address
	TxHash   string
	LogIndex uint64
}

// TransfersInReceipt decodes the ERC-20 Transfer events emitted by the given
// token contract, in receipt log order. Logs from other contracts, with a
// different topic0, or without the two indexed address topics are skipped.
func TransfersInReceipt(receipt *eth.Receipt, token Address) ([]TokenTransfer, error) {
	if receipt == nil {
		return nil, nil
	}

	var out []TokenTransfer
	for _, log := range receipt.Logs {
		if NormalizeAddress(log.Address) != token {
			continue
		}
		if len(log.Topics) != 3 || strings.ToLower(log.Topics[0]) != TransferTopic0 {
			continue
		}
		from, err := AddressFromTopic(log.Topics[1])
		if err != nil {
			return nil, fmt.Errorf("transfer log %s/%d from-topic: %w", log.TxHash, log.LogIndex, err)
		}
		to, err := AddressFromTopic(log.Topics[2])
		if err != nil {
			return nil, fmt.Errorf("transfer log %s/%d to-topic: %w", log.TxHash, log.LogIndex, err)
		}
		value, err := eth.ParseHexBig(log.Data)
		if err != nil {
			return nil, fmt.Errorf("transfer log %s/%d data: %w", log.TxHash, log.LogIndex, ErrDecode)
		}
		out = append(out, TokenTransfer{
			From:     from,
			To:       to,
			Value:    value,
			Token:    token,
			TxHash:   strings.ToLower(log.TxHash),
			LogIndex: log.LogIndex,
		})
	}

	return out, nil
}

// SumTransfers adds up transfer values matching the given from/to filter. An
// empty filter side matches any address.
func SumTransfers(transfers []TokenTransfer, from, to Address) *big.Int {
	total := new(big.Int)
	for _, t := range transfers {
		if from != "" && t.From != from {
			continue
		}
		if to != "" && t.To != to {
			continue
		}
		total.Add(total, t.Value)
	}
	return total
}
