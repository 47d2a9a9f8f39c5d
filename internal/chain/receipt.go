package chain

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/hedisam/ethrecon/internal/eth"
)

// ReceiptOK reports whether a receipt recorded successful execution.
func ReceiptOK(receipt *eth.Receipt) bool {
	return receipt != nil && receipt.Status == 1
}

// GasFeeETH computes gasUsed * effectiveGasPrice scaled to ETH.
func GasFeeETH(receipt *eth.Receipt) decimal.Decimal {
	if receipt == nil {
		return decimal.Zero
	}
	price := receipt.EffectiveGasPrice
	if price == nil {
		price = new(big.Int)
	}
	fee := new(big.Int).Mul(new(big.Int).SetUint64(receipt.GasUsed), price)
	return Normalize(fee, NativeDecimals)
}

// BalanceOfCalldata builds the calldata for ERC-20 balanceOf(owner).
func BalanceOfCalldata(owner Address) (string, error) {
	topic, err := TopicForAddress(owner)
	if err != nil {
		return "", err
	}
	// balanceOf(address) selector, then the owner word
	return "0x70a08231" + topic[2:], nil
}
