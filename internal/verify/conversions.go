package verify

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hedisam/ethrecon/internal/chain"
	"github.com/hedisam/ethrecon/internal/flows"
	"github.com/hedisam/ethrecon/internal/report"
)

// Conversion type tags. Classification is by side-effect enumeration: which
// proceeds token showed a nonzero inbound flow decides the tag, and a
// transaction that moved nothing in any direction is skipped entirely.
const (
	ConversionLPTToUSDC    = "LPT_to_USDC"
	ConversionLPTToETHLike = "LPT_to_ETH_like"
	ConversionUnknown      = "unknown"
)

// ClassifyConversions inspects each treasury transaction's token flows and
// classifies its conversion type:
//
//   - LPT out of the treasury to the router, USDC back in → LPT_to_USDC
//   - LPT out, WETH gross-in to the router (later unwrapped by burning
//     router-held WETH to the zero address) → LPT_to_ETH_like
//   - nonzero flows with neither proceeds pattern → unknown
func (v *Verifier) ClassifyConversions(ctx context.Context, txs []flows.DatedTx) ([]report.ConversionRow, error) {
	var out []report.ConversionRow
	for _, dated := range txs {
		row, ok, err := v.classifyConversion(ctx, dated)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (v *Verifier) classifyConversion(ctx context.Context, dated flows.DatedTx) (report.ConversionRow, bool, error) {
	tx, receipt, err := v.fetch(ctx, dated.TxHash)
	if err != nil {
		return report.ConversionRow{}, false, err
	}

	lptTransfers, err := chain.TransfersInReceipt(receipt, v.chain.LPT.Address)
	if err != nil {
		return report.ConversionRow{}, false, fmt.Errorf("conversion %s: %w", dated.TxHash, err)
	}
	usdcTransfers, err := chain.TransfersInReceipt(receipt, v.chain.USDC.Address)
	if err != nil {
		return report.ConversionRow{}, false, fmt.Errorf("conversion %s: %w", dated.TxHash, err)
	}
	wethTransfers, err := chain.TransfersInReceipt(receipt, v.chain.WETH.Address)
	if err != nil {
		return report.ConversionRow{}, false, fmt.Errorf("conversion %s: %w", dated.TxHash, err)
	}

	lptOut := chain.SumTransfers(lptTransfers, v.chain.Treasury, v.chain.Router)
	usdcIn := chain.SumTransfers(usdcTransfers, "", v.chain.Treasury)

	// WETH gross inflow to the router from anywhere but itself, the unwrap
	// burn, and whatever else the router sent on.
	wethGrossIn := new(big.Int)
	wethBurn := new(big.Int)
	wethOtherOut := new(big.Int)
	for _, t := range wethTransfers {
		switch {
		case t.To == v.chain.Router && t.From != v.chain.Router:
			wethGrossIn.Add(wethGrossIn, t.Value)
		case t.From == v.chain.Router && t.To == chain.ZeroAddress:
			wethBurn.Add(wethBurn, t.Value)
		case t.From == v.chain.Router && t.To != v.chain.Router:
			wethOtherOut.Add(wethOtherOut, t.Value)
		}
	}

	if lptOut.Sign() == 0 && usdcIn.Sign() == 0 && wethGrossIn.Sign() == 0 && wethBurn.Sign() == 0 {
		return report.ConversionRow{}, false, nil
	}

	convType := ConversionUnknown
	switch {
	case lptOut.Sign() > 0 && usdcIn.Sign() > 0:
		convType = ConversionLPTToUSDC
	case lptOut.Sign() > 0 && wethGrossIn.Sign() > 0:
		convType = ConversionLPTToETHLike
	}

	status := "failed"
	if chain.ReceiptOK(receipt) {
		status = "success"
	}

	return report.ConversionRow{
		DateUTC:        dated.ISOUTC,
		TxHash:         dated.TxHash,
		To:             chain.NormalizeAddress(tx.To),
		ConversionType: convType,
		LPTOut:         chain.Normalize(lptOut, v.chain.LPT.Decimals),
		USDCIn:         chain.Normalize(usdcIn, v.chain.USDC.Decimals),
		WETHGrossIn:    chain.Normalize(wethGrossIn, v.chain.WETH.Decimals),
		WETHBurn:       chain.Normalize(wethBurn, v.chain.WETH.Decimals),
		WETHOtherOut:   chain.Normalize(wethOtherOut, v.chain.WETH.Decimals),
		GasFeeETH:      chain.GasFeeETH(receipt),
		Status:         status,
	}, true, nil
}
