package audit

import (
	"context"
	"os"

	"github.com/shopspring/decimal"

	"github.com/hedisam/ethrecon/internal/flows"
	"github.com/hedisam/ethrecon/internal/report"
)

// FundingOptions names the sidecar input files for the funding audit. An
// empty path skips that flow group, matching how partial audit packs are
// published.
type FundingOptions struct {
	TestingReturnsCSV string
	SafeETHCSV        string
	SafeLPTCSV        string
	DisbursementsJSON string
	TreasuryLedgerCSV string
	ConversionsDate   string // YYYY-MM-DD prefix filter on the ledger CSV
}

// Funding verifies the legacy funding flows and classifies the treasury's LPT
// conversion transactions, then writes the flow/conversion CSVs and a totals
// summary. Any verification fault aborts before the reports are written.
func (r *Runner) Funding(ctx context.Context, opts FundingOptions) error {
	var rows []report.FlowRow

	if exists(opts.TestingReturnsCSV) {
		expected, err := flows.LoadAmountCSV(opts.TestingReturnsCSV, "amount_eth")
		if err != nil {
			return err
		}
		for _, e := range expected {
			row, err := r.verifier.VerifyTestingWalletReturn(ctx, e)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		r.logger.WithField("count", len(expected)).Info("Verified testing wallet returns")
	}

	if exists(opts.SafeETHCSV) {
		expected, err := flows.LoadAmountCSV(opts.SafeETHCSV, "amount_eth")
		if err != nil {
			return err
		}
		for _, e := range expected {
			row, err := r.verifier.VerifySafeExecTransfer(ctx, e)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		r.logger.WithField("count", len(expected)).Info("Verified safe wallet ETH transfers")
	}

	if exists(opts.DisbursementsJSON) {
		disbursements, err := flows.LoadDisbursementsJSON(opts.DisbursementsJSON)
		if err != nil {
			return err
		}
		for _, d := range disbursements {
			row, err := r.verifier.VerifyTreasuryDisbursement(ctx, d)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		r.logger.WithField("count", len(disbursements)).Info("Verified treasury disbursements")
	}

	if exists(opts.SafeLPTCSV) {
		expected, err := flows.LoadAmountCSV(opts.SafeLPTCSV, "amount_lpt")
		if err != nil {
			return err
		}
		for _, e := range expected {
			row, err := r.verifier.VerifySafeTokenTransfer(ctx, e, r.cfg.Chain.LPT)
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		r.logger.WithField("count", len(expected)).Info("Verified safe wallet LPT transfers")
	}

	report.SortFlowRows(rows)
	err := report.WriteCSV(r.outPath("legacy_funding_flows.csv"), rows)
	if err != nil {
		return err
	}

	var conversions []report.ConversionRow
	if exists(opts.TreasuryLedgerCSV) {
		txs, err := flows.LoadDatedTxCSV(opts.TreasuryLedgerCSV, opts.ConversionsDate)
		if err != nil {
			return err
		}
		conversions, err = r.verifier.ClassifyConversions(ctx, txs)
		if err != nil {
			return err
		}
		r.logger.WithField("count", len(conversions)).Info("Classified treasury conversions")
	}

	report.SortConversionRows(conversions)
	err = report.WriteCSV(r.outPath("lpt_conversions_onchain.csv"), conversions)
	if err != nil {
		return err
	}

	summary := map[string]any{
		"rpc_url": r.client.NodeAddr(),
		"funding_flows": map[string]any{
			"row_count":                  len(rows),
			"eth_testing_wallet_returns": sumFlowAmounts(rows, flows.KindTestingWalletReturn).String(),
			"eth_safe_exec_transfers":    sumFlowAmounts(rows, flows.KindSafeExecETHTransfer).String(),
			"lpt_safe_transfers":         sumFlowAmounts(rows, flows.KindSafeLPTTransfer).String(),
			"eth_treasury_disbursements": sumFlowAmounts(rows, flows.KindTreasuryDisbursement).String(),
		},
		"lpt_conversions": map[string]any{
			"row_count":            len(conversions),
			"lpt_out_total":        sumConversions(conversions, func(c report.ConversionRow) decimal.Decimal { return c.LPTOut }).String(),
			"usdc_in_total":        sumConversions(conversions, func(c report.ConversionRow) decimal.Decimal { return c.USDCIn }).String(),
			"weth_gross_in_total":  sumConversions(conversions, func(c report.ConversionRow) decimal.Decimal { return c.WETHGrossIn }).String(),
			"weth_burn_total":      sumConversions(conversions, func(c report.ConversionRow) decimal.Decimal { return c.WETHBurn }).String(),
			"weth_other_out_total": sumConversions(conversions, func(c report.ConversionRow) decimal.Decimal { return c.WETHOtherOut }).String(),
		},
	}
	err = report.WriteJSON(r.outPath("legacy_funding_and_conversions_summary.json"), summary)
	if err != nil {
		return err
	}

	r.logger.WithField("out_dir", r.cfg.OutDir).Info("Funding audit complete")
	return nil
}

func sumConversions(rows []report.ConversionRow, field func(report.ConversionRow) decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(field(row))
	}
	return total
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
