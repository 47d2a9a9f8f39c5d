package audit

import (
	"context"
	"fmt"
	"math/big"

	"github.com/hedisam/pipeline/chans"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/ethrecon/internal/chain"
	"github.com/hedisam/ethrecon/internal/eth"
	"github.com/hedisam/ethrecon/internal/flows"
	"github.com/hedisam/ethrecon/internal/report"
)

// PayoutsOptions names the payout-audit inputs. ExpectedTotalsJSON is the
// previously committed snapshot; when it exists the recomputed totals are
// reconciled against it.
type PayoutsOptions struct {
	TicketRunsJSON     string
	DirectTransfersCSV string
	ExpectedTotalsJSON string
	BatchSize          int
}

// Payouts recomputes the headline ETH payout totals from TicketBroker
// redemption logs and direct native transfers, writes the recomputed totals,
// and reconciles them against the committed snapshot. Returns
// ErrTotalsMismatch when any total diverges.
func (r *Runner) Payouts(ctx context.Context, opts PayoutsOptions) error {
	latestBlock, err := r.client.BlockNumber(ctx)
	if err != nil {
		return err
	}

	// Phase 1+2: every redemption sent by the gateway since the first
	// redemption-era block.
	gatewayCount, gatewayTotalWei, err := r.sumGatewayRedemptions(ctx, latestBlock)
	if err != nil {
		return err
	}
	r.logger.WithFields(logrus.Fields{
		"event_count": gatewayCount,
		"total_wei":   gatewayTotalWei,
	}).Info("Scanned gateway ticket redemptions")

	totals := map[string]decimal.Decimal{
		"phase1+2_ticket_eth": chain.Normalize(gatewayTotalWei, chain.NativeDecimals),
	}
	runTotal := chain.Normalize(gatewayTotalWei, chain.NativeDecimals)

	// Named post-snapshot TicketBroker payout runs.
	if exists(opts.TicketRunsJSON) {
		runs, err := flows.LoadTicketRunsJSON(opts.TicketRunsJSON)
		if err != nil {
			return err
		}
		for _, run := range runs {
			wei, err := r.verifier.VerifyTicketRun(ctx, run)
			if err != nil {
				return err
			}
			amount := chain.Normalize(wei, chain.NativeDecimals)
			totals[run.Name] = amount
			runTotal = runTotal.Add(amount)
		}
	}

	// Phase 3: direct native transfers enumerated by tx-hash list.
	var directCount int
	if exists(opts.DirectTransfersCSV) {
		hashes, err := flows.LoadTxHashesCSV(opts.DirectTransfersCSV)
		if err != nil {
			return err
		}
		result, err := r.verifier.VerifyDirectTransfers(ctx, hashes, opts.BatchSize)
		if err != nil {
			return err
		}
		directCount = result.TxCount
		amount := chain.Normalize(result.TotalWei, chain.NativeDecimals)
		totals["phase3_transfer_eth"] = amount
		runTotal = runTotal.Add(amount)
	}

	totals["total_eth"] = runTotal

	out := make(map[string]any, len(totals)+1)
	recomputed := make(map[string]string, len(totals))
	for k, v := range totals {
		out[k] = v.String()
		recomputed[k] = v.String()
	}
	out["meta"] = map[string]any{
		"latest_block":                      latestBlock,
		"phase1+2_ticketbroker_sender":      string(r.cfg.Chain.Gateway),
		"phase1+2_ticketbroker_event_count": gatewayCount,
		"phase3_direct_transfer_tx_count":   directCount,
	}

	recomputedPath := r.outPath("computed_totals.recomputed.json")
	err = report.WriteJSON(recomputedPath, out)
	if err != nil {
		return err
	}
	r.logger.WithField("path", recomputedPath).Info("Recomputed totals written")

	if !exists(opts.ExpectedTotalsJSON) {
		return nil
	}
	expected, err := flows.LoadTotalsJSON(opts.ExpectedTotalsJSON)
	if err != nil {
		return err
	}
	mismatches, err := report.CompareTotals(expected, recomputed)
	if err != nil {
		return err
	}
	if len(mismatches) > 0 {
		for _, m := range mismatches {
			r.logger.WithFields(logrus.Fields{
				"key":      m.Key,
				"expected": m.Expected,
				"got":      m.Got,
			}).Error("Total mismatch vs committed snapshot")
		}
		return fmt.Errorf("%w: %d key(s) diverged", ErrTotalsMismatch, len(mismatches))
	}

	r.logger.Info("OK: totals match committed snapshot (decimal-exact)")
	return nil
}

func (r *Runner) sumGatewayRedemptions(ctx context.Context, latestBlock uint64) (int, *big.Int, error) {
	senderTopic, err := chain.TopicForAddress(r.cfg.Chain.Gateway)
	if err != nil {
		return 0, nil, err
	}

	query := eth.LogQuery{
		FromBlock: r.cfg.Chain.TicketScanStartBlock,
		ToBlock:   latestBlock,
		Address:   string(r.cfg.Chain.TicketBroker),
		Topics:    []any{chain.WinningTicketRedeemedTopic0, senderTopic},
	}

	count := 0
	total := new(big.Int)
	for page := range chans.ReceiveOrDoneSeq(ctx, r.scanner.Scan(ctx, query, r.cfg.ChunkSize)) {
		if page.Err != nil {
			return 0, nil, page.Err
		}
		for _, log := range page.Logs {
			amount, err := eth.ParseHexBig(log.Data)
			if err != nil {
				return 0, nil, fmt.Errorf("redemption log %s/%d data: %w", log.TxHash, log.LogIndex, chain.ErrDecode)
			}
			total.Add(total, amount)
			count++
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}

	return count, total, nil
}
