package audit

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/ethrecon/internal/blockcache"
	"github.com/hedisam/ethrecon/internal/chain"
	"github.com/hedisam/ethrecon/internal/config"
	"github.com/hedisam/ethrecon/internal/eth"
	"github.com/hedisam/ethrecon/internal/report"
	"github.com/hedisam/ethrecon/internal/scan"
)

// TreasuryOptions configures the treasury audit run.
type TreasuryOptions struct {
	// SnapshotUTC is the doc-snapshot cut: totals are additionally reported
	// as-of this instant for reconciliation against the published
	// retrospective.
	SnapshotUTC time.Time
}

// Treasury enumerates every USDC / USDC.e Transfer touching the treasury,
// reconciles the net flow against the live on-chain balance, and writes the
// transfer CSV, the outflows-by-recipient CSV, and the verification summary.
func (r *Runner) Treasury(ctx context.Context, opts TreasuryOptions) error {
	latestBlock, err := r.client.BlockNumber(ctx)
	if err != nil {
		return err
	}
	header, err := r.client.BlockByNumber(ctx, latestBlock)
	if err != nil {
		return err
	}
	asOfUTC := time.Unix(header.Timestamp, 0).UTC().Format(time.RFC3339)

	var cache *blockcache.Cache
	if r.cfg.BlockCachePath != "" {
		cache, err = blockcache.Open(r.cfg.BlockCachePath, r.cfg.Chain.Name)
		if err != nil {
			return err
		}
		defer func() { _ = cache.Close() }()
	}
	resolver := blockcache.NewResolver(cache, r.client)

	treasury := r.cfg.Chain.Treasury
	tokens := []config.Token{r.cfg.Chain.USDC, r.cfg.Chain.USDCe}

	var transferRows []report.TransferRow
	for _, token := range tokens {
		logs, err := r.fetchTreasuryTransferLogs(ctx, token, latestBlock)
		if err != nil {
			return err
		}
		rows, err := r.decodeTransferRows(ctx, resolver, token, logs)
		if err != nil {
			return err
		}
		transferRows = append(transferRows, rows...)
		r.logger.WithFields(logrus.Fields{
			"token":     token.Symbol,
			"transfers": len(rows),
		}).Info("Decoded treasury transfers")
	}

	report.SortTransferRows(transferRows)
	err = report.WriteCSV(r.outPath("usdc_transfers.csv"), transferRows)
	if err != nil {
		return err
	}

	summaryTokens := make(map[string]any, len(tokens))
	outflowIndex := make(map[string]*report.OutflowRow)
	var outflowOrder []string

	for _, token := range tokens {
		var (
			inRaw, outRaw                 = new(big.Int), new(big.Int)
			inSnapshotRaw, outSnapshotRaw = new(big.Int), new(big.Int)
			inCount, outCount             int
			inCountSnapshot               int
			outCountSnapshot              int
		)

		for _, row := range transferRows {
			if row.TokenSymbol != token.Symbol {
				continue
			}
			ts, err := time.Parse(time.RFC3339, row.TimestampUTC)
			if err != nil {
				return fmt.Errorf("transfer %s timestamp: %w", row.TxHash, err)
			}
			isSnapshot := !ts.After(opts.SnapshotUTC)

			switch row.Direction {
			case "in":
				inCount++
				inRaw.Add(inRaw, row.AmountRaw)
				if isSnapshot {
					inCountSnapshot++
					inSnapshotRaw.Add(inSnapshotRaw, row.AmountRaw)
				}
			case "out":
				outCount++
				outRaw.Add(outRaw, row.AmountRaw)
				if isSnapshot {
					outCountSnapshot++
					outSnapshotRaw.Add(outSnapshotRaw, row.AmountRaw)
				}

				key := token.Symbol + "|" + string(row.To)
				agg, ok := outflowIndex[key]
				if !ok {
					agg = &report.OutflowRow{
						TokenSymbol:       token.Symbol,
						TokenAddress:      token.Address,
						Recipient:         row.To,
						AmountTotalRaw:    new(big.Int),
						AmountSnapshotRaw: new(big.Int),
					}
					outflowIndex[key] = agg
					outflowOrder = append(outflowOrder, key)
				}
				agg.TxCountTotal++
				agg.AmountTotalRaw.Add(agg.AmountTotalRaw, row.AmountRaw)
				if isSnapshot {
					agg.TxCountSnapshot++
					agg.AmountSnapshotRaw.Add(agg.AmountSnapshotRaw, row.AmountRaw)
				}
			}
		}

		balanceRaw, err := r.tokenBalance(ctx, token, treasury)
		if err != nil {
			return err
		}
		netRaw := new(big.Int).Sub(inRaw, outRaw)
		netSnapshotRaw := new(big.Int).Sub(inSnapshotRaw, outSnapshotRaw)

		summaryTokens[token.Symbol] = map[string]any{
			"token_address":       string(token.Address),
			"decimals":            token.Decimals,
			"current_balance_raw": balanceRaw.String(),
			"current_balance":     chain.Normalize(balanceRaw, token.Decimals).String(),
			"inflow_count_total":  inCount,
			"outflow_count_total": outCount,
			"inflow_total_raw":    inRaw.String(),
			"outflow_total_raw":   outRaw.String(),
			"net_raw":             netRaw.String(),
			"inflow_total":        chain.Normalize(inRaw, token.Decimals).String(),
			"outflow_total":       chain.Normalize(outRaw, token.Decimals).String(),
			"net":                 chain.Normalize(netRaw, token.Decimals).String(),
			"balance_reconciles":  balanceRaw.Cmp(netRaw) == 0,
			"doc_snapshot": map[string]any{
				"inflow_count":      inCountSnapshot,
				"outflow_count":     outCountSnapshot,
				"inflow_total_raw":  inSnapshotRaw.String(),
				"outflow_total_raw": outSnapshotRaw.String(),
				"net_raw":           netSnapshotRaw.String(),
				"inflow_total":      chain.Normalize(inSnapshotRaw, token.Decimals).String(),
				"outflow_total":     chain.Normalize(outSnapshotRaw, token.Decimals).String(),
				"net":               chain.Normalize(netSnapshotRaw, token.Decimals).String(),
			},
		}
	}

	outflowRows := make([]report.OutflowRow, 0, len(outflowOrder))
	for _, key := range outflowOrder {
		outflowRows = append(outflowRows, *outflowIndex[key])
	}
	report.SortOutflowRows(outflowRows)
	err = report.WriteCSV(r.outPath("usdc_outflows_by_recipient.csv"), outflowRows)
	if err != nil {
		return err
	}

	summary := map[string]any{
		"as_of_block":      latestBlock,
		"as_of_utc":        asOfUTC,
		"rpc_url":          r.client.NodeAddr(),
		"treasury":         string(treasury),
		"doc_snapshot_utc": opts.SnapshotUTC.UTC().Format(time.RFC3339),
		"tokens":           summaryTokens,
	}
	err = report.WriteJSON(r.outPath("usdc_verification_summary.json"), summary)
	if err != nil {
		return err
	}

	r.logger.WithField("out_dir", r.cfg.OutDir).Info("Treasury audit complete")
	return nil
}

// fetchTreasuryTransferLogs pulls the token's Transfer logs with the treasury
// as sender or as recipient, de-duplicated by (tx hash, log index) so
// self-transfers are not double counted.
func (r *Runner) fetchTreasuryTransferLogs(ctx context.Context, token config.Token, latestBlock uint64) ([]eth.Log, error) {
	treasuryTopic, err := chain.TopicForAddress(r.cfg.Chain.Treasury)
	if err != nil {
		return nil, err
	}

	outQuery := eth.LogQuery{
		ToBlock: latestBlock,
		Address: string(token.Address),
		Topics:  []any{chain.TransferTopic0, treasuryTopic},
	}
	inQuery := eth.LogQuery{
		ToBlock: latestBlock,
		Address: string(token.Address),
		Topics:  []any{chain.TransferTopic0, nil, treasuryTopic},
	}

	// Start with the whole history in one chunk; the scanner degrades the
	// chunk size if the provider objects.
	outLogs, err := scan.Collect(ctx, r.scanner.Scan(ctx, outQuery, latestBlock+1))
	if err != nil {
		return nil, err
	}
	inLogs, err := scan.Collect(ctx, r.scanner.Scan(ctx, inQuery, latestBlock+1))
	if err != nil {
		return nil, err
	}

	type logKey struct {
		txHash   string
		logIndex uint64
	}
	seen := make(map[logKey]struct{}, len(outLogs)+len(inLogs))
	merged := make([]eth.Log, 0, len(outLogs)+len(inLogs))
	for _, log := range append(outLogs, inLogs...) {
		key := logKey{txHash: log.TxHash, logIndex: log.LogIndex}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		merged = append(merged, log)
	}

	return merged, nil
}

func (r *Runner) decodeTransferRows(ctx context.Context, resolver *blockcache.Resolver, token config.Token, logs []eth.Log) ([]report.TransferRow, error) {
	treasury := r.cfg.Chain.Treasury
	rows := make([]report.TransferRow, 0, len(logs))
	for _, log := range logs {
		if len(log.Topics) != 3 {
			continue
		}
		from, err := chain.AddressFromTopic(log.Topics[1])
		if err != nil {
			return nil, fmt.Errorf("transfer log %s/%d from-topic: %w", log.TxHash, log.LogIndex, err)
		}
		to, err := chain.AddressFromTopic(log.Topics[2])
		if err != nil {
			return nil, fmt.Errorf("transfer log %s/%d to-topic: %w", log.TxHash, log.LogIndex, err)
		}
		amountRaw, err := eth.ParseHexBig(log.Data)
		if err != nil {
			return nil, fmt.Errorf("transfer log %s/%d data: %w", log.TxHash, log.LogIndex, chain.ErrDecode)
		}

		var direction string
		switch {
		case from == treasury && to == treasury:
			direction = "self"
		case from == treasury:
			direction = "out"
		case to == treasury:
			direction = "in"
		default:
			// Shouldn't happen given the queries, but keep it explicit if it does.
			direction = "other"
		}

		ts, err := resolver.Timestamp(ctx, log.BlockNumber)
		if err != nil {
			return nil, err
		}

		rows = append(rows, report.TransferRow{
			TokenSymbol:  token.Symbol,
			TokenAddress: token.Address,
			TxHash:       string(chain.NormalizeAddress(log.TxHash)),
			BlockNumber:  log.BlockNumber,
			TimestampUTC: time.Unix(ts, 0).UTC().Format(time.RFC3339),
			LogIndex:     log.LogIndex,
			From:         from,
			To:           to,
			Direction:    direction,
			AmountRaw:    amountRaw,
			Amount:       chain.Normalize(amountRaw, token.Decimals),
		})
	}

	return rows, nil
}

func (r *Runner) tokenBalance(ctx context.Context, token config.Token, owner chain.Address) (*big.Int, error) {
	calldata, err := chain.BalanceOfCalldata(owner)
	if err != nil {
		return nil, err
	}
	result, err := r.client.CallContract(ctx, string(token.Address), calldata)
	if err != nil {
		return nil, err
	}
	balance, err := eth.ParseHexBig(result)
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s) result: %w", owner, err)
	}
	return balance, nil
}
