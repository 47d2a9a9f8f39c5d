// Package verify checks expected financial flows against canonical chain
// data. Every mismatch is fatal: a reconciliation tool must not silently
// accept a discrepancy, so faults abort the run rather than soft-fail.
package verify

import (
	"context"
	"fmt"
	"math/big"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/ethrecon/internal/chain"
	"github.com/hedisam/ethrecon/internal/config"
	"github.com/hedisam/ethrecon/internal/eth"
	"github.com/hedisam/ethrecon/internal/flows"
	"github.com/hedisam/ethrecon/internal/metrics"
	"github.com/hedisam/ethrecon/internal/report"
)

// Fetcher is the chain-data dependency of the verifier.
type Fetcher interface {
	TransactionByHash(ctx context.Context, txHash string) (*eth.Transaction, error)
	TransactionReceipt(ctx context.Context, txHash string) (*eth.Receipt, error)
	TransactionWithReceiptBatch(ctx context.Context, txHashes []string) ([]eth.TxWithReceipt, error)
}

// Fault is a verification failure: decoded chain data does not match the
// externally supplied expectation. It names the offending transaction and
// field so the diagnostic is actionable.
type Fault struct {
	TxHash string
	Field  string
	Msg    string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("verification fault: tx %s: %s: %s", f.TxHash, f.Field, f.Msg)
}

func newFault(txHash, field, format string, args ...any) *Fault {
	return &Fault{TxHash: txHash, Field: field, Msg: fmt.Sprintf(format, args...)}
}

// Verifier checks expected flows against the chain. The deployment config is
// fixed at construction and never mutated.
type Verifier struct {
	logger *logrus.Logger
	client Fetcher
	chain  config.Chain
}

func New(logger *logrus.Logger, client Fetcher, chainCfg config.Chain) *Verifier {
	return &Verifier{
		logger: logger,
		client: client,
		chain:  chainCfg,
	}
}

// VerifyTestingWalletReturn checks a plain native transfer from the testing
// wallet back to the gateway.
func (v *Verifier) VerifyTestingWalletReturn(ctx context.Context, expected flows.ExpectedTx) (report.FlowRow, error) {
	return v.verifyNativeTransfer(ctx, nativeTransferExpectation{
		kind:   flows.KindTestingWalletReturn,
		txHash: expected.TxHash,
		from:   v.chain.TestingWallet,
		to:     v.chain.Gateway,
		amount: expected.Amount,
		note:   "Phase 1 testing wallet return to gateway",
	})
}

// VerifyTreasuryDisbursement checks a plain native transfer from the treasury
// to the recipient named in the disbursement record.
func (v *Verifier) VerifyTreasuryDisbursement(ctx context.Context, expected flows.Disbursement) (report.FlowRow, error) {
	to, err := chain.ParseAddress(expected.Recipient)
	if err != nil {
		return report.FlowRow{}, fmt.Errorf("disbursement %s recipient: %w", expected.TxHash, err)
	}
	return v.verifyNativeTransfer(ctx, nativeTransferExpectation{
		kind:   flows.KindTreasuryDisbursement,
		txHash: expected.TxHash,
		from:   v.chain.Treasury,
		to:     to,
		amount: expected.AmountETH,
		note:   "Phase 3 treasury disbursement",
	})
}

type nativeTransferExpectation struct {
	kind   string
	txHash string
	from   chain.Address
	to     chain.Address
	amount string
	note   string
}

func (v *Verifier) verifyNativeTransfer(ctx context.Context, expected nativeTransferExpectation) (report.FlowRow, error) {
	expWei, err := chain.ToRaw(expected.amount, chain.NativeDecimals)
	if err != nil {
		return report.FlowRow{}, fmt.Errorf("flow %s expected amount: %w", expected.txHash, err)
	}

	tx, receipt, err := v.fetch(ctx, expected.txHash)
	if err != nil {
		return report.FlowRow{}, err
	}

	if !chain.ReceiptOK(receipt) {
		return report.FlowRow{}, newFault(expected.txHash, "status", "tx failed (status != 1)")
	}
	if got := chain.NormalizeAddress(tx.From); got != expected.from {
		return report.FlowRow{}, newFault(expected.txHash, "from", "got %s, expected %s", got, expected.from)
	}
	if got := chain.NormalizeAddress(tx.To); got != expected.to {
		return report.FlowRow{}, newFault(expected.txHash, "to", "got %s, expected %s", got, expected.to)
	}
	if tx.Value.Cmp(expWei) != 0 {
		return report.FlowRow{}, newFault(expected.txHash, "value", "got %s wei, expected %s wei", tx.Value, expWei)
	}

	metrics.VerifiedFlows.Inc()
	return report.FlowRow{
		Chain:       v.chain.Name,
		Kind:        expected.kind,
		TxHash:      expected.txHash,
		BlockNumber: tx.BlockNumber,
		From:        expected.from,
		To:          expected.to,
		Asset:       "ETH",
		AmountRaw:   tx.Value,
		Decimals:    chain.NativeDecimals,
		Amount:      chain.Normalize(tx.Value, chain.NativeDecimals),
		GasFeeETH:   chain.GasFeeETH(receipt),
		Status:      "success",
		Note:        expected.note,
	}, nil
}

// VerifySafeExecTransfer checks a native transfer executed through the Safe
// wallet's execTransaction: the outer tx must target the Safe and the decoded
// inner call must move the expected value to the gateway.
func (v *Verifier) VerifySafeExecTransfer(ctx context.Context, expected flows.ExpectedTx) (report.FlowRow, error) {
	expWei, err := chain.ToRaw(expected.Amount, chain.NativeDecimals)
	if err != nil {
		return report.FlowRow{}, fmt.Errorf("flow %s expected amount: %w", expected.TxHash, err)
	}

	tx, receipt, err := v.fetch(ctx, expected.TxHash)
	if err != nil {
		return report.FlowRow{}, err
	}

	if !chain.ReceiptOK(receipt) {
		return report.FlowRow{}, newFault(expected.TxHash, "status", "tx failed (status != 1)")
	}
	if got := chain.NormalizeAddress(tx.To); got != v.chain.SafeWallet {
		return report.FlowRow{}, newFault(expected.TxHash, "to", "got %s, expected safe wallet %s", got, v.chain.SafeWallet)
	}

	decoded, err := chain.DecodeSafeExecTransaction(tx.Input)
	if err != nil {
		return report.FlowRow{}, fmt.Errorf("flow %s: %w", expected.TxHash, err)
	}
	if decoded.To != v.chain.Gateway {
		return report.FlowRow{}, newFault(expected.TxHash, "exec_to", "got %s, expected gateway %s", decoded.To, v.chain.Gateway)
	}
	if decoded.ValueWei.Cmp(expWei) != 0 {
		return report.FlowRow{}, newFault(expected.TxHash, "exec_value", "got %s wei, expected %s wei", decoded.ValueWei, expWei)
	}

	metrics.VerifiedFlows.Inc()
	return report.FlowRow{
		Chain:       v.chain.Name,
		Kind:        flows.KindSafeExecETHTransfer,
		TxHash:      expected.TxHash,
		BlockNumber: tx.BlockNumber,
		From:        v.chain.SafeWallet,
		To:          v.chain.Gateway,
		Asset:       "ETH",
		AmountRaw:   expWei,
		Decimals:    chain.NativeDecimals,
		Amount:      chain.Normalize(expWei, chain.NativeDecimals),
		GasFeeETH:   chain.GasFeeETH(receipt),
		Status:      "success",
		Note:        "Safe execTransaction ETH transfer to gateway",
	}, nil
}

// VerifySafeTokenTransfer checks an ERC-20 transfer from the Safe wallet to
// the gateway. A transaction may batch multiple Transfer events; matching
// logs are summed, not taken from a single log.
func (v *Verifier) VerifySafeTokenTransfer(ctx context.Context, expected flows.ExpectedTx, token config.Token) (report.FlowRow, error) {
	expRaw, err := chain.ToRaw(expected.Amount, token.Decimals)
	if err != nil {
		return report.FlowRow{}, fmt.Errorf("flow %s expected amount: %w", expected.TxHash, err)
	}

	receipt, err := v.client.TransactionReceipt(ctx, expected.TxHash)
	if err != nil {
		return report.FlowRow{}, fmt.Errorf("fetch receipt %s: %w", expected.TxHash, err)
	}
	if !chain.ReceiptOK(receipt) {
		return report.FlowRow{}, newFault(expected.TxHash, "status", "tx failed (status != 1)")
	}

	transfers, err := chain.TransfersInReceipt(receipt, token.Address)
	if err != nil {
		return report.FlowRow{}, err
	}
	got := chain.SumTransfers(transfers, v.chain.SafeWallet, v.chain.Gateway)
	if got.Cmp(expRaw) != 0 {
		return report.FlowRow{}, newFault(expected.TxHash, "token_sum", "got %s raw %s, expected %s", got, token.Symbol, expRaw)
	}

	metrics.VerifiedFlows.Inc()
	return report.FlowRow{
		Chain:       v.chain.Name,
		Kind:        flows.KindSafeLPTTransfer,
		TxHash:      expected.TxHash,
		BlockNumber: receipt.BlockNumber,
		From:        v.chain.SafeWallet,
		To:          v.chain.Gateway,
		Asset:       token.Symbol,
		AmountRaw:   got,
		Decimals:    token.Decimals,
		Amount:      chain.Normalize(got, token.Decimals),
		GasFeeETH:   chain.GasFeeETH(receipt),
		Status:      "success",
		Note:        fmt.Sprintf("Safe %s transfer to gateway", token.Symbol),
	}, nil
}

func (v *Verifier) fetch(ctx context.Context, txHash string) (*eth.Transaction, *eth.Receipt, error) {
	tx, err := v.client.TransactionByHash(ctx, txHash)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch tx %s: %w", txHash, err)
	}
	receipt, err := v.client.TransactionReceipt(ctx, txHash)
	if err != nil {
		return nil, nil, fmt.Errorf("fetch receipt %s: %w", txHash, err)
	}
	return tx, receipt, nil
}

// DirectTransferResult sums a batch of verified direct native payouts.
type DirectTransferResult struct {
	TxCount  int
	TotalWei *big.Int
}

// VerifyDirectTransfers verifies that every listed transaction is a
// successful native transfer sent by the backend payout wallet and sums the
// transferred values. Lookups are coalesced into JSON-RPC batches to cut
// round trips; batchSize counts transactions (each costs two RPC calls).
func (v *Verifier) VerifyDirectTransfers(ctx context.Context, txHashes []string, batchSize int) (DirectTransferResult, error) {
	if batchSize <= 0 {
		batchSize = 75
	}

	total := new(big.Int)
	verified := 0
	for start := 0; start < len(txHashes); start += batchSize {
		end := min(start+batchSize, len(txHashes))
		pairs, err := v.client.TransactionWithReceiptBatch(ctx, txHashes[start:end])
		if err != nil {
			return DirectTransferResult{}, err
		}

		for i, pair := range pairs {
			txHash := txHashes[start+i]
			if !chain.ReceiptOK(pair.Receipt) {
				return DirectTransferResult{}, newFault(txHash, "status", "tx failed (status != 1)")
			}
			if got := chain.NormalizeAddress(pair.Tx.From); got != v.chain.BackendPayoutWallet {
				return DirectTransferResult{}, newFault(txHash, "from", "got %s, expected payout wallet %s", got, v.chain.BackendPayoutWallet)
			}
			total.Add(total, pair.Tx.Value)
			verified++
			metrics.VerifiedFlows.Inc()
		}

		if verified%300 == 0 || verified == len(txHashes) {
			v.logger.WithFields(logrus.Fields{
				"verified": verified,
				"total":    len(txHashes),
			}).Info("Verified direct transfers...")
		}
	}

	return DirectTransferResult{TxCount: verified, TotalWei: total}, nil
}

// VerifyTicketRun sums the WinningTicketRedeemed amounts across the run's
// transactions and checks every redemption was sent by the run's expected
// sender.
func (v *Verifier) VerifyTicketRun(ctx context.Context, run flows.TicketRun) (*big.Int, error) {
	expSender, err := chain.ParseAddress(run.Sender)
	if err != nil {
		return nil, fmt.Errorf("ticket run %s sender: %w", run.Name, err)
	}

	total := new(big.Int)
	for _, txHash := range run.TxHashes {
		receipt, err := v.client.TransactionReceipt(ctx, txHash)
		if err != nil {
			return nil, fmt.Errorf("fetch receipt %s: %w", txHash, err)
		}
		if !chain.ReceiptOK(receipt) {
			return nil, newFault(txHash, "status", "ticket run %s tx failed (status != 1)", run.Name)
		}

		sum, rows, err := chain.TicketRedemptionsInReceipt(receipt, v.chain.TicketBroker)
		if err != nil {
			return nil, fmt.Errorf("ticket run %s tx %s: %w", run.Name, txHash, err)
		}
		for _, row := range rows {
			if row.Sender != expSender {
				return nil, newFault(txHash, "ticket_sender", "got %s, expected %s", row.Sender, expSender)
			}
		}
		total.Add(total, sum)
		metrics.VerifiedFlows.Inc()
	}

	return total, nil
}
