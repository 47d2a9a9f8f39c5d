// Package flows loads the externally supplied expected-transaction sidecar
// files (CSV/JSON). Records are read-only assertions about what should exist
// on chain; the verifier decides whether reality matches.
package flows

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
)

// Flow kinds, matching the report's kind column.
const (
	KindTestingWalletReturn  = "testing_wallet_return"
	KindSafeExecETHTransfer  = "safe_exec_eth_transfer"
	KindTreasuryDisbursement = "treasury_eth_disbursement"
	KindSafeLPTTransfer      = "safe_lpt_transfer"
)

// ExpectedTx is a tx-hash + expected decimal amount pair from a funding CSV.
type ExpectedTx struct {
	TxHash string
	Amount string
}

// Disbursement is one expected phase-3 treasury disbursement.
type Disbursement struct {
	TxHash    string `json:"transaction_hash"`
	Recipient string `json:"recipient"`
	AmountETH string `json:"amount_eth"`
}

// TicketRun is one named TicketBroker payout run: the run's expected sender
// and its transaction hashes. The run name doubles as the totals key.
type TicketRun struct {
	Name     string   `json:"name"`
	Sender   string   `json:"sender"`
	TxHashes []string `json:"tx_hashes"`
}

// DatedTx is a tx hash with its recorded UTC timestamp from a ledger CSV.
type DatedTx struct {
	TxHash string
	ISOUTC string
}

// LoadAmountCSV reads tx_hash + an asset-specific decimal amount column.
func LoadAmountCSV(path, amountColumn string) ([]ExpectedTx, error) {
	var out []ExpectedTx
	err := readCSV(path, []string{"tx_hash", amountColumn}, func(row map[string]string) error {
		h := strings.ToLower(strings.TrimSpace(row["tx_hash"]))
		if h == "" {
			return nil
		}
		out = append(out, ExpectedTx{TxHash: h, Amount: strings.TrimSpace(row[amountColumn])})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadTxHashesCSV reads the tx_hash column, de-duplicating case-insensitively
// while preserving first-seen order.
func LoadTxHashesCSV(path string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	err := readCSV(path, []string{"tx_hash"}, func(row map[string]string) error {
		h := strings.ToLower(strings.TrimSpace(row["tx_hash"]))
		if h == "" {
			return nil
		}
		if _, ok := seen[h]; ok {
			return nil
		}
		seen[h] = struct{}{}
		out = append(out, h)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDatedTxCSV reads tx_hash + iso_utc rows whose timestamp starts with
// datePrefix (e.g. "2025-08-29"); an empty prefix keeps every row.
func LoadDatedTxCSV(path, datePrefix string) ([]DatedTx, error) {
	var out []DatedTx
	err := readCSV(path, []string{"tx_hash", "iso_utc"}, func(row map[string]string) error {
		iso := strings.TrimSpace(row["iso_utc"])
		if datePrefix != "" && !strings.HasPrefix(iso, datePrefix) {
			return nil
		}
		h := strings.ToLower(strings.TrimSpace(row["tx_hash"]))
		if h == "" {
			return nil
		}
		out = append(out, DatedTx{TxHash: h, ISOUTC: iso})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// LoadDisbursementsJSON reads a {"transactions": [...]} phase-3 disbursement
// list.
func LoadDisbursementsJSON(path string) ([]Disbursement, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read disbursements file: %w", err)
	}
	var doc struct {
		Transactions []Disbursement `json:"transactions"`
	}
	err = json.Unmarshal(data, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode disbursements file %s: %w", path, err)
	}
	return doc.Transactions, nil
}

// LoadTicketRunsJSON reads the named TicketBroker payout runs.
func LoadTicketRunsJSON(path string) ([]TicketRun, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read ticket runs file: %w", err)
	}
	var runs []TicketRun
	err = json.Unmarshal(data, &runs)
	if err != nil {
		return nil, fmt.Errorf("decode ticket runs file %s: %w", path, err)
	}
	for _, r := range runs {
		if r.Name == "" || r.Sender == "" {
			return nil, fmt.Errorf("ticket runs file %s: every run needs a name and a sender", path)
		}
	}
	return runs, nil
}

// LoadTotalsJSON reads a committed expected-totals file, keeping only the
// top-level decimal-string entries (nested metadata objects are ignored).
func LoadTotalsJSON(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read totals file: %w", err)
	}
	var raw map[string]json.RawMessage
	err = json.Unmarshal(data, &raw)
	if err != nil {
		return nil, fmt.Errorf("decode totals file %s: %w", path, err)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		var s string
		if json.Unmarshal(v, &s) == nil {
			out[k] = s
		}
	}
	return out, nil
}

func readCSV(path string, required []string, visit func(row map[string]string) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open csv file: %w", err)
	}
	defer func() { _ = f.Close() }()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		return fmt.Errorf("read csv header %s: %w", path, err)
	}
	colIdx := make(map[string]int, len(header))
	for i, name := range header {
		colIdx[strings.TrimSpace(name)] = i
	}
	for _, col := range required {
		if _, ok := colIdx[col]; !ok {
			return fmt.Errorf("missing %q column: %s", col, path)
		}
	}

	for {
		record, err := r.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read csv row %s: %w", path, err)
		}
		row := make(map[string]string, len(colIdx))
		for name, i := range colIdx {
			if i < len(record) {
				row[name] = record[i]
			}
		}
		err = visit(row)
		if err != nil {
			return err
		}
	}
}
