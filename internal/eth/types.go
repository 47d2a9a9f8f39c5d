package eth

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// Transaction is a raw transaction as returned by eth_getTransactionByHash.
// Immutable once decoded.
type Transaction struct {
	Hash        string   `json:"hash"`
	From        string   `json:"from"`
	To          string   `json:"to"`
	Value       *big.Int `json:"-"`
	BlockNumber uint64   `json:"-"`
	Input       string   `json:"input"`
}

// UnmarshalJSON customizes Transaction decoding to parse the hex value and
// block number fields.
func (t *Transaction) UnmarshalJSON(data []byte) error {
	// alias to avoid infinite recursion
	type txAlias Transaction
	aux := &struct {
		*txAlias
		Value       string `json:"value"`
		BlockNumber string `json:"blockNumber"`
	}{
		txAlias: (*txAlias)(t),
	}

	err := json.Unmarshal(data, &aux)
	if err != nil {
		return fmt.Errorf("error unmarshalling Transaction: %w", err)
	}

	t.Value, err = ParseHexBig(aux.Value)
	if err != nil {
		return fmt.Errorf("invalid tx value %q: %w", aux.Value, err)
	}
	t.BlockNumber, err = ParseHexUint(aux.BlockNumber)
	if err != nil {
		return fmt.Errorf("invalid tx block number %q: %w", aux.BlockNumber, err)
	}

	return nil
}

// Receipt is the post-execution record of a transaction.
type Receipt struct {
	Status            uint64   `json:"-"`
	GasUsed           uint64   `json:"-"`
	EffectiveGasPrice *big.Int `json:"-"`
	BlockNumber       uint64   `json:"-"`
	Logs              []Log    `json:"logs"`
}

// UnmarshalJSON parses the hex numeric receipt fields. Status is accepted as
// either a hex string or a bare integer, depending on the node.
func (r *Receipt) UnmarshalJSON(data []byte) error {
	type receiptAlias Receipt
	aux := &struct {
		*receiptAlias
		Status            json.RawMessage `json:"status"`
		GasUsed           string          `json:"gasUsed"`
		EffectiveGasPrice string          `json:"effectiveGasPrice"`
		BlockNumber       string          `json:"blockNumber"`
	}{
		receiptAlias: (*receiptAlias)(r),
	}

	err := json.Unmarshal(data, &aux)
	if err != nil {
		return fmt.Errorf("error unmarshalling Receipt: %w", err)
	}

	r.Status, err = parseStatus(aux.Status)
	if err != nil {
		return fmt.Errorf("invalid receipt status %q: %w", string(aux.Status), err)
	}
	r.GasUsed, err = ParseHexUint(aux.GasUsed)
	if err != nil {
		return fmt.Errorf("invalid receipt gasUsed %q: %w", aux.GasUsed, err)
	}
	r.EffectiveGasPrice, err = ParseHexBig(aux.EffectiveGasPrice)
	if err != nil {
		return fmt.Errorf("invalid receipt effectiveGasPrice %q: %w", aux.EffectiveGasPrice, err)
	}
	r.BlockNumber, err = ParseHexUint(aux.BlockNumber)
	if err != nil {
		return fmt.Errorf("invalid receipt block number %q: %w", aux.BlockNumber, err)
	}

	return nil
}

// Log is a single event log entry, either embedded in a receipt or returned by
// eth_getLogs.
type Log struct {
	Address     string   `json:"address"`
	Topics      []string `json:"topics"`
	Data        string   `json:"data"`
	BlockNumber uint64   `json:"-"`
	TxHash      string   `json:"transactionHash"`
	LogIndex    uint64   `json:"-"`
}

// UnmarshalJSON parses the hex block number and log index fields.
func (l *Log) UnmarshalJSON(data []byte) error {
	type logAlias Log
	aux := &struct {
		*logAlias
		BlockNumber string `json:"blockNumber"`
		LogIndex    string `json:"logIndex"`
	}{
		logAlias: (*logAlias)(l),
	}

	err := json.Unmarshal(data, &aux)
	if err != nil {
		return fmt.Errorf("error unmarshalling Log: %w", err)
	}

	l.BlockNumber, err = ParseHexUint(aux.BlockNumber)
	if err != nil {
		return fmt.Errorf("invalid log block number %q: %w", aux.BlockNumber, err)
	}
	l.LogIndex, err = ParseHexUint(aux.LogIndex)
	if err != nil {
		return fmt.Errorf("invalid log index %q: %w", aux.LogIndex, err)
	}

	return nil
}

// BlockHeader carries the subset of eth_getBlockByNumber fields the auditor
// needs; transactions are never requested in full.
type BlockHeader struct {
	Number    uint64 `json:"-"`
	Timestamp int64  `json:"-"`
}

func (b *BlockHeader) UnmarshalJSON(data []byte) error {
	var aux struct {
		Number    string `json:"number"`
		Timestamp string `json:"timestamp"`
	}
	err := json.Unmarshal(data, &aux)
	if err != nil {
		return fmt.Errorf("error unmarshalling BlockHeader: %w", err)
	}

	b.Number, err = ParseHexUint(aux.Number)
	if err != nil {
		return fmt.Errorf("invalid block number %q: %w", aux.Number, err)
	}
	ts, err := ParseHexUint(aux.Timestamp)
	if err != nil {
		return fmt.Errorf("invalid block timestamp %q: %w", aux.Timestamp, err)
	}
	b.Timestamp = int64(ts)

	return nil
}

func parseStatus(raw json.RawMessage) (uint64, error) {
	s := strings.TrimSpace(string(raw))
	if s == "" || s == "null" {
		return 0, nil
	}
	if strings.HasPrefix(s, `"`) {
		var hexStatus string
		err := json.Unmarshal(raw, &hexStatus)
		if err != nil {
			return 0, err
		}
		return ParseHexUint(hexStatus)
	}
	return strconv.ParseUint(s, 10, 64)
}

// ParseHexUint parses a 0x-prefixed hex quantity; empty values parse to zero.
func ParseHexUint(value string) (uint64, error) {
	trimmed := strings.TrimPrefix(value, "0x")
	if trimmed == "" {
		return 0, nil
	}
	return strconv.ParseUint(trimmed, 16, 64)
}

// ParseHexBig parses a 0x-prefixed hex quantity of arbitrary size; empty
// values parse to zero.
func ParseHexBig(value string) (*big.Int, error) {
	trimmed := strings.TrimPrefix(strings.ToLower(value), "0x")
	if trimmed == "" {
		return new(big.Int), nil
	}
	n, ok := new(big.Int).SetString(trimmed, 16)
	if !ok {
		return nil, fmt.Errorf("malformed hex quantity %q", value)
	}
	return n, nil
}

// FormatHexUint renders a block number or similar quantity as 0x-prefixed hex.
func FormatHexUint(value uint64) string {
	return "0x" + strconv.FormatUint(value, 16)
}
