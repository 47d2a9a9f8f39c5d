package report

import (
	"math/big"
	"sort"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/hedisam/ethrecon/internal/chain"
)

// Row is one typed output record with a fixed, explicitly ordered column set.
// The CSV writer consumes any row type uniformly.
type Row interface {
	Header() []string
	Record() []string
}

// FlowRow is a verified expected flow, written once after verification.
type FlowRow struct {
	Chain       string
	Kind        string
	TxHash      string
	BlockNumber uint64
	From        chain.Address
	To          chain.Address
	Asset       string
	AmountRaw   *big.Int
	Decimals    int32
	Amount      decimal.Decimal
	GasFeeETH   decimal.Decimal
	Status      string
	Note        string
}

func (FlowRow) Header() []string {
	return []string{
		"chain", "kind", "tx_hash", "block_number", "from_addr", "to_addr",
		"asset", "amount_raw", "decimals", "amount", "gas_fee_eth", "status", "note",
	}
}

func (r FlowRow) Record() []string {
	return []string{
		r.Chain,
		r.Kind,
		r.TxHash,
		strconv.FormatUint(r.BlockNumber, 10),
		string(r.From),
		string(r.To),
		r.Asset,
		bigString(r.AmountRaw),
		strconv.FormatInt(int64(r.Decimals), 10),
		r.Amount.String(),
		r.GasFeeETH.String(),
		r.Status,
		r.Note,
	}
}

// SortFlowRows orders rows deterministically so report output is stable across
// reruns against an unchanged chain state.
func SortFlowRows(rows []FlowRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxHash != b.TxHash {
			return a.TxHash < b.TxHash
		}
		return a.Kind < b.Kind
	})
}

// ConversionRow is one classified treasury conversion transaction.
type ConversionRow struct {
	DateUTC        string
	TxHash         string
	To             chain.Address
	ConversionType string
	LPTOut         decimal.Decimal
	USDCIn         decimal.Decimal
	WETHGrossIn    decimal.Decimal
	WETHBurn       decimal.Decimal
	WETHOtherOut   decimal.Decimal
	GasFeeETH      decimal.Decimal
	Status         string
}

func (ConversionRow) Header() []string {
	return []string{
		"date_utc", "tx_hash", "to", "conversion_type",
		"lpt_out", "usdc_in", "weth_gross_in", "weth_burn", "weth_other_out",
		"gas_fee_eth", "status",
	}
}

func (r ConversionRow) Record() []string {
	return []string{
		r.DateUTC,
		r.TxHash,
		string(r.To),
		r.ConversionType,
		r.LPTOut.String(),
		r.USDCIn.String(),
		r.WETHGrossIn.String(),
		r.WETHBurn.String(),
		r.WETHOtherOut.String(),
		r.GasFeeETH.String(),
		r.Status,
	}
}

func SortConversionRows(rows []ConversionRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.DateUTC != b.DateUTC {
			return a.DateUTC < b.DateUTC
		}
		return a.TxHash < b.TxHash
	})
}

// TransferRow is one treasury-touching ERC-20 transfer log.
type TransferRow struct {
	TokenSymbol  string
	TokenAddress chain.Address
	TxHash       string
	BlockNumber  uint64
	TimestampUTC string
	LogIndex     uint64
	From         chain.Address
	To           chain.Address
	Direction    string // in | out | self | other
	AmountRaw    *big.Int
	Amount       decimal.Decimal
}

func (TransferRow) Header() []string {
	return []string{
		"token_symbol", "token_address", "tx_hash", "block_number", "timestamp_utc",
		"log_index", "from", "to", "direction", "amount_raw", "amount",
	}
}

func (r TransferRow) Record() []string {
	return []string{
		r.TokenSymbol,
		string(r.TokenAddress),
		r.TxHash,
		strconv.FormatUint(r.BlockNumber, 10),
		r.TimestampUTC,
		strconv.FormatUint(r.LogIndex, 10),
		string(r.From),
		string(r.To),
		r.Direction,
		bigString(r.AmountRaw),
		r.Amount.String(),
	}
}

func SortTransferRows(rows []TransferRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TokenSymbol != b.TokenSymbol {
			return a.TokenSymbol < b.TokenSymbol
		}
		if a.BlockNumber != b.BlockNumber {
			return a.BlockNumber < b.BlockNumber
		}
		if a.TxHash != b.TxHash {
			return a.TxHash < b.TxHash
		}
		return a.LogIndex < b.LogIndex
	})
}

// OutflowRow aggregates treasury outflows to one recipient for one token.
type OutflowRow struct {
	TokenSymbol       string
	TokenAddress      chain.Address
	Recipient         chain.Address
	TxCountTotal      int
	AmountTotalRaw    *big.Int
	TxCountSnapshot   int
	AmountSnapshotRaw *big.Int
}

func (OutflowRow) Header() []string {
	return []string{
		"token_symbol", "token_address", "recipient",
		"tx_count_total", "amount_total_raw",
		"tx_count_upto_doc_snapshot", "amount_upto_doc_snapshot_raw",
	}
}

func (r OutflowRow) Record() []string {
	return []string{
		r.TokenSymbol,
		string(r.TokenAddress),
		string(r.Recipient),
		strconv.Itoa(r.TxCountTotal),
		bigString(r.AmountTotalRaw),
		strconv.Itoa(r.TxCountSnapshot),
		bigString(r.AmountSnapshotRaw),
	}
}

// SortOutflowRows orders by token, then descending total amount, then
// recipient, so the biggest recipients lead each token section.
func SortOutflowRows(rows []OutflowRow) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.TokenSymbol != b.TokenSymbol {
			return a.TokenSymbol < b.TokenSymbol
		}
		if cmp := bigCmp(a.AmountTotalRaw, b.AmountTotalRaw); cmp != 0 {
			return cmp > 0
		}
		return a.Recipient < b.Recipient
	})
}

func bigString(n *big.Int) string {
	if n == nil {
		return "0"
	}
	return n.String()
}

func bigCmp(a, b *big.Int) int {
	if a == nil {
		a = new(big.Int)
	}
	if b == nil {
		b = new(big.Int)
	}
	return a.Cmp(b)
}
