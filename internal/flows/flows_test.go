package flows

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAmountCSV(t *testing.T) {
	path := writeFile(t, "returns.csv", `tx_hash,amount_eth,comment
0xAAA,1.5,first
0xbbb,0.25,second

,0.1,blank hash is skipped
`)

	got, err := LoadAmountCSV(path, "amount_eth")
	require.NoError(t, err)
	assert.Equal(t, []ExpectedTx{
		{TxHash: "0xaaa", Amount: "1.5"},
		{TxHash: "0xbbb", Amount: "0.25"},
	}, got)
}

func TestLoadAmountCSVMissingColumn(t *testing.T) {
	path := writeFile(t, "returns.csv", "tx_hash,amount_eth\n0xaaa,1\n")

	_, err := LoadAmountCSV(path, "amount_lpt")
	require.Error(t, err)
	assert.ErrorContains(t, err, `missing "amount_lpt" column`)
}

func TestLoadTxHashesCSV(t *testing.T) {
	path := writeFile(t, "transfers.csv", `tx_hash
0xaaa
0xBBB
0xAAA
0xccc
`)

	got, err := LoadTxHashesCSV(path)
	require.NoError(t, err)
	// Case-insensitive dedupe, first-seen order preserved.
	assert.Equal(t, []string{"0xaaa", "0xbbb", "0xccc"}, got)
}

func TestLoadDatedTxCSV(t *testing.T) {
	path := writeFile(t, "ledger.csv", `tx_hash,iso_utc
0xaaa,2025-08-29T10:00:00Z
0xbbb,2025-08-30T10:00:00Z
0xccc,2025-08-29T23:59:59Z
`)

	got, err := LoadDatedTxCSV(path, "2025-08-29")
	require.NoError(t, err)
	assert.Equal(t, []DatedTx{
		{TxHash: "0xaaa", ISOUTC: "2025-08-29T10:00:00Z"},
		{TxHash: "0xccc", ISOUTC: "2025-08-29T23:59:59Z"},
	}, got)

	all, err := LoadDatedTxCSV(path, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestLoadDisbursementsJSON(t *testing.T) {
	path := writeFile(t, "disbursements.json", `{
		"generated_at": "2025-11-01T00:00:00Z",
		"transactions": [
			{"transaction_hash": "0xaaa", "recipient": "0x1111111111111111111111111111111111111111", "amount_eth": "0.25"}
		]
	}`)

	got, err := LoadDisbursementsJSON(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "0xaaa", got[0].TxHash)
	assert.Equal(t, "0.25", got[0].AmountETH)
}

func TestLoadTicketRunsJSON(t *testing.T) {
	path := writeFile(t, "runs.json", `[
		{"name": "nov7_run_eth", "sender": "0x8a8053c21696f27ed305a03bd1efc5d068d91d0e", "tx_hashes": ["0xaaa", "0xbbb"]}
	]`)

	got, err := LoadTicketRunsJSON(path)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "nov7_run_eth", got[0].Name)
	assert.Len(t, got[0].TxHashes, 2)
}

func TestLoadTicketRunsJSONRejectsUnnamedRun(t *testing.T) {
	path := writeFile(t, "runs.json", `[{"tx_hashes": ["0xaaa"]}]`)

	_, err := LoadTicketRunsJSON(path)
	require.Error(t, err)
	assert.ErrorContains(t, err, "name and a sender")
}

func TestLoadTotalsJSON(t *testing.T) {
	path := writeFile(t, "totals.json", `{
		"total_eth": "10.5",
		"phase3_transfer_eth": "2",
		"meta": {"latest_block": 123}
	}`)

	got, err := LoadTotalsJSON(path)
	require.NoError(t, err)
	// Nested metadata objects are dropped, only decimal strings survive.
	assert.Equal(t, map[string]string{
		"total_eth":           "10.5",
		"phase3_transfer_eth": "2",
	}, got)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := LoadAmountCSV(filepath.Join(t.TempDir(), "nope.csv"), "amount_eth")
	require.Error(t, err)

	_, err = LoadTotalsJSON(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
