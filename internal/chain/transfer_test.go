package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/ethrecon/internal/eth"
)

const (
	testToken   = Address("0x289ba1701c2f088cf0faf8b3705246331cb8a839")
	testSafe    = Address("0xc34b3753c164fbc3fc066fc1a46b3eee8adb33e6")
	testGateway = Address("0x8a8053c21696f27ed305a03bd1efc5d068d91d0e")
)

func addrTopic(t *testing.T, addr Address) string {
	t.Helper()
	topic, err := TopicForAddress(addr)
	require.NoError(t, err)
	return topic
}

func TestTransfersInReceipt(t *testing.T) {
	other := Address("0x0c7ca5da3b10fa345c5713c5a14479a3af65ac37")

	receipt := &eth.Receipt{
		Status: 1,
		Logs: []eth.Log{
			{
				// Matching transfer.
				Address: string(testToken),
				Topics:  []string{TransferTopic0, addrTopic(t, testSafe), addrTopic(t, testGateway)},
				Data:    "0x64", // 100
				TxHash:  "0xAAA1",
			},
			{
				// Different contract, same event shape: skipped.
				Address: string(other),
				Topics:  []string{TransferTopic0, addrTopic(t, testSafe), addrTopic(t, testGateway)},
				Data:    "0x65",
			},
			{
				// Same contract, different topic0: skipped.
				Address: string(testToken),
				Topics:  []string{WinningTicketRedeemedTopic0, addrTopic(t, testSafe), addrTopic(t, testGateway)},
				Data:    "0x66",
			},
			{
				// Second matching transfer, different counterparty.
				Address: string(testToken),
				Topics:  []string{TransferTopic0, addrTopic(t, testGateway), addrTopic(t, other)},
				Data:    "0xc8", // 200
			},
		},
	}

	transfers, err := TransfersInReceipt(receipt, testToken)
	require.NoError(t, err)
	require.Len(t, transfers, 2)

	assert.Equal(t, testSafe, transfers[0].From)
	assert.Equal(t, testGateway, transfers[0].To)
	assert.Equal(t, big.NewInt(100), transfers[0].Value)
	assert.Equal(t, "0xaaa1", transfers[0].TxHash)

	assert.Equal(t, testGateway, transfers[1].From)
	assert.Equal(t, other, transfers[1].To)
	assert.Equal(t, big.NewInt(200), transfers[1].Value)
}

func TestTransfersInReceiptNilReceipt(t *testing.T) {
	transfers, err := TransfersInReceipt(nil, testToken)
	require.NoError(t, err)
	assert.Empty(t, transfers)
}

func TestSumTransfers(t *testing.T) {
	other := Address("0x0c7ca5da3b10fa345c5713c5a14479a3af65ac37")
	transfers := []TokenTransfer{
		{From: testSafe, To: testGateway, Value: big.NewInt(100)},
		{From: testSafe, To: testGateway, Value: big.NewInt(50)},
		{From: testSafe, To: other, Value: big.NewInt(7)},
		{From: other, To: testGateway, Value: big.NewInt(3)},
	}

	tests := map[string]struct {
		from     Address
		to       Address
		expected int64
	}{
		"exact pair":            {from: testSafe, to: testGateway, expected: 150},
		"wildcard from":         {from: "", to: testGateway, expected: 153},
		"wildcard to":           {from: testSafe, to: "", expected: 157},
		"wildcard both":         {from: "", to: "", expected: 160},
		"no matching transfers": {from: testGateway, to: testSafe, expected: 0},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got := SumTransfers(transfers, test.from, test.to)
			assert.Equal(t, big.NewInt(test.expected), got)
		})
	}
}
