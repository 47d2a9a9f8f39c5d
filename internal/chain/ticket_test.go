package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/ethrecon/internal/eth"
)

func TestTicketRedemptionsInReceipt(t *testing.T) {
	broker := Address("0xa8bb618b1520e284046f3dfc448851a1ff26e41b")
	sender := Address("0x8a8053c21696f27ed305a03bd1efc5d068d91d0e")
	recipient := Address("0x0c7ca5da3b10fa345c5713c5a14479a3af65ac37")

	receipt := &eth.Receipt{
		Status: 1,
		Logs: []eth.Log{
			{
				Address: string(broker),
				Topics:  []string{WinningTicketRedeemedTopic0, addrTopic(t, sender), addrTopic(t, recipient)},
				Data:    "0x2386f26fc10000", // 0.01 ETH
			},
			{
				// Transfer event on the broker: skipped.
				Address: string(broker),
				Topics:  []string{TransferTopic0, addrTopic(t, sender), addrTopic(t, recipient)},
				Data:    "0x01",
			},
			{
				// Redemption emitted by a different contract: skipped.
				Address: string(recipient),
				Topics:  []string{WinningTicketRedeemedTopic0, addrTopic(t, sender), addrTopic(t, recipient)},
				Data:    "0x01",
			},
			{
				Address: string(broker),
				Topics:  []string{WinningTicketRedeemedTopic0, addrTopic(t, sender), addrTopic(t, recipient)},
				Data:    "0x470de4df820000", // 0.02 ETH
			},
		},
	}

	total, rows, err := TicketRedemptionsInReceipt(receipt, broker)
	require.NoError(t, err)

	expected, ok := new(big.Int).SetString("30000000000000000", 10)
	require.True(t, ok)
	assert.Equal(t, expected, total)

	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, sender, row.Sender)
		assert.Equal(t, recipient, row.Recipient)
	}
}

func TestTicketRedemptionsInReceiptNoMatches(t *testing.T) {
	broker := Address("0xa8bb618b1520e284046f3dfc448851a1ff26e41b")

	total, rows, err := TicketRedemptionsInReceipt(&eth.Receipt{Status: 1}, broker)
	require.NoError(t, err)
	assert.Zero(t, total.Sign())
	assert.Empty(t, rows)

	total, rows, err = TicketRedemptionsInReceipt(nil, broker)
	require.NoError(t, err)
	assert.Zero(t, total.Sign())
	assert.Empty(t, rows)
}
