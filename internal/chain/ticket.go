package chain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/hedisam/ethrecon/internal/eth"
)

// WinningTicketRedeemedTopic0 is keccak256("WinningTicketRedeemed(address,address,uint256)").
const WinningTicketRedeemedTopic0 = "0x8b87351a208c06e3ceee59d80725fd77a23b4129e1b51ca231fc89b40712649c"

// TicketRedemption is one decoded WinningTicketRedeemed event.
type TicketRedemption struct {
	Sender    Address
	Recipient Address
	AmountWei *big.Int
}

// TicketRedemptionsInReceipt sums the WinningTicketRedeemed amounts emitted by
// the broker contract in a single receipt and returns the per-log rows.
func TicketRedemptionsInReceipt(receipt *eth.Receipt, broker Address) (*big.Int, []TicketRedemption, error) {
	total := new(big.Int)
	if receipt == nil {
		return total, nil, nil
	}

	var rows []TicketRedemption
	for _, log := range receipt.Logs {
		if NormalizeAddress(log.Address) != broker {
			continue
		}
		if len(log.Topics) < 3 || strings.ToLower(log.Topics[0]) != WinningTicketRedeemedTopic0 {
			continue
		}
		sender, err := AddressFromTopic(log.Topics[1])
		if err != nil {
			return nil, nil, fmt.Errorf("redemption log %s/%d sender-topic: %w", log.TxHash, log.LogIndex, err)
		}
		recipient, err := AddressFromTopic(log.Topics[2])
		if err != nil {
			return nil, nil, fmt.Errorf("redemption log %s/%d recipient-topic: %w", log.TxHash, log.LogIndex, err)
		}
		amount, err := eth.ParseHexBig(log.Data)
		if err != nil {
			return nil, nil, fmt.Errorf("redemption log %s/%d data: %w", log.TxHash, log.LogIndex, ErrDecode)
		}
		total.Add(total, amount)
		rows = append(rows, TicketRedemption{Sender: sender, Recipient: recipient, AmountWei: amount})
	}

	return total, rows, nil
}
