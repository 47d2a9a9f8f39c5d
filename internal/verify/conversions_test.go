package verify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/ethrecon/internal/chain"
	"github.com/hedisam/ethrecon/internal/config"
	"github.com/hedisam/ethrecon/internal/eth"
	"github.com/hedisam/ethrecon/internal/flows"
)

func TestClassifyConversions(t *testing.T) {
	cfg := testChain()

	tokenLog := func(token config.Token, from, to chain.Address, data string) eth.Log {
		return eth.Log{
			Address: string(token.Address),
			Topics:  []string{chain.TransferTopic0, mustTopic(from), mustTopic(to)},
			Data:    data,
		}
	}
	// 100 LPT / 1 WETH / 250 USDC in raw hex.
	lptOut := tokenLog(cfg.LPT, cfg.Treasury, cfg.Router, "0x56bc75e2d63100000")
	usdcIn := tokenLog(cfg.USDC, cfg.Router, cfg.Treasury, "0xee6b280")
	wethIn := tokenLog(cfg.WETH, "0x1111111111111111111111111111111111111111", cfg.Router, "0xde0b6b3a7640000")
	wethBurn := tokenLog(cfg.WETH, cfg.Router, chain.ZeroAddress, "0xde0b6b3a7640000")

	tests := map[string]struct {
		logs         []eth.Log
		skipped      bool
		expectedType string
		expectedLPT  string
		expectedUSDC string
		expectedWETH string
	}{
		"lpt to usdc": {
			logs:         []eth.Log{lptOut, usdcIn},
			expectedType: ConversionLPTToUSDC,
			expectedLPT:  "100",
			expectedUSDC: "250",
			expectedWETH: "0",
		},
		"lpt to eth like": {
			logs:         []eth.Log{lptOut, wethIn, wethBurn},
			expectedType: ConversionLPTToETHLike,
			expectedLPT:  "100",
			expectedUSDC: "0",
			expectedWETH: "1",
		},
		"flows without a proceeds pattern": {
			logs:         []eth.Log{usdcIn},
			expectedType: ConversionUnknown,
			expectedLPT:  "0",
			expectedUSDC: "250",
			expectedWETH: "0",
		},
		"no token flows at all": {
			logs:    nil,
			skipped: true,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			client := &fetcherMock{
				TransactionByHashFunc: func(ctx context.Context, txHash string) (*eth.Transaction, error) {
					return &eth.Transaction{
						Hash:  txHash,
						From:  string(cfg.Treasury),
						To:    string(cfg.Router),
						Value: nil,
					}, nil
				},
				TransactionReceiptFunc: func(ctx context.Context, txHash string) (*eth.Receipt, error) {
					receipt := okReceipt()
					receipt.Logs = test.logs
					return receipt, nil
				},
			}

			v := newTestVerifier(client)
			rows, err := v.ClassifyConversions(context.Background(), []flows.DatedTx{
				{TxHash: "0xdead", ISOUTC: "2025-08-29T12:00:00Z"},
			})
			require.NoError(t, err)

			if test.skipped {
				assert.Empty(t, rows)
				return
			}
			require.Len(t, rows, 1)
			row := rows[0]
			assert.Equal(t, test.expectedType, row.ConversionType)
			assert.Equal(t, "2025-08-29T12:00:00Z", row.DateUTC)
			assert.Equal(t, cfg.Router, row.To)
			assert.Equal(t, test.expectedLPT, row.LPTOut.String())
			assert.Equal(t, test.expectedUSDC, row.USDCIn.String())
			assert.Equal(t, test.expectedWETH, row.WETHGrossIn.String())
			assert.Equal(t, "success", row.Status)
		})
	}
}

func TestClassifyConversionsFailedTx(t *testing.T) {
	cfg := testChain()
	client := &fetcherMock{
		TransactionByHashFunc: func(ctx context.Context, txHash string) (*eth.Transaction, error) {
			return &eth.Transaction{To: string(cfg.Router)}, nil
		},
		TransactionReceiptFunc: func(ctx context.Context, txHash string) (*eth.Receipt, error) {
			receipt := okReceipt()
			receipt.Status = 0
			receipt.Logs = []eth.Log{
				{
					Address: string(cfg.LPT.Address),
					Topics:  []string{chain.TransferTopic0, mustTopic(cfg.Treasury), mustTopic(cfg.Router)},
					Data:    "0x56bc75e2d63100000",
				},
			}
			return receipt, nil
		},
	}

	v := newTestVerifier(client)
	rows, err := v.ClassifyConversions(context.Background(), []flows.DatedTx{{TxHash: "0xdead", ISOUTC: "2025-08-29T12:00:00Z"}})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "failed", rows[0].Status)
}
