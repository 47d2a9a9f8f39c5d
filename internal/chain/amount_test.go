package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize(t *testing.T) {
	tests := map[string]struct {
		raw      string
		decimals int32
		expected string
	}{
		"one and a half eth": {
			raw:      "1500000000000000000",
			decimals: 18,
			expected: "1.5",
		},
		"six decimal usdc": {
			raw:      "2500000",
			decimals: 6,
			expected: "2.5",
		},
		"single wei stays exact": {
			raw:      "1000000000000000001",
			decimals: 18,
			expected: "1.000000000000000001",
		},
		"zero": {
			raw:      "0",
			decimals: 18,
			expected: "0",
		},
		"larger than uint64": {
			raw:      "123456789012345678901234567890",
			decimals: 18,
			expected: "123456789012.34567890123456789",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			raw, ok := new(big.Int).SetString(test.raw, 10)
			require.True(t, ok)
			assert.Equal(t, test.expected, Normalize(raw, test.decimals).String())
		})
	}
}

func TestNormalizeNil(t *testing.T) {
	assert.True(t, Normalize(nil, 18).IsZero())
}

func TestToRaw(t *testing.T) {
	tests := map[string]struct {
		amount      string
		decimals    int32
		expected    string
		errContains string
	}{
		"whole eth": {
			amount:   "2",
			decimals: 18,
			expected: "2000000000000000000",
		},
		"fractional usdc": {
			amount:   "10.25",
			decimals: 6,
			expected: "10250000",
		},
		"sub-resolution digits truncate": {
			amount:   "0.0000005",
			decimals: 6,
			expected: "0",
		},
		"not a number": {
			amount:      "ten",
			decimals:    18,
			errContains: "bad decimal amount",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			got, err := ToRaw(test.amount, test.decimals)
			if test.errContains != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, test.errContains)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expected, got.String())
		})
	}
}

func TestNormalizeToRawRoundTrip(t *testing.T) {
	raw, ok := new(big.Int).SetString("987654321987654321987654321", 10)
	require.True(t, ok)

	back, err := ToRaw(Normalize(raw, 18).String(), 18)
	require.NoError(t, err)
	assert.Zero(t, raw.Cmp(back))
}
