package chain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSafeExecTransaction(t *testing.T) {
	// execTransaction selector, then the to/value words; the trailing
	// parameters are irrelevant and may be truncated after the value word.
	calldata := "0x6a761202" +
		"0000000000000000000000008a8053c21696f27ed305a03bd1efc5d068d91d0e" + // to
		"00000000000000000000000000000000000000000000000014d1120d7b160000" + // 1.5 ETH
		"00000000000000000000000000000000000000000000000000000000000000a0"

	tests := map[string]struct {
		input         string
		expectedTo    Address
		expectedValue string
		errContains   string
	}{
		"full calldata": {
			input:         calldata,
			expectedTo:    "0x8a8053c21696f27ed305a03bd1efc5d068d91d0e",
			expectedValue: "1500000000000000000",
		},
		"uppercase hex is canonicalized": {
			input:         strings.ToUpper(calldata[2:]),
			expectedTo:    "0x8a8053c21696f27ed305a03bd1efc5d068d91d0e",
			expectedValue: "1500000000000000000",
		},
		"exactly selector plus two words": {
			input:         calldata[:2+8+64+64],
			expectedTo:    "0x8a8053c21696f27ed305a03bd1efc5d068d91d0e",
			expectedValue: "1500000000000000000",
		},
		"truncated before the value word": {
			input:       calldata[:2+8+64+32],
			errContains: "calldata too short",
		},
		"bare selector": {
			input:       "0x6a761202",
			errContains: "calldata too short",
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			decoded, err := DecodeSafeExecTransaction(test.input)
			if test.errContains != "" {
				require.Error(t, err)
				assert.ErrorContains(t, err, test.errContains)
				assert.ErrorIs(t, err, ErrDecode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, test.expectedTo, decoded.To)
			assert.Equal(t, test.expectedValue, decoded.ValueWei.String())
		})
	}
}
