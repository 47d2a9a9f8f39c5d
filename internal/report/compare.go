package report

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Mismatch is one reconciliation divergence between a committed expected total
// and its recomputed value.
type Mismatch struct {
	Key      string
	Expected string
	Got      string
}

func (m Mismatch) String() string {
	return fmt.Sprintf("%s: expected %s got %s", m.Key, m.Expected, m.Got)
}

// CompareTotals checks every expected total against the recomputed value with
// exact decimal equality (never approximate) and returns all mismatched keys
// in sorted order. A key missing from the recomputed set is a mismatch.
func CompareTotals(expected, recomputed map[string]string) ([]Mismatch, error) {
	keys := make([]string, 0, len(expected))
	for k := range expected {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var mismatches []Mismatch
	for _, k := range keys {
		want, err := decimal.NewFromString(expected[k])
		if err != nil {
			return nil, fmt.Errorf("expected total %q is not a decimal: %w", k, err)
		}
		gotStr, ok := recomputed[k]
		if !ok {
			mismatches = append(mismatches, Mismatch{Key: k, Expected: expected[k], Got: "<missing>"})
			continue
		}
		got, err := decimal.NewFromString(gotStr)
		if err != nil {
			return nil, fmt.Errorf("recomputed total %q is not a decimal: %w", k, err)
		}
		if !want.Equal(got) {
			mismatches = append(mismatches, Mismatch{Key: k, Expected: expected[k], Got: gotStr})
		}
	}

	return mismatches, nil
}
