package scan

import (
	"context"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/ethrecon/internal/eth"
)

type logsFetcherFunc func(ctx context.Context, query eth.LogQuery) ([]eth.Log, error)

func (f logsFetcherFunc) Logs(ctx context.Context, query eth.LogQuery) ([]eth.Log, error) {
	return f(ctx, query)
}

type blockRange struct {
	from, to uint64
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}

func TestScanPaginates(t *testing.T) {
	var ranges []blockRange
	fetcher := logsFetcherFunc(func(ctx context.Context, query eth.LogQuery) ([]eth.Log, error) {
		ranges = append(ranges, blockRange{from: query.FromBlock, to: query.ToBlock})
		return []eth.Log{{BlockNumber: query.FromBlock}}, nil
	})

	scanner := New(newTestLogger(), fetcher, 10)
	logs, err := Collect(context.Background(), scanner.Scan(context.Background(), eth.LogQuery{FromBlock: 0, ToBlock: 99}, 40))
	require.NoError(t, err)

	assert.Equal(t, []blockRange{{0, 39}, {40, 79}, {80, 99}}, ranges)
	require.Len(t, logs, 3)
	assert.Equal(t, uint64(40), logs[1].BlockNumber)
}

func TestScanHalvesOversizedChunks(t *testing.T) {
	var ranges []blockRange
	fetcher := logsFetcherFunc(func(ctx context.Context, query eth.LogQuery) ([]eth.Log, error) {
		ranges = append(ranges, blockRange{from: query.FromBlock, to: query.ToBlock})
		if query.ToBlock-query.FromBlock+1 > 25 {
			return nil, errors.New("query returned more than 10000 results")
		}
		return []eth.Log{{BlockNumber: query.FromBlock}}, nil
	})

	scanner := New(newTestLogger(), fetcher, 10)
	logs, err := Collect(context.Background(), scanner.Scan(context.Background(), eth.LogQuery{FromBlock: 0, ToBlock: 99}, 100))
	require.NoError(t, err)

	// 100 → 50 → 25, retrying the same sub-range after each halving.
	assert.Equal(t, []blockRange{
		{0, 99},
		{0, 49},
		{0, 24}, {25, 49}, {50, 74}, {75, 99},
	}, ranges)
	assert.Len(t, logs, 4)
}

func TestScanStopsAtChunkFloor(t *testing.T) {
	fetcher := logsFetcherFunc(func(ctx context.Context, query eth.LogQuery) ([]eth.Log, error) {
		return nil, errors.New("response size exceeded")
	})

	scanner := New(newTestLogger(), fetcher, 10)
	_, err := Collect(context.Background(), scanner.Scan(context.Background(), eth.LogQuery{FromBlock: 0, ToBlock: 99}, 40))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrChunkFloor)
}

func TestScanPropagatesOtherErrors(t *testing.T) {
	fetcher := logsFetcherFunc(func(ctx context.Context, query eth.LogQuery) ([]eth.Log, error) {
		return nil, errors.New("connection reset")
	})

	scanner := New(newTestLogger(), fetcher, 10)
	_, err := Collect(context.Background(), scanner.Scan(context.Background(), eth.LogQuery{FromBlock: 0, ToBlock: 99}, 40))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrChunkFloor)
	assert.ErrorContains(t, err, "connection reset")
}

func TestScanCancelledContext(t *testing.T) {
	fetcher := logsFetcherFunc(func(ctx context.Context, query eth.LogQuery) ([]eth.Log, error) {
		return []eth.Log{{BlockNumber: query.FromBlock}}, nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	scanner := New(newTestLogger(), fetcher, 10)
	_, err := Collect(ctx, scanner.Scan(ctx, eth.LogQuery{FromBlock: 0, ToBlock: 1_000_000}, 10))
	require.ErrorIs(t, err, context.Canceled)
}

func TestIsOversizedResponseErr(t *testing.T) {
	tests := map[string]struct {
		err      error
		oversize bool
	}{
		"more than results": {err: errors.New("query returned more than 10000 results"), oversize: true},
		"block range limit": {err: errors.New("Block range limit exceeded"), oversize: true},
		"response size":     {err: errors.New("response size should not greater than 150MB"), oversize: true},
		"unrelated":         {err: errors.New("connection refused"), oversize: false},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.oversize, isOversizedResponseErr(test.err))
		})
	}
}
