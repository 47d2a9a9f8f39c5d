package blockcache

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/ethrecon/internal/eth"
)

type headerFetcherMock struct {
	calls     int
	timestamp int64
}

func (m *headerFetcherMock) BlockByNumber(ctx context.Context, number uint64) (*eth.BlockHeader, error) {
	m.calls++
	return &eth.BlockHeader{Number: number, Timestamp: m.timestamp}, nil
}

func TestResolverCachesTimestamps(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.db")

	cache, err := Open(path, "arbitrum-one")
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	fetcher := &headerFetcherMock{timestamp: 1_757_000_000}
	resolver := NewResolver(cache, fetcher)

	ts, err := resolver.Timestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1_757_000_000), ts)
	assert.Equal(t, 1, fetcher.calls)

	// Second lookup is served from the cache without touching the node.
	ts, err = resolver.Timestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, int64(1_757_000_000), ts)
	assert.Equal(t, 1, fetcher.calls)

	// A different block is a miss.
	_, err = resolver.Timestamp(context.Background(), 43)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestCachePersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.db")

	cache, err := Open(path, "arbitrum-one")
	require.NoError(t, err)
	fetcher := &headerFetcherMock{timestamp: 1_757_000_000}
	_, err = NewResolver(cache, fetcher).Timestamp(context.Background(), 42)
	require.NoError(t, err)
	require.NoError(t, cache.Close())

	cache, err = Open(path, "arbitrum-one")
	require.NoError(t, err)
	defer func() { _ = cache.Close() }()

	_, err = NewResolver(cache, fetcher).Timestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 1, fetcher.calls)
}

func TestCacheEntriesAreChainScoped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blocks.db")

	mainnet, err := Open(path, "arbitrum-one")
	require.NoError(t, err)
	defer func() { _ = mainnet.Close() }()
	testnet, err := Open(path, "arbitrum-sepolia")
	require.NoError(t, err)
	defer func() { _ = testnet.Close() }()

	fetcher := &headerFetcherMock{timestamp: 1_757_000_000}
	_, err = NewResolver(mainnet, fetcher).Timestamp(context.Background(), 42)
	require.NoError(t, err)

	// Same block number under a different chain name misses.
	_, err = NewResolver(testnet, fetcher).Timestamp(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, 2, fetcher.calls)
}

func TestNilCacheDisablesPersistence(t *testing.T) {
	fetcher := &headerFetcherMock{timestamp: 7}
	resolver := NewResolver(nil, fetcher)

	for range 3 {
		ts, err := resolver.Timestamp(context.Background(), 1)
		require.NoError(t, err)
		assert.Equal(t, int64(7), ts)
	}
	assert.Equal(t, 3, fetcher.calls)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open("", "arbitrum-one")
	require.Error(t, err)
}
