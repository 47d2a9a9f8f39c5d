// Package blockcache persists block-number → timestamp lookups in a local
// sqlite database so repeated audit runs against the same chain skip
// refetching headers.
package blockcache

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/hedisam/ethrecon/internal/eth"
)

type Cache struct {
	db        *sql.DB
	chainName string
}

// Open opens (and if needed creates) the cache database at path. Entries are
// keyed by chain name so one cache file can serve multiple deployments.
func Open(path, chainName string) (*Cache, error) {
	if path == "" {
		return nil, errors.New("cache db path is required")
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS block_timestamps (
		chain TEXT NOT NULL,
		block_number INTEGER NOT NULL,
		timestamp INTEGER NOT NULL,
		PRIMARY KEY (chain, block_number)
	)`)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create cache schema: %w", err)
	}
	return &Cache{db: db, chainName: chainName}, nil
}

func (c *Cache) Close() error {
	return c.db.Close()
}

func (c *Cache) timestamp(ctx context.Context, blockNumber uint64) (int64, bool, error) {
	var ts int64
	err := c.db.QueryRowContext(ctx,
		`SELECT timestamp FROM block_timestamps WHERE chain = ? AND block_number = ?`,
		c.chainName, blockNumber,
	).Scan(&ts)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query cached timestamp: %w", err)
	}
	return ts, true, nil
}

func (c *Cache) put(ctx context.Context, blockNumber uint64, ts int64) error {
	_, err := c.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO block_timestamps (chain, block_number, timestamp) VALUES (?, ?, ?)`,
		c.chainName, blockNumber, ts,
	)
	if err != nil {
		return fmt.Errorf("store cached timestamp: %w", err)
	}
	return nil
}

// HeaderFetcher is the RPC dependency used on cache misses.
type HeaderFetcher interface {
	BlockByNumber(ctx context.Context, number uint64) (*eth.BlockHeader, error)
}

// Resolver answers block-timestamp lookups from the cache, falling through to
// eth_getBlockByNumber on a miss. A nil Cache disables persistence.
type Resolver struct {
	cache  *Cache
	client HeaderFetcher
}

func NewResolver(cache *Cache, client HeaderFetcher) *Resolver {
	return &Resolver{cache: cache, client: client}
}

func (r *Resolver) Timestamp(ctx context.Context, blockNumber uint64) (int64, error) {
	if r.cache != nil {
		ts, ok, err := r.cache.timestamp(ctx, blockNumber)
		if err != nil {
			return 0, err
		}
		if ok {
			return ts, nil
		}
	}

	header, err := r.client.BlockByNumber(ctx, blockNumber)
	if err != nil {
		return 0, err
	}
	if r.cache != nil {
		err = r.cache.put(ctx, blockNumber, header.Timestamp)
		if err != nil {
			return 0, err
		}
	}
	return header.Timestamp, nil
}
