package scan

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/pipeline/chans"

	"github.com/hedisam/ethrecon/internal/eth"
	"github.com/hedisam/ethrecon/internal/metrics"
)

// ErrChunkFloor is returned when a provider keeps rejecting the range even at
// the minimum chunk size; halving further would never converge.
var ErrChunkFloor = errors.New("log range rejected at minimum chunk size")

// LogsFetcher is the single eth_getLogs dependency of the scanner.
type LogsFetcher interface {
	Logs(ctx context.Context, query eth.LogQuery) ([]eth.Log, error)
}

// Scanner paginates eth_getLogs over large block ranges. When a provider
// rejects a chunk as oversized it halves the chunk size and retries the same
// sub-range, down to a configured floor.
type Scanner struct {
	logger     *logrus.Logger
	client     LogsFetcher
	chunkFloor uint64
}

func New(logger *logrus.Logger, client LogsFetcher, chunkFloor uint64) *Scanner {
	if chunkFloor == 0 {
		chunkFloor = 1
	}
	return &Scanner{
		logger:     logger,
		client:     client,
		chunkFloor: chunkFloor,
	}
}

// Page is one scanned chunk of logs, or a terminal error. After a page with a
// non-nil Err the channel is closed.
type Page struct {
	Logs []eth.Log
	Err  error
}

// Scan streams pages of logs for query's block range, in block order. The
// query's Address/Topics are applied to every chunk.
func (s *Scanner) Scan(ctx context.Context, query eth.LogQuery, initialChunk uint64) <-chan Page {
	out := make(chan Page)

	go func() {
		defer close(out)

		chunk := initialChunk
		if chunk < s.chunkFloor {
			chunk = s.chunkFloor
		}

		cur := query.FromBlock
		end := query.ToBlock
		var chunks, count int

		for cur <= end {
			hi := cur + chunk - 1
			if hi > end || hi < cur { // guard overflow
				hi = end
			}

			chunkQuery := query
			chunkQuery.FromBlock = cur
			chunkQuery.ToBlock = hi

			logs, err := s.client.Logs(ctx, chunkQuery)
			if err != nil {
				if isOversizedResponseErr(err) {
					if chunk <= s.chunkFloor {
						chans.SendOrDone(ctx, out, Page{Err: fmt.Errorf("%w (chunk=%d): %v", ErrChunkFloor, chunk, err)})
						return
					}
					chunk = max(s.chunkFloor, chunk/2)
					metrics.LogChunkHalvings.Inc()
					s.logger.WithFields(logrus.Fields{
						"from_block": cur,
						"to_block":   hi,
						"new_chunk":  chunk,
					}).Warn("Provider rejected log range as oversized, halving chunk size")
					continue
				}
				chans.SendOrDone(ctx, out, Page{Err: fmt.Errorf("get logs %d-%d: %w", cur, hi, err)})
				return
			}

			count += len(logs)
			if !chans.SendOrDone(ctx, out, Page{Logs: logs}) {
				return
			}
			metrics.LogChunksScanned.Inc()

			chunks++
			if chunks%20 == 0 {
				s.logger.WithFields(logrus.Fields{
					"from_block": cur,
					"to_block":   hi,
					"log_count":  count,
				}).Info("Scanning logs...")
			}

			cur = hi + 1
		}
	}()

	return out
}

// Collect drains a scan into a single slice.
func Collect(ctx context.Context, pages <-chan Page) ([]eth.Log, error) {
	var logs []eth.Log
	for page := range chans.ReceiveOrDoneSeq(ctx, pages) {
		if page.Err != nil {
			return nil, page.Err
		}
		logs = append(logs, page.Logs...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

// isOversizedResponseErr pattern-matches the textual shapes providers use to
// reject a getLogs range that is too large.
func isOversizedResponseErr(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "more than") ||
		strings.Contains(msg, "limit") ||
		strings.Contains(msg, "response size")
}
