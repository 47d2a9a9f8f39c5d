package eth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/ethrecon/internal/metrics"
)

const (
	methodBlockNumber           = "eth_blockNumber"
	methodGetBlockByNumber      = "eth_getBlockByNumber"
	methodGetTransactionByHash  = "eth_getTransactionByHash"
	methodGetTransactionReceipt = "eth_getTransactionReceipt"
	methodGetLogs               = "eth_getLogs"
	methodCall                  = "eth_call"
)

var (
	// ErrNotFound is returned when the node replies with a null result for a
	// transaction, receipt, or block lookup.
	ErrNotFound = errors.New("not found on chain")
)

// RPCError is a JSON-RPC level error returned by the node. Its message text is
// preserved verbatim since callers pattern-match provider responses (e.g. the
// log scanner's oversized-range detection).
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

type Client struct {
	logger     *logrus.Logger
	httpClient *http.Client
	nodeAddr   string
	maxElapsed time.Duration
	reqID      atomic.Uint64
}

func New(logger *logrus.Logger, httpClient *http.Client, nodeAddr string, maxRetryElapsed time.Duration) *Client {
	return &Client{
		logger:     logger,
		httpClient: httpClient,
		nodeAddr:   nodeAddr,
		maxElapsed: maxRetryElapsed,
	}
}

// NodeAddr returns the JSON-RPC endpoint this client talks to; report metadata
// records it alongside the computed totals.
func (c *Client) NodeAddr() string {
	return c.nodeAddr
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type rpcResponse struct {
	ID     uint64          `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *RPCError       `json:"error"`
}

// Call issues a single JSON-RPC request. Transport failures and node-side RPC
// errors are both retried with exponential backoff until the retry budget is
// exhausted; the last error is returned with its message intact.
func (c *Client) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	if params == nil {
		params = []any{}
	}
	data, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.reqID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return nil, fmt.Errorf("could not marshal payload: %w", err)
	}

	result, err := doWithRetry(ctx, c, method, data, func(body io.Reader) (json.RawMessage, error) {
		var resp rpcResponse
		err := json.NewDecoder(body).Decode(&resp)
		if err != nil {
			return nil, fmt.Errorf("decode response body: %w", err)
		}
		if resp.Error != nil {
			return nil, resp.Error
		}
		return resp.Result, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rpc call %s failed: %w", method, err)
	}

	return result, nil
}

// BatchRequest is one entry of a JSON-RPC batch call.
type BatchRequest struct {
	Method string
	Params []any
}

// CallBatch sends all requests as a single JSON-RPC batch and returns the
// results in request order, re-associated via explicit request ids. A malformed
// (non-list) response or any per-item error fails the whole batch.
func (c *Client) CallBatch(ctx context.Context, reqs []BatchRequest) ([]json.RawMessage, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	payloads := make([]rpcRequest, 0, len(reqs))
	ids := make([]uint64, 0, len(reqs))
	for _, r := range reqs {
		params := r.Params
		if params == nil {
			params = []any{}
		}
		id := c.reqID.Add(1)
		ids = append(ids, id)
		payloads = append(payloads, rpcRequest{
			JSONRPC: "2.0",
			ID:      id,
			Method:  r.Method,
			Params:  params,
		})
	}
	data, err := json.Marshal(payloads)
	if err != nil {
		return nil, fmt.Errorf("could not marshal batch payload: %w", err)
	}

	results, err := doWithRetry(ctx, c, "batch", data, func(body io.Reader) ([]json.RawMessage, error) {
		raw, err := io.ReadAll(body)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		var items []rpcResponse
		err = json.Unmarshal(raw, &items)
		if err != nil {
			return nil, fmt.Errorf("expected a batch list response: %w", err)
		}
		byID := make(map[uint64]*rpcResponse, len(items))
		for i := range items {
			byID[items[i].ID] = &items[i]
		}
		out := make([]json.RawMessage, 0, len(ids))
		for i, id := range ids {
			item, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("batch response missing id %d (%s)", id, reqs[i].Method)
			}
			if item.Error != nil {
				return nil, fmt.Errorf("batch item %s: %w", reqs[i].Method, item.Error)
			}
			out = append(out, item.Result)
		}
		return out, nil
	})
	if err != nil {
		return nil, fmt.Errorf("rpc batch call failed: %w", err)
	}
	metrics.RPCBatchCalls.Inc()

	return results, nil
}

func doWithRetry[T any](ctx context.Context, c *Client, method string, payload []byte, parse func(io.Reader) (T, error)) (T, error) {
	bk := backoff.WithContext(c.newExponentialBackoffConfig(), ctx)
	return backoff.RetryWithData[T](func() (T, error) {
		var zero T
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.nodeAddr, bytes.NewReader(payload))
		if err != nil {
			return zero, backoff.Permanent(fmt.Errorf("create new http request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Length", strconv.Itoa(len(payload)))

		metrics.RPCCalls.Inc()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return zero, backoff.Permanent(fmt.Errorf("could not make http call: %w", err))
			}
			c.logger.WithField("method", method).WithError(err).Warn("HTTP request failed, retrying...")
			metrics.RPCRetries.Inc()
			return zero, fmt.Errorf("http request failed: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			c.logger.WithFields(logrus.Fields{
				"method":   method,
				"status":   resp.Status,
				"response": string(body),
			}).Warn("Unexpected status from eth node, retrying...")
			metrics.RPCRetries.Inc()
			return zero, fmt.Errorf("received unexpected status: %s", resp.Status)
		}

		out, err := parse(resp.Body)
		if err != nil {
			c.logger.WithField("method", method).WithError(err).Warn("RPC call failed, retrying...")
			metrics.RPCRetries.Inc()
			return zero, err
		}
		return out, nil
	}, bk)
}

func (c *Client) newExponentialBackoffConfig() *backoff.ExponentialBackOff {
	maxElapsed := c.maxElapsed
	if maxElapsed <= 0 {
		maxElapsed = time.Second * 30
	}
	return backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(maxElapsed),
		backoff.WithMaxInterval(time.Second*12),
		backoff.WithInitialInterval(time.Millisecond*250),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.2),
	)
}
