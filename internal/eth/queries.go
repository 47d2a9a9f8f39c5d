package eth

import (
	"context"
	"encoding/json"
	"fmt"
)

// LogQuery is an eth_getLogs filter over a closed block range. Nil topic
// entries act as positional wildcards.
type LogQuery struct {
	FromBlock uint64
	ToBlock   uint64
	Address   string
	Topics    []any
}

func (q LogQuery) filter() map[string]any {
	filter := map[string]any{
		"fromBlock": FormatHexUint(q.FromBlock),
		"toBlock":   FormatHexUint(q.ToBlock),
	}
	if q.Address != "" {
		filter["address"] = q.Address
	}
	if len(q.Topics) > 0 {
		filter["topics"] = q.Topics
	}
	return filter
}

// BlockNumber returns the node's latest block height.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	raw, err := c.Call(ctx, methodBlockNumber)
	if err != nil {
		return 0, err
	}
	var hexNum string
	err = json.Unmarshal(raw, &hexNum)
	if err != nil {
		return 0, fmt.Errorf("decode block number result: %w", err)
	}
	return ParseHexUint(hexNum)
}

// BlockByNumber fetches a block header (no transaction bodies).
func (c *Client) BlockByNumber(ctx context.Context, number uint64) (*BlockHeader, error) {
	raw, err := c.Call(ctx, methodGetBlockByNumber, FormatHexUint(number), false)
	if err != nil {
		return nil, err
	}
	var header *BlockHeader
	err = json.Unmarshal(raw, &header)
	if err != nil {
		return nil, fmt.Errorf("decode block header result: %w", err)
	}
	if header == nil {
		return nil, fmt.Errorf("block %d: %w", number, ErrNotFound)
	}
	return header, nil
}

// TransactionByHash fetches a raw transaction; a null node result maps to
// ErrNotFound.
func (c *Client) TransactionByHash(ctx context.Context, txHash string) (*Transaction, error) {
	raw, err := c.Call(ctx, methodGetTransactionByHash, txHash)
	if err != nil {
		return nil, err
	}
	var tx *Transaction
	err = json.Unmarshal(raw, &tx)
	if err != nil {
		return nil, fmt.Errorf("decode transaction result: %w", err)
	}
	if tx == nil {
		return nil, fmt.Errorf("tx %s: %w", txHash, ErrNotFound)
	}
	return tx, nil
}

// TransactionReceipt fetches a transaction receipt; a null node result maps to
// ErrNotFound.
func (c *Client) TransactionReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	raw, err := c.Call(ctx, methodGetTransactionReceipt, txHash)
	if err != nil {
		return nil, err
	}
	var receipt *Receipt
	err = json.Unmarshal(raw, &receipt)
	if err != nil {
		return nil, fmt.Errorf("decode receipt result: %w", err)
	}
	if receipt == nil {
		return nil, fmt.Errorf("receipt %s: %w", txHash, ErrNotFound)
	}
	return receipt, nil
}

// Logs runs a single eth_getLogs query.
func (c *Client) Logs(ctx context.Context, query LogQuery) ([]Log, error) {
	raw, err := c.Call(ctx, methodGetLogs, query.filter())
	if err != nil {
		return nil, err
	}
	var logs []Log
	err = json.Unmarshal(raw, &logs)
	if err != nil {
		return nil, fmt.Errorf("decode logs result: %w", err)
	}
	return logs, nil
}

// CallContract performs a read-only eth_call against the latest block and
// returns the raw hex return data.
func (c *Client) CallContract(ctx context.Context, to string, data string) (string, error) {
	raw, err := c.Call(ctx, methodCall, map[string]any{"to": to, "data": data}, "latest")
	if err != nil {
		return "", err
	}
	var out string
	err = json.Unmarshal(raw, &out)
	if err != nil {
		return "", fmt.Errorf("decode eth_call result: %w", err)
	}
	return out, nil
}

// TxWithReceipt pairs a transaction with its receipt.
type TxWithReceipt struct {
	Tx      *Transaction
	Receipt *Receipt
}

// TransactionWithReceiptBatch coalesces tx + receipt lookups for many hashes
// into one JSON-RPC batch call, preserving input order. Missing transactions
// or receipts fail the whole batch with ErrNotFound.
func (c *Client) TransactionWithReceiptBatch(ctx context.Context, txHashes []string) ([]TxWithReceipt, error) {
	if len(txHashes) == 0 {
		return nil, nil
	}

	reqs := make([]BatchRequest, 0, len(txHashes)*2)
	for _, h := range txHashes {
		reqs = append(reqs,
			BatchRequest{Method: methodGetTransactionByHash, Params: []any{h}},
			BatchRequest{Method: methodGetTransactionReceipt, Params: []any{h}},
		)
	}

	results, err := c.CallBatch(ctx, reqs)
	if err != nil {
		return nil, err
	}

	out := make([]TxWithReceipt, 0, len(txHashes))
	for i, h := range txHashes {
		var tx *Transaction
		err = json.Unmarshal(results[i*2], &tx)
		if err != nil {
			return nil, fmt.Errorf("decode batched transaction %s: %w", h, err)
		}
		if tx == nil {
			return nil, fmt.Errorf("tx %s: %w", h, ErrNotFound)
		}
		var receipt *Receipt
		err = json.Unmarshal(results[i*2+1], &receipt)
		if err != nil {
			return nil, fmt.Errorf("decode batched receipt %s: %w", h, err)
		}
		if receipt == nil {
			return nil, fmt.Errorf("receipt %s: %w", h, ErrNotFound)
		}
		out = append(out, TxWithReceipt{Tx: tx, Receipt: receipt})
	}

	return out, nil
}
