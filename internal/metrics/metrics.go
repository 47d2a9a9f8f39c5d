// Package metrics holds the process-wide Prometheus registry and counters.
// A custom registry is used instead of the default one to avoid recording the
// default http handler metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()
var auto = promauto.With(registry)

func Registry() *prometheus.Registry {
	return registry
}

var RPCCalls = auto.NewCounter(prometheus.CounterOpts{
	Name: "ethrecon_rpc_calls_total",
	Help: "Number of JSON-RPC HTTP requests attempted (including retries)",
})

var RPCRetries = auto.NewCounter(prometheus.CounterOpts{
	Name: "ethrecon_rpc_retries_total",
	Help: "Number of JSON-RPC attempts that failed and were retried",
})

var RPCBatchCalls = auto.NewCounter(prometheus.CounterOpts{
	Name: "ethrecon_rpc_batch_calls_total",
	Help: "Number of successful JSON-RPC batch round trips",
})

var LogChunksScanned = auto.NewCounter(prometheus.CounterOpts{
	Name: "ethrecon_log_chunks_scanned_total",
	Help: "Number of eth_getLogs block-range chunks fetched",
})

var LogChunkHalvings = auto.NewCounter(prometheus.CounterOpts{
	Name: "ethrecon_log_chunk_halvings_total",
	Help: "Number of times an oversized getLogs range forced a chunk-size halving",
})

var VerifiedFlows = auto.NewCounter(prometheus.CounterOpts{
	Name: "ethrecon_verified_flows_total",
	Help: "Number of expected flows verified against chain data",
})
