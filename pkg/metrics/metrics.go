// Package metrics provides the centralized Prometheus metrics registry for
// the document processing client. All metrics are defined in their respective
// packages (transport, retry, cache, processor) to maintain modularity and
// avoid circular dependencies.
//
// This package provides documentation and reference for all available metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry used by the client.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler returns an HTTP handler that exposes all registered metrics in
// Prometheus text format. Mount it on /metrics when embedding the client in
// a long-running process.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Request Metrics (pkg/transport):
//   - forge_requests_total{status} (Counter): Submissions by HTTP status code
//   - forge_request_duration_seconds (Histogram): Submission round-trip duration
//   - forge_errors_total{class} (Counter): Failures by class (network, client, server, decode)
//
// Retry Metrics (pkg/retry):
//   - forge_retries_total (Counter): Retry attempts after transient failures
//   - forge_retry_backoff_seconds (Histogram): Backoff wait duration before a retry
//   - forge_retry_exhausted_total (Counter): Calls that exhausted the retry budget
//
// Cache Metrics (pkg/cache):
//   - forge_cache_hits_total (Counter): Outcome cache hits
//   - forge_cache_misses_total (Counter): Outcome cache misses
//   - forge_cache_errors_total{operation} (Counter): Cache operation errors
//
// Batch Metrics (pkg/processor):
//   - forge_batch_items_total{state} (Counter): Finished work items by outcome state
//   - forge_batch_in_flight (Gauge): Work items currently being processed
//   - forge_batch_duration_seconds (Histogram): Whole-batch duration
//   - forge_batch_size (Histogram): Number of documents per batch
//
// Rate Limit Metrics (pkg/ratelimit):
//   - forge_rate_limit_wait_seconds (Histogram): Time spent waiting for a send slot
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(forge_cache_hits_total[5m])) /
//   (sum(rate(forge_cache_hits_total[5m])) + sum(rate(forge_cache_misses_total[5m])))
//
//   # Failure Rate by Class
//   rate(forge_errors_total[5m])
//
//   # P95 Submission Latency
//   histogram_quantile(0.95, rate(forge_request_duration_seconds_bucket[5m]))
//
//   # Retry Exhaustion Rate
//   rate(forge_retry_exhausted_total[5m]) / rate(forge_requests_total[5m])
