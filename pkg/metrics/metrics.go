// Package metrics provides a centralized Prometheus metrics registry for
// esiclient. All metrics are defined in their respective packages
// (transport, esiclient, pagination) to maintain modularity and avoid
// circular dependencies.
//
// This package provides documentation and reference for all available
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry is the default Prometheus registry used by esiclient. All
// metrics are automatically registered via promauto in their respective
// packages.
var Registry = prometheus.DefaultRegisterer

// Metrics Documentation
//
// Transport Metrics (pkg/transport):
//   - esi_connection_state{connection} (Gauge): 0=absent,1=connecting,2=ready,3=closed
//   - esi_pending_queue_depth{connection} (Gauge): Requests queued awaiting a session
//   - esi_reconnect_attempts_total{connection,outcome} (Counter): Dial attempts by outcome
//   - esi_queue_rejections_total{connection} (Counter): Queued requests rejected for age
//
// Request Metrics (pkg/esiclient):
//   - esi_requests_total{outcome} (Counter): Logical requests by terminal outcome
//   - esi_request_duration_seconds{outcome} (Histogram): Wall time across all retries
//   - esi_retries_total{status} (Counter): Retry attempts by upstream status
//   - esi_retry_backoff_seconds{source} (Histogram): Chosen delay by source (low/high/retry-after)
//   - esi_retry_exhausted_total{status} (Counter): Requests that exhausted max_retries or max_time
//
// Pagination Metrics (pkg/pagination):
//   - esi_page_splits_total (Counter): Merges that failed the common-headers "expires" check
//   - esi_anti_split_delay_seconds (Histogram): Duration of triggered anti-split delays
//   - esi_pages_fetched_total{kind} (Counter): Page/chunk fetches by kind (get/post_chunk)
//
// Example Prometheus Queries:
//
//	# Reconnect success rate
//	sum(rate(esi_reconnect_attempts_total{outcome="success"}[5m])) /
//	sum(rate(esi_reconnect_attempts_total[5m]))
//
//	# P95 logical request latency
//	histogram_quantile(0.95, rate(esi_request_duration_seconds_bucket[5m]))
//
//	# Page split rate
//	rate(esi_page_splits_total[1h])
