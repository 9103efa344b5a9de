package esiclient

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	esiRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_requests_total",
		Help: "Total number of logical requests (pre-retry) by outcome",
	}, []string{"outcome"})

	esiRequestDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esi_request_duration_seconds",
		Help:    "Wall time of a logical request, across all retries",
		Buckets: prometheus.DefBuckets,
	}, []string{"outcome"})

	esiRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_retries_total",
		Help: "Total number of retry attempts by upstream status",
	}, []string{"status"})

	esiRetryBackoffSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "esi_retry_backoff_seconds",
		Help:    "Backoff duration chosen between retry attempts",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 15, 30, 60},
	}, []string{"source"})

	esiRetryExhaustedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_retry_exhausted_total",
		Help: "Total number of requests that exhausted max_retries or max_time",
	}, []string{"status"})
)
