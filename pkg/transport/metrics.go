package transport

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ConnectionState tracks each Connection's session state: 0=absent,
	// 1=connecting, 2=ready, 3=closed. Labelled by connection id so a
	// pool's members are individually observable.
	ConnectionState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "esi_connection_state",
		Help: "Current session state of an ESI connection (0=absent,1=connecting,2=ready,3=closed)",
	}, []string{"connection"})

	// PendingQueueDepth tracks the number of requests queued waiting for
	// a session to become ready.
	PendingQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "esi_pending_queue_depth",
		Help: "Number of requests queued waiting for a connection to become ready",
	}, []string{"connection"})

	// ReconnectAttemptsTotal counts dial attempts by outcome.
	ReconnectAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_reconnect_attempts_total",
		Help: "Total number of session dial attempts by outcome",
	}, []string{"connection", "outcome"})

	// QueueRejectionsTotal counts requests rejected from the pending
	// queue for exceeding max_pending_time.
	QueueRejectionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "esi_queue_rejections_total",
		Help: "Total number of pending requests rejected for waiting too long for a connection",
	}, []string{"connection"})
)
