package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Relay metrics
	MessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxd_messages_sent_total",
			Help: "Total messages accepted by Send",
		},
	)

	MirrorWriteFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inboxd_mirror_write_failures_total",
			Help: "Dual-log or dual-index halves that failed independently",
		},
		[]string{"side"}, // "owner_log", "counterpart_log", "owner_index", "counterpart_index"
	)

	SendDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inboxd_send_duration_seconds",
			Help:    "Send operation duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	ConversationsDeleted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxd_conversations_deleted_total",
			Help: "Total one-sided conversation deletions",
		},
	)

	// Broadcaster metrics
	Deliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxd_deliveries_total",
			Help: "Total watcher callback deliveries",
		},
	)

	DroppedDeliveries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inboxd_dropped_deliveries_total",
			Help: "Deliveries dropped because a watcher queue was full",
		},
	)

	ActiveSubscriptions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "inboxd_active_subscriptions",
			Help: "Currently registered conversation watchers",
		},
	)
)
