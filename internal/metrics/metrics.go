package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP
	RequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"route", "method", "status"},
	)

	// Reconciliation
	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_notifications_total",
			Help: "Settlement notifications by final outcome",
		},
		[]string{"outcome"}, // applied|already_processed|ignored|failed|rejected
	)
	VerificationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_verification_failures_total",
			Help: "Rejected notifications by verification failure reason",
		},
		[]string{"reason"},
	)
	ReconciliationFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "settlement_failures_total",
			Help: "Acknowledged but unapplied notifications needing manual follow-up",
		},
		[]string{"reason"},
	)
	DonatedAmount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "donations_amount_total",
			Help: "Whole currency units credited per team",
		},
		[]string{"team"},
	)
	ApplyDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "settlement_apply_duration_seconds",
			Help:    "Duration of the atomic settlement transaction",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Totals feed
	FeedSubscribers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "totals_feed_subscribers",
			Help: "Open totals feed subscriptions",
		},
	)

	// Worker queue
	WorkerQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "worker_queue_depth",
			Help: "Current worker queue depth",
		},
	)
	WorkerDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "worker_dropped_total",
			Help: "Best-effort jobs dropped because the queue was full",
		},
	)

	initOnce sync.Once
)

// Handler serves /metrics.
var Handler = promhttp.Handler

// Init registers the collectors with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			RequestsTotal,
			NotificationsTotal,
			VerificationFailures,
			ReconciliationFailures,
			DonatedAmount,
			ApplyDuration,
			FeedSubscribers,
			WorkerQueueDepth,
			WorkerDropped,
		)
	})
}
