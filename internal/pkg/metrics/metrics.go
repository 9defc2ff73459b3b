// Package metrics holds the Prometheus collectors of the balance engine.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	Recomputes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "balance_engine",
		Name:      "recomputes_total",
		Help:      "Aggregate recomputations by outcome (changed, unchanged).",
	}, []string{"outcome"})

	RecomputeDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "balance_engine",
		Name:      "recompute_duration_seconds",
		Help:      "Time spent recomputing one account aggregate.",
		Buckets:   prometheus.ExponentialBuckets(0.00005, 2, 14),
	})

	Notifications = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "balance_engine",
		Name:      "notifications_total",
		Help:      "Balance changed notifications published.",
	})

	DroppedNotifications = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "balance_engine",
		Name:      "notifications_dropped_total",
		Help:      "Notifications dropped because a subscriber was not keeping up.",
	})

	PersistWrites = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "balance_engine",
		Name:      "persist_writes_total",
		Help:      "Ledger writes to durable storage by result (ok, error).",
	}, []string{"result"})

	UnresolvedTokens = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "balance_engine",
		Name:      "unresolved_tokens_total",
		Help:      "Balances whose token metadata could not be resolved during recompute.",
	})

	LedgerAccounts = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "balance_engine",
		Name:      "ledger_accounts",
		Help:      "Accounts currently held in the ledger.",
	})

	WebhookDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "balance_engine",
		Name:      "webhook_deliveries_total",
		Help:      "Webhook deliveries by result (ok, error).",
	}, []string{"result"})
)

var registerOnce sync.Once

// MustRegisterMetrics registers every collector with the default registry once.
func MustRegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Recomputes,
			RecomputeDuration,
			Notifications,
			DroppedNotifications,
			PersistWrites,
			UnresolvedTokens,
			LedgerAccounts,
			WebhookDeliveries,
		)
	})
}
