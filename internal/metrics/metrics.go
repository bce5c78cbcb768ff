package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campaignledger"

var (
	// ReserveOutcomes counts Reserve calls by result ("ok" or the business error name).
	ReserveOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reserve_outcomes_total",
		Help:      "Reserve attempts by outcome.",
	}, []string{"outcome"})

	ReservationTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reservation_transitions_total",
		Help:      "Reservation status changes by target status.",
	}, []string{"status"})

	SweeperExpired = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_expired_total",
		Help:      "Reservations expired by the sweeper.",
	})

	SweeperFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeper_failures_total",
		Help:      "Reservations the sweeper failed to expire.",
	})

	WalletOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_operations_total",
		Help:      "Wallet ledger operations by kind and outcome.",
	}, []string{"op", "outcome"})

	OptimisticRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "wallet_optimistic_retries_total",
		Help:      "Wallet writes retried after a version conflict.",
	})

	// StalePendingTransactions is the size of the last stale batch seen per type.
	StalePendingTransactions = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "stale_pending_transactions",
		Help:      "Pending wallet transactions older than the deposit timeout.",
	}, []string{"type"})

	OutboxPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "outbox_published_total",
		Help:      "Outbox messages by publish result.",
	}, []string{"result"})
)

// Outcome labels a result for the counters above.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return "error"
}
