// Package observability holds the Prometheus metrics for the tracker.
// Metrics are registered on the default registry via promauto and exposed
// at /metrics when enabled in the config.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Counters ───────────────────────────────────────────────────────────────

var (
	// Interactions counts interaction attempts by outcome reason
	// (ok, cooldown, daily_limit, child_not_found, unknown_action).
	Interactions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ecotree_interactions_total",
		Help: "Interaction attempts by outcome reason.",
	}, []string{"reason"})

	// Adjustments counts manual balance adjustments.
	Adjustments = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecotree_adjustments_total",
		Help: "Manual balance adjustments recorded.",
	})

	// Rollovers counts completed monthly rollovers (snapshot + reset).
	Rollovers = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecotree_rollovers_total",
		Help: "Completed monthly rollovers.",
	})

	// StoreReadErrors counts document reads that fell back to the empty
	// value because the underlying file was missing or corrupt.
	StoreReadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ecotree_store_read_errors_total",
		Help: "Document reads that failed soft and returned empty data.",
	})
)
