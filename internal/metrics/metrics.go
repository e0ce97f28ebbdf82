// Package metrics holds the Prometheus collectors of grant-ranker.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "grant_ranker"

// Ranking metrics.
var (
	RankingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rankings_total",
			Help:      "Total number of ranking batches by mode",
		},
		[]string{"mode"}, // "organization_aware" / "generic_fallback"
	)

	RankingDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ranking_duration_seconds",
			Help:      "Ranking batch duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"mode"},
	)

	OpportunitiesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "opportunities_total",
			Help:      "Ranked opportunities by outcome",
		},
		[]string{"outcome"}, // "scored" / "filtered"
	)

	FilteredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "filtered_total",
			Help:      "Opportunities dropped by exclusion rule",
		},
		[]string{"rule"},
	)
)

// Semantic similarity metrics.
var (
	SemanticRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "semantic_requests_total",
			Help:      "Total number of semantic similarity backend requests",
		},
		[]string{"provider", "model", "status"},
	)

	SemanticRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "semantic_request_duration_seconds",
			Help:      "Semantic similarity backend request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	SemanticTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "semantic_tokens_total",
			Help:      "Total tokens consumed by the semantic similarity backend",
		},
		[]string{"provider", "model", "type"},
	)

	SemanticDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "semantic_dropped_total",
			Help:      "Opportunities scored without the semantic factor",
		},
		[]string{"reason"}, // "timeout" / "error"
	)
)

// ProfileCacheTotal counts profile cache lookups.
var ProfileCacheTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "profile_cache_total",
		Help:      "Profile cache lookups by result",
	},
	[]string{"result"}, // "hit" / "miss" / "stale" / "error"
)

var registerOnce sync.Once

// Register registers every collector with the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RankingsTotal,
			RankingDuration,
			OpportunitiesTotal,
			FilteredTotal,
			SemanticRequestsTotal,
			SemanticRequestDuration,
			SemanticTokensTotal,
			SemanticDroppedTotal,
			ProfileCacheTotal,
			httpRequestDuration,
			httpRequestsTotal,
		)
	})
}
