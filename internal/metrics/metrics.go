// Package metrics holds the Prometheus collectors exported on the metrics
// server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranking_generations_total",
		Help: "Ranking generation runs by result.",
	}, []string{"result"})

	CountriesRanked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ranking_countries_ranked_total",
		Help: "Countries that received a final score.",
	})

	CountriesSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ranking_countries_skipped_total",
		Help: "Eligible countries skipped because their computation failed.",
	})

	GenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ranking_generation_duration_seconds",
		Help:    "Wall time of a ranking generation run.",
		Buckets: prometheus.DefBuckets,
	})

	Normalizations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "weights_normalizations_total",
		Help: "Weight normalizations by scope kind and whether any weight changed.",
	}, []string{"scope", "changed"})

	LimitFailOpen = promauto.NewCounter(prometheus.CounterOpts{
		Name: "weights_limit_failopen_total",
		Help: "Weight limit checks that allowed a write after an internal error.",
	})

	GuardBlocks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranking_guard_blocks_total",
		Help: "Mutations rejected because a ranking exists for an affected year.",
	}, []string{"op"})

	GuardForced = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ranking_guard_forced_total",
		Help: "Forced mutations that bypassed the ranking guard.",
	}, []string{"op"})
)
