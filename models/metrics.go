package models

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	modeLabel   = "mode"
	resultLabel = "result"
)

// Query modes.
const (
	QueryModeExact        = "exact"
	QueryModeConservative = "conservative"
	QueryModeAny          = "any"
)

var (
	spaceCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_space_count",
		Help: "The number of spaces.",
	})

	spaceCountTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_space_count_total",
		Help: "The total number of spaces.",
	})

	entityCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spatial_entity_count",
		Help: "The number of entities across all spaces.",
	})

	droppedInsertsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spatial_dropped_inserts_total",
		Help: "The total number of entities that were not indexed because they are out of their space bounds.",
	})

	missedRemovalsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spatial_missed_removals_total",
		Help: "The total number of removals that did not find the entity by its hitbox.",
	}, []string{resultLabel})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_query_duration_seconds",
		Help:    "The duration of spatial queries.",
		Buckets: prometheus.ExponentialBuckets(0.000001, 4, 10),
	}, []string{modeLabel})

	queryResults = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "spatial_query_results",
		Help:    "The number of objects returned by spatial queries.",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	}, []string{modeLabel})
)

func instrumentAddSpace() {
	spaceCount.Inc()
	spaceCountTotal.Inc()
}

func instrumentRemoveSpace(entities int) {
	spaceCount.Dec()
	entityCount.Sub(float64(entities))
}

func instrumentEntityGauge(delta int) {
	entityCount.Add(float64(delta))
}

func instrumentDroppedInsert() {
	droppedInsertsTotal.Inc()
}

// instrumentMissedRemoval counts a removal that did not find the entity by
// its hitbox. result is either "recovered" or "missed".
func instrumentMissedRemoval(result string) {
	missedRemovalsTotal.
		With(prometheus.Labels{resultLabel: result}).
		Inc()
}

func instrumentQuery(mode string, start time.Time, results int) {
	queryDuration.
		With(prometheus.Labels{modeLabel: mode}).
		Observe(time.Since(start).Seconds())

	queryResults.
		With(prometheus.Labels{modeLabel: mode}).
		Observe(float64(results))
}
