package engine

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Process metrics, ambient-stack carry-over from the teacher's own
// promauto.NewCounterVec/NewHistogramVec idiom
// (datastore/postgres/gc.go), even though spec.md itself never mentions
// observability.
var (
	extractCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asgen",
			Subsystem: "engine",
			Name:      "extract_total",
			Help:      "Total number of packages run through the extractor, by outcome.",
		},
		[]string{"outcome"},
	)
	extractDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "asgen",
			Subsystem: "engine",
			Name:      "extract_duration_seconds",
			Help:      "Duration of a single package's extraction.",
		},
		[]string{"suite"},
	)
	cruftRemovedCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "asgen",
			Subsystem: "engine",
			Name:      "cruft_removed_total",
			Help:      "Total number of stale entries removed by a cleanup run, by store.",
		},
		[]string{"store"},
	)
)

func observeExtract(suite string, start time.Time, err error) {
	extractDuration.WithLabelValues(suite).Observe(time.Since(start).Seconds())
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	extractCounter.WithLabelValues(outcome).Inc()
}
