// Package metrics exposes Prometheus instrumentation for the resolution
// pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ResolutionsTotal counts resolution attempts by method and outcome.
	// Outcomes are matched, created, review_queued.
	ResolutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briar",
		Name:      "resolutions_total",
		Help:      "Resolution attempts by match method and outcome",
	}, []string{"method", "outcome"})

	// ResolutionDuration observes end-to-end resolution latency.
	ResolutionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "briar",
		Name:      "resolution_duration_seconds",
		Help:      "End-to-end resolution latency",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	})

	// RecordsConsumed counts scraped records consumed by source type.
	RecordsConsumed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briar",
		Name:      "records_consumed_total",
		Help:      "Scraped records consumed by source type",
	}, []string{"source_type"})

	// RecordsFailed counts records whose resolution returned an error.
	RecordsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "briar",
		Name:      "records_failed_total",
		Help:      "Scraped records that failed resolution",
	})

	// EventsEmitted counts lifecycle events published to Kafka.
	EventsEmitted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "briar",
		Name:      "events_emitted_total",
		Help:      "Entity lifecycle events published",
	}, []string{"event_type"})
)

// Outcome labels for ResolutionsTotal.
const (
	OutcomeMatched      = "matched"
	OutcomeCreated      = "created"
	OutcomeReviewQueued = "review_queued"
)

// OutcomeOf maps a resolution result to its counter label.
func OutcomeOf(createdNew, needsReview, hasEntity bool) string {
	switch {
	case needsReview && !hasEntity:
		return OutcomeReviewQueued
	case createdNew:
		return OutcomeCreated
	default:
		return OutcomeMatched
	}
}
