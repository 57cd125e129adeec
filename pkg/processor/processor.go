// Package processor consumes scraped records from Kafka and runs each one
// through entity resolution. It is the write path of the service; the HTTP
// routes are the read and review path.
package processor

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/events"
	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/metrics"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Resolver resolves one scraped record against the entity store.
type Resolver interface {
	Resolve(ctx context.Context, record map[string]any, source models.SourceContext) (*models.MatchResult, error)
}

// Emitter publishes entity lifecycle events.
type Emitter interface {
	EmitResolution(ctx context.Context, result *models.MatchResult, source models.SourceContext) error
}

// Processor handles incoming scraped record messages
type Processor struct {
	logger        ectologger.Logger
	resolver      Resolver
	emitter       Emitter
	relationships *RelationshipBuilder
}

// NewProcessor creates a new message processor. emitter may be nil when
// event emission is disabled; relationships may be nil to skip edge
// extraction.
func NewProcessor(logger ectologger.Logger, resolver Resolver, emitter Emitter, relationships *RelationshipBuilder) *Processor {
	return &Processor{
		logger:        logger,
		resolver:      resolver,
		emitter:       emitter,
		relationships: relationships,
	}
}

// ProcessMessage handles an incoming Kafka message. A resolver error is
// returned so the consumer withholds the commit and the record is retried;
// an emit failure is logged but not returned, because the resolution has
// already been persisted.
func (p *Processor) ProcessMessage(ctx context.Context, msg *kafka.IncomingMessage) error {
	ctx, span := tracing.StartSpan(ctx, "processor.ProcessMessage")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"key":    msg.Key,
		"topic":  msg.Topic,
		"offset": msg.Offset,
	})

	record := msg.ScrapedRecord
	if record == nil {
		log.Warn("Message has no parsed scraped record, skipping")
		return nil
	}

	source := record.Source
	log = log.WithFields(map[string]any{
		"source_type": source.SourceType,
		"fingerprint": source.Fingerprint,
	})
	metrics.RecordsConsumed.WithLabelValues(string(source.SourceType)).Inc()

	start := time.Now()
	result, err := p.resolver.Resolve(ctx, record.Record, source)
	metrics.ResolutionDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RecordsFailed.Inc()
		log.WithError(err).Error("Failed to resolve scraped record")
		return err
	}

	outcome := metrics.OutcomeOf(result.CreatedNew, result.NeedsReview, result.Entity != nil)
	metrics.ResolutionsTotal.WithLabelValues(string(result.Method), outcome).Inc()

	fields := map[string]any{
		"method":     result.Method,
		"confidence": result.Confidence,
		"outcome":    outcome,
	}
	if result.Entity != nil {
		fields["entity_id"] = result.Entity.ID
	}
	log.WithFields(fields).Info("Resolved scraped record")

	if p.relationships != nil && result.Entity != nil {
		p.relationships.ObserveRelated(ctx, result.Entity, record.Record, source)
	}

	if p.emitter != nil {
		if err := p.emitter.EmitResolution(ctx, result, source); err != nil {
			log.WithError(err).Warnf("Failed to emit resolution event")
		} else {
			metrics.EventsEmitted.WithLabelValues(eventTypeFor(result)).Inc()
		}
	}

	return nil
}

func eventTypeFor(result *models.MatchResult) string {
	switch {
	case result.NeedsReview && result.Entity == nil:
		return string(events.EventTypeReviewQueued)
	case result.CreatedNew:
		return string(events.EventTypeEntityCreated)
	default:
		return string(events.EventTypeEntityMatched)
	}
}
