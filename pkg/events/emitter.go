// Package events handles event emission for entity lifecycle changes
package events

import (
	"context"
	"encoding/json"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/kafka"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// SchemaVersion is the current event schema version
const SchemaVersion = "1.0"

// Emitter publishes entity lifecycle events after resolution
type Emitter struct {
	producer *kafka.Producer
	logger   ectologger.Logger
}

// NewEmitter creates a new event emitter
func NewEmitter(producer *kafka.Producer, logger ectologger.Logger) *Emitter {
	return &Emitter{
		producer: producer,
		logger:   logger,
	}
}

// EmitResolution emits the event that corresponds to a resolution outcome:
// entity.created for new or provisional entities, entity.matched for
// records bound to an existing entity, entity.review_queued when the
// record was parked for a human.
func (e *Emitter) EmitResolution(ctx context.Context, result *models.MatchResult, source models.SourceContext) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitResolution")
	defer span.End()

	event := &kafka.EntityEvent{
		Confidence:        result.Confidence,
		Method:            string(result.Method),
		MatchedOn:         result.MatchedOn,
		SourceType:        string(source.SourceType),
		RecordFingerprint: source.Fingerprint,
	}

	switch {
	case result.NeedsReview && result.Entity == nil:
		event.EventType = string(EventTypeReviewQueued)
	case result.CreatedNew:
		event.EventType = string(EventTypeEntityCreated)
	default:
		event.EventType = string(EventTypeEntityMatched)
	}

	if result.Entity != nil {
		event.EntityID = result.Entity.ID
		event.EntityKind = string(result.Entity.Kind)
		if data, err := json.Marshal(result.Entity); err == nil {
			event.Data = data
		}
	}

	if err := e.producer.PublishEntityEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Errorf("Failed to emit %s event", event.EventType)
		return err
	}

	return nil
}

// EmitRelationshipObserved emits an event when a relationship between two
// entities is recorded or re-confirmed.
func (e *Emitter) EmitRelationshipObserved(ctx context.Context, rel *models.EntityRelationship) error {
	ctx, span := tracing.StartSpan(ctx, "events.Emitter.EmitRelationshipObserved")
	defer span.End()

	event := &kafka.RelationshipEvent{
		EventType:        string(EventTypeRelationshipObserved),
		RelationshipID:   rel.ID,
		RelationshipType: rel.RelationshipType,
		SourceEntityID:   rel.SourceEntityID,
		TargetEntityID:   rel.TargetEntityID,
		Confidence:       rel.Confidence,
	}

	if err := e.producer.PublishRelationshipEvent(ctx, event); err != nil {
		e.logger.WithContext(ctx).WithError(err).Error("Failed to emit relationship.observed event")
		return err
	}

	return nil
}
