package resolution

import (
	"context"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// reviewedConfidence is assigned when a human confirms a match. Just shy
// of a definitive-key hit, well above the auto-accept threshold.
const reviewedConfidence = 0.99

// AcceptReview binds the reviewed record to its candidate entity. Called
// after a human confirms a queued match; the entry itself is marked
// resolved by the caller.
func (r *Resolver) AcceptReview(ctx context.Context, entry *models.ReviewQueueEntry) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.AcceptReview")
	defer span.End()

	entity, err := r.store.GetByID(ctx, entry.CandidateEntityID)
	if err != nil {
		return nil, err
	}

	source := models.SourceContext{SourceType: models.SourceManualEntry}
	if err := r.bindEntity(ctx, entity, entry.Features.Data, source, reviewedConfidence); err != nil {
		return nil, err
	}

	score := models.MatchScore{
		Confidence:  reviewedConfidence,
		Signals:     entry.Signals.Data,
		Method:      models.MethodMultiSignal,
		Explanation: "human reviewer confirmed match",
	}
	r.logDecision(ctx, entry.Features.Data, source, entity.ID, score, false, false)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": entity.ID,
		"review_id": entry.ID,
	}).Info("Review accepted; record bound to candidate entity")

	return entity, nil
}

// RejectReview creates a new entity from the reviewed record's features.
// A rejected match means the record describes somebody else.
func (r *Resolver) RejectReview(ctx context.Context, entry *models.ReviewQueueEntry) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Resolver.RejectReview")
	defer span.End()

	source := models.SourceContext{SourceType: models.SourceManualEntry}
	entity, err := r.createEntity(ctx, entry.Features.Data, source, reviewedConfidence, false)
	if err != nil {
		return nil, err
	}

	score := models.MatchScore{
		Confidence:  entry.Confidence,
		Signals:     entry.Signals.Data,
		Method:      models.MethodMultiSignal,
		Explanation: "human reviewer rejected match; new entity created",
	}
	r.logDecision(ctx, entry.Features.Data, source, entity.ID, score, false, true)

	r.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": entity.ID,
		"review_id": entry.ID,
	}).Info("Review rejected; new entity created from record")

	return entity, nil
}
