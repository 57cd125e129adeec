// Package decisionlog persists the write-once audit trail of resolution
// outcomes. Rows are never mutated; they double as training data for a
// future learned matcher.
package decisionlog

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Repository handles resolution decision persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new decision log repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create appends one decision row.
func (r *Repository) Create(ctx context.Context, decision *models.ResolutionDecision) error {
	ctx, span := tracing.StartSpan(ctx, "decisionlog.Repository.Create")
	defer span.End()

	decision.ID = uuid.New().String()
	decision.CreatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("resolution_decisions")
	sb.Cols("id", "features", "entity_id", "confidence", "signals", "method", "source_type", "auto_accepted", "created_new", "created_at")
	sb.Values(decision.ID, decision.Features, decision.EntityID, decision.Confidence,
		decision.Signals, decision.Method, decision.SourceType, decision.AutoAccepted, decision.CreatedNew, decision.CreatedAt)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create resolution decision")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create resolution decision")
	}

	return nil
}

// ListByEntity returns the decision history for one entity, newest first.
func (r *Repository) ListByEntity(ctx context.Context, entityID string, limit int) ([]models.ResolutionDecision, error) {
	ctx, span := tracing.StartSpan(ctx, "decisionlog.Repository.ListByEntity")
	defer span.End()

	if limit < 1 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "features", "entity_id", "confidence", "signals", "method", "source_type", "auto_accepted", "created_new", "created_at")
	sb.From("resolution_decisions")
	sb.Where(sb.Equal("entity_id", entityID))
	sb.OrderBy("created_at").Desc()
	sb.Limit(limit)

	query, args := sb.Build()
	var decisions []models.ResolutionDecision
	if err := r.db.SelectContext(ctx, &decisions, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list resolution decisions")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list resolution decisions")
	}

	return decisions, nil
}
