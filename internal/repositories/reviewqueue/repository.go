// Package reviewqueue persists pending human match decisions.
package reviewqueue

import (
	"context"
	"database/sql"
	"errors"
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

const reviewColumns = "id, features, candidate_entity_id, confidence, signals, source_type, status, reviewed_by, notes, created_at, updated_at"

// Repository handles review queue persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new review queue repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create enqueues a pending review.
func (r *Repository) Create(ctx context.Context, entry *models.ReviewQueueEntry) error {
	ctx, span := tracing.StartSpan(ctx, "reviewqueue.Repository.Create")
	defer span.End()

	now := time.Now().UTC()
	entry.ID = uuid.New().String()
	entry.Status = models.ReviewPending
	entry.CreatedAt = now
	entry.UpdatedAt = now

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("review_queue")
	sb.Cols("id", "features", "candidate_entity_id", "confidence", "signals", "source_type", "status", "created_at", "updated_at")
	sb.Values(entry.ID, entry.Features, entry.CandidateEntityID, entry.Confidence,
		entry.Signals, entry.SourceType, entry.Status, now, now)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create review queue entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to create review queue entry")
	}

	return nil
}

// GetByID fetches one review queue entry.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.ReviewQueueEntry, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewqueue.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reviewColumns)
	sb.From("review_queue")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var entry models.ReviewQueueEntry
	if err := r.db.GetContext(ctx, &entry, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "review queue entry %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get review queue entry")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get review queue entry")
	}

	return &entry, nil
}

// List returns a page of entries filtered by status. An empty status
// returns all entries.
func (r *Repository) List(ctx context.Context, status models.ReviewStatus, page, pageSize int) ([]models.ReviewQueueEntry, int, error) {
	ctx, span := tracing.StartSpan(ctx, "reviewqueue.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	countSb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	countSb.Select("COUNT(*)")
	countSb.From("review_queue")
	if status != "" {
		countSb.Where(countSb.Equal("status", status))
	}

	countQuery, countArgs := countSb.Build()
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, countArgs...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count review queue entries")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count review queue entries")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(reviewColumns)
	sb.From("review_queue")
	if status != "" {
		sb.Where(sb.Equal("status", status))
	}
	sb.OrderBy("created_at").Asc()
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var entries []models.ReviewQueueEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list review queue entries")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list review queue entries")
	}

	return entries, total, nil
}

// SetStatus records the human verdict on a pending entry. Only pending
// entries can transition.
func (r *Repository) SetStatus(ctx context.Context, id string, status models.ReviewStatus, reviewedBy string, notes *string) error {
	ctx, span := tracing.StartSpan(ctx, "reviewqueue.Repository.SetStatus")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("review_queue")
	sb.Set(
		sb.Assign("status", status),
		sb.Assign("reviewed_by", reviewedBy),
		sb.Assign("notes", notes),
		sb.Assign("updated_at", time.Now().UTC()),
	)
	sb.Where(
		sb.Equal("id", id),
		sb.Equal("status", models.ReviewPending),
	)

	query, args := sb.Build()
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update review queue entry")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update review queue entry")
	}

	rows, err := result.RowsAffected()
	if err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusConflict, "review queue entry %s is not pending", id)
	}

	return nil
}
