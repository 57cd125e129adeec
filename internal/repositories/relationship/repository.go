// Package relationship persists the directed entity graph edges. Edges
// are deduplicated by (source, target, type); re-observing an edge raises
// its confidence and appends provenance instead of inserting a duplicate.
package relationship

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

const relationshipColumns = "id, source_entity_id, target_entity_id, relationship_type, confidence, sources, created_at, updated_at"

// Repository handles entity relationship persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new relationship repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Observe records one observation of an edge. Existing edges get their
// confidence raised to the max of old and new and the source appended if
// unseen; new edges are inserted. The read-modify-write runs inside a
// context-bound transaction.
func (r *Repository) Observe(ctx context.Context, req models.CreateRelationshipRequest) (*models.EntityRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.Observe")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":            "Observe",
		"source_entity_id":  req.SourceEntityID,
		"target_entity_id":  req.TargetEntityID,
		"relationship_type": req.RelationshipType,
	})

	ctx, tx, err := r.db.GetTx(ctx, nil)
	if err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to begin transaction")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(relationshipColumns)
	sb.From("entity_relationships")
	sb.Where(
		sb.Equal("source_entity_id", req.SourceEntityID),
		sb.Equal("target_entity_id", req.TargetEntityID),
		sb.Equal("relationship_type", req.RelationshipType),
	)
	query, args := sb.Build()
	query += " FOR UPDATE"

	now := time.Now().UTC()

	var existing models.EntityRelationship
	err = tx.GetContext(ctx, &existing, query, args...)
	switch {
	case err == nil:
		if req.Confidence > existing.Confidence {
			existing.Confidence = req.Confidence
		}
		if !containsSource(existing.Sources.Data, req.Source) {
			existing.Sources.Data = append(existing.Sources.Data, req.Source)
		}
		existing.UpdatedAt = now

		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("entity_relationships")
		ub.Set(
			ub.Assign("confidence", existing.Confidence),
			ub.Assign("sources", existing.Sources),
			ub.Assign("updated_at", now),
		)
		ub.Where(ub.Equal("id", existing.ID))

		updateQuery, updateArgs := ub.Build()
		if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
			log.WithError(err).Error("Failed to update relationship")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to update relationship")
		}

	case errors.Is(err, sql.ErrNoRows):
		existing = models.EntityRelationship{
			ID:               uuid.New().String(),
			SourceEntityID:   req.SourceEntityID,
			TargetEntityID:   req.TargetEntityID,
			RelationshipType: req.RelationshipType,
			Confidence:       req.Confidence,
			Sources:          database.JSONB[[]string]{Data: []string{req.Source}},
			CreatedAt:        now,
			UpdatedAt:        now,
		}

		ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
		ib.InsertInto("entity_relationships")
		ib.Cols("id", "source_entity_id", "target_entity_id", "relationship_type", "confidence", "sources", "created_at", "updated_at")
		ib.Values(existing.ID, existing.SourceEntityID, existing.TargetEntityID, existing.RelationshipType,
			existing.Confidence, existing.Sources, now, now)

		insertQuery, insertArgs := ib.Build()
		if _, err := tx.ExecContext(ctx, insertQuery, insertArgs...); err != nil {
			log.WithError(err).Error("Failed to insert relationship")
			return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to insert relationship")
		}

	default:
		log.WithError(err).Error("Failed to read relationship")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to read relationship")
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to commit relationship")
	}

	return &existing, nil
}

// ListByEntity returns all edges touching an entity in either direction.
func (r *Repository) ListByEntity(ctx context.Context, entityID string) ([]models.EntityRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.ListByEntity")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(relationshipColumns)
	sb.From("entity_relationships")
	sb.Where(sb.Or(
		sb.Equal("source_entity_id", entityID),
		sb.Equal("target_entity_id", entityID),
	))
	sb.OrderBy("updated_at").Desc()

	query, args := sb.Build()
	var relationships []models.EntityRelationship
	if err := r.db.SelectContext(ctx, &relationships, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return relationships, nil
}

// List pages through all edges, ordered by creation time. Used by the
// graph backfill.
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]models.EntityRelationship, error) {
	ctx, span := tracing.StartSpan(ctx, "relationship.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(relationshipColumns)
	sb.From("entity_relationships")
	sb.OrderBy("created_at").Asc()
	sb.Limit(pageSize).Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var relationships []models.EntityRelationship
	if err := r.db.SelectContext(ctx, &relationships, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list relationships")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list relationships")
	}

	return relationships, nil
}

func containsSource(sources []string, source string) bool {
	for _, s := range sources {
		if s == source {
			return true
		}
	}
	return false
}
