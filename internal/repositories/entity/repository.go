// Package entity persists canonical entities and serves the lookups the
// candidate finder and resolver depend on.
package entity

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
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

const entityColumns = "id, kind, canonical_name, display_name, address, confidence, verification_source, needs_verification, attributes, created_at, updated_at"

// definitiveKeys are the attribute keys allowed in exact-key lookups.
// Keeping the whitelist here prevents arbitrary jsonb key injection.
var definitiveKeys = map[string]bool{
	"document_number": true,
	"tax_id":          true,
	"parcel_id":       true,
}

// addressKeys are the attribute keys searched by address lookups.
var addressKeys = []string{"principal_address", "mailing_address"}

// Repository handles entity persistence and candidate lookups
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

// NewRepository creates a new entity repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// Create inserts a new entity. The caller provides canonical/display
// names and the attribute bag; id and timestamps are assigned here.
func (r *Repository) Create(ctx context.Context, entity *models.Entity) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Create")
	defer span.End()

	log := r.logger.WithContext(ctx).WithFields(map[string]any{
		"method":         "Create",
		"canonical_name": entity.CanonicalName,
	})

	now := time.Now().UTC()
	entity.ID = uuid.New().String()
	entity.CreatedAt = now
	entity.UpdatedAt = now
	if entity.Attributes.Data == nil {
		entity.Attributes.Data = map[string]any{}
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("entities")
	sb.Cols("id", "kind", "canonical_name", "display_name", "address", "confidence",
		"verification_source", "needs_verification", "attributes", "created_at", "updated_at")
	sb.Values(entity.ID, entity.Kind, entity.CanonicalName, entity.DisplayName, entity.Address,
		entity.Confidence, entity.VerificationSource, entity.NeedsVerification, entity.Attributes, now, now)

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		log.WithError(err).Error("Failed to create entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create entity")
	}

	log.WithFields(map[string]any{"entity_id": entity.ID}).Debug("Created entity")
	return entity, nil
}

// GetByID fetches one entity. Returns a 404 error when absent.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns)
	sb.From("entities")
	sb.Where(sb.Equal("id", id))

	query, args := sb.Build()
	var entity models.Entity
	if err := r.db.GetContext(ctx, &entity, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "entity %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get entity")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to get entity")
	}

	return &entity, nil
}

// Update persists changed confidence, verification state and attribute
// bag. Names and kind are immutable after creation.
func (r *Repository) Update(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.Update")
	defer span.End()

	entity.UpdatedAt = time.Now().UTC()

	sb := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	sb.Update("entities")
	sb.Set(
		sb.Assign("confidence", entity.Confidence),
		sb.Assign("verification_source", entity.VerificationSource),
		sb.Assign("needs_verification", entity.NeedsVerification),
		sb.Assign("address", entity.Address),
		sb.Assign("attributes", entity.Attributes),
		sb.Assign("updated_at", entity.UpdatedAt),
	)
	sb.Where(sb.Equal("id", entity.ID))

	query, args := sb.Build()
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to update entity")
		return httperror.NewHTTPError(http.StatusInternalServerError, "failed to update entity")
	}

	return nil
}

// FindByAttribute looks up an entity by exact match on a definitive
// attribute key (document_number, tax_id, parcel_id). Returns nil, nil
// when nothing matches.
func (r *Repository) FindByAttribute(ctx context.Context, key, value string) (*models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.FindByAttribute")
	defer span.End()

	if !definitiveKeys[key] {
		return nil, httperror.NewHTTPErrorf(http.StatusBadRequest, "attribute %q is not a definitive key", key)
	}

	query := fmt.Sprintf(`SELECT %s FROM entities WHERE attributes->>'%s' = $1 LIMIT 1`, entityColumns, key)

	var entity models.Entity
	if err := r.db.GetContext(ctx, &entity, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		r.logger.WithContext(ctx).WithError(err).Errorf("Failed to find entity by %s", key)
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to find entity by %s", key)
	}

	return &entity, nil
}

// SearchByName finds entities whose canonical name is trigram-similar to
// the given normalized name, ordered by descending similarity. Relies on
// the pg_trgm extension.
func (r *Repository) SearchByName(ctx context.Context, normalizedName string, minSimilarity float64, limit int) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.SearchByName")
	defer span.End()

	query := fmt.Sprintf(`
		SELECT %s
		FROM entities
		WHERE similarity(canonical_name, $1) > $2
		ORDER BY similarity(canonical_name, $1) DESC
		LIMIT $3`, entityColumns)

	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, query, normalizedName, minSimilarity, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search entities by name")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search entities by name")
	}

	return entities, nil
}

// SearchByAddress finds entities whose primary address or any
// address-bearing attribute contains the given normalized address.
func (r *Repository) SearchByAddress(ctx context.Context, normalizedAddress string, limit int) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.SearchByAddress")
	defer span.End()

	conditions := "address ILIKE $1"
	for _, key := range addressKeys {
		conditions += fmt.Sprintf(" OR attributes->>'%s' ILIKE $1", key)
	}

	query := fmt.Sprintf(`SELECT %s FROM entities WHERE %s LIMIT $2`, entityColumns, conditions)

	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, query, "%"+normalizedAddress+"%", limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search entities by address")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search entities by address")
	}

	return entities, nil
}

// SearchByPhone finds entities with an exactly matching normalized phone.
func (r *Repository) SearchByPhone(ctx context.Context, normalizedPhone string, limit int) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.SearchByPhone")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM entities WHERE attributes->>'phone' = $1 LIMIT $2`, entityColumns)

	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, query, normalizedPhone, limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search entities by phone")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search entities by phone")
	}

	return entities, nil
}

// SearchByOwner finds entities whose stored owner attribute contains the
// given normalized owner name.
func (r *Repository) SearchByOwner(ctx context.Context, normalizedOwner string, limit int) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.SearchByOwner")
	defer span.End()

	query := fmt.Sprintf(`SELECT %s FROM entities WHERE attributes->>'owner' ILIKE $1 LIMIT $2`, entityColumns)

	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, query, "%"+normalizedOwner+"%", limit); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to search entities by owner")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to search entities by owner")
	}

	return entities, nil
}

// List returns a page of entities ordered by creation time.
func (r *Repository) List(ctx context.Context, page, pageSize int) ([]models.Entity, int, error) {
	ctx, span := tracing.StartSpan(ctx, "entity.Repository.List")
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM entities"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count entities")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to count entities")
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(entityColumns)
	sb.From("entities")
	sb.OrderBy("created_at").Desc()
	sb.Limit(pageSize)
	sb.Offset((page - 1) * pageSize)

	query, args := sb.Build()
	var entities []models.Entity
	if err := r.db.SelectContext(ctx, &entities, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list entities")
		return nil, 0, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list entities")
	}

	return entities, total, nil
}
