// Package agentservice maintains the known commercial registered-agent
// service list consulted by the signal scorer.
package agentservice

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/google/uuid"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// cacheTTL bounds staleness of the in-process known-service set. The
// scorer checks this list for every candidate pair, so lookups must not
// hit Postgres per call.
const cacheTTL = 5 * time.Minute

// Repository handles registered agent service persistence and lookups
type Repository struct {
	db     database.DB
	logger ectologger.Logger

	mu       sync.RWMutex
	known    map[string]struct{}
	loadedAt time.Time
}

// NewRepository creates a new agent service repository
func NewRepository(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{
		db:     db,
		logger: logger,
	}
}

// IsKnownAgentService reports whether the normalized agent name is a
// known commercial registered-agent service.
func (r *Repository) IsKnownAgentService(ctx context.Context, normalizedName string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "agentservice.Repository.IsKnownAgentService")
	defer span.End()

	known, err := r.knownSet(ctx)
	if err != nil {
		return false, err
	}

	_, ok := known[normalizedName]
	return ok, nil
}

// knownSet returns the cached normalized-name set, reloading it from
// Postgres when the cache has expired. Published maps are immutable;
// writers swap in a fresh map instead of mutating one a reader may hold.
func (r *Repository) knownSet(ctx context.Context) (map[string]struct{}, error) {
	r.mu.RLock()
	if r.known != nil && time.Since(r.loadedAt) < cacheTTL {
		known := r.known
		r.mu.RUnlock()
		return known, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.known != nil && time.Since(r.loadedAt) < cacheTTL {
		return r.known, nil
	}

	var names []string
	if err := r.db.SelectContext(ctx, &names, "SELECT normalized_name FROM registered_agent_services"); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to load agent services")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to load agent services")
	}

	known := make(map[string]struct{}, len(names))
	for _, name := range names {
		known[name] = struct{}{}
	}
	r.known = known
	r.loadedAt = time.Now()

	return known, nil
}

// Create registers a commercial agent service. The normalized form is
// derived here so callers pass the display name as scraped.
func (r *Repository) Create(ctx context.Context, name string) (*models.RegisteredAgentService, error) {
	ctx, span := tracing.StartSpan(ctx, "agentservice.Repository.Create")
	defer span.End()

	service := models.RegisteredAgentService{
		ID:             uuid.New().String(),
		Name:           name,
		NormalizedName: normalizers.NormalizePersonName(name),
		CreatedAt:      time.Now().UTC(),
	}

	sb := sqlbuilder.PostgreSQL.NewInsertBuilder()
	sb.InsertInto("registered_agent_services")
	sb.Cols("id", "name", "normalized_name", "created_at")
	sb.Values(service.ID, service.Name, service.NormalizedName, service.CreatedAt)

	query, args := sb.Build()
	query += " ON CONFLICT (normalized_name) DO NOTHING"
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create agent service")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to create agent service")
	}

	// New services take effect immediately instead of waiting out the TTL.
	// Copy-on-write: readers hold references to the published map outside
	// the lock, so it must never be mutated in place.
	r.mu.Lock()
	if r.known != nil {
		next := make(map[string]struct{}, len(r.known)+1)
		for name := range r.known {
			next[name] = struct{}{}
		}
		next[service.NormalizedName] = struct{}{}
		r.known = next
	}
	r.mu.Unlock()

	return &service, nil
}

// List returns all known agent services.
func (r *Repository) List(ctx context.Context) ([]models.RegisteredAgentService, error) {
	ctx, span := tracing.StartSpan(ctx, "agentservice.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "normalized_name", "created_at")
	sb.From("registered_agent_services")
	sb.OrderBy("name")

	query, args := sb.Build()
	var services []models.RegisteredAgentService
	if err := r.db.SelectContext(ctx, &services, query, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list agent services")
		return nil, httperror.NewHTTPError(http.StatusInternalServerError, "failed to list agent services")
	}

	return services, nil
}
