// Package resolution implements the tiered entity resolution flow:
// definitive-key match, candidate finding, multi-signal scoring, optional
// LLM arbitration, and the accept / review / create decision.
package resolution

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// EntityStore is the persistence surface the resolver depends on. Store
// errors are fatal to a resolution; everything else degrades gracefully.
type EntityStore interface {
	Create(ctx context.Context, entity *models.Entity) (*models.Entity, error)
	GetByID(ctx context.Context, id string) (*models.Entity, error)
	Update(ctx context.Context, entity *models.Entity) error
	FindByAttribute(ctx context.Context, key, value string) (*models.Entity, error)
	SearchByName(ctx context.Context, normalizedName string, minSimilarity float64, limit int) ([]models.Entity, error)
	SearchByAddress(ctx context.Context, normalizedAddress string, limit int) ([]models.Entity, error)
	SearchByPhone(ctx context.Context, normalizedPhone string, limit int) ([]models.Entity, error)
	SearchByOwner(ctx context.Context, normalizedOwner string, limit int) ([]models.Entity, error)
}

// FinderConfig bounds candidate queries.
type FinderConfig struct {
	// TrigramFloor is the minimum name similarity considered a candidate.
	TrigramFloor float64
	// Limit caps each individual lookup, bounding query latency.
	Limit int
}

// Finder unions independent per-feature lookups into a deduplicated
// candidate list.
type Finder struct {
	store  EntityStore
	config FinderConfig
	logger ectologger.Logger
}

// NewFinder creates a Finder.
func NewFinder(store EntityStore, config FinderConfig, logger ectologger.Logger) *Finder {
	if config.TrigramFloor <= 0 {
		config.TrigramFloor = 0.3
	}
	if config.Limit <= 0 {
		config.Limit = 20
	}
	return &Finder{
		store:  store,
		config: config,
		logger: logger,
	}
}

// FindCandidates issues one lookup per available identifying feature and
// unions the results by entity id. A record with no identifying feature
// yields no candidates; the caller creates a new entity rather than
// guessing.
func (f *Finder) FindCandidates(ctx context.Context, features models.Features) ([]models.Entity, error) {
	ctx, span := tracing.StartSpan(ctx, "resolution.Finder.FindCandidates")
	defer span.End()

	seen := make(map[string]bool)
	var candidates []models.Entity

	add := func(entities []models.Entity) {
		for _, e := range entities {
			if !seen[e.ID] {
				seen[e.ID] = true
				candidates = append(candidates, e)
			}
		}
	}

	if name := normalizers.NormalizeName(features.OfficialName); name != "" {
		entities, err := f.store.SearchByName(ctx, name, f.config.TrigramFloor, f.config.Limit)
		if err != nil {
			return nil, err
		}
		add(entities)
	}

	if addr := normalizers.NormalizeAddress(features.BestAddress()); addr != "" {
		entities, err := f.store.SearchByAddress(ctx, addr, f.config.Limit)
		if err != nil {
			return nil, err
		}
		add(entities)
	}

	if features.Phone != "" {
		entities, err := f.store.SearchByPhone(ctx, normalizers.NormalizePhone(features.Phone), f.config.Limit)
		if err != nil {
			return nil, err
		}
		add(entities)
	}

	if owner := normalizers.NormalizePersonName(features.Owner); owner != "" {
		entities, err := f.store.SearchByOwner(ctx, owner, f.config.Limit)
		if err != nil {
			return nil, err
		}
		add(entities)
	}

	f.logger.WithContext(ctx).WithFields(map[string]any{"count": len(candidates)}).Debug("Found candidates")
	return candidates, nil
}
