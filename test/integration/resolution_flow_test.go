package integration

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/matching"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/resolution"
)

// memoryStore is an in-memory EntityStore used to run the full resolution
// pipeline (extractor, finder, matcher, resolver) without Postgres.
type memoryStore struct {
	entities map[string]*models.Entity
	seq      int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{entities: make(map[string]*models.Entity)}
}

func (s *memoryStore) Create(_ context.Context, entity *models.Entity) (*models.Entity, error) {
	s.seq++
	entity.ID = fmt.Sprintf("entity-%d", s.seq)
	s.entities[entity.ID] = entity
	return entity, nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*models.Entity, error) {
	entity, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	return entity, nil
}

func (s *memoryStore) Update(_ context.Context, entity *models.Entity) error {
	if _, ok := s.entities[entity.ID]; !ok {
		return fmt.Errorf("entity %s not found", entity.ID)
	}
	s.entities[entity.ID] = entity
	return nil
}

func (s *memoryStore) FindByAttribute(_ context.Context, key, value string) (*models.Entity, error) {
	for _, entity := range s.entities {
		if v, ok := entity.Attributes.Data[key].(string); ok && v == value {
			return entity, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) SearchByName(_ context.Context, _ string, _ float64, limit int) ([]models.Entity, error) {
	out := make([]models.Entity, 0, len(s.entities))
	for _, entity := range s.entities {
		if len(out) >= limit {
			break
		}
		out = append(out, *entity)
	}
	return out, nil
}

func (s *memoryStore) SearchByAddress(_ context.Context, normalizedAddress string, limit int) ([]models.Entity, error) {
	out := make([]models.Entity, 0)
	for _, entity := range s.entities {
		if len(out) >= limit {
			break
		}
		for _, key := range []string{"principal_address", "mailing_address"} {
			if v, ok := entity.Attributes.Data[key].(string); ok && strings.Contains(v, normalizedAddress) {
				out = append(out, *entity)
				break
			}
		}
	}
	return out, nil
}

func (s *memoryStore) SearchByPhone(_ context.Context, normalizedPhone string, limit int) ([]models.Entity, error) {
	out := make([]models.Entity, 0)
	for _, entity := range s.entities {
		if len(out) >= limit {
			break
		}
		if v, ok := entity.Attributes.Data["phone"].(string); ok && v == normalizedPhone {
			out = append(out, *entity)
		}
	}
	return out, nil
}

func (s *memoryStore) SearchByOwner(_ context.Context, normalizedOwner string, limit int) ([]models.Entity, error) {
	out := make([]models.Entity, 0)
	for _, entity := range s.entities {
		if len(out) >= limit {
			break
		}
		if v, ok := entity.Attributes.Data["owner"].(string); ok && strings.Contains(v, normalizedOwner) {
			out = append(out, *entity)
		}
	}
	return out, nil
}

type memoryDecisionLog struct {
	decisions []*models.ResolutionDecision
}

func (l *memoryDecisionLog) Create(_ context.Context, decision *models.ResolutionDecision) error {
	l.decisions = append(l.decisions, decision)
	return nil
}

type memoryReviewQueue struct {
	entries []*models.ReviewQueueEntry
}

func (q *memoryReviewQueue) Create(_ context.Context, entry *models.ReviewQueueEntry) error {
	q.entries = append(q.entries, entry)
	return nil
}

type pipeline struct {
	store     *memoryStore
	decisions *memoryDecisionLog
	reviews   *memoryReviewQueue
	resolver  *resolution.Resolver
}

func newPipeline() *pipeline {
	logger := logging.NewNoop()
	store := newMemoryStore()
	decisions := &memoryDecisionLog{}
	reviews := &memoryReviewQueue{}

	matcher := matching.NewMatcher(nil, matching.MatcherConfig{AutoAcceptThreshold: 0.85}, logger)
	finder := resolution.NewFinder(store, resolution.FinderConfig{TrigramFloor: 0.3, Limit: 20}, logger)
	resolver := resolution.NewResolver(store, finder, matcher, nil, decisions, reviews, resolution.Config{
		AutoAcceptThreshold: 0.85,
		ReviewThreshold:     0.60,
	}, logger)

	return &pipeline{store: store, decisions: decisions, reviews: reviews, resolver: resolver}
}

func sunbizFiling() map[string]any {
	return map[string]any{
		"entity_name":       "SUNRISE DEVELOPMENT GROUP LLC",
		"document_number":   "L21000123456",
		"principal_address": "7420 Collins Avenue, Miami, FL 33141",
		"phone":             "305-555-0100",
		"registered_agent":  "MARIA GARCIA",
	}
}

func TestResolutionFlow_DefinitiveKeyAcrossSources(t *testing.T) {
	ctx := context.Background()
	p := newPipeline()

	first, err := p.resolver.Resolve(ctx, sunbizFiling(), models.SourceContext{SourceType: models.SourceSunbiz})
	require.NoError(t, err)
	require.NotNil(t, first.Entity)
	assert.True(t, first.CreatedNew)

	deed := map[string]any{
		"grantee":         "Sunrise Development Group, LLC",
		"document_number": "L21000123456",
		"parcel_id":       "02-3211-004-0120",
	}
	second, err := p.resolver.Resolve(ctx, deed, models.SourceContext{SourceType: models.SourcePropertyDeed})
	require.NoError(t, err)
	require.NotNil(t, second.Entity)

	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Equal(t, models.MethodDefinitive, second.Method)
	assert.Equal(t, []string{"document_number"}, second.MatchedOn)
	assert.False(t, second.CreatedNew)

	// The deed's parcel id is merged into the existing entity.
	merged, err := p.store.GetByID(ctx, first.Entity.ID)
	require.NoError(t, err)
	assert.Equal(t, "02-3211-004-0120", merged.Attributes.Data["parcel_id"])
}

func TestResolutionFlow_MultiSignalAutoAccept(t *testing.T) {
	ctx := context.Background()
	p := newPipeline()

	first, err := p.resolver.Resolve(ctx, sunbizFiling(), models.SourceContext{SourceType: models.SourceSunbiz})
	require.NoError(t, err)
	require.NotNil(t, first.Entity)

	// A permit carries no filing number, but name, address and phone all
	// line up.
	permit := map[string]any{
		"contractor_name": "Sunrise Development Group LLC",
		"site_address":    "7420 Collins Avenue, Miami, FL 33141",
		"contact_phone":   "(305) 555-0100",
		"permit_number":   "B-2024-00815",
	}
	second, err := p.resolver.Resolve(ctx, permit, models.SourceContext{SourceType: models.SourceCityPermit})
	require.NoError(t, err)
	require.NotNil(t, second.Entity)

	assert.Equal(t, first.Entity.ID, second.Entity.ID)
	assert.Equal(t, models.MethodMultiSignal, second.Method)
	assert.False(t, second.CreatedNew)
	assert.GreaterOrEqual(t, second.Confidence, 0.85)
	assert.Contains(t, second.MatchedOn, "name_similarity")
	assert.Contains(t, second.MatchedOn, "address_match")
	assert.Contains(t, second.MatchedOn, "phone_match")
}

func TestResolutionFlow_InformalMentionQueuesReview(t *testing.T) {
	ctx := context.Background()
	p := newPipeline()

	first, err := p.resolver.Resolve(ctx, sunbizFiling(), models.SourceContext{SourceType: models.SourceSunbiz})
	require.NoError(t, err)
	require.NotNil(t, first.Entity)

	// A news mention abbreviates the name and carries nothing else. One
	// signal is never enough to auto-accept, so the record is parked.
	article := map[string]any{
		"name": "Sunrise Development Group",
	}
	second, err := p.resolver.Resolve(ctx, article, models.SourceContext{SourceType: models.SourceNewsArticle})
	require.NoError(t, err)

	assert.True(t, second.NeedsReview)
	assert.Nil(t, second.Entity)
	require.Len(t, p.reviews.entries, 1)
	assert.Equal(t, first.Entity.ID, p.reviews.entries[0].CandidateEntityID)
}

func TestResolutionFlow_DocumentNumberContradiction(t *testing.T) {
	ctx := context.Background()
	p := newPipeline()

	first, err := p.resolver.Resolve(ctx, sunbizFiling(), models.SourceContext{SourceType: models.SourceSunbiz})
	require.NoError(t, err)
	require.NotNil(t, first.Entity)

	// Same name and address but a different filing number: the name was
	// reused after dissolution. Must become a separate entity, never a
	// silent merge.
	successor := map[string]any{
		"entity_name":       "SUNRISE DEVELOPMENT GROUP LLC",
		"document_number":   "L24000987654",
		"principal_address": "7420 Collins Avenue, Miami, FL 33141",
	}
	second, err := p.resolver.Resolve(ctx, successor, models.SourceContext{SourceType: models.SourceSunbiz})
	require.NoError(t, err)
	require.NotNil(t, second.Entity)

	assert.NotEqual(t, first.Entity.ID, second.Entity.ID)
	assert.True(t, second.CreatedNew)
	assert.True(t, second.NeedsReview)
	assert.True(t, second.Entity.NeedsVerification)
}

func TestResolutionFlow_ReviewAcceptBindsCandidate(t *testing.T) {
	ctx := context.Background()
	p := newPipeline()

	first, err := p.resolver.Resolve(ctx, sunbizFiling(), models.SourceContext{SourceType: models.SourceSunbiz})
	require.NoError(t, err)
	require.NotNil(t, first.Entity)

	article := map[string]any{"name": "Sunrise Development Group"}
	_, err = p.resolver.Resolve(ctx, article, models.SourceContext{SourceType: models.SourceNewsArticle})
	require.NoError(t, err)
	require.Len(t, p.reviews.entries, 1)

	entity, err := p.resolver.AcceptReview(ctx, p.reviews.entries[0])
	require.NoError(t, err)

	assert.Equal(t, first.Entity.ID, entity.ID)
	assert.InDelta(t, 0.99, entity.Confidence, 0.0001)
	assert.False(t, entity.NeedsVerification)
}
