package resolution

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/matching"
	"github.com/Ramsey-B/briar/pkg/models"
)

// fakeStore is an in-memory EntityStore. Name search approximates the
// store-side trigram operator with the client-side scorer.
type fakeStore struct {
	entities  map[string]*models.Entity
	nextID    int
	createErr error
	scorer    *matching.Scorer
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		entities: map[string]*models.Entity{},
		scorer:   matching.NewScorer(),
	}
}

func (s *fakeStore) seed(canonicalName string, attrs map[string]any) *models.Entity {
	s.nextID++
	entity := &models.Entity{
		ID:            fmt.Sprintf("ent-%d", s.nextID),
		Kind:          models.EntityKindLLC,
		CanonicalName: canonicalName,
		DisplayName:   canonicalName,
		Confidence:    1.0,
		Attributes:    database.JSONB[map[string]any]{Data: attrs},
	}
	s.entities[entity.ID] = entity
	return entity
}

func (s *fakeStore) Create(_ context.Context, entity *models.Entity) (*models.Entity, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	entity.ID = fmt.Sprintf("ent-%d", s.nextID)
	s.entities[entity.ID] = entity
	return entity, nil
}

func (s *fakeStore) GetByID(_ context.Context, id string) (*models.Entity, error) {
	entity, ok := s.entities[id]
	if !ok {
		return nil, fmt.Errorf("entity %s not found", id)
	}
	return entity, nil
}

func (s *fakeStore) Update(_ context.Context, entity *models.Entity) error {
	s.entities[entity.ID] = entity
	return nil
}

func (s *fakeStore) FindByAttribute(_ context.Context, key, value string) (*models.Entity, error) {
	for _, e := range s.entities {
		if attr, ok := e.Attributes.Data[key].(string); ok && attr == value {
			return e, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) SearchByName(_ context.Context, name string, minSim float64, _ int) ([]models.Entity, error) {
	var out []models.Entity
	for _, e := range s.entities {
		if s.scorer.TrigramSimilarity(name, e.CanonicalName) > minSim {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchByAddress(_ context.Context, addr string, _ int) ([]models.Entity, error) {
	var out []models.Entity
	for _, e := range s.entities {
		stored := []string{}
		if e.Address != nil {
			stored = append(stored, *e.Address)
		}
		for _, key := range []string{"principal_address", "mailing_address"} {
			if v, ok := e.Attributes.Data[key].(string); ok {
				stored = append(stored, v)
			}
		}
		for _, v := range stored {
			if strings.Contains(strings.ToUpper(v), strings.ToUpper(addr)) {
				out = append(out, *e)
				break
			}
		}
	}
	return out, nil
}

func (s *fakeStore) SearchByPhone(_ context.Context, phone string, _ int) ([]models.Entity, error) {
	var out []models.Entity
	for _, e := range s.entities {
		if v, ok := e.Attributes.Data["phone"].(string); ok && v == phone {
			out = append(out, *e)
		}
	}
	return out, nil
}

func (s *fakeStore) SearchByOwner(_ context.Context, owner string, _ int) ([]models.Entity, error) {
	var out []models.Entity
	for _, e := range s.entities {
		if v, ok := e.Attributes.Data["owner"].(string); ok &&
			strings.Contains(strings.ToUpper(v), strings.ToUpper(owner)) {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeDecisions struct {
	rows []*models.ResolutionDecision
	err  error
}

func (d *fakeDecisions) Create(_ context.Context, decision *models.ResolutionDecision) error {
	if d.err != nil {
		return d.err
	}
	d.rows = append(d.rows, decision)
	return nil
}

type fakeReviews struct {
	rows []*models.ReviewQueueEntry
	err  error
}

func (r *fakeReviews) Create(_ context.Context, entry *models.ReviewQueueEntry) error {
	if r.err != nil {
		return r.err
	}
	r.rows = append(r.rows, entry)
	return nil
}

type fakeArbitrator struct {
	score  models.MatchScore
	called bool
}

func (a *fakeArbitrator) Arbitrate(_ context.Context, _ models.Features, _ models.SourceContext, _ *models.Entity, deterministic models.MatchScore) models.MatchScore {
	a.called = true
	if a.score.Method == "" {
		return deterministic
	}
	return a.score
}

type testHarness struct {
	store     *fakeStore
	decisions *fakeDecisions
	reviews   *fakeReviews
	resolver  *Resolver
}

func newHarness(arbitrator Arbitrator) *testHarness {
	logger := logging.NewNoop()
	store := newFakeStore()
	decisions := &fakeDecisions{}
	reviews := &fakeReviews{}

	matcher := matching.NewMatcher(nil, matching.MatcherConfig{AutoAcceptThreshold: 0.85}, logger)
	finder := NewFinder(store, FinderConfig{TrigramFloor: 0.3, Limit: 20}, logger)
	resolver := NewResolver(store, finder, matcher, arbitrator, decisions, reviews,
		Config{AutoAcceptThreshold: 0.85, ReviewThreshold: 0.60}, logger)

	return &testHarness{store: store, decisions: decisions, reviews: reviews, resolver: resolver}
}

func TestResolve_DefinitiveKeyMatch(t *testing.T) {
	h := newHarness(nil)
	stored := h.store.seed("ACME HOLDINGS LLC", map[string]any{"document_number": "L12345678"})

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"document_number": "L12345678",
		"official_name":   "Acme Holdings LLC",
	}, models.SourceContext{SourceType: models.SourceSunbiz})

	require.NoError(t, err)
	require.NotNil(t, result.Entity)
	assert.Equal(t, stored.ID, result.Entity.ID)
	assert.InDelta(t, 0.999, result.Confidence, 0.001)
	assert.Equal(t, models.MethodDefinitive, result.Method)
	assert.Equal(t, []string{"document_number"}, result.MatchedOn)
	assert.False(t, result.CreatedNew)
	assert.False(t, result.NeedsReview)

	require.Len(t, h.decisions.rows, 1)
	assert.True(t, h.decisions.rows[0].AutoAccepted)
}

func TestResolve_ContradictionBlocksMerge(t *testing.T) {
	h := newHarness(nil)
	addr := "123 MAIN ST"
	stored := h.store.seed("ACME HOLDINGS LLC", map[string]any{
		"document_number":   "L222",
		"principal_address": addr,
	})

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"document_number":   "L111",
		"official_name":     "Acme Holdings LLC",
		"principal_address": "123 Main St",
	}, models.SourceContext{SourceType: models.SourceSunbiz})

	require.NoError(t, err)
	// the identical name and address cannot overcome the id conflict; a
	// provisional entity is created instead of a merge
	assert.True(t, result.CreatedNew)
	assert.True(t, result.NeedsReview)
	require.NotNil(t, result.Entity)
	assert.NotEqual(t, stored.ID, result.Entity.ID)
	assert.True(t, result.Entity.NeedsVerification)

	require.NotEmpty(t, h.decisions.rows)
	assert.Equal(t, models.MethodContradiction, h.decisions.rows[0].Method)
	assert.Equal(t, 0.0, h.decisions.rows[0].Confidence)
}

func TestResolve_InformalSingleSignalGoesToReview(t *testing.T) {
	h := newHarness(nil)
	candidate := h.store.seed("ABC DEVELOPMENT LLC", map[string]any{})

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"official_name": "ABC Dev",
	}, models.SourceContext{SourceType: models.SourceNewsArticle})

	require.NoError(t, err)
	assert.True(t, result.NeedsReview)
	assert.Nil(t, result.Entity)
	assert.False(t, result.CreatedNew)
	assert.GreaterOrEqual(t, result.Confidence, 0.60)
	assert.Less(t, result.Confidence, 0.85)

	require.Len(t, h.reviews.rows, 1)
	assert.Equal(t, candidate.ID, h.reviews.rows[0].CandidateEntityID)
}

func TestResolve_MultiSignalAutoAccept(t *testing.T) {
	h := newHarness(nil)
	stored := h.store.seed("SMITH PROPERTY GROUP", map[string]any{
		"owners":            []any{"John Smith"},
		"principal_address": "123 MAIN ST",
	})

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"owners":           []any{"John Smith", "Mary Smith"},
		"property_address": "123 Main Street",
	}, models.SourceContext{SourceType: models.SourcePropertyDeed})

	require.NoError(t, err)
	require.NotNil(t, result.Entity)
	assert.Equal(t, stored.ID, result.Entity.ID)
	assert.GreaterOrEqual(t, result.Confidence, 0.85)
	assert.Equal(t, models.MethodMultiSignal, result.Method)
	assert.False(t, result.NeedsReview)

	require.Len(t, h.decisions.rows, 1)
	assert.True(t, h.decisions.rows[0].AutoAccepted)
}

func TestResolve_NoMatchCreatesNewEntity(t *testing.T) {
	h := newHarness(nil)

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"phone": "(305) 555-0000",
	}, models.SourceContext{SourceType: models.SourceCityPermit})

	require.NoError(t, err)
	require.NotNil(t, result.Entity)
	assert.True(t, result.CreatedNew)
	assert.Equal(t, 1.0, result.Confidence)
	assert.False(t, result.NeedsReview)
	// phone lands in the attribute bag normalized
	assert.Equal(t, "+13055550000", result.Entity.Attribute("phone"))
}

func TestResolve_DecisionLogMarksCreations(t *testing.T) {
	h := newHarness(nil)

	// no candidates at all: the decision row is a creation, not a match
	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"phone": "(305) 555-0000",
	}, models.SourceContext{SourceType: models.SourceCityPermit})

	require.NoError(t, err)
	require.NotNil(t, result.Entity)
	require.Len(t, h.decisions.rows, 1)
	created := h.decisions.rows[0]
	assert.True(t, created.CreatedNew)
	assert.Equal(t, models.MethodNoSignals, created.Method)
	assert.Equal(t, 1.0, created.Confidence)

	// a definitive match against the new entity is not a creation
	h.store.entities[result.Entity.ID].Attributes.Data["document_number"] = "L12345678"
	_, err = h.resolver.Resolve(context.Background(), map[string]any{
		"document_number": "L12345678",
	}, models.SourceContext{SourceType: models.SourceSunbiz})

	require.NoError(t, err)
	require.Len(t, h.decisions.rows, 2)
	assert.False(t, h.decisions.rows[1].CreatedNew)
}

func TestResolve_LLMArbitrationAccepts(t *testing.T) {
	arb := &fakeArbitrator{score: models.MatchScore{Confidence: 0.95, Method: models.MethodLLM}}
	h := newHarness(arb)
	stored := h.store.seed("ABC DEVELOPMENT LLC", map[string]any{})

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"official_name": "ABC Dev",
	}, models.SourceContext{SourceType: models.SourceNewsArticle})

	require.NoError(t, err)
	assert.True(t, arb.called)
	require.NotNil(t, result.Entity)
	assert.Equal(t, stored.ID, result.Entity.ID)
	assert.Equal(t, models.MethodLLM, result.Method)
	assert.Empty(t, h.reviews.rows)
}

func TestResolve_LLMDeclineStillQueuesReview(t *testing.T) {
	// an arbitrator that returns the deterministic score unchanged (the
	// failure degradation path) leaves the record in the review queue
	arb := &fakeArbitrator{}
	h := newHarness(arb)
	h.store.seed("ABC DEVELOPMENT LLC", map[string]any{})

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"official_name": "ABC Dev",
	}, models.SourceContext{SourceType: models.SourceNewsArticle})

	require.NoError(t, err)
	assert.True(t, arb.called)
	assert.True(t, result.NeedsReview)
	assert.Nil(t, result.Entity)
	assert.Len(t, h.reviews.rows, 1)
}

func TestResolve_DecisionLogFailureIsNotFatal(t *testing.T) {
	h := newHarness(nil)
	h.decisions.err = assert.AnError
	h.store.seed("ACME HOLDINGS LLC", map[string]any{"document_number": "L12345678"})

	result, err := h.resolver.Resolve(context.Background(), map[string]any{
		"document_number": "L12345678",
	}, models.SourceContext{SourceType: models.SourceSunbiz})

	require.NoError(t, err)
	require.NotNil(t, result.Entity)
	assert.Equal(t, models.MethodDefinitive, result.Method)
}

func TestResolve_StoreCreateFailureIsFatal(t *testing.T) {
	h := newHarness(nil)
	h.store.createErr = assert.AnError

	_, err := h.resolver.Resolve(context.Background(), map[string]any{
		"official_name": "Brand New Company LLC",
	}, models.SourceContext{SourceType: models.SourceSunbiz})

	assert.Error(t, err)
}

func TestResolve_DefinitiveMatchMergesAttributes(t *testing.T) {
	h := newHarness(nil)
	stored := h.store.seed("ACME HOLDINGS LLC", map[string]any{"document_number": "L12345678"})

	_, err := h.resolver.Resolve(context.Background(), map[string]any{
		"document_number": "L12345678",
		"phone":           "(305) 555-1234",
		"email":           "info@acme.com",
	}, models.SourceContext{SourceType: models.SourceSunbiz})

	require.NoError(t, err)
	updated := h.store.entities[stored.ID]
	assert.Equal(t, "+13055551234", updated.Attribute("phone"))
	assert.Equal(t, "info@acme.com", updated.Attribute("email"))
	// pre-existing values are never overwritten
	assert.Equal(t, "L12345678", updated.Attribute("document_number"))
}
