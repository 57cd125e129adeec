package processor

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/briar/pkg/logging"
	"github.com/Ramsey-B/briar/pkg/models"
)

type fakePersonStore struct {
	existing []models.Entity
	created  []*models.Entity
	err      error
}

func (f *fakePersonStore) Create(_ context.Context, entity *models.Entity) (*models.Entity, error) {
	if f.err != nil {
		return nil, f.err
	}
	entity.ID = uuid.New().String()
	f.created = append(f.created, entity)
	f.existing = append(f.existing, *entity)
	return entity, nil
}

func (f *fakePersonStore) SearchByName(_ context.Context, normalizedName string, _ float64, _ int) ([]models.Entity, error) {
	if f.err != nil {
		return nil, f.err
	}
	var out []models.Entity
	for _, e := range f.existing {
		if e.CanonicalName == normalizedName {
			out = append(out, e)
		}
	}
	return out, nil
}

type fakeRelationshipStore struct {
	observed []models.CreateRelationshipRequest
	err      error
}

func (f *fakeRelationshipStore) Observe(_ context.Context, req models.CreateRelationshipRequest) (*models.EntityRelationship, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.observed = append(f.observed, req)
	return &models.EntityRelationship{
		ID:               uuid.New().String(),
		SourceEntityID:   req.SourceEntityID,
		TargetEntityID:   req.TargetEntityID,
		RelationshipType: req.RelationshipType,
	}, nil
}

type fakeAgentChecker struct {
	known map[string]bool
	err   error
}

func (f *fakeAgentChecker) IsKnownAgentService(_ context.Context, name string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.known[name], nil
}

func resolvedEntity() *models.Entity {
	return &models.Entity{
		ID:            "ent-1",
		Kind:          models.EntityKindLLC,
		CanonicalName: "ACME HOLDINGS LLC",
		DisplayName:   "Acme Holdings LLC",
	}
}

func relationshipTypes(reqs []models.CreateRelationshipRequest) map[string]string {
	out := make(map[string]string, len(reqs))
	for _, req := range reqs {
		out[req.RelationshipType] = req.SourceEntityID
	}
	return out
}

func TestObserveRelated_PersistsPeopleEdges(t *testing.T) {
	entities := &fakePersonStore{}
	relationships := &fakeRelationshipStore{}
	b := NewRelationshipBuilder(entities, relationships, nil, logging.NewNoop())

	record := map[string]any{
		"entity_name":      "Acme Holdings LLC",
		"officers":         []any{"John Smith"},
		"owner":            "Mary Smith",
		"registered_agent": "Jane Doe",
	}
	b.ObserveRelated(context.Background(), resolvedEntity(), record, models.SourceContext{SourceType: models.SourceSunbiz})

	require.Len(t, entities.created, 3)
	for _, person := range entities.created {
		assert.Equal(t, models.EntityKindPerson, person.Kind)
	}

	require.Len(t, relationships.observed, 3)
	byType := relationshipTypes(relationships.observed)
	assert.Contains(t, byType, "officer_of")
	assert.Contains(t, byType, "owner_of")
	assert.Contains(t, byType, "registered_agent_of")
	for _, req := range relationships.observed {
		assert.Equal(t, "ent-1", req.TargetEntityID)
		assert.Equal(t, string(models.SourceSunbiz), req.Source)
	}
}

func TestObserveRelated_ReusesExistingPerson(t *testing.T) {
	entities := &fakePersonStore{existing: []models.Entity{{
		ID:            "person-1",
		Kind:          models.EntityKindPerson,
		CanonicalName: "JOHN SMITH",
		DisplayName:   "John Smith",
	}}}
	relationships := &fakeRelationshipStore{}
	b := NewRelationshipBuilder(entities, relationships, nil, logging.NewNoop())

	record := map[string]any{"officers": []any{"John Smith"}}
	b.ObserveRelated(context.Background(), resolvedEntity(), record, models.SourceContext{SourceType: models.SourceSunbiz})

	assert.Empty(t, entities.created)
	require.Len(t, relationships.observed, 1)
	assert.Equal(t, "person-1", relationships.observed[0].SourceEntityID)
}

func TestObserveRelated_DeduplicatesAndSkipsSelf(t *testing.T) {
	entities := &fakePersonStore{}
	relationships := &fakeRelationshipStore{}
	b := NewRelationshipBuilder(entities, relationships, nil, logging.NewNoop())

	// the owner repeats across fields and one name is the entity itself
	record := map[string]any{
		"owner":  "Mary Smith",
		"owners": []any{"Mary Smith", "Acme Holdings LLC"},
	}
	b.ObserveRelated(context.Background(), resolvedEntity(), record, models.SourceContext{SourceType: models.SourcePropertyDeed})

	require.Len(t, relationships.observed, 1)
	assert.Equal(t, "owner_of", relationships.observed[0].RelationshipType)
}

func TestObserveRelated_SuppressesCommercialAgentEdge(t *testing.T) {
	entities := &fakePersonStore{}
	relationships := &fakeRelationshipStore{}
	agents := &fakeAgentChecker{known: map[string]bool{"REGISTERED AGENTS INC": true}}
	b := NewRelationshipBuilder(entities, relationships, agents, logging.NewNoop())

	record := map[string]any{"registered_agent": "Registered Agents Inc"}
	b.ObserveRelated(context.Background(), resolvedEntity(), record, models.SourceContext{SourceType: models.SourceSunbiz})

	assert.Empty(t, relationships.observed)

	// an individual agent does get an edge
	record = map[string]any{"registered_agent": "Jane Doe"}
	b.ObserveRelated(context.Background(), resolvedEntity(), record, models.SourceContext{SourceType: models.SourceSunbiz})

	require.Len(t, relationships.observed, 1)
	assert.Equal(t, "registered_agent_of", relationships.observed[0].RelationshipType)
}

func TestObserveRelated_StoreErrorsAreNotFatal(t *testing.T) {
	entities := &fakePersonStore{err: assert.AnError}
	relationships := &fakeRelationshipStore{}
	b := NewRelationshipBuilder(entities, relationships, nil, logging.NewNoop())

	record := map[string]any{"officers": []any{"John Smith"}}
	b.ObserveRelated(context.Background(), resolvedEntity(), record, models.SourceContext{SourceType: models.SourceSunbiz})

	assert.Empty(t, relationships.observed)
}

func TestProcessMessage_ObservesRelationships(t *testing.T) {
	resolver := &fakeResolver{result: &models.MatchResult{
		Entity: &models.Entity{
			ID:            "ent-1",
			Kind:          models.EntityKindLLC,
			CanonicalName: "ACME HOLDINGS LLC",
		},
		Confidence: 0.999,
		Method:     models.MethodDefinitive,
	}}
	entities := &fakePersonStore{}
	relationships := &fakeRelationshipStore{}
	b := NewRelationshipBuilder(entities, relationships, nil, logging.NewNoop())
	p := NewProcessor(logging.NewNoop(), resolver, nil, b)

	msg := incomingMessage()
	msg.ScrapedRecord.Record["officers"] = []any{"John Smith"}

	err := p.ProcessMessage(context.Background(), msg)

	require.NoError(t, err)
	require.Len(t, relationships.observed, 1)
	assert.Equal(t, "officer_of", relationships.observed[0].RelationshipType)
	assert.Equal(t, "ent-1", relationships.observed[0].TargetEntityID)
}
