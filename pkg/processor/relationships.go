package processor

import (
	"context"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/briar/pkg/database"
	"github.com/Ramsey-B/briar/pkg/extractor"
	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/normalizers"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// PersonStore is the slice of the entity store the relationship builder
// needs: exact person lookup and creation.
type PersonStore interface {
	Create(ctx context.Context, entity *models.Entity) (*models.Entity, error)
	SearchByName(ctx context.Context, normalizedName string, minSimilarity float64, limit int) ([]models.Entity, error)
}

// RelationshipStore records directed edge observations.
type RelationshipStore interface {
	Observe(ctx context.Context, req models.CreateRelationshipRequest) (*models.EntityRelationship, error)
}

// AgentServiceChecker reports whether a normalized agent name is a known
// commercial registered-agent service.
type AgentServiceChecker interface {
	IsKnownAgentService(ctx context.Context, normalizedName string) (bool, error)
}

// People named on a filing are real but the record alone does not verify
// them, so person entities and their edges start below auto-accept.
const observedPersonConfidence = 0.90
const observedEdgeConfidence = 0.90

// personSearchFloor keeps the lookup to exact canonical-name hits; the
// similarity comparison is strict, so the floor sits just under 1.
const personSearchFloor = 0.99

// RelationshipBuilder persists the people edges a record carries alongside
// the resolved entity: officer-of, principal-of, owner-of and
// registered-agent-of. Everything here is best-effort; the resolution has
// already been persisted and a missed edge is re-derivable from the next
// observation of the same record.
type RelationshipBuilder struct {
	entities      PersonStore
	relationships RelationshipStore
	agentServices AgentServiceChecker
	extractor     *extractor.Extractor
	logger        ectologger.Logger
}

// NewRelationshipBuilder creates a RelationshipBuilder. agentServices may
// be nil, in which case registered-agent edges are recorded for commercial
// services too.
func NewRelationshipBuilder(entities PersonStore, relationships RelationshipStore, agentServices AgentServiceChecker, logger ectologger.Logger) *RelationshipBuilder {
	return &RelationshipBuilder{
		entities:      entities,
		relationships: relationships,
		agentServices: agentServices,
		extractor:     extractor.New(),
		logger:        logger,
	}
}

type observedPerson struct {
	name         string
	relationship string
}

// ObserveRelated extracts the people named on the record and records one
// typed edge per person to the resolved entity, creating person entities
// that do not exist yet. Names are matched by exact normalized form only;
// fuzzy person identity goes through the review queue, not here.
func (b *RelationshipBuilder) ObserveRelated(ctx context.Context, entity *models.Entity, record map[string]any, source models.SourceContext) {
	ctx, span := tracing.StartSpan(ctx, "processor.RelationshipBuilder.ObserveRelated")
	defer span.End()

	features := b.extractor.ExtractAllFeatures(record)
	log := b.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id":   entity.ID,
		"source_type": source.SourceType,
	})

	seen := make(map[string]bool)
	for _, person := range b.collect(ctx, features) {
		canonical := normalizers.NormalizePersonName(person.name)
		if canonical == "" || canonical == entity.CanonicalName {
			continue
		}
		dedupeKey := canonical + "|" + person.relationship
		if seen[dedupeKey] {
			continue
		}
		seen[dedupeKey] = true

		related, err := b.findOrCreatePerson(ctx, person.name, canonical, source)
		if err != nil {
			log.WithError(err).Warnf("Failed to resolve related person %q", person.name)
			continue
		}

		_, err = b.relationships.Observe(ctx, models.CreateRelationshipRequest{
			SourceEntityID:   related.ID,
			TargetEntityID:   entity.ID,
			RelationshipType: person.relationship,
			Confidence:       observedEdgeConfidence,
			Source:           string(source.SourceType),
		})
		if err != nil {
			log.WithError(err).Warnf("Failed to record %s edge for %q", person.relationship, person.name)
		}
	}
}

// collect pairs every person-shaped feature with its edge type. A known
// commercial registered-agent service yields no edge; shared use of one
// carries no relationship information.
func (b *RelationshipBuilder) collect(ctx context.Context, features models.Features) []observedPerson {
	var people []observedPerson
	for _, name := range features.Officers {
		people = append(people, observedPerson{name: name, relationship: "officer_of"})
	}
	for _, name := range features.Principals {
		people = append(people, observedPerson{name: name, relationship: "principal_of"})
	}
	if features.Owner != "" {
		people = append(people, observedPerson{name: features.Owner, relationship: "owner_of"})
	}
	for _, name := range features.Owners {
		people = append(people, observedPerson{name: name, relationship: "owner_of"})
	}

	if agent := features.RegisteredAgent; agent != "" {
		suppress := false
		if b.agentServices != nil {
			known, err := b.agentServices.IsKnownAgentService(ctx, normalizers.NormalizePersonName(agent))
			if err != nil {
				b.logger.WithContext(ctx).WithError(err).Warnf("Agent service lookup failed, skipping agent edge")
				suppress = true
			}
			suppress = suppress || known
		}
		if !suppress {
			people = append(people, observedPerson{name: agent, relationship: "registered_agent_of"})
		}
	}

	return people
}

// findOrCreatePerson returns the person entity with the exact canonical
// name, creating it when absent.
func (b *RelationshipBuilder) findOrCreatePerson(ctx context.Context, name, canonical string, source models.SourceContext) (*models.Entity, error) {
	matches, err := b.entities.SearchByName(ctx, canonical, personSearchFloor, 5)
	if err != nil {
		return nil, err
	}
	for i := range matches {
		if matches[i].Kind == models.EntityKindPerson && matches[i].CanonicalName == canonical {
			return &matches[i], nil
		}
	}

	sourceType := string(source.SourceType)
	return b.entities.Create(ctx, &models.Entity{
		Kind:               models.EntityKindPerson,
		CanonicalName:      canonical,
		DisplayName:        name,
		Confidence:         observedPersonConfidence,
		VerificationSource: &sourceType,
		Attributes:         database.JSONB[map[string]any]{Data: map[string]any{"owner": name}},
	})
}
