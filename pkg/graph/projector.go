package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/briar/pkg/models"
	"github.com/Ramsey-B/briar/pkg/tracing"
)

// Projector mirrors resolved entities and relationships into the graph.
type Projector struct {
	client *Client
	logger ectologger.Logger
}

// NewProjector creates a new graph projector
func NewProjector(client *Client, logger ectologger.Logger) *Projector {
	return &Projector{
		client: client,
		logger: logger,
	}
}

// ProjectEntity creates or updates an entity node. Nodes carry the
// entity kind as a label (e.g. :Llc, :Corporation) plus a shared
// :Entity label so cross-kind queries stay cheap.
func (p *Projector) ProjectEntity(ctx context.Context, entity *models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectEntity")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"entity_id": entity.ID,
		"kind":      entity.Kind,
	})

	props := map[string]any{
		"id":                 entity.ID,
		"kind":               string(entity.Kind),
		"canonical_name":     entity.CanonicalName,
		"display_name":       entity.DisplayName,
		"confidence":         entity.Confidence,
		"needs_verification": entity.NeedsVerification,
		"created_at":         entity.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		"updated_at":         entity.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
	if entity.Address != nil {
		props["address"] = *entity.Address
	}

	// Flatten scalar attributes onto the node; graph queries filter on
	// phone, tax_id and similar identifying facts.
	for k, v := range entity.Attributes.Data {
		switch v.(type) {
		case string, float64, bool, int, int64:
			props["attr_"+k] = v
		}
	}

	cypher := fmt.Sprintf(`
		MERGE (e:Entity {id: $id})
		SET e:%s, e = $props
		RETURN e
	`, kindLabel(entity.Kind))

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"id":    entity.ID,
			"props": props,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		log.WithError(err).Error("Failed to project entity into graph")
		return fmt.Errorf("failed to project entity into graph: %w", err)
	}

	log.Debug("Projected entity into graph")
	return nil
}

// ProjectRelationship creates or updates an edge between two entity
// nodes. The relationship type becomes the edge label.
func (p *Projector) ProjectRelationship(ctx context.Context, rel *models.EntityRelationship) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectRelationship")
	defer span.End()

	log := p.logger.WithContext(ctx).WithFields(map[string]any{
		"rel_id":   rel.ID,
		"rel_type": rel.RelationshipType,
		"from":     rel.SourceEntityID,
		"to":       rel.TargetEntityID,
	})

	cypher := fmt.Sprintf(`
		MATCH (from:Entity {id: $from_id})
		MATCH (to:Entity {id: $to_id})
		MERGE (from)-[r:%s {id: $rel_id}]->(to)
		SET r.confidence = $confidence, r.sources = $sources
		RETURN r
	`, sanitizeLabel(rel.RelationshipType))

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		result, err := tx.Run(ctx, cypher, map[string]any{
			"from_id":    rel.SourceEntityID,
			"to_id":      rel.TargetEntityID,
			"rel_id":     rel.ID,
			"confidence": rel.Confidence,
			"sources":    rel.Sources.Data,
		})
		if err != nil {
			return nil, err
		}
		return result.Consume(ctx)
	})

	if err != nil {
		log.WithError(err).Error("Failed to project relationship into graph")
		return fmt.Errorf("failed to project relationship into graph: %w", err)
	}

	log.Debug("Projected relationship into graph")
	return nil
}

// ProjectEntities projects a batch of entities in a single transaction.
// Used by the backfill path when the graph is rebuilt from Postgres.
func (p *Projector) ProjectEntities(ctx context.Context, entities []*models.Entity) error {
	ctx, span := tracing.StartSpan(ctx, "graph.Projector.ProjectEntities")
	defer span.End()

	if len(entities) == 0 {
		return nil
	}

	byKind := make(map[models.EntityKind][]*models.Entity)
	for _, e := range entities {
		byKind[e.Kind] = append(byKind[e.Kind], e)
	}

	_, err := p.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		for kind, kindEntities := range byKind {
			batch := make([]map[string]any, len(kindEntities))
			for i, e := range kindEntities {
				props := map[string]any{
					"id":                 e.ID,
					"kind":               string(e.Kind),
					"canonical_name":     e.CanonicalName,
					"display_name":       e.DisplayName,
					"confidence":         e.Confidence,
					"needs_verification": e.NeedsVerification,
				}
				if e.Address != nil {
					props["address"] = *e.Address
				}
				batch[i] = props
			}

			cypher := fmt.Sprintf(`
				UNWIND $batch AS props
				MERGE (e:Entity {id: props.id})
				SET e:%s, e = props
			`, kindLabel(kind))

			if _, err := tx.Run(ctx, cypher, map[string]any{"batch": batch}); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})

	if err != nil {
		p.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"batch_size": len(entities),
		}).Error("Failed to project entity batch into graph")
		return fmt.Errorf("failed to project entity batch: %w", err)
	}

	return nil
}

// kindLabel maps an entity kind to a Cypher node label.
func kindLabel(kind models.EntityKind) string {
	label := sanitizeLabel(string(kind))
	if label == "Entity" {
		return label
	}
	return strings.ToUpper(label[:1]) + label[1:]
}

// sanitizeLabel ensures the label is safe for Cypher
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "Entity"
	}
	return b.String()
}
