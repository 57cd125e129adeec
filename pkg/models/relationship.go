package models

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/database"
)

// EntityRelationship is a directed, typed edge between two entities.
// Edges are deduplicated by (source, target, type); repeated observations
// raise confidence and append source provenance instead of creating
// duplicate rows.
type EntityRelationship struct {
	ID               string                   `json:"id" db:"id"`
	SourceEntityID   string                   `json:"source_entity_id" db:"source_entity_id"`
	TargetEntityID   string                   `json:"target_entity_id" db:"target_entity_id"`
	RelationshipType string                   `json:"relationship_type" db:"relationship_type"`
	Confidence       float64                  `json:"confidence" db:"confidence"`
	Sources          database.JSONB[[]string] `json:"sources" db:"sources"`
	CreatedAt        time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at" db:"updated_at"`
}

// CreateRelationshipRequest records one observation of an edge.
type CreateRelationshipRequest struct {
	SourceEntityID   string  `json:"source_entity_id" validate:"required"`
	TargetEntityID   string  `json:"target_entity_id" validate:"required"`
	RelationshipType string  `json:"relationship_type" validate:"required"`
	Confidence       float64 `json:"confidence" validate:"gte=0,lte=1"`
	Source           string  `json:"source" validate:"required"`
}

// RegisteredAgentService is a known commercial registered-agent service.
// Shared use of one of these carries no identity information, so the
// registered-agent signal is suppressed for them.
type RegisteredAgentService struct {
	ID             string    `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
