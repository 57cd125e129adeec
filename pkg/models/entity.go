package models

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/database"
)

// EntityKind classifies the real-world party an entity represents
type EntityKind string

const (
	EntityKindLLC          EntityKind = "llc"
	EntityKindCorporation  EntityKind = "corporation"
	EntityKindGovernment   EntityKind = "government"
	EntityKindPartnership  EntityKind = "partnership"
	EntityKindPerson       EntityKind = "person"
	EntityKindOrganization EntityKind = "organization"
	EntityKindUnknown      EntityKind = "unknown"
)

// Entity is a canonical real-world party (company, LLC, government body,
// person). canonical_name is always the normalized form of some observed
// name. Entities are never hard-deleted; low-confidence entities are
// flagged needs_verification instead.
type Entity struct {
	ID                 string                          `json:"id" db:"id"`
	Kind               EntityKind                      `json:"kind" db:"kind"`
	CanonicalName      string                          `json:"canonical_name" db:"canonical_name"`
	DisplayName        string                          `json:"display_name" db:"display_name"`
	Address            *string                         `json:"address,omitempty" db:"address"`
	Confidence         float64                         `json:"confidence" db:"confidence"`
	VerificationSource *string                         `json:"verification_source,omitempty" db:"verification_source"`
	NeedsVerification  bool                            `json:"needs_verification" db:"needs_verification"`
	Attributes         database.JSONB[map[string]any]  `json:"attributes" db:"attributes"`
	CreatedAt          time.Time                       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time                       `json:"updated_at" db:"updated_at"`
}

// Attribute returns the string value of a fact-bag attribute, or "" when
// absent or not a string.
func (e *Entity) Attribute(key string) string {
	if e.Attributes.Data == nil {
		return ""
	}
	v, ok := e.Attributes.Data[key]
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// AttributeList returns a list-valued attribute, tolerating both []string
// and []any encodings (jsonb round-trips produce []any).
func (e *Entity) AttributeList(key string) []string {
	if e.Attributes.Data == nil {
		return nil
	}
	switch v := e.Attributes.Data[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// CreateEntityRequest is the request for creating an entity directly
// (bypassing resolution, e.g. manual entry).
type CreateEntityRequest struct {
	Kind               EntityKind     `json:"kind" validate:"required"`
	DisplayName        string         `json:"display_name" validate:"required"`
	Address            *string        `json:"address,omitempty"`
	VerificationSource *string        `json:"verification_source,omitempty"`
	Attributes         map[string]any `json:"attributes,omitempty"`
}

// EntityListResponse is the response for listing entities
type EntityListResponse struct {
	Items      []Entity `json:"items"`
	TotalCount int      `json:"total_count"`
	Page       int      `json:"page"`
	PageSize   int      `json:"page_size"`
}
