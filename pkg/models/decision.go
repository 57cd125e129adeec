package models

import (
	"time"

	"github.com/Ramsey-B/briar/pkg/database"
)

// ResolutionDecision is an immutable audit record of one resolution
// outcome. Write-once; used as training data for a future learned model.
type ResolutionDecision struct {
	ID           string                    `json:"id" db:"id"`
	Features     database.JSONB[Features]  `json:"features" db:"features"`
	EntityID     *string                   `json:"entity_id,omitempty" db:"entity_id"`
	Confidence   float64                   `json:"confidence" db:"confidence"`
	Signals      database.JSONB[[]Signal]  `json:"signals" db:"signals"`
	Method       MatchMethod               `json:"method" db:"method"`
	SourceType   SourceType                `json:"source_type" db:"source_type"`
	AutoAccepted bool                      `json:"auto_accepted" db:"auto_accepted"`
	CreatedNew   bool                      `json:"created_new" db:"created_new"`
	CreatedAt    time.Time                 `json:"created_at" db:"created_at"`
}

// ReviewStatus tracks a review queue entry through the human workflow.
type ReviewStatus string

const (
	ReviewPending  ReviewStatus = "pending"
	ReviewResolved ReviewStatus = "resolved"
	ReviewRejected ReviewStatus = "rejected"
)

// ReviewQueueEntry is a pending human decision, created when confidence
// falls in the review band.
type ReviewQueueEntry struct {
	ID                string                   `json:"id" db:"id"`
	Features          database.JSONB[Features] `json:"features" db:"features"`
	CandidateEntityID string                   `json:"candidate_entity_id" db:"candidate_entity_id"`
	Confidence        float64                  `json:"confidence" db:"confidence"`
	Signals           database.JSONB[[]Signal] `json:"signals" db:"signals"`
	SourceType        SourceType               `json:"source_type" db:"source_type"`
	Status            ReviewStatus             `json:"status" db:"status"`
	ReviewedBy        *string                  `json:"reviewed_by,omitempty" db:"reviewed_by"`
	Notes             *string                  `json:"notes,omitempty" db:"notes"`
	CreatedAt         time.Time                `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time                `json:"updated_at" db:"updated_at"`
}

// ResolveReviewRequest is the human verdict on a review queue entry.
type ResolveReviewRequest struct {
	Accept     bool    `json:"accept"`
	ReviewedBy string  `json:"reviewed_by" validate:"required"`
	Notes      *string `json:"notes,omitempty"`
}

// ReviewQueueListResponse is the response for listing review queue entries
type ReviewQueueListResponse struct {
	Items      []ReviewQueueEntry `json:"items"`
	TotalCount int                `json:"total_count"`
	Page       int                `json:"page"`
	PageSize   int                `json:"page_size"`
}
