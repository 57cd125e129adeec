package events

// EventType defines the type of event
type EventType string

const (
	// Entity events
	EventTypeEntityCreated EventType = "entity.created"
	EventTypeEntityMatched EventType = "entity.matched"
	EventTypeReviewQueued  EventType = "entity.review_queued"

	// Relationship events
	EventTypeRelationshipObserved EventType = "relationship.observed"
)
