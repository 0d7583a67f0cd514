package shared

import (
	"encoding/json"
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the domain.
const (
	// Progress events
	EventProgressUpdated EventType = "progress.updated"

	// EventLessonCompleted is a legacy signal shape kept alongside
	// progress.updated. Both carry the same consumer contract; they are
	// deliberately not merged until the relationship is clarified with
	// downstream consumers.
	EventLessonCompleted EventType = "progress.lesson_completed"

	// Achievement events
	EventAchievementAwarded EventType = "achievement.awarded"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	Version       int       `json:"version"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
		Version:     1,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Progress Events
// ═══════════════════════════════════════════════════════════════════════════

// ProgressUpdatedEvent is emitted when an entity completes for a user,
// both for directly tracked completions and for completions reached by
// upward propagation. It is transient: it exists only on the event bus.
type ProgressUpdatedEvent struct {
	BaseEvent
	UserID     string     `json:"user_id"`
	EntityID   string     `json:"entity_id"`
	EntityType EntityType `json:"entity_type"`
}

// Payload implements Event interface.
func (e ProgressUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":     e.UserID,
		"entity_id":   e.EntityID,
		"entity_type": string(e.EntityType),
	}
}

// NewProgressUpdatedEvent creates a new ProgressUpdatedEvent.
func NewProgressUpdatedEvent(userID, entityID string, entityType EntityType) ProgressUpdatedEvent {
	return ProgressUpdatedEvent{
		BaseEvent:  NewBaseEvent(EventProgressUpdated, userID),
		UserID:     userID,
		EntityID:   entityID,
		EntityType: entityType,
	}
}

// LessonCompletedEvent is the legacy lesson-completion signal. It is emitted
// in addition to ProgressUpdatedEvent whenever a LESSON entity completes.
type LessonCompletedEvent struct {
	BaseEvent
	UserID   string `json:"user_id"`
	LessonID string `json:"lesson_id"`
}

// Payload implements Event interface.
func (e LessonCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":   e.UserID,
		"lesson_id": e.LessonID,
	}
}

// NewLessonCompletedEvent creates a new LessonCompletedEvent.
func NewLessonCompletedEvent(userID, lessonID string) LessonCompletedEvent {
	return LessonCompletedEvent{
		BaseEvent: NewBaseEvent(EventLessonCompleted, userID),
		UserID:    userID,
		LessonID:  lessonID,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievement Events
// ═══════════════════════════════════════════════════════════════════════════

// AchievementAwardedEvent is emitted exactly once when a user earns an
// achievement. Downstream consumers (notifications, email, UI) subscribe
// to this; re-evaluation of an already-awarded achievement never re-emits it.
type AchievementAwardedEvent struct {
	BaseEvent
	UserID        string    `json:"user_id"`
	AchievementID string    `json:"achievement_id"`
	ObtainedAt    time.Time `json:"obtained_at"`
}

// Payload implements Event interface.
func (e AchievementAwardedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"achievement_id": e.AchievementID,
		"obtained_at":    e.ObtainedAt.Format(time.RFC3339),
	}
}

// NewAchievementAwardedEvent creates a new AchievementAwardedEvent.
func NewAchievementAwardedEvent(userID, achievementID string, obtainedAt time.Time) AchievementAwardedEvent {
	return AchievementAwardedEvent{
		BaseEvent:     NewBaseEvent(EventAchievementAwarded, userID),
		UserID:        userID,
		AchievementID: achievementID,
		ObtainedAt:    obtainedAt,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Event Envelope (for serialization and transport)
// ═══════════════════════════════════════════════════════════════════════════

// EventEnvelope wraps an event for transport/storage.
type EventEnvelope struct {
	ID            string          `json:"id"`
	Type          EventType       `json:"type"`
	AggregateID   string          `json:"aggregate_id"`
	Timestamp     time.Time       `json:"timestamp"`
	Version       int             `json:"version"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// EventHandler is a function that handles an event.
type EventHandler func(event Event) error

// EventPublisher defines the interface for publishing events.
type EventPublisher interface {
	// Publish sends an event to subscribers.
	Publish(event Event) error
}

// EventSubscriber defines the interface for subscribing to events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
//
// Delivery contract: at-least-once to all handlers registered at publish
// time, per-publisher ordering preserved, no persistence and no replay.
type EventBus interface {
	EventPublisher
	EventSubscriber
}
