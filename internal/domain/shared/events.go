// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types. Each event represents a fact about an owner entity's
// lifecycle that already happened; handlers must not be able to veto it.
const (
	// Lesson events
	EventLessonRequested     EventType = "lesson.requested"
	EventLessonStatusChanged EventType = "lesson.status_changed"

	// Lesson plan events
	EventPlanCreated       EventType = "plan.created"
	EventPlanStatusChanged EventType = "plan.status_changed"

	// Milestone events
	EventMilestoneStatusChanged EventType = "milestone.status_changed"

	// Goal events
	EventGoalStatusChanged EventType = "goal.status_changed"

	// System events
	EventPointerRepaired EventType = "lifecycle.pointer_repaired"
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

// EventHandler processes a published event.
type EventHandler func(event Event) error

// EventPublisher publishes domain events to interested subscribers.
type EventPublisher interface {
	Publish(event Event) error
}

// EventSubscriber registers handlers for published events.
type EventSubscriber interface {
	// Subscribe registers a handler for an event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error
}

// EventBus combines publishing and subscribing.
type EventBus interface {
	EventPublisher
	EventSubscriber
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
// Status Change Events
// One event shape shared by all four owner kinds; the kind travels in the
// payload so subscribers can filter without four parallel event types.
// ═══════════════════════════════════════════════════════════════════════════

// StatusChangedEvent is emitted after a status transition has been persisted.
type StatusChangedEvent struct {
	BaseEvent
	EntityKind     string `json:"entity_kind"`
	StatusRecordID string `json:"status_record_id"`
	FromStatus     string `json:"from_status,omitempty"` // empty on first transition
	ToStatus       string `json:"to_status"`
	ActorID        string `json:"actor_id,omitempty"`
	ActorRole      string `json:"actor_role,omitempty"`
}

// Payload implements Event interface.
func (e StatusChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"entity_kind":      e.EntityKind,
		"status_record_id": e.StatusRecordID,
		"from_status":      e.FromStatus,
		"to_status":        e.ToStatus,
		"actor_id":         e.ActorID,
		"actor_role":       e.ActorRole,
	}
}

// statusChangedEventType maps an owner kind to its event type.
func statusChangedEventType(entityKind string) EventType {
	switch entityKind {
	case "lesson":
		return EventLessonStatusChanged
	case "lesson_plan":
		return EventPlanStatusChanged
	case "milestone":
		return EventMilestoneStatusChanged
	case "goal":
		return EventGoalStatusChanged
	default:
		return EventType(entityKind + ".status_changed")
	}
}

// NewStatusChangedEvent creates a status change event for an owner entity.
func NewStatusChangedEvent(entityKind, ownerID, recordID, fromStatus, toStatus string, actor Actor) StatusChangedEvent {
	return StatusChangedEvent{
		BaseEvent:      NewBaseEvent(statusChangedEventType(entityKind), ownerID),
		EntityKind:     entityKind,
		StatusRecordID: recordID,
		FromStatus:     fromStatus,
		ToStatus:       toStatus,
		ActorID:        actor.ID,
		ActorRole:      string(actor.Role),
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Lesson Events
// ═══════════════════════════════════════════════════════════════════════════

// LessonRequestedEvent is emitted when a new lesson is created from a quote.
type LessonRequestedEvent struct {
	BaseEvent
	StudentID string `json:"student_id"`
	TutorID   string `json:"tutor_id"`
	Subject   string `json:"subject"`
}

// Payload implements Event interface.
func (e LessonRequestedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id": e.StudentID,
		"tutor_id":   e.TutorID,
		"subject":    e.Subject,
	}
}

// NewLessonRequestedEvent creates a new LessonRequestedEvent.
func NewLessonRequestedEvent(lessonID, studentID, tutorID, subject string) LessonRequestedEvent {
	return LessonRequestedEvent{
		BaseEvent: NewBaseEvent(EventLessonRequested, lessonID),
		StudentID: studentID,
		TutorID:   tutorID,
		Subject:   subject,
	}
}

// PlanCreatedEvent is emitted when a tutor creates a lesson plan.
type PlanCreatedEvent struct {
	BaseEvent
	TutorID   string `json:"tutor_id"`
	StudentID string `json:"student_id"`
	Title     string `json:"title"`
}

// Payload implements Event interface.
func (e PlanCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"tutor_id":   e.TutorID,
		"student_id": e.StudentID,
		"title":      e.Title,
	}
}

// NewPlanCreatedEvent creates a new PlanCreatedEvent.
func NewPlanCreatedEvent(planID, tutorID, studentID, title string) PlanCreatedEvent {
	return PlanCreatedEvent{
		BaseEvent: NewBaseEvent(EventPlanCreated, planID),
		TutorID:   tutorID,
		StudentID: studentID,
		Title:     title,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// System Events
// ═══════════════════════════════════════════════════════════════════════════

// PointerRepairedEvent is emitted when the reconciliation job repairs a
// diverged current-status pointer. History is authoritative.
type PointerRepairedEvent struct {
	BaseEvent
	EntityKind     string `json:"entity_kind"`
	StalePointerID string `json:"stale_pointer_id"`
	RepairedToID   string `json:"repaired_to_id"`
	DetectedByJob  string `json:"detected_by_job"`
}

// Payload implements Event interface.
func (e PointerRepairedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"entity_kind":      e.EntityKind,
		"stale_pointer_id": e.StalePointerID,
		"repaired_to_id":   e.RepairedToID,
		"detected_by_job":  e.DetectedByJob,
	}
}

// NewPointerRepairedEvent creates a new PointerRepairedEvent.
func NewPointerRepairedEvent(entityKind, ownerID, staleID, repairedToID, jobName string) PointerRepairedEvent {
	return PointerRepairedEvent{
		BaseEvent:      NewBaseEvent(EventPointerRepaired, ownerID),
		EntityKind:     entityKind,
		StalePointerID: staleID,
		RepairedToID:   repairedToID,
		DetectedByJob:  jobName,
	}
}
