package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/urok-hub/urok-marketplace/internal/domain/lesson"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST LESSON COMMAND
// Creates a lesson from an accepted tutor quote. The lesson is born with
// its initial "requested" status record - creation and the first record
// are a single unit, a lesson without history does not exist.
// ══════════════════════════════════════════════════════════════════════════════

// RequestLessonCommand contains the data to create a lesson.
type RequestLessonCommand struct {
	// QuoteID is the tutor quote the lesson is created from.
	QuoteID string

	// RequestID is the original student request (through the quote).
	RequestID string

	// StudentID is the internal ID of the student.
	StudentID string

	// TutorID is the internal ID of the tutor.
	TutorID string

	// Subject is the lesson subject code.
	Subject string

	// ScheduledAt is the agreed lesson time.
	ScheduledAt time.Time

	// DurationMinutes is the agreed lesson duration.
	DurationMinutes int

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c RequestLessonCommand) Validate() error {
	if c.QuoteID == "" {
		return errors.New("request_lesson: quote_id is required")
	}
	if c.StudentID == "" {
		return errors.New("request_lesson: student_id is required")
	}
	if c.TutorID == "" {
		return errors.New("request_lesson: tutor_id is required")
	}
	if c.Subject == "" {
		return errors.New("request_lesson: subject is required")
	}
	return nil
}

// RequestLessonResult contains the result of creating a lesson.
type RequestLessonResult struct {
	// Lesson is the created lesson with its initial status record.
	Lesson *lesson.Lesson

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// RequestLessonHandler handles the RequestLessonCommand.
type RequestLessonHandler struct {
	lessonRepo     lesson.Repository
	eventPublisher shared.EventPublisher
}

// NewRequestLessonHandler creates a new RequestLessonHandler.
func NewRequestLessonHandler(
	lessonRepo lesson.Repository,
	eventPublisher shared.EventPublisher,
) *RequestLessonHandler {
	return &RequestLessonHandler{
		lessonRepo:     lessonRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the request lesson command.
func (h *RequestLessonHandler) Handle(ctx context.Context, cmd RequestLessonCommand) (*RequestLessonResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Build the lesson; the factory validates fields and seeds the
	// initial "requested" record.
	newLesson, err := lesson.NewLesson(lesson.NewLessonParams{
		ID:              uuid.NewString(),
		QuoteID:         cmd.QuoteID,
		RequestID:       cmd.RequestID,
		StudentID:       shared.StudentID(cmd.StudentID),
		TutorID:         shared.TutorID(cmd.TutorID),
		Subject:         shared.Subject(cmd.Subject),
		ScheduledAt:     cmd.ScheduledAt,
		DurationMinutes: cmd.DurationMinutes,
	})
	if err != nil {
		return nil, err
	}

	// Persist the lesson together with its initial status record.
	if err := h.lessonRepo.Create(ctx, newLesson); err != nil {
		return nil, fmt.Errorf("request_lesson: failed to create lesson: %w", err)
	}

	result := &RequestLessonResult{
		Lesson: newLesson,
		Events: make([]shared.Event, 0, 1),
	}

	event := shared.NewLessonRequestedEvent(
		newLesson.ID,
		cmd.StudentID,
		cmd.TutorID,
		newLesson.Subject.String(),
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)

	if h.eventPublisher != nil {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
