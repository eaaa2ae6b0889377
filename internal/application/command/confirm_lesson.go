package command

import (
	"context"
	"errors"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CONFIRM LESSON COMMAND
// Thin convenience wrapper over the generic transition handler for the
// most frequent marketplace flow: a tutor confirms a requested lesson.
// All validation and persistence rules live in TransitionStatusHandler.
// ══════════════════════════════════════════════════════════════════════════════

// ConfirmLessonCommand contains the data to confirm a lesson.
type ConfirmLessonCommand struct {
	// LessonID is the lesson being confirmed.
	LessonID string

	// Actor is the tutor confirming the lesson.
	Actor shared.Actor

	// Comment is an optional message from the tutor to the student.
	Comment string

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c ConfirmLessonCommand) Validate() error {
	if c.LessonID == "" {
		return errors.New("confirm_lesson: lesson_id is required")
	}
	if c.Actor.Role != shared.RoleTutor {
		return errors.New("confirm_lesson: only a tutor can confirm a lesson")
	}
	return nil
}

// ConfirmLessonHandler handles the ConfirmLessonCommand.
type ConfirmLessonHandler struct {
	transitions *TransitionStatusHandler
}

// NewConfirmLessonHandler creates a new ConfirmLessonHandler.
func NewConfirmLessonHandler(transitions *TransitionStatusHandler) *ConfirmLessonHandler {
	return &ConfirmLessonHandler{transitions: transitions}
}

// Handle executes the confirm lesson command.
func (h *ConfirmLessonHandler) Handle(ctx context.Context, cmd ConfirmLessonCommand) (*TransitionStatusResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	var transitionCtx map[string]any
	if cmd.Comment != "" {
		transitionCtx = map[string]any{"comment": cmd.Comment}
	}

	return h.transitions.Handle(ctx, TransitionStatusCommand{
		Kind:          lifecycle.KindLesson,
		OwnerID:       cmd.LessonID,
		Status:        lifecycle.LessonConfirmed,
		Context:       transitionCtx,
		Actor:         cmd.Actor,
		CorrelationID: cmd.CorrelationID,
	})
}
