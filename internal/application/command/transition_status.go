// Package command contains write operations (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
	"github.com/urok-hub/urok-marketplace/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// TRANSITION STATUS COMMAND
// The single write path for status records. Every status change of every
// owner kind (lesson, lesson_plan, milestone, goal) goes through this
// handler; nothing else appends records or moves the current pointer.
// ══════════════════════════════════════════════════════════════════════════════

// TransitionStatusCommand contains the data for one status transition.
type TransitionStatusCommand struct {
	// Kind is the owner entity kind.
	Kind lifecycle.EntityKind

	// OwnerID is the ID of the owner entity.
	OwnerID string

	// Status is the requested target status.
	Status lifecycle.Status

	// Context is opaque transition data (cancellation reason, tutor
	// comment, etc). Stored verbatim, never interpreted.
	Context map[string]any

	// Actor is the verified caller identity from the external auth layer.
	Actor shared.Actor

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c TransitionStatusCommand) Validate() error {
	if !c.Kind.IsValid() {
		return &lifecycle.ValidationError{Kind: c.Kind, Field: "kind", Reason: "unknown entity kind"}
	}
	if c.OwnerID == "" {
		return &lifecycle.ValidationError{Kind: c.Kind, Field: "owner_id", Reason: "owner id is required"}
	}
	if c.Status == "" {
		return &lifecycle.ValidationError{Kind: c.Kind, Field: "status", Reason: "status is required"}
	}
	if !c.Actor.IsValid() {
		return &lifecycle.ValidationError{Kind: c.Kind, Field: "actor", Reason: "actor id and role are required"}
	}
	return nil
}

// TransitionStatusResult contains the result of a successful transition.
type TransitionStatusResult struct {
	// Record is the status record that was persisted.
	Record *lifecycle.StatusRecord

	// From is the previous status (nil if this was the first record).
	From *lifecycle.Status

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// TransitionStatusHandler handles the TransitionStatusCommand.
type TransitionStatusHandler struct {
	store          lifecycle.Store
	validator      *lifecycle.Validator
	eventPublisher shared.EventPublisher
	clock          timeutil.Clock
}

// NewTransitionStatusHandler creates a new TransitionStatusHandler.
func NewTransitionStatusHandler(
	store lifecycle.Store,
	validator *lifecycle.Validator,
	eventPublisher shared.EventPublisher,
	clock timeutil.Clock,
) *TransitionStatusHandler {
	if validator == nil {
		validator = lifecycle.DefaultValidator()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}

	return &TransitionStatusHandler{
		store:          store,
		validator:      validator,
		eventPublisher: eventPublisher,
		clock:          clock,
	}
}

// Handle executes the status transition. A rejected transition leaves no
// side effects: the record is built and persisted only after the pair
// (current, requested) passes the kind's transition table, and the insert
// plus pointer update happen in one storage transaction.
func (h *TransitionStatusHandler) Handle(ctx context.Context, cmd TransitionStatusCommand) (*TransitionStatusResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	// Load the current record; nil means the owner has no history yet and
	// the requested status must be one of the kind's initial statuses.
	current, err := h.store.CurrentRecord(ctx, cmd.Kind, cmd.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("transition_status: failed to load current status: %w", err)
	}

	var from *lifecycle.Status
	expectedCurrentID := ""
	if current != nil {
		from = &current.Status
		expectedCurrentID = current.ID
	}

	// Check the transition table before anything is written.
	if err := h.validator.ValidateTransition(cmd.Kind, from, cmd.Status); err != nil {
		return nil, err
	}

	// Build the record with a server-assigned timestamp. Client clocks are
	// not trusted for history ordering.
	record, err := lifecycle.NewRecord(h.validator.Descriptor(cmd.Kind), lifecycle.NewRecordParams{
		OwnerID:   cmd.OwnerID,
		Status:    cmd.Status,
		Context:   cmd.Context,
		CreatedAt: h.clock.Now(),
	})
	if err != nil {
		return nil, err
	}

	// Insert the record and move the pointer in one transaction. The
	// conditional pointer update linearizes concurrent transitions on the
	// same owner: the loser's record is never persisted.
	if err := h.store.AppendStatus(ctx, record, expectedCurrentID); err != nil {
		var concurrent *lifecycle.ConcurrentTransitionError
		if errors.As(err, &concurrent) {
			return nil, err
		}
		return nil, fmt.Errorf("transition_status: failed to append status: %w", err)
	}

	result := &TransitionStatusResult{
		Record: record,
		From:   from,
		Events: make([]shared.Event, 0, 1),
	}

	fromStatus := ""
	if from != nil {
		fromStatus = from.String()
	}
	event := shared.NewStatusChangedEvent(
		cmd.Kind.String(),
		cmd.OwnerID,
		record.ID,
		fromStatus,
		cmd.Status.String(),
		cmd.Actor,
	)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)

	// Publish after commit. The transition is already a fact; subscribers
	// cannot veto it, so publish errors are not propagated.
	if h.eventPublisher != nil {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
