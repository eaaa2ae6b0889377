package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/urok-hub/urok-marketplace/internal/domain/plan"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CREATE PLAN COMMAND
// A tutor drafts a lesson plan for a student, optionally with an ordered
// set of milestones. The plan is born in "draft"; milestones start with
// empty histories and enter "pending" on their first transition.
// ══════════════════════════════════════════════════════════════════════════════

// PlanMilestoneInput describes one milestone of a new plan.
type PlanMilestoneInput struct {
	// Title is the milestone title.
	Title string
}

// CreatePlanCommand contains the data to create a lesson plan.
type CreatePlanCommand struct {
	// TutorID is the internal ID of the tutor drafting the plan.
	TutorID string

	// StudentID is the internal ID of the student the plan is for.
	StudentID string

	// Title is the plan title.
	Title string

	// Subject is the plan subject code.
	Subject string

	// Milestones are the initial milestones, in order.
	Milestones []PlanMilestoneInput

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c CreatePlanCommand) Validate() error {
	if c.TutorID == "" {
		return errors.New("create_plan: tutor_id is required")
	}
	if c.StudentID == "" {
		return errors.New("create_plan: student_id is required")
	}
	if c.Title == "" {
		return errors.New("create_plan: title is required")
	}
	return nil
}

// CreatePlanResult contains the result of creating a plan.
type CreatePlanResult struct {
	// Plan is the created plan with its initial "draft" record.
	Plan *plan.Plan

	// Milestones are the created milestones, in ordinal order.
	Milestones []*plan.Milestone

	// Events contains domain events generated.
	Events []shared.Event
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CreatePlanHandler handles the CreatePlanCommand.
type CreatePlanHandler struct {
	planRepo       plan.Repository
	milestoneRepo  plan.MilestoneRepository
	eventPublisher shared.EventPublisher
}

// NewCreatePlanHandler creates a new CreatePlanHandler.
func NewCreatePlanHandler(
	planRepo plan.Repository,
	milestoneRepo plan.MilestoneRepository,
	eventPublisher shared.EventPublisher,
) *CreatePlanHandler {
	return &CreatePlanHandler{
		planRepo:       planRepo,
		milestoneRepo:  milestoneRepo,
		eventPublisher: eventPublisher,
	}
}

// Handle executes the create plan command.
func (h *CreatePlanHandler) Handle(ctx context.Context, cmd CreatePlanCommand) (*CreatePlanResult, error) {
	// Validate command
	if err := cmd.Validate(); err != nil {
		return nil, err
	}

	newPlan, err := plan.NewPlan(plan.NewPlanParams{
		ID:        uuid.NewString(),
		TutorID:   shared.TutorID(cmd.TutorID),
		StudentID: shared.StudentID(cmd.StudentID),
		Title:     cmd.Title,
		Subject:   shared.Subject(cmd.Subject),
	})
	if err != nil {
		return nil, err
	}

	// Build all milestones before touching storage so a bad title fails
	// the whole command without partial writes.
	milestones := make([]*plan.Milestone, 0, len(cmd.Milestones))
	for i, in := range cmd.Milestones {
		m, err := plan.NewMilestone(plan.NewMilestoneParams{
			ID:      uuid.NewString(),
			PlanID:  newPlan.ID,
			Title:   in.Title,
			Ordinal: i + 1,
		})
		if err != nil {
			return nil, err
		}
		milestones = append(milestones, m)
	}

	if err := h.planRepo.Create(ctx, newPlan); err != nil {
		return nil, fmt.Errorf("create_plan: failed to create plan: %w", err)
	}
	for _, m := range milestones {
		if err := h.milestoneRepo.Create(ctx, m); err != nil {
			return nil, fmt.Errorf("create_plan: failed to create milestone %d: %w", m.Ordinal, err)
		}
	}

	result := &CreatePlanResult{
		Plan:       newPlan,
		Milestones: milestones,
		Events:     make([]shared.Event, 0, 1),
	}

	event := shared.NewPlanCreatedEvent(newPlan.ID, cmd.TutorID, cmd.StudentID, newPlan.Title)
	if cmd.CorrelationID != "" {
		event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, event)

	if h.eventPublisher != nil {
		_ = h.eventPublisher.Publish(event)
	}

	return result, nil
}
