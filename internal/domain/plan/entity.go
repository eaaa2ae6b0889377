// Package plan содержит доменную модель плана занятий и его вех.
// План составляется репетитором для конкретного студента; вехи разбивают
// план на проверяемые шаги. Оба вида отслеживаются историей статусов.
package plan

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LESSON PLAN
// ══════════════════════════════════════════════════════════════════════════════

// Plan - план занятий репетитора для студента.
type Plan struct {
	// ID - уникальный идентификатор плана (UUID в строковом формате).
	ID string

	// TutorID - репетитор, составивший план.
	TutorID shared.TutorID

	// StudentID - студент, для которого составлен план.
	StudentID shared.StudentID

	// Title - название плана.
	Title string

	// Subject - предмет плана.
	Subject shared.Subject

	// CurrentStatusID - персистентный указатель на текущую запись статуса.
	CurrentStatusID string

	// History - полная история статусов плана.
	History *lifecycle.History

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidTitle - невалидное название плана или вехи.
	ErrInvalidTitle = errors.New("plan: title must be 1-200 chars")

	// ErrInvalidTutorID - невалидный идентификатор репетитора.
	ErrInvalidTutorID = errors.New("plan: invalid tutor id")

	// ErrInvalidStudentID - невалидный идентификатор студента.
	ErrInvalidStudentID = errors.New("plan: invalid student id")

	// ErrMissingPlan - веха не может существовать без плана.
	ErrMissingPlan = errors.New("plan: milestone requires a plan id")

	// ErrInvalidOrdinal - невалидный порядковый номер вехи.
	ErrInvalidOrdinal = errors.New("plan: milestone ordinal must be positive")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// План создаётся сразу с начальной записью статуса draft.
// ══════════════════════════════════════════════════════════════════════════════

// NewPlanParams содержит параметры для создания нового плана.
type NewPlanParams struct {
	ID        string
	TutorID   shared.TutorID
	StudentID shared.StudentID
	Title     string
	Subject   shared.Subject
}

// NewPlan создаёт новый план занятий с валидацией полей и начальной
// записью статуса draft.
func NewPlan(params NewPlanParams) (*Plan, error) {
	if params.ID == "" {
		return nil, errors.New("plan: id is required")
	}
	if !params.TutorID.IsValid() {
		return nil, ErrInvalidTutorID
	}
	if !params.StudentID.IsValid() {
		return nil, ErrInvalidStudentID
	}

	title := strings.TrimSpace(params.Title)
	if len(title) == 0 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}

	now := time.Now().UTC()

	initial, err := lifecycle.NewRecord(lifecycle.PlanDescriptor(), lifecycle.NewRecordParams{
		OwnerID:   params.ID,
		Status:    lifecycle.PlanDraft,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("plan: failed to create initial status: %w", err)
	}

	history, err := lifecycle.EmptyHistory().Append(initial)
	if err != nil {
		return nil, err
	}

	return &Plan{
		ID:              params.ID,
		TutorID:         params.TutorID,
		StudentID:       params.StudentID,
		Title:           title,
		Subject:         params.Subject.Normalize(),
		CurrentStatusID: initial.ID,
		History:         history,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// Current возвращает текущую запись статуса, выведенную из истории.
func (p *Plan) Current() *lifecycle.StatusRecord {
	return p.History.Current()
}

// Status возвращает текущий статус плана.
func (p *Plan) Status() lifecycle.Status {
	if s, ok := p.History.CurrentStatus(); ok {
		return s
	}
	return ""
}

// IsActive возвращает true, если план выполняется.
func (p *Plan) IsActive() bool {
	return p.Status() == lifecycle.PlanActive
}

// PointerDiverged проверяет расхождение указателя с историей.
func (p *Plan) PointerDiverged() bool {
	cur := p.History.Current()
	if cur == nil {
		return p.CurrentStatusID != ""
	}
	return p.CurrentStatusID != cur.ID
}

// String возвращает строковое представление плана для логирования.
func (p *Plan) String() string {
	return fmt.Sprintf("Plan{ID: %s, Title: %q, Status: %s}", p.ID, p.Title, p.Status())
}

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE
// Веха создаётся с пустой историей: до начала работы у неё нет ни одной
// записи, первый переход обязан вести в начальный статус pending.
// ══════════════════════════════════════════════════════════════════════════════

// Milestone - веха плана занятий.
type Milestone struct {
	// ID - уникальный идентификатор вехи (UUID в строковом формате).
	ID string

	// PlanID - план, которому принадлежит веха.
	PlanID string

	// Title - название вехи.
	Title string

	// Ordinal - порядковый номер вехи внутри плана (с единицы).
	Ordinal int

	// CurrentStatusID - персистентный указатель на текущую запись статуса.
	// Пустая строка, пока история пуста.
	CurrentStatusID string

	// History - полная история статусов вехи.
	History *lifecycle.History

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewMilestoneParams содержит параметры для создания новой вехи.
type NewMilestoneParams struct {
	ID      string
	PlanID  string
	Title   string
	Ordinal int
}

// NewMilestone создаёт новую веху с пустой историей статусов.
func NewMilestone(params NewMilestoneParams) (*Milestone, error) {
	if params.ID == "" {
		return nil, errors.New("plan: milestone id is required")
	}
	if params.PlanID == "" {
		return nil, ErrMissingPlan
	}

	title := strings.TrimSpace(params.Title)
	if len(title) == 0 || len(title) > 200 {
		return nil, ErrInvalidTitle
	}
	if params.Ordinal < 1 {
		return nil, ErrInvalidOrdinal
	}

	now := time.Now().UTC()

	return &Milestone{
		ID:        params.ID,
		PlanID:    params.PlanID,
		Title:     title,
		Ordinal:   params.Ordinal,
		History:   lifecycle.EmptyHistory(),
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Current возвращает текущую запись статуса или nil до первого перехода.
func (m *Milestone) Current() *lifecycle.StatusRecord {
	return m.History.Current()
}

// Status возвращает текущий статус вехи и признак его наличия.
func (m *Milestone) Status() (lifecycle.Status, bool) {
	return m.History.CurrentStatus()
}

// IsStarted возвращает true, если у вехи уже есть хотя бы одна запись.
func (m *Milestone) IsStarted() bool {
	return !m.History.IsEmpty()
}

// PointerDiverged проверяет расхождение указателя с историей.
func (m *Milestone) PointerDiverged() bool {
	cur := m.History.Current()
	if cur == nil {
		return m.CurrentStatusID != ""
	}
	return m.CurrentStatusID != cur.ID
}

// String возвращает строковое представление вехи для логирования.
func (m *Milestone) String() string {
	status, ok := m.Status()
	if !ok {
		status = "(none)"
	}
	return fmt.Sprintf("Milestone{ID: %s, Plan: %s, Ordinal: %d, Status: %s}", m.ID, m.PlanID, m.Ordinal, status)
}
