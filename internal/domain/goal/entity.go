// Package goal содержит доменную модель учебной цели.
// Цель привязывается к уроку и проходит согласование между студентом и
// репетитором; её жизненный цикл отслеживается историей статусов.
package goal

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: GOAL
// Цель создаётся с пустой историей: первый переход обязан вести в
// начальный статус proposed.
// ══════════════════════════════════════════════════════════════════════════════

// Goal - учебная цель, привязанная к уроку.
type Goal struct {
	// ID - уникальный идентификатор цели (UUID в строковом формате).
	ID string

	// LessonID - урок, к которому привязана цель.
	LessonID string

	// Description - формулировка цели.
	Description string

	// CurrentStatusID - персистентный указатель на текущую запись статуса.
	// Пустая строка, пока история пуста.
	CurrentStatusID string

	// History - полная история статусов цели.
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
	// ErrInvalidDescription - невалидная формулировка цели.
	ErrInvalidDescription = errors.New("goal: description must be 1-500 chars")

	// ErrMissingLesson - цель не может существовать без урока.
	ErrMissingLesson = errors.New("goal: lesson id is required")
)

// NewGoalParams содержит параметры для создания новой цели.
type NewGoalParams struct {
	ID          string
	LessonID    string
	Description string
}

// NewGoal создаёт новую цель с пустой историей статусов.
func NewGoal(params NewGoalParams) (*Goal, error) {
	if params.ID == "" {
		return nil, errors.New("goal: id is required")
	}
	if params.LessonID == "" {
		return nil, ErrMissingLesson
	}

	description := strings.TrimSpace(params.Description)
	if len(description) == 0 || len(description) > 500 {
		return nil, ErrInvalidDescription
	}

	now := time.Now().UTC()

	return &Goal{
		ID:          params.ID,
		LessonID:    params.LessonID,
		Description: description,
		History:     lifecycle.EmptyHistory(),
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// Current возвращает текущую запись статуса или nil до первого перехода.
func (g *Goal) Current() *lifecycle.StatusRecord {
	return g.History.Current()
}

// Status возвращает текущий статус цели и признак его наличия.
func (g *Goal) Status() (lifecycle.Status, bool) {
	return g.History.CurrentStatus()
}

// IsAgreed возвращает true, если цель согласована обеими сторонами.
func (g *Goal) IsAgreed() bool {
	s, ok := g.Status()
	return ok && s == lifecycle.GoalAgreed
}

// PointerDiverged проверяет расхождение указателя с историей.
func (g *Goal) PointerDiverged() bool {
	cur := g.History.Current()
	if cur == nil {
		return g.CurrentStatusID != ""
	}
	return g.CurrentStatusID != cur.ID
}

// String возвращает строковое представление цели для логирования.
func (g *Goal) String() string {
	status, ok := g.Status()
	if !ok {
		status = "(none)"
	}
	return fmt.Sprintf("Goal{ID: %s, Lesson: %s, Status: %s}", g.ID, g.LessonID, status)
}
