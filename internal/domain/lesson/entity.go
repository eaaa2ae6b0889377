// Package lesson содержит доменную модель урока маркетплейса Urok Hub.
// Урок рождается из заявки студента и котировки репетитора; его жизненный
// цикл отслеживается через append-only историю статусов пакета lifecycle.
package lesson

import (
	"errors"
	"fmt"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: LESSON
// ══════════════════════════════════════════════════════════════════════════════

// Lesson - урок, подтверждаемый и проводимый через жизненный цикл статусов.
type Lesson struct {
	// ID - уникальный идентификатор урока (UUID в строковом формате).
	ID string

	// QuoteID - котировка репетитора, из которой создан урок.
	QuoteID string

	// RequestID - исходная заявка студента (через котировку).
	RequestID string

	// StudentID - студент, заказавший урок.
	StudentID shared.StudentID

	// TutorID - репетитор, который проведёт урок.
	TutorID shared.TutorID

	// Subject - предмет урока.
	Subject shared.Subject

	// ScheduledAt - согласованное время проведения.
	ScheduledAt time.Time

	// DurationMinutes - длительность урока в минутах.
	DurationMinutes int

	// CurrentStatusID - персистентный указатель на текущую запись статуса.
	// Оптимизация чтения: концептуально текущий статус всегда выводится
	// из истории, указатель не является вторым источником истины.
	CurrentStatusID string

	// History - полная история статусов урока.
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
	// ErrInvalidStudentID - невалидный идентификатор студента.
	ErrInvalidStudentID = errors.New("lesson: invalid student id")

	// ErrInvalidTutorID - невалидный идентификатор репетитора.
	ErrInvalidTutorID = errors.New("lesson: invalid tutor id")

	// ErrInvalidSubject - невалидный предмет.
	ErrInvalidSubject = errors.New("lesson: invalid subject")

	// ErrInvalidDuration - невалидная длительность урока.
	ErrInvalidDuration = errors.New("lesson: duration must be 15-240 minutes")

	// ErrMissingQuote - урок нельзя создать без котировки.
	ErrMissingQuote = errors.New("lesson: quote id is required")
)

// ══════════════════════════════════════════════════════════════════════════════
// FACTORY
// Урок создаётся сразу с одной начальной записью статуса requested -
// заявка без статуса не существует.
// ══════════════════════════════════════════════════════════════════════════════

// NewLessonParams содержит параметры для создания нового урока.
type NewLessonParams struct {
	ID              string
	QuoteID         string
	RequestID       string
	StudentID       shared.StudentID
	TutorID         shared.TutorID
	Subject         shared.Subject
	ScheduledAt     time.Time
	DurationMinutes int
}

// NewLesson создаёт новый урок с валидацией полей и начальной записью
// статуса requested.
func NewLesson(params NewLessonParams) (*Lesson, error) {
	if params.ID == "" {
		return nil, errors.New("lesson: id is required")
	}
	if params.QuoteID == "" {
		return nil, ErrMissingQuote
	}
	if !params.StudentID.IsValid() {
		return nil, ErrInvalidStudentID
	}
	if !params.TutorID.IsValid() {
		return nil, ErrInvalidTutorID
	}
	if !params.Subject.IsValid() {
		return nil, ErrInvalidSubject
	}
	if params.DurationMinutes < 15 || params.DurationMinutes > 240 {
		return nil, ErrInvalidDuration
	}

	now := time.Now().UTC()

	initial, err := lifecycle.NewRecord(lifecycle.LessonDescriptor(), lifecycle.NewRecordParams{
		OwnerID:   params.ID,
		Status:    lifecycle.LessonRequested,
		CreatedAt: now,
	})
	if err != nil {
		return nil, fmt.Errorf("lesson: failed to create initial status: %w", err)
	}

	history, err := lifecycle.EmptyHistory().Append(initial)
	if err != nil {
		return nil, err
	}

	return &Lesson{
		ID:              params.ID,
		QuoteID:         params.QuoteID,
		RequestID:       params.RequestID,
		StudentID:       params.StudentID,
		TutorID:         params.TutorID,
		Subject:         params.Subject.Normalize(),
		ScheduledAt:     params.ScheduledAt.UTC(),
		DurationMinutes: params.DurationMinutes,
		CurrentStatusID: initial.ID,
		History:         history,
		CreatedAt:       now,
		UpdatedAt:       now,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS
// ══════════════════════════════════════════════════════════════════════════════

// Current возвращает текущую запись статуса, выведенную из истории.
func (l *Lesson) Current() *lifecycle.StatusRecord {
	return l.History.Current()
}

// Status возвращает текущий статус урока. Для урока история непуста с
// момента создания, поэтому отсутствие статуса - нарушение инварианта.
func (l *Lesson) Status() lifecycle.Status {
	if s, ok := l.History.CurrentStatus(); ok {
		return s
	}
	return ""
}

// IsConfirmed возвращает true, если урок подтверждён.
func (l *Lesson) IsConfirmed() bool {
	return l.Status() == lifecycle.LessonConfirmed
}

// IsFinished возвращает true, если урок в терминальном статусе.
func (l *Lesson) IsFinished() bool {
	s := l.Status()
	return s == lifecycle.LessonCompleted || s == lifecycle.LessonCancelled
}

// PointerDiverged проверяет расхождение указателя с историей.
func (l *Lesson) PointerDiverged() bool {
	cur := l.History.Current()
	if cur == nil {
		return l.CurrentStatusID != ""
	}
	return l.CurrentStatusID != cur.ID
}

// String возвращает строковое представление урока для логирования.
func (l *Lesson) String() string {
	return fmt.Sprintf(
		"Lesson{ID: %s, Subject: %s, Status: %s, Student: %s, Tutor: %s}",
		l.ID, l.Subject, l.Status(), l.StudentID, l.TutorID,
	)
}

// Clone создаёт копию урока. История неизменяема и разделяется безопасно.
func (l *Lesson) Clone() *Lesson {
	if l == nil {
		return nil
	}
	clone := *l
	return &clone
}
