// Package lifecycle содержит ядро отслеживания статусов Urok Hub:
// неизменяемые записи статусов, append-only историю и таблицы допустимых
// переходов для всех видов владеющих сущностей (урок, план, веха, цель).
// Здесь нет внешних зависимостей, кроме генерации идентификаторов.
package lifecycle

import (
	"reflect"
	"time"

	"github.com/google/uuid"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Status представляет одно значение из перечисления статусов конкретного
// вида сущности. Набор допустимых значений определяется дескриптором вида.
type Status string

// String возвращает строковое представление статуса.
func (s Status) String() string {
	return string(s)
}

// EntityKind определяет вид владеющей сущности.
type EntityKind string

const (
	// KindLesson - урок (заявка студента, подтверждённая котировкой репетитора).
	KindLesson EntityKind = "lesson"
	// KindLessonPlan - план занятий, составленный репетитором.
	KindLessonPlan EntityKind = "lesson_plan"
	// KindMilestone - веха внутри плана занятий.
	KindMilestone EntityKind = "milestone"
	// KindGoal - учебная цель, привязанная к уроку.
	KindGoal EntityKind = "goal"
)

// IsValid проверяет, что вид сущности известен ядру.
func (k EntityKind) IsValid() bool {
	switch k {
	case KindLesson, KindLessonPlan, KindMilestone, KindGoal:
		return true
	default:
		return false
	}
}

// String возвращает строковое представление вида.
func (k EntityKind) String() string {
	return string(k)
}

// AllKinds возвращает все известные виды владеющих сущностей.
func AllKinds() []EntityKind {
	return []EntityKind{KindLesson, KindLessonPlan, KindMilestone, KindGoal}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATUS RECORD
// Неизменяемый факт: "сущность X имела статус S с контекстом C в момент T".
// Запись никогда не обновляется и не удаляется после создания.
// ══════════════════════════════════════════════════════════════════════════════

// StatusRecord - одна запись истории статусов владеющей сущности.
type StatusRecord struct {
	// ID - уникальный идентификатор записи (UUID в строковом формате).
	ID string

	// OwnerID - идентификатор владеющей сущности.
	OwnerID string

	// Kind - вид владеющей сущности.
	Kind EntityKind

	// Status - статус из перечисления данного вида.
	Status Status

	// Context - произвольные структурированные данные, сопровождающие
	// переход (причина отмены, комментарий репетитора и т.п.).
	// Ядро никогда не интерпретирует содержимое.
	Context map[string]any

	// CreatedAt - серверное время создания записи (UTC).
	CreatedAt time.Time
}

// NewRecordParams содержит параметры для создания записи статуса.
type NewRecordParams struct {
	// ID - идентификатор записи; если пустой, генерируется UUID.
	ID string

	// OwnerID - идентификатор владеющей сущности (обязателен).
	OwnerID string

	// Status - запрашиваемый статус (обязателен, из перечисления вида).
	Status Status

	// Context - опциональные данные перехода.
	Context map[string]any

	// CreatedAt - время создания; нулевое значение означает "сейчас".
	// Время в будущем отклоняется (защита от рассинхронизации часов
	// недоверенных источников).
	CreatedAt time.Time
}

// NewRecord создаёт запись статуса для вида, описанного дескриптором.
// Возвращает *ValidationError, если статус не входит в перечисление вида
// или время создания находится в будущем относительно серверных часов.
func NewRecord(desc *Descriptor, p NewRecordParams) (*StatusRecord, error) {
	if desc == nil {
		return nil, &ValidationError{Field: "kind", Reason: "descriptor is nil"}
	}
	if p.OwnerID == "" {
		return nil, &ValidationError{Kind: desc.Kind, Field: "owner_id", Reason: "owner id is required"}
	}
	if !desc.HasStatus(p.Status) {
		return nil, &ValidationError{
			Kind:   desc.Kind,
			Field:  "status",
			Reason: "status " + string(p.Status) + " is not a member of " + string(desc.Kind) + " enumeration",
		}
	}

	now := time.Now().UTC()

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	} else {
		createdAt = createdAt.UTC()
	}
	if createdAt.After(now.Add(clockSkewTolerance)) {
		return nil, &ValidationError{Kind: desc.Kind, Field: "created_at", Reason: "timestamp is in the future"}
	}

	id := p.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &StatusRecord{
		ID:        id,
		OwnerID:   p.OwnerID,
		Kind:      desc.Kind,
		Status:    p.Status,
		Context:   cloneContext(p.Context),
		CreatedAt: createdAt,
	}, nil
}

// clockSkewTolerance - допустимое опережение серверных часов при приёме
// чужой временной метки. Всё, что дальше в будущем, отклоняется.
const clockSkewTolerance = 2 * time.Second

// Equal сравнивает две записи по значению, включая контекст.
func (r *StatusRecord) Equal(other *StatusRecord) bool {
	if r == nil || other == nil {
		return r == other
	}
	return r.ID == other.ID &&
		r.OwnerID == other.OwnerID &&
		r.Kind == other.Kind &&
		r.Status == other.Status &&
		r.CreatedAt.Equal(other.CreatedAt) &&
		reflect.DeepEqual(r.Context, other.Context)
}

// Clone создаёт глубокую копию записи.
func (r *StatusRecord) Clone() *StatusRecord {
	if r == nil {
		return nil
	}
	clone := *r
	clone.Context = cloneContext(r.Context)
	return &clone
}

// cloneContext копирует верхний уровень контекста. Вложенные значения
// считаются неизменяемыми по соглашению: ядро их не читает и не пишет.
func cloneContext(ctx map[string]any) map[string]any {
	if ctx == nil {
		return nil
	}
	clone := make(map[string]any, len(ctx))
	for k, v := range ctx {
		clone[k] = v
	}
	return clone
}
