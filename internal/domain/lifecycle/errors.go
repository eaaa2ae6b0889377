package lifecycle

import (
	"fmt"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ERROR TAXONOMY
// Каждому виду ошибки ядра соответствует стабильный код, который внешний
// API-слой отдаёт вызывающей стороне. Все типы поддерживают errors.Is
// через базовые ошибки пакета shared.
// ══════════════════════════════════════════════════════════════════════════════

// Стабильные коды ошибок ядра жизненного цикла.
const (
	CodeValidationFailed     = "validation_failed"
	CodeInvalidTransition    = "invalid_transition"
	CodeHistoryOrdering      = "history_ordering"
	CodeMappingIntegrity     = "mapping_integrity"
	CodeConcurrentTransition = "concurrent_transition"
)

// ValidationError - некорректный вход при создании записи статуса:
// статус вне перечисления вида, время в будущем, пустой владелец.
// Запись с такой ошибкой никогда не сохраняется.
type ValidationError struct {
	Kind   EntityKind
	Field  string
	Reason string
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Kind != "" {
		return fmt.Sprintf("lifecycle: %s: invalid %s: %s", e.Kind, e.Field, e.Reason)
	}
	return fmt.Sprintf("lifecycle: invalid %s: %s", e.Field, e.Reason)
}

// Code возвращает стабильный код ошибки.
func (e *ValidationError) Code() string { return CodeValidationFailed }

// Is сопоставляет ошибку с базовой shared.ErrValidation.
func (e *ValidationError) Is(target error) bool { return target == shared.ErrValidation }

// InvalidTransitionError - запрошенный переход отсутствует в таблице вида.
// Нулевой From означает первый переход из состояния создания.
type InvalidTransitionError struct {
	Kind EntityKind
	From *Status
	To   Status
}

// Error реализует интерфейс error.
func (e *InvalidTransitionError) Error() string {
	if e.From == nil {
		return fmt.Sprintf("lifecycle: %s: invalid initial transition to %q", e.Kind, e.To)
	}
	return fmt.Sprintf("lifecycle: %s: invalid transition from %q to %q", e.Kind, *e.From, e.To)
}

// Code возвращает стабильный код ошибки.
func (e *InvalidTransitionError) Code() string { return CodeInvalidTransition }

// Is сопоставляет ошибку с базовой shared.ErrStateTransition.
func (e *InvalidTransitionError) Is(target error) bool { return target == shared.ErrStateTransition }

// OrderingError - регрессия временной метки в истории. Это ошибка
// программиста или интеграции: сервис назначает метки сам, поэтому в
// нормальной работе регрессия невозможна. Фатальна для запроса,
// логируется громко.
type OrderingError struct {
	Kind    EntityKind
	OwnerID string
	Prev    time.Time
	Next    time.Time
}

// Error реализует интерфейс error.
func (e *OrderingError) Error() string {
	return fmt.Sprintf(
		"lifecycle: %s %s: history timestamp regression: %s -> %s",
		e.Kind, e.OwnerID,
		e.Prev.Format(time.RFC3339Nano), e.Next.Format(time.RFC3339Nano),
	)
}

// Code возвращает стабильный код ошибки.
func (e *OrderingError) Code() string { return CodeHistoryOrdering }

// Is сопоставляет ошибку с базовой shared.ErrHistoryOrdering.
func (e *OrderingError) Is(target error) bool { return target == shared.ErrHistoryOrdering }

// MappingError - сохранённые данные нарушают инвариант "текущий статус
// должен существовать". Чтение завершается ошибкой вместо возврата
// повреждённой сущности.
type MappingError struct {
	Kind    EntityKind
	OwnerID string
	Reason  string
}

// Error реализует интерфейс error.
func (e *MappingError) Error() string {
	return fmt.Sprintf("lifecycle: %s %s: mapping integrity violation: %s", e.Kind, e.OwnerID, e.Reason)
}

// Code возвращает стабильный код ошибки.
func (e *MappingError) Code() string { return CodeMappingIntegrity }

// Is сопоставляет ошибку с базовой shared.ErrInvalidEntity.
func (e *MappingError) Is(target error) bool { return target == shared.ErrInvalidEntity }

// ConcurrentTransitionError - проигравшая сторона гонки двух переходов на
// одном владельце. Вызывающая сторона повторяет запрос со свежим текущим
// статусом; ядро автоматических повторов не делает.
type ConcurrentTransitionError struct {
	Kind    EntityKind
	OwnerID string
}

// Error реализует интерфейс error.
func (e *ConcurrentTransitionError) Error() string {
	return fmt.Sprintf("lifecycle: %s %s: concurrent transition lost the race", e.Kind, e.OwnerID)
}

// Code возвращает стабильный код ошибки.
func (e *ConcurrentTransitionError) Code() string { return CodeConcurrentTransition }

// Is сопоставляет ошибку с базовой shared.ErrConcurrentModification.
func (e *ConcurrentTransitionError) Is(target error) bool {
	return target == shared.ErrConcurrentModification
}
