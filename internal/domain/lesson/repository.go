package lesson

import (
	"context"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Эти интерфейсы определяют контракт для работы с хранилищем уроков.
// Реализации находятся в infrastructure/persistence. Репозиторий читает
// урок вместе с полной историей статусов; писать записи статусов умеет
// только lifecycle.Store.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища для уроков.
type Repository interface {
	// Create сохраняет новый урок вместе с его начальной записью статуса.
	// Возвращает shared.ErrAlreadyExists, если урок уже существует.
	Create(ctx context.Context, l *Lesson) error

	// GetByID возвращает урок с полной историей статусов.
	// Возвращает shared.ErrNotFound, если урок не найден.
	GetByID(ctx context.Context, id string) (*Lesson, error)

	// GetByStudent возвращает уроки студента с пагинацией.
	GetByStudent(ctx context.Context, studentID shared.StudentID, opts ListOptions) ([]*Lesson, error)

	// GetByTutor возвращает уроки репетитора с пагинацией.
	GetByTutor(ctx context.Context, tutorID shared.TutorID, opts ListOptions) ([]*Lesson, error)

	// GetByStatus возвращает уроки в указанном текущем статусе.
	GetByStatus(ctx context.Context, status lifecycle.Status, opts ListOptions) ([]*Lesson, error)

	// Count возвращает общее количество уроков.
	Count(ctx context.Context) (int, error)

	// Exists проверяет существование урока по ID.
	Exists(ctx context.Context, id string) (bool, error)
}

// ListOptions содержит параметры для пагинации и сортировки.
type ListOptions struct {
	// Offset - смещение (для пагинации).
	Offset int

	// Limit - максимальное количество записей.
	Limit int

	// SortDesc - сортировка по убыванию времени создания.
	SortDesc bool
}

// DefaultListOptions возвращает параметры по умолчанию.
func DefaultListOptions() ListOptions {
	return ListOptions{
		Offset:   0,
		Limit:    50,
		SortDesc: true,
	}
}

// WithOffset устанавливает смещение.
func (o ListOptions) WithOffset(offset int) ListOptions {
	o.Offset = offset
	return o
}

// WithLimit устанавливает лимит.
func (o ListOptions) WithLimit(limit int) ListOptions {
	o.Limit = limit
	return o
}
