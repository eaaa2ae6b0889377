package goal

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACE
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища для целей.
type Repository interface {
	// Create сохраняет новую цель (с пустой историей).
	// Возвращает shared.ErrAlreadyExists, если цель уже существует.
	Create(ctx context.Context, g *Goal) error

	// GetByID возвращает цель с полной историей статусов.
	// Возвращает shared.ErrNotFound, если цель не найдена.
	GetByID(ctx context.Context, id string) (*Goal, error)

	// GetByLesson возвращает цели урока в порядке создания.
	GetByLesson(ctx context.Context, lessonID string) ([]*Goal, error)
}
