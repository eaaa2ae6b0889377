package plan

import (
	"context"

	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository определяет операции хранилища для планов занятий.
type Repository interface {
	// Create сохраняет новый план вместе с его начальной записью статуса.
	// Возвращает shared.ErrAlreadyExists, если план уже существует.
	Create(ctx context.Context, p *Plan) error

	// GetByID возвращает план с полной историей статусов.
	// Возвращает shared.ErrNotFound, если план не найден.
	GetByID(ctx context.Context, id string) (*Plan, error)

	// GetByTutor возвращает планы репетитора.
	GetByTutor(ctx context.Context, tutorID shared.TutorID, limit, offset int) ([]*Plan, error)

	// Exists проверяет существование плана по ID.
	Exists(ctx context.Context, id string) (bool, error)
}

// MilestoneRepository определяет операции хранилища для вех.
type MilestoneRepository interface {
	// Create сохраняет новую веху (с пустой историей).
	// Возвращает shared.ErrAlreadyExists, если веха уже существует.
	Create(ctx context.Context, m *Milestone) error

	// GetByID возвращает веху с полной историей статусов.
	// Возвращает shared.ErrNotFound, если веха не найдена.
	GetByID(ctx context.Context, id string) (*Milestone, error)

	// GetByPlan возвращает вехи плана в порядке Ordinal.
	GetByPlan(ctx context.Context, planID string) ([]*Milestone, error)
}
