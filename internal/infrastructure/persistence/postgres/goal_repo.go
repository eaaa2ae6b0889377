// Package postgres implements PostgreSQL persistence layer for Urok Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/urok-hub/urok-marketplace/internal/domain/goal"
	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/persistence/mapping"
	"github.com/urok-hub/urok-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// GOAL REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// GoalRepository implements goal.Repository for PostgreSQL.
type GoalRepository struct {
	conn *Connection
	log  *logger.Logger
}

// NewGoalRepository creates a new GoalRepository.
func NewGoalRepository(conn *Connection, log *logger.Logger) *GoalRepository {
	if log == nil {
		log = logger.Default()
	}
	return &GoalRepository{
		conn: conn,
		log:  log.With(logger.Component("goal_repo")),
	}
}

// Create persists a new goal. Goals start with an empty history, so no
// status records are written here.
func (r *GoalRepository) Create(ctx context.Context, g *goal.Goal) error {
	query := `
		INSERT INTO goals (
			id, lesson_id, description, current_status_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	var currentStatusID *string
	if g.CurrentStatusID != "" {
		currentStatusID = &g.CurrentStatusID
	}

	_, err := r.conn.Exec(ctx, query,
		g.ID,
		g.LessonID,
		g.Description,
		currentStatusID,
		g.CreatedAt,
		g.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("goal %s: %w", g.ID, shared.ErrAlreadyExists)
		}
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("goal lesson %s: %w", g.LessonID, shared.ErrNotFound)
		}
		return fmt.Errorf("failed to create goal: %w", err)
	}

	return nil
}

// GetByID returns a goal with its full status history.
func (r *GoalRepository) GetByID(ctx context.Context, id string) (*goal.Goal, error) {
	query := `
		SELECT id, lesson_id, description, current_status_id, created_at, updated_at
		FROM goals
		WHERE id = $1
	`

	row, err := scanGoalRow(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, fmt.Errorf("goal %s: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get goal: %w", err)
	}

	statusRows, err := loadStatusRows(ctx, r.conn, lifecycle.KindGoal, row.ID)
	if err != nil {
		return nil, err
	}

	g, report, err := mapping.GoalFromRow(*row, statusRows)
	if err != nil {
		return nil, err
	}
	logMappingReport(r.log, report)

	return g, nil
}

// GetByLesson returns a lesson's goals in creation order.
func (r *GoalRepository) GetByLesson(ctx context.Context, lessonID string) ([]*goal.Goal, error) {
	query := `
		SELECT id, lesson_id, description, current_status_id, created_at, updated_at
		FROM goals
		WHERE lesson_id = $1
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query, lessonID)
	if err != nil {
		return nil, fmt.Errorf("failed to query goals: %w", err)
	}
	defer rows.Close()

	var goalRows []mapping.GoalRow
	for rows.Next() {
		gr, err := scanGoalRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan goal row: %w", err)
		}
		goalRows = append(goalRows, *gr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("goal rows: %w", err)
	}

	ownerIDs := make([]string, len(goalRows))
	for i, gr := range goalRows {
		ownerIDs[i] = gr.ID
	}
	historyByOwner, err := loadStatusRowsBatch(ctx, r.conn, lifecycle.KindGoal, ownerIDs)
	if err != nil {
		return nil, err
	}

	goals := make([]*goal.Goal, 0, len(goalRows))
	for _, gr := range goalRows {
		g, report, err := mapping.GoalFromRow(gr, historyByOwner[gr.ID])
		if err != nil {
			return nil, err
		}
		logMappingReport(r.log, report)
		goals = append(goals, g)
	}

	return goals, nil
}

// scanGoalRow scans one goals row into the mapper's row shape.
func scanGoalRow(row pgx.Row) (*mapping.GoalRow, error) {
	var gr mapping.GoalRow
	var currentStatusID *string

	if err := row.Scan(
		&gr.ID,
		&gr.LessonID,
		&gr.Description,
		&currentStatusID,
		&gr.CreatedAt,
		&gr.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if currentStatusID != nil {
		gr.CurrentStatusID = *currentStatusID
	}

	return &gr, nil
}
