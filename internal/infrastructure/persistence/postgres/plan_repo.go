// Package postgres implements PostgreSQL persistence layer for Urok Hub.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/plan"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/persistence/mapping"
	"github.com/urok-hub/urok-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// PLAN REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// PlanRepository implements plan.Repository for PostgreSQL.
type PlanRepository struct {
	conn *Connection
	log  *logger.Logger
}

// NewPlanRepository creates a new PlanRepository.
func NewPlanRepository(conn *Connection, log *logger.Logger) *PlanRepository {
	if log == nil {
		log = logger.Default()
	}
	return &PlanRepository{
		conn: conn,
		log:  log.With(logger.Component("plan_repo")),
	}
}

// Create persists a new plan together with its seeded "draft" record.
func (r *PlanRepository) Create(ctx context.Context, p *plan.Plan) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			INSERT INTO lesson_plans (
				id, tutor_id, student_id, title, subject,
				current_status_id, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`

		var currentStatusID *string
		if p.CurrentStatusID != "" {
			currentStatusID = &p.CurrentStatusID
		}

		_, err := tx.Exec(ctx, query,
			p.ID,
			string(p.TutorID),
			string(p.StudentID),
			p.Title,
			string(p.Subject),
			currentStatusID,
			p.CreatedAt,
			p.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("plan %s: %w", p.ID, shared.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to create plan: %w", err)
		}

		return insertHistory(ctx, tx, p.History)
	})
}

// GetByID returns a plan with its full status history.
func (r *PlanRepository) GetByID(ctx context.Context, id string) (*plan.Plan, error) {
	query := `
		SELECT id, tutor_id, student_id, title, subject,
			   current_status_id, created_at, updated_at
		FROM lesson_plans
		WHERE id = $1
	`

	row, err := scanPlanRow(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, fmt.Errorf("plan %s: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	statusRows, err := loadStatusRows(ctx, r.conn, lifecycle.KindLessonPlan, row.ID)
	if err != nil {
		return nil, err
	}

	p, report, err := mapping.PlanFromRow(*row, statusRows)
	if err != nil {
		return nil, err
	}
	logMappingReport(r.log, report)

	return p, nil
}

// GetByTutor returns a tutor's plans, newest first.
func (r *PlanRepository) GetByTutor(ctx context.Context, tutorID shared.TutorID, limit, offset int) ([]*plan.Plan, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, tutor_id, student_id, title, subject,
			   current_status_id, created_at, updated_at
		FROM lesson_plans
		WHERE tutor_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.conn.Query(ctx, query, string(tutorID), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query plans: %w", err)
	}
	defer rows.Close()

	var planRows []mapping.PlanRow
	for rows.Next() {
		pr, err := scanPlanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan row: %w", err)
		}
		planRows = append(planRows, *pr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("plan rows: %w", err)
	}

	ownerIDs := make([]string, len(planRows))
	for i, pr := range planRows {
		ownerIDs[i] = pr.ID
	}
	historyByOwner, err := loadStatusRowsBatch(ctx, r.conn, lifecycle.KindLessonPlan, ownerIDs)
	if err != nil {
		return nil, err
	}

	plans := make([]*plan.Plan, 0, len(planRows))
	for _, pr := range planRows {
		p, report, err := mapping.PlanFromRow(pr, historyByOwner[pr.ID])
		if err != nil {
			return nil, err
		}
		logMappingReport(r.log, report)
		plans = append(plans, p)
	}

	return plans, nil
}

// Exists checks if a plan exists.
func (r *PlanRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM lesson_plans WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check plan existence: %w", err)
	}
	return exists, nil
}

// scanPlanRow scans one lesson_plans row into the mapper's row shape.
func scanPlanRow(row pgx.Row) (*mapping.PlanRow, error) {
	var pr mapping.PlanRow
	var currentStatusID *string

	if err := row.Scan(
		&pr.ID,
		&pr.TutorID,
		&pr.StudentID,
		&pr.Title,
		&pr.Subject,
		&currentStatusID,
		&pr.CreatedAt,
		&pr.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if currentStatusID != nil {
		pr.CurrentStatusID = *currentStatusID
	}

	return &pr, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MILESTONE REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// MilestoneRepository implements plan.MilestoneRepository for PostgreSQL.
type MilestoneRepository struct {
	conn *Connection
	log  *logger.Logger
}

// NewMilestoneRepository creates a new MilestoneRepository.
func NewMilestoneRepository(conn *Connection, log *logger.Logger) *MilestoneRepository {
	if log == nil {
		log = logger.Default()
	}
	return &MilestoneRepository{
		conn: conn,
		log:  log.With(logger.Component("milestone_repo")),
	}
}

// Create persists a new milestone. Milestones start with an empty history,
// so no status records are written here.
func (r *MilestoneRepository) Create(ctx context.Context, m *plan.Milestone) error {
	query := `
		INSERT INTO milestones (
			id, plan_id, title, ordinal, current_status_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	var currentStatusID *string
	if m.CurrentStatusID != "" {
		currentStatusID = &m.CurrentStatusID
	}

	_, err := r.conn.Exec(ctx, query,
		m.ID,
		m.PlanID,
		m.Title,
		m.Ordinal,
		currentStatusID,
		m.CreatedAt,
		m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err) {
			return fmt.Errorf("milestone %s: %w", m.ID, shared.ErrAlreadyExists)
		}
		if IsForeignKeyViolation(err) {
			return fmt.Errorf("milestone plan %s: %w", m.PlanID, shared.ErrNotFound)
		}
		return fmt.Errorf("failed to create milestone: %w", err)
	}

	return nil
}

// GetByID returns a milestone with its full status history.
func (r *MilestoneRepository) GetByID(ctx context.Context, id string) (*plan.Milestone, error) {
	query := `
		SELECT id, plan_id, title, ordinal, current_status_id, created_at, updated_at
		FROM milestones
		WHERE id = $1
	`

	row, err := scanMilestoneRow(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, fmt.Errorf("milestone %s: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get milestone: %w", err)
	}

	statusRows, err := loadStatusRows(ctx, r.conn, lifecycle.KindMilestone, row.ID)
	if err != nil {
		return nil, err
	}

	m, report, err := mapping.MilestoneFromRow(*row, statusRows)
	if err != nil {
		return nil, err
	}
	logMappingReport(r.log, report)

	return m, nil
}

// GetByPlan returns a plan's milestones in ordinal order.
func (r *MilestoneRepository) GetByPlan(ctx context.Context, planID string) ([]*plan.Milestone, error) {
	query := `
		SELECT id, plan_id, title, ordinal, current_status_id, created_at, updated_at
		FROM milestones
		WHERE plan_id = $1
		ORDER BY ordinal
	`

	rows, err := r.conn.Query(ctx, query, planID)
	if err != nil {
		return nil, fmt.Errorf("failed to query milestones: %w", err)
	}
	defer rows.Close()

	var milestoneRows []mapping.MilestoneRow
	for rows.Next() {
		mr, err := scanMilestoneRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan milestone row: %w", err)
		}
		milestoneRows = append(milestoneRows, *mr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("milestone rows: %w", err)
	}

	ownerIDs := make([]string, len(milestoneRows))
	for i, mr := range milestoneRows {
		ownerIDs[i] = mr.ID
	}
	historyByOwner, err := loadStatusRowsBatch(ctx, r.conn, lifecycle.KindMilestone, ownerIDs)
	if err != nil {
		return nil, err
	}

	milestones := make([]*plan.Milestone, 0, len(milestoneRows))
	for _, mr := range milestoneRows {
		m, report, err := mapping.MilestoneFromRow(mr, historyByOwner[mr.ID])
		if err != nil {
			return nil, err
		}
		logMappingReport(r.log, report)
		milestones = append(milestones, m)
	}

	return milestones, nil
}

// scanMilestoneRow scans one milestones row into the mapper's row shape.
func scanMilestoneRow(row pgx.Row) (*mapping.MilestoneRow, error) {
	var mr mapping.MilestoneRow
	var currentStatusID *string

	if err := row.Scan(
		&mr.ID,
		&mr.PlanID,
		&mr.Title,
		&mr.Ordinal,
		&currentStatusID,
		&mr.CreatedAt,
		&mr.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if currentStatusID != nil {
		mr.CurrentStatusID = *currentStatusID
	}

	return &mr, nil
}
