// Package postgres implements PostgreSQL persistence layer for Urok Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/urok-hub/urok-marketplace/internal/domain/lesson"
	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
	"github.com/urok-hub/urok-marketplace/internal/infrastructure/persistence/mapping"
	"github.com/urok-hub/urok-marketplace/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// LESSON REPOSITORY IMPLEMENTATION
// ══════════════════════════════════════════════════════════════════════════════

// LessonRepository implements lesson.Repository for PostgreSQL.
type LessonRepository struct {
	conn *Connection
	log  *logger.Logger
}

// NewLessonRepository creates a new LessonRepository.
func NewLessonRepository(conn *Connection, log *logger.Logger) *LessonRepository {
	if log == nil {
		log = logger.Default()
	}
	return &LessonRepository{
		conn: conn,
		log:  log.With(logger.Component("lesson_repo")),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// CRUD Operations
// ─────────────────────────────────────────────────────────────────────────────

// Create persists a new lesson together with its seeded status history.
// The lesson row, its records, and the pointer land in one transaction.
func (r *LessonRepository) Create(ctx context.Context, l *lesson.Lesson) error {
	return r.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		query := `
			INSERT INTO lessons (
				id, quote_id, request_id, student_id, tutor_id, subject,
				scheduled_at, duration_minutes, current_status_id, created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`

		var requestID *string
		if l.RequestID != "" {
			requestID = &l.RequestID
		}
		var currentStatusID *string
		if l.CurrentStatusID != "" {
			currentStatusID = &l.CurrentStatusID
		}

		_, err := tx.Exec(ctx, query,
			l.ID,
			l.QuoteID,
			requestID,
			string(l.StudentID),
			string(l.TutorID),
			string(l.Subject),
			l.ScheduledAt,
			l.DurationMinutes,
			currentStatusID,
			l.CreatedAt,
			l.UpdatedAt,
		)
		if err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("lesson %s: %w", l.ID, shared.ErrAlreadyExists)
			}
			return fmt.Errorf("failed to create lesson: %w", err)
		}

		return insertHistory(ctx, tx, l.History)
	})
}

// GetByID returns a lesson with its full status history.
func (r *LessonRepository) GetByID(ctx context.Context, id string) (*lesson.Lesson, error) {
	query := `
		SELECT id, quote_id, request_id, student_id, tutor_id, subject,
			   scheduled_at, duration_minutes, current_status_id, created_at, updated_at
		FROM lessons
		WHERE id = $1
	`

	row, err := scanLessonRow(r.conn.QueryRow(ctx, query, id))
	if err != nil {
		if IsNoRows(err) {
			return nil, fmt.Errorf("lesson %s: %w", id, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get lesson: %w", err)
	}

	statusRows, err := loadStatusRows(ctx, r.conn, lifecycle.KindLesson, row.ID)
	if err != nil {
		return nil, err
	}

	l, report, err := mapping.LessonFromRow(*row, statusRows)
	if err != nil {
		return nil, err
	}
	logMappingReport(r.log, report)

	return l, nil
}

// GetByStudent returns a student's lessons with pagination.
func (r *LessonRepository) GetByStudent(ctx context.Context, studentID shared.StudentID, opts lesson.ListOptions) ([]*lesson.Lesson, error) {
	return r.list(ctx, `student_id = $1`, string(studentID), opts)
}

// GetByTutor returns a tutor's lessons with pagination.
func (r *LessonRepository) GetByTutor(ctx context.Context, tutorID shared.TutorID, opts lesson.ListOptions) ([]*lesson.Lesson, error) {
	return r.list(ctx, `tutor_id = $1`, string(tutorID), opts)
}

// GetByStatus returns lessons whose current status matches.
// The filter runs on the denormalized pointer; that is exactly what the
// pointer exists for, and the reconciliation job keeps it honest.
func (r *LessonRepository) GetByStatus(ctx context.Context, status lifecycle.Status, opts lesson.ListOptions) ([]*lesson.Lesson, error) {
	filter := `current_status_id IN (
		SELECT id FROM status_records WHERE owner_kind = 'lesson' AND status = $1
	)`
	return r.list(ctx, filter, string(status), opts)
}

// Count returns the total number of lessons.
func (r *LessonRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.conn.QueryRow(ctx, `SELECT COUNT(*) FROM lessons`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lessons: %w", err)
	}
	return count, nil
}

// Exists checks if a lesson exists.
func (r *LessonRepository) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.conn.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM lessons WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check lesson existence: %w", err)
	}
	return exists, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// list runs a filtered lesson query and maps results with their histories.
func (r *LessonRepository) list(ctx context.Context, filter string, arg any, opts lesson.ListOptions) ([]*lesson.Lesson, error) {
	order := "ASC"
	if opts.SortDesc {
		order = "DESC"
	}
	if opts.Limit <= 0 {
		opts = lesson.DefaultListOptions().WithOffset(opts.Offset)
	}

	query := fmt.Sprintf(`
		SELECT id, quote_id, request_id, student_id, tutor_id, subject,
			   scheduled_at, duration_minutes, current_status_id, created_at, updated_at
		FROM lessons
		WHERE %s
		ORDER BY created_at %s
		LIMIT $2 OFFSET $3
	`, filter, order)

	rows, err := r.conn.Query(ctx, query, arg, opts.Limit, opts.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query lessons: %w", err)
	}
	defer rows.Close()

	var lessonRows []mapping.LessonRow
	for rows.Next() {
		lr, err := scanLessonRow(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan lesson row: %w", err)
		}
		lessonRows = append(lessonRows, *lr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("lesson rows: %w", err)
	}

	ownerIDs := make([]string, len(lessonRows))
	for i, lr := range lessonRows {
		ownerIDs[i] = lr.ID
	}
	historyByOwner, err := loadStatusRowsBatch(ctx, r.conn, lifecycle.KindLesson, ownerIDs)
	if err != nil {
		return nil, err
	}

	lessons := make([]*lesson.Lesson, 0, len(lessonRows))
	for _, lr := range lessonRows {
		l, report, err := mapping.LessonFromRow(lr, historyByOwner[lr.ID])
		if err != nil {
			return nil, err
		}
		logMappingReport(r.log, report)
		lessons = append(lessons, l)
	}

	return lessons, nil
}

// scanLessonRow scans one lessons row into the mapper's row shape.
func scanLessonRow(row pgx.Row) (*mapping.LessonRow, error) {
	var lr mapping.LessonRow
	var requestID, currentStatusID *string

	if err := row.Scan(
		&lr.ID,
		&lr.QuoteID,
		&requestID,
		&lr.StudentID,
		&lr.TutorID,
		&lr.Subject,
		&lr.ScheduledAt,
		&lr.DurationMinutes,
		&currentStatusID,
		&lr.CreatedAt,
		&lr.UpdatedAt,
	); err != nil {
		return nil, err
	}

	if requestID != nil {
		lr.RequestID = *requestID
	}
	if currentStatusID != nil {
		lr.CurrentStatusID = *currentStatusID
	}

	return &lr, nil
}

// insertHistory persists the records of a freshly created owner. Used
// only inside creation transactions; all later records go through the
// status store's AppendStatus.
func insertHistory(ctx context.Context, tx pgx.Tx, history *lifecycle.History) error {
	for rec := range history.All() {
		var contextJSON []byte
		if rec.Context != nil {
			var err error
			contextJSON, err = json.Marshal(rec.Context)
			if err != nil {
				return fmt.Errorf("failed to marshal record context: %w", err)
			}
		}

		_, err := tx.Exec(ctx, `
			INSERT INTO status_records (id, owner_kind, owner_id, status, context, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`,
			rec.ID,
			string(rec.Kind),
			rec.OwnerID,
			string(rec.Status),
			contextJSON,
			rec.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert status record: %w", err)
		}
	}
	return nil
}

// loadStatusRows loads one owner's status rows in ascending order.
func loadStatusRows(ctx context.Context, conn *Connection, kind lifecycle.EntityKind, ownerID string) ([]mapping.StatusRow, error) {
	byOwner, err := loadStatusRowsBatch(ctx, conn, kind, []string{ownerID})
	if err != nil {
		return nil, err
	}
	return byOwner[ownerID], nil
}

// loadStatusRowsBatch loads status rows for many owners in one query.
func loadStatusRowsBatch(ctx context.Context, conn *Connection, kind lifecycle.EntityKind, ownerIDs []string) (map[string][]mapping.StatusRow, error) {
	byOwner := make(map[string][]mapping.StatusRow, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return byOwner, nil
	}

	query := `
		SELECT id, owner_id, status, context, created_at
		FROM status_records
		WHERE owner_kind = $1 AND owner_id = ANY($2)
		ORDER BY owner_id, created_at, id
	`

	rows, err := conn.Query(ctx, query, string(kind), ownerIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to query status rows: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sr mapping.StatusRow
		var contextJSON []byte
		if err := rows.Scan(&sr.ID, &sr.OwnerID, &sr.Status, &contextJSON, &sr.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan status row: %w", err)
		}
		if len(contextJSON) > 0 {
			if err := json.Unmarshal(contextJSON, &sr.Context); err != nil {
				return nil, fmt.Errorf("failed to unmarshal status row context: %w", err)
			}
		}
		byOwner[sr.OwnerID] = append(byOwner[sr.OwnerID], sr)
	}

	return byOwner, rows.Err()
}

// logMappingReport logs tolerated read-path anomalies found by the mapper.
func logMappingReport(log *logger.Logger, report *mapping.Report) {
	if report == nil || !report.HasWarnings() {
		return
	}
	for _, w := range report.Warnings {
		log.Warn("mapping anomaly tolerated",
			logger.String("warning", string(w.Kind)),
			logger.EntityKind(string(w.EntityKind)),
			logger.OwnerID(w.OwnerID),
			logger.RecordID(w.RecordID),
			logger.String("detail", w.Detail),
		)
	}
}
