// Package postgres implements PostgreSQL persistence layer for Urok Hub.
package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STATUS STORE IMPLEMENTATION
// Implements lifecycle.Store and lifecycle.ReconciliationStore on one
// shared status_records table. Concurrent transitions on the same owner
// are linearized by the conditional pointer update inside AppendStatus.
// ══════════════════════════════════════════════════════════════════════════════

// StatusStore implements the lifecycle store ports for PostgreSQL.
type StatusStore struct {
	conn *Connection
}

// NewStatusStore creates a new StatusStore.
func NewStatusStore(conn *Connection) *StatusStore {
	return &StatusStore{conn: conn}
}

// ownerTable maps an entity kind to its owner table.
func ownerTable(kind lifecycle.EntityKind) (string, error) {
	switch kind {
	case lifecycle.KindLesson:
		return "lessons", nil
	case lifecycle.KindLessonPlan:
		return "lesson_plans", nil
	case lifecycle.KindMilestone:
		return "milestones", nil
	case lifecycle.KindGoal:
		return "goals", nil
	default:
		return "", fmt.Errorf("postgres: unknown entity kind %q: %w", kind, shared.ErrInvalidInput)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// lifecycle.Store
// ─────────────────────────────────────────────────────────────────────────────

// CurrentRecord returns the owner's current record, or nil when the owner
// has no records yet. The pointer is cross-checked against the latest
// record of the history: history is authoritative, and a diverged owner
// must not accept transitions validated against the wrong current status
// (a NULL pointer over a non-empty history would otherwise admit an
// initial transition on a finished owner). Diverged owners fail here and
// become writable again once the reconciliation job repairs them.
func (s *StatusStore) CurrentRecord(ctx context.Context, kind lifecycle.EntityKind, ownerID string) (*lifecycle.StatusRecord, error) {
	table, err := ownerTable(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`SELECT current_status_id FROM %s WHERE id = $1`, table)

	var currentID *string
	if err := s.conn.QueryRow(ctx, query, ownerID).Scan(&currentID); err != nil {
		if IsNoRows(err) {
			return nil, fmt.Errorf("postgres: %s %s: %w", kind, ownerID, shared.ErrNotFound)
		}
		return nil, fmt.Errorf("postgres: failed to load current pointer: %w", err)
	}

	latestQuery := `
		SELECT id, owner_id, status, context, created_at
		FROM status_records
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`

	row := s.conn.QueryRow(ctx, latestQuery, string(kind), ownerID)
	latest, err := scanStatusRecord(row, kind)
	if err != nil {
		if IsNoRows(err) {
			latest = nil
		} else {
			return nil, fmt.Errorf("postgres: failed to load latest record: %w", err)
		}
	}

	return resolveCurrent(kind, ownerID, currentID, latest)
}

// resolveCurrent reconciles the denormalized pointer with the latest
// history record.
func resolveCurrent(kind lifecycle.EntityKind, ownerID string, pointerID *string, latest *lifecycle.StatusRecord) (*lifecycle.StatusRecord, error) {
	switch {
	case pointerID == nil && latest == nil:
		// No transitions yet.
		return nil, nil

	case pointerID == nil:
		return nil, &lifecycle.MappingError{
			Kind:    kind,
			OwnerID: ownerID,
			Reason:  "current_status_id is null but history is not empty",
		}

	case latest == nil:
		return nil, &lifecycle.MappingError{
			Kind:    kind,
			OwnerID: ownerID,
			Reason:  "current_status_id " + *pointerID + " resolves to no record",
		}

	case *pointerID != latest.ID:
		return nil, &lifecycle.MappingError{
			Kind:    kind,
			OwnerID: ownerID,
			Reason:  "current_status_id " + *pointerID + " diverges from latest record " + latest.ID,
		}
	}

	return latest, nil
}

// AppendStatus inserts the record and moves the owner's pointer in one
// transaction. The UPDATE is conditioned on the pointer still being equal
// to expectedCurrentID ("" meaning NULL); zero rows affected rolls the
// whole transaction back, so the losing record is never persisted.
func (s *StatusStore) AppendStatus(ctx context.Context, rec *lifecycle.StatusRecord, expectedCurrentID string) error {
	if rec == nil {
		return fmt.Errorf("postgres: nil status record: %w", shared.ErrInvalidInput)
	}

	table, err := ownerTable(rec.Kind)
	if err != nil {
		return err
	}

	var contextJSON []byte
	if rec.Context != nil {
		contextJSON, err = json.Marshal(rec.Context)
		if err != nil {
			return fmt.Errorf("postgres: failed to marshal record context: %w", err)
		}
	}

	var expected *string
	if expectedCurrentID != "" {
		expected = &expectedCurrentID
	}

	return s.conn.WithTx(ctx, DefaultTxOptions(), func(tx pgx.Tx) error {
		insertQuery := `
			INSERT INTO status_records (id, owner_kind, owner_id, status, context, created_at)
			VALUES ($1, $2, $3, $4, $5, $6)
		`
		if _, err := tx.Exec(ctx, insertQuery,
			rec.ID,
			string(rec.Kind),
			rec.OwnerID,
			string(rec.Status),
			contextJSON,
			rec.CreatedAt,
		); err != nil {
			if IsUniqueViolation(err) {
				return fmt.Errorf("postgres: status record %s: %w", rec.ID, shared.ErrAlreadyExists)
			}
			return fmt.Errorf("postgres: failed to insert status record: %w", err)
		}

		updateQuery := fmt.Sprintf(`
			UPDATE %s
			SET current_status_id = $1
			WHERE id = $2 AND current_status_id IS NOT DISTINCT FROM $3
		`, table)

		tag, err := tx.Exec(ctx, updateQuery, rec.ID, rec.OwnerID, expected)
		if err != nil {
			return fmt.Errorf("postgres: failed to move current pointer: %w", err)
		}

		if tag.RowsAffected() == 0 {
			// Either the owner is gone or another transition won the race.
			existsQuery := fmt.Sprintf(`SELECT EXISTS(SELECT 1 FROM %s WHERE id = $1)`, table)
			var exists bool
			if err := tx.QueryRow(ctx, existsQuery, rec.OwnerID).Scan(&exists); err != nil {
				return fmt.Errorf("postgres: failed to check owner existence: %w", err)
			}
			if !exists {
				return fmt.Errorf("postgres: %s %s: %w", rec.Kind, rec.OwnerID, shared.ErrNotFound)
			}
			return &lifecycle.ConcurrentTransitionError{Kind: rec.Kind, OwnerID: rec.OwnerID}
		}

		return nil
	})
}

// LoadHistory returns the owner's full history ordered by creation time.
// Raw statuses are preserved: substitution of unknown values is the
// entity mappers' concern, the timeline shows what was stored.
func (s *StatusStore) LoadHistory(ctx context.Context, kind lifecycle.EntityKind, ownerID string) (*lifecycle.History, error) {
	if _, err := ownerTable(kind); err != nil {
		return nil, err
	}

	query := `
		SELECT id, owner_id, status, context, created_at
		FROM status_records
		WHERE owner_kind = $1 AND owner_id = $2
		ORDER BY created_at, id
	`

	rows, err := s.conn.Query(ctx, query, string(kind), ownerID)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query history: %w", err)
	}
	defer rows.Close()

	var records []lifecycle.StatusRecord
	for rows.Next() {
		rec, err := scanStatusRecord(rows, kind)
		if err != nil {
			return nil, fmt.Errorf("postgres: failed to scan status record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: history rows: %w", err)
	}

	return lifecycle.NewHistory(records)
}

// ─────────────────────────────────────────────────────────────────────────────
// lifecycle.ReconciliationStore
// ─────────────────────────────────────────────────────────────────────────────

// FindDiverged finds owners whose pointer does not name the latest record.
// NULL pointers with non-empty histories count as diverged too.
func (s *StatusStore) FindDiverged(ctx context.Context, kind lifecycle.EntityKind, limit int) ([]lifecycle.Divergence, error) {
	table, err := ownerTable(kind)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}

	query := fmt.Sprintf(`
		SELECT o.id, o.current_status_id, latest.id, latest.created_at
		FROM %s o
		JOIN LATERAL (
			SELECT id, created_at
			FROM status_records
			WHERE owner_kind = $1 AND owner_id = o.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) latest ON TRUE
		WHERE o.current_status_id IS DISTINCT FROM latest.id
		LIMIT $2
	`, table)

	rows, err := s.conn.Query(ctx, query, string(kind), limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: failed to query divergences: %w", err)
	}
	defer rows.Close()

	var diverged []lifecycle.Divergence
	for rows.Next() {
		var d lifecycle.Divergence
		var pointer *string
		if err := rows.Scan(&d.OwnerID, &pointer, &d.LatestRecordID, &d.LatestCreatedAt); err != nil {
			return nil, fmt.Errorf("postgres: failed to scan divergence: %w", err)
		}
		d.Kind = kind
		if pointer != nil {
			d.PointerRecordID = *pointer
		}
		d.LatestCreatedAt = d.LatestCreatedAt.UTC()
		diverged = append(diverged, d)
	}

	return diverged, rows.Err()
}

// RepairPointer moves the owner's pointer to the given record. History is
// authoritative; the caller passes the latest record's ID.
func (s *StatusStore) RepairPointer(ctx context.Context, kind lifecycle.EntityKind, ownerID, recordID string) error {
	table, err := ownerTable(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET current_status_id = $1 WHERE id = $2`, table)

	tag, err := s.conn.Exec(ctx, query, recordID, ownerID)
	if err != nil {
		return fmt.Errorf("postgres: failed to repair pointer: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: %s %s: %w", kind, ownerID, shared.ErrNotFound)
	}

	return nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scan helpers
// ─────────────────────────────────────────────────────────────────────────────

// scanStatusRecord scans one status_records row.
func scanStatusRecord(row pgx.Row, kind lifecycle.EntityKind) (*lifecycle.StatusRecord, error) {
	var rec lifecycle.StatusRecord
	var contextJSON []byte

	if err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Status, &contextJSON, &rec.CreatedAt); err != nil {
		return nil, err
	}

	rec.Kind = kind
	rec.CreatedAt = rec.CreatedAt.UTC()

	if len(contextJSON) > 0 {
		if err := json.Unmarshal(contextJSON, &rec.Context); err != nil {
			return nil, fmt.Errorf("failed to unmarshal record context: %w", err)
		}
	}

	return &rec, nil
}
