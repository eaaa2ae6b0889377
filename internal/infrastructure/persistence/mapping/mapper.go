// Package mapping converts persisted rows into domain entities. All
// functions are pure: they do no I/O and report read-path anomalies in a
// MappingReport instead of logging, so callers decide where warnings go.
package mapping

import (
	"fmt"
	"time"

	"github.com/urok-hub/urok-marketplace/internal/domain/goal"
	"github.com/urok-hub/urok-marketplace/internal/domain/lesson"
	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/plan"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ROW TYPES
// Shapes of the persisted rows as the repositories scan them. An empty
// CurrentStatusID means the column is NULL (no records yet).
// ══════════════════════════════════════════════════════════════════════════════

// StatusRow is one persisted status record row, raw status string included.
type StatusRow struct {
	ID        string
	OwnerID   string
	Status    string
	Context   map[string]any
	CreatedAt time.Time
}

// LessonRow is a persisted lesson row.
type LessonRow struct {
	ID              string
	QuoteID         string
	RequestID       string
	StudentID       string
	TutorID         string
	Subject         string
	ScheduledAt     time.Time
	DurationMinutes int
	CurrentStatusID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PlanRow is a persisted lesson plan row.
type PlanRow struct {
	ID              string
	TutorID         string
	StudentID       string
	Title           string
	Subject         string
	CurrentStatusID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// MilestoneRow is a persisted milestone row.
type MilestoneRow struct {
	ID              string
	PlanID          string
	Title           string
	Ordinal         int
	CurrentStatusID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GoalRow is a persisted goal row.
type GoalRow struct {
	ID              string
	LessonID        string
	Description     string
	CurrentStatusID string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// MAPPING REPORT
// Read-path anomalies that are tolerated by substitution or by trusting
// the history. Integrity violations that cannot be tolerated become a
// *lifecycle.MappingError instead.
// ══════════════════════════════════════════════════════════════════════════════

// WarningKind labels a tolerated mapping anomaly.
type WarningKind string

const (
	// WarnUnknownStatus - a history row carried a status outside the
	// kind's enumeration; the kind's fallback status was substituted.
	WarnUnknownStatus WarningKind = "unknown_status"

	// WarnPointerDivergence - current_status_id does not point at the
	// latest-by-time record; the history's latest record was trusted.
	WarnPointerDivergence WarningKind = "pointer_divergence"
)

// Warning is one tolerated anomaly found while mapping.
type Warning struct {
	Kind       WarningKind
	EntityKind lifecycle.EntityKind
	OwnerID    string
	RecordID   string
	RawStatus  string
	Detail     string
}

// String renders the warning for logging.
func (w Warning) String() string {
	return fmt.Sprintf("%s kind=%s owner=%s record=%s raw=%q: %s",
		w.Kind, w.EntityKind, w.OwnerID, w.RecordID, w.RawStatus, w.Detail)
}

// Report collects warnings produced while mapping one entity.
type Report struct {
	Warnings []Warning
}

// HasWarnings reports whether any anomaly was found.
func (r *Report) HasWarnings() bool {
	return len(r.Warnings) > 0
}

func (r *Report) add(w Warning) {
	r.Warnings = append(r.Warnings, w)
}

// ══════════════════════════════════════════════════════════════════════════════
// HISTORY MAPPING
// ══════════════════════════════════════════════════════════════════════════════

// HistoryFromRows builds a status history from persisted rows, expected in
// ascending CreatedAt order. Unknown raw statuses are substituted with the
// kind's fallback and reported; a timestamp regression means the rows were
// corrupted outside the write path and is returned as *OrderingError.
func HistoryFromRows(desc *lifecycle.Descriptor, ownerID string, rows []StatusRow, report *Report) (*lifecycle.History, error) {
	if desc == nil {
		return nil, &lifecycle.MappingError{OwnerID: ownerID, Reason: "nil descriptor"}
	}

	records := make([]lifecycle.StatusRecord, 0, len(rows))
	for _, row := range rows {
		status := lifecycle.Status(row.Status)
		if !desc.HasStatus(status) {
			report.add(Warning{
				Kind:       WarnUnknownStatus,
				EntityKind: desc.Kind,
				OwnerID:    ownerID,
				RecordID:   row.ID,
				RawStatus:  row.Status,
				Detail:     "substituted fallback status " + desc.Fallback.String(),
			})
			status = desc.Fallback
		}

		// Records are rebuilt as literals: stored rows already passed
		// write-path validation, re-validating timestamps here would
		// reject legitimately old data after clock adjustments.
		records = append(records, lifecycle.StatusRecord{
			ID:        row.ID,
			OwnerID:   row.OwnerID,
			Kind:      desc.Kind,
			Status:    status,
			Context:   row.Context,
			CreatedAt: row.CreatedAt.UTC(),
		})
	}

	history, err := lifecycle.NewHistory(records)
	if err != nil {
		return nil, err
	}
	return history, nil
}

// resolveCurrent checks the persisted pointer against the mapped history.
// The history is authoritative: divergence from the latest record is a
// warning, a pointer that resolves to nothing is an integrity error.
func resolveCurrent(desc *lifecycle.Descriptor, ownerID, currentID string, history *lifecycle.History, report *Report) error {
	latest := history.Current()

	if latest == nil {
		if currentID != "" {
			return &lifecycle.MappingError{
				Kind:    desc.Kind,
				OwnerID: ownerID,
				Reason:  "current_status_id " + currentID + " set but history is empty",
			}
		}
		return nil
	}

	if currentID == "" {
		return &lifecycle.MappingError{
			Kind:    desc.Kind,
			OwnerID: ownerID,
			Reason:  "history is non-empty but current_status_id is null",
		}
	}

	if currentID == latest.ID {
		return nil
	}

	// The pointer names some record; verify it exists before tolerating.
	found := false
	for rec := range history.All() {
		if rec.ID == currentID {
			found = true
			break
		}
	}
	if !found {
		return &lifecycle.MappingError{
			Kind:    desc.Kind,
			OwnerID: ownerID,
			Reason:  "current_status_id " + currentID + " resolves to no history record",
		}
	}

	report.add(Warning{
		Kind:       WarnPointerDivergence,
		EntityKind: desc.Kind,
		OwnerID:    ownerID,
		RecordID:   currentID,
		Detail:     "latest record is " + latest.ID + "; history wins, reconciliation will repair the pointer",
	})
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// ENTITY MAPPERS
// ══════════════════════════════════════════════════════════════════════════════

// LessonFromRow maps a lesson row plus its ordered status rows.
func LessonFromRow(row LessonRow, statusRows []StatusRow) (*lesson.Lesson, *Report, error) {
	report := &Report{}
	desc := lifecycle.LessonDescriptor()

	history, err := HistoryFromRows(desc, row.ID, statusRows, report)
	if err != nil {
		return nil, report, err
	}
	if err := resolveCurrent(desc, row.ID, row.CurrentStatusID, history, report); err != nil {
		return nil, report, err
	}

	return &lesson.Lesson{
		ID:              row.ID,
		QuoteID:         row.QuoteID,
		RequestID:       row.RequestID,
		StudentID:       shared.StudentID(row.StudentID),
		TutorID:         shared.TutorID(row.TutorID),
		Subject:         shared.Subject(row.Subject),
		ScheduledAt:     row.ScheduledAt.UTC(),
		DurationMinutes: row.DurationMinutes,
		CurrentStatusID: row.CurrentStatusID,
		History:         history,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, report, nil
}

// PlanFromRow maps a lesson plan row plus its ordered status rows.
func PlanFromRow(row PlanRow, statusRows []StatusRow) (*plan.Plan, *Report, error) {
	report := &Report{}
	desc := lifecycle.PlanDescriptor()

	history, err := HistoryFromRows(desc, row.ID, statusRows, report)
	if err != nil {
		return nil, report, err
	}
	if err := resolveCurrent(desc, row.ID, row.CurrentStatusID, history, report); err != nil {
		return nil, report, err
	}

	return &plan.Plan{
		ID:              row.ID,
		TutorID:         shared.TutorID(row.TutorID),
		StudentID:       shared.StudentID(row.StudentID),
		Title:           row.Title,
		Subject:         shared.Subject(row.Subject),
		CurrentStatusID: row.CurrentStatusID,
		History:         history,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, report, nil
}

// MilestoneFromRow maps a milestone row plus its ordered status rows.
// A milestone legitimately has an empty history before its first transition.
func MilestoneFromRow(row MilestoneRow, statusRows []StatusRow) (*plan.Milestone, *Report, error) {
	report := &Report{}
	desc := lifecycle.MilestoneDescriptor()

	history, err := HistoryFromRows(desc, row.ID, statusRows, report)
	if err != nil {
		return nil, report, err
	}
	if err := resolveCurrent(desc, row.ID, row.CurrentStatusID, history, report); err != nil {
		return nil, report, err
	}

	return &plan.Milestone{
		ID:              row.ID,
		PlanID:          row.PlanID,
		Title:           row.Title,
		Ordinal:         row.Ordinal,
		CurrentStatusID: row.CurrentStatusID,
		History:         history,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, report, nil
}

// GoalFromRow maps a goal row plus its ordered status rows.
// A goal legitimately has an empty history before its first transition.
func GoalFromRow(row GoalRow, statusRows []StatusRow) (*goal.Goal, *Report, error) {
	report := &Report{}
	desc := lifecycle.GoalDescriptor()

	history, err := HistoryFromRows(desc, row.ID, statusRows, report)
	if err != nil {
		return nil, report, err
	}
	if err := resolveCurrent(desc, row.ID, row.CurrentStatusID, history, report); err != nil {
		return nil, report, err
	}

	return &goal.Goal{
		ID:              row.ID,
		LessonID:        row.LessonID,
		Description:     row.Description,
		CurrentStatusID: row.CurrentStatusID,
		History:         history,
		CreatedAt:       row.CreatedAt.UTC(),
		UpdatedAt:       row.UpdatedAt.UTC(),
	}, report, nil
}
