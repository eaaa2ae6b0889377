package lifecycle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRecord_Valid(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)

	rec, err := NewRecord(LessonDescriptor(), NewRecordParams{
		ID:        "rec-1",
		OwnerID:   "lesson-1",
		Status:    LessonRequested,
		Context:   map[string]any{"source": "mobile_app"},
		CreatedAt: createdAt,
	})
	require.NoError(t, err)

	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "lesson-1", rec.OwnerID)
	assert.Equal(t, KindLesson, rec.Kind)
	assert.Equal(t, LessonRequested, rec.Status)
	assert.Equal(t, createdAt, rec.CreatedAt)
	assert.Equal(t, map[string]any{"source": "mobile_app"}, rec.Context)
}

func TestNewRecord_GeneratesID(t *testing.T) {
	a, err := NewRecord(GoalDescriptor(), NewRecordParams{OwnerID: "goal-1", Status: GoalProposed})
	require.NoError(t, err)
	b, err := NewRecord(GoalDescriptor(), NewRecordParams{OwnerID: "goal-1", Status: GoalProposed})
	require.NoError(t, err)

	assert.NotEmpty(t, a.ID)
	assert.NotEmpty(t, b.ID)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestNewRecord_ZeroCreatedAtMeansNow(t *testing.T) {
	before := time.Now().UTC()
	rec, err := NewRecord(PlanDescriptor(), NewRecordParams{OwnerID: "plan-1", Status: PlanDraft})
	require.NoError(t, err)
	after := time.Now().UTC()

	assert.False(t, rec.CreatedAt.Before(before))
	assert.False(t, rec.CreatedAt.After(after))
}

func TestNewRecord_RejectsStatusOutsideEnumeration(t *testing.T) {
	_, err := NewRecord(LessonDescriptor(), NewRecordParams{
		OwnerID: "lesson-1",
		Status:  Status("paused"),
	})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, KindLesson, valErr.Kind)
	assert.Equal(t, "status", valErr.Field)
}

func TestNewRecord_RejectsEmptyOwner(t *testing.T) {
	_, err := NewRecord(LessonDescriptor(), NewRecordParams{Status: LessonRequested})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "owner_id", valErr.Field)
}

func TestNewRecord_RejectsNilDescriptor(t *testing.T) {
	_, err := NewRecord(nil, NewRecordParams{OwnerID: "lesson-1", Status: LessonRequested})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "kind", valErr.Field)
}

func TestNewRecord_RejectsFutureTimestamp(t *testing.T) {
	_, err := NewRecord(LessonDescriptor(), NewRecordParams{
		OwnerID:   "lesson-1",
		Status:    LessonRequested,
		CreatedAt: time.Now().UTC().Add(time.Minute),
	})

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "created_at", valErr.Field)
}

func TestNewRecord_ToleratesSmallClockSkew(t *testing.T) {
	// Метка на секунду впереди серверных часов в пределах допуска.
	rec, err := NewRecord(LessonDescriptor(), NewRecordParams{
		OwnerID:   "lesson-1",
		Status:    LessonRequested,
		CreatedAt: time.Now().UTC().Add(time.Second),
	})
	require.NoError(t, err)
	assert.NotNil(t, rec)
}

func TestNewRecord_NormalizesTimestampToUTC(t *testing.T) {
	almaty, err := time.LoadLocation("Asia/Almaty")
	require.NoError(t, err)

	local := time.Date(2026, 3, 10, 20, 0, 0, 0, almaty)
	rec, err := NewRecord(LessonDescriptor(), NewRecordParams{
		OwnerID:   "lesson-1",
		Status:    LessonRequested,
		CreatedAt: local,
	})
	require.NoError(t, err)

	assert.Equal(t, time.UTC, rec.CreatedAt.Location())
	assert.True(t, rec.CreatedAt.Equal(local))
}

func TestStatusRecord_CloneIsDeep(t *testing.T) {
	rec, err := NewRecord(GoalDescriptor(), NewRecordParams{
		OwnerID: "goal-1",
		Status:  GoalProposed,
		Context: map[string]any{"proposed_by": "student"},
	})
	require.NoError(t, err)

	clone := rec.Clone()
	require.True(t, rec.Equal(clone))

	// Мутация контекста копии не видна оригиналу.
	clone.Context["proposed_by"] = "tutor"
	assert.Equal(t, "student", rec.Context["proposed_by"])
	assert.False(t, rec.Equal(clone))
}

func TestStatusRecord_Equal(t *testing.T) {
	createdAt := time.Date(2026, 3, 10, 14, 30, 0, 0, time.UTC)
	params := NewRecordParams{
		ID:        "rec-1",
		OwnerID:   "goal-1",
		Status:    GoalProposed,
		CreatedAt: createdAt,
	}

	a, err := NewRecord(GoalDescriptor(), params)
	require.NoError(t, err)
	b, err := NewRecord(GoalDescriptor(), params)
	require.NoError(t, err)

	assert.True(t, a.Equal(b))

	b.Status = GoalAgreed
	assert.False(t, a.Equal(b))

	var nilRec *StatusRecord
	assert.False(t, a.Equal(nil))
	assert.True(t, nilRec.Equal(nil))
}
