package postgres

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
)

func completedLessonRecord(id string) *lifecycle.StatusRecord {
	return &lifecycle.StatusRecord{
		ID:        id,
		OwnerID:   "lesson-1",
		Kind:      lifecycle.KindLesson,
		Status:    lifecycle.LessonCompleted,
		CreatedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestResolveCurrent_NoHistory(t *testing.T) {
	rec, err := resolveCurrent(lifecycle.KindLesson, "lesson-1", nil, nil)

	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestResolveCurrent_PointerMatchesLatest(t *testing.T) {
	latest := completedLessonRecord("rec-2")
	pointer := "rec-2"

	rec, err := resolveCurrent(lifecycle.KindLesson, "lesson-1", &pointer, latest)

	require.NoError(t, err)
	assert.Equal(t, latest, rec)
}

func TestResolveCurrent_NullPointerWithHistory(t *testing.T) {
	// A wiped pointer over a non-empty history must not look like a fresh
	// owner: a completed lesson would otherwise accept "requested" again.
	latest := completedLessonRecord("rec-2")

	rec, err := resolveCurrent(lifecycle.KindLesson, "lesson-1", nil, latest)

	require.Error(t, err)
	assert.Nil(t, rec)

	var mapErr *lifecycle.MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Equal(t, lifecycle.KindLesson, mapErr.Kind)
	assert.Equal(t, "lesson-1", mapErr.OwnerID)
	assert.Contains(t, mapErr.Reason, "null")
}

func TestResolveCurrent_PointerResolvesToNothing(t *testing.T) {
	pointer := "rec-gone"

	rec, err := resolveCurrent(lifecycle.KindGoal, "goal-1", &pointer, nil)

	require.Error(t, err)
	assert.Nil(t, rec)

	var mapErr *lifecycle.MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Contains(t, mapErr.Reason, "rec-gone")
}

func TestResolveCurrent_PointerDivergesFromLatest(t *testing.T) {
	latest := completedLessonRecord("rec-3")
	pointer := "rec-2"

	rec, err := resolveCurrent(lifecycle.KindLesson, "lesson-1", &pointer, latest)

	require.Error(t, err)
	assert.Nil(t, rec)

	var mapErr *lifecycle.MappingError
	require.ErrorAs(t, err, &mapErr)
	assert.Contains(t, mapErr.Reason, "rec-2")
	assert.Contains(t, mapErr.Reason, "rec-3")
}
