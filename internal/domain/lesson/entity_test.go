package lesson

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

func validLessonParams() NewLessonParams {
	return NewLessonParams{
		ID:              "7f8e9d0c-1234-4abc-8def-000011112222",
		QuoteID:         "quote-1",
		RequestID:       "request-1",
		StudentID:       shared.StudentID("0d3e9f1a-1111-4222-8333-444455556666"),
		TutorID:         shared.TutorID("1a2b3c4d-aaaa-4bbb-8ccc-dddd00001111"),
		Subject:         shared.Subject("Math"),
		ScheduledAt:     time.Date(2026, 9, 1, 15, 0, 0, 0, time.UTC),
		DurationMinutes: 60,
	}
}

func TestNewLesson_CreatedWithRequestedStatus(t *testing.T) {
	l, err := NewLesson(validLessonParams())
	require.NoError(t, err)

	// Урок рождается сразу с одной записью requested.
	assert.Equal(t, 1, l.History.Len())
	assert.Equal(t, lifecycle.LessonRequested, l.Status())
	assert.False(t, l.IsConfirmed())
	assert.False(t, l.IsFinished())

	// Указатель сразу согласован с историей.
	cur := l.Current()
	require.NotNil(t, cur)
	assert.Equal(t, cur.ID, l.CurrentStatusID)
	assert.False(t, l.PointerDiverged())

	// Предмет нормализуется к нижнему регистру.
	assert.Equal(t, shared.Subject("math"), l.Subject)
}

func TestNewLesson_Validation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*NewLessonParams)
		wantErr error
	}{
		{"missing quote", func(p *NewLessonParams) { p.QuoteID = "" }, ErrMissingQuote},
		{"bad student id", func(p *NewLessonParams) { p.StudentID = "student-1" }, ErrInvalidStudentID},
		{"bad tutor id", func(p *NewLessonParams) { p.TutorID = "" }, ErrInvalidTutorID},
		{"bad subject", func(p *NewLessonParams) { p.Subject = "a" }, ErrInvalidSubject},
		{"too short", func(p *NewLessonParams) { p.DurationMinutes = 10 }, ErrInvalidDuration},
		{"too long", func(p *NewLessonParams) { p.DurationMinutes = 300 }, ErrInvalidDuration},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validLessonParams()
			tc.mutate(&params)

			_, err := NewLesson(params)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestNewLesson_RequiresID(t *testing.T) {
	params := validLessonParams()
	params.ID = ""

	_, err := NewLesson(params)
	require.Error(t, err)
}

func TestLesson_IsFinished(t *testing.T) {
	l, err := NewLesson(validLessonParams())
	require.NoError(t, err)

	confirmed, err := lifecycle.NewRecord(lifecycle.LessonDescriptor(), lifecycle.NewRecordParams{
		OwnerID: l.ID,
		Status:  lifecycle.LessonConfirmed,
	})
	require.NoError(t, err)
	completed, err := lifecycle.NewRecord(lifecycle.LessonDescriptor(), lifecycle.NewRecordParams{
		OwnerID: l.ID,
		Status:  lifecycle.LessonCompleted,
	})
	require.NoError(t, err)

	l.History, err = l.History.Append(confirmed)
	require.NoError(t, err)
	assert.True(t, l.IsConfirmed())
	assert.False(t, l.IsFinished())

	l.History, err = l.History.Append(completed)
	require.NoError(t, err)
	assert.True(t, l.IsFinished())
}

func TestLesson_PointerDiverged(t *testing.T) {
	l, err := NewLesson(validLessonParams())
	require.NoError(t, err)

	l.CurrentStatusID = "stale-rec"
	assert.True(t, l.PointerDiverged())
}
