package goal

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
)

func validGoalParams() NewGoalParams {
	return NewGoalParams{
		ID:          "4c5d6e7f-9876-4fed-8cba-888899990000",
		LessonID:    "7f8e9d0c-1234-4abc-8def-000011112222",
		Description: " Pass the unit test on derivatives ",
	}
}

func TestNewGoal_CreatedWithEmptyHistory(t *testing.T) {
	g, err := NewGoal(validGoalParams())
	require.NoError(t, err)

	// Цель до первого перехода не имеет ни одной записи.
	assert.True(t, g.History.IsEmpty())
	assert.False(t, g.IsAgreed())
	assert.Empty(t, g.CurrentStatusID)
	assert.False(t, g.PointerDiverged())

	// Формулировка обрезается.
	assert.Equal(t, "Pass the unit test on derivatives", g.Description)
}

func TestNewGoal_Validation(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*NewGoalParams)
		wantErr error
	}{
		{"missing lesson", func(p *NewGoalParams) { p.LessonID = "" }, ErrMissingLesson},
		{"empty description", func(p *NewGoalParams) { p.Description = "   " }, ErrInvalidDescription},
		{"description too long", func(p *NewGoalParams) { p.Description = strings.Repeat("x", 501) }, ErrInvalidDescription},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			params := validGoalParams()
			tc.mutate(&params)

			_, err := NewGoal(params)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}
}

func TestGoal_AgreementFlow(t *testing.T) {
	g, err := NewGoal(validGoalParams())
	require.NoError(t, err)

	desc := lifecycle.GoalDescriptor()

	proposed, err := lifecycle.NewRecord(desc, lifecycle.NewRecordParams{
		OwnerID: g.ID,
		Status:  lifecycle.GoalProposed,
	})
	require.NoError(t, err)
	agreed, err := lifecycle.NewRecord(desc, lifecycle.NewRecordParams{
		OwnerID: g.ID,
		Status:  lifecycle.GoalAgreed,
		Context: map[string]any{"agreed_by": "student"},
	})
	require.NoError(t, err)

	g.History, err = g.History.Append(proposed)
	require.NoError(t, err)
	assert.False(t, g.IsAgreed())

	g.History, err = g.History.Append(agreed)
	require.NoError(t, err)
	g.CurrentStatusID = agreed.ID

	assert.True(t, g.IsAgreed())
	status, ok := g.Status()
	require.True(t, ok)
	assert.Equal(t, lifecycle.GoalAgreed, status)
}
