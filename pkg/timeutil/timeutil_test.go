package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClocks(t *testing.T) {
	sys := SystemClock{}
	assert.Equal(t, time.UTC, sys.Now().Location())

	frozen := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	fixed := FixedClock{Time: frozen}
	assert.Equal(t, frozen, fixed.Now())
	assert.Equal(t, frozen, fixed.Now())
}

func TestToAlmaty(t *testing.T) {
	utc := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)

	almaty := ToAlmaty(utc)
	assert.Equal(t, 15, almaty.Hour())
	assert.True(t, almaty.Equal(utc))

	assert.Equal(t, time.UTC, ToUTC(almaty).Location())
}

func TestStartOfDay(t *testing.T) {
	// 01:30 UTC is already 06:30 of the same day in Almaty.
	utc := time.Date(2026, 4, 2, 1, 30, 0, 0, time.UTC)

	start := StartOfDay(utc)
	assert.Equal(t, 0, start.Hour())
	assert.Equal(t, 2, start.Day())
	assert.Equal(t, AlmatyTZ, start.Location())
}

func TestIsSameDay(t *testing.T) {
	// 20:30 UTC crosses midnight in Almaty (UTC+5).
	evening := time.Date(2026, 4, 2, 20, 30, 0, 0, time.UTC)
	morning := time.Date(2026, 4, 2, 3, 0, 0, 0, time.UTC)

	assert.False(t, IsSameDay(evening, morning))
	assert.True(t, IsSameDay(morning, morning.Add(2*time.Hour)))
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 4, 2, 23, 0, 0, 0, time.UTC)
	b := time.Date(2026, 4, 5, 1, 0, 0, 0, time.UTC)

	// Both ends are normalized to Almaty day starts.
	assert.Equal(t, 2, DaysBetween(a, b))
	assert.Equal(t, 2, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestFormatDateTimeStr(t *testing.T) {
	utc := time.Date(2026, 4, 2, 10, 30, 0, 0, time.UTC)
	assert.Equal(t, "2026-04-02 15:30", FormatDateTimeStr(utc))
}

func TestParseDateAlmaty(t *testing.T) {
	parsed, err := ParseDateAlmaty("2026-04-02")
	require.NoError(t, err)

	assert.Equal(t, AlmatyTZ, parsed.Location())
	assert.Equal(t, time.Date(2026, 4, 2, 0, 0, 0, 0, AlmatyTZ), parsed)

	_, err = ParseDateAlmaty("02.04.2026")
	assert.Error(t, err)
}
