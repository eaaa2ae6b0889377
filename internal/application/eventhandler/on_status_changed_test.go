package eventhandler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// fakeCache записывает удалённые ключи.
type fakeCache struct {
	deleted   []string
	deleteErr error
}

func (c *fakeCache) Get(_ context.Context, _ string, _ interface{}) error {
	return errors.New("cache miss")
}

func (c *fakeCache) Set(_ context.Context, _ string, _ interface{}, _ time.Duration) error {
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	if c.deleteErr != nil {
		return c.deleteErr
	}
	c.deleted = append(c.deleted, keys...)
	return nil
}

func tutor() shared.Actor {
	return shared.Actor{ID: "tutor-1", Role: shared.RoleTutor}
}

// replayedEvent имитирует событие, восстановленное из сообщения другого
// инстанса: конкретный тип не переживает транспорт, остаются тип,
// идентификатор агрегата и payload.
type replayedEvent struct {
	eventType shared.EventType
	ownerID   string
	payload   map[string]interface{}
}

func (e replayedEvent) EventType() shared.EventType     { return e.eventType }
func (e replayedEvent) OccurredAt() time.Time           { return time.Now().UTC() }
func (e replayedEvent) AggregateID() string             { return e.ownerID }
func (e replayedEvent) Payload() map[string]interface{} { return e.payload }

func TestOnStatusChanged_InvalidatesLessonCaches(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnStatusChangedHandler(cache, nil)

	event := shared.NewStatusChangedEvent("lesson", "lesson-1", "rec-2", "requested", "confirmed", tutor())
	require.NoError(t, handler.Handle(event))

	// Для урока устаревают и таймлайн, и карточка.
	assert.Equal(t, []string{"timeline:lesson:lesson-1", "lesson:lesson-1"}, cache.deleted)
}

func TestOnStatusChanged_NonLessonKindsInvalidateTimelineOnly(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnStatusChangedHandler(cache, nil)

	event := shared.NewStatusChangedEvent("goal", "goal-1", "rec-1", "", "proposed", tutor())
	require.NoError(t, handler.Handle(event))

	assert.Equal(t, []string{"timeline:goal:goal-1"}, cache.deleted)
}

func TestOnStatusChanged_DeleteFailureIsReturnedForRetry(t *testing.T) {
	cache := &fakeCache{deleteErr: errors.New("connection refused")}
	handler := NewOnStatusChangedHandler(cache, nil)

	event := shared.NewStatusChangedEvent("lesson", "lesson-1", "rec-2", "requested", "confirmed", tutor())
	err := handler.Handle(event)

	// Ошибка отдаётся диспетчеру: он повторит попытку.
	require.Error(t, err)
}

func TestOnStatusChanged_InvalidatesCachesForReplayedEvent(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnStatusChangedHandler(cache, nil)

	// Событие пришло с другого инстанса по Redis: конкретной структуры
	// нет, обработчик восстанавливает поля из payload.
	event := replayedEvent{
		eventType: shared.EventLessonStatusChanged,
		ownerID:   "lesson-1",
		payload: map[string]interface{}{
			"entity_kind": "lesson",
			"to_status":   "confirmed",
		},
	}
	require.NoError(t, handler.Handle(event))

	assert.Equal(t, []string{"timeline:lesson:lesson-1", "lesson:lesson-1"}, cache.deleted)
}

func TestOnStatusChanged_ReplayedNonLessonEventInvalidatesTimelineOnly(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnStatusChangedHandler(cache, nil)

	event := replayedEvent{
		eventType: shared.EventGoalStatusChanged,
		ownerID:   "goal-1",
		payload: map[string]interface{}{
			"entity_kind": "goal",
			"to_status":   "agreed",
		},
	}
	require.NoError(t, handler.Handle(event))

	assert.Equal(t, []string{"timeline:goal:goal-1"}, cache.deleted)
}

func TestOnStatusChanged_ReplayedEventWithoutKindIsIgnored(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnStatusChangedHandler(cache, nil)

	event := replayedEvent{
		eventType: shared.EventLessonStatusChanged,
		ownerID:   "lesson-1",
		payload:   map[string]interface{}{},
	}
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, cache.deleted)
}

func TestOnStatusChanged_IgnoresForeignEvents(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnStatusChangedHandler(cache, nil)

	event := shared.NewPointerRepairedEvent("goal", "goal-1", "stale", "latest", "reconcile_pointers")
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, cache.deleted)
}

func TestOnPointerRepaired_InvalidatesCaches(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnPointerRepairedHandler(cache, nil)

	event := shared.NewPointerRepairedEvent("lesson", "lesson-1", "stale-rec", "latest-rec", "reconcile_pointers")
	require.NoError(t, handler.Handle(event))

	assert.Equal(t, []string{"timeline:lesson:lesson-1", "lesson:lesson-1"}, cache.deleted)
}

func TestOnPointerRepaired_InvalidatesCachesForReplayedEvent(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnPointerRepairedHandler(cache, nil)

	event := replayedEvent{
		eventType: shared.EventPointerRepaired,
		ownerID:   "lesson-1",
		payload: map[string]interface{}{
			"entity_kind":      "lesson",
			"stale_pointer_id": "stale-rec",
			"repaired_to_id":   "latest-rec",
			"detected_by_job":  "reconcile_pointers",
		},
	}
	require.NoError(t, handler.Handle(event))

	assert.Equal(t, []string{"timeline:lesson:lesson-1", "lesson:lesson-1"}, cache.deleted)
}

func TestOnStatusChanged_IgnoresReplayedPointerRepair(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnStatusChangedHandler(cache, nil)

	// Тип события решает, а не наличие entity_kind в payload.
	event := replayedEvent{
		eventType: shared.EventPointerRepaired,
		ownerID:   "goal-1",
		payload: map[string]interface{}{
			"entity_kind": "goal",
		},
	}
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, cache.deleted)
}

func TestOnPointerRepaired_IgnoresForeignEvents(t *testing.T) {
	cache := &fakeCache{}
	handler := NewOnPointerRepairedHandler(cache, nil)

	event := shared.NewStatusChangedEvent("lesson", "lesson-1", "rec-2", "requested", "confirmed", tutor())
	require.NoError(t, handler.Handle(event))

	assert.Empty(t, cache.deleted)
}
