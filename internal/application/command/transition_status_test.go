package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
	"github.com/urok-hub/urok-marketplace/pkg/timeutil"
)

// fakeStatusStore keeps histories in memory and mimics the conditional
// pointer update of the real store.
type fakeStatusStore struct {
	current map[string]*lifecycle.StatusRecord // ownerID -> current record
	appends []appendCall

	currentErr error
	appendErr  error
}

type appendCall struct {
	record            *lifecycle.StatusRecord
	expectedCurrentID string
}

func newFakeStatusStore() *fakeStatusStore {
	return &fakeStatusStore{current: make(map[string]*lifecycle.StatusRecord)}
}

func (s *fakeStatusStore) CurrentRecord(_ context.Context, _ lifecycle.EntityKind, ownerID string) (*lifecycle.StatusRecord, error) {
	if s.currentErr != nil {
		return nil, s.currentErr
	}
	rec, ok := s.current[ownerID]
	if !ok {
		return nil, nil
	}
	return rec.Clone(), nil
}

func (s *fakeStatusStore) AppendStatus(_ context.Context, rec *lifecycle.StatusRecord, expectedCurrentID string) error {
	if s.appendErr != nil {
		return s.appendErr
	}

	actualID := ""
	if cur, ok := s.current[rec.OwnerID]; ok {
		actualID = cur.ID
	}
	if actualID != expectedCurrentID {
		return &lifecycle.ConcurrentTransitionError{Kind: rec.Kind, OwnerID: rec.OwnerID}
	}

	s.appends = append(s.appends, appendCall{record: rec.Clone(), expectedCurrentID: expectedCurrentID})
	s.current[rec.OwnerID] = rec.Clone()
	return nil
}

func (s *fakeStatusStore) LoadHistory(_ context.Context, _ lifecycle.EntityKind, ownerID string) (*lifecycle.History, error) {
	rec, ok := s.current[ownerID]
	if !ok {
		return lifecycle.EmptyHistory(), nil
	}
	return lifecycle.EmptyHistory().Append(rec)
}

// fakePublisher records published events.
type fakePublisher struct {
	events []shared.Event
	err    error
}

func (p *fakePublisher) Publish(event shared.Event) error {
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, event)
	return nil
}

func tutorActor() shared.Actor {
	return shared.Actor{ID: "1a2b3c4d-aaaa-4bbb-8ccc-dddd00001111", Role: shared.RoleTutor}
}

func fixedClock() timeutil.Clock {
	return timeutil.FixedClock{Time: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)}
}

func TestTransitionStatus_FirstTransition(t *testing.T) {
	store := newFakeStatusStore()
	publisher := &fakePublisher{}
	handler := NewTransitionStatusHandler(store, nil, publisher, fixedClock())

	result, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindGoal,
		OwnerID: "goal-1",
		Status:  lifecycle.GoalProposed,
		Actor:   tutorActor(),
	})
	require.NoError(t, err)

	assert.Nil(t, result.From)
	assert.Equal(t, lifecycle.GoalProposed, result.Record.Status)
	assert.Equal(t, "goal-1", result.Record.OwnerID)

	// Пустая история: указатель обновляется от пустого ожидаемого значения.
	require.Len(t, store.appends, 1)
	assert.Equal(t, "", store.appends[0].expectedCurrentID)

	require.Len(t, publisher.events, 1)
	event, ok := publisher.events[0].(shared.StatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, shared.EventGoalStatusChanged, event.EventType())
	assert.Equal(t, "", event.FromStatus)
	assert.Equal(t, "proposed", event.ToStatus)
}

func TestTransitionStatus_SubsequentTransition(t *testing.T) {
	store := newFakeStatusStore()
	publisher := &fakePublisher{}
	handler := NewTransitionStatusHandler(store, nil, publisher, fixedClock())

	_, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindLesson,
		OwnerID: "lesson-1",
		Status:  lifecycle.LessonRequested,
		Actor:   tutorActor(),
	})
	require.NoError(t, err)

	result, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:          lifecycle.KindLesson,
		OwnerID:       "lesson-1",
		Status:        lifecycle.LessonConfirmed,
		Context:       map[string]any{"quote_id": "quote-1"},
		Actor:         tutorActor(),
		CorrelationID: "corr-42",
	})
	require.NoError(t, err)

	require.NotNil(t, result.From)
	assert.Equal(t, lifecycle.LessonRequested, *result.From)
	assert.Equal(t, lifecycle.LessonConfirmed, result.Record.Status)
	assert.Equal(t, map[string]any{"quote_id": "quote-1"}, result.Record.Context)

	// Условное обновление указателя несёт идентификатор предыдущей записи.
	require.Len(t, store.appends, 2)
	assert.Equal(t, store.appends[0].record.ID, store.appends[1].expectedCurrentID)

	event, ok := publisher.events[1].(shared.StatusChangedEvent)
	require.True(t, ok)
	assert.Equal(t, "requested", event.FromStatus)
	assert.Equal(t, "confirmed", event.ToStatus)
	assert.Equal(t, "corr-42", event.CorrelationID)
}

func TestTransitionStatus_InvalidTransitionLeavesNoSideEffects(t *testing.T) {
	store := newFakeStatusStore()
	publisher := &fakePublisher{}
	handler := NewTransitionStatusHandler(store, nil, publisher, fixedClock())

	_, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindLesson,
		OwnerID: "lesson-1",
		Status:  lifecycle.LessonRequested,
		Actor:   tutorActor(),
	})
	require.NoError(t, err)

	// requested -> completed отсутствует в таблице урока.
	_, err = handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindLesson,
		OwnerID: "lesson-1",
		Status:  lifecycle.LessonCompleted,
		Actor:   tutorActor(),
	})

	var invErr *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invErr)
	assert.ErrorIs(t, err, shared.ErrStateTransition)

	// Ни записи, ни события: отклонённый переход бесследен.
	assert.Len(t, store.appends, 1)
	assert.Len(t, publisher.events, 1)
}

func TestTransitionStatus_IllegalInitialStatusRejected(t *testing.T) {
	store := newFakeStatusStore()
	handler := NewTransitionStatusHandler(store, nil, nil, fixedClock())

	_, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindMilestone,
		OwnerID: "milestone-1",
		Status:  lifecycle.MilestoneAchieved,
		Actor:   tutorActor(),
	})

	var invErr *lifecycle.InvalidTransitionError
	require.ErrorAs(t, err, &invErr)
	assert.Nil(t, invErr.From)
	assert.Empty(t, store.appends)
}

func TestTransitionStatus_ConcurrentLoserGetsTypedError(t *testing.T) {
	store := newFakeStatusStore()
	store.appendErr = &lifecycle.ConcurrentTransitionError{Kind: lifecycle.KindLesson, OwnerID: "lesson-1"}
	handler := NewTransitionStatusHandler(store, nil, nil, fixedClock())

	_, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindLesson,
		OwnerID: "lesson-1",
		Status:  lifecycle.LessonRequested,
		Actor:   tutorActor(),
	})

	// Ошибка гонки отдаётся без обёртывания: вызывающая сторона повторяет
	// запрос со свежим текущим статусом.
	var concurrent *lifecycle.ConcurrentTransitionError
	require.ErrorAs(t, err, &concurrent)
	assert.ErrorIs(t, err, shared.ErrConcurrentModification)
}

func TestTransitionStatus_CommandValidation(t *testing.T) {
	handler := NewTransitionStatusHandler(newFakeStatusStore(), nil, nil, fixedClock())

	cases := []struct {
		name  string
		cmd   TransitionStatusCommand
		field string
	}{
		{
			name:  "unknown kind",
			cmd:   TransitionStatusCommand{Kind: "invoice", OwnerID: "x", Status: "draft", Actor: tutorActor()},
			field: "kind",
		},
		{
			name:  "missing owner",
			cmd:   TransitionStatusCommand{Kind: lifecycle.KindLesson, Status: lifecycle.LessonRequested, Actor: tutorActor()},
			field: "owner_id",
		},
		{
			name:  "missing status",
			cmd:   TransitionStatusCommand{Kind: lifecycle.KindLesson, OwnerID: "lesson-1", Actor: tutorActor()},
			field: "status",
		},
		{
			name:  "missing actor",
			cmd:   TransitionStatusCommand{Kind: lifecycle.KindLesson, OwnerID: "lesson-1", Status: lifecycle.LessonRequested},
			field: "actor",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := handler.Handle(context.Background(), tc.cmd)

			var valErr *lifecycle.ValidationError
			require.ErrorAs(t, err, &valErr)
			assert.Equal(t, tc.field, valErr.Field)
		})
	}
}

func TestTransitionStatus_StoreFailureIsWrapped(t *testing.T) {
	store := newFakeStatusStore()
	store.currentErr = errors.New("connection refused")
	handler := NewTransitionStatusHandler(store, nil, nil, fixedClock())

	_, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindLesson,
		OwnerID: "lesson-1",
		Status:  lifecycle.LessonRequested,
		Actor:   tutorActor(),
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to load current status")
}

func TestTransitionStatus_PublishFailureDoesNotFailTransition(t *testing.T) {
	store := newFakeStatusStore()
	publisher := &fakePublisher{err: errors.New("bus closed")}
	handler := NewTransitionStatusHandler(store, nil, publisher, fixedClock())

	result, err := handler.Handle(context.Background(), TransitionStatusCommand{
		Kind:    lifecycle.KindGoal,
		OwnerID: "goal-1",
		Status:  lifecycle.GoalProposed,
		Actor:   tutorActor(),
	})

	// Переход уже свершившийся факт; сбой публикации его не отменяет.
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	assert.Len(t, store.appends, 1)
}
