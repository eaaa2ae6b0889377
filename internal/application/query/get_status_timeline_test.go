package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
)

// fakeTimelineStore serves a fixed history for one owner.
type fakeTimelineStore struct {
	history   *lifecycle.History
	loadCalls int
	loadErr   error
}

func (s *fakeTimelineStore) CurrentRecord(_ context.Context, _ lifecycle.EntityKind, _ string) (*lifecycle.StatusRecord, error) {
	return s.history.Current(), nil
}

func (s *fakeTimelineStore) AppendStatus(_ context.Context, _ *lifecycle.StatusRecord, _ string) error {
	return errors.New("read-only fake")
}

func (s *fakeTimelineStore) LoadHistory(_ context.Context, _ lifecycle.EntityKind, _ string) (*lifecycle.History, error) {
	s.loadCalls++
	if s.loadErr != nil {
		return nil, s.loadErr
	}
	return s.history, nil
}

// fakeCache is a map-backed Cache that stores the concrete DTO values.
type fakeCache struct {
	values map[string]*StatusTimelineDTO

	gets    int
	sets    int
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]*StatusTimelineDTO)}
}

func (c *fakeCache) Get(_ context.Context, key string, dest interface{}) error {
	c.gets++
	cached, ok := c.values[key]
	if !ok {
		return errors.New("cache miss")
	}
	out, ok := dest.(*StatusTimelineDTO)
	if !ok {
		return errors.New("unexpected dest type")
	}
	*out = *cached
	return nil
}

func (c *fakeCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	c.sets++
	dto, ok := value.(*StatusTimelineDTO)
	if !ok {
		return errors.New("unexpected value type")
	}
	cp := *dto
	c.values[key] = &cp
	return nil
}

func (c *fakeCache) Delete(_ context.Context, keys ...string) error {
	c.deletes = append(c.deletes, keys...)
	for _, key := range keys {
		delete(c.values, key)
	}
	return nil
}

func goalHistory(t *testing.T) *lifecycle.History {
	t.Helper()
	base := time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC)

	desc := lifecycle.GoalDescriptor()
	first, err := lifecycle.NewRecord(desc, lifecycle.NewRecordParams{
		ID:        "rec-1",
		OwnerID:   "goal-1",
		Status:    lifecycle.GoalProposed,
		CreatedAt: base,
	})
	require.NoError(t, err)
	second, err := lifecycle.NewRecord(desc, lifecycle.NewRecordParams{
		ID:        "rec-2",
		OwnerID:   "goal-1",
		Status:    lifecycle.GoalAgreed,
		Context:   map[string]any{"agreed_by": "student"},
		CreatedAt: base.Add(time.Hour),
	})
	require.NoError(t, err)

	history, err := lifecycle.NewHistory([]lifecycle.StatusRecord{*first, *second})
	require.NoError(t, err)
	return history
}

func TestGetStatusTimeline_CacheMissReadsStore(t *testing.T) {
	store := &fakeTimelineStore{history: goalHistory(t)}
	cache := newFakeCache()
	handler := NewGetStatusTimelineHandler(store, cache)

	dto, err := handler.Handle(context.Background(), GetStatusTimelineQuery{
		Kind:    lifecycle.KindGoal,
		OwnerID: "goal-1",
	})
	require.NoError(t, err)

	assert.False(t, dto.FromCache)
	assert.Equal(t, "goal", dto.Kind)
	assert.Equal(t, "goal-1", dto.OwnerID)
	assert.Equal(t, "agreed", dto.CurrentStatus)
	require.Len(t, dto.Items, 2)
	assert.Equal(t, "rec-1", dto.Items[0].RecordID)
	assert.Equal(t, "proposed", dto.Items[0].Status)
	assert.Equal(t, "rec-2", dto.Items[1].RecordID)
	assert.Equal(t, map[string]any{"agreed_by": "student"}, dto.Items[1].Context)
	assert.NotEmpty(t, dto.Items[0].CreatedAtLocal)

	assert.Equal(t, 1, store.loadCalls)
	assert.Equal(t, 1, cache.sets)
}

func TestGetStatusTimeline_CacheHitSkipsStore(t *testing.T) {
	store := &fakeTimelineStore{history: goalHistory(t)}
	cache := newFakeCache()
	handler := NewGetStatusTimelineHandler(store, cache)

	_, err := handler.Handle(context.Background(), GetStatusTimelineQuery{
		Kind:    lifecycle.KindGoal,
		OwnerID: "goal-1",
	})
	require.NoError(t, err)

	dto, err := handler.Handle(context.Background(), GetStatusTimelineQuery{
		Kind:    lifecycle.KindGoal,
		OwnerID: "goal-1",
	})
	require.NoError(t, err)

	assert.True(t, dto.FromCache)
	assert.Equal(t, "agreed", dto.CurrentStatus)
	assert.Equal(t, 1, store.loadCalls)
}

func TestGetStatusTimeline_BypassCache(t *testing.T) {
	store := &fakeTimelineStore{history: goalHistory(t)}
	cache := newFakeCache()
	handler := NewGetStatusTimelineHandler(store, cache)

	_, err := handler.Handle(context.Background(), GetStatusTimelineQuery{
		Kind:    lifecycle.KindGoal,
		OwnerID: "goal-1",
	})
	require.NoError(t, err)

	dto, err := handler.Handle(context.Background(), GetStatusTimelineQuery{
		Kind:        lifecycle.KindGoal,
		OwnerID:     "goal-1",
		BypassCache: true,
	})
	require.NoError(t, err)

	assert.False(t, dto.FromCache)
	assert.Equal(t, 2, store.loadCalls)
}

func TestGetStatusTimeline_NilCache(t *testing.T) {
	store := &fakeTimelineStore{history: goalHistory(t)}
	handler := NewGetStatusTimelineHandler(store, nil)

	dto, err := handler.Handle(context.Background(), GetStatusTimelineQuery{
		Kind:    lifecycle.KindGoal,
		OwnerID: "goal-1",
	})
	require.NoError(t, err)
	assert.Len(t, dto.Items, 2)
}

func TestGetStatusTimeline_EmptyHistory(t *testing.T) {
	store := &fakeTimelineStore{history: lifecycle.EmptyHistory()}
	handler := NewGetStatusTimelineHandler(store, nil)

	dto, err := handler.Handle(context.Background(), GetStatusTimelineQuery{
		Kind:    lifecycle.KindMilestone,
		OwnerID: "milestone-1",
	})
	require.NoError(t, err)

	assert.Empty(t, dto.Items)
	assert.Empty(t, dto.CurrentStatus)
}

func TestGetStatusTimeline_Validation(t *testing.T) {
	handler := NewGetStatusTimelineHandler(&fakeTimelineStore{history: lifecycle.EmptyHistory()}, nil)

	_, err := handler.Handle(context.Background(), GetStatusTimelineQuery{Kind: "invoice", OwnerID: "x"})
	var valErr *lifecycle.ValidationError
	require.ErrorAs(t, err, &valErr)

	_, err = handler.Handle(context.Background(), GetStatusTimelineQuery{Kind: lifecycle.KindGoal})
	require.ErrorAs(t, err, &valErr)
	assert.Equal(t, "owner_id", valErr.Field)
}

func TestTimelineCacheKey(t *testing.T) {
	assert.Equal(t, "timeline:lesson:lesson-1", TimelineCacheKey(lifecycle.KindLesson, "lesson-1"))
	assert.Equal(t, "timeline:lesson_plan:plan-1", TimelineCacheKey(lifecycle.KindLessonPlan, "plan-1"))
	assert.Equal(t, "lesson:lesson-1", LessonCacheKey("lesson-1"))
}
