package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/lifecycle"
	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// fakeReconciliationStore serves canned divergences and records repairs.
type fakeReconciliationStore struct {
	diverged map[lifecycle.EntityKind][]lifecycle.Divergence
	repairs  []repairCall

	findErr   error
	repairErr error
}

type repairCall struct {
	kind     lifecycle.EntityKind
	ownerID  string
	recordID string
}

func (s *fakeReconciliationStore) FindDiverged(_ context.Context, kind lifecycle.EntityKind, limit int) ([]lifecycle.Divergence, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	out := s.diverged[kind]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *fakeReconciliationStore) RepairPointer(_ context.Context, kind lifecycle.EntityKind, ownerID, recordID string) error {
	if s.repairErr != nil {
		return s.repairErr
	}
	s.repairs = append(s.repairs, repairCall{kind: kind, ownerID: ownerID, recordID: recordID})
	return nil
}

type capturingPublisher struct {
	events []shared.Event
}

func (p *capturingPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func lessonDivergence(ownerID string) lifecycle.Divergence {
	return lifecycle.Divergence{
		Kind:            lifecycle.KindLesson,
		OwnerID:         ownerID,
		PointerRecordID: "stale-rec",
		LatestRecordID:  "latest-rec",
		LatestCreatedAt: time.Date(2026, 4, 2, 9, 0, 0, 0, time.UTC),
	}
}

func TestReconcilePointers_RepairsDivergedPointers(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindLesson: {lessonDivergence("lesson-1"), lessonDivergence("lesson-2")},
		},
	}
	publisher := &capturingPublisher{}
	job := NewReconcilePointersJob(store, publisher, nil, DefaultReconcilePointersConfig())

	require.NoError(t, job.Run(context.Background()))

	// Every pointer moves to the latest-by-time record.
	require.Len(t, store.repairs, 2)
	assert.Equal(t, "latest-rec", store.repairs[0].recordID)
	assert.Equal(t, "lesson-1", store.repairs[0].ownerID)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.DivergedFound)
	assert.Equal(t, 2, stats.PointersRepaired)
	assert.Equal(t, 2, stats.RepairsByKind[lifecycle.KindLesson])
	assert.Empty(t, stats.Errors)
}

func TestReconcilePointers_PublishesRepairEvents(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindGoal: {{
				Kind:            lifecycle.KindGoal,
				OwnerID:         "goal-1",
				PointerRecordID: "stale-rec",
				LatestRecordID:  "latest-rec",
			}},
		},
	}
	publisher := &capturingPublisher{}
	job := NewReconcilePointersJob(store, publisher, nil, DefaultReconcilePointersConfig())

	require.NoError(t, job.Run(context.Background()))

	require.Len(t, publisher.events, 1)
	event, ok := publisher.events[0].(shared.PointerRepairedEvent)
	require.True(t, ok)
	assert.Equal(t, shared.EventPointerRepaired, event.EventType())
	assert.Equal(t, "goal-1", event.AggregateID())
	assert.Equal(t, "goal", event.EntityKind)
	assert.Equal(t, "stale-rec", event.StalePointerID)
	assert.Equal(t, "latest-rec", event.RepairedToID)
	assert.Equal(t, "reconcile_pointers", event.DetectedByJob)
}

func TestReconcilePointers_DryRunDetectsWithoutRepairing(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindLesson: {lessonDivergence("lesson-1")},
		},
	}
	publisher := &capturingPublisher{}

	config := DefaultReconcilePointersConfig()
	config.DryRun = true
	job := NewReconcilePointersJob(store, publisher, nil, config)

	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, store.repairs)
	assert.Empty(t, publisher.events)

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.DivergedFound)
	assert.Equal(t, 0, stats.PointersRepaired)
}

func TestReconcilePointers_NoDivergences(t *testing.T) {
	store := &fakeReconciliationStore{}
	job := NewReconcilePointersJob(store, nil, nil, DefaultReconcilePointersConfig())

	require.NoError(t, job.Run(context.Background()))

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.DivergedFound)
	assert.Empty(t, store.repairs)
}

func TestReconcilePointers_RepairFailureReportedInError(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindLesson: {lessonDivergence("lesson-1")},
		},
		repairErr: errors.New("connection refused"),
	}

	config := DefaultReconcilePointersConfig()
	config.Kinds = []lifecycle.EntityKind{lifecycle.KindLesson}
	job := NewReconcilePointersJob(store, nil, nil, config)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reconciliation finished with")

	stats := job.LastRunStats()
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.PointersRepaired)
	require.Len(t, stats.Errors, 1)
}

// fakeRunLock counts acquisitions and releases.
type fakeRunLock struct {
	held       bool
	acquireErr error

	acquires int
	releases []string
}

func (l *fakeRunLock) AcquireLock(_ context.Context, _ string, _ time.Duration) (bool, error) {
	l.acquires++
	if l.acquireErr != nil {
		return false, l.acquireErr
	}
	return !l.held, nil
}

func (l *fakeRunLock) ReleaseLock(_ context.Context, resource string) error {
	l.releases = append(l.releases, resource)
	return nil
}

func TestReconcilePointers_RunLockAcquiredAndReleased(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindLesson: {lessonDivergence("lesson-1")},
		},
	}
	lock := &fakeRunLock{}
	job := NewReconcilePointersJob(store, nil, nil, DefaultReconcilePointersConfig()).WithRunLock(lock)

	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, store.repairs, 1)
	assert.Equal(t, 1, lock.acquires)
	assert.Equal(t, []string{"reconcile_pointers"}, lock.releases)
}

func TestReconcilePointers_HeldRunLockSkipsRun(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindLesson: {lessonDivergence("lesson-1")},
		},
	}
	lock := &fakeRunLock{held: true}
	job := NewReconcilePointersJob(store, nil, nil, DefaultReconcilePointersConfig()).WithRunLock(lock)

	// Another instance is already reconciling; this run is a no-op.
	require.NoError(t, job.Run(context.Background()))

	assert.Empty(t, store.repairs)
	assert.Empty(t, lock.releases)
}

func TestReconcilePointers_RunLockFailureDoesNotBlockRepair(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindLesson: {lessonDivergence("lesson-1")},
		},
	}
	lock := &fakeRunLock{acquireErr: errors.New("connection refused")}
	job := NewReconcilePointersJob(store, nil, nil, DefaultReconcilePointersConfig()).WithRunLock(lock)

	// Repairs are idempotent, so an unreachable lock degrades gracefully.
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, store.repairs, 1)
	assert.Empty(t, lock.releases)
}

func TestReconcilePointers_ConfigDefaults(t *testing.T) {
	// An empty config is filled with safe defaults.
	job := NewReconcilePointersJob(&fakeReconciliationStore{}, nil, nil, ReconcilePointersConfig{})

	assert.Equal(t, lifecycle.AllKinds(), job.config.Kinds)
	assert.Equal(t, 100, job.config.BatchLimit)
	assert.Equal(t, "reconcile_pointers", job.Name())
	assert.NotEmpty(t, job.Description())
}

func TestReconcilePointers_BatchLimitIsRespected(t *testing.T) {
	store := &fakeReconciliationStore{
		diverged: map[lifecycle.EntityKind][]lifecycle.Divergence{
			lifecycle.KindLesson: {
				lessonDivergence("lesson-1"),
				lessonDivergence("lesson-2"),
				lessonDivergence("lesson-3"),
			},
		},
	}

	config := DefaultReconcilePointersConfig()
	config.BatchLimit = 2
	job := NewReconcilePointersJob(store, nil, nil, config)

	require.NoError(t, job.Run(context.Background()))

	// The remainder is picked up by the next run.
	assert.Len(t, store.repairs, 2)
}
