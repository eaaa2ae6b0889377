package messaging

import (
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fastRetryDispatcher builds a dispatcher with tight retry timings so tests
// stay quick. Handlers are registered synchronously for determinism.
func fastRetryDispatcher(t *testing.T, bus shared.EventBus) *Dispatcher {
	t.Helper()
	config := DefaultDispatcherConfig(bus)
	config.Logger = discardLogger()
	config.RetryConfig = RetryConfig{
		MaxRetries:        2,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
	d := NewDispatcher(config)
	t.Cleanup(func() { _ = d.Stop() })
	return d
}

func syncRegistration(name string, handler shared.EventHandler) HandlerRegistration {
	return HandlerRegistration{Name: name, Handler: handler, Timeout: time.Second}
}

func TestDispatcher_RoutesEventToRegisteredHandler(t *testing.T) {
	d := fastRetryDispatcher(t, nil)

	var calls int32
	require.NoError(t, d.RegisterHandler(shared.EventLessonStatusChanged,
		syncRegistration("count", func(shared.Event) error {
			atomic.AddInt32(&calls, 1)
			return nil
		})))

	require.NoError(t, d.Dispatch(statusChanged("lesson-1")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	// Events without a registered handler are dropped silently.
	require.NoError(t, d.Dispatch(shared.NewPointerRepairedEvent("goal", "goal-1", "a", "b", "job")))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	d := fastRetryDispatcher(t, nil)

	var attempts int32
	require.NoError(t, d.RegisterHandler(shared.EventLessonStatusChanged,
		syncRegistration("flaky", func(shared.Event) error {
			if atomic.AddInt32(&attempts, 1) < 3 {
				return errors.New("transient")
			}
			return nil
		})))

	require.NoError(t, d.Dispatch(statusChanged("lesson-1")))
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
	assert.Equal(t, 0, d.DeadLetterQueue().Size())
}

func TestDispatcher_ExhaustedRetriesGoToDeadLetterQueue(t *testing.T) {
	d := fastRetryDispatcher(t, nil)

	require.NoError(t, d.RegisterHandler(shared.EventLessonStatusChanged,
		syncRegistration("always_fails", func(shared.Event) error {
			return errors.New("permanent")
		})))

	err := d.Dispatch(statusChanged("lesson-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 3 attempts")

	entries := d.DeadLetterQueue().Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "always_fails", entries[0].HandlerName)
	assert.Equal(t, 3, entries[0].Attempts)
	assert.Equal(t, shared.EventLessonStatusChanged, entries[0].Event.EventType())
}

func TestDispatcher_RecoveryMiddlewareTurnsPanicIntoError(t *testing.T) {
	d := fastRetryDispatcher(t, nil)
	d.Use(RecoveryMiddleware(discardLogger()))

	require.NoError(t, d.RegisterHandler(shared.EventLessonStatusChanged,
		syncRegistration("panics", func(shared.Event) error {
			panic("boom")
		})))

	err := d.Dispatch(statusChanged("lesson-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "handler panic")
}

func TestDispatcher_HandlerTimeout(t *testing.T) {
	d := fastRetryDispatcher(t, nil)

	reg := HandlerRegistration{
		Name:       "slow",
		Handler:    func(shared.Event) error { time.Sleep(time.Second); return nil },
		MaxRetries: 1,
		Timeout:    10 * time.Millisecond,
	}
	require.NoError(t, d.RegisterHandler(shared.EventLessonStatusChanged, reg))

	err := d.Dispatch(statusChanged("lesson-1"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout")
}

func TestDispatcher_StartSubscribesToBus(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	d := fastRetryDispatcher(t, bus)

	done := make(chan struct{})
	require.NoError(t, d.Register(shared.EventGoalStatusChanged, "observer", func(shared.Event) error {
		close(done)
		return nil
	}))
	require.NoError(t, d.Start())

	event := shared.NewStatusChangedEvent("goal", "goal-1", "rec-1", "", "proposed", shared.SystemActor())
	require.NoError(t, bus.Publish(event))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event never reached the dispatcher")
	}
}

func TestDispatcher_RegistrationValidation(t *testing.T) {
	d := fastRetryDispatcher(t, nil)

	err := d.RegisterHandler(shared.EventLessonStatusChanged, HandlerRegistration{Name: "x"})
	assert.ErrorIs(t, err, ErrNilHandler)

	err = d.RegisterHandler(shared.EventLessonStatusChanged, HandlerRegistration{
		Handler: func(shared.Event) error { return nil },
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name is required")
}

func TestDeadLetterQueue_BoundedWithOldestDropped(t *testing.T) {
	q := NewDeadLetterQueue(2)

	q.Add(DeadLetterEntry{HandlerName: "a"})
	q.Add(DeadLetterEntry{HandlerName: "b"})
	q.Add(DeadLetterEntry{HandlerName: "c"})

	assert.Equal(t, 2, q.Size())

	entry, ok := q.Pop()
	require.True(t, ok)
	assert.Equal(t, "b", entry.HandlerName)

	entry, ok = q.Pop()
	require.True(t, ok)
	assert.Equal(t, "c", entry.HandlerName)

	_, ok = q.Pop()
	assert.False(t, ok)
}
