package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/urok-hub/urok-marketplace/internal/domain/shared"
)

// syncBusConfig returns a config that runs handlers on the publisher's
// goroutine, so assertions need no synchronization.
func syncBusConfig() InMemoryEventBusConfig {
	config := DefaultInMemoryEventBusConfig()
	config.AsyncMode = false
	return config
}

func statusChanged(ownerID string) shared.StatusChangedEvent {
	return shared.NewStatusChangedEvent(
		"lesson", ownerID, "rec-2", "requested", "confirmed",
		shared.Actor{ID: "tutor-1", Role: shared.RoleTutor},
	)
}

func TestInMemoryEventBus_DeliversToTypedSubscriber(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var received []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventLessonStatusChanged, func(event shared.Event) error {
		received = append(received, event)
		return nil
	}))

	require.NoError(t, bus.Publish(statusChanged("lesson-1")))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventLessonStatusChanged, received[0].EventType())
	assert.Equal(t, "lesson-1", received[0].AggregateID())
}

func TestInMemoryEventBus_TypedSubscriberIgnoresOtherTypes(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventGoalStatusChanged, func(shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(statusChanged("lesson-1")))
	assert.Equal(t, 0, calls)
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	var types []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		types = append(types, event.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(statusChanged("lesson-1")))
	require.NoError(t, bus.Publish(shared.NewPointerRepairedEvent("goal", "goal-1", "stale", "latest", "reconcile_pointers")))

	assert.Equal(t, []shared.EventType{shared.EventLessonStatusChanged, shared.EventPointerRepaired}, types)
}

func TestInMemoryEventBus_HandlerErrorDoesNotFailPublish(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventLessonStatusChanged, func(shared.Event) error {
		return errors.New("cache unavailable")
	}))

	// The event already happened; a failing subscriber cannot veto it.
	assert.NoError(t, bus.Publish(statusChanged("lesson-1")))

	snapshot := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snapshot.TotalPublished)
	assert.Equal(t, int64(1), snapshot.TotalFailures)
}

func TestInMemoryEventBus_AsyncDelivery(t *testing.T) {
	config := DefaultInMemoryEventBusConfig()
	config.WorkerPoolSize = 2
	bus := NewInMemoryEventBus(config)

	var mu sync.Mutex
	received := 0
	require.NoError(t, bus.SubscribeAll(func(shared.Event) error {
		mu.Lock()
		received++
		mu.Unlock()
		return nil
	}))

	for i := 0; i < 5; i++ {
		require.NoError(t, bus.Publish(statusChanged("lesson-1")))
	}

	// Close waits for all pending handlers.
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 5, received)
}

func TestInMemoryEventBus_ClosedBusRejectsOperations(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(statusChanged("lesson-1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventLessonStatusChanged, func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}

func TestInMemoryEventBus_NilArguments(t *testing.T) {
	bus := NewInMemoryEventBus(syncBusConfig())
	defer bus.Close()

	assert.ErrorIs(t, bus.Subscribe(shared.EventLessonStatusChanged, nil), ErrNilHandler)
	assert.ErrorIs(t, bus.SubscribeAll(nil), ErrNilHandler)
	assert.ErrorIs(t, bus.Publish(nil), ErrNilEvent)
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// fakeRedisClient is an in-process stand-in for the Redis Pub/Sub surface.
type fakeRedisClient struct {
	mu        sync.Mutex
	published []string
	incoming  chan RedisMessage
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{incoming: make(chan RedisMessage, 16)}
}

func (c *fakeRedisClient) Publish(_ context.Context, _ string, message interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.published = append(c.published, message.(string))
	return nil
}

func (c *fakeRedisClient) Subscribe(_ context.Context, _ ...string) (<-chan RedisMessage, error) {
	return c.incoming, nil
}

func (c *fakeRedisClient) Close() error { return nil }

func (c *fakeRedisClient) publishedMessages() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.published))
	copy(out, c.published)
	return out
}

func TestRedisEventBus_PublishFansOutToRedisAndLocal(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "instance-a",
		LocalBusConfig: syncBusConfig(),
	})
	require.NoError(t, err)
	defer bus.Close()

	var received []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventLessonStatusChanged, func(event shared.Event) error {
		received = append(received, event)
		return nil
	}))

	require.NoError(t, bus.Publish(statusChanged("lesson-1")))

	// Local handlers ran synchronously.
	require.Len(t, received, 1)

	// The envelope went out over the wire with the instance marker.
	messages := client.publishedMessages()
	require.Len(t, messages, 1)

	var envelope eventEnvelope
	require.NoError(t, json.Unmarshal([]byte(messages[0]), &envelope))
	assert.Equal(t, "instance-a", envelope.InstanceID)
	assert.Equal(t, shared.EventLessonStatusChanged, envelope.EventType)
	assert.Equal(t, "lesson-1", envelope.AggregateID)
}

func TestRedisEventBus_RemoteEventReachesLocalHandlers(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "instance-a",
		LocalBusConfig: syncBusConfig(),
	})
	require.NoError(t, err)
	defer bus.Close()

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.Subscribe(shared.EventGoalStatusChanged, func(event shared.Event) error {
		received <- event
		return nil
	}))

	envelope := eventEnvelope{
		InstanceID:  "instance-b",
		EventType:   shared.EventGoalStatusChanged,
		AggregateID: "goal-1",
		OccurredAt:  time.Now().UTC(),
		Payload:     map[string]interface{}{"to_status": "agreed"},
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	client.incoming <- RedisMessage{Channel: "urok:events", Payload: string(data)}

	select {
	case event := <-received:
		assert.Equal(t, shared.EventGoalStatusChanged, event.EventType())
		assert.Equal(t, "goal-1", event.AggregateID())
		assert.Equal(t, "agreed", event.Payload()["to_status"])
	case <-time.After(2 * time.Second):
		t.Fatal("remote event never reached local handlers")
	}
}

func TestRedisEventBus_SkipsOwnMessages(t *testing.T) {
	client := newFakeRedisClient()
	bus, err := NewRedisEventBus(RedisEventBusConfig{
		Client:         client,
		InstanceID:     "instance-a",
		LocalBusConfig: syncBusConfig(),
	})
	require.NoError(t, err)

	received := make(chan shared.Event, 1)
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		received <- event
		return nil
	}))

	envelope := eventEnvelope{
		InstanceID:  "instance-a",
		EventType:   shared.EventGoalStatusChanged,
		AggregateID: "goal-1",
		OccurredAt:  time.Now().UTC(),
	}
	data, err := json.Marshal(envelope)
	require.NoError(t, err)
	client.incoming <- RedisMessage{Channel: "urok:events", Payload: string(data)}

	// Give the subscription loop a moment; nothing must arrive.
	select {
	case <-received:
		t.Fatal("own message was replayed locally")
	case <-time.After(100 * time.Millisecond):
	}

	require.NoError(t, bus.Close())
}

func TestRedisEventBus_RequiresClient(t *testing.T) {
	_, err := NewRedisEventBus(RedisEventBusConfig{})
	require.Error(t, err)
}
