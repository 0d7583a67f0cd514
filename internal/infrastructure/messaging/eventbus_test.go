package messaging

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnora/learnora-progress/internal/domain/shared"
)

func syncBus() *InMemoryEventBus {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.EnableMetrics = true
	return NewInMemoryEventBus(cfg)
}

func TestInMemoryEventBus_DeliversToSubscribers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var received []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error {
		received = append(received, e)
		return nil
	}))

	event := shared.NewProgressUpdatedEvent("42", "exercise-1", shared.EntityExercise)
	require.NoError(t, bus.Publish(event))

	require.Len(t, received, 1)
	assert.Equal(t, shared.EventProgressUpdated, received[0].EventType())
}

func TestInMemoryEventBus_NoDeliveryToOtherTypes(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	calls := 0
	require.NoError(t, bus.Subscribe(shared.EventAchievementAwarded, func(e shared.Event) error {
		calls++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "exercise-1", shared.EntityExercise)))
	assert.Zero(t, calls)
}

func TestInMemoryEventBus_SubscribeAllSeesEverything(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var types []shared.EventType
	require.NoError(t, bus.SubscribeAll(func(e shared.Event) error {
		types = append(types, e.EventType())
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise)))
	require.NoError(t, bus.Publish(shared.NewLessonCompletedEvent("42", "lesson-7")))
	require.NoError(t, bus.Publish(shared.NewAchievementAwardedEvent("42", "first-lesson", time.Now())))

	assert.Equal(t, []shared.EventType{
		shared.EventProgressUpdated,
		shared.EventLessonCompleted,
		shared.EventAchievementAwarded,
	}, types)
}

func TestInMemoryEventBus_SyncModePreservesPublishOrder(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	var order []string
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error {
		pe := e.(shared.ProgressUpdatedEvent)
		order = append(order, pe.EntityID)
		return nil
	}))

	ids := []string{"e1", "e2", "e3", "e4", "e5"}
	for _, id := range ids {
		require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", id, shared.EntityExercise)))
	}
	assert.Equal(t, ids, order)
}

func TestInMemoryEventBus_AsyncModePreservesPerPublisherOrder(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	bus := NewInMemoryEventBus(cfg)

	var mu sync.Mutex
	var order []string
	done := make(chan struct{})
	const total = 50

	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error {
		pe := e.(shared.ProgressUpdatedEvent)
		mu.Lock()
		order = append(order, pe.EntityID)
		if len(order) == total {
			close(done)
		}
		mu.Unlock()
		return nil
	}))

	var ids []string
	for i := 0; i < total; i++ {
		id := "e" + string(rune('A'+i%26)) + string(rune('0'+i/26))
		ids = append(ids, id)
		require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", id, shared.EntityExercise)))
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for async delivery")
	}
	bus.Close()

	assert.Equal(t, ids, order, "one publisher's events must arrive in publish order")
}

func TestInMemoryEventBus_HandlerErrorDoesNotStopOthers(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	secondCalled := false
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error {
		return assert.AnError
	}))
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error {
		secondCalled = true
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise)))
	assert.True(t, secondCalled)
}

func TestInMemoryEventBus_ClosedBusRejectsPublish(t *testing.T) {
	bus := syncBus()
	require.NoError(t, bus.Close())

	err := bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise))
	assert.ErrorIs(t, err, ErrEventBusClosed)

	err = bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error { return nil })
	assert.ErrorIs(t, err, ErrEventBusClosed)
}

func TestInMemoryEventBus_Metrics(t *testing.T) {
	bus := syncBus()
	defer bus.Close()

	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error { return nil }))
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error { return assert.AnError }))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise)))

	snap := bus.Metrics().Snapshot()
	assert.Equal(t, int64(1), snap.TotalPublished)
	assert.Equal(t, int64(2), snap.TotalHandlerExecs)
	assert.InDelta(t, 0.5, snap.HandlerSuccessRate, 0.001)
}

func TestInMemoryEventBus_CloseDrainsAsyncQueues(t *testing.T) {
	cfg := DefaultInMemoryEventBusConfig()
	cfg.AsyncMode = true
	cfg.QueueSize = 64
	bus := NewInMemoryEventBus(cfg)

	var handled atomic.Int64
	require.NoError(t, bus.Subscribe(shared.EventProgressUpdated, func(e shared.Event) error {
		time.Sleep(time.Millisecond)
		handled.Add(1)
		return nil
	}))

	const n = 50
	for i := 0; i < n; i++ {
		event := shared.NewProgressUpdatedEvent("42", fmt.Sprintf("exercise-%d", i), shared.EntityExercise)
		require.NoError(t, bus.Publish(event))
	}

	// Every event accepted by Publish must be delivered before Close returns.
	require.NoError(t, bus.Close())
	assert.Equal(t, int64(n), handled.Load())
}
