package messaging

import (
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnora/learnora-progress/internal/domain/shared"
	"github.com/learnora/learnora-progress/pkg/retry"
)

func fastRetrier(attempts int) *retry.Retrier {
	return retry.New(
		retry.WithMaxAttempts(attempts),
		retry.WithInitialDelay(time.Millisecond),
		retry.WithMaxDelay(5*time.Millisecond),
		retry.WithJitter(0),
	)
}

func newTestDispatcher(t *testing.T, attempts int) (*Dispatcher, *InMemoryEventBus) {
	t.Helper()
	bus := NewInMemoryEventBus(DefaultInMemoryEventBusConfig())
	cfg := DefaultDispatcherConfig(bus)
	cfg.Retrier = fastRetrier(attempts)
	d := NewDispatcher(cfg)
	require.NoError(t, d.Start())
	return d, bus
}

func TestDispatcher_RoutesEventsToHandlers(t *testing.T) {
	d, bus := newTestDispatcher(t, 3)
	defer d.Stop()
	defer bus.Close()

	var handled atomic.Int64
	require.NoError(t, d.Register(shared.EventProgressUpdated, "counter", func(e shared.Event) error {
		handled.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise)))
	assert.Equal(t, int64(1), handled.Load())
}

func TestDispatcher_RetriesTransientFailures(t *testing.T) {
	d, bus := newTestDispatcher(t, 4)
	defer d.Stop()
	defer bus.Close()

	var calls atomic.Int64
	require.NoError(t, d.Register(shared.EventProgressUpdated, "flaky", func(e shared.Event) error {
		if calls.Add(1) < 3 {
			return errors.New("transient")
		}
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise)))
	assert.Equal(t, int64(3), calls.Load(), "handler must be retried until it succeeds")
	assert.Zero(t, d.DeadLetterQueue().Size())
}

func TestDispatcher_ExhaustedRetriesGoToDeadLetterQueue(t *testing.T) {
	d, bus := newTestDispatcher(t, 3)
	defer d.Stop()
	defer bus.Close()

	var calls atomic.Int64
	require.NoError(t, d.Register(shared.EventProgressUpdated, "broken", func(e shared.Event) error {
		calls.Add(1)
		return errors.New("permanent failure")
	}))

	err := bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise))
	// The bus logs sync handler errors without propagating them.
	require.NoError(t, err)

	assert.Equal(t, int64(3), calls.Load())
	require.Equal(t, 1, d.DeadLetterQueue().Size())

	entry, ok := d.DeadLetterQueue().Pop()
	require.True(t, ok)
	assert.Equal(t, "broken", entry.HandlerName)
	assert.Equal(t, 3, entry.Attempts)
	assert.Equal(t, shared.EventProgressUpdated, entry.Event.EventType())
}

func TestDispatcher_FailingHandlerDoesNotBlockOthers(t *testing.T) {
	d, bus := newTestDispatcher(t, 2)
	defer d.Stop()
	defer bus.Close()

	var healthyCalls atomic.Int64
	require.NoError(t, d.Register(shared.EventProgressUpdated, "broken", func(e shared.Event) error {
		return errors.New("down")
	}))
	require.NoError(t, d.Register(shared.EventProgressUpdated, "healthy", func(e shared.Event) error {
		healthyCalls.Add(1)
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise)))
	assert.Equal(t, int64(1), healthyCalls.Load())
}

func TestDispatcher_RecoveryMiddlewareCatchesPanics(t *testing.T) {
	d, bus := newTestDispatcher(t, 2)
	defer d.Stop()
	defer bus.Close()

	d.Use(RecoveryMiddleware(slog.Default()))

	require.NoError(t, d.Register(shared.EventProgressUpdated, "panicky", func(e shared.Event) error {
		panic("boom")
	}))

	require.NotPanics(t, func() {
		_ = bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise))
	})
	assert.Equal(t, 1, d.DeadLetterQueue().Size())
}

func TestDispatcher_Metrics(t *testing.T) {
	d, bus := newTestDispatcher(t, 2)
	defer d.Stop()
	defer bus.Close()

	d.Use(MetricsMiddleware(d.Metrics()))
	require.NoError(t, d.Register(shared.EventProgressUpdated, "ok", func(e shared.Event) error { return nil }))

	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e1", shared.EntityExercise)))
	require.NoError(t, bus.Publish(shared.NewProgressUpdatedEvent("42", "e2", shared.EntityExercise)))

	snap := d.Metrics().Snapshot()
	assert.Equal(t, int64(2), snap.TotalDispatched)
	assert.Equal(t, int64(2), snap.TotalExecutions)
	assert.Equal(t, 1.0, snap.SuccessRate)
}

func TestDeadLetterQueue_BoundedSize(t *testing.T) {
	q := NewDeadLetterQueue(2)

	for i := 0; i < 3; i++ {
		q.Add(DeadLetterEntry{HandlerName: string(rune('a' + i)), FailedAt: time.Now()})
	}

	require.Equal(t, 2, q.Size())
	entries := q.Entries()
	assert.Equal(t, "b", entries[0].HandlerName, "oldest entry is dropped when full")
	assert.Equal(t, "c", entries[1].HandlerName)
}
