package outbox

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/infrastructure/observability/zaplogger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type testEvent struct{ id string }

func (testEvent) EventName() string { return "test.happened" }

func TestBus_DeliversEventWithHeaders(t *testing.T) {
	bus := NewBus(nil)
	got := make(chan domoutbox.Headers, 1)
	bus.Subscribe("test.happened", func(_ context.Context, e domoutbox.Event, h domoutbox.Headers) error {
		assert.Equal(t, "e1", e.(testEvent).id)
		got <- h
		return nil
	})
	bus.Start(context.Background())

	headers := domoutbox.Headers{"traceparent": "tp"}
	require.NoError(t, bus.Publish(context.Background(), testEvent{id: "e1"}, headers))
	headers["traceparent"] = "mutated"

	select {
	case h := <-got:
		assert.Equal(t, "tp", h["traceparent"])
	case <-time.After(2 * time.Second):
		t.Fatal("event not delivered")
	}
	require.NoError(t, bus.Stop(context.Background()))
}

func TestBus_FansOutToAllHandlers(t *testing.T) {
	bus := NewBus(nil, WithConcurrency(2))
	var calls atomic.Int32
	var wg sync.WaitGroup
	wg.Add(3)
	for i := 0; i < 3; i++ {
		bus.Subscribe("test.happened", func(context.Context, domoutbox.Event, domoutbox.Headers) error {
			calls.Add(1)
			wg.Done()
			return nil
		})
	}
	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{}, nil))

	wg.Wait()
	assert.Equal(t, int32(3), calls.Load())
	require.NoError(t, bus.Stop(context.Background()))
}

func TestBus_StopDrainsQueue(t *testing.T) {
	bus := NewBus(nil)
	var handled atomic.Int32
	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event, domoutbox.Headers) error {
		handled.Add(1)
		return nil
	})
	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(context.Background(), testEvent{}, nil))
	}
	bus.Start(context.Background())

	require.NoError(t, bus.Stop(context.Background()))
	assert.Equal(t, int32(10), handled.Load())
}

func TestBus_PublishAfterStop(t *testing.T) {
	bus := NewBus(nil)
	bus.Start(context.Background())
	require.NoError(t, bus.Stop(context.Background()))

	err := bus.Publish(context.Background(), testEvent{}, nil)
	assert.ErrorIs(t, err, ErrStopped)
}

func TestBus_StopWithoutStart(t *testing.T) {
	bus := NewBus(nil)
	require.NoError(t, bus.Stop(context.Background()))
}

func TestBus_PublishRespectsContextWhenFull(t *testing.T) {
	bus := NewBus(nil, WithQueueSize(1))
	require.NoError(t, bus.Publish(context.Background(), testEvent{}, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Publish(ctx, testEvent{}, nil)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestBus_HandlerErrorAndPanicAreLogged(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	bus := NewBus(zaplogger.New(zap.New(core)))

	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event, domoutbox.Headers) error {
		return errors.New("boom")
	})
	bus.Subscribe("test.happened", func(context.Context, domoutbox.Event, domoutbox.Headers) error {
		panic("kaput")
	})
	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{}, nil))
	require.NoError(t, bus.Stop(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("event_handler_error").Len())
	panics := logs.FilterMessage("event_handler_panic").All()
	require.Len(t, panics, 1)
	assert.Equal(t, "kaput", panics[0].ContextMap()["panic"])
	assert.Equal(t, "test.happened", panics[0].ContextMap()["event"])
}

func TestBus_NoSubscriber(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	bus := NewBus(zaplogger.New(zap.New(core)))
	bus.Start(context.Background())
	require.NoError(t, bus.Publish(context.Background(), testEvent{}, nil))
	require.NoError(t, bus.Stop(context.Background()))

	assert.Equal(t, 1, logs.FilterMessage("event_dropped_no_subscriber").Len())
}
