package outbox

import (
	"context"
	"errors"
	"runtime/debug"
	"sync"
	"time"

	domoutbox "github.com/Zhima-Mochi/minishop-payment/internal/domain/outbox"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability"
	"github.com/Zhima-Mochi/minishop-payment/internal/observability/logctx"
)

const componentOutbox = "outbox"

// ErrStopped is returned by Publish once the bus has been stopped.
var ErrStopped = errors.New("outbox: bus stopped")

type envelope struct {
	event   domoutbox.Event
	headers domoutbox.Headers
}

// Bus is an in-memory broker used when no external message queue is configured.
// It is not durable; events still queued when the process dies are lost.
type Bus struct {
	subMu          sync.RWMutex
	subs           map[string][]domoutbox.Handler
	mu             sync.RWMutex // guards stopped and the queue close
	queue          chan envelope
	stopped        bool
	startOnce      sync.Once
	stopOnce       sync.Once
	done           chan struct{}
	concurrency    int
	handlerTimeout time.Duration
	log            observability.Logger
}

type Option func(*Bus)

// WithQueueSize sets the buffer size of the pending queue.
func WithQueueSize(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.queue = make(chan envelope, n)
		}
	}
}

// WithConcurrency caps the number of handlers run in parallel for one event.
func WithConcurrency(n int) Option {
	return func(b *Bus) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

func WithHandlerTimeout(d time.Duration) Option {
	return func(b *Bus) {
		if d > 0 {
			b.handlerTimeout = d
		}
	}
}

func NewBus(logger observability.Logger, opts ...Option) *Bus {
	if logger == nil {
		logger = observability.NopLogger()
	}
	b := &Bus{
		subs:           make(map[string][]domoutbox.Handler),
		queue:          make(chan envelope, 1024),
		done:           make(chan struct{}),
		concurrency:    8,
		handlerTimeout: 30 * time.Second,
		log:            logger.With(observability.F("component", componentOutbox)),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Bus) Subscribe(eventName string, h domoutbox.Handler) {
	b.subMu.Lock()
	defer b.subMu.Unlock()
	b.subs[eventName] = append(b.subs[eventName], h)
}

func (b *Bus) Start(ctx context.Context) {
	b.startOnce.Do(func() {
		go b.dispatchLoop(context.WithoutCancel(ctx))
		logctx.FromOr(ctx, b.log).Info("event_bus_started")
	})
}

// Stop refuses new events and waits for queued ones to be handled, or for ctx to end.
func (b *Bus) Stop(ctx context.Context) error {
	var err error
	b.stopOnce.Do(func() {
		b.mu.Lock()
		b.stopped = true
		close(b.queue)
		b.mu.Unlock()

		// A bus that was never started has nothing draining the queue.
		b.startOnce.Do(func() { close(b.done) })

		select {
		case <-b.done:
			logctx.FromOr(ctx, b.log).Info("event_bus_stopped")
		case <-ctx.Done():
			err = ctx.Err()
			logctx.FromOr(ctx, b.log).Warn("event_bus_stop_timeout",
				observability.F("pending", len(b.queue)),
				observability.F("error", err),
			)
		}
	})
	return err
}

func (b *Bus) Publish(ctx context.Context, e domoutbox.Event, h domoutbox.Headers) error {
	if e == nil {
		return nil
	}
	logger := logctx.FromOr(ctx, b.log).With(observability.F("event", e.EventName()))

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.stopped {
		return ErrStopped
	}

	env := envelope{event: e, headers: cloneHeaders(h)}
	select {
	case b.queue <- env:
		logger.Debug("event_enqueued")
		return nil
	case <-ctx.Done():
		logger.Warn("event_enqueue_aborted",
			observability.F("error", ctx.Err()),
		)
		return ctx.Err()
	}
}

func (b *Bus) dispatchLoop(ctx context.Context) {
	defer close(b.done)
	for env := range b.queue {
		b.fanout(ctx, env)
	}
}

func (b *Bus) fanout(ctx context.Context, env envelope) {
	name := env.event.EventName()
	logger := b.log.With(observability.F("event", name))

	b.subMu.RLock()
	handlers := append([]domoutbox.Handler(nil), b.subs[name]...)
	b.subMu.RUnlock()

	if len(handlers) == 0 {
		logger.Debug("event_dropped_no_subscriber")
		return
	}

	ctx = logctx.With(ctx, logger)

	sem := make(chan struct{}, b.concurrency)
	var wg sync.WaitGroup

	for _, h := range handlers {
		sem <- struct{}{}
		wg.Add(1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					logger.Error("event_handler_panic",
						observability.F("panic", r),
						observability.F("stack", string(debug.Stack())),
					)
				}
				<-sem
				wg.Done()
			}()

			hctx, cancel := context.WithTimeout(ctx, b.handlerTimeout)
			defer cancel()
			if err := h(hctx, env.event, cloneHeaders(env.headers)); err != nil {
				logger.Warn("event_handler_error",
					observability.F("error", err),
				)
			}
		}()
	}

	wg.Wait()

	logger.Debug("event_fanned_out",
		observability.F("handlers", len(handlers)),
	)
}

func cloneHeaders(h domoutbox.Headers) domoutbox.Headers {
	out := make(domoutbox.Headers, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
