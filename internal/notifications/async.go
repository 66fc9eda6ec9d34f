package notifications

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"linkrelay/internal/logging"
)

type envelope struct {
	event   Event
	payload Payload
}

// Async delivers events in order on one goroutine. Publish never blocks: when
// the buffer is full the event is dropped with a warning.
type Async struct {
	next   Service
	ch     chan envelope
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	mu     sync.RWMutex
	closed bool
}

// NewAsync starts a dispatcher in front of next.
func NewAsync(next Service, buffer int, logger *slog.Logger) *Async {
	if buffer <= 0 {
		buffer = 1
	}
	if next == nil {
		next = noopService{}
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &Async{
		next:   next,
		ch:     make(chan envelope, buffer),
		logger: logging.NewComponentLogger(logger, "notifications"),
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go a.run()
	return a
}

// Publish queues the event and returns immediately. It always returns nil.
func (a *Async) Publish(_ context.Context, event Event, payload Payload) error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		a.logger.Debug("notification after close dropped", logging.String(logging.FieldEventType, string(event)))
		return nil
	}
	select {
	case a.ch <- envelope{event: event, payload: payload}:
	default:
		logging.WarnWithContext(a.logger, "notification dropped", "notification_dropped",
			logging.String("event", string(event)),
			logging.Int("buffer", cap(a.ch)),
			logging.String(logging.FieldErrorHint, "a notifier is slow or unreachable; raise notifications.buffer"),
			logging.String(logging.FieldImpact, "operator misses one update"),
		)
	}
	return nil
}

// Close stops accepting events and waits for queued ones to be delivered.
// When ctx expires first, in-flight deliveries are cancelled.
func (a *Async) Close(ctx context.Context) error {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.ch)
	}
	a.mu.Unlock()

	select {
	case <-a.done:
		a.cancel()
		return nil
	case <-ctx.Done():
		a.cancel()
		<-a.done
		return ctx.Err()
	}
}

func (a *Async) run() {
	defer close(a.done)
	for env := range a.ch {
		if a.ctx.Err() != nil {
			continue
		}
		if err := a.next.Publish(a.ctx, env.event, env.payload); err != nil {
			if errors.Is(err, context.Canceled) {
				continue
			}
			logging.WarnWithContext(a.logger, "notification failed", "notification_failed",
				logging.String("event", string(env.event)),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "check notifier configuration and connectivity"),
				logging.String(logging.FieldImpact, "operator misses one update"),
			)
		}
	}
}
