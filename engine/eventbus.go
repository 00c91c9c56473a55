package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"gameservices/core"
)

type DispatchMode int

const (
	// DispatchSync runs handlers on the publishing goroutine before Publish returns.
	DispatchSync DispatchMode = iota
	// DispatchAsync queues signals for a single relay goroutine; a full queue drops.
	DispatchAsync
)

type handler struct {
	id  int64
	typ core.EventType
	all bool
	fn  func(context.Context, core.Event)
}

// EventBus fans signals out to handlers in subscription order.
type EventBus struct {
	mode   DispatchMode
	logger *slog.Logger

	mu       sync.RWMutex
	handlers []handler
	nextID   int64
	closed   bool

	queue     chan core.Event
	closeOnce sync.Once
	done      chan struct{}
	dropped   atomic.Int64
}

// BusOption configures an EventBus.
type BusOption func(*EventBus)

// WithBusLogger receives handler panics.
func WithBusLogger(l *slog.Logger) BusOption {
	return func(e *EventBus) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithQueueSize bounds the async queue (default 2048).
func WithQueueSize(n int) BusOption {
	return func(e *EventBus) {
		if n > 0 {
			e.queue = make(chan core.Event, n)
		}
	}
}

func NewEventBus(mode DispatchMode, opts ...BusOption) *EventBus {
	e := &EventBus{
		mode:   mode,
		logger: slog.Default(),
		queue:  make(chan core.Event, 2048),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(e)
	}
	if mode == DispatchAsync {
		go e.relay()
	} else {
		close(e.done)
	}
	return e
}

func (e *EventBus) relay() {
	defer close(e.done)
	for ev := range e.queue {
		e.dispatch(context.Background(), ev)
	}
}

// Close stops accepting async signals and waits until the queued ones are delivered.
func (e *EventBus) Close() {
	e.closeOnce.Do(func() {
		if e.mode == DispatchAsync {
			e.mu.Lock()
			e.closed = true
			close(e.queue)
			e.mu.Unlock()
		}
	})
	<-e.done
}

// Dropped counts async signals discarded because the queue was full or closed.
func (e *EventBus) Dropped() int64 { return e.dropped.Load() }

func (e *EventBus) add(h handler) func() {
	e.mu.Lock()
	e.nextID++
	h.id = e.nextID
	e.handlers = append(e.handlers, h)
	e.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Lock()
			defer e.mu.Unlock()
			kept := e.handlers[:0:0]
			for _, cur := range e.handlers {
				if cur.id != h.id {
					kept = append(kept, cur)
				}
			}
			e.handlers = kept
		})
	}
}

// Subscribe registers fn for one signal and returns its unsubscribe func.
func (e *EventBus) Subscribe(typ core.EventType, fn func(context.Context, core.Event)) func() {
	return e.add(handler{typ: typ, fn: fn})
}

// SubscribeAll registers fn for every signal.
func (e *EventBus) SubscribeAll(fn func(context.Context, core.Event)) func() {
	return e.add(handler{all: true, fn: fn})
}

// Publish delivers ev according to the bus mode.
func (e *EventBus) Publish(ctx context.Context, ev core.Event) {
	if e.mode == DispatchSync {
		e.dispatch(ctx, ev)
		return
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		e.dropped.Add(1)
		return
	}
	select {
	case e.queue <- ev:
	default:
		e.dropped.Add(1)
	}
}

func (e *EventBus) dispatch(ctx context.Context, ev core.Event) {
	e.mu.RLock()
	// handlers may (un)subscribe, so run them on a copy
	matched := make([]handler, 0, len(e.handlers))
	for _, h := range e.handlers {
		if h.all || h.typ == ev.Type {
			matched = append(matched, h)
		}
	}
	e.mu.RUnlock()
	for _, h := range matched {
		e.call(ctx, h, ev)
	}
}

func (e *EventBus) call(ctx context.Context, h handler, ev core.Event) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("signal handler panicked", "signal", ev.Type, "handler", h.id, "panic", r)
		}
	}()
	h.fn(ctx, ev)
}
