package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrLoopClosed is returned by Do once the loop has been closed.
var ErrLoopClosed = errors.New("main loop closed")

// MainLoop is the engine's single logical thread.
// Post may be called from any goroutine; Tick must only be called from the engine goroutine.
type MainLoop struct {
	mu      sync.Mutex
	pending []func()
	closed  bool
	wake    chan struct{}
	logger  *slog.Logger
}

func NewMainLoop(logger *slog.Logger) *MainLoop {
	if logger == nil {
		logger = slog.Default()
	}
	return &MainLoop{wake: make(chan struct{}, 1), logger: logger}
}

// Post queues fn to run on the next Tick. Posts after Close are dropped.
func (l *MainLoop) Post(fn func()) {
	if fn == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.pending = append(l.pending, fn)
	l.mu.Unlock()
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Pending reports the number of queued callbacks.
func (l *MainLoop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pending)
}

// Tick runs queued callbacks until the queue is empty, including callbacks posted while draining.
// It returns the number of callbacks run.
func (l *MainLoop) Tick() int {
	ran := 0
	for {
		l.mu.Lock()
		if len(l.pending) == 0 {
			l.mu.Unlock()
			return ran
		}
		batch := l.pending
		l.pending = make([]func(), 0, len(batch))
		l.mu.Unlock()

		for _, fn := range batch {
			l.runSafe(fn)
			ran++
		}
	}
}

func (l *MainLoop) runSafe(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			l.logger.Error("main loop callback panicked", "panic", fmt.Sprint(rec))
		}
	}()
	fn()
}

// Do runs fn on the engine goroutine and waits for it. The engine goroutine must be ticking.
func (l *MainLoop) Do(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return ErrLoopClosed
	}
	l.mu.Unlock()
	l.Post(func() {
		defer close(done)
		fn()
	})
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run ticks every interval, and whenever work is posted, until ctx is cancelled.
func (l *MainLoop) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		l.Tick()
		select {
		case <-ctx.Done():
			l.Tick()
			return
		case <-ticker.C:
		case <-l.wake:
		}
	}
}

// Close drops queued callbacks and rejects further posts.
func (l *MainLoop) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	l.pending = nil
}
