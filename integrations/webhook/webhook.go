package webhook

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/goccy/go-json"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"

	"gameservices/core"
)

// Sink posts emitted signals to configured HTTP endpoints.
// OnEvent never blocks the caller; Deliver is the synchronous form.
type Sink struct {
	client     *http.Client
	endpoints  []string
	types      map[core.EventType]bool
	logger     *slog.Logger
	maxWorkers int

	wg conc.WaitGroup
}

// Option configures a Sink.
type Option func(*Sink)

// WithClient overrides the HTTP client (defaults to 2s timeout).
func WithClient(c *http.Client) Option {
	return func(s *Sink) {
		if c != nil {
			s.client = c
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Sink) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithTypes restricts delivery to the named signals.
func WithTypes(types ...core.EventType) Option {
	return func(s *Sink) {
		if len(types) == 0 {
			return
		}
		s.types = make(map[core.EventType]bool, len(types))
		for _, t := range types {
			s.types[t] = true
		}
	}
}

// WithMaxWorkers bounds concurrent posts per signal.
func WithMaxWorkers(n int) Option {
	return func(s *Sink) {
		if n > 0 {
			s.maxWorkers = n
		}
	}
}

// New creates a webhook sink.
func New(endpoints []string, opts ...Option) *Sink {
	s := &Sink{
		client:     &http.Client{Timeout: 2 * time.Second},
		logger:     slog.Default(),
		maxWorkers: 4,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.endpoints = append([]string{}, endpoints...)
	s.logger = s.logger.With("component", "webhook")
	return s
}

func (s *Sink) wants(t core.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

// OnEvent has the signal bus handler signature. Delivery runs in the background; failures are logged.
func (s *Sink) OnEvent(_ context.Context, ev core.Event) {
	if len(s.endpoints) == 0 || !s.wants(ev.Type) {
		return
	}
	s.wg.Go(func() {
		if err := s.Deliver(context.Background(), ev); err != nil {
			s.logger.Warn("webhook delivery failed", "signal", ev.Type, "error", err)
		}
	})
}

// Deliver posts ev to every endpoint and joins the failures.
func (s *Sink) Deliver(ctx context.Context, ev core.Event) error {
	if len(s.endpoints) == 0 || !s.wants(ev.Type) {
		return nil
	}
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("webhook: encode %s: %w", ev.Type, err)
	}
	p := pool.New().WithErrors().WithContext(ctx).WithMaxGoroutines(s.maxWorkers)
	for _, ep := range s.endpoints {
		p.Go(func(ctx context.Context) error { return s.post(ctx, ep, ev.Type, body) })
	}
	return p.Wait()
}

func (s *Sink) post(ctx context.Context, endpoint string, typ core.EventType, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook %s: %w", endpoint, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-GameServices-Signal", string(typ))
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook %s: %w", endpoint, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook %s: status %d", endpoint, resp.StatusCode)
	}
	return nil
}

// Close waits for background deliveries.
func (s *Sink) Close() { s.wg.Wait() }
