// Package gameservices adapts a platform's social-gaming SDK to the engine's scripting layer.
//
// A Service is owned by the engine goroutine: every exported method must be called from it, and
// every platform completion is posted back through the main loop before it touches state or emits a
// signal. No locks guard the registries for that reason.
package gameservices

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"gameservices/core"
	"gameservices/engine"
	"gameservices/errs"
	"gameservices/platform"
	"gameservices/telemetry"
)

const (
	// DefaultMaxPageSize caps the number of entries one leaderboard page may request.
	DefaultMaxPageSize = 100
	// DefaultAvatarMaxSize bounds the longest side of converted friend avatars.
	DefaultAvatarMaxSize = 256
)

// Service is the singleton exposed to scripts.
type Service struct {
	platform  platform.Platform
	presenter platform.Presenter
	loop      engine.Poster
	bus       engine.Emitter
	logger    *slog.Logger
	metrics   *telemetry.Metrics
	avatarMax int
	maxPage   int
	newToken  func() string

	initialized bool
	closed      bool

	registry    map[string]platform.Leaderboard
	query       *query
	friends     map[core.PlayerID]core.Friend
	friendOrder []core.PlayerID
}

// Option configures a Service.
type Option func(*Service)

// WithBus routes signals to bus instead of a private synchronous bus.
func WithBus(bus engine.Emitter) Option {
	return func(s *Service) {
		if bus != nil {
			s.bus = bus
		}
	}
}

// WithPresenter overrides the native UI host. By default the platform presents when it can.
func WithPresenter(p platform.Presenter) Option {
	return func(s *Service) {
		if p != nil {
			s.presenter = p
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics records operation, signal and failure counters.
func WithMetrics(m *telemetry.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAvatarMaxSize scales avatars down so neither side exceeds n pixels. Zero keeps the native size.
func WithAvatarMaxSize(n int) Option {
	return func(s *Service) {
		if n >= 0 {
			s.avatarMax = n
		}
	}
}

func WithMaxPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxPage = n
		}
	}
}

// New builds an uninitialised service. A nil platform behaves as one without social services.
func New(p platform.Platform, loop engine.Poster, opts ...Option) *Service {
	if p == nil {
		p = platform.Unavailable{}
	}
	s := &Service{
		platform:  p,
		loop:      loop,
		logger:    slog.Default(),
		avatarMax: DefaultAvatarMaxSize,
		maxPage:   DefaultMaxPageSize,
		newToken:  uuid.NewString,
		registry:  map[string]platform.Leaderboard{},
		friends:   map[core.PlayerID]core.Friend{},
	}
	if presenter, ok := p.(platform.Presenter); ok {
		s.presenter = presenter
	} else {
		s.presenter = platform.Unavailable{}
	}
	for _, o := range opts {
		o(s)
	}
	if s.bus == nil {
		s.bus = engine.NewEventBus(engine.DispatchSync)
	}
	s.logger = s.logger.With("component", "gameservices", "platform", p.Name())
	return s
}

// Initialize prepares the service. It is idempotent and logs instead of failing when the
// platform has no social services.
func (s *Service) Initialize() {
	if s.initialized || s.closed {
		return
	}
	if !s.platform.Available() {
		s.logger.Warn("social services unavailable; operations will report failures")
		return
	}
	s.initialized = true
	s.logger.Info("game services initialised")
}

// Initialized reports whether Initialize found a usable platform.
func (s *Service) Initialized() bool { return s.initialized }

// GetServiceName names the backing platform.
func (s *Service) GetServiceName() string { return s.platform.Name() }

// Close detaches the service. Completions still in flight are dropped.
func (s *Service) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.initialized = false
	s.query = nil
	s.logger.Info("game services closed")
}

func (s *Service) ready(op string) *errs.E {
	if s.initialized {
		return nil
	}
	return errs.New(op, errs.CodeUnavailable, errs.WithMessage("game services are not available"))
}

// post marshals a completion onto the engine goroutine.
func (s *Service) post(fn func()) {
	s.loop.Post(func() {
		if s.closed {
			return
		}
		fn()
	})
}

func (s *Service) emit(typ core.EventType, payload core.Dictionary) {
	s.metrics.Signal(string(typ))
	s.bus.Publish(context.Background(), core.NewEvent(typ, payload))
}

// failure classifies a completion error, records it and returns the error projection.
func (s *Service) failure(op string, err error) map[string]any {
	e := errs.FromPlatform(op, err)
	s.metrics.PlatformFailure(op, string(e.Code))
	s.logger.Warn("platform operation failed", "op", op, "code", e.Code, "error", e.Text())
	return e.Dict()
}

// outcome fills the success and error keys every completion signal carries.
func (s *Service) outcome(op string, err error, payload core.Dictionary) core.Dictionary {
	payload["success"] = err == nil
	if err != nil {
		payload["error"] = s.failure(op, err)
	} else {
		payload["error"] = nil
	}
	return payload
}

func (s *Service) localPlayerID() core.PlayerID {
	if pl, ok := s.platform.LocalPlayer(); ok {
		return pl.ID
	}
	return ""
}
