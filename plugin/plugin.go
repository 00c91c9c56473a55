// Package plugin owns the lifecycle of the GameServices singleton: it creates the adapter, registers it
// with the script host and tears it down again.
package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gameservices/engine"
	"gameservices/gameservices"
	"gameservices/platform"
	"gameservices/script"
)

// SingletonName is the global scripts reach the bridge through.
const SingletonName = "GameServices"

// ErrNotRegistered is returned by State while the singleton is not registered.
var ErrNotRegistered = errors.New("plugin: singleton not registered")

type Plugin struct {
	platform platform.Platform
	opts     []gameservices.Option
	base     *slog.Logger
	logger   *slog.Logger
	bus      *engine.EventBus

	loop    *engine.MainLoop
	host    *script.Host
	svc     *gameservices.Service
	binding *binding
}

// New prepares a plugin for p. The signal bus exists before Init so other consumers can subscribe early.
func New(p platform.Platform, logger *slog.Logger, opts ...gameservices.Option) *Plugin {
	if logger == nil {
		logger = slog.Default()
	}
	return &Plugin{
		platform: p,
		opts:     opts,
		base:     logger,
		logger:   logger.With("component", "plugin"),
		bus:      engine.NewEventBus(engine.DispatchSync),
	}
}

// Bus carries every signal the service emits.
func (p *Plugin) Bus() *engine.EventBus { return p.bus }

// Service is nil outside Init/Deinit.
func (p *Plugin) Service() *gameservices.Service { return p.svc }

// Init creates and initialises the service and registers it as the GameServices singleton.
// Must run on the engine goroutine.
func (p *Plugin) Init(host *script.Host) error {
	if p.svc != nil {
		return fmt.Errorf("plugin: already initialised")
	}
	opts := append([]gameservices.Option{
		gameservices.WithBus(p.bus),
		gameservices.WithLogger(p.base),
	}, p.opts...)
	svc := gameservices.New(p.platform, host.Loop(), opts...)
	svc.Initialize()

	b := newBinding(host, svc, p.bus)
	if err := host.RegisterSingleton(SingletonName, b.object()); err != nil {
		svc.Close()
		return fmt.Errorf("plugin: %w", err)
	}
	p.loop, p.host, p.svc, p.binding = host.Loop(), host, svc, b
	p.logger.Info("singleton registered", "name", SingletonName, "service", svc.GetServiceName(), "initialized", svc.Initialized())
	return nil
}

// Deinit drops script connections, unregisters the singleton and closes the service. Safe to call twice.
func (p *Plugin) Deinit() {
	if p.svc == nil {
		return
	}
	p.binding.disconnectAll()
	p.host.UnregisterSingleton(SingletonName)
	p.svc.Close()
	p.host, p.svc, p.binding = nil, nil, nil
	p.logger.Info("singleton unregistered", "name", SingletonName)
}

// State snapshots the service on the engine goroutine.
func (p *Plugin) State(ctx context.Context) (gameservices.State, error) {
	loop := p.loop
	if loop == nil {
		return gameservices.State{}, ErrNotRegistered
	}
	var (
		st  gameservices.State
		err error
	)
	derr := loop.Do(ctx, func() {
		if p.svc == nil {
			err = ErrNotRegistered
			return
		}
		st = p.svc.Snapshot()
	})
	if derr != nil {
		return gameservices.State{}, derr
	}
	return st, err
}

// Ping waits for the engine goroutine to run one callback.
func (p *Plugin) Ping(ctx context.Context) error {
	if p.loop == nil {
		return ErrNotRegistered
	}
	return p.loop.Do(ctx, func() {})
}
