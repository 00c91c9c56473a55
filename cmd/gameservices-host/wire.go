//go:build wireinject
// +build wireinject

package main

import (
	"context"

	"github.com/google/wire"
)

// BuildApp wires the host components using Google Wire.
func BuildApp(ctx context.Context, path ConfigPath) (*App, func(), error) {
	wire.Build(
		provideConfig,
		provideLogger,
		provideMeterProvider,
		provideMetrics,
		providePlatform,
		provideLoop,
		provideHost,
		providePlugin,
		provideHub,
		provideWebhook,
		provideRelay,
		provideServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil, nil
}
