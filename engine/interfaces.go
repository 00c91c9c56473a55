package engine

import (
	"context"

	"gameservices/core"
)

// Emitter delivers signals to the scripting layer.
type Emitter interface {
	Publish(ctx context.Context, ev core.Event)
}

// Poster marshals work onto the engine goroutine.
type Poster interface {
	Post(fn func())
}

var (
	_ Emitter = (*EventBus)(nil)
	_ Poster  = (*MainLoop)(nil)
)
