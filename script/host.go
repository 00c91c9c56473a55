// Package script hosts the engine's JavaScript layer. The runtime is owned by the engine goroutine:
// scripts run, singletons are called and signal handlers fire only from MainLoop ticks.
package script

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"

	"gameservices/engine"
)

var (
	// ErrSingletonExists is returned when a name is registered twice.
	ErrSingletonExists = errors.New("script: singleton already registered")
	// ErrReservedName guards the host's own globals.
	ErrReservedName = errors.New("script: reserved global name")
)

var reserved = map[string]bool{"engine": true, "console": true}

// Host owns one goja runtime and the main loop that drives it.
type Host struct {
	rt     *goja.Runtime
	loop   *engine.MainLoop
	logger *slog.Logger

	singletons map[string]*goja.Object

	quitOnce sync.Once
	quit     chan struct{}
	exitCode int
}

// Option configures a Host.
type Option func(*Host)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Host) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// NewHost creates a runtime with the engine and console globals installed.
func NewHost(loop *engine.MainLoop, opts ...Option) *Host {
	h := &Host{
		rt:         goja.New(),
		loop:       loop,
		logger:     slog.Default(),
		singletons: map[string]*goja.Object{},
		quit:       make(chan struct{}),
	}
	for _, o := range opts {
		o(h)
	}
	h.logger = h.logger.With("component", "script")
	h.rt.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	h.installEngine()
	h.installConsole()
	return h
}

// Runtime exposes the VM to bindings. Only touch it from the engine goroutine.
func (h *Host) Runtime() *goja.Runtime { return h.rt }

// Loop returns the main loop scripts are scheduled on.
func (h *Host) Loop() *engine.MainLoop { return h.loop }

func (h *Host) Logger() *slog.Logger { return h.logger }

func (h *Host) installEngine() {
	obj := h.rt.NewObject()
	_ = obj.Set("quit", func(call goja.FunctionCall) goja.Value {
		code := 0
		if arg := call.Argument(0); !goja.IsUndefined(arg) && !goja.IsNull(arg) {
			code = int(arg.ToInteger())
		}
		h.Quit(code)
		return goja.Undefined()
	})
	_ = obj.Set("get_singleton", func(call goja.FunctionCall) goja.Value {
		if s, ok := h.singletons[call.Argument(0).String()]; ok {
			return s
		}
		return goja.Null()
	})
	_ = obj.Set("has_singleton", func(call goja.FunctionCall) goja.Value {
		_, ok := h.singletons[call.Argument(0).String()]
		return h.rt.ToValue(ok)
	})
	// call_deferred runs fn on the next tick.
	_ = obj.Set("call_deferred", func(call goja.FunctionCall) goja.Value {
		fn, ok := goja.AssertFunction(call.Argument(0))
		if !ok {
			panic(h.rt.NewTypeError("call_deferred expects a function"))
		}
		h.loop.Post(func() { h.Call("call_deferred", fn) })
		return goja.Undefined()
	})
	_ = h.rt.Set("engine", obj)
}

func (h *Host) installConsole() {
	console := h.rt.NewObject()
	logAt := func(level slog.Level) func(goja.FunctionCall) goja.Value {
		return func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			h.logger.Log(context.Background(), level, strings.Join(parts, " "), "source", "console")
			return goja.Undefined()
		}
	}
	_ = console.Set("log", logAt(slog.LevelInfo))
	_ = console.Set("info", logAt(slog.LevelInfo))
	_ = console.Set("debug", logAt(slog.LevelDebug))
	_ = console.Set("warn", logAt(slog.LevelWarn))
	_ = console.Set("error", logAt(slog.LevelError))
	_ = h.rt.Set("console", console)
}

// RegisterSingleton publishes obj as a global named name.
func (h *Host) RegisterSingleton(name string, obj *goja.Object) error {
	name = strings.TrimSpace(name)
	if name == "" || obj == nil {
		return fmt.Errorf("script: singleton name and object required")
	}
	if reserved[name] {
		return fmt.Errorf("%w: %s", ErrReservedName, name)
	}
	if _, ok := h.singletons[name]; ok {
		return fmt.Errorf("%w: %s", ErrSingletonExists, name)
	}
	if err := h.rt.Set(name, obj); err != nil {
		return fmt.Errorf("script: register %s: %w", name, err)
	}
	h.singletons[name] = obj
	h.logger.Debug("singleton registered", "name", name)
	return nil
}

// UnregisterSingleton removes name. Unknown names are ignored.
func (h *Host) UnregisterSingleton(name string) {
	if _, ok := h.singletons[name]; !ok {
		return
	}
	delete(h.singletons, name)
	_ = h.rt.GlobalObject().Delete(name)
	h.logger.Debug("singleton unregistered", "name", name)
}

// Singleton looks a registered object up.
func (h *Host) Singleton(name string) (*goja.Object, bool) {
	obj, ok := h.singletons[name]
	return obj, ok
}

// RunString compiles and runs src. Exceptions come back as *goja.Exception.
func (h *Host) RunString(name, src string) (goja.Value, error) {
	prg, err := goja.Compile(name, src, false)
	if err != nil {
		return nil, fmt.Errorf("script: compile %s: %w", name, err)
	}
	v, err := h.rt.RunProgram(prg)
	if err != nil {
		return nil, fmt.Errorf("script: run %s: %w", name, err)
	}
	return v, nil
}

// RunFile runs the script at path.
func (h *Host) RunFile(path string) (goja.Value, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("script: read %s: %w", path, err)
	}
	return h.RunString(filepath.Base(path), string(src))
}

// Call invokes fn and logs instead of propagating script exceptions. label names the caller in logs.
func (h *Host) Call(label string, fn goja.Callable, args ...goja.Value) {
	if _, err := fn(goja.Undefined(), args...); err != nil {
		h.logger.Error("script callback failed", "callback", label, "error", errorText(err))
	}
}

func errorText(err error) string {
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return ex.String()
	}
	return err.Error()
}

// Quit stops Run. The first code wins.
func (h *Host) Quit(code int) {
	h.quitOnce.Do(func() {
		h.exitCode = code
		close(h.quit)
	})
}

// Done is closed once a script calls engine.quit.
func (h *Host) Done() <-chan struct{} { return h.quit }

// ExitCode is the code passed to engine.quit.
func (h *Host) ExitCode() int { return h.exitCode }

// Run ticks the main loop every interval, and whenever work is posted, until ctx is cancelled or a
// script quits. It returns the exit code.
func (h *Host) Run(ctx context.Context, interval time.Duration) int {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-h.quit:
			cancel()
		case <-runCtx.Done():
		}
	}()
	h.loop.Run(runCtx, interval)
	return h.exitCode
}
