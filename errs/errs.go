// Package errs provides the structured error envelope shared by the bridge and its collaborators.
package errs

import (
	"errors"
	"strconv"
	"strings"

	"gameservices/platform"
)

// Code identifies an error category surfaced to scripts.
type Code string

const (
	// CodeInvalid indicates malformed input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeNoActiveQuery indicates a paging call without a prior leaderboard fetch.
	CodeNoActiveQuery Code = "no_active_query"
	// CodeQueryPending indicates the current query's leaderboard is still being resolved.
	CodeQueryPending Code = "query_pending"
	// CodeNotFound indicates a missing leaderboard, set, player or achievement.
	CodeNotFound Code = "not_found"
	// CodeNotAuthenticated indicates the local player is not signed in.
	CodeNotAuthenticated Code = "not_authenticated"
	// CodePermissionDenied indicates the player refused or is restricted from the requested access.
	CodePermissionDenied Code = "permission_denied"
	// CodeCancelled indicates the player dismissed a platform flow.
	CodeCancelled Code = "cancelled"
	// CodeNetwork indicates a transport failure inside the platform.
	CodeNetwork Code = "network"
	// CodeUnavailable indicates social services are missing or the bridge is not initialised.
	CodeUnavailable Code = "unavailable"
	// CodeUnknown captures uncategorised failures.
	CodeUnknown Code = "unknown"
)

// E captures structured error information for one operation.
type E struct {
	Op      string
	Code    Code
	Message string

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the operation and code.
func New(op string, code Code, opts ...Option) *E {
	e := &E{Op: strings.TrimSpace(op), Code: code}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithCause sets the underlying cause.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	parts := make([]string, 0, 4)
	op := e.Op
	if op == "" {
		op = "unknown"
	}
	parts = append(parts, "op="+op)
	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = string(CodeUnknown)
	}
	parts = append(parts, "code="+code)
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}
	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// Text returns the message, falling back to the cause and then the code.
func (e *E) Text() string {
	switch {
	case e == nil:
		return ""
	case e.Message != "":
		return e.Message
	case e.cause != nil:
		return e.cause.Error()
	default:
		return string(e.Code)
	}
}

// Dict projects the error into the engine record carried by failure events.
func (e *E) Dict() map[string]any {
	if e == nil {
		return nil
	}
	return map[string]any{"code": string(e.Code), "message": e.Text()}
}

// CodeOf extracts the code of err, or CodeUnknown when err carries none.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *E
	if errors.As(err, &e) && e.Code != "" {
		return e.Code
	}
	return classify(err)
}

// FromPlatform wraps a platform completion error for op, categorising it by platform sentinel.
func FromPlatform(op string, err error) *E {
	if err == nil {
		return nil
	}
	var e *E
	if errors.As(err, &e) {
		return e
	}
	return New(op, classify(err), WithCause(err), WithMessage(err.Error()))
}

func classify(err error) Code {
	switch {
	case errors.Is(err, platform.ErrUnavailable):
		return CodeUnavailable
	case errors.Is(err, platform.ErrNotAuthenticated):
		return CodeNotAuthenticated
	case errors.Is(err, platform.ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, platform.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, platform.ErrCancelled):
		return CodeCancelled
	case errors.Is(err, platform.ErrNetwork):
		return CodeNetwork
	default:
		return CodeUnknown
	}
}
