package httpapi

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	wsadapter "gameservices/adapters/websocket"
	"gameservices/core"
	"gameservices/gameservices"
	"gameservices/realtime"
)

// Bridge is the read-only view the debug surface needs. Implementations hop onto the engine goroutine.
type Bridge interface {
	State(ctx context.Context) (gameservices.State, error)
	// Ping returns once the engine goroutine has run a callback.
	Ping(ctx context.Context) error
}

// Options configures the debug HTTP surface.
type Options struct {
	// PathPrefix is prepended to every route, e.g. "/debug".
	PathPrefix string
	// AllowCORSOrigin enables CORS for the given origin ("*" for any).
	AllowCORSOrigin string
	// APIKeys are accepted as "Authorization: Bearer <key>" or "X-API-Key".
	APIKeys []string

	RateLimitEnabled bool
	RateLimitRPM     int
	RateLimitBurst   int

	// EngineTimeout bounds how long a request waits for the engine goroutine. Defaults to 2s.
	EngineTimeout time.Duration
	Logger        *slog.Logger
}

type middleware func(http.Handler) http.Handler

type server struct {
	bridge  Bridge
	timeout time.Duration
	logger  *slog.Logger
}

// NewMux builds the debug surface.
//
//	GET {prefix}/healthz
//	GET {prefix}/state
//	GET {prefix}/signals
//	WS  {prefix}/ws?types=a,b
func NewMux(bridge Bridge, hub *realtime.Hub, opts Options) http.Handler {
	s := &server{bridge: bridge, timeout: opts.EngineTimeout, logger: opts.Logger}
	if s.timeout <= 0 {
		s.timeout = 2 * time.Second
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	route := func(path string) string { return joinPath(opts.PathPrefix, path) }
	mux := http.NewServeMux()
	mux.Handle(route("/healthz"), getOnly(http.HandlerFunc(s.handleHealth)))
	mux.Handle(route("/state"), getOnly(http.HandlerFunc(s.handleState)))
	mux.Handle(route("/signals"), getOnly(http.HandlerFunc(s.handleSignals)))
	if hub != nil {
		mux.Handle(route("/ws"), wsadapter.Handler(hub, s.logger))
	}

	// outermost first
	chain := []middleware{requestID(s.logger)}
	if opts.AllowCORSOrigin != "" {
		chain = append(chain, cors(opts.AllowCORSOrigin))
	}
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		chain = append(chain, newLimiterSet(opts.RateLimitRPM, opts.RateLimitBurst).middleware)
	}
	if keys := cleanKeys(opts.APIKeys); len(keys) > 0 {
		chain = append(chain, requireKey(keys))
	}

	var h http.Handler = mux
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	return h
}

func (s *server) engineContext(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.engineContext(r)
	defer cancel()

	engine := "ok"
	if err := s.bridge.Ping(ctx); err != nil {
		engine = err.Error()
		writeJSON(w, http.StatusServiceUnavailable, health{Status: "unhealthy", Checks: map[string]string{"engine": engine}})
		return
	}
	writeJSON(w, http.StatusOK, health{Status: "healthy", Checks: map[string]string{"engine": engine}})
}

type health struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func (s *server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := s.engineContext(r)
	defer cancel()

	st, err := s.bridge.State(ctx)
	if err != nil {
		s.logger.Warn("engine state unavailable", "request_id", RequestID(r.Context()), "error", err)
		writeError(w, http.StatusServiceUnavailable, "engine_unavailable", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *server) handleSignals(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, struct {
		Signals []core.EventType `json:"signals"`
	}{core.AllEventTypes})
}

func getOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use GET")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func joinPath(prefix, path string) string {
	prefix = strings.TrimRight(prefix, "/")
	return prefix + path
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}{code, msg})
}

type ctxKey struct{}

// RequestID returns the id assigned to the request, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func requestID(logger *slog.Logger) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get("X-Request-Id")
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)
			start := time.Now()
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, id)))
			logger.Debug("debug request", "request_id", id, "method", r.Method, "path", r.URL.Path, "took", time.Since(start))
		})
	}
}

func cors(origin string) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if r.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", "GET, OPTIONS")
				h.Set("Access-Control-Allow-Headers", "Authorization, X-API-Key, X-Request-Id")
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func cleanKeys(keys []string) [][]byte {
	var out [][]byte
	for _, k := range keys {
		if k = strings.TrimSpace(k); k != "" {
			out = append(out, []byte(k))
		}
	}
	return out
}

func requireKey(keys [][]byte) middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := apiKey(r)
			if presented == "" {
				writeError(w, http.StatusUnauthorized, "unauthorized", "missing API key")
				return
			}
			ok := 0
			for _, k := range keys {
				ok |= subtle.ConstantTimeCompare(k, []byte(presented))
			}
			if ok != 1 {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid API key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func apiKey(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

// clientKey buckets by API key, falling back to the remote IP.
func clientKey(r *http.Request) string {
	if key := apiKey(r); key != "" {
		return "key:" + key
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

const limiterIdle = 10 * time.Minute

type limiterEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

// limiterSet holds one token bucket per client; idle buckets are swept on access.
type limiterSet struct {
	every rate.Limit
	burst int

	mu        sync.Mutex
	clients   map[string]*limiterEntry
	lastSweep time.Time
}

func newLimiterSet(rpm, burst int) *limiterSet {
	return &limiterSet{
		every:     rate.Every(time.Minute / time.Duration(rpm)),
		burst:     burst,
		clients:   make(map[string]*limiterEntry),
		lastSweep: time.Now(),
	}
}

func (l *limiterSet) get(key string, now time.Time) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if now.Sub(l.lastSweep) > limiterIdle {
		for k, e := range l.clients {
			if now.Sub(e.seen) > limiterIdle {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}
	e, ok := l.clients[key]
	if !ok {
		e = &limiterEntry{lim: rate.NewLimiter(l.every, l.burst)}
		l.clients[key] = e
	}
	e.seen = now
	return e.lim
}

func (l *limiterSet) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.get(clientKey(r), time.Now()).Allow() {
			w.Header().Set("Retry-After", "60")
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests")
			return
		}
		next.ServeHTTP(w, r)
	})
}
