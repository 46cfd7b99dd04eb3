package httpapi

import (
	"bufio"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	wsadapter "questboard/adapters/websocket"
	"questboard/analytics"
	"questboard/auth"
	"questboard/engine"
	"questboard/realtime"
)

// Options configures the HTTP API surface.
type Options struct {
	// PathPrefix, if set, is prepended to all routes (e.g., "/api").
	PathPrefix string
	// AllowCORSOrigin, if non-empty, enables basic CORS with the given origin (use "*" for any).
	AllowCORSOrigin string
	// RateLimitEnabled toggles rate limiting.
	RateLimitEnabled bool
	// RateLimitRPM is the allowed requests per minute per client key.
	RateLimitRPM int
	// RateLimitBurst defines burst capacity.
	RateLimitBurst int
	// EnableDebug mounts POST /debug/xp.
	EnableDebug bool
	// AdminKeys, if non-empty, must be presented as X-Admin-Key on debug routes.
	AdminKeys []string
	// Logger receives one line per request. Nil disables request logging.
	Logger *slog.Logger
}

// Deps are the collaborators behind the routes. Hub and Metrics are optional.
type Deps struct {
	Service *engine.Service
	Auth    *auth.Auth
	Hub     *realtime.Hub
	Metrics *analytics.Metrics
}

// NewMux builds the REST API and WebSocket stream.
// Routes (all under PathPrefix):
//   - POST   /auth/register, /auth/login
//   - GET    /me, PATCH /me
//   - GET    /tasks, POST /tasks
//   - GET    /tasks/{id}, PATCH /tasks/{id}, DELETE /tasks/{id}
//   - POST   /tasks/{id}/subtasks
//   - PATCH  /tasks/{id}/subtasks/{sid}, DELETE /tasks/{id}/subtasks/{sid}
//   - POST   /rewards/daily
//   - POST   /debug/xp (EnableDebug)
//   - GET    /campaigns, /leaderboard, /stats, /healthz
//   - WS     /ws?token=
func NewMux(d Deps, opts Options) http.Handler {
	if d.Service == nil || d.Auth == nil {
		panic("httpapi.NewMux requires a service and an authenticator")
	}
	h := &handlers{svc: d.Service, auth: d.Auth, metrics: d.Metrics}
	mux := http.NewServeMux()
	route := func(method, path string, fn http.HandlerFunc) {
		mux.Handle(method+" "+withPrefix(opts.PathPrefix, path), fn)
	}
	private := func(method, path string, fn http.HandlerFunc) {
		mux.Handle(method+" "+withPrefix(opts.PathPrefix, path), d.Auth.Require(fn))
	}

	route(http.MethodGet, "/healthz", h.health)
	route(http.MethodPost, "/auth/register", h.register)
	route(http.MethodPost, "/auth/login", h.login)

	private(http.MethodGet, "/me", h.me)
	private(http.MethodPatch, "/me", h.updateMe)
	private(http.MethodGet, "/tasks", h.listTasks)
	private(http.MethodPost, "/tasks", h.createTask)
	private(http.MethodGet, "/tasks/{id}", h.getTask)
	private(http.MethodPatch, "/tasks/{id}", h.updateTask)
	private(http.MethodDelete, "/tasks/{id}", h.deleteTask)
	private(http.MethodPost, "/tasks/{id}/subtasks", h.addSubtask)
	private(http.MethodPatch, "/tasks/{id}/subtasks/{sid}", h.updateSubtask)
	private(http.MethodDelete, "/tasks/{id}/subtasks/{sid}", h.deleteSubtask)
	private(http.MethodPost, "/rewards/daily", h.claimDaily)
	private(http.MethodGet, "/campaigns", h.campaigns)
	private(http.MethodGet, "/leaderboard", h.leaderboard)
	private(http.MethodGet, "/stats", h.stats)

	if opts.EnableDebug {
		mux.Handle(http.MethodPost+" "+withPrefix(opts.PathPrefix, "/debug/xp"),
			d.Auth.Require(withAdminKey(http.HandlerFunc(h.debugXP), opts.AdminKeys)))
	}

	// WebSocket events
	if d.Hub != nil {
		mux.Handle(http.MethodGet+" "+withPrefix(opts.PathPrefix, "/ws"),
			wsadapter.Handler(d.Hub, d.Auth.Authenticate, wsadapter.Options{Logger: opts.Logger}))
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not_found", "route not found", nil)
	})

	var handler http.Handler = mux
	if opts.RateLimitEnabled && opts.RateLimitRPM > 0 && opts.RateLimitBurst > 0 {
		handler = withRateLimit(handler, opts.RateLimitRPM, opts.RateLimitBurst)
	}
	if opts.AllowCORSOrigin != "" {
		handler = withCORS(handler, opts.AllowCORSOrigin)
	}
	if opts.Logger != nil {
		handler = withRequestLog(handler, opts.Logger)
	}
	return handler
}

// Helpers

func withPrefix(prefix, path string) string {
	if prefix == "" || prefix == "/" {
		return path
	}
	if prefix[len(prefix)-1] == '/' {
		return prefix[:len(prefix)-1] + path
	}
	return prefix + path
}

func writeJSON(w http.ResponseWriter, v any) {
	writeStatus(w, http.StatusOK, v)
}

func writeStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func writeError(w http.ResponseWriter, status int, code, msg string, details any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(apiError{Code: code, Message: msg, Details: details})
}

// withCORS wraps a handler with a minimal CORS policy.
func withCORS(next http.Handler, origin string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Vary", "Origin")
		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PATCH,DELETE,OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Admin-Key")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withAdminKey enforces a shared admin key list. An empty list lets any
// authenticated caller through.
func withAdminKey(next http.Handler, keys []string) http.Handler {
	allowed := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" {
			allowed[k] = struct{}{}
		}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(allowed) == 0 {
			next.ServeHTTP(w, r)
			return
		}
		key := r.Header.Get("X-Admin-Key")
		if _, ok := allowed[key]; !ok {
			writeError(w, http.StatusForbidden, "forbidden", "admin key required", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit applies a simple token-bucket limiter per client key.
func withRateLimit(next http.Handler, rpm int, burst int) http.Handler {
	limiter := newRateLimiter(rpm, burst)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientKey(r)
		if !limiter.allow(key) {
			writeError(w, http.StatusTooManyRequests, "rate_limited", "too many requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter { return s.ResponseWriter }

// Hijack is needed for websocket upgrades behind the logger.
func (s *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := s.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("hijack not supported")
	}
	s.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func withRequestLog(next http.Handler, logger *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}

// clientKey uses the bearer token if present, otherwise remote IP.
func clientKey(r *http.Request) string {
	if tok := auth.TokenFromRequest(r); tok != "" {
		return tok
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

type rateLimiter struct {
	rpm   float64
	burst float64
	mu    sync.Mutex
	b     map[string]*bucket
}

type bucket struct {
	tokens float64
	last   time.Time
}

func newRateLimiter(rpm, burst int) *rateLimiter {
	return &rateLimiter{
		rpm:   float64(rpm),
		burst: float64(burst),
		b:     make(map[string]*bucket),
	}
}

func (l *rateLimiter) allow(key string) bool {
	now := time.Now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.b[key]
	if !ok {
		l.b[key] = &bucket{tokens: l.burst - 1, last: now}
		return true
	}

	elapsed := now.Sub(b.last).Minutes()
	b.tokens += elapsed * l.rpm
	if b.tokens > l.burst {
		b.tokens = l.burst
	}
	if b.tokens < 1 {
		b.last = now
		return false
	}
	b.tokens--
	b.last = now
	return true
}
