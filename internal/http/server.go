// Package http exposes the pot ledger as a JSON API.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	applog "potshare/internal/log"
	"potshare/internal/metrics"
	"potshare/internal/middleware/ratelimit"
	"potshare/internal/middleware/security"
	"potshare/internal/middleware/trace"
	"potshare/internal/services"
)

const defaultRequestTimeout = 10 * time.Second

// Services groups the application services the handlers call.
type Services struct {
	Pots          *services.PotService
	Participants  *services.ParticipantService
	Contributions *services.ContributionService
	Expenses      *services.ExpenseService
	Balances      *services.BalanceService
}

type Options struct {
	RateLimitPerMinute int
	RequestTimeout     time.Duration
	TrustedProxies     []string
	Logger             *applog.Logger
	Metrics            *metrics.Metrics
	// Ready backs /readyz; nil means always ready.
	Ready func(ctx context.Context) error
}

type Server struct {
	http.Server
	svc      Services
	logger   *applog.Logger
	metrics  *metrics.Metrics
	limiter  *ratelimit.Limiter
	clientIP *security.ClientIPResolver
	ready    func(ctx context.Context) error
	timeout  time.Duration

	shutdownOnce sync.Once
}

// NewServer wires routes and middleware, returning a ready-to-run server.
func NewServer(addr string, svc Services, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = applog.New(applog.DefaultConfig()).WithComponent(applog.ComponentHTTP)
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}

	resolver := security.NewClientIPResolver()
	for _, cidr := range opts.TrustedProxies {
		if err := resolver.AddTrustedProxy(cidr); err != nil {
			logger.Warn("Ignoring invalid trusted proxy", "cidr", cidr, "error", err)
		}
	}

	s := &Server{
		svc:      svc,
		logger:   logger,
		metrics:  opts.Metrics,
		limiter:  ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}),
		clientIP: resolver,
		ready:    opts.Ready,
		timeout:  timeout,
	}

	tracer := trace.NewMiddleware(logger, resolver.ClientIP, s.metrics.ObserveRequest)
	limit := s.limiter.Middleware(resolver.ClientIP, []string{http.MethodPost, http.MethodPatch}, s.handleRateLimited)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	// trace must wrap the mux directly so the matched pattern is visible.
	var h http.Handler = s.routes()
	h = tracer.Middleware(h)
	h = limit(h)
	h = headers.Middleware(h)
	h = applog.Middleware(logger)(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	if s.metrics != nil {
		mux.Handle("GET /metrics", s.metrics.Handler())
	}

	mux.HandleFunc("POST /api/pots", s.handleCreatePot)
	mux.HandleFunc("POST /api/pots/join", s.handleJoinPot)

	mux.HandleFunc("GET /api/participants", s.handleListParticipants)
	mux.HandleFunc("POST /api/participants", s.handleAddParticipant)

	mux.HandleFunc("GET /api/contributions", s.handleListContributions)
	mux.HandleFunc("POST /api/contributions", s.handleRecordContribution)

	mux.HandleFunc("GET /api/expenses", s.handleListExpenses)
	mux.HandleFunc("POST /api/expenses", s.handleCreateExpense)
	mux.HandleFunc("GET /api/expenses/{id}", s.handleGetExpense)
	mux.HandleFunc("PATCH /api/expenses/{id}", s.handleUpdateExpense)

	mux.HandleFunc("GET /api/balances", s.handleBalances)
	mux.HandleFunc("POST /api/splits/equal", s.handleEqualSplit)

	return mux
}

// Shutdown stops the limiter sweeper and drains the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

// withTimeout bounds store calls made on behalf of a request.
func (s *Server) withTimeout(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), s.timeout)
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.clientIP.ClientIP(r),
		applog.FieldMethod, r.Method,
		applog.FieldPath, r.URL.Path)
	ErrorResponse(http.StatusTooManyRequests, "rate limit exceeded", codeRateLimited).Write(w)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.ready(ctx); err != nil {
			applog.FromContext(ctx).WarnContext(ctx, "Readiness check failed", applog.FieldError, err)
			ErrorResponse(http.StatusServiceUnavailable, "store unavailable", codeUnavailable).Write(w)
			return
		}
	}
	NewJSONResponse().Body(map[string]string{"status": "ready"}).Write(w)
}
