package http

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"gastos/internal/cache"
	"gastos/internal/core"
	applog "gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// DefaultMaxUploadBytes caps an import upload when the config leaves it unset.
const DefaultMaxUploadBytes = 10 << 20

// ExpenseAPI is the service behind the REST endpoints.
type ExpenseAPI interface {
	Import(ctx context.Context, filename string, r io.Reader) (core.ImportResult, error)
	List(ctx context.Context, filter core.ExpenseFilter) ([]core.Expense, error)
	Update(ctx context.Context, id int64, update core.ExpenseUpdate) (core.Expense, error)
	Delete(ctx context.Context, id int64) error
	KPIs(ctx context.Context, filter core.KPIFilter) (core.KPISummary, error)
}

// Config tunes the server. Zero values pick defaults.
type Config struct {
	Addr               string
	MaxUploadBytes     int64
	RateLimitPerMinute int
	// ReadyCheck is probed by /readyz, typically the database ping.
	ReadyCheck func(ctx context.Context) error
	// KPICache is reported on /metrics when set.
	KPICache *cache.LRUCache[core.KPISummary]
}

type Server struct {
	http.Server
	svc       ExpenseAPI
	logger    *applog.Logger
	maxUpload int64
	ready     func(ctx context.Context) error
	kpiCache  *cache.LRUCache[core.KPISummary]
	started   time.Time

	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector

	shutdownOnce sync.Once
}

// NewServer wires the chi router and middleware chain, returning a
// ready-to-run http.Server.
func NewServer(cfg Config, svc ExpenseAPI, logger *applog.Logger) *Server {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentHTTP)
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	limitCfg := ratelimit.DefaultConfig()
	if cfg.RateLimitPerMinute > 0 {
		limitCfg.RequestsPerMinute = cfg.RateLimitPerMinute
	}

	detector := security.NewDetector()
	s := &Server{
		Server: http.Server{
			Addr:              cfg.Addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		svc:              svc,
		logger:           logger,
		maxUpload:        cfg.MaxUploadBytes,
		ready:            cfg.ReadyCheck,
		kpiCache:         cfg.KPICache,
		started:          time.Now(),
		rateLimiter:      ratelimit.NewLimiter(limitCfg),
		traceMiddleware:  trace.NewMiddleware(detector.ClientIP, logger),
		securityDetector: detector,
	}
	s.Handler = s.routes()
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         300,
	}))
	r.Use(security.NewHeadersMiddleware(security.APIHeadersConfig()).Middleware)
	r.Use(s.securityDetector.Middleware(s.logger.WithComponent(applog.ComponentSecurity).Slog()))
	r.Use(s.rateLimiter.Middleware(s.securityDetector.ClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Rate limit exceeded",
			applog.FieldClientIP, s.securityDetector.ClientIP(r),
			applog.FieldPath, r.URL.Path)
		ErrorResponse(http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.").Write(w)
	}))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		NotFoundError("Not found").Write(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed").Write(w)
	})

	r.Get("/health", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Get("/metrics", s.handleMetrics)

	r.Route("/expenses", func(r chi.Router) {
		r.Get("/", s.handleListExpenses)
		r.Post("/import", s.handleImport)
		r.Get("/kpis", s.handleKPIs)
		r.Put("/{id}", s.handleUpdateExpense)
		r.Delete("/{id}", s.handleDeleteExpense)
	})

	return r
}

// Shutdown gracefully shuts down the server and its background goroutines.
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
