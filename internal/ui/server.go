// Package ui serves the expenses dashboard as server-rendered HTML.
package ui

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"gastos/internal/core"
	"gastos/internal/dashboard"
	applog "gastos/internal/log"
	"gastos/internal/middleware/ratelimit"
	"gastos/internal/middleware/security"
	"gastos/internal/middleware/trace"
	appweb "gastos/web"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// DefaultMaxUploadBytes matches the API's import limit.
const DefaultMaxUploadBytes = 10 << 20

// fragmentHeader is sent by the dashboard script when it wants a partial
// response to swap in place instead of a full page.
const fragmentHeader = "X-Fragment"

type Config struct {
	Addr               string
	MaxUploadBytes     int64
	RateLimitPerMinute int
}

type Server struct {
	http.Server
	store     *dashboard.Store
	upload    dashboard.Upload
	templates *template.Template
	logger    *applog.Logger
	maxUpload int64

	rateLimiter      *ratelimit.Limiter
	traceMiddleware  *trace.Middleware
	securityDetector *security.Detector

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and wires the router.
func NewServer(cfg Config, store *dashboard.Store, logger *applog.Logger) (*Server, error) {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	logger = logger.WithComponent(applog.ComponentDashboard)
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}

	t, err := template.New("").Funcs(funcMap()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("parse templates: %w", err)
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
		store:            store,
		templates:        t,
		logger:           logger,
		maxUpload:        cfg.MaxUploadBytes,
		rateLimiter:      ratelimit.NewLimiter(limitCfg),
		traceMiddleware:  trace.NewMiddleware(detector.ClientIP, logger),
		securityDetector: detector,
	}
	handler, err := s.routes()
	if err != nil {
		return nil, err
	}
	s.Handler = handler
	return s, nil
}

func (s *Server) routes() (http.Handler, error) {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(s.traceMiddleware.Middleware)
	r.Use(chimiddleware.Recoverer)
	r.Use(security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware)
	r.Use(s.securityDetector.Middleware(s.logger.WithComponent(applog.ComponentSecurity).Slog()))

	sub, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	r.With(security.StaticAssetMiddleware(3600)).
		Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(sub))))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.rateLimiter.Middleware(s.securityDetector.ClientIP, s.rateLimited))

		r.Get("/", s.handleIndex)
		r.Post("/import", s.handleImport)
		r.Route("/expenses/{id}", func(r chi.Router) {
			r.Get("/edit", s.handleEdit)
			r.Get("/cancel", s.handleCancel)
			r.Post("/category", s.handleCategory)
			r.Post("/delete", s.handleDelete)
		})
	})

	return r, nil
}

func (s *Server) rateLimited(w http.ResponseWriter, r *http.Request) {
	s.logger.WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, s.securityDetector.ClientIP(r),
		applog.FieldPath, r.URL.Path)
	http.Error(w, "Demasiadas peticiones. Inténtalo de nuevo más tarde.", http.StatusTooManyRequests)
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

// pageData feeds index.html and the "main" fragment.
type pageData struct {
	State      dashboard.State
	Cards      dashboard.Cards
	Charts     dashboard.Charts
	Edit       dashboard.EditState
	Message    *dashboard.Message
	Confirm    *core.Expense
	Categories []string
	Accept     string
}

// rowData feeds the "row" fragment.
type rowData struct {
	Expense    core.Expense
	Editing    bool
	Categories []string
}

func funcMap() template.FuncMap {
	funcs := dashboard.FuncMap()
	funcs["row"] = func(p pageData, e core.Expense) rowData {
		return rowData{Expense: e, Editing: p.Edit.IsEditing(e.ID), Categories: p.Categories}
	}
	return funcs
}

func (s *Server) page(edit dashboard.EditState) pageData {
	state := s.store.Snapshot()
	p := pageData{
		State:      state,
		Cards:      dashboard.BuildCards(state.KPIs),
		Charts:     dashboard.BuildCharts(state.KPIs),
		Edit:       edit,
		Categories: core.CategoryNames(),
		Accept:     strings.Join(dashboard.AcceptedExtensions, ","),
	}
	if msg, ok := s.upload.Message(); ok {
		p.Message = &msg
	}
	return p
}

// render executes a template into a buffer so a failure still yields a clean
// 500 instead of a half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		applog.NewStructuredLogger(s.logger).LogError(r.Context(), "Template execution failed", err,
			applog.ComponentTemplate, applog.OpRender, applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
		http.Error(w, "Error interno", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func isFragment(r *http.Request) bool {
	return r.Header.Get(fragmentHeader) != ""
}

// afterAction answers a state-changing request: the refreshed dashboard for
// the script, a redirect home for a plain form post.
func (s *Server) afterAction(w http.ResponseWriter, r *http.Request) {
	if isFragment(r) {
		s.render(w, r, http.StatusOK, "main", s.page(dashboard.EditState{}))
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
