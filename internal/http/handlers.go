package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"gastos/internal/core"
	applog "gastos/internal/log"
)

// handleHealth performs basic liveness check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().Body(map[string]string{"status": "ok"}).Write(w)
}

// handleReady checks dependencies, currently the database.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := map[string]string{"database": "not_configured"}
	status, httpStatus := "ready", http.StatusOK
	if s.ready != nil {
		if err := s.ready(ctx); err != nil {
			checks["database"] = "failed: " + err.Error()
			status, httpStatus = "not_ready", http.StatusServiceUnavailable
		} else {
			checks["database"] = "ok"
		}
	}

	NewJSONResponse().Status(httpStatus).Body(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

// handleMetrics provides request and security metrics in plain text format
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	traceMetrics := s.traceMiddleware.GetMetrics()
	limitMetrics := s.rateLimiter.GetMetrics()
	securityMetrics := s.securityDetector.GetMetrics()

	metric := func(name, help, kind string, value any) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n%s %v\n\n", name, help, name, kind, name, value)
	}
	metric("http_requests_total", "Total number of HTTP requests", "counter", traceMetrics.TotalRequests)
	metric("http_server_errors_total", "Responses with a 5xx status", "counter", traceMetrics.ServerErrors)
	metric("rate_limit_rejections_total", "Requests rejected by the rate limiter", "counter", limitMetrics.Rejected)
	metric("active_rate_limit_clients", "Currently tracked rate limit clients", "gauge", limitMetrics.ClientCount)
	metric("suspicious_requests_total", "Total suspicious requests detected", "counter", securityMetrics.SuspiciousRequests)
	if s.kpiCache != nil {
		stats := s.kpiCache.Stats()
		metric("kpi_cache_hits_total", "KPI cache hits", "counter", stats.Hits)
		metric("kpi_cache_misses_total", "KPI cache misses", "counter", stats.Misses)
		metric("kpi_cache_entries", "Current KPI cache entries", "gauge", s.kpiCache.Size())
	}
	metric("uptime_seconds", "Application uptime in seconds", "gauge", int64(time.Since(s.started).Seconds()))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUpload)
	if err := r.ParseMultipartForm(s.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.logger.WarnContext(r.Context(), "Upload too large",
				applog.FieldOperation, applog.OpImport,
				applog.FieldErrorType, applog.ErrorTypeTooLarge)
			FromError(err).Write(w)
			return
		}
		BadRequestError("Invalid multipart form").Write(w)
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	file, header, err := r.FormFile("file")
	if err != nil {
		BadRequestError("Missing file").Write(w)
		return
	}
	defer file.Close()
	if header.Filename == "" {
		BadRequestError("Missing filename").Write(w)
		return
	}

	result, err := s.svc.Import(r.Context(), header.Filename, file)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpImport)
		return
	}
	applog.NewStructuredLogger(applog.FromContext(r.Context())).LogImport(r.Context(), header.Filename, result.Imported)
	NewJSONResponse().Body(result).Write(w)
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseExpenseFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	expenses, err := s.svc.List(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpList)
		return
	}
	if expenses == nil {
		expenses = []core.Expense{}
	}
	NewJSONResponse().Body(expenses).Write(w)
}

func (s *Server) handleUpdateExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	update, err := ParseExpenseUpdate(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	expense, err := s.svc.Update(r.Context(), id, update)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpUpdate)
		return
	}
	NewJSONResponse().Body(expense).Write(w)
}

func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	id, err := ParseID(r)
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	if err := s.svc.Delete(r.Context(), id); err != nil {
		s.writeServiceError(w, r, err, applog.OpDelete)
		return
	}
	NewJSONResponse().Body(map[string]int64{"deleted": id}).Write(w)
}

func (s *Server) handleKPIs(w http.ResponseWriter, r *http.Request) {
	filter, err := ParseKPIFilter(r.URL.Query())
	if err != nil {
		BadRequestError(err.Error()).Write(w)
		return
	}
	summary, err := s.svc.KPIs(r.Context(), filter)
	if err != nil {
		s.writeServiceError(w, r, err, applog.OpKPIs)
		return
	}
	NewJSONResponse().Body(summary).Write(w)
}

// writeServiceError logs server-side failures and answers with the mapped status.
func (s *Server) writeServiceError(w http.ResponseWriter, r *http.Request, err error, op string) {
	if statusFor(err) >= http.StatusInternalServerError {
		applog.NewStructuredLogger(applog.FromContext(r.Context())).
			LogError(r.Context(), "Request failed", err, applog.ComponentHTTP, op,
				applog.NewFields().WithErrorType(applog.ErrorTypeInternal))
	}
	FromError(err).Write(w)
}
