// Package api exposes the HTTP surface: schema discovery, column plan
// analysis, report execution and export, and the admin request registry.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/colplan/colplan/internal/config"
	"github.com/colplan/colplan/internal/export"
	"github.com/colplan/colplan/internal/observability"
	"github.com/colplan/colplan/internal/planner"
	"github.com/colplan/colplan/internal/report"
	"github.com/colplan/colplan/internal/requests"
	"github.com/colplan/colplan/internal/schema"
	"github.com/colplan/colplan/internal/storage"
)

type ReadinessCheck func(ctx context.Context) error

// SchemaIndex is the read surface of the schema cache.
type SchemaIndex interface {
	ListTables() []schema.TableInfo
	ColumnsOf(tableName string) (schema.TableSchema, error)
	LoadedAt() time.Time
}

type PlannerService interface {
	Analyze(ctx context.Context, req planner.AnalysisRequest) (planner.PlanResult, error)
}

type ReportRunner interface {
	Run(ctx context.Context, req report.Request) (report.Result, error)
}

type ExportService interface {
	Export(ctx context.Context, result report.Result, format export.Format, archive bool) (export.Export, error)
	Archived(ctx context.Context, key string) (io.ReadCloser, storage.ObjectInfo, error)
}

type Dependencies struct {
	Logger            *slog.Logger
	Readiness         ReadinessCheck
	AuthMiddleware    func(http.Handler) http.Handler
	DependencyTimeout time.Duration
	Schemas           SchemaIndex
	SchemaRefresh     func(ctx context.Context) error
	Planner           PlannerService
	Reports           ReportRunner
	Exports           ExportService
	ArchiveEnabled    bool
	Requests          requests.Registry
}

func NewHandler(cfg config.Config, deps Dependencies) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /v1/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "service": cfg.Service.Name})
	})

	mux.HandleFunc("GET /v1/ready", func(w http.ResponseWriter, r *http.Request) {
		if deps.Readiness == nil {
			writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
			return
		}
		timeout := deps.DependencyTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(r.Context(), timeout)
		defer cancel()
		if err := deps.Readiness(ctx); err != nil {
			writeError(r.Context(), w, http.StatusServiceUnavailable, "NOT_READY", err.Error(), true, nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ready"})
	})

	mux.Handle("GET /v1/metrics", promhttp.Handler())

	protected := http.NewServeMux()
	protected.HandleFunc("GET /v1/tables", func(w http.ResponseWriter, r *http.Request) {
		handleListTables(deps, w, r)
	})
	protected.HandleFunc("GET /v1/tables/{table}/schema", func(w http.ResponseWriter, r *http.Request) {
		handleTableSchema(deps, w, r)
	})
	protected.HandleFunc("POST /v1/schema/refresh", func(w http.ResponseWriter, r *http.Request) {
		handleSchemaRefresh(deps, w, r)
	})
	protected.HandleFunc("POST /v1/analyze/columns", func(w http.ResponseWriter, r *http.Request) {
		handleAnalyzeColumns(deps, w, r)
	})
	protected.HandleFunc("POST /v1/reports", func(w http.ResponseWriter, r *http.Request) {
		handleRunReport(deps, w, r)
	})
	protected.HandleFunc("POST /v1/reports/export", func(w http.ResponseWriter, r *http.Request) {
		handleExportReport(deps, w, r)
	})
	protected.HandleFunc("GET /v1/reports/archive/{key...}", func(w http.ResponseWriter, r *http.Request) {
		handleGetArchivedExport(deps, w, r)
	})
	protected.HandleFunc("POST /v1/requests", func(w http.ResponseWriter, r *http.Request) {
		handleCreateRequest(deps, w, r)
	})
	protected.HandleFunc("GET /v1/requests", func(w http.ResponseWriter, r *http.Request) {
		handleListRequests(deps, w, r)
	})
	protected.HandleFunc("GET /v1/requests/{id}", func(w http.ResponseWriter, r *http.Request) {
		handleGetRequest(deps, w, r)
	})
	protected.HandleFunc("POST /v1/requests/{id}/review", func(w http.ResponseWriter, r *http.Request) {
		handleReviewRequest(deps, w, r)
	})

	var protectedHandler http.Handler = protected
	if cfg.Auth.Required {
		if deps.AuthMiddleware == nil {
			if deps.Logger != nil {
				deps.Logger.Error("auth required but auth middleware missing")
			}
			protectedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				writeError(r.Context(), w, http.StatusInternalServerError, "AUTH_MIDDLEWARE_MISSING", "auth middleware is required by configuration", false, nil)
			})
		} else {
			protectedHandler = deps.AuthMiddleware(protectedHandler)
		}
	}
	mux.Handle("GET /v1/tables", protectedHandler)
	mux.Handle("GET /v1/tables/{table}/schema", protectedHandler)
	mux.Handle("POST /v1/schema/refresh", protectedHandler)
	mux.Handle("POST /v1/analyze/columns", protectedHandler)
	mux.Handle("POST /v1/reports", protectedHandler)
	mux.Handle("POST /v1/reports/export", protectedHandler)
	mux.Handle("GET /v1/reports/archive/{key...}", protectedHandler)
	mux.Handle("POST /v1/requests", protectedHandler)
	mux.Handle("GET /v1/requests", protectedHandler)
	mux.Handle("GET /v1/requests/{id}", protectedHandler)
	mux.Handle("POST /v1/requests/{id}/review", protectedHandler)

	middlewares := []func(http.Handler) http.Handler{
		observability.TraceMiddleware,
		observability.MetricsMiddleware,
	}
	if deps.Logger != nil {
		middlewares = append(middlewares, observability.LoggingMiddleware(deps.Logger))
	}
	return chain(mux, middlewares...)
}

func CheckSourceDSN(cfg config.Config) ReadinessCheck {
	return func(_ context.Context) error {
		if cfg.Source.DSN == "" {
			return errors.New("source dsn is not configured")
		}
		return nil
	}
}

func CheckSchemaLoaded(schemas SchemaIndex) ReadinessCheck {
	return func(_ context.Context) error {
		if schemas == nil || schemas.LoadedAt().IsZero() {
			return errors.New("schema index has not been loaded")
		}
		return nil
	}
}

func CombineReadinessChecks(checks ...ReadinessCheck) ReadinessCheck {
	filtered := make([]ReadinessCheck, 0, len(checks))
	for _, check := range checks {
		if check != nil {
			filtered = append(filtered, check)
		}
	}
	return func(ctx context.Context) error {
		for _, check := range filtered {
			if err := check(ctx); err != nil {
				return err
			}
		}
		return nil
	}
}

func chain(base http.Handler, middlewares ...func(http.Handler) http.Handler) http.Handler {
	wrapped := base
	for i := len(middlewares) - 1; i >= 0; i-- {
		wrapped = middlewares[i](wrapped)
	}
	return wrapped
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(ctx context.Context, w http.ResponseWriter, status int, code, message string, retryable bool, extra map[string]any) {
	writeJSON(w, status, map[string]any{
		"error_code": code,
		"message":    message,
		"retryable":  retryable,
		"context":    extra,
		"trace_id":   observability.TraceIDFromContext(ctx),
	})
}
