package observability

import (
	"crypto/rand"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// Every response carries an X-Trace-ID header so a plan or report request
// can be chased through the logs; the API error envelope repeats the same
// id in its body.
const traceHeader = "X-Trace-ID"

// TraceMiddleware echoes the caller's trace id, or mints one when the
// request arrives without it, and exposes it to handlers via the context.
func TraceMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = newTraceID()
		}
		w.Header().Set(traceHeader, traceID)
		next.ServeHTTP(w, r.WithContext(ContextWithTraceID(r.Context(), traceID)))
	})
}

// MetricsMiddleware feeds the colplan_http_requests_total counter and the
// latency histogram. Label cardinality stays bounded because the API only
// serves fixed /v1 routes.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		outcome := observe(w)
		next.ServeHTTP(outcome, r)

		status := strconv.Itoa(outcome.status)
		httpRequestsTotal.WithLabelValues(r.Method, r.URL.Path, status).Inc()
		httpRequestDurationSeconds.WithLabelValues(r.Method, r.URL.Path, status).Observe(time.Since(started).Seconds())
	})
}

// LoggingMiddleware writes one structured line per request, trace id
// included.
func LoggingMiddleware(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			outcome := observe(w)
			next.ServeHTTP(outcome, r)
			logger.InfoContext(r.Context(), "http_request",
				slog.String("trace_id", TraceIDFromContext(r.Context())),
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.Int("status", outcome.status),
				slog.String("duration", time.Since(started).String()),
				slog.Int("bytes", outcome.bytes),
			)
		})
	}
}

// responseOutcome captures what was written so middleware can report status
// and size after the handler returns.
type responseOutcome struct {
	http.ResponseWriter
	status int
	bytes  int
}

func observe(w http.ResponseWriter) *responseOutcome {
	return &responseOutcome{ResponseWriter: w, status: http.StatusOK}
}

func (o *responseOutcome) WriteHeader(status int) {
	o.status = status
	o.ResponseWriter.WriteHeader(status)
}

func (o *responseOutcome) Write(body []byte) (int, error) {
	n, err := o.ResponseWriter.Write(body)
	o.bytes += n
	return n, err
}

func newTraceID() string {
	var buf [16]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// timestamp fallback keeps requests traceable if rand fails
		return strconv.FormatInt(time.Now().UnixNano(), 36)
	}
	return hex.EncodeToString(buf[:])
}
