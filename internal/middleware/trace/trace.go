// Package trace assigns request IDs and captures per-request latency and
// status for the HTTP server.
package trace

import (
	"context"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"

	"flotta/internal/log"
)

type ctxKey struct{}

// Middleware tags every request with an ID, logs start and completion and
// keeps running latency counters.
type Middleware struct {
	extractIP func(*http.Request) string
	logs      *log.StructuredLogger

	requests atomic.Int64
	micros   atomic.Int64
}

// Metrics is a snapshot of the request counters.
type Metrics struct {
	TotalRequests       int64
	AverageResponseTime int64 // in microseconds
}

// NewMiddleware creates a trace middleware. A nil logs falls back to the
// process default logger.
func NewMiddleware(extractIP func(*http.Request) string, logs *log.StructuredLogger) *Middleware {
	if logs == nil {
		logs = log.NewStructuredLogger(log.Default())
	}
	return &Middleware{extractIP: extractIP, logs: logs}
}

// Middleware wraps next so every request carries a request ID, in context
// and in the X-Request-ID response header.
func (m *Middleware) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		var clientIP string
		if m.extractIP != nil {
			clientIP = m.extractIP(r)
		}

		requestID := newRequestID()
		ctx := context.WithValue(r.Context(), ctxKey{}, requestID)
		r = r.WithContext(ctx)
		w.Header().Set("X-Request-ID", requestID)

		m.logs.LogHTTPStart(ctx, r, clientIP, requestID)

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		elapsed := time.Since(start)
		m.requests.Add(1)
		m.micros.Add(elapsed.Microseconds())

		m.logs.LogHTTPEnd(ctx, r, rec.status, elapsed.Milliseconds(), clientIP, requestID)
	})
}

// statusRecorder remembers the status code written by the handler.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

// newRequestID mints a fresh ID. ULIDs sort by time, which keeps grepping
// a busy log pleasant.
func newRequestID() string {
	return "req_" + ulid.Make().String()
}

// GetRequestID extracts the request ID from a context, or "" when the
// middleware never saw the request.
func GetRequestID(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey{}).(string); ok {
		return id
	}
	return ""
}

// GetMetrics returns request count and mean latency so far.
func (m *Middleware) GetMetrics() Metrics {
	requests := m.requests.Load()
	var avg int64
	if requests > 0 {
		avg = m.micros.Load() / requests
	}
	return Metrics{TotalRequests: requests, AverageResponseTime: avg}
}
