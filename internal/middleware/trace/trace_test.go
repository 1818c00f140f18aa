package trace

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestNewRequestID(t *testing.T) {
	id1 := newRequestID()
	id2 := newRequestID()

	if !strings.HasPrefix(id1, "req_") {
		t.Errorf("request ID %q missing req_ prefix", id1)
	}
	if id1 == id2 {
		t.Errorf("consecutive request IDs collided: %q", id1)
	}
}

func TestGetRequestID(t *testing.T) {
	if got := GetRequestID(context.Background()); got != "" {
		t.Errorf("GetRequestID on empty context = %q, want empty", got)
	}

	ctx := context.WithValue(context.Background(), ctxKey{}, "req_abc123")
	if got := GetRequestID(ctx); got != "req_abc123" {
		t.Errorf("GetRequestID = %q, want req_abc123", got)
	}
}

func TestMiddlewareInjectsRequestID(t *testing.T) {
	m := NewMiddleware(func(r *http.Request) string { return "10.0.0.1" }, nil)

	var seenID string
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenID = GetRequestID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/vehicles", nil))

	if seenID == "" {
		t.Error("handler saw no request ID in context")
	}
	if got := rec.Header().Get("X-Request-ID"); got != seenID {
		t.Errorf("X-Request-ID header = %q, want %q", got, seenID)
	}
	if rec.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", rec.Code)
	}
}

func TestMiddlewareCountsRequests(t *testing.T) {
	m := NewMiddleware(nil, nil)
	handler := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 3; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}

	got := m.GetMetrics()
	if got.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", got.TotalRequests)
	}
	if got.AverageResponseTime < 0 {
		t.Errorf("AverageResponseTime = %d, want non-negative", got.AverageResponseTime)
	}
}

func TestMetricsOnEmptyMiddleware(t *testing.T) {
	m := NewMiddleware(nil, nil)
	got := m.GetMetrics()
	if got.TotalRequests != 0 || got.AverageResponseTime != 0 {
		t.Errorf("fresh metrics = %+v, want zeros", got)
	}
}
