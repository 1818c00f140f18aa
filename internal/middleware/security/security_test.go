package security

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestDetectSuspiciousRequest(t *testing.T) {
	tests := []struct {
		name    string
		build   func() *http.Request
		suspect bool
	}{
		{
			name: "normal page load",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/vehicles/3", nil)
				r.Header.Set("User-Agent", "Mozilla/5.0")
				return r
			},
			suspect: false,
		},
		{
			name: "path traversal",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/static/../../etc/passwd", nil)
			},
			suspect: true,
		},
		{
			name: "sql injection in query",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/fleet/rows?q=x%20union%20select%201", nil)
			},
			suspect: true,
		},
		{
			name: "scanner user agent",
			build: func() *http.Request {
				r := httptest.NewRequest(http.MethodGet, "/", nil)
				r.Header.Set("User-Agent", "sqlmap/1.7")
				return r
			},
			suspect: true,
		},
		{
			name: "trace method",
			build: func() *http.Request {
				return httptest.NewRequest("TRACE", "/", nil)
			},
			suspect: true,
		},
		{
			name: "overlong url",
			build: func() *http.Request {
				return httptest.NewRequest(http.MethodGet, "/?pad="+strings.Repeat("a", 3000), nil)
			},
			suspect: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			if got := d.DetectSuspiciousRequest(tt.build()); got != tt.suspect {
				t.Errorf("DetectSuspiciousRequest() = %v, want %v", got, tt.suspect)
			}
			wantCount := int64(0)
			if tt.suspect {
				wantCount = 1
			}
			if got := d.GetMetrics().SuspiciousRequests; got != wantCount {
				t.Errorf("SuspiciousRequests = %d, want %d", got, wantCount)
			}
		})
	}
}

func TestExtractClientIP(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		xff        string
		xri        string
		want       string
	}{
		{
			name:       "direct public client",
			remoteAddr: "203.0.113.7:52011",
			xff:        "198.51.100.9",
			want:       "203.0.113.7",
		},
		{
			name:       "trusted proxy with xff",
			remoteAddr: "10.1.2.3:4000",
			xff:        "198.51.100.9, 10.1.2.3",
			want:       "198.51.100.9",
		},
		{
			name:       "trusted proxy with real ip",
			remoteAddr: "127.0.0.1:4000",
			xri:        "198.51.100.10",
			want:       "198.51.100.10",
		},
		{
			name:       "trusted proxy with garbage xff",
			remoteAddr: "192.168.1.1:4000",
			xff:        "not-an-ip",
			want:       "192.168.1.1",
		},
		{
			name:       "no port in remote addr",
			remoteAddr: "203.0.113.7",
			want:       "203.0.113.7",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector()
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			r.RemoteAddr = tt.remoteAddr
			if tt.xff != "" {
				r.Header.Set("X-Forwarded-For", tt.xff)
			}
			if tt.xri != "" {
				r.Header.Set("X-Real-IP", tt.xri)
			}

			if got := d.ExtractClientIP(r); got != tt.want {
				t.Errorf("ExtractClientIP() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddTrustedProxy(t *testing.T) {
	d := NewDetector()

	if err := d.AddTrustedProxy("203.0.113.0/24"); err != nil {
		t.Fatalf("AddTrustedProxy: %v", err)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.RemoteAddr = "203.0.113.50:9999"
	r.Header.Set("X-Forwarded-For", "198.51.100.20")
	if got := d.ExtractClientIP(r); got != "198.51.100.20" {
		t.Errorf("ExtractClientIP() = %q after trusting proxy range, want forwarded IP", got)
	}

	if err := d.AddTrustedProxy("not-a-cidr"); err == nil {
		t.Error("AddTrustedProxy accepted a malformed CIDR")
	}
}

func TestSecurityHeaders(t *testing.T) {
	h := NewHeaders(DefaultHeadersConfig())
	handler := h.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	checks := map[string]string{
		"X-Content-Type-Options":       "nosniff",
		"X-Frame-Options":              "DENY",
		"Referrer-Policy":              "strict-origin-when-cross-origin",
		"Cross-Origin-Opener-Policy":   "same-origin",
		"Cross-Origin-Resource-Policy": "same-origin",
	}
	for header, want := range checks {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}

	csp := rec.Header().Get("Content-Security-Policy")
	if !strings.Contains(csp, "default-src 'self'") {
		t.Errorf("CSP %q missing default-src", csp)
	}
	if !strings.Contains(csp, "https://unpkg.com") {
		t.Errorf("CSP %q does not admit the htmx CDN", csp)
	}

	// Plain HTTP requests get no HSTS.
	if rec.Header().Get("Strict-Transport-Security") != "" {
		t.Error("HSTS set on a non-TLS request")
	}
}

func TestStaticCache(t *testing.T) {
	handler := StaticCache(3600)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/static/app.css", nil))

	if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600, immutable" {
		t.Errorf("Cache-Control = %q", got)
	}
}
