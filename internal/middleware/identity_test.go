package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClientAddrMiddleware(t *testing.T) {
	tests := []struct {
		name       string
		trustProxy bool
		remoteAddr string
		headers    map[string]string
		want       string
	}{
		{"remote addr without proxy", false, "198.51.100.7:54321", nil, "198.51.100.7"},
		{"forwarded header ignored without trust", false, "198.51.100.7:54321",
			map[string]string{"X-Forwarded-For": "203.0.113.9"}, "198.51.100.7"},
		{"first forwarded address with trust", true, "10.0.0.2:80",
			map[string]string{"X-Forwarded-For": "203.0.113.9, 10.0.0.1"}, "203.0.113.9"},
		{"real ip with trust", true, "10.0.0.2:80",
			map[string]string{"X-Real-IP": "203.0.113.10"}, "203.0.113.10"},
		{"fallback to remote addr with trust", true, "10.0.0.2:80", nil, "10.0.0.2"},
		{"remote addr without port", false, "pipe", nil, "pipe"},
		{"non-ip forwarded value falls back to remote addr", true, "10.0.0.2:80",
			map[string]string{"X-Forwarded-For": strings.Repeat("x", 60) + ", 10.0.0.1"}, "10.0.0.2"},
		{"non-ip forwarded value falls back to real ip", true, "10.0.0.2:80",
			map[string]string{"X-Forwarded-For": "unknown", "X-Real-IP": "203.0.113.10"}, "203.0.113.10"},
		{"non-ip real ip ignored", true, "10.0.0.2:80",
			map[string]string{"X-Real-IP": "<script>"}, "10.0.0.2"},
		{"ipv6 forwarded address", true, "10.0.0.2:80",
			map[string]string{"X-Forwarded-For": "2001:db8::1"}, "2001:db8::1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got string
			handler := NewClientAddrMiddleware(tt.trustProxy)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				got = ClientAddrFromContext(r.Context())
			}))

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			handler.ServeHTTP(httptest.NewRecorder(), req)

			if got != tt.want {
				t.Errorf("client addr = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUsernameFromContext_Missing(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, ok := UsernameFromContext(req.Context()); ok {
		t.Error("expected no username in a fresh context")
	}
	if u := UserFromContext(req.Context()); u != nil {
		t.Errorf("expected nil user, got %+v", u)
	}
}

func TestSecurityHeadersMiddleware(t *testing.T) {
	handler := NewSecurityHeadersMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/servers", nil))

	want := map[string]string{
		"X-Content-Type-Options":    "nosniff",
		"X-Frame-Options":           "DENY",
		"Strict-Transport-Security": "max-age=31536000; includeSubDomains",
		"Cache-Control":             "no-store",
	}
	for header, value := range want {
		if got := w.Header().Get(header); got != value {
			t.Errorf("%s = %q, want %q", header, got, value)
		}
	}
}

func TestRecoveryMiddleware_ReturnsUnifiedError(t *testing.T) {
	handler := NewRecoveryMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/servers", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}
