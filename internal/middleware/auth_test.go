package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

// mockVerifier はテスト用のTokenVerifier。
type mockVerifier struct {
	verifyFn func(token string) (string, error)
}

func (m *mockVerifier) Verify(token string) (string, error) {
	if m.verifyFn != nil {
		return m.verifyFn(token)
	}
	return "", errors.New("not implemented")
}

func acceptToken(valid, username string) *mockVerifier {
	return &mockVerifier{verifyFn: func(token string) (string, error) {
		if token == valid {
			return username, nil
		}
		return "", errors.New("invalid token")
	}}
}

func TestBearerAuthMiddleware_ValidToken_InjectsUsername(t *testing.T) {
	mw := NewBearerAuthMiddleware(acceptToken("good", "alice"), nil)

	var captured string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured, _ = UsernameFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.Header.Set("Authorization", "Bearer good")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if captured != "alice" {
		t.Errorf("username = %q, want %q", captured, "alice")
	}
}

func TestBearerAuthMiddleware_SchemeIsCaseInsensitive(t *testing.T) {
	mw := NewBearerAuthMiddleware(acceptToken("good", "alice"), nil)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
	req.Header.Set("Authorization", "bearer good")
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Code, http.StatusOK)
	}
}

func TestBearerAuthMiddleware_Rejects(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		wantRejected int
	}{
		{"no header", "", 0},
		{"basic scheme", "Basic YWxpY2U6cHc=", 0},
		{"empty token", "Bearer ", 0},
		{"invalid token", "Bearer forged", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			collector := &mockCollector{}
			mw := NewBearerAuthMiddleware(acceptToken("good", "alice"), collector)
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/servers", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", w.Code, http.StatusUnauthorized)
			}
			var body ErrorResponseBody
			if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode: %v", err)
			}
			if body.Code != "UNAUTHENTICATED" {
				t.Errorf("code = %q, want %q", body.Code, "UNAUTHENTICATED")
			}
			if collector.tokenRejected != tt.wantRejected {
				t.Errorf("tokenRejected = %d, want %d", collector.tokenRejected, tt.wantRejected)
			}
		})
	}
}

func TestOptionalBearerAuthMiddleware(t *testing.T) {
	tests := []struct {
		name         string
		header       string
		wantStatus   int
		wantUsername string
	}{
		{"anonymous passes", "", http.StatusOK, ""},
		{"valid token sets username", "Bearer good", http.StatusOK, "admin"},
		{"invalid token rejected", "Bearer forged", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewOptionalBearerAuthMiddleware(acceptToken("good", "admin"), nil)

			var captured string
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				captured, _ = UsernameFromContext(r.Context())
				w.WriteHeader(http.StatusOK)
			}))

			req := httptest.NewRequest(http.MethodPost, "/api/register", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if captured != tt.wantUsername {
				t.Errorf("username = %q, want %q", captured, tt.wantUsername)
			}
		})
	}
}
