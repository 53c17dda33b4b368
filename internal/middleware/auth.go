package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/serverinv/internal/metrics"
	"github.com/hitoshi/serverinv/internal/model"
)

// TokenVerifier はベアラートークンを検証してユーザー名を返す。
// auth.TokenIssuer が満たす。
type TokenVerifier interface {
	Verify(token string) (string, error)
}

// NewBearerAuthMiddleware は Authorization ヘッダーのベアラートークンを検証し、
// ユーザー名をリクエストコンテキストに注入するミドルウェアを返す。
// トークンの欠落・不正・期限切れはいずれも401を返し、監査ログには記録しない。
func NewBearerAuthMiddleware(verifier TokenVerifier, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			username, err := verifier.Verify(token)
			if err != nil {
				collector.RecordTokenRejected()
				slog.Warn("bearer token rejected",
					slog.String("path", r.URL.Path),
					slog.String("client_addr", ClientAddrFromContext(r.Context())),
				)
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUsername(r.Context(), username)))
		})
	}
}

// NewOptionalBearerAuthMiddleware はトークンがある場合のみ検証するミドルウェアを返す。
// ヘッダーがなければ匿名のまま通し、不正なトークンは401を返す。
func NewOptionalBearerAuthMiddleware(verifier TokenVerifier, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	required := NewBearerAuthMiddleware(verifier, collector)
	return func(next http.Handler) http.Handler {
		withAuth := required(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("Authorization") == "" {
				next.ServeHTTP(w, r)
				return
			}
			withAuth.ServeHTTP(w, r)
		})
	}
}

// bearerToken は "Bearer <token>" 形式からトークンを取り出す。スキーム名は大文字小文字を区別しない。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	return token, true
}
