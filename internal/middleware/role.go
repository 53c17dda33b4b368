package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/serverinv/internal/audit"
	"github.com/hitoshi/serverinv/internal/metrics"
	"github.com/hitoshi/serverinv/internal/model"
)

// RoleChecker はユーザーのロール判定を行う。auth.Gate が満たす。
type RoleChecker interface {
	Check(ctx context.Context, username string, required model.Role) (*model.User, error)
}

// DenialRecorder はアクセス拒否を監査ログに記録する。audit.Logger が満たす。
type DenialRecorder interface {
	RecordNow(ctx context.Context, e audit.Entry) error
}

// NewRoleMiddleware はrequiredロールを要求するミドルウェアを返す。
// NewBearerAuthMiddleware の内側に配置する。
//
// ロール不足の場合は ACCESS_DENIED を記録して403を返す。
// 記録に失敗しても応答は403のまま変えない。
func NewRoleMiddleware(checker RoleChecker, required model.Role, recorder DenialRecorder, collector metrics.MetricsCollector) func(next http.Handler) http.Handler {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			username, ok := UsernameFromContext(ctx)
			if !ok {
				WriteErrorResponse(w, http.StatusUnauthorized, model.NewUnauthenticatedError())
				return
			}

			user, err := checker.Check(ctx, username, required)
			var apiErr *model.APIError
			switch {
			case err == nil:
				next.ServeHTTP(w, r.WithContext(ContextWithUser(ctx, user)))
			case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeForbidden:
				route := routePattern(r)
				collector.RecordAccessDenied(route)
				if recErr := recorder.RecordNow(ctx, audit.Entry{
					Actor:      username,
					Action:     model.ActionAccessDenied,
					Resource:   audit.Truncate(r.Method+" "+r.URL.Path, audit.MaxResourceLen),
					Detail:     `{"required_role":"` + string(required) + `"}`,
					SourceAddr: ClientAddrFromContext(ctx),
				}); recErr != nil {
					slog.Error("failed to record access denial",
						slog.String("username", username),
						slog.String("route", route),
						slog.String("error", recErr.Error()),
					)
				}
				WriteErrorResponse(w, http.StatusForbidden, apiErr)
			case errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeUnauthenticated:
				// トークンは有効だが対応するユーザーが存在しない
				WriteErrorResponse(w, http.StatusUnauthorized, apiErr)
			default:
				slog.Error("failed to check role",
					slog.String("username", username),
					slog.String("error", err.Error()),
				)
				WriteInternalServerError(w)
			}
		})
	}
}

// routePattern はchiのルートパターンを返す。ルーティング前の場合はパスを返す。
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
