package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/hitoshi/serverinv/internal/middleware"
	"github.com/hitoshi/serverinv/internal/metrics"
	"github.com/hitoshi/serverinv/internal/model"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	Metrics           metrics.MetricsCollector
	MetricsHandler    http.Handler // nilの場合 /metrics を公開しない
	TokenVerifier     middleware.TokenVerifier
	RoleChecker       middleware.RoleChecker
	DenialRecorder    middleware.DenialRecorder
	RateLimiter       *middleware.RateLimiter
	CORSAllowedOrigin string
	TrustProxy        bool
	RequestTimeout    time.Duration

	// サービス
	AccountService   AccountServiceInterface
	InventoryService InventoryServiceInterface
	AuditReader      AuditReader
	Pinger           Pinger
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → ClientAddr → Logging → Recovery → SecurityHeaders → CORS → Timeout
//
// 認証が必要なルートでは続けて BearerAuth → RateLimit(General) → Role を適用する。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	collector := deps.Metrics
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	timeout := deps.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(middleware.NewClientAddrMiddleware(deps.TrustProxy))
	r.Use(middleware.NewLoggingMiddleware(logger, collector))
	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(chimw.Timeout(timeout))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewRouteNotFoundError())
	})

	authHandler := NewAuthHandler(deps.AccountService, deps.RoleChecker)
	serverHandler := NewServerHandler(deps.InventoryService)
	logHandler := NewLogHandler(deps.AuditReader)

	requireRole := func(role model.Role) func(http.Handler) http.Handler {
		return middleware.NewRoleMiddleware(deps.RoleChecker, role, deps.DenialRecorder, collector)
	}

	// --- 運用エンドポイント ---
	r.Get("/health", NewHealthHandler(deps.Pinger))
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// --- 認証不要のルート ---
	// ミドルウェアスタック: RateLimit(Auth)
	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.AuthMiddleware())

		r.With(middleware.NewOptionalBearerAuthMiddleware(deps.TokenVerifier, collector)).
			Post("/api/register", authHandler.Register)
		r.Post("/api/login", authHandler.Login)
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: BearerAuth → RateLimit(General) → Role
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewBearerAuthMiddleware(deps.TokenVerifier, collector))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/servers", func(r chi.Router) {
			r.With(requireRole(model.RoleAny)).Get("/", serverHandler.ListServers)
			r.With(requireRole(model.RoleAdmin)).Post("/", serverHandler.CreateServer)
			r.With(requireRole(model.RoleAdmin)).Delete("/{id}", serverHandler.DeleteServer)
		})

		r.With(requireRole(model.RoleAdmin)).Get("/api/logs", logHandler.ListLogs)
	})

	return r
}
