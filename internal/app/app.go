package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/serverinv/internal/audit"
	"github.com/hitoshi/serverinv/internal/auth"
	"github.com/hitoshi/serverinv/internal/config"
	"github.com/hitoshi/serverinv/internal/database"
	"github.com/hitoshi/serverinv/internal/handler"
	"github.com/hitoshi/serverinv/internal/ids"
	"github.com/hitoshi/serverinv/internal/inventory"
	"github.com/hitoshi/serverinv/internal/logger"
	"github.com/hitoshi/serverinv/internal/metrics"
	"github.com/hitoshi/serverinv/internal/middleware"
	"github.com/hitoshi/serverinv/internal/model"
	"github.com/hitoshi/serverinv/internal/repository"
)

// dbPingTimeout は起動時のDB疎通確認のタイムアウト。
const dbPingTimeout = 5 * time.Second

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, os.Getenv("LOG_LEVEL"))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandStats:
		return runStats(cfg)
	default:
		return runServe(cfg)
	}
}

// openStore は設定に応じたStoreを開く。
// 戻り値のcloseは呼び出し側が終了時に呼ぶ。
func openStore(ctx context.Context, cfg *config.Config) (repository.Store, func() error, error) {
	if cfg.UseMemoryStore() {
		slog.Warn("using in-memory store; data is lost on exit")
		return repository.NewMemoryStore(), func() error { return nil }, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	if err := database.Ping(ctx, db, dbPingTimeout); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	return repository.NewPostgresStore(db), db.Close, nil
}

// application はserveモードで組み立てた依存関係一式。
type application struct {
	router      http.Handler
	accounts    *auth.Service
	rateLimiter *middleware.RateLimiter
}

// newApplication はstoreを使って全依存関係をワイヤリングする。
func newApplication(cfg *config.Config, store repository.Store, log *slog.Logger) *application {
	// 1. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 2. ドメインサービス
	auditLogger := audit.NewLogger(store, ids.NewGenerator(), audit.WithMetrics(collector))
	tokens := auth.NewTokenIssuer([]byte(cfg.JWTSecret), nil)
	accounts := auth.NewService(store, auth.NewCredentials(bcrypt.DefaultCost), tokens, auditLogger, collector)
	servers := inventory.NewService(store, auditLogger)

	// 3. ルーター
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(cfg.RateLimitAuth, cfg.RateLimitGeneral))
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            log,
		Metrics:           collector,
		MetricsHandler:    metrics.Handler(registry),
		TokenVerifier:     tokens,
		RoleChecker:       auth.NewGate(store.Users()),
		DenialRecorder:    auditLogger,
		RateLimiter:       rl,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		TrustProxy:        cfg.TrustProxy,
		RequestTimeout:    cfg.RequestTimeout,

		AccountService:   accounts,
		InventoryService: servers,
		AuditReader:      auditLogger,
		Pinger:           store,
	})

	return &application{router: router, accounts: accounts, rateLimiter: rl}
}

// bootstrapAdmin はADMIN_PASSWORDが設定されている場合に管理者を作成する。
func (a *application) bootstrapAdmin(ctx context.Context, cfg *config.Config) error {
	if cfg.AdminPassword == "" {
		slog.Info("ADMIN_PASSWORD not set; skipping admin bootstrap")
		return nil
	}

	created, err := a.accounts.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("admin bootstrap failed: %w", err)
	}
	if created {
		slog.Info("bootstrap admin created", slog.String("username", cfg.AdminUsername))
	}
	return nil
}

// runServe はAPIサーバーモードで起動する。
// Storeを開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	app := newApplication(cfg, store, slog.Default())
	defer app.rateLimiter.Stop()

	if err := app.bootstrapAdmin(ctx, cfg); err != nil {
		return err
	}

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      app.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(stop)

	listenErr := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()

	select {
	case err := <-listenErr:
		return fmt.Errorf("server listen error: %w", err)
	case <-stop:
	}
	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.UseMemoryStore() {
		return errors.New("migrate requires a PostgreSQL DATABASE_URL")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	version, err := database.RunMigrations(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
	return nil
}

// collectStats はstoreから件数を集計する。
func collectStats(ctx context.Context, store repository.Store) (*model.ServerStats, error) {
	users, err := store.Users().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count users: %w", err)
	}
	byType, err := store.Servers().CountByType(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count servers: %w", err)
	}
	records, err := store.Audit().Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to count audit records: %w", err)
	}

	stats := &model.ServerStats{Users: users, AuditRecords: records, ByType: make(map[model.ServerType]int)}
	for _, t := range model.ServerTypes {
		stats.ByType[model.ServerType(t)] = byType[model.ServerType(t)]
	}
	for _, n := range byType {
		stats.Servers += n
	}
	return stats, nil
}

// runStats はユーザー・サーバー・監査レコードの件数をログに出力する。
func runStats(cfg *config.Config) error {
	ctx := context.Background()

	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	stats, err := collectStats(ctx, store)
	if err != nil {
		return err
	}

	attrs := []any{
		slog.Int("users", stats.Users),
		slog.Int("servers", stats.Servers),
		slog.Int("audit_records", stats.AuditRecords),
	}
	for _, t := range model.ServerTypes {
		attrs = append(attrs, slog.Int("servers_"+t, stats.ByType[model.ServerType(t)]))
	}
	slog.Info("database statistics", attrs...)
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if url == config.MemoryDatabaseURL {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
