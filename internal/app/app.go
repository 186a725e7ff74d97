// Package app はアプリケーションの初期化・起動・シャットダウンを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/docgate/internal/config"
	"github.com/hitoshi/docgate/internal/document"
	"github.com/hitoshi/docgate/internal/handler"
	"github.com/hitoshi/docgate/internal/logger"
	"github.com/hitoshi/docgate/internal/metrics"
	"github.com/hitoshi/docgate/internal/pipeline"
	"github.com/hitoshi/docgate/internal/policy"
	"github.com/hitoshi/docgate/internal/ratelimit"
	"github.com/hitoshi/docgate/internal/security"
	"github.com/hitoshi/docgate/internal/session"
	"github.com/hitoshi/docgate/internal/source"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

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
		slog.Bool("auth_enabled", cfg.EnableAuth),
	)

	return runServe(cfg)
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、セッションスイーパーとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. コアコンポーネントの初期化
	sessionStore := session.NewStore(session.Config{
		Enabled: cfg.EnableAuth,
		Timeout: time.Duration(cfg.SessionTimeout) * time.Second,
	})

	authPolicy := policy.New(policy.Config{
		Enabled:      cfg.EnableAuth,
		AllowedUsers: cfg.AllowedUsers,
		AdminUsers:   cfg.AdminUsers,
	})

	limiter := ratelimit.New(cfg.RateLimitPerMin)

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. 認可パイプラインの構築
	pipe := pipeline.New(
		pipeline.Config{
			Routes:       pipeline.DefaultRoutes(),
			AuthEnabled:  cfg.EnableAuth,
			RequireHTTPS: cfg.RequireHTTPS,
		},
		sessionStore,
		authPolicy,
		limiter,
		collector,
		slog.Default(),
	)

	// 4. ドキュメント生成サービスの初期化
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()
	processor := source.NewProcessor(
		ssrfGuard, sanitizer, slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)
	docService := document.NewService(processor, slog.Default())

	// 5. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Pipeline:          pipe,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		AuthPolicy: authPolicy,
		Sessions:   sessionStore,
		AuthConfig: handler.AuthHandlerConfig{
			CookieDomain:  cfg.CookieDomain,
			CookieSecure:  cfg.CookieSecure,
			SessionMaxAge: cfg.SessionTimeout,
		},

		Documents: docService,
		Videos:    processor,

		SessionStats:   sessionStore,
		RateBuckets:    limiter,
		MetricsHandler: metrics.NewHandler(registry),
	})

	// 6. セッションスイーパーをバックグラウンドで起動
	sweepCtx, stopSweeper := context.WithCancel(context.Background())
	defer stopSweeper()

	sweeper := session.NewSweeper(sessionStore, slog.Default())
	go sweeper.Start(sweepCtx)

	// 7. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	// スイーパーを先に停止し、ぶら下がったタイマーなしでプロセスを終了できるようにする
	stopSweeper()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runHealthcheck はローカルのヘルスチェックエンドポイントを呼び出す。
// 正常時はnilを返し、異常時はエラーを返す。
func runHealthcheck(port string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get("http://localhost:" + port + "/healthz")
	if err != nil {
		return fmt.Errorf("healthcheck request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("healthcheck returned status %d", resp.StatusCode)
	}
	return nil
}
