package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hitoshi/memoria/internal/activity"
	"github.com/hitoshi/memoria/internal/auth"
	"github.com/hitoshi/memoria/internal/config"
	"github.com/hitoshi/memoria/internal/database"
	"github.com/hitoshi/memoria/internal/friendship"
	"github.com/hitoshi/memoria/internal/handler"
	"github.com/hitoshi/memoria/internal/logger"
	"github.com/hitoshi/memoria/internal/memory"
	"github.com/hitoshi/memoria/internal/metrics"
	"github.com/hitoshi/memoria/internal/notification"
	"github.com/hitoshi/memoria/internal/profile"
	"github.com/hitoshi/memoria/internal/repository"
	"github.com/hitoshi/memoria/internal/security"
	"github.com/hitoshi/memoria/internal/storage"
	"github.com/hitoshi/memoria/internal/worker/cleanup"
)

// DotEnvFile は起動時に読み込む.envファイルのパス。
const DotEnvFile = ".env"

// Init はプラットフォームサーバーの初期化を行う。
// .envと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. .envを読み込み、環境変数から設定を読み込む
	if err := config.LoadDotEnv(DotEnvFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// LOG_LEVELが.envで指定された場合に備えて再設定する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。クライアントコマンドの出力はwに書き出す。
func Run(w io.Writer, args []string) error {
	cmd, rest := ParseCommand(args)

	switch {
	case cmd == CommandUnknown:
		fmt.Fprint(w, usage)
		return fmt.Errorf("unknown command: %q", args[0])
	case cmd == CommandHealthcheck:
		// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case cmd.IsClient():
		return runClient(w, cmd, rest)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, rest)
	default:
		return runServe(cfg)
	}
}

// openDB はDB接続を開いて疎通を確認する。
func openDB(cfg *config.Config) (*sql.DB, error) {
	pool := database.DefaultPoolConfig()
	pool.MaxOpenConns = cfg.DBMaxOpenConns
	db, err := database.Open(cfg.DatabaseURL, pool)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// newRegistry はGo/プロセスのコレクタを登録済みのPrometheusレジストリを返す。
func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// newMailer はSMTP設定があればSMTPMailer、無ければログ出力のみのMailerを返す。
func newMailer(cfg *config.Config) notification.Mailer {
	if !cfg.SMTPEnabled() {
		slog.Warn("SMTP is not configured; notifications will be logged instead of sent")
		return notification.LogMailer{}
	}
	return notification.NewSMTPMailer(notification.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUsername,
		Password: cfg.SMTPPassword,
		From:     cfg.SMTPFrom,
	})
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established")

	// 2. メトリクス
	reg := newRegistry()
	collector := metrics.NewCollector(reg)

	// 3. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	confirmRepo := repository.NewPostgresConfirmationRepo(db)
	profileRepo := repository.NewPostgresProfileRepo(db)
	memoryRepo := repository.NewPostgresMemoryRepo(db)
	likeRepo := repository.NewPostgresMemoryLikeRepo(db)
	friendRepo := repository.NewPostgresFriendRequestRepo(db)
	activityRepo := repository.NewPostgresActivityRepo(db)

	// 4. セキュリティサービスの初期化
	sanitizer := security.NewTextSanitizer()
	var verifier security.ImageVerifier
	if cfg.ImageURLVerify {
		verifier = security.NewImageVerifier(security.NewURLGuard(cfg.S3PublicBaseURL), cfg.ImageURLTimeout)
	}

	// 5. 通知
	dispatcher := notification.NewDispatcher(newMailer(cfg), cfg.AdminEmail, cfg.NotifyEmailsPerMinute, collector)
	go dispatcher.Run(ctx)

	// 6. アバターストレージ
	s3Client, err := storage.NewS3Client(ctx, storage.ClientConfig{
		Region:       cfg.S3Region,
		Endpoint:     cfg.S3Endpoint,
		UsePathStyle: cfg.S3UsePathStyle,
	})
	if err != nil {
		return err
	}
	avatars := storage.NewAvatarStore(s3Client, cfg.S3Bucket, cfg.S3PublicBaseURL, cfg.AvatarMaxBytes, collector)
	if err := avatars.EnsureBucket(ctx); err != nil {
		// バケットは後から作成される可能性があるため、起動は継続する
		slog.Error("failed to ensure avatar bucket",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("error", err.Error()),
		)
	}

	// 7. ドメインサービスの初期化
	authService := auth.NewService(
		userRepo, sessionRepo, confirmRepo, dispatcher,
		auth.NewTokenIssuer(cfg.SessionSecret, cfg.AccessTokenTTL),
		collector,
		auth.ServiceConfig{
			SessionMaxAge:            time.Duration(cfg.SessionMaxAge) * time.Second,
			RequireEmailConfirmation: cfg.RequireEmailConfirmation,
			PasswordMinLength:        cfg.PasswordMinLength,
			ConfirmationTTL:          cfg.ConfirmationTTL,
			BaseURL:                  cfg.BaseURL,
		},
	)
	profileService := profile.NewService(profileRepo, sanitizer)
	memoryService := memory.NewService(memoryRepo, likeRepo, sanitizer, verifier)
	friendService := friendship.NewService(friendRepo, profileRepo, collector)
	recorder := activity.NewRecorder(activityRepo)

	// 8. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Authenticator:     authService,
		Logger:            slog.Default(),
		Metrics:           collector,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		DB:                db,

		AuthService:    authService,
		BaseURL:        cfg.BaseURL,
		ProfileService: profileService,
		MemoryService:  memoryService,
		FriendService:  friendService,
		Activity:       recorder,
		AvatarStore:    avatars,
		Notifications:  dispatcher,

		MetricsHandler: metrics.Handler(reg),
	})

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen error: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// user_activityのイベントストリームを購読して管理者向けに記録し、
// 期限切れセッションと確認トークンのクリーンアップを定期実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// 1. DB接続
	db, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	slog.Info("database connection established (worker)")

	reg := newRegistry()
	collector := metrics.NewCollector(reg)
	if cfg.WorkerMetricsPort != "" {
		metricsServer := &http.Server{
			Addr:              ":" + cfg.WorkerMetricsPort,
			Handler:           metrics.SetupMetricsRoute(reg),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("worker metrics server error", slog.String("error", err.Error()))
			}
		}()
		defer metricsServer.Close()
	}

	// 2. イベントストリームの購読
	stream, err := activity.NewStream(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer stream.Close()

	unsubscribe := stream.Subscribe(activity.Filter{Table: activity.Channel}, newActivityLogger(collector))
	defer unsubscribe()

	// 3. クリーンアップジョブ
	cleanupJob := cleanup.NewCleanupJob(
		repository.NewPostgresSessionRepo(db),
		repository.NewPostgresConfirmationRepo(db),
		slog.Default(),
	)
	go cleanupJob.Start(ctx, cfg.CleanupInterval)

	slog.Info("worker starting",
		slog.Duration("cleanup_interval", cfg.CleanupInterval),
	)

	// イベント配信をメインgoroutineで実行（ブロッキング）
	if err := stream.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("activity stream stopped: %w", err)
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// newActivityLogger は管理者画面のアクティビティログに相当する購読ハンドラを返す。
func newActivityLogger(collector metrics.MetricsCollector) func(activity.Event) {
	return func(ev activity.Event) {
		collector.RecordActivityEvent(string(ev.Record.ActivityType))
		slog.Info("user activity",
			slog.String("operation", ev.Operation),
			slog.String("user_id", ev.Record.UserID),
			slog.String("activity_type", string(ev.Record.ActivityType)),
			slog.Time("timestamp", ev.Record.Timestamp),
		)
	}
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしで最新まで適用し、"down N"でN件ロールバックする。
func runMigrate(cfg *config.Config, args []string) error {
	steps, err := parseMigrateArgs(args)
	if err != nil {
		return err
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		slog.Int("steps", steps),
	)

	st, err := database.Migrate(cfg.DatabaseURL, steps)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed",
		slog.Uint64("version", uint64(st.Version)),
		slog.Bool("dirty", st.Dirty),
	)
	return nil
}

// parseMigrateArgs はmigrateサブコマンドの引数を適用件数に変換する。
func parseMigrateArgs(args []string) (int, error) {
	switch {
	case len(args) == 0, len(args) == 1 && args[0] == "up":
		return 0, nil
	case len(args) == 2 && args[0] == "down":
		n, err := strconv.Atoi(args[1])
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid rollback count: %q", args[1])
		}
		return -n, nil
	}
	return 0, fmt.Errorf("usage: migrate [up | down N]")
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
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
