package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config はプラットフォームサーバー全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL    string
	DBMaxOpenConns int

	// Session
	SessionSecret  string
	SessionMaxAge  int
	AccessTokenTTL time.Duration

	// Auth
	RequireEmailConfirmation bool
	PasswordMinLength        int
	ConfirmationTTL          time.Duration

	// Storage (S3互換)
	S3Bucket        string
	S3Region        string
	S3Endpoint      string
	S3PublicBaseURL string
	S3UsePathStyle  bool
	AvatarMaxBytes  int64

	// Notification
	SMTPHost              string
	SMTPPort              int
	SMTPUsername          string
	SMTPPassword          string
	SMTPFrom              string
	AdminEmail            string
	NotifyEmailsPerMinute int

	// Memory
	ImageURLVerify  bool
	ImageURLTimeout time.Duration

	// Logging
	LogLevel string

	// Worker
	CleanupInterval   time.Duration
	WorkerMetricsPort string // 空の場合、ワーカーはメトリクスを公開しない

	// Server
	ServerPort string
	BaseURL    string

	// CORS(カンマ区切りで複数指定可)
	CORSAllowedOrigin string
}

// LoadDotEnv はpathの.envファイルを環境変数に読み込む。
// ファイルが存在しない場合は何もしない。既に設定済みの環境変数は上書きしない。
func LoadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	if cfg.SessionSecret == "" {
		missing = append(missing, "SESSION_SECRET")
	}

	cfg.BaseURL = os.Getenv("BASE_URL")
	if cfg.BaseURL == "" {
		missing = append(missing, "BASE_URL")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	if len(cfg.SessionSecret) < 32 {
		return nil, fmt.Errorf("SESSION_SECRET must be at least 32 bytes, got %d", len(cfg.SessionSecret))
	}

	// Optional fields with defaults
	cfg.DBMaxOpenConns = getEnvInt("DB_MAX_OPEN_CONNS", 20)
	cfg.SessionMaxAge = getEnvInt("SESSION_MAX_AGE", 30*86400)
	cfg.AccessTokenTTL = getEnvDuration("ACCESS_TOKEN_TTL", time.Hour)
	cfg.RequireEmailConfirmation = getEnvBool("AUTH_REQUIRE_EMAIL_CONFIRMATION", false)
	cfg.PasswordMinLength = getEnvInt("PASSWORD_MIN_LENGTH", 6)
	cfg.ConfirmationTTL = getEnvDuration("CONFIRMATION_TTL", 24*time.Hour)
	cfg.S3Bucket = getEnvString("S3_BUCKET", "profile-pictures")
	cfg.S3Region = getEnvString("S3_REGION", "us-east-1")
	cfg.S3Endpoint = getEnvString("S3_ENDPOINT", "")
	cfg.S3PublicBaseURL = strings.TrimRight(getEnvString("S3_PUBLIC_BASE_URL", cfg.BaseURL+"/storage/v1/object/public"), "/")
	cfg.S3UsePathStyle = getEnvBool("S3_USE_PATH_STYLE", cfg.S3Endpoint != "")
	cfg.AvatarMaxBytes = getEnvInt64("AVATAR_MAX_BYTES", 5242880)
	cfg.SMTPHost = getEnvString("SMTP_HOST", "")
	cfg.SMTPPort = getEnvInt("SMTP_PORT", 587)
	cfg.SMTPUsername = getEnvString("SMTP_USERNAME", "")
	cfg.SMTPPassword = getEnvString("SMTP_PASSWORD", "")
	cfg.SMTPFrom = getEnvString("SMTP_FROM", "Memoria Notifications <notifications@memoria.local>")
	cfg.AdminEmail = getEnvString("ADMIN_EMAIL", "")
	cfg.NotifyEmailsPerMinute = getEnvInt("NOTIFY_EMAILS_PER_MINUTE", 30)
	cfg.ImageURLVerify = getEnvBool("IMAGE_URL_VERIFY", true)
	cfg.ImageURLTimeout = getEnvDuration("IMAGE_URL_TIMEOUT", 5*time.Second)
	cfg.LogLevel = getEnvString("LOG_LEVEL", "info")
	cfg.CleanupInterval = getEnvDuration("CLEANUP_INTERVAL", 24*time.Hour)
	cfg.WorkerMetricsPort = getEnvString("WORKER_METRICS_PORT", "")
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if !ValidBucketName(cfg.S3Bucket) {
		return nil, fmt.Errorf("S3_BUCKET %q is not a valid bucket name (3-63 lowercase letters, digits, '-' or '.')", cfg.S3Bucket)
	}

	return cfg, nil
}

var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// ValidBucketName はS3/MinIOで作成可能なバケット名かどうかを返す。
func ValidBucketName(name string) bool {
	return bucketNamePattern.MatchString(name) && !strings.Contains(name, "..")
}

// SMTPEnabled はSMTP送信が設定済みかどうかを返す。
// 未設定の場合、通知はログ出力のみとなる。
func (c *Config) SMTPEnabled() bool {
	return c.SMTPHost != "" && c.AdminEmail != ""
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
