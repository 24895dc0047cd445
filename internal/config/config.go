package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// ストアの保存先
const (
	StoreDriverMemory   = "memory"
	StoreDriverFile     = "file"
	StoreDriverRedis    = "redis"
	StoreDriverPostgres = "postgres"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Store
	StoreDriver    string
	StoreNamespace string
	StoreDir       string
	DatabaseURL    string
	RedisAddr      string
	RedisPassword  string
	RedisDB        int

	// Catalog
	CatalogPath string // 空の場合は組み込みの商品一覧

	// Cart
	CartScope        string
	CartEnforceStock bool

	// Account
	PasswordScheme    string
	MinPasswordLength int

	// Mail（SMTPHostが空の場合はログ出力のみ）
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	MailFrom     string

	// Events（NATSURLが空の場合は発行しない）
	NATSURL            string
	OrderEventsSubject string

	// Rate Limit（req/min/client）
	RateLimitGeneral int
	RateLimitAuth    int

	// Server
	ServerPort        string
	ShutdownTimeout   time.Duration
	CORSAllowedOrigin string

	// Logging
	LogLevel string
}

// Load は.envファイル（存在する場合）と環境変数からConfigを読み込む。
// 既に設定されている環境変数は.envで上書きしない。
// 不足・不正な値はまとめて1つのエラーとして返す。
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		StoreDriver:        getEnvString("STORE_DRIVER", StoreDriverFile),
		StoreNamespace:     getEnvStringAllowEmpty("STORE_NAMESPACE", "electrodomesticos_"),
		StoreDir:           getEnvString("STORE_DIR", "./data"),
		DatabaseURL:        os.Getenv("DATABASE_URL"),
		RedisAddr:          os.Getenv("REDIS_ADDR"),
		RedisPassword:      os.Getenv("REDIS_PASSWORD"),
		RedisDB:            getEnvInt("REDIS_DB", 0),
		CatalogPath:        os.Getenv("CATALOG_PATH"),
		CartScope:          getEnvString("CART_SCOPE", "user"),
		CartEnforceStock:   getEnvBool("CART_ENFORCE_STOCK", true),
		PasswordScheme:     getEnvString("PASSWORD_SCHEME", "plain"),
		MinPasswordLength:  getEnvInt("MIN_PASSWORD_LENGTH", 6),
		SMTPHost:           os.Getenv("SMTP_HOST"),
		SMTPPort:           getEnvInt("SMTP_PORT", 587),
		SMTPUsername:       os.Getenv("SMTP_USERNAME"),
		SMTPPassword:       os.Getenv("SMTP_PASSWORD"),
		MailFrom:           os.Getenv("MAIL_FROM"),
		NATSURL:            os.Getenv("NATS_URL"),
		OrderEventsSubject: getEnvString("ORDER_EVENTS_SUBJECT", "storefront.orders.created"),
		RateLimitGeneral:   getEnvInt("RATE_LIMIT_GENERAL", 120),
		RateLimitAuth:      getEnvInt("RATE_LIMIT_AUTH", 10),
		ServerPort:         getEnvString("SERVER_PORT", "8080"),
		ShutdownTimeout:    getEnvDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
		CORSAllowedOrigin:  getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000"),
		LogLevel:           strings.ToLower(getEnvString("LOG_LEVEL", "info")),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate は保存先ごとの必須項目と列挙値を検査する。
func (c *Config) validate() error {
	var missing []string
	var invalid []string

	switch c.StoreDriver {
	case StoreDriverMemory:
	case StoreDriverFile:
		if c.StoreDir == "" {
			missing = append(missing, "STORE_DIR")
		}
	case StoreDriverRedis:
		if c.RedisAddr == "" {
			missing = append(missing, "REDIS_ADDR")
		}
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			missing = append(missing, "DATABASE_URL")
		}
	default:
		invalid = append(invalid, fmt.Sprintf("STORE_DRIVER=%q", c.StoreDriver))
	}

	if c.SMTPHost != "" && c.MailFrom == "" {
		missing = append(missing, "MAIL_FROM")
	}

	if !oneOf(c.CartScope, "user", "profile") {
		invalid = append(invalid, fmt.Sprintf("CART_SCOPE=%q", c.CartScope))
	}
	if !oneOf(c.PasswordScheme, "plain", "argon2id", "bcrypt") {
		invalid = append(invalid, fmt.Sprintf("PASSWORD_SCHEME=%q", c.PasswordScheme))
	}
	if !oneOf(c.LogLevel, "debug", "info", "warn", "error") {
		invalid = append(invalid, fmt.Sprintf("LOG_LEVEL=%q", c.LogLevel))
	}
	if c.RateLimitGeneral <= 0 {
		invalid = append(invalid, "RATE_LIMIT_GENERAL")
	}
	if c.RateLimitAuth <= 0 {
		invalid = append(invalid, "RATE_LIMIT_AUTH")
	}

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("required environment variables are not set: %v", missing))
	}
	if len(invalid) > 0 {
		errs = append(errs, fmt.Errorf("invalid environment variables: %v", invalid))
	}
	return errors.Join(errs...)
}

func oneOf(v string, allowed ...string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// getEnvStringAllowEmpty は明示的に空文字が設定された場合は空文字を返す。
func getEnvStringAllowEmpty(key, defaultVal string) string {
	if v, ok := os.LookupEnv(key); ok {
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
