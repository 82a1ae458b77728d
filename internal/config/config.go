// Package config loads the service configuration from environment variables.
// envconfig maps variables onto struct fields; a .env file, when present,
// is loaded first so local runs need no exported variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds ALL application settings.
type Config struct {
	// --- Database ---
	// Inside Docker "localhost" is almost always wrong; the default is the compose service name.
	DBHost     string `envconfig:"DB_HOST" default:"postgres"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"gametime"`
	DBPassword string `envconfig:"DB_PASSWORD" required:"true"`
	DBName     string `envconfig:"DB_NAME" default:"gametime"`
	DBSSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	DBMaxConns int32  `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns int32  `envconfig:"DB_MIN_CONNS" default:"5"`

	// --- Application ---
	AppEnv       string `envconfig:"APP_ENV" default:"development"`
	AppLogLevel  string `envconfig:"APP_LOG_LEVEL" default:"debug"`
	AppLogFormat string `envconfig:"APP_LOG_FORMAT" default:"text"` // text | json

	// --- HTTP ---
	HTTPAddr            string        `envconfig:"HTTP_ADDR" default:":8080"`
	HTTPAllowedOrigins  []string      `envconfig:"HTTP_ALLOWED_ORIGINS" default:"*"`
	HTTPShutdownTimeout time.Duration `envconfig:"HTTP_SHUTDOWN_TIMEOUT" default:"10s"`

	// --- Redis (last-known balance snapshots) ---
	// Empty address keeps snapshots in process memory.
	RedisAddr     string        `envconfig:"REDIS_ADDR" default:""`
	RedisPassword string        `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int           `envconfig:"REDIS_DB" default:"0"`
	SnapshotTTL   time.Duration `envconfig:"SNAPSHOT_TTL" default:"24h"`

	// --- Ledger ---
	LedgerDefaultDailyLimit  int64 `envconfig:"LEDGER_DEFAULT_DAILY_LIMIT" default:"60"`
	LedgerDefaultWeeklyLimit int64 `envconfig:"LEDGER_DEFAULT_WEEKLY_LIMIT" default:"420"`

	// --- Streak ---
	// Used when a parent has not saved their own settings.
	StreakBaseMinutes       int64 `envconfig:"STREAK_BASE_MINUTES" default:"5"`
	StreakIncrementMinutes  int64 `envconfig:"STREAK_INCREMENT_MINUTES" default:"2"`
	StreakCapMinutes        int64 `envconfig:"STREAK_CAP_MINUTES" default:"60"`
	StreakReminderThreshold int   `envconfig:"STREAK_REMINDER_THRESHOLD" default:"3"`

	// --- Jobs (cron, UTC) ---
	CronDailyReset     string `envconfig:"CRON_DAILY_RESET" default:"0 0 * * *"`
	CronStreakReminder string `envconfig:"CRON_STREAK_REMINDERS" default:"0 18 * * *"`

	// --- Telegram (optional parent forwarding) ---
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`

	// --- Rate Limiting ---
	RateLimitRequests int           `envconfig:"RATE_LIMIT_REQUESTS" default:"120"`
	RateLimitWindow   time.Duration `envconfig:"RATE_LIMIT_WINDOW" default:"1m"`

	// --- Feature Flags ---
	FeatureStreaksEnabled   bool `envconfig:"FEATURE_STREAKS_ENABLED" default:"true"`
	FeatureRemindersEnabled bool `envconfig:"FEATURE_REMINDERS_ENABLED" default:"true"`
	FeatureWebsocketEnabled bool `envconfig:"FEATURE_WEBSOCKET_ENABLED" default:"true"`
	FeatureMetricsEnabled   bool `envconfig:"FEATURE_METRICS_ENABLED" default:"true"`
}

// DatabaseDSN returns the PostgreSQL connection string.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
	)
}

// TelegramEnabled reports whether parent notifications are forwarded to Telegram.
func (c *Config) TelegramEnabled() bool {
	return strings.TrimSpace(c.TelegramBotToken) != ""
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	// envconfig accepts a set-but-empty variable as present
	if strings.TrimSpace(c.DBPassword) == "" {
		return fmt.Errorf("DB_PASSWORD must not be empty")
	}
	if c.DBMaxConns <= 0 || c.DBMinConns < 0 || c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("invalid DB_MIN_CONNS/DB_MAX_CONNS")
	}
	if c.LedgerDefaultDailyLimit < 0 || c.LedgerDefaultWeeklyLimit < 0 {
		return fmt.Errorf("LEDGER_DEFAULT_DAILY_LIMIT and LEDGER_DEFAULT_WEEKLY_LIMIT must be >= 0")
	}
	if c.StreakBaseMinutes < 0 || c.StreakIncrementMinutes < 0 || c.StreakCapMinutes < 0 {
		return fmt.Errorf("STREAK_* minutes must be >= 0")
	}
	if c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS and RATE_LIMIT_WINDOW must be > 0")
	}
	switch c.AppLogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("APP_LOG_FORMAT must be text or json, got %q", c.AppLogFormat)
	}
	return nil
}

// Load reads .env (if any) and the environment into a Config.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
