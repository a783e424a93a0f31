package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration
type Config struct {
	// football-data.org API
	FootballDataAPIKey  string        `envconfig:"FOOTBALLDATA_API_KEY" required:"true"`
	FootballDataBaseURL string        `envconfig:"FOOTBALLDATA_BASE_URL" default:"http://api.football-data.org/v1"`
	FootballDataTimeout time.Duration `envconfig:"FOOTBALLDATA_TIMEOUT" default:"30s"`

	// Database
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     int    `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"sportify"`
	DatabaseUser     string `envconfig:"DATABASE_USER" default:"sportify"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" required:"true"`
	DatabaseSSLMode  string `envconfig:"DATABASE_SSL_MODE" default:"disable"`

	// Redis
	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	// Application
	AppEnv   string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Tournaments to track, upserted on startup
	TournamentsFile string `envconfig:"TOURNAMENTS_FILE" default:""`

	// Scheduler
	EnableScheduler     bool          `envconfig:"ENABLE_SCHEDULER" default:"true"`
	InitialSyncEnabled  bool          `envconfig:"INITIAL_SYNC_ENABLED" default:"true"`
	NightlyRefreshCron  string        `envconfig:"NIGHTLY_REFRESH_CRON" default:"0 3 * * *"`
	FixturePollInterval time.Duration `envconfig:"FIXTURE_POLL_INTERVAL" default:"5m"`
	FixtureLookback     time.Duration `envconfig:"FIXTURE_LOOKBACK" default:"72h"`
	FixtureLookahead    time.Duration `envconfig:"FIXTURE_LOOKAHEAD" default:"336h"`

	// Reconciliation
	ReconcileConcurrency int `envconfig:"RECONCILE_CONCURRENCY" default:"4"`
	MaxFetchFailures     int `envconfig:"MAX_FETCH_FAILURES" default:"3"`

	// API Rate Limiting
	APIBurstLimit int `envconfig:"API_BURST_LIMIT" default:"10"`
	APIMaxRetries int `envconfig:"API_MAX_RETRIES" default:"3"`

	// Scoring
	PointsExact   int `envconfig:"POINTS_EXACT" default:"3"`
	PointsOutcome int `envconfig:"POINTS_OUTCOME" default:"1"`
	PointsMiss    int `envconfig:"POINTS_MISS" default:"0"`

	// Caching TTL (in seconds)
	CacheTTLTeams int `envconfig:"CACHE_TTL_TEAMS" default:"86400"` // 24 hours

	// Notifications
	TelegramEnabled  bool   `envconfig:"TELEGRAM_ENABLED" default:"false"`
	TelegramBotToken string `envconfig:"TELEGRAM_BOT_TOKEN" default:""`
	TelegramChatID   int64  `envconfig:"TELEGRAM_CHAT_ID" default:"0"`

	// Monitoring
	EnableMetrics bool `envconfig:"ENABLE_METRICS" default:"true"`
	MetricsPort   int  `envconfig:"METRICS_PORT" default:"9090"`
}

// Load loads configuration from environment variables
// It first attempts to load from .env file if in development mode
func Load() (*Config, error) {
	// Try to load .env file (ignore error if doesn't exist)
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.FootballDataAPIKey == "" {
		return fmt.Errorf("FOOTBALLDATA_API_KEY is required")
	}

	if c.DatabasePassword == "" {
		return fmt.Errorf("DATABASE_PASSWORD is required")
	}

	if c.ReconcileConcurrency < 1 {
		return fmt.Errorf("RECONCILE_CONCURRENCY must be at least 1")
	}

	if c.APIBurstLimit < 1 {
		return fmt.Errorf("API_BURST_LIMIT must be at least 1")
	}

	if c.FixturePollInterval <= 0 {
		return fmt.Errorf("FIXTURE_POLL_INTERVAL must be positive")
	}

	if c.PointsExact < c.PointsOutcome || c.PointsOutcome < c.PointsMiss {
		return fmt.Errorf("points must satisfy POINTS_EXACT >= POINTS_OUTCOME >= POINTS_MISS")
	}

	if c.TelegramEnabled && (c.TelegramBotToken == "" || c.TelegramChatID == 0) {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN and TELEGRAM_CHAT_ID are required when TELEGRAM_ENABLED is set")
	}

	return nil
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DatabaseHost,
		c.DatabasePort,
		c.DatabaseUser,
		c.DatabasePassword,
		c.DatabaseName,
		c.DatabaseSSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// TeamCacheTTL returns the team cache TTL as a duration
func (c *Config) TeamCacheTTL() time.Duration {
	return time.Duration(c.CacheTTLTeams) * time.Second
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.AppEnv == "production"
}

// MustLoad loads configuration or panics on error
// Use this in main() where we want to fail fast
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	return cfg
}
