package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration for the CreativeScope application.
type Config struct {
	Server     ServerConfig
	Store      StoreConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	ClickHouse ClickHouseConfig
	Scorer     ScorerConfig
	Geo        GeoConfig
	Auth       AuthConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
	Metrics    MetricsConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
}

// StoreConfig selects the document store backend.
type StoreConfig struct {
	// Backend is one of "memory", "redis", "postgres".
	Backend string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int
	MinConns int
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// ClickHouseConfig configures the analysis event warehouse.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     string
	Database string
	User     string
	Password string
}

// ScorerConfig configures the external generative scorer.
type ScorerConfig struct {
	// Backend is "http" or "static" (deterministic scores for development).
	Backend    string
	URL        string
	APIKey     string
	Model      string
	Timeout    time.Duration
	MaxRetries int
}

// GeoConfig configures GeoIP enrichment of device info.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

type AuthConfig struct {
	// AdminKey gates the admin read endpoints (daily stats, error logs).
	AdminKey string
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("CSCOPE_HTTP_ADDR", ":8080"),
			Env:             getEnv("CSCOPE_ENV", "development"),
			ShutdownTimeout: getDurationEnv("CSCOPE_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Store: StoreConfig{
			Backend: getEnv("CSCOPE_STORE_BACKEND", "memory"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("CSCOPE_DB_HOST", "localhost"),
			Port:     getIntEnv("CSCOPE_DB_PORT", 5432),
			User:     getEnv("CSCOPE_DB_USER", "creativescope"),
			Password: getEnv("CSCOPE_DB_PASSWORD", "creativescope_secret"),
			DBName:   getEnv("CSCOPE_DB_NAME", "creativescope"),
			SSLMode:  getEnv("CSCOPE_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("CSCOPE_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("CSCOPE_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("CSCOPE_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("CSCOPE_REDIS_PASSWORD", ""),
			DB:       getIntEnv("CSCOPE_REDIS_DB", 0),
		},
		ClickHouse: ClickHouseConfig{
			Enabled:  getBoolEnv("CSCOPE_CLICKHOUSE_ENABLED", false),
			Addr:     getEnv("CSCOPE_CLICKHOUSE_ADDR", "localhost:9000"),
			Database: getEnv("CSCOPE_CLICKHOUSE_DB", "creativescope"),
			User:     getEnv("CSCOPE_CLICKHOUSE_USER", "default"),
			Password: getEnv("CSCOPE_CLICKHOUSE_PASSWORD", ""),
		},
		Scorer: ScorerConfig{
			Backend:    getEnv("CSCOPE_SCORER_BACKEND", "static"),
			URL:        getEnv("CSCOPE_SCORER_URL", ""),
			APIKey:     getEnv("CSCOPE_SCORER_API_KEY", ""),
			Model:      getEnv("CSCOPE_SCORER_MODEL", "creative-scorer-v1"),
			Timeout:    getDurationEnv("CSCOPE_SCORER_TIMEOUT", 30*time.Second),
			MaxRetries: getIntEnv("CSCOPE_SCORER_MAX_RETRIES", 2),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("CSCOPE_GEO_ENABLED", false),
			DatabasePath: getEnv("CSCOPE_GEO_DB_PATH", "/app/data/GeoLite2-City.mmdb"),
		},
		Auth: AuthConfig{
			AdminKey: getEnv("CSCOPE_ADMIN_KEY", ""),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("CSCOPE_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("CSCOPE_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("CSCOPE_RATE_LIMIT_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("CSCOPE_LOG_LEVEL", "info"),
			Format: getEnv("CSCOPE_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("CSCOPE_METRICS_ENABLED", true),
			Path:    getEnv("CSCOPE_METRICS_PATH", "/metrics"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	switch c.Store.Backend {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("CSCOPE_STORE_BACKEND must be memory, redis or postgres, got %q", c.Store.Backend)
	}
	switch c.Scorer.Backend {
	case "static":
	case "http":
		if c.Scorer.URL == "" {
			return fmt.Errorf("CSCOPE_SCORER_URL is required when the http scorer is enabled")
		}
	default:
		return fmt.Errorf("CSCOPE_SCORER_BACKEND must be http or static, got %q", c.Scorer.Backend)
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// Helper functions for reading environment variables

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

func getIntEnv(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func getBoolEnv(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
