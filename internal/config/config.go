package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the Insight analytics service.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Auth      AuthConfig
	RateLimit RateLimitConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Geo       GeoConfig
	Cache     CacheConfig
}

type ServerConfig struct {
	Addr            string
	Env             string
	ShutdownTimeout time.Duration
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

type AuthConfig struct {
	Enabled   bool
	MasterKey string
	SkipPaths []string
}

type RateLimitConfig struct {
	Enabled     bool
	IngestRPS   float64
	IngestBurst int
	QueryRPS    float64
	QueryBurst  int
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

// GeoConfig configures GeoIP location enrichment at ingest.
type GeoConfig struct {
	Enabled      bool
	DatabasePath string
}

// CacheConfig configures the Redis dashboard response cache.
type CacheConfig struct {
	TTL          time.Duration
	WarmEnabled  bool
	WarmSchedule string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Addr:            getEnv("INSIGHT_HTTP_ADDR", ":8080"),
			Env:             getEnv("INSIGHT_ENV", "development"),
			ShutdownTimeout: getDurationEnv("INSIGHT_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Host:     getEnv("INSIGHT_DB_HOST", "localhost"),
			Port:     getIntEnv("INSIGHT_DB_PORT", 5432),
			User:     getEnv("INSIGHT_DB_USER", "insight"),
			Password: getEnv("INSIGHT_DB_PASSWORD", "insight_secret"),
			DBName:   getEnv("INSIGHT_DB_NAME", "insight"),
			SSLMode:  getEnv("INSIGHT_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("INSIGHT_DB_MAX_CONNS", 25),
			MinConns: getIntEnv("INSIGHT_DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Addr:     getEnv("INSIGHT_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("INSIGHT_REDIS_PASSWORD", ""),
			DB:       getIntEnv("INSIGHT_REDIS_DB", 0),
		},
		Auth: AuthConfig{
			Enabled:   getBoolEnv("INSIGHT_AUTH_ENABLED", true),
			MasterKey: getEnv("INSIGHT_API_KEY_MASTER", ""),
			SkipPaths: getSliceEnv("INSIGHT_AUTH_SKIP_PATHS", []string{"/health", "/metrics"}),
		},
		RateLimit: RateLimitConfig{
			Enabled:     getBoolEnv("INSIGHT_RATE_LIMIT_ENABLED", true),
			IngestRPS:   getFloatEnv("INSIGHT_RATE_LIMIT_INGEST_RPS", 500),
			IngestBurst: getIntEnv("INSIGHT_RATE_LIMIT_INGEST_BURST", 100),
			QueryRPS:    getFloatEnv("INSIGHT_RATE_LIMIT_QUERY_RPS", 100),
			QueryBurst:  getIntEnv("INSIGHT_RATE_LIMIT_QUERY_BURST", 20),
		},
		Log: LogConfig{
			Level:  getEnv("INSIGHT_LOG_LEVEL", "info"),
			Format: getEnv("INSIGHT_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled: getBoolEnv("INSIGHT_METRICS_ENABLED", true),
			Path:    getEnv("INSIGHT_METRICS_PATH", "/metrics"),
		},
		Geo: GeoConfig{
			Enabled:      getBoolEnv("INSIGHT_GEO_ENABLED", false),
			DatabasePath: getEnv("INSIGHT_GEO_DB_PATH", "/app/data/GeoLite2-City.mmdb"),
		},
		Cache: CacheConfig{
			TTL:          getDurationEnv("INSIGHT_CACHE_TTL", 60*time.Second),
			WarmEnabled:  getBoolEnv("INSIGHT_CACHE_WARM_ENABLED", true),
			WarmSchedule: getEnv("INSIGHT_CACHE_WARM_SCHEDULE", "@every 5m"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that required configuration is present.
func (c *Config) Validate() error {
	if c.Auth.Enabled && c.Auth.MasterKey == "" {
		return fmt.Errorf("INSIGHT_API_KEY_MASTER is required when auth is enabled")
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

func getSliceEnv(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				result = append(result, p)
			}
		}
		return result
	}
	return def
}
