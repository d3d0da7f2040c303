package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// SDKVersion is sent with every API request.
const SDKVersion = "3.0.0"

// DefaultAPIURL is the hosted Kasrah games API.
const DefaultAPIURL = "https://kasrah-games.onrender.com"

// Config holds all configuration for the Kasrah SDK and its demo host.
type Config struct {
	API       APIConfig
	Game      GameConfig
	Ads       AdsConfig
	Telemetry TelemetryConfig
	Identity  IdentityConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Log       LogConfig
	Metrics   MetricsConfig
	Inspector InspectorConfig
	RateLimit RateLimitConfig
}

type APIConfig struct {
	BaseURL    string
	Timeout    time.Duration
	SDKVersion string
}

// GameConfig carries the page context the game id is detected from.
type GameConfig struct {
	GameID  string
	PageURL string
}

// AdsConfig controls the ad session manager.
type AdsConfig struct {
	// MinInterval is the minimum time between two ads of a gated slot.
	MinInterval time.Duration
	// GatedSlots lists slot types subject to MinInterval.
	GatedSlots []string
	// FetchTimeout bounds a single ad fetch.
	FetchTimeout time.Duration
}

type TelemetryConfig struct {
	FlushInterval time.Duration
	BatchSize     int
	MaxQueue      int
	ClickHouse    ClickHouseConfig
}

// ClickHouseConfig configures the optional analytics mirror.
type ClickHouseConfig struct {
	Enabled  bool
	Addr     []string
	Database string
	Username string
	Password string
	Table    string
}

// IdentityConfig selects where the player id token is persisted.
type IdentityConfig struct {
	Store     string // memory, redis, postgres
	Namespace string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
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

type LogConfig struct {
	Level  string
	Format string
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled   bool
	Path      string
	Namespace string
}

// InspectorConfig configures the developer inspector HTTP surface.
type InspectorConfig struct {
	Enabled         bool
	Addr            string
	MaxLogs         int
	MaxEvents       int
	ShutdownTimeout time.Duration
}

type RateLimitConfig struct {
	Enabled bool
	RPS     float64
	Burst   int
}

// Load reads configuration from environment variables with sensible defaults.
func Load() (*Config, error) {
	cfg := &Config{
		API: APIConfig{
			BaseURL:    getEnv("KASRAH_SDK_API_URL", DefaultAPIURL),
			Timeout:    getDurationEnv("KASRAH_SDK_API_TIMEOUT", 10*time.Second),
			SDKVersion: SDKVersion,
		},
		Game: GameConfig{
			GameID:  getEnv("KASRAH_SDK_GAME_ID", ""),
			PageURL: getEnv("KASRAH_SDK_PAGE_URL", ""),
		},
		Ads: AdsConfig{
			MinInterval:  getDurationEnv("KASRAH_SDK_AD_MIN_INTERVAL", 30*time.Second),
			GatedSlots:   getSliceEnv("KASRAH_SDK_AD_GATED_SLOTS", []string{"interstitial", "rewarded"}),
			FetchTimeout: getDurationEnv("KASRAH_SDK_AD_FETCH_TIMEOUT", 30*time.Second),
		},
		Telemetry: TelemetryConfig{
			FlushInterval: getDurationEnv("KASRAH_SDK_TELEMETRY_FLUSH_INTERVAL", 5*time.Second),
			BatchSize:     getIntEnv("KASRAH_SDK_TELEMETRY_BATCH_SIZE", 10),
			MaxQueue:      getIntEnv("KASRAH_SDK_TELEMETRY_MAX_QUEUE", 1000),
			ClickHouse: ClickHouseConfig{
				Enabled:  getBoolEnv("KASRAH_SDK_CLICKHOUSE_ENABLED", false),
				Addr:     getSliceEnv("KASRAH_SDK_CLICKHOUSE_ADDR", []string{"localhost:9000"}),
				Database: getEnv("KASRAH_SDK_CLICKHOUSE_DB", "kasrah"),
				Username: getEnv("KASRAH_SDK_CLICKHOUSE_USER", "default"),
				Password: getEnv("KASRAH_SDK_CLICKHOUSE_PASSWORD", ""),
				Table:    getEnv("KASRAH_SDK_CLICKHOUSE_TABLE", "sdk_events"),
			},
		},
		Identity: IdentityConfig{
			Store:     getEnv("KASRAH_SDK_IDENTITY_STORE", "memory"),
			Namespace: getEnv("KASRAH_SDK_IDENTITY_NAMESPACE", "kasrah_player_id"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("KASRAH_SDK_REDIS_ADDR", "localhost:6379"),
			Password: getEnv("KASRAH_SDK_REDIS_PASSWORD", ""),
			DB:       getIntEnv("KASRAH_SDK_REDIS_DB", 0),
		},
		Database: DatabaseConfig{
			Host:     getEnv("KASRAH_SDK_DB_HOST", "localhost"),
			Port:     getIntEnv("KASRAH_SDK_DB_PORT", 5432),
			User:     getEnv("KASRAH_SDK_DB_USER", "kasrah"),
			Password: getEnv("KASRAH_SDK_DB_PASSWORD", "kasrah_secret"),
			DBName:   getEnv("KASRAH_SDK_DB_NAME", "kasrah"),
			SSLMode:  getEnv("KASRAH_SDK_DB_SSLMODE", "disable"),
			MaxConns: getIntEnv("KASRAH_SDK_DB_MAX_CONNS", 5),
			MinConns: getIntEnv("KASRAH_SDK_DB_MIN_CONNS", 1),
		},
		Log: LogConfig{
			Level:  getEnv("KASRAH_SDK_LOG_LEVEL", "info"),
			Format: getEnv("KASRAH_SDK_LOG_FORMAT", "json"),
		},
		Metrics: MetricsConfig{
			Enabled:   getBoolEnv("KASRAH_SDK_METRICS_ENABLED", true),
			Path:      getEnv("KASRAH_SDK_METRICS_PATH", "/metrics"),
			Namespace: getEnv("KASRAH_SDK_METRICS_NAMESPACE", "kasrah_sdk"),
		},
		Inspector: InspectorConfig{
			Enabled:         getBoolEnv("KASRAH_SDK_INSPECTOR_ENABLED", true),
			Addr:            getEnv("KASRAH_SDK_INSPECTOR_ADDR", ":8090"),
			MaxLogs:         getIntEnv("KASRAH_SDK_INSPECTOR_MAX_LOGS", 100),
			MaxEvents:       getIntEnv("KASRAH_SDK_INSPECTOR_MAX_EVENTS", 50),
			ShutdownTimeout: getDurationEnv("KASRAH_SDK_SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled: getBoolEnv("KASRAH_SDK_RATE_LIMIT_ENABLED", true),
			RPS:     getFloatEnv("KASRAH_SDK_RATE_LIMIT_RPS", 50),
			Burst:   getIntEnv("KASRAH_SDK_RATE_LIMIT_BURST", 20),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns the configuration Load produces with an empty environment.
func Default() *Config {
	cfg, err := Load()
	if err != nil {
		// defaults always validate; only a broken environment gets here
		panic(err)
	}
	return cfg
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("KASRAH_SDK_API_URL must be an absolute URL, got %q", c.API.BaseURL)
	}
	if c.Ads.MinInterval < 0 {
		return fmt.Errorf("KASRAH_SDK_AD_MIN_INTERVAL must not be negative")
	}
	if c.Ads.FetchTimeout <= 0 {
		return fmt.Errorf("KASRAH_SDK_AD_FETCH_TIMEOUT must be positive")
	}
	if c.Telemetry.BatchSize <= 0 {
		return fmt.Errorf("KASRAH_SDK_TELEMETRY_BATCH_SIZE must be positive")
	}
	if c.Telemetry.FlushInterval <= 0 {
		return fmt.Errorf("KASRAH_SDK_TELEMETRY_FLUSH_INTERVAL must be positive")
	}
	switch c.Identity.Store {
	case "memory", "redis", "postgres":
	default:
		return fmt.Errorf("KASRAH_SDK_IDENTITY_STORE must be memory, redis or postgres, got %q", c.Identity.Store)
	}
	return nil
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
