package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Env       string
	HTTPAddr  string
	JWTKey    string
	Database  DatabaseConfig
	Redis     RedisConfig
	Roblox    RobloxConfig
	Scan      ScanConfig
	Telemetry TelemetryConfig
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
}

// RobloxConfig controls the inventory fetcher.
type RobloxConfig struct {
	InventoryBaseURL string
	UsersBaseURL     string
	RequestTimeout   time.Duration
	OverallTimeout   time.Duration
	PageDelay        time.Duration
	RetryBaseDelay   time.Duration
	MaxRetries       int
	PageSize         int
}

type ScanConfig struct {
	Timezone       string
	RescanWorkers  int
	RescanQueue    int
	JobTimeout     time.Duration
	LockTTL        time.Duration
	SummaryTTL     time.Duration
	HistoryLimit   int
	MaxHistoryPage int
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

func Load() *Config {
	return &Config{
		Env:      getEnv("ENV", "development"),
		HTTPAddr: normalizeAddr(getEnv("HTTP_ADDR", ":8080")),
		JWTKey:   getEnv("JWT_KEY", "secret"),
		Database: DatabaseConfig{
			Host:     getEnv("DATABASE_HOST", "localhost"),
			Port:     getEnv("DATABASE_PORT", "5432"),
			User:     getEnv("DATABASE_USER", "postgres"),
			Password: getEnv("DATABASE_PASSWORD", "postgres"),
			Name:     getEnv("DATABASE_NAME", "limitedtracker"),
			SSLMode:  getEnv("DATABASE_SSL_MODE", "disable"),
		},
		Redis: RedisConfig{
			Enabled:  getEnvBool("REDIS_ENABLED", true),
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
		},
		Roblox: RobloxConfig{
			InventoryBaseURL: getEnv("ROBLOX_INVENTORY_URL", "https://inventory.roblox.com"),
			UsersBaseURL:     getEnv("ROBLOX_USERS_URL", "https://users.roblox.com"),
			RequestTimeout:   getEnvDuration("ROBLOX_REQUEST_TIMEOUT", 15*time.Second),
			OverallTimeout:   getEnvDuration("ROBLOX_FETCH_TIMEOUT", 2*time.Minute),
			PageDelay:        getEnvDuration("ROBLOX_PAGE_DELAY", 500*time.Millisecond),
			RetryBaseDelay:   getEnvDuration("ROBLOX_RETRY_BASE_DELAY", time.Second),
			MaxRetries:       getEnvInt("ROBLOX_MAX_RETRIES", 5),
			PageSize:         getEnvInt("ROBLOX_PAGE_SIZE", 100),
		},
		Scan: ScanConfig{
			Timezone:       getEnv("SNAPSHOT_TIMEZONE", "UTC"),
			RescanWorkers:  getEnvInt("RESCAN_WORKERS", 4),
			RescanQueue:    getEnvInt("RESCAN_QUEUE_SIZE", 256),
			JobTimeout:     getEnvDuration("RESCAN_JOB_TIMEOUT", 3*time.Minute),
			LockTTL:        getEnvDuration("SCAN_LOCK_TTL", 5*time.Minute),
			SummaryTTL:     getEnvDuration("SNAPSHOT_CACHE_TTL", 10*time.Minute),
			HistoryLimit:   getEnvInt("SNAPSHOT_HISTORY_LIMIT", 10),
			MaxHistoryPage: getEnvInt("SNAPSHOT_HISTORY_MAX", 100),
		},
		Telemetry: TelemetryConfig{
			Enabled:      getEnvBool("OTEL_ENABLED", false),
			OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  getEnv("OTEL_SERVICE_NAME", "limitedtracker"),
		},
	}
}

func (c *Config) IsProduction() bool {
	return c.Env == "production" || c.Env == "prod"
}

// Location resolves the time zone that defines a snapshot's calendar day.
// Unknown zone names fall back to UTC.
func (s ScanConfig) Location() *time.Location {
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func normalizeAddr(addr string) string {
	if addr == "" {
		return addr
	}

	if addr[0] == ':' || addr[0] == '[' {
		return addr
	}

	for _, r := range addr {
		if r < '0' || r > '9' {
			return addr
		}
	}

	return ":" + addr
}
