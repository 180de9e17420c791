package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DBDriver   string
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string
	SQLitePath string

	// Redis (optional; enables the redis rate limiter and cross-instance fan-out)
	RedisURL string

	// JWT issued by the identity provider
	JWTSecret string

	// Platform admins bypass community permission checks
	AdminUserIDs string
	AdminToken   string

	// Server
	Port        string
	CORSOrigins string
	LogLevel    string

	// Community registry
	CommunitiesConfigPath string

	// Moderation
	RateLimitBackend     string
	RateEventRetention   time.Duration
	EventBusPollInterval time.Duration
	SettingsCacheTTL     time.Duration
	SettingsCacheSize    int
}

func Load() *Config {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	return &Config{
		DBDriver:   getEnv("DB_DRIVER", "postgres"),
		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", ""),
		DBName:     getEnv("DB_NAME", "moderation_db"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),
		SQLitePath: getEnv("SQLITE_PATH", "moderation.db"),

		RedisURL: getEnv("REDIS_URL", ""),

		JWTSecret: getEnv("JWT_SECRET", ""),

		AdminUserIDs: getEnv("ADMIN_USER_IDS", ""),
		AdminToken:   getEnv("ADMIN_TOKEN", ""),

		Port:        getEnv("PORT", "8080"),
		CORSOrigins: getEnv("CORS_ORIGINS", "*"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),

		CommunitiesConfigPath: getEnv("COMMUNITIES_CONFIG_PATH", "communities.json"),

		RateLimitBackend:     getEnv("RATE_LIMIT_BACKEND", "database"),
		RateEventRetention:   parseDuration(getEnv("RATE_EVENT_RETENTION", "24h"), 24*time.Hour),
		EventBusPollInterval: parseDuration(getEnv("EVENTBUS_POLL_INTERVAL", "0s"), 0),
		SettingsCacheTTL:     parseDuration(getEnv("SETTINGS_CACHE_TTL", "30s"), 30*time.Second),
		SettingsCacheSize:    parseInt(getEnv("SETTINGS_CACHE_SIZE", "1024"), 1024),
	}
}

func (c *Config) DSN() string {
	if c.DBDriver == "sqlite" {
		return c.SQLitePath
	}
	return "host=" + c.DBHost +
		" user=" + c.DBUser +
		" password=" + c.DBPassword +
		" dbname=" + c.DBName +
		" port=" + c.DBPort +
		" sslmode=" + c.DBSSLMode +
		" TimeZone=UTC"
}

// UsesRedisLimiter reports whether rate limiting should go through redis.
func (c *Config) UsesRedisLimiter() bool {
	return c.RateLimitBackend == "redis" && c.RedisURL != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
