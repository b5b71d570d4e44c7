package app

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/pixelgrove/pixelgrove/pkg/jwtx"
)

type Config struct {
	SecretKey string // Required: HMAC secret for signing tokens
	Algorithm string // Optional: HMAC algorithm (HS256, HS384, HS512) (default: HS256)

	AccessTokenTTL  time.Duration // Optional: access token lifetime (default: 15m)
	RefreshTokenTTL time.Duration // Optional: refresh token lifetime (default: 168h)
	EmailTokenTTL   time.Duration // Optional: confirmation token lifetime (default: 24h)
	SessionTTL      time.Duration // Optional: session cache entry lifetime (default: 5m)

	DatabaseFile  string // Optional: path to SQLite database file (default: ./accounts.db)
	PepperFile    string // Optional: path to file containing pepper for password hashing (default: ./pepper)
	RedisURL      string // Optional: redis connection string (default: redis://localhost:6379/0)
	RedisPassword string // Optional: redis password

	BaseURL string // Optional: public base URL used in confirmation links (default: http://localhost:8080)

	Env                 string        // Environment (dev, staging, prod) (default: dev)
	LogLevel            string        // Log level (debug, info, warn, error) (default: info)
	LogFormat           string        // Log format (json, text) (default: json)
	Port                int           // HTTP server port (default: 8080)
	ShutdownGracePeriod time.Duration // Graceful shutdown timeout (default: 10s)
}

func LoadConfig() Config {
	// A .env file is a convenience for local development; absence is fine.
	_ = godotenv.Load()

	return Config{
		SecretKey: os.Getenv("ACCOUNTS_SECRET_KEY"),
		Algorithm: getEnvOrDefault("ACCOUNTS_ALGORITHM", "HS256"),

		AccessTokenTTL:  getEnvDurationOrDefault("ACCOUNTS_ACCESS_TOKEN_TTL", jwtx.DefaultAccessTokenTTL),
		RefreshTokenTTL: getEnvDurationOrDefault("ACCOUNTS_REFRESH_TOKEN_TTL", jwtx.DefaultRefreshTokenTTL),
		EmailTokenTTL:   getEnvDurationOrDefault("ACCOUNTS_EMAIL_TOKEN_TTL", jwtx.DefaultEmailTokenTTL),
		SessionTTL:      getEnvDurationOrDefault("ACCOUNTS_SESSION_TTL", 5*time.Minute),

		DatabaseFile:  getEnvOrDefault("ACCOUNTS_DATABASE_FILE", "accounts.db"),
		PepperFile:    getEnvOrDefault("ACCOUNTS_PEPPER_FILE", "pepper"),
		RedisURL:      getEnvOrDefault("ACCOUNTS_REDIS_URL", "redis://localhost:6379/0"),
		RedisPassword: os.Getenv("ACCOUNTS_REDIS_PASSWORD"),

		BaseURL: getEnvOrDefault("ACCOUNTS_BASE_URL", "http://localhost:8080"),

		Env:                 getEnvOrDefault("ENV", "dev"),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:           getEnvOrDefault("LOG_FORMAT", "json"),
		Port:                getEnvIntOrDefault("PORT", 8080),
		ShutdownGracePeriod: getEnvDurationOrDefault("SHUTDOWN_GRACE_PERIOD", 10*time.Second),
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	if intValue, err := strconv.Atoi(value); err == nil {
		return intValue
	}

	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	// Try parsing as duration (e.g., "1h", "30m", "90s")
	if duration, err := time.ParseDuration(value); err == nil {
		return duration
	}

	// Try parsing as integer minutes (for backwards compatibility)
	if minutes, err := strconv.Atoi(value); err == nil {
		return time.Duration(minutes) * time.Minute
	}

	return defaultValue
}
