// Package config loads the environment variables used by the API binary
// into one typed struct resolved at startup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config aggregates every tunable of the likes service. Handlers never
// read the environment directly; everything is injected from here.
type Config struct {
	HTTPAddress string
	Environment string
	LogLevel    string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// RedisAddr empty means the counter cache is disabled entirely.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	AllowedOrigins string
	ClientIPHeader string

	RateLimitWindowSeconds int
	RateLimitMaxRequests   int

	AutoMigrate bool
}

func Load() (Config, error) {
	// Defaults favor local runs; containers override via environment.
	cfg := Config{
		HTTPAddress:            getEnv("HTTP_ADDRESS", ":8080"),
		Environment:            getEnv("ENVIRONMENT", "production"),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		PostgresHost:           getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:           getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:           getEnv("POSTGRES_USER", "petitions"),
		PostgresPassword:       getEnv("POSTGRES_PASSWORD", "petitions"),
		PostgresDB:             getEnv("POSTGRES_DB", "petition_likes"),
		PostgresSSLMode:        getEnv("POSTGRES_SSLMODE", "disable"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		AllowedOrigins:         getEnv("ALLOWED_ORIGINS", "*"),
		ClientIPHeader:         getEnv("CLIENT_IP_HEADER", "X-Forwarded-For"),
		RateLimitWindowSeconds: getEnvAsInt("RATE_LIMIT_WINDOW_SECONDS", 600),
		RateLimitMaxRequests:   getEnvAsInt("RATE_LIMIT_MAX_REQUESTS", 20),
		AutoMigrate:            getEnvAsBool("DB_AUTO_MIGRATE", true),
	}

	cfg.CacheTTL = time.Duration(getEnvAsInt("CACHE_TTL_SECONDS", 15)) * time.Second

	redisDB := getEnv("REDIS_DB", "0")
	dbInt, err := strconv.Atoi(redisDB)
	if err != nil {
		return Config{}, fmt.Errorf("config: invalid REDIS_DB: %w", err)
	}
	cfg.RedisDB = dbInt

	if cfg.RateLimitWindowSeconds <= 0 {
		return Config{}, fmt.Errorf("config: RATE_LIMIT_WINDOW_SECONDS must be positive")
	}

	return cfg, nil
}

// Development reports whether error responses may carry raw detail.
func (c Config) Development() bool {
	return c.Environment == "development" || c.Environment == "dev" || c.Environment == "local"
}

func (c Config) PostgresDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.PostgresUser,
		c.PostgresPassword,
		c.PostgresHost,
		c.PostgresPort,
		c.PostgresDB,
		c.PostgresSSLMode,
	)
}

func getEnv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

func getEnvAsInt(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return i
}

func getEnvAsBool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	switch value {
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return true
	}
}
