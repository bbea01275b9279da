package config

import (
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Host        string
	Port        string
	DatabaseURL string
	RedisURL    string
	SecretKey   string
	LogLevel    string

	// DBLog enables persistence of one call log record per forwarded call.
	DBLog bool

	// HealthCheck starts the background health monitor.
	HealthCheck         bool
	HealthCheckInterval time.Duration

	// StrictRouting excludes services last seen unhealthy from routing.
	StrictRouting bool

	UpstreamTimeout time.Duration
}

func Load() (*Config, error) {
	godotenv.Load()

	return &Config{
		Host:                getEnv("HOST", "0.0.0.0"),
		Port:                getEnv("PORT", "5001"),
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379"),
		SecretKey:           getEnv("SECRET_KEY", ""),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
		DBLog:               getEnvOn("DB_LOG"),
		HealthCheck:         getEnvOn("HEALTH_CHECK"),
		HealthCheckInterval: getEnvDuration("HEALTH_CHECK_INTERVAL", time.Hour),
		StrictRouting:       getEnvOn("STRICT_ROUTING"),
		UpstreamTimeout:     getEnvDuration("UPSTREAM_TIMEOUT", 90*time.Second),
	}, nil
}

func getEnv(key, defaultVal string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultVal
}

// Feature flags follow the convention of the rest of the deployment: the
// literal value "on" enables, anything else disables.
func getEnvOn(key string) bool {
	return os.Getenv(key) == "on"
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultVal
}
