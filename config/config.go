// Package config loads service configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the auth service.
type Config struct {
	Service   ServiceConfig
	Logging   LoggingConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Auth      AuthConfig
	Tracing   TracingConfig
	Profiling ProfilingConfig
	Shutdown  ShutdownConfig
}

type ServiceConfig struct {
	Name    string
	Version string
	Env     string
	Port    string
}

type LoggingConfig struct {
	Level string
}

type DatabaseConfig struct {
	URL string
}

// RedisConfig points at the session store. An empty URL selects the
// in-process memory store instead (local development and tests).
type RedisConfig struct {
	URL string
}

type SessionConfig struct {
	// TTL is the validity window of a session from creation.
	TTL time.Duration
	// Sliding refreshes the expiry on every successful validation
	// instead of keeping it fixed at creation time.
	Sliding bool
	// CookieName is the cookie used to hand the token to browsers.
	CookieName string
	// ReapInterval is how often the memory store sweeps expired sessions.
	ReapInterval time.Duration
}

type AuthConfig struct {
	// BcryptCost is the bcrypt work factor for new password hashes.
	BcryptCost int
	// HashWorkers bounds the number of concurrent bcrypt computations.
	HashWorkers int
}

type TracingConfig struct {
	Enabled    bool
	Endpoint   string
	SampleRate float64
}

type ProfilingConfig struct {
	Enabled  bool
	Endpoint string
}

type ShutdownConfig struct {
	Timeout    time.Duration
	DrainDelay time.Duration
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Service: ServiceConfig{
			Name:    getEnv("SERVICE_NAME", "authgate"),
			Version: getEnv("SERVICE_VERSION", "dev"),
			Env:     getEnv("SERVICE_ENV", "development"),
			Port:    getEnv("PORT", "3000"),
		},
		Logging: LoggingConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Database: DatabaseConfig{
			URL: getEnv("DATABASE_URL", "postgres://localhost:5432/authgate?sslmode=disable"),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		Session: SessionConfig{
			TTL:          getEnvAsDuration("SESSION_TTL", time.Hour),
			Sliding:      getEnvAsBool("SESSION_SLIDING", false),
			CookieName:   getEnv("SESSION_COOKIE_NAME", "authgate_session"),
			ReapInterval: getEnvAsDuration("SESSION_REAP_INTERVAL", time.Minute),
		},
		Auth: AuthConfig{
			BcryptCost:  getEnvAsInt("BCRYPT_COST", 10),
			HashWorkers: getEnvAsInt("HASH_WORKERS", 4),
		},
		Tracing: TracingConfig{
			Enabled:    getEnvAsBool("TRACING_ENABLED", false),
			Endpoint:   getEnv("TRACING_ENDPOINT", "localhost:4318"),
			SampleRate: getEnvAsFloat("TRACING_SAMPLE_RATE", 0.1),
		},
		Profiling: ProfilingConfig{
			Enabled:  getEnvAsBool("PROFILING_ENABLED", false),
			Endpoint: getEnv("PROFILING_ENDPOINT", "http://localhost:4040"),
		},
		Shutdown: ShutdownConfig{
			Timeout:    getEnvAsDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			DrainDelay: getEnvAsDuration("READINESS_DRAIN_DELAY", 0),
		},
	}
}

// Validate checks the configuration for values the service cannot start with.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.Session.TTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive, got %v", c.Session.TTL)
	}
	if c.Auth.BcryptCost < 4 || c.Auth.BcryptCost > 31 {
		return fmt.Errorf("BCRYPT_COST must be between 4 and 31, got %d", c.Auth.BcryptCost)
	}
	if c.Auth.HashWorkers < 1 {
		return fmt.Errorf("HASH_WORKERS must be at least 1, got %d", c.Auth.HashWorkers)
	}
	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return fmt.Errorf("TRACING_ENDPOINT is required when tracing is enabled")
	}
	return nil
}

// GetShutdownTimeoutDuration returns how long graceful shutdown may take.
func (c *Config) GetShutdownTimeoutDuration() time.Duration {
	return c.Shutdown.Timeout
}

// GetReadinessDrainDelayDuration returns the pause between failing the
// readiness probe and starting HTTP shutdown.
func (c *Config) GetReadinessDrainDelayDuration() time.Duration {
	return c.Shutdown.DrainDelay
}

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
