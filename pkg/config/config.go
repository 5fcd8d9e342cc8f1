package config

import (
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Database  DatabaseConfig
	Queue     QueueConfig
	Bootstrap BootstrapConfig
	Log       LogConfig
}

// DatabaseConfig holds the SQLite file and connection pool configuration
type DatabaseConfig struct {
	// Path is the location of the database file.
	Path string

	// MinConns connections are opened up front; MaxConns is the hard
	// ceiling on connections issued by the pool.
	MinConns int
	MaxConns int

	// Timeout bounds the wait for an idle connection, the per-connection
	// creation ping, and the engine busy timeout.
	Timeout time.Duration
}

// QueueConfig holds queue projection configuration
type QueueConfig struct {
	// RefreshInterval is the period of the background projection rebuild.
	RefreshInterval time.Duration

	// AllowRepeatArrival permits a second same-day arrival while the
	// patient is still waiting or in consultation. The legacy front desk
	// allowed this and relied on the receptionist to avoid it.
	AllowRepeatArrival bool
}

// BootstrapConfig holds the first-run admin account
type BootstrapConfig struct {
	AdminUsername string
	AdminPassword string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level string
	Env   string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	return &Config{
		Database: DatabaseConfig{
			Path:     getEnv("DB_PATH", "clinicdesk.db"),
			MinConns: getEnvAsInt("DB_MIN_CONNS", 2),
			MaxConns: getEnvAsInt("DB_MAX_CONNS", 10),
			Timeout:  time.Duration(getEnvAsInt("DB_TIMEOUT_SECONDS", 20)) * time.Second,
		},
		Queue: QueueConfig{
			RefreshInterval:    time.Duration(getEnvAsInt("QUEUE_REFRESH_SECONDS", 5)) * time.Second,
			AllowRepeatArrival: getEnvAsBool("QUEUE_ALLOW_REPEAT_ARRIVAL", true),
		},
		Bootstrap: BootstrapConfig{
			AdminUsername: getEnv("BOOTSTRAP_ADMIN_USERNAME", "admin"),
			AdminPassword: getEnv("BOOTSTRAP_ADMIN_PASSWORD", ""),
		},
		Log: LogConfig{
			Level: getEnv("LOG_LEVEL", "info"),
			Env:   getEnv("APP_ENV", "development"),
		},
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
