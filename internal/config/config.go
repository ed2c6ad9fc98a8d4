package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Mode selects the authoritative store. ModeRemote uses PostgreSQL with the
// Redis change feed; ModeLocal runs entirely against the on-disk SQLite
// cache, for environments without a live remote connection.
const (
	ModeRemote = "remote"
	ModeLocal  = "local"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Local    LocalConfig
	Sync     SyncConfig
}

type ServerConfig struct {
	Host        string
	Port        int
	Environment string // "development", "production", "test"
	Debug       bool
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type LocalConfig struct {
	Path string
}

type SyncConfig struct {
	Mode string // ModeRemote or ModeLocal
	// RateLimit is the per-user mutation budget per window.
	RateLimit       int64
	RateLimitWindow int
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:        getEnv("SERVER_HOST", "0.0.0.0"),
			Port:        getEnvInt("SERVER_PORT", 8080),
			Environment: getEnv("APP_ENV", "development"),
			Debug:       getEnvBool("DEBUG", false),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "splitsync"),
			Password: getEnv("DB_PASSWORD", "splitsync"),
			DBName:   getEnv("DB_NAME", "splitsync"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Local: LocalConfig{
			Path: getEnv("LOCAL_STORE_PATH", "splitsync.db"),
		},
		Sync: SyncConfig{
			Mode:            getEnv("SYNC_MODE", ModeRemote),
			RateLimit:       int64(getEnvInt("RATE_LIMIT", 120)),
			RateLimitWindow: getEnvInt("RATE_LIMIT_WINDOW_SECONDS", 60),
		},
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Sync.Mode))
	if mode != ModeRemote && mode != ModeLocal {
		return nil, fmt.Errorf("invalid SYNC_MODE %q: expected %q or %q", cfg.Sync.Mode, ModeRemote, ModeLocal)
	}
	cfg.Sync.Mode = mode

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
