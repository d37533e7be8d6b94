package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Storage drivers accepted in BOARDSYNC_STORAGE.
const (
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Log      LogConfig
	Storage  StorageConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	Server   ServerConfig
	Realtime RealtimeConfig
}

// LogConfig selects the zerolog level and output format.
type LogConfig struct {
	Level  string
	Format string // "text" for console output, anything else for JSON
}

// StorageConfig selects the board store.
type StorageConfig struct {
	Driver     string
	SQLitePath string
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string //nolint:gosec // G117: DB connection config
	DBName   string
	SSLMode  string
	MaxConns int
}

// RedisConfig holds Redis connection settings. An empty Addr disables the
// cross-process relay.
type RedisConfig struct {
	Addr     string
	Password string //nolint:gosec // G117: Redis connection config
	DB       int
}

// Enabled reports whether a relay should be started.
func (c *RedisConfig) Enabled() bool { return c.Addr != "" }

// JWTConfig holds bearer token settings.
type JWTConfig struct {
	Secret string //nolint:gosec // G117: JWT signing secret config
	TTL    time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CORSOrigins  []string
}

// RealtimeConfig tunes websocket sessions.
type RealtimeConfig struct {
	CursorRate  float64
	CursorBurst int
	SendBuffer  int
}

// LoadLog reads only the logging keys. Logging is set up before the rest of
// the configuration is validated.
func LoadLog() LogConfig {
	return LogConfig{
		Level:  getEnv("BOARDSYNC_LOG_LEVEL", "info"),
		Format: getEnv("BOARDSYNC_LOG_FORMAT", "json"),
	}
}

// Load reads configuration from environment variables.
// Defaults are safe for local development only. In production,
// sensitive values (JWT secret, DB password) must be set explicitly.
func Load() (*Config, error) {
	dbPort, err := getEnvInt("BOARDSYNC_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	dbMaxConns, err := getEnvInt("BOARDSYNC_DB_MAX_CONNS", 25)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	redisDB, err := getEnvInt("BOARDSYNC_REDIS_DB", 0)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	jwtTTL, err := getEnvDuration("BOARDSYNC_JWT_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	readTimeout, err := getEnvDuration("BOARDSYNC_SERVER_READ_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	writeTimeout, err := getEnvDuration("BOARDSYNC_SERVER_WRITE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cursorRate, err := getEnvFloat("BOARDSYNC_CURSOR_RATE", 60)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	cursorBurst, err := getEnvInt("BOARDSYNC_CURSOR_BURST", 10)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	sendBuffer, err := getEnvInt("BOARDSYNC_SEND_BUFFER", 256)
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	corsOrigins := getEnvList("BOARDSYNC_CORS_ORIGINS", []string{"http://localhost:5173"})

	cfg := &Config{
		Log: LoadLog(),
		Storage: StorageConfig{
			Driver:     strings.ToLower(getEnv("BOARDSYNC_STORAGE", StoragePostgres)),
			SQLitePath: getEnv("BOARDSYNC_SQLITE_PATH", "boardsync.db"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("BOARDSYNC_DB_HOST", "localhost"),
			Port:     dbPort,
			User:     getEnv("BOARDSYNC_DB_USER", "boardsync"),
			Password: getEnv("BOARDSYNC_DB_PASSWORD", ""),
			DBName:   getEnv("BOARDSYNC_DB_NAME", "boardsync_dev"),
			SSLMode:  getEnv("BOARDSYNC_DB_SSLMODE", "disable"),
			MaxConns: dbMaxConns,
		},
		Redis: RedisConfig{
			Addr:     getEnv("BOARDSYNC_REDIS_ADDR", ""),
			Password: getEnv("BOARDSYNC_REDIS_PASSWORD", ""),
			DB:       redisDB,
		},
		JWT: JWTConfig{
			Secret: getEnv("BOARDSYNC_JWT_SECRET", ""),
			TTL:    jwtTTL,
		},
		Server: ServerConfig{
			Addr:         getEnv("BOARDSYNC_SERVER_ADDR", ":8080"),
			ReadTimeout:  readTimeout,
			WriteTimeout: writeTimeout,
			CORSOrigins:  corsOrigins,
		},
		Realtime: RealtimeConfig{
			CursorRate:  cursorRate,
			CursorBurst: cursorBurst,
			SendBuffer:  sendBuffer,
		},
	}

	err = cfg.validate()
	if err != nil {
		return nil, fmt.Errorf("config.Load: %w", err)
	}

	return cfg, nil
}

// validate checks required fields and value bounds.
func (c *Config) validate() error {
	// JWT secret is required (no insecure default).
	if c.JWT.Secret == "" {
		return errors.New("BOARDSYNC_JWT_SECRET is required")
	}
	if len(c.JWT.Secret) < 32 {
		return errors.New("BOARDSYNC_JWT_SECRET must be at least 32 characters")
	}

	switch c.Storage.Driver {
	case StoragePostgres:
		if c.Database.SSLMode == "disable" {
			log.Warn().Msg("BOARDSYNC_DB_SSLMODE=disable is insecure for production; set to 'require' or 'verify-full'")
		}
	case StorageSQLite:
		if c.Storage.SQLitePath == "" {
			return errors.New("BOARDSYNC_SQLITE_PATH is required for sqlite storage")
		}
	default:
		return fmt.Errorf("BOARDSYNC_STORAGE must be %q or %q, got %q", StoragePostgres, StorageSQLite, c.Storage.Driver)
	}

	// Bounds checks.
	if c.Database.Port < 1 || c.Database.Port > 65535 {
		return fmt.Errorf("BOARDSYNC_DB_PORT must be 1-65535, got %d", c.Database.Port)
	}
	if c.Database.MaxConns < 1 {
		return fmt.Errorf("BOARDSYNC_DB_MAX_CONNS must be >= 1, got %d", c.Database.MaxConns)
	}
	if c.JWT.TTL <= 0 {
		return fmt.Errorf("BOARDSYNC_JWT_TTL must be positive, got %s", c.JWT.TTL)
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_READ_TIMEOUT must be positive, got %s", c.Server.ReadTimeout)
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("BOARDSYNC_SERVER_WRITE_TIMEOUT must be positive, got %s", c.Server.WriteTimeout)
	}
	if c.Realtime.CursorRate <= 0 {
		return fmt.Errorf("BOARDSYNC_CURSOR_RATE must be positive, got %g", c.Realtime.CursorRate)
	}
	if c.Realtime.CursorBurst < 1 {
		return fmt.Errorf("BOARDSYNC_CURSOR_BURST must be >= 1, got %d", c.Realtime.CursorBurst)
	}
	if c.Realtime.SendBuffer < 1 {
		return fmt.Errorf("BOARDSYNC_SEND_BUFFER must be >= 1, got %d", c.Realtime.SendBuffer)
	}

	return nil
}

// DSN returns the PostgreSQL connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as int: %w", key, v, err)
	}
	return n, nil
}

func getEnvFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as float: %w", key, v, err)
	}
	return f, nil
}
func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("parsing %s=%q as duration: %w", key, v, err)
	}
	return d, nil
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
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
