package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config is the root configuration for both the ingestor and the read API.
type Config struct {
	Database      DatabaseConfig      `json:"database"`
	Bybit         BybitConfig         `json:"bybit"`
	Ingest        IngestConfig        `json:"ingest"`
	Redis         RedisConfig         `json:"redis"`
	Server        ServerConfig        `json:"server"`
	Logging       LoggingConfig       `json:"logging"`
	CircuitBreaker CircuitBreakerConfig `json:"circuit_breaker"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// BybitConfig holds exchange REST client settings.
type BybitConfig struct {
	BaseURL string `json:"base_url"`
	Category string `json:"category"` // "linear"
}

// IngestConfig holds ingestion-pipeline tunables, named after the
// distilled spec's own environment variables.
type IngestConfig struct {
	MaxConcurrentRequests int           `json:"max_concurrent_requests"`
	RequestsPerSecond     float64       `json:"requests_per_second"`
	MaxRetries            int           `json:"max_retries"`
	RetryDelay            time.Duration `json:"retry_delay"`
	DefaultStartTimestamp int64         `json:"default_start_timestamp"` // ms since epoch
	LoopInterval          time.Duration `json:"loop_interval"`           // 0 disables looping
}

// RedisConfig holds Redis configuration for the indicator cache.
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"`
	TTL      time.Duration `json:"ttl"`
}

// ServerConfig holds read-API HTTP server settings.
type ServerConfig struct {
	Port            int    `json:"port"`
	Host            string `json:"host"`
	ProductionMode  bool   `json:"production_mode"`
	AllowedOrigins  string `json:"allowed_origins"`
	ReadTimeout     int    `json:"read_timeout_seconds"`
	WriteTimeout    int    `json:"write_timeout_seconds"`
	ShutdownTimeout int    `json:"shutdown_timeout_seconds"`
}

// LoggingConfig mirrors internal/logging.Config.
type LoggingConfig struct {
	Level       string `json:"level"`
	Output      string `json:"output"`
	JSONFormat  bool   `json:"json_format"`
	IncludeFile bool   `json:"include_file"`
}

// CircuitBreakerConfig tunes the exchange-client breaker (SPEC_FULL.md §4.B/§4.I).
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failure_threshold"`
	CooldownDuration    time.Duration `json:"cooldown_duration"`
}

// Load builds a Config from an optional config.json base, then applies
// environment-variable overrides (which always take precedence).
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Database
	cfg.Database.Host = getEnvOrDefault("DB_HOST", orDefault(cfg.Database.Host, "localhost"))
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", orDefaultInt(cfg.Database.Port, 5432))
	cfg.Database.User = getEnvOrDefault("DB_USER", orDefault(cfg.Database.User, "postgres"))
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", orDefault(cfg.Database.Database, "smartchart"))
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", orDefault(cfg.Database.SSLMode, "disable"))

	// Bybit
	cfg.Bybit.BaseURL = getEnvOrDefault("BYBIT_BASE_URL", orDefault(cfg.Bybit.BaseURL, "https://api.bybit.com"))
	cfg.Bybit.Category = getEnvOrDefault("BYBIT_CATEGORY", orDefault(cfg.Bybit.Category, "linear"))

	// Ingest
	cfg.Ingest.MaxConcurrentRequests = getEnvIntOrDefault("MAX_CONCURRENT_REQUESTS", orDefaultInt(cfg.Ingest.MaxConcurrentRequests, 10))
	cfg.Ingest.RequestsPerSecond = getEnvFloatOrDefault("REQUESTS_PER_SECOND", orDefaultFloat(cfg.Ingest.RequestsPerSecond, 60))
	cfg.Ingest.MaxRetries = getEnvIntOrDefault("MAX_RETRIES", orDefaultInt(cfg.Ingest.MaxRetries, 5))
	cfg.Ingest.RetryDelay = getEnvDurationOrDefault("RETRY_DELAY", orDefaultDuration(cfg.Ingest.RetryDelay, 500*time.Millisecond))
	if cfg.Ingest.DefaultStartTimestamp == 0 {
		cfg.Ingest.DefaultStartTimestamp = defaultStartTimestampMillis()
	}
	cfg.Ingest.LoopInterval = getEnvDurationOrDefault("INGEST_LOOP_INTERVAL", cfg.Ingest.LoopInterval)

	// Redis
	cfg.Redis.Enabled = getEnvOrDefault("REDIS_ENABLED", "false") == "true"
	cfg.Redis.Address = getEnvOrDefault("REDIS_ADDRESS", orDefault(cfg.Redis.Address, "localhost:6379"))
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)
	cfg.Redis.PoolSize = getEnvIntOrDefault("REDIS_POOL_SIZE", orDefaultInt(cfg.Redis.PoolSize, 10))
	cfg.Redis.TTL = getEnvDurationOrDefault("REDIS_INDICATOR_TTL", orDefaultDuration(cfg.Redis.TTL, 30*time.Second))

	// Server
	cfg.Server.Port = getEnvIntOrDefault("SERVER_PORT", orDefaultInt(cfg.Server.Port, 8080))
	cfg.Server.Host = getEnvOrDefault("SERVER_HOST", orDefault(cfg.Server.Host, "0.0.0.0"))
	cfg.Server.ProductionMode = getEnvOrDefault("SERVER_PRODUCTION_MODE", "false") == "true"
	cfg.Server.AllowedOrigins = getEnvOrDefault("SERVER_ALLOWED_ORIGINS", orDefault(cfg.Server.AllowedOrigins, "*"))
	cfg.Server.ReadTimeout = getEnvIntOrDefault("SERVER_READ_TIMEOUT", orDefaultInt(cfg.Server.ReadTimeout, 30))
	cfg.Server.WriteTimeout = getEnvIntOrDefault("SERVER_WRITE_TIMEOUT", orDefaultInt(cfg.Server.WriteTimeout, 30))
	cfg.Server.ShutdownTimeout = getEnvIntOrDefault("SERVER_SHUTDOWN_TIMEOUT", orDefaultInt(cfg.Server.ShutdownTimeout, 10))

	// Logging
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", orDefault(cfg.Logging.Level, "INFO"))
	cfg.Logging.Output = getEnvOrDefault("LOG_OUTPUT", orDefault(cfg.Logging.Output, "stdout"))
	cfg.Logging.JSONFormat = getEnvOrDefault("LOG_JSON", "true") == "true"
	cfg.Logging.IncludeFile = getEnvOrDefault("LOG_INCLUDE_FILE", "false") == "true"

	// Circuit breaker
	cfg.CircuitBreaker.Enabled = getEnvOrDefault("CIRCUIT_BREAKER_ENABLED", "true") == "true"
	cfg.CircuitBreaker.FailureThreshold = getEnvIntOrDefault("CIRCUIT_BREAKER_FAILURE_THRESHOLD", orDefaultInt(cfg.CircuitBreaker.FailureThreshold, 5))
	cfg.CircuitBreaker.CooldownDuration = getEnvDurationOrDefault("CIRCUIT_BREAKER_COOLDOWN", orDefaultDuration(cfg.CircuitBreaker.CooldownDuration, 30*time.Second))
}

// defaultStartTimestampMillis is 2000-01-01T00:00:00Z in epoch milliseconds.
func defaultStartTimestampMillis() int64 {
	return 946684800000
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

func getEnvDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func orDefault(v, d string) string {
	if v == "" {
		return d
	}
	return v
}

func orDefaultInt(v, d int) int {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultFloat(v, d float64) float64 {
	if v == 0 {
		return d
	}
	return v
}

func orDefaultDuration(v, d time.Duration) time.Duration {
	if v == 0 {
		return d
	}
	return v
}
