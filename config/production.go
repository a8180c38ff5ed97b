// Package config provides configuration management and environment variable handling for the application
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Sequence backends
const (
	BackendDatabase = "database"
	BackendRedis    = "redis"
	BackendMongo    = "mongo"
	BackendMemory   = "memory"
)

// Database drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Mongo      MongoConfig      `json:"mongo"`
	Sequence   SequenceConfig   `json:"sequence"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"` // postgres, sqlite
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	AutoMigrate     bool          `json:"auto_migrate"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowedMethods   []string `json:"allowed_methods"`
	AllowedHeaders   []string `json:"allowed_headers"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`

	// API Security
	RequireAPIKey  bool     `json:"require_api_key"`
	APIKeyHeader   string   `json:"api_key_header"`
	AllowedAPIKeys []string `json:"allowed_api_keys"`
	IPBlacklist    []string `json:"ip_blacklist"`
}

type LoggingConfig struct {
	Level      string `json:"level"`  // debug, info, warn, error
	Format     string `json:"format"` // json, text
	Output     string `json:"output"` // stdout, file, both
	FilePath   string `json:"file_path"`
	MaxSize    int    `json:"max_size"` // MB
	MaxBackups int    `json:"max_backups"`
	MaxAge     int    `json:"max_age"` // days
	Compress   bool   `json:"compress"`

	EnableCaller     bool `json:"enable_caller"`
	EnableStacktrace bool `json:"enable_stacktrace"`
	EnableAccessLog  bool `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

type CacheConfig struct {
	RedisURL        string        `json:"redis_url"`
	RedisDB         int           `json:"redis_db"`
	RedisPrefix     string        `json:"redis_prefix"`
	CleanupInterval time.Duration `json:"cleanup_interval"`

	// WAITAOF acknowledgement required before an allocation is returned;
	// 0/0 returns once EXEC applied the write in memory
	WaitAOFLocal    int           `json:"wait_aof_local"`
	WaitAOFReplicas int           `json:"wait_aof_replicas"`
	WaitAOFTimeout  time.Duration `json:"wait_aof_timeout"`
}

type MongoConfig struct {
	URL         string        `json:"url"`
	Database    string        `json:"database"`
	Collection  string        `json:"collection"`
	DialTimeout time.Duration `json:"dial_timeout"`
}

type SequenceConfig struct {
	Backend            string        `json:"backend"` // database, redis, mongo, memory
	OperationTimeout   time.Duration `json:"operation_timeout"`
	AllowedCounters    []string      `json:"allowed_counters"`
	OrderNumberCounter string        `json:"order_number_counter"`
	OrderNumberPrefix  string        `json:"order_number_prefix"`
	OrderNumberPadding int           `json:"order_number_padding"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(".env"); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", DriverPostgres),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "postgres"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			SQLitePath:      getEnvString("DB_SQLITE_PATH", "sequencer.db"),
			AutoMigrate:     getEnvBool("DB_AUTO_MIGRATE", false),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 100),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 64*1024),
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}),
			AllowedMethods:   getEnvStringSlice("CORS_ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"}),
			AllowedHeaders:   getEnvStringSlice("CORS_ALLOWED_HEADERS", []string{"Origin", "Content-Type", "Accept", "X-Request-ID", "X-API-Key"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 2000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
			RequireAPIKey:    getEnvBool("REQUIRE_API_KEY", true),
			APIKeyHeader:     getEnvString("API_KEY_HEADER", "X-API-Key"),
			AllowedAPIKeys:   getEnvStringSlice("ALLOWED_API_KEYS", []string{}),
			IPBlacklist:      getEnvStringSlice("IP_BLACKLIST", []string{}),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/sequencer/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", false),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			RedisURL:        getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:         getEnvInt("CACHE_REDIS_DB", 0),
			RedisPrefix:     getEnvString("CACHE_REDIS_PREFIX", "storefront:"),
			CleanupInterval: getEnvDuration("CACHE_CLEANUP_INTERVAL", 10*time.Minute),
			WaitAOFLocal:    getEnvInt("CACHE_REDIS_WAITAOF_LOCAL", 1),
			WaitAOFReplicas: getEnvInt("CACHE_REDIS_WAITAOF_REPLICAS", 0),
			WaitAOFTimeout:  getEnvDuration("CACHE_REDIS_WAITAOF_TIMEOUT", time.Second),
		},
		Mongo: MongoConfig{
			URL:         getEnvString("MONGO_URL", "mongodb://localhost:27017"),
			Database:    getEnvString("MONGO_DATABASE", "storefront"),
			Collection:  getEnvString("MONGO_COLLECTION", "counters"),
			DialTimeout: getEnvDuration("MONGO_DIAL_TIMEOUT", 10*time.Second),
		},
		Sequence: SequenceConfig{
			Backend:            getEnvString("SEQUENCE_BACKEND", BackendDatabase),
			OperationTimeout:   getEnvDuration("SEQUENCE_OPERATION_TIMEOUT", 5*time.Second),
			AllowedCounters:    getEnvStringSlice("SEQUENCE_ALLOWED_COUNTERS", []string{}),
			OrderNumberCounter: getEnvString("ORDER_NUMBER_COUNTER", "orderNumber"),
			OrderNumberPrefix:  getEnvString("ORDER_NUMBER_PREFIX", "ORD-"),
			OrderNumberPadding: getEnvInt("ORDER_NUMBER_PADDING", 6),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from the given file if it exists.
// Variables already present in the environment win.
func loadEnvFile(path string) error {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errs []string

	// Validate sequence configuration
	validBackends := []string{BackendDatabase, BackendRedis, BackendMongo, BackendMemory}
	if !slices.Contains(validBackends, cfg.Sequence.Backend) {
		errs = append(errs, fmt.Sprintf("SEQUENCE_BACKEND must be one of: %v", validBackends))
	}
	if cfg.Sequence.OperationTimeout <= 0 {
		errs = append(errs, "SEQUENCE_OPERATION_TIMEOUT must be positive")
	}
	if cfg.Sequence.OrderNumberCounter == "" {
		errs = append(errs, "ORDER_NUMBER_COUNTER is required")
	}
	if len(cfg.Sequence.AllowedCounters) > 0 && !slices.Contains(cfg.Sequence.AllowedCounters, cfg.Sequence.OrderNumberCounter) {
		errs = append(errs, "ORDER_NUMBER_COUNTER must be listed in SEQUENCE_ALLOWED_COUNTERS")
	}
	if cfg.Sequence.OrderNumberPadding < 0 || cfg.Sequence.OrderNumberPadding > 20 {
		errs = append(errs, "ORDER_NUMBER_PADDING must be between 0 and 20")
	}

	// Validate database configuration when it backs the sequences
	if cfg.Sequence.Backend == BackendDatabase {
		switch cfg.Database.Driver {
		case DriverPostgres:
			if cfg.Database.Host == "" {
				errs = append(errs, "DB_HOST is required")
			}
			if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
				errs = append(errs, "DB_PORT must be between 1 and 65535")
			}
			if cfg.Database.Name == "" {
				errs = append(errs, "DB_NAME is required")
			}
			if cfg.Database.User == "" {
				errs = append(errs, "DB_USER is required")
			}
			if cfg.Database.Password == "" {
				errs = append(errs, "DB_PASSWORD is required")
			}
		case DriverSQLite:
			if cfg.Database.SQLitePath == "" {
				errs = append(errs, "DB_SQLITE_PATH is required for the sqlite driver")
			}
		default:
			errs = append(errs, fmt.Sprintf("DB_DRIVER must be one of: %v", []string{DriverPostgres, DriverSQLite}))
		}
	}

	// Validate redis configuration when it backs the sequences
	if cfg.Sequence.Backend == BackendRedis {
		if cfg.Cache.RedisURL == "" {
			errs = append(errs, "CACHE_REDIS_URL is required for the redis sequence backend")
		}
		if cfg.Cache.WaitAOFLocal < 0 || cfg.Cache.WaitAOFLocal > 1 {
			errs = append(errs, "CACHE_REDIS_WAITAOF_LOCAL must be 0 or 1")
		}
		if cfg.Cache.WaitAOFReplicas < 0 {
			errs = append(errs, "CACHE_REDIS_WAITAOF_REPLICAS must not be negative")
		}
		if (cfg.Cache.WaitAOFLocal > 0 || cfg.Cache.WaitAOFReplicas > 0) && cfg.Cache.WaitAOFTimeout <= 0 {
			errs = append(errs, "CACHE_REDIS_WAITAOF_TIMEOUT must be positive when WAITAOF is required")
		}
	}

	// Validate mongo configuration when it backs the sequences
	if cfg.Sequence.Backend == BackendMongo {
		if cfg.Mongo.URL == "" {
			errs = append(errs, "MONGO_URL is required for the mongo sequence backend")
		}
		if cfg.Mongo.Database == "" {
			errs = append(errs, "MONGO_DATABASE is required for the mongo sequence backend")
		}
		if cfg.Mongo.Collection == "" {
			errs = append(errs, "MONGO_COLLECTION is required for the mongo sequence backend")
		}
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errs = append(errs, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errs = append(errs, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errs = append(errs, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate security configuration
	if cfg.Security.RequireAPIKey && len(cfg.Security.AllowedAPIKeys) == 0 {
		errs = append(errs, "ALLOWED_API_KEYS is required when REQUIRE_API_KEY is enabled")
	}
	if cfg.Security.GlobalRateLimit <= 0 {
		errs = append(errs, "GLOBAL_RATE_LIMIT must be positive")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errs = append(errs, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	validOutputs := []string{"stdout", "file", "both"}
	if !slices.Contains(validOutputs, cfg.Logging.Output) {
		errs = append(errs, fmt.Sprintf("LOG_OUTPUT must be one of: %v", validOutputs))
	}
	if cfg.Logging.Output != "stdout" && cfg.Logging.FilePath == "" {
		errs = append(errs, "LOG_FILE_PATH is required when logging to a file")
	}

	// Return validation errors if any
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return nil
}
