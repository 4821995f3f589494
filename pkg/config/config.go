package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

const Version = "0.3.0"

// Config holds application configuration
type Config struct {
	// Storage configuration
	StoreType    string `yaml:"store_type"` // "sqlite" or "postgres"
	DBPath       string `yaml:"db_path"`    // SQLite database path
	PostgresDSN  string `yaml:"postgres_dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	BusyTimeout  int    `yaml:"busy_timeout"` // milliseconds, SQLite only

	// Reconciliation
	ObservationBatch int  `yaml:"observation_batch"`
	ParallelSiblings bool `yaml:"parallel_siblings"`

	// Cache configuration
	CacheType string `yaml:"cache_type"` // "memory", "redis" or "none"
	CacheTTL  int    `yaml:"cache_ttl"`  // seconds
	CacheSize int    `yaml:"cache_size"`
	RedisAddr string `yaml:"redis_addr"`

	// Logging
	LogLevel string `yaml:"log_level"`
	Debug    bool   `yaml:"debug"`
}

// Default returns the default configuration
func Default() *Config {
	return &Config{
		StoreType:        "sqlite",
		DBPath:           "fieldsync.db",
		MaxOpenConns:     8,
		BusyTimeout:      5000,
		ObservationBatch: 500,
		ParallelSiblings: true,
		CacheType:        "memory",
		CacheTTL:         300,
		CacheSize:        1024,
		RedisAddr:        "localhost:6379",
		LogLevel:         "info",
	}
}

// Load returns the defaults overlaid with the YAML file at path (if any) and
// then the environment
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadFromFile(path, cfg); err != nil {
			return nil, err
		}
	}
	LoadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// LoadFromFile overlays the YAML file at path onto cfg. Keys missing from
// the file keep their current values.
func LoadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv(cfg *Config) {
	if val := os.Getenv("STORE_TYPE"); val != "" {
		cfg.StoreType = val
	}
	if val := os.Getenv("DB_PATH"); val != "" {
		cfg.DBPath = val
	}
	if val := os.Getenv("POSTGRES_DSN"); val != "" {
		cfg.PostgresDSN = val
	}
	if val := os.Getenv("MAX_OPEN_CONNS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.MaxOpenConns = n
		}
	}
	if val := os.Getenv("BUSY_TIMEOUT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.BusyTimeout = n
		}
	}
	if val := os.Getenv("OBSERVATION_BATCH"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			cfg.ObservationBatch = n
		}
	}
	if val := os.Getenv("PARALLEL_SIBLINGS"); val != "" {
		cfg.ParallelSiblings = parseBool(val)
	}
	if val := os.Getenv("CACHE_TYPE"); val != "" {
		cfg.CacheType = val
	}
	if val := os.Getenv("CACHE_TTL"); val != "" {
		if ttl, err := strconv.Atoi(val); err == nil {
			cfg.CacheTTL = ttl
		}
	}
	if val := os.Getenv("CACHE_SIZE"); val != "" {
		if size, err := strconv.Atoi(val); err == nil {
			cfg.CacheSize = size
		}
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		cfg.RedisAddr = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		cfg.LogLevel = val
	}
	if val := os.Getenv("DEBUG"); val != "" {
		cfg.Debug = parseBool(val)
	}
}

// Validate reports settings that cannot work together
func (c *Config) Validate() error {
	switch c.StoreType {
	case "sqlite":
		if c.DBPath == "" {
			return fmt.Errorf("db_path is required for sqlite")
		}
	case "postgres":
		if c.PostgresDSN == "" {
			return fmt.Errorf("postgres_dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown store_type %q", c.StoreType)
	}

	switch c.CacheType {
	case "memory", "redis", "none":
	default:
		return fmt.Errorf("unknown cache_type %q", c.CacheType)
	}

	if c.ObservationBatch < 1 {
		return fmt.Errorf("observation_batch must be positive, got %d", c.ObservationBatch)
	}
	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Level returns the zerolog level; Debug forces debug
func (c *Config) Level() zerolog.Level {
	if c.Debug {
		return zerolog.DebugLevel
	}
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		return zerolog.InfoLevel
	}
	return level
}

// CacheDuration returns CacheTTL as a duration
func (c *Config) CacheDuration() time.Duration {
	return time.Duration(c.CacheTTL) * time.Second
}

// StoreConfig returns the settings map the storage factory expects
func (c *Config) StoreConfig(logger zerolog.Logger) map[string]interface{} {
	cfg := map[string]interface{}{
		"logger":         logger,
		"max_open_conns": c.MaxOpenConns,
	}
	switch c.StoreType {
	case "postgres":
		cfg["dsn"] = c.PostgresDSN
	default:
		cfg["db_path"] = c.DBPath
		cfg["busy_timeout"] = c.BusyTimeout
	}
	return cfg
}

func parseBool(val string) bool {
	val = strings.ToLower(val)
	return val == "true" || val == "1" || val == "yes"
}
