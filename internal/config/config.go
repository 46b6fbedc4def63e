// Package config loads the service configuration from YAML with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	DefaultAddr         = ":8080"
	DefaultReadTimeout  = 15 * time.Second
	DefaultWriteTimeout = 15 * time.Second
	DefaultBackend      = "memory"
	DefaultSQLitePath   = "data/journal.db"
	DefaultBadgerPath   = "data/badger"
	DefaultRedisAddr    = "127.0.0.1:6379"
	DefaultPrecision    = 1
	DefaultBadgerGC     = "@every 5m"
	DefaultStatsRefresh = "@every 1m"
)

// Config is the full process configuration.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Storage     StorageConfig     `yaml:"storage"`
	Log         LogConfig         `yaml:"log"`
	Insights    InsightsConfig    `yaml:"insights"`
	Maintenance MaintenanceConfig `yaml:"maintenance"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Addr         string        `yaml:"addr" validate:"required"`
	ReadTimeout  time.Duration `yaml:"readTimeout" validate:"gte=0"`
	WriteTimeout time.Duration `yaml:"writeTimeout" validate:"gte=0"`
	CORSOrigins  string        `yaml:"corsOrigins"`
}

// StorageConfig selects the backend and carries its options.
type StorageConfig struct {
	Backend string       `yaml:"backend" validate:"oneof=memory sqlite badger redis"`
	SQLite  SQLiteConfig `yaml:"sqlite"`
	Badger  BadgerConfig `yaml:"badger"`
	Redis   RedisConfig  `yaml:"redis"`
}

// SQLiteConfig locates the database file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// BadgerConfig configures the badger key-value store.
type BadgerConfig struct {
	Path           string  `yaml:"path"`
	InMemory       bool    `yaml:"inMemory"`
	SyncWrites     bool    `yaml:"syncWrites"`
	GCDiscardRatio float64 `yaml:"gcDiscardRatio" validate:"gte=0,lt=1"`
}

// RedisConfig points at the Redis server.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db" validate:"gte=0"`
	Prefix   string `yaml:"prefix"`
}

// LogConfig sets the logger level and encoding.
type LogConfig struct {
	Level       string `yaml:"level" validate:"oneof=debug info warn error"`
	Development bool   `yaml:"development"`
}

// InsightsConfig tunes weekly aggregation output.
type InsightsConfig struct {
	// Timezone is an IANA zone name used for weekday bucketing. Empty keeps
	// the zone carried by each entry's timestamp.
	Timezone  string `yaml:"timezone"`
	Precision int    `yaml:"precision" validate:"gte=0,lte=6"`
}

// MaintenanceConfig holds cron specs for background jobs. An empty spec
// disables the job.
type MaintenanceConfig struct {
	BadgerGC     string `yaml:"badgerGC"`
	StatsRefresh string `yaml:"statsRefresh"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         DefaultAddr,
			ReadTimeout:  DefaultReadTimeout,
			WriteTimeout: DefaultWriteTimeout,
			CORSOrigins:  "*",
		},
		Storage: StorageConfig{
			Backend: DefaultBackend,
			SQLite:  SQLiteConfig{Path: DefaultSQLitePath},
			Badger:  BadgerConfig{Path: DefaultBadgerPath, SyncWrites: true, GCDiscardRatio: 0.5},
			Redis:   RedisConfig{Addr: DefaultRedisAddr, Prefix: "mj"},
		},
		Log:      LogConfig{Level: "info"},
		Insights: InsightsConfig{Precision: DefaultPrecision},
		Maintenance: MaintenanceConfig{
			BadgerGC:     DefaultBadgerGC,
			StatsRefresh: DefaultStatsRefresh,
		},
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// environment overrides and validates the result.
func Load(path string) (*Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an injectable environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := applyEnv(cfg, getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	if addr := getenv("LDS_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if addr := getenv("MOODJOURNAL_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if backend := getenv("MOODJOURNAL_STORAGE"); backend != "" {
		cfg.Storage.Backend = backend
	}
	if path := getenv("MOODJOURNAL_SQLITE_PATH"); path != "" {
		cfg.Storage.SQLite.Path = path
	}
	if path := getenv("MOODJOURNAL_BADGER_PATH"); path != "" {
		cfg.Storage.Badger.Path = path
	}
	if addr := getenv("MOODJOURNAL_REDIS_ADDR"); addr != "" {
		cfg.Storage.Redis.Addr = addr
	}
	if password := getenv("MOODJOURNAL_REDIS_PASSWORD"); password != "" {
		cfg.Storage.Redis.Password = password
	}
	if db := getenv("MOODJOURNAL_REDIS_DB"); db != "" {
		parsed, err := strconv.Atoi(db)
		if err != nil {
			return fmt.Errorf("MOODJOURNAL_REDIS_DB: %w", err)
		}
		cfg.Storage.Redis.DB = parsed
	}
	if level := getenv("MOODJOURNAL_LOG_LEVEL"); level != "" {
		cfg.Log.Level = level
	}
	if tz := getenv("MOODJOURNAL_TIMEZONE"); tz != "" {
		cfg.Insights.Timezone = tz
	}
	return nil
}

var validate = validator.New()

// Validate checks field constraints plus the backend-specific requirements.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	switch c.Storage.Backend {
	case "sqlite":
		if c.Storage.SQLite.Path == "" {
			return errors.New("invalid config: storage.sqlite.path is required")
		}
	case "badger":
		if !c.Storage.Badger.InMemory && c.Storage.Badger.Path == "" {
			return errors.New("invalid config: storage.badger.path is required unless inMemory")
		}
	case "redis":
		if c.Storage.Redis.Addr == "" {
			return errors.New("invalid config: storage.redis.addr is required")
		}
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Location resolves the insights timezone. A nil location means "use each
// timestamp's own zone".
func (c *Config) Location() (*time.Location, error) {
	if c.Insights.Timezone == "" {
		return nil, nil
	}
	loc, err := time.LoadLocation(c.Insights.Timezone)
	if err != nil {
		return nil, fmt.Errorf("insights.timezone: %w", err)
	}
	return loc, nil
}
