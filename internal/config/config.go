// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL      string `yaml:"url"`
	MaxConns int32  `yaml:"max_conns"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
}

type AccrualConfig struct {
	// Timezone is the single IANA zone the ledger day is computed in.
	// The original product derived "today" from each device's clock;
	// here every caller sees the same boundary.
	Timezone  string `yaml:"timezone"`
	SweepCron string `yaml:"sweep_cron"` // cron expression for the nightly sweep
	Workers   int    `yaml:"workers"`    // sweep fan-out
	BatchSize int    `yaml:"batch_size"` // users per sweep query page
}

type AdminConfig struct {
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type Config struct {
	HTTP     HTTPConfig     `yaml:"http"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Accrual  AccrualConfig  `yaml:"accrual"`
	Admin    AdminConfig    `yaml:"admin"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()

	// Minimal validation
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Admin.APIKey == "" {
		return nil, errors.New("admin.api_key is required")
	}
	if cfg.Admin.JWTSecret == "" {
		return nil, errors.New("admin.jwt_secret is required")
	}
	if _, err := time.LoadLocation(cfg.Accrual.Timezone); err != nil {
		return nil, fmt.Errorf("accrual.timezone: %w", err)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Database.MaxConns <= 0 {
		cfg.Database.MaxConns = 10
	}
	if cfg.Redis.LockTTL <= 0 {
		cfg.Redis.LockTTL = 10 * time.Minute
	}
	if cfg.Accrual.Timezone == "" {
		cfg.Accrual.Timezone = "UTC"
	}
	if cfg.Accrual.SweepCron == "" {
		cfg.Accrual.SweepCron = "5 0 * * *" // shortly past midnight ledger time
	}
	if cfg.Accrual.Workers <= 0 {
		cfg.Accrual.Workers = 8
	}
	if cfg.Accrual.BatchSize <= 0 {
		cfg.Accrual.BatchSize = 500
	}
	if cfg.Admin.SessionTTL <= 0 {
		cfg.Admin.SessionTTL = 30 * time.Minute
	}
}

// Location resolves the configured accrual timezone. LoadConfig has
// already validated it, so errors only happen on a hand-built Config.
func (cfg *Config) Location() (*time.Location, error) {
	return time.LoadLocation(cfg.Accrual.Timezone)
}
