// Package config loads process configuration from environment variables,
// an optional config.yaml, and built-in defaults, the way cmd/bd/config.go
// layers viper over its own config file in the teacher codebase.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is every tunable the server needs at startup (spec.md §5, §6).
type Config struct {
	ListenAddr string

	StoreDSN        string
	StoreMaxConns   int32
	StoreIdleTime   time.Duration
	StoreAcquireTO  time.Duration

	NATSURL string

	CORSOrigins []string

	RateLimitWindow   time.Duration
	RateLimitRequests int
}

// Load reads DEP_* environment variables (and, if present, a config.yaml
// in the current directory or at configPath) over the defaults below.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	v.SetConfigType("yaml")
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !notFound && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{
		ListenAddr:        v.GetString("listen_addr"),
		StoreDSN:          v.GetString("store_dsn"),
		StoreMaxConns:     int32(v.GetInt("store_max_conns")),
		StoreIdleTime:     v.GetDuration("store_idle_time"),
		StoreAcquireTO:    v.GetDuration("store_acquire_timeout"),
		NATSURL:           v.GetString("nats_url"),
		CORSOrigins:       v.GetStringSlice("cors_origins"),
		RateLimitWindow:   v.GetDuration("rate_limit_window"),
		RateLimitRequests: v.GetInt("rate_limit_requests"),
	}
	return cfg, cfg.validate()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":3005")
	v.SetDefault("store_dsn", "postgres://localhost:5432/dependency_service?sslmode=disable")
	v.SetDefault("store_max_conns", 20)
	v.SetDefault("store_idle_time", 30*time.Second)
	v.SetDefault("store_acquire_timeout", 2*time.Second)
	v.SetDefault("nats_url", "nats://localhost:4222")
	v.SetDefault("cors_origins", []string{"*"})
	v.SetDefault("rate_limit_window", 15*time.Minute)
	v.SetDefault("rate_limit_requests", 1000)
}

func (c *Config) validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.StoreDSN == "" {
		return fmt.Errorf("store_dsn must not be empty")
	}
	if c.RateLimitRequests <= 0 {
		return fmt.Errorf("rate_limit_requests must be positive")
	}
	return nil
}
