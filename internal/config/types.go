// Package config loads the tripwire configuration from defaults, an optional
// YAML file and TRIPWIRE_ environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Sternrassler/tripwire-client/pkg/dashboard"
	"github.com/Sternrassler/tripwire-client/pkg/logging"
)

// EnvPrefix is the prefix of environment overrides.
const EnvPrefix = "TRIPWIRE"

// Cache backends.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
)

// Config is the effective configuration.
type Config struct {
	API       APIConfig       `koanf:"api"`
	Dashboard DashboardConfig `koanf:"dashboard"`
	Cache     CacheConfig     `koanf:"cache"`
	Logging   LoggingConfig   `koanf:"logging"`
	Proxy     ProxyConfig     `koanf:"proxy"`
}

// APIConfig points the client at the incidents API.
type APIConfig struct {
	BaseURL string        `koanf:"baseURL"`
	Timeout time.Duration `koanf:"timeout"`
}

// DashboardConfig drives the refresh controller.
type DashboardConfig struct {
	Mode          string        `koanf:"mode"`
	Interval      time.Duration `koanf:"interval"`
	IncidentLimit int           `koanf:"incidentLimit"`
	Days          int           `koanf:"days"`
	// FallbackFile replaces the built-in fallback dataset when set.
	FallbackFile string `koanf:"fallbackFile"`
}

// CacheConfig configures the offline response cache.
type CacheConfig struct {
	Version  string           `koanf:"version"`
	Manifest []string         `koanf:"manifest"`
	Backend  string           `koanf:"backend"`
	Redis    RedisCacheConfig `koanf:"redis"`
}

// RedisCacheConfig is used when Backend is "redis".
type RedisCacheConfig struct {
	Address  string `koanf:"address"`
	Password string `koanf:"password"`
	DB       int    `koanf:"db"`
}

// LoggingConfig selects level and output format.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

// ProxyConfig configures the offline proxy.
type ProxyConfig struct {
	Listen   string `koanf:"listen"`
	Upstream string `koanf:"upstream"`
}

// DefaultConfig returns the built-in defaults.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000/api",
			Timeout: 10 * time.Second,
		},
		Dashboard: DashboardConfig{
			Mode:          string(dashboard.ModeSnapshot),
			Interval:      dashboard.DefaultInterval,
			IncidentLimit: dashboard.DefaultIncidentLimit,
			Days:          dashboard.DefaultDays,
		},
		Cache: CacheConfig{
			Version:  "cloudtripwire-v1",
			Manifest: []string{"/", "/index.html", "/src/main.jsx", "/src/App.jsx"},
			Backend:  BackendMemory,
			Redis: RedisCacheConfig{
				Address: "localhost:6379",
			},
		},
		Logging: LoggingConfig{
			Level: string(logging.LevelInfo),
		},
		Proxy: ProxyConfig{
			Listen:   ":8080",
			Upstream: "http://127.0.0.1:5173",
		},
	}
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error

	if err := validateURL("api.baseURL", c.API.BaseURL); err != nil {
		errs = append(errs, err)
	}
	if c.API.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("api.timeout must be positive (got %s)", c.API.Timeout))
	}

	if _, err := dashboard.ParseMode(c.Dashboard.Mode); err != nil {
		errs = append(errs, fmt.Errorf("dashboard.mode: %w", err))
	}
	if c.Dashboard.Interval <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.interval must be positive (got %s)", c.Dashboard.Interval))
	}
	if c.Dashboard.IncidentLimit <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.incidentLimit must be positive (got %d)", c.Dashboard.IncidentLimit))
	}
	if c.Dashboard.Days <= 0 {
		errs = append(errs, fmt.Errorf("dashboard.days must be positive (got %d)", c.Dashboard.Days))
	}

	if strings.TrimSpace(c.Cache.Version) == "" {
		errs = append(errs, errors.New("cache.version is required"))
	}
	switch strings.ToLower(c.Cache.Backend) {
	case BackendMemory:
	case BackendRedis:
		if c.Cache.Redis.Address == "" {
			errs = append(errs, errors.New("cache.redis.address is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("cache.backend %q is not supported (want %q or %q)", c.Cache.Backend, BackendMemory, BackendRedis))
	}

	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, fmt.Errorf("logging.level: %w", err))
	}

	if err := validateURL("proxy.upstream", c.Proxy.Upstream); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// DashboardMode returns the parsed dashboard mode. Call after Validate.
func (c Config) DashboardMode() dashboard.Mode {
	mode, err := dashboard.ParseMode(c.Dashboard.Mode)
	if err != nil {
		return dashboard.ModeSnapshot
	}
	return mode
}

func validateURL(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL (got %q)", key, raw)
	}
	return nil
}
