package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Loader hydrates the configuration with env > file > default precedence.
type Loader struct {
	envPrefix string
	files     []string
}

// NewLoader creates a loader. Empty file paths are skipped.
func NewLoader(envPrefix string, files ...string) *Loader {
	return &Loader{
		envPrefix: envPrefix,
		files:     files,
	}
}

// canonicalKeys restores the camelCase of keys that arrive lower-cased
// from the environment.
var canonicalKeys = map[string]string{
	"api.baseurl":             "api.baseURL",
	"dashboard.incidentlimit": "dashboard.incidentLimit",
	"dashboard.fallbackfile":  "dashboard.fallbackFile",
}

// Load assembles and validates the effective configuration.
func (l *Loader) Load(ctx context.Context) (Config, error) {
	k := koanf.New(".")

	if err := k.Load(confmap.Provider(structToMap(DefaultConfig()), "."), nil); err != nil {
		return Config{}, fmt.Errorf("config: load defaults: %w", err)
	}

	for _, path := range l.files {
		if path == "" {
			continue
		}
		select {
		case <-ctx.Done():
			return Config{}, ctx.Err()
		default:
		}
		if _, err := os.Stat(path); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("config: file %s not found", path)
			}
			return Config{}, fmt.Errorf("config: stat %s: %w", path, err)
		}
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("config: load file %s: %w", path, err)
		}
	}

	if l.envPrefix != "" {
		transform := func(s string) string {
			// Double underscores signal a nested path (DASHBOARD__MODE -> dashboard.mode).
			key := strings.TrimPrefix(s, l.envPrefix+"_")
			key = strings.ToLower(strings.ReplaceAll(key, "__", "."))
			key = strings.ReplaceAll(key, "_", "")
			if mapped, ok := canonicalKeys[key]; ok {
				return mapped
			}
			return key
		}
		if err := k.Load(env.Provider(l.envPrefix+"_", ".", transform), nil); err != nil {
			return Config{}, fmt.Errorf("config: load env: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// structToMap converts a Config into a map for the koanf confmap provider.
func structToMap(cfg Config) map[string]any {
	return map[string]any{
		"api": map[string]any{
			"baseURL": cfg.API.BaseURL,
			"timeout": cfg.API.Timeout.String(),
		},
		"dashboard": map[string]any{
			"mode":          cfg.Dashboard.Mode,
			"interval":      cfg.Dashboard.Interval.String(),
			"incidentLimit": cfg.Dashboard.IncidentLimit,
			"days":          cfg.Dashboard.Days,
			"fallbackFile":  cfg.Dashboard.FallbackFile,
		},
		"cache": map[string]any{
			"version":  cfg.Cache.Version,
			"manifest": cfg.Cache.Manifest,
			"backend":  cfg.Cache.Backend,
			"redis": map[string]any{
				"address":  cfg.Cache.Redis.Address,
				"password": cfg.Cache.Redis.Password,
				"db":       cfg.Cache.Redis.DB,
			},
		},
		"logging": map[string]any{
			"level":  cfg.Logging.Level,
			"pretty": cfg.Logging.Pretty,
		},
		"proxy": map[string]any{
			"listen":   cfg.Proxy.Listen,
			"upstream": cfg.Proxy.Upstream,
		},
	}
}
