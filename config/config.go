package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env/v2"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix scopes the environment variables read by Load, e.g.
// HTTPRETRY_RETRY_MAXATTEMPTS=5 sets retry.maxattempts.
const EnvPrefix = "HTTPRETRY_"

// Load loads configuration from multiple sources with priority:
// 1. Environment variables (highest priority)
// 2. config.yaml and config.<app.env>.yaml, both optional
// 3. Default values (lowest priority)
func Load() (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if err := loadOptionalFile(k, "config.yaml"); err != nil {
			return err
		}
		if env := k.String("app.env"); env != "" {
			return loadOptionalFile(k, fmt.Sprintf("config.%s.yaml", env))
		}
		return nil
	})
}

// LoadFile loads configuration from a single YAML file on top of the defaults.
// Unlike Load, a missing file is an error.
func LoadFile(path string) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
		return nil
	})
}

// LoadBytes loads configuration from in-memory YAML on top of the defaults.
func LoadBytes(data []byte) (*Config, error) {
	return load(func(k *koanf.Koanf) error {
		if err := k.Load(rawbytes.Provider(data), yaml.Parser()); err != nil {
			return fmt.Errorf("failed to parse yaml: %w", err)
		}
		return nil
	})
}

func load(sources func(*koanf.Koanf) error) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if err := sources(k); err != nil {
		return nil, err
	}

	if err := k.Load(env.Provider(".", env.Opt{
		Prefix: EnvPrefix,
		TransformFunc: func(key, value string) (string, any) {
			key = strings.TrimPrefix(key, EnvPrefix)
			// Convert UPPER_CASE to lower.case for koanf
			return strings.ReplaceAll(strings.ToLower(key), "_", "."), value
		},
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.k = k

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func loadOptionalFile(k *koanf.Koanf, path string) error {
	err := k.Load(file.Provider(path), yaml.Parser())
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("failed to load %s: %w", path, err)
}

func loadDefaults(k *koanf.Koanf) error {
	defaults := map[string]any{
		"app.name":    "httpretry-client",
		"app.version": "v1.0.0",
		"app.env":     EnvDevelopment,

		"log.level":  "info",
		"log.pretty": false,

		"http.timeout":            "30s",
		"http.logpayloads":        false,
		"http.maxpayloadlogbytes": 1024,
		"http.traceidheader":      "X-Request-ID",
		"http.tracing":            false,

		"retry.maxattempts":           3,
		"retry.preservetimeoutbudget": false,
		"retry.backoff.strategy":      BackoffNone,
		"retry.backoff.base":          "100ms",
		"retry.ratelimit.enabled":     false,
		"retry.ratelimit.persecond":   10.0,
		"retry.ratelimit.burst":       20,

		"observability.enabled": false,
	}

	return k.Load(confmap.Provider(defaults, "."), nil)
}

// Unmarshal decodes the section at path into out using mapstructure tags.
// Packages that own their configuration structs (observability) load through it.
func (c *Config) Unmarshal(path string, out any) error {
	if c.k == nil {
		return fmt.Errorf("config %s: %w", path, ErrNotConfigured)
	}
	if err := c.k.UnmarshalWithConf(path, out, koanf.UnmarshalConf{Tag: "mapstructure"}); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

// Exists reports whether a configuration key has been set by any source.
func (c *Config) Exists(path string) bool {
	return c.k != nil && c.k.Exists(path)
}
