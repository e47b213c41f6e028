// Package config loads Quarry settings from a YAML file and QUARRY_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUARRY_STORE_REDIS_ADDR.
const EnvPrefix = "QUARRY"

// DefaultFile is read when Load gets an empty path and the file exists.
const DefaultFile = "quarry.yaml"

// Config is the full application configuration.
type Config struct {
	LogLevel       string           `mapstructure:"log_level" yaml:"log_level"`
	LogFormat      string           `mapstructure:"log_format" yaml:"log_format"`
	StreamDelay    time.Duration    `mapstructure:"stream_delay" yaml:"stream_delay"`
	SubsetSampling bool             `mapstructure:"subset_sampling" yaml:"subset_sampling"`
	Sampling       SamplingConfig   `mapstructure:"sampling" yaml:"sampling"`
	Completion     CompletionConfig `mapstructure:"completion" yaml:"completion"`
	Store          StoreConfig      `mapstructure:"store" yaml:"store"`
	HTTP           HTTPConfig       `mapstructure:"http" yaml:"http"`
	Datasets       DatasetsConfig   `mapstructure:"datasets" yaml:"datasets"`
}

// SamplingConfig configures the sampling service client.
type SamplingConfig struct {
	Enabled  bool          `mapstructure:"enabled" yaml:"enabled"`
	URL      string        `mapstructure:"url" yaml:"url"`
	Count    int           `mapstructure:"count" yaml:"count"`
	TaskType string        `mapstructure:"task_type" yaml:"task_type"`
	ApplyLog bool          `mapstructure:"apply_log" yaml:"apply_log"`
	Timeout  time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// CompletionConfig configures the conversational fallback. An empty URL disables it.
type CompletionConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig selects the session store.
type StoreConfig struct {
	Backend string      `mapstructure:"backend" yaml:"backend"`
	Dir     string      `mapstructure:"dir" yaml:"dir"`
	Redis   RedisConfig `mapstructure:"redis" yaml:"redis"`

	// EncryptionKey is a base64 AES-256 key. When set, sessions are sealed at rest.
	EncryptionKey string `mapstructure:"encryption_key" yaml:"encryption_key,omitempty"`
	// FallbackKeys still decrypt sessions sealed before a key rotation.
	FallbackKeys []string `mapstructure:"fallback_keys" yaml:"fallback_keys,omitempty"`
}

// RedisConfig configures the Redis store and its session lock.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr" yaml:"addr"`
	Password string        `mapstructure:"password" yaml:"password"`
	DB       int           `mapstructure:"db" yaml:"db"`
	Prefix   string        `mapstructure:"prefix" yaml:"prefix"`
	TTL      time.Duration `mapstructure:"ttl" yaml:"ttl"`
	LockTTL  time.Duration `mapstructure:"lock_ttl" yaml:"lock_ttl"`
}

// HTTPConfig configures `quarry serve`.
type HTTPConfig struct {
	Port     int  `mapstructure:"port" yaml:"port"`
	Metrics  bool `mapstructure:"metrics" yaml:"metrics"`
	Validate bool `mapstructure:"validate" yaml:"validate"`
}

// DatasetsConfig bounds the ingest sources that serve and mcp clients may name.
type DatasetsConfig struct {
	// Root is the only directory local sources are read from.
	Root string `mapstructure:"root" yaml:"root"`
	// AllowedHosts lists hosts (or host:port) remote sources may be fetched from.
	// Empty disables remote sources.
	AllowedHosts []string `mapstructure:"allowed_hosts" yaml:"allowed_hosts,omitempty"`
}

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

func defaults() map[string]any {
	return map[string]any{
		"log_level":       "info",
		"log_format":      "text",
		"stream_delay":    "15ms",
		"subset_sampling": false,
		"sampling": map[string]any{
			"enabled":   true,
			"url":       "http://127.0.0.1:8000/api/get-samples/",
			"count":     5,
			"task_type": "regression",
			"apply_log": false,
			"timeout":   "30s",
		},
		"completion": map[string]any{
			"url":     "",
			"timeout": "30s",
		},
		"store": map[string]any{
			"backend":        BackendFile,
			"dir":            ".quarry/sessions",
			"encryption_key": "",
			"fallback_keys":  []any{},
			"redis": map[string]any{
				"addr":     "localhost:6379",
				"password": "",
				"db":       0,
				"prefix":   "quarry:session:",
				"ttl":      "0s",
				"lock_ttl": "30s",
			},
		},
		"http": map[string]any{
			"port":     8080,
			"metrics":  true,
			"validate": true,
		},
		"datasets": map[string]any{
			"root":          ".",
			"allowed_hosts": []any{},
		},
	}
}

// Default returns the built-in configuration.
func Default() Config {
	cfg, err := decode(defaults())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load merges, in increasing priority, the defaults, the YAML file at path and the
// environment. An empty path reads DefaultFile when it exists.
func Load(path string) (Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (Config, error) {
	raw := defaults()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		var file map[string]any
		if err := yaml.Unmarshal(data, &file); err != nil {
			return Config{}, fmt.Errorf("failed to parse %s: %w", path, err)
		}
		merge(raw, file)
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	applyEnv(raw, []string{EnvPrefix}, lookup)

	cfg, err := decode(raw)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// merge copies src into dst, descending into nested maps.
func merge(dst, src map[string]any) {
	for k, v := range src {
		if sub, ok := v.(map[string]any); ok {
			if existing, ok := dst[k].(map[string]any); ok {
				merge(existing, sub)
				continue
			}
		}
		dst[k] = v
	}
}

// applyEnv overrides every known key from PREFIX_SECTION_KEY variables.
func applyEnv(raw map[string]any, path []string, lookup func(string) (string, bool)) {
	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		next := append(append([]string{}, path...), strings.ToUpper(k))
		if sub, ok := raw[k].(map[string]any); ok {
			applyEnv(sub, next, lookup)
			continue
		}
		if val, ok := lookup(strings.Join(next, "_")); ok {
			raw[k] = val
		}
	}
}

func decode(raw map[string]any) (Config, error) {
	var cfg Config
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		Result:           &cfg,
	})
	if err != nil {
		return Config{}, err
	}
	if err := decoder.Decode(raw); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks values that decoding alone cannot.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendFile, BackendRedis:
	default:
		return fmt.Errorf("unknown store backend %q (want memory, file or redis)", c.Store.Backend)
	}
	if c.Sampling.Count <= 0 {
		return fmt.Errorf("sampling.count must be positive, got %d", c.Sampling.Count)
	}
	if c.StreamDelay < 0 {
		return fmt.Errorf("stream_delay must not be negative")
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port out of range: %d", c.HTTP.Port)
	}
	return nil
}

// YAML renders the configuration as a config file.
func (c Config) YAML() ([]byte, error) {
	return yaml.Marshal(c)
}
