// Package config loads taggraph settings from built-in defaults, an optional
// TOML file and TAGGRAPH_* environment variables, in that order.
//
// Command-line flags are layered on top by the CLI; only flags the user
// actually set override the loaded values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	apperr "github.com/isia-imav/taggraph/pkg/errors"
	"github.com/isia-imav/taggraph/pkg/record"
)

// Default locations used by restructure when no paths are configured.
const (
	DefaultInput  = "csv/collezione.json"
	DefaultOutput = "data/collezione.json"
	DefaultAddr   = "127.0.0.1:8080"
	DefaultTTL    = "24h"
)

// Environment variable names.
const (
	EnvConfig         = "TAGGRAPH_CONFIG"
	EnvInput          = "TAGGRAPH_INPUT"
	EnvOutput         = "TAGGRAPH_OUTPUT"
	EnvFormat         = "TAGGRAPH_FORMAT"
	EnvNormalizeTags  = "TAGGRAPH_NORMALIZE_TAGS"
	EnvSkipDuplicates = "TAGGRAPH_SKIP_DUPLICATES"
	EnvASCII          = "TAGGRAPH_ASCII"
	EnvCacheDir       = "TAGGRAPH_CACHE_DIR"
	EnvRedisURL       = "TAGGRAPH_REDIS_URL"
	EnvAddr           = "TAGGRAPH_ADDR"
)

// Config holds every setting a build needs.
type Config struct {
	Input          string      `toml:"input"`
	Output         string      `toml:"output"`
	Format         string      `toml:"format"`
	NormalizeTags  bool        `toml:"normalize_tags"`
	SkipDuplicates bool        `toml:"skip_duplicates"`
	EscapeASCII    bool        `toml:"ascii"`
	Cache          CacheConfig `toml:"cache"`
	Serve          ServeConfig `toml:"serve"`
}

// CacheConfig selects and tunes the build cache.
type CacheConfig struct {
	Enabled  bool   `toml:"enabled"`
	Dir      string `toml:"dir"`
	RedisURL string `toml:"redis_url"`
	TTL      string `toml:"ttl"`
}

// ServeConfig configures the HTTP endpoint.
type ServeConfig struct {
	Addr string `toml:"addr"`
}

// Default returns the restructure defaults: trim-only tags and skipped
// duplicate titles.
func Default() Config {
	return Config{
		Input:          DefaultInput,
		Output:         DefaultOutput,
		SkipDuplicates: true,
		Cache:          CacheConfig{Enabled: true, TTL: DefaultTTL},
		Serve:          ServeConfig{Addr: DefaultAddr},
	}
}

// ConvertDefault returns the convert defaults: CSV input whatever the file
// name, normalized tags and counted duplicate rows.
func ConvertDefault() Config {
	cfg := Default()
	cfg.Format = record.FormatCSV
	cfg.NormalizeTags = true
	cfg.SkipDuplicates = false
	return cfg
}

// LookupFunc reads an environment variable. [os.LookupEnv] satisfies it.
type LookupFunc func(key string) (string, bool)

// Load overlays the TOML file at path (skipped when empty) and the
// environment onto base, then validates the result.
func Load(base Config, path string, lookup LookupFunc) (Config, error) {
	cfg := base
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if path == "" {
		path, _ = lookup(EnvConfig)
	}
	if path != "" {
		if err := LoadFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	if err := ApplyEnv(&cfg, lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFile decodes the TOML file at path into cfg. Keys absent from the file
// keep their current values; unknown keys are an error.
func LoadFile(cfg *Config, path string) error {
	if err := apperr.ValidatePath(path); err != nil {
		return err
	}
	md, err := toml.DecodeFile(path, cfg)
	if os.IsNotExist(err) {
		return apperr.New(apperr.ErrCodeFileNotFound, "config file not found at %s", path)
	}
	if err != nil {
		return apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "parse %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return apperr.New(apperr.ErrCodeInvalidConfig, "unknown keys in %s: %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides cfg with any TAGGRAPH_* variables that are set.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	strs := []struct {
		key string
		dst *string
	}{
		{EnvInput, &cfg.Input},
		{EnvOutput, &cfg.Output},
		{EnvFormat, &cfg.Format},
		{EnvCacheDir, &cfg.Cache.Dir},
		{EnvRedisURL, &cfg.Cache.RedisURL},
		{EnvAddr, &cfg.Serve.Addr},
	}
	for _, s := range strs {
		if v, ok := lookup(s.key); ok {
			*s.dst = v
		}
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{EnvNormalizeTags, &cfg.NormalizeTags},
		{EnvSkipDuplicates, &cfg.SkipDuplicates},
		{EnvASCII, &cfg.EscapeASCII},
	}
	for _, b := range bools {
		v, ok := lookup(b.key)
		if !ok || v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return apperr.New(apperr.ErrCodeInvalidConfig, "%s: %q is not a boolean", b.key, v)
		}
		*b.dst = parsed
	}
	return nil
}

// Validate checks field values that can be checked without touching disk.
func (c Config) Validate() error {
	switch c.Format {
	case "", "csv", "json":
	default:
		return apperr.New(apperr.ErrCodeInvalidFormat, "unsupported format %q (use csv or json)", c.Format)
	}
	if _, err := c.Cache.TTLDuration(); err != nil {
		return err
	}
	if c.Cache.RedisURL != "" {
		if err := apperr.ValidateRedisURL(c.Cache.RedisURL); err != nil {
			return err
		}
	}
	return nil
}

// TTLDuration parses TTL. An empty TTL means no expiration.
func (c CacheConfig) TTLDuration() (time.Duration, error) {
	if c.TTL == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.TTL)
	if err != nil {
		return 0, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "cache ttl")
	}
	if d < 0 {
		return 0, apperr.New(apperr.ErrCodeInvalidConfig, "cache ttl must not be negative")
	}
	return d, nil
}

// String renders the config as TOML.
func (c Config) String() string {
	var b strings.Builder
	if err := toml.NewEncoder(&b).Encode(c); err != nil {
		return fmt.Sprintf("%+v", c)
	}
	return b.String()
}
