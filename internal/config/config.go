// Package config loads gvmssa's configuration from an optional TOML file
// and GVMSSA_-prefixed environment variable overrides, in that order.
package config

import (
	"os"
	"strconv"

	"github.com/BurntSushi/toml"
)

// Config holds every knob the CLI and compile pool read. Field names
// match their TOML keys case-insensitively, per BurntSushi/toml's
// convention.
type Config struct {
	Workers    int    `toml:"workers"`
	CacheBytes int    `toml:"cache_bytes"`
	LogLevel   string `toml:"log_level"`
	JSON       bool   `toml:"json"`
}

// Default returns the built-in baseline before any file or environment
// override is applied.
func Default() Config {
	return Config{
		Workers:    1,
		CacheBytes: 32 * 1024 * 1024,
		LogLevel:   "info",
		JSON:       false,
	}
}

// Load reads path (if non-empty) over Default(), then applies any
// GVMSSA_-prefixed environment variable on top. A missing path is not an
// error — the CLI only passes one in when --config was given.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v, ok := os.LookupEnv("GVMSSA_WORKERS"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Workers = n
		}
	}
	if v, ok := os.LookupEnv("GVMSSA_CACHE_BYTES"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheBytes = n
		}
	}
	if v, ok := os.LookupEnv("GVMSSA_LOG_LEVEL"); ok {
		cfg.LogLevel = v
	}
	if v, ok := os.LookupEnv("GVMSSA_JSON"); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.JSON = b
		}
	}
}
