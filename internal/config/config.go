// Package config loads and validates the tool configuration.
package config

import (
	"encoding/hex"
	"fmt"
	"runtime"

	"github.com/spf13/viper"

	"github.com/matheusfillipe/ps3toolbox/internal/keys"
)

// Config is the full tool configuration.
type Config struct {
	// DefaultMode is the console mode used when a command does not
	// specify one.
	DefaultMode string `mapstructure:"default_mode"`
	// Workers bounds concurrent file jobs in batch mode.
	Workers int `mapstructure:"workers"`
	// SegmentWorkers bounds per-segment parallelism within one file.
	// 0 picks a value from the CPU count.
	SegmentWorkers int `mapstructure:"segment_workers"`

	Log  LogConfig  `mapstructure:"log"`
	Keys KeysConfig `mapstructure:"keys"`
}

// LogConfig controls structured log output.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `mapstructure:"level"`
	// File, when set, sends logs to a rotating file instead of stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
}

// KeysConfig optionally overrides the built-in derivation table with
// hex-encoded 16-byte constants. All four must be set together.
type KeysConfig struct {
	CEXKey string `mapstructure:"cex_key"`
	CEXIV  string `mapstructure:"cex_iv"`
	DEXKey string `mapstructure:"dex_key"`
	DEXIV  string `mapstructure:"dex_iv"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		DefaultMode: string(keys.ModeCEX),
		Workers:     2,
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  20,
			MaxBackups: 3,
		},
	}
}

// Load reads the YAML config at path, or returns defaults when path is
// empty.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field ranges and cross-field consistency.
func (c *Config) Validate() error {
	if _, err := keys.ParseMode(c.DefaultMode); err != nil {
		return fmt.Errorf("default_mode: %w", err)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be >= 1, got %d", c.Workers)
	}
	if c.SegmentWorkers < 0 {
		return fmt.Errorf("segment_workers must be >= 0, got %d", c.SegmentWorkers)
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level)
	}
	if c.Keys.partial() {
		return fmt.Errorf("keys: all four of cex_key, cex_iv, dex_key, dex_iv must be set together")
	}
	if _, err := c.KeyTable(); err != nil {
		return err
	}
	return nil
}

// EffectiveSegmentWorkers resolves SegmentWorkers against the CPU count.
func (c *Config) EffectiveSegmentWorkers() int {
	if c.SegmentWorkers > 0 {
		return c.SegmentWorkers
	}
	return max(runtime.NumCPU()/2, 1)
}

// KeyTable returns the derivation table the configuration selects:
// the built-in one, or the override constants when present.
func (c *Config) KeyTable() (*keys.Table, error) {
	if c.Keys == (KeysConfig{}) {
		return keys.DefaultTable(), nil
	}

	decode := func(field, s string) ([16]byte, error) {
		var out [16]byte
		raw, err := hex.DecodeString(s)
		if err != nil {
			return out, fmt.Errorf("keys.%s: %w", field, err)
		}
		if len(raw) != 16 {
			return out, fmt.Errorf("keys.%s: want 16 bytes, got %d", field, len(raw))
		}
		copy(out[:], raw)
		return out, nil
	}

	cexKey, err := decode("cex_key", c.Keys.CEXKey)
	if err != nil {
		return nil, err
	}
	cexIV, err := decode("cex_iv", c.Keys.CEXIV)
	if err != nil {
		return nil, err
	}
	dexKey, err := decode("dex_key", c.Keys.DEXKey)
	if err != nil {
		return nil, err
	}
	dexIV, err := decode("dex_iv", c.Keys.DEXIV)
	if err != nil {
		return nil, err
	}
	return keys.NewTable(cexKey, cexIV, dexKey, dexIV), nil
}

func (k KeysConfig) partial() bool {
	set := 0
	for _, s := range []string{k.CEXKey, k.CEXIV, k.DEXKey, k.DEXIV} {
		if s != "" {
			set++
		}
	}
	return set != 0 && set != 4
}
