package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matheusfillipe/ps3toolbox/internal/keys"
)

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(c *Config)
		wantErr     bool
		errContains string
	}{
		{
			name:   "defaults are valid",
			mutate: func(c *Config) {},
		},
		{
			name:        "bad mode",
			mutate:      func(c *Config) { c.DefaultMode = "retail" },
			wantErr:     true,
			errContains: "default_mode",
		},
		{
			name:        "zero workers",
			mutate:      func(c *Config) { c.Workers = 0 },
			wantErr:     true,
			errContains: "workers",
		},
		{
			name:        "negative segment workers",
			mutate:      func(c *Config) { c.SegmentWorkers = -1 },
			wantErr:     true,
			errContains: "segment_workers",
		},
		{
			name:        "bad log level",
			mutate:      func(c *Config) { c.Log.Level = "trace" },
			wantErr:     true,
			errContains: "log.level",
		},
		{
			name:        "partial key override",
			mutate:      func(c *Config) { c.Keys.CEXKey = strings.Repeat("00", 16) },
			wantErr:     true,
			errContains: "together",
		},
		{
			name: "full key override",
			mutate: func(c *Config) {
				c.Keys = KeysConfig{
					CEXKey: strings.Repeat("01", 16),
					CEXIV:  strings.Repeat("02", 16),
					DEXKey: strings.Repeat("03", 16),
					DEXIV:  strings.Repeat("04", 16),
				}
			},
		},
		{
			name: "bad hex in override",
			mutate: func(c *Config) {
				c.Keys = KeysConfig{
					CEXKey: "zz",
					CEXIV:  strings.Repeat("02", 16),
					DEXKey: strings.Repeat("03", 16),
					DEXIV:  strings.Repeat("04", 16),
				}
			},
			wantErr:     true,
			errContains: "cex_key",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errContains)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("default_mode: dex\nworkers: 4\nlog:\n  level: debug\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "dex", cfg.DefaultMode)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestKeyTable_Override(t *testing.T) {
	cfg := Default()
	cfg.Keys = KeysConfig{
		CEXKey: strings.Repeat("01", 16),
		CEXIV:  strings.Repeat("02", 16),
		DEXKey: strings.Repeat("03", 16),
		DEXIV:  strings.Repeat("04", 16),
	}

	table, err := cfg.KeyTable()
	require.NoError(t, err)

	builtin, err := Default().KeyTable()
	require.NoError(t, err)

	custom, err := table.Derive(keys.ModeCEX, 1)
	require.NoError(t, err)
	stock, err := builtin.Derive(keys.ModeCEX, 1)
	require.NoError(t, err)
	assert.NotEqual(t, stock, custom)
}
