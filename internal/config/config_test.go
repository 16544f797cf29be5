package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable the config reads so tests are hermetic.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"FDC_API_KEY", "FDC_BASE_URL", "FDC_TIER", "FDC_NUTRIENT_SCHEMA",
		"FDC_REQUESTS_PER_HOUR", "FDC_PAGE_SIZE", "SINK_DRIVER",
		"DATABASE_URL", "SQLITE_PATH", "CHECKPOINT_PATH", "BATCH_SIZE",
		"CHECKPOINT_EVERY", "THROTTLE_CEILING",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func TestFromEnvDemoDefaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("FDC_API_KEY", "DEMO_KEY")

	cfg := FromEnv().WithDefaults()

	assert.Equal(t, TierDemo, cfg.Tier)
	assert.Equal(t, 30, cfg.RequestsPerHour)
	assert.Equal(t, 25, cfg.PageSize)
	assert.Equal(t, "modern", cfg.NutrientSchema)
	assert.Equal(t, "postgres", cfg.SinkDriver)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500, cfg.CheckpointEvery)
	assert.Equal(t, 4*time.Hour, cfg.ThrottleCeiling)
	assert.Equal(t, "ingestion-checkpoint.json", cfg.CheckpointPath)
}

func TestFromEnvStandardTierPresets(t *testing.T) {
	clearEnv(t)
	t.Setenv("FDC_API_KEY", "real-key")
	t.Setenv("FDC_TIER", "standard")

	cfg := FromEnv().WithDefaults()

	assert.Equal(t, 900, cfg.RequestsPerHour)
	assert.Equal(t, 200, cfg.PageSize)
}

func TestFromEnvExplicitOverridesBeatPresets(t *testing.T) {
	clearEnv(t)
	t.Setenv("FDC_API_KEY", "real-key")
	t.Setenv("FDC_TIER", "standard")
	t.Setenv("FDC_REQUESTS_PER_HOUR", "450")
	t.Setenv("FDC_PAGE_SIZE", "100")
	t.Setenv("THROTTLE_CEILING", "90m")
	t.Setenv("FDC_NUTRIENT_SCHEMA", "legacy")

	cfg := FromEnv().WithDefaults()

	assert.Equal(t, 450, cfg.RequestsPerHour)
	assert.Equal(t, 100, cfg.PageSize)
	assert.Equal(t, 90*time.Minute, cfg.ThrottleCeiling)
	assert.Equal(t, "legacy", cfg.NutrientSchema)
}

func TestValidate(t *testing.T) {
	clearEnv(t)

	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr bool
	}{
		{
			name:    "postgres sink with database url is valid",
			mutate:  func(c *Config) { c.DatabaseURL = "postgres://localhost/app" },
			wantErr: false,
		},
		{
			name:    "missing api key fails",
			mutate:  func(c *Config) { c.APIKey = ""; c.DatabaseURL = "postgres://localhost/app" },
			wantErr: true,
		},
		{
			name:    "postgres sink without database url fails",
			mutate:  func(c *Config) {},
			wantErr: true,
		},
		{
			name:    "sqlite sink needs no database url",
			mutate:  func(c *Config) { c.SinkDriver = "sqlite" },
			wantErr: false,
		},
		{
			name:    "unknown sink driver fails",
			mutate:  func(c *Config) { c.SinkDriver = "oracle" },
			wantErr: true,
		},
		{
			name:    "page size above provider maximum fails",
			mutate:  func(c *Config) { c.PageSize = 500; c.DatabaseURL = "postgres://localhost/app" },
			wantErr: true,
		},
		{
			name:    "unknown nutrient schema fails",
			mutate:  func(c *Config) { c.NutrientSchema = "v3"; c.DatabaseURL = "postgres://localhost/app" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{APIKey: "key"}.WithDefaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadFileMergesUnderEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("FDC_API_KEY", "env-key")

	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"api_key": "file-key",
		"tier": "standard",
		"database_url": "postgres://localhost/app",
		"batch_size": 100
	}`), 0o644))

	cfg, err := FromEnv().LoadFile(path)
	require.NoError(t, err)
	cfg = cfg.WithDefaults()

	assert.Equal(t, "env-key", cfg.APIKey, "environment wins over file")
	assert.Equal(t, TierStandard, cfg.Tier)
	assert.Equal(t, "postgres://localhost/app", cfg.DatabaseURL)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 900, cfg.RequestsPerHour, "preset follows the tier the file selected")
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileMissing(t *testing.T) {
	clearEnv(t)
	_, err := FromEnv().LoadFile(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}
