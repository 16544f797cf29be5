// Package config provides configuration loading and validation for the
// ingestion CLI. Values come from the environment (optionally via .env),
// with an optional JSON file filling whatever the environment left unset;
// credential and throughput tuning live here, never in pipeline logic.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
)

// Tier presets map credential classes to safe throughput defaults. The
// demo key class is throttled hard by the provider; provisioned keys get
// far more headroom.
const (
	TierDemo     = "demo"
	TierStandard = "standard"
)

// Config holds every tunable of the pipeline. Zero fields mean "unset";
// WithDefaults resolves them from the credential tier preset after all
// sources are merged.
type Config struct {
	// Provider
	APIKey          string `json:"api_key,omitempty" validate:"required"`
	BaseURL         string `json:"base_url,omitempty" validate:"omitempty,url"`
	Tier            string `json:"tier,omitempty" validate:"oneof=demo standard"`
	RequestsPerHour int    `json:"requests_per_hour,omitempty" validate:"gt=0"`
	PageSize        int    `json:"page_size,omitempty" validate:"gt=0,lte=200"`
	NutrientSchema  string `json:"nutrient_schema,omitempty" validate:"oneof=legacy modern"`

	// Throttling
	ThrottleCeiling time.Duration `json:"-" validate:"gt=0"`

	// Sink
	SinkDriver  string `json:"sink_driver,omitempty" validate:"oneof=postgres sqlite"`
	DatabaseURL string `json:"database_url,omitempty" validate:"required_if=SinkDriver postgres"`
	SQLitePath  string `json:"sqlite_path,omitempty"`

	// Pipeline
	BatchSize       int    `json:"batch_size,omitempty" validate:"gt=0"`
	CheckpointEvery int    `json:"checkpoint_every,omitempty" validate:"gt=0"`
	CheckpointPath  string `json:"checkpoint_path,omitempty" validate:"required"`

	Verbose bool `json:"verbose,omitempty"`
}

// FromEnv reads configuration from environment variables. Defaults are not
// applied here: call WithDefaults after any config file has been merged.
func FromEnv() Config {
	cfg := Config{
		APIKey:          os.Getenv("FDC_API_KEY"),
		BaseURL:         os.Getenv("FDC_BASE_URL"),
		Tier:            os.Getenv("FDC_TIER"),
		NutrientSchema:  os.Getenv("FDC_NUTRIENT_SCHEMA"),
		SinkDriver:      os.Getenv("SINK_DRIVER"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		SQLitePath:      os.Getenv("SQLITE_PATH"),
		CheckpointPath:  os.Getenv("CHECKPOINT_PATH"),
		RequestsPerHour: envInt("FDC_REQUESTS_PER_HOUR"),
		PageSize:        envInt("FDC_PAGE_SIZE"),
		BatchSize:       envInt("BATCH_SIZE"),
		CheckpointEvery: envInt("CHECKPOINT_EVERY"),
	}
	if v := os.Getenv("THROTTLE_CEILING"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ThrottleCeiling = d
		}
	}
	return cfg
}

// LoadFile loads a JSON config file and merges it under the receiver: file
// values fill only fields still unset.
func (c Config) LoadFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return c, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	var file Config
	if err := json.Unmarshal(data, &file); err != nil {
		return c, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if c.APIKey == "" {
		c.APIKey = file.APIKey
	}
	if c.BaseURL == "" {
		c.BaseURL = file.BaseURL
	}
	if c.Tier == "" {
		c.Tier = file.Tier
	}
	if c.NutrientSchema == "" {
		c.NutrientSchema = file.NutrientSchema
	}
	if c.SinkDriver == "" {
		c.SinkDriver = file.SinkDriver
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = file.DatabaseURL
	}
	if c.SQLitePath == "" {
		c.SQLitePath = file.SQLitePath
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = file.CheckpointPath
	}
	if c.RequestsPerHour == 0 {
		c.RequestsPerHour = file.RequestsPerHour
	}
	if c.PageSize == 0 {
		c.PageSize = file.PageSize
	}
	if c.BatchSize == 0 {
		c.BatchSize = file.BatchSize
	}
	if c.CheckpointEvery == 0 {
		c.CheckpointEvery = file.CheckpointEvery
	}
	return c, nil
}

// WithDefaults resolves unset fields from the tier preset and fixed
// defaults. Call it once, after every source has been merged.
func (c Config) WithDefaults() Config {
	if c.Tier == "" {
		c.Tier = TierDemo
	}
	if c.RequestsPerHour == 0 {
		if c.Tier == TierStandard {
			c.RequestsPerHour = 900
		} else {
			c.RequestsPerHour = 30
		}
	}
	if c.PageSize == 0 {
		if c.Tier == TierStandard {
			c.PageSize = 200
		} else {
			c.PageSize = 25
		}
	}
	if c.NutrientSchema == "" {
		c.NutrientSchema = "modern"
	}
	if c.SinkDriver == "" {
		c.SinkDriver = "postgres"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "ingredients.db"
	}
	if c.BatchSize == 0 {
		c.BatchSize = 50
	}
	if c.CheckpointEvery == 0 {
		c.CheckpointEvery = 500
	}
	if c.CheckpointPath == "" {
		c.CheckpointPath = "ingestion-checkpoint.json"
	}
	if c.ThrottleCeiling == 0 {
		c.ThrottleCeiling = 4 * time.Hour
	}
	return c
}

// Validate checks the configuration against its struct tags.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	return nil
}

func envInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return n
}
