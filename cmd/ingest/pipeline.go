package main

import (
	"context"
	"fmt"

	"github.com/savori/ingredient-sync/internal/checkpoint"
	"github.com/savori/ingredient-sync/internal/config"
	"github.com/savori/ingredient-sync/internal/fdc"
	"github.com/savori/ingredient-sync/internal/loader"
	"github.com/savori/ingredient-sync/internal/orchestrator"
	"github.com/savori/ingredient-sync/internal/transform"
)

// loadConfig merges env, optional config file and the shared CLI flags.
func loadConfig(configPath string, verbose bool) (config.Config, error) {
	cfg := config.FromEnv()
	if configPath != "" {
		var err error
		cfg, err = cfg.LoadFile(configPath)
		if err != nil {
			return cfg, fmt.Errorf("failed to load config: %w", err)
		}
	}
	cfg = cfg.WithDefaults()
	if verbose {
		cfg.Verbose = true
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// buildSink selects the ingredient store implementation from config.
func buildSink(ctx context.Context, cfg config.Config) (loader.Sink, error) {
	switch cfg.SinkDriver {
	case "sqlite":
		return loader.NewSQLiteSink(cfg.SQLitePath)
	default:
		return loader.NewPostgresSink(ctx, cfg.DatabaseURL)
	}
}

// buildOrchestrator wires the full pipeline from config.
func buildOrchestrator(ctx context.Context, cfg config.Config) (*orchestrator.Orchestrator, loader.Sink, error) {
	sink, err := buildSink(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open ingredient store: %w", err)
	}

	client := fdc.NewClient(fdc.Options{
		BaseURL:         cfg.BaseURL,
		APIKey:          cfg.APIKey,
		RequestsPerHour: cfg.RequestsPerHour,
		PageSize:        cfg.PageSize,
		ThrottleCeiling: cfg.ThrottleCeiling,
	})

	orch, err := orchestrator.New(orchestrator.Options{
		Fetcher:         client,
		Transformer:     transform.New(transform.NutrientSchema(cfg.NutrientSchema)),
		Sink:            sink,
		Store:           checkpoint.NewFileStore(cfg.CheckpointPath),
		BatchSize:       cfg.BatchSize,
		CheckpointEvery: cfg.CheckpointEvery,
		Verbose:         cfg.Verbose,
	})
	if err != nil {
		sink.Close()
		return nil, nil, err
	}
	return orch, sink, nil
}
