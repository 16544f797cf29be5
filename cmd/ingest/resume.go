package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/savori/ingredient-sync/internal/checkpoint"
)

var resumeCommand = &cobra.Command{
	Use:   "resume",
	Short: "Continue an interrupted ingestion run from its checkpoint",
	RunE:  resumeIngestCmd,
}

var (
	resumeConfigPath string
	resumeVerbose    bool
)

func init() {
	resumeCommand.Flags().StringVar(&resumeConfigPath, "config", "", "Path to config.json file (values can be overridden by environment)")
	resumeCommand.Flags().BoolVarP(&resumeVerbose, "verbose", "v", false, "Print per-page progress")

	rootCmd.AddCommand(resumeCommand)
}

func resumeIngestCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(resumeConfigPath, resumeVerbose)
	if err != nil {
		return err
	}

	cp, err := checkpoint.NewFileStore(cfg.CheckpointPath).Load()
	if err != nil {
		return err
	}
	if cp == nil {
		return fmt.Errorf("no checkpoint found at %s; use 'ingest run' to start a run", cfg.CheckpointPath)
	}

	orch, sink, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	return orch.Run(ctx)
}
