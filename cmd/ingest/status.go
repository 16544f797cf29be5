package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/savori/ingredient-sync/internal/checkpoint"
	"github.com/savori/ingredient-sync/internal/config"
	"github.com/savori/ingredient-sync/internal/progress"
)

var statusCommand = &cobra.Command{
	Use:   "status",
	Short: "Report progress of the current ingestion run",
	Long:  "Status is a pure read of the persisted checkpoint: it never mutates pipeline state and never touches the network.",
	RunE:  statusCmd,
}

var statusConfigPath string

func init() {
	statusCommand.Flags().StringVar(&statusConfigPath, "config", "", "Path to config.json file (values can be overridden by environment)")

	rootCmd.AddCommand(statusCommand)
}

func statusCmd(_ *cobra.Command, _ []string) error {
	// Status only needs the checkpoint path; skip full validation so it
	// works without credentials configured.
	cfg := config.FromEnv()
	if statusConfigPath != "" {
		var err error
		cfg, err = cfg.LoadFile(statusConfigPath)
		if err != nil {
			return err
		}
	}
	cfg = cfg.WithDefaults()

	cp, err := checkpoint.NewFileStore(cfg.CheckpointPath).Load()
	if err != nil {
		return err
	}
	if cp == nil {
		fmt.Printf("No checkpoint found at %s; no run in progress.\n", cfg.CheckpointPath)
		return nil
	}

	progress.NewPrinter(os.Stdout).PrintReport(progress.Build(cp, time.Now()))
	return nil
}
