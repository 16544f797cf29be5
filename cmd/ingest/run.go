package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/savori/ingredient-sync/internal/checkpoint"
)

var runCommand = &cobra.Command{
	Use:   "run",
	Short: "Start an ingestion run (resumes automatically if a checkpoint exists)",
	Long: `Runs the full fetch-transform-load pipeline over all FoodData Central
partitions. If a previous run left a checkpoint, run continues from it rather
than starting over, so counters are never double-counted. Use --reset for an
explicit fresh start.`,
	RunE: runIngestCmd,
}

var (
	runConfigPath string
	runReset      bool
	runVerbose    bool
)

func init() {
	runCommand.Flags().StringVar(&runConfigPath, "config", "", "Path to config.json file (values can be overridden by environment)")
	runCommand.Flags().BoolVar(&runReset, "reset", false, "Discard any existing checkpoint and start from scratch")
	runCommand.Flags().BoolVarP(&runVerbose, "verbose", "v", false, "Print per-page progress")

	rootCmd.AddCommand(runCommand)
}

func runIngestCmd(_ *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(runConfigPath, runVerbose)
	if err != nil {
		return err
	}

	store := checkpoint.NewFileStore(cfg.CheckpointPath)
	if runReset {
		if err := store.Reset(); err != nil {
			return err
		}
		fmt.Println("Checkpoint reset; starting from scratch.")
	} else {
		cp, err := store.Load()
		if err != nil {
			return err
		}
		if cp != nil {
			fmt.Println("Existing checkpoint found; continuing as resume.")
		}
	}

	orch, sink, err := buildOrchestrator(ctx, cfg)
	if err != nil {
		return err
	}
	defer sink.Close()

	return orch.Run(ctx)
}
