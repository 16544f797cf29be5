// Package main provides the entry point for the ingredient ingestion CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "ingest",
	Short: "USDA ingredient ingestion pipeline",
	Long:  "Ingest pulls the USDA FoodData Central database through its rate-limited API, normalizes food records into the ingredient schema, and upserts them into the application's ingredient store. Runs are checkpointed and resumable.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
