// Package main is the command-line front end for the product catalogue
// pipeline: it processes local photo folders, validates the Gemini key,
// and prunes old uploads from the image bucket.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/logging"
	"github.com/fpang/product-catalog/internal/metrics"
)

// Persistent flags
var (
	storageFlag  string
	providerFlag string
	modelFlag    string
	dryRunFlag   bool
)

// cfg is resolved once in PersistentPreRunE and read by every subcommand.
var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "catalog-cli",
	Short: "Build product catalogue entries from local photos",
	Long: `Catalog CLI runs the catalogue pipeline from the command line.

Examples:
  catalog-cli process ./photos --out catalogue.csv
  catalog-cli process shoots.zip extra.jpg --out catalogue.parquet --storage gcs
  catalog-cli process ./photos --dry-run --out preview.json
  catalog-cli cleanup --prefix products --older-than 168h
  catalog-cli check-key`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
		}
		logging.Init()
		// EMF lines are for CloudWatch; keep stdout for command output.
		metrics.SetOutput(os.Stderr)

		loaded, err := config.Load()
		if err != nil {
			return fmt.Errorf("config: %w", err)
		}
		cfg = loaded
		applyFlags(cmd, &cfg)
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&storageFlag, "storage", "", "Object store: s3, gcs, or memory (default from CATALOG_STORAGE)")
	pf.StringVar(&providerFlag, "provider", "", "Description provider: gemini, vertex, or static (default from CATALOG_PROVIDER)")
	pf.StringVarP(&modelFlag, "model", "m", "", "Model name for the description provider")
	pf.BoolVar(&dryRunFlag, "dry-run", false, "Use in-memory storage and placeholder descriptions")

	rootCmd.AddCommand(processCmd, cleanupCmd, checkKeyCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// applyFlags layers explicitly set flags over the environment.
func applyFlags(cmd *cobra.Command, c *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("storage") {
		c.Storage = storageFlag
	}
	if flags.Changed("provider") {
		c.Provider = providerFlag
	}
	if flags.Changed("model") {
		c.GeminiModel = modelFlag
	}
	if dryRunFlag {
		c.Storage = "memory"
		c.Provider = "static"
	}
	// Reports are written to --out; nothing is kept server-side.
	c.ReportTable = ""
}
