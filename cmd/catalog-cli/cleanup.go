package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/product-catalog/internal/lambdaboot"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/storage"
)

var (
	prefixFlag    string
	olderThanFlag time.Duration
)

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Delete uploaded images older than a given age from the S3 bucket",
	RunE:  runCleanup,
}

func init() {
	cleanupCmd.Flags().StringVar(&prefixFlag, "prefix", "", "Key prefix to prune (default CATALOG_KEY_PREFIX)")
	cleanupCmd.Flags().DurationVar(&olderThanFlag, "older-than", storage.DefaultCleanupAge, "Minimum object age to delete")
}

func runCleanup(cmd *cobra.Command, args []string) error {
	if cfg.Storage != "s3" {
		return fmt.Errorf("cleanup needs s3 storage, got %q", cfg.Storage)
	}
	if olderThanFlag <= 0 {
		return fmt.Errorf("--older-than must be positive")
	}
	prefix := prefixFlag
	if prefix == "" {
		prefix = cfg.KeyPrefix
	}

	ctx := context.Background()
	c := cfg
	c.Provider = "static"
	components, err := lambdaboot.Build(ctx, c, metrics.Nop{}, lambdaboot.StartupLog("catalog-cli", time.Now()))
	if err != nil {
		return err
	}
	defer components.Close()

	deleted, err := components.S3.CleanupOlderThan(ctx, prefix, olderThanFlag)
	log.Info().Str("prefix", prefix).Dur("olderThan", olderThanFlag).Int("deleted", deleted).Msg("Cleanup finished")
	fmt.Fprintf(os.Stdout, "deleted %d objects under %s/\n", deleted, prefix)
	return err
}
