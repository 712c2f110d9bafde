package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/cli"
	"github.com/fpang/product-catalog/internal/clock"
	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/describe"
	"github.com/fpang/product-catalog/internal/export"
	"github.com/fpang/product-catalog/internal/intake"
	"github.com/fpang/product-catalog/internal/lambdaboot"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/pipeline"
	"github.com/fpang/product-catalog/internal/storage"
)

var (
	outFlag    string
	formatFlag string
)

var processCmd = &cobra.Command{
	Use:   "process [paths...]",
	Short: "Upload and describe images from files, folders, or ZIP archives",
	Long: `Process walks the given paths (folders are walked recursively, hidden
entries skipped), expands ZIP archives, uploads each image, asks the model
for a description, and writes the report to --out.

With no paths, the directory is prompted for interactively.`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVarP(&outFlag, "out", "o", "catalogue.csv", "Report file; the extension selects csv, parquet, or json")
	processCmd.Flags().StringVar(&formatFlag, "format", "", "Report format, overriding the --out extension")
}

func runProcess(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{cli.PromptForDirectory()}
	}
	paths := cli.ResolvePaths(args)

	format, err := export.ParseFormat(outFlag)
	if formatFlag != "" {
		format, err = export.ParseFormat(formatFlag)
	}
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	sl := lambdaboot.StartupLog("catalog-cli", time.Now())
	components, err := lambdaboot.Build(ctx, cfg, metrics.Nop{}, sl)
	if err != nil {
		return err
	}
	defer components.Close()

	report, runErr := process(ctx, cfg.Limits, components.Uploader, components.Describer, paths, os.Stderr)
	if runErr != nil && report.TotalCount == 0 {
		return runErr
	}

	if err := writeReport(outFlag, format, report); err != nil {
		return err
	}
	fmt.Fprintf(os.Stdout, "%d images: %d completed, %d failed -> %s\n",
		report.TotalCount, report.CompletedCount, report.FailedCount, outFlag)
	if runErr != nil {
		return fmt.Errorf("stopped early, partial report written: %w", runErr)
	}
	return nil
}

// process runs the pipeline over paths and reports progress lines to
// progress. On cancellation the partial report is returned with the error.
func process(ctx context.Context, limits config.Limits, up storage.Uploader, desc describe.Describer, paths []string, progress io.Writer) (catalog.BatchReport, error) {
	uploads, err := intake.FromPaths(paths)
	if err != nil {
		return catalog.BatchReport{}, err
	}

	collected, err := intake.Collect(ctx, limits, clock.Real{}, uploads)
	if err != nil {
		return catalog.BatchReport{}, err
	}
	for _, name := range collected.CorruptArchives {
		fmt.Fprintf(progress, "skipped unreadable archive %s\n", name)
	}
	if collected.Skipped > 0 {
		fmt.Fprintf(progress, "skipped %d files (type or size)\n", collected.Skipped)
	}

	sched := &pipeline.Scheduler{
		Uploader:  up,
		Describer: desc,
		Limits:    limits,
		Clock:     clock.Real{},
		Recorder:  metrics.Nop{},
	}
	start := time.Now()
	report, err := sched.Run(ctx, collected.Items, func(p pipeline.Progress) {
		fmt.Fprintln(progress, cli.FormatProgress(p, time.Since(start)))
	})
	log.Info().
		Int("total", report.TotalCount).
		Int("completed", report.CompletedCount).
		Int("failed", report.FailedCount).
		Dur("elapsed", time.Since(start)).
		Msg("Catalogue run finished")
	return report, err
}

func writeReport(path string, format export.Format, report catalog.BatchReport) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := export.Write(f, format, report); err != nil {
		f.Close()
		return fmt.Errorf("write %s report: %w", format, err)
	}
	return f.Close()
}
