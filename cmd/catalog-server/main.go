// Package main serves the product catalogue API.
//
// Endpoints:
//
//	POST /api/create-catalogue      multipart upload, returns the batch report
//	POST /api/process-images        alias of create-catalogue
//	GET  /api/health                health check
//	GET  /api/reports/{id}          saved report as JSON
//	GET  /api/reports/{id}/export   saved report as csv, parquet, or json
//	GET  /metrics                   Prometheus exposition (outside Lambda)
//
// Outside Lambda it runs a plain http.Server. When AWS_LAMBDA_RUNTIME_API
// is set the same handler is served through the API Gateway v2 adapter.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/awslabs/aws-lambda-go-api-proxy/httpadapter"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/fpang/product-catalog/internal/clock"
	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/lambdaboot"
	"github.com/fpang/product-catalog/internal/logging"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/server"
)

// CLI flags
var (
	portFlag     int
	storageFlag  string
	providerFlag string
	modelFlag    string
	dryRunFlag   bool
)

var rootCmd = &cobra.Command{
	Use:   "catalog-server",
	Short: "HTTP API that turns product photos into catalogue entries",
	Long: `Catalog Server accepts batches of product images (or ZIP archives of
them), uploads each image to object storage, asks a vision model for a
catalogue description, and returns a per-image report.

Examples:
  catalog-server
  catalog-server --port 9090 --storage gcs
  catalog-server --provider vertex --model gemini-2.5-flash
  catalog-server --dry-run`,
	RunE: runMain,
}

func init() {
	rootCmd.Flags().IntVar(&portFlag, "port", 8080, "Port to listen on")
	rootCmd.Flags().StringVar(&storageFlag, "storage", "", "Object store: s3, gcs, or memory (default from CATALOG_STORAGE)")
	rootCmd.Flags().StringVar(&providerFlag, "provider", "", "Description provider: gemini, vertex, or static (default from CATALOG_PROVIDER)")
	rootCmd.Flags().StringVarP(&modelFlag, "model", "m", "", "Model name for the description provider")
	rootCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Use in-memory storage and placeholder descriptions")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runMain(cmd *cobra.Command, args []string) error {
	initStart := time.Now()
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: .env not loaded: %v\n", err)
	}
	logging.Init()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	applyFlags(cmd, &cfg)

	inLambda := os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
	ctx := context.Background()

	var prom *metrics.Prometheus
	var sink metrics.Sink = metrics.EMF{}
	if !inLambda {
		prom = metrics.NewPrometheus()
		sink = metrics.Multi{metrics.EMF{}, prom}
	}

	sl := lambdaboot.StartupLog("catalog-server", initStart).
		CommitHash(commitHash).
		BuildTime(buildTime)
	components, err := lambdaboot.Build(ctx, cfg, sink, sl)
	if err != nil {
		return err
	}
	defer components.Close()

	srv := &server.Server{
		Limits:     cfg.Limits,
		Uploader:   components.Uploader,
		Describer:  components.Describer,
		Reports:    components.Reports,
		Clock:      clock.Real{},
		Metrics:    sink,
		Prometheus: prom,
		Version:    commitHash,
	}
	handler := srv.Handler()

	sl.Feature("dryRun", dryRunFlag).
		Feature("lambda", inLambda).
		Config("maxFiles", fmt.Sprint(cfg.Limits.MaxFiles)).
		Config("maxTotalSize", config.FormatSize(cfg.Limits.MaxTotalSize)).
		Config("batchSize", fmt.Sprint(cfg.Limits.BatchSize)).
		Config("concurrentRequests", fmt.Sprint(cfg.Limits.ConcurrentRequests)).
		InitDuration(time.Since(initStart)).
		Log()

	if inLambda {
		lambda.Start(httpadapter.NewV2(handler).ProxyWithContext)
		return nil
	}
	return serve(handler, portFlag)
}

// applyFlags layers explicitly set flags over the environment.
func applyFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("storage") {
		cfg.Storage = storageFlag
	}
	if cmd.Flags().Changed("provider") {
		cfg.Provider = providerFlag
	}
	if cmd.Flags().Changed("model") {
		cfg.GeminiModel = modelFlag
	}
	if dryRunFlag {
		cfg.Storage = "memory"
		cfg.Provider = "static"
		cfg.ReportTable = ""
	}
}

// serve runs handler until SIGINT or SIGTERM, then drains in-flight
// requests for up to 10 seconds.
func serve(handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      15 * time.Minute,
		IdleTimeout:       60 * time.Second,
	}

	idle := make(chan struct{})
	go func() {
		defer close(idle)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info().Msg("Shutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Error().Err(err).Msg("Graceful shutdown failed")
		}
	}()

	log.Info().Int("port", port).Msg("Starting catalogue server")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server failed: %w", err)
	}
	<-idle
	return nil
}
