package lambdaboot

import (
	"context"
	"errors"
	"fmt"
	"os"

	gcs "cloud.google.com/go/storage"
	"github.com/rs/zerolog/log"

	"github.com/fpang/product-catalog/internal/auth"
	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/describe"
	"github.com/fpang/product-catalog/internal/logging"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/storage"
	"github.com/fpang/product-catalog/internal/store"
)

// Components are the pipeline dependencies selected by a Config.
type Components struct {
	Uploader  storage.Uploader
	Describer describe.Describer
	Reports   store.ReportStore
	// S3 is the concrete uploader when Storage is "s3", for bucket
	// maintenance commands.
	S3 *storage.S3Uploader

	closers []func() error
}

// Close releases provider and storage clients.
func (c *Components) Close() error {
	var errs []error
	for _, fn := range c.closers {
		errs = append(errs, fn())
	}
	return errors.Join(errs...)
}

type builder struct {
	ctx  context.Context
	cfg  config.Config
	sink metrics.Sink
	sl   *logging.StartupLogger
	aws  *AWSClients
}

// awsClients loads the AWS config on first use so local runs against GCS
// or memory storage never need AWS credentials.
func (b *builder) awsClients() AWSClients {
	if b.aws == nil {
		c := InitAWS(b.ctx)
		b.aws = &c
	}
	return *b.aws
}

// Build creates the uploader, describer, and report store named by cfg and
// records what it chose on sl.
func Build(ctx context.Context, cfg config.Config, sink metrics.Sink, sl *logging.StartupLogger) (*Components, error) {
	b := &builder{ctx: ctx, cfg: cfg, sink: sink, sl: sl}
	c := &Components{}

	if err := b.uploader(c); err != nil {
		c.Close()
		return nil, err
	}
	if err := b.describer(c); err != nil {
		c.Close()
		return nil, err
	}
	b.reports(c)

	sl.Config("storage", cfg.Storage).
		Config("provider", cfg.Provider).
		Config("keyPrefix", cfg.KeyPrefix)
	return c, nil
}

func (b *builder) uploader(c *Components) error {
	switch b.cfg.Storage {
	case "s3":
		if b.cfg.S3Bucket == "" {
			return fmt.Errorf("CATALOG_S3_BUCKET is required for s3 storage")
		}
		s3c := InitS3(b.awsClients().Config, "CATALOG_S3_BUCKET")
		c.S3 = storage.NewS3Uploader(s3c.Client, s3c.Bucket, s3c.Region, b.cfg.KeyPrefix)
		c.Uploader = c.S3
		b.sl.S3Bucket("images", s3c.Bucket)
	case "gcs":
		if b.cfg.GCSBucket == "" {
			return fmt.Errorf("CATALOG_GCS_BUCKET is required for gcs storage")
		}
		client, err := gcs.NewClient(b.ctx)
		if err != nil {
			return fmt.Errorf("gcs client: %w", err)
		}
		c.closers = append(c.closers, client.Close)
		c.Uploader = storage.NewGCSUploader(client, b.cfg.GCSBucket, b.cfg.KeyPrefix)
		b.sl.GCSBucket("images", b.cfg.GCSBucket)
	case "memory":
		c.Uploader = storage.NewMemoryUploader(b.cfg.KeyPrefix)
	default:
		return fmt.Errorf("unknown storage %q (want s3, gcs, or memory)", b.cfg.Storage)
	}
	return nil
}

func (b *builder) describer(c *Components) error {
	switch b.cfg.Provider {
	case "gemini":
		if os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != "" {
			if param := LoadGeminiKey(b.ctx, b.awsClients().SSM); param != "" {
				b.sl.SSMParam("geminiKey", param)
			}
		}
		key, err := auth.GetAPIKey()
		if err != nil {
			return err
		}
		g, err := describe.NewGeminiFromKey(b.ctx, key, b.cfg.GeminiModel, b.sink)
		if err != nil {
			return fmt.Errorf("gemini client: %w", err)
		}
		c.Describer = g
	case "vertex":
		v, err := describe.NewVertex(b.ctx, b.cfg.VertexProject, b.cfg.VertexRegion, b.cfg.GeminiModel, b.sink)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, v.Close)
		c.Describer = v
		b.sl.Config("vertexProject", b.cfg.VertexProject)
	case "static":
		log.Warn().Msg("Static describer selected, descriptions are placeholders")
		c.Describer = describe.Static{Fields: describe.DryRunFields}
	default:
		return fmt.Errorf("unknown provider %q (want gemini, vertex, or static)", b.cfg.Provider)
	}
	return nil
}

func (b *builder) reports(c *Components) {
	if b.cfg.ReportTable != "" {
		if ds := InitDynamoOptional(b.awsClients().Config, "CATALOG_REPORT_TABLE"); ds != nil {
			c.Reports = ds
			b.sl.DynamoTable("reports", b.cfg.ReportTable)
			return
		}
	}
	c.Reports = store.NewMemoryStore(nil)
	b.sl.Feature("memoryReports", true)
}
