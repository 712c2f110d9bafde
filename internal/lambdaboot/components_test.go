package lambdaboot

import (
	"context"
	"strings"
	"testing"

	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/describe"
	"github.com/fpang/product-catalog/internal/logging"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/storage"
	"github.com/fpang/product-catalog/internal/store"
)

func localConfig() config.Config {
	return config.Config{
		Limits:    config.DefaultLimits(),
		Storage:   "memory",
		Provider:  "static",
		KeyPrefix: "products",
	}
}

func TestBuild_Local(t *testing.T) {
	c, err := Build(context.Background(), localConfig(), metrics.Nop{}, logging.NewStartupLogger("test"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	defer c.Close()

	if _, ok := c.Uploader.(*storage.MemoryUploader); !ok {
		t.Errorf("Uploader = %T", c.Uploader)
	}
	if _, ok := c.Describer.(describe.Static); !ok {
		t.Errorf("Describer = %T", c.Describer)
	}
	if _, ok := c.Reports.(*store.MemoryStore); !ok {
		t.Errorf("Reports = %T", c.Reports)
	}
	if c.S3 != nil {
		t.Error("S3 should be nil for memory storage")
	}
}

func TestBuild_GeminiFromEnv(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")
	cfg := localConfig()
	cfg.Provider = "gemini"

	c, err := Build(context.Background(), cfg, metrics.Nop{}, logging.NewStartupLogger("test"))
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := c.Describer.(*describe.Gemini); !ok {
		t.Errorf("Describer = %T", c.Describer)
	}
}

func TestBuild_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   string
	}{
		{"unknown storage", func(c *config.Config) { c.Storage = "ftp" }, "unknown storage"},
		{"s3 without bucket", func(c *config.Config) { c.Storage = "s3" }, "CATALOG_S3_BUCKET"},
		{"gcs without bucket", func(c *config.Config) { c.Storage = "gcs" }, "CATALOG_GCS_BUCKET"},
		{"unknown provider", func(c *config.Config) { c.Provider = "openai" }, "unknown provider"},
		{"vertex without project", func(c *config.Config) { c.Provider = "vertex" }, "vertex project"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := localConfig()
			tt.mutate(&cfg)
			_, err := Build(context.Background(), cfg, metrics.Nop{}, logging.NewStartupLogger("test"))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want substring %q", err, tt.want)
			}
		})
	}
}
