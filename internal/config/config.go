// Package config resolves process-wide settings from compiled defaults and
// CATALOG_* environment variables. Command-line flags are layered on top by
// the cmd packages. Values are read once at startup and treated as
// read-only afterwards.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fpang/product-catalog/internal/retry"
)

// Defaults mirror the limits the catalogue service has always enforced.
const (
	DefaultMaxFileSize        = 8 * MiB
	DefaultMaxTotalSize       = 400 * MiB
	DefaultMaxFiles           = 500
	DefaultBatchSize          = 100
	DefaultConcurrentRequests = 20
	DefaultRateLimitDelay     = 60 * time.Millisecond
	DefaultMaxRetries         = 3
	DefaultKeyPrefix          = "products"
)

// Limits bounds a single request and drives the scheduler.
type Limits struct {
	MaxFileSize        int64
	MaxTotalSize       int64
	MaxFiles           int
	BatchSize          int
	ConcurrentRequests int
	RateLimitDelay     time.Duration

	// Upload and Describe hold the retry settings for each external call.
	// Clock and OnRetry are filled in by the scheduler.
	Upload   retry.Policy
	Describe retry.Policy
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		MaxFileSize:        DefaultMaxFileSize,
		MaxTotalSize:       DefaultMaxTotalSize,
		MaxFiles:           DefaultMaxFiles,
		BatchSize:          DefaultBatchSize,
		ConcurrentRequests: DefaultConcurrentRequests,
		RateLimitDelay:     DefaultRateLimitDelay,
		Upload: retry.Policy{
			MaxAttempts:   DefaultMaxRetries + 1,
			BaseDelay:     time.Second,
			MaxDelay:      5 * time.Second,
			BackoffFactor: 2,
		},
		Describe: retry.Policy{
			MaxAttempts:   DefaultMaxRetries + 1,
			BaseDelay:     2 * time.Second,
			MaxDelay:      10 * time.Second,
			BackoffFactor: 1.5,
		},
	}
}

// SetMaxRetries sets the number of additional attempts for both calls.
func (l *Limits) SetMaxRetries(n int) {
	l.Upload.MaxAttempts = n + 1
	l.Describe.MaxAttempts = n + 1
}

// Validate reports the first nonsensical value.
func (l Limits) Validate() error {
	switch {
	case l.MaxFileSize <= 0:
		return fmt.Errorf("max file size must be positive, got %d", l.MaxFileSize)
	case l.MaxTotalSize <= 0:
		return fmt.Errorf("max total size must be positive, got %d", l.MaxTotalSize)
	case l.MaxFiles <= 0:
		return fmt.Errorf("max files must be positive, got %d", l.MaxFiles)
	case l.BatchSize <= 0:
		return fmt.Errorf("batch size must be positive, got %d", l.BatchSize)
	case l.ConcurrentRequests <= 0:
		return fmt.Errorf("concurrent requests must be positive, got %d", l.ConcurrentRequests)
	case l.RateLimitDelay < 0:
		return fmt.Errorf("rate limit delay must not be negative, got %v", l.RateLimitDelay)
	case l.Upload.MaxAttempts < 1 || l.Describe.MaxAttempts < 1:
		return fmt.Errorf("max retries must not be negative")
	}
	return nil
}

// Config is the full runtime configuration of a catalogue process.
type Config struct {
	Limits Limits

	// Storage selects the object store: "s3", "gcs", or "memory".
	Storage   string
	S3Bucket  string
	GCSBucket string
	KeyPrefix string

	// Provider selects the description backend: "gemini", "vertex", or "static".
	Provider      string
	GeminiModel   string
	VertexProject string
	VertexRegion  string

	// ReportTable is the DynamoDB table for saved reports. Empty keeps
	// reports in memory.
	ReportTable string
}

// Load builds a Config from defaults overridden by the environment.
func Load() (Config, error) {
	cfg := Config{
		Limits:        DefaultLimits(),
		Storage:       envOr("CATALOG_STORAGE", "s3"),
		S3Bucket:      os.Getenv("CATALOG_S3_BUCKET"),
		GCSBucket:     os.Getenv("CATALOG_GCS_BUCKET"),
		KeyPrefix:     envOr("CATALOG_KEY_PREFIX", DefaultKeyPrefix),
		Provider:      envOr("CATALOG_PROVIDER", "gemini"),
		GeminiModel:   os.Getenv("GEMINI_MODEL"),
		VertexProject: os.Getenv("VERTEX_PROJECT"),
		VertexRegion:  envOr("VERTEX_REGION", "us-central1"),
		ReportTable:   os.Getenv("CATALOG_REPORT_TABLE"),
	}

	l := &cfg.Limits
	var err error
	if l.MaxFileSize, err = sizeEnv("CATALOG_MAX_FILE_SIZE", l.MaxFileSize); err != nil {
		return cfg, err
	}
	if l.MaxTotalSize, err = sizeEnv("CATALOG_MAX_TOTAL_SIZE", l.MaxTotalSize); err != nil {
		return cfg, err
	}
	if l.MaxFiles, err = intEnv("CATALOG_MAX_FILES", l.MaxFiles); err != nil {
		return cfg, err
	}
	if l.BatchSize, err = intEnv("CATALOG_BATCH_SIZE", l.BatchSize); err != nil {
		return cfg, err
	}
	if l.ConcurrentRequests, err = intEnv("CATALOG_CONCURRENT_REQUESTS", l.ConcurrentRequests); err != nil {
		return cfg, err
	}
	if v := os.Getenv("CATALOG_RATE_LIMIT_DELAY"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("CATALOG_RATE_LIMIT_DELAY: %w", err)
		}
		l.RateLimitDelay = d
	}
	retries, err := intEnv("CATALOG_MAX_RETRIES", DefaultMaxRetries)
	if err != nil {
		return cfg, err
	}
	l.SetMaxRetries(retries)

	return cfg, l.Validate()
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func intEnv(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func sizeEnv(key string, fallback int64) (int64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := ParseSize(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
