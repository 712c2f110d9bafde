package logging

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"info", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.in); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestStartupLogger(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })
	t.Setenv("AWS_LAMBDA_FUNCTION_NAME", "")

	NewStartupLogger("catalog-server").
		CommitHash("abc123").
		S3Bucket("images", "catalog-images").
		DynamoTable("reports", "catalog-reports").
		Feature("dryRun", true).
		Config("provider", "gemini").
		InitDuration(150 * time.Millisecond).
		Log()

	var evt map[string]any
	if err := json.Unmarshal(buf.Bytes(), &evt); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if evt["message"] != "Startup complete" {
		t.Errorf("message = %v", evt["message"])
	}
	proc := evt["process"].(map[string]any)
	if proc["name"] != "catalog-server" || proc["commitHash"] != "abc123" {
		t.Errorf("process = %v", proc)
	}
	if _, ok := proc["functionName"]; ok {
		t.Error("unset Lambda identity should be omitted")
	}
	res := evt["resources"].(map[string]any)
	if res["s3Buckets"].(map[string]any)["images"] != "catalog-images" {
		t.Errorf("resources = %v", res)
	}
	if _, ok := res["gcsBuckets"]; ok {
		t.Error("empty resource maps should be omitted")
	}
	if evt["features"].(map[string]any)["dryRun"] != true {
		t.Errorf("features = %v", evt["features"])
	}
}

func TestEnvOrDefault(t *testing.T) {
	t.Setenv("CATALOG_TEST_VALUE", "")
	if got := EnvOrDefault("CATALOG_TEST_VALUE", "fallback"); got != "fallback" {
		t.Errorf("got %q", got)
	}
	t.Setenv("CATALOG_TEST_VALUE", "set")
	if got := EnvOrDefault("CATALOG_TEST_VALUE", "fallback"); got != "set" {
		t.Errorf("got %q", got)
	}
}
