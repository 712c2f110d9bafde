package metrics

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func captureEMF(t *testing.T, fn func()) []map[string]any {
	t.Helper()
	var buf bytes.Buffer
	prev := SetOutput(&buf)
	defer SetOutput(prev)

	fn()

	var docs []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var doc map[string]any
		if err := json.Unmarshal([]byte(line), &doc); err != nil {
			t.Fatalf("failed to parse EMF output as JSON: %v\nOutput: %s", err, line)
		}
		docs = append(docs, doc)
	}
	return docs
}

func TestNew_AutoDimension(t *testing.T) {
	initOnce.Do(func() {})
	functionName = "TestFunction"
	defer func() { functionName = "" }()

	r := New("TestNamespace")
	if r.namespace != "TestNamespace" {
		t.Errorf("expected namespace TestNamespace, got %s", r.namespace)
	}
	if r.dimensions["FunctionName"] != "TestFunction" {
		t.Errorf("expected FunctionName dimension TestFunction, got %s", r.dimensions["FunctionName"])
	}
}

func TestRecorder_FlushOutput(t *testing.T) {
	initOnce.Do(func() {})
	functionName = ""

	docs := captureEMF(t, func() {
		New(Namespace).
			Dimension("Operation", "describe").
			Metric("LatencyMs", 1234.5, UnitMilliseconds).
			Count("CallCount").
			Property("requestId", "abc-123").
			Flush()
	})
	if len(docs) != 1 {
		t.Fatalf("expected one EMF line, got %d", len(docs))
	}
	doc := docs[0]

	awsMap, ok := doc["_aws"].(map[string]any)
	if !ok {
		t.Fatal("missing _aws directive in EMF output")
	}
	cw := awsMap["CloudWatchMetrics"].([]any)[0].(map[string]any)
	if cw["Namespace"] != Namespace {
		t.Errorf("namespace = %v", cw["Namespace"])
	}
	metricsList := cw["Metrics"].([]any)
	if len(metricsList) != 2 {
		t.Errorf("expected 2 metric definitions, got %d", len(metricsList))
	}
	if first := metricsList[0].(map[string]any)["Name"]; first != "CallCount" {
		t.Errorf("metric definitions should be sorted, first = %v", first)
	}
	if doc["Operation"] != "describe" || doc["LatencyMs"] != 1234.5 || doc["requestId"] != "abc-123" {
		t.Errorf("top-level fields missing: %v", doc)
	}
}

func TestRecorder_EmptyFlushWritesNothing(t *testing.T) {
	docs := captureEMF(t, func() {
		New(Namespace).Dimension("Only", "dims").Flush()
	})
	if len(docs) != 0 {
		t.Errorf("expected no output, got %v", docs)
	}
}

func TestEMFSink(t *testing.T) {
	initOnce.Do(func() {})
	functionName = ""

	docs := captureEMF(t, func() {
		var s Sink = EMF{}
		s.ItemSettled("failed", 1500*time.Millisecond)
		s.SkippedFiles(0)
		s.SkippedFiles(2)
		s.Request("/api/create-catalogue", 200, time.Second)
	})
	if len(docs) != 3 {
		t.Fatalf("expected 3 lines (zero skips suppressed), got %d", len(docs))
	}
	if docs[0]["Status"] != "failed" || docs[0]["ItemProcessingMs"] != float64(1500) {
		t.Errorf("item doc = %v", docs[0])
	}
	if docs[1]["SkippedFiles"] != float64(2) {
		t.Errorf("skipped doc = %v", docs[1])
	}
	if docs[2]["Endpoint"] != "/api/create-catalogue" {
		t.Errorf("request doc = %v", docs[2])
	}
}

func TestPrometheusSink(t *testing.T) {
	p := NewPrometheus()
	var s Sink = Multi{Nop{}, p}

	s.ItemSettled("completed", time.Second)
	s.ItemSettled("completed", time.Second)
	s.ItemSettled("failed", time.Second)
	s.Retried("describe")
	s.BatchDone(20, time.Second)
	s.SkippedFiles(3)
	s.Request("/api/health", 200, time.Millisecond)

	if got := testutil.ToFloat64(p.items.WithLabelValues("completed")); got != 2 {
		t.Errorf("completed = %v, want 2", got)
	}
	if got := testutil.ToFloat64(p.retries.WithLabelValues("describe")); got != 1 {
		t.Errorf("retries = %v, want 1", got)
	}
	if got := testutil.ToFloat64(p.skipped); got != 3 {
		t.Errorf("skipped = %v, want 3", got)
	}
	if got := testutil.ToFloat64(p.requests.WithLabelValues("/api/health", "200")); got != 1 {
		t.Errorf("requests = %v, want 1", got)
	}
}
