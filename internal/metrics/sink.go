package metrics

import (
	"strconv"
	"time"
)

// Sink receives pipeline and request observations. Implementations must be
// safe for concurrent use.
type Sink interface {
	ItemSettled(status string, d time.Duration)
	Retried(operation string)
	BatchDone(items int, d time.Duration)
	SkippedFiles(n int)
	Request(endpoint string, status int, d time.Duration)
	ProviderCall(provider, result string, d time.Duration)
}

// Nop discards everything.
type Nop struct{}

func (Nop) ItemSettled(string, time.Duration)          {}
func (Nop) Retried(string)                             {}
func (Nop) BatchDone(int, time.Duration)               {}
func (Nop) SkippedFiles(int)                           {}
func (Nop) Request(string, int, time.Duration)         {}
func (Nop) ProviderCall(string, string, time.Duration) {}

// EMF writes one EMF line per observation.
type EMF struct {
	Namespace string
}

func (e EMF) ns() string {
	if e.Namespace == "" {
		return Namespace
	}
	return e.Namespace
}

func (e EMF) ItemSettled(status string, d time.Duration) {
	New(e.ns()).
		Dimension("Status", status).
		Duration("ItemProcessingMs", d).
		Count("ItemCount").
		Flush()
}

func (e EMF) Retried(operation string) {
	New(e.ns()).
		Dimension("Operation", operation).
		Count("RetryCount").
		Flush()
}

func (e EMF) BatchDone(items int, d time.Duration) {
	New(e.ns()).
		Duration("BatchLatencyMs", d).
		Metric("BatchItems", float64(items), UnitCount).
		Flush()
}

func (e EMF) SkippedFiles(n int) {
	if n == 0 {
		return
	}
	New(e.ns()).
		Metric("SkippedFiles", float64(n), UnitCount).
		Flush()
}

func (e EMF) Request(endpoint string, status int, d time.Duration) {
	New(e.ns()).
		Dimension("Endpoint", endpoint).
		Duration("RequestLatencyMs", d).
		Count("RequestCount").
		Property("statusCode", strconv.Itoa(status)).
		Flush()
}

func (e EMF) ProviderCall(provider, result string, d time.Duration) {
	New(e.ns()).
		Dimension("Provider", provider).
		Dimension("Result", result).
		Duration("ProviderLatencyMs", d).
		Count("ProviderCallCount").
		Flush()
}

// Multi fans every observation out to each sink in order.
type Multi []Sink

func (m Multi) ItemSettled(status string, d time.Duration) {
	for _, s := range m {
		s.ItemSettled(status, d)
	}
}

func (m Multi) Retried(operation string) {
	for _, s := range m {
		s.Retried(operation)
	}
}

func (m Multi) BatchDone(items int, d time.Duration) {
	for _, s := range m {
		s.BatchDone(items, d)
	}
}

func (m Multi) SkippedFiles(n int) {
	for _, s := range m {
		s.SkippedFiles(n)
	}
}

func (m Multi) Request(endpoint string, status int, d time.Duration) {
	for _, s := range m {
		s.Request(endpoint, status, d)
	}
}

func (m Multi) ProviderCall(provider, result string, d time.Duration) {
	for _, s := range m {
		s.ProviderCall(provider, result, d)
	}
}
