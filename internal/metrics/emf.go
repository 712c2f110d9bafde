// Package metrics emits pipeline and request metrics. Two backends exist:
// CloudWatch Embedded Metric Format (EMF) lines on stdout for Lambda, and a
// Prometheus registry for the long-running server. Both sit behind Sink.
//
// See: https://docs.aws.amazon.com/AmazonCloudWatch/latest/monitoring/CloudWatch_Embedded_Metric_Format_Specification.html
package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"sync"
	"time"
)

// Namespace is the CloudWatch namespace for all catalogue metrics.
const Namespace = "ProductCatalog"

// Standard CloudWatch metric units.
const (
	UnitMilliseconds = "Milliseconds"
	UnitCount        = "Count"
	UnitBytes        = "Bytes"
	UnitNone         = "None"
)

type metricDef struct {
	Name string `json:"Name"`
	Unit string `json:"Unit"`
}

// emfDirective is the _aws metadata block required by EMF.
type emfDirective struct {
	Timestamp         int64      `json:"Timestamp"`
	CloudWatchMetrics []cwMetric `json:"CloudWatchMetrics"`
}

type cwMetric struct {
	Namespace  string      `json:"Namespace"`
	Dimensions [][]string  `json:"Dimensions"`
	Metrics    []metricDef `json:"Metrics"`
}

// Recorder accumulates dimensions, metrics, and properties for one EMF line.
// Not safe for concurrent use; create one per observation.
type Recorder struct {
	namespace  string
	dimensions map[string]string
	metrics    map[string]sample
	properties map[string]any
}

type sample struct {
	unit  string
	value float64
}

var (
	// functionName is cached from AWS_LAMBDA_FUNCTION_NAME on first use.
	functionName string
	initOnce     sync.Once

	outMu sync.Mutex
	out   io.Writer = os.Stdout
)

func initFunctionName() {
	functionName = os.Getenv("AWS_LAMBDA_FUNCTION_NAME")
}

// SetOutput redirects EMF lines and returns the previous writer.
func SetOutput(w io.Writer) io.Writer {
	outMu.Lock()
	defer outMu.Unlock()
	prev := out
	out = w
	return prev
}

// New creates a Recorder for namespace. The FunctionName dimension is added
// automatically inside Lambda.
func New(namespace string) *Recorder {
	initOnce.Do(initFunctionName)
	r := &Recorder{
		namespace:  namespace,
		dimensions: make(map[string]string),
		metrics:    make(map[string]sample),
		properties: make(map[string]any),
	}
	if functionName != "" {
		r.dimensions["FunctionName"] = functionName
	}
	return r
}

// Dimension adds an indexed dimension.
func (r *Recorder) Dimension(key, value string) *Recorder {
	r.dimensions[key] = value
	return r
}

// Metric records a named value with a CloudWatch unit. A second call with
// the same name replaces the first.
func (r *Recorder) Metric(name string, value float64, unit string) *Recorder {
	r.metrics[name] = sample{unit: unit, value: value}
	return r
}

// Count records a count metric with value 1.
func (r *Recorder) Count(name string) *Recorder {
	return r.Metric(name, 1, UnitCount)
}

// Duration records d as a millisecond metric.
func (r *Recorder) Duration(name string, d time.Duration) *Recorder {
	return r.Metric(name, float64(d.Milliseconds()), UnitMilliseconds)
}

// Property adds a searchable, non-metric field.
func (r *Recorder) Property(key string, value any) *Recorder {
	r.properties[key] = value
	return r
}

// Flush writes the document as a single JSON line. Recorders with no
// metrics emit nothing. Dimensions and metric values override properties
// of the same name.
func (r *Recorder) Flush() {
	if len(r.metrics) == 0 {
		return
	}

	doc := maps.Clone(r.properties)
	if doc == nil {
		doc = make(map[string]any)
	}
	for k, v := range r.dimensions {
		doc[k] = v
	}
	names := slices.Sorted(maps.Keys(r.metrics))
	defs := make([]metricDef, len(names))
	for i, n := range names {
		m := r.metrics[n]
		defs[i] = metricDef{Name: n, Unit: m.unit}
		doc[n] = m.value
	}
	dims := slices.Sorted(maps.Keys(r.dimensions))
	if dims == nil {
		dims = []string{}
	}
	doc["_aws"] = emfDirective{
		Timestamp: time.Now().UnixMilli(),
		CloudWatchMetrics: []cwMetric{{
			Namespace:  r.namespace,
			Dimensions: [][]string{dims},
			Metrics:    defs,
		}},
	}

	data, err := json.Marshal(doc)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emf: failed to marshal metrics: %v\n", err)
		return
	}

	outMu.Lock()
	defer outMu.Unlock()
	fmt.Fprintln(out, string(data))
}
