// Package catalog defines the data model shared by every stage of the
// product catalogue pipeline: work items going in, outcomes coming out, and
// the aggregated batch report.
package catalog

import (
	"encoding/json"
	"fmt"
)

// MaxFeatures is the maximum number of feature bullets kept per product.
const MaxFeatures = 3

// WorkItem is one image to be uploaded and described. It is never mutated
// after creation and is consumed exactly once by the scheduler.
type WorkItem struct {
	Data     []byte
	FileName string
	MIMEType string
}

// Size returns the item's payload size in bytes.
func (w WorkItem) Size() int64 { return int64(len(w.Data)) }

// ProductFields is the structured metadata generated for one product image.
type ProductFields struct {
	ProductName string   `json:"productName"`
	Description string   `json:"description"`
	Features    []string `json:"features"`
	Dimensions  string   `json:"dimensions"`
	Materials   string   `json:"materials"`
	Categories  []string `json:"categories"`
}

// Status is the terminal state of one work item.
type Status int

const (
	// StatusCompleted means both upload and description succeeded.
	StatusCompleted Status = iota
	// StatusFailed means at least one external call failed after retries.
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusCompleted:
		return "completed"
	case StatusFailed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// MarshalJSON renders the status as its lowercase name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the lowercase name produced by MarshalJSON.
func (s *Status) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err != nil {
		return err
	}
	switch name {
	case "completed":
		*s = StatusCompleted
	case "failed":
		*s = StatusFailed
	default:
		return fmt.Errorf("unknown status %q", name)
	}
	return nil
}

// ItemOutcome is the result of processing one WorkItem. A completed outcome
// carries Fields and StorageRef; a failed one carries ErrorMessage only.
type ItemOutcome struct {
	ImageName        string         `json:"imageName"`
	Status           Status         `json:"status"`
	Fields           *ProductFields `json:"productFields,omitempty"`
	StorageRef       string         `json:"imageUrl,omitempty"`
	ProcessingTimeMs int64          `json:"processingTime"`
	ErrorMessage     string         `json:"error,omitempty"`
}

// Completed builds a successful outcome.
func Completed(name string, fields ProductFields, ref string, elapsedMs int64) ItemOutcome {
	return ItemOutcome{
		ImageName:        name,
		Status:           StatusCompleted,
		Fields:           &fields,
		StorageRef:       ref,
		ProcessingTimeMs: elapsedMs,
	}
}

// Failed builds a failed outcome. An empty message is replaced so the
// outcome always explains itself.
func Failed(name, message string, elapsedMs int64) ItemOutcome {
	if message == "" {
		message = "unknown error"
	}
	return ItemOutcome{
		ImageName:        name,
		Status:           StatusFailed,
		ProcessingTimeMs: elapsedMs,
		ErrorMessage:     message,
	}
}

// BatchReport is the ordered, aggregated result of one request.
// CompletedCount + FailedCount == TotalCount == len(Items).
type BatchReport struct {
	TotalCount     int           `json:"total"`
	CompletedCount int           `json:"completed"`
	FailedCount    int           `json:"failed"`
	Items          []ItemOutcome `json:"data"`
}
