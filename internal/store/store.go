// Package store persists finished batch reports so they can be fetched and
// exported after the request that produced them has returned.
//
// The DynamoDB layout is a single table keyed by PK = REPORT#{id} and
// SK = META. A TTL attribute (expiresAt) removes records after ReportTTL.
package store

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/fpang/product-catalog/internal/catalog"
)

// ReportTTL is how long a stored report stays retrievable.
const ReportTTL = 24 * time.Hour

// ReportStore saves and loads reports by ID. Implementations are safe for
// concurrent use.
type ReportStore interface {
	// Put creates or replaces the report stored under id.
	Put(ctx context.Context, id string, report catalog.BatchReport) error

	// Get returns the report stored under id. Returns nil, nil if not found.
	Get(ctx context.Context, id string) (*catalog.BatchReport, error)
}

// NewReportID returns a fresh random report ID.
func NewReportID() string {
	return uuid.NewString()
}

// ValidID reports whether id has the shape NewReportID produces.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil && len(id) == 36
}
