package store

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/clock"
)

// MemoryStore keeps reports in process memory with the same TTL as
// DynamoStore. Used by the local server and tests.
type MemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	reports map[string]memoryEntry
}

type memoryEntry struct {
	report    catalog.BatchReport
	expiresAt time.Time
}

var _ ReportStore = (*MemoryStore)(nil)

// NewMemoryStore returns an empty store. A nil clk means the real clock.
func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real{}
	}
	return &MemoryStore{clock: clk, reports: make(map[string]memoryEntry)}
}

func (m *MemoryStore) Put(_ context.Context, id string, report catalog.BatchReport) error {
	items := make([]catalog.ItemOutcome, len(report.Items))
	copy(items, report.Items)
	report.Items = items

	m.mu.Lock()
	defer m.mu.Unlock()
	now := m.clock.Now()
	m.sweep(now)
	m.reports[id] = memoryEntry{report: report, expiresAt: now.Add(ReportTTL)}
	return nil
}

// sweep drops every expired entry. Callers hold m.mu.
func (m *MemoryStore) sweep(now time.Time) {
	maps.DeleteFunc(m.reports, func(_ string, e memoryEntry) bool {
		return !now.Before(e.expiresAt)
	})
}

func (m *MemoryStore) Get(_ context.Context, id string) (*catalog.BatchReport, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.reports[id]
	if !ok {
		return nil, nil
	}
	if !m.clock.Now().Before(e.expiresAt) {
		delete(m.reports, id)
		return nil, nil
	}
	r := e.report
	r.Items = make([]catalog.ItemOutcome, len(e.report.Items))
	copy(r.Items, e.report.Items)
	return &r, nil
}
