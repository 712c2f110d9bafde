// Package report assembles item outcomes into a BatchReport.
package report

import "github.com/fpang/product-catalog/internal/catalog"

// Aggregator appends outcomes in the order given and keeps the summary
// counters in step. It does not reorder or de-duplicate: two outcomes with
// the same image name are separate entries. Not safe for concurrent use.
type Aggregator struct {
	items     []catalog.ItemOutcome
	completed int
	failed    int
}

// New returns an Aggregator with room for expected outcomes.
func New(expected int) *Aggregator {
	return &Aggregator{items: make([]catalog.ItemOutcome, 0, expected)}
}

// Append adds outcomes to the end of the report.
func (a *Aggregator) Append(outcomes ...catalog.ItemOutcome) {
	for _, o := range outcomes {
		switch o.Status {
		case catalog.StatusCompleted:
			a.completed++
		default:
			a.failed++
		}
		a.items = append(a.items, o)
	}
}

// Len returns the number of outcomes appended so far.
func (a *Aggregator) Len() int { return len(a.items) }

// Completed returns the number of completed outcomes so far.
func (a *Aggregator) Completed() int { return a.completed }

// Failed returns the number of failed outcomes so far.
func (a *Aggregator) Failed() int { return a.failed }

// Report returns a snapshot of the current report. Later appends do not
// affect a returned snapshot.
func (a *Aggregator) Report() catalog.BatchReport {
	items := make([]catalog.ItemOutcome, len(a.items))
	copy(items, a.items)
	return catalog.BatchReport{
		TotalCount:     len(items),
		CompletedCount: a.completed,
		FailedCount:    a.failed,
		Items:          items,
	}
}

// Consistent reports whether r satisfies completed + failed == total == len(items).
func Consistent(r catalog.BatchReport) bool {
	return r.CompletedCount+r.FailedCount == r.TotalCount && r.TotalCount == len(r.Items)
}
