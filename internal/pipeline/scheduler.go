// Package pipeline runs validated work items through storage upload and
// description, in fixed-size groups of bounded concurrency, and assembles
// the ordered report.
package pipeline

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/fpang/product-catalog/internal/catalog"
	"github.com/fpang/product-catalog/internal/clock"
	"github.com/fpang/product-catalog/internal/config"
	"github.com/fpang/product-catalog/internal/describe"
	"github.com/fpang/product-catalog/internal/metrics"
	"github.com/fpang/product-catalog/internal/report"
	"github.com/fpang/product-catalog/internal/retry"
	"github.com/fpang/product-catalog/internal/storage"
)

// Scheduler owns one request's processing. The zero values of Clock and
// Recorder mean the real clock and no metrics.
type Scheduler struct {
	Uploader  storage.Uploader
	Describer describe.Describer
	Limits    config.Limits
	Clock     clock.Clock
	Recorder  metrics.Sink
}

// Progress is reported after every sub-chunk settles.
type Progress struct {
	// Group is 1-based.
	Group     int
	Groups    int
	Processed int
	Total     int
	Completed int
	Failed    int
}

// Partition splits items into contiguous groups of at most size elements,
// preserving order. A non-positive size yields a single group. The groups
// share items' backing array.
func Partition[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(items)
	}
	groups := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		groups = append(groups, items[start:end:end])
	}
	return groups
}

// Run processes items and returns the report. Per-item failures never fail
// the run. An error is returned only when ctx is cancelled, together with
// the outcomes settled before the cancellation was observed.
func (s *Scheduler) Run(ctx context.Context, items []catalog.WorkItem, progress func(Progress)) (catalog.BatchReport, error) {
	clk := s.clock()
	agg := report.New(len(items))
	groups := Partition(items, s.Limits.BatchSize)
	chunkSize := max(s.Limits.ConcurrentRequests, 1)

	var totalChunks int
	for _, g := range groups {
		totalChunks += (len(g) + chunkSize - 1) / chunkSize
	}

	log.Info().
		Int("items", len(items)).
		Int("groups", len(groups)).
		Int("batch_size", s.Limits.BatchSize).
		Int("concurrency", chunkSize).
		Msg("Starting catalogue run")

	dispatched := 0
	for gi, group := range groups {
		log.Debug().
			Int("group", gi+1).
			Int("groups", len(groups)).
			Int("items", len(group)).
			Msg("Processing group")

		for _, chunk := range Partition(group, chunkSize) {
			if err := ctx.Err(); err != nil {
				return s.abort(agg, err)
			}

			outcomes := s.runChunk(ctx, chunk)
			if err := ctx.Err(); err != nil {
				return s.abort(agg, err)
			}
			agg.Append(outcomes...)
			dispatched++

			p := Progress{
				Group:     gi + 1,
				Groups:    len(groups),
				Processed: agg.Len(),
				Total:     len(items),
				Completed: agg.Completed(),
				Failed:    agg.Failed(),
			}
			log.Info().
				Int("group", p.Group).
				Int("groups", p.Groups).
				Int("processed", p.Processed).
				Int("total", p.Total).
				Int("failed", p.Failed).
				Msg("Batch progress")
			if progress != nil {
				progress(p)
			}

			if dispatched < totalChunks && s.Limits.RateLimitDelay > 0 {
				if err := clk.Sleep(ctx, s.Limits.RateLimitDelay); err != nil {
					return s.abort(agg, err)
				}
			}
		}
	}

	r := agg.Report()
	log.Info().
		Int("total", r.TotalCount).
		Int("completed", r.CompletedCount).
		Int("failed", r.FailedCount).
		Msg("Catalogue run complete")
	return r, nil
}

func (s *Scheduler) abort(agg *report.Aggregator, err error) (catalog.BatchReport, error) {
	r := agg.Report()
	log.Warn().
		Err(err).
		Int("settled", r.TotalCount).
		Msg("Catalogue run cancelled")
	return r, err
}

// runChunk dispatches every item of chunk at once and waits for all of them.
// Each goroutine writes only its own slot, so the result is in input order.
// Calls already under way finish after ctx is cancelled, but no new attempt
// starts.
func (s *Scheduler) runChunk(ctx context.Context, chunk []catalog.WorkItem) []catalog.ItemOutcome {
	start := s.clock().Now()
	outcomes := make([]catalog.ItemOutcome, len(chunk))

	var wg sync.WaitGroup
	for i, item := range chunk {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = s.processItem(ctx, item, start)
		}()
	}
	wg.Wait()

	s.recorder().BatchDone(len(chunk), s.clock().Now().Sub(start))
	return outcomes
}

// processItem uploads and describes one item concurrently. When both calls
// fail the upload error is reported.
func (s *Scheduler) processItem(ctx context.Context, item catalog.WorkItem, start time.Time) (out catalog.ItemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			out = catalog.Failed(item.FileName, fmt.Sprintf("panic: %v", r), s.elapsedMs(start))
		}
		s.recorder().ItemSettled(out.Status.String(), time.Duration(out.ProcessingTimeMs)*time.Millisecond)
	}()

	var (
		ref     string
		fields  catalog.ProductFields
		upErr   error
		descErr error
	)
	var g errgroup.Group
	g.Go(recovered(item.FileName, "upload", func() error {
		ref, upErr = retry.Do(ctx, s.policy(s.Limits.Upload, "upload", item.FileName), func(ctx context.Context) (string, error) {
			return s.Uploader.Upload(ctx, item.Data, item.FileName, item.MIMEType)
		})
		return upErr
	}))
	g.Go(recovered(item.FileName, "describe", func() error {
		fields, descErr = retry.Do(ctx, s.policy(s.Limits.Describe, "describe", item.FileName), func(ctx context.Context) (catalog.ProductFields, error) {
			return s.Describer.Describe(ctx, item.Data, item.MIMEType)
		})
		return descErr
	}))
	panicErr := g.Wait()

	elapsed := s.elapsedMs(start)
	switch {
	case upErr != nil:
		log.Error().Err(upErr).Str("image", item.FileName).Msg("Upload failed")
		return catalog.Failed(item.FileName, upErr.Error(), elapsed)
	case descErr != nil:
		log.Error().Err(descErr).Str("image", item.FileName).Msg("Description failed")
		return catalog.Failed(item.FileName, descErr.Error(), elapsed)
	case panicErr != nil:
		return catalog.Failed(item.FileName, panicErr.Error(), elapsed)
	}

	log.Debug().
		Str("image", item.FileName).
		Str("url", ref).
		Int64("elapsed_ms", elapsed).
		Msg("Item completed")
	return catalog.Completed(item.FileName, fields, ref, elapsed)
}

// recovered converts a panic in fn into an error so one bad item cannot
// take down its siblings.
func recovered(name, op string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error().
					Str("image", name).
					Str("operation", op).
					Interface("panic", r).
					Bytes("stack", debug.Stack()).
					Msg("Recovered panic in item task")
				err = fmt.Errorf("%s panic: %v", op, r)
			}
		}()
		return fn()
	}
}

func (s *Scheduler) policy(base retry.Policy, op, name string) retry.Policy {
	p := base
	p.Clock = s.clock()
	p.Detach = true
	rec := s.recorder()
	p.OnRetry = func(e retry.Event) {
		log.Warn().
			Err(e.Err).
			Str("image", name).
			Str("operation", op).
			Int("attempt", e.Attempt).
			Dur("delay", e.Delay).
			Msg("Retrying")
		rec.Retried(op)
	}
	return p
}

func (s *Scheduler) elapsedMs(start time.Time) int64 {
	return s.clock().Now().Sub(start).Milliseconds()
}

func (s *Scheduler) clock() clock.Clock {
	if s.Clock == nil {
		return clock.Real{}
	}
	return s.Clock
}

func (s *Scheduler) recorder() metrics.Sink {
	if s.Recorder == nil {
		return metrics.Nop{}
	}
	return s.Recorder
}
