// Package retry runs fallible calls under a bounded exponential backoff
// policy. Provider errors that carry an explicit retry-after hint override
// the computed delay.
package retry

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/fpang/product-catalog/internal/clock"
)

// Policy configures Do.
type Policy struct {
	// MaxAttempts is the total number of calls, including the first.
	// Values below 1 are treated as 1.
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64

	// Clock drives the sleeps between attempts. Nil means clock.Real.
	Clock clock.Clock
	// Detach hands each attempt context.WithoutCancel(ctx). Cancelling ctx
	// then stops further attempts and waits but not a call in flight.
	Detach bool
	// OnRetry, if set, is called before each sleep.
	OnRetry func(Event)
}

// Event describes one scheduled retry.
type Event struct {
	// Attempt is the 1-based number of the attempt that just failed.
	Attempt int
	Delay   time.Duration
	Err     error
}

// RetryAfterer is implemented by errors that know how long the caller
// should wait, typically from a rate-limit response.
type RetryAfterer interface {
	RetryAfter() (time.Duration, bool)
}

// Delay returns the backoff before retry number i (0-based):
// min(MaxDelay, BaseDelay * BackoffFactor^i).
func (p Policy) Delay(i int) time.Duration {
	factor := p.BackoffFactor
	if factor < 1 {
		factor = 1
	}
	d := float64(p.BaseDelay) * math.Pow(factor, float64(i))
	if p.MaxDelay > 0 && d > float64(p.MaxDelay) {
		return p.MaxDelay
	}
	if d > math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(d)
}

// HintFrom extracts a retry-after hint from anywhere in err's chain.
func HintFrom(err error) (time.Duration, bool) {
	var ra RetryAfterer
	if errors.As(err, &ra) {
		if d, ok := ra.RetryAfter(); ok && d >= 0 {
			return d, true
		}
	}
	return 0, false
}

// Do calls op until it succeeds or MaxAttempts calls have failed, sleeping
// between attempts. The last error is returned unchanged. If ctx is done
// while waiting, the last error is joined with ctx.Err().
func Do[T any](ctx context.Context, p Policy, op func(context.Context) (T, error)) (T, error) {
	clk := p.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	attempts := max(p.MaxAttempts, 1)

	opCtx := ctx
	if p.Detach {
		opCtx = context.WithoutCancel(ctx)
	}

	var zero T
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		v, err := op(opCtx)
		if err == nil {
			return v, nil
		}
		lastErr = err
		if attempt == attempts {
			break
		}

		delay := p.Delay(attempt - 1)
		if hint, ok := HintFrom(err); ok {
			delay = hint
		}
		if p.OnRetry != nil {
			p.OnRetry(Event{Attempt: attempt, Delay: delay, Err: err})
		}
		if serr := clk.Sleep(ctx, delay); serr != nil {
			return zero, errors.Join(lastErr, serr)
		}
	}
	return zero, lastErr
}
