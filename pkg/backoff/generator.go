// Package backoff provides restartable delay generators for the retry and
// reconnect loops. Each loop instantiates a fresh Sequence so a prior burst
// of failures never biases the next one (see spec design note on
// "backoff generators as restartable lazy sequences").
package backoff

import (
	"time"

	cenkaltibackoff "github.com/cenkalti/backoff/v4"
)

// Sequence yields successive delays. It never terminates on its own; the
// caller's own budget (attempt count, deadline) bounds the loop.
type Sequence interface {
	Next() time.Duration
}

// Factory produces a fresh Sequence, instantiated once per retry or
// reconnect loop invocation.
type Factory func() Sequence

type exponentialSequence struct {
	b *cenkaltibackoff.ExponentialBackOff
}

func (s *exponentialSequence) Next() time.Duration {
	d := s.b.NextBackOff()
	if d == cenkaltibackoff.Stop {
		// MaxElapsedTime is disabled below, so NextBackOff never
		// actually returns Stop; this is a defensive floor.
		return s.b.MaxInterval
	}
	return d
}

// NewExponentialFactory builds a Factory producing an exponential backoff
// with multiplicative jitter, the shape used throughout this package's
// default generators (retry_delay_low/high, reconnect_delay).
func NewExponentialFactory(initial, max time.Duration, multiplier, jitter float64) Factory {
	return func() Sequence {
		b := cenkaltibackoff.NewExponentialBackOff()
		b.InitialInterval = initial
		b.MaxInterval = max
		b.Multiplier = multiplier
		b.RandomizationFactor = jitter
		b.MaxElapsedTime = 0 // never self-terminate; the owning loop governs
		b.Reset()
		return &exponentialSequence{b: b}
	}
}

// DefaultRetryDelayLow is the generic-transient-error backoff: base 500ms,
// capped at 30x (15s), growth x3, ±25% jitter.
func DefaultRetryDelayLow() Factory {
	return NewExponentialFactory(500*time.Millisecond, 15*time.Second, 3, 0.25)
}

// DefaultRetryDelayHigh is the endpoint-error-budget backoff: base 15s,
// capped at 4x (60s), growth x2, ±25% jitter.
func DefaultRetryDelayHigh() Factory {
	return NewExponentialFactory(15*time.Second, 60*time.Second, 2, 0.25)
}

// DefaultReconnectDelay is the session-reconnect backoff: base 500ms,
// capped at 64x (32s), growth x2, ±25% jitter.
func DefaultReconnectDelay() Factory {
	return NewExponentialFactory(500*time.Millisecond, 32*time.Second, 2, 0.25)
}

// PageSplitDelay maps a page count to the anti-split wait budget.
type PageSplitDelay func(pages int) time.Duration

// DefaultPageSplitDelay is pages*75ms + 2500ms.
func DefaultPageSplitDelay(pages int) time.Duration {
	return time.Duration(pages)*75*time.Millisecond + 2500*time.Millisecond
}
