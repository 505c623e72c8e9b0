// Package waiter provides retry backoff schedules for the crawl engine.
//
// A Waiter maps an attempt count to the delay before the next attempt of
// the same URL. The frontier stores the resulting eligibility time, so the
// schedule itself is stateless.
package waiter

import (
	"math"
	"math/rand/v2"
	"time"
)

// Waiter computes the delay before retrying a failed fetch.
//
// Design decision: We make the schedule a pure function of the attempt
// number rather than a stateful counter because the frontier persists
// per-record try counts. A resumed crawl then produces the same delays
// as an uninterrupted one without serializing waiter state.
type Waiter interface {
	// Delay returns the wait before attempt number attempt (1-based,
	// counting the attempt about to be made).
	Delay(attempt int) time.Duration
}

// Linear increases the delay by a fixed step per attempt, capped at Max.
// This matches classic polite-retry behavior: wait, wait+step, wait+2*step.
type Linear struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Step is added per additional attempt.
	Step time.Duration

	// Max caps the delay. Zero means no cap.
	Max time.Duration

	// Jitter perturbs the delay within a factor of 0.5x to 1.5x.
	Jitter bool
}

// Delay implements Waiter.
func (w Linear) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := w.Base + time.Duration(attempt-1)*w.Step
	if w.Max > 0 && d > w.Max {
		d = w.Max
	}
	return applyJitter(d, w.Jitter)
}

// Exponential doubles the delay per attempt, capped at Max.
type Exponential struct {
	// Base is the delay before the first retry.
	Base time.Duration

	// Max caps the delay. Zero means no cap.
	Max time.Duration

	// Jitter perturbs the delay within a factor of 0.5x to 1.5x.
	Jitter bool
}

// Delay implements Waiter.
func (w Exponential) Delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := time.Duration(float64(w.Base) * math.Pow(2, float64(attempt-1)))
	if d < w.Base {
		// Doubling overflowed. Saturate instead of collapsing to an
		// immediate retry; half the range keeps jitter in bounds.
		d = time.Duration(math.MaxInt64 / 2)
	}
	if w.Max > 0 && d > w.Max {
		d = w.Max
	}
	return applyJitter(d, w.Jitter)
}

// applyJitter perturbs d within [0.5d, 1.5d) when enabled.
func applyJitter(d time.Duration, enabled bool) time.Duration {
	if !enabled || d <= 0 {
		return d
	}
	factor := 0.5 + rand.Float64()
	return time.Duration(float64(d) * factor)
}
