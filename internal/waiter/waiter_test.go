package waiter

import (
	"testing"
	"time"
)

// TestLinearDelay tests the linear schedule.
func TestLinearDelay(t *testing.T) {
	t.Parallel()

	w := Linear{Base: time.Second, Step: time.Second, Max: 3 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, time.Second},
		{2, 2 * time.Second},
		{3, 3 * time.Second},
		{10, 3 * time.Second}, // capped
		{0, time.Second},      // clamped to first attempt
	}

	for _, tt := range tests {
		if got := w.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// TestExponentialDelay tests the doubling schedule.
func TestExponentialDelay(t *testing.T) {
	t.Parallel()

	w := Exponential{Base: 250 * time.Millisecond, Max: 2 * time.Second}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 250 * time.Millisecond},
		{2, 500 * time.Millisecond},
		{3, time.Second},
		{4, 2 * time.Second},
		{5, 2 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := w.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

// TestExponentialOverflowSaturates verifies that an uncapped schedule
// never returns a zero or negative delay once doubling overflows.
func TestExponentialOverflowSaturates(t *testing.T) {
	t.Parallel()

	w := Exponential{Base: time.Second}
	for _, attempt := range []int{70, 500, 1 << 20} {
		if got := w.Delay(attempt); got < time.Second {
			t.Errorf("Delay(%d) = %v, want a saturated delay", attempt, got)
		}
	}
}

// TestJitterBounds verifies jittered delays stay within the 0.5x-1.5x band.
func TestJitterBounds(t *testing.T) {
	t.Parallel()

	w := Exponential{Base: time.Second, Max: 10 * time.Second, Jitter: true}

	for range 100 {
		d := w.Delay(1)
		if d < 500*time.Millisecond || d >= 1500*time.Millisecond {
			t.Fatalf("jittered delay %v outside [500ms, 1.5s)", d)
		}
	}
}
