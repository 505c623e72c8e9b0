package hook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nao1215/webmirror/internal/model"
)

// Runner invokes callbacks with the contract's safety guarantees: each
// call runs synchronously from the caller's point of view, bounded by a
// timeout, and a panic or overrun degrades to the engine default.
//
// Design decision: We run each callback on its own goroutine and wait
// with a timer rather than trusting the callback because:
//  1. The callback is arbitrary external logic; it may hang
//  2. A hung decision point would stall the whole pipeline
//  3. Degrading to the default keeps the crawl deterministic
//
// The goroutine of a timed-out callback is abandoned, not killed; the
// engine never reads its late result.
type Runner struct {
	callbacks Callbacks
	timeout   time.Duration
	logger    *slog.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithTimeout bounds each callback invocation.
func WithTimeout(timeout time.Duration) RunnerOption {
	return func(r *Runner) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithLogger sets the logger for degradation warnings.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = logger
	}
}

// NewRunner wraps callbacks for safe invocation.
func NewRunner(callbacks Callbacks, opts ...RunnerOption) *Runner {
	r := &Runner{
		callbacks: callbacks,
		timeout:   10 * time.Second,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// invoke runs fn with panic containment and the runner's timeout,
// returning def when fn is absent, panics, or overruns.
func invoke[T any](ctx context.Context, r *Runner, point string, def T, fn func() T) T {
	type result struct {
		value    T
		panicked any
	}

	done := make(chan result, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- result{panicked: p}
			}
		}()
		done <- result{value: fn()}
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case res := <-done:
		if res.panicked != nil {
			r.logger.WarnContext(ctx, "callback panicked, using engine default",
				slog.String("point", point),
				slog.String("panic", fmt.Sprint(res.panicked)))
			return def
		}
		return res.value
	case <-timer.C:
		r.logger.WarnContext(ctx, "callback timed out, using engine default",
			slog.String("point", point),
			slog.Duration("timeout", r.timeout))
		return def
	case <-ctx.Done():
		return def
	}
}

// ResolveDNS returns an address override for host, or "" to use the
// engine resolver.
func (r *Runner) ResolveDNS(ctx context.Context, host string) string {
	if r.callbacks.ResolveDNS == nil {
		return ""
	}
	return invoke(ctx, r, "resolve_dns", "", func() string {
		return r.callbacks.ResolveDNS(host)
	})
}

// AcceptURL combines the engine's default verdict with the callback's
// override and returns the final accept decision.
func (r *Runner) AcceptURL(ctx context.Context, item model.Snapshot, defaultAccept bool, reasons []Reason) bool {
	if r.callbacks.AcceptURL == nil {
		return defaultAccept
	}
	verdict := invoke(ctx, r, "accept_url", VerdictDefault, func() Verdict {
		return r.callbacks.AcceptURL(item, defaultAccept, reasons)
	})
	switch verdict {
	case VerdictAccept:
		return true
	case VerdictReject:
		return false
	default:
		return defaultAccept
	}
}

// HandleResponse returns the finish instruction for a completed exchange.
func (r *Runner) HandleResponse(ctx context.Context, item model.Snapshot, resp ResponseView) Action {
	if r.callbacks.HandleResponse == nil {
		return ActionNormal
	}
	return invoke(ctx, r, "handle_response", ActionNormal, func() Action {
		return r.callbacks.HandleResponse(item, resp)
	})
}

// HandleError returns the finish instruction for a failed attempt.
func (r *Runner) HandleError(ctx context.Context, item model.Snapshot, errView ErrorView) Action {
	if r.callbacks.HandleError == nil {
		return ActionNormal
	}
	return invoke(ctx, r, "handle_error", ActionNormal, func() Action {
		return r.callbacks.HandleError(item, errView)
	})
}

// GetURLs returns operator-supplied locators to merge with discovered
// links. Unparseable entries are the caller's problem to skip.
func (r *Runner) GetURLs(ctx context.Context, item model.Snapshot, doc DocumentView) []string {
	if r.callbacks.GetURLs == nil {
		return nil
	}
	return invoke(ctx, r, "get_urls", nil, func() []string {
		return r.callbacks.GetURLs(item, doc)
	})
}

// FinishingStatistics hands the final totals to the callback.
func (r *Runner) FinishingStatistics(ctx context.Context, stats model.StatsSnapshot) {
	if r.callbacks.FinishingStatistics == nil {
		return
	}
	invoke(ctx, r, "finishing_statistics", struct{}{}, func() struct{} {
		r.callbacks.FinishingStatistics(stats)
		return struct{}{}
	})
}

// ExitStatus returns the process exit code, letting the callback replace
// the computed default.
func (r *Runner) ExitStatus(ctx context.Context, defaultCode int) int {
	if r.callbacks.ExitStatus == nil {
		return defaultCode
	}
	return invoke(ctx, r, "exit_status", defaultCode, func() int {
		return r.callbacks.ExitStatus(defaultCode)
	})
}
