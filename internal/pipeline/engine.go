package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/webmirror/internal/frontier"
	"github.com/nao1215/webmirror/internal/hook"
	"github.com/nao1215/webmirror/internal/record"
	"github.com/nao1215/webmirror/internal/stats"
)

// idlePoll bounds how long the dequeue loop sleeps while waiting for
// in-flight work to finish or a retry backoff to drain.
const idlePoll = 100 * time.Millisecond

// Engine drives the crawl: it dequeues eligible records from the
// frontier and hands each to the processor on a bounded worker pool.
//
// Design decision: Workers share one errgroup with a concurrency limit
// rather than a hand-built channel pool because:
//  1. SetLimit gives bounded parallelism with natural backpressure on Go
//  2. The derived context cancels all in-flight fetches on failure
//  3. Wait doubles as the drain barrier at shutdown
type Engine struct {
	processor *Processor
	frontier  *frontier.Frontier
	stats     *stats.Aggregator
	hooks     *hook.Runner
	store     record.Store

	// concurrency is the number of records processed in parallel.
	concurrency int

	// delay is the politeness pause between dequeues.
	delay time.Duration

	// stopped is set by Stop, a callback stop request, or cancellation.
	stopped atomic.Bool

	logger *slog.Logger
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithConcurrency sets the number of parallel workers.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithPolitenessDelay sets the pause between dequeues.
func WithPolitenessDelay(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.delay = d
		}
	}
}

// WithEngineLogger sets the engine's logger.
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates a crawl engine over its collaborators.
func NewEngine(processor *Processor, fr *frontier.Frontier, agg *stats.Aggregator, hooks *hook.Runner, store record.Store, opts ...EngineOption) *Engine {
	e := &Engine{
		processor:   processor,
		frontier:    fr,
		stats:       agg,
		hooks:       hooks,
		store:       store,
		concurrency: 1,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Stop requests an orderly shutdown. In-flight records finish; nothing
// new is dequeued. Safe to call from any goroutine, including signal
// handlers.
func (e *Engine) Stop() {
	if e.stopped.CompareAndSwap(false, true) {
		e.stats.RecordStopped()
		e.logger.Info("stop requested, draining in-flight work")
	}
}

// Run crawls until the frontier is exhausted, a stop is requested, or
// the context is canceled. It drains workers, flushes the archive, and
// fires the finishing callback before returning.
func (e *Engine) Run(ctx context.Context) error {
	e.stats.Start()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	loopErr := e.dequeueLoop(gctx, g)

	if err := g.Wait(); err != nil && loopErr == nil {
		loopErr = err
	}
	if ctx.Err() != nil {
		e.Stop()
	}

	if err := e.store.Close(); err != nil {
		e.logger.ErrorContext(ctx, "failed to flush archive", slog.Any("error", err))
		e.stats.RecordFileIOError()
	}
	e.stats.Finish()
	e.hooks.FinishingStatistics(ctx, e.stats.Snapshot())

	return loopErr
}

// dequeueLoop feeds the worker pool until no work remains.
func (e *Engine) dequeueLoop(ctx context.Context, g *errgroup.Group) error {
	for {
		if e.stopped.Load() || ctx.Err() != nil {
			return nil
		}

		rec, err := e.frontier.DequeueNext(ctx)
		if err != nil {
			return fmt.Errorf("failed to dequeue next record: %w", err)
		}
		if rec == nil {
			exhausted, err := e.frontier.IsExhausted(ctx)
			if err != nil {
				return fmt.Errorf("failed to check frontier exhaustion: %w", err)
			}
			if exhausted {
				return nil
			}
			// Work remains but none is eligible yet: either retry
			// backoffs are draining or in-flight records may still
			// discover links.
			wait, err := e.frontier.NextEligibleWait(ctx)
			if err != nil {
				return fmt.Errorf("failed to read backoff wait: %w", err)
			}
			if wait <= 0 || wait > idlePoll {
				wait = idlePoll
			}
			sleepContext(ctx, wait)
			continue
		}

		g.Go(func() error {
			if e.processor.Process(ctx, rec) {
				e.Stop()
			}
			return nil
		})

		if e.delay > 0 {
			sleepContext(ctx, e.delay)
		}
	}
}

// ExitStatus computes the process exit code, giving the exit callback
// the final word over the aggregator's classification.
func (e *Engine) ExitStatus(ctx context.Context) int {
	return e.hooks.ExitStatus(ctx, e.stats.ExitStatus())
}

// sleepContext sleeps for d or until ctx is done, whichever is first.
func sleepContext(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
