package stats

import (
	"sync"
	"time"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/model"
)

// Aggregator accumulates crawl counters. Pipeline completions are the
// only writers; everyone else reads immutable snapshots.
type Aggregator struct {
	mu sync.Mutex

	start time.Time
	end   time.Time

	attempted int64
	succeeded int64
	failed    int64
	skipped   int64
	bytes     int64

	// errorCounts tracks occurrences per error kind name.
	errorCounts map[string]int64

	// exitClasses tracks which exit status classes were observed.
	exitClasses map[int]bool

	// stopped is set when the crawl was halted by the extension contract
	// or an operator interrupt rather than frontier exhaustion.
	stopped bool
}

// NewAggregator creates an aggregator with the clock not yet running.
func NewAggregator() *Aggregator {
	return &Aggregator{
		errorCounts: make(map[string]int64),
		exitClasses: make(map[int]bool),
	}
}

// Start marks the crawl's beginning.
func (a *Aggregator) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.start = time.Now()
}

// Finish marks the crawl's end.
func (a *Aggregator) Finish() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.end = time.Now()
}

// RecordAttempt counts a record handed to the pipeline.
func (a *Aggregator) RecordAttempt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.attempted++
}

// RecordSuccess counts a record that reached done, with its payload size.
func (a *Aggregator) RecordSuccess(bytes int64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.succeeded++
	a.bytes += bytes
}

// RecordServerFailure counts a record that ended errored because the
// server answered with an error response.
func (a *Aggregator) RecordServerFailure() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++
	a.errorCounts["server_error"]++
	a.exitClasses[model.ExitServerError] = true
}

// RecordFailure counts a record that ended errored, classified by the
// fetch error kind.
func (a *Aggregator) RecordFailure(kind fetch.ErrorKind) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.failed++
	if kind != fetch.KindNone {
		a.errorCounts[string(kind)]++
	}
	a.exitClasses[exitClassFor(kind)] = true
}

// RecordSkipped counts a record rejected before network I/O.
func (a *Aggregator) RecordSkipped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.skipped++
}

// RecordFileIOError notes a failed local write (archive output).
func (a *Aggregator) RecordFileIOError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorCounts["file_io_error"]++
	a.exitClasses[model.ExitFileIOError] = true
}

// RecordParseError notes a document that could not be parsed.
func (a *Aggregator) RecordParseError() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.errorCounts["parse_error"]++
	a.exitClasses[model.ExitParseError] = true
}

// RecordStopped notes that the crawl halted before frontier exhaustion.
func (a *Aggregator) RecordStopped() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.stopped = true
}

// Stopped reports whether an early halt was recorded.
func (a *Aggregator) Stopped() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stopped
}

// Snapshot returns the current totals as a serializable view.
func (a *Aggregator) Snapshot() model.StatsSnapshot {
	a.mu.Lock()
	defer a.mu.Unlock()

	snap := model.StatsSnapshot{
		URLsAttempted:   a.attempted,
		URLsSucceeded:   a.succeeded,
		URLsFailed:      a.failed,
		URLsSkipped:     a.skipped,
		BytesDownloaded: a.bytes,
	}
	if !a.start.IsZero() {
		snap.Start = a.start.Unix()
	}
	if !a.end.IsZero() {
		snap.End = a.end.Unix()
	}
	if len(a.errorCounts) > 0 {
		snap.ErrorCounts = make(map[string]int64, len(a.errorCounts))
		for k, v := range a.errorCounts {
			snap.ErrorCounts[k] = v
		}
	}
	return snap
}

// Duration returns the crawl's elapsed wall-clock time.
func (a *Aggregator) Duration() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.start.IsZero() {
		return 0
	}
	end := a.end
	if end.IsZero() {
		end = time.Now()
	}
	return end.Sub(a.start)
}

// ExitStatus computes the default process exit code: zero when every
// attempt succeeded, otherwise the lowest (most serious) observed error
// class. A crawl stopped early reports at least a generic error.
func (a *Aggregator) ExitStatus() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	code := 0
	for class := range a.exitClasses {
		if code == 0 || class < code {
			code = class
		}
	}
	if code == 0 && a.stopped {
		code = model.ExitGenericError
	}
	return code
}

// exitClassFor maps a fetch error kind to its exit status class.
func exitClassFor(kind fetch.ErrorKind) int {
	switch kind {
	case fetch.KindTimeout, fetch.KindConnectionRefused,
		fetch.KindConnectionReset, fetch.KindDNSFailure:
		return model.ExitNetworkFailure
	case fetch.KindMalformedResponse, fetch.KindProtocolViolation:
		return model.ExitProtocolError
	default:
		return model.ExitGenericError
	}
}
