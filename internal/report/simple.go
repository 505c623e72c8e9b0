package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/nao1215/webmirror/internal/model"
)

// SimpleWriter outputs a human-readable text summary.
//
// Design decision: We use plain text with ASCII formatting rather than
// ANSI colors because:
// 1. It works in all terminals without compatibility issues
// 2. It's easier to pipe to files or other tools
// 3. The summary usually goes to stderr beside structured logs
type SimpleWriter struct {
	baseWriter

	// verbose enables the per-error-kind breakdown.
	verbose bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithVerbose enables verbose output with additional details.
func WithVerbose(verbose bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.verbose = verbose
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write outputs the summary in human-readable format.
func (w *SimpleWriter) Write(summary *Summary) (int, error) {
	var sb strings.Builder

	sb.WriteString("Crawl summary\n")
	sb.WriteString("=============\n")
	for _, seed := range summary.Seeds {
		fmt.Fprintf(&sb, "Seed:        %s\n", seed)
	}
	fmt.Fprintf(&sb, "Duration:    %s\n", summary.Duration.Round(time.Millisecond))
	fmt.Fprintf(&sb, "Attempted:   %d\n", summary.Stats.URLsAttempted)
	fmt.Fprintf(&sb, "Succeeded:   %d\n", summary.Stats.URLsSucceeded)
	fmt.Fprintf(&sb, "Failed:      %d\n", summary.Stats.URLsFailed)
	fmt.Fprintf(&sb, "Skipped:     %d\n", summary.Stats.URLsSkipped)
	fmt.Fprintf(&sb, "Downloaded:  %s\n", formatBytes(summary.Stats.BytesDownloaded))

	if len(summary.Counts) > 0 {
		sb.WriteString("\nFrontier state\n")
		for _, status := range []model.Status{
			model.StatusDone, model.StatusErrored, model.StatusSkipped,
			model.StatusPending, model.StatusInProgress,
		} {
			if n, ok := summary.Counts[status]; ok && n > 0 {
				fmt.Fprintf(&sb, "  %-12s %d\n", status, n)
			}
		}
	}

	if w.verbose && len(summary.Stats.ErrorCounts) > 0 {
		sb.WriteString("\nErrors by kind\n")
		kinds := make([]string, 0, len(summary.Stats.ErrorCounts))
		for kind := range summary.Stats.ErrorCounts {
			kinds = append(kinds, kind)
		}
		sort.Strings(kinds)
		for _, kind := range kinds {
			fmt.Fprintf(&sb, "  %-20s %d\n", kind, summary.Stats.ErrorCounts[kind])
		}
	}

	if summary.Stopped {
		sb.WriteString("\nCrawl was stopped before the frontier was exhausted.\n")
	}
	fmt.Fprintf(&sb, "\nExit status: %d\n", summary.ExitStatus)

	return io.WriteString(w.output, sb.String())
}
