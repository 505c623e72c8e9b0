package report

import (
	"fmt"
	"io"
	"time"

	"github.com/nao1215/webmirror/internal/model"
)

// Summary is the material of the end-of-crawl report.
type Summary struct {
	// Seeds are the starting locators of the crawl.
	Seeds []string

	// Stats carries the aggregator totals.
	Stats model.StatsSnapshot

	// Counts is the frontier's final per-status record tally.
	Counts map[model.Status]int64

	// Duration is the crawl's wall-clock time.
	Duration time.Duration

	// ExitStatus is the process exit code the crawl will report.
	ExitStatus int

	// Stopped is true when the crawl halted before frontier exhaustion.
	Stopped bool
}

// Writer defines the interface for summary output.
//
// Design decision: We use an interface to allow different output formats
// and destinations. This enables writing to files, stderr, or network
// connections with the same API.
type Writer interface {
	// Write outputs the summary to the configured destination.
	// Returns the number of bytes written and any error encountered.
	Write(summary *Summary) (int, error)
}

// MultiWriter writes to multiple Writers simultaneously. Useful for
// outputting to both terminal and a report file.
type MultiWriter struct {
	writers []Writer
}

// NewMultiWriter creates a Writer that writes to all provided Writers.
func NewMultiWriter(writers ...Writer) *MultiWriter {
	return &MultiWriter{writers: writers}
}

// Write outputs the summary to all configured Writers.
// Returns the total bytes written. Stops on first error encountered.
func (m *MultiWriter) Write(summary *Summary) (int, error) {
	var total int
	for _, w := range m.writers {
		n, err := w.Write(summary)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}

// formatBytes renders a byte count in a human-friendly unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
