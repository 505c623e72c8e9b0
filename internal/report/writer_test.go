package report

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/nao1215/webmirror/internal/model"
)

// testSummary builds a representative summary.
func testSummary() *Summary {
	return &Summary{
		Seeds: []string{"http://example.com/"},
		Stats: model.StatsSnapshot{
			Start:           1700000000,
			End:             1700000060,
			URLsAttempted:   10,
			URLsSucceeded:   7,
			URLsFailed:      2,
			URLsSkipped:     1,
			BytesDownloaded: 1536,
			ErrorCounts:     map[string]int64{"timeout": 2},
		},
		Counts: map[model.Status]int64{
			model.StatusDone:    7,
			model.StatusErrored: 2,
			model.StatusSkipped: 1,
		},
		Duration:   time.Minute,
		ExitStatus: model.ExitNetworkFailure,
	}
}

// TestSimpleWriter tests the plain text summary.
func TestSimpleWriter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	w := NewSimpleWriter(&sb, WithVerbose(true))

	n, err := w.Write(testSummary())
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != sb.Len() {
		t.Errorf("reported %d bytes, wrote %d", n, sb.Len())
	}

	out := sb.String()
	for _, want := range []string{
		"Seed:        http://example.com/",
		"Succeeded:   7",
		"Failed:      2",
		"1.5 KiB",
		"timeout",
		"Exit status: 4",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestSimpleWriterStopped tests the stopped-crawl note.
func TestSimpleWriterStopped(t *testing.T) {
	t.Parallel()

	summary := testSummary()
	summary.Stopped = true

	var sb strings.Builder
	if _, err := NewSimpleWriter(&sb).Write(summary); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.Contains(sb.String(), "stopped before the frontier was exhausted") {
		t.Error("output missing the stopped-crawl note")
	}
}

// TestMarkdownWriter tests the markdown summary.
func TestMarkdownWriter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	if _, err := NewMarkdownWriter(&sb).Write(testSummary()); err != nil {
		t.Fatalf("write: %v", err)
	}

	out := sb.String()
	for _, want := range []string{
		"# Crawl Report",
		"## Totals",
		"`http://example.com/`",
		"## Errors",
		"timeout",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

// TestJSONWriter tests the structured summary round-trip.
func TestJSONWriter(t *testing.T) {
	t.Parallel()

	var sb strings.Builder
	if _, err := NewJSONWriter(&sb).Write(testSummary()); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got jsonSummary
	if err := json.Unmarshal([]byte(sb.String()), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.Stats.URLsSucceeded != 7 {
		t.Errorf("succeeded = %d, want 7", got.Stats.URLsSucceeded)
	}
	if got.Counts["done"] != 7 {
		t.Errorf("done count = %d, want 7", got.Counts["done"])
	}
	if got.ExitStatus != model.ExitNetworkFailure {
		t.Errorf("exit status = %d, want %d", got.ExitStatus, model.ExitNetworkFailure)
	}
}

// TestMultiWriter tests fan-out to several writers.
func TestMultiWriter(t *testing.T) {
	t.Parallel()

	var a, b strings.Builder
	mw := NewMultiWriter(NewSimpleWriter(&a), NewJSONWriter(&b))

	if _, err := mw.Write(testSummary()); err != nil {
		t.Fatalf("write: %v", err)
	}
	if a.Len() == 0 || b.Len() == 0 {
		t.Error("both writers should receive the summary")
	}
}
