package report

import (
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/nao1215/markdown"

	"github.com/nao1215/webmirror/internal/model"
)

// MarkdownWriter outputs the summary in Markdown format.
// This format is designed for documentation and sharing.
//
// Design decision: We use the nao1215/markdown library for fluent markdown
// generation which provides:
// 1. Type-safe markdown generation
// 2. Support for tables, lists, and code blocks
// 3. GitHub-flavored markdown alerts
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the summary in Markdown format.
func (w *MarkdownWriter) Write(summary *Summary) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Crawl Report")
	md.PlainText("")

	w.writeOverview(md, summary)
	w.writeTotals(md, summary)
	w.writeErrors(md, summary)

	if summary.Stopped {
		md.Warning("The crawl was stopped before the frontier was exhausted; the mirror is partial.")
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// writeOverview writes the crawl parameters table.
func (w *MarkdownWriter) writeOverview(md *markdown.Markdown, summary *Summary) {
	rows := make([][]string, 0, len(summary.Seeds)+3)
	for _, seed := range summary.Seeds {
		rows = append(rows, []string{"Seed", "`" + seed + "`"})
	}
	rows = append(rows,
		[]string{"Finished", time.Unix(summary.Stats.End, 0).Format("2006-01-02 15:04:05 MST")},
		[]string{"Duration", summary.Duration.Round(time.Millisecond).String()},
		[]string{"Exit status", strconv.Itoa(summary.ExitStatus)},
	)

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeTotals writes the per-status totals table.
func (w *MarkdownWriter) writeTotals(md *markdown.Markdown, summary *Summary) {
	md.H2("Totals")
	md.PlainText("")

	rows := [][]string{
		{"Attempted", strconv.FormatInt(summary.Stats.URLsAttempted, 10)},
		{"Succeeded", strconv.FormatInt(summary.Stats.URLsSucceeded, 10)},
		{"Failed", strconv.FormatInt(summary.Stats.URLsFailed, 10)},
		{"Skipped", strconv.FormatInt(summary.Stats.URLsSkipped, 10)},
		{"Downloaded", formatBytes(summary.Stats.BytesDownloaded)},
	}
	for _, status := range []model.Status{model.StatusPending, model.StatusInProgress} {
		if n, ok := summary.Counts[status]; ok && n > 0 {
			rows = append(rows, []string{"Remaining (" + string(status) + ")", strconv.FormatInt(n, 10)})
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Counter", "Value"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeErrors writes the per-error-kind breakdown, when any occurred.
func (w *MarkdownWriter) writeErrors(md *markdown.Markdown, summary *Summary) {
	if len(summary.Stats.ErrorCounts) == 0 {
		return
	}

	md.H2("Errors")
	md.PlainText("")

	kinds := make([]string, 0, len(summary.Stats.ErrorCounts))
	for kind := range summary.Stats.ErrorCounts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	rows := make([][]string, 0, len(kinds))
	for _, kind := range kinds {
		rows = append(rows, []string{kind, strconv.FormatInt(summary.Stats.ErrorCounts[kind], 10)})
	}

	md.Table(markdown.TableSet{
		Header: []string{"Kind", "Count"},
		Rows:   rows,
	})
	md.PlainText("")
}
