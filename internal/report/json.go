package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/webmirror/internal/model"
)

// JSONWriter outputs the summary as structured JSON for tool integration.
type JSONWriter struct {
	baseWriter
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer) *JSONWriter {
	return &JSONWriter{
		baseWriter: newBaseWriter(output),
	}
}

// jsonSummary is the serialized report shape.
type jsonSummary struct {
	Seeds      []string            `json:"seeds"`
	Stats      model.StatsSnapshot `json:"stats"`
	Counts     map[string]int64    `json:"frontier_counts,omitempty"`
	DurationMS int64               `json:"duration_ms"`
	ExitStatus int                 `json:"exit_status"`
	Stopped    bool                `json:"stopped,omitempty"`
}

// Write outputs the summary as indented JSON.
func (w *JSONWriter) Write(summary *Summary) (int, error) {
	out := jsonSummary{
		Seeds:      summary.Seeds,
		Stats:      summary.Stats,
		DurationMS: summary.Duration.Milliseconds(),
		ExitStatus: summary.ExitStatus,
		Stopped:    summary.Stopped,
	}
	if len(summary.Counts) > 0 {
		out.Counts = make(map[string]int64, len(summary.Counts))
		for status, n := range summary.Counts {
			out.Counts[string(status)] = n
		}
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, err
	}
	data = append(data, '\n')
	return w.output.Write(data)
}
