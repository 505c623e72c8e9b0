package model

// Exit status codes reported by the process when the crawl concludes.
// The numbering follows the convention of wget-family tools so scripts
// written against them keep working: lower nonzero codes are more
// serious, and when several error classes occur the lowest wins.
const (
	// ExitOK means every attempted URL reached the done state.
	ExitOK = 0

	// ExitGenericError covers unclassified failures and a crawl stopped
	// early by the extension contract.
	ExitGenericError = 1

	// ExitParseError means a document or URL could not be parsed.
	ExitParseError = 2

	// ExitFileIOError means a local write failed (archive output).
	ExitFileIOError = 3

	// ExitNetworkFailure means DNS or connection-level failures occurred.
	ExitNetworkFailure = 4

	// ExitProtocolError means a remote host violated its wire protocol.
	ExitProtocolError = 7

	// ExitServerError means a server returned an error response.
	ExitServerError = 8
)

// StatsSnapshot is the read-only view of crawl counters exposed to the
// extension contract and the report writers. All fields are plain values
// so the snapshot can cross the serializable extension boundary.
type StatsSnapshot struct {
	// Start and End are the crawl wall-clock bounds in Unix seconds.
	Start int64 `json:"start"`
	End   int64 `json:"end"`

	// URLsAttempted counts records handed to the pipeline.
	URLsAttempted int64 `json:"urls_attempted"`

	// URLsSucceeded counts records that reached the done state.
	URLsSucceeded int64 `json:"urls_succeeded"`

	// URLsFailed counts records that ended errored.
	URLsFailed int64 `json:"urls_failed"`

	// URLsSkipped counts records rejected before network I/O.
	URLsSkipped int64 `json:"urls_skipped"`

	// BytesDownloaded is the total response payload size.
	BytesDownloaded int64 `json:"bytes_downloaded"`

	// ErrorCounts maps error kind names to occurrence counts.
	ErrorCounts map[string]int64 `json:"error_counts,omitempty"`
}
