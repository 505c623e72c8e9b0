package pipeline

// State is one step of the per-item fetch lifecycle. Exactly one item
// context exists per in-flight record, and the processor is the only
// writer of its state.
type State int

const (
	// StateQueued means the record was dequeued but processing has not
	// begun.
	StateQueued State = iota

	// StateResolving means name resolution is in progress.
	StateResolving

	// StateConnecting means the pre-fetch gate is being consulted.
	StateConnecting

	// StateFetching means the protocol fetcher owns the exchange.
	StateFetching

	// StatePostProcessing means link discovery and archival are running.
	StatePostProcessing

	// StateCompleted means the attempt concluded: done, errored,
	// skipped, or re-enqueued for retry.
	StateCompleted
)

// String returns a human-readable form of the state.
func (s State) String() string {
	switch s {
	case StateQueued:
		return "queued"
	case StateResolving:
		return "resolving"
	case StateConnecting:
		return "connecting"
	case StateFetching:
		return "fetching"
	case StatePostProcessing:
		return "post_processing"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}
