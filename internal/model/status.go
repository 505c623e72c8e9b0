package model

// Status represents the lifecycle state of a frontier record.
//
// Design decision: We use string-backed constants rather than iota because
// the status is persisted in the frontier database. String values keep the
// stored rows self-describing and stable across releases; an iota renumbering
// would silently corrupt resumed crawls.
type Status string

const (
	// StatusPending marks a record waiting to be fetched.
	StatusPending Status = "pending"

	// StatusInProgress marks a record claimed by a pipeline item.
	// At most one item holds a given record at a time.
	StatusInProgress Status = "in_progress"

	// StatusDone marks a record fetched successfully. Terminal.
	StatusDone Status = "done"

	// StatusErrored marks a record that failed permanently or exhausted
	// its retry budget. Terminal.
	StatusErrored Status = "errored"

	// StatusSkipped marks a record rejected before any network I/O,
	// either by the filter chain or by the pre-fetch hook. Terminal.
	StatusSkipped Status = "skipped"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusDone, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}

// Valid reports whether s is one of the defined statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusDone, StatusErrored, StatusSkipped:
		return true
	default:
		return false
	}
}
