package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() and provide specific
// information about what is wrong with the configuration.
//
// Design decision: We use package-level sentinel errors rather than
// creating new error instances in Validate(). This allows callers to use
// errors.Is() for programmatic error handling while still providing
// human-readable messages.
var (
	// ErrNoSeed is returned when no starting URL is specified.
	ErrNoSeed = errors.New("no seed URL specified: provide at least one URL")

	// ErrInvalidTimeout is returned when the fetch timeout is not positive.
	// A zero or negative timeout would fail every attempt immediately.
	ErrInvalidTimeout = errors.New("invalid timeout: must be positive")

	// ErrInvalidConcurrency is returned when the concurrency bound is not
	// positive. Zero would mean no fetching at all.
	ErrInvalidConcurrency = errors.New("invalid concurrency: must be positive")

	// ErrInvalidMaxTries is returned when the attempt ceiling is not
	// positive. Every URL needs at least one attempt.
	ErrInvalidMaxTries = errors.New("invalid max tries: must be positive")

	// ErrInvalidMaxLevel is returned when the recursion limit is negative.
	// Level 0 means fetch only the seeds.
	ErrInvalidMaxLevel = errors.New("invalid max level: must be non-negative")

	// ErrInvalidDelay is returned when the politeness delay is negative.
	// Use 0 for no delay between requests.
	ErrInvalidDelay = errors.New("invalid delay: must be non-negative")

	// ErrInvalidMaxBodySize is returned when the parse buffer limit is
	// negative. Use 0 for the default limit.
	ErrInvalidMaxBodySize = errors.New("invalid max body size: must be non-negative")

	// ErrInvalidOrdering is returned when the frontier ordering is
	// neither "fifo" nor "lifo".
	ErrInvalidOrdering = errors.New(`invalid ordering: must be "fifo" or "lifo"`)
)
