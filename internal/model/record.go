package model

import "time"

// Record is a frontier entry: one unique locator plus its crawl bookkeeping.
// The frontier package is the single writer of Record state; the pipeline
// requests transitions through frontier methods and never mutates a Record
// it has been handed.
type Record struct {
	// ID is the frontier's row identifier.
	ID int64

	// Locator is the canonical URL this record tracks.
	Locator Locator

	// Status is the record's lifecycle state.
	Status Status

	// TryCount is the number of fetch attempts made so far.
	// It increases monotonically and never resets.
	TryCount int

	// Level is the recursion depth from the seed (seeds are level 0).
	Level int

	// RootURL is the seed locator whose crawl discovered this record.
	RootURL string

	// Referrer is the page on which this locator was discovered.
	// Empty for seeds.
	Referrer string

	// Inline is true when the locator is an embedded resource
	// (image, stylesheet, script) rather than a navigational link.
	Inline bool

	// LinkType describes how the link was found (e.g. "html", "redirect").
	LinkType string

	// StatusCode is the protocol status of the completed fetch, if any.
	StatusCode int

	// NextEligible is the earliest time the record may be dequeued again.
	// Zero means immediately eligible. Set by retry backoff.
	NextEligible time.Time
}

// Snapshot is the serializable read view of a Record handed across the
// extension boundary. Only plain strings, numbers, and booleans cross;
// no engine-internal references.
type Snapshot struct {
	URL        string `json:"url"`
	Status     string `json:"status"`
	TryCount   int    `json:"try_count"`
	Level      int    `json:"level"`
	RootURL    string `json:"root_url,omitempty"`
	Referrer   string `json:"referrer,omitempty"`
	Inline     bool   `json:"inline"`
	LinkType   string `json:"link_type,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
}

// Snapshot returns the record's extension-boundary view.
func (r *Record) Snapshot() Snapshot {
	return Snapshot{
		URL:        r.Locator.String(),
		Status:     string(r.Status),
		TryCount:   r.TryCount,
		Level:      r.Level,
		RootURL:    r.RootURL,
		Referrer:   r.Referrer,
		Inline:     r.Inline,
		LinkType:   r.LinkType,
		StatusCode: r.StatusCode,
	}
}
