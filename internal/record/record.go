package record

import (
	"context"
	"io"
	"net/http"
	"time"
)

// Exchange is the metadata of one fetch attempt, successful or failed.
type Exchange struct {
	// URL is the canonical locator that was fetched.
	URL string `json:"url"`

	// FetchedAt is when the attempt concluded.
	FetchedAt time.Time `json:"fetched_at"`

	// RequestHeader holds the request headers that were sent.
	RequestHeader http.Header `json:"request_header,omitempty"`

	// StatusCode and Status describe the response, when one arrived.
	StatusCode int    `json:"status_code,omitempty"`
	Status     string `json:"status,omitempty"`

	// ResponseHeader holds the response headers, when a response arrived.
	ResponseHeader http.Header `json:"response_header,omitempty"`

	// Error is the failure text for attempts without a response.
	Error string `json:"error,omitempty"`
}

// Entry describes where an exchange was stored.
type Entry struct {
	// BodyPath is the stored body's location, empty for bodyless attempts.
	BodyPath string

	// Bytes is the stored body size.
	Bytes int64
}

// Store persists exchanges. The pipeline calls Save for every fetch
// attempt and must not release the body stream before Save returns;
// Save owns reading the stream to its end.
type Store interface {
	// Save persists the exchange metadata and, when body is non-nil,
	// streams the body to durable storage.
	Save(ctx context.Context, meta *Exchange, body io.Reader) (*Entry, error)

	// Close flushes outstanding asynchronous writes.
	Close() error
}

// Discard is a Store that keeps nothing. Used when archiving is off.
type Discard struct{}

// Save drains the body and drops everything.
func (Discard) Save(_ context.Context, _ *Exchange, body io.Reader) (*Entry, error) {
	if body == nil {
		return &Entry{}, nil
	}
	n, err := io.Copy(io.Discard, body)
	return &Entry{Bytes: n}, err
}

// Close is a no-op.
func (Discard) Close() error { return nil }
