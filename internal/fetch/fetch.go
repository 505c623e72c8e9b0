package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/nao1215/webmirror/internal/model"
)

// ErrUnsupportedScheme is returned by the registry when no fetcher claims
// a locator's scheme.
var ErrUnsupportedScheme = errors.New("unsupported scheme")

// Class partitions fetch outcomes by how the engine should react.
type Class int

const (
	// Success means the protocol exchange completed and a response is
	// available. A response with an error status code (404, 500) is still
	// Success; interpreting the code is the engine's job, not the fetcher's.
	Success Class = iota

	// Transient means a retryable failure: timeout, connection refused,
	// connection reset. The entry goes back to the frontier with backoff.
	Transient

	// Permanent means a non-retryable failure: malformed response,
	// protocol violation. Retrying cannot help.
	Permanent
)

// String returns a human-readable form of the class.
func (c Class) String() string {
	switch c {
	case Success:
		return "success"
	case Transient:
		return "transient"
	case Permanent:
		return "permanent"
	default:
		return "unknown"
	}
}

// ErrorKind names the failure mode within a class. Kinds feed the
// statistics aggregator's per-error counters and the exit status taxonomy.
type ErrorKind string

const (
	// KindNone is set on successful outcomes.
	KindNone ErrorKind = ""

	// KindTimeout means the deadline expired mid-exchange.
	KindTimeout ErrorKind = "timeout"

	// KindConnectionRefused means the remote endpoint refused the connection.
	KindConnectionRefused ErrorKind = "connection_refused"

	// KindConnectionReset means the connection dropped mid-exchange.
	KindConnectionReset ErrorKind = "connection_reset"

	// KindDNSFailure means name resolution failed.
	KindDNSFailure ErrorKind = "dns_failure"

	// KindMalformedResponse means the response could not be parsed.
	KindMalformedResponse ErrorKind = "malformed_response"

	// KindProtocolViolation means the server broke the protocol.
	KindProtocolViolation ErrorKind = "protocol_violation"
)

// Request is one prepared fetch attempt handed to a fetcher.
//
// Design decision: We pass a request struct rather than just the locator
// because:
//  1. The resolution step may pin a specific address for the connection
//  2. The referrer and extra headers come from frontier provenance
//  3. New per-attempt inputs can be added without breaking the interface
type Request struct {
	// Locator is the resource to fetch.
	Locator model.Locator

	// Address optionally pins the connection target as host:port,
	// bypassing the fetcher's own name resolution. Set when a resolver
	// callback overrode the address for this host.
	Address string

	// Referrer is the page the locator was discovered on. Empty for seeds.
	Referrer string

	// Header holds extra protocol headers for this attempt.
	Header http.Header
}

// DialAddress returns the connection target for the request as host:port.
// A pinned address keeps the locator's port: resolvers hand back bare IPs,
// and an IPv6 literal contains colons without carrying a port, so only
// net.ParseIP can tell whether the port is still missing.
func (r *Request) DialAddress() string {
	addr := r.Address
	if addr == "" {
		addr = r.Locator.Hostname()
	}
	if net.ParseIP(addr) != nil || !strings.Contains(addr, ":") {
		return net.JoinHostPort(addr, r.Locator.Port())
	}
	return addr
}

// Response is the metadata and streamed body of a completed exchange.
// The caller owns Body and must close it.
type Response struct {
	// StatusCode is the protocol status code (HTTP status, FTP reply code).
	StatusCode int

	// Status is the protocol status line text.
	Status string

	// Header holds the response headers. Empty for protocols without them.
	Header http.Header

	// ContentType is the declared media type, without parameters.
	ContentType string

	// ContentLength is the declared body length, or -1 when unknown.
	ContentLength int64

	// Body streams the response content. It is bounded by the fetcher's
	// body size limit and must be closed exactly once.
	Body io.ReadCloser

	// RedirectTarget is the absolute redirect destination when the
	// response is a redirect, resolved against the request locator.
	// Empty otherwise. Redirects are never followed by fetchers; the
	// target re-enters the frontier as a discovered link.
	RedirectTarget string
}

// IsRedirect reports whether the response redirects elsewhere.
func (r *Response) IsRedirect() bool {
	return r.RedirectTarget != ""
}

// IsServerError reports whether the server answered with a 5xx-class code.
func (r *Response) IsServerError() bool {
	return r.StatusCode >= 500 && r.StatusCode < 600
}

// IsDocument reports whether the body looks like link-bearing content
// that the scraper should examine.
func (r *Response) IsDocument() bool {
	switch {
	case strings.HasPrefix(r.ContentType, "text/html"),
		strings.HasPrefix(r.ContentType, "application/xhtml+xml"),
		r.ContentType == ListingContentType:
		return true
	default:
		return false
	}
}

// Close releases the body stream.
func (r *Response) Close() error {
	if r.Body == nil {
		return nil
	}
	return r.Body.Close()
}

// Outcome is the single result of one fetch attempt.
type Outcome struct {
	// Class says how the engine should react.
	Class Class

	// Kind names the failure mode. KindNone on success.
	Kind ErrorKind

	// Response is set only when Class is Success.
	Response *Response

	// Err is the underlying error for failed outcomes.
	Err error
}

// Retryable reports whether the outcome should re-enter the retry path.
func (o *Outcome) Retryable() bool {
	return o.Class == Transient
}

// successOutcome wraps a completed response.
func successOutcome(resp *Response) *Outcome {
	return &Outcome{Class: Success, Response: resp}
}

// transientOutcome wraps a retryable failure.
func transientOutcome(kind ErrorKind, err error) *Outcome {
	return &Outcome{Class: Transient, Kind: kind, Err: err}
}

// permanentOutcome wraps a non-retryable failure.
func permanentOutcome(kind ErrorKind, err error) *Outcome {
	return &Outcome{Class: Permanent, Kind: kind, Err: err}
}

// Fetcher is the uniform per-protocol fetch contract.
//
// Design decision: We use an interface rather than a concrete type because:
//  1. HTTP and FTP require vastly different implementations
//  2. Allows for easy mocking in pipeline tests
//  3. The engine can treat all protocols uniformly through the registry
type Fetcher interface {
	// Fetch performs one protocol exchange for the request and classifies
	// the result. Implementations must honor the context deadline by
	// aborting and returning a timeout-kind transient outcome, and must
	// stream bodies rather than buffering them.
	Fetch(ctx context.Context, req *Request) *Outcome

	// Schemes returns the URL schemes this fetcher handles.
	Schemes() []string
}

// Registry maps URL schemes to fetchers.
type Registry struct {
	fetchers map[string]Fetcher
}

// NewRegistry creates an empty fetcher registry.
func NewRegistry() *Registry {
	return &Registry{fetchers: make(map[string]Fetcher)}
}

// Register adds a fetcher for every scheme it claims. Later registrations
// win, so callers can replace a default fetcher.
func (r *Registry) Register(f Fetcher) {
	for _, scheme := range f.Schemes() {
		r.fetchers[strings.ToLower(scheme)] = f
	}
}

// ForLocator returns the fetcher responsible for the locator's scheme.
func (r *Registry) ForLocator(loc model.Locator) (Fetcher, error) {
	f, ok := r.fetchers[loc.Scheme()]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedScheme, loc.Scheme())
	}
	return f, nil
}

// Supports reports whether any fetcher claims the scheme.
func (r *Registry) Supports(scheme string) bool {
	_, ok := r.fetchers[strings.ToLower(scheme)]
	return ok
}
