package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// addrOverrideKey carries a per-request connection address through the
// transport's dial callback.
type addrOverrideKey struct{}

// HTTPFetcher fetches http and https locators.
//
// Design decision: We build the http.Client internally with a custom dial
// function rather than accepting an external client because:
//  1. Redirect handling must be disabled so targets re-enter the frontier
//  2. The per-request address override needs a cooperating transport
//  3. Body size bounding belongs to the fetcher, not the caller
type HTTPFetcher struct {
	client *http.Client

	// userAgent is sent on every request.
	userAgent string

	// maxBodySize bounds how many body bytes a caller can stream.
	maxBodySize int64

	// timeout is the fallback per-request deadline, applied only when the
	// incoming context carries none.
	timeout time.Duration
}

// HTTPOption configures an HTTPFetcher.
type HTTPOption func(*HTTPFetcher)

// WithUserAgent sets the User-Agent header for all requests.
func WithUserAgent(ua string) HTTPOption {
	return func(f *HTTPFetcher) {
		f.userAgent = ua
	}
}

// WithMaxBodySize bounds the streamed body size in bytes.
func WithMaxBodySize(size int64) HTTPOption {
	return func(f *HTTPFetcher) {
		if size > 0 {
			f.maxBodySize = size
		}
	}
}

// WithTimeout sets the fallback per-request deadline.
func WithTimeout(timeout time.Duration) HTTPOption {
	return func(f *HTTPFetcher) {
		f.timeout = timeout
	}
}

// NewHTTPFetcher creates an HTTP fetcher.
func NewHTTPFetcher(opts ...HTTPOption) *HTTPFetcher {
	f := &HTTPFetcher{
		userAgent:   "webmirror/1.0",
		maxBodySize: 10 * 1024 * 1024,
		timeout:     60 * time.Second,
	}
	for _, opt := range opts {
		opt(f)
	}

	dialer := &net.Dialer{Timeout: 30 * time.Second}
	transport := &http.Transport{
		DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			if override, ok := ctx.Value(addrOverrideKey{}).(string); ok && override != "" {
				addr = override
			}
			return dialer.DialContext(ctx, network, addr)
		},
		MaxIdleConnsPerHost:   4,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: f.timeout,
	}

	f.client = &http.Client{
		Transport: transport,
		// Redirect responses are surfaced to the caller. The target
		// becomes a discovered link so frontier depth accounting and the
		// pre-fetch gate apply to it like any other locator.
		CheckRedirect: func(_ *http.Request, _ []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return f
}

// Schemes returns the schemes this fetcher handles.
func (f *HTTPFetcher) Schemes() []string {
	return []string{"http", "https"}
}

// Fetch performs one HTTP exchange.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *Request) *Outcome {
	if _, ok := ctx.Deadline(); !ok && f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}
	if req.Address != "" {
		ctx = context.WithValue(ctx, addrOverrideKey{}, req.DialAddress())
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Locator.String(), nil)
	if err != nil {
		return permanentOutcome(KindMalformedResponse, fmt.Errorf("failed to build request: %w", err))
	}

	httpReq.Header.Set("User-Agent", f.userAgent)
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	if req.Referrer != "" {
		httpReq.Header.Set("Referer", req.Referrer)
	}
	for key, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}

	resp, err := f.client.Do(httpReq)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			err = urlErr.Err
		}
		return classifiedOutcome(err)
	}

	out := &Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        resp.Header,
		ContentType:   mediaType(resp.Header.Get("Content-Type")),
		ContentLength: resp.ContentLength,
		Body:          limitBody(resp.Body, f.maxBodySize),
	}

	if isRedirectCode(resp.StatusCode) {
		if target := resp.Header.Get("Location"); target != "" {
			if resolved, err := req.Locator.Resolve(target); err == nil {
				out.RedirectTarget = resolved.String()
			}
		}
	}

	return successOutcome(out)
}

// isRedirectCode reports whether the status code carries a Location target.
func isRedirectCode(code int) bool {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	default:
		return false
	}
}

// mediaType strips parameters from a Content-Type header value.
func mediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	}
	return mt
}

// limitedBody bounds a body stream without buffering it.
type limitedBody struct {
	reader io.Reader
	closer io.Closer
}

// limitBody wraps rc so that at most limit bytes can be read.
func limitBody(rc io.ReadCloser, limit int64) io.ReadCloser {
	if limit <= 0 {
		return rc
	}
	return &limitedBody{reader: io.LimitReader(rc, limit), closer: rc}
}

// Read reads from the bounded stream.
func (b *limitedBody) Read(p []byte) (int, error) {
	return b.reader.Read(p)
}

// Close closes the underlying body.
func (b *limitedBody) Close() error {
	return b.closer.Close()
}
