package model

import (
	"fmt"
	"net/url"
	"strings"
)

// Locator is an immutable, canonicalized resource address.
// Two locators refer to the same resource iff their Key() values match,
// which is the property the frontier's deduplication relies on.
//
// Design decision: We store the parsed *url.URL alongside the canonical
// string rather than re-parsing on demand because:
//  1. The pipeline inspects scheme/host/path on every filter evaluation
//  2. Parsing is not free and every discovered link passes through here
//  3. The canonical string is computed once, at construction
type Locator struct {
	// url is the parsed form after canonicalization. Never mutated.
	url *url.URL

	// key is the canonical string form used for deduplication.
	key string
}

// ParseLocator canonicalizes a raw URL string into a Locator.
// Canonicalization strips the fragment, lowercases the scheme and host,
// removes a default port, and normalizes an empty path to "/".
// Relative references are rejected; use Resolve for those.
func ParseLocator(raw string) (Locator, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Locator{}, fmt.Errorf("invalid URL %q: %w", raw, err)
	}
	if !u.IsAbs() {
		return Locator{}, fmt.Errorf("relative URL %q: base required", raw)
	}
	if u.Host == "" {
		return Locator{}, fmt.Errorf("URL %q has no host", raw)
	}
	return canonicalize(u), nil
}

// Resolve canonicalizes a possibly-relative reference against the locator.
func (l Locator) Resolve(ref string) (Locator, error) {
	refURL, err := url.Parse(ref)
	if err != nil {
		return Locator{}, fmt.Errorf("invalid reference %q: %w", ref, err)
	}
	resolved := l.url.ResolveReference(refURL)
	if resolved.Host == "" {
		return Locator{}, fmt.Errorf("reference %q resolves to no host", ref)
	}
	return canonicalize(resolved), nil
}

// canonicalize produces the comparable form of a URL.
//
// The rules mirror what web servers treat as equivalent:
// fragments never reach the server, scheme and host are case-insensitive,
// the default port is implied, and an empty path serves "/".
func canonicalize(u *url.URL) Locator {
	c := *u
	c.Fragment = ""
	c.RawFragment = ""
	c.Scheme = strings.ToLower(c.Scheme)
	c.Host = strings.ToLower(c.Host)

	if port := c.Port(); port != "" && port == defaultPort(c.Scheme) {
		c.Host = c.Hostname()
	}
	if c.Path == "" {
		c.Path = "/"
	}

	return Locator{url: &c, key: c.String()}
}

// defaultPort returns the implied port for a scheme, or "" if unknown.
func defaultPort(scheme string) string {
	switch scheme {
	case "http":
		return "80"
	case "https":
		return "443"
	case "ftp":
		return "21"
	default:
		return ""
	}
}

// Key returns the canonical string form, the frontier's dedup key.
func (l Locator) Key() string { return l.key }

// String returns the canonical string form.
func (l Locator) String() string { return l.key }

// Scheme returns the lowercased URL scheme (e.g. "http").
func (l Locator) Scheme() string {
	if l.url == nil {
		return ""
	}
	return l.url.Scheme
}

// Host returns the lowercased host, including a non-default port.
func (l Locator) Host() string {
	if l.url == nil {
		return ""
	}
	return l.url.Host
}

// Hostname returns the host without any port.
func (l Locator) Hostname() string {
	if l.url == nil {
		return ""
	}
	return l.url.Hostname()
}

// Port returns the explicit port, or the scheme default when none is present.
func (l Locator) Port() string {
	if l.url == nil {
		return ""
	}
	if p := l.url.Port(); p != "" {
		return p
	}
	return defaultPort(l.url.Scheme)
}

// Path returns the URL path ("/" for the root).
func (l Locator) Path() string {
	if l.url == nil {
		return ""
	}
	return l.url.Path
}

// URL returns a copy of the parsed URL. Callers may mutate the copy freely.
func (l Locator) URL() *url.URL {
	if l.url == nil {
		return nil
	}
	c := *l.url
	return &c
}

// IsZero reports whether the locator is the zero value.
func (l Locator) IsZero() bool { return l.url == nil }
