package dns

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"
)

// ErrNotFound is returned when a hostname has no address records.
// It wraps the resolver error, so errors.Is works across the pipeline.
var ErrNotFound = errors.New("host not found")

// lookupFunc is the resolution primitive, swappable for tests.
type lookupFunc func(ctx context.Context, host string) ([]net.IPAddr, error)

// Resolver resolves hostnames with a crawl-scoped cache.
//
// Design decision: We cache positive answers for the resolver's lifetime
// rather than honoring record TTLs because:
//  1. A crawl hits the same few hosts thousands of times
//  2. Mid-crawl address changes are rare and harmless for mirroring
//  3. It keeps the hot path to one map lookup under a mutex
type Resolver struct {
	lookup lookupFunc

	mu    sync.Mutex
	cache map[string]string

	// timeout bounds one lookup when the context has no deadline.
	timeout time.Duration
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithLookupFunc replaces the resolution primitive. Used in tests.
func WithLookupFunc(fn lookupFunc) Option {
	return func(r *Resolver) {
		r.lookup = fn
	}
}

// WithTimeout sets the fallback per-lookup deadline.
func WithTimeout(timeout time.Duration) Option {
	return func(r *Resolver) {
		r.timeout = timeout
	}
}

// NewResolver creates a resolver backed by the system resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{
		lookup:  (&net.Resolver{}).LookupIPAddr,
		cache:   make(map[string]string),
		timeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve returns one address for the host. Literal IP addresses pass
// through untouched. A host with no records yields an error wrapping
// ErrNotFound; any other failure is a plain (retryable) error.
func (r *Resolver) Resolve(ctx context.Context, host string) (string, error) {
	if ip := net.ParseIP(host); ip != nil {
		return host, nil
	}

	r.mu.Lock()
	if addr, ok := r.cache[host]; ok {
		r.mu.Unlock()
		return addr, nil
	}
	r.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	addrs, err := r.lookup(ctx, host)
	if err != nil {
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) && dnsErr.IsNotFound {
			return "", fmt.Errorf("%w: %s", ErrNotFound, host)
		}
		return "", fmt.Errorf("failed to resolve %s: %w", host, err)
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNotFound, host)
	}

	addr := addrs[0].IP.String()
	r.mu.Lock()
	r.cache[host] = addr
	r.mu.Unlock()
	return addr, nil
}

// Pin stores an externally supplied address for a host, bypassing
// resolution. Used when a resolver callback overrides the answer.
func (r *Resolver) Pin(host, addr string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache[host] = addr
}

// IsPermanent reports whether a resolution error cannot be fixed by
// retrying.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrNotFound)
}
