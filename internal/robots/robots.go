package robots

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/temoto/robotstxt"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/model"
)

// maxRobotsSize bounds how much of a robots.txt file is read.
const maxRobotsSize = 512 * 1024

// Policy evaluates robots.txt rules per host.
//
// Design decision: The policy fails open. When robots.txt cannot be
// fetched or parsed we allow the locator, because:
//  1. An unreachable robots.txt must not silently empty the crawl
//  2. 4xx answers mean "no rules" by convention
//  3. The operator already has an explicit opt-out for the whole filter
type Policy struct {
	fetcher fetch.Fetcher

	// userAgent selects which robots.txt group applies.
	userAgent string

	logger *slog.Logger

	mu     sync.Mutex
	groups map[string]*robotstxt.Group
}

// Option configures a Policy.
type Option func(*Policy)

// WithUserAgent sets the agent name matched against robots.txt groups.
func WithUserAgent(ua string) Option {
	return func(p *Policy) {
		p.userAgent = ua
	}
}

// WithLogger sets the logger for fetch and parse warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Policy) {
		p.logger = logger
	}
}

// NewPolicy creates a robots.txt policy that fetches rules with fetcher.
func NewPolicy(fetcher fetch.Fetcher, opts ...Option) *Policy {
	p := &Policy{
		fetcher:   fetcher,
		userAgent: "webmirror",
		logger:    slog.Default(),
		groups:    make(map[string]*robotstxt.Group),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// IsAllowed reports whether the locator may be fetched under the host's
// robots.txt rules. The robots.txt path itself is always allowed.
func (p *Policy) IsAllowed(ctx context.Context, loc model.Locator) bool {
	if loc.Path() == "/robots.txt" {
		return true
	}

	group := p.groupFor(ctx, loc)
	if group == nil {
		return true
	}
	return group.Test(loc.Path())
}

// groupFor returns the cached rule group for the locator's host, fetching
// robots.txt on first use. Returns nil when no rules apply.
func (p *Policy) groupFor(ctx context.Context, loc model.Locator) *robotstxt.Group {
	key := loc.Scheme() + "://" + loc.Host()

	p.mu.Lock()
	group, ok := p.groups[key]
	p.mu.Unlock()
	if ok {
		return group
	}

	group = p.fetchGroup(ctx, loc)

	p.mu.Lock()
	p.groups[key] = group
	p.mu.Unlock()
	return group
}

// fetchGroup downloads and parses a host's robots.txt.
func (p *Policy) fetchGroup(ctx context.Context, loc model.Locator) *robotstxt.Group {
	robotsLoc, err := loc.Resolve("/robots.txt")
	if err != nil {
		return nil
	}

	out := p.fetcher.Fetch(ctx, &fetch.Request{Locator: robotsLoc})
	if out.Class != fetch.Success {
		p.logger.WarnContext(ctx, "robots.txt fetch failed, allowing all",
			slog.String("host", loc.Host()), slog.Any("error", out.Err))
		return nil
	}
	defer out.Response.Close()

	body, err := io.ReadAll(io.LimitReader(out.Response.Body, maxRobotsSize))
	if err != nil {
		p.logger.WarnContext(ctx, "robots.txt read failed, allowing all",
			slog.String("host", loc.Host()), slog.Any("error", err))
		return nil
	}

	data, err := robotstxt.FromStatusAndBytes(out.Response.StatusCode, body)
	if err != nil {
		p.logger.WarnContext(ctx, "robots.txt parse failed, allowing all",
			slog.String("host", loc.Host()), slog.Any("error", err))
		return nil
	}
	return data.FindGroup(p.userAgent)
}
