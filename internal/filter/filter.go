package filter

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/hook"
	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/robots"
)

// Filter is one contribution to the default pre-fetch verdict.
type Filter interface {
	// Name identifies the filter in the gate callback's reasons.
	Name() string

	// Check reports whether the record may be fetched, with an optional
	// detail explaining a rejection.
	Check(ctx context.Context, rec *model.Record) (passed bool, detail string)
}

// Chain evaluates filters in order and aggregates their results.
type Chain struct {
	filters []Filter
}

// NewChain builds a filter chain.
func NewChain(filters ...Filter) *Chain {
	return &Chain{filters: filters}
}

// Evaluate runs every filter and returns the combined default verdict
// plus each filter's contribution. The verdict is accept only when all
// filters pass.
func (c *Chain) Evaluate(ctx context.Context, rec *model.Record) (bool, []hook.Reason) {
	accept := true
	reasons := make([]hook.Reason, 0, len(c.filters))
	for _, f := range c.filters {
		passed, detail := f.Check(ctx, rec)
		if !passed {
			accept = false
		}
		reasons = append(reasons, hook.Reason{
			Filter: f.Name(),
			Passed: passed,
			Detail: detail,
		})
	}
	return accept, reasons
}

// SchemeFilter rejects locators no registered fetcher can handle.
type SchemeFilter struct {
	registry *fetch.Registry
}

// NewSchemeFilter builds a scheme filter over the fetcher registry.
func NewSchemeFilter(registry *fetch.Registry) *SchemeFilter {
	return &SchemeFilter{registry: registry}
}

// Name identifies the filter.
func (f *SchemeFilter) Name() string { return "scheme" }

// Check passes when a fetcher claims the locator's scheme.
func (f *SchemeFilter) Check(_ context.Context, rec *model.Record) (bool, string) {
	if f.registry.Supports(rec.Locator.Scheme()) {
		return true, ""
	}
	return false, fmt.Sprintf("no fetcher for scheme %q", rec.Locator.Scheme())
}

// LevelFilter bounds recursion depth. Inline resources get one extra
// level so page requisites of the deepest pages still download.
type LevelFilter struct {
	max int
}

// NewLevelFilter builds a depth filter. A max of zero means unbounded.
func NewLevelFilter(max int) *LevelFilter {
	return &LevelFilter{max: max}
}

// Name identifies the filter.
func (f *LevelFilter) Name() string { return "level" }

// Check passes while the record's depth is within the bound.
func (f *LevelFilter) Check(_ context.Context, rec *model.Record) (bool, string) {
	if f.max <= 0 {
		return true, ""
	}
	limit := f.max
	if rec.Inline {
		limit++
	}
	if rec.Level <= limit {
		return true, ""
	}
	return false, fmt.Sprintf("depth %d exceeds limit %d", rec.Level, limit)
}

// SpanFilter restricts the crawl to the seed's host unless spanning is
// enabled or the host is explicitly allowed.
type SpanFilter struct {
	spanHosts bool
	allowed   map[string]bool
}

// NewSpanFilter builds a host span filter. allowedHosts are additional
// hosts permitted even when spanning is off.
func NewSpanFilter(spanHosts bool, allowedHosts []string) *SpanFilter {
	allowed := make(map[string]bool, len(allowedHosts))
	for _, h := range allowedHosts {
		allowed[strings.ToLower(h)] = true
	}
	return &SpanFilter{spanHosts: spanHosts, allowed: allowed}
}

// Name identifies the filter.
func (f *SpanFilter) Name() string { return "span_host" }

// Check passes when the record stays on its seed's host, the host is
// allowed, or spanning is on. Records without seed provenance pass.
func (f *SpanFilter) Check(_ context.Context, rec *model.Record) (bool, string) {
	if f.spanHosts || rec.RootURL == "" {
		return true, ""
	}
	if f.allowed[rec.Locator.Hostname()] {
		return true, ""
	}

	root, err := model.ParseLocator(rec.RootURL)
	if err != nil {
		return true, ""
	}
	if rec.Locator.Hostname() == root.Hostname() {
		return true, ""
	}
	return false, fmt.Sprintf("host %q spans away from seed host %q",
		rec.Locator.Hostname(), root.Hostname())
}

// ParentFilter rejects locators above the seed's directory. Inline
// resources are exempt; a stylesheet may live anywhere on the host.
type ParentFilter struct{}

// NewParentFilter builds a no-parent filter.
func NewParentFilter() *ParentFilter {
	return &ParentFilter{}
}

// Name identifies the filter.
func (f *ParentFilter) Name() string { return "no_parent" }

// Check passes when the record's path stays under the seed's directory.
func (f *ParentFilter) Check(_ context.Context, rec *model.Record) (bool, string) {
	if rec.Inline || rec.RootURL == "" {
		return true, ""
	}

	root, err := model.ParseLocator(rec.RootURL)
	if err != nil {
		return true, ""
	}
	if rec.Locator.Hostname() != root.Hostname() {
		// Host spanning is the span filter's concern.
		return true, ""
	}

	base := parentDir(root.Path())
	if strings.HasPrefix(rec.Locator.Path(), base) {
		return true, ""
	}
	return false, fmt.Sprintf("path %q escapes seed directory %q", rec.Locator.Path(), base)
}

// parentDir returns the directory of a URL path, with a trailing slash.
func parentDir(p string) string {
	if strings.HasSuffix(p, "/") {
		return p
	}
	dir := path.Dir(p)
	if dir == "/" {
		return "/"
	}
	return dir + "/"
}

// PatternFilter applies operator-supplied glob patterns. Ignore patterns
// reject on match; when follow patterns exist, at least one must match.
// Patterns match against either the path or the full URL.
type PatternFilter struct {
	follow []string
	ignore []string
}

// NewPatternFilter builds a pattern filter from glob lists.
func NewPatternFilter(follow, ignore []string) *PatternFilter {
	return &PatternFilter{follow: follow, ignore: ignore}
}

// Name identifies the filter.
func (f *PatternFilter) Name() string { return "pattern" }

// Check applies the ignore and follow pattern lists.
func (f *PatternFilter) Check(_ context.Context, rec *model.Record) (bool, string) {
	for _, pattern := range f.ignore {
		if matchPattern(pattern, rec.Locator) {
			return false, fmt.Sprintf("matches ignore pattern %q", pattern)
		}
	}

	if len(f.follow) == 0 {
		return true, ""
	}
	for _, pattern := range f.follow {
		if matchPattern(pattern, rec.Locator) {
			return true, ""
		}
	}
	return false, "matches no follow pattern"
}

// matchPattern tests one glob against the locator's path and full URL.
// A pattern without a slash also matches the path's base name, so
// "*.pdf" works the way an operator expects.
func matchPattern(pattern string, loc model.Locator) bool {
	if ok, err := path.Match(pattern, loc.Path()); err == nil && ok {
		return true
	}
	if ok, err := path.Match(pattern, loc.String()); err == nil && ok {
		return true
	}
	if !strings.Contains(pattern, "/") {
		if ok, err := path.Match(pattern, path.Base(loc.Path())); err == nil && ok {
			return true
		}
	}
	return false
}

// RobotsFilter consults the robots.txt policy. Omit it from the chain
// entirely when the operator opts out.
type RobotsFilter struct {
	policy *robots.Policy
}

// NewRobotsFilter wraps a robots policy as a chain filter.
func NewRobotsFilter(policy *robots.Policy) *RobotsFilter {
	return &RobotsFilter{policy: policy}
}

// Name identifies the filter.
func (f *RobotsFilter) Name() string { return "robots" }

// Check passes when robots.txt allows the locator.
func (f *RobotsFilter) Check(ctx context.Context, rec *model.Record) (bool, string) {
	if f.policy.IsAllowed(ctx, rec.Locator) {
		return true, ""
	}
	return false, "disallowed by robots.txt"
}
