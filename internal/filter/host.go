package filter

import (
	"context"
	"fmt"

	"github.com/nao1215/webmirror/internal/model"
)

// HostRule carries per-host overrides applied on top of the global
// filter settings. Zero fields mean no override.
type HostRule struct {
	// MaxLevel overrides the recursion limit for the host.
	MaxLevel int

	// Follow restricts the host's crawl to matching path globs.
	Follow []string

	// Ignore rejects matching path globs on the host.
	Ignore []string
}

// HostRuleFilter applies per-host overrides loaded from the operator's
// config file. Hosts without a rule always pass.
type HostRuleFilter struct {
	lookup func(host string) (HostRule, bool)
}

// NewHostRuleFilter builds a filter over a host rule lookup.
func NewHostRuleFilter(lookup func(host string) (HostRule, bool)) *HostRuleFilter {
	return &HostRuleFilter{lookup: lookup}
}

// Name identifies the filter.
func (f *HostRuleFilter) Name() string { return "host_rule" }

// Check applies the host's rule, if one exists.
func (f *HostRuleFilter) Check(_ context.Context, rec *model.Record) (bool, string) {
	rule, ok := f.lookup(rec.Locator.Hostname())
	if !ok {
		return true, ""
	}

	if rule.MaxLevel > 0 {
		limit := rule.MaxLevel
		if rec.Inline {
			limit++
		}
		if rec.Level > limit {
			return false, fmt.Sprintf("depth %d exceeds host limit %d", rec.Level, limit)
		}
	}

	for _, pattern := range rule.Ignore {
		if matchPattern(pattern, rec.Locator) {
			return false, fmt.Sprintf("matches host ignore pattern %q", pattern)
		}
	}

	if len(rule.Follow) == 0 {
		return true, ""
	}
	for _, pattern := range rule.Follow {
		if matchPattern(pattern, rec.Locator) {
			return true, ""
		}
	}
	return false, "matches no host follow pattern"
}
