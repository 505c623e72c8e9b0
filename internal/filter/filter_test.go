package filter

import (
	"context"
	"testing"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/model"
)

// record builds a test record for a URL with seed provenance.
func record(t *testing.T, rawURL, rootURL string, level int, inline bool) *model.Record {
	t.Helper()

	loc, err := model.ParseLocator(rawURL)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", rawURL, err)
	}
	return &model.Record{
		Locator: loc,
		Level:   level,
		RootURL: rootURL,
		Inline:  inline,
	}
}

// TestChainEvaluate tests verdict aggregation and reason reporting.
func TestChainEvaluate(t *testing.T) {
	t.Parallel()

	reg := fetch.NewRegistry()
	reg.Register(fetch.NewHTTPFetcher())

	chain := NewChain(
		NewSchemeFilter(reg),
		NewLevelFilter(2),
	)
	ctx := context.Background()

	t.Run("all pass yields accept", func(t *testing.T) {
		t.Parallel()

		accept, reasons := chain.Evaluate(ctx, record(t, "http://example.com/", "", 0, false))
		if !accept {
			t.Error("verdict should be accept")
		}
		if len(reasons) != 2 {
			t.Fatalf("got %d reasons, want one per filter", len(reasons))
		}
		for _, r := range reasons {
			if !r.Passed {
				t.Errorf("filter %q unexpectedly rejected", r.Filter)
			}
		}
	})

	t.Run("one rejection flips the verdict but all reasons remain", func(t *testing.T) {
		t.Parallel()

		accept, reasons := chain.Evaluate(ctx, record(t, "http://example.com/deep", "", 9, false))
		if accept {
			t.Error("verdict should be reject")
		}
		if len(reasons) != 2 {
			t.Fatalf("got %d reasons, want all filters evaluated", len(reasons))
		}

		byName := make(map[string]bool)
		for _, r := range reasons {
			byName[r.Filter] = r.Passed
		}
		if !byName["scheme"] {
			t.Error("scheme filter should still pass")
		}
		if byName["level"] {
			t.Error("level filter should reject")
		}
	})
}

// TestSchemeFilter tests fetcher registry dispatch.
func TestSchemeFilter(t *testing.T) {
	t.Parallel()

	reg := fetch.NewRegistry()
	reg.Register(fetch.NewHTTPFetcher())
	f := NewSchemeFilter(reg)
	ctx := context.Background()

	if passed, _ := f.Check(ctx, record(t, "https://example.com/", "", 0, false)); !passed {
		t.Error("registered scheme should pass")
	}
	if passed, detail := f.Check(ctx, record(t, "gopher://example.com/", "", 0, false)); passed {
		t.Error("unregistered scheme should be rejected")
	} else if detail == "" {
		t.Error("rejection should carry a detail")
	}
}

// TestLevelFilter tests depth bounding and the inline exemption.
func TestLevelFilter(t *testing.T) {
	t.Parallel()

	f := NewLevelFilter(3)
	ctx := context.Background()

	tests := []struct {
		name   string
		level  int
		inline bool
		want   bool
	}{
		{"within limit", 3, false, true},
		{"beyond limit", 4, false, false},
		{"inline at limit+1 is exempt", 4, true, true},
		{"inline beyond exemption", 5, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			passed, _ := f.Check(ctx, record(t, "http://example.com/x", "", tt.level, tt.inline))
			if passed != tt.want {
				t.Errorf("level %d inline %v: passed = %v, want %v", tt.level, tt.inline, passed, tt.want)
			}
		})
	}

	t.Run("zero means unbounded", func(t *testing.T) {
		t.Parallel()

		unbounded := NewLevelFilter(0)
		if passed, _ := unbounded.Check(ctx, record(t, "http://example.com/x", "", 999, false)); !passed {
			t.Error("unbounded filter should pass any depth")
		}
	})
}

// TestSpanFilter tests host spanning restrictions.
func TestSpanFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	seed := "http://example.com/"

	t.Run("same host passes", func(t *testing.T) {
		t.Parallel()

		f := NewSpanFilter(false, nil)
		if passed, _ := f.Check(ctx, record(t, "http://example.com/page", seed, 1, false)); !passed {
			t.Error("same host should pass")
		}
	})

	t.Run("other host rejected", func(t *testing.T) {
		t.Parallel()

		f := NewSpanFilter(false, nil)
		if passed, _ := f.Check(ctx, record(t, "http://other.example/page", seed, 1, false)); passed {
			t.Error("foreign host should be rejected")
		}
	})

	t.Run("allowed host passes", func(t *testing.T) {
		t.Parallel()

		f := NewSpanFilter(false, []string{"cdn.example"})
		if passed, _ := f.Check(ctx, record(t, "http://cdn.example/asset.css", seed, 1, false)); !passed {
			t.Error("explicitly allowed host should pass")
		}
	})

	t.Run("spanning disables the check", func(t *testing.T) {
		t.Parallel()

		f := NewSpanFilter(true, nil)
		if passed, _ := f.Check(ctx, record(t, "http://anywhere.example/", seed, 1, false)); !passed {
			t.Error("spanning should pass any host")
		}
	})
}

// TestParentFilter tests the no-parent restriction.
func TestParentFilter(t *testing.T) {
	t.Parallel()

	f := NewParentFilter()
	ctx := context.Background()
	seed := "http://example.com/docs/manual.html"

	if passed, _ := f.Check(ctx, record(t, "http://example.com/docs/ch1.html", seed, 1, false)); !passed {
		t.Error("sibling under the seed directory should pass")
	}
	if passed, _ := f.Check(ctx, record(t, "http://example.com/docs/sub/ch2.html", seed, 1, false)); !passed {
		t.Error("descendant should pass")
	}
	if passed, _ := f.Check(ctx, record(t, "http://example.com/other/", seed, 1, false)); passed {
		t.Error("path outside the seed directory should be rejected")
	}
	if passed, _ := f.Check(ctx, record(t, "http://example.com/style.css", seed, 1, true)); !passed {
		t.Error("inline requisites are exempt from no-parent")
	}
}

// TestPatternFilter tests glob pattern lists.
func TestPatternFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("ignore pattern rejects", func(t *testing.T) {
		t.Parallel()

		f := NewPatternFilter(nil, []string{"*.pdf"})
		if passed, _ := f.Check(ctx, record(t, "http://example.com/big/report.pdf", "", 1, false)); passed {
			t.Error("ignored extension should be rejected")
		}
		if passed, _ := f.Check(ctx, record(t, "http://example.com/page.html", "", 1, false)); !passed {
			t.Error("unmatched path should pass")
		}
	})

	t.Run("follow patterns require a match", func(t *testing.T) {
		t.Parallel()

		f := NewPatternFilter([]string{"/docs/*"}, nil)
		if passed, _ := f.Check(ctx, record(t, "http://example.com/docs/ch1.html", "", 1, false)); !passed {
			t.Error("matching path should pass")
		}
		if passed, _ := f.Check(ctx, record(t, "http://example.com/blog/post", "", 1, false)); passed {
			t.Error("non-matching path should be rejected")
		}
	})

	t.Run("ignore beats follow", func(t *testing.T) {
		t.Parallel()

		f := NewPatternFilter([]string{"/docs/*"}, []string{"*.zip"})
		if passed, _ := f.Check(ctx, record(t, "http://example.com/docs/bundle.zip", "", 1, false)); passed {
			t.Error("ignore pattern should win")
		}
	})
}

func TestHostRuleFilter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	rules := map[string]HostRule{
		"strict.example.com": {MaxLevel: 1, Ignore: []string{"/private/*"}},
		"docs.example.com":   {Follow: []string{"/manual/*"}},
	}
	f := NewHostRuleFilter(func(host string) (HostRule, bool) {
		r, ok := rules[host]
		return r, ok
	})

	t.Run("host without rule passes", func(t *testing.T) {
		t.Parallel()

		if passed, _ := f.Check(ctx, record(t, "http://other.example.com/deep", "", 9, false)); !passed {
			t.Error("unruled host should pass")
		}
	})

	t.Run("host level override", func(t *testing.T) {
		t.Parallel()

		if passed, _ := f.Check(ctx, record(t, "http://strict.example.com/a", "", 1, false)); !passed {
			t.Error("depth within host limit should pass")
		}
		if passed, _ := f.Check(ctx, record(t, "http://strict.example.com/a/b", "", 2, false)); passed {
			t.Error("depth beyond host limit should be rejected")
		}
		if passed, _ := f.Check(ctx, record(t, "http://strict.example.com/style.css", "", 2, true)); !passed {
			t.Error("inline resource should get one extra level")
		}
	})

	t.Run("host ignore pattern", func(t *testing.T) {
		t.Parallel()

		if passed, _ := f.Check(ctx, record(t, "http://strict.example.com/private/x", "", 1, false)); passed {
			t.Error("host ignore pattern should reject")
		}
	})

	t.Run("host follow pattern", func(t *testing.T) {
		t.Parallel()

		if passed, _ := f.Check(ctx, record(t, "http://docs.example.com/manual/ch1", "", 1, false)); !passed {
			t.Error("matching follow pattern should pass")
		}
		if passed, _ := f.Check(ctx, record(t, "http://docs.example.com/blog/post", "", 1, false)); passed {
			t.Error("non-matching follow pattern should be rejected")
		}
	})
}
