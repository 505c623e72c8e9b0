package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nao1215/webmirror/internal/config"
	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/filter"
	"github.com/nao1215/webmirror/internal/frontier"
	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/waiter"
)

// TestNewGetCmd tests the get command creation.
func TestNewGetCmd(t *testing.T) {
	t.Parallel()

	cmd := NewGetCmd()

	t.Run("has correct use", func(t *testing.T) {
		t.Parallel()
		if cmd.Use != "get [url...]" {
			t.Errorf("expected use 'get [url...]', got %q", cmd.Use)
		}
	})

	t.Run("has crawl flags", func(t *testing.T) {
		t.Parallel()
		for _, name := range []string{
			"level", "no-parent", "span-hosts", "follow", "ignore",
			"page-requisites", "no-robots", "timeout", "tries",
			"concurrency", "delay", "retry-backoff", "linear-backoff",
			"ordering", "user-agent", "output-dir", "no-archive",
			"data-dir", "config", "report",
		} {
			if cmd.Flags().Lookup(name) == nil {
				t.Errorf("expected flag %q", name)
			}
		}
	})
}

// TestBuildConfig tests flag-to-config translation.
func TestBuildConfig(t *testing.T) {
	t.Parallel()

	t.Run("defaults", func(t *testing.T) {
		t.Parallel()

		cmd := NewGetCmd()
		if err := cmd.ParseFlags(nil); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}

		if len(cfg.Seeds) != 1 || cfg.Seeds[0] != "https://example.com/" {
			t.Errorf("Seeds = %v", cfg.Seeds)
		}
		if cfg.MaxLevel != config.DefaultMaxLevel {
			t.Errorf("MaxLevel = %d, want %d", cfg.MaxLevel, config.DefaultMaxLevel)
		}
		if cfg.ArchiveDir != "." {
			t.Errorf("ArchiveDir = %q, want %q", cfg.ArchiveDir, ".")
		}
		if cfg.DataDir == "" {
			t.Error("DataDir should default to the XDG data dir")
		}
		if err := cfg.Validate(); err != nil {
			t.Errorf("default config should validate: %v", err)
		}
	})

	t.Run("no-archive clears archive dir", func(t *testing.T) {
		t.Parallel()

		cmd := NewGetCmd()
		if err := cmd.ParseFlags([]string{"--no-archive"}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}
		if cfg.ArchiveDir != "" {
			t.Errorf("ArchiveDir = %q, want empty", cfg.ArchiveDir)
		}
	})

	t.Run("explicit missing config file errors", func(t *testing.T) {
		t.Parallel()

		cmd := NewGetCmd()
		missing := filepath.Join(t.TempDir(), "nope.yaml")
		if err := cmd.ParseFlags([]string{"--config", missing}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		if _, err := buildConfig(cmd, []string{"https://example.com/"}); err == nil {
			t.Error("expected error for missing explicit config file")
		}
	})

	t.Run("loads host overrides", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), ".webmirror")
		content := "hosts:\n  example.com:\n    level: 2\n    delaySeconds: 1.5\n"
		if err := os.WriteFile(path, []byte(content), 0600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		cmd := NewGetCmd()
		if err := cmd.ParseFlags([]string{"--config", path}); err != nil {
			t.Fatalf("failed to parse flags: %v", err)
		}
		cfg, err := buildConfig(cmd, []string{"https://example.com/"})
		if err != nil {
			t.Fatalf("buildConfig failed: %v", err)
		}

		hc := cfg.HostOverrides.GetHostConfig("example.com")
		if hc.Level != 2 {
			t.Errorf("host level = %d, want 2", hc.Level)
		}
		policy := hostPolicyFunc(cfg.HostOverrides)("example.com")
		if policy.Delay != 1500*time.Millisecond {
			t.Errorf("host delay = %v, want 1.5s", policy.Delay)
		}
	})
}

// TestBuildWaiter tests backoff schedule selection.
func TestBuildWaiter(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	if _, ok := buildWaiter(cfg).(waiter.Exponential); !ok {
		t.Error("default backoff should be exponential")
	}

	cfg.LinearBackoff = true
	if _, ok := buildWaiter(cfg).(waiter.Linear); !ok {
		t.Error("linear-backoff flag should select the linear schedule")
	}
}

// TestFrontierOrdering tests ordering translation.
func TestFrontierOrdering(t *testing.T) {
	t.Parallel()

	if got := frontierOrdering(config.OrderingFIFO); got != frontier.FIFO {
		t.Errorf("fifo maps to %v", got)
	}
	if got := frontierOrdering(config.OrderingLIFO); got != frontier.LIFO {
		t.Errorf("lifo maps to %v", got)
	}
}

// TestBuildFilters tests gate assembly from configuration.
func TestBuildFilters(t *testing.T) {
	t.Parallel()

	registry := fetch.NewRegistry()
	fetcher := fetch.NewHTTPFetcher()
	registry.Register(fetcher)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("robots on by default", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		names := filterNames(buildFilters(cfg, registry, fetcher, logger))
		if !names["robots"] {
			t.Error("robots filter should be present by default")
		}
		if names["no_parent"] {
			t.Error("no_parent filter should be absent by default")
		}
	})

	t.Run("flags toggle filters", func(t *testing.T) {
		t.Parallel()

		cfg := config.NewConfig()
		cfg.IgnoreRobots = true
		cfg.NoParent = true
		cfg.IgnorePatterns = []string{"*.zip"}
		names := filterNames(buildFilters(cfg, registry, fetcher, logger))
		if names["robots"] {
			t.Error("robots filter should be absent with --no-robots")
		}
		if !names["no_parent"] {
			t.Error("no_parent filter should be present with --no-parent")
		}
		if !names["pattern"] {
			t.Error("pattern filter should be present with --ignore")
		}
	})
}

// TestEnqueuePolicy tests the admission check installed on the frontier.
func TestEnqueuePolicy(t *testing.T) {
	t.Parallel()

	cfg := config.NewConfig()
	cfg.MaxLevel = 2
	cfg.SpanHosts = []string{"cdn.example.com"}
	policy := enqueuePolicy(cfg)

	seed := "http://example.com/"
	loc := func(t *testing.T, raw string) model.Locator {
		t.Helper()
		l, err := model.ParseLocator(raw)
		if err != nil {
			t.Fatalf("failed to parse %q: %v", raw, err)
		}
		return l
	}

	tests := []struct {
		name  string
		raw   string
		level int
		prov  frontier.Provenance
		want  bool
	}{
		{
			name: "seed admitted",
			raw:  seed, level: 0,
			prov: frontier.Provenance{RootURL: seed},
			want: true,
		},
		{
			name: "within depth admitted",
			raw:  "http://example.com/a", level: 2,
			prov: frontier.Provenance{RootURL: seed},
			want: true,
		},
		{
			name: "over depth rejected before persistence",
			raw:  "http://example.com/deep", level: 3,
			prov: frontier.Provenance{RootURL: seed},
			want: false,
		},
		{
			name: "inline resource gets one extra level",
			raw:  "http://example.com/style.css", level: 3,
			prov: frontier.Provenance{RootURL: seed, Inline: true},
			want: true,
		},
		{
			name: "foreign host rejected",
			raw:  "http://elsewhere.example/", level: 1,
			prov: frontier.Provenance{RootURL: seed},
			want: false,
		},
		{
			name: "spanned host admitted",
			raw:  "http://cdn.example.com/app.js", level: 1,
			prov: frontier.Provenance{RootURL: seed, Inline: true},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := policy(loc(t, tt.raw), tt.level, tt.prov); got != tt.want {
				t.Errorf("policy(%s, level %d) = %v, want %v", tt.raw, tt.level, got, tt.want)
			}
		})
	}
}

// filterNames collects the names of a filter list.
func filterNames(filters []filter.Filter) map[string]bool {
	names := make(map[string]bool, len(filters))
	for _, f := range filters {
		names[f.Name()] = true
	}
	return names
}

// TestRunCrawlEndToEnd crawls a local server through the full command
// wiring and checks the mirror tree on disk.
func TestRunCrawlEndToEnd(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body><a href="/about.html">about</a></body></html>`)
	})
	mux.HandleFunc("/about.html", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, `<html><body>about page</body></html>`)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "User-agent: *\nAllow: /\n")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := config.NewConfig()
	cfg.Seeds = []string{srv.URL + "/"}
	cfg.DataDir = t.TempDir()
	cfg.ArchiveDir = t.TempDir()
	cfg.MaxLevel = 2
	cfg.Timeout = 5 * time.Second
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config should validate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := runCrawl(ctx, cancel, cfg, logger); err != nil {
		t.Fatalf("crawl failed: %v", err)
	}

	found := false
	err := filepath.WalkDir(cfg.ArchiveDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Base(path) == "about.html" {
			found = true
		}
		return nil
	})
	if err != nil {
		t.Fatalf("failed to walk mirror tree: %v", err)
	}
	if !found {
		t.Error("mirror tree missing about.html")
	}
}
