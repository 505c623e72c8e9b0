package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nao1215/webmirror/internal/config"
	"github.com/nao1215/webmirror/internal/dns"
	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/filter"
	"github.com/nao1215/webmirror/internal/frontier"
	"github.com/nao1215/webmirror/internal/hook"
	"github.com/nao1215/webmirror/internal/log"
	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/pipeline"
	"github.com/nao1215/webmirror/internal/record"
	"github.com/nao1215/webmirror/internal/report"
	"github.com/nao1215/webmirror/internal/robots"
	"github.com/nao1215/webmirror/internal/scrape"
	"github.com/nao1215/webmirror/internal/stats"
	"github.com/nao1215/webmirror/internal/waiter"
)

// NewGetCmd creates the get command.
func NewGetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get [url...]",
		Short: "Crawl and archive one or more URLs recursively",
		Long: `Get crawls the given seed URLs recursively and archives every fetched
exchange into a local mirror tree. The crawl frontier persists in a SQLite
database, so rerunning the same command resumes an interrupted crawl.

Examples:
  # Mirror a site two levels deep
  webmirror get --level 2 https://example.com/

  # Depth-first, polite crawl with one second between fetches
  webmirror get --ordering lifo --delay 1s https://example.com/

  # Stay below the seed directory and skip archives
  webmirror get --no-parent --ignore '*.zip' https://example.com/docs/

  # Mirror an FTP directory listing
  webmirror get ftp://ftp.example.com/pub/

Configuration file (.webmirror) example:
  hosts:
    example.com:
      delaySeconds: 2
      level: 3
      headers:
        Authorization: "Bearer token"
      ignorePatterns:
        - "/calendar/*"`,
		Args: cobra.ArbitraryArgs,
		RunE: runGetCmd,
	}

	// Crawl scope flags
	cmd.Flags().IntP("level", "l", config.DefaultMaxLevel,
		"Maximum recursion depth (0 for unlimited)")
	cmd.Flags().Bool("no-parent", false,
		"Never ascend above each seed's directory")
	cmd.Flags().StringSlice("span-hosts", nil,
		"Additional hosts the crawl may enter")
	cmd.Flags().StringSlice("follow", nil,
		"Glob patterns URLs must match to be crawled")
	cmd.Flags().StringSlice("ignore", nil,
		"Glob patterns of URLs to skip")
	cmd.Flags().BoolP("page-requisites", "p", false,
		"Also download embedded resources (images, stylesheets, scripts)")
	cmd.Flags().Bool("no-robots", false,
		"Ignore robots.txt")

	// Fetch behavior flags
	cmd.Flags().DurationP("timeout", "t", config.DefaultTimeout,
		"Deadline for one fetch attempt")
	cmd.Flags().Int("tries", config.DefaultMaxTries,
		"Attempt ceiling per URL, counting the first attempt")
	cmd.Flags().IntP("concurrency", "n", config.DefaultConcurrency,
		"Number of URLs fetched in parallel")
	cmd.Flags().DurationP("delay", "w", config.DefaultDelay,
		"Politeness pause between fetches")
	cmd.Flags().Duration("retry-backoff", config.DefaultRetryBackoff,
		"Base delay before retrying a failed URL")
	cmd.Flags().Bool("linear-backoff", false,
		"Grow retry delays linearly instead of exponentially")
	cmd.Flags().String("ordering", string(config.OrderingFIFO),
		`Frontier dequeue order: "fifo" (breadth-first) or "lifo" (depth-first)`)
	cmd.Flags().StringP("user-agent", "U", config.DefaultUserAgent,
		"User-Agent header sent with every request")

	// Storage flags
	cmd.Flags().StringP("output-dir", "O", ".",
		"Directory the mirror tree is written under")
	cmd.Flags().Bool("no-archive", false,
		"Crawl without writing the mirror tree (frontier still persists)")
	cmd.Flags().String("data-dir", "",
		"Directory holding the frontier database (default: XDG data dir)")

	// Configuration and reporting flags
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .webmirror in current or home directory)")
	cmd.Flags().StringP("report", "r", "",
		"Write a crawl report to the given file (markdown, or JSON for a .json path)")

	return cmd
}

// runGetCmd executes the get command.
func runGetCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := log.New(os.Stderr, cfg.Verbose)
	slog.SetDefault(logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	return runCrawl(ctx, cancel, cfg, logger)
}

// buildConfig creates a Config from cobra command flags.
func buildConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	cfg := config.NewConfig()
	cfg.Seeds = args
	cfg.Verbose = getVerboseFlag(cmd)

	var err error
	if cfg.MaxLevel, err = cmd.Flags().GetInt("level"); err != nil {
		return nil, err
	}
	if cfg.NoParent, err = cmd.Flags().GetBool("no-parent"); err != nil {
		return nil, err
	}
	if cfg.SpanHosts, err = cmd.Flags().GetStringSlice("span-hosts"); err != nil {
		return nil, err
	}
	if cfg.FollowPatterns, err = cmd.Flags().GetStringSlice("follow"); err != nil {
		return nil, err
	}
	if cfg.IgnorePatterns, err = cmd.Flags().GetStringSlice("ignore"); err != nil {
		return nil, err
	}
	if cfg.PageRequisites, err = cmd.Flags().GetBool("page-requisites"); err != nil {
		return nil, err
	}
	if cfg.IgnoreRobots, err = cmd.Flags().GetBool("no-robots"); err != nil {
		return nil, err
	}
	if cfg.Timeout, err = cmd.Flags().GetDuration("timeout"); err != nil {
		return nil, err
	}
	if cfg.MaxTries, err = cmd.Flags().GetInt("tries"); err != nil {
		return nil, err
	}
	if cfg.Concurrency, err = cmd.Flags().GetInt("concurrency"); err != nil {
		return nil, err
	}
	if cfg.Delay, err = cmd.Flags().GetDuration("delay"); err != nil {
		return nil, err
	}
	if cfg.RetryBackoff, err = cmd.Flags().GetDuration("retry-backoff"); err != nil {
		return nil, err
	}
	if cfg.LinearBackoff, err = cmd.Flags().GetBool("linear-backoff"); err != nil {
		return nil, err
	}
	ordering, err := cmd.Flags().GetString("ordering")
	if err != nil {
		return nil, err
	}
	cfg.Ordering = config.Ordering(ordering)
	if cfg.UserAgent, err = cmd.Flags().GetString("user-agent"); err != nil {
		return nil, err
	}
	if cfg.ArchiveDir, err = cmd.Flags().GetString("output-dir"); err != nil {
		return nil, err
	}
	noArchive, err := cmd.Flags().GetBool("no-archive")
	if err != nil {
		return nil, err
	}
	if noArchive {
		cfg.ArchiveDir = ""
	}
	if cfg.DataDir, err = cmd.Flags().GetString("data-dir"); err != nil {
		return nil, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = config.XDGDataDir()
	}
	if cfg.ReportFile, err = cmd.Flags().GetString("report"); err != nil {
		return nil, err
	}
	if cfg.ConfigFilePath, err = cmd.Flags().GetString("config"); err != nil {
		return nil, err
	}

	// Host overrides: an explicit path must exist; the default search is
	// allowed to come up empty.
	explicit := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)
	switch {
	case configPath != "":
		cfg.HostOverrides, err = config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	case explicit:
		return nil, fmt.Errorf("configuration file not found: %s", cfg.ConfigFilePath)
	default:
		cfg.HostOverrides = &config.File{Hosts: make(map[string]config.HostConfig)}
	}

	return cfg, nil
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// runCrawl wires the crawl stack, runs it to completion, and prints the
// summary report. It returns an exitCodeError carrying the crawl's exit
// status when that status is nonzero.
func runCrawl(ctx context.Context, cancel context.CancelFunc, cfg *config.Config, logger *slog.Logger) error {
	fr, err := frontier.Open(cfg.DataDir, frontier.DefaultOptions(),
		frontier.WithOrdering(frontierOrdering(cfg.Ordering)),
		frontier.WithMaxInFlight(cfg.Concurrency),
		frontier.WithEnqueuePolicy(enqueuePolicy(cfg)),
	)
	if err != nil {
		return fmt.Errorf("failed to open frontier: %w", err)
	}
	defer func() {
		if err := fr.Close(); err != nil {
			logger.Error("failed to close frontier", slog.Any("error", err))
		}
	}()
	logger.Info("frontier opened", slog.String("dir", cfg.DataDir))

	registry := fetch.NewRegistry()
	httpFetcher := fetch.NewHTTPFetcher(
		fetch.WithUserAgent(cfg.UserAgent),
		fetch.WithMaxBodySize(cfg.MaxBodySize),
		fetch.WithTimeout(cfg.Timeout),
	)
	registry.Register(httpFetcher)
	registry.Register(fetch.NewFTPFetcher(fetch.WithFTPTimeout(cfg.Timeout)))

	agg := stats.NewAggregator()
	runner := hook.NewRunner(hook.Callbacks{},
		hook.WithTimeout(cfg.HookTimeout), hook.WithLogger(logger))

	store, err := openStore(cfg, agg, logger)
	if err != nil {
		return err
	}

	proc := pipeline.NewProcessor(pipeline.Deps{
		Frontier: fr,
		Registry: registry,
		Resolver: dns.NewResolver(),
		Chain:    filter.NewChain(buildFilters(cfg, registry, httpFetcher, logger)...),
		Hooks:    runner,
		Scraper:  scrape.NewScraper(scrape.WithLogger(logger)),
		Store:    store,
		Stats:    agg,
	},
		pipeline.WithMaxTries(cfg.MaxTries),
		pipeline.WithFetchTimeout(cfg.Timeout),
		pipeline.WithBackoff(buildWaiter(cfg)),
		pipeline.WithPageRequisites(cfg.PageRequisites),
		pipeline.WithHostPolicy(hostPolicyFunc(cfg.HostOverrides)),
		pipeline.WithLogger(logger),
	)

	engine := pipeline.NewEngine(proc, fr, agg, runner, store,
		pipeline.WithConcurrency(cfg.Concurrency),
		pipeline.WithPolitenessDelay(cfg.Delay),
		pipeline.WithEngineLogger(logger),
	)

	for _, seed := range cfg.Seeds {
		loc, err := model.ParseLocator(seed)
		if err != nil {
			return fmt.Errorf("invalid seed URL %q: %w", seed, err)
		}
		res, err := fr.Enqueue(ctx, loc, 0, frontier.Provenance{RootURL: loc.String()})
		if err != nil {
			return fmt.Errorf("failed to enqueue seed %q: %w", seed, err)
		}
		logger.Info("seed enqueued",
			slog.String("url", loc.String()), slog.String("result", res.String()))
	}

	// First signal drains in-flight work; a second one aborts it.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		<-sigCh
		engine.Stop()
		<-sigCh
		cancel()
	}()

	if err := engine.Run(ctx); err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}

	counts, err := fr.Counts(ctx)
	if err != nil {
		logger.Error("failed to read frontier counts", slog.Any("error", err))
		counts = map[model.Status]int64{}
	}

	exit := engine.ExitStatus(ctx)
	if err := writeReport(cfg, agg, counts, exit); err != nil {
		logger.Error("failed to write report", slog.Any("error", err))
		agg.RecordFileIOError()
		if exit == model.ExitOK {
			exit = model.ExitFileIOError
		}
	}

	if exit != model.ExitOK {
		return &exitCodeError{code: exit}
	}
	return nil
}

// openStore builds the archive writer. Async write failures feed the
// file I/O error class so the exit status reflects them.
func openStore(cfg *config.Config, agg *stats.Aggregator, logger *slog.Logger) (record.Store, error) {
	if cfg.ArchiveDir == "" {
		return record.Discard{}, nil
	}
	store, err := record.NewFSStore(cfg.ArchiveDir,
		record.WithLogger(logger),
		record.WithWriteErrorFunc(func(error) { agg.RecordFileIOError() }),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive directory: %w", err)
	}
	return store, nil
}

// enqueuePolicy is the admission check run before a discovered link is
// persisted. Depth and host-span violations can never pass the pre-fetch
// gate later, so rejecting them here keeps those rows out of the frontier
// entirely. The full filter chain still runs at the gate.
func enqueuePolicy(cfg *config.Config) func(loc model.Locator, level int, prov frontier.Provenance) bool {
	allowed := make(map[string]bool, len(cfg.SpanHosts))
	for _, h := range cfg.SpanHosts {
		allowed[strings.ToLower(h)] = true
	}
	return func(loc model.Locator, level int, prov frontier.Provenance) bool {
		if cfg.MaxLevel > 0 {
			limit := cfg.MaxLevel
			if prov.Inline {
				limit++
			}
			if level > limit {
				return false
			}
		}
		if prov.RootURL == "" || allowed[loc.Hostname()] {
			return true
		}
		root, err := model.ParseLocator(prov.RootURL)
		if err != nil {
			return true
		}
		return loc.Hostname() == root.Hostname()
	}
}

// buildFilters assembles the pre-fetch gate from the configuration.
func buildFilters(cfg *config.Config, registry *fetch.Registry, fetcher fetch.Fetcher, logger *slog.Logger) []filter.Filter {
	filters := []filter.Filter{
		filter.NewSchemeFilter(registry),
		filter.NewLevelFilter(cfg.MaxLevel),
		filter.NewSpanFilter(false, cfg.SpanHosts),
	}
	if cfg.NoParent {
		filters = append(filters, filter.NewParentFilter())
	}
	if len(cfg.FollowPatterns) > 0 || len(cfg.IgnorePatterns) > 0 {
		filters = append(filters, filter.NewPatternFilter(cfg.FollowPatterns, cfg.IgnorePatterns))
	}
	if overrides := cfg.HostOverrides; overrides != nil {
		filters = append(filters, filter.NewHostRuleFilter(func(host string) (filter.HostRule, bool) {
			hc := overrides.GetHostConfig(host)
			rule := filter.HostRule{
				MaxLevel: hc.Level,
				Follow:   hc.FollowPatterns,
				Ignore:   hc.IgnorePatterns,
			}
			if rule.MaxLevel == 0 && len(rule.Follow) == 0 && len(rule.Ignore) == 0 {
				return filter.HostRule{}, false
			}
			return rule, true
		}))
	}
	if !cfg.IgnoreRobots {
		policy := robots.NewPolicy(fetcher,
			robots.WithUserAgent(cfg.UserAgent), robots.WithLogger(logger))
		filters = append(filters, filter.NewRobotsFilter(policy))
	}
	return filters
}

// buildWaiter selects the retry backoff schedule.
func buildWaiter(cfg *config.Config) waiter.Waiter {
	if cfg.LinearBackoff {
		return waiter.Linear{
			Base:   cfg.RetryBackoff,
			Step:   cfg.RetryBackoff,
			Max:    cfg.MaxRetryBackoff,
			Jitter: true,
		}
	}
	return waiter.Exponential{
		Base:   cfg.RetryBackoff,
		Max:    cfg.MaxRetryBackoff,
		Jitter: true,
	}
}

// hostPolicyFunc adapts config file host overrides to the pipeline.
func hostPolicyFunc(overrides *config.File) func(host string) pipeline.HostPolicy {
	return func(host string) pipeline.HostPolicy {
		if overrides == nil {
			return pipeline.HostPolicy{}
		}
		hc := overrides.GetHostConfig(host)
		policy := pipeline.HostPolicy{
			Delay: time.Duration(hc.DelaySeconds * float64(time.Second)),
		}
		if len(hc.Headers) > 0 {
			policy.Header = make(http.Header, len(hc.Headers))
			for k, v := range hc.Headers {
				policy.Header.Set(k, v)
			}
		}
		return policy
	}
}

// frontierOrdering maps the config ordering to the frontier's.
func frontierOrdering(o config.Ordering) frontier.Ordering {
	if o == config.OrderingLIFO {
		return frontier.LIFO
	}
	return frontier.FIFO
}

// writeReport prints the crawl summary to stderr and, when configured,
// writes a markdown report file.
func writeReport(cfg *config.Config, agg *stats.Aggregator, counts map[model.Status]int64, exit int) error {
	summary := &report.Summary{
		Seeds:      cfg.Seeds,
		Stats:      agg.Snapshot(),
		Counts:     counts,
		Duration:   agg.Duration(),
		ExitStatus: exit,
		Stopped:    agg.Stopped(),
	}

	writers := []report.Writer{
		report.NewSimpleWriter(os.Stderr, report.WithVerbose(cfg.Verbose)),
	}
	if cfg.ReportFile != "" {
		f, err := os.Create(cfg.ReportFile)
		if err != nil {
			return fmt.Errorf("failed to create report file: %w", err)
		}
		defer func() { _ = f.Close() }()
		// The extension picks the format; markdown is the default.
		if filepath.Ext(cfg.ReportFile) == ".json" {
			writers = append(writers, report.NewJSONWriter(f))
		} else {
			writers = append(writers, report.NewMarkdownWriter(f))
		}
	}

	if _, err := report.NewMultiWriter(writers...).Write(summary); err != nil {
		return fmt.Errorf("failed to write summary: %w", err)
	}
	return nil
}
