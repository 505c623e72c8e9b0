package pipeline

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nao1215/webmirror/internal/dns"
	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/filter"
	"github.com/nao1215/webmirror/internal/frontier"
	"github.com/nao1215/webmirror/internal/hook"
	"github.com/nao1215/webmirror/internal/model"
	"github.com/nao1215/webmirror/internal/record"
	"github.com/nao1215/webmirror/internal/scrape"
	"github.com/nao1215/webmirror/internal/stats"
	"github.com/nao1215/webmirror/internal/waiter"
)

// Deps are the collaborators a Processor drives. All fields are required.
type Deps struct {
	Frontier *frontier.Frontier
	Registry *fetch.Registry
	Resolver *dns.Resolver
	Chain    *filter.Chain
	Hooks    *hook.Runner
	Scraper  *scrape.Scraper
	Store    record.Store
	Stats    *stats.Aggregator
}

// HostPolicy carries per-host crawl adjustments loaded from the
// operator's config file.
type HostPolicy struct {
	// Delay is an extra politeness pause before each fetch to the host.
	Delay time.Duration

	// Header holds extra request headers for the host.
	Header http.Header
}

// Processor runs one record through the fetch state machine.
//
// Design decision: The processor owns per-item behavior only; crawl-wide
// behavior (concurrency, politeness delay, stopping) lives in the Engine
// because:
//  1. Process can then be tested record by record without a running crawl
//  2. The stop decision needs visibility across items
//  3. It mirrors the ownership rule: one item context per in-flight record
type Processor struct {
	deps Deps

	// maxTries is the attempt ceiling before a retryable failure
	// becomes permanent.
	maxTries int

	// fetchTimeout is the per-attempt deadline.
	fetchTimeout time.Duration

	// backoff schedules the delay before a retry becomes eligible.
	backoff waiter.Waiter

	// hostPolicy resolves per-host adjustments. Nil means none.
	hostPolicy func(host string) HostPolicy

	// requisites controls whether embedded resources (images,
	// stylesheets, scripts) are enqueued alongside navigational links.
	requisites bool

	logger *slog.Logger
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithMaxTries sets the attempt ceiling.
func WithMaxTries(n int) ProcessorOption {
	return func(p *Processor) {
		if n > 0 {
			p.maxTries = n
		}
	}
}

// WithFetchTimeout sets the per-attempt deadline.
func WithFetchTimeout(d time.Duration) ProcessorOption {
	return func(p *Processor) {
		if d > 0 {
			p.fetchTimeout = d
		}
	}
}

// WithBackoff sets the retry backoff schedule.
func WithBackoff(w waiter.Waiter) ProcessorOption {
	return func(p *Processor) {
		p.backoff = w
	}
}

// WithPageRequisites controls whether embedded resources are enqueued.
// On by default.
func WithPageRequisites(enabled bool) ProcessorOption {
	return func(p *Processor) {
		p.requisites = enabled
	}
}

// WithHostPolicy installs a per-host adjustment lookup.
func WithHostPolicy(fn func(host string) HostPolicy) ProcessorOption {
	return func(p *Processor) {
		p.hostPolicy = fn
	}
}

// WithLogger sets the processor's logger.
func WithLogger(logger *slog.Logger) ProcessorOption {
	return func(p *Processor) {
		p.logger = logger
	}
}

// NewProcessor creates a processor over its collaborators.
func NewProcessor(deps Deps, opts ...ProcessorOption) *Processor {
	p := &Processor{
		deps:         deps,
		maxTries:     3,
		fetchTimeout: 60 * time.Second,
		requisites:   true,
		backoff:      &waiter.Linear{Base: time.Second, Step: time.Second, Max: 30 * time.Second},
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Process drives one dequeued record to completion and reports the
// outcome to the frontier and the statistics aggregator. It returns true
// when a callback requested a full crawl stop.
func (p *Processor) Process(ctx context.Context, rec *model.Record) (stopRequested bool) {
	p.deps.Stats.RecordAttempt()
	logger := p.logger.With(
		slog.String("url", rec.Locator.String()),
		slog.Int("try", rec.TryCount+1),
		slog.Int("level", rec.Level),
	)
	logger.DebugContext(ctx, "processing record", slog.String("state", StateQueued.String()))

	logger.DebugContext(ctx, "resolving", slog.String("state", StateResolving.String()))
	addr, failure := p.resolve(ctx, rec)
	if failure != nil {
		return p.concludeFailure(ctx, rec, failure, logger)
	}

	// The gate runs before any network I/O.
	logger.DebugContext(ctx, "consulting pre-fetch gate", slog.String("state", StateConnecting.String()))
	accept, reasons := p.deps.Chain.Evaluate(ctx, rec)
	accept = p.deps.Hooks.AcceptURL(ctx, rec.Snapshot(), accept, reasons)
	if !accept {
		logger.InfoContext(ctx, "record skipped by pre-fetch gate")
		if err := p.deps.Frontier.ReportSkipped(ctx, rec); err != nil {
			logger.ErrorContext(ctx, "failed to record skip", slog.Any("error", err))
		}
		p.deps.Stats.RecordSkipped()
		return false
	}

	// Fetching.
	fetcher, err := p.deps.Registry.ForLocator(rec.Locator)
	if err != nil {
		// The scheme filter admits only registered schemes, so this is
		// a misconfiguration rather than a crawl condition.
		return p.concludeFailure(ctx, rec, &fetch.Outcome{
			Class: fetch.Permanent, Kind: fetch.KindProtocolViolation, Err: err,
		}, logger)
	}

	var policy HostPolicy
	if p.hostPolicy != nil {
		policy = p.hostPolicy(rec.Locator.Hostname())
		if policy.Delay > 0 {
			sleepContext(ctx, policy.Delay)
		}
	}

	logger.DebugContext(ctx, "fetching", slog.String("state", StateFetching.String()))
	fctx, cancel := context.WithTimeout(ctx, p.fetchTimeout)
	defer cancel()

	out := fetcher.Fetch(fctx, &fetch.Request{
		Locator:  rec.Locator,
		Address:  addr,
		Referrer: rec.Referrer,
		Header:   policy.Header,
	})
	if out.Class != fetch.Success {
		logger.WarnContext(ctx, "fetch failed",
			slog.String("class", out.Class.String()),
			slog.String("kind", string(out.Kind)),
			slog.Any("error", out.Err))
		p.archiveFailure(ctx, rec, out, logger)
		return p.concludeFailure(ctx, rec, out, logger)
	}

	logger.DebugContext(ctx, "post-processing", slog.String("state", StatePostProcessing.String()))
	return p.postProcess(ctx, rec, out.Response, logger)
}

// resolve produces the connection address for the record's host. The
// resolver callback is consulted first and may pin any address.
func (p *Processor) resolve(ctx context.Context, rec *model.Record) (string, *fetch.Outcome) {
	host := rec.Locator.Hostname()
	if addr := p.deps.Hooks.ResolveDNS(ctx, host); addr != "" {
		// Pin the override so the host keeps resolving to the callback's
		// answer even if the callback later declines to answer for it.
		p.deps.Resolver.Pin(host, addr)
		return addr, nil
	}

	addr, err := p.deps.Resolver.Resolve(ctx, host)
	if err != nil {
		class := fetch.Transient
		if dns.IsPermanent(err) {
			class = fetch.Permanent
		}
		return "", &fetch.Outcome{Class: class, Kind: fetch.KindDNSFailure, Err: err}
	}
	return addr, nil
}

// postProcess archives the response, consults the post-fetch callback,
// and runs link discovery for successful documents.
func (p *Processor) postProcess(ctx context.Context, rec *model.Record, resp *fetch.Response, logger *slog.Logger) (stopRequested bool) {
	// The body is streamed into the archive; document bodies are teed
	// into a bounded spool for link discovery. The archive write starts
	// before the stream is released in every path.
	scrapeable := resp.StatusCode >= 200 && resp.StatusCode < 300 && resp.IsDocument()
	var spool bytes.Buffer
	var body io.Reader = resp.Body
	if scrapeable {
		body = io.TeeReader(resp.Body, &spool)
	}

	entry, err := p.deps.Store.Save(ctx, &record.Exchange{
		URL:            rec.Locator.String(),
		FetchedAt:      time.Now(),
		StatusCode:     resp.StatusCode,
		Status:         resp.Status,
		ResponseHeader: resp.Header,
	}, body)
	if cerr := resp.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		logger.ErrorContext(ctx, "failed to archive response", slog.Any("error", err))
		p.deps.Stats.RecordFileIOError()
		entry = &record.Entry{}
	}

	action := p.deps.Hooks.HandleResponse(ctx, rec.Snapshot(), hook.NewResponseView(resp))
	switch action {
	case hook.ActionStop:
		stopRequested = true
	case hook.ActionRetry:
		p.retry(ctx, rec, fetch.KindNone, false, logger)
		return false
	case hook.ActionFinish:
		p.succeed(ctx, rec, resp.StatusCode, entry.Bytes, logger)
		return false
	}

	switch {
	case resp.IsRedirect():
		p.succeed(ctx, rec, resp.StatusCode, entry.Bytes, logger)
		if !stopRequested {
			p.enqueueRedirect(ctx, rec, resp.RedirectTarget, logger)
		}
	case resp.IsServerError():
		// Server errors are worth retrying; the condition may clear.
		logger.WarnContext(ctx, "server error response", slog.Int("status", resp.StatusCode))
		p.retry(ctx, rec, fetch.KindNone, true, logger)
	case resp.StatusCode >= 400:
		logger.WarnContext(ctx, "error response", slog.Int("status", resp.StatusCode))
		if err := p.deps.Frontier.ReportPermanentFailure(ctx, rec, resp.StatusCode); err != nil {
			logger.ErrorContext(ctx, "failed to record failure", slog.Any("error", err))
		}
		p.deps.Stats.RecordServerFailure()
	default:
		p.succeed(ctx, rec, resp.StatusCode, entry.Bytes, logger)
		// A stop means halt now: the record concludes but nothing new
		// enters the frontier.
		if !stopRequested {
			p.discoverLinks(ctx, rec, resp, &spool, entry, scrapeable, logger)
		}
	}
	return stopRequested
}

// succeed records a completed fetch.
func (p *Processor) succeed(ctx context.Context, rec *model.Record, statusCode int, size int64, logger *slog.Logger) {
	logger.InfoContext(ctx, "fetch completed",
		slog.Int("status", statusCode), slog.Int64("bytes", size))
	if err := p.deps.Frontier.ReportSuccess(ctx, rec, statusCode); err != nil {
		logger.ErrorContext(ctx, "failed to record success", slog.Any("error", err))
	}
	p.deps.Stats.RecordSuccess(size)
}

// discoverLinks merges scraper output with callback-supplied locators
// and enqueues each once.
func (p *Processor) discoverLinks(ctx context.Context, rec *model.Record, resp *fetch.Response, spool *bytes.Buffer, entry *record.Entry, scrapeable bool, logger *slog.Logger) {
	var links []model.DiscoveredLink
	if scrapeable {
		links = p.deps.Scraper.ExtractLinks(spool, resp.ContentType, rec.Locator)
	}

	supplied := p.deps.Hooks.GetURLs(ctx, rec.Snapshot(), hook.DocumentView{
		Path:        entry.BodyPath,
		ContentType: resp.ContentType,
		StatusCode:  resp.StatusCode,
	})
	for _, raw := range supplied {
		loc, err := model.ParseLocator(raw)
		if err != nil {
			logger.WarnContext(ctx, "callback supplied unparseable locator",
				slog.String("raw", raw), slog.Any("error", err))
			continue
		}
		links = append(links, model.DiscoveredLink{Locator: loc, Type: model.LinkTypeHook})
	}

	// Duplicates across the merged sources collapse to one enqueue each.
	seen := make(map[string]bool, len(links))
	for _, link := range links {
		if link.Inline && !p.requisites {
			continue
		}
		if seen[link.Locator.Key()] {
			continue
		}
		seen[link.Locator.Key()] = true
		p.enqueue(ctx, rec, link, rec.Level+1, logger)
	}
}

// enqueueRedirect feeds a redirect target back through the frontier as
// exactly one discovered link, at the same depth as its source so the
// hop does not consume a recursion level.
func (p *Processor) enqueueRedirect(ctx context.Context, rec *model.Record, target string, logger *slog.Logger) {
	loc, err := model.ParseLocator(target)
	if err != nil {
		logger.WarnContext(ctx, "unparseable redirect target",
			slog.String("target", target), slog.Any("error", err))
		p.deps.Stats.RecordParseError()
		return
	}
	p.enqueue(ctx, rec, model.DiscoveredLink{
		Locator: loc,
		Inline:  rec.Inline,
		Type:    model.LinkTypeRedirect,
	}, rec.Level, logger)
}

// enqueue inserts one discovered link with provenance from its source.
func (p *Processor) enqueue(ctx context.Context, rec *model.Record, link model.DiscoveredLink, level int, logger *slog.Logger) {
	root := rec.RootURL
	if root == "" {
		root = rec.Locator.String()
	}

	res, err := p.deps.Frontier.Enqueue(ctx, link.Locator, level, frontier.Provenance{
		RootURL:  root,
		Referrer: rec.Locator.String(),
		Inline:   link.Inline,
		LinkType: string(link.Type),
	})
	if err != nil {
		logger.ErrorContext(ctx, "failed to enqueue discovered link",
			slog.String("link", link.Locator.String()), slog.Any("error", err))
		return
	}
	logger.DebugContext(ctx, "discovered link",
		slog.String("link", link.Locator.String()),
		slog.String("result", res.String()))
}

// archiveFailure stores a metadata-only exchange for a failed attempt.
func (p *Processor) archiveFailure(ctx context.Context, rec *model.Record, out *fetch.Outcome, logger *slog.Logger) {
	meta := &record.Exchange{
		URL:       rec.Locator.String(),
		FetchedAt: time.Now(),
	}
	if out.Err != nil {
		meta.Error = out.Err.Error()
	}
	if _, err := p.deps.Store.Save(ctx, meta, nil); err != nil {
		logger.ErrorContext(ctx, "failed to archive attempt", slog.Any("error", err))
		p.deps.Stats.RecordFileIOError()
	}
}

// concludeFailure consults the error callback and routes the failure to
// the permanent or retry path. Returns true when a stop was requested.
func (p *Processor) concludeFailure(ctx context.Context, rec *model.Record, out *fetch.Outcome, logger *slog.Logger) (stopRequested bool) {
	action := p.deps.Hooks.HandleError(ctx, rec.Snapshot(), hook.NewErrorView(out))
	switch action {
	case hook.ActionStop:
		stopRequested = true
	case hook.ActionFinish:
		p.succeed(ctx, rec, 0, 0, logger)
		return stopRequested
	case hook.ActionRetry:
		out = &fetch.Outcome{Class: fetch.Transient, Kind: out.Kind, Err: out.Err}
	}

	if out.Class == fetch.Permanent {
		if err := p.deps.Frontier.ReportPermanentFailure(ctx, rec, 0); err != nil {
			logger.ErrorContext(ctx, "failed to record failure", slog.Any("error", err))
		}
		p.deps.Stats.RecordFailure(out.Kind)
		return stopRequested
	}

	p.retry(ctx, rec, out.Kind, false, logger)
	return stopRequested
}

// retry re-enqueues a record with backoff, or marks it errored at the
// attempt ceiling.
func (p *Processor) retry(ctx context.Context, rec *model.Record, kind fetch.ErrorKind, serverError bool, logger *slog.Logger) {
	backoff := p.backoff.Delay(rec.TryCount + 1)
	status, err := p.deps.Frontier.ReportRetryableFailure(ctx, rec, p.maxTries, backoff)
	if err != nil {
		logger.ErrorContext(ctx, "failed to record retryable failure", slog.Any("error", err))
		return
	}

	if status == model.StatusErrored {
		logger.WarnContext(ctx, "attempt ceiling reached",
			slog.Int("tries", rec.TryCount))
		if serverError {
			p.deps.Stats.RecordServerFailure()
		} else {
			p.deps.Stats.RecordFailure(kind)
		}
		return
	}
	logger.InfoContext(ctx, "retry scheduled", slog.Duration("backoff", backoff))
}
