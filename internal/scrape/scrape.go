package scrape

import (
	"bufio"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/model"
)

// inlineAttrs maps element names to the attribute holding an embedded
// resource reference. These become page requisites, not navigation.
var inlineAttrs = map[string]string{
	"img":    "src",
	"script": "src",
	"iframe": "src",
	"frame":  "src",
	"embed":  "src",
	"source": "src",
	"audio":  "src",
	"video":  "src",
	"input":  "src",
	"track":  "src",
}

// Scraper extracts discovered links from fetched content.
type Scraper struct {
	logger *slog.Logger

	// maxLinks bounds discoveries per document. Zero means unbounded.
	maxLinks int
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithLogger sets the logger for parse warnings.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scraper) {
		s.logger = logger
	}
}

// WithMaxLinks bounds how many links one document may yield.
func WithMaxLinks(n int) Option {
	return func(s *Scraper) {
		s.maxLinks = n
	}
}

// NewScraper creates a scraper.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ExtractLinks discovers links in body according to its content type.
// Unknown content types yield no links. Parse failures yield the links
// found before the failure plus a logged warning, never an error.
func (s *Scraper) ExtractLinks(body io.Reader, contentType string, base model.Locator) []model.DiscoveredLink {
	switch {
	case strings.HasPrefix(contentType, "text/html"),
		strings.HasPrefix(contentType, "application/xhtml+xml"):
		return s.extractHTML(body, contentType, base)
	case contentType == fetch.ListingContentType:
		return s.extractListing(body, base)
	default:
		return nil
	}
}

// extractHTML tokenizes an HTML document and collects href/src targets.
// The tokenizer is used instead of the tree parser so a truncated or
// malformed document still yields everything up to the damage.
func (s *Scraper) extractHTML(body io.Reader, contentType string, base model.Locator) []model.DiscoveredLink {
	reader, err := charset.NewReader(body, contentType)
	if err != nil {
		s.logger.Warn("charset detection failed, assuming utf-8",
			slog.String("url", base.String()), slog.Any("error", err))
		reader = body
	}

	collector := newCollector(base, s.maxLinks)
	tokenizer := html.NewTokenizer(reader)

	for {
		tt := tokenizer.Next()
		if tt == html.ErrorToken {
			if err := tokenizer.Err(); err != io.EOF {
				s.logger.Warn("html parse stopped early",
					slog.String("url", base.String()), slog.Any("error", err))
			}
			return collector.links
		}
		if tt != html.StartTagToken && tt != html.SelfClosingTagToken {
			continue
		}

		token := tokenizer.Token()
		switch token.Data {
		case "base":
			if href := attr(token, "href"); href != "" {
				if rebased, err := base.Resolve(href); err == nil {
					collector.base = rebased
				}
			}
		case "a", "area":
			collector.add(attr(token, "href"), false)
		case "link":
			// Stylesheets and icons are requisites; alternate and
			// canonical links are navigation hints we skip.
			rel := strings.ToLower(attr(token, "rel"))
			if strings.Contains(rel, "stylesheet") || strings.Contains(rel, "icon") {
				collector.add(attr(token, "href"), true)
			}
		default:
			if attrName, ok := inlineAttrs[token.Data]; ok {
				collector.add(attr(token, attrName), true)
			}
		}
	}
}

// extractListing parses a Unix-style FTP directory listing.
func (s *Scraper) extractListing(body io.Reader, base model.Locator) []model.DiscoveredLink {
	collector := newCollector(base, s.maxLinks)
	collector.linkType = model.LinkTypeListing

	scanner := bufio.NewScanner(body)
	for scanner.Scan() {
		name, dir, ok := parseListingLine(scanner.Text())
		if !ok || name == "." || name == ".." {
			continue
		}
		if dir {
			name += "/"
		}
		// Listing entries are navigational; directories recurse.
		collector.add(name, false)
	}
	if err := scanner.Err(); err != nil {
		s.logger.Warn("listing parse stopped early",
			slog.String("url", base.String()), slog.Any("error", err))
	}
	return collector.links
}

// parseListingLine extracts the entry name from one "ls -l" style line.
// A line with a single field is treated as a bare name (NLST output).
func parseListingLine(line string) (name string, dir bool, ok bool) {
	fields := strings.Fields(line)
	switch {
	case len(fields) == 0:
		return "", false, false
	case len(fields) == 1:
		return fields[0], false, true
	case len(fields) >= 9:
		name = strings.Join(fields[8:], " ")
		// Symlink lines carry "name -> target"; keep the name.
		if idx := strings.Index(name, " -> "); idx >= 0 {
			name = name[:idx]
		}
		return name, strings.HasPrefix(fields[0], "d"), true
	default:
		return "", false, false
	}
}

// attr returns the value of a token attribute, or "".
func attr(token html.Token, name string) string {
	for _, a := range token.Attr {
		if a.Key == name {
			return a.Val
		}
	}
	return ""
}

// collector accumulates deduplicated discovered links.
type collector struct {
	base     model.Locator
	linkType model.LinkType
	maxLinks int
	seen     map[string]bool
	links    []model.DiscoveredLink
}

// newCollector creates a collector resolving against base.
func newCollector(base model.Locator, maxLinks int) *collector {
	return &collector{
		base:     base,
		linkType: model.LinkTypeHTML,
		maxLinks: maxLinks,
		seen:     make(map[string]bool),
	}
}

// add resolves ref against the base and records it once.
func (c *collector) add(ref string, inline bool) {
	if ref == "" {
		return
	}
	if c.maxLinks > 0 && len(c.links) >= c.maxLinks {
		return
	}

	loc, err := c.base.Resolve(ref)
	if err != nil {
		return
	}
	switch loc.Scheme() {
	case "http", "https", "ftp":
	default:
		return
	}
	if c.seen[loc.Key()] {
		return
	}

	c.seen[loc.Key()] = true
	c.links = append(c.links, model.DiscoveredLink{
		Locator: loc,
		Inline:  inline,
		Type:    c.linkType,
	})
}
