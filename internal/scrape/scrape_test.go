package scrape

import (
	"strings"
	"testing"

	"github.com/nao1215/webmirror/internal/fetch"
	"github.com/nao1215/webmirror/internal/model"
)

// mustLocator parses a locator or fails the test.
func mustLocator(t *testing.T, raw string) model.Locator {
	t.Helper()

	loc, err := model.ParseLocator(raw)
	if err != nil {
		t.Fatalf("failed to parse %q: %v", raw, err)
	}
	return loc
}

// linkStrings returns the locator keys of a link set.
func linkStrings(links []model.DiscoveredLink) []string {
	out := make([]string, 0, len(links))
	for _, l := range links {
		out = append(out, l.Locator.String())
	}
	return out
}

// TestExtractHTML tests link discovery in HTML documents.
func TestExtractHTML(t *testing.T) {
	t.Parallel()

	s := NewScraper()
	base := mustLocator(t, "http://example.com/dir/page.html")

	t.Run("navigational and inline links", func(t *testing.T) {
		t.Parallel()

		doc := `<html><head>
			<link rel="stylesheet" href="/style.css">
			<link rel="canonical" href="/page">
		</head><body>
			<a href="next.html">next</a>
			<a href="http://other.example/abs">abs</a>
			<img src="logo.png">
			<script src="/app.js"></script>
		</body></html>`

		links := s.ExtractLinks(strings.NewReader(doc), "text/html", base)

		byURL := make(map[string]model.DiscoveredLink)
		for _, l := range links {
			byURL[l.Locator.String()] = l
		}

		if len(links) != 5 {
			t.Fatalf("found %d links %v, want 5", len(links), linkStrings(links))
		}
		if l, ok := byURL["http://example.com/dir/next.html"]; !ok || l.Inline {
			t.Errorf("relative anchor missing or marked inline: %+v", l)
		}
		if _, ok := byURL["http://other.example/abs"]; !ok {
			t.Error("absolute anchor missing")
		}
		if l, ok := byURL["http://example.com/dir/logo.png"]; !ok || !l.Inline {
			t.Errorf("img should be an inline requisite: %+v", l)
		}
		if l, ok := byURL["http://example.com/style.css"]; !ok || !l.Inline {
			t.Errorf("stylesheet should be an inline requisite: %+v", l)
		}
		if _, ok := byURL["http://example.com/page"]; ok {
			t.Error("canonical link should not be discovered")
		}
	})

	t.Run("deduplicates within a document", func(t *testing.T) {
		t.Parallel()

		doc := `<a href="/x">one</a><a href="/x">two</a><a href="/x#frag">three</a>`
		links := s.ExtractLinks(strings.NewReader(doc), "text/html", base)
		if len(links) != 1 {
			t.Errorf("found %d links %v, want 1 after dedup", len(links), linkStrings(links))
		}
	})

	t.Run("base element rebases later links", func(t *testing.T) {
		t.Parallel()

		doc := `<base href="http://cdn.example/assets/"><img src="pic.png">`
		links := s.ExtractLinks(strings.NewReader(doc), "text/html", base)
		if len(links) != 1 || links[0].Locator.String() != "http://cdn.example/assets/pic.png" {
			t.Errorf("links = %v, want rebased target", linkStrings(links))
		}
	})

	t.Run("skips non-fetchable schemes", func(t *testing.T) {
		t.Parallel()

		doc := `<a href="mailto:a@example.com">m</a>
			<a href="javascript:void(0)">j</a>
			<a href="ftp://files.example/pub/">f</a>`
		links := s.ExtractLinks(strings.NewReader(doc), "text/html", base)
		if len(links) != 1 || links[0].Locator.Scheme() != "ftp" {
			t.Errorf("links = %v, want only the ftp target", linkStrings(links))
		}
	})

	t.Run("malformed document yields partial links", func(t *testing.T) {
		t.Parallel()

		doc := `<a href="/ok">fine</a><div <<<< broken`
		links := s.ExtractLinks(strings.NewReader(doc), "text/html", base)
		if len(links) != 1 {
			t.Errorf("found %d links, want the one before the damage", len(links))
		}
	})

	t.Run("unknown content type yields nothing", func(t *testing.T) {
		t.Parallel()

		links := s.ExtractLinks(strings.NewReader("%PDF-1.4"), "application/pdf", base)
		if len(links) != 0 {
			t.Errorf("found %d links in a pdf", len(links))
		}
	})
}

// TestExtractHTMLCharset tests decoding of non-UTF-8 documents.
func TestExtractHTMLCharset(t *testing.T) {
	t.Parallel()

	s := NewScraper()
	base := mustLocator(t, "http://example.com/")

	// ISO-8859-1 body declared via the content type parameter.
	doc := "<a href=\"/caf\xe9\">caf\xe9</a>"
	links := s.ExtractLinks(strings.NewReader(doc), "text/html; charset=iso-8859-1", base)
	if len(links) != 1 {
		t.Fatalf("found %d links, want 1", len(links))
	}
	if got := links[0].Locator.Path(); !strings.Contains(got, "caf") {
		t.Errorf("path = %q, want decoded link target", got)
	}
}

// TestExtractListing tests FTP directory listing parsing.
func TestExtractListing(t *testing.T) {
	t.Parallel()

	s := NewScraper()
	base := mustLocator(t, "ftp://files.example/pub/")

	listing := strings.Join([]string{
		"drwxr-xr-x 2 ftp ftp 4096 Jan 01 00:00 sub",
		"drwxr-xr-x 2 ftp ftp 4096 Jan 01 00:00 .",
		"drwxr-xr-x 2 ftp ftp 4096 Jan 01 00:00 ..",
		"-rw-r--r-- 1 ftp ftp   42 Jan 01 00:00 readme with spaces.txt",
		"lrwxrwxrwx 1 ftp ftp    7 Jan 01 00:00 latest -> releases",
		"",
	}, "\r\n")

	links := s.ExtractLinks(strings.NewReader(listing), fetch.ListingContentType, base)
	got := linkStrings(links)

	want := map[string]bool{
		"ftp://files.example/pub/sub/":                   true,
		"ftp://files.example/pub/readme%20with%20spaces.txt": true,
		"ftp://files.example/pub/latest":                 true,
	}
	if len(got) != len(want) {
		t.Fatalf("links = %v, want %d entries", got, len(want))
	}
	for _, u := range got {
		if !want[u] {
			t.Errorf("unexpected link %q", u)
		}
	}
	for _, l := range links {
		if l.Type != model.LinkTypeListing {
			t.Errorf("link type = %s, want listing", l.Type)
		}
	}
}

// TestWithMaxLinks tests the per-document discovery bound.
func TestWithMaxLinks(t *testing.T) {
	t.Parallel()

	s := NewScraper(WithMaxLinks(2))
	base := mustLocator(t, "http://example.com/")

	doc := `<a href="/1">1</a><a href="/2">2</a><a href="/3">3</a>`
	links := s.ExtractLinks(strings.NewReader(doc), "text/html", base)
	if len(links) != 2 {
		t.Errorf("found %d links, want bound of 2", len(links))
	}
}
