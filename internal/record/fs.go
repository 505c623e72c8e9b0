package record

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// FSStore mirrors fetched content into a directory tree, one subtree per
// host, the way wget lays out a mirror. Metadata sidecars are written
// asynchronously so the pipeline never waits on them.
type FSStore struct {
	root   string
	logger *slog.Logger

	// wg tracks in-flight sidecar writes so Close can drain them.
	wg sync.WaitGroup

	// onWriteError is notified of asynchronous write failures, since
	// their errors cannot surface through Save.
	onWriteError func(error)
}

// FSOption configures an FSStore.
type FSOption func(*FSStore)

// WithLogger sets the logger for asynchronous write warnings.
func WithLogger(logger *slog.Logger) FSOption {
	return func(s *FSStore) {
		s.logger = logger
	}
}

// WithWriteErrorFunc registers a callback for asynchronous write failures.
func WithWriteErrorFunc(fn func(error)) FSOption {
	return func(s *FSStore) {
		s.onWriteError = fn
	}
}

// NewFSStore creates a filesystem store rooted at dir.
func NewFSStore(dir string, opts ...FSOption) (*FSStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	s := &FSStore{
		root:   dir,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Save writes the body synchronously and schedules the metadata sidecar.
// The body stream is fully consumed before Save returns.
func (s *FSStore) Save(ctx context.Context, meta *Exchange, body io.Reader) (*Entry, error) {
	entry := &Entry{}

	if body != nil {
		path, err := s.bodyPath(meta.URL)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return nil, fmt.Errorf("failed to create content directory: %w", err)
		}

		f, err := os.Create(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", path, err)
		}
		n, err := io.Copy(f, body)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return nil, fmt.Errorf("failed to write %s: %w", path, err)
		}
		entry.BodyPath = path
		entry.Bytes = n
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.writeSidecar(meta, entry.BodyPath); err != nil {
			s.logger.WarnContext(ctx, "failed to write exchange metadata",
				slog.String("url", meta.URL), slog.Any("error", err))
			if s.onWriteError != nil {
				s.onWriteError(err)
			}
		}
	}()

	return entry, nil
}

// Close waits for outstanding sidecar writes.
func (s *FSStore) Close() error {
	s.wg.Wait()
	return nil
}

// writeSidecar stores the exchange metadata next to the body.
func (s *FSStore) writeSidecar(meta *Exchange, bodyPath string) error {
	var path string
	if bodyPath != "" {
		path = bodyPath + ".meta.json"
	} else {
		var err error
		if path, err = s.bodyPath(meta.URL); err != nil {
			return err
		}
		path += ".meta.json"
		if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
			return err
		}
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0600)
}

// bodyPath maps a locator to its mirror-tree file path.
func (s *FSStore) bodyPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("unstorable URL %q: %w", rawURL, err)
	}

	p := u.EscapedPath()
	if p == "" || strings.HasSuffix(p, "/") {
		p += "index.html"
	}
	if u.RawQuery != "" {
		p += "@" + sanitize(u.RawQuery)
	}

	rel := filepath.Join(u.Host, filepath.FromSlash(sanitizePath(p)))
	full := filepath.Join(s.root, rel)

	// A crafted path must not escape the archive root.
	if !strings.HasPrefix(full, filepath.Clean(s.root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("URL %q maps outside the archive root", rawURL)
	}
	return full, nil
}

// sanitizePath neutralizes path segments that the filesystem would
// interpret, keeping the tree shape readable.
func sanitizePath(p string) string {
	segments := strings.Split(p, "/")
	for i, seg := range segments {
		if seg == ".." || seg == "." {
			segments[i] = "_"
			continue
		}
		segments[i] = sanitize(seg)
	}
	return strings.Join(segments, "/")
}

// sanitize strips characters that are unsafe in file names.
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\\', ':', '*', '?', '"', '<', '>', '|', 0:
			return '_'
		default:
			return r
		}
	}, s)
}
