package config

import (
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
)

// Default configuration values.
// These follow the conventions of wget-family archival tools where
// applicable so operators migrating scripts get familiar behavior.
const (
	// DefaultTimeout is the per-fetch deadline. It bounds resolution,
	// connection, and body transfer for a single attempt.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxLevel limits recursion depth from a seed. Level 0 is the
	// seed itself. Five levels reaches the vast majority of site content
	// without wandering into calendar-style infinite link spaces.
	DefaultMaxLevel = 5

	// DefaultMaxTries is the attempt ceiling per URL. Transient network
	// failures are retried up to this many total attempts.
	DefaultMaxTries = 3

	// DefaultConcurrency is the number of URLs fetched in parallel.
	// One matches the polite single-connection default of classic
	// mirroring tools; operators raise it explicitly.
	DefaultConcurrency = 1

	// DefaultDelay is the politeness pause between fetches.
	DefaultDelay = 0 * time.Second

	// DefaultRetryBackoff is the delay before the first retry of a URL.
	// Subsequent retries back off exponentially from this base.
	DefaultRetryBackoff = time.Second

	// DefaultMaxRetryBackoff caps the retry backoff growth.
	DefaultMaxRetryBackoff = 30 * time.Second

	// DefaultUserAgent identifies webmirror in requests. A descriptive
	// User-Agent lets operators recognize archive traffic in their logs.
	DefaultUserAgent = "Mozilla/5.0 (compatible; webmirror/1.0; +https://github.com/nao1215/webmirror)"

	// DefaultMaxBodySize limits buffered document bodies used for link
	// discovery. Bodies stream to the archive writer regardless of size;
	// only the parse buffer is bounded.
	DefaultMaxBodySize = 10 * 1024 * 1024 // 10MB

	// DefaultHookTimeout bounds a single extension callback invocation.
	// A hook exceeding it degrades to "use the engine default".
	DefaultHookTimeout = 10 * time.Second

	// AppName is the application name used for XDG directory paths.
	AppName = "webmirror"
)

// Ordering selects the frontier's dequeue order.
type Ordering string

const (
	// OrderingFIFO dequeues oldest-first for breadth-first crawls.
	OrderingFIFO Ordering = "fifo"

	// OrderingLIFO dequeues newest-first for depth-first crawls.
	OrderingLIFO Ordering = "lifo"
)

// Config holds all options for a crawl run.
// It is populated from CLI flags and passed through the application via
// dependency injection rather than global state.
//
// Design decision: We use a single flat struct instead of nested structs
// (e.g., FetchConfig, FrontierConfig) for simplicity. The number of options
// is manageable, and nesting would add complexity without significant
// benefit.
type Config struct {
	// Seeds are the starting URLs. At least one is required.
	Seeds []string

	// DataDir is the directory holding the frontier database. The crawl
	// is resumable from whatever state the database holds. Defaults to
	// the XDG data directory when empty.
	DataDir string

	// ArchiveDir is the directory the record writer stores raw exchanges
	// under. Empty disables archival.
	ArchiveDir string

	// Timeout is the deadline for one fetch attempt.
	Timeout time.Duration

	// MaxLevel is the maximum recursion depth from a seed.
	// Embedded page resources are allowed one level beyond this.
	MaxLevel int

	// MaxTries is the attempt ceiling per URL, counting the first attempt.
	MaxTries int

	// Concurrency is the number of in-flight fetches. The frontier never
	// hands out more than this many records at once.
	Concurrency int

	// Delay is the politeness pause between fetches.
	Delay time.Duration

	// RetryBackoff is the base delay before retrying a failed URL.
	RetryBackoff time.Duration

	// MaxRetryBackoff caps exponential retry backoff growth.
	MaxRetryBackoff time.Duration

	// LinearBackoff selects a linear retry schedule instead of the
	// default exponential one.
	LinearBackoff bool

	// Ordering selects breadth-first (fifo) or depth-first (lifo)
	// frontier dequeue order.
	Ordering Ordering

	// SpanHosts lists additional hosts the crawl may enter. The seed
	// hosts are always allowed.
	SpanHosts []string

	// NoParent restricts the crawl to paths at or below each seed's
	// directory, matching the classic --no-parent behavior.
	NoParent bool

	// IgnorePatterns are URL path glob patterns to skip.
	IgnorePatterns []string

	// FollowPatterns, when set, restrict the crawl to matching paths.
	FollowPatterns []string

	// PageRequisites enqueues embedded resources (images, stylesheets,
	// scripts) in addition to navigational links.
	PageRequisites bool

	// IgnoreRobots disables robots.txt checks entirely.
	IgnoreRobots bool

	// UserAgent is sent with every request and used for robots matching.
	UserAgent string

	// MaxBodySize bounds the in-memory buffer used for link discovery.
	MaxBodySize int64

	// HookTimeout bounds a single extension callback invocation.
	HookTimeout time.Duration

	// Verbose enables slog.LevelDebug output.
	Verbose bool

	// ReportFile, when set, receives a markdown crawl summary.
	ReportFile string

	// ConfigFilePath is an explicit path to the .webmirror file.
	// Empty triggers the cwd-then-home search.
	ConfigFilePath string

	// HostOverrides holds per-host settings loaded from the config file.
	HostOverrides *File
}

// NewConfig creates a Config with default values.
// All fields are set to safe, sensible defaults; callers override
// specific values after creation.
func NewConfig() *Config {
	return &Config{
		Timeout:         DefaultTimeout,
		MaxLevel:        DefaultMaxLevel,
		MaxTries:        DefaultMaxTries,
		Concurrency:     DefaultConcurrency,
		Delay:           DefaultDelay,
		RetryBackoff:    DefaultRetryBackoff,
		MaxRetryBackoff: DefaultMaxRetryBackoff,
		Ordering:        OrderingFIFO,
		UserAgent:       DefaultUserAgent,
		MaxBodySize:     DefaultMaxBodySize,
		HookTimeout:     DefaultHookTimeout,
	}
}

// XDGDataDir returns the XDG data directory for webmirror.
// On Linux: ~/.local/share/webmirror
// On macOS: ~/Library/Application Support/webmirror
// On Windows: %LOCALAPPDATA%\webmirror
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for webmirror.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// Validate checks if the configuration is valid.
// It returns a specific sentinel error describing the first problem found;
// fixing one error often makes others irrelevant.
func (c *Config) Validate() error {
	if len(c.Seeds) == 0 {
		return ErrNoSeed
	}
	if c.Timeout <= 0 {
		return ErrInvalidTimeout
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.MaxTries <= 0 {
		return ErrInvalidMaxTries
	}
	if c.MaxLevel < 0 {
		return ErrInvalidMaxLevel
	}
	if c.Delay < 0 {
		return ErrInvalidDelay
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.Ordering != OrderingFIFO && c.Ordering != OrderingLIFO {
		return ErrInvalidOrdering
	}
	return nil
}
