package frontier

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/webmirror/internal/model"
)

// DBFileName is the frontier database file name inside the data directory.
const DBFileName = "frontier.db"

// ErrClosed is returned by operations on a closed frontier.
var ErrClosed = errors.New("frontier is closed")

// EnqueueResult describes the outcome of an Enqueue call.
type EnqueueResult int

const (
	// Inserted means a new record was created for the locator.
	Inserted EnqueueResult = iota

	// DuplicateIgnored means the canonical locator was already known.
	DuplicateIgnored

	// RejectedByPolicy means the enqueue policy refused the locator
	// before anything was persisted.
	RejectedByPolicy
)

// String returns a human-readable form of the result.
func (r EnqueueResult) String() string {
	switch r {
	case Inserted:
		return "inserted"
	case DuplicateIgnored:
		return "duplicate"
	case RejectedByPolicy:
		return "rejected"
	default:
		return "unknown"
	}
}

// Provenance records where a locator was discovered.
type Provenance struct {
	// RootURL is the seed whose crawl found the locator.
	RootURL string

	// Referrer is the page the locator appeared on. Empty for seeds.
	Referrer string

	// Inline marks embedded resources.
	Inline bool

	// LinkType records how the link was found.
	LinkType string
}

// Ordering selects the dequeue order.
type Ordering int

const (
	// FIFO hands out the oldest pending record first (breadth-first).
	FIFO Ordering = iota

	// LIFO hands out the newest pending record first (depth-first).
	LIFO
)

// Frontier is the SQLite-backed URL queue.
//
// Design decision: We keep a single database connection and serialize all
// transitions behind a mutex rather than relying on SQLite's own locking
// because:
//  1. SQLite supports only one writer anyway
//  2. Dequeue must read-and-transition atomically with respect to other
//     dequeues, which is simplest as one critical section
//  3. It makes the linearizability of enqueue dedup trivial to reason about
type Frontier struct {
	db     *sql.DB
	dbPath string

	// mu serializes every state transition. All exported methods that
	// touch the database take it.
	mu     sync.Mutex
	closed bool

	ordering Ordering

	// maxInFlight bounds how many records may be in progress at once.
	// Zero means unbounded.
	maxInFlight int

	// policy, when set, may reject locators before persistence.
	policy func(loc model.Locator, level int, prov Provenance) bool
}

// Option configures a Frontier.
type Option func(*Frontier)

// WithOrdering selects FIFO (breadth-first) or LIFO (depth-first) dequeue.
func WithOrdering(o Ordering) Option {
	return func(f *Frontier) {
		f.ordering = o
	}
}

// WithMaxInFlight bounds the number of simultaneously claimed records.
// Dequeue returns no record while the bound is reached.
func WithMaxInFlight(n int) Option {
	return func(f *Frontier) {
		if n > 0 {
			f.maxInFlight = n
		}
	}
}

// WithEnqueuePolicy installs a cheap admission check run before persistence.
// Returning false yields RejectedByPolicy without touching the database.
// This is where depth and host-span limits short-circuit; the full filter
// chain still runs at the pre-fetch gate.
func WithEnqueuePolicy(policy func(loc model.Locator, level int, prov Provenance) bool) Option {
	return func(f *Frontier) {
		f.policy = policy
	}
}

// Options configures database opening behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if absent.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging. Recommended: transitions are
	// frequent small writes and WAL keeps them cheap.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a frontier database in dbDir.
// Any records left in progress by a previous run are released back to
// pending, so a resumed crawl re-attempts at most those records.
func Open(dbDir string, dbOpts Options, opts ...Option) (*Frontier, error) {
	dbPath := filepath.Join(dbDir, DBFileName)

	if !dbOpts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("frontier database not found at %s", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	var dsn string
	if dbOpts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One writer is all SQLite gives us; one connection keeps the
	// transaction model simple.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	f := &Frontier{
		db:       db,
		dbPath:   dbPath,
		ordering: FIFO,
	}
	for _, opt := range opts {
		opt(f)
	}

	if dbOpts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := f.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	if err := f.release(context.Background()); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to release in-progress records: %w", err)
	}

	return f, nil
}

// Close closes the database connection.
func (f *Frontier) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true
	return f.db.Close()
}

// createTables creates the frontier schema if it doesn't exist.
func (f *Frontier) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		url TEXT NOT NULL UNIQUE,
		status TEXT NOT NULL DEFAULT 'pending',
		try_count INTEGER NOT NULL DEFAULT 0,
		level INTEGER NOT NULL DEFAULT 0,
		root_url TEXT NOT NULL DEFAULT '',
		referrer TEXT NOT NULL DEFAULT '',
		inline INTEGER NOT NULL DEFAULT 0,
		link_type TEXT NOT NULL DEFAULT '',
		status_code INTEGER NOT NULL DEFAULT 0,
		next_eligible INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_records_status ON records(status, next_eligible);
	`
	_, err := f.db.ExecContext(context.Background(), schema)
	return err
}

// release returns in-progress records to pending. Called on open so that
// work interrupted by a crash is retried rather than lost.
func (f *Frontier) release(ctx context.Context) error {
	_, err := f.db.ExecContext(ctx,
		`UPDATE records SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE status = ?`,
		model.StatusPending, model.StatusInProgress,
	)
	return err
}

// Enqueue inserts a locator into the frontier if its canonical form is
// unseen. The enqueue policy, when configured, may reject the locator
// before anything is persisted.
func (f *Frontier) Enqueue(ctx context.Context, loc model.Locator, level int, prov Provenance) (EnqueueResult, error) {
	if f.policy != nil && !f.policy(loc, level, prov) {
		return RejectedByPolicy, nil
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return DuplicateIgnored, ErrClosed
	}

	res, err := f.db.ExecContext(ctx, `
	INSERT INTO records (url, status, level, root_url, referrer, inline, link_type)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(url) DO NOTHING
	`,
		loc.Key(), model.StatusPending, level,
		prov.RootURL, prov.Referrer, boolToInt(prov.Inline), prov.LinkType,
	)
	if err != nil {
		return DuplicateIgnored, fmt.Errorf("failed to enqueue %s: %w", loc, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return DuplicateIgnored, fmt.Errorf("failed to read enqueue result: %w", err)
	}
	if n == 0 {
		return DuplicateIgnored, nil
	}
	return Inserted, nil
}

// DequeueNext claims the next eligible pending record and marks it in
// progress. Claiming and marking are one critical section, so no two
// callers ever receive the same record. Returns (nil, nil) when no record
// is currently eligible.
func (f *Frontier) DequeueNext(ctx context.Context) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	if f.maxInFlight > 0 {
		var inFlight int
		err := f.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM records WHERE status = ?`, model.StatusInProgress,
		).Scan(&inFlight)
		if err != nil {
			return nil, fmt.Errorf("failed to count in-progress records: %w", err)
		}
		if inFlight >= f.maxInFlight {
			return nil, nil
		}
	}

	order := "id ASC"
	if f.ordering == LIFO {
		order = "id DESC"
	}

	now := time.Now().UnixMilli()
	row := f.db.QueryRowContext(ctx, fmt.Sprintf(`
	UPDATE records SET status = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = (
		SELECT id FROM records
		WHERE status = ? AND next_eligible <= ?
		ORDER BY %s
		LIMIT 1
	)
	RETURNING id, url, status, try_count, level, root_url, referrer, inline, link_type, status_code, next_eligible
	`, order),
		model.StatusInProgress, model.StatusPending, now,
	)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to dequeue: %w", err)
	}
	return rec, nil
}

// ReportSuccess transitions a claimed record to done and records the
// protocol status code of the completed fetch.
func (f *Frontier) ReportSuccess(ctx context.Context, rec *model.Record, statusCode int) error {
	return f.transition(ctx, rec.ID, model.StatusDone, statusCode, 0, false)
}

// ReportPermanentFailure transitions a claimed record to errored.
func (f *Frontier) ReportPermanentFailure(ctx context.Context, rec *model.Record, statusCode int) error {
	return f.transition(ctx, rec.ID, model.StatusErrored, statusCode, 0, true)
}

// ReportSkipped transitions a claimed record to skipped. Used when the
// pre-fetch gate rejects a record after dequeue, before any network I/O.
func (f *Frontier) ReportSkipped(ctx context.Context, rec *model.Record) error {
	return f.transition(ctx, rec.ID, model.StatusSkipped, 0, 0, false)
}

// ReportRetryableFailure increments the record's attempt count. Below
// maxTries the record returns to pending, eligible again after backoff;
// at the ceiling it is marked errored. Returns the resulting status.
func (f *Frontier) ReportRetryableFailure(ctx context.Context, rec *model.Record, maxTries int, backoff time.Duration) (model.Status, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return "", ErrClosed
	}

	newTries := rec.TryCount + 1
	status := model.StatusPending
	var eligible int64
	if newTries >= maxTries {
		status = model.StatusErrored
	} else {
		eligible = time.Now().Add(backoff).UnixMilli()
	}

	_, err := f.db.ExecContext(ctx, `
	UPDATE records SET status = ?, try_count = ?, next_eligible = ?, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?
	`, status, newTries, eligible, rec.ID)
	if err != nil {
		return "", fmt.Errorf("failed to record retryable failure: %w", err)
	}

	rec.TryCount = newTries
	return status, nil
}

// transition moves a record to a terminal state.
func (f *Frontier) transition(ctx context.Context, id int64, status model.Status, statusCode int, _ int64, incrementTry bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return ErrClosed
	}

	tryExpr := "try_count"
	if incrementTry {
		tryExpr = "try_count + 1"
	}

	_, err := f.db.ExecContext(ctx, fmt.Sprintf(`
	UPDATE records SET status = ?, status_code = ?, try_count = %s, updated_at = CURRENT_TIMESTAMP
	WHERE id = ?
	`, tryExpr), status, statusCode, id)
	if err != nil {
		return fmt.Errorf("failed to transition record %d to %s: %w", id, status, err)
	}
	return nil
}

// IsExhausted reports whether no record is pending or in progress.
// Pending records waiting out a retry backoff still count as work.
func (f *Frontier) IsExhausted(ctx context.Context) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return false, ErrClosed
	}

	var n int
	err := f.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM records WHERE status IN (?, ?)`,
		model.StatusPending, model.StatusInProgress,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check exhaustion: %w", err)
	}
	return n == 0, nil
}

// NextEligibleWait returns how long until the earliest pending record
// becomes eligible, or zero when one is ready now or none is pending.
// The engine uses this to sleep instead of spinning while retry backoffs
// drain.
func (f *Frontier) NextEligibleWait(ctx context.Context) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, ErrClosed
	}

	var earliest sql.NullInt64
	err := f.db.QueryRowContext(ctx,
		`SELECT MIN(next_eligible) FROM records WHERE status = ?`,
		model.StatusPending,
	).Scan(&earliest)
	if err != nil {
		return 0, fmt.Errorf("failed to find next eligible time: %w", err)
	}
	if !earliest.Valid {
		return 0, nil
	}

	wait := time.Until(time.UnixMilli(earliest.Int64))
	if wait < 0 {
		return 0, nil
	}
	return wait, nil
}

// Counts returns the number of records per status.
func (f *Frontier) Counts(ctx context.Context) (map[model.Status]int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	rows, err := f.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM records GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("failed to count records: %w", err)
	}
	defer rows.Close()

	counts := make(map[model.Status]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[model.Status(status)] = n
	}
	return counts, rows.Err()
}

// Get returns the record for a canonical URL, or (nil, nil) when unknown.
func (f *Frontier) Get(ctx context.Context, key string) (*model.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil, ErrClosed
	}

	row := f.db.QueryRowContext(ctx, `
	SELECT id, url, status, try_count, level, root_url, referrer, inline, link_type, status_code, next_eligible
	FROM records WHERE url = ?
	`, key)

	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record %s: %w", key, err)
	}
	return rec, nil
}

// scanRecord reads one record row.
func scanRecord(row *sql.Row) (*model.Record, error) {
	var (
		rec      model.Record
		rawURL   string
		status   string
		inline   int
		eligible int64
	)
	err := row.Scan(
		&rec.ID, &rawURL, &status, &rec.TryCount, &rec.Level,
		&rec.RootURL, &rec.Referrer, &inline, &rec.LinkType,
		&rec.StatusCode, &eligible,
	)
	if err != nil {
		return nil, err
	}

	loc, err := model.ParseLocator(rawURL)
	if err != nil {
		return nil, fmt.Errorf("corrupt record URL %q: %w", rawURL, err)
	}
	rec.Locator = loc
	rec.Status = model.Status(status)
	rec.Inline = inline != 0
	if eligible != 0 {
		rec.NextEligible = time.UnixMilli(eligible)
	}
	return &rec, nil
}

// boolToInt converts a bool to SQLite's integer representation.
func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
