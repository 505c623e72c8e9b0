// Package frontier implements the persistent, deduplicated URL work queue.
//
// The frontier is the crawl's only durable shared state. Every record
// transition is written to SQLite before the next record is handed out,
// so a crash loses at most the single in-progress attempt, which is
// re-queued on the next open. The frontier is also the single writer of
// record state: the pipeline requests transitions through its methods
// and never mutates records directly.
package frontier
