// Package stats aggregates crawl counters and computes the default
// process exit status from the error classes observed.
package stats
