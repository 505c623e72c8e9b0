// Package model defines the core data structures used throughout webmirror.
//
// This package contains the following main types:
//   - Locator: A canonicalized URL used as the frontier's deduplication key
//   - Record: A frontier entry with lifecycle status and retry bookkeeping
//   - DiscoveredLink: A candidate URL found while processing a fetched page
//   - Stats: Monotonic crawl counters read at completion
//
// Design decision: We separate models into their own package to avoid circular
// dependencies. Multiple packages (frontier, pipeline, hook, report) need to
// use these types, so centralizing them prevents import cycles.
//
// The models are designed to be serializable to JSON for the extension
// boundary and for database storage.
package model
