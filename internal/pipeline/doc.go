// Package pipeline drives fetch attempts from dequeue to completion.
//
// Each dequeued record moves through a fixed sequence of states:
// Queued, Resolving, Connecting (where the pre-fetch gate runs),
// Fetching, PostProcessing, Completed, with error exits into the retry
// path from any state. The Engine runs up to N items concurrently and
// owns crawl-wide concerns: politeness delay, stop handling, and the
// final statistics handoff.
package pipeline
