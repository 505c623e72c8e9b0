// Package dns resolves hostnames for the fetch pipeline. It caches
// answers for the crawl's duration and classifies failures so the retry
// path can tell a missing name from a flaky resolver.
package dns
