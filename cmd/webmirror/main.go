// Package main provides the entry point for the webmirror CLI.
//
// webmirror is a recursive, resumable website archiver. It crawls one or
// more seed URLs, stores every exchange in a local mirror tree, and keeps
// its crawl state in a SQLite frontier so an interrupted run picks up
// where it left off.
//
// Usage:
//
//	webmirror get https://example.com/
//	webmirror get --level 2 --output-dir ./mirror https://example.com/
//
// See --help for all available options.
package main

// main is the entry point for webmirror.
func main() {
	Execute()
}
