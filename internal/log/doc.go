// Package log provides slog helpers for webmirror.
//
// Crawl logs routinely include request headers and URLs supplied by
// operators. Those can carry credentials (cookies, basic-auth userinfo,
// API tokens), so the package wraps any slog.Handler with one that
// masks credential-bearing attributes before they reach the output.
package log
