// Package report renders the end-of-crawl summary.
//
// This package contains writers for different output formats:
//   - SimpleWriter: human-readable text for terminal display
//   - MarkdownWriter: markdown for sharing and documentation
//   - JSONWriter: structured output for tool integration
//
// Writers implement the Writer interface, allowing them to be used
// interchangeably and composed for multi-format output.
package report
