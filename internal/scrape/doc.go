// Package scrape discovers links in fetched content. HTML documents are
// parsed with a tolerant tokenizer; FTP directory listings get a line
// parser. A malformed document yields whatever links were found before
// the parse broke, never an error that fails the pipeline.
package scrape
