// Package fetch defines the protocol fetcher contract and its HTTP and FTP
// implementations. A fetcher receives one prepared request and returns a
// single Outcome: a streamed response, a retryable transient error, or a
// permanent error. Fetchers never decide retry policy; they only classify.
package fetch
