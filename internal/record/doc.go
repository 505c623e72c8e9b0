// Package record persists the raw exchanges of a crawl: response bodies
// in a host-mirroring directory layout plus a metadata sidecar per fetch
// attempt. Body writes complete before the stream is released; sidecar
// writes are asynchronous with their own flush guarantee.
package record
