// Package robots answers robots.txt exclusion queries for the pre-fetch
// gate. Rules are fetched once per host and cached for the crawl.
package robots
