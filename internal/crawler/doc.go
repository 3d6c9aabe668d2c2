// Package crawler implements the recursive crawl pipeline: URL validation,
// the depth guard, ledger deduplication, fetching with a user agent fallback,
// the HTML content gate, link extraction, artifact persistence and the
// concurrent expansion of every extracted link.
package crawler
