// Command crawlersvc runs the crawling service.
//
// Usage:
//
//	crawlersvc serve --config config.yaml
//	crawlersvc crawl https://example.com
//	crawlersvc cleanup
package main
