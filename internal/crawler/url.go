package crawler

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL reports whether raw can be crawled. Only http and https are accepted.
func ValidateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
		return nil
	default:
		return fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

// HasHTTPPrefix is the cheap prefix test the submission surface applies.
func HasHTTPPrefix(raw string) bool {
	return strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://")
}
