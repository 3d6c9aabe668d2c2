package crawler

import (
	"fmt"
	"strings"
)

// DefaultFallbackUserAgent is sent when the standard fetch fails or is not a 200.
const DefaultFallbackUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// Config holds the settings for the orchestrator.
// It is decoupled from Viper so the crawler can be tested independently.
type Config struct {
	// UserAgent is sent on the standard fetch. Empty leaves the fetcher default.
	UserAgent string
	// FallbackUserAgent is sent on the single retry.
	FallbackUserAgent string
	// MaxInFlightFetches bounds concurrent network fetches across all branches.
	// Zero keeps fan-out unbounded.
	MaxInFlightFetches int64
	// Topic receives a notification per stored artifact when a Publisher is set.
	Topic string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if c.MaxInFlightFetches < 0 {
		return fmt.Errorf("max in-flight fetches must be >= 0")
	}
	if strings.TrimSpace(c.FallbackUserAgent) == "" {
		return fmt.Errorf("fallback user agent is required")
	}
	return nil
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.FallbackUserAgent) == "" {
		c.FallbackUserAgent = DefaultFallbackUserAgent
	}
	return c
}
