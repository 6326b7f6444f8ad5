package ratelimit

import (
	"time"

	"github.com/jonathan/pdf-signer/internal/config"
)

// EndpointConfig represents rate limiting configuration for a specific endpoint.
type EndpointConfig struct {
	Path   string        // Endpoint path pattern (supports prefix matching)
	Method string        // HTTP method (GET, POST, etc.)
	Limit  int           // Maximum requests per window
	Window time.Duration // Time window
	Burst  int           // Burst capacity (defaults to Limit if 0)
}

// FromSettings builds the limiter configuration from loaded settings.
func FromSettings(s config.RateLimitConfig) *Config {
	if !s.Enabled {
		return &Config{Enabled: false}
	}

	return &Config{
		Enabled:         true,
		DefaultLimit:    s.DefaultLimit,
		DefaultWindow:   s.DefaultWindow,
		CleanupInterval: s.CleanupInterval,
		Whitelist:       toSet(s.Whitelist),
		Blacklist:       toSet(s.Blacklist),
		EndpointConfigs: EndpointConfigs(s.UploadLimit, s.SignLimit),
	}
}

// EndpointConfigs returns the endpoint-specific limits. Upload and sign
// share a one-minute window; a zero limit leaves that endpoint unlimited.
func EndpointConfigs(uploadLimit, signLimit int) []EndpointConfig {
	return []EndpointConfig{
		// Tier 1: document writes
		{Path: "/api/upload-pdf", Method: "POST", Limit: uploadLimit, Window: time.Minute, Burst: burstFor(uploadLimit)},
		{Path: "/api/sign-pdf", Method: "POST", Limit: signLimit, Window: time.Minute, Burst: burstFor(signLimit)},

		// Tier 2: reads fall through to the default limit
		// Tier 3: health checks are unlimited, see MatchEndpoint
	}
}

// burstFor allows a sixth of the per-window limit at once, at least one.
func burstFor(limit int) int {
	if limit <= 0 {
		return 0
	}
	return max(1, limit/6)
}

func toSet(items []string) map[string]bool {
	result := make(map[string]bool, len(items))
	for _, item := range items {
		result[item] = true
	}
	return result
}
