package billing

import (
	"errors"
	"regexp"
	"strings"
	"time"
)

// Config holds transport settings for the RepairShopr REST client.
// The base URL and API key are not part of it: they come from the settings
// snapshot of each operation.
type Config struct {
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int `json:"timeout_seconds" mapstructure:"timeout_seconds"`

	// RateLimit is the sustained requests per second allowed against the API
	RateLimit float64 `json:"rate_limit" mapstructure:"rate_limit"`

	// RateBurst is the token bucket size
	RateBurst int `json:"rate_burst" mapstructure:"rate_burst"`

	// BreakerFailures opens the circuit after this many consecutive failures
	BreakerFailures uint32 `json:"breaker_failures" mapstructure:"breaker_failures"`

	// BreakerOpenTimeout is how long the circuit stays open before probing
	BreakerOpenTimeout time.Duration `json:"breaker_open_timeout" mapstructure:"breaker_open_timeout"`

	// MaxResponseBytes limits the response body size
	MaxResponseBytes int64 `json:"max_response_bytes" mapstructure:"max_response_bytes"`
}

const (
	defaultTimeoutSeconds   = 30
	defaultRateLimit        = 3
	defaultRateBurst        = 5
	defaultBreakerFailures  = 5
	defaultBreakerTimeout   = 30 * time.Second
	defaultMaxResponseBytes = 10 * 1024 * 1024 // 10MB
)

// Errors for client configuration
var (
	ErrConfigInvalidRateLimit = errors.New("billing: rate limit must not be negative")
	ErrConfigInvalidBurst     = errors.New("billing: rate burst must not be negative")
)

// DefaultConfig returns the default transport configuration
func DefaultConfig() *Config {
	return &Config{
		TimeoutSeconds:     defaultTimeoutSeconds,
		RateLimit:          defaultRateLimit,
		RateBurst:          defaultRateBurst,
		BreakerFailures:    defaultBreakerFailures,
		BreakerOpenTimeout: defaultBreakerTimeout,
		MaxResponseBytes:   defaultMaxResponseBytes,
	}
}

// Validate validates the configuration and fills zero values with defaults
func (c *Config) Validate() error {
	if c.RateLimit < 0 {
		return ErrConfigInvalidRateLimit
	}
	if c.RateBurst < 0 {
		return ErrConfigInvalidBurst
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.RateLimit == 0 {
		c.RateLimit = defaultRateLimit
	}
	if c.RateBurst == 0 {
		c.RateBurst = defaultRateBurst
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = defaultBreakerFailures
	}
	if c.BreakerOpenTimeout <= 0 {
		c.BreakerOpenTimeout = defaultBreakerTimeout
	}
	if c.MaxResponseBytes <= 0 {
		c.MaxResponseBytes = defaultMaxResponseBytes
	}
	return nil
}

var resourceSuffix = regexp.MustCompile(`/(customers|invoices|payment_methods)$`)

// NormalizeBaseURL trims trailing slashes and strips a trailing resource
// segment so operators may paste any endpoint URL as the base.
func NormalizeBaseURL(raw string) string {
	return resourceSuffix.ReplaceAllString(strings.TrimRight(strings.TrimSpace(raw), "/"), "")
}
