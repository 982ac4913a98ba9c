package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"
)

// WooCommerceConfig holds configuration for the WooCommerce REST API
type WooCommerceConfig struct {
	// BaseURL is the store root, e.g. https://shop.example.com
	BaseURL string `mapstructure:"base_url"`
	// ConsumerKey is the REST API consumer key (ck_...)
	ConsumerKey string `mapstructure:"consumer_key"`
	// ConsumerSecret is the REST API consumer secret (cs_...)
	ConsumerSecret string `mapstructure:"consumer_secret"`
	// WebhookSecret signs webhook deliveries
	WebhookSecret string `mapstructure:"webhook_secret"`
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int `mapstructure:"timeout_seconds"`
}

const (
	// wooCommerceAPIPath is the REST namespace of order endpoints
	wooCommerceAPIPath = "/wp-json/wc/v3"

	defaultWooCommerceTimeout = 30
)

// Errors for WooCommerce configuration
var (
	ErrWooCommerceConfigMissingBaseURL        = errors.New("woocommerce: base URL is required")
	ErrWooCommerceConfigMissingConsumerKey    = errors.New("woocommerce: consumer key is required")
	ErrWooCommerceConfigMissingConsumerSecret = errors.New("woocommerce: consumer secret is required")
)

// Validate validates the WooCommerce configuration
func (c *WooCommerceConfig) Validate() error {
	c.BaseURL = strings.TrimRight(strings.TrimSpace(c.BaseURL), "/")
	if c.BaseURL == "" {
		return ErrWooCommerceConfigMissingBaseURL
	}
	if c.ConsumerKey == "" {
		return ErrWooCommerceConfigMissingConsumerKey
	}
	if c.ConsumerSecret == "" {
		return ErrWooCommerceConfigMissingConsumerSecret
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = defaultWooCommerceTimeout
	}
	return nil
}

// OrderURL returns the REST URL of one order
func (c *WooCommerceConfig) OrderURL(orderID string) string {
	return c.BaseURL + wooCommerceAPIPath + "/orders/" + orderID
}

// Sign computes the webhook signature of a delivery body:
// base64(HMAC-SHA256(body, webhook secret))
func (c *WooCommerceConfig) Sign(body []byte) string {
	h := hmac.New(sha256.New, []byte(c.WebhookSecret))
	h.Write(body)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a delivery signature in constant time.
// An empty webhook secret rejects every delivery.
func (c *WooCommerceConfig) VerifySignature(body []byte, signature string) bool {
	if c.WebhookSecret == "" || signature == "" {
		return false
	}
	return hmac.Equal([]byte(c.Sign(body)), []byte(signature))
}
