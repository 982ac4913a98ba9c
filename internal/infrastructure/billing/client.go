package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// Credentials address one RepairShopr account
type Credentials struct {
	BaseURL string
	APIKey  string
}

// CredentialsFrom extracts credentials from a settings snapshot
func CredentialsFrom(settings integration.SyncSettings) Credentials {
	return Credentials{BaseURL: settings.BaseURL(), APIKey: settings.APIKey()}
}

// RequestObserver is notified after every completed HTTP exchange.
// statusCode is 0 for transport failures.
type RequestObserver func(ctx context.Context, method string, statusCode int, elapsed time.Duration)

// Client is a bearer-authenticated JSON REST client for the RepairShopr API.
// It never retries: every failure is returned to the caller immediately.
type Client struct {
	config     *Config
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
	observer   RequestObserver
}

// ClientOption configures a Client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithObserver registers a request observer (metrics)
func WithObserver(o RequestObserver) ClientOption {
	return func(c *Client) {
		c.observer = o
	}
}

// NewClient creates a new RepairShopr REST client
func NewClient(config *Config, logger *zap.Logger, opts ...ClientOption) (*Client, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	c := &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), config.RateBurst),
		logger:  logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "repairshopr",
		Timeout: config.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= config.BreakerFailures
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Get performs a GET request and returns the raw JSON body
func (c *Client) Get(ctx context.Context, creds Credentials, endpoint string, params url.Values) ([]byte, error) {
	return c.do(ctx, creds, http.MethodGet, endpoint, params, nil)
}

// Post performs a POST request with a JSON body
func (c *Client) Post(ctx context.Context, creds Credentials, endpoint string, body any) ([]byte, error) {
	return c.do(ctx, creds, http.MethodPost, endpoint, nil, body)
}

// Put performs a PUT request with a JSON body
func (c *Client) Put(ctx context.Context, creds Credentials, endpoint string, body any) ([]byte, error) {
	return c.do(ctx, creds, http.MethodPut, endpoint, nil, body)
}

// rawResponse carries an HTTP answer through the circuit breaker
type rawResponse struct {
	status int
	body   []byte
}

func (c *Client) do(ctx context.Context, creds Credentials, method, endpoint string, params url.Values, body any) ([]byte, error) {
	base := NormalizeBaseURL(creds.BaseURL)
	if base == "" {
		return nil, &integration.ConfigurationError{Field: "billing API URL"}
	}
	if strings.TrimSpace(creds.APIKey) == "" {
		return nil, &integration.ConfigurationError{Field: "billing API key"}
	}

	endpoint = strings.TrimLeft(endpoint, "/")
	target := base + "/" + endpoint
	if len(params) > 0 {
		target += "?" + params.Encode()
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("billing: failed to marshal %s body: %w", endpoint, err)
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &integration.RemoteAPIError{Method: method, Endpoint: endpoint, Message: err.Error()}
	}

	c.logger.Debug("RepairShopr API request",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.ByteString("body", payload))

	started := time.Now()
	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.send(ctx, creds.APIKey, method, target, payload)
	})
	var resp *rawResponse
	var srvErr *serverError
	switch {
	case err == nil:
		resp = result.(*rawResponse)
	case errors.As(err, &srvErr):
		resp = srvErr.response
	default:
		c.notify(ctx, method, 0, started)
		c.logger.Warn("RepairShopr API unreachable",
			zap.String("method", method),
			zap.String("endpoint", endpoint),
			zap.Error(err))
		return nil, &integration.RemoteAPIError{Method: method, Endpoint: endpoint, Message: err.Error()}
	}

	c.notify(ctx, method, resp.status, started)
	c.logger.Debug("RepairShopr API response",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.status),
		zap.ByteString("body", resp.body))

	if resp.status >= 400 {
		apiErr := &integration.RemoteAPIError{
			Method:     method,
			Endpoint:   endpoint,
			StatusCode: resp.status,
			Message:    errorMessage(resp.body),
			Body:       resp.body,
		}
		if resp.status != http.StatusNotFound {
			c.logger.Warn("RepairShopr API error",
				zap.String("method", method),
				zap.String("endpoint", endpoint),
				zap.Int("status", resp.status),
				zap.String("message", apiErr.Message))
		}
		return nil, apiErr
	}
	return resp.body, nil
}

// send performs one HTTP exchange. Transport failures and 5xx answers count
// against the circuit breaker; 4xx answers do not.
func (c *Client) send(ctx context.Context, apiKey, method, target string, payload []byte) (*rawResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("billing: failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.config.MaxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("billing: failed to read response: %w", err)
	}

	out := &rawResponse{status: resp.StatusCode, body: body}
	if resp.StatusCode >= 500 {
		return out, &serverError{status: resp.StatusCode, response: out}
	}
	return out, nil
}

func (c *Client) notify(ctx context.Context, method string, status int, started time.Time) {
	if c.observer != nil {
		c.observer(ctx, method, status, time.Since(started))
	}
}

// serverError marks a 5xx answer as a breaker failure while keeping the body
type serverError struct {
	status   int
	response *rawResponse
}

func (e *serverError) Error() string {
	return fmt.Sprintf("HTTP %d", e.status)
}

// errorMessage extracts "error" or "message" from an error body
func errorMessage(body []byte) string {
	var parsed struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	switch v := parsed.Error.(type) {
	case string:
		return v
	case nil:
	default:
		if b, err := json.Marshal(v); err == nil {
			return string(b)
		}
	}
	return parsed.Message
}
