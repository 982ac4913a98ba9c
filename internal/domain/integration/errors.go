package integration

import (
	"errors"
	"fmt"
)

// Error categories. Every failure surfaced by the sync engine wraps one of these.
var (
	ErrConfiguration  = errors.New("integration: configuration error")
	ErrNotFound       = errors.New("integration: remote record not found")
	ErrDuplicate      = errors.New("integration: record already exists")
	ErrRemoteAPI      = errors.New("integration: remote API error")
	ErrValidation     = errors.New("integration: validation failed")
	ErrPermission     = errors.New("integration: permission denied")
	ErrInvalidOrderID = errors.New("integration: invalid order ID")
	ErrOrderNotFound  = errors.New("integration: order not found")
	ErrSyncInProgress = errors.New("integration: sync already in progress for order")

	ErrStoreUnavailable     = errors.New("integration: storefront temporarily unavailable")
	ErrStoreInvalidResponse = errors.New("integration: invalid storefront response")
	ErrInvalidSignature     = errors.New("integration: invalid webhook signature")

	ErrMappingNotFound      = errors.New("integration: payment method mapping not found")
	ErrMappingInvalidMethod = errors.New("integration: invalid storefront payment method")
	ErrMappingInvalidTarget = errors.New("integration: invalid billing payment method ID")
)

// ConfigurationError reports a missing or inconsistent setting.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("integration: %s is not configured", e.Field)
	}
	return fmt.Sprintf("integration: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return ErrConfiguration }

// RemoteAPIError is returned for HTTP >= 400 responses and for responses that
// are missing a field the caller depends on. Body holds the raw payload for
// operator diagnosis.
type RemoteAPIError struct {
	Method     string
	Endpoint   string
	StatusCode int
	Message    string
	Body       []byte
}

func (e *RemoteAPIError) Error() string {
	msg := fmt.Sprintf("integration: %s %s", e.Method, e.Endpoint)
	if e.StatusCode > 0 {
		msg += fmt.Sprintf(": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

func (e *RemoteAPIError) Unwrap() error { return ErrRemoteAPI }

// IsNotFound reports whether the remote side answered 404.
func (e *RemoteAPIError) IsNotFound() bool { return e.StatusCode == 404 }

// NewValidationError wraps ErrValidation with a human readable reason.
func NewValidationError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}
