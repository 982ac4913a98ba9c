package integration

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// PaymentMethodMapping Entity
// ---------------------------------------------------------------------------

// PaymentMethodMapping links a storefront payment method id (e.g. "stripe",
// "bacs") to a billing payment method id. A mapping must exist before any
// payment for that method can be synced.
type PaymentMethodMapping struct {
	// ID is the unique identifier of this mapping
	ID uuid.UUID
	// StorefrontMethod is the storefront payment gateway id
	StorefrontMethod string
	// BillingMethodID is the billing platform payment method id
	BillingMethodID int64
	// BillingMethodName caches the billing method display name (informational)
	BillingMethodName string
	// CreatedAt is when this mapping was created
	CreatedAt time.Time
	// UpdatedAt is when this mapping was last updated
	UpdatedAt time.Time
}

// NewPaymentMethodMapping creates a new mapping
func NewPaymentMethodMapping(storefrontMethod string, billingMethodID int64) (*PaymentMethodMapping, error) {
	m := &PaymentMethodMapping{
		ID:               uuid.New(),
		StorefrontMethod: strings.TrimSpace(storefrontMethod),
		BillingMethodID:  billingMethodID,
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	now := time.Now()
	m.CreatedAt = now
	m.UpdatedAt = now
	return m, nil
}

// Validate validates the mapping
func (m *PaymentMethodMapping) Validate() error {
	if m.StorefrontMethod == "" {
		return ErrMappingInvalidMethod
	}
	if m.BillingMethodID <= 0 {
		return ErrMappingInvalidTarget
	}
	return nil
}

// Retarget points the mapping at another billing payment method
func (m *PaymentMethodMapping) Retarget(billingMethodID int64, billingMethodName string) error {
	if billingMethodID <= 0 {
		return ErrMappingInvalidTarget
	}
	m.BillingMethodID = billingMethodID
	m.BillingMethodName = billingMethodName
	m.UpdatedAt = time.Now()
	return nil
}

// PaymentMethodMappingRepository persists payment method mappings
type PaymentMethodMappingRepository interface {
	// FindByMethod returns ErrMappingNotFound when no mapping exists
	FindByMethod(ctx context.Context, storefrontMethod string) (*PaymentMethodMapping, error)
	// FindAll returns every mapping ordered by storefront method
	FindAll(ctx context.Context) ([]PaymentMethodMapping, error)
	// Save creates or updates a mapping
	Save(ctx context.Context, mapping *PaymentMethodMapping) error
	// DeleteByMethod removes a mapping; ErrMappingNotFound when absent
	DeleteByMethod(ctx context.Context, storefrontMethod string) error
}
