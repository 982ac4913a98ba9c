package integration

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// CustomerResolver finds or creates the billing customer of an order,
// keyed by the normalized customer email.
type CustomerResolver struct {
	billing integration.BillingGateway
	logger  *zap.Logger
}

// NewCustomerResolver creates a new CustomerResolver
func NewCustomerResolver(billing integration.BillingGateway, logger *zap.Logger) *CustomerResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CustomerResolver{billing: billing, logger: logger}
}

// ResolveOrCreate returns the id of the first billing customer with the
// order's email, creating one when none exists.
func (r *CustomerResolver) ResolveOrCreate(ctx context.Context, settings integration.SyncSettings, order *integration.Order) (int64, error) {
	contact := order.CustomerContact()
	if contact.Email == "" {
		return 0, integration.NewValidationError("order %d has no customer email", order.ID)
	}

	existing, err := r.billing.FindCustomerByEmail(ctx, settings, contact.Email)
	switch {
	case err == nil:
		r.logger.Debug("Found RepairShopr customer",
			zap.Int64("order_id", order.ID),
			zap.Int64("customer_id", existing.ID))
		return existing.ID, nil
	case !errors.Is(err, integration.ErrNotFound):
		return 0, err
	}

	created, err := r.billing.CreateCustomer(ctx, settings, newCustomerFromContact(contact, settings))
	if err != nil {
		r.logger.Warn("Failed to create RepairShopr customer",
			zap.Int64("order_id", order.ID),
			zap.Error(err))
		return 0, err
	}
	r.logger.Info("Created RepairShopr customer",
		zap.Int64("order_id", order.ID),
		zap.Int64("customer_id", created.ID))
	return created.ID, nil
}

func newCustomerFromContact(c integration.Contact, settings integration.SyncSettings) integration.NewCustomer {
	return integration.NewCustomer{
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		FullName:     c.FullName(),
		BusinessName: c.Company,
		Email:        c.Email,
		Phone:        c.Phone,
		Address:      c.Address1,
		Address2:     c.Address2,
		City:         c.City,
		State:        c.State,
		Zip:          c.Postcode,
		Notes:        settings.CustomerNotes(),
		TaxRateID:    settings.TaxRateID(),
		Preferences:  settings.CustomerPreferences(),
	}
}
