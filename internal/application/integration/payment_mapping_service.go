package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// PaymentMappingService manages the storefront → billing payment method table
type PaymentMappingService struct {
	repo     integration.PaymentMethodMappingRepository
	billing  integration.BillingGateway
	settings integration.SettingsProvider
}

// NewPaymentMappingService creates a new PaymentMappingService.
// billing and settings are optional; with both set, targets are checked
// against the billing platform's payment methods.
func NewPaymentMappingService(repo integration.PaymentMethodMappingRepository, billing integration.BillingGateway, settings integration.SettingsProvider) *PaymentMappingService {
	return &PaymentMappingService{repo: repo, billing: billing, settings: settings}
}

// ListMappings returns every stored mapping
func (s *PaymentMappingService) ListMappings(ctx context.Context) ([]PaymentMappingResponse, error) {
	mappings, err := s.repo.FindAll(ctx)
	if err != nil {
		return nil, err
	}
	return ToPaymentMappingResponses(mappings), nil
}

// GetMapping returns the mapping of one storefront method
func (s *PaymentMappingService) GetMapping(ctx context.Context, method string) (*PaymentMappingResponse, error) {
	m, err := s.repo.FindByMethod(ctx, strings.TrimSpace(method))
	if err != nil {
		return nil, err
	}
	resp := ToPaymentMappingResponse(m)
	return &resp, nil
}

// UpsertMapping creates or retargets the mapping of a storefront method
func (s *PaymentMappingService) UpsertMapping(ctx context.Context, method string, req UpsertPaymentMappingRequest) (*PaymentMappingResponse, error) {
	method = strings.TrimSpace(method)
	name, err := s.lookupMethodName(ctx, req.BillingMethodID)
	if err != nil {
		return nil, err
	}

	mapping, err := s.repo.FindByMethod(ctx, method)
	switch {
	case err == nil:
		if err := mapping.Retarget(req.BillingMethodID, name); err != nil {
			return nil, err
		}
	case errors.Is(err, integration.ErrMappingNotFound):
		mapping, err = integration.NewPaymentMethodMapping(method, req.BillingMethodID)
		if err != nil {
			return nil, err
		}
		mapping.BillingMethodName = name
	default:
		return nil, err
	}

	if err := s.repo.Save(ctx, mapping); err != nil {
		return nil, err
	}
	resp := ToPaymentMappingResponse(mapping)
	return &resp, nil
}

// DeleteMapping removes the mapping of a storefront method
func (s *PaymentMappingService) DeleteMapping(ctx context.Context, method string) error {
	return s.repo.DeleteByMethod(ctx, strings.TrimSpace(method))
}

// lookupMethodName returns the billing display name of a payment method id.
// Without a billing gateway the name is left empty.
func (s *PaymentMappingService) lookupMethodName(ctx context.Context, id int64) (string, error) {
	if id <= 0 {
		return "", integration.ErrMappingInvalidTarget
	}
	if s.billing == nil || s.settings == nil {
		return "", nil
	}
	settings, err := s.settings.Current(ctx)
	if err != nil {
		return "", err
	}
	if settings.RequireRemote() != nil {
		return "", nil
	}
	methods, err := s.billing.ListPaymentMethods(ctx, settings)
	if err != nil {
		return "", err
	}
	for _, m := range methods {
		if m.ID == id {
			return m.Name, nil
		}
	}
	return "", fmt.Errorf("%w: %d is not a RepairShopr payment method", integration.ErrMappingInvalidTarget, id)
}
