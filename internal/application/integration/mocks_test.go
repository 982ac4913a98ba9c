package integration

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/domain/shared"
)

// ---------------------------------------------------------------------------
// Mocks
// ---------------------------------------------------------------------------

// MockBillingGateway is a mock implementation of BillingGateway
type MockBillingGateway struct {
	mock.Mock
}

func (m *MockBillingGateway) FindCustomerByEmail(ctx context.Context, settings integration.SyncSettings, email string) (*integration.RemoteCustomer, error) {
	args := m.Called(ctx, settings, email)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteCustomer), args.Error(1)
}

func (m *MockBillingGateway) CreateCustomer(ctx context.Context, settings integration.SyncSettings, customer integration.NewCustomer) (*integration.RemoteCustomer, error) {
	args := m.Called(ctx, settings, customer)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteCustomer), args.Error(1)
}

func (m *MockBillingGateway) GetInvoice(ctx context.Context, settings integration.SyncSettings, numberOrID string) (*integration.RemoteInvoice, error) {
	args := m.Called(ctx, settings, numberOrID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteInvoice), args.Error(1)
}

func (m *MockBillingGateway) CreateInvoice(ctx context.Context, settings integration.SyncSettings, invoice integration.NewInvoice) (*integration.RemoteInvoice, error) {
	args := m.Called(ctx, settings, invoice)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteInvoice), args.Error(1)
}

func (m *MockBillingGateway) AddLineItem(ctx context.Context, settings integration.SyncSettings, invoiceID int64, line integration.InvoiceLine) (*integration.RemoteLineItem, error) {
	args := m.Called(ctx, settings, invoiceID, line)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteLineItem), args.Error(1)
}

func (m *MockBillingGateway) UpdateLineItemPrice(ctx context.Context, settings integration.SyncSettings, invoiceID, lineItemID int64, price string) (*integration.RemoteLineItem, error) {
	args := m.Called(ctx, settings, invoiceID, lineItemID, price)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemoteLineItem), args.Error(1)
}

func (m *MockBillingGateway) ListPaymentMethods(ctx context.Context, settings integration.SyncSettings) ([]integration.RemotePaymentMethod, error) {
	args := m.Called(ctx, settings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.RemotePaymentMethod), args.Error(1)
}

func (m *MockBillingGateway) CreatePayment(ctx context.Context, settings integration.SyncSettings, payment integration.NewPayment) (*integration.PaymentResult, error) {
	args := m.Called(ctx, settings, payment)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PaymentResult), args.Error(1)
}

func (m *MockBillingGateway) GetPayment(ctx context.Context, settings integration.SyncSettings, paymentID int64) (*integration.RemotePayment, error) {
	args := m.Called(ctx, settings, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.RemotePayment), args.Error(1)
}

// MockOrderSource is a mock implementation of OrderSource
type MockOrderSource struct {
	mock.Mock
}

func (m *MockOrderSource) GetOrder(ctx context.Context, orderID int64) (*integration.Order, error) {
	args := m.Called(ctx, orderID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.Order), args.Error(1)
}

// staticSettings always returns the same snapshot
type staticSettings struct {
	settings integration.SyncSettings
	err      error
}

func (s staticSettings) Current(context.Context) (integration.SyncSettings, error) {
	return s.settings, s.err
}

// MockSyncRecordRepository is a mock implementation of SyncRecordRepository
type MockSyncRecordRepository struct {
	mock.Mock
}

func (m *MockSyncRecordRepository) Save(ctx context.Context, record *integration.SyncRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockSyncRecordRepository) FindByOrder(ctx context.Context, orderID int64, limit int) ([]integration.SyncRecord, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncRecord), args.Error(1)
}

func (m *MockSyncRecordRepository) FindAll(ctx context.Context, filter integration.SyncRecordFilter) ([]integration.SyncRecord, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncRecord), args.Error(1)
}

func (m *MockSyncRecordRepository) Count(ctx context.Context, filter integration.SyncRecordFilter) (int64, error) {
	args := m.Called(ctx, filter)
	return args.Get(0).(int64), args.Error(1)
}

// MockKeyedLocker is a mock implementation of KeyedLocker
type MockKeyedLocker struct {
	mock.Mock
	released int
}

func (m *MockKeyedLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (shared.Unlocker, error) {
	args := m.Called(ctx, key, ttl)
	if err := args.Error(0); err != nil {
		return nil, err
	}
	return func(context.Context) error {
		m.released++
		return nil
	}, nil
}

func (m *MockKeyedLocker) Close() error {
	return nil
}

// MockDiagnosticsArchive is a mock implementation of DiagnosticsArchive
type MockDiagnosticsArchive struct {
	mock.Mock
}

func (m *MockDiagnosticsArchive) Archive(ctx context.Context, orderID int64, operation integration.Operation, payload []byte) (string, error) {
	args := m.Called(ctx, orderID, operation, payload)
	return args.String(0), args.Error(1)
}

// MockPaymentMappingRepository is a mock implementation of PaymentMethodMappingRepository
type MockPaymentMappingRepository struct {
	mock.Mock
}

func (m *MockPaymentMappingRepository) FindByMethod(ctx context.Context, method string) (*integration.PaymentMethodMapping, error) {
	args := m.Called(ctx, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*integration.PaymentMethodMapping), args.Error(1)
}

func (m *MockPaymentMappingRepository) FindAll(ctx context.Context) ([]integration.PaymentMethodMapping, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.PaymentMethodMapping), args.Error(1)
}

func (m *MockPaymentMappingRepository) Save(ctx context.Context, mapping *integration.PaymentMethodMapping) error {
	args := m.Called(ctx, mapping)
	return args.Error(0)
}

func (m *MockPaymentMappingRepository) DeleteByMethod(ctx context.Context, method string) error {
	args := m.Called(ctx, method)
	return args.Error(0)
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func newTestSettings(mods ...func(*integration.SyncSettingsParams)) integration.SyncSettings {
	p := integration.SyncSettingsParams{
		BaseURL:       "https://shop.repairshopr.com/api/v1",
		APIKey:        "key",
		TaxRateID:     "40354",
		CustomerNotes: "Created by WooCommerce",
		InvoiceNote:   "Order created from WooCommerce",
		Taxable:       true,
		CustomerPreferences: integration.CustomerPreferences{
			GetSMS: true, GetBilling: true, GetMarketing: true, GetReports: true,
		},
		PaidFlags:             integration.InvoicePaidFlags{VerifiedPaid: true, TechMarkedPaid: true, IsPaid: true},
		PaymentMethodMappings: map[string]int64{"stripe": 3},
	}
	for _, mod := range mods {
		mod(&p)
	}
	s, err := integration.NewSyncSettings(p)
	if err != nil {
		panic(err)
	}
	return s
}

// newTestOrder returns order #1002: subtotal 50.00, tax 4.00, total 54.00,
// one line item of two units.
func newTestOrder() *integration.Order {
	paid := time.Date(2024, 3, 9, 19, 5, 6, 0, time.UTC)
	return &integration.Order{
		ID:          1002,
		Number:      "1002",
		Status:      "processing",
		Paid:        true,
		DateCreated: time.Date(2024, 3, 9, 19, 0, 0, 0, time.UTC),
		DatePaid:    &paid,
		Subtotal:    dec("50.00"),
		TotalTax:    dec("4.00"),
		Total:       dec("54.00"),
		Billing: integration.Contact{
			FirstName: "Ann", LastName: "Lee", Email: "Ann@Example.com",
			Address1: "1 Main St", City: "Springfield", Postcode: "62701",
		},
		LineItems: []integration.OrderLineItem{
			{Name: "Widget", SKU: "WID-1", Quantity: 2, Total: dec("50.00")},
		},
		PaymentMethod: "stripe",
		TransactionID: "ch_123",
	}
}

func notFound() error {
	return fmt.Errorf("invoice: %w", integration.ErrNotFound)
}
