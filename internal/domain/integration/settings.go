package integration

import (
	"context"
	"maps"
	"strings"
)

// ---------------------------------------------------------------------------
// Sync settings snapshot
// ---------------------------------------------------------------------------

// ElectronicPaymentFee maps a named storefront fee to a billing catalog product
type ElectronicPaymentFee struct {
	Name      string
	ProductID string
}

// Enabled reports whether both name and product id are set
func (f ElectronicPaymentFee) Enabled() bool {
	return f.Name != "" && f.ProductID != ""
}

// InvoicePaidFlags toggles which paid flags are set on created invoices
type InvoicePaidFlags struct {
	VerifiedPaid   bool
	TechMarkedPaid bool
	IsPaid         bool
}

// SyncSettingsParams is the input for NewSyncSettings
type SyncSettingsParams struct {
	BaseURL                   string
	APIKey                    string
	InvoicePrefix             string
	ElectronicPaymentFee      ElectronicPaymentFee
	RoundingCorrectionProduct string
	TaxRateID                 string
	CustomerNotes             string
	InvoiceNote               string
	Taxable                   bool
	CustomerPreferences       CustomerPreferences
	PaidFlags                 InvoicePaidFlags
	PaymentMethodMappings     map[string]int64
	AutoSyncInvoice           bool
	AutoSyncPayment           bool
}

// SyncSettings is an immutable configuration snapshot taken at the start of
// an operation. All fields are unexported; the mapping table is copied.
type SyncSettings struct {
	baseURL                   string
	apiKey                    string
	invoicePrefix             string
	epf                       ElectronicPaymentFee
	roundingCorrectionProduct string
	taxRateID                 string
	customerNotes             string
	invoiceNote               string
	taxable                   bool
	preferences               CustomerPreferences
	paidFlags                 InvoicePaidFlags
	paymentMappings           map[string]int64
	autoSyncInvoice           bool
	autoSyncPayment           bool
}

// NewSyncSettings validates params and builds a snapshot
func NewSyncSettings(p SyncSettingsParams) (SyncSettings, error) {
	epf := ElectronicPaymentFee{
		Name:      strings.TrimSpace(p.ElectronicPaymentFee.Name),
		ProductID: strings.TrimSpace(p.ElectronicPaymentFee.ProductID),
	}
	if (epf.Name == "") != (epf.ProductID == "") {
		return SyncSettings{}, &ConfigurationError{
			Field:  "electronic payment fee",
			Reason: "name and product id must both be set or both be empty",
		}
	}

	mappings := make(map[string]int64, len(p.PaymentMethodMappings))
	for method, id := range p.PaymentMethodMappings {
		if method == "" || id <= 0 {
			continue
		}
		mappings[method] = id
	}

	return SyncSettings{
		baseURL:                   strings.TrimSpace(p.BaseURL),
		apiKey:                    strings.TrimSpace(p.APIKey),
		invoicePrefix:             strings.TrimSpace(p.InvoicePrefix),
		epf:                       epf,
		roundingCorrectionProduct: strings.TrimSpace(p.RoundingCorrectionProduct),
		taxRateID:                 p.TaxRateID,
		customerNotes:             p.CustomerNotes,
		invoiceNote:               p.InvoiceNote,
		taxable:                   p.Taxable,
		preferences:               p.CustomerPreferences,
		paidFlags:                 p.PaidFlags,
		paymentMappings:           mappings,
		autoSyncInvoice:           p.AutoSyncInvoice,
		autoSyncPayment:           p.AutoSyncPayment,
	}, nil
}

// RequireRemote returns a ConfigurationError when the billing URL or key is missing
func (s SyncSettings) RequireRemote() error {
	if s.baseURL == "" {
		return &ConfigurationError{Field: "billing API URL"}
	}
	if s.apiKey == "" {
		return &ConfigurationError{Field: "billing API key"}
	}
	return nil
}

func (s SyncSettings) BaseURL() string { return s.baseURL }
func (s SyncSettings) APIKey() string { return s.apiKey }
func (s SyncSettings) InvoicePrefix() string { return s.invoicePrefix }
func (s SyncSettings) ElectronicPaymentFee() ElectronicPaymentFee { return s.epf }
func (s SyncSettings) RoundingCorrectionProduct() string { return s.roundingCorrectionProduct }
func (s SyncSettings) TaxRateID() string { return s.taxRateID }
func (s SyncSettings) CustomerNotes() string { return s.customerNotes }
func (s SyncSettings) InvoiceNote() string { return s.invoiceNote }
func (s SyncSettings) Taxable() bool { return s.taxable }
func (s SyncSettings) CustomerPreferences() CustomerPreferences { return s.preferences }
func (s SyncSettings) PaidFlags() InvoicePaidFlags { return s.paidFlags }
func (s SyncSettings) AutoSyncInvoice() bool { return s.autoSyncInvoice }
func (s SyncSettings) AutoSyncPayment() bool { return s.autoSyncPayment }

// PaymentMethodFor returns the billing payment method id mapped to a storefront method
func (s SyncSettings) PaymentMethodFor(storefrontMethod string) (int64, bool) {
	id, ok := s.paymentMappings[storefrontMethod]
	return id, ok
}

// PaymentMethodMappings returns a copy of the mapping table
func (s SyncSettings) PaymentMethodMappings() map[string]int64 {
	return maps.Clone(s.paymentMappings)
}

// SettingsProvider builds a fresh settings snapshot for each operation
type SettingsProvider interface {
	Current(ctx context.Context) (SyncSettings, error)
}
