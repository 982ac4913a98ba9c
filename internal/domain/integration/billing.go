package integration

import (
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Remote billing records
// ---------------------------------------------------------------------------

// RemoteCustomer is a customer record on the billing platform
type RemoteCustomer struct {
	ID           int64
	FirstName    string
	LastName     string
	BusinessName string
	Email        string
}

// NewCustomer is the creation payload for a billing customer
type NewCustomer struct {
	FirstName    string
	LastName     string
	FullName     string
	BusinessName string
	Email        string
	Phone        string
	Address      string
	Address2     string
	City         string
	State        string
	Zip          string
	Notes        string
	TaxRateID    string
	Preferences  CustomerPreferences
}

// BusinessThenName is the business name, or the full name when there is none
func (c NewCustomer) BusinessThenName() string {
	if c.BusinessName != "" {
		return c.BusinessName
	}
	return c.FullName
}

// CustomerPreferences are the communication flags applied to new customers
type CustomerPreferences struct {
	GetSMS       bool
	GetBilling   bool
	GetMarketing bool
	GetReports   bool
	OptOut       bool
	NoEmail      bool
}

// InvoiceLine is a line item prepared for submission.
// ProductID empty means a free-text line identified by Name.
type InvoiceLine struct {
	ProductID string
	Name      string
	Quantity  int
	Price     decimal.Decimal
	Taxable   bool
	// LineTotal is the storefront amount the line represents; used to pick the
	// line that absorbs rounding differences. Not transmitted.
	LineTotal decimal.Decimal
}

// IsCatalogProduct reports whether the line refers to a catalog product
func (l InvoiceLine) IsCatalogProduct() bool {
	return l.ProductID != "" && l.ProductID != "0"
}

// NewInvoice is the creation payload for a billing invoice
type NewInvoice struct {
	CustomerID       int64
	Number           string
	Date             time.Time
	BusinessThenName string
	Subtotal         decimal.Decimal
	Tax              decimal.Decimal
	Total            decimal.Decimal
	VerifiedPaid     bool
	TechMarkedPaid   bool
	IsPaid           bool
	Note             string
	// FirstLine is embedded in the creation call; the API accepts one line there
	FirstLine InvoiceLine
}

// RemoteLineItem is a line item as stored on the billing platform
type RemoteLineItem struct {
	ID        int64
	ProductID string
	Name      string
	Quantity  decimal.Decimal
	Price     decimal.Decimal
}

// RemoteInvoice is an invoice record on the billing platform
type RemoteInvoice struct {
	ID             int64
	Number         string
	CustomerID     int64
	Subtotal       decimal.Decimal
	Tax            decimal.Decimal
	Total          *decimal.Decimal
	BalanceDue     *decimal.Decimal
	IsPaid         bool
	VerifiedPaid   bool
	TechMarkedPaid bool
	LineItems      []RemoteLineItem
	Payments       []RemotePayment
}

// HasZeroBalance reports whether balance_due is present and equal to zero
func (inv *RemoteInvoice) HasZeroBalance() bool {
	return inv.BalanceDue != nil && inv.BalanceDue.IsZero()
}

// PaymentsTotal sums the amounts of all recorded payments
func (inv *RemoteInvoice) PaymentsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, p := range inv.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

// RemotePayment is a payment record on the billing platform
type RemotePayment struct {
	ID         int64
	Amount     decimal.Decimal
	RefNum     string
	InvoiceIDs []int64
}

// RemotePaymentMethod is a payment method configured on the billing platform
type RemotePaymentMethod struct {
	ID   int64
	Name string
}

// NewPayment is the creation payload for a billing payment
type NewPayment struct {
	CustomerID        int64
	InvoiceID         int64
	InvoiceNumber     string
	Amount            decimal.Decimal
	AddressStreet     string
	AddressCity       string
	AddressZip        string
	PaymentMethodName string
	RefNum            string
	AppliedAt         time.Time
	SignatureDate     time.Time
	FirstName         string
	LastName          string
}

// AmountCents returns the amount as integer cents, rounded half away from zero
func (p NewPayment) AmountCents() int64 {
	return p.Amount.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// PaymentResult is the billing platform's answer to a payment creation
type PaymentResult struct {
	// Success mirrors the explicit success flag of the response
	Success bool
	ID      int64
	// Raw is the response body, kept for diagnosis when Success is false
	Raw []byte
}

// FindDuplicatePayment returns the first recorded payment that matches amount
// to the cent. When both the recorded payment and refNum carry a reference,
// the references must match as well; otherwise the amount alone decides.
func (inv *RemoteInvoice) FindDuplicatePayment(amount decimal.Decimal, refNum string) (*RemotePayment, bool) {
	want := FormatMoney(amount)
	for i := range inv.Payments {
		p := &inv.Payments[i]
		if FormatMoney(p.Amount) != want {
			continue
		}
		if refNum != "" && p.RefNum != "" && p.RefNum != refNum {
			continue
		}
		return p, true
	}
	return nil, false
}
