package integration

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Order (storefront, read-only)
// ---------------------------------------------------------------------------

// Contact holds the billing or shipping contact block of an order
type Contact struct {
	FirstName string
	LastName  string
	Company   string
	Email     string
	Phone     string
	Address1  string
	Address2  string
	City      string
	State     string
	Postcode  string
	Country   string
}

// FullName returns "first last" with surrounding whitespace removed
func (c Contact) FullName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// OrderLineItem is one purchased product on an order
type OrderLineItem struct {
	// Name is the product name (falls back to the line item name)
	Name string
	// SKU is the catalog product reference used as the billing product id
	SKU string
	// Quantity purchased
	Quantity int
	// Total is the storefront's authoritative line total after discounts, before tax
	Total decimal.Decimal
}

// UnitPrice returns Total / Quantity, or zero for a zero quantity
func (li OrderLineItem) UnitPrice() decimal.Decimal {
	if li.Quantity <= 0 {
		return decimal.Zero
	}
	return li.Total.Div(decimal.NewFromInt(int64(li.Quantity)))
}

// OrderFee is a named fee line on an order
type OrderFee struct {
	Name  string
	Total decimal.Decimal
}

// Order is a storefront order as seen by the sync engine
type Order struct {
	ID            int64
	Number        string
	Status        string
	Paid          bool
	Currency      string
	DateCreated   time.Time
	DatePaid      *time.Time
	Subtotal      decimal.Decimal
	TotalTax      decimal.Decimal
	Total         decimal.Decimal
	Billing       Contact
	Shipping      Contact
	LineItems     []OrderLineItem
	Fees          []OrderFee
	PaymentMethod string
	TransactionID string
}

// InvoiceNumber is the natural key of the order's remote invoice
func (o *Order) InvoiceNumber(prefix string) string {
	return prefix + o.Number
}

// FindFee returns the first fee with exactly the given name
func (o *Order) FindFee(name string) (OrderFee, bool) {
	for _, fee := range o.Fees {
		if fee.Name == name {
			return fee, true
		}
	}
	return OrderFee{}, false
}

// IsTaxed reports whether any tax was charged on the order
func (o *Order) IsTaxed() bool {
	return o.TotalTax.GreaterThan(decimal.Zero)
}

// CustomerContact merges billing and shipping field by field: each empty
// billing field is filled from the shipping block. Email is lowercased.
func (o *Order) CustomerContact() Contact {
	b, s := o.Billing, o.Shipping
	return Contact{
		FirstName: firstNonEmpty(b.FirstName, s.FirstName),
		LastName:  firstNonEmpty(b.LastName, s.LastName),
		Company:   firstNonEmpty(b.Company, s.Company),
		Email:     NormalizeEmail(firstNonEmpty(b.Email, s.Email)),
		Phone:     firstNonEmpty(b.Phone, s.Phone),
		Address1:  firstNonEmpty(b.Address1, s.Address1),
		Address2:  firstNonEmpty(b.Address2, s.Address2),
		City:      firstNonEmpty(b.City, s.City),
		State:     firstNonEmpty(b.State, s.State),
		Postcode:  firstNonEmpty(b.Postcode, s.Postcode),
		Country:   firstNonEmpty(b.Country, s.Country),
	}
}

// CustomerFullName is the billing full name, or the shipping one when billing is blank
func (o *Order) CustomerFullName() string {
	return firstNonEmpty(o.Billing.FullName(), o.Shipping.FullName())
}

// BusinessThenName returns the billing company, or the billing full name if absent
func (o *Order) BusinessThenName() string {
	if o.Billing.Company != "" {
		return o.Billing.Company
	}
	return o.Billing.FullName()
}

// NormalizeEmail lowercases and trims an email address
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
