package billing

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Flexible scalar types. RepairShopr returns money as strings ("54.0") or
// numbers depending on the endpoint, and ids as numbers or strings.
// ---------------------------------------------------------------------------

// flexDecimal decodes a JSON string or number; null and "" leave it unset
type flexDecimal struct {
	Value decimal.Decimal
	Valid bool
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*f = flexDecimal{}
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	*f = flexDecimal{Value: v, Valid: true}
	return nil
}

func (f flexDecimal) ptr() *decimal.Decimal {
	if !f.Valid {
		return nil
	}
	v := f.Value
	return &v
}

func (f flexDecimal) orZero() decimal.Decimal {
	if !f.Valid {
		return decimal.Zero
	}
	return f.Value
}

// flexString decodes a JSON string or number as text; null leaves it empty
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	*f = flexString(string(data))
	return nil
}

// productRef encodes a catalog product reference: empty as 0, numeric as a
// JSON number, anything else (a SKU) as a string.
type productRef string

func (p productRef) MarshalJSON() ([]byte, error) {
	s := strings.TrimSpace(string(p))
	if s == "" {
		return []byte("0"), nil
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return []byte(s), nil
	}
	return json.Marshal(s)
}

// ---------------------------------------------------------------------------
// Request payloads
// ---------------------------------------------------------------------------

type customerPayload struct {
	FirstName           string         `json:"firstname"`
	LastName            string         `json:"lastname"`
	FullName            string         `json:"fullname"`
	BusinessName        string         `json:"business_name"`
	Email               string         `json:"email"`
	Phone               string         `json:"phone"`
	Mobile              string         `json:"mobile"`
	Address             *string        `json:"address"`
	Address2            *string        `json:"address_2"`
	City                *string        `json:"city"`
	State               *string        `json:"state"`
	Zip                 *string        `json:"zip"`
	Notes               string         `json:"notes"`
	GetSMS              bool           `json:"get_sms"`
	OptOut              bool           `json:"opt_out"`
	NoEmail             bool           `json:"no_email"`
	GetBilling          bool           `json:"get_billing"`
	GetMarketing        bool           `json:"get_marketing"`
	GetReports          bool           `json:"get_reports"`
	TaxRateID           string         `json:"tax_rate_id"`
	Properties          map[string]any `json:"properties"`
	Consent             map[string]any `json:"consent"`
	BusinessAndFullName string         `json:"business_and_full_name"`
	BusinessThenName    string         `json:"business_then_name"`
}

// invoiceLinePayload is the line item embedded in invoice creation
type invoiceLinePayload struct {
	Item            string     `json:"item"`
	Name            string     `json:"name"`
	ProductID       productRef `json:"product_id"`
	Quantity        int        `json:"quantity"`
	Cost            int        `json:"cost"`
	Price           string     `json:"price"`
	DiscountPercent int        `json:"discount_percent"`
	Taxable         bool       `json:"taxable"`
}

type invoicePayload struct {
	BalanceDue               string               `json:"balance_due"`
	CustomerID               int64                `json:"customer_id"`
	Number                   string               `json:"number"`
	Date                     string               `json:"date"`
	CustomerBusinessThenName string               `json:"customer_business_then_name"`
	DueDate                  string               `json:"due_date"`
	Subtotal                 string               `json:"subtotal"`
	Total                    string               `json:"total"`
	Tax                      string               `json:"tax"`
	VerifiedPaid             bool                 `json:"verified_paid"`
	TechMarkedPaid           bool                 `json:"tech_marked_paid"`
	IsPaid                   bool                 `json:"is_paid"`
	Note                     string               `json:"note"`
	LineItems                []invoiceLinePayload `json:"line_items"`
}

// lineItemPayload is the body of POST /invoices/{id}/line_items. Catalog
// products omit item/name so the billing product supplies them.
type lineItemPayload struct {
	ID                  int         `json:"id"`
	LineDiscountPercent int         `json:"line_discount_percent"`
	DiscountDollars     string      `json:"discount_dollars"`
	ProductID           *productRef `json:"product_id,omitempty"`
	Item                *string     `json:"item,omitempty"`
	Name                *string     `json:"name,omitempty"`
	Price               json.Number `json:"price"`
	Cost                int         `json:"cost"`
	Quantity            json.Number `json:"quantity"`
	Taxable             bool        `json:"taxable"`
}

type lineItemPricePayload struct {
	Price json.Number `json:"price"`
}

type paymentPayload struct {
	CustomerID       int64             `json:"customer_id"`
	InvoiceID        int64             `json:"invoice_id"`
	InvoiceNumber    string            `json:"invoice_number"`
	AmountCents      int64             `json:"amount_cents"`
	AddressStreet    string            `json:"address_street"`
	AddressCity      string            `json:"address_city"`
	AddressZip       string            `json:"address_zip"`
	PaymentMethod    string            `json:"payment_method"`
	RefNum           string            `json:"ref_num"`
	RegisterID       int               `json:"register_id"`
	SignatureName    string            `json:"signature_name"`
	SignatureData    string            `json:"signature_data"`
	AppliedAt        string            `json:"applied_at"`
	SignatureDate    string            `json:"signature_date"`
	CreditCardNumber string            `json:"credit_card_number"`
	DateMonth        string            `json:"date_month"`
	DateYear         string            `json:"date_year"`
	CVV              string            `json:"cvv"`
	LastName         string            `json:"lastname"`
	FirstName        string            `json:"firstname"`
	ApplyPayments    map[string]string `json:"apply_payments"`
}

// ---------------------------------------------------------------------------
// Response schemas
// ---------------------------------------------------------------------------

type customerDTO struct {
	ID           int64  `json:"id"`
	FirstName    string `json:"firstname"`
	LastName     string `json:"lastname"`
	BusinessName string `json:"business_name"`
	Email        string `json:"email"`
}

type customersResponse struct {
	Customers []customerDTO `json:"customers"`
}

type customerResponse struct {
	Customer *customerDTO `json:"customer"`
}

type lineItemDTO struct {
	ID        int64       `json:"id"`
	ProductID flexString  `json:"product_id"`
	Item      string      `json:"item"`
	Name      string      `json:"name"`
	Quantity  flexDecimal `json:"quantity"`
	Price     flexDecimal `json:"price"`
}

type lineItemResponse struct {
	LineItem *lineItemDTO `json:"line_item"`
}

type paymentDTO struct {
	ID            int64       `json:"id"`
	Success       *bool       `json:"success"`
	PaymentAmount flexDecimal `json:"payment_amount"`
	RefNum        flexString  `json:"ref_num"`
	InvoiceIDs    []int64     `json:"invoice_ids"`
}

type paymentResponse struct {
	Payment *paymentDTO `json:"payment"`
}

type invoiceDTO struct {
	ID             int64         `json:"id"`
	Number         flexString    `json:"number"`
	CustomerID     int64         `json:"customer_id"`
	Subtotal       flexDecimal   `json:"subtotal"`
	Tax            flexDecimal   `json:"tax"`
	Total          flexDecimal   `json:"total"`
	BalanceDue     flexDecimal   `json:"balance_due"`
	IsPaid         bool          `json:"is_paid"`
	VerifiedPaid   bool          `json:"verified_paid"`
	TechMarkedPaid bool          `json:"tech_marked_paid"`
	LineItems      []lineItemDTO `json:"line_items"`
	Payments       []paymentDTO  `json:"payments"`
}

type invoiceResponse struct {
	Invoice *invoiceDTO `json:"invoice"`
}

type paymentMethodDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type paymentMethodsResponse struct {
	PaymentMethods []paymentMethodDTO `json:"payment_methods"`
}
