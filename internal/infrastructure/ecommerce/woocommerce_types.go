package ecommerce

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// WooCommerce REST API v3 schemas, limited to the fields the sync reads.

// wcMoney decodes money amounts, which WooCommerce sends as strings
type wcMoney decimal.Decimal

func (m *wcMoney) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*m = wcMoney(decimal.Zero)
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return err
	}
	*m = wcMoney(d)
	return nil
}

func (m wcMoney) Decimal() decimal.Decimal {
	return decimal.Decimal(m)
}

// wcTime decodes the zone-less "2006-01-02T15:04:05" timestamps of *_gmt fields
type wcTime struct {
	time.Time
	Valid bool
}

const wcTimeLayout = "2006-01-02T15:04:05"

func (t *wcTime) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(bytes.TrimSpace(data)), `"`)
	if raw == "" || raw == "null" {
		*t = wcTime{}
		return nil
	}
	parsed, err := time.ParseInLocation(wcTimeLayout, raw, time.UTC)
	if err != nil {
		parsed, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return err
		}
	}
	*t = wcTime{Time: parsed, Valid: true}
	return nil
}

// WooCommerceAddress is the billing or shipping block of an order
type WooCommerceAddress struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Company   string `json:"company"`
	Address1  string `json:"address_1"`
	Address2  string `json:"address_2"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// WooCommerceLineItem is a product line of an order
type WooCommerceLineItem struct {
	ID        int64   `json:"id"`
	Name      string  `json:"name"`
	ProductID int64   `json:"product_id"`
	SKU       string  `json:"sku"`
	Quantity  int     `json:"quantity"`
	Subtotal  wcMoney `json:"subtotal"`
	Total     wcMoney `json:"total"`
}

// WooCommerceFeeLine is a fee line of an order
type WooCommerceFeeLine struct {
	ID    int64   `json:"id"`
	Name  string  `json:"name"`
	Total wcMoney `json:"total"`
}

// WooCommerceOrder is an order as returned by GET /orders/{id}
type WooCommerceOrder struct {
	ID             int64                 `json:"id"`
	Number         flexNumber            `json:"number"`
	Status         string                `json:"status"`
	Currency       string                `json:"currency"`
	DateCreatedGMT wcTime                `json:"date_created_gmt"`
	DatePaidGMT    wcTime                `json:"date_paid_gmt"`
	TotalTax       wcMoney               `json:"total_tax"`
	Total          wcMoney               `json:"total"`
	Billing        WooCommerceAddress    `json:"billing"`
	Shipping       WooCommerceAddress    `json:"shipping"`
	LineItems      []WooCommerceLineItem `json:"line_items"`
	FeeLines       []WooCommerceFeeLine  `json:"fee_lines"`
	PaymentMethod  string                `json:"payment_method"`
	TransactionID  string                `json:"transaction_id"`
}

// flexNumber decodes the order number, a string in v3 but a number in
// some extensions
type flexNumber string

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = flexNumber(s)
		return nil
	}
	if string(data) == "null" {
		*n = ""
		return nil
	}
	if _, err := strconv.ParseFloat(string(data), 64); err != nil {
		return err
	}
	*n = flexNumber(string(data))
	return nil
}

// WooCommerce order statuses that mean the order has been paid
var wooCommercePaidStatuses = map[string]bool{
	"processing": true,
	"completed":  true,
}
