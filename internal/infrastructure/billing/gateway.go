package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
)

const (
	invoiceDateLayout = "2006-01-02T15:04:05.000-07:00"
	dueDateLayout     = "2006-01-02"
	appliedAtLayout   = "2006-01-02T15:04:05.000Z"
	signatureLayout   = "2006-01-02T15:04:05Z07:00"
)

// RepairShoprGateway implements integration.BillingGateway over the REST client
type RepairShoprGateway struct {
	client *Client
	logger *zap.Logger
}

// NewRepairShoprGateway creates a new gateway
func NewRepairShoprGateway(client *Client, logger *zap.Logger) *RepairShoprGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RepairShoprGateway{client: client, logger: logger}
}

// ---------------------------------------------------------------------------
// Customers
// ---------------------------------------------------------------------------

// FindCustomerByEmail returns the first customer matching the lowercased email
func (g *RepairShoprGateway) FindCustomerByEmail(ctx context.Context, settings integration.SyncSettings, email string) (*integration.RemoteCustomer, error) {
	email = integration.NormalizeEmail(email)
	body, err := g.client.Get(ctx, CredentialsFrom(settings), "customers", url.Values{"email": []string{email}})
	if err != nil {
		return nil, err
	}

	var resp customersResponse
	if err := decode(body, "customers", &resp); err != nil {
		return nil, err
	}
	if len(resp.Customers) == 0 || resp.Customers[0].ID == 0 {
		return nil, fmt.Errorf("customer %s: %w", email, integration.ErrNotFound)
	}
	return resp.Customers[0].toDomain(), nil
}

// CreateCustomer creates a customer and returns it with its new id
func (g *RepairShoprGateway) CreateCustomer(ctx context.Context, settings integration.SyncSettings, customer integration.NewCustomer) (*integration.RemoteCustomer, error) {
	payload := customerPayload{
		FirstName:           customer.FirstName,
		LastName:            customer.LastName,
		FullName:            customer.FullName,
		BusinessName:        customer.BusinessThenName(),
		Email:               integration.NormalizeEmail(customer.Email),
		Phone:               customer.Phone,
		Mobile:              customer.Phone,
		Address:             nullable(customer.Address),
		Address2:            nullable(customer.Address2),
		City:                nullable(customer.City),
		State:               nullable(customer.State),
		Zip:                 nullable(customer.Zip),
		Notes:               customer.Notes,
		GetSMS:              customer.Preferences.GetSMS,
		OptOut:              customer.Preferences.OptOut,
		NoEmail:             customer.Preferences.NoEmail,
		GetBilling:          customer.Preferences.GetBilling,
		GetMarketing:        customer.Preferences.GetMarketing,
		GetReports:          customer.Preferences.GetReports,
		TaxRateID:           customer.TaxRateID,
		Properties:          map[string]any{},
		Consent:             map[string]any{},
		BusinessAndFullName: customer.BusinessThenName(),
		BusinessThenName:    customer.BusinessThenName(),
	}

	body, err := g.client.Post(ctx, CredentialsFrom(settings), "customers", payload)
	if err != nil {
		return nil, err
	}

	var resp customerResponse
	if err := decode(body, "customers", &resp); err != nil {
		return nil, err
	}
	if resp.Customer == nil || resp.Customer.ID == 0 {
		return nil, missingID("POST", "customers", body)
	}
	return resp.Customer.toDomain(), nil
}

// ---------------------------------------------------------------------------
// Invoices
// ---------------------------------------------------------------------------

// GetInvoice fetches an invoice by number or id
func (g *RepairShoprGateway) GetInvoice(ctx context.Context, settings integration.SyncSettings, numberOrID string) (*integration.RemoteInvoice, error) {
	endpoint := "invoices/" + url.PathEscape(numberOrID)
	body, err := g.client.Get(ctx, CredentialsFrom(settings), endpoint, nil)
	if err != nil {
		return nil, notFoundAware(err, "invoice "+numberOrID)
	}

	var resp invoiceResponse
	if err := decode(body, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Invoice == nil || resp.Invoice.ID == 0 {
		return nil, fmt.Errorf("invoice %s: %w", numberOrID, integration.ErrNotFound)
	}
	return resp.Invoice.toDomain(), nil
}

// CreateInvoice creates an invoice with its first line item embedded
func (g *RepairShoprGateway) CreateInvoice(ctx context.Context, settings integration.SyncSettings, invoice integration.NewInvoice) (*integration.RemoteInvoice, error) {
	first := invoice.FirstLine
	payload := invoicePayload{
		BalanceDue:               "0.00",
		CustomerID:               invoice.CustomerID,
		Number:                   invoice.Number,
		Date:                     invoice.Date.Format(invoiceDateLayout),
		CustomerBusinessThenName: invoice.BusinessThenName,
		DueDate:                  invoice.Date.Format(dueDateLayout),
		Subtotal:                 integration.FormatMoney(invoice.Subtotal),
		Total:                    integration.FormatMoney(invoice.Total),
		Tax:                      integration.FormatMoney(invoice.Tax),
		VerifiedPaid:             invoice.VerifiedPaid,
		TechMarkedPaid:           invoice.TechMarkedPaid,
		IsPaid:                   invoice.IsPaid,
		Note:                     invoice.Note,
		LineItems: []invoiceLinePayload{{
			Item:      first.Name,
			Name:      first.Name,
			ProductID: productRef(first.ProductID),
			Quantity:  first.Quantity,
			Price:     integration.FormatMoney(first.Price),
			Taxable:   first.Taxable,
		}},
	}

	body, err := g.client.Post(ctx, CredentialsFrom(settings), "invoices", payload)
	if err != nil {
		return nil, err
	}

	var resp invoiceResponse
	if err := decode(body, "invoices", &resp); err != nil {
		return nil, err
	}
	if resp.Invoice == nil || resp.Invoice.ID == 0 {
		return nil, missingID("POST", "invoices", body)
	}
	return resp.Invoice.toDomain(), nil
}

// AddLineItem appends a line item to an existing invoice
func (g *RepairShoprGateway) AddLineItem(ctx context.Context, settings integration.SyncSettings, invoiceID int64, line integration.InvoiceLine) (*integration.RemoteLineItem, error) {
	payload := lineItemPayload{
		DiscountDollars: "0",
		Price:           json.Number(integration.FormatMoney(line.Price)),
		Quantity:        json.Number(strconv.Itoa(line.Quantity)),
		Taxable:         line.Taxable,
	}
	if line.IsCatalogProduct() {
		ref := productRef(line.ProductID)
		payload.ProductID = &ref
	} else {
		name := line.Name
		payload.Item = &name
		payload.Name = &name
	}

	endpoint := fmt.Sprintf("invoices/%d/line_items", invoiceID)
	body, err := g.client.Post(ctx, CredentialsFrom(settings), endpoint, payload)
	if err != nil {
		return nil, err
	}
	return decodeLineItem(body, "POST", endpoint)
}

// UpdateLineItemPrice sets the unit price of an existing line item
func (g *RepairShoprGateway) UpdateLineItemPrice(ctx context.Context, settings integration.SyncSettings, invoiceID, lineItemID int64, price string) (*integration.RemoteLineItem, error) {
	endpoint := fmt.Sprintf("invoices/%d/line_items/%d", invoiceID, lineItemID)
	body, err := g.client.Put(ctx, CredentialsFrom(settings), endpoint, lineItemPricePayload{Price: json.Number(price)})
	if err != nil {
		return nil, err
	}
	return decodeLineItem(body, "PUT", endpoint)
}

// ---------------------------------------------------------------------------
// Payments
// ---------------------------------------------------------------------------

// ListPaymentMethods returns the payment methods configured on the account
func (g *RepairShoprGateway) ListPaymentMethods(ctx context.Context, settings integration.SyncSettings) ([]integration.RemotePaymentMethod, error) {
	body, err := g.client.Get(ctx, CredentialsFrom(settings), "payment_methods", nil)
	if err != nil {
		return nil, err
	}

	var resp paymentMethodsResponse
	if err := decode(body, "payment_methods", &resp); err != nil {
		return nil, err
	}
	methods := make([]integration.RemotePaymentMethod, 0, len(resp.PaymentMethods))
	for _, m := range resp.PaymentMethods {
		methods = append(methods, integration.RemotePaymentMethod{ID: m.ID, Name: m.Name})
	}
	return methods, nil
}

// CreatePayment records a payment applied in full to one invoice.
// A response without an explicit success flag is returned with Success=false.
func (g *RepairShoprGateway) CreatePayment(ctx context.Context, settings integration.SyncSettings, payment integration.NewPayment) (*integration.PaymentResult, error) {
	amount := integration.FormatMoney(payment.Amount)
	payload := paymentPayload{
		CustomerID:    payment.CustomerID,
		InvoiceID:     payment.InvoiceID,
		InvoiceNumber: payment.InvoiceNumber,
		AmountCents:   payment.AmountCents(),
		AddressStreet: payment.AddressStreet,
		AddressCity:   payment.AddressCity,
		AddressZip:    payment.AddressZip,
		PaymentMethod: payment.PaymentMethodName,
		RefNum:        payment.RefNum,
		AppliedAt:     payment.AppliedAt.UTC().Format(appliedAtLayout),
		SignatureDate: payment.SignatureDate.Format(signatureLayout),
		LastName:      payment.LastName,
		FirstName:     payment.FirstName,
		ApplyPayments: map[string]string{strconv.FormatInt(payment.InvoiceID, 10): amount},
	}

	body, err := g.client.Post(ctx, CredentialsFrom(settings), "payments", payload)
	if err != nil {
		return nil, err
	}

	var resp paymentResponse
	if err := decode(body, "payments", &resp); err != nil {
		return nil, err
	}
	result := &integration.PaymentResult{Raw: body}
	if resp.Payment != nil {
		result.ID = resp.Payment.ID
		result.Success = resp.Payment.Success != nil && *resp.Payment.Success
	}
	if !result.Success {
		g.logger.Warn("RepairShopr payment not confirmed",
			zap.Int64("invoice_id", payment.InvoiceID),
			zap.ByteString("response", body))
	}
	return result, nil
}

// GetPayment fetches a payment by id
func (g *RepairShoprGateway) GetPayment(ctx context.Context, settings integration.SyncSettings, paymentID int64) (*integration.RemotePayment, error) {
	endpoint := fmt.Sprintf("payments/%d", paymentID)
	body, err := g.client.Get(ctx, CredentialsFrom(settings), endpoint, nil)
	if err != nil {
		return nil, notFoundAware(err, endpoint)
	}

	var resp paymentResponse
	if err := decode(body, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.Payment == nil || resp.Payment.ID == 0 {
		return nil, fmt.Errorf("payment %d: %w", paymentID, integration.ErrNotFound)
	}
	p := resp.Payment.toDomain()
	return &p, nil
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func decode(body []byte, endpoint string, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return &integration.RemoteAPIError{
			Endpoint: endpoint,
			Message:  "invalid JSON response: " + err.Error(),
			Body:     body,
		}
	}
	return nil
}

func decodeLineItem(body []byte, method, endpoint string) (*integration.RemoteLineItem, error) {
	var resp lineItemResponse
	if err := decode(body, endpoint, &resp); err != nil {
		return nil, err
	}
	if resp.LineItem == nil || resp.LineItem.ID == 0 {
		return nil, missingID(method, endpoint, body)
	}
	item := resp.LineItem.toDomain()
	return &item, nil
}

func missingID(method, endpoint string, body []byte) error {
	return &integration.RemoteAPIError{
		Method:   method,
		Endpoint: endpoint,
		Message:  "response has no id",
		Body:     body,
	}
}

// notFoundAware maps a 404 answer to ErrNotFound
func notFoundAware(err error, what string) error {
	var apiErr *integration.RemoteAPIError
	if errors.As(err, &apiErr) && apiErr.IsNotFound() {
		return fmt.Errorf("%s: %w", what, integration.ErrNotFound)
	}
	return err
}

func nullable(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func (c customerDTO) toDomain() *integration.RemoteCustomer {
	return &integration.RemoteCustomer{
		ID:           c.ID,
		FirstName:    c.FirstName,
		LastName:     c.LastName,
		BusinessName: c.BusinessName,
		Email:        c.Email,
	}
}

func (l lineItemDTO) toDomain() integration.RemoteLineItem {
	name := l.Name
	if name == "" {
		name = l.Item
	}
	return integration.RemoteLineItem{
		ID:        l.ID,
		ProductID: string(l.ProductID),
		Name:      name,
		Quantity:  l.Quantity.orZero(),
		Price:     l.Price.orZero(),
	}
}

func (p paymentDTO) toDomain() integration.RemotePayment {
	return integration.RemotePayment{
		ID:         p.ID,
		Amount:     p.PaymentAmount.orZero(),
		RefNum:     string(p.RefNum),
		InvoiceIDs: append([]int64(nil), p.InvoiceIDs...),
	}
}

func (inv invoiceDTO) toDomain() *integration.RemoteInvoice {
	out := &integration.RemoteInvoice{
		ID:             inv.ID,
		Number:         string(inv.Number),
		CustomerID:     inv.CustomerID,
		Subtotal:       inv.Subtotal.orZero(),
		Tax:            inv.Tax.orZero(),
		Total:          inv.Total.ptr(),
		BalanceDue:     inv.BalanceDue.ptr(),
		IsPaid:         inv.IsPaid,
		VerifiedPaid:   inv.VerifiedPaid,
		TechMarkedPaid: inv.TechMarkedPaid,
	}
	for _, li := range inv.LineItems {
		out.LineItems = append(out.LineItems, li.toDomain())
	}
	for _, p := range inv.Payments {
		out.Payments = append(out.Payments, p.toDomain())
	}
	return out
}

var _ integration.BillingGateway = (*RepairShoprGateway)(nil)
