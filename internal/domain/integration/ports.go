package integration

import "context"

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// OrderSource reads storefront orders
type OrderSource interface {
	// GetOrder returns ErrOrderNotFound when the order does not exist
	GetOrder(ctx context.Context, orderID int64) (*Order, error)
}

// BillingGateway is the typed view of the billing platform REST API.
// Every call is bound to the settings snapshot of the current operation.
// Lookups return ErrNotFound (wrapped) when the record does not exist; any
// other failure wraps ErrRemoteAPI or ErrConfiguration.
type BillingGateway interface {
	FindCustomerByEmail(ctx context.Context, settings SyncSettings, email string) (*RemoteCustomer, error)
	CreateCustomer(ctx context.Context, settings SyncSettings, customer NewCustomer) (*RemoteCustomer, error)

	// GetInvoice fetches an invoice by number or id
	GetInvoice(ctx context.Context, settings SyncSettings, numberOrID string) (*RemoteInvoice, error)
	CreateInvoice(ctx context.Context, settings SyncSettings, invoice NewInvoice) (*RemoteInvoice, error)
	AddLineItem(ctx context.Context, settings SyncSettings, invoiceID int64, line InvoiceLine) (*RemoteLineItem, error)
	UpdateLineItemPrice(ctx context.Context, settings SyncSettings, invoiceID, lineItemID int64, price string) (*RemoteLineItem, error)

	ListPaymentMethods(ctx context.Context, settings SyncSettings) ([]RemotePaymentMethod, error)
	CreatePayment(ctx context.Context, settings SyncSettings, payment NewPayment) (*PaymentResult, error)
	GetPayment(ctx context.Context, settings SyncSettings, paymentID int64) (*RemotePayment, error)
}

// DiagnosticsArchive stores raw remote payloads of failed operations
type DiagnosticsArchive interface {
	Archive(ctx context.Context, orderID int64, operation Operation, payload []byte) (string, error)
}
