package integration

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// VerificationEngine compares an order with its billing invoice. It only reads.
type VerificationEngine struct {
	billing integration.BillingGateway
	logger  *zap.Logger
}

// NewVerificationEngine creates a new VerificationEngine
func NewVerificationEngine(billing integration.BillingGateway, logger *zap.Logger) *VerificationEngine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationEngine{billing: billing, logger: logger}
}

// VerifyInvoice reports the exact difference between the order total and
// the remote invoice total. There is no tolerance: one cent is a mismatch.
func (v *VerificationEngine) VerifyInvoice(ctx context.Context, settings integration.SyncSettings, order *integration.Order) (*integration.InvoiceVerification, *integration.SyncOutcome) {
	op := integration.OperationVerifyInvoice
	number := order.InvoiceNumber(settings.InvoicePrefix())

	invoice, failed := v.fetch(ctx, settings, op, number)
	if failed != nil {
		return nil, failed
	}
	if invoice.Total == nil {
		return nil, withNumber(integration.FailedOutcome(op, MsgInvoiceTotalMissing,
			&integration.RemoteAPIError{Method: "GET", Endpoint: "invoices/" + number, Message: "invoice has no total"}), number)
	}

	result := &integration.InvoiceVerification{
		InvoiceNumber: number,
		InvoiceID:     invoice.ID,
		OrderTotal:    order.Total,
		RemoteTotal:   *invoice.Total,
		Difference:    order.Total.Sub(*invoice.Total).Abs(),
	}
	if !result.Match() {
		v.logger.Warn("Invoice total mismatch",
			zap.Int64("order_id", order.ID),
			zap.String("invoice_number", number),
			zap.String("order_total", order.Total.String()),
			zap.String("remote_total", invoice.Total.String()))
	}
	return result, &integration.SyncOutcome{
		Operation:     op,
		Status:        integration.SyncStatusSuccess,
		Message:       result.Message(),
		InvoiceNumber: number,
		InvoiceID:     invoice.ID,
	}
}

// VerifyPayment reports the invoice as paid when is_paid is set or the
// balance due is zero. Recorded payments are returned as detail only.
func (v *VerificationEngine) VerifyPayment(ctx context.Context, settings integration.SyncSettings, order *integration.Order) (*integration.PaymentVerification, *integration.SyncOutcome) {
	op := integration.OperationVerifyPayment
	number := order.InvoiceNumber(settings.InvoicePrefix())

	invoice, failed := v.fetch(ctx, settings, op, number)
	if failed != nil {
		return nil, failed
	}

	details := integration.PaymentDetails{
		IsPaid:             invoice.IsPaid,
		BalanceDueZero:     invoice.HasZeroBalance(),
		PaymentsExist:      len(invoice.Payments) > 0,
		TotalPaymentAmount: invoice.PaymentsTotal(),
		PaymentsCount:      len(invoice.Payments),
	}
	result := &integration.PaymentVerification{
		InvoiceNumber: number,
		InvoiceID:     invoice.ID,
		Paid:          details.IsPaid || details.BalanceDueZero,
		Details:       details,
	}
	return result, &integration.SyncOutcome{
		Operation:     op,
		Status:        integration.SyncStatusSuccess,
		Message:       result.Message(),
		InvoiceNumber: number,
		InvoiceID:     invoice.ID,
	}
}

func (v *VerificationEngine) fetch(ctx context.Context, settings integration.SyncSettings, op integration.Operation, number string) (*integration.RemoteInvoice, *integration.SyncOutcome) {
	invoice, err := v.billing.GetInvoice(ctx, settings, number)
	switch {
	case err == nil:
		return invoice, nil
	case errors.Is(err, integration.ErrNotFound):
		return nil, withNumber(integration.FailedOutcome(op, fmt.Sprintf(MsgInvoiceNotFoundFmt, number), err), number)
	default:
		return nil, withNumber(integration.FailedOutcome(op, MsgInvoiceLookupFailed, err), number)
	}
}
