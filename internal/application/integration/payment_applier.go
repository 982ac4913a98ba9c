package integration

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// PaymentApplier records the order payment against its existing invoice.
// It never creates the invoice and never posts a second payment with the
// same amount and reference.
type PaymentApplier struct {
	billing   integration.BillingGateway
	customers *CustomerResolver
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentApplier creates a new PaymentApplier
func NewPaymentApplier(billing integration.BillingGateway, customers *CustomerResolver, logger *zap.Logger) *PaymentApplier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentApplier{
		billing:   billing,
		customers: customers,
		logger:    logger,
		now:       time.Now,
	}
}

// ApplyPayment checks every precondition in order and posts the payment
func (a *PaymentApplier) ApplyPayment(ctx context.Context, settings integration.SyncSettings, order *integration.Order) *integration.SyncOutcome {
	op := integration.OperationSyncPayment
	number := order.InvoiceNumber(settings.InvoicePrefix())
	log := a.logger.With(zap.Int64("order_id", order.ID), zap.String("invoice_number", number))
	fail := func(msg string, err error) *integration.SyncOutcome {
		return withNumber(integration.FailedOutcome(op, msg, err), number)
	}

	if !order.Paid {
		return fail(MsgOrderNotPaid, integration.NewValidationError("order %d is not paid", order.ID))
	}

	methodID, ok := settings.PaymentMethodFor(order.PaymentMethod)
	if !ok {
		log.Warn("No payment method mapping", zap.String("payment_method", order.PaymentMethod))
		return fail(MsgNoPaymentMapping, integration.NewValidationError("payment method %q is not mapped", order.PaymentMethod))
	}

	customerID, err := a.customers.ResolveOrCreate(ctx, settings, order)
	if err != nil {
		return fail(MsgCustomerFailed, err)
	}

	invoice, err := a.billing.GetInvoice(ctx, settings, number)
	if err != nil {
		log.Warn("Could not find RepairShopr invoice for order", zap.Error(err))
		return fail(MsgInvoiceMissing, err)
	}
	log = log.With(zap.Int64("invoice_id", invoice.ID))

	// Payments are read from the invoice fetched by id, which carries them in full
	detailed, err := a.billing.GetInvoice(ctx, settings, strconv.FormatInt(invoice.ID, 10))
	switch {
	case err == nil:
		invoice = detailed
	case errors.Is(err, integration.ErrNotFound):
	default:
		return fail(MsgInvoiceMissing, err)
	}

	if dup, found := invoice.FindDuplicatePayment(order.Total, order.TransactionID); found {
		log.Info("Payment already exists for invoice", zap.Int64("payment_id", dup.ID))
		return &integration.SyncOutcome{
			Operation:     op,
			Status:        integration.SyncStatusExists,
			Message:       MsgPaymentExists,
			InvoiceNumber: number,
			InvoiceID:     invoice.ID,
			CustomerID:    customerID,
			PaymentID:     dup.ID,
		}
	}

	methodName, err := a.resolveMethodName(ctx, settings, methodID)
	if err != nil {
		log.Warn("Could not resolve payment method name", zap.Int64("payment_method_id", methodID), zap.Error(err))
		return fail(MsgPaymentMethodUnresolved, err)
	}

	appliedAt := a.now()
	if order.DatePaid != nil {
		appliedAt = *order.DatePaid
	}
	contact := order.Billing
	result, err := a.billing.CreatePayment(ctx, settings, integration.NewPayment{
		CustomerID:        customerID,
		InvoiceID:         invoice.ID,
		InvoiceNumber:     number,
		Amount:            order.Total,
		AddressStreet:     contact.Address1,
		AddressCity:       contact.City,
		AddressZip:        contact.Postcode,
		PaymentMethodName: methodName,
		RefNum:            order.TransactionID,
		AppliedAt:         appliedAt,
		SignatureDate:     appliedAt,
		FirstName:         contact.FirstName,
		LastName:          contact.LastName,
	})
	if err != nil {
		log.Error("Failed to send payment to RepairShopr", zap.Error(err))
		return fail(MsgPaymentError, err)
	}
	if !result.Success {
		return fail(MsgPaymentRejected+string(result.Raw), &integration.RemoteAPIError{
			Method:   "POST",
			Endpoint: "payments",
			Message:  "response has no success flag",
			Body:     result.Raw,
		})
	}

	log.Info("Payment applied in RepairShopr", zap.Int64("payment_id", result.ID))
	a.confirmApplied(ctx, settings, result.ID, invoice.ID, log)

	return &integration.SyncOutcome{
		Operation:     op,
		Status:        integration.SyncStatusSuccess,
		Message:       MsgPaymentApplied,
		InvoiceNumber: number,
		InvoiceID:     invoice.ID,
		CustomerID:    customerID,
		PaymentID:     result.ID,
	}
}

func (a *PaymentApplier) resolveMethodName(ctx context.Context, settings integration.SyncSettings, methodID int64) (string, error) {
	methods, err := a.billing.ListPaymentMethods(ctx, settings)
	if err != nil {
		return "", err
	}
	for _, m := range methods {
		if m.ID == methodID && m.Name != "" {
			return m.Name, nil
		}
	}
	return "", integration.NewValidationError("payment method %d does not exist in RepairShopr", methodID)
}

// confirmApplied reads the payment back and logs which invoices it was
// applied to. Failures here only produce log entries.
func (a *PaymentApplier) confirmApplied(ctx context.Context, settings integration.SyncSettings, paymentID, invoiceID int64, log *zap.Logger) {
	if paymentID == 0 {
		return
	}
	payment, err := a.billing.GetPayment(ctx, settings, paymentID)
	if err != nil {
		log.Warn("Could not read back payment", zap.Int64("payment_id", paymentID), zap.Error(err))
		return
	}
	if !slices.Contains(payment.InvoiceIDs, invoiceID) {
		log.Warn("Payment is not applied to the expected invoice",
			zap.Int64("payment_id", paymentID),
			zap.Int64s("applied_invoice_ids", payment.InvoiceIDs))
		return
	}
	log.Debug("Payment applied to invoices", zap.Int64s("invoice_ids", payment.InvoiceIDs))
}
