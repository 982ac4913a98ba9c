package integration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// roundingCorrectionName labels the correction line on the invoice
const roundingCorrectionName = "Rounding Correction"

// InvoiceSynthesizer turns a paid order into a billing invoice whose line
// items add up to the order subtotal to the cent.
type InvoiceSynthesizer struct {
	billing   integration.BillingGateway
	customers *CustomerResolver
	metrics   Metrics
	logger    *zap.Logger
	now       func() time.Time
}

// NewInvoiceSynthesizer creates a new InvoiceSynthesizer
func NewInvoiceSynthesizer(billing integration.BillingGateway, customers *CustomerResolver, logger *zap.Logger) *InvoiceSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvoiceSynthesizer{
		billing:   billing,
		customers: customers,
		metrics:   noopMetrics{},
		logger:    logger,
		now:       time.Now,
	}
}

// WithMetrics sets the metrics sink
func (s *InvoiceSynthesizer) WithMetrics(m Metrics) *InvoiceSynthesizer {
	if m != nil {
		s.metrics = m
	}
	return s
}

// invoicePlan is the reconciled set of lines for one order
type invoicePlan struct {
	lines []integration.InvoiceLine
	// feeIndex is the position of the electronic payment fee line, or -1
	feeIndex int
	fee      integration.OrderFee
	target   decimal.Decimal
	applied  decimal.Decimal
}

// planInvoice builds one line per order item plus the matched fee line, and
// concentrates any subtotal difference in the largest line.
func planInvoice(settings integration.SyncSettings, order *integration.Order) invoicePlan {
	taxable := settings.Taxable() && order.IsTaxed()
	plan := invoicePlan{feeIndex: -1, target: order.Subtotal}

	for _, li := range order.LineItems {
		if li.Quantity <= 0 {
			continue
		}
		plan.lines = append(plan.lines, integration.InvoiceLine{
			ProductID: li.SKU,
			Name:      li.Name,
			Quantity:  li.Quantity,
			Price:     li.UnitPrice(),
			Taxable:   taxable,
			LineTotal: li.Total,
		})
	}

	if epf := settings.ElectronicPaymentFee(); epf.Enabled() {
		if fee, ok := order.FindFee(epf.Name); ok {
			plan.fee = fee
			plan.feeIndex = len(plan.lines)
			plan.target = plan.target.Add(fee.Total)
			plan.lines = append(plan.lines, integration.InvoiceLine{
				ProductID: epf.ProductID,
				Name:      epf.Name,
				Quantity:  1,
				Price:     fee.Total,
				Taxable:   taxable,
				LineTotal: fee.Total,
			})
		}
	}

	var lines []integration.InvoiceLine
	lines, plan.applied = integration.ReconcileLines(plan.lines, plan.target)
	plan.lines = integration.RoundPrices(lines)
	return plan
}

// EnsureInvoice creates the order's invoice unless one with the same number
// already exists. Line items after the first are posted one by one; a failed
// line is reported as a warning and the remaining lines are still posted.
func (s *InvoiceSynthesizer) EnsureInvoice(ctx context.Context, settings integration.SyncSettings, order *integration.Order) *integration.SyncOutcome {
	op := integration.OperationSyncInvoice
	number := order.InvoiceNumber(settings.InvoicePrefix())
	log := s.logger.With(zap.Int64("order_id", order.ID), zap.String("invoice_number", number))

	if !order.Paid {
		log.Info("Order is not paid, skipping invoice sync")
		return &integration.SyncOutcome{
			Operation:     op,
			Status:        integration.SyncStatusSkipped,
			Message:       MsgOrderNotPaid,
			InvoiceNumber: number,
		}
	}

	existing, err := s.billing.GetInvoice(ctx, settings, number)
	switch {
	case err == nil:
		log.Info("Invoice already exists in RepairShopr", zap.Int64("invoice_id", existing.ID))
		return &integration.SyncOutcome{
			Operation:     op,
			Status:        integration.SyncStatusExists,
			Message:       MsgInvoiceExists,
			InvoiceNumber: number,
			InvoiceID:     existing.ID,
			CustomerID:    existing.CustomerID,
		}
	case !errors.Is(err, integration.ErrNotFound):
		return withNumber(integration.FailedOutcome(op, MsgInvoiceLookupFailed, err), number)
	}

	plan := planInvoice(settings, order)
	if len(plan.lines) == 0 {
		return withNumber(integration.FailedOutcome(op, MsgNoLineItems,
			integration.NewValidationError("order %d has no line items", order.ID)), number)
	}
	if !plan.applied.IsZero() {
		log.Info("Applied precision correction to largest line item",
			zap.String("difference", plan.applied.String()),
			zap.String("target_subtotal", plan.target.String()))
	}

	customerID, err := s.customers.ResolveOrCreate(ctx, settings, order)
	if err != nil {
		return withNumber(integration.FailedOutcome(op, MsgCustomerFailed, err), number)
	}

	date := order.DateCreated
	if date.IsZero() {
		date = s.now()
	}
	paid := settings.PaidFlags()
	invoice, err := s.billing.CreateInvoice(ctx, settings, integration.NewInvoice{
		CustomerID:       customerID,
		Number:           number,
		Date:             date,
		BusinessThenName: order.BusinessThenName(),
		Subtotal:         order.Subtotal,
		Tax:              order.TotalTax,
		Total:            order.Total,
		VerifiedPaid:     paid.VerifiedPaid && order.Paid,
		TechMarkedPaid:   paid.TechMarkedPaid && order.Paid,
		IsPaid:           paid.IsPaid && order.Paid,
		Note:             settings.InvoiceNote(),
		FirstLine:        plan.lines[0],
	})
	if err != nil {
		log.Error("Failed to create invoice in RepairShopr", zap.Error(err))
		out := withNumber(integration.FailedOutcome(op, MsgInvoiceFailed, err), number)
		out.CustomerID = customerID
		return out
	}
	log = log.With(zap.Int64("invoice_id", invoice.ID))
	log.Info("Created invoice in RepairShopr")

	outcome := &integration.SyncOutcome{
		Operation:     op,
		Status:        integration.SyncStatusSuccess,
		Message:       MsgInvoiceCreated,
		InvoiceNumber: number,
		InvoiceID:     invoice.ID,
		CustomerID:    customerID,
	}

	failedLines := 0
	for i := 1; i < len(plan.lines); i++ {
		line := plan.lines[i]
		item, err := s.billing.AddLineItem(ctx, settings, invoice.ID, line)
		if err != nil {
			failedLines++
			log.Warn("Failed to add line item", zap.String("item", line.Name), zap.Error(err))
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("line item %q was not added: %v", line.Name, err))
			continue
		}
		if i == plan.feeIndex {
			s.fixFeePrice(ctx, settings, invoice.ID, item, plan, outcome, log)
		}
	}

	if settings.RoundingCorrectionProduct() != "" {
		s.correctRounding(ctx, settings, order, number, outcome, log)
	}

	if failedLines > 0 {
		outcome.Status = integration.SyncStatusPartial
		outcome.Message = MsgInvoicePartial
	}
	return outcome
}

// fixFeePrice re-sends the fee price when the billing platform stored the
// fee line with a different (typically zero) price.
func (s *InvoiceSynthesizer) fixFeePrice(ctx context.Context, settings integration.SyncSettings, invoiceID int64, item *integration.RemoteLineItem, plan invoicePlan, outcome *integration.SyncOutcome, log *zap.Logger) {
	price := plan.lines[plan.feeIndex].Price
	if price.IsZero() {
		price = plan.fee.Total
	}
	if item.Price.Equal(price) {
		return
	}

	log.Info("Updating electronic payment fee price",
		zap.Int64("line_item_id", item.ID),
		zap.String("returned_price", item.Price.String()),
		zap.String("price", integration.FormatMoney(price)))
	if _, err := s.billing.UpdateLineItemPrice(ctx, settings, invoiceID, item.ID, integration.FormatMoney(price)); err != nil {
		log.Warn("Failed to update electronic payment fee price", zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("electronic payment fee price was not updated: %v", err))
	}
}

// correctRounding re-reads the invoice and appends a correction line when the
// remote total drifted from the order total by at most MaxRoundingCorrection.
func (s *InvoiceSynthesizer) correctRounding(ctx context.Context, settings integration.SyncSettings, order *integration.Order, number string, outcome *integration.SyncOutcome, log *zap.Logger) {
	remote, err := s.billing.GetInvoice(ctx, settings, number)
	if err != nil {
		log.Warn("Could not re-read invoice for rounding check", zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("rounding check skipped: %v", err))
		return
	}
	if remote.Total == nil {
		outcome.Warnings = append(outcome.Warnings, "rounding check skipped: invoice has no total")
		return
	}

	amount, decision := integration.RoundingCorrection(order.Total, *remote.Total)
	switch decision {
	case integration.CorrectionNotNeeded:
		return
	case integration.CorrectionOverLimit:
		s.metrics.RecordRoundingCorrection(ctx, decision)
		log.Warn("Rounding difference exceeds correction limit, manual review required",
			zap.String("order_total", order.Total.String()),
			zap.String("remote_total", remote.Total.String()),
			zap.String("difference", amount.String()))
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf(
			"totals differ by %s, above the %s correction limit", integration.FormatMoney(amount), integration.FormatMoney(integration.MaxRoundingCorrection)))
		return
	}

	price := integration.FormatMoney(amount)
	item, err := s.billing.AddLineItem(ctx, settings, remote.ID, integration.InvoiceLine{
		ProductID: settings.RoundingCorrectionProduct(),
		Name:      roundingCorrectionName,
		Quantity:  1,
		Price:     amount,
		Taxable:   false,
	})
	if err != nil {
		log.Warn("Failed to add rounding correction line", zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("rounding correction of %s was not added: %v", price, err))
		return
	}
	if _, err := s.billing.UpdateLineItemPrice(ctx, settings, remote.ID, item.ID, price); err != nil {
		log.Warn("Failed to set rounding correction price", zap.Error(err))
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("rounding correction price was not set: %v", err))
		return
	}
	s.metrics.RecordRoundingCorrection(ctx, decision)
	log.Info("Applied rounding correction",
		zap.String("amount", price),
		zap.Int64("line_item_id", item.ID))
}

func withNumber(out *integration.SyncOutcome, number string) *integration.SyncOutcome {
	out.InvoiceNumber = number
	return out
}
