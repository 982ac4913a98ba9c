package integration

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/domain/shared"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/infrastructure/telemetry"
)

// DefaultLockTTL bounds how long a crashed holder can block an order
const DefaultLockTTL = 2 * time.Minute

// SyncOrchestrator sequences the sync components for one order per call.
// Mutating operations on the same order are serialized: identical concurrent
// calls in this process share one execution, and a distributed lock keeps
// other processes out.
type SyncOrchestrator struct {
	orders   integration.OrderSource
	settings integration.SettingsProvider

	customers *CustomerResolver
	invoices  *InvoiceSynthesizer
	payments  *PaymentApplier
	verifier  *VerificationEngine

	records integration.SyncRecordRepository
	locker  shared.KeyedLocker
	archive integration.DiagnosticsArchive
	metrics Metrics
	logger  *zap.Logger

	flight  singleflight.Group
	lockTTL time.Duration
}

// OrchestratorOption configures a SyncOrchestrator
type OrchestratorOption func(*SyncOrchestrator)

// WithSyncRecords persists an audit record per operation
func WithSyncRecords(repo integration.SyncRecordRepository) OrchestratorOption {
	return func(o *SyncOrchestrator) { o.records = repo }
}

// WithLocker sets the cross-process per-order lock
func WithLocker(l shared.KeyedLocker) OrchestratorOption {
	return func(o *SyncOrchestrator) { o.locker = l }
}

// WithLockTTL overrides DefaultLockTTL
func WithLockTTL(ttl time.Duration) OrchestratorOption {
	return func(o *SyncOrchestrator) {
		if ttl > 0 {
			o.lockTTL = ttl
		}
	}
}

// WithDiagnosticsArchive stores raw remote bodies of failed operations
func WithDiagnosticsArchive(a integration.DiagnosticsArchive) OrchestratorOption {
	return func(o *SyncOrchestrator) { o.archive = a }
}

// WithSyncMetrics sets the metrics sink
func WithSyncMetrics(m Metrics) OrchestratorOption {
	return func(o *SyncOrchestrator) {
		if m != nil {
			o.metrics = m
		}
	}
}

// NewSyncOrchestrator wires the sync components around one billing gateway
func NewSyncOrchestrator(
	orders integration.OrderSource,
	settings integration.SettingsProvider,
	billing integration.BillingGateway,
	logger *zap.Logger,
	opts ...OrchestratorOption,
) *SyncOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &SyncOrchestrator{
		orders:   orders,
		settings: settings,
		metrics:  noopMetrics{},
		logger:   logger,
		lockTTL:  DefaultLockTTL,
	}
	for _, opt := range opts {
		opt(o)
	}

	o.customers = NewCustomerResolver(billing, logger)
	o.invoices = NewInvoiceSynthesizer(billing, o.customers, logger).WithMetrics(o.metrics)
	o.payments = NewPaymentApplier(billing, o.customers, logger)
	o.verifier = NewVerificationEngine(billing, logger)
	return o
}

// ---------------------------------------------------------------------------
// Operations
// ---------------------------------------------------------------------------

// SyncInvoice creates the order's invoice unless it already exists
func (o *SyncOrchestrator) SyncInvoice(ctx context.Context, orderID int64, trigger integration.Trigger) *integration.SyncOutcome {
	return o.runMutating(ctx, integration.OperationSyncInvoice, orderID, trigger,
		func(s integration.SyncSettings) bool { return s.AutoSyncInvoice() },
		o.invoices.EnsureInvoice)
}

// SyncPayment applies the order's payment to its existing invoice
func (o *SyncOrchestrator) SyncPayment(ctx context.Context, orderID int64, trigger integration.Trigger) *integration.SyncOutcome {
	return o.runMutating(ctx, integration.OperationSyncPayment, orderID, trigger,
		func(s integration.SyncSettings) bool { return s.AutoSyncPayment() },
		o.payments.ApplyPayment)
}

// VerifyInvoice compares the order total with the invoice total
func (o *SyncOrchestrator) VerifyInvoice(ctx context.Context, orderID int64) (*integration.InvoiceVerification, *integration.SyncOutcome) {
	op := integration.OperationVerifyInvoice
	started := time.Now()
	ctx, span := startOperationSpan(ctx, op, orderID, integration.TriggerManual)
	defer span.End()

	order, settings, failed := o.prepare(ctx, op, orderID)
	if failed != nil {
		return nil, endOperationSpan(span, o.finish(ctx, orderID, integration.TriggerManual, started, failed))
	}
	result, outcome := o.verifier.VerifyInvoice(ctx, settings, order)
	return result, endOperationSpan(span, o.finish(ctx, orderID, integration.TriggerManual, started, outcome))
}

// VerifyPayment reports whether the invoice is paid on the billing platform
func (o *SyncOrchestrator) VerifyPayment(ctx context.Context, orderID int64) (*integration.PaymentVerification, *integration.SyncOutcome) {
	op := integration.OperationVerifyPayment
	started := time.Now()
	ctx, span := startOperationSpan(ctx, op, orderID, integration.TriggerManual)
	defer span.End()

	order, settings, failed := o.prepare(ctx, op, orderID)
	if failed != nil {
		return nil, endOperationSpan(span, o.finish(ctx, orderID, integration.TriggerManual, started, failed))
	}
	result, outcome := o.verifier.VerifyPayment(ctx, settings, order)
	return result, endOperationSpan(span, o.finish(ctx, orderID, integration.TriggerManual, started, outcome))
}

// HandleOrderPaid runs the automatic path: invoice sync, then payment sync,
// each gated by its auto-sync flag.
func (o *SyncOrchestrator) HandleOrderPaid(ctx context.Context, orderID int64) []*integration.SyncOutcome {
	return []*integration.SyncOutcome{
		o.SyncInvoice(ctx, orderID, integration.TriggerAuto),
		o.SyncPayment(ctx, orderID, integration.TriggerAuto),
	}
}

// History returns the latest audit records of an order
func (o *SyncOrchestrator) History(ctx context.Context, orderID int64, limit int) ([]integration.SyncRecord, error) {
	if orderID <= 0 {
		return nil, integration.ErrInvalidOrderID
	}
	if o.records == nil {
		return []integration.SyncRecord{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	return o.records.FindByOrder(ctx, orderID, limit)
}

// ListRecords pages through audit records across orders
func (o *SyncOrchestrator) ListRecords(ctx context.Context, filter integration.SyncRecordFilter) ([]integration.SyncRecord, int64, error) {
	if o.records == nil {
		return []integration.SyncRecord{}, 0, nil
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	records, err := o.records.FindAll(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	total, err := o.records.Count(ctx, filter)
	if err != nil {
		return nil, 0, err
	}
	return records, total, nil
}

// ---------------------------------------------------------------------------
// Internal Helpers
// ---------------------------------------------------------------------------

type syncStep func(ctx context.Context, settings integration.SyncSettings, order *integration.Order) *integration.SyncOutcome

func (o *SyncOrchestrator) runMutating(
	ctx context.Context,
	op integration.Operation,
	orderID int64,
	trigger integration.Trigger,
	autoEnabled func(integration.SyncSettings) bool,
	step syncStep,
) *integration.SyncOutcome {
	started := time.Now()
	ctx, span := startOperationSpan(ctx, op, orderID, trigger)
	defer span.End()

	if orderID <= 0 {
		return endOperationSpan(span, o.finish(ctx, orderID, trigger, started,
			integration.FailedOutcome(op, MsgInvalidOrderID, integration.ErrInvalidOrderID)))
	}

	// Joined callers wait on this execution; it must not end with the first
	// caller's request.
	detached := context.WithoutCancel(ctx)
	key := fmt.Sprintf("%s:%d:%s", op, orderID, trigger)
	v, _, joined := o.flight.Do(key, func() (any, error) {
		return o.runLocked(detached, op, orderID, trigger, started, autoEnabled, step), nil
	})
	if joined {
		o.logger.Debug("Joined in-flight sync", zap.String("operation", op.String()), zap.Int64("order_id", orderID))
	}
	return endOperationSpan(span, v.(*integration.SyncOutcome))
}

// startOperationSpan opens the sync.{operation} span
func startOperationSpan(ctx context.Context, op integration.Operation, orderID int64, trigger integration.Trigger) (context.Context, trace.Span) {
	return telemetry.StartServiceSpan(ctx, "sync", strings.ToLower(op.String()),
		telemetry.WithAttribute(telemetry.SpanAttrOrderID, orderID),
		telemetry.WithAttribute(telemetry.SpanAttrTrigger, string(trigger)))
}

func endOperationSpan(span trace.Span, outcome *integration.SyncOutcome) *integration.SyncOutcome {
	telemetry.SetAttributes(span,
		telemetry.SpanAttrStatus, outcome.Status.String(),
		telemetry.SpanAttrInvoiceNumber, outcome.InvoiceNumber)
	if outcome.Status == integration.SyncStatusFailed {
		telemetry.RecordError(span, outcome.Err)
	} else {
		telemetry.SetOK(span)
	}
	return outcome
}

func (o *SyncOrchestrator) runLocked(
	ctx context.Context,
	op integration.Operation,
	orderID int64,
	trigger integration.Trigger,
	started time.Time,
	autoEnabled func(integration.SyncSettings) bool,
	step syncStep,
) *integration.SyncOutcome {
	if o.locker != nil {
		unlock, err := o.locker.Acquire(ctx, fmt.Sprintf("order:%d", orderID), o.lockTTL)
		if err != nil {
			if errors.Is(err, shared.ErrLockHeld) {
				return o.finish(ctx, orderID, trigger, started,
					integration.FailedOutcome(op, MsgSyncInProgress, integration.ErrSyncInProgress))
			}
			return o.finish(ctx, orderID, trigger, started, integration.FailedOutcome(op, MsgLockFailed, err))
		}
		defer func() {
			if err := unlock(context.WithoutCancel(ctx)); err != nil {
				o.logger.Warn("Failed to release order lock", zap.Int64("order_id", orderID), zap.Error(err))
			}
		}()
	}

	order, settings, failed := o.prepare(ctx, op, orderID)
	if failed != nil {
		return o.finish(ctx, orderID, trigger, started, failed)
	}

	if trigger == integration.TriggerAuto && !autoEnabled(settings) {
		return o.finish(ctx, orderID, trigger, started, &integration.SyncOutcome{
			Operation:     op,
			Status:        integration.SyncStatusSkipped,
			Message:       MsgAutoSyncDisabled,
			InvoiceNumber: order.InvoiceNumber(settings.InvoicePrefix()),
		})
	}

	return o.finish(ctx, orderID, trigger, started, step(ctx, settings, order))
}

// prepare loads the order and a settings snapshot concurrently
func (o *SyncOrchestrator) prepare(ctx context.Context, op integration.Operation, orderID int64) (*integration.Order, integration.SyncSettings, *integration.SyncOutcome) {
	var settings integration.SyncSettings
	if orderID <= 0 {
		return nil, settings, integration.FailedOutcome(op, MsgInvalidOrderID, integration.ErrInvalidOrderID)
	}

	var (
		order       *integration.Order
		orderErr    error
		settingsErr error
	)
	// Both loads run to completion so each error is reported on its own
	var g errgroup.Group
	g.Go(func() error {
		order, orderErr = o.orders.GetOrder(ctx, orderID)
		return orderErr
	})
	g.Go(func() error {
		settings, settingsErr = o.settings.Current(ctx)
		if settingsErr == nil {
			settingsErr = settings.RequireRemote()
		}
		return settingsErr
	})
	_ = g.Wait()

	switch {
	case settingsErr != nil:
		return nil, settings, integration.FailedOutcome(op, MsgSettingsUnavailable, settingsErr)
	case errors.Is(orderErr, integration.ErrInvalidOrderID):
		return nil, settings, integration.FailedOutcome(op, MsgInvalidOrderID, orderErr)
	case errors.Is(orderErr, integration.ErrOrderNotFound):
		return nil, settings, integration.FailedOutcome(op, MsgOrderNotFound, orderErr)
	case orderErr != nil:
		return nil, settings, integration.FailedOutcome(op, MsgOrderLoadFailed, orderErr)
	}
	return order, settings, nil
}

// finish archives diagnostics, writes the audit record and emits metrics
func (o *SyncOrchestrator) finish(ctx context.Context, orderID int64, trigger integration.Trigger, started time.Time, outcome *integration.SyncOutcome) *integration.SyncOutcome {
	log := logger.ForOrder(ctx, o.logger, orderID).With(
		zap.String("operation", outcome.Operation.String()),
		zap.String("trigger", string(trigger)),
		zap.String("invoice_number", outcome.InvoiceNumber),
		zap.String("status", outcome.Status.String()))

	if outcome.Status == integration.SyncStatusFailed {
		o.archiveFailure(ctx, orderID, outcome, log)
		log.Warn("Sync operation failed", zap.String("message", outcome.Message), zap.Error(outcome.Err))
	} else if !outcome.Complete() {
		log.Warn(outcome.Message, zap.Strings("warnings", outcome.Warnings))
	} else {
		log.Info(outcome.Message, zap.Strings("warnings", outcome.Warnings))
	}

	if o.records != nil && orderID > 0 {
		record := integration.NewSyncRecord(orderID, trigger, outcome, started)
		if err := o.records.Save(context.WithoutCancel(ctx), record); err != nil {
			log.Error("Failed to save sync record", zap.Error(err))
		}
	}
	o.metrics.RecordOperation(ctx, outcome.Operation, trigger, outcome.Status, time.Since(started))
	return outcome
}

func (o *SyncOrchestrator) archiveFailure(ctx context.Context, orderID int64, outcome *integration.SyncOutcome, log *zap.Logger) {
	if o.archive == nil {
		return
	}
	var apiErr *integration.RemoteAPIError
	if !errors.As(outcome.Err, &apiErr) || len(apiErr.Body) == 0 {
		return
	}
	key, err := o.archive.Archive(context.WithoutCancel(ctx), orderID, outcome.Operation, apiErr.Body)
	if err != nil {
		log.Warn("Failed to archive remote response", zap.Error(err))
		return
	}
	log.Info("Archived remote response", zap.String("key", key))
}
