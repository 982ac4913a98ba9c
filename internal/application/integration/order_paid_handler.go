package integration

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/domain/shared"
)

// OrderPaidSyncer runs the automatic sync path for a paid order
type OrderPaidSyncer interface {
	HandleOrderPaid(ctx context.Context, orderID int64) []*integration.SyncOutcome
}

// OrderPaidHandler handles OrderPaidEvent by running the automatic sync
type OrderPaidHandler struct {
	syncer OrderPaidSyncer
	logger *zap.Logger
}

// NewOrderPaidHandler creates a new handler for order paid events
func NewOrderPaidHandler(syncer OrderPaidSyncer, logger *zap.Logger) *OrderPaidHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OrderPaidHandler{syncer: syncer, logger: logger}
}

// EventTypes returns the event types this handler is interested in
func (h *OrderPaidHandler) EventTypes() []string {
	return []string{integration.EventTypeOrderPaid}
}

// Handle processes an OrderPaidEvent. Sync failures are reported through
// outcomes and audit records, not as handler errors.
func (h *OrderPaidHandler) Handle(ctx context.Context, event shared.DomainEvent) error {
	paid, ok := event.(*integration.OrderPaidEvent)
	if !ok {
		h.logger.Error("unexpected event type",
			zap.String("expected", integration.EventTypeOrderPaid),
			zap.String("actual", event.EventType()),
		)
		return fmt.Errorf("unexpected event type: expected %s, got %s",
			integration.EventTypeOrderPaid, event.EventType())
	}

	for _, outcome := range h.syncer.HandleOrderPaid(ctx, paid.OrderID) {
		h.logger.Info("auto sync finished",
			zap.Int64("order_id", paid.OrderID),
			zap.String("delivery_id", paid.DeliveryID),
			zap.String("operation", outcome.Operation.String()),
			zap.String("status", outcome.Status.String()),
			zap.String("message", outcome.Message),
		)
	}
	return nil
}

// DeliveryDedupKey keys an OrderPaidEvent by its webhook delivery id, so a
// redelivered webhook syncs once. Events without a delivery id are not deduplicated.
func DeliveryDedupKey(event shared.DomainEvent) string {
	paid, ok := event.(*integration.OrderPaidEvent)
	if !ok || paid.DeliveryID == "" {
		return ""
	}
	return "woocommerce:" + paid.DeliveryID
}

var _ shared.EventHandler = (*OrderPaidHandler)(nil)
