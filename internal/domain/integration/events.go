package integration

import (
	"strconv"

	"github.com/erp/invoicesync/internal/domain/shared"
)

// Event types
const (
	EventTypeOrderPaid = "OrderPaid"
)

// OrderPaidEvent is published when the storefront reports a completed payment
type OrderPaidEvent struct {
	shared.EventHeader
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
	DeliveryID  string `json:"delivery_id,omitempty"`
}

// NewOrderPaidEvent creates a new OrderPaidEvent
func NewOrderPaidEvent(orderID int64, orderNumber, deliveryID string) *OrderPaidEvent {
	return &OrderPaidEvent{
		EventHeader: shared.NewEventHeader(EventTypeOrderPaid, strconv.FormatInt(orderID, 10)),
		OrderID:     orderID,
		OrderNumber: orderNumber,
		DeliveryID:  deliveryID,
	}
}
