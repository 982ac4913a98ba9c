package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/domain/shared"
	"github.com/erp/invoicesync/internal/infrastructure/ecommerce"
	"github.com/erp/invoicesync/internal/infrastructure/event"
	"github.com/erp/invoicesync/internal/infrastructure/logger"
	"github.com/erp/invoicesync/internal/interfaces/http/dto"
)

// retryAfterSeconds is advertised when the sync queue is saturated
const retryAfterSeconds = "30"

// WebhookParser authenticates and decodes a WooCommerce delivery
type WebhookParser interface {
	Parse(header http.Header, body []byte) (*ecommerce.WebhookDelivery, error)
}

// WebhookAckResponse acknowledges a webhook delivery
type WebhookAckResponse struct {
	Accepted   bool   `json:"accepted"`
	OrderID    int64  `json:"order_id,omitempty"`
	EventID    string `json:"event_id,omitempty"`
	DeliveryID string `json:"delivery_id,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// WebhookHandler turns order-paid webhooks into OrderPaid events
type WebhookHandler struct {
	BaseHandler
	parser    WebhookParser
	publisher shared.EventPublisher
	logger    *zap.Logger
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(parser WebhookParser, publisher shared.EventPublisher, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{parser: parser, publisher: publisher, logger: logger}
}

// OrderPaid accepts a WooCommerce order webhook. Paid orders are queued for
// automatic sync and acknowledged with 202 before the sync runs.
//
//	POST /webhooks/woocommerce/order-paid
func (h *WebhookHandler) OrderPaid(c *gin.Context) {
	log := logger.GetGinLogger(c, h.logger)

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, dto.ErrCodeTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	delivery, err := h.parser.Parse(c.Request.Header, body)
	if err != nil {
		log.Warn("Rejected WooCommerce webhook",
			zap.String("delivery_id", c.GetHeader(ecommerce.HeaderWebhookDeliveryID)),
			zap.Error(err))
		switch {
		case errors.Is(err, integration.ErrInvalidSignature):
			h.Error(c, dto.ErrCodeSignature, "Invalid webhook signature")
		case errors.Is(err, integration.ErrStoreInvalidResponse), errors.Is(err, integration.ErrInvalidOrderID):
			h.Error(c, dto.ErrCodeInvalidInput, "Invalid order payload")
		default:
			h.HandleError(c, err)
		}
		return
	}

	if delivery.Ping {
		h.Success(c, WebhookAckResponse{Accepted: true, Reason: "ping"})
		return
	}

	order := delivery.Order
	log = log.With(
		zap.Int64("order_id", order.ID),
		zap.String("delivery_id", delivery.DeliveryID),
		zap.String("topic", delivery.Topic))

	if !order.Paid {
		log.Debug("Ignoring webhook for unpaid order", zap.String("status", order.Status))
		h.Success(c, WebhookAckResponse{
			OrderID:    order.ID,
			DeliveryID: delivery.DeliveryID,
			Reason:     "order is not paid",
		})
		return
	}

	evt := integration.NewOrderPaidEvent(order.ID, order.Number, delivery.DeliveryID)
	if err := h.publisher.Publish(c.Request.Context(), evt); err != nil {
		if errors.Is(err, event.ErrQueueFull) || errors.Is(err, event.ErrBusStopped) {
			log.Warn("Sync queue unavailable, asking WooCommerce to retry", zap.Error(err))
			c.Header("Retry-After", retryAfterSeconds)
			h.Error(c, dto.ErrCodeUnavailable, "Sync queue is busy, retry later")
			return
		}
		log.Error("Failed to publish order paid event", zap.Error(err))
		h.InternalError(c, "Failed to queue order sync")
		return
	}

	log.Info("Queued automatic sync for paid order")
	h.Accepted(c, WebhookAckResponse{
		Accepted:   true,
		OrderID:    order.ID,
		EventID:    evt.EventID().String(),
		DeliveryID: delivery.DeliveryID,
	})
}
