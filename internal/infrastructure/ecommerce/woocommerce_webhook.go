package ecommerce

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// WooCommerce webhook headers
const (
	HeaderWebhookSignature  = "X-WC-Webhook-Signature"
	HeaderWebhookTopic      = "X-WC-Webhook-Topic"
	HeaderWebhookDeliveryID = "X-WC-Webhook-Delivery-ID"
)

// WebhookDelivery is one verified webhook call
type WebhookDelivery struct {
	DeliveryID string
	Topic      string
	// Ping is set for the handshake WooCommerce sends when a webhook is saved
	Ping  bool
	Order *integration.Order
}

// WebhookVerifier authenticates and decodes order webhooks
type WebhookVerifier struct {
	config *WooCommerceConfig
}

// NewWebhookVerifier creates a verifier using the store's webhook secret
func NewWebhookVerifier(config *WooCommerceConfig) *WebhookVerifier {
	return &WebhookVerifier{config: config}
}

// Parse verifies the signature and decodes the delivery.
// Ping deliveries are form bodies ("webhook_id=N") and are not signed.
func (v *WebhookVerifier) Parse(header http.Header, body []byte) (*WebhookDelivery, error) {
	delivery := &WebhookDelivery{
		DeliveryID: header.Get(HeaderWebhookDeliveryID),
		Topic:      header.Get(HeaderWebhookTopic),
	}
	if isPing(body) {
		delivery.Ping = true
		return delivery, nil
	}

	if !v.config.VerifySignature(body, header.Get(HeaderWebhookSignature)) {
		return nil, integration.ErrInvalidSignature
	}

	order, err := ParseOrderPayload(body)
	if err != nil {
		return nil, err
	}
	delivery.Order = order
	return delivery, nil
}

func isPing(body []byte) bool {
	s := strings.TrimSpace(string(body))
	if !strings.HasPrefix(s, "webhook_id=") {
		return false
	}
	values, err := url.ParseQuery(s)
	return err == nil && values.Get("webhook_id") != ""
}
