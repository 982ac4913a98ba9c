package router

import (
	"github.com/gin-gonic/gin"

	"github.com/erp/invoicesync/internal/interfaces/http/handler"
)

// Handlers are the endpoints served by the API
type Handlers struct {
	Sync           *handler.SyncHandler
	PaymentMapping *handler.PaymentMappingHandler
	Webhook        *handler.WebhookHandler
	System         *handler.SystemHandler
}

// Guards are the middleware chains of the two caller populations.
// Operator endpoints need a token; webhook endpoints are signed by the store.
type Guards struct {
	Operator []gin.HandlerFunc
	Webhook  []gin.HandlerFunc
}

// Mount registers every route on engine. Probes stay outside the API
// version so load balancers need no token.
func Mount(engine *gin.Engine, h Handlers, g Guards, opts ...RouterOption) {
	engine.GET("/health", h.System.Health)
	engine.GET("/ready", h.System.Ready)
	engine.GET("/system/info", h.System.Info)

	webhooks := NewDomainGroup("webhooks", "/webhooks").Use(g.Webhook...).
		POST("/woocommerce/order-paid", h.Webhook.OrderPaid)

	orders := NewDomainGroup("orders", "/orders").Use(g.Operator...).
		POST("/:id/invoice-sync", h.Sync.SyncInvoice).
		POST("/:id/payment-sync", h.Sync.SyncPayment).
		GET("/:id/invoice-verification", h.Sync.VerifyInvoice).
		GET("/:id/payment-verification", h.Sync.VerifyPayment).
		GET("/:id/sync-records", h.Sync.OrderRecords)

	records := NewDomainGroup("sync-records", "/sync-records").Use(g.Operator...).
		GET("", h.Sync.ListRecords)

	mappings := NewDomainGroup("payment-mappings", "/payment-mappings").Use(g.Operator...).
		GET("", h.PaymentMapping.List).
		GET("/:method", h.PaymentMapping.Get).
		PUT("/:method", h.PaymentMapping.Upsert).
		DELETE("/:method", h.PaymentMapping.Delete)

	NewRouter(engine, opts...).
		Register(webhooks).
		Register(orders).
		Register(records).
		Register(mappings).
		Setup()
}
