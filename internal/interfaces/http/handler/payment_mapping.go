package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	appintegration "github.com/erp/invoicesync/internal/application/integration"
	"github.com/erp/invoicesync/internal/interfaces/http/middleware"
)

// PaymentMappingService manages the payment method mapping table
type PaymentMappingService interface {
	ListMappings(ctx context.Context) ([]appintegration.PaymentMappingResponse, error)
	GetMapping(ctx context.Context, method string) (*appintegration.PaymentMappingResponse, error)
	UpsertMapping(ctx context.Context, method string, req appintegration.UpsertPaymentMappingRequest) (*appintegration.PaymentMappingResponse, error)
	DeleteMapping(ctx context.Context, method string) error
}

// PaymentMappingHandler serves the payment method mapping endpoints
type PaymentMappingHandler struct {
	BaseHandler
	service PaymentMappingService
}

// NewPaymentMappingHandler creates a new PaymentMappingHandler
func NewPaymentMappingHandler(service PaymentMappingService) *PaymentMappingHandler {
	return &PaymentMappingHandler{service: service}
}

// List returns every stored mapping
//
//	GET /payment-mappings
func (h *PaymentMappingHandler) List(c *gin.Context) {
	mappings, err := h.service.ListMappings(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mappings)
}

// Get returns the mapping of one WooCommerce payment method
//
//	GET /payment-mappings/:method
func (h *PaymentMappingHandler) Get(c *gin.Context) {
	mapping, err := h.service.GetMapping(c.Request.Context(), c.Param("method"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mapping)
}

// Upsert maps a WooCommerce payment method to a RepairShopr payment method
//
//	PUT /payment-mappings/:method
func (h *PaymentMappingHandler) Upsert(c *gin.Context) {
	var req appintegration.UpsertPaymentMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	mapping, err := h.service.UpsertMapping(c.Request.Context(), c.Param("method"), req)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, mapping)
}

// Delete removes a mapping
//
//	DELETE /payment-mappings/:method
func (h *PaymentMappingHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteMapping(c.Request.Context(), c.Param("method")); err != nil {
		h.HandleError(c, err)
		return
	}
	h.NoContent(c)
}
