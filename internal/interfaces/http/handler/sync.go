package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	appintegration "github.com/erp/invoicesync/internal/application/integration"
	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/interfaces/http/dto"
	"github.com/erp/invoicesync/internal/interfaces/http/middleware"
)

// historyLimit caps the per-order audit trail returned to operators
const historyLimit = 50

// SyncService runs and inspects sync operations for one order
type SyncService interface {
	SyncInvoice(ctx context.Context, orderID int64, trigger integration.Trigger) *integration.SyncOutcome
	SyncPayment(ctx context.Context, orderID int64, trigger integration.Trigger) *integration.SyncOutcome
	VerifyInvoice(ctx context.Context, orderID int64) (*integration.InvoiceVerification, *integration.SyncOutcome)
	VerifyPayment(ctx context.Context, orderID int64) (*integration.PaymentVerification, *integration.SyncOutcome)
	History(ctx context.Context, orderID int64, limit int) ([]integration.SyncRecord, error)
	ListRecords(ctx context.Context, filter integration.SyncRecordFilter) ([]integration.SyncRecord, int64, error)
}

// SyncHandler serves the operator sync endpoints
type SyncHandler struct {
	BaseHandler
	service SyncService
}

// NewSyncHandler creates a new SyncHandler
func NewSyncHandler(service SyncService) *SyncHandler {
	return &SyncHandler{service: service}
}

// SyncInvoice creates the RepairShopr invoice of an order
//
//	POST /orders/:id/invoice-sync
func (h *SyncHandler) SyncInvoice(c *gin.Context) {
	orderID, ok := h.parseOrderID(c)
	if !ok {
		return
	}
	outcome := h.service.SyncInvoice(c.Request.Context(), orderID, integration.TriggerManual)
	h.respondOutcome(c, outcome, appintegration.ToOutcomeResponse(outcome))
}

// SyncPayment applies the order's payment to its RepairShopr invoice
//
//	POST /orders/:id/payment-sync
func (h *SyncHandler) SyncPayment(c *gin.Context) {
	orderID, ok := h.parseOrderID(c)
	if !ok {
		return
	}
	outcome := h.service.SyncPayment(c.Request.Context(), orderID, integration.TriggerManual)
	h.respondOutcome(c, outcome, appintegration.ToOutcomeResponse(outcome))
}

// VerifyInvoice compares the order total with the RepairShopr invoice total
//
//	GET /orders/:id/invoice-verification
func (h *SyncHandler) VerifyInvoice(c *gin.Context) {
	orderID, ok := h.parseOrderID(c)
	if !ok {
		return
	}
	result, outcome := h.service.VerifyInvoice(c.Request.Context(), orderID)
	h.respondOutcome(c, outcome, appintegration.ToInvoiceVerificationResponse(result, outcome))
}

// VerifyPayment reports whether the RepairShopr invoice is paid
//
//	GET /orders/:id/payment-verification
func (h *SyncHandler) VerifyPayment(c *gin.Context) {
	orderID, ok := h.parseOrderID(c)
	if !ok {
		return
	}
	result, outcome := h.service.VerifyPayment(c.Request.Context(), orderID)
	h.respondOutcome(c, outcome, appintegration.ToPaymentVerificationResponse(result, outcome))
}

// OrderRecords returns the audit trail of one order, newest first
//
//	GET /orders/:id/sync-records
func (h *SyncHandler) OrderRecords(c *gin.Context) {
	orderID, ok := h.parseOrderID(c)
	if !ok {
		return
	}
	records, err := h.service.History(c.Request.Context(), orderID, historyLimit)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, appintegration.ToSyncRecordResponses(records))
}

// ListRecords pages through the audit trail of every order
//
//	GET /sync-records
func (h *SyncHandler) ListRecords(c *gin.Context) {
	var query appintegration.SyncRecordListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	filter := query.ToFilter()
	records, total, err := h.service.ListRecords(c.Request.Context(), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	page, pageSize := effectivePaging(filter)
	h.SuccessWithMeta(c, appintegration.ToSyncRecordResponses(records), total, page, pageSize)
}

// respondOutcome writes 200 for every non-failed outcome, with success=false
// when the outcome is incomplete. A failed outcome keeps its body and gets the
// status of its error category.
func (h *SyncHandler) respondOutcome(c *gin.Context, outcome *integration.SyncOutcome, body any) {
	if outcome.Success() {
		resp := dto.NewSuccessResponse(body)
		resp.Success = outcome.Complete()
		c.JSON(http.StatusOK, resp)
		return
	}
	code := ErrorCode(outcome.Err)
	if code == "" {
		code = dto.ErrCodeInternal
	}
	c.JSON(dto.GetHTTPStatus(code), dto.NewFailedOutcomeResponse(code, outcome.Message, middleware.GetRequestID(c), body))
}

// effectivePaging mirrors the defaults applied by the orchestrator
func effectivePaging(f integration.SyncRecordFilter) (int, int) {
	page, pageSize := f.Page, f.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	return page, pageSize
}
