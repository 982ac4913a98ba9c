package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/domain/shared"
	"github.com/erp/invoicesync/internal/interfaces/http/dto"
	"github.com/erp/invoicesync/internal/interfaces/http/middleware"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with pagination meta
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, total int64, page, pageSize int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, total, page, pageSize))
}

// Accepted sends a 202 response for work handed to the event bus
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response, deriving the status from the code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, middleware.GetRequestID(c)))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeInternal, message)
}

// HandleError converts domain and integration errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	var domainErr *shared.DomainError
	if errors.As(err, &domainErr) {
		h.Error(c, dto.NormalizeErrorCode(domainErr.Code), domainErr.Message)
		return
	}

	code := ErrorCode(err)
	message := err.Error()
	if code == dto.ErrCodeInternal {
		message = "An unexpected error occurred"
	}
	h.Error(c, code, message)
}

// ErrorCode classifies an integration error into an API error code
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, integration.ErrInvalidOrderID):
		return dto.ErrCodeInvalidOrderID
	case errors.Is(err, integration.ErrOrderNotFound):
		return dto.ErrCodeOrderNotFound
	case errors.Is(err, integration.ErrSyncInProgress):
		return dto.ErrCodeSyncInProgress
	case errors.Is(err, integration.ErrMappingNotFound), errors.Is(err, integration.ErrNotFound):
		return dto.ErrCodeNotFound
	case errors.Is(err, integration.ErrMappingInvalidMethod), errors.Is(err, integration.ErrMappingInvalidTarget):
		return dto.ErrCodeInvalidInput
	case errors.Is(err, integration.ErrInvalidSignature):
		return dto.ErrCodeSignature
	case errors.Is(err, integration.ErrConfiguration):
		return dto.ErrCodeConfiguration
	case errors.Is(err, integration.ErrValidation), errors.Is(err, integration.ErrDuplicate):
		return dto.ErrCodeUnprocessable
	case errors.Is(err, integration.ErrRemoteAPI), errors.Is(err, integration.ErrPermission),
		errors.Is(err, integration.ErrStoreUnavailable), errors.Is(err, integration.ErrStoreInvalidResponse):
		return dto.ErrCodeUpstream
	default:
		return dto.ErrCodeInternal
	}
}

// parseOrderID reads the :id path parameter. Non-positive or non-numeric ids
// are answered with 400 and ok=false.
func (h *BaseHandler) parseOrderID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		h.Error(c, dto.ErrCodeInvalidOrderID, "Invalid order ID")
		return 0, false
	}
	return id, true
}
