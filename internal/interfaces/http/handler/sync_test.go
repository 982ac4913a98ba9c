package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/interfaces/http/dto"
)

// MockSyncService is a mock implementation of SyncService
type MockSyncService struct {
	mock.Mock
}

func (m *MockSyncService) SyncInvoice(ctx context.Context, orderID int64, trigger integration.Trigger) *integration.SyncOutcome {
	args := m.Called(ctx, orderID, trigger)
	return args.Get(0).(*integration.SyncOutcome)
}

func (m *MockSyncService) SyncPayment(ctx context.Context, orderID int64, trigger integration.Trigger) *integration.SyncOutcome {
	args := m.Called(ctx, orderID, trigger)
	return args.Get(0).(*integration.SyncOutcome)
}

func (m *MockSyncService) VerifyInvoice(ctx context.Context, orderID int64) (*integration.InvoiceVerification, *integration.SyncOutcome) {
	args := m.Called(ctx, orderID)
	var result *integration.InvoiceVerification
	if v := args.Get(0); v != nil {
		result = v.(*integration.InvoiceVerification)
	}
	return result, args.Get(1).(*integration.SyncOutcome)
}

func (m *MockSyncService) VerifyPayment(ctx context.Context, orderID int64) (*integration.PaymentVerification, *integration.SyncOutcome) {
	args := m.Called(ctx, orderID)
	var result *integration.PaymentVerification
	if v := args.Get(0); v != nil {
		result = v.(*integration.PaymentVerification)
	}
	return result, args.Get(1).(*integration.SyncOutcome)
}

func (m *MockSyncService) History(ctx context.Context, orderID int64, limit int) ([]integration.SyncRecord, error) {
	args := m.Called(ctx, orderID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]integration.SyncRecord), args.Error(1)
}

func (m *MockSyncService) ListRecords(ctx context.Context, filter integration.SyncRecordFilter) ([]integration.SyncRecord, int64, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]integration.SyncRecord), args.Get(1).(int64), args.Error(2)
}

func setupSyncRouter(service SyncService) *gin.Engine {
	h := NewSyncHandler(service)
	r := gin.New()
	r.POST("/orders/:id/invoice-sync", h.SyncInvoice)
	r.POST("/orders/:id/payment-sync", h.SyncPayment)
	r.GET("/orders/:id/invoice-verification", h.VerifyInvoice)
	r.GET("/orders/:id/payment-verification", h.VerifyPayment)
	r.GET("/orders/:id/sync-records", h.OrderRecords)
	r.GET("/sync-records", h.ListRecords)
	return r
}

func outcomeData(t *testing.T, resp dto.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "data should be an object, got %T", resp.Data)
	return data
}

func TestSyncHandler_SyncInvoice(t *testing.T) {
	tests := []struct {
		name       string
		outcome    *integration.SyncOutcome
		wantStatus int
		wantCode   string
		wantState  string
		// wantIncomplete marks a 200 whose envelope and outcome report success=false
		wantIncomplete bool
	}{
		{
			name: "created",
			outcome: &integration.SyncOutcome{
				Operation:     integration.OperationSyncInvoice,
				Status:        integration.SyncStatusSuccess,
				Message:       "Invoice Created!",
				InvoiceNumber: "WC-1002",
				InvoiceID:     501,
			},
			wantStatus: http.StatusOK,
			wantState:  "success",
		},
		{
			name: "already exists is a success",
			outcome: &integration.SyncOutcome{
				Operation:     integration.OperationSyncInvoice,
				Status:        integration.SyncStatusExists,
				Message:       "Invoice Already Exists!",
				InvoiceNumber: "WC-1002",
			},
			wantStatus: http.StatusOK,
			wantState:  "exists",
		},
		{
			name: "partial invoice is not reported as success",
			outcome: &integration.SyncOutcome{
				Operation:     integration.OperationSyncInvoice,
				Status:        integration.SyncStatusPartial,
				Message:       "Invoice created with missing line items",
				InvoiceNumber: "WC-1002",
				InvoiceID:     501,
				Warnings:      []string{"Line item Gadget could not be added"},
			},
			wantStatus:     http.StatusOK,
			wantState:      "partial",
			wantIncomplete: true,
		},
		{
			name:       "lock held",
			outcome:    integration.FailedOutcome(integration.OperationSyncInvoice, "A sync is already running for this order", integration.ErrSyncInProgress),
			wantStatus: http.StatusConflict,
			wantCode:   dto.ErrCodeSyncInProgress,
			wantState:  "failed",
		},
		{
			name:       "order missing",
			outcome:    integration.FailedOutcome(integration.OperationSyncInvoice, "Order not found", integration.ErrOrderNotFound),
			wantStatus: http.StatusNotFound,
			wantCode:   dto.ErrCodeOrderNotFound,
			wantState:  "failed",
		},
		{
			name: "billing rejected",
			outcome: integration.FailedOutcome(integration.OperationSyncInvoice, "Failed to create invoice",
				&integration.RemoteAPIError{Method: "POST", Endpoint: "/invoices", StatusCode: 422}),
			wantStatus: http.StatusBadGateway,
			wantCode:   dto.ErrCodeUpstream,
			wantState:  "failed",
		},
		{
			name:       "failed without cause",
			outcome:    integration.FailedOutcome(integration.OperationSyncInvoice, "Unknown failure", nil),
			wantStatus: http.StatusInternalServerError,
			wantCode:   dto.ErrCodeInternal,
			wantState:  "failed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			service := new(MockSyncService)
			service.On("SyncInvoice", mock.Anything, int64(1002), integration.TriggerManual).Return(tt.outcome)

			w := httptest.NewRecorder()
			setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/1002/invoice-sync", nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			resp := decodeResponse(t, w)
			data := outcomeData(t, resp)
			assert.Equal(t, tt.wantState, data["status"])
			assert.Equal(t, "sync_invoice", data["operation"])
			switch {
			case tt.wantIncomplete:
				assert.False(t, resp.Success)
				assert.Nil(t, resp.Error)
				assert.Equal(t, false, data["success"])
				assert.Len(t, data["warnings"], 1)
			case tt.wantCode == "":
				assert.True(t, resp.Success)
				assert.Nil(t, resp.Error)
				assert.Equal(t, true, data["success"])
			default:
				assert.Equal(t, false, data["success"])
				assert.False(t, resp.Success)
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.wantCode, resp.Error.Code)
				assert.Equal(t, tt.outcome.Message, resp.Error.Message)
			}
			service.AssertExpectations(t)
		})
	}
}

func TestSyncHandler_SyncInvoice_InvalidID(t *testing.T) {
	service := new(MockSyncService)

	w := httptest.NewRecorder()
	setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/abc/invoice-sync", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidOrderID, decodeResponse(t, w).Error.Code)
	service.AssertNotCalled(t, "SyncInvoice", mock.Anything, mock.Anything, mock.Anything)
}

func TestSyncHandler_SyncPayment(t *testing.T) {
	service := new(MockSyncService)
	service.On("SyncPayment", mock.Anything, int64(77), integration.TriggerManual).Return(&integration.SyncOutcome{
		Operation:     integration.OperationSyncPayment,
		Status:        integration.SyncStatusSuccess,
		Message:       "Payment Created!",
		InvoiceNumber: "WC-77",
		PaymentID:     9001,
	})

	w := httptest.NewRecorder()
	setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/77/payment-sync", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := outcomeData(t, decodeResponse(t, w))
	assert.Equal(t, "sync_payment", data["operation"])
	assert.EqualValues(t, 9001, data["payment_id"])
	service.AssertExpectations(t)
}

func TestSyncHandler_VerifyInvoice(t *testing.T) {
	t.Run("mismatch", func(t *testing.T) {
		result := &integration.InvoiceVerification{
			InvoiceNumber: "WC-1002",
			InvoiceID:     501,
			OrderTotal:    decimal.RequireFromString("100.00"),
			RemoteTotal:   decimal.RequireFromString("99.99"),
			Difference:    decimal.RequireFromString("0.01"),
		}
		service := new(MockSyncService)
		service.On("VerifyInvoice", mock.Anything, int64(1002)).Return(result, &integration.SyncOutcome{
			Operation: integration.OperationVerifyInvoice,
			Status:    integration.SyncStatusSuccess,
			Message:   result.Message(),
		})

		w := httptest.NewRecorder()
		setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1002/invoice-verification", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		data := outcomeData(t, decodeResponse(t, w))
		assert.Equal(t, false, data["match"])
		assert.Equal(t, "100.00", data["woocommerce_total"])
		assert.Equal(t, "99.99", data["repairshopr_total"])
		assert.Equal(t, "0.01", data["difference"])
		assert.Equal(t, "Totals Mismatch! Difference: $0.01", data["message"])
	})

	t.Run("invoice missing", func(t *testing.T) {
		service := new(MockSyncService)
		service.On("VerifyInvoice", mock.Anything, int64(1002)).Return(nil,
			integration.FailedOutcome(integration.OperationVerifyInvoice, "Invoice not found", integration.ErrNotFound))

		w := httptest.NewRecorder()
		setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1002/invoice-verification", nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, dto.ErrCodeNotFound, resp.Error.Code)
		assert.Equal(t, "failed", outcomeData(t, resp)["status"])
	})
}

func TestSyncHandler_VerifyPayment(t *testing.T) {
	result := &integration.PaymentVerification{
		InvoiceNumber: "WC-1002",
		InvoiceID:     501,
		Paid:          true,
		Details: integration.PaymentDetails{
			IsPaid:             true,
			BalanceDueZero:     true,
			PaymentsExist:      true,
			TotalPaymentAmount: decimal.RequireFromString("100"),
			PaymentsCount:      1,
		},
	}
	service := new(MockSyncService)
	service.On("VerifyPayment", mock.Anything, int64(1002)).Return(result, &integration.SyncOutcome{
		Operation: integration.OperationVerifyPayment,
		Status:    integration.SyncStatusSuccess,
		Message:   result.Message(),
	})

	w := httptest.NewRecorder()
	setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1002/payment-verification", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	data := outcomeData(t, decodeResponse(t, w))
	assert.Equal(t, true, data["paid"])
	details, ok := data["details"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "100.00", details["total_payment_amount"])
	assert.EqualValues(t, 1, details["payments_count"])
}

func TestSyncHandler_OrderRecords(t *testing.T) {
	records := []integration.SyncRecord{
		{OrderID: 1002, Operation: integration.OperationSyncPayment, Status: integration.SyncStatusSuccess},
		{OrderID: 1002, Operation: integration.OperationSyncInvoice, Status: integration.SyncStatusSuccess},
	}
	service := new(MockSyncService)
	service.On("History", mock.Anything, int64(1002), historyLimit).Return(records, nil)

	w := httptest.NewRecorder()
	setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/1002/sync-records", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	items, ok := resp.Data.([]any)
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestSyncHandler_ListRecords(t *testing.T) {
	t.Run("filters and paging", func(t *testing.T) {
		service := new(MockSyncService)
		service.On("ListRecords", mock.Anything, mock.MatchedBy(func(f integration.SyncRecordFilter) bool {
			return f.OrderID == 1002 && f.Status != nil && *f.Status == integration.SyncStatusFailed &&
				f.Page == 2 && f.PageSize == 10
		})).Return([]integration.SyncRecord{{OrderID: 1002, Status: integration.SyncStatusFailed}}, int64(11), nil)

		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/sync-records?order_id=1002&status=failed&page=2&page_size=10", nil)
		setupSyncRouter(service).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		require.NotNil(t, resp.Meta)
		assert.Equal(t, int64(11), resp.Meta.Total)
		assert.Equal(t, 2, resp.Meta.Page)
		assert.Equal(t, 10, resp.Meta.PageSize)
		assert.Equal(t, 2, resp.Meta.TotalPages)
		service.AssertExpectations(t)
	})

	t.Run("defaults", func(t *testing.T) {
		service := new(MockSyncService)
		service.On("ListRecords", mock.Anything, mock.Anything).Return([]integration.SyncRecord{}, int64(0), nil)

		w := httptest.NewRecorder()
		setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync-records", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		resp := decodeResponse(t, w)
		assert.Equal(t, 1, resp.Meta.Page)
		assert.Equal(t, 20, resp.Meta.PageSize)
	})

	t.Run("invalid status", func(t *testing.T) {
		service := new(MockSyncService)

		w := httptest.NewRecorder()
		setupSyncRouter(service).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/sync-records?status=maybe", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidation, decodeResponse(t, w).Error.Code)
		service.AssertNotCalled(t, "ListRecords", mock.Anything, mock.Anything)
	})
}
