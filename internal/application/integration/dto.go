package integration

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// ---------------------------------------------------------------------------
// Outcome DTOs
// ---------------------------------------------------------------------------

// OutcomeResponse represents a sync outcome in API responses
type OutcomeResponse struct {
	Success       bool     `json:"success"`
	Operation     string   `json:"operation"`
	Status        string   `json:"status"`
	Message       string   `json:"message"`
	InvoiceNumber string   `json:"invoice_number,omitempty"`
	InvoiceID     int64    `json:"invoice_id,omitempty"`
	CustomerID    int64    `json:"customer_id,omitempty"`
	PaymentID     int64    `json:"payment_id,omitempty"`
	Warnings      []string `json:"warnings,omitempty"`
	Error         string   `json:"error,omitempty"`
}

// ToOutcomeResponse converts a domain outcome to a response DTO
func ToOutcomeResponse(o *integration.SyncOutcome) OutcomeResponse {
	resp := OutcomeResponse{
		Success:       o.Complete(),
		Operation:     strings.ToLower(o.Operation.String()),
		Status:        strings.ToLower(o.Status.String()),
		Message:       o.Message,
		InvoiceNumber: o.InvoiceNumber,
		InvoiceID:     o.InvoiceID,
		CustomerID:    o.CustomerID,
		PaymentID:     o.PaymentID,
		Warnings:      o.Warnings,
	}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	return resp
}

// InvoiceVerificationResponse represents a totals comparison
type InvoiceVerificationResponse struct {
	OutcomeResponse
	Match                bool   `json:"match"`
	WooCommerceTotal     string `json:"woocommerce_total"`
	RepairShoprTotal     string `json:"repairshopr_total"`
	Difference           string `json:"difference"`
	RepairShoprInvoiceID int64  `json:"repairshopr_invoice_id"`
}

// ToInvoiceVerificationResponse converts a verification result to a response DTO.
// result may be nil when the verification failed.
func ToInvoiceVerificationResponse(result *integration.InvoiceVerification, o *integration.SyncOutcome) InvoiceVerificationResponse {
	resp := InvoiceVerificationResponse{OutcomeResponse: ToOutcomeResponse(o)}
	if result != nil {
		resp.Match = result.Match()
		resp.WooCommerceTotal = integration.FormatMoney(result.OrderTotal)
		resp.RepairShoprTotal = integration.FormatMoney(result.RemoteTotal)
		resp.Difference = integration.FormatMoney(result.Difference)
		resp.RepairShoprInvoiceID = result.InvoiceID
	}
	return resp
}

// PaymentDetailsResponse carries the facts behind a payment verification
type PaymentDetailsResponse struct {
	IsPaid             bool   `json:"is_paid"`
	BalanceDueZero     bool   `json:"balance_due_zero"`
	PaymentsExist      bool   `json:"payments_exist"`
	TotalPaymentAmount string `json:"total_payment_amount"`
	PaymentsCount      int    `json:"payments_count"`
}

// PaymentVerificationResponse represents a payment status check
type PaymentVerificationResponse struct {
	OutcomeResponse
	Paid    bool                    `json:"paid"`
	Details *PaymentDetailsResponse `json:"details,omitempty"`
}

// ToPaymentVerificationResponse converts a verification result to a response DTO.
// result may be nil when the verification failed.
func ToPaymentVerificationResponse(result *integration.PaymentVerification, o *integration.SyncOutcome) PaymentVerificationResponse {
	resp := PaymentVerificationResponse{OutcomeResponse: ToOutcomeResponse(o)}
	if result != nil {
		resp.Paid = result.Paid
		resp.Details = &PaymentDetailsResponse{
			IsPaid:             result.Details.IsPaid,
			BalanceDueZero:     result.Details.BalanceDueZero,
			PaymentsExist:      result.Details.PaymentsExist,
			TotalPaymentAmount: integration.FormatMoney(result.Details.TotalPaymentAmount),
			PaymentsCount:      result.Details.PaymentsCount,
		}
	}
	return resp
}

// ---------------------------------------------------------------------------
// Sync Record DTOs
// ---------------------------------------------------------------------------

// SyncRecordResponse represents an audit record in API responses
type SyncRecordResponse struct {
	ID              uuid.UUID `json:"id"`
	OrderID         int64     `json:"order_id"`
	InvoiceNumber   string    `json:"invoice_number"`
	Operation       string    `json:"operation"`
	Trigger         string    `json:"trigger"`
	Status          string    `json:"status"`
	Message         string    `json:"message"`
	ErrorDetail     string    `json:"error_detail,omitempty"`
	RemoteInvoiceID int64     `json:"remote_invoice_id,omitempty"`
	RemotePaymentID int64     `json:"remote_payment_id,omitempty"`
	DurationMs      int64     `json:"duration_ms"`
	StartedAt       time.Time `json:"started_at"`
}

// SyncRecordListQuery represents the query of the audit record listing
type SyncRecordListQuery struct {
	OrderID   int64  `form:"order_id" binding:"omitempty,min=1"`
	Operation string `form:"operation" binding:"omitempty,oneof=sync_invoice sync_payment verify_invoice verify_payment"`
	Status    string `form:"status" binding:"omitempty,oneof=success exists skipped partial failed"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

// ToFilter converts the query to a domain filter
func (q SyncRecordListQuery) ToFilter() integration.SyncRecordFilter {
	f := integration.SyncRecordFilter{
		OrderID:   q.OrderID,
		Page:      q.Page,
		PageSize:  q.PageSize,
		SortOrder: q.SortOrder,
	}
	if q.Operation != "" {
		op := integration.Operation(strings.ToUpper(q.Operation))
		f.Operation = &op
	}
	if q.Status != "" {
		st := integration.SyncStatus(strings.ToUpper(q.Status))
		f.Status = &st
	}
	return f
}

// ToSyncRecordResponses converts audit records to response DTOs
func ToSyncRecordResponses(records []integration.SyncRecord) []SyncRecordResponse {
	out := make([]SyncRecordResponse, len(records))
	for i, r := range records {
		out[i] = SyncRecordResponse{
			ID:              r.ID,
			OrderID:         r.OrderID,
			InvoiceNumber:   r.InvoiceNumber,
			Operation:       strings.ToLower(r.Operation.String()),
			Trigger:         strings.ToLower(string(r.Trigger)),
			Status:          strings.ToLower(r.Status.String()),
			Message:         r.Message,
			ErrorDetail:     r.ErrorDetail,
			RemoteInvoiceID: r.RemoteInvoiceID,
			RemotePaymentID: r.RemotePaymentID,
			DurationMs:      r.Duration.Milliseconds(),
			StartedAt:       r.StartedAt,
		}
	}
	return out
}

// ---------------------------------------------------------------------------
// Payment Mapping DTOs
// ---------------------------------------------------------------------------

// PaymentMappingResponse represents a payment method mapping in API responses
type PaymentMappingResponse struct {
	ID                uuid.UUID `json:"id"`
	StorefrontMethod  string    `json:"woocommerce_method"`
	BillingMethodID   int64     `json:"repairshopr_method_id"`
	BillingMethodName string    `json:"repairshopr_method_name,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// UpsertPaymentMappingRequest represents a request to set a mapping
type UpsertPaymentMappingRequest struct {
	BillingMethodID int64 `json:"repairshopr_method_id" binding:"required,gt=0"`
}

// ToPaymentMappingResponse converts a mapping to a response DTO
func ToPaymentMappingResponse(m *integration.PaymentMethodMapping) PaymentMappingResponse {
	return PaymentMappingResponse{
		ID:                m.ID,
		StorefrontMethod:  m.StorefrontMethod,
		BillingMethodID:   m.BillingMethodID,
		BillingMethodName: m.BillingMethodName,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// ToPaymentMappingResponses converts mappings to response DTOs
func ToPaymentMappingResponses(mappings []integration.PaymentMethodMapping) []PaymentMappingResponse {
	out := make([]PaymentMappingResponse, len(mappings))
	for i := range mappings {
		out[i] = ToPaymentMappingResponse(&mappings[i])
	}
	return out
}
