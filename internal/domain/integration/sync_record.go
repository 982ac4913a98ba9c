package integration

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ---------------------------------------------------------------------------
// Sync audit records
// ---------------------------------------------------------------------------

// SyncRecord is the audit entry written for every orchestrated operation
type SyncRecord struct {
	// ID is the unique identifier of the sync record
	ID uuid.UUID
	// OrderID is the storefront order id
	OrderID int64
	// InvoiceNumber is the remote invoice natural key (prefix + order number)
	InvoiceNumber string
	// Operation is the performed operation
	Operation Operation
	// Trigger tells manual and automatic runs apart
	Trigger Trigger
	// Status is the sync status
	Status SyncStatus
	// Message is the operator-facing outcome message
	Message string
	// ErrorDetail holds the underlying error text for failed operations
	ErrorDetail string
	// RemoteInvoiceID is the billing invoice id, when known
	RemoteInvoiceID int64
	// RemotePaymentID is the billing payment id, when one was created
	RemotePaymentID int64
	// Duration is how long the operation took
	Duration time.Duration
	// StartedAt is when the operation started
	StartedAt time.Time
	// CreatedAt is when this record was created
	CreatedAt time.Time
}

// NewSyncRecord builds a record from an outcome
func NewSyncRecord(orderID int64, trigger Trigger, outcome *SyncOutcome, startedAt time.Time) *SyncRecord {
	rec := &SyncRecord{
		ID:              uuid.New(),
		OrderID:         orderID,
		InvoiceNumber:   outcome.InvoiceNumber,
		Operation:       outcome.Operation,
		Trigger:         trigger,
		Status:          outcome.Status,
		Message:         outcome.Message,
		RemoteInvoiceID: outcome.InvoiceID,
		RemotePaymentID: outcome.PaymentID,
		Duration:        time.Since(startedAt),
		StartedAt:       startedAt,
		CreatedAt:       time.Now(),
	}
	if outcome.Err != nil {
		rec.ErrorDetail = outcome.Err.Error()
	}
	return rec
}

// SyncRecordFilter defines filter criteria for sync records
type SyncRecordFilter struct {
	// OrderID filters by order (optional, 0 = all)
	OrderID int64
	// Operation filters by operation (optional)
	Operation *Operation
	// Status filters by status (optional)
	Status *SyncStatus
	// Page number (1-indexed)
	Page int
	// Page size
	PageSize int
	// SortOrder is ASC or DESC by creation time (default DESC)
	SortOrder string
}

// SyncRecordRepository persists sync audit records
type SyncRecordRepository interface {
	// Save stores a record
	Save(ctx context.Context, record *SyncRecord) error
	// FindByOrder returns records of one order, newest first
	FindByOrder(ctx context.Context, orderID int64, limit int) ([]SyncRecord, error)
	// FindAll returns records matching the filter, newest first
	FindAll(ctx context.Context, filter SyncRecordFilter) ([]SyncRecord, error)
	// Count counts records matching the filter
	Count(ctx context.Context, filter SyncRecordFilter) (int64, error)
}
