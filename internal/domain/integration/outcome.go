package integration

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Operation outcomes
// ---------------------------------------------------------------------------

// Operation identifies a sync engine operation
type Operation string

const (
	OperationSyncInvoice   Operation = "SYNC_INVOICE"
	OperationSyncPayment   Operation = "SYNC_PAYMENT"
	OperationVerifyInvoice Operation = "VERIFY_INVOICE"
	OperationVerifyPayment Operation = "VERIFY_PAYMENT"
)

// IsValid returns true if the operation is known
func (o Operation) IsValid() bool {
	switch o {
	case OperationSyncInvoice, OperationSyncPayment, OperationVerifyInvoice, OperationVerifyPayment:
		return true
	default:
		return false
	}
}

// IsMutating reports whether the operation may create remote records
func (o Operation) IsMutating() bool {
	return o == OperationSyncInvoice || o == OperationSyncPayment
}

// String returns the string representation of Operation
func (o Operation) String() string {
	return string(o)
}

// Trigger identifies who started an operation
type Trigger string

const (
	// TriggerManual is an operator action; never gated by auto-sync flags
	TriggerManual Trigger = "MANUAL"
	// TriggerAuto is the order-paid event path
	TriggerAuto Trigger = "AUTO"
)

// IsValid returns true if the trigger is known
func (t Trigger) IsValid() bool {
	return t == TriggerManual || t == TriggerAuto
}

// SyncStatus represents the result status of an operation
type SyncStatus string

const (
	// SyncStatusSuccess indicates the remote record was created or the check passed
	SyncStatusSuccess SyncStatus = "SUCCESS"
	// SyncStatusExists indicates nothing was done because the record already exists
	SyncStatusExists SyncStatus = "EXISTS"
	// SyncStatusSkipped indicates a precondition (auto-sync disabled) skipped the operation
	SyncStatusSkipped SyncStatus = "SKIPPED"
	// SyncStatusPartial indicates the invoice exists but some line items failed
	SyncStatusPartial SyncStatus = "PARTIAL"
	// SyncStatusFailed indicates the operation failed
	SyncStatusFailed SyncStatus = "FAILED"
)

// IsValid returns true if the status is valid
func (s SyncStatus) IsValid() bool {
	switch s {
	case SyncStatusSuccess, SyncStatusExists, SyncStatusSkipped, SyncStatusPartial, SyncStatusFailed:
		return true
	default:
		return false
	}
}

// String returns the string representation of SyncStatus
func (s SyncStatus) String() string {
	return string(s)
}

// SyncOutcome is the structured result every component returns
type SyncOutcome struct {
	Operation     Operation
	Status        SyncStatus
	Message       string
	InvoiceNumber string
	InvoiceID     int64
	CustomerID    int64
	PaymentID     int64
	// Warnings lists non-fatal problems, e.g. line items that failed to post
	Warnings []string
	// Err is the underlying cause for FAILED outcomes
	Err error
}

// Success is true for every status except FAILED
func (o *SyncOutcome) Success() bool {
	return o.Status != SyncStatusFailed
}

// Complete is true when the operation left nothing for an operator to fix.
// A PARTIAL invoice is not failed but is not complete either.
func (o *SyncOutcome) Complete() bool {
	return o.Success() && o.Status != SyncStatusPartial
}

// FailedOutcome builds a FAILED outcome from an error
func FailedOutcome(op Operation, message string, err error) *SyncOutcome {
	return &SyncOutcome{
		Operation: op,
		Status:    SyncStatusFailed,
		Message:   message,
		Err:       err,
	}
}

// ---------------------------------------------------------------------------
// Verification results
// ---------------------------------------------------------------------------

// InvoiceVerification compares the order total with the remote invoice total
type InvoiceVerification struct {
	InvoiceNumber string
	InvoiceID     int64
	OrderTotal    decimal.Decimal
	RemoteTotal   decimal.Decimal
	Difference    decimal.Decimal
}

// Match is true only for an exact zero difference
func (v *InvoiceVerification) Match() bool {
	return v.Difference.IsZero()
}

// Message is the operator-facing summary
func (v *InvoiceVerification) Message() string {
	if v.Match() {
		return "Totals Match!"
	}
	return fmt.Sprintf("Totals Mismatch! Difference: $%s", FormatMoney(v.Difference))
}

// PaymentDetails are the diagnostic facts gathered during payment verification
type PaymentDetails struct {
	IsPaid             bool
	BalanceDueZero     bool
	PaymentsExist      bool
	TotalPaymentAmount decimal.Decimal
	PaymentsCount      int
}

// PaymentVerification reports whether the remote invoice is paid
type PaymentVerification struct {
	InvoiceNumber string
	InvoiceID     int64
	Paid          bool
	Details       PaymentDetails
}

// Message is the operator-facing summary
func (v *PaymentVerification) Message() string {
	if v.Paid {
		return "Invoice is Paid!"
	}
	return "Invoice is Unpaid!"
}
