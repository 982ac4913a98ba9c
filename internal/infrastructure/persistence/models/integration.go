package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/erp/invoicesync/internal/domain/integration"
)

// SyncRecordModel is the persistence model for the SyncRecord audit entry.
// Rows are append-only.
type SyncRecordModel struct {
	ID              uuid.UUID              `gorm:"type:uuid;primary_key"`
	OrderID         int64                  `gorm:"not null;index:idx_sync_record_order,priority:1"`
	InvoiceNumber   string                 `gorm:"type:varchar(64);index"`
	Operation       integration.Operation  `gorm:"type:varchar(20);not null;index"`
	Trigger         integration.Trigger    `gorm:"column:trigger_source;type:varchar(10);not null"`
	Status          integration.SyncStatus `gorm:"type:varchar(20);not null;index"`
	Message         string                 `gorm:"type:text"`
	ErrorDetail     string                 `gorm:"type:text"`
	RemoteInvoiceID int64
	RemotePaymentID int64
	DurationMs      int64     `gorm:"not null;default:0"`
	StartedAt       time.Time `gorm:"not null"`
	CreatedAt       time.Time `gorm:"not null;index:idx_sync_record_order,priority:2"`
}

// TableName returns the table name for GORM
func (SyncRecordModel) TableName() string {
	return "sync_records"
}

// ToDomain converts the persistence model to a domain SyncRecord
func (m *SyncRecordModel) ToDomain() *integration.SyncRecord {
	return &integration.SyncRecord{
		ID:              m.ID,
		OrderID:         m.OrderID,
		InvoiceNumber:   m.InvoiceNumber,
		Operation:       m.Operation,
		Trigger:         m.Trigger,
		Status:          m.Status,
		Message:         m.Message,
		ErrorDetail:     m.ErrorDetail,
		RemoteInvoiceID: m.RemoteInvoiceID,
		RemotePaymentID: m.RemotePaymentID,
		Duration:        time.Duration(m.DurationMs) * time.Millisecond,
		StartedAt:       m.StartedAt,
		CreatedAt:       m.CreatedAt,
	}
}

// FromDomain populates the persistence model from a domain SyncRecord
func (m *SyncRecordModel) FromDomain(r *integration.SyncRecord) {
	m.ID = r.ID
	m.OrderID = r.OrderID
	m.InvoiceNumber = r.InvoiceNumber
	m.Operation = r.Operation
	m.Trigger = r.Trigger
	m.Status = r.Status
	m.Message = r.Message
	m.ErrorDetail = r.ErrorDetail
	m.RemoteInvoiceID = r.RemoteInvoiceID
	m.RemotePaymentID = r.RemotePaymentID
	m.DurationMs = r.Duration.Milliseconds()
	m.StartedAt = r.StartedAt
	m.CreatedAt = r.CreatedAt
}

// SyncRecordModelFromDomain creates a new persistence model from a domain SyncRecord
func SyncRecordModelFromDomain(r *integration.SyncRecord) *SyncRecordModel {
	m := &SyncRecordModel{}
	m.FromDomain(r)
	return m
}

// PaymentMethodMappingModel is the persistence model for PaymentMethodMapping.
// Rows are upserted on storefront_method.
type PaymentMethodMappingModel struct {
	ID                uuid.UUID `gorm:"type:uuid;primary_key"`
	StorefrontMethod  string    `gorm:"type:varchar(100);not null;uniqueIndex"`
	BillingMethodID   int64     `gorm:"not null"`
	BillingMethodName string    `gorm:"type:varchar(255)"`
	CreatedAt         time.Time `gorm:"not null"`
	UpdatedAt         time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentMethodMappingModel) TableName() string {
	return "payment_method_mappings"
}

// ToDomain converts the persistence model to a domain mapping
func (m *PaymentMethodMappingModel) ToDomain() *integration.PaymentMethodMapping {
	return &integration.PaymentMethodMapping{
		ID:                m.ID,
		StorefrontMethod:  m.StorefrontMethod,
		BillingMethodID:   m.BillingMethodID,
		BillingMethodName: m.BillingMethodName,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain mapping
func (m *PaymentMethodMappingModel) FromDomain(p *integration.PaymentMethodMapping) {
	m.ID = p.ID
	m.StorefrontMethod = p.StorefrontMethod
	m.BillingMethodID = p.BillingMethodID
	m.BillingMethodName = p.BillingMethodName
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}
