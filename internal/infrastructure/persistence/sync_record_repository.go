package persistence

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/infrastructure/persistence/models"
)

// GormSyncRecordRepository implements SyncRecordRepository using GORM
type GormSyncRecordRepository struct {
	db *gorm.DB
}

// NewGormSyncRecordRepository creates a new GormSyncRecordRepository
func NewGormSyncRecordRepository(db *gorm.DB) *GormSyncRecordRepository {
	return &GormSyncRecordRepository{db: db}
}

// Save appends a record
func (r *GormSyncRecordRepository) Save(ctx context.Context, record *integration.SyncRecord) error {
	if err := r.db.WithContext(ctx).Create(models.SyncRecordModelFromDomain(record)).Error; err != nil {
		return fmt.Errorf("failed to save sync record: %w", err)
	}
	return nil
}

// FindByOrder returns the latest records of one order, newest first
func (r *GormSyncRecordRepository) FindByOrder(ctx context.Context, orderID int64, limit int) ([]integration.SyncRecord, error) {
	var rows []models.SyncRecordModel
	query := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSyncRecords(rows), nil
}

// FindAll returns records matching the filter, newest first
func (r *GormSyncRecordRepository) FindAll(ctx context.Context, filter integration.SyncRecordFilter) ([]integration.SyncRecord, error) {
	var rows []models.SyncRecordModel
	query := r.applyFilter(r.db.WithContext(ctx).Model(&models.SyncRecordModel{}), filter).
		Order("created_at " + sortDirection(filter.SortOrder))

	if filter.PageSize > 0 {
		query = query.Limit(filter.PageSize)
		if filter.Page > 1 {
			query = query.Offset((filter.Page - 1) * filter.PageSize)
		}
	}

	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return toSyncRecords(rows), nil
}

// Count counts records matching the filter
func (r *GormSyncRecordRepository) Count(ctx context.Context, filter integration.SyncRecordFilter) (int64, error) {
	var count int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&models.SyncRecordModel{}), filter).
		Count(&count).Error
	return count, err
}

// DeleteCreatedBefore removes records created before cutoff and returns how
// many were removed
func (r *GormSyncRecordRepository) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	result := r.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&models.SyncRecordModel{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to purge sync records: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func (r *GormSyncRecordRepository) applyFilter(query *gorm.DB, filter integration.SyncRecordFilter) *gorm.DB {
	if filter.OrderID > 0 {
		query = query.Where("order_id = ?", filter.OrderID)
	}
	if filter.Operation != nil {
		query = query.Where("operation = ?", *filter.Operation)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	return query
}

// sortDirection only lets ASC or DESC reach the ORDER BY clause
func sortDirection(order string) string {
	if strings.EqualFold(strings.TrimSpace(order), "asc") {
		return "ASC"
	}
	return "DESC"
}

func toSyncRecords(rows []models.SyncRecordModel) []integration.SyncRecord {
	out := make([]integration.SyncRecord, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out
}

// Ensure GormSyncRecordRepository implements SyncRecordRepository
var _ integration.SyncRecordRepository = (*GormSyncRecordRepository)(nil)
