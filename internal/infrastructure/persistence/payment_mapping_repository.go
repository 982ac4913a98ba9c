package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/erp/invoicesync/internal/domain/integration"
	"github.com/erp/invoicesync/internal/infrastructure/persistence/models"
)

// GormPaymentMappingRepository implements PaymentMethodMappingRepository using GORM
type GormPaymentMappingRepository struct {
	db *gorm.DB
}

// NewGormPaymentMappingRepository creates a new GormPaymentMappingRepository
func NewGormPaymentMappingRepository(db *gorm.DB) *GormPaymentMappingRepository {
	return &GormPaymentMappingRepository{db: db}
}

// FindByMethod finds the mapping of a storefront payment method
func (r *GormPaymentMappingRepository) FindByMethod(ctx context.Context, storefrontMethod string) (*integration.PaymentMethodMapping, error) {
	var model models.PaymentMethodMappingModel
	if err := r.db.WithContext(ctx).
		Where("storefront_method = ?", strings.TrimSpace(storefrontMethod)).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, integration.ErrMappingNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every mapping ordered by storefront method
func (r *GormPaymentMappingRepository) FindAll(ctx context.Context) ([]integration.PaymentMethodMapping, error) {
	var rows []models.PaymentMethodMappingModel
	if err := r.db.WithContext(ctx).Order("storefront_method ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]integration.PaymentMethodMapping, len(rows))
	for i := range rows {
		out[i] = *rows[i].ToDomain()
	}
	return out, nil
}

// Save creates a mapping or retargets the existing one of the same method
func (r *GormPaymentMappingRepository) Save(ctx context.Context, mapping *integration.PaymentMethodMapping) error {
	model := &models.PaymentMethodMappingModel{}
	model.FromDomain(mapping)
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storefront_method"}},
		DoUpdates: clause.AssignmentColumns([]string{"billing_method_id", "billing_method_name", "updated_at"}),
	}).Create(model).Error
	if err != nil {
		return fmt.Errorf("failed to save payment method mapping: %w", err)
	}
	return nil
}

// DeleteByMethod removes the mapping of a storefront payment method
func (r *GormPaymentMappingRepository) DeleteByMethod(ctx context.Context, storefrontMethod string) error {
	result := r.db.WithContext(ctx).
		Where("storefront_method = ?", strings.TrimSpace(storefrontMethod)).
		Delete(&models.PaymentMethodMappingModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return integration.ErrMappingNotFound
	}
	return nil
}

// Ensure GormPaymentMappingRepository implements PaymentMethodMappingRepository
var _ integration.PaymentMethodMappingRepository = (*GormPaymentMappingRepository)(nil)
