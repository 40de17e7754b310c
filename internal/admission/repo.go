package admission

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// Repository exposes the reads the admission gate needs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	FindVendorForUpdate(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
	CountLiveOrders(ctx context.Context, vendorID uuid.UUID, variant enums.OrderVariant) (int64, error)
	UpdateOrderLimit(ctx context.Context, vendorID uuid.UUID, limit *int) error
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an admission repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).Where("id = ?", vendorID).First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// FindVendorForUpdate locks the vendor row so concurrent accepts serialize
// against the same capacity check.
func (r *repository) FindVendorForUpdate(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	var vendor models.Vendor
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", vendorID).
		First(&vendor).Error
	if err != nil {
		return nil, err
	}
	return &vendor, nil
}

// CountLiveOrders counts accepted, paid, unredeemed orders. The count is
// always computed live; nothing caches it.
func (r *repository) CountLiveOrders(ctx context.Context, vendorID uuid.UUID, variant enums.OrderVariant) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Table(variant.TableName()).
		Where("vendor_id = ? AND status = ? AND payment_status = ?",
			vendorID, enums.OrderStatusAccepted, enums.PaymentStatusPaid).
		Count(&count).Error
	return count, err
}

func (r *repository) UpdateOrderLimit(ctx context.Context, vendorID uuid.UUID, limit *int) error {
	return r.db.WithContext(ctx).Model(&models.Vendor{}).
		Where("id = ?", vendorID).
		Update("order_limit", limit).Error
}
