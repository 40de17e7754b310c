package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// Repository defines the persistence surface for daily stock entries.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Upsert(ctx context.Context, entry *models.DailyStockEntry) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.DailyStockEntry, error)
	FindForDay(ctx context.Context, canteenID, menuItemID uuid.UUID, stockDate string) (*models.DailyStockEntry, error)
	ListByCanteenAndDate(ctx context.Context, canteenID uuid.UUID, stockDate string) ([]models.DailyStockEntry, error)
	Decrement(ctx context.Context, canteenID, menuItemID uuid.UUID, stockDate string, qty int) (bool, error)
	Restore(ctx context.Context, canteenID, menuItemID uuid.UUID, stockDate string, qty int) error
	MarkUnavailable(ctx context.Context, id uuid.UUID) (bool, error)
	DeleteForDayExcept(ctx context.Context, canteenID uuid.UUID, stockDate string, keep []uuid.UUID) (int64, error)
	DeleteBefore(ctx context.Context, cutoff string) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a stock repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Upsert(ctx context.Context, entry *models.DailyStockEntry) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "canteen_id"},
			{Name: "menu_item_id"},
			{Name: "stock_date"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"initial_qty", "remaining_qty", "status", "updated_at"}),
	}).Create(entry).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.DailyStockEntry, error) {
	var entry models.DailyStockEntry
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) FindForDay(ctx context.Context, canteenID, menuItemID uuid.UUID, stockDate string) (*models.DailyStockEntry, error) {
	var entry models.DailyStockEntry
	err := r.db.WithContext(ctx).
		Where("canteen_id = ? AND menu_item_id = ? AND stock_date = ?", canteenID, menuItemID, stockDate).
		First(&entry).Error
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *repository) ListByCanteenAndDate(ctx context.Context, canteenID uuid.UUID, stockDate string) ([]models.DailyStockEntry, error) {
	var entries []models.DailyStockEntry
	err := r.db.WithContext(ctx).
		Where("canteen_id = ? AND stock_date = ?", canteenID, stockDate).
		Order("menu_item_id ASC").
		Find(&entries).Error
	return entries, err
}

// Decrement subtracts qty in a single conditional statement. Zero rows
// affected means insufficient stock or an unavailable entry; the caller
// rolls the surrounding transaction back.
func (r *repository) Decrement(ctx context.Context, canteenID, menuItemID uuid.UUID, stockDate string, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE daily_stock_entries
		SET remaining_qty = remaining_qty - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE canteen_id = ? AND menu_item_id = ? AND stock_date = ?
			AND status = ? AND remaining_qty >= ?
	`, qty, canteenID, menuItemID, stockDate, enums.StockStatusAvailable, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Restore returns units to the day's ledger. The count is capped at
// initial_qty (a re-provisioned row never overflows) and an entry the vendor
// forced unavailable stays at zero.
func (r *repository) Restore(ctx context.Context, canteenID, menuItemID uuid.UUID, stockDate string, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE daily_stock_entries
		SET remaining_qty = CASE
				WHEN remaining_qty + ? > initial_qty THEN initial_qty
				ELSE remaining_qty + ?
			END,
			updated_at = CURRENT_TIMESTAMP
		WHERE canteen_id = ? AND menu_item_id = ? AND stock_date = ?
			AND status = ?
	`, qty, qty, canteenID, menuItemID, stockDate, enums.StockStatusAvailable).Error
}

func (r *repository) MarkUnavailable(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.DailyStockEntry{}).
		Where("id = ? AND status = ?", id, enums.StockStatusAvailable).
		Updates(map[string]any{
			"status":        enums.StockStatusUnavailable,
			"remaining_qty": 0,
			"updated_at":    time.Now(),
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// DeleteForDayExcept removes the date's rows for items absent from a
// re-submitted sheet. Rows for items still on the sheet are untouched, so a
// concurrent decrement never loses its target.
func (r *repository) DeleteForDayExcept(ctx context.Context, canteenID uuid.UUID, stockDate string, keep []uuid.UUID) (int64, error) {
	q := r.db.WithContext(ctx).
		Where("canteen_id = ? AND stock_date = ?", canteenID, stockDate)
	if len(keep) > 0 {
		q = q.Where("menu_item_id NOT IN ?", keep)
	}
	res := q.Delete(&models.DailyStockEntry{})
	return res.RowsAffected, res.Error
}

func (r *repository) DeleteBefore(ctx context.Context, cutoff string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("stock_date < ?", cutoff).
		Delete(&models.DailyStockEntry{})
	return res.RowsAffected, res.Error
}
