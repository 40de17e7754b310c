package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	"github.com/marisolvega/campuseats-backend/pkg/pagination"
)

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) table(ctx context.Context, variant enums.OrderVariant) *gorm.DB {
	return r.db.WithContext(ctx).Table(variant.TableName())
}

func (r *repository) Create(ctx context.Context, variant enums.OrderVariant, order *models.Order) error {
	// Associations are written separately; Table() does not cascade.
	items := order.Items
	order.Items = nil
	err := r.table(ctx, variant).Create(order).Error
	order.Items = items
	return err
}

func (r *repository) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) FindByID(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.table(ctx, variant).Where("id = ?", id).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.table(ctx, variant).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	var items []models.OrderLineItem
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Find(&items).Error
	return items, err
}

func (r *repository) Update(ctx context.Context, variant enums.OrderVariant, id uuid.UUID, updates map[string]any) error {
	if updates == nil {
		updates = map[string]any{}
	}
	updates["updated_at"] = time.Now()
	return r.table(ctx, variant).Where("id = ?", id).Updates(updates).Error
}

// RedeemByQR is the only write path that consumes a QR token. The status and
// qr_used flips ride one statement, so exactly one concurrent caller wins.
func (r *repository) RedeemByQR(ctx context.Context, variant enums.OrderVariant, token string) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE `+variant.TableName()+`
		SET status = ?,
			qr_used = TRUE,
			completed_at = CURRENT_TIMESTAMP,
			updated_at = CURRENT_TIMESTAMP
		WHERE qr_token = ? AND qr_used = FALSE AND status = ?
	`, enums.OrderStatusCompleted, token, enums.OrderStatusReady)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) FindByQRToken(ctx context.Context, variant enums.OrderVariant, token string) (*models.Order, error) {
	var order models.Order
	err := r.table(ctx, variant).Where("qr_token = ?", token).First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) ListByVendor(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID, statuses []enums.OrderStatus, params pagination.Params) ([]models.Order, string, error) {
	limit := pagination.NormalizeLimit(params.Limit)
	query := r.table(ctx, variant).Where("vendor_id = ?", vendorID)
	if len(statuses) > 0 {
		query = query.Where("status IN ?", statuses)
	}

	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, "", err
	}
	if cursor != nil {
		query = query.Where("(created_at, id) < (?, ?)", cursor.CreatedAt, cursor.ID)
	}

	var rows []models.Order
	err = query.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit + 1).
		Find(&rows).Error
	if err != nil {
		return nil, "", err
	}

	next := ""
	if len(rows) > limit {
		rows = rows[:limit]
		last := rows[len(rows)-1]
		next = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rows, next, nil
}

// ListOverdueCandidates returns non-terminal orders with a frozen estimate.
// Overdue itself is computed by the caller against its own clock.
func (r *repository) ListOverdueCandidates(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID) ([]models.Order, error) {
	var rows []models.Order
	err := r.table(ctx, variant).
		Where("vendor_id = ? AND status IN ? AND estimated_ready_time IS NOT NULL",
			vendorID, []enums.OrderStatus{enums.OrderStatusAccepted, enums.OrderStatusReady}).
		Order("estimated_ready_time ASC").
		Find(&rows).Error
	return rows, err
}
