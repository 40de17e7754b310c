package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// DailyStockEntry tracks dated per-item quantities for daily-mode vendors.
// One row per canteen, item and calendar day.
type DailyStockEntry struct {
	ID           uuid.UUID         `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CanteenID    uuid.UUID         `gorm:"column:canteen_id;type:uuid;not null;uniqueIndex:idx_stock_entry_day,priority:1"`
	MenuItemID   uuid.UUID         `gorm:"column:menu_item_id;type:uuid;not null;uniqueIndex:idx_stock_entry_day,priority:2"`
	StockDate    string            `gorm:"column:stock_date;type:date;not null;uniqueIndex:idx_stock_entry_day,priority:3"`
	InitialQty   int               `gorm:"column:initial_qty;not null"`
	RemainingQty int               `gorm:"column:remaining_qty;not null"`
	Status       enums.StockStatus `gorm:"column:status;type:stock_status;not null;default:'available'"`
	CreatedAt    time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
