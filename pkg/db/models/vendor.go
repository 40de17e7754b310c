package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// Vendor is a canteen counter or campus shop taking orders.
type Vendor struct {
	ID        uuid.UUID          `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	CanteenID uuid.UUID          `gorm:"column:canteen_id;type:uuid;not null"`
	Name      string             `gorm:"column:name;not null"`
	Variant   enums.OrderVariant `gorm:"column:variant;type:text;not null;default:'canteen'"`
	Open      bool               `gorm:"column:open;not null;default:false"`
	StockMode enums.StockMode    `gorm:"column:stock_mode;type:text;not null;default:'simple'"`
	// OrderLimit caps live accepted paid orders. Nil means unlimited.
	OrderLimit *int      `gorm:"column:order_limit"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
