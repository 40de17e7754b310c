package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// Order represents a customer order against a canteen or shop. The same
// schema backs both the canteen_orders and shop_orders tables; the variant
// on the record selects which one a repository targets.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Variant            enums.OrderVariant  `gorm:"column:variant;type:text;not null;default:'canteen'"`
	VendorID           uuid.UUID           `gorm:"column:vendor_id;type:uuid;not null"`
	CanteenID          uuid.UUID           `gorm:"column:canteen_id;type:uuid;not null"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	Status             enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'pending'"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'unpaid'"`
	TotalAmount        decimal.Decimal     `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PickupCode         string              `gorm:"column:pickup_code;not null"`
	QRToken            *string             `gorm:"column:qr_token;uniqueIndex"`
	QRUsed             bool                `gorm:"column:qr_used;not null;default:false"`
	EstimatedReadyTime *time.Time          `gorm:"column:estimated_ready_time"`
	PrepMinutes        *int                `gorm:"column:prep_minutes"`
	RejectionReason    *string             `gorm:"column:rejection_reason"`
	Notes              *string             `gorm:"column:notes"`
	AcceptedAt         *time.Time          `gorm:"column:accepted_at"`
	ReadyAt            *time.Time          `gorm:"column:ready_at"`
	CompletedAt        *time.Time          `gorm:"column:completed_at"`
	RejectedAt         *time.Time          `gorm:"column:rejected_at"`
	Items              []OrderLineItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// IsOverdue reports whether the frozen pickup estimate has passed without
// the order reaching a terminal state. Pure function of stored data and now.
func (o Order) IsOverdue(now time.Time) bool {
	if o.EstimatedReadyTime == nil {
		return false
	}
	if o.Status.IsTerminal() {
		return false
	}
	// Overdue at the estimate itself, not one tick after it.
	return !now.Before(*o.EstimatedReadyTime)
}
