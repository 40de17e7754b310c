package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
)

// OrderCreatedEvent announces a freshly placed order.
type OrderCreatedEvent struct {
	OrderID     uuid.UUID          `json:"orderId"`
	Variant     enums.OrderVariant `json:"variant"`
	VendorID    uuid.UUID          `json:"vendorId"`
	CanteenID   uuid.UUID          `json:"canteenId"`
	CustomerID  uuid.UUID          `json:"customerId"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	PickupCode  string             `json:"pickupCode"`
	PlacedAt    time.Time          `json:"placedAt"`
}

// OrderTransitionEvent carries every lifecycle move after creation. The
// event type on the outbox row disambiguates which transition happened.
type OrderTransitionEvent struct {
	OrderID            uuid.UUID          `json:"orderId"`
	Variant            enums.OrderVariant `json:"variant"`
	VendorID           uuid.UUID          `json:"vendorId"`
	CustomerID         uuid.UUID          `json:"customerId"`
	FromStatus         enums.OrderStatus  `json:"fromStatus"`
	ToStatus           enums.OrderStatus  `json:"toStatus"`
	EstimatedReadyTime *time.Time         `json:"estimatedReadyTime,omitempty"`
	RejectionReason    *string            `json:"rejectionReason,omitempty"`
	TransitionedAt     time.Time          `json:"transitionedAt"`
}

// OrderRedeemedEvent records a successful QR pickup.
type OrderRedeemedEvent struct {
	OrderID    uuid.UUID `json:"orderId"`
	VendorID   uuid.UUID `json:"vendorId"`
	CustomerID uuid.UUID `json:"customerId"`
	RedeemedAt time.Time `json:"redeemedAt"`
}

// StockUpdatedEvent reports a quantity change on a daily stock entry.
type StockUpdatedEvent struct {
	EntryID      uuid.UUID         `json:"entryId"`
	CanteenID    uuid.UUID         `json:"canteenId"`
	MenuItemID   uuid.UUID         `json:"menuItemId"`
	StockDate    string            `json:"stockDate"`
	RemainingQty int               `json:"remainingQty"`
	Status       enums.StockStatus `json:"status"`
	UpdatedAt    time.Time         `json:"updatedAt"`
}

// StockDepletedEvent fires when a decrement drains the last unit.
type StockDepletedEvent struct {
	EntryID    uuid.UUID `json:"entryId"`
	CanteenID  uuid.UUID `json:"canteenId"`
	MenuItemID uuid.UUID `json:"menuItemId"`
	StockDate  string    `json:"stockDate"`
	DepletedAt time.Time `json:"depletedAt"`
}

// VendorCapacityChangedEvent reports a vendor order-limit update.
type VendorCapacityChangedEvent struct {
	VendorID   uuid.UUID `json:"vendorId"`
	OrderLimit *int      `json:"orderLimit"`
	ChangedAt  time.Time `json:"changedAt"`
}

// NotificationRequestedEvent asks the notify worker to deliver a message.
type NotificationRequestedEvent struct {
	CustomerID uuid.UUID              `json:"customerId"`
	OrderID    *uuid.UUID             `json:"orderId,omitempty"`
	Type       enums.NotificationType `json:"type"`
	Title      string                 `json:"title"`
	Message    string                 `json:"message"`
}
