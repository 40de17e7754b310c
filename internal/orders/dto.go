package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
	"github.com/marisolvega/campuseats-backend/pkg/outbox"
	"github.com/marisolvega/campuseats-backend/pkg/pagination"
)

// PlaceOrderInput carries everything needed to create a pending order.
// PaymentRef is the gateway confirmation for the checkout; placement is
// refused without one.
type PlaceOrderInput struct {
	Variant    enums.OrderVariant
	VendorID   uuid.UUID
	CanteenID  uuid.UUID
	CustomerID uuid.UUID
	Items      []PlaceOrderItem
	PaymentRef string
	Notes      *string
	Actor      *outbox.ActorRef
}

// PlaceOrderItem is one requested line in a new order.
type PlaceOrderItem struct {
	MenuItemID uuid.UUID
	Name       string
	UnitPrice  decimal.Decimal
	Qty        int
	Notes      *string
}

// AcceptInput moves a pending paid order to accepted with a frozen estimate.
type AcceptInput struct {
	Variant     enums.OrderVariant
	OrderID     uuid.UUID
	VendorID    uuid.UUID
	PrepMinutes int
	Actor       *outbox.ActorRef
}

// RejectInput moves a pending order to rejected and returns its stock.
type RejectInput struct {
	Variant  enums.OrderVariant
	OrderID  uuid.UUID
	VendorID uuid.UUID
	Reason   string
	Actor    *outbox.ActorRef
}

// TransitionInput covers the vendor-side ready and complete moves.
type TransitionInput struct {
	Variant  enums.OrderVariant
	OrderID  uuid.UUID
	VendorID uuid.UUID
	Actor    *outbox.ActorRef
}

// RedeemInput consumes a QR token at the counter.
type RedeemInput struct {
	Variant enums.OrderVariant
	Token   string
	Actor   *outbox.ActorRef
}

// ListInput filters a vendor's order listing.
type ListInput struct {
	Variant    enums.OrderVariant
	VendorID   uuid.UUID
	Statuses   []enums.OrderStatus
	Pagination pagination.Params
}

// View is the API-facing order projection.
type View struct {
	ID                 uuid.UUID           `json:"id"`
	Variant            enums.OrderVariant  `json:"variant"`
	VendorID           uuid.UUID           `json:"vendorId"`
	CustomerID         uuid.UUID           `json:"customerId"`
	Status             enums.OrderStatus   `json:"status"`
	PaymentStatus      enums.PaymentStatus `json:"paymentStatus"`
	TotalAmount        decimal.Decimal     `json:"totalAmount"`
	PickupCode         string              `json:"pickupCode"`
	QRToken            *string             `json:"qrToken,omitempty"`
	QRUsed             bool                `json:"qrUsed"`
	EstimatedReadyTime *time.Time          `json:"estimatedReadyTime,omitempty"`
	Overdue            bool                `json:"overdue"`
	RejectionReason    *string             `json:"rejectionReason,omitempty"`
	Items              []ViewItem          `json:"items,omitempty"`
	CreatedAt          time.Time           `json:"createdAt"`
}

// ViewItem is one line in the order projection.
type ViewItem struct {
	MenuItemID uuid.UUID       `json:"menuItemId"`
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unitPrice"`
	Qty        int             `json:"qty"`
	Total      decimal.Decimal `json:"total"`
}

// ListResult pairs a page of orders with the cursor for the next one.
type ListResult struct {
	Orders     []View `json:"orders"`
	NextCursor string `json:"nextCursor,omitempty"`
}
