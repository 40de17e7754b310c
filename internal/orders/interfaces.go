package orders

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	"github.com/marisolvega/campuseats-backend/pkg/pagination"
)

// Repository defines the persistence surface for orders. Every method takes
// the variant selecting which order table it targets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, variant enums.OrderVariant, order *models.Order) error
	CreateLineItems(ctx context.Context, items []models.OrderLineItem) error
	FindByID(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error)
	FindByIDForUpdate(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error)
	FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error)
	Update(ctx context.Context, variant enums.OrderVariant, id uuid.UUID, updates map[string]any) error
	// RedeemByQR flips status and qr_used in one conditional statement and
	// reports whether any row changed.
	RedeemByQR(ctx context.Context, variant enums.OrderVariant, token string) (bool, error)
	FindByQRToken(ctx context.Context, variant enums.OrderVariant, token string) (*models.Order, error)
	ListByVendor(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID, statuses []enums.OrderStatus, params pagination.Params) ([]models.Order, string, error)
	ListOverdueCandidates(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID) ([]models.Order, error)
}
