package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marisolvega/campuseats-backend/pkg/enums"
	pkgerrors "github.com/marisolvega/campuseats-backend/pkg/errors"
	"github.com/marisolvega/campuseats-backend/pkg/outbox"
	"github.com/marisolvega/campuseats-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Capacity reports the live admission numbers for a vendor.
type Capacity struct {
	VendorID   uuid.UUID `json:"vendorId"`
	OrderLimit *int      `json:"orderLimit"`
	LiveOrders int64     `json:"liveOrders"`
	CanAdmit   bool      `json:"canAdmit"`
}

// Service gates order acceptance on the vendor's live order count.
type Service interface {
	// Capacity returns an advisory snapshot; only CheckTx is authoritative.
	Capacity(ctx context.Context, vendorID uuid.UUID, variant enums.OrderVariant) (*Capacity, error)
	// CheckTx re-runs the admission check inside the accept transaction with
	// the vendor row locked. Callers must hold the tx open until commit.
	CheckTx(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, variant enums.OrderVariant) error
	SetLimit(ctx context.Context, vendorID uuid.UUID, limit *int, actor *outbox.ActorRef) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds an admission service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("admission repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

func (s *service) Capacity(ctx context.Context, vendorID uuid.UUID, variant enums.OrderVariant) (*Capacity, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	vendor, err := s.repo.FindVendor(ctx, vendorID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	live, err := s.repo.CountLiveOrders(ctx, vendorID, variant)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count live orders")
	}
	return &Capacity{
		VendorID:   vendorID,
		OrderLimit: vendor.OrderLimit,
		LiveOrders: live,
		CanAdmit:   vendor.OrderLimit == nil || live < int64(*vendor.OrderLimit),
	}, nil
}

func (s *service) CheckTx(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, variant enums.OrderVariant) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for admission check")
	}
	repo := s.repo.WithTx(tx)
	vendor, err := repo.FindVendorForUpdate(ctx, vendorID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock vendor")
	}
	if vendor.OrderLimit == nil {
		return nil
	}
	live, err := repo.CountLiveOrders(ctx, vendorID, variant)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count live orders")
	}
	if live >= int64(*vendor.OrderLimit) {
		return pkgerrors.New(pkgerrors.CodeAtCapacity, "vendor is at capacity").
			WithDetails(map[string]any{"orderLimit": *vendor.OrderLimit, "liveOrders": live})
	}
	return nil
}

func (s *service) SetLimit(ctx context.Context, vendorID uuid.UUID, limit *int, actor *outbox.ActorRef) error {
	if vendorID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	if limit != nil && *limit < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order limit must be non-negative")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindVendorForUpdate(ctx, vendorID); err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock vendor")
		}
		if err := repo.UpdateOrderLimit(ctx, vendorID, limit); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order limit")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventVendorCapacityChanged,
			AggregateType: enums.AggregateVendor,
			AggregateID:   vendorID,
			Version:       1,
			Actor:         actor,
			Data: payloads.VendorCapacityChangedEvent{
				VendorID:   vendorID,
				OrderLimit: limit,
				ChangedAt:  time.Now().UTC(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}
