package stock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
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

// Line is one item quantity inside an order-sized reservation.
type Line struct {
	MenuItemID uuid.UUID
	Qty        int
}

// SetDailyStockInput loads or replaces the dated quantities for a canteen.
type SetDailyStockInput struct {
	CanteenID uuid.UUID
	StockDate string
	Items     []SetDailyStockItem
	Actor     *outbox.ActorRef
}

// SetDailyStockItem is one item row in a daily stock load.
type SetDailyStockItem struct {
	MenuItemID uuid.UUID
	Qty        int
}

// ItemAvailability is the read-side view for one menu item on one day.
type ItemAvailability struct {
	MenuItemID   uuid.UUID         `json:"menuItemId"`
	StockDate    string            `json:"stockDate"`
	RemainingQty int               `json:"remainingQty"`
	Status       enums.StockStatus `json:"status"`
}

// Service defines the stock ledger operations.
type Service interface {
	SetDailyStock(ctx context.Context, input SetDailyStockInput) error
	CopyDailyStock(ctx context.Context, canteenID uuid.UUID, fromDate, toDate string, actor *outbox.ActorRef) error
	MarkUnavailable(ctx context.Context, entryID uuid.UUID, actor *outbox.ActorRef) error
	Availability(ctx context.Context, canteenID uuid.UUID, stockDate string) ([]ItemAvailability, error)
	DecrementForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []Line, actor *outbox.ActorRef) error
	RestoreForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []Line) error
}

type service struct {
	repo   Repository
	tx     txRunner
	outbox outboxPublisher
}

// NewService builds a stock service with the required dependencies.
func NewService(repo Repository, tx txRunner, outbox outboxPublisher) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("stock repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outbox == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	return &service{repo: repo, tx: tx, outbox: outbox}, nil
}

func (s *service) SetDailyStock(ctx context.Context, input SetDailyStockInput) error {
	if input.CanteenID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "canteen id required")
	}
	if _, err := time.Parse("2006-01-02", input.StockDate); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock date must be YYYY-MM-DD")
	}
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one stock item required")
	}
	for _, item := range input.Items {
		if item.MenuItemID == uuid.Nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "menu item id required")
		}
		if item.Qty < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be non-negative")
		}
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		// A submitted sheet replaces the whole date: items left off the
		// sheet stop selling.
		keep := make([]uuid.UUID, 0, len(input.Items))
		for _, item := range input.Items {
			keep = append(keep, item.MenuItemID)
		}
		if _, err := repo.DeleteForDayExcept(ctx, input.CanteenID, input.StockDate, keep); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "prune stock entries")
		}
		for _, item := range input.Items {
			entry := &models.DailyStockEntry{
				CanteenID:    input.CanteenID,
				MenuItemID:   item.MenuItemID,
				StockDate:    input.StockDate,
				InitialQty:   item.Qty,
				RemainingQty: item.Qty,
				Status:       enums.StockStatusAvailable,
			}
			if err := repo.Upsert(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "upsert stock entry")
			}

			stored, err := repo.FindForDay(ctx, input.CanteenID, item.MenuItemID, input.StockDate)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock entry")
			}
			event := outbox.DomainEvent{
				EventType:     enums.EventStockUpdated,
				AggregateType: enums.AggregateStockEntry,
				AggregateID:   stored.ID,
				Version:       1,
				Actor:         input.Actor,
				Data: payloads.StockUpdatedEvent{
					EntryID:      stored.ID,
					CanteenID:    stored.CanteenID,
					MenuItemID:   stored.MenuItemID,
					StockDate:    stored.StockDate,
					RemainingQty: stored.RemainingQty,
					Status:       stored.Status,
					UpdatedAt:    time.Now().UTC(),
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
		return nil
	})
}

// CopyDailyStock seeds a new day from a prior day's initial quantities.
// Remaining counts never carry over.
func (s *service) CopyDailyStock(ctx context.Context, canteenID uuid.UUID, fromDate, toDate string, actor *outbox.ActorRef) error {
	if fromDate == toDate {
		return pkgerrors.New(pkgerrors.CodeValidation, "source and target dates must differ")
	}
	if _, err := time.Parse("2006-01-02", fromDate); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "source date must be YYYY-MM-DD")
	}
	entries, err := s.repo.ListByCanteenAndDate(ctx, canteenID, fromDate)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list source stock entries")
	}
	if len(entries) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "no stock entries to copy")
	}
	items := make([]SetDailyStockItem, 0, len(entries))
	for _, entry := range entries {
		items = append(items, SetDailyStockItem{MenuItemID: entry.MenuItemID, Qty: entry.InitialQty})
	}
	return s.SetDailyStock(ctx, SetDailyStockInput{
		CanteenID: canteenID,
		StockDate: toDate,
		Items:     items,
		Actor:     actor,
	})
}

func (s *service) MarkUnavailable(ctx context.Context, entryID uuid.UUID, actor *outbox.ActorRef) error {
	if entryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stock entry id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		updated, err := repo.MarkUnavailable(ctx, entryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark stock entry unavailable")
		}
		if !updated {
			if _, findErr := repo.FindByID(ctx, entryID); findErr != nil {
				if findErr == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeNotFound, "stock entry not found")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load stock entry")
			}
			// Already unavailable; the toggle is idempotent.
			return nil
		}
		entry, err := repo.FindByID(ctx, entryID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock entry")
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventStockUpdated,
			AggregateType: enums.AggregateStockEntry,
			AggregateID:   entry.ID,
			Version:       1,
			Actor:         actor,
			Data: payloads.StockUpdatedEvent{
				EntryID:      entry.ID,
				CanteenID:    entry.CanteenID,
				MenuItemID:   entry.MenuItemID,
				StockDate:    entry.StockDate,
				RemainingQty: entry.RemainingQty,
				Status:       entry.Status,
				UpdatedAt:    time.Now().UTC(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
}

func (s *service) Availability(ctx context.Context, canteenID uuid.UUID, stockDate string) ([]ItemAvailability, error) {
	if canteenID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "canteen id required")
	}
	if _, err := time.Parse("2006-01-02", stockDate); err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stock date must be YYYY-MM-DD")
	}
	entries, err := s.repo.ListByCanteenAndDate(ctx, canteenID, stockDate)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list stock entries")
	}
	out := make([]ItemAvailability, 0, len(entries))
	for _, entry := range entries {
		status := entry.Status
		if entry.RemainingQty == 0 {
			status = enums.StockStatusUnavailable
		}
		out = append(out, ItemAvailability{
			MenuItemID:   entry.MenuItemID,
			StockDate:    entry.StockDate,
			RemainingQty: entry.RemainingQty,
			Status:       status,
		})
	}
	return out, nil
}

// DecrementForOrder reserves every line or none. It runs inside the caller's
// transaction so a failed line rolls back lines already taken.
func (s *service) DecrementForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []Line, actor *outbox.ActorRef) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock decrement")
	}
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		if line.Qty <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "line quantity must be positive")
		}
		ok, err := repo.Decrement(ctx, canteenID, line.MenuItemID, stockDate, line.Qty)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decrement stock")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock").
				WithDetails(map[string]any{"menuItemId": line.MenuItemID, "qty": line.Qty})
		}

		entry, err := repo.FindForDay(ctx, canteenID, line.MenuItemID, stockDate)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload stock entry")
		}
		if entry.RemainingQty == 0 {
			event := outbox.DomainEvent{
				EventType:     enums.EventStockDepleted,
				AggregateType: enums.AggregateStockEntry,
				AggregateID:   entry.ID,
				Version:       1,
				Actor:         actor,
				Data: payloads.StockDepletedEvent{
					EntryID:    entry.ID,
					CanteenID:  entry.CanteenID,
					MenuItemID: entry.MenuItemID,
					StockDate:  entry.StockDate,
					DepletedAt: time.Now().UTC(),
				},
			}
			if err := s.outbox.Emit(ctx, tx, event); err != nil {
				return err
			}
		}
	}
	return nil
}

// RestoreForOrder puts quantities back, used when a pending order is rejected.
func (s *service) RestoreForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []Line) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeDependency, "transaction required for stock restore")
	}
	repo := s.repo.WithTx(tx)
	for _, line := range lines {
		if line.Qty <= 0 {
			continue
		}
		if err := repo.Restore(ctx, canteenID, line.MenuItemID, stockDate, line.Qty); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore stock")
		}
	}
	return nil
}
