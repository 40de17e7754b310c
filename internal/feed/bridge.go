package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
	"github.com/marisolvega/campuseats-backend/pkg/outbox"
	"github.com/marisolvega/campuseats-backend/pkg/outbox/payloads"
	"github.com/marisolvega/campuseats-backend/pkg/pagination"
)

const (
	defaultMaxReconnects = 5
	reconnectBaseBackoff = 500 * time.Millisecond
	reconnectMaxBackoff  = 15 * time.Second
	vendorCatchupLimit   = 50
)

// receiver is the live transport. *gcppubsub.Subscriber satisfies it.
type receiver interface {
	Receive(ctx context.Context, fn func(ctx context.Context, msg *gcppubsub.Message)) error
}

// orderReader supplies authoritative rows for catch-up reads.
type orderReader interface {
	FindByID(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error)
	ListByVendor(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID, statuses []enums.OrderStatus, params pagination.Params) ([]models.Order, string, error)
}

type stockReader interface {
	ListByCanteenAndDate(ctx context.Context, canteenID uuid.UUID, stockDate string) ([]models.DailyStockEntry, error)
}

type subscription struct {
	id      int64
	match   func(Event) bool
	handler Handler
	// catchup replays the authoritative snapshot; also invoked after a
	// transport reconnect so subscribers never miss what happened while
	// the stream was down.
	catchup func(ctx context.Context) error
}

// Bridge fans the order feed out to in-process subscribers. Each
// subscription gets a catch-up read first, then the live stream filtered to
// its scope. Delivery is at-least-once; consumers dedupe on event id.
type Bridge struct {
	recv   receiver
	orders orderReader
	stock  stockReader
	logg   *logger.Logger

	mu     sync.Mutex
	subs   map[int64]*subscription
	nextID int64

	maxReconnects int
}

// NewBridge builds a feed bridge over the given subscription and readers.
func NewBridge(recv receiver, orders orderReader, stock stockReader, logg *logger.Logger) (*Bridge, error) {
	if recv == nil {
		return nil, errors.New("feed receiver required")
	}
	if orders == nil {
		return nil, errors.New("order reader required")
	}
	if stock == nil {
		return nil, errors.New("stock reader required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Bridge{
		recv:          recv,
		orders:        orders,
		stock:         stock,
		logg:          logg,
		subs:          map[int64]*subscription{},
		maxReconnects: defaultMaxReconnects,
	}, nil
}

// Run consumes the live stream until the context is canceled. A transport
// drop triggers backoff, reconnect and a fresh catch-up read per
// subscription; the error surfaces only when reconnects are exhausted.
func (b *Bridge) Run(ctx context.Context) error {
	attempts := 0
	for {
		err := b.recv.Receive(ctx, b.dispatch)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err == nil {
			return nil
		}
		attempts++
		if attempts > b.maxReconnects {
			return fmt.Errorf("feed stream failed after %d reconnects: %w", b.maxReconnects, err)
		}
		backoff := reconnectBaseBackoff << (attempts - 1)
		if backoff > reconnectMaxBackoff {
			backoff = reconnectMaxBackoff
		}
		b.logg.Warn(b.logg.WithFields(ctx, map[string]any{
			"attempt": attempts,
			"backoff": backoff.String(),
			"error":   err.Error(),
		}), "feed stream dropped, reconnecting")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
		b.replayCatchups(ctx)
	}
}

func (b *Bridge) replayCatchups(ctx context.Context) {
	b.mu.Lock()
	subs := make([]*subscription, 0, len(b.subs))
	for _, sub := range b.subs {
		subs = append(subs, sub)
	}
	b.mu.Unlock()

	for _, sub := range subs {
		if sub.catchup == nil {
			continue
		}
		if err := sub.catchup(ctx); err != nil {
			b.logg.Error(ctx, "catch-up replay failed", err)
		}
	}
}

func (b *Bridge) dispatch(ctx context.Context, msg *gcppubsub.Message) {
	event, err := b.decode(msg)
	if err != nil {
		// Malformed messages are acked; redelivery cannot fix them.
		b.logg.Warn(b.logg.WithFields(ctx, map[string]any{
			"message_id": msg.ID,
			"error":      err.Error(),
		}), "dropping undecodable feed message")
		msg.Ack()
		return
	}
	b.fanOut(*event)
	msg.Ack()
}

func (b *Bridge) fanOut(event Event) {
	b.mu.Lock()
	matched := make([]Handler, 0)
	for _, sub := range b.subs {
		if sub.match(event) {
			matched = append(matched, sub.handler)
		}
	}
	b.mu.Unlock()

	for _, handler := range matched {
		handler(event)
	}
}

func (b *Bridge) decode(msg *gcppubsub.Message) (*Event, error) {
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		return nil, fmt.Errorf("decode payload envelope: %w", err)
	}

	eventType, err := enums.ParseOutboxEventType(strings.TrimSpace(msg.Attributes["event_type"]))
	if err != nil {
		return nil, fmt.Errorf("event_type: %w", err)
	}
	aggregateType, err := enums.ParseOutboxAggregateType(strings.TrimSpace(msg.Attributes["aggregate_type"]))
	if err != nil {
		return nil, fmt.Errorf("aggregate_type: %w", err)
	}
	aggregateID, err := uuid.Parse(strings.TrimSpace(msg.Attributes["aggregate_id"]))
	if err != nil {
		return nil, fmt.Errorf("aggregate_id: %w", err)
	}
	eventID := strings.TrimSpace(envelope.EventID)
	if eventID == "" {
		eventID = strings.TrimSpace(msg.Attributes["event_id"])
	}
	if eventID == "" {
		return nil, errors.New("event_id missing")
	}

	return &Event{
		EventID:       eventID,
		EventType:     eventType,
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		OccurredAt:    envelope.OccurredAt.UTC(),
		Payload:       envelope.Data,
	}, nil
}

func (b *Bridge) register(sub *subscription) Unsubscribe {
	b.mu.Lock()
	b.nextID++
	sub.id = b.nextID
	b.subs[sub.id] = sub
	b.mu.Unlock()

	id := sub.id
	return func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}

// SubscribeOrder delivers the order's current row as a snapshot event, then
// every live event for that order.
func (b *Bridge) SubscribeOrder(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID, handler Handler) (Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("handler required")
	}
	catchup := func(ctx context.Context) error {
		order, err := b.orders.FindByID(ctx, variant, orderID)
		if err != nil {
			return fmt.Errorf("order catch-up read: %w", err)
		}
		snapshot, err := orderSnapshot(*order)
		if err != nil {
			return err
		}
		handler(*snapshot)
		return nil
	}
	if err := catchup(ctx); err != nil {
		return nil, err
	}
	sub := &subscription{
		match: func(e Event) bool {
			return e.AggregateType == enums.AggregateOrder && e.AggregateID == orderID
		},
		handler: handler,
		catchup: catchup,
	}
	return b.register(sub), nil
}

// SubscribeVendorOrders delivers snapshots of the vendor's recent orders,
// then live order events scoped to the vendor.
func (b *Bridge) SubscribeVendorOrders(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID, handler Handler) (Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("handler required")
	}
	catchup := func(ctx context.Context) error {
		rows, _, err := b.orders.ListByVendor(ctx, variant, vendorID, nil, pagination.Params{Limit: vendorCatchupLimit})
		if err != nil {
			return fmt.Errorf("vendor catch-up read: %w", err)
		}
		for _, row := range rows {
			snapshot, err := orderSnapshot(row)
			if err != nil {
				return err
			}
			handler(*snapshot)
		}
		return nil
	}
	if err := catchup(ctx); err != nil {
		return nil, err
	}
	sub := &subscription{
		match: func(e Event) bool {
			if e.AggregateType != enums.AggregateOrder {
				return false
			}
			var scope struct {
				VendorID uuid.UUID `json:"vendorId"`
			}
			if err := json.Unmarshal(e.Payload, &scope); err != nil {
				return false
			}
			return scope.VendorID == vendorID
		},
		handler: handler,
		catchup: catchup,
	}
	return b.register(sub), nil
}

// SubscribeStock delivers the ledger rows for one canteen and date as
// snapshots, then live stock events in that scope.
func (b *Bridge) SubscribeStock(ctx context.Context, canteenID uuid.UUID, stockDate string, handler Handler) (Unsubscribe, error) {
	if handler == nil {
		return nil, errors.New("handler required")
	}
	catchup := func(ctx context.Context) error {
		entries, err := b.stock.ListByCanteenAndDate(ctx, canteenID, stockDate)
		if err != nil {
			return fmt.Errorf("stock catch-up read: %w", err)
		}
		for _, entry := range entries {
			snapshot, err := stockSnapshot(entry)
			if err != nil {
				return err
			}
			handler(*snapshot)
		}
		return nil
	}
	if err := catchup(ctx); err != nil {
		return nil, err
	}
	sub := &subscription{
		match: func(e Event) bool {
			if e.AggregateType != enums.AggregateStockEntry {
				return false
			}
			var scope struct {
				CanteenID uuid.UUID `json:"canteenId"`
				StockDate string    `json:"stockDate"`
			}
			if err := json.Unmarshal(e.Payload, &scope); err != nil {
				return false
			}
			return scope.CanteenID == canteenID && scope.StockDate == stockDate
		},
		handler: handler,
		catchup: catchup,
	}
	return b.register(sub), nil
}

// snapshotEventType maps an order's current status onto the transition event
// that produced it, so catch-up and live events share one shape.
func snapshotEventType(status enums.OrderStatus) enums.OutboxEventType {
	switch status {
	case enums.OrderStatusAccepted:
		return enums.EventOrderAccepted
	case enums.OrderStatusReady:
		return enums.EventOrderReady
	case enums.OrderStatusCompleted:
		return enums.EventOrderCompleted
	case enums.OrderStatusRejected:
		return enums.EventOrderRejected
	default:
		return enums.EventOrderCreated
	}
}

func orderSnapshot(order models.Order) (*Event, error) {
	payload, err := json.Marshal(payloads.OrderTransitionEvent{
		OrderID:            order.ID,
		Variant:            order.Variant,
		VendorID:           order.VendorID,
		CustomerID:         order.CustomerID,
		FromStatus:         order.Status,
		ToStatus:           order.Status,
		EstimatedReadyTime: order.EstimatedReadyTime,
		RejectionReason:    order.RejectionReason,
		TransitionedAt:     order.UpdatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal order snapshot: %w", err)
	}
	return &Event{
		EventID:       fmt.Sprintf("snapshot-%s-%d", order.ID, order.UpdatedAt.UnixNano()),
		EventType:     snapshotEventType(order.Status),
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		OccurredAt:    order.UpdatedAt.UTC(),
		Payload:       payload,
		Snapshot:      true,
	}, nil
}

func stockSnapshot(entry models.DailyStockEntry) (*Event, error) {
	payload, err := json.Marshal(payloads.StockUpdatedEvent{
		EntryID:      entry.ID,
		CanteenID:    entry.CanteenID,
		MenuItemID:   entry.MenuItemID,
		StockDate:    entry.StockDate,
		RemainingQty: entry.RemainingQty,
		Status:       entry.Status,
		UpdatedAt:    entry.UpdatedAt.UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("marshal stock snapshot: %w", err)
	}
	return &Event{
		EventID:       fmt.Sprintf("snapshot-%s-%d", entry.ID, entry.UpdatedAt.UnixNano()),
		EventType:     enums.EventStockUpdated,
		AggregateType: enums.AggregateStockEntry,
		AggregateID:   entry.ID,
		OccurredAt:    entry.UpdatedAt.UTC(),
		Payload:       payload,
		Snapshot:      true,
	}, nil
}
