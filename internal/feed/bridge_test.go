package feed

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"testing"
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

type stubReceiver struct {
	errs  []error
	calls int
}

func (s *stubReceiver) Receive(ctx context.Context, fn func(ctx context.Context, msg *gcppubsub.Message)) error {
	s.calls++
	if len(s.errs) == 0 {
		return nil
	}
	err := s.errs[0]
	s.errs = s.errs[1:]
	return err
}

type stubOrderReader struct {
	order     *models.Order
	vendor    []models.Order
	findCalls int32
}

func (s *stubOrderReader) FindByID(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error) {
	atomic.AddInt32(&s.findCalls, 1)
	if s.order == nil || s.order.ID != id {
		return nil, errors.New("not found")
	}
	return s.order, nil
}

func (s *stubOrderReader) ListByVendor(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID, statuses []enums.OrderStatus, params pagination.Params) ([]models.Order, string, error) {
	return s.vendor, "", nil
}

type stubStockReader struct {
	entries []models.DailyStockEntry
}

func (s *stubStockReader) ListByCanteenAndDate(ctx context.Context, canteenID uuid.UUID, stockDate string) ([]models.DailyStockEntry, error) {
	return s.entries, nil
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "feed-test"})
}

func liveOrderEvent(orderID, vendorID uuid.UUID, eventType enums.OutboxEventType) Event {
	payload, _ := json.Marshal(payloads.OrderTransitionEvent{
		OrderID:  orderID,
		VendorID: vendorID,
		ToStatus: enums.OrderStatusReady,
	})
	return Event{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		OccurredAt:    time.Now().UTC(),
		Payload:       payload,
	}
}

func TestSubscribeOrderCatchupThenLive(t *testing.T) {
	orderID := uuid.New()
	eta := time.Now().UTC().Add(10 * time.Minute)
	reader := &stubOrderReader{order: &models.Order{
		ID:                 orderID,
		Variant:            enums.OrderVariantCanteen,
		VendorID:           uuid.New(),
		CustomerID:         uuid.New(),
		Status:             enums.OrderStatusAccepted,
		EstimatedReadyTime: &eta,
		UpdatedAt:          time.Now().UTC(),
	}}
	bridge, err := NewBridge(&stubReceiver{}, reader, &stubStockReader{}, testLogger())
	if err != nil {
		t.Fatalf("construct bridge: %v", err)
	}

	var received []Event
	unsub, err := bridge.SubscribeOrder(context.Background(), enums.OrderVariantCanteen, orderID, func(e Event) {
		received = append(received, e)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(received) != 1 {
		t.Fatalf("expected one catch-up snapshot got %d", len(received))
	}
	if !received[0].Snapshot || received[0].EventType != enums.EventOrderAccepted {
		t.Fatalf("unexpected snapshot %+v", received[0])
	}

	bridge.fanOut(liveOrderEvent(orderID, uuid.New(), enums.EventOrderReady))
	bridge.fanOut(liveOrderEvent(uuid.New(), uuid.New(), enums.EventOrderReady))
	if len(received) != 2 {
		t.Fatalf("expected exactly one live event got %d total", len(received))
	}
	if received[1].EventType != enums.EventOrderReady || received[1].Snapshot {
		t.Fatalf("unexpected live event %+v", received[1])
	}

	unsub()
	unsub()
	bridge.fanOut(liveOrderEvent(orderID, uuid.New(), enums.EventOrderCompleted))
	if len(received) != 2 {
		t.Fatal("events delivered after unsubscribe")
	}
}

func TestSubscribeVendorOrdersFiltersByScope(t *testing.T) {
	vendorID := uuid.New()
	reader := &stubOrderReader{vendor: []models.Order{
		{ID: uuid.New(), VendorID: vendorID, Status: enums.OrderStatusPending, UpdatedAt: time.Now().UTC()},
		{ID: uuid.New(), VendorID: vendorID, Status: enums.OrderStatusReady, UpdatedAt: time.Now().UTC()},
	}}
	bridge, err := NewBridge(&stubReceiver{}, reader, &stubStockReader{}, testLogger())
	if err != nil {
		t.Fatalf("construct bridge: %v", err)
	}

	var received []Event
	_, err = bridge.SubscribeVendorOrders(context.Background(), enums.OrderVariantCanteen, vendorID, func(e Event) {
		received = append(received, e)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(received) != 2 {
		t.Fatalf("expected two catch-up snapshots got %d", len(received))
	}

	bridge.fanOut(liveOrderEvent(uuid.New(), vendorID, enums.EventOrderAccepted))
	bridge.fanOut(liveOrderEvent(uuid.New(), uuid.New(), enums.EventOrderAccepted))
	if len(received) != 3 {
		t.Fatalf("expected one matching live event got %d total", len(received))
	}
}

func TestSubscribeStockSnapshotsAndFilter(t *testing.T) {
	canteenID := uuid.New()
	date := "2026-03-02"
	stock := &stubStockReader{entries: []models.DailyStockEntry{
		{ID: uuid.New(), CanteenID: canteenID, MenuItemID: uuid.New(), StockDate: date, InitialQty: 10, RemainingQty: 4, Status: enums.StockStatusAvailable, UpdatedAt: time.Now().UTC()},
	}}
	bridge, err := NewBridge(&stubReceiver{}, &stubOrderReader{}, stock, testLogger())
	if err != nil {
		t.Fatalf("construct bridge: %v", err)
	}

	var received []Event
	_, err = bridge.SubscribeStock(context.Background(), canteenID, date, func(e Event) {
		received = append(received, e)
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if len(received) != 1 || !received[0].Snapshot {
		t.Fatalf("expected one snapshot got %+v", received)
	}

	payload, _ := json.Marshal(payloads.StockDepletedEvent{
		EntryID:   stock.entries[0].ID,
		CanteenID: canteenID,
		StockDate: date,
	})
	bridge.fanOut(Event{
		EventID:       uuid.NewString(),
		EventType:     enums.EventStockDepleted,
		AggregateType: enums.AggregateStockEntry,
		AggregateID:   stock.entries[0].ID,
		Payload:       payload,
	})
	otherPayload, _ := json.Marshal(payloads.StockDepletedEvent{
		EntryID:   uuid.New(),
		CanteenID: uuid.New(),
		StockDate: date,
	})
	bridge.fanOut(Event{
		EventID:       uuid.NewString(),
		EventType:     enums.EventStockDepleted,
		AggregateType: enums.AggregateStockEntry,
		AggregateID:   uuid.New(),
		Payload:       otherPayload,
	})
	if len(received) != 2 {
		t.Fatalf("expected one matching live event got %d total", len(received))
	}
}

func TestDecodeRejectsMissingAttributes(t *testing.T) {
	bridge, err := NewBridge(&stubReceiver{}, &stubOrderReader{}, &stubStockReader{}, testLogger())
	if err != nil {
		t.Fatalf("construct bridge: %v", err)
	}

	envelope, _ := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now().UTC(),
		Data:       json.RawMessage(`{}`),
	})
	msg := &gcppubsub.Message{
		Data: envelope,
		Attributes: map[string]string{
			"event_type":     string(enums.EventOrderReady),
			"aggregate_type": string(enums.AggregateOrder),
			"aggregate_id":   uuid.NewString(),
		},
	}
	event, err := bridge.decode(msg)
	if err != nil {
		t.Fatalf("expected decode success got %v", err)
	}
	if event.EventType != enums.EventOrderReady {
		t.Fatalf("unexpected event %+v", event)
	}

	msg.Attributes["aggregate_id"] = "not-a-uuid"
	if _, err := bridge.decode(msg); err == nil {
		t.Fatal("expected error for bad aggregate id")
	}

	delete(msg.Attributes, "event_type")
	if _, err := bridge.decode(msg); err == nil {
		t.Fatal("expected error for missing event type")
	}
}

func TestRunReconnectReplaysCatchup(t *testing.T) {
	orderID := uuid.New()
	reader := &stubOrderReader{order: &models.Order{
		ID:        orderID,
		Status:    enums.OrderStatusPending,
		UpdatedAt: time.Now().UTC(),
	}}
	recv := &stubReceiver{errs: []error{errors.New("stream reset")}}
	bridge, err := NewBridge(recv, reader, &stubStockReader{}, testLogger())
	if err != nil {
		t.Fatalf("construct bridge: %v", err)
	}

	if _, err := bridge.SubscribeOrder(context.Background(), enums.OrderVariantCanteen, orderID, func(Event) {}); err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	if got := atomic.LoadInt32(&reader.findCalls); got != 1 {
		t.Fatalf("expected one initial catch-up read got %d", got)
	}

	if err := bridge.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if recv.calls != 2 {
		t.Fatalf("expected reconnect, receive called %d times", recv.calls)
	}
	if got := atomic.LoadInt32(&reader.findCalls); got != 2 {
		t.Fatalf("expected catch-up replay after reconnect got %d reads", got)
	}
}
