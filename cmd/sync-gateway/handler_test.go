package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/internal/clientsync"
	"github.com/marisolvega/campuseats-backend/internal/feed"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
	"github.com/marisolvega/campuseats-backend/pkg/outbox/payloads"
)

type stubOrderFeed struct {
	event  *feed.Event
	unsubs int
}

func (s *stubOrderFeed) SubscribeOrder(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID, handler feed.Handler) (feed.Unsubscribe, error) {
	if s.event != nil {
		handler(*s.event)
	}
	return func() { s.unsubs++ }, nil
}

func testGatewayLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "sync-gateway-test"})
}

func acceptedEvent(t *testing.T, orderID uuid.UUID) *feed.Event {
	t.Helper()
	payload, err := json.Marshal(payloads.OrderTransitionEvent{
		OrderID:    orderID,
		Variant:    enums.OrderVariantCanteen,
		FromStatus: enums.OrderStatusPending,
		ToStatus:   enums.OrderStatusAccepted,
	})
	if err != nil {
		t.Fatalf("marshal event payload: %v", err)
	}
	return &feed.Event{
		EventID:       uuid.NewString(),
		EventType:     enums.EventOrderAccepted,
		AggregateType: enums.AggregateOrder,
		AggregateID:   orderID,
		Payload:       payload,
	}
}

func serveOrderEvents(source orderFeed, target string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	r.Get("/sync/orders/{orderId}/events", orderEvents(source, clientsync.NewMemoryStore(), testGatewayLogger()))

	// A pre-canceled context makes the handler return right after the
	// catch-up stream instead of holding the connection open.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestOrderEventsStreamsCatchUpAsSSE(t *testing.T) {
	orderID := uuid.New()
	source := &stubOrderFeed{event: acceptedEvent(t, orderID)}

	rec := serveOrderEvents(source, "/sync/orders/"+orderID.String()+"/events?session=session-1")

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected event stream content type, got %q", ct)
	}
	body := rec.Body.String()
	if !strings.Contains(body, "event: banner") {
		t.Fatalf("expected a banner event in the stream, got %q", body)
	}
	if !strings.Contains(body, orderID.String()) {
		t.Fatalf("expected the order id in the stream, got %q", body)
	}
	if source.unsubs == 0 {
		t.Fatal("closing the connection must unsubscribe from the feed")
	}
}

func TestOrderEventsRequiresSession(t *testing.T) {
	orderID := uuid.New()
	rec := serveOrderEvents(&stubOrderFeed{}, "/sync/orders/"+orderID.String()+"/events")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestOrderEventsRejectsBadOrderID(t *testing.T) {
	rec := serveOrderEvents(&stubOrderFeed{}, "/sync/orders/not-a-uuid/events?session=session-1")

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}
