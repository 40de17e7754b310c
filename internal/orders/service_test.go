package orders

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/marisolvega/campuseats-backend/internal/stock"
	"github.com/marisolvega/campuseats-backend/pkg/db/models"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	pkgerrors "github.com/marisolvega/campuseats-backend/pkg/errors"
	"github.com/marisolvega/campuseats-backend/pkg/outbox"
	"github.com/marisolvega/campuseats-backend/pkg/outbox/payloads"
	"github.com/marisolvega/campuseats-backend/pkg/pagination"
)

type stubOrdersRepo struct {
	orders    map[uuid.UUID]*models.Order
	lineItems []models.OrderLineItem
	updates   map[string]any
}

func newStubOrdersRepo() *stubOrdersRepo {
	return &stubOrdersRepo{orders: map[uuid.UUID]*models.Order{}}
}

func (s *stubOrdersRepo) WithTx(tx *gorm.DB) Repository { return s }

func (s *stubOrdersRepo) Create(ctx context.Context, variant enums.OrderVariant, order *models.Order) error {
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	order.CreatedAt = time.Now().UTC()
	s.orders[order.ID] = order
	return nil
}

func (s *stubOrdersRepo) CreateLineItems(ctx context.Context, items []models.OrderLineItem) error {
	s.lineItems = append(s.lineItems, items...)
	return nil
}

func (s *stubOrdersRepo) FindByID(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error) {
	order, ok := s.orders[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return order, nil
}

func (s *stubOrdersRepo) FindByIDForUpdate(ctx context.Context, variant enums.OrderVariant, id uuid.UUID) (*models.Order, error) {
	return s.FindByID(ctx, variant, id)
}

func (s *stubOrdersRepo) FindLineItems(ctx context.Context, orderID uuid.UUID) ([]models.OrderLineItem, error) {
	items := make([]models.OrderLineItem, 0)
	for _, item := range s.lineItems {
		if item.OrderID == orderID {
			items = append(items, item)
		}
	}
	return items, nil
}

func (s *stubOrdersRepo) Update(ctx context.Context, variant enums.OrderVariant, id uuid.UUID, updates map[string]any) error {
	order, ok := s.orders[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	s.updates = updates
	for key, value := range updates {
		switch key {
		case "status":
			if v, ok := value.(enums.OrderStatus); ok {
				order.Status = v
			}
		case "payment_status":
			if v, ok := value.(enums.PaymentStatus); ok {
				order.PaymentStatus = v
			}
		case "estimated_ready_time":
			if v, ok := value.(time.Time); ok {
				order.EstimatedReadyTime = &v
			}
		case "prep_minutes":
			if v, ok := value.(int); ok {
				order.PrepMinutes = &v
			}
		case "qr_token":
			if v, ok := value.(string); ok {
				order.QRToken = &v
			}
		case "qr_used":
			if v, ok := value.(bool); ok {
				order.QRUsed = v
			}
		case "rejection_reason":
			if v, ok := value.(string); ok {
				order.RejectionReason = &v
			}
		case "accepted_at":
			if v, ok := value.(time.Time); ok {
				order.AcceptedAt = &v
			}
		case "ready_at":
			if v, ok := value.(time.Time); ok {
				order.ReadyAt = &v
			}
		case "completed_at":
			if v, ok := value.(time.Time); ok {
				order.CompletedAt = &v
			}
		case "rejected_at":
			if v, ok := value.(time.Time); ok {
				order.RejectedAt = &v
			}
		}
	}
	return nil
}

func (s *stubOrdersRepo) RedeemByQR(ctx context.Context, variant enums.OrderVariant, token string) (bool, error) {
	for _, order := range s.orders {
		if order.QRToken == nil || *order.QRToken != token {
			continue
		}
		if order.QRUsed || order.Status != enums.OrderStatusReady {
			return false, nil
		}
		now := time.Now().UTC()
		order.Status = enums.OrderStatusCompleted
		order.QRUsed = true
		order.CompletedAt = &now
		return true, nil
	}
	return false, nil
}

func (s *stubOrdersRepo) FindByQRToken(ctx context.Context, variant enums.OrderVariant, token string) (*models.Order, error) {
	for _, order := range s.orders {
		if order.QRToken != nil && *order.QRToken == token {
			return order, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (s *stubOrdersRepo) ListByVendor(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID, statuses []enums.OrderStatus, params pagination.Params) ([]models.Order, string, error) {
	rows := make([]models.Order, 0)
	for _, order := range s.orders {
		if order.VendorID == vendorID {
			rows = append(rows, *order)
		}
	}
	return rows, "", nil
}

func (s *stubOrdersRepo) ListOverdueCandidates(ctx context.Context, variant enums.OrderVariant, vendorID uuid.UUID) ([]models.Order, error) {
	rows := make([]models.Order, 0)
	for _, order := range s.orders {
		if order.VendorID == vendorID && order.EstimatedReadyTime != nil && !order.Status.IsTerminal() {
			rows = append(rows, *order)
		}
	}
	return rows, nil
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type stubOutboxPublisher struct {
	events []outbox.DomainEvent
	err    error
}

func (s *stubOutboxPublisher) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	if s.err != nil {
		return s.err
	}
	s.events = append(s.events, event)
	return nil
}

func (s *stubOutboxPublisher) has(eventType enums.OutboxEventType) bool {
	for _, event := range s.events {
		if event.EventType == eventType {
			return true
		}
	}
	return false
}

type stockCall struct {
	canteenID uuid.UUID
	stockDate string
	lines     []stock.Line
}

type stubStockLedger struct {
	decrements   []stockCall
	restores     []stockCall
	decrementErr error
}

func (s *stubStockLedger) DecrementForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []stock.Line, actor *outbox.ActorRef) error {
	if s.decrementErr != nil {
		return s.decrementErr
	}
	s.decrements = append(s.decrements, stockCall{canteenID: canteenID, stockDate: stockDate, lines: lines})
	return nil
}

func (s *stubStockLedger) RestoreForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []stock.Line) error {
	s.restores = append(s.restores, stockCall{canteenID: canteenID, stockDate: stockDate, lines: lines})
	return nil
}

type stubAdmissionGate struct {
	err    error
	checks int
}

func (s *stubAdmissionGate) CheckTx(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, variant enums.OrderVariant) error {
	s.checks++
	return s.err
}

type stubVendorFinder struct {
	vendor *models.Vendor
}

func (s *stubVendorFinder) FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error) {
	if s.vendor == nil || s.vendor.ID != vendorID {
		return nil, gorm.ErrRecordNotFound
	}
	return s.vendor, nil
}

type serviceFixture struct {
	repo      *stubOrdersRepo
	outbox    *stubOutboxPublisher
	stock     *stubStockLedger
	admission *stubAdmissionGate
	vendors   *stubVendorFinder
	svc       *service
}

func newServiceFixture(t *testing.T, vendor *models.Vendor) *serviceFixture {
	t.Helper()

	f := &serviceFixture{
		repo:      newStubOrdersRepo(),
		outbox:    &stubOutboxPublisher{},
		stock:     &stubStockLedger{},
		admission: &stubAdmissionGate{},
		vendors:   &stubVendorFinder{vendor: vendor},
	}
	svc, err := NewService(f.repo, stubTxRunner{}, f.outbox, f.stock, f.admission, f.vendors)
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	f.svc = svc.(*service)
	return f
}

func dailyVendor(open bool) *models.Vendor {
	return &models.Vendor{
		ID:        uuid.New(),
		CanteenID: uuid.New(),
		Name:      "North Counter",
		Variant:   enums.OrderVariantCanteen,
		Open:      open,
		StockMode: enums.StockModeDaily,
	}
}

func seedOrder(f *serviceFixture, vendor *models.Vendor, status enums.OrderStatus, payment enums.PaymentStatus) *models.Order {
	order := &models.Order{
		ID:            uuid.New(),
		Variant:       enums.OrderVariantCanteen,
		VendorID:      vendor.ID,
		CanteenID:     vendor.CanteenID,
		CustomerID:    uuid.New(),
		Status:        status,
		PaymentStatus: payment,
		TotalAmount:   decimal.NewFromInt(40),
		PickupCode:    "123456",
		CreatedAt:     time.Now().UTC(),
	}
	f.repo.orders[order.ID] = order
	return order
}

func TestPlaceOrderReservesStockAndEmits(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)

	itemID := uuid.New()
	view, err := f.svc.Place(context.Background(), PlaceOrderInput{
		Variant:    enums.OrderVariantCanteen,
		VendorID:   vendor.ID,
		CustomerID: uuid.New(),
		PaymentRef: "pay_20260302_0001",
		Items: []PlaceOrderItem{
			{MenuItemID: itemID, Name: "Fried Rice", UnitPrice: decimal.RequireFromString("3.50"), Qty: 2},
		},
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.Status != enums.OrderStatusPending {
		t.Fatalf("unexpected status %s", view.Status)
	}
	if view.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("placed order must be paid, got %s", view.PaymentStatus)
	}
	if view.QRToken == nil || len(*view.QRToken) != 32 {
		t.Fatalf("expected qr token on paid order got %v", view.QRToken)
	}
	if view.EstimatedReadyTime != nil {
		t.Fatal("estimate must stay null until accept")
	}
	if !view.TotalAmount.Equal(decimal.RequireFromString("7.00")) {
		t.Fatalf("unexpected total %s", view.TotalAmount)
	}
	if len(view.PickupCode) != pickupCodeDigits {
		t.Fatalf("unexpected pickup code %q", view.PickupCode)
	}
	if len(f.stock.decrements) != 1 {
		t.Fatalf("expected one stock decrement got %d", len(f.stock.decrements))
	}
	call := f.stock.decrements[0]
	if call.canteenID != vendor.CanteenID || len(call.lines) != 1 || call.lines[0].Qty != 2 {
		t.Fatalf("unexpected decrement call %+v", call)
	}
	if !f.outbox.has(enums.EventOrderCreated) {
		t.Fatal("expected order created event")
	}
	if len(f.repo.lineItems) != 1 || f.repo.lineItems[0].MenuItemID != itemID {
		t.Fatalf("unexpected line items %+v", f.repo.lineItems)
	}
}

func TestPlaceOrderVendorClosed(t *testing.T) {
	vendor := dailyVendor(false)
	f := newServiceFixture(t, vendor)

	_, err := f.svc.Place(context.Background(), PlaceOrderInput{
		Variant:    enums.OrderVariantCanteen,
		VendorID:   vendor.ID,
		CustomerID: uuid.New(),
		PaymentRef: "pay_20260302_0002",
		Items:      []PlaceOrderItem{{MenuItemID: uuid.New(), Name: "Soup", UnitPrice: decimal.NewFromInt(2), Qty: 1}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeVendorClosed) {
		t.Fatalf("expected vendor closed got %v", err)
	}
	if len(f.stock.decrements) != 0 {
		t.Fatal("stock must not be touched for a closed vendor")
	}
}

func TestPlaceOrderRequiresPayment(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)

	_, err := f.svc.Place(context.Background(), PlaceOrderInput{
		Variant:    enums.OrderVariantCanteen,
		VendorID:   vendor.ID,
		CustomerID: uuid.New(),
		Items:      []PlaceOrderItem{{MenuItemID: uuid.New(), Name: "Soup", UnitPrice: decimal.NewFromInt(2), Qty: 1}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentNotConfirmed) {
		t.Fatalf("expected payment not confirmed got %v", err)
	}
	if len(f.repo.orders) != 0 {
		t.Fatal("no order expected without payment confirmation")
	}
}

func TestPlaceOrderOutOfStockAbortsCreation(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	f.stock.decrementErr = pkgerrors.New(pkgerrors.CodeOutOfStock, "insufficient stock")

	_, err := f.svc.Place(context.Background(), PlaceOrderInput{
		Variant:    enums.OrderVariantCanteen,
		VendorID:   vendor.ID,
		CustomerID: uuid.New(),
		PaymentRef: "pay_20260302_0003",
		Items:      []PlaceOrderItem{{MenuItemID: uuid.New(), Name: "Soup", UnitPrice: decimal.NewFromInt(2), Qty: 5}},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeOutOfStock) {
		t.Fatalf("expected out of stock got %v", err)
	}
	if len(f.repo.orders) != 0 {
		t.Fatal("order must not be created when stock reservation fails")
	}
	if len(f.outbox.events) != 0 {
		t.Fatal("no events expected on failed placement")
	}
}

func TestAcceptFreezesEstimate(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusPending, enums.PaymentStatusPaid)

	fixed := time.Date(2026, 3, 2, 11, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return fixed }

	view, err := f.svc.Accept(context.Background(), AcceptInput{
		Variant:     enums.OrderVariantCanteen,
		OrderID:     order.ID,
		VendorID:    vendor.ID,
		PrepMinutes: 15,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.Status != enums.OrderStatusAccepted {
		t.Fatalf("unexpected status %s", view.Status)
	}
	wantETA := fixed.Add(15 * time.Minute)
	if view.EstimatedReadyTime == nil || !view.EstimatedReadyTime.Equal(wantETA) {
		t.Fatalf("unexpected estimate %v", view.EstimatedReadyTime)
	}
	if f.admission.checks != 1 {
		t.Fatalf("expected one admission check got %d", f.admission.checks)
	}
	if !f.outbox.has(enums.EventOrderAccepted) || !f.outbox.has(enums.EventNotificationRequested) {
		t.Fatalf("missing events %+v", f.outbox.events)
	}
}

func TestAcceptRequiresPayment(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	_, err := f.svc.Accept(context.Background(), AcceptInput{
		Variant:     enums.OrderVariantCanteen,
		OrderID:     order.ID,
		PrepMinutes: 10,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentNotConfirmed) {
		t.Fatalf("expected payment not confirmed got %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("order must stay pending got %s", order.Status)
	}
}

func TestAcceptAtCapacityLeavesOrderPending(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	f.admission.err = pkgerrors.New(pkgerrors.CodeAtCapacity, "vendor is at capacity")
	order := seedOrder(f, vendor, enums.OrderStatusPending, enums.PaymentStatusPaid)

	_, err := f.svc.Accept(context.Background(), AcceptInput{
		Variant:     enums.OrderVariantCanteen,
		OrderID:     order.ID,
		PrepMinutes: 10,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAtCapacity) {
		t.Fatalf("expected at capacity got %v", err)
	}
	if order.Status != enums.OrderStatusPending || order.QRToken != nil {
		t.Fatalf("order mutated despite admission failure %+v", order)
	}
	if len(f.outbox.events) != 0 {
		t.Fatal("no events expected on admission failure")
	}
}

func TestAcceptTwiceSecondLoses(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusPending, enums.PaymentStatusPaid)

	first, err := f.svc.Accept(context.Background(), AcceptInput{
		Variant: enums.OrderVariantCanteen, OrderID: order.ID, PrepMinutes: 10,
	})
	if err != nil {
		t.Fatalf("first accept failed: %v", err)
	}

	_, err = f.svc.Accept(context.Background(), AcceptInput{
		Variant: enums.OrderVariantCanteen, OrderID: order.ID, PrepMinutes: 45,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidTransition) {
		t.Fatalf("expected invalid transition got %v", err)
	}
	if order.EstimatedReadyTime == nil || !order.EstimatedReadyTime.Equal(*first.EstimatedReadyTime) {
		t.Fatalf("estimate must survive the losing accept, got %v", order.EstimatedReadyTime)
	}
}

func TestRejectRestoresStockAndFlagsRefund(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusPending, enums.PaymentStatusPaid)
	f.repo.lineItems = []models.OrderLineItem{
		{ID: uuid.New(), OrderID: order.ID, MenuItemID: uuid.New(), Name: "Soup", UnitPrice: decimal.NewFromInt(2), Qty: 4, Total: decimal.NewFromInt(8)},
	}

	err := f.svc.Reject(context.Background(), RejectInput{
		Variant: enums.OrderVariantCanteen,
		OrderID: order.ID,
		Reason:  "out of ingredients",
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusRejected {
		t.Fatalf("unexpected status %s", order.Status)
	}
	if order.RejectionReason == nil || *order.RejectionReason != "out of ingredients" {
		t.Fatalf("unexpected reason %v", order.RejectionReason)
	}
	if len(f.stock.restores) != 1 || f.stock.restores[0].lines[0].Qty != 4 {
		t.Fatalf("expected stock restore got %+v", f.stock.restores)
	}
	if !f.outbox.has(enums.EventOrderRejected) {
		t.Fatal("expected rejected event")
	}
	refundSeen := false
	for _, event := range f.outbox.events {
		if event.EventType != enums.EventNotificationRequested {
			continue
		}
		if data, ok := event.Data.(payloads.NotificationRequestedEvent); ok && data.Type == enums.NotificationTypeRefundDue {
			refundSeen = true
		}
	}
	if !refundSeen {
		t.Fatal("expected refund notification request for a paid order")
	}
}

func TestMarkReadyKeepsFrozenEstimate(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusAccepted, enums.PaymentStatusPaid)
	eta := time.Now().UTC().Add(-5 * time.Minute)
	order.EstimatedReadyTime = &eta

	err := f.svc.MarkReady(context.Background(), TransitionInput{
		Variant: enums.OrderVariantCanteen,
		OrderID: order.ID,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusReady || order.ReadyAt == nil {
		t.Fatalf("unexpected order state %+v", order)
	}
	if !order.EstimatedReadyTime.Equal(eta) {
		t.Fatalf("estimate recomputed to %v", order.EstimatedReadyTime)
	}
	if !f.outbox.has(enums.EventOrderReady) || !f.outbox.has(enums.EventNotificationRequested) {
		t.Fatalf("missing events %+v", f.outbox.events)
	}
}

func TestCompleteBurnsQRToken(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusReady, enums.PaymentStatusPaid)
	token := "deadbeefdeadbeefdeadbeefdeadbeef"
	order.QRToken = &token

	err := f.svc.Complete(context.Background(), TransitionInput{
		Variant: enums.OrderVariantCanteen,
		OrderID: order.ID,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.Status != enums.OrderStatusCompleted || !order.QRUsed {
		t.Fatalf("unexpected order state %+v", order)
	}

	_, err = f.svc.RedeemByQR(context.Background(), RedeemInput{
		Variant: enums.OrderVariantCanteen,
		Token:   token,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyRedeemed) {
		t.Fatalf("expected already redeemed got %v", err)
	}
}

func TestRedeemByQRClassifiesFailures(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)

	_, err := f.svc.RedeemByQR(context.Background(), RedeemInput{
		Variant: enums.OrderVariantCanteen,
		Token:   "0000000000000000",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeInvalidToken) {
		t.Fatalf("expected invalid token got %v", err)
	}

	notReady := seedOrder(f, vendor, enums.OrderStatusAccepted, enums.PaymentStatusPaid)
	pendingToken := "1111111111111111"
	notReady.QRToken = &pendingToken
	_, err = f.svc.RedeemByQR(context.Background(), RedeemInput{
		Variant: enums.OrderVariantCanteen,
		Token:   pendingToken,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotYetReady) {
		t.Fatalf("expected not yet ready got %v", err)
	}

	used := seedOrder(f, vendor, enums.OrderStatusCompleted, enums.PaymentStatusPaid)
	usedToken := "2222222222222222"
	used.QRToken = &usedToken
	used.QRUsed = true
	_, err = f.svc.RedeemByQR(context.Background(), RedeemInput{
		Variant: enums.OrderVariantCanteen,
		Token:   usedToken,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeAlreadyRedeemed) {
		t.Fatalf("expected already redeemed got %v", err)
	}
}

func TestRedeemByQRSuccessEmitsEvents(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusReady, enums.PaymentStatusPaid)
	token := "3333333333333333"
	order.QRToken = &token

	view, err := f.svc.RedeemByQR(context.Background(), RedeemInput{
		Variant: enums.OrderVariantCanteen,
		Token:   token,
	})
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.Status != enums.OrderStatusCompleted || !view.QRUsed {
		t.Fatalf("unexpected view %+v", view)
	}
	if !f.outbox.has(enums.EventOrderRedeemed) || !f.outbox.has(enums.EventOrderCompleted) {
		t.Fatalf("missing events %+v", f.outbox.events)
	}
}

func TestConfirmPaymentIdempotent(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusPending, enums.PaymentStatusUnpaid)

	if err := f.svc.ConfirmPayment(context.Background(), enums.OrderVariantCanteen, order.ID); err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		t.Fatalf("unexpected payment status %s", order.PaymentStatus)
	}
	if order.QRToken == nil {
		t.Fatal("confirming payment must issue the qr token")
	}
	first := *order.QRToken
	if err := f.svc.ConfirmPayment(context.Background(), enums.OrderVariantCanteen, order.ID); err != nil {
		t.Fatalf("second confirm must be a no-op, got %v", err)
	}
	if *order.QRToken != first {
		t.Fatal("qr token must not rotate on repeated confirmation")
	}
}

func TestGetComputesOverdue(t *testing.T) {
	vendor := dailyVendor(true)
	f := newServiceFixture(t, vendor)
	order := seedOrder(f, vendor, enums.OrderStatusAccepted, enums.PaymentStatusPaid)
	eta := time.Now().UTC().Add(-30 * time.Minute)
	order.EstimatedReadyTime = &eta

	view, err := f.svc.Get(context.Background(), enums.OrderVariantCanteen, order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if !view.Overdue {
		t.Fatal("expected order to be overdue")
	}

	order.Status = enums.OrderStatusCompleted
	view, err = f.svc.Get(context.Background(), enums.OrderVariantCanteen, order.ID)
	if err != nil {
		t.Fatalf("expected success got %v", err)
	}
	if view.Overdue {
		t.Fatal("terminal orders are never overdue")
	}
}

func TestIsOverdueIncludesExactEstimate(t *testing.T) {
	now := time.Now().UTC()
	order := models.Order{Status: enums.OrderStatusAccepted, EstimatedReadyTime: &now}
	if !order.IsOverdue(now) {
		t.Fatal("an order is overdue at the estimate itself")
	}
	if order.IsOverdue(now.Add(-time.Second)) {
		t.Fatal("an order is not overdue before the estimate")
	}
}
