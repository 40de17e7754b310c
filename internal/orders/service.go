package orders

import (
	"context"
	"fmt"
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
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// stockLedger reserves and returns dated stock inside an order transaction.
type stockLedger interface {
	DecrementForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []stock.Line, actor *outbox.ActorRef) error
	RestoreForOrder(ctx context.Context, tx *gorm.DB, canteenID uuid.UUID, stockDate string, lines []stock.Line) error
}

// admissionGate re-checks the vendor's live order limit at accept time.
type admissionGate interface {
	CheckTx(ctx context.Context, tx *gorm.DB, vendorID uuid.UUID, variant enums.OrderVariant) error
}

// vendorFinder loads the vendor that owns an order.
type vendorFinder interface {
	FindVendor(ctx context.Context, vendorID uuid.UUID) (*models.Vendor, error)
}

// Service defines the order lifecycle operations.
type Service interface {
	Place(ctx context.Context, input PlaceOrderInput) (*View, error)
	ConfirmPayment(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID) error
	Accept(ctx context.Context, input AcceptInput) (*View, error)
	Reject(ctx context.Context, input RejectInput) error
	MarkReady(ctx context.Context, input TransitionInput) error
	Complete(ctx context.Context, input TransitionInput) error
	RedeemByQR(ctx context.Context, input RedeemInput) (*View, error)
	Get(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID) (*View, error)
	ListByVendor(ctx context.Context, input ListInput) (*ListResult, error)
}

type service struct {
	repo      Repository
	tx        txRunner
	outbox    outboxPublisher
	stock     stockLedger
	admission admissionGate
	vendors   vendorFinder
	now       func() time.Time
}

// NewService builds an order service with the required dependencies.
func NewService(repo Repository, tx txRunner, outboxSvc outboxPublisher, stockSvc stockLedger, admissionSvc admissionGate, vendors vendorFinder) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox publisher required")
	}
	if stockSvc == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if admissionSvc == nil {
		return nil, fmt.Errorf("admission gate required")
	}
	if vendors == nil {
		return nil, fmt.Errorf("vendor finder required")
	}
	return &service{
		repo:      repo,
		tx:        tx,
		outbox:    outboxSvc,
		stock:     stockSvc,
		admission: admissionSvc,
		vendors:   vendors,
		now:       time.Now,
	}, nil
}

func (s *service) Place(ctx context.Context, input PlaceOrderInput) (*View, error) {
	if input.VendorID == uuid.Nil || input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor and customer ids required")
	}
	if !input.Variant.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order variant")
	}
	if len(input.Items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item required")
	}
	for _, item := range input.Items {
		if item.MenuItemID == uuid.Nil || item.Qty <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "each item needs an id and positive quantity")
		}
	}

	if input.PaymentRef == "" {
		return nil, pkgerrors.New(pkgerrors.CodePaymentNotConfirmed, "payment confirmation required to place an order")
	}

	vendor, err := s.vendors.FindVendor(ctx, input.VendorID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "vendor not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
	}
	if !vendor.Open {
		return nil, pkgerrors.New(pkgerrors.CodeVendorClosed, "vendor is not accepting orders")
	}

	pickupCode, err := NewPickupCode()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate pickup code")
	}
	// The QR token exists from the moment the order is paid. It only becomes
	// redeemable once the order reaches ready.
	qrToken, err := NewQRToken()
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr token")
	}

	total := decimal.Zero
	lineItems := make([]models.OrderLineItem, 0, len(input.Items))
	lines := make([]stock.Line, 0, len(input.Items))
	for _, item := range input.Items {
		lineTotal := item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Qty)))
		total = total.Add(lineTotal)
		lineItems = append(lineItems, models.OrderLineItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Qty:        item.Qty,
			Total:      lineTotal,
			Notes:      item.Notes,
		})
		lines = append(lines, stock.Line{MenuItemID: item.MenuItemID, Qty: item.Qty})
	}

	order := &models.Order{
		Variant:       input.Variant,
		VendorID:      input.VendorID,
		CanteenID:     vendor.CanteenID,
		CustomerID:    input.CustomerID,
		Status:        enums.OrderStatusPending,
		PaymentStatus: enums.PaymentStatusPaid,
		TotalAmount:   total,
		PickupCode:    pickupCode,
		QRToken:       &qrToken,
		Notes:         input.Notes,
	}

	stockDate := s.now().UTC().Format("2006-01-02")
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		// Daily-mode vendors reserve stock the moment the order lands, so a
		// rejected order has something to give back.
		if vendor.StockMode == enums.StockModeDaily {
			if err := s.stock.DecrementForOrder(ctx, tx, vendor.CanteenID, stockDate, lines, input.Actor); err != nil {
				return err
			}
		}

		if err := repo.Create(ctx, input.Variant, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		for i := range lineItems {
			lineItems[i].OrderID = order.ID
		}
		if err := repo.CreateLineItems(ctx, lineItems); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create line items")
		}

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderCreated,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: payloads.OrderCreatedEvent{
				OrderID:     order.ID,
				Variant:     input.Variant,
				VendorID:    order.VendorID,
				CanteenID:   order.CanteenID,
				CustomerID:  order.CustomerID,
				TotalAmount: total,
				PickupCode:  pickupCode,
				PlacedAt:    s.now().UTC(),
			},
		}
		return s.outbox.Emit(ctx, tx, event)
	})
	if err != nil {
		return nil, err
	}

	order.Items = lineItems
	return s.toView(order, lineItems), nil
}

func (s *service) ConfirmPayment(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID) error {
	if orderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, variant, orderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			return nil
		}
		updates := map[string]any{
			"payment_status": enums.PaymentStatusPaid,
		}
		if order.QRToken == nil {
			qrToken, err := NewQRToken()
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate qr token")
			}
			updates["qr_token"] = qrToken
		}
		return repo.Update(ctx, variant, orderID, updates)
	})
}

func (s *service) Accept(ctx context.Context, input AcceptInput) (*View, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.PrepMinutes <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "prep minutes must be positive")
	}

	var updated *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.Variant, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.VendorID != uuid.Nil && order.VendorID != input.VendorID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusAccepted) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot be accepted in current state").
				WithDetails(map[string]any{"status": order.Status})
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			return pkgerrors.New(pkgerrors.CodePaymentNotConfirmed, "order payment not confirmed")
		}

		// The limit is re-checked here, with the vendor row locked, so the
		// admission decision and the accept commit atomically.
		if err := s.admission.CheckTx(ctx, tx, order.VendorID, input.Variant); err != nil {
			return err
		}

		acceptedAt := s.now().UTC()
		// The estimate freezes at accept time. Nothing recomputes it later;
		// overdue is always judged against this value.
		eta := acceptedAt.Add(time.Duration(input.PrepMinutes) * time.Minute)
		updates := map[string]any{
			"status":               enums.OrderStatusAccepted,
			"accepted_at":          acceptedAt,
			"estimated_ready_time": eta,
			"prep_minutes":         input.PrepMinutes,
		}
		if err := repo.Update(ctx, input.Variant, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		order.Status = enums.OrderStatusAccepted
		order.AcceptedAt = &acceptedAt
		order.EstimatedReadyTime = &eta
		order.PrepMinutes = &input.PrepMinutes
		updated = order

		if err := s.emitTransition(ctx, tx, order, enums.EventOrderAccepted, enums.OrderStatusPending, input.Actor, nil); err != nil {
			return err
		}
		return s.emitNotification(ctx, tx, order, enums.NotificationTypeOrderAccepted,
			"Order accepted", "Your order was accepted and is being prepared.", input.Actor)
	})
	if err != nil {
		return nil, err
	}
	return s.toView(updated, nil), nil
}

func (s *service) Reject(ctx context.Context, input RejectInput) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.Reason == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "rejection reason required")
	}

	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.Variant, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.VendorID != uuid.Nil && order.VendorID != input.VendorID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.CanTransitionTo(enums.OrderStatusRejected) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition, "order cannot be rejected in current state").
				WithDetails(map[string]any{"status": order.Status})
		}

		vendor, err := s.vendors.FindVendor(ctx, order.VendorID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load vendor")
		}
		if vendor.StockMode == enums.StockModeDaily {
			items, err := repo.FindLineItems(ctx, order.ID)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line items")
			}
			lines := make([]stock.Line, 0, len(items))
			for _, item := range items {
				lines = append(lines, stock.Line{MenuItemID: item.MenuItemID, Qty: item.Qty})
			}
			stockDate := order.CreatedAt.UTC().Format("2006-01-02")
			if err := s.stock.RestoreForOrder(ctx, tx, order.CanteenID, stockDate, lines); err != nil {
				return err
			}
		}

		rejectedAt := s.now().UTC()
		updates := map[string]any{
			"status":           enums.OrderStatusRejected,
			"rejected_at":      rejectedAt,
			"rejection_reason": input.Reason,
		}
		if err := repo.Update(ctx, input.Variant, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		fromStatus := order.Status
		order.Status = enums.OrderStatusRejected
		order.RejectedAt = &rejectedAt
		order.RejectionReason = &input.Reason

		if err := s.emitTransition(ctx, tx, order, enums.EventOrderRejected, fromStatus, input.Actor, &input.Reason); err != nil {
			return err
		}
		if order.PaymentStatus == enums.PaymentStatusPaid {
			if err := s.emitNotification(ctx, tx, order, enums.NotificationTypeRefundDue,
				"Order rejected", "Your order was rejected. A refund is on its way.", input.Actor); err != nil {
				return err
			}
		}
		return s.emitNotification(ctx, tx, order, enums.NotificationTypeOrderRejected,
			"Order rejected", "The vendor could not take your order: "+input.Reason, input.Actor)
	})
}

func (s *service) MarkReady(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input, enums.OrderStatusReady, enums.EventOrderReady, func(order *models.Order, updates map[string]any) {
		readyAt := s.now().UTC()
		updates["ready_at"] = readyAt
		order.ReadyAt = &readyAt
	})
}

func (s *service) Complete(ctx context.Context, input TransitionInput) error {
	return s.transition(ctx, input, enums.OrderStatusCompleted, enums.EventOrderCompleted, func(order *models.Order, updates map[string]any) {
		completedAt := s.now().UTC()
		updates["completed_at"] = completedAt
		// A counter completion burns the QR so the token cannot be replayed.
		updates["qr_used"] = true
		order.CompletedAt = &completedAt
		order.QRUsed = true
	})
}

func (s *service) transition(ctx context.Context, input TransitionInput, target enums.OrderStatus, eventType enums.OutboxEventType, apply func(*models.Order, map[string]any)) error {
	if input.OrderID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByIDForUpdate(ctx, input.Variant, input.OrderID)
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if input.VendorID != uuid.Nil && order.VendorID != input.VendorID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeInvalidTransition,
				fmt.Sprintf("order cannot move to %s in current state", target)).
				WithDetails(map[string]any{"status": order.Status})
		}

		fromStatus := order.Status
		updates := map[string]any{"status": target}
		order.Status = target
		if apply != nil {
			apply(order, updates)
		}
		if err := repo.Update(ctx, input.Variant, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order")
		}

		if err := s.emitTransition(ctx, tx, order, eventType, fromStatus, input.Actor, nil); err != nil {
			return err
		}
		if target == enums.OrderStatusReady {
			return s.emitNotification(ctx, tx, order, enums.NotificationTypeOrderReady,
				"Order ready", "Your order is ready for pickup.", input.Actor)
		}
		return nil
	})
}

func (s *service) RedeemByQR(ctx context.Context, input RedeemInput) (*View, error) {
	if input.Token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "qr token required")
	}

	var redeemed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		won, err := repo.RedeemByQR(ctx, input.Variant, input.Token)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "redeem qr token")
		}
		if !won {
			// Classify the loss for the caller. The conditional update already
			// guaranteed no state changed.
			order, findErr := repo.FindByQRToken(ctx, input.Variant, input.Token)
			if findErr != nil {
				if findErr == gorm.ErrRecordNotFound {
					return pkgerrors.New(pkgerrors.CodeInvalidToken, "unknown qr token")
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "load order by token")
			}
			if order.QRUsed || order.Status.IsTerminal() {
				return pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "qr token already redeemed")
			}
			return pkgerrors.New(pkgerrors.CodeNotYetReady, "order is not ready for pickup")
		}

		order, err := repo.FindByQRToken(ctx, input.Variant, input.Token)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload redeemed order")
		}
		redeemed = order

		event := outbox.DomainEvent{
			EventType:     enums.EventOrderRedeemed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			Actor:         input.Actor,
			Data: payloads.OrderRedeemedEvent{
				OrderID:    order.ID,
				VendorID:   order.VendorID,
				CustomerID: order.CustomerID,
				RedeemedAt: s.now().UTC(),
			},
		}
		if err := s.outbox.Emit(ctx, tx, event); err != nil {
			return err
		}
		return s.emitTransition(ctx, tx, order, enums.EventOrderCompleted, enums.OrderStatusReady, input.Actor, nil)
	})
	if err != nil {
		return nil, err
	}
	return s.toView(redeemed, nil), nil
}

func (s *service) Get(ctx context.Context, variant enums.OrderVariant, orderID uuid.UUID) (*View, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	order, err := s.repo.FindByID(ctx, variant, orderID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	items, err := s.repo.FindLineItems(ctx, orderID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load line items")
	}
	return s.toView(order, items), nil
}

func (s *service) ListByVendor(ctx context.Context, input ListInput) (*ListResult, error) {
	if input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id required")
	}
	rows, next, err := s.repo.ListByVendor(ctx, input.Variant, input.VendorID, input.Statuses, input.Pagination)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	views := make([]View, 0, len(rows))
	for i := range rows {
		views = append(views, *s.toView(&rows[i], nil))
	}
	return &ListResult{Orders: views, NextCursor: next}, nil
}

func (s *service) emitTransition(ctx context.Context, tx *gorm.DB, order *models.Order, eventType enums.OutboxEventType, from enums.OrderStatus, actor *outbox.ActorRef, reason *string) error {
	event := outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.OrderTransitionEvent{
			OrderID:            order.ID,
			Variant:            order.Variant,
			VendorID:           order.VendorID,
			CustomerID:         order.CustomerID,
			FromStatus:         from,
			ToStatus:           order.Status,
			EstimatedReadyTime: order.EstimatedReadyTime,
			RejectionReason:    reason,
			TransitionedAt:     s.now().UTC(),
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) emitNotification(ctx context.Context, tx *gorm.DB, order *models.Order, notifType enums.NotificationType, title, message string, actor *outbox.ActorRef) error {
	orderID := order.ID
	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   order.ID,
		Version:       1,
		Actor:         actor,
		Data: payloads.NotificationRequestedEvent{
			CustomerID: order.CustomerID,
			OrderID:    &orderID,
			Type:       notifType,
			Title:      title,
			Message:    message,
		},
	}
	return s.outbox.Emit(ctx, tx, event)
}

func (s *service) toView(order *models.Order, items []models.OrderLineItem) *View {
	if order == nil {
		return nil
	}
	view := &View{
		ID:                 order.ID,
		Variant:            order.Variant,
		VendorID:           order.VendorID,
		CustomerID:         order.CustomerID,
		Status:             order.Status,
		PaymentStatus:      order.PaymentStatus,
		TotalAmount:        order.TotalAmount,
		PickupCode:         order.PickupCode,
		QRToken:            order.QRToken,
		QRUsed:             order.QRUsed,
		EstimatedReadyTime: order.EstimatedReadyTime,
		Overdue:            order.IsOverdue(s.now()),
		RejectionReason:    order.RejectionReason,
		CreatedAt:          order.CreatedAt,
	}
	for _, item := range items {
		view.Items = append(view.Items, ViewItem{
			MenuItemID: item.MenuItemID,
			Name:       item.Name,
			UnitPrice:  item.UnitPrice,
			Qty:        item.Qty,
			Total:      item.Total,
		})
	}
	return view
}
