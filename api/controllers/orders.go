package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/marisolvega/campuseats-backend/api/middleware"
	"github.com/marisolvega/campuseats-backend/api/responses"
	"github.com/marisolvega/campuseats-backend/api/validators"
	internalorders "github.com/marisolvega/campuseats-backend/internal/orders"
	"github.com/marisolvega/campuseats-backend/pkg/enums"
	pkgerrors "github.com/marisolvega/campuseats-backend/pkg/errors"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
	"github.com/marisolvega/campuseats-backend/pkg/outbox"
	"github.com/marisolvega/campuseats-backend/pkg/pagination"
)

type placeOrderRequest struct {
	Variant    string                  `json:"variant" validate:"omitempty,oneof=canteen shop"`
	VendorID   uuid.UUID               `json:"vendorId" validate:"required"`
	CanteenID  uuid.UUID               `json:"canteenId" validate:"required"`
	CustomerID uuid.UUID               `json:"customerId" validate:"required"`
	PaymentRef string                  `json:"paymentRef"`
	Notes      *string                 `json:"notes,omitempty"`
	Items      []placeOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type placeOrderItemRequest struct {
	MenuItemID uuid.UUID       `json:"menuItemId" validate:"required"`
	Name       string          `json:"name" validate:"required"`
	UnitPrice  decimal.Decimal `json:"unitPrice" validate:"required"`
	Qty        int             `json:"qty" validate:"required,min=1"`
	Notes      *string         `json:"notes,omitempty"`
}

// PlaceOrder creates a pending paid order.
func PlaceOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := parseVariant(req.Variant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := internalorders.PlaceOrderInput{
			Variant:    variant,
			VendorID:   req.VendorID,
			CanteenID:  req.CanteenID,
			CustomerID: req.CustomerID,
			PaymentRef: req.PaymentRef,
			Notes:      req.Notes,
			Actor:      actorFromRequest(r),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, internalorders.PlaceOrderItem{
				MenuItemID: item.MenuItemID,
				Name:       item.Name,
				UnitPrice:  item.UnitPrice,
				Qty:        item.Qty,
				Notes:      item.Notes,
			})
		}

		view, err := svc.Place(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, view)
	}
}

type acceptOrderRequest struct {
	Variant     string    `json:"variant" validate:"omitempty,oneof=canteen shop"`
	VendorID    uuid.UUID `json:"vendorId" validate:"required"`
	PrepMinutes int       `json:"prepMinutes" validate:"required,min=1,max=240"`
}

// AcceptOrder moves a pending order to accepted and freezes its estimate.
func AcceptOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req acceptOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := parseVariant(req.Variant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Accept(r.Context(), internalorders.AcceptInput{
			Variant:     variant,
			OrderID:     orderID,
			VendorID:    req.VendorID,
			PrepMinutes: req.PrepMinutes,
			Actor:       actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

type rejectOrderRequest struct {
	Variant  string    `json:"variant" validate:"omitempty,oneof=canteen shop"`
	VendorID uuid.UUID `json:"vendorId" validate:"required"`
	Reason   string    `json:"reason" validate:"required,max=500"`
}

// RejectOrder moves a pending order to rejected and returns its stock.
func RejectOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req rejectOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := parseVariant(req.Variant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Reject(r.Context(), internalorders.RejectInput{
			Variant:  variant,
			OrderID:  orderID,
			VendorID: req.VendorID,
			Reason:   req.Reason,
			Actor:    actorFromRequest(r),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "rejected"})
	}
}

type transitionOrderRequest struct {
	Variant  string    `json:"variant" validate:"omitempty,oneof=canteen shop"`
	VendorID uuid.UUID `json:"vendorId" validate:"required"`
}

// MarkOrderReady moves an accepted order to ready.
func MarkOrderReady(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc.MarkReady, "ready", logg)
}

// CompleteOrder moves a ready order to completed at handover.
func CompleteOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return transitionHandler(svc.Complete, "completed", logg)
}

func transitionHandler(
	op func(ctx context.Context, input internalorders.TransitionInput) error,
	resultStatus string,
	logg *logger.Logger,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req transitionOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := parseVariant(req.Variant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := op(r.Context(), internalorders.TransitionInput{
			Variant:  variant,
			OrderID:  orderID,
			VendorID: req.VendorID,
			Actor:    actorFromRequest(r),
		}); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": resultStatus})
	}
}

type redeemOrderRequest struct {
	Variant string `json:"variant" validate:"omitempty,oneof=canteen shop"`
	QRToken string `json:"qrToken" validate:"required"`
}

// RedeemOrder consumes a QR token at the counter.
func RedeemOrder(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req redeemOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := parseVariant(req.Variant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.RedeemByQR(r.Context(), internalorders.RedeemInput{
			Variant: variant,
			Token:   req.QRToken,
			Actor:   actorFromRequest(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"success": true,
			"orderId": view.ID,
		})
	}
}

// OrderDetail is the catch-up read clients use before subscribing to the feed.
func OrderDetail(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := parseOrderID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := parseVariant(r.URL.Query().Get("variant"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Get(r.Context(), variant, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, view)
	}
}

// VendorOrders lists a vendor's orders with cursor pagination.
func VendorOrders(svc internalorders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := parsePathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		variant, err := parseVariant(r.URL.Query().Get("variant"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		statuses, err := parseStatuses(r.URL.Query().Get("status"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ListByVendor(r.Context(), internalorders.ListInput{
			Variant:  variant,
			VendorID: vendorID,
			Statuses: statuses,
			Pagination: pagination.Params{
				Limit:  limit,
				Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
			},
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func parseOrderID(r *http.Request) (uuid.UUID, error) {
	return parsePathUUID(r, "orderId")
}

func parsePathUUID(r *http.Request, name string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, name))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+name)
	}
	return id, nil
}

func parseVariant(raw string) (enums.OrderVariant, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return enums.OrderVariantCanteen, nil
	}
	variant, err := enums.ParseOrderVariant(raw)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid order variant")
	}
	return variant, nil
}

func parseStatuses(raw string) ([]enums.OrderStatus, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var statuses []enums.OrderStatus
	for _, part := range strings.Split(raw, ",") {
		status := enums.OrderStatus(strings.TrimSpace(part))
		if !status.IsValid() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status filter").
				WithDetails(map[string]any{"status": part})
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func actorFromRequest(r *http.Request) *outbox.ActorRef {
	ctx := r.Context()
	actorID, err := uuid.Parse(middleware.ActorIDFromContext(ctx))
	if err != nil {
		return nil
	}
	ref := &outbox.ActorRef{
		UserID: actorID,
		Role:   middleware.ActorRoleFromContext(ctx),
	}
	if vendorID, err := uuid.Parse(middleware.VendorIDFromContext(ctx)); err == nil {
		ref.VendorID = &vendorID
	}
	return ref
}
