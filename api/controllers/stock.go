package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/marisolvega/campuseats-backend/api/responses"
	"github.com/marisolvega/campuseats-backend/api/validators"
	"github.com/marisolvega/campuseats-backend/internal/stock"
	pkgerrors "github.com/marisolvega/campuseats-backend/pkg/errors"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
)

type setDailyStockRequest struct {
	CanteenID uuid.UUID               `json:"canteenId" validate:"required"`
	Items     []setDailyStockItemBody `json:"items" validate:"required,min=1,dive"`
}

type setDailyStockItemBody struct {
	MenuItemID uuid.UUID `json:"menuItemId" validate:"required"`
	Qty        int       `json:"qty" validate:"min=0"`
}

// SetDailyStock bulk-provisions a canteen's ledger for one date.
func SetDailyStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stockDate, err := parseStockDate(chi.URLParam(r, "date"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setDailyStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		input := stock.SetDailyStockInput{
			CanteenID: req.CanteenID,
			StockDate: stockDate,
			Actor:     actorFromRequest(r),
		}
		for _, item := range req.Items {
			input.Items = append(input.Items, stock.SetDailyStockItem{
				MenuItemID: item.MenuItemID,
				Qty:        item.Qty,
			})
		}

		if err := svc.SetDailyStock(r.Context(), input); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"stockDate": stockDate,
			"items":     len(input.Items),
		})
	}
}

type copyDailyStockRequest struct {
	CanteenID uuid.UUID `json:"canteenId" validate:"required"`
	FromDate  string    `json:"fromDate" validate:"required"`
}

// CopyDailyStock seeds the target date from a prior day's initial quantities.
func CopyDailyStock(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		toDate, err := parseStockDate(chi.URLParam(r, "date"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req copyDailyStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		fromDate, err := parseStockDate(req.FromDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.CopyDailyStock(r.Context(), req.CanteenID, fromDate, toDate, actorFromRequest(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{
			"stockDate":  toDate,
			"copiedFrom": fromDate,
		})
	}
}

// MarkStockUnavailable forces a single entry unavailable for the rest of the day.
func MarkStockUnavailable(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entryID, err := parsePathUUID(r, "entryId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.MarkUnavailable(r.Context(), entryID, actorFromRequest(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "unavailable"})
	}
}

// CanteenAvailability is the read-side projection customers browse.
func CanteenAvailability(svc stock.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		canteenID, err := parsePathUUID(r, "canteenId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		stockDate, err := parseStockDate(r.URL.Query().Get("date"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.Availability(r.Context(), canteenID, stockDate)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"canteenId": canteenID,
			"stockDate": stockDate,
			"items":     items,
		})
	}
}

func parseStockDate(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "stock date is required")
	}
	if _, err := time.Parse("2006-01-02", raw); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "stock date must be YYYY-MM-DD")
	}
	return raw, nil
}
