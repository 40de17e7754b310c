package controllers

import (
	"net/http"

	"github.com/marisolvega/campuseats-backend/api/responses"
	"github.com/marisolvega/campuseats-backend/api/validators"
	"github.com/marisolvega/campuseats-backend/internal/admission"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
)

// VendorCapacity reports the advisory admission numbers for a vendor.
func VendorCapacity(svc admission.Service, logg *logger.Logger) http.HandlerFunc {
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

		capacity, err := svc.Capacity(r.Context(), vendorID, variant)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, capacity)
	}
}

type setCapacityRequest struct {
	OrderLimit *int `json:"orderLimit" validate:"omitempty,min=0"`
}

// SetVendorCapacity updates the vendor's live order limit. A null limit
// removes the cap entirely.
func SetVendorCapacity(svc admission.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		vendorID, err := parsePathUUID(r, "vendorId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setCapacityRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.SetLimit(r.Context(), vendorID, req.OrderLimit, actorFromRequest(r)); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"vendorId":   vendorID,
			"orderLimit": req.OrderLimit,
		})
	}
}
