package middleware

import (
	"net/http"
	"strings"

	"github.com/marisolvega/campuseats-backend/pkg/logger"
)

const (
	actorIDHeader   = "X-Actor-Id"
	actorRoleHeader = "X-Actor-Role"
	vendorIDHeader  = "X-Vendor-Id"
)

// Actor lifts the gateway-verified identity headers into the request context.
// Authentication itself happens upstream; the coordinator only records who
// acted for event attribution.
func Actor(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			actorID := strings.TrimSpace(r.Header.Get(actorIDHeader))
			role := strings.TrimSpace(r.Header.Get(actorRoleHeader))
			vendorID := strings.TrimSpace(r.Header.Get(vendorIDHeader))

			if actorID != "" {
				ctx = WithActor(ctx, actorID, role)
			}
			if vendorID != "" {
				ctx = WithVendorID(ctx, vendorID)
				if logg != nil {
					ctx = logg.WithVendorID(ctx, vendorID)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
