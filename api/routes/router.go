package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/marisolvega/campuseats-backend/api/controllers"
	"github.com/marisolvega/campuseats-backend/api/middleware"
	"github.com/marisolvega/campuseats-backend/internal/admission"
	"github.com/marisolvega/campuseats-backend/internal/orders"
	"github.com/marisolvega/campuseats-backend/internal/stock"
	"github.com/marisolvega/campuseats-backend/pkg/config"
	"github.com/marisolvega/campuseats-backend/pkg/logger"
	"github.com/marisolvega/campuseats-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbPinger controllers.Pinger,
	cachePinger controllers.Pinger,
	idempotencyStore redis.IdempotencyStore,
	ordersService orders.Service,
	stockService stock.Service,
	admissionService admission.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Actor(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbPinger, cachePinger))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Idempotency(idempotencyStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Post("/", controllers.PlaceOrder(ordersService, logg))
			r.Get("/{orderId}", controllers.OrderDetail(ordersService, logg))
		})

		r.Route("/vendor", func(r chi.Router) {
			r.Route("/orders", func(r chi.Router) {
				r.Post("/redeem", controllers.RedeemOrder(ordersService, logg))
				r.Post("/{orderId}/accept", controllers.AcceptOrder(ordersService, logg))
				r.Post("/{orderId}/reject", controllers.RejectOrder(ordersService, logg))
				r.Post("/{orderId}/ready", controllers.MarkOrderReady(ordersService, logg))
				r.Post("/{orderId}/complete", controllers.CompleteOrder(ordersService, logg))
			})
			r.Route("/stock", func(r chi.Router) {
				r.Put("/{date}", controllers.SetDailyStock(stockService, logg))
				r.Post("/{date}/copy", controllers.CopyDailyStock(stockService, logg))
				r.Put("/entries/{entryId}/unavailable", controllers.MarkStockUnavailable(stockService, logg))
			})
			r.Route("/{vendorId}", func(r chi.Router) {
				r.Get("/orders", controllers.VendorOrders(ordersService, logg))
				r.Get("/capacity", controllers.VendorCapacity(admissionService, logg))
				r.Put("/capacity", controllers.SetVendorCapacity(admissionService, logg))
			})
		})

		r.Get("/canteens/{canteenId}/availability", controllers.CanteenAvailability(stockService, logg))
	})

	return r
}
