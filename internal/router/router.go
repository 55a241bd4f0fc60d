// Package router wires HTTP routes to their handlers and middleware.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/movieon/reservation-core/internal/config"
	"github.com/movieon/reservation-core/internal/handler"
	"github.com/movieon/reservation-core/internal/middleware"
)

// Register wires every route of the service onto e.
//
// Route map:
//
//	GET  /healthz                        liveness probe
//	GET  /v1/screenings/:id/seats        public seat map (cached)
//	POST /v1/payments/callback           gateway webhook (signature-verified)
//	POST /v1/screenings/:id/hold         CUSTOMER, rate-limited hot path
//	POST /v1/reservations/:id/cancel     CUSTOMER
//	GET  /v1/reservations/:id            CUSTOMER
//	GET  /v1/my-reservations             CUSTOMER
//	POST /v1/screenings                  OWNER
func Register(e *echo.Echo, customer *handler.CustomerHandler, payment *handler.PaymentHandler,
	owner *handler.OwnerHandler, public *handler.PublicHandler, jwtSecret string, rdb *redis.Client) {

	e.GET("/healthz", handler.Health)

	// Public browse endpoints: no auth, response-cached.
	cache := middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	e.GET("/v1/screenings/:id/seats", public.SeatMap, cache)

	// The gateway authenticates with its webhook signature, not a JWT.
	e.POST("/v1/payments/callback", payment.Callback)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))

	cust := auth.Group("", middleware.RequireRole(middleware.RoleCustomer))
	rate := middleware.RateLimit(config.LoadRateLimitConfig(), rdb)
	cust.POST("/screenings/:id/hold", customer.HoldSeats, rate)
	cust.POST("/reservations/:id/cancel", customer.Cancel)
	cust.GET("/reservations/:id", customer.Get)
	cust.GET("/my-reservations", customer.ListMine)

	own := auth.Group("", middleware.RequireRole(middleware.RoleOwner))
	own.POST("/screenings", owner.CreateScreening)
}
