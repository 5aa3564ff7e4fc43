package router // route registration for the admission API

import (
    "github.com/labstack/echo/v4"
    "github.com/redis/go-redis/v9"

    "github.com/iliyamo/screening-admission/internal/config"
    "github.com/iliyamo/screening-admission/internal/handler"
    "github.com/iliyamo/screening-admission/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
// Currently that is only the health check.
func RegisterRoutes(e *echo.Echo) {
    e.GET("/healthz", handler.Health)
}

// RegisterReservations wires the reservation operations under /v1.
// Every endpoint requires a Bearer token carrying the holder id, and
// the mutating endpoints additionally pass through the Redis token
// bucket so a single client cannot monopolize a hot screening.
func RegisterReservations(e *echo.Echo, h *handler.ReservationHandler, jwtSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
    g := e.Group("/v1")
    g.Use(middleware.JWTAuth(jwtSecret))

    limited := g.Group("")
    limited.Use(middleware.NewTokenBucket(rlCfg, rdb))
    limited.POST("/reservations", h.ClaimSeat)
    limited.POST("/reservations/:id/move", h.MoveSeat)

    g.DELETE("/reservations/:id", h.ReleaseReservation)
    g.GET("/reservations/:id", h.GetReservation)
    g.GET("/screenings/resolve", h.ResolveScreening)
    g.GET("/screenings/:id/seats", h.ListAvailableSeats)
}
