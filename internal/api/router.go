package api

import (
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/supportstack/tickets/internal/realtime/server"
)

// NewRouter builds the broadcast server's Echo instance: the realtime
// endpoint, health probes, and the metrics scrape target.
func NewRouter(log zerolog.Logger, rdb *redis.Client, realtime *server.Server) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	realtime.Register(e)

	healthHandler := NewHealthHandler(rdb)
	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", healthHandler.Readiness)

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	return e
}
