// Package http provides the HTTP server for the chat relay.
package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/AyeshaKanwal90/ChatAI/internal/config"
	"github.com/AyeshaKanwal90/ChatAI/internal/logger"
	"github.com/AyeshaKanwal90/ChatAI/internal/service"
	v1 "github.com/AyeshaKanwal90/ChatAI/internal/transport/http/v1"
	"github.com/AyeshaKanwal90/ChatAI/internal/transport/ws"
)

// NewServer creates and configures the HTTP server: the REST and streaming chat
// API plus the WebSocket binding.
func NewServer(svc *service.Service, cfg *config.Config, log *logger.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	// Middleware
	e.Use(requestLogger(log))
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:  []string{"*"},
		ExposeHeaders: []string{"X-Conversation-Id"},
	}))

	// Handlers
	v1Handler := v1.NewHandler(svc, log)
	wsHandler := ws.NewHandler(svc, cfg, log)

	// Register Routes
	v1Handler.RegisterRoutes(e)
	wsHandler.RegisterRoutes(e)

	return e
}

func requestLogger(log *logger.Logger) echo.MiddlewareFunc {
	httpLog := log.With("component", "http")
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			if v.Error != nil {
				httpLog.Warn("request failed", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency, "error", v.Error)
				return nil
			}
			httpLog.Info("request", "method", v.Method, "uri", v.URI, "status", v.Status, "latency", v.Latency)
			return nil
		},
	})
}
