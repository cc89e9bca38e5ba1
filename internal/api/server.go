// Package api exposes the evaluation engine over HTTP. All endpoints are
// read-only; writes happen through the ingest loader.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"ranklab/internal/apperr"
	"ranklab/internal/engine"
	"ranklab/internal/observability"
)

// Options for creating a Server.
type Options struct {
	Engine *engine.Engine
	Logger zerolog.Logger

	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Server wraps the echo instance serving the evaluation API.
type Server struct {
	Echo *echo.Echo
}

// NewServer builds the echo instance with middleware, error mapping and
// all routes registered.
func NewServer(opts Options) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	if opts.ReadTimeout > 0 {
		e.Server.ReadTimeout = opts.ReadTimeout
	}
	if opts.WriteTimeout > 0 {
		e.Server.WriteTimeout = opts.WriteTimeout
	}

	e.HTTPErrorHandler = apperr.ErrorHandler(opts.Logger)

	e.Use(RequestLogger(opts.Logger))
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	handler := NewHandler(opts.Engine)
	handler.Register(e.Group("/api/v1"))

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})
	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	return &Server{Echo: e}
}

// Start blocks serving on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	return s.Echo.Start(addr)
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.Echo.Shutdown(ctx)
}
