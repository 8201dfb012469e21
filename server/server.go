package server

import (
	"context"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// Options configures New.
type Options struct {
	// Addr is the listen address. Default ":8080".
	Addr string
}

// Server bundles an echo instance with the registered handler.
type Server struct {
	echo *echo.Echo
	addr string
}

// New builds a ready-to-start server around a handler.
func New(h *Handler, optFns ...func(o *Options)) *Server {
	opts := Options{Addr: ":8080"}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	h.RegisterRoutes(e)

	return &Server{echo: e, addr: opts.Addr}
}

// Start listens and serves until Shutdown or a listener error.
func (s *Server) Start() error {
	return s.echo.Start(s.addr)
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
