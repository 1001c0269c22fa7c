// Package server exposes the HTTP surface: the WebSocket endpoint for
// viewers, health and metrics endpoints, and the admin API.
package server

import (
	"context"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/pscheid92/livevote/internal/config"
	"github.com/pscheid92/livevote/internal/domain"
	"github.com/pscheid92/livevote/internal/report"
)

// AppService is the application layer contract used by the handlers.
type AppService interface {
	StatusReport(ctx context.Context) (*report.StatusPayload, error)
	BlockUser(ctx context.Context, ref domain.UserRef, duration *time.Duration) error
	UnblockUser(ctx context.Context, ref domain.UserRef) error
}

// Broadcaster is the subset of the hub the WebSocket handler needs.
type Broadcaster interface {
	Register(conn *websocket.Conn) error
	Unregister(conn *websocket.Conn)
}

type Server struct {
	echo     *echo.Echo
	config   *config.Config
	app      AppService
	hub      Broadcaster
	pool     *pgxpool.Pool
	registry *prometheus.Registry
}

func NewServer(cfg *config.Config, app AppService, hub Broadcaster, pool *pgxpool.Pool, registry *prometheus.Registry) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Logger())
	e.Use(middleware.Recover())

	srv := &Server{
		echo:     e,
		config:   cfg,
		app:      app,
		hub:      hub,
		pool:     pool,
		registry: registry,
	}
	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	return s.echo.Start(fmt.Sprintf(":%s", s.config.Port))
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}
