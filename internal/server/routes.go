package server

import (
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/livevote/internal/metrics"
)

func (s *Server) registerRoutes() {
	// Observability endpoints
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(metrics.Handler(s.registry)))

	// Viewer connection
	s.echo.GET("/ws", s.handleWebSocket)

	// Admin API, meant to sit behind an external control surface
	s.echo.GET("/api/status", s.handleStatus)
	s.echo.POST("/api/block", s.handleBlock)
	s.echo.POST("/api/unblock", s.handleUnblock)
}
