package server

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"github.com/pscheid92/livevote/internal/domain"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // overlays and viewer pages connect from anywhere
	},
}

func (s *Server) handleLiveness(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReadiness(c echo.Context) error {
	if err := s.pool.Ping(c.Request().Context()); err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleWebSocket(c echo.Context) error {
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("failed to upgrade WebSocket: %w", err)
	}

	if err := s.hub.Register(conn); err != nil {
		slog.Warn("Failed to register client", "error", err)
		conn.Close()
		return nil
	}

	// Read pump - blocks until the remote closes or errors.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(conn)
	return nil
}

func (s *Server) handleStatus(c echo.Context) error {
	status, err := s.app.StatusReport(c.Request().Context())
	if err != nil {
		slog.Error("Failed to build status report", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to build status report"})
	}
	return c.JSON(http.StatusOK, status)
}

type blockRequest struct {
	UserID          string `json:"user_id"`
	Username        string `json:"user_name"`
	DurationSeconds *int64 `json:"duration_seconds"`
}

func (req blockRequest) ref() (domain.UserRef, error) {
	if req.UserID == "" && req.Username == "" {
		return domain.UserRef{}, fmt.Errorf("either user_id or user_name must be specified")
	}
	return domain.UserRef{UserID: req.UserID, Username: req.Username}, nil
}

func (s *Server) handleBlock(c echo.Context) error {
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	ref, err := req.ref()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	var duration *time.Duration
	if req.DurationSeconds != nil {
		d := time.Duration(*req.DurationSeconds) * time.Second
		duration = &d
	}

	err = s.app.BlockUser(c.Request().Context(), ref, duration)
	if errors.Is(err, domain.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}
	if err != nil {
		slog.Error("Failed to block user", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to block user"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "blocked"})
}

func (s *Server) handleUnblock(c echo.Context) error {
	var req blockRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	ref, err := req.ref()
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	err = s.app.UnblockUser(c.Request().Context(), ref)
	if errors.Is(err, domain.ErrUserNotFound) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "user not found"})
	}
	if err != nil {
		slog.Error("Failed to unblock user", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to unblock user"})
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "unblocked"})
}
