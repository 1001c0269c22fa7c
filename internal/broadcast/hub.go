package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"

	"github.com/pscheid92/livevote/internal/metrics"
	"github.com/pscheid92/livevote/internal/report"
)

const (
	snapshotInterval = 60 * time.Second
	snapshotTimeout  = 5 * time.Second
	commandTimeout   = 5 * time.Second
	stopTimeout      = 10 * time.Second
)

// SnapshotSource produces the full status snapshot pushed on connect and on
// the periodic refresh.
type SnapshotSource interface {
	StatusReport(ctx context.Context) (*report.StatusPayload, error)
}

// hubCmd is the command interface for the Hub actor.
type hubCmd interface{ isHubCmd() }

type baseHubCmd struct{}

func (baseHubCmd) isHubCmd() {}

type registerCmd struct {
	baseHubCmd
	connection   *websocket.Conn
	errorChannel chan error
}

type unregisterCmd struct {
	baseHubCmd
	connection *websocket.Conn
}

type notifyCmd struct {
	baseHubCmd
	data []byte
}

type getClientCountCmd struct {
	baseHubCmd
	replyChannel chan int
}

type stopCmd struct {
	baseHubCmd
}

// Hub owns the connected-client set. A single goroutine processes all
// commands, so the set is never mutated while a broadcast sweep iterates it.
type Hub struct {
	cmdCh      chan hubCmd
	clock      clockwork.Clock
	clients    map[*websocket.Conn]*clientWriter
	snapshots  SnapshotSource
	metrics    *metrics.WebSocketMetrics
	maxClients int
	done       chan struct{}
}

// NewHub creates the hub and starts its actor goroutine. snapshots supplies
// the full status report sent to new clients and on the periodic refresh.
func NewHub(snapshots SnapshotSource, clock clockwork.Clock, m *metrics.WebSocketMetrics, maxClients int) *Hub {
	h := &Hub{
		cmdCh:      make(chan hubCmd, 256),
		clock:      clock,
		clients:    make(map[*websocket.Conn]*clientWriter),
		snapshots:  snapshots,
		metrics:    m,
		maxClients: maxClients,
		done:       make(chan struct{}),
	}
	go h.run()
	return h
}

// Register adds a client and queues a full snapshot for it. Returns an error
// only when the hub is at capacity or stuck.
func (h *Hub) Register(conn *websocket.Conn) error {
	errCh := make(chan error, 1)
	h.cmdCh <- registerCmd{connection: conn, errorChannel: errCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case err := <-errCh:
		return err
	case <-timer.Chan():
		return fmt.Errorf("register command timed out after %v", commandTimeout)
	}
}

// Unregister removes a client.
func (h *Hub) Unregister(conn *websocket.Conn) {
	h.cmdCh <- unregisterCmd{connection: conn}
}

// Notify serializes the report once and pushes it to every connected client.
// Clients whose send fails are removed after the sweep completes.
func (h *Hub) Notify(payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("Failed to marshal broadcast message", "error", err)
		return
	}
	h.cmdCh <- notifyCmd{data: data}
}

// ClientCount returns the number of connected clients, or -1 on timeout.
func (h *Hub) ClientCount() int {
	replyCh := make(chan int, 1)
	h.cmdCh <- getClientCountCmd{replyChannel: replyCh}

	timer := h.clock.NewTimer(commandTimeout)
	defer timer.Stop()

	select {
	case count := <-replyCh:
		return count
	case <-timer.Chan():
		slog.Warn("ClientCount timed out", "timeout", commandTimeout)
		return -1
	}
}

// Stop shuts down the hub, closing all client connections. Blocks until the
// actor goroutine has exited or the stop timeout is reached.
func (h *Hub) Stop() {
	h.cmdCh <- stopCmd{}

	timer := h.clock.NewTimer(stopTimeout)
	defer timer.Stop()

	select {
	case <-h.done:
		slog.Info("Hub stopped gracefully")
	case <-timer.Chan():
		slog.Warn("Hub stop timeout exceeded", "timeout", stopTimeout)
	}
}

func (h *Hub) run() {
	ticker := h.clock.NewTicker(snapshotInterval)
	defer ticker.Stop()
	defer close(h.done)

	for {
		select {
		case cmd := <-h.cmdCh:
			switch c := cmd.(type) {
			case registerCmd:
				h.handleRegister(c)
			case unregisterCmd:
				h.handleUnregister(c.connection)
			case notifyCmd:
				h.handleNotify(c.data)
			case getClientCountCmd:
				c.replyChannel <- len(h.clients)
			case stopCmd:
				h.handleStop()
				return
			default:
				slog.Warn("Hub received unknown command type", "command_type", fmt.Sprintf("%T", cmd))
			}
		case <-ticker.Chan():
			h.scheduleSnapshot()
		}
	}
}

func (h *Hub) handleRegister(c registerCmd) {
	if len(h.clients) >= h.maxClients {
		slog.Warn("Rejecting client: max clients reached", "max_clients", h.maxClients)
		c.connection.Close()
		c.errorChannel <- fmt.Errorf("max clients (%d) reached", h.maxClients)
		return
	}

	cw := newClientWriter(c.connection, h.clock)
	h.clients[c.connection] = cw

	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	}
	slog.Debug("Client registered", "total_clients", len(h.clients))
	c.errorChannel <- nil

	// Fetch the snapshot off the actor goroutine; only this client gets it.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		snapshot, err := h.snapshots.StatusReport(ctx)
		if err != nil {
			slog.Error("Failed to build snapshot for new client", "error", err)
			return
		}
		data, err := json.Marshal(snapshot)
		if err != nil {
			slog.Error("Failed to marshal snapshot", "error", err)
			return
		}
		cw.send(data)
	}()
}

func (h *Hub) handleUnregister(conn *websocket.Conn) {
	cw, exists := h.clients[conn]
	if !exists {
		return
	}

	cw.stop()
	delete(h.clients, conn)

	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(float64(len(h.clients)))
	}
	slog.Debug("Client unregistered", "remaining_clients", len(h.clients))
}

func (h *Hub) handleNotify(data []byte) {
	if len(h.clients) == 0 {
		return
	}

	var failed []*websocket.Conn
	for conn, cw := range h.clients {
		if !cw.send(data) {
			failed = append(failed, conn)
		}
	}

	// Reap only after the full sweep; the set is never mutated mid-iteration.
	for _, conn := range failed {
		slog.Warn("Disconnecting client after failed send")
		if h.metrics != nil {
			h.metrics.ClientsEvicted.Inc()
		}
		h.handleUnregister(conn)
	}

	if h.metrics != nil {
		h.metrics.MessagesPublished.Inc()
	}
}

// scheduleSnapshot builds the periodic full snapshot off the actor goroutine
// and feeds it back through the command channel for the sweep.
func (h *Hub) scheduleSnapshot() {
	if len(h.clients) == 0 {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
		defer cancel()

		snapshot, err := h.snapshots.StatusReport(ctx)
		if err != nil {
			slog.Error("Failed to build periodic snapshot", "error", err)
			return
		}
		h.Notify(snapshot)
	}()
}

func (h *Hub) handleStop() {
	slog.Info("Hub shutting down", "clients", len(h.clients))
	for conn, cw := range h.clients {
		cw.stopGraceful("Server shutting down")
		delete(h.clients, conn)
	}
	if h.metrics != nil {
		h.metrics.ActiveConnections.Set(0)
	}
}
