package chat

import (
	"context"
	"fmt"
	"time"

	"chathub/internal/v1/config"
	"chathub/internal/v1/logging"
	"chathub/internal/v1/metrics"
	"chathub/internal/v1/protocol"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const welcomeMessage = "Welcome to chat! Please choose a unique username (3-20 characters)."

// Hub serves as the central coordinator: it accepts connections, runs the
// per-connection state machine, and owns the registry every room dispatcher
// and handler works through.
type Hub struct {
	registry       *Registry
	handlers       map[string]actionHandler
	maxMessageSize int64
	queueCapacity  int
	allowedOrigins []string
}

// NewHub creates a new Hub and configures it with its dependencies.
func NewHub(cfg *config.Config) *Hub {
	h := &Hub{
		registry:       newRegistry(),
		maxMessageSize: cfg.MaxMessageSize,
		queueCapacity:  cfg.ClientQueueCapacity,
		allowedOrigins: parseAllowedOrigins(cfg.AllowedOrigins, []string{"http://localhost:3000"}),
	}
	// Fixed action dispatch table; the connection loop never branches on
	// action names itself.
	h.handlers = map[string]actionHandler{
		protocol.ActionSetUsername:    h.handleSetUsername,
		protocol.ActionCreateRoom:     h.handleCreateRoom,
		protocol.ActionListRooms:      h.handleListRooms,
		protocol.ActionJoin:           h.handleJoin,
		protocol.ActionLeave:          h.handleLeave,
		protocol.ActionMessage:        h.handleMessage,
		protocol.ActionPrivateMessage: h.handlePrivateMessage,
	}
	return h
}

// Stats implements health.StatsProvider.
func (h *Hub) Stats() (clients int, rooms int) {
	return h.registry.Stats()
}

// ServeWs upgrades the HTTP request and runs the connection to completion.
func (h *Hub) ServeWs(c *gin.Context) {
	conn, err := h.upgradeWebSocket(c)
	if err != nil {
		return // upgrade failure already answered the request
	}

	ctx := c.Request.Context()
	if cid, ok := c.Get(string(logging.CorrelationIDKey)); ok {
		ctx = context.WithValue(ctx, logging.CorrelationIDKey, cid)
	}

	h.HandleConnection(ctx, conn)
}

// HandleConnection registers a client for an established connection, emits
// the welcome frame, and reads frames until the peer goes away. The deferred
// unregister also covers the slow-client eviction path having torn the
// client down concurrently: unregister is idempotent.
func (h *Hub) HandleConnection(ctx context.Context, conn wsConnection) {
	client := newClient(conn, h.queueCapacity)
	ctx = context.WithValue(ctx, logging.ClientIDKey, client.id)

	h.registry.AddClient(client)
	metrics.IncConnection()
	go client.writePump()

	logging.Info(ctx, "client connected")
	defer func() {
		h.unregister(client)
		logging.Info(ctx, "client disconnected")
	}()

	client.enqueue(protocol.MustMarshal(protocol.Welcome{
		Action:  protocol.ActionWelcome,
		Message: welcomeMessage,
	}))

	h.readLoop(ctx, client)
}

// readLoop is the per-connection state machine: every protocol or handler
// failure answers with an error frame and keeps the session alive; only a
// transport error ends it.
func (h *Hub) readLoop(ctx context.Context, client *Client) {
	for {
		_, raw, err := client.conn.ReadMessage()
		if err != nil {
			return
		}

		// Oversize frames are rejected before parsing.
		if int64(len(raw)) > h.maxMessageSize {
			h.sendError(client, fmt.Sprintf("Message too large. Max size: %d bytes", h.maxMessageSize))
			continue
		}

		req, err := protocol.ParseRequest(raw)
		if err != nil {
			h.sendError(client, "invalid json")
			continue
		}

		handler, known := h.handlers[req.Action]
		if !known {
			logging.Warn(ctx, "unknown action", zap.String("action", req.Action))
			h.sendError(client, fmt.Sprintf("unknown action %s", req.Action))
			continue
		}

		h.dispatchAction(ctx, client, req, handler)
	}
}

// dispatchAction runs one handler under the generic failure catch: nothing a
// handler does may kill the connection loop.
func (h *Hub) dispatchAction(ctx context.Context, client *Client, req *protocol.ClientRequest, handler actionHandler) {
	start := time.Now()
	status := "ok"

	defer func() {
		if rec := recover(); rec != nil {
			status = "panic"
			logging.Error(ctx, "handler panic", zap.String("action", req.Action), zap.Any("panic", rec))
			h.sendError(client, "handler error: "+truncate(fmt.Sprint(rec), 100))
		}
		metrics.ActionDuration.WithLabelValues(req.Action).Observe(time.Since(start).Seconds())
		metrics.ActionsProcessed.WithLabelValues(req.Action, status).Inc()
	}()

	if err := handler(ctx, client, req); err != nil {
		status = "error"
		logging.Error(ctx, "handler error", zap.String("action", req.Action), zap.Error(err))
		h.sendError(client, "handler error: "+truncate(err.Error(), 100))
	}
}

// unregister tears a client down: registry removal, user_left broadcasts,
// then writer cancellation. Safe to call from both the connection handler's
// exit path and the eviction path; only the first call does anything.
func (h *Hub) unregister(client *Client) {
	ok, name, left := h.registry.RemoveClient(client)
	if !ok {
		return
	}

	if name != "" {
		ts := nowTS()
		for _, room := range left {
			room.post(protocol.UserLeft{
				Action: protocol.ActionUserLeft,
				RoomID: room.id,
				User:   name,
				Ts:     ts,
			})
		}
	}

	client.shutdown()
	metrics.DecConnection()
}

// evictSlowClient handles a member whose outbound queue was full at fan-out:
// one terminal error frame straight to the transport, then unregister.
func (h *Hub) evictSlowClient(room *Room, client *Client) {
	logging.Warn(room.logCtx(), "client too slow, disconnecting", zap.String("client_id", client.id))
	metrics.SlowClientEvictions.Inc()

	client.writeTerminal(protocol.MustMarshal(protocol.NewError("Too slow, disconnecting")))
	h.unregister(client)
}

// Shutdown stops every room dispatcher (draining their queues) and closes
// every remaining connection.
func (h *Hub) Shutdown(ctx context.Context) error {
	logging.Info(ctx, "shutting down hub")

	rooms := h.registry.Rooms()
	for _, room := range rooms {
		room.Close()
	}

	clients := h.registry.Clients()
	for _, client := range clients {
		_ = client.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "Server shutting down"))
		h.unregister(client)
	}

	logging.Info(ctx, "hub shut down", zap.Int("rooms", len(rooms)), zap.Int("clients", len(clients)))
	return nil
}

// truncate clips a string for user-visible error detail.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
