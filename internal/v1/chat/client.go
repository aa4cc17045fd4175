package chat

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"chathub/internal/v1/logging"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// writeWait bounds a single transport write so a wedged peer cannot hold the
// write path forever.
const writeWait = 10 * time.Second

// wsConnection defines the interface for WebSocket connection operations.
type wsConnection interface {
	ReadMessage() (messageType int, p []byte, err error) // Read the next message from the connection
	WriteMessage(messageType int, data []byte) error     // Write a message to the connection
	Close() error                                        // Close the connection
	SetWriteDeadline(t time.Time) error
}

// Client represents a single connection to the chat server. Its display name,
// name reservation and joined-room set are guarded by the Registry's mutex;
// only the closed flag has its own lock because room dispatchers touch it
// outside any registry critical section.
type Client struct {
	conn wsConnection
	id   string // connection correlation id, not the display name

	// Guarded by Registry.mu.
	displayName  string
	nameReserved bool
	joined       map[string]struct{}

	outbound chan []byte // bounded; drained only by writePump

	ctx        context.Context
	cancel     context.CancelFunc
	writerDone chan struct{}

	writeMu sync.Mutex // serializes transport writes (writer and terminal error path)

	mu       sync.RWMutex
	closed   bool
	shutOnce sync.Once
}

func newClient(conn wsConnection, queueCapacity int) *Client {
	ctx, cancel := context.WithCancel(context.Background())
	return &Client{
		conn:       conn,
		id:         uuid.NewString(),
		joined:     make(map[string]struct{}),
		outbound:   make(chan []byte, queueCapacity),
		ctx:        ctx,
		cancel:     cancel,
		writerDone: make(chan struct{}),
	}
}

// ID returns the connection correlation id.
func (c *Client) ID() string {
	return c.id
}

// logCtx returns a context carrying this connection's identifiers for the
// structured logger.
func (c *Client) logCtx() context.Context {
	return context.WithValue(context.Background(), logging.ClientIDKey, c.id)
}

// writePump drains the outbound queue to the transport. It terminates quietly
// on cancellation and on transport-closed errors; any other write error is
// logged before terminating. It never touches the registry or any room queue.
func (c *Client) writePump() {
	defer close(c.writerDone)

	for {
		select {
		case <-c.ctx.Done():
			return
		case data := <-c.outbound:
			if err := c.write(websocket.TextMessage, data); err != nil {
				if !isTransportClosed(err) {
					logging.Error(c.logCtx(), "error writing message", zap.Error(err))
				}
				return
			}
		}
	}
}

// write performs one deadline-bounded transport write.
func (c *Client) write(messageType int, data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(messageType, data)
}

// isTransportClosed reports whether a write failed because the peer is gone.
func isTransportClosed(err error) bool {
	if errors.Is(err, net.ErrClosed) || errors.Is(err, websocket.ErrCloseSent) {
		return true
	}
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure,
	)
}

// tryEnqueue offers an envelope to the outbound queue without blocking.
// Returns false only when the queue is full; a disconnected client absorbs
// the envelope silently so fan-out does not re-evict it.
func (c *Client) tryEnqueue(data []byte) bool {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return true
	}

	select {
	case c.outbound <- data:
		return true
	default:
		return false
	}
}

// enqueue places an envelope on the outbound queue, waiting for capacity.
// Gives up silently once the client is torn down.
func (c *Client) enqueue(data []byte) {
	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return
	}

	select {
	case c.outbound <- data:
	case <-c.ctx.Done():
	}
}

// writeTerminal sends a frame directly on the transport, bypassing the
// outbound queue. Used only for the slow-client eviction error.
func (c *Client) writeTerminal(data []byte) {
	if err := c.write(websocket.TextMessage, data); err != nil && !isTransportClosed(err) {
		logging.Warn(c.logCtx(), "error writing terminal frame", zap.Error(err))
	}
}

// shutdown cancels the writer, closes the transport and awaits writer
// termination. Closing the connection also unblocks a pending read so the
// connection handler can finish. Idempotent.
func (c *Client) shutdown() {
	c.shutOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()

		c.cancel()
		_ = c.conn.Close()
		<-c.writerDone
	})
}
