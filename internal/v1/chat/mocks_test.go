package chat

import (
	"context"
	"encoding/json"
	"net"
	"sync"
	"testing"
	"time"

	"chathub/internal/v1/config"

	"github.com/gorilla/websocket"
)

// MockConnection implements wsConnection
type MockConnection struct {
	ReadMessageFunc  func() (int, []byte, error)
	WriteMessageFunc func(int, []byte) error
	CloseFunc        func() error
}

func (m *MockConnection) ReadMessage() (int, []byte, error) {
	if m.ReadMessageFunc != nil {
		return m.ReadMessageFunc()
	}
	return 0, nil, nil
}

func (m *MockConnection) WriteMessage(messageType int, data []byte) error {
	if m.WriteMessageFunc != nil {
		return m.WriteMessageFunc(messageType, data)
	}
	return nil
}

func (m *MockConnection) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *MockConnection) SetWriteDeadline(_ time.Time) error {
	return nil
}

// scriptedConn is a wsConnection whose reads are fed by the test and whose
// writes are captured for assertion. Close unblocks a pending read, the same
// way closing a real connection does.
type scriptedConn struct {
	reads  chan []byte
	writes chan []byte
	closed chan struct{}
	once   sync.Once
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{
		reads:  make(chan []byte, 16),
		writes: make(chan []byte, 256),
		closed: make(chan struct{}),
	}
}

func (s *scriptedConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-s.reads:
		return websocket.TextMessage, data, nil
	case <-s.closed:
		return 0, nil, net.ErrClosed
	}
}

func (s *scriptedConn) WriteMessage(_ int, data []byte) error {
	select {
	case <-s.closed:
		return net.ErrClosed
	default:
	}
	// Keep a copy; the writer may reuse its buffer.
	cp := make([]byte, len(data))
	copy(cp, data)
	select {
	case s.writes <- cp:
	default:
	}
	return nil
}

func (s *scriptedConn) Close() error {
	s.once.Do(func() { close(s.closed) })
	return nil
}

func (s *scriptedConn) SetWriteDeadline(_ time.Time) error {
	return nil
}

// send feeds one inbound frame to the connection's read loop.
func (s *scriptedConn) send(raw string) {
	s.reads <- []byte(raw)
}

// recvFrame returns the next frame written to the connection, decoded.
func (s *scriptedConn) recvFrame(t *testing.T) map[string]any {
	t.Helper()
	select {
	case data := <-s.writes:
		var frame map[string]any
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("invalid frame %q: %v", data, err)
		}
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a frame")
		return nil
	}
}

// recvAction reads frames until one carries the wanted action. Lets tests
// assert on a broadcast without caring about interleaved frames.
func (s *scriptedConn) recvAction(t *testing.T, action string) map[string]any {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case data := <-s.writes:
			var frame map[string]any
			if err := json.Unmarshal(data, &frame); err != nil {
				t.Fatalf("invalid frame %q: %v", data, err)
			}
			if frame["action"] == action {
				return frame
			}
		case <-deadline:
			t.Fatalf("timed out waiting for action %q", action)
			return nil
		}
	}
}

func testConfig() *config.Config {
	return &config.Config{
		Host:                "localhost",
		Port:                "8765",
		MaxMessageSize:      config.DefaultMaxMessageSize,
		ClientQueueCapacity: config.DefaultClientQueueCapacity,
	}
}

func newTestHub() *Hub {
	return NewHub(testConfig())
}

// session is one scripted client connection running against a hub.
type session struct {
	conn *scriptedConn
	done chan struct{}
}

// startSession opens a scripted connection on the hub and consumes the
// welcome frame.
func startSession(t *testing.T, h *Hub) *session {
	t.Helper()
	s := &session{
		conn: newScriptedConn(),
		done: make(chan struct{}),
	}
	go func() {
		h.HandleConnection(context.Background(), s.conn)
		close(s.done)
	}()

	welcome := s.conn.recvFrame(t)
	if welcome["action"] != "welcome" {
		t.Fatalf("expected welcome frame first, got %v", welcome)
	}
	return s
}

// close drops the connection and waits for the handler to finish.
func (s *session) close(t *testing.T) {
	t.Helper()
	_ = s.conn.Close()
	select {
	case <-s.done:
	case <-time.After(2 * time.Second):
		t.Fatal("connection handler did not finish")
	}
}
