package chat

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// startTestServer runs the hub behind a real gin router and returns the
// ws:// URL for it.
func startTestServer(t *testing.T, hub *Hub) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", hub.ServeWs)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	t.Cleanup(func() { _ = hub.Shutdown(context.Background()) })

	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var frame map[string]any
	require.NoError(t, json.Unmarshal(data, &frame))
	return frame
}

func readAction(t *testing.T, conn *websocket.Conn, action string) map[string]any {
	t.Helper()
	for i := 0; i < 16; i++ {
		frame := readFrame(t, conn)
		if frame["action"] == action {
			return frame
		}
	}
	t.Fatalf("never received action %q", action)
	return nil
}

func sendJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(v))
}

func TestIntegration_TwoClientsChat(t *testing.T) {
	hub := newTestHub()
	url := startTestServer(t, hub)

	alice := dial(t, url)
	bob := dial(t, url)

	assert.Equal(t, "welcome", readFrame(t, alice)["action"])
	assert.Equal(t, "welcome", readFrame(t, bob)["action"])

	sendJSON(t, alice, gin.H{"action": "set_username", "username": "alice"})
	require.Equal(t, "username_set", readFrame(t, alice)["action"])

	// Name collisions answer over the wire.
	sendJSON(t, bob, gin.H{"action": "set_username", "username": "alice"})
	frame := readFrame(t, bob)
	require.Equal(t, "error", frame["action"])
	assert.Contains(t, frame["message"], "already taken")

	sendJSON(t, bob, gin.H{"action": "set_username", "username": "bob"})
	require.Equal(t, "username_set", readFrame(t, bob)["action"])

	sendJSON(t, alice, gin.H{"action": "create_room", "name": "general"})
	created := readFrame(t, alice)
	require.Equal(t, "room_created", created["action"])
	roomID := created["room"].(map[string]any)["id"].(string)

	sendJSON(t, alice, gin.H{"action": "join", "room_id": roomID})
	readAction(t, alice, "joined")
	sendJSON(t, bob, gin.H{"action": "join", "room_id": roomID})
	readAction(t, bob, "joined")

	// Alice sees bob arrive.
	joinedFrame := readAction(t, alice, "user_joined")
	for joinedFrame["user"] != "bob" {
		joinedFrame = readAction(t, alice, "user_joined")
	}

	sendJSON(t, alice, gin.H{"action": "message", "room_id": roomID, "text": "hello over the wire"})
	got := readAction(t, bob, "message")
	assert.Equal(t, "alice", got["from"])
	assert.Equal(t, "hello over the wire", got["text"])

	// Private traffic flows alongside room traffic.
	sendJSON(t, bob, gin.H{"action": "private_message", "to": "alice", "text": "psst"})
	pm := readAction(t, alice, "private_message")
	assert.Equal(t, "bob", pm["from"])
	readAction(t, bob, "private_message_sent")

	// Bob drops; alice is told.
	require.NoError(t, bob.Close())
	left := readAction(t, alice, "user_left")
	assert.Equal(t, "bob", left["user"])
}

func TestIntegration_FrameSizeBoundary(t *testing.T) {
	cfg := testConfig()
	cfg.MaxMessageSize = 256
	hub := NewHub(cfg)
	url := startTestServer(t, hub)

	conn := dial(t, url)
	readFrame(t, conn) // welcome

	// One byte over the limit is rejected but the session survives.
	oversize := `{"action":"list_rooms","pad":"` + strings.Repeat("x", 256) + `"}`
	require.Greater(t, len(oversize), 256)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(oversize)))
	frame := readFrame(t, conn)
	require.Equal(t, "error", frame["action"])
	assert.Equal(t, "Message too large. Max size: 256 bytes", frame["message"])

	sendJSON(t, conn, gin.H{"action": "list_rooms"})
	assert.Equal(t, "rooms_list", readFrame(t, conn)["action"])
}

func TestIntegration_OriginRejected(t *testing.T) {
	cfg := testConfig()
	cfg.AllowedOrigins = "http://allowed.example"
	hub := NewHub(cfg)
	url := startTestServer(t, hub)

	header := map[string][]string{"Origin": {"http://evil.example"}}
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	if conn != nil {
		_ = conn.Close()
	}
	require.NotNil(t, resp)
	defer resp.Body.Close()
	assert.Equal(t, 403, resp.StatusCode)
}
