// Command loadtest drives a chathub server with many concurrent WebSocket
// clients sharing one room and reports throughput while it runs.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
)

type testConfig struct {
	URL         string
	Connections int
	Rate        float64 // messages per second per client
	Duration    time.Duration
	Report      time.Duration
}

type counters struct {
	connected    atomic.Int64
	failed       atomic.Int64
	messagesSent atomic.Int64
	messagesRecv atomic.Int64
	errors       atomic.Int64
}

func parseFlags() *testConfig {
	cfg := &testConfig{}
	flag.StringVar(&cfg.URL, "url", "ws://localhost:8765/ws", "WebSocket URL of the chat server")
	flag.IntVar(&cfg.Connections, "connections", 50, "number of concurrent clients")
	flag.Float64Var(&cfg.Rate, "rate", 1.0, "messages per second per client")
	flag.DurationVar(&cfg.Duration, "duration", 30*time.Second, "how long to sustain the load")
	flag.DurationVar(&cfg.Report, "report", 5*time.Second, "progress report interval")
	flag.Parse()
	return cfg
}

type frame map[string]any

func readFrame(conn *websocket.Conn) (frame, error) {
	_, data, err := conn.ReadMessage()
	if err != nil {
		return nil, err
	}
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, err
	}
	return f, nil
}

// awaitAction reads frames until one carries the wanted action, returning it.
func awaitAction(conn *websocket.Conn, action string) (frame, error) {
	for i := 0; i < 64; i++ {
		f, err := readFrame(conn)
		if err != nil {
			return nil, err
		}
		if f["action"] == action {
			return f, nil
		}
		if f["action"] == "error" {
			return nil, fmt.Errorf("server error: %v", f["message"])
		}
	}
	return nil, fmt.Errorf("never received %q", action)
}

// setupRoom opens a bootstrap connection that creates the shared room.
func setupRoom(url string) (string, error) {
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return "", fmt.Errorf("dial: %w", err)
	}
	defer conn.Close()

	if _, err := awaitAction(conn, "welcome"); err != nil {
		return "", err
	}
	if err := conn.WriteJSON(frame{"action": "create_room", "name": "loadtest"}); err != nil {
		return "", err
	}
	created, err := awaitAction(conn, "room_created")
	if err != nil {
		return "", err
	}
	room, ok := created["room"].(map[string]any)
	if !ok {
		return "", fmt.Errorf("malformed room_created frame: %v", created)
	}
	id, _ := room["id"].(string)
	if id == "" {
		return "", fmt.Errorf("room_created carried no id")
	}
	return id, nil
}

// runClient joins the shared room and sends messages at the configured rate
// until the context ends. The read side is drained continuously so the server
// never sees this client as slow.
func runClient(ctx context.Context, id int, cfg *testConfig, roomID string, stats *counters) {
	conn, _, err := websocket.DefaultDialer.Dial(cfg.URL, nil)
	if err != nil {
		stats.failed.Add(1)
		return
	}
	defer conn.Close()

	if _, err := awaitAction(conn, "welcome"); err != nil {
		stats.failed.Add(1)
		return
	}
	username := fmt.Sprintf("load-%d-%d", os.Getpid(), id)
	if err := conn.WriteJSON(frame{"action": "set_username", "username": username}); err != nil {
		stats.failed.Add(1)
		return
	}
	if _, err := awaitAction(conn, "username_set"); err != nil {
		stats.failed.Add(1)
		return
	}
	if err := conn.WriteJSON(frame{"action": "join", "room_id": roomID}); err != nil {
		stats.failed.Add(1)
		return
	}
	if _, err := awaitAction(conn, "joined"); err != nil {
		stats.failed.Add(1)
		return
	}
	stats.connected.Add(1)
	defer stats.connected.Add(-1)

	// Drain everything the room fans out.
	go func() {
		for {
			if _, err := readFrame(conn); err != nil {
				return
			}
			stats.messagesRecv.Add(1)
		}
	}()

	interval := time.Duration(float64(time.Second) / cfg.Rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seq := 0
	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(time.Second)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return
		case <-ticker.C:
			seq++
			msg := frame{
				"action":  "message",
				"room_id": roomID,
				"text":    fmt.Sprintf("%s #%d", username, seq),
			}
			if err := conn.WriteJSON(msg); err != nil {
				stats.errors.Add(1)
				return
			}
			stats.messagesSent.Add(1)
		}
	}
}

func report(stats *counters, elapsed time.Duration) {
	log.Printf("[%8s] connected=%d failed=%d sent=%d received=%d errors=%d",
		elapsed.Truncate(time.Second),
		stats.connected.Load(),
		stats.failed.Load(),
		stats.messagesSent.Load(),
		stats.messagesRecv.Load(),
		stats.errors.Load(),
	)
}

func main() {
	cfg := parseFlags()

	log.Printf("Load test: %d clients, %.1f msg/s each, %s against %s",
		cfg.Connections, cfg.Rate, cfg.Duration, cfg.URL)

	roomID, err := setupRoom(cfg.URL)
	if err != nil {
		log.Fatalf("Failed to set up the shared room: %v", err)
	}
	log.Printf("Shared room: %s", roomID)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Duration)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Printf("Received shutdown signal, stopping...")
		cancel()
	}()

	start := time.Now()
	var wg sync.WaitGroup
	stats := &counters{}
	for i := 0; i < cfg.Connections; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			runClient(ctx, id, cfg, roomID, stats)
		}(i)
		// Spread dials out instead of bursting them all at once.
		time.Sleep(5 * time.Millisecond)
	}

	ticker := time.NewTicker(cfg.Report)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			report(stats, time.Since(start))
		case <-ctx.Done():
			wg.Wait()
			report(stats, time.Since(start))
			sent := stats.messagesSent.Load()
			recv := stats.messagesRecv.Load()
			secs := time.Since(start).Seconds()
			log.Printf("Done: %.0f msg/s sent, %.0f frames/s received, %d connection failures",
				float64(sent)/secs, float64(recv)/secs, stats.failed.Load())
			return
		}
	}
}
