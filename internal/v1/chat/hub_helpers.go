package chat

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// validateOrigin checks if the request origin is in the allowed list.
// Returns nil if allowed, error if blocked.
func validateOrigin(r *http.Request, allowedOrigins []string) error {
	origin := r.Header.Get("Origin")
	if origin == "" {
		slog.Debug("No origin header - allowing non-browser client")
		return nil // Allow non-browser clients (e.g., for testing)
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		slog.Warn("Invalid origin URL", "origin", origin, "error", err)
		return fmt.Errorf("invalid origin URL: %w", err)
	}

	for _, allowed := range allowedOrigins {
		allowedURL, err := url.Parse(allowed)
		if err != nil {
			continue
		}
		// Check if the scheme and host match
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			slog.Debug("Origin validated", "origin", origin)
			return nil
		}
	}

	slog.Warn("Origin not in allowed list", "origin", origin, "allowedOrigins", allowedOrigins)
	return fmt.Errorf("origin not allowed: %s", origin)
}

// parseAllowedOrigins splits a comma-separated origin list, falling back to
// the defaults when the value is empty.
func parseAllowedOrigins(raw string, defaults []string) []string {
	if raw == "" {
		return defaults
	}
	parts := strings.Split(raw, ",")
	origins := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			origins = append(origins, p)
		}
	}
	if len(origins) == 0 {
		return defaults
	}
	return origins
}

// upgradeWebSocket handles the WebSocket upgrade process.
// This is isolated I/O glue (0% coverage acceptable).
func (h *Hub) upgradeWebSocket(c *gin.Context) (wsConnection, error) {
	upgrader := websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			return validateOrigin(r, h.allowedOrigins) == nil
		},
		WriteBufferPool: &sync.Pool{
			New: func() any {
				return make([]byte, 4096)
			},
		},
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("Failed to upgrade connection", "error", err)
		return nil, err
	}

	return conn, nil
}
