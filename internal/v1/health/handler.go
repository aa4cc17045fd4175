package health

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// StatsProvider reports live counts from the chat engine's registry.
type StatsProvider interface {
	Stats() (clients int, rooms int)
}

// Handler manages health check endpoints
type Handler struct {
	stats StatsProvider
}

// NewHandler creates a new health check handler
func NewHandler(stats StatsProvider) *Handler {
	return &Handler{stats: stats}
}

// LivenessResponse represents the liveness probe response
type LivenessResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ReadinessResponse represents the readiness probe response
type ReadinessResponse struct {
	Status    string            `json:"status"`
	Checks    map[string]string `json:"checks"`
	Clients   int               `json:"clients"`
	Rooms     int               `json:"rooms"`
	Timestamp string            `json:"timestamp"`
}

// Liveness handles the liveness probe endpoint
// GET /health/live
// Returns 200 if the process is alive (no dependency checks)
func (h *Handler) Liveness(c *gin.Context) {
	response := LivenessResponse{
		Status:    "alive",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, response)
}

// Readiness handles the readiness probe endpoint
// GET /health/ready
// Returns 200 once the chat engine is wired up; 503 before that.
func (h *Handler) Readiness(c *gin.Context) {
	checks := make(map[string]string)

	status := "ready"
	statusCode := http.StatusOK

	var clients, rooms int
	if h.stats == nil {
		checks["registry"] = "unavailable"
		status = "unavailable"
		statusCode = http.StatusServiceUnavailable
	} else {
		checks["registry"] = "healthy"
		clients, rooms = h.stats.Stats()
	}

	response := ReadinessResponse{
		Status:    status,
		Checks:    checks,
		Clients:   clients,
		Rooms:     rooms,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	c.JSON(statusCode, response)
}
