package handler

import (
	"log/slog"
	"net/http"
	"time"
)

// PortCounter reports how many bridge contexts of a kind are attached.
type PortCounter interface {
	Ports(kind string) int
}

// HealthHandler serves the liveness probe.
type HealthHandler struct {
	startedAt time.Time
	ports     PortCounter
	logger    *slog.Logger
}

// NewHealthHandler creates a HealthHandler. ports may be nil.
func NewHealthHandler(ports PortCounter, logger *slog.Logger) *HealthHandler {
	return &HealthHandler{startedAt: time.Now(), ports: ports, logger: logHandler(logger, "health")}
}

// HealthCheck reports uptime and the attached bridge contexts.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{
		"status":         "ok",
		"timestamp":      time.Now().UTC().Format(time.RFC3339),
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
	}
	if h.ports != nil {
		body["contexts"] = map[string]int{
			"content": h.ports.Ports("content"),
			"popup":   h.ports.Ports("popup"),
		}
	}
	writeJSON(w, http.StatusOK, body)
}
