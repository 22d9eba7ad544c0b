package v1

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

// ComponentStatus represents the status of system components
type ComponentStatus string

const (
	StatusUp   ComponentStatus = "up"
	StatusDown ComponentStatus = "down"
)

// HealthStatus represents system health status
type HealthStatus struct {
	Status     string `json:"status"`
	Components struct {
		Postgres ComponentStatus `json:"postgres"`
		Valkey   ComponentStatus `json:"valkey"`
		Weaviate ComponentStatus `json:"weaviate"`
		Ollama   ComponentStatus `json:"ollama"`
	} `json:"components"`
}

func probe(ctx context.Context, ping func(ctx context.Context) error) ComponentStatus {
	if ping == nil {
		return StatusDown
	}
	if err := ping(ctx); err != nil {
		return StatusDown
	}
	return StatusUp
}

// CheckHealth godoc
// @Summary Check system health status
// @Tags system
// @Produce json
// @Success 200 {object} HealthStatus
// @Router /health [get]
func (h *Handler) CheckHealth(c *gin.Context) {
	ctx := c.Request.Context()

	status := &HealthStatus{Status: "healthy"}
	status.Components.Postgres = probe(ctx, h.cfg.Pings.Postgres)
	status.Components.Valkey = probe(ctx, h.cfg.Pings.Valkey)
	status.Components.Weaviate = probe(ctx, h.cfg.Pings.Weaviate)
	status.Components.Ollama = probe(ctx, h.cfg.Pings.Ollama)

	// If any component is down, mark system as unhealthy
	if status.Components.Postgres == StatusDown ||
		status.Components.Valkey == StatusDown ||
		status.Components.Weaviate == StatusDown ||
		status.Components.Ollama == StatusDown {
		status.Status = "unhealthy"
	}

	sendJSON(c, http.StatusOK, status)
}
