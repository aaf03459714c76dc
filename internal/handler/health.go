package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/minipool/internal/health"
)

type healthReporter interface {
	Status() ([]health.CheckStatus, bool)
}

// HealthHandler reports the background pool checks.
type HealthHandler struct {
	checks healthReporter
}

// NewHealthHandler creates a new HealthHandler.
func NewHealthHandler(checks healthReporter) *HealthHandler {
	return &HealthHandler{checks: checks}
}

// Register mounts GET /health on the given router group.
func (h *HealthHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/health", h.Status)
}

// Status handles GET /health. It answers 503 while any check is degraded.
func (h *HealthHandler) Status(c *gin.Context) {
	checks, ok := h.checks.Status()
	status, code := health.StatusHealthy, http.StatusOK
	if !ok {
		status, code = health.StatusDegraded, http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{"status": status, "checks": checks})
}
