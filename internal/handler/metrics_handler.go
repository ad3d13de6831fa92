package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/service"
)

// MetricsHandler exposes the scrape and health endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
}

// NewMetricsHandler constructs the handler.
func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Prometheus serves the metrics registry in the exposition format.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health reports liveness. Readiness (database reachability) is wired
// separately so a degraded instance still answers liveness probes.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "fieldops-api"})
}
