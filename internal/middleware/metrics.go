package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mhollis-dev/fieldops-api/internal/service"
)

// Metrics records one observation per request. Route templates are preferred
// over raw paths to keep label cardinality bounded.
func Metrics(metrics *service.MetricsService) gin.HandlerFunc {
	if metrics == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, c.Writer.Status(), time.Since(start))
	}
}
