package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/campus-schedule-api/internal/service"
)

const (
	startedAtKey   = "request_started_at"
	unmatchedRoute = "unmatched"
)

// Metrics observes latency and status per route template. Requests that match
// no route share one label so scanners cannot inflate label cardinality.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(startedAtKey, start)
		c.Next()

		if metricsSvc == nil {
			return
		}
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
