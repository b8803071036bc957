package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/observability"
)

// Metrics records request counts and latency per route template. Scrapes of
// /metrics itself are not counted.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.FullPath() == "/metrics" {
			c.Next()
			return
		}
		start := time.Now()
		observability.HTTPInflight.Inc()
		defer observability.HTTPInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		observability.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(c.Writer.Status())).Inc()
		observability.HTTPLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
