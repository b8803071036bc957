package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/indoormap-backend/internal/platform/ctxutil"
	"github.com/yungbote/indoormap-backend/internal/platform/logger"
)

// RequestLogger writes one line per request. Healthchecks and metric scrapes
// are only logged when they fail.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	if log == nil {
		return func(c *gin.Context) { c.Next() }
	}
	log = log.With("component", "RequestLogger")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if quietRoute(route) && status < 400 {
			return
		}

		fields := []interface{}{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"bytes", c.Writer.Size(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		fields = append(fields, ctxutil.GetTraceData(c.Request.Context()).Fields()...)
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		switch {
		case status >= 500:
			log.Error("http request", fields...)
		case status >= 400:
			log.Warn("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	}
}

func quietRoute(route string) bool {
	return route == "/healthcheck" || route == "/metrics"
}
