package middleware

import (
	"fmt"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"visa-portal/internal/common/errors"
	"visa-portal/internal/common/logger"
	"visa-portal/internal/common/metrics"
)

// Logger logs one line per request and feeds the HTTP metrics. Routes are
// labelled by their pattern so ids do not explode label cardinality.
func Logger(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		metrics.HTTPRequests.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(latency.Seconds())

		fields := map[string]interface{}{
			"method":    c.Request.Method,
			"path":      c.Request.URL.Path,
			"status":    status,
			"latencyMs": latency.Milliseconds(),
			"requestId": GetRequestID(c),
			"clientIp":  c.ClientIP(),
		}
		if len(c.Errors) > 0 {
			fields["error"] = c.Errors.String()
		}
		switch {
		case status >= 500:
			log.Error("request failed", fields)
		case status >= 400:
			log.Warn("request rejected", fields)
		default:
			log.Info("request", fields)
		}
	}
}

// Recovery turns a handler panic into a 500 error envelope.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic recovered", map[string]interface{}{
					"panic":     fmt.Sprint(r),
					"path":      c.Request.URL.Path,
					"requestId": GetRequestID(c),
					"stack":     string(debug.Stack()),
				})
				AbortWithError(c, errors.NewInternalError(fmt.Errorf("panic: %v", r)))
			}
		}()
		c.Next()
	}
}
