package middleware

import (
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"visa-portal/internal/common/errors"
)

// RateLimit rejects requests once the shared limiter is exhausted. Letter
// rendering shells out to the optimizer, so it gets a process-wide budget.
func RateLimit(limiter *rate.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !limiter.Allow() {
			c.Header("Retry-After", "1")
			AbortWithError(c, errors.NewRateLimitedError(c.FullPath()))
			return
		}
		c.Next()
	}
}

func Gzip() gin.HandlerFunc {
	return gzip.Gzip(gzip.BestSpeed)
}
