package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"bizportal/internal/metrics"

	"github.com/gin-gonic/gin"
)

// KeyFunc picks the bucket for a request, e.g. user id or client IP.
type KeyFunc func(c *gin.Context) string

// Middleware rejects requests over the limit with 429. Limiter errors let the request through.
func Middleware(l Limiter, scope string, key KeyFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		k := key(c)
		if k == "" {
			k = c.ClientIP()
		}

		d, err := l.Allow(c.Request.Context(), scope+":"+k)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "rate limiter unavailable, allowing request", "error", err, "scope", scope)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(d.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
		if !d.Allowed {
			metrics.RecordRateLimited(scope)
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(d.RetryAfter.Seconds()))))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "too many requests"})
			return
		}
		c.Next()
	}
}
