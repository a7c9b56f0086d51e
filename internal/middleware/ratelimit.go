package middleware

import (
	"log"
	"net/http"
	"strconv"

	"github.com/falconsupport/api/internal/ratelimit"
	"github.com/gin-gonic/gin"
)

// RateLimit applies the limiter's window for action per client IP. Limiter
// errors fail open.
func RateLimit(l *ratelimit.Limiter, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := l.Check(c.Request.Context(), c.ClientIP(), action)
		if err != nil {
			log.Printf("Warning: rate limiter unavailable for %s: %v", action, err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(result.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(result.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt, 10))

		if !result.Allowed {
			RecordRateLimited(action)
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "resetAt": result.ResetAt})
			c.Abort()
			return
		}
		c.Next()
	}
}
