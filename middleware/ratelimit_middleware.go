package middleware

import (
	"cloudnest/ratelimit"
	"cloudnest/utils"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// RateLimit limits requests per client IP. scope separates the counters of
// different route groups. A failing limiter lets the request through.
func RateLimit(limiter ratelimit.Limiter, scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		result, err := limiter.Allow(c.Request.Context(), scope+":"+c.ClientIP())
		if err != nil {
			log.Warn().Err(err).Str("scope", scope).Msg("Rate limiter unavailable")
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))

		if !result.Allowed() {
			c.Header("Retry-After", strconv.Itoa(int(result.RetryAfter().Seconds())+1))
			utils.TooManyRequestsResponse(c, "Too many requests, please try again later")
			c.Abort()
			return
		}

		c.Next()
	}
}
