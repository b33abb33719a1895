package middleware

import (
	"context"
	"net/http"
	"strconv"

	"market-gateway/internal/domain/actor"
	"market-gateway/internal/redis"
	"market-gateway/internal/transport/httpdto"

	"github.com/gin-gonic/gin"
)

// ActorLimiter decides whether an actor may perform one more request.
// redis.RateLimiter's AllowPeek and AllowDequeue have this shape.
type ActorLimiter func(ctx context.Context, r actor.Receiver) (*redis.RateLimitResult, error)

// ActorRateLimitMiddleware limits requests per actor, taken from the :number
// and :role path parameters. A nil limiter lets everything through.
func ActorRateLimitMiddleware(limit ActorLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limit == nil {
			c.Next()
			return
		}

		receiver, err := actor.NewReceiver(c.Param("number"), c.Param("role"))
		if err != nil {
			// the handler reports the bad receiver
			c.Next()
			return
		}

		result, err := limit(c.Request.Context(), receiver)
		if err != nil {
			c.JSON(http.StatusInternalServerError, httpdto.NewErrorResponse("rate limit error", httpdto.CodeInternal))
			c.Abort()
			return
		}

		setRateLimitHeaders(c, result)

		if !result.Allowed {
			c.JSON(http.StatusTooManyRequests, httpdto.NewErrorResponse("rate limit exceeded", httpdto.CodeRateLimited))
			c.Abort()
			return
		}

		c.Next()
	}
}

// setRateLimitHeaders sets standard rate limit response headers
func setRateLimitHeaders(c *gin.Context, result *redis.RateLimitResult) {
	c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	c.Header("X-RateLimit-Reset", strconv.FormatInt(int64(result.ResetIn.Seconds()), 10))
}
