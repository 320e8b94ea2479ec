// Package ratelimit caps analysis requests per client IP with a Redis counter.
package ratelimit

import (
	"context"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "pillscope:rate_limit:"

// windowScript bumps the counter and gives it a TTL whenever it has none, so a
// key can never outlive its window.
var windowScript = redis.NewScript(`
local count = redis.call('INCR', KEYS[1])
if redis.call('TTL', KEYS[1]) < 0 then
	redis.call('EXPIRE', KEYS[1], ARGV[1])
end
return count
`)

// Connect builds a client from a redis:// URL.
func Connect(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	return redis.NewClient(opts), nil
}

// Middleware allows at most qps requests per client IP in each one-second
// window. The counter lives in Redis so limits hold across replicas. When Redis
// is unavailable the request is let through and the error logged.
func Middleware(client *redis.Client, qps int, logger *log.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if client == nil || qps <= 0 {
			c.Next()
			return
		}

		key := keyPrefix + c.ClientIP()
		// A client hanging up must not leave a counter without a TTL.
		ctx := context.WithoutCancel(c.Request.Context())

		count, err := windowScript.Run(ctx, client, []string{key}, 1).Int64()
		if err != nil {
			logger.Warn("rate limiter unavailable", "key", key, "err", err)
			c.Next()
			return
		}

		if count > int64(qps) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate_limited",
				"qps":   qps,
			})
			return
		}
		c.Next()
	}
}
