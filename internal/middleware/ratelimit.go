package middleware

import (
	"fmt"
	"net/http"
	"time"

	gmredis "genmart/pkg/redis"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	rd "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// luaRateLimit is an atomic sliding window over a sorted set.
// KEYS[1]=window key, ARGV: now, window start, window seconds, member, limit.
// Returns the request count inside the window, or -1 when the limit is hit.
const luaRateLimit = `
local key = KEYS[1]
local now = tonumber(ARGV[1])
local windowStart = tonumber(ARGV[2])
local windowSec = tonumber(ARGV[3])
local member = ARGV[4]

redis.call('ZREMRANGEBYSCORE', key, '0', windowStart)

local count = redis.call('ZCARD', key)

if count < tonumber(ARGV[5]) then
  redis.call('ZADD', key, now, member)
  redis.call('EXPIRE', key, windowSec)
  return count + 1
else
  return -1
end
`

// RedisRateLimit limits each caller of a route group to limit requests per
// window. Callers are keyed by user id when authenticated, otherwise by IP.
// Redis errors let the request through.
func RedisRateLimit(rdb *rd.Client, scope string, limit int, window time.Duration, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		key := gmredis.RateLimitKey(scope, "ip", c.ClientIP())
		if actor, ok := ActorFrom(c); ok {
			key = gmredis.RateLimitKey(scope, "user", actor.UserID)
		}

		now := time.Now()
		windowSec := int64(window.Seconds())
		if windowSec < 1 {
			windowSec = 1
		}
		windowStart := now.UnixMilli() - windowSec*1000
		member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())

		res, err := rdb.Eval(c.Request.Context(), luaRateLimit, []string{key},
			now.UnixMilli(), windowStart, windowSec, member, limit).Int()
		if err != nil {
			logger.Warn("rate limit check failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		if res < 0 {
			c.Header("Retry-After", fmt.Sprint(windowSec))
			abort(c, http.StatusTooManyRequests, "too many requests, please retry later")
			return
		}
		c.Next()
	}
}
