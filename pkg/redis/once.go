package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaMarkOnce sets the marker with SETNX so that only the first caller wins.
const luaMarkOnce = `
local key = KEYS[1]
local ttlSec = tonumber(ARGV[1])

if redis.call('SETNX', key, '1') == 1 then
  redis.call('EXPIRE', key, ttlSec)
  return 1
end
return 0
`

// MarkOnce reports true the first time it is called for (scope, id) within
// ttl and false on every repeat.
func MarkOnce(ctx context.Context, rdb *rd.Client, scope, id string, ttl time.Duration) (bool, error) {
	ttlSeconds := int64(ttl / time.Second)
	if ttlSeconds <= 0 {
		ttlSeconds = 1
	}
	n, err := rdb.Eval(ctx, luaMarkOnce, []string{OnceKey(scope, id)}, ttlSeconds).Int()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Forget removes a marker so a failed side effect can be retried.
func Forget(ctx context.Context, rdb *rd.Client, scope, id string) error {
	return rdb.Del(ctx, OnceKey(scope, id)).Err()
}
