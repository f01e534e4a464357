package redis

import (
	"context"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// luaReleaseIfMatch deletes the lock only while it still holds our token, so
// a lock that expired and was taken by another request is left alone.
const luaReleaseIfMatch = `
local lockKey = KEYS[1]
local token = ARGV[1]
if redis.call('GET', lockKey) == token then
  return redis.call('DEL', lockKey)
end
return 0
`

// CheckoutLock serialises one user's checkouts so a double-submit is
// turned away early. Stock and coupon limits are enforced by the database
// transaction either way.
type CheckoutLock struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewCheckoutLock(rdb *rd.Client, ttl time.Duration) *CheckoutLock {
	return &CheckoutLock{rdb: rdb, ttl: ttl}
}

// Acquire returns false when another checkout of the same user holds the lock.
func (l *CheckoutLock) Acquire(ctx context.Context, userID, token string) (bool, error) {
	return l.rdb.SetNX(ctx, CheckoutLockKey(userID), token, l.ttl).Result()
}

// Release drops the lock if token still owns it.
func (l *CheckoutLock) Release(ctx context.Context, userID, token string) error {
	_, err := l.rdb.Eval(ctx, luaReleaseIfMatch, []string{CheckoutLockKey(userID)}, token).Int()
	return err
}
