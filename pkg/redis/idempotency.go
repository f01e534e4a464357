package redis

import (
	"context"
	"strconv"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// IdempotencyStore remembers which order an Idempotency-Key produced.
type IdempotencyStore struct {
	rdb *rd.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *rd.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

// Lookup returns the order id recorded for key. found=false when absent.
func (s *IdempotencyStore) Lookup(ctx context.Context, userID, key string) (uint, bool, error) {
	m, err := s.rdb.HGetAll(ctx, IdempotencyKey(userID, key)).Result()
	if err != nil {
		return 0, false, err
	}
	if len(m) == 0 || m["order_id"] == "" {
		return 0, false, nil
	}
	id, err := strconv.ParseUint(m["order_id"], 10, 64)
	if err != nil {
		return 0, false, err
	}
	return uint(id), true, nil
}

// Remember stores the produced order and refreshes the key TTL.
func (s *IdempotencyStore) Remember(ctx context.Context, userID, key string, orderID uint, orderNo string) error {
	k := IdempotencyKey(userID, key)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, k,
		"order_id", strconv.FormatUint(uint64(orderID), 10),
		"order_no", orderNo,
	)
	if s.ttl > 0 {
		pipe.Expire(ctx, k, s.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}
