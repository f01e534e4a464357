package redis

import (
	"context"
	"errors"
	"time"

	rd "github.com/redis/go-redis/v9"
)

// SettingsBlob caches the serialised store settings.
type SettingsBlob struct {
	rdb *rd.Client
}

func NewSettingsBlob(rdb *rd.Client) *SettingsBlob {
	return &SettingsBlob{rdb: rdb}
}

// Get returns the cached bytes; found=false on a miss.
func (s *SettingsBlob) Get(ctx context.Context) ([]byte, bool, error) {
	b, err := s.rdb.Get(ctx, SettingsKey()).Bytes()
	if errors.Is(err, rd.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (s *SettingsBlob) Set(ctx context.Context, b []byte, ttl time.Duration) error {
	return s.rdb.Set(ctx, SettingsKey(), b, ttl).Err()
}

// Invalidate drops the cached copy; the next read goes to the database.
func (s *SettingsBlob) Invalidate(ctx context.Context) error {
	return s.rdb.Del(ctx, SettingsKey()).Err()
}
