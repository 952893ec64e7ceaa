package catalog

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"
)

// RedisBackend keeps the document under a single string key.
type RedisBackend struct {
	rdb redis.Cmdable
	key string
}

func NewRedisBackend(rdb redis.Cmdable, key string) *RedisBackend {
	return &RedisBackend{rdb: rdb, key: key}
}

func (b *RedisBackend) Source() string { return "redis:" + b.key }

func (b *RedisBackend) Ping(ctx context.Context) error {
	return withTimeout(ctx, pingTimeout, func(ctx context.Context) error {
		return b.rdb.Ping(ctx).Err()
	})
}

func (b *RedisBackend) Read(ctx context.Context) ([]byte, error) {
	var raw []byte
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		raw, err = b.rdb.Get(ctx, b.key).Bytes()
		return err
	})
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoDocument
	}
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (b *RedisBackend) Write(ctx context.Context, doc []byte) error {
	return withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return b.rdb.Set(ctx, b.key, doc, 0).Err()
	})
}

// Quarantine keeps only the latest corrupt document.
func (b *RedisBackend) Quarantine(ctx context.Context, doc []byte) (string, error) {
	key := b.key + ":corrupt"
	err := withTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		return b.rdb.Set(ctx, key, doc, 0).Err()
	})
	if err != nil {
		return "", err
	}
	return "redis:" + key, nil
}
