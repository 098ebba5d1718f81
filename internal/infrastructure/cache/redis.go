package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/bookshop-io/payments/internal/domain/settlement"
	"github.com/redis/go-redis/v9"
)

// safetyTTL guards against leaked entries if the process dies mid-saga.
// Eviction is always explicit; the TTL is never load-bearing.
const safetyTTL = 24 * time.Hour

type RedisCache struct {
	client *redis.Client
}

func NewRedisCache(client *redis.Client) *RedisCache {
	return &RedisCache{client: client}
}

func (r *RedisCache) Put(ctx context.Context, paymentID string, s *settlement.Settlement) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal settlement: %w", err)
	}
	if err := r.client.Set(ctx, cacheKey(paymentID), data, safetyTTL).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r *RedisCache) Get(ctx context.Context, paymentID string) (*settlement.Settlement, error) {
	data, err := r.client.Get(ctx, cacheKey(paymentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var s settlement.Settlement
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal settlement: %w", err)
	}
	return &s, nil
}

func (r *RedisCache) Evict(ctx context.Context, paymentID string) error {
	if err := r.client.Del(ctx, cacheKey(paymentID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(paymentID string) string {
	return fmt.Sprintf("settlement:%s", paymentID)
}
