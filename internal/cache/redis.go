package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/fjod/go_storefront/internal/domain"
	"github.com/redis/go-redis/v9"
)

const paymentMethodsKey = "payment-methods:active"

func NewRedisCache(client *redis.Client, baseTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:  client,
		baseTTL: baseTTL,
	}
}

type RedisCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisCache) Get(ctx context.Context) ([]domain.PaymentMethod, error) {
	data, err := r.client.Get(ctx, paymentMethodsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var methods []domain.PaymentMethod
	if err2 := json.Unmarshal(data, &methods); err2 != nil {
		return nil, fmt.Errorf("unmarshal payment methods failed: %w", err2)
	}

	return methods, nil
}

func (r RedisCache) Set(ctx context.Context, methods []domain.PaymentMethod) error {
	data, err := json.Marshal(methods)
	if err != nil {
		return fmt.Errorf("marshal payment methods failed: %w", err)
	}

	// up to a third of the base TTL on top
	jitter := time.Duration(rand.Int63n(int64(r.baseTTL/3) + 1))
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, paymentMethodsKey, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context) error {
	if err := r.client.Del(ctx, paymentMethodsKey).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}

	return nil
}
