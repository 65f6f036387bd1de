package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/maxshopweb/checkout/internal/domain"
)

func NewRedisQuoteCache(client *redis.Client) *RedisQuoteCache {
	return &RedisQuoteCache{
		client:  client,
		baseTTL: 15 * time.Minute,
	}
}

// RedisQuoteCache mirrors firm quotes keyed by postal code alone. Volume,
// weight and declared value vary per cart, so a cached price is an
// approximation shared by every cart shipping to the same postal code; the
// short TTL bounds how long that approximation lives.
type RedisQuoteCache struct {
	client  *redis.Client
	baseTTL time.Duration
}

func (r RedisQuoteCache) Get(ctx context.Context, postalCode string) (*domain.ShippingQuote, error) {
	key := cacheKey(postalCode)

	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("redis get failed: %w", err)
	}

	var quote domain.ShippingQuote
	if err2 := json.Unmarshal(data, &quote); err2 != nil {
		return nil, fmt.Errorf("unmarshal quote failed: %w", err2)
	}

	return &quote, nil
}

func (r RedisQuoteCache) Set(ctx context.Context, quote *domain.ShippingQuote) error {
	key := cacheKey(quote.PostalCode)
	jsonQuote, err := json.Marshal(quote)
	if err != nil {
		return fmt.Errorf("marshal quote failed: %w", err)
	}

	jitter := time.Duration(rand.Intn(5)) * time.Minute
	ttl := r.baseTTL + jitter
	if err := r.client.Set(ctx, key, string(jsonQuote), ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisQuoteCache) Delete(ctx context.Context, postalCode string) error {
	if err := r.client.Del(ctx, cacheKey(postalCode)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}

func cacheKey(postalCode string) string {
	return fmt.Sprintf("quote:%s", postalCode)
}
