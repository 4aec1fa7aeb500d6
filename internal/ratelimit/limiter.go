package ratelimit

import (
	"fmt"

	redis "github.com/redis/go-redis/v9"
	limiter "github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	limiterredis "github.com/ulule/limiter/v3/drivers/store/redis"
)

// DefaultPrefix namespaces limiter counters in Redis.
const DefaultPrefix = "cart:ratelimit"

// ParseRate reads a formatted rate such as "120-M". An empty value yields a zero
// rate, which disables limiting.
func ParseRate(formatted string) (limiter.Rate, error) {
	if formatted == "" {
		return limiter.Rate{}, nil
	}
	rate, err := limiter.NewRateFromFormatted(formatted)
	if err != nil {
		return limiter.Rate{}, fmt.Errorf("parse rate %q: %w", formatted, err)
	}
	return rate, nil
}

// NewRedisLimiter counts requests in Redis so every replica shares one budget.
func NewRedisLimiter(client *redis.Client, prefix string, rate limiter.Rate) (*limiter.Limiter, error) {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	store, err := limiterredis.NewStoreWithOptions(client, limiter.StoreOptions{Prefix: prefix})
	if err != nil {
		return nil, fmt.Errorf("limiter store: %w", err)
	}
	return limiter.New(store, rate), nil
}

// NewMemoryLimiter counts requests in process.
func NewMemoryLimiter(rate limiter.Rate) *limiter.Limiter {
	return limiter.New(memory.NewStore(), rate)
}
