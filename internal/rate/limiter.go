package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	KeyPrefix              string
	EnableRegisterThrottle bool
	MaxRegistrations       int
	RegisterWindow         time.Duration
}

// Limiter enforces per-IP and per-principal registration budgets using
// fixed-window Redis counters.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
}

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	return &Limiter{
		redis:  redisClient,
		config: cfg,
	}
}

// CheckRegister consumes one registration from the budget of ip and of
// principal. Empty values are not throttled. Returns [ErrRateLimited] once
// either budget is exhausted for the current window.
func (l *Limiter) CheckRegister(ctx context.Context, ip, principal string) error {
	if !l.config.EnableRegisterThrottle {
		return nil
	}

	if ip != "" {
		count, err := l.incrementWithTTL(ctx, l.registerIPKey(ip), l.config.RegisterWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxRegistrations) {
			return ErrRateLimited
		}
	}

	if principal != "" {
		count, err := l.incrementWithTTL(ctx, l.registerPrincipalKey(principal), l.config.RegisterWindow)
		if err != nil {
			return err
		}
		if count > int64(l.config.MaxRegistrations) {
			return ErrRateLimited
		}
	}

	return nil
}

func (l *Limiter) registerIPKey(ip string) string {
	return l.config.KeyPrefix + ":rl:reg:ip:" + ip
}

func (l *Limiter) registerPrincipalKey(principal string) string {
	return l.config.KeyPrefix + ":rl:reg:p:" + principal
}

func (l *Limiter) incrementWithTTL(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.Expire(ctx, key, ttl).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	return count, nil
}
