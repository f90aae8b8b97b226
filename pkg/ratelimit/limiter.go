package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed   bool
	Count     int
	Limit     int
	WindowEnd time.Time
}

// Limiter decides whether key may perform one more action in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string) Decision
}

// ErrorLogger receives Redis failures; the limiter itself fails open.
type ErrorLogger interface {
	Warn(module, message string, details map[string]interface{})
}

// RedisLimiter is a fixed-window counter kept in one Redis key per caller.
type RedisLimiter struct {
	client  *redis.Client
	logger  ErrorLogger
	prefix  string
	limit   int
	window  time.Duration
	timeout time.Duration
}

func NewRedisLimiter(client *redis.Client, limit int, window time.Duration, logger ErrorLogger) *RedisLimiter {
	if window <= 0 {
		window = time.Minute
	}
	return &RedisLimiter{
		client:  client,
		logger:  logger,
		prefix:  "shyra:ratelimit:",
		limit:   limit,
		window:  window,
		timeout: 250 * time.Millisecond,
	}
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string) Decision {
	if rl.limit <= 0 {
		return Decision{Allowed: true}
	}
	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	var (
		incr *redis.IntCmd
		pttl *redis.DurationCmd
	)
	// The window starts with the first hit; EXPIRE NX in the same transaction
	// leaves no counter without a deadline.
	_, err := rl.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.ExpireNX(ctx, redisKey, rl.window)
		pttl = pipe.PTTL(ctx, redisKey)
		return nil
	})
	if err != nil {
		rl.logRedisError("incr", err)
		return Decision{Allowed: true, Limit: rl.limit}
	}

	counter := int(incr.Val())
	ttl := pttl.Val()
	if ttl <= 0 {
		ttl = rl.window
	}
	return Decision{
		Allowed:   counter <= rl.limit,
		Count:     counter,
		Limit:     rl.limit,
		WindowEnd: time.Now().Add(ttl),
	}
}

func (rl *RedisLimiter) logRedisError(op string, err error) {
	if rl.logger == nil {
		return
	}
	rl.logger.Warn("RateLimiter", "Redis rate limiter error", map[string]interface{}{"op": op, "error": err.Error()})
}

// Unlimited allows everything. Used when Redis is not configured.
type Unlimited struct{}

func (Unlimited) Allow(context.Context, string) Decision {
	return Decision{Allowed: true}
}
