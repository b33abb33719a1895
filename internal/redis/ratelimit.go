package redis

import (
	"context"
	"fmt"
	"time"

	"market-gateway/internal/domain/actor"

	goredis "github.com/redis/go-redis/v9"
)

// Rate limiting key patterns:
// - ratelimit:{number}:{role}:peek - per-window peek limit
// - ratelimit:{number}:{role}:dequeue - per-window dequeue limit

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	PeekLimit    int           // Max peeks per window
	DequeueLimit int           // Max dequeues per window
	Window       time.Duration // Rate limit window
}

// DefaultRateLimitConfig allows two requests a second on average.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		PeekLimit:    120,
		DequeueLimit: 120,
		Window:       60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client *goredis.Client
	config RateLimitConfig
	script *goredis.Script
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool          // Whether the action is allowed
	Remaining int           // Remaining actions in the window
	ResetIn   time.Duration // Time until the window resets
	Limit     int           // The limit for this action
}

// fixed window counter; the key expires with the window
var rateLimitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = redis.call('GET', key)
	if current == false then
		current = 0
	else
		current = tonumber(current)
	end

	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end

	if current < limit then
		redis.call('INCR', key)
		if ttl == window then
			redis.call('EXPIRE', key, window)
		end
		return {1, limit - current - 1, ttl}
	else
		return {0, 0, ttl}
	end
`)

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(client *goredis.Client, config RateLimitConfig) *RateLimiter {
	return &RateLimiter{
		client: client,
		config: config,
		script: rateLimitScript,
	}
}

func rateLimitKey(r actor.Receiver, action string) string {
	return fmt.Sprintf("ratelimit:%s:%s:%s", r.Number, r.Role, action)
}

// AllowPeek checks if an actor may peek its queue
func (r *RateLimiter) AllowPeek(ctx context.Context, receiver actor.Receiver) (*RateLimitResult, error) {
	return r.checkLimit(ctx, rateLimitKey(receiver, "peek"), r.config.PeekLimit, r.config.Window)
}

// AllowDequeue checks if an actor may dequeue a bundle
func (r *RateLimiter) AllowDequeue(ctx context.Context, receiver actor.Receiver) (*RateLimitResult, error) {
	return r.checkLimit(ctx, rateLimitKey(receiver, "dequeue"), r.config.DequeueLimit, r.config.Window)
}

// checkLimit performs the actual rate limit check atomically in Lua
func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := r.script.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}
	return parseRateLimitResult(result, limit)
}

func parseRateLimitResult(result interface{}, limit int) (*RateLimitResult, error) {
	resultSlice, ok := result.([]interface{})
	if !ok || len(resultSlice) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}
	var values [3]int64
	for i := range values {
		v, ok := resultSlice[i].(int64)
		if !ok {
			return nil, fmt.Errorf("unexpected rate limit result format")
		}
		values[i] = v
	}

	return &RateLimitResult{
		Allowed:   values[0] == 1,
		Remaining: int(values[1]),
		ResetIn:   time.Duration(values[2]) * time.Second,
		Limit:     limit,
	}, nil
}

// ResetActor resets all rate limits for an actor
func (r *RateLimiter) ResetActor(ctx context.Context, receiver actor.Receiver) error {
	return r.client.Del(ctx, rateLimitKey(receiver, "peek"), rateLimitKey(receiver, "dequeue")).Err()
}
