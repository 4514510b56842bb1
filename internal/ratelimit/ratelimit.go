// Package ratelimit implements fixed-window limits in Redis with an in-process
// token bucket fallback when no Redis URL is configured.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

// RedisLimiter counts requests per key per window with INCR and EXPIRE.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string, limit int, window time.Duration) *RedisLimiter {
	return &RedisLimiter{client: client, prefix: prefix, limit: limit, window: window, now: time.Now}
}

// NewRedisClient parses a redis:// or rediss:// URL (Upstash works with the latter).
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	opts.DialTimeout = 2 * time.Second
	opts.ReadTimeout = time.Second
	opts.WriteTimeout = time.Second
	return redis.NewClient(opts), nil
}

func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	now := l.now()
	windowStart := now.Truncate(l.window)
	redisKey := l.prefix + ":" + key + ":" + strconv.FormatInt(windowStart.Unix(), 10)

	var incr *redis.IntCmd
	_, err := l.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, redisKey)
		pipe.Expire(ctx, redisKey, l.window+time.Second)
		return nil
	})
	if err != nil {
		return Decision{}, fmt.Errorf("rate limit %s: %w", key, err)
	}

	count := int(incr.Val())
	d := Decision{Limit: l.limit, Remaining: max(0, l.limit-count), Allowed: count <= l.limit}
	if !d.Allowed {
		d.RetryAfter = windowStart.Add(l.window).Sub(now)
	}
	return d, nil
}

// MemoryLimiter keeps a token bucket per key.
type MemoryLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    int
	every    time.Duration
}

func NewMemory(limit int, window time.Duration) *MemoryLimiter {
	if limit <= 0 {
		limit = 1
	}
	return &MemoryLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		every:    window / time.Duration(limit),
	}
}

func (l *MemoryLimiter) get(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.limiters[key]
	if !ok {
		if len(l.limiters) > 10000 {
			l.limiters = make(map[string]*rate.Limiter)
		}
		lim = rate.NewLimiter(rate.Every(l.every), l.limit)
		l.limiters[key] = lim
	}
	return lim
}

func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	lim := l.get(key)
	r := lim.Reserve()
	if delay := r.Delay(); delay > 0 {
		r.Cancel()
		return Decision{Allowed: false, Limit: l.limit, RetryAfter: delay}, nil
	}
	return Decision{Allowed: true, Limit: l.limit, Remaining: int(lim.Tokens())}, nil
}
