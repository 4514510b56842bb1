package ratelimit

import (
	"log/slog"
	"time"

	"bizportal/internal/config"
)

// Limiters groups the general API limiter and the stricter chat limiter.
type Limiters struct {
	API  Limiter
	Chat Limiter
}

// New uses Redis when a URL is configured so limits hold across instances.
func New(cfg config.RateLimitConfig) (Limiters, error) {
	window := time.Duration(cfg.WindowSeconds) * time.Second
	if cfg.RedisURL == "" {
		slog.Info("rate limiting in memory", "requests", cfg.Requests, "window", window)
		return Limiters{
			API:  NewMemory(cfg.Requests, window),
			Chat: NewMemory(cfg.ChatRequests, window),
		}, nil
	}

	client, err := NewRedisClient(cfg.RedisURL)
	if err != nil {
		return Limiters{}, err
	}
	slog.Info("rate limiting via redis", "addr", client.Options().Addr, "requests", cfg.Requests, "window", window)
	return Limiters{
		API:  NewRedis(client, "rl:api", cfg.Requests, window),
		Chat: NewRedis(client, "rl:chat", cfg.ChatRequests, window),
	}, nil
}
