// Package ratelimit implements a per-API-key sliding-window rate limiter
// backed by Redis sorted sets, grounded on the sliding-window-log pattern:
// each request's timestamp is added to a per-(key,route) sorted set, the
// window is trimmed with ZREMRANGEBYSCORE, and ZCARD gives an exact count —
// avoiding the burst-at-boundary error of fixed buckets.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Limiter enforces a distinct sliding window per route.
type Limiter struct {
	client *redis.Client
}

// New returns a Limiter using an existing redis.Client.
func New(client *redis.Client) *Limiter {
	return &Limiter{client: client}
}

// Window names one route's rate limit: at most Limit requests per Period.
type Window struct {
	Route  string
	Limit  int
	Period time.Duration
}

// Allow reports whether apiKey may make one more request against window,
// recording the request if allowed. It fails open (allows the request) if
// Redis is unreachable, since availability of the engine matters more than
// strict limit enforcement during a Redis outage.
func (l *Limiter) Allow(ctx context.Context, apiKey string, w Window) (bool, error) {
	key := fmt.Sprintf("ratelimit:%s:%s", apiKey, w.Route)
	now := time.Now()
	cutoff := now.Add(-w.Period)

	pipe := l.client.TxPipeline()
	pipe.ZRemRangeByScore(ctx, key, "-inf", fmt.Sprintf("%d", cutoff.UnixNano()))
	count := pipe.ZCard(ctx, key)
	_, err := pipe.Exec(ctx)
	if err != nil {
		return true, fmt.Errorf("ratelimit: checking window: %w", err)
	}

	if count.Val() >= int64(w.Limit) {
		return false, nil
	}

	member := fmt.Sprintf("%d-%s", now.UnixNano(), uuid.NewString())
	addPipe := l.client.TxPipeline()
	addPipe.ZAdd(ctx, key, redis.Z{Score: float64(now.UnixNano()), Member: member})
	addPipe.Expire(ctx, key, w.Period)
	if _, err := addPipe.Exec(ctx); err != nil {
		return true, fmt.Errorf("ratelimit: recording request: %w", err)
	}
	return true, nil
}
