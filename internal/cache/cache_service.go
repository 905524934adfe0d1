// Package cache provides Redis-backed memoization of computed
// indicator series, keyed by (timeframe, symbol, indicator, limit)
// with a short TTL so repeated chart refreshes avoid recomputing
// MACD/RSI/etc. on every request.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"smartchart-ingest/config"
	"smartchart-ingest/internal/logging"

	"github.com/redis/go-redis/v9"
)

// IndicatorCache wraps a Redis client with graceful degradation: a
// miss, a malformed entry, or Redis being unreachable are all
// treated as "not cached" — callers always fall through to a live
// computation, never block on cache health.
type IndicatorCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *logging.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int

	maxFailures int
}

// NewIndicatorCache connects to Redis (or returns a degraded-mode
// cache if the initial ping fails — callers keep working via
// fall-through, just without the speedup).
func NewIndicatorCache(cfg config.RedisConfig, logger *logging.Logger) *IndicatorCache {
	logger = logger.WithComponent("cache")

	if !cfg.Enabled {
		logger.Info("redis disabled, indicator cache running in pass-through mode")
		return &IndicatorCache{ttl: cfg.TTL, logger: logger, maxFailures: 3}
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ic := &IndicatorCache{client: client, ttl: cfg.TTL, logger: logger, maxFailures: 3}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("initial redis connection failed, starting in degraded mode", "error", err)
		return ic
	}

	ic.healthy = true
	logger.Info("redis connected", "address", cfg.Address)
	return ic
}

// IsHealthy reports whether the last Redis operation succeeded.
func (ic *IndicatorCache) IsHealthy() bool {
	ic.mu.RLock()
	defer ic.mu.RUnlock()
	return ic.healthy
}

func (ic *IndicatorCache) recordFailure(err error) {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	ic.failureCount++
	if ic.failureCount >= ic.maxFailures && ic.healthy {
		ic.logger.Warn("marking redis unhealthy after repeated failures", "failures", ic.failureCount, "error", err)
	}
	ic.healthy = ic.failureCount < ic.maxFailures
}

func (ic *IndicatorCache) recordSuccess() {
	ic.mu.Lock()
	defer ic.mu.Unlock()

	if !ic.healthy {
		ic.logger.Info("redis recovered")
	}
	ic.healthy = true
	ic.failureCount = 0
}

// Key builds the cache key for one indicator computation.
func Key(timeframe, symbol, indicator string, limit int) string {
	return fmt.Sprintf("indicator:%s:%s:%s:%d", timeframe, symbol, indicator, limit)
}

// Get decodes the cached JSON value for key into dest. It returns
// false on any miss or failure, including Redis being unreachable —
// callers treat that identically to a genuine cache miss.
func (ic *IndicatorCache) Get(ctx context.Context, key string, dest interface{}) bool {
	if ic.client == nil {
		return false
	}

	raw, err := ic.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			ic.recordFailure(err)
		}
		return false
	}
	ic.recordSuccess()

	if err := json.Unmarshal(raw, dest); err != nil {
		ic.logger.Debug("discarding malformed cache entry", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores value as JSON under key with the configured TTL. A
// write failure is logged at debug level and otherwise ignored — the
// cache is a latency optimization, never a correctness dependency.
func (ic *IndicatorCache) Set(ctx context.Context, key string, value interface{}) {
	if ic.client == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		ic.logger.Debug("failed to encode cache value", "key", key, "error", err)
		return
	}

	if err := ic.client.Set(ctx, key, raw, ic.ttl).Err(); err != nil {
		ic.recordFailure(err)
		ic.logger.Debug("failed to write cache entry", "key", key, "error", err)
		return
	}
	ic.recordSuccess()
}

// Close releases the underlying Redis client, if any.
func (ic *IndicatorCache) Close() error {
	if ic.client == nil {
		return nil
	}
	return ic.client.Close()
}
