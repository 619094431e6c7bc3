// Package cache provides Redis-based caching for fetched candle series.
// When Redis is unavailable the cache degrades to a pass-through and the
// caller falls back to the exchange API.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"coinone-trading-bot/internal/coinone"
)

// ErrCacheMiss is returned when the requested series is not cached.
var ErrCacheMiss = errors.New("cache: miss")

// Config holds the Redis connection settings.
type Config struct {
	Enabled  bool   `json:"enabled"`
	Address  string `json:"address"` // Default: localhost:6379
	Password string `json:"password"`
	DB       int    `json:"db"`
	PoolSize int    `json:"pool_size"` // Default: 10
}

// DefaultConfig returns a disabled local-Redis configuration.
func DefaultConfig() *Config {
	return &Config{
		Address:  "localhost:6379",
		PoolSize: 10,
	}
}

// CandleCache stores candle windows keyed by market, interval, and range.
// Closed ranges are immutable, so entries only expire to bound memory.
type CandleCache struct {
	client *redis.Client
	ttl    time.Duration
	logger zerolog.Logger
}

// DefaultTTL bounds how long a cached range is kept.
const DefaultTTL = 24 * time.Hour

// NewCandleCache connects to Redis and verifies connectivity. A failed
// ping is logged but not fatal; the cache starts in degraded mode and
// every lookup misses until Redis recovers.
func NewCandleCache(cfg *Config, logger zerolog.Logger) (*CandleCache, error) {
	if cfg == nil || !cfg.Enabled {
		return nil, errors.New("cache: redis is not enabled in configuration")
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	log := logger.With().Str("component", "CandleCache").Logger()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn().Err(err).Msg("Redis unreachable, cache starts degraded")
	} else {
		log.Info().Str("address", cfg.Address).Msg("Redis connected")
	}

	return &CandleCache{
		client: client,
		ttl:    DefaultTTL,
		logger: log,
	}, nil
}

// CandleKey builds the cache key for one fetched range.
func CandleKey(quote, target string, interval coinone.Interval, start, end int64) string {
	return fmt.Sprintf("candles:%s:%s:%s:%d:%d", quote, target, interval, start, end)
}

// Get returns the cached series for the range, or ErrCacheMiss.
func (c *CandleCache) Get(ctx context.Context, quote, target string, interval coinone.Interval, start, end int64) ([]coinone.Candle, error) {
	key := CandleKey(quote, target, interval, start, end)

	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache lookup failed")
		return nil, ErrCacheMiss
	}

	var candles []coinone.Candle
	if err := json.Unmarshal(raw, &candles); err != nil {
		// A corrupt entry is dropped so the next fetch repopulates it.
		c.client.Del(ctx, key)
		return nil, ErrCacheMiss
	}
	return candles, nil
}

// Set stores a fetched series. Failures are logged and swallowed; caching
// is best effort.
func (c *CandleCache) Set(ctx context.Context, quote, target string, interval coinone.Interval, start, end int64, candles []coinone.Candle) {
	key := CandleKey(quote, target, interval, start, end)

	raw, err := json.Marshal(candles)
	if err != nil {
		c.logger.Error().Err(err).Str("key", key).Msg("Cache encode failed")
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		c.logger.Debug().Err(err).Str("key", key).Msg("Cache store failed")
	}
}

// Close releases the Redis connection.
func (c *CandleCache) Close() error {
	return c.client.Close()
}
