package cache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"solana-copy-trader/config"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const keyNamespace = "copytrader:"

// CacheService is the Redis-backed Cache. After maxFailures consecutive
// errors it reports unhealthy and fails fast until a background ping succeeds.
type CacheService struct {
	client       *redis.Client
	logger       zerolog.Logger
	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// NewCacheService connects to Redis. A failed initial ping returns the
// service in degraded mode rather than an error.
func NewCacheService(cfg config.RedisConfig, logger zerolog.Logger) (*CacheService, error) {
	if !cfg.Enabled {
		return nil, fmt.Errorf("redis is not enabled in configuration")
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

	return newCacheService(client, logger), nil
}

func newCacheService(client *redis.Client, logger zerolog.Logger) *CacheService {
	cs := &CacheService{
		client:        client,
		logger:        logger.With().Str("component", "cache").Logger(),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		cs.logger.Warn().Err(err).Msg("Initial Redis connection failed, running degraded")
		return cs
	}

	cs.healthy = true
	cs.lastCheck = time.Now()
	cs.logger.Info().Str("address", client.Options().Addr).Msg("Redis connected")
	return cs
}

// IsHealthy returns whether Redis is currently available
func (cs *CacheService) IsHealthy() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.healthy
}

func (cs *CacheService) recordFailure() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	cs.failureCount++
	if cs.failureCount >= cs.maxFailures {
		if cs.healthy {
			cs.logger.Warn().Int("failures", cs.failureCount).Msg("Redis marked unhealthy")
		}
		cs.healthy = false
	}
}

func (cs *CacheService) recordSuccess() {
	cs.mu.Lock()
	defer cs.mu.Unlock()

	if !cs.healthy {
		cs.logger.Info().Msg("Redis recovered")
	}
	cs.healthy = true
	cs.failureCount = 0
	cs.lastCheck = time.Now()
}

func (cs *CacheService) checkHealth() {
	cs.mu.Lock()
	shouldCheck := !cs.healthy && time.Since(cs.lastCheck) >= cs.checkInterval
	if shouldCheck {
		cs.lastCheck = time.Now()
	}
	cs.mu.Unlock()

	if !shouldCheck {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := cs.client.Ping(ctx).Err(); err == nil {
			cs.recordSuccess()
		}
	}()
}

var errUnavailable = errors.New("redis unavailable")

// Get returns the value or ErrCacheMiss
func (cs *CacheService) Get(ctx context.Context, key string) (string, error) {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return "", errUnavailable
	}

	result, err := cs.client.Get(ctx, keyNamespace+key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrCacheMiss
		}
		cs.recordFailure()
		return "", fmt.Errorf("redis get failed: %w", err)
	}

	cs.recordSuccess()
	return result, nil
}

// Set stores a value with TTL. Non-string values are JSON encoded.
func (cs *CacheService) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return errUnavailable
	}

	data, err := encodeValue(value)
	if err != nil {
		return err
	}

	if err := cs.client.Set(ctx, keyNamespace+key, data, ttl).Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis set failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// Clear removes every key under this service's namespace
func (cs *CacheService) Clear(ctx context.Context) error {
	cs.checkHealth()
	if !cs.IsHealthy() {
		return errUnavailable
	}

	iter := cs.client.Scan(ctx, 0, keyNamespace+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := cs.client.Del(ctx, iter.Val()).Err(); err != nil {
			cs.recordFailure()
			return fmt.Errorf("redis delete failed: %w", err)
		}
	}
	if err := iter.Err(); err != nil {
		cs.recordFailure()
		return fmt.Errorf("redis scan failed: %w", err)
	}

	cs.recordSuccess()
	return nil
}

// Ping checks connectivity
func (cs *CacheService) Ping(ctx context.Context) error {
	return cs.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (cs *CacheService) Close() error {
	return cs.client.Close()
}

// Fallback serves from primary and degrades to secondary while primary is
// unavailable. Misses in primary are not retried against secondary.
type Fallback struct {
	Primary   Cache
	Secondary Cache
}

// Get reads from primary, falling back to secondary on non-miss errors
func (f *Fallback) Get(ctx context.Context, key string) (string, error) {
	v, err := f.Primary.Get(ctx, key)
	if err == nil || errors.Is(err, ErrCacheMiss) {
		return v, err
	}
	return f.Secondary.Get(ctx, key)
}

// Set writes to primary, falling back to secondary on error
func (f *Fallback) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if err := f.Primary.Set(ctx, key, value, ttl); err != nil {
		return f.Secondary.Set(ctx, key, value, ttl)
	}
	return nil
}

// Clear clears both caches
func (f *Fallback) Clear(ctx context.Context) error {
	errSecondary := f.Secondary.Clear(ctx)
	if err := f.Primary.Clear(ctx); err != nil {
		return err
	}
	return errSecondary
}
