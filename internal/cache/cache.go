// Package cache provides the token metadata cache used by the market data
// adapter. Callers depend on the Cache interface; the process picks Redis when
// configured and falls back to an in-memory TTL cache.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrCacheMiss is returned by Get when the key is absent or expired
var ErrCacheMiss = errors.New("cache miss")

// Cache is a string key/value store with per-entry TTL
type Cache interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Clear(ctx context.Context) error
}

// Key prefixes
const (
	PrefixTokenPrice = "token:%s:price"
	PrefixTokenInfo  = "token:%s:info"
)

// Default TTLs
const (
	DefaultPriceTTL = 30 * time.Second
	DefaultInfoTTL  = 5 * time.Minute
)

// TokenPriceKey returns the cache key for a token's price data
func TokenPriceKey(tokenAddress string) string {
	return fmt.Sprintf(PrefixTokenPrice, tokenAddress)
}

// TokenInfoKey returns the cache key for a token's metadata
func TokenInfoKey(tokenAddress string) string {
	return fmt.Sprintf(PrefixTokenInfo, tokenAddress)
}

// GetJSON reads key and unmarshals it into dest
func GetJSON(ctx context.Context, c Cache, key string, dest interface{}) error {
	data, err := c.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(data), dest); err != nil {
		return fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return nil
}

// SetJSON marshals value and stores it under key
func SetJSON(ctx context.Context, c Cache, key string, value interface{}, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.Set(ctx, key, string(data), ttl)
}

func encodeValue(value interface{}) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	default:
		data, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to marshal value: %w", err)
		}
		return string(data), nil
	}
}
