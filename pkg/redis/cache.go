package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache provides typed caching utilities on top of Client.
type Cache struct {
	client *Client
	prefix string
}

// NewCache creates a new cache helper.
func NewCache(client *Client, prefix string) *Cache {
	return &Cache{
		client: client,
		prefix: prefix,
	}
}

// Get retrieves a cached value.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	if !c.client.Enabled() {
		return false, nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	data, err := c.client.Redis().Get(ctx, fullKey).Bytes()
	if err != nil {
		// Key not found is not an error
		return false, nil
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("cache unmarshal failed: %w", err)
	}

	return true, nil
}

// Set stores a value in cache with TTL.
func (c *Cache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.client.Enabled() {
		return nil
	}

	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Set(ctx, fullKey, data, ttl).Err()
}

// Delete removes a cached value.
func (c *Cache) Delete(ctx context.Context, key string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullKey := fmt.Sprintf("%s:cache:%s", c.prefix, key)
	return c.client.Redis().Del(ctx, fullKey).Err()
}

// DeletePattern removes every cached value whose key matches the glob
// pattern. Used to drop all of a site's scores after a recompute.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) error {
	if !c.client.Enabled() {
		return nil
	}

	fullPattern := fmt.Sprintf("%s:cache:%s", c.prefix, pattern)
	iter := c.client.Redis().Scan(ctx, 0, fullPattern, 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Redis().Del(ctx, iter.Val()).Err(); err != nil {
			return err
		}
	}
	return iter.Err()
}

// Predefined TTLs
const (
	TTLShort  = 1 * time.Minute
	TTLMedium = 10 * time.Minute
	TTLLong   = 1 * time.Hour
	TTLDaily  = 24 * time.Hour
)

// Common cache key generators

// MatchScoreKey keys one site's score for one normalized profile under
// one scoring config.
func MatchScoreKey(siteID, profileHash, configHash string) string {
	return fmt.Sprintf("match:%s:%s:%s", siteID, profileHash, configHash)
}

// SiteMatchPattern matches every cached score for one site.
func SiteMatchPattern(siteID string) string {
	return fmt.Sprintf("match:%s:*", siteID)
}

// SiteMetricsKey keys a site's aggregated metric rows.
func SiteMetricsKey(siteID string) string {
	return fmt.Sprintf("metrics:%s", siteID)
}

// RecommendationKey keys a full recommendation response by request digest.
func RecommendationKey(requestHash string) string {
	return fmt.Sprintf("reco:%s", requestHash)
}
