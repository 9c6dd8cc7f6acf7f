package match

import (
	"context"
	"time"

	"github.com/clinscout/backend/internal/contracts"
	"github.com/clinscout/backend/pkg/redis"
)

// ScoreCache memoizes MatchScores keyed by (site, normalized profile,
// scoring config hash). The config hash in the key makes stale entries
// unreachable after a config change instead of requiring a flush.
type ScoreCache struct {
	cache      *redis.Cache
	configHash string
	ttl        time.Duration
}

// NewScoreCache creates a ScoreCache bound to one scoring config hash.
func NewScoreCache(cache *redis.Cache, configHash string, ttl time.Duration) *ScoreCache {
	return &ScoreCache{
		cache:      cache,
		configHash: configHash,
		ttl:        ttl,
	}
}

// Get returns a cached score for the site and profile, if present.
func (c *ScoreCache) Get(ctx context.Context, siteID string, profile contracts.TargetProfile) (*contracts.MatchScore, bool, error) {
	key := redis.MatchScoreKey(siteID, profile.Hash(), c.configHash)

	var score contracts.MatchScore
	found, err := c.cache.Get(ctx, key, &score)
	if err != nil || !found {
		return nil, false, err
	}
	return &score, true, nil
}

// Put stores a computed score.
func (c *ScoreCache) Put(ctx context.Context, profile contracts.TargetProfile, score contracts.MatchScore) error {
	key := redis.MatchScoreKey(score.SiteID, profile.Hash(), c.configHash)
	return c.cache.Set(ctx, key, score, c.ttl)
}

// InvalidateSite drops every cached score for one site. Called after a
// metrics recompute touches the site.
func (c *ScoreCache) InvalidateSite(ctx context.Context, siteID string) error {
	return c.cache.DeletePattern(ctx, redis.SiteMatchPattern(siteID))
}
