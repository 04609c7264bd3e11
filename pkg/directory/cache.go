package directory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"moleswap/pkg/types"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const chainsKey = "moleswap:chains"

// CachedSource serves the chain list from redis, falling back to source on a miss
type CachedSource struct {
	source ChainSource
	client redis.Cmdable
	ttl    time.Duration
	key    string
	logger *logrus.Logger
}

// NewCachedSource wraps source with a redis cache entry that expires after ttl
func NewCachedSource(source ChainSource, client redis.Cmdable, ttl time.Duration, namespace string, logger *logrus.Logger) (*CachedSource, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	key := chainsKey
	if namespace != "" {
		key += ":" + namespace
	}
	return &CachedSource{source: source, client: client, ttl: ttl, key: key, logger: logger}, nil
}

// ListChains implements ChainSource
func (c *CachedSource) ListChains(ctx context.Context) ([]types.Chain, error) {
	val, err := c.client.Get(ctx, c.key).Bytes()
	switch {
	case err == nil:
		var chains []types.Chain
		if err := json.Unmarshal(val, &chains); err == nil {
			return chains, nil
		}
		c.logger.WithField("key", c.key).Warn("Discarding unreadable chain cache entry")
	case err != redis.Nil:
		c.logger.WithError(err).Warn("Chain cache unavailable")
	}

	chains, err := c.source.ListChains(ctx)
	if err != nil {
		return nil, err
	}

	b, err := json.Marshal(chains)
	if err != nil {
		return nil, fmt.Errorf("marshal chains: %w", err)
	}
	if err := c.client.Set(ctx, c.key, b, c.ttl).Err(); err != nil {
		c.logger.WithError(err).Warn("Failed to cache chain list")
	}
	return chains, nil
}

// Invalidate drops the cached chain list
func (c *CachedSource) Invalidate(ctx context.Context) error {
	if err := c.client.Del(ctx, c.key).Err(); err != nil {
		return fmt.Errorf("delete chain cache: %w", err)
	}
	return nil
}
