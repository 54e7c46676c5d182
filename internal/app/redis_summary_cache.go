package app

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/medtrail/transfer-service/internal/domain"
	"github.com/redis/go-redis/v9"
)

// RedisSummaryCache caches the listing summary in Redis for a short, configured
// TTL. The TTL is the staleness bound for aggregate counts; individual transfer
// reads always hit the store. Cache errors degrade to a store read, never to a
// request failure.
type RedisSummaryCache struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisSummaryCache creates a summary cache with the given key prefix and TTL.
func NewRedisSummaryCache(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisSummaryCache {
	trimmedPrefix := strings.TrimSpace(prefix)
	if trimmedPrefix == "" {
		trimmedPrefix = "medtrail:transfer_summary"
	}
	trimmedPrefix = strings.TrimSuffix(trimmedPrefix, ":")

	return &RedisSummaryCache{
		client: client,
		prefix: trimmedPrefix,
		ttl:    ttl,
	}
}

func (c *RedisSummaryCache) key() string {
	return c.prefix + ":aggregate"
}

// Get returns the cached summary if present and fresh.
func (c *RedisSummaryCache) Get(ctx context.Context) (*domain.TransferSummary, bool) {
	if c == nil || c.client == nil || c.ttl <= 0 {
		return nil, false
	}
	raw, err := c.client.Get(ctx, c.key()).Result()
	if err != nil {
		if err != redis.Nil {
			log.Printf("level=warn component=cache msg=\"summary cache read failed\" err=%v", err)
		}
		return nil, false
	}
	var summary domain.TransferSummary
	if err := json.Unmarshal([]byte(raw), &summary); err != nil {
		log.Printf("level=warn component=cache msg=\"summary cache payload corrupt; discarding\" err=%v", err)
		return nil, false
	}
	return &summary, true
}

// Set stores the summary under the configured TTL.
func (c *RedisSummaryCache) Set(ctx context.Context, summary *domain.TransferSummary) {
	if c == nil || c.client == nil || c.ttl <= 0 || summary == nil {
		return
	}
	raw, err := json.Marshal(summary)
	if err != nil {
		log.Printf("level=warn component=cache msg=\"summary cache marshal failed\" err=%v", err)
		return
	}
	if err := c.client.Set(ctx, c.key(), raw, c.ttl).Err(); err != nil {
		log.Printf("level=warn component=cache msg=\"summary cache write failed\" err=%v", err)
	}
}

// Invalidate drops the cached summary after a mutation commits.
func (c *RedisSummaryCache) Invalidate(ctx context.Context) {
	if c == nil || c.client == nil {
		return
	}
	if err := c.client.Del(ctx, c.key()).Err(); err != nil {
		log.Printf("level=warn component=cache msg=\"summary cache invalidation failed\" err=%v", err)
	}
}
