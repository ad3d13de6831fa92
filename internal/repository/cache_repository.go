package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mhollis-dev/fieldops-api/internal/models"
)

const feedCachePrefix = "fieldops:feed:"

// FeedCache stores assignment feed pages in Redis. Cache failures are
// reported to the caller, which degrades to a database read.
type FeedCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewFeedCache constructs the cache with the given entry TTL.
func NewFeedCache(client *redis.Client, ttl time.Duration) *FeedCache {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &FeedCache{client: client, ttl: ttl}
}

// Key derives the cache key for a feed filter.
func (c *FeedCache) Key(filter models.AssignmentFilter) string {
	return fmt.Sprintf("%s%s:%v:%s:%d:%d", feedCachePrefix, filter.ProjectID, filter.Status, filter.WorkerID, filter.Limit, filter.Offset)
}

// Get returns the cached feed page, or redis.Nil when absent.
func (c *FeedCache) Get(ctx context.Context, key string) ([]models.JobAssignment, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, err
	}
	var assignments []models.JobAssignment
	if err := json.Unmarshal(raw, &assignments); err != nil {
		return nil, fmt.Errorf("decode cached feed: %w", err)
	}
	return assignments, nil
}

// Set stores a feed page.
func (c *FeedCache) Set(ctx context.Context, key string, assignments []models.JobAssignment) error {
	raw, err := json.Marshal(assignments)
	if err != nil {
		return fmt.Errorf("encode feed page: %w", err)
	}
	return c.client.Set(ctx, key, raw, c.ttl).Err()
}

// Invalidate clears all cached feed pages. Registry transitions call this so
// stale availability never outlives a status change by more than one read.
func (c *FeedCache) Invalidate(ctx context.Context) error {
	iter := c.client.Scan(ctx, 0, feedCachePrefix+"*", 100).Iterator()
	keys := make([]string, 0, 16)
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("scan feed cache keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}
