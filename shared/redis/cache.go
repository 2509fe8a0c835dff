package redis

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ViewCache is a JSON-backed Redis cache for read model projections of type T.
// A ttl of 0 keeps keys until they are deleted. Failures are logged and
// treated as misses; the cache is never the source of truth.
type ViewCache[T any] struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewViewCache[T any](client *goredis.Client, ttl time.Duration) *ViewCache[T] {
	return &ViewCache[T]{client: client, ttl: ttl}
}

func (c *ViewCache[T]) TTL() time.Duration {
	return c.ttl
}

// Get returns (nil, false) on a miss or an undecodable entry.
func (c *ViewCache[T]) Get(ctx context.Context, key string) (*T, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != goredis.Nil {
			log.Printf("ViewCache: read error for key %s: %v", key, err)
		}
		return nil, false
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, false
	}
	return &v, true
}

func (c *ViewCache[T]) Set(ctx context.Context, key string, value *T) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("ViewCache: marshal error for key %s: %v", key, err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.Printf("ViewCache: write error for key %s: %v", key, err)
	}
}

func (c *ViewCache[T]) Delete(ctx context.Context, key string) {
	if err := c.client.Del(ctx, key).Err(); err != nil {
		log.Printf("ViewCache: delete error for key %s: %v", key, err)
	}
}

// DeletePrefix removes every key starting with prefix, scanning in batches.
func (c *ViewCache[T]) DeletePrefix(ctx context.Context, prefix string) {
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
		if len(keys) == 100 {
			c.deleteKeys(ctx, keys)
			keys = keys[:0]
		}
	}
	if err := iter.Err(); err != nil {
		log.Printf("ViewCache: scan error for prefix %s: %v", prefix, err)
	}
	c.deleteKeys(ctx, keys)
}

func (c *ViewCache[T]) deleteKeys(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		log.Printf("ViewCache: delete error for %d keys: %v", len(keys), err)
	}
}
