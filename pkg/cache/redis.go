package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Remote is the tier-3 external cache contract. Implementations must treat
// entries that fail to deserialize as misses, never as errors that could
// take down the pipeline.
type Remote interface {
	Get(ctx context.Context, key string) (Entry, bool, error)
	Set(ctx context.Context, key string, entry Entry) error
}

// RedisRemote is a Remote backed by a Redis instance. Entries are stored as
// JSON under a namespaced key with Redis-side expiry matching the entry TTL.
type RedisRemote struct {
	client *redis.Client
	prefix string
}

// NewRedisRemote wraps an existing client. The prefix namespaces keys so a
// shared instance can serve multiple deployments.
func NewRedisRemote(client *redis.Client, prefix string) *RedisRemote {
	if prefix == "" {
		prefix = "soteria:verdict:"
	}
	return &RedisRemote{client: client, prefix: prefix}
}

func (r *RedisRemote) Get(ctx context.Context, key string) (Entry, bool, error) {
	data, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, fmt.Errorf("redis get: %w", err)
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry: discard it and report a miss.
		r.client.Del(ctx, r.prefix+key)
		return Entry{}, false, nil
	}
	return entry, true, nil
}

func (r *RedisRemote) Set(ctx context.Context, key string, entry Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}

	expiry := entry.TTL
	if expiry <= 0 {
		expiry = time.Hour
	}
	if err := r.client.Set(ctx, r.prefix+key, data, expiry).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
