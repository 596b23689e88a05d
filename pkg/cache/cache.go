package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
)

// Producer computes a JSON-serializable result on a cache miss.
type Producer func(ctx context.Context) (any, error)

// SmartCache layers fingerprint keys, TTLs, and single-flight semantics over
// a Store. Serialization failures degrade to a direct producer call and log —
// they never surface to callers. Producer errors always propagate.
type SmartCache struct {
	store Store
	group singleflight.Group
}

// New creates a smart cache over the given store.
func New(store Store) *SmartCache {
	return &SmartCache{store: store}
}

// Get unmarshals the cached value into out. Returns false on a miss or any
// store/codec failure (failures are logged, not raised).
func (c *SmartCache) Get(ctx context.Context, key string, out any) bool {
	raw, ok, err := c.store.Get(ctx, key)
	if err != nil {
		slog.Warn("Cache get failed", "key", key, "error", err)
		return false
	}
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, out); err != nil {
		slog.Warn("Cache entry undecodable, treating as miss", "key", key, "error", err)
		return false
	}
	return true
}

// Set stores value under key with the given TTL. ttl <= 0 disables caching
// for this call. Write failures are logged, never raised.
func (c *SmartCache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		slog.Warn("Cache value not serializable, skipping write", "key", key, "error", err)
		return
	}
	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		slog.Warn("Cache set failed", "key", key, "error", err)
	}
}

// GetOrSet returns the cached value for key, or runs producer and caches its
// result. The bool reports whether it was a cache hit.
//
// Single-flight: concurrent calls for the same key in this process run
// producer at most once; the write uses SetNX so concurrent processes racing
// the same key keep exactly one value. A successful producer result is always
// returned even if the write fails. ttl <= 0 disables caching for this call.
func (c *SmartCache) GetOrSet(ctx context.Context, key string, producer Producer, ttl time.Duration) (json.RawMessage, bool, error) {
	if ttl <= 0 {
		value, err := producer(ctx)
		if err != nil {
			return nil, false, err
		}
		raw, merr := json.Marshal(value)
		if merr != nil {
			slog.Warn("Produced value not serializable", "key", key, "error", merr)
			return nil, false, merr
		}
		return raw, false, nil
	}

	type flightResult struct {
		raw []byte
		hit bool
	}

	v, err, _ := c.group.Do(key, func() (any, error) {
		if raw, ok, gerr := c.store.Get(ctx, key); gerr == nil && ok {
			return flightResult{raw: raw, hit: true}, nil
		} else if gerr != nil {
			slog.Warn("Cache get failed, producing directly", "key", key, "error", gerr)
		}

		value, perr := producer(ctx)
		if perr != nil {
			return nil, perr
		}
		raw, merr := json.Marshal(value)
		if merr != nil {
			slog.Warn("Produced value not serializable, returning uncached", "key", key, "error", merr)
			return nil, merr
		}

		written, serr := c.store.SetNX(ctx, key, raw, ttl)
		if serr != nil {
			slog.Warn("Cache write failed, returning produced value", "key", key, "error", serr)
		} else if !written {
			// Another process won the race; prefer its value so concurrent
			// callers across processes observe the same entry.
			if theirRaw, ok, gerr := c.store.Get(ctx, key); gerr == nil && ok {
				return flightResult{raw: theirRaw, hit: true}, nil
			}
		}
		return flightResult{raw: raw, hit: false}, nil
	})
	if err != nil {
		return nil, false, err
	}
	result := v.(flightResult)
	return json.RawMessage(result.raw), result.hit, nil
}

// Invalidate removes a key, e.g. on profile writes.
func (c *SmartCache) Invalidate(ctx context.Context, key string) {
	if err := c.store.Delete(ctx, key); err != nil {
		slog.Warn("Cache invalidate failed", "key", key, "error", err)
	}
}
