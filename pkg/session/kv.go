package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisKV backs the session manager with Redis.
type RedisKV struct {
	client redis.UniversalClient
}

func NewRedisKV(client redis.UniversalClient) *RedisKV {
	return &RedisKV{client: client}
}

func (r *RedisKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return r.client.Set(ctx, key, value, ttl).Err()
}

func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	payload, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

func (r *RedisKV) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, key).Err()
}

func (r *RedisKV) PushFront(ctx context.Context, key, value string, maxLen int) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, int64(maxLen-1))
	_, err := pipe.Exec(ctx)
	return err
}

func (r *RedisKV) Range(ctx context.Context, key string, limit int) ([]string, error) {
	return r.client.LRange(ctx, key, 0, int64(limit-1)).Result()
}

// MemKV is the in-memory KV used by tests and Redis-less runs.
type MemKV struct {
	mu     sync.RWMutex
	values map[string]memEntry
	lists  map[string][]string
}

type memEntry struct {
	payload   []byte
	expiresAt time.Time
}

func NewMemKV() *MemKV {
	return &MemKV{
		values: make(map[string]memEntry),
		lists:  make(map[string][]string),
	}
}

func (m *MemKV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	entry := memEntry{payload: append([]byte(nil), value...)}
	if ttl > 0 {
		entry.expiresAt = time.Now().Add(ttl)
	}
	m.values[key] = entry
	return nil
}

func (m *MemKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.values[key]
	m.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.values, key)
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.payload, true, nil
}

func (m *MemKV) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

func (m *MemKV) PushFront(ctx context.Context, key, value string, maxLen int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := append([]string{value}, m.lists[key]...)
	if maxLen > 0 && len(list) > maxLen {
		list = list[:maxLen]
	}
	m.lists[key] = list
	return nil
}

func (m *MemKV) Range(ctx context.Context, key string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.lists[key]
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return append([]string(nil), list...), nil
}
