package cache

import (
	"context"
	"sync"
	"time"
)

// Store is the narrow KV boundary the smart cache runs over. Implementations
// must be safe for concurrent use.
type Store interface {
	// Get returns the raw value, or ok=false on a miss.
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	// Set stores the value with a TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// SetNX stores the value only if the key is absent; returns whether the
	// write happened. Used for single-flight writes when the backing store
	// supports atomic set-if-absent.
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	// Delete removes the key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// memoryEntry holds a value with its expiry for the in-memory store.
type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// MemoryStore is a thread-safe in-memory Store with lazy TTL expiry.
// Expired entries are cleaned up on Get — no background goroutine. Used in
// tests and as a local fallback when no Redis is configured.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]memoryEntry)}
}

// Get returns the value if present and not expired.
func (m *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	entry, ok := m.entries[key]
	m.mu.RUnlock()

	if !ok {
		return nil, false, nil
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		// Expired — clean up lazily. Re-check under the write lock: a
		// concurrent Set may have replaced the entry with a fresh one.
		m.mu.Lock()
		if current, ok := m.entries[key]; ok && !current.expiresAt.IsZero() && time.Now().After(current.expiresAt) {
			delete(m.entries, key)
		}
		m.mu.Unlock()
		return nil, false, nil
	}
	return entry.value, true, nil
}

// Set stores the value; ttl <= 0 means no expiry.
func (m *MemoryStore) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	return nil
}

// SetNX stores the value only when the key is absent or expired.
func (m *MemoryStore) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if entry, ok := m.entries[key]; ok {
		if entry.expiresAt.IsZero() || time.Now().Before(entry.expiresAt) {
			return false, nil
		}
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: expiry(ttl)}
	return true, nil
}

// Delete removes the key.
func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func expiry(ttl time.Duration) time.Time {
	if ttl <= 0 {
		return time.Time{}
	}
	return time.Now().Add(ttl)
}
