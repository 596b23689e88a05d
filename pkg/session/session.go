// Package session manages session records and their thread indices in the
// KV store. Keys: session:<id> (TTL-expired record), user:<id>:threads and
// thread:<id>:sessions (newest-first, bounded lists).
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/deepthink-ai/deepthink/pkg/config"
	"github.com/deepthink-ai/deepthink/pkg/models"
)

const (
	defaultSessionTTL      = 24 * time.Hour
	defaultMaxThreadIndex  = 50
	defaultMaxSessionIndex = 100
)

// KV is the narrow key-value surface the manager needs. Production uses the
// Redis adapter; tests use the in-memory one.
type KV interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	// PushFront prepends to a list and trims it to maxLen.
	PushFront(ctx context.Context, key, value string, maxLen int) error
	Range(ctx context.Context, key string, limit int) ([]string, error)
}

// Manager creates and resolves sessions.
type Manager struct {
	kv              KV
	ttl             time.Duration
	maxThreadIndex  int
	maxSessionIndex int
}

// NewManager builds a session manager with config-driven bounds.
func NewManager(kv KV, cfg config.SessionConfig) *Manager {
	m := &Manager{
		kv:              kv,
		ttl:             cfg.TTL,
		maxThreadIndex:  cfg.MaxThreadIndex,
		maxSessionIndex: cfg.MaxSessionIndex,
	}
	if m.ttl <= 0 {
		m.ttl = defaultSessionTTL
	}
	if m.maxThreadIndex <= 0 {
		m.maxThreadIndex = defaultMaxThreadIndex
	}
	if m.maxSessionIndex <= 0 {
		m.maxSessionIndex = defaultMaxSessionIndex
	}
	return m
}

func sessionKey(id string) string        { return "session:" + id }
func userThreadsKey(id string) string    { return "user:" + id + ":threads" }
func threadSessionsKey(id string) string { return "thread:" + id + ":sessions" }

// Start creates a new session. An empty threadID starts a new thread. The
// record is written with TTL; both indices get a newest-first entry.
func (m *Manager) Start(ctx context.Context, userID, threadID string, initialData map[string]any) (*models.SessionRecord, error) {
	rec := &models.SessionRecord{
		SessionID:   uuid.NewString(),
		UserID:      userID,
		ThreadID:    threadID,
		CreatedAt:   time.Now(),
		InitialData: initialData,
	}
	newThread := rec.ThreadID == ""
	if newThread {
		rec.ThreadID = uuid.NewString()
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session record: %w", err)
	}
	if err := m.kv.Set(ctx, sessionKey(rec.SessionID), payload, m.ttl); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	if newThread {
		if err := m.kv.PushFront(ctx, userThreadsKey(userID), rec.ThreadID, m.maxThreadIndex); err != nil {
			return nil, fmt.Errorf("failed to index thread: %w", err)
		}
	}
	if err := m.kv.PushFront(ctx, threadSessionsKey(rec.ThreadID), rec.SessionID, m.maxSessionIndex); err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}
	return rec, nil
}

// Get resolves a session record; (nil, nil) when expired or unknown.
func (m *Manager) Get(ctx context.Context, sessionID string) (*models.SessionRecord, error) {
	payload, ok, err := m.kv.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if !ok {
		return nil, nil
	}
	var rec models.SessionRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode session record: %w", err)
	}
	return &rec, nil
}

// Threads lists a user's thread IDs, newest first.
func (m *Manager) Threads(ctx context.Context, userID string) ([]string, error) {
	return m.kv.Range(ctx, userThreadsKey(userID), m.maxThreadIndex)
}

// Sessions lists a thread's session IDs, newest first.
func (m *Manager) Sessions(ctx context.Context, threadID string) ([]string, error) {
	return m.kv.Range(ctx, threadSessionsKey(threadID), m.maxSessionIndex)
}

// End removes the session record. Indices are left to expire naturally.
func (m *Manager) End(ctx context.Context, sessionID string) error {
	return m.kv.Delete(ctx, sessionKey(sessionID))
}
