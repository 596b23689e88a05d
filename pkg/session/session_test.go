package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepthink-ai/deepthink/pkg/config"
)

func newTestManager(cfg config.SessionConfig) *Manager {
	return NewManager(NewMemKV(), cfg)
}

func TestManager_StartAndGet(t *testing.T) {
	m := newTestManager(config.SessionConfig{})
	ctx := context.Background()

	rec, err := m.Start(ctx, "u1", "", map[string]any{"source": "web"})
	require.NoError(t, err)
	require.NotEmpty(t, rec.SessionID)
	require.NotEmpty(t, rec.ThreadID, "empty thread starts a new thread")

	got, err := m.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, rec.ThreadID, got.ThreadID)
	assert.Equal(t, "web", got.InitialData["source"])
}

func TestManager_GetUnknownSession(t *testing.T) {
	m := newTestManager(config.SessionConfig{})

	got, err := m.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestManager_ThreadIndices(t *testing.T) {
	m := newTestManager(config.SessionConfig{})
	ctx := context.Background()

	first, err := m.Start(ctx, "u1", "", nil)
	require.NoError(t, err)
	second, err := m.Start(ctx, "u1", first.ThreadID, nil)
	require.NoError(t, err)

	threads, err := m.Threads(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{first.ThreadID}, threads, "continuing a thread does not re-index it")

	sessions, err := m.Sessions(ctx, first.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, []string{second.SessionID, first.SessionID}, sessions, "newest first")
}

func TestManager_IndicesBounded(t *testing.T) {
	m := newTestManager(config.SessionConfig{MaxSessionIndex: 3})
	ctx := context.Background()

	first, err := m.Start(ctx, "u1", "", nil)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err := m.Start(ctx, "u1", first.ThreadID, nil)
		require.NoError(t, err)
	}

	sessions, err := m.Sessions(ctx, first.ThreadID)
	require.NoError(t, err)
	assert.Len(t, sessions, 3)
	assert.NotContains(t, sessions, first.SessionID, "oldest entries trimmed")
}

func TestManager_SessionTTL(t *testing.T) {
	m := newTestManager(config.SessionConfig{TTL: 20 * time.Millisecond})
	ctx := context.Background()

	rec, err := m.Start(ctx, "u1", "", nil)
	require.NoError(t, err)

	time.Sleep(40 * time.Millisecond)
	got, err := m.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got, "record expires with TTL")
}

func TestManager_End(t *testing.T) {
	m := newTestManager(config.SessionConfig{})
	ctx := context.Background()

	rec, err := m.Start(ctx, "u1", "", nil)
	require.NoError(t, err)
	require.NoError(t, m.End(ctx, rec.SessionID))

	got, err := m.Get(ctx, rec.SessionID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemKV_PushFrontOrdering(t *testing.T) {
	kv := NewMemKV()
	ctx := context.Background()

	for i := 0; i < 4; i++ {
		require.NoError(t, kv.PushFront(ctx, "k", fmt.Sprintf("v%d", i), 3))
	}
	list, err := kv.Range(ctx, "k", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"v3", "v2", "v1"}, list)
}
