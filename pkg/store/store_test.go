package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/deepthink-ai/deepthink/pkg/models"
)

func TestMemProfileStore(t *testing.T) {
	s := NewMemProfileStore()
	ctx := context.Background()

	_, err := s.Get(ctx, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Upsert(ctx, &models.UserProfile{
		UserID:    "u1",
		BrandName: "清风茶舍",
		Tags:      []string{"轻松", "种草"},
	}))

	p, err := s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "清风茶舍", p.BrandName)
	assert.Equal(t, []string{"轻松", "种草"}, p.Tags)

	require.NoError(t, s.AddTags(ctx, "u1", []string{"种草", "干货", ""}))
	p, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"轻松", "种草", "干货"}, p.Tags, "tags deduplicate, empty tags dropped")

	require.NoError(t, s.AddBrandFact(ctx, "u1", models.BrandFact{Fact: "主打冷泡茶", Category: "产品"}))
	p, err = s.Get(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, p.BrandFacts, 1)
	assert.Equal(t, "主打冷泡茶", p.BrandFacts[0].Fact)
}

func TestMemProfileStore_AddToMissingProfileCreatesRow(t *testing.T) {
	s := NewMemProfileStore()
	ctx := context.Background()

	require.NoError(t, s.AddTags(ctx, "new-user", []string{"专业"}))
	p, err := s.Get(ctx, "new-user")
	require.NoError(t, err)
	assert.Equal(t, []string{"专业"}, p.Tags)
}

func TestMemHistoryStore(t *testing.T) {
	s := NewMemHistoryStore()
	ctx := context.Background()

	id1, err := s.Append(ctx, &models.InteractionRecord{UserID: "u1", SessionID: "s1", UserInput: "q1", AIOutput: "a1"})
	require.NoError(t, err)
	_, err = s.Append(ctx, &models.InteractionRecord{UserID: "u1", SessionID: "s2", UserInput: "q2", AIOutput: "a2"})
	require.NoError(t, err)
	_, err = s.Append(ctx, &models.InteractionRecord{UserID: "u2", SessionID: "s3", UserInput: "q3", AIOutput: "a3"})
	require.NoError(t, err)

	recent, err := s.RecentByUser(ctx, "u1", 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "q2", recent[0].UserInput, "newest first")

	bySession, err := s.RecentBySession(ctx, "s1", 10)
	require.NoError(t, err)
	require.Len(t, bySession, 1)

	require.NoError(t, s.Rate(ctx, id1, 5, "很有帮助"))
	rated, err := s.RecentBySession(ctx, "s1", 1)
	require.NoError(t, err)
	require.NotNil(t, rated[0].UserRating)
	assert.Equal(t, 5, *rated[0].UserRating)

	assert.ErrorIs(t, s.Rate(ctx, 999, 1, ""), ErrNotFound)
}

func TestMemDocumentStore_DeleteExpired(t *testing.T) {
	s := NewMemDocumentStore()
	ctx := context.Background()

	_, err := s.Add(ctx, &models.SessionDocument{
		SessionID:        "s1",
		OriginalFilename: "old.pdf",
		ParsedText:       "旧文档",
		CreatedAt:        time.Now().Add(-48 * time.Hour),
	})
	require.NoError(t, err)
	_, err = s.Add(ctx, &models.SessionDocument{
		SessionID:        "s1",
		OriginalFilename: "fresh.pdf",
		ParsedText:       "新文档",
	})
	require.NoError(t, err)

	deleted, err := s.DeleteExpired(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	docs, err := s.BySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "fresh.pdf", docs[0].OriginalFilename)
}

// countingDocs counts DeleteExpired calls.
type countingDocs struct {
	MemDocumentStore
	mu    sync.Mutex
	calls int
}

func (c *countingDocs) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.MemDocumentStore.DeleteExpired(ctx, olderThan)
}

func (c *countingDocs) callCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

func TestRetentionService(t *testing.T) {
	docs := &countingDocs{}
	svc := NewRetentionService(docs, time.Hour, 20*time.Millisecond)

	svc.Start(context.Background())
	assert.Eventually(t, func() bool { return docs.callCount() >= 2 },
		time.Second, 10*time.Millisecond, "initial sweep plus at least one tick")

	svc.Stop()
	svc.Stop() // idempotent
}
