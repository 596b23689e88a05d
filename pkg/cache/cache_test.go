package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSmartCache_GetOrSet_MissThenHit(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	calls := 0
	producer := func(ctx context.Context) (any, error) {
		calls++
		return map[string]string{"angle": "国潮联名"}, nil
	}

	raw, hit, err := c.GetOrSet(ctx, "analyze:abc", producer, time.Minute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, calls)

	var got map[string]string
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "国潮联名", got["angle"])

	_, hit, err = c.GetOrSet(ctx, "analyze:abc", producer, time.Minute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, calls)
}

func TestSmartCache_GetOrSet_SingleFlight(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	var calls int32
	release := make(chan struct{})
	producer := func(ctx context.Context) (any, error) {
		atomic.AddInt32(&calls, 1)
		<-release
		return "result", nil
	}

	const concurrency = 8
	results := make([]json.RawMessage, concurrency)
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			raw, _, err := c.GetOrSet(ctx, "analyze:sf", producer, time.Minute)
			require.NoError(t, err)
			results[i] = raw
		}(i)
	}

	// Let the goroutines pile up on the in-flight call before releasing it.
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	for _, raw := range results {
		assert.JSONEq(t, `"result"`, string(raw))
	}
}

func TestSmartCache_GetOrSet_ZeroTTLDisablesCaching(t *testing.T) {
	store := NewMemoryStore()
	c := New(store)
	ctx := context.Background()

	calls := 0
	producer := func(ctx context.Context) (any, error) {
		calls++
		return calls, nil
	}

	_, hit, err := c.GetOrSet(ctx, "analyze:nottl", producer, 0)
	require.NoError(t, err)
	assert.False(t, hit)

	_, hit, err = c.GetOrSet(ctx, "analyze:nottl", producer, 0)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 2, calls)

	_, ok, _ := store.Get(ctx, "analyze:nottl")
	assert.False(t, ok)
}

func TestSmartCache_GetOrSet_ProducerErrorPropagates(t *testing.T) {
	c := New(NewMemoryStore())

	wantErr := errors.New("llm unavailable")
	_, _, err := c.GetOrSet(context.Background(), "analyze:err",
		func(ctx context.Context) (any, error) { return nil, wantErr },
		time.Minute)
	assert.ErrorIs(t, err, wantErr)
}

func TestSmartCache_GetOrSet_WriteFailureStillReturnsValue(t *testing.T) {
	c := New(&failingStore{})

	raw, hit, err := c.GetOrSet(context.Background(), "analyze:wf",
		func(ctx context.Context) (any, error) { return "ok", nil },
		time.Minute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.JSONEq(t, `"ok"`, string(raw))
}

func TestSmartCache_SetAndGet(t *testing.T) {
	c := New(NewMemoryStore())
	ctx := context.Background()

	c.Set(ctx, "memory:u1", map[string]any{"tags": []string{"科技感"}}, time.Minute)

	var got map[string]any
	assert.True(t, c.Get(ctx, "memory:u1", &got))

	c.Invalidate(ctx, "memory:u1")
	assert.False(t, c.Get(ctx, "memory:u1", &got))
}

func TestMemoryStore_TTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 30*time.Millisecond))

	_, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)

	time.Sleep(40 * time.Millisecond)
	_, ok, _ = store.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryStore_SetNX(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	written, err := store.SetNX(ctx, "k", []byte("first"), time.Minute)
	require.NoError(t, err)
	assert.True(t, written)

	written, err = store.SetNX(ctx, "k", []byte("second"), time.Minute)
	require.NoError(t, err)
	assert.False(t, written)

	value, ok, _ := store.Get(ctx, "k")
	assert.True(t, ok)
	assert.Equal(t, []byte("first"), value)
}

// failingStore errors on every write to exercise degradation paths.
type failingStore struct{}

func (f *failingStore) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, nil
}

func (f *failingStore) Set(context.Context, string, []byte, time.Duration) error {
	return errors.New("store down")
}

func (f *failingStore) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return false, errors.New("store down")
}

func (f *failingStore) Delete(context.Context, string) error {
	return errors.New("store down")
}
