package cache_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yt-fetcher/infrastructure/cache"
)

func TestMemoryStore_ZeroTTLNeverExpires(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := cache.NewMemoryStore(cache.WithMemoryClock(clock.Now))

	require.NoError(t, store.Set(ctx, "k", []byte("v"), 0))
	clock.Advance(1000 * time.Hour)

	data, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []byte("v"), data)
}

func TestMemoryStore_SetCopiesValue(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()
	value := []byte("abc")
	require.NoError(t, store.Set(ctx, "k", value, time.Minute))
	value[0] = 'z'

	data, _, _ := store.Get(ctx, "k")
	assert.Equal(t, []byte("abc"), data)
}

func TestMemoryStore_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := &fakeClock{now: time.Now()}
	store := cache.NewMemoryStore(cache.WithMemoryClock(clock.Now))

	require.NoError(t, store.Set(ctx, "short", []byte("1"), time.Second))
	require.NoError(t, store.Set(ctx, "long", []byte("2"), time.Hour))
	clock.Advance(2 * time.Second)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 1, store.Len())
	_, ok, _ := store.Get(ctx, "long")
	assert.True(t, ok)
}

func TestMemoryStore_MaxEntriesEvictsEarliestExpiry(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore(cache.WithMaxEntries(2))

	require.NoError(t, store.Set(ctx, "a", []byte("1"), time.Minute))
	require.NoError(t, store.Set(ctx, "b", []byte("2"), time.Hour))
	require.NoError(t, store.Set(ctx, "c", []byte("3"), time.Hour))

	assert.Equal(t, 2, store.Len())
	_, ok, _ := store.Get(ctx, "a")
	assert.False(t, ok)

	// Overwriting an existing key never evicts.
	require.NoError(t, store.Set(ctx, "b", []byte("4"), time.Hour))
	assert.Equal(t, 2, store.Len())
}

func TestMemoryStore_RunSweeperStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := cache.NewMemoryStore()
	done := make(chan struct{})
	go func() {
		store.RunSweeper(ctx, time.Millisecond)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestMemoryStore_ConcurrentAccess(t *testing.T) {
	ctx := context.Background()
	store := cache.NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			key := fmt.Sprintf("k%d", i%5)
			_ = store.Set(ctx, key, []byte(key), time.Minute)
			data, ok, err := store.Get(ctx, key)
			assert.NoError(t, err)
			if ok {
				assert.Equal(t, key, string(data))
			}
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 5, store.Len())
}
