package cache

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock drives VectorLRU expiry without sleeping.
type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLRU(capacity, dims int, ttl time.Duration) (*VectorLRU, *fakeClock) {
	clock := &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	lru := NewVectorLRU(capacity, dims, ttl)
	lru.now = clock.now
	return lru, clock
}

func TestVectorLRU_BasicOperations(t *testing.T) {
	lru, _ := newTestLRU(10, 3, time.Minute)
	key := NewQueryKey("m", "budget")

	t.Run("PutAndGet", func(t *testing.T) {
		require.NoError(t, lru.Put(key, []float32{1, 2, 3}))
		vector, ok := lru.Get(key)
		require.True(t, ok)
		assert.Equal(t, []float32{1, 2, 3}, vector)
	})

	t.Run("GetNonExistent", func(t *testing.T) {
		vector, ok := lru.Get(NewQueryKey("m", "absent"))
		assert.False(t, ok)
		assert.Nil(t, vector)
	})

	t.Run("UpdateExisting", func(t *testing.T) {
		require.NoError(t, lru.Put(key, []float32{4, 5, 6}))
		vector, ok := lru.Get(key)
		require.True(t, ok)
		assert.Equal(t, []float32{4, 5, 6}, vector)
		assert.Equal(t, 1, lru.Len())
	})
}

func TestVectorLRU_RejectsWrongDimension(t *testing.T) {
	lru, _ := newTestLRU(10, 3, time.Minute)

	err := lru.Put(NewQueryKey("m", "q"), []float32{1, 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Equal(t, 0, lru.Len())
}

func TestVectorLRU_ReturnsCopies(t *testing.T) {
	lru, _ := newTestLRU(10, 2, time.Minute)
	key := NewQueryKey("m", "q")
	input := []float32{1, 2}
	require.NoError(t, lru.Put(key, input))

	input[0] = 99
	got, _ := lru.Get(key)
	got[1] = 99

	again, ok := lru.Get(key)
	require.True(t, ok)
	assert.Equal(t, []float32{1, 2}, again)
}

func TestVectorLRU_ModelIsPartOfKey(t *testing.T) {
	lru, _ := newTestLRU(10, 1, time.Minute)
	require.NoError(t, lru.Put(NewQueryKey("model-a", "q"), []float32{1}))

	_, ok := lru.Get(NewQueryKey("model-b", "q"))
	assert.False(t, ok)
	vector, ok := lru.Get(NewQueryKey("model-a", "q"))
	require.True(t, ok)
	assert.Equal(t, []float32{1}, vector)
}

func TestVectorLRU_Expiration(t *testing.T) {
	lru, clock := newTestLRU(10, 1, time.Minute)
	expiring := NewQueryKey("m", "expiring")
	require.NoError(t, lru.Put(expiring, []float32{1}))
	clock.advance(30 * time.Second)
	lasting := NewQueryKey("m", "lasting")
	require.NoError(t, lru.Put(lasting, []float32{2}))

	clock.advance(30 * time.Second)
	_, ok := lru.Get(expiring)
	assert.False(t, ok, "entries expire exactly at their TTL")
	_, ok = lru.Get(lasting)
	assert.True(t, ok)

	clock.advance(time.Minute)
	assert.Equal(t, 1, lru.Sweep())
	assert.Equal(t, 0, lru.Len())
}

func TestVectorLRU_Eviction(t *testing.T) {
	lru, _ := newTestLRU(3, 1, time.Minute)
	keys := make([]QueryKey, 4)
	for i := range keys {
		keys[i] = NewQueryKey("m", string(rune('a'+i)))
	}
	for _, key := range keys[:3] {
		require.NoError(t, lru.Put(key, []float32{1}))
	}

	lru.Get(keys[0])
	require.NoError(t, lru.Put(keys[3], []float32{1}))
	assert.Equal(t, 3, lru.Len())
	assert.Equal(t, int64(1), lru.Evictions())

	_, ok := lru.Get(keys[1])
	assert.False(t, ok, "least recently used entry is evicted")
	_, ok = lru.Get(keys[0])
	assert.True(t, ok)
}

func TestVectorLRU_Concurrency(t *testing.T) {
	lru := NewVectorLRU(50, 2, time.Minute)
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range 200 {
				key := NewQueryKey("m", string(rune('a'+(i+j)%26)))
				_ = lru.Put(key, []float32{float32(i), float32(j)})
				lru.Get(key)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, lru.Len(), 50)
}

func TestVectorCache_SweepLoop(t *testing.T) {
	c := NewVectorCache(1, Config{Capacity: 10, TTL: 10 * time.Millisecond, SweepInterval: 5 * time.Millisecond})
	defer c.Close()

	require.NoError(t, c.Put(NewQueryKey("m", "q"), []float32{1}))
	assert.Eventually(t, func() bool { return c.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestNewVectorCache_Defaults(t *testing.T) {
	c := NewVectorCache(4, Config{})
	defer c.Close()

	assert.Equal(t, DefaultConfig().Capacity, c.capacity)
	assert.Equal(t, DefaultConfig().TTL, c.ttl)
	assert.Equal(t, 4, c.dimensions)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("SECONDBRAIN_TEST_REDIS_URL")
	if url == "" {
		t.Skip("SECONDBRAIN_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	redisCache, err := NewRedisCache(ctx, url, "secondbrain-test:", time.Minute)
	require.NoError(t, err)
	defer redisCache.Close()

	_, ok := redisCache.Get(ctx, "absent")
	assert.False(t, ok)

	require.NoError(t, redisCache.Set(ctx, "present", []byte{1, 2, 3}, 0))
	value, ok := redisCache.Get(ctx, "present")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, value)
}

func TestNewRedisCache_InvalidURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not a url", "", 0)
	require.Error(t, err)
}
