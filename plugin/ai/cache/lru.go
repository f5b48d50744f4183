package cache

import (
	"container/list"
	"crypto/sha256"
	"slices"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// ErrDimensionMismatch is returned when a vector does not have the cache's dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// QueryKey identifies a query embedding: the model that produced it and a
// digest of the embedded text.
type QueryKey struct {
	Model  string
	Digest [sha256.Size]byte
}

// NewQueryKey hashes text for model.
func NewQueryKey(model, text string) QueryKey {
	return QueryKey{Model: model, Digest: sha256.Sum256([]byte(text))}
}

type vectorEntry struct {
	key       QueryKey
	vector    []float32
	expiresAt time.Time
}

// VectorLRU holds query embeddings of a single dimension, least recently used
// first out, each entry expiring after the TTL.
type VectorLRU struct {
	mu         sync.Mutex
	capacity   int
	dimensions int
	ttl        time.Duration
	now        func() time.Time

	entries   map[QueryKey]*list.Element
	order     *list.List // front is most recently used
	evictions int64
}

// NewVectorLRU creates an LRU for vectors of the given dimension.
func NewVectorLRU(capacity, dimensions int, ttl time.Duration) *VectorLRU {
	if capacity <= 0 {
		capacity = 1000
	}
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &VectorLRU{
		capacity:   capacity,
		dimensions: dimensions,
		ttl:        ttl,
		now:        time.Now,
		entries:    make(map[QueryKey]*list.Element),
		order:      list.New(),
	}
}

// Get returns a copy of the cached vector.
func (c *VectorLRU) Get(key QueryKey) ([]float32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	e := elem.Value.(*vectorEntry)
	if !c.now().Before(e.expiresAt) {
		c.remove(elem)
		return nil, false
	}
	c.order.MoveToFront(elem)
	return slices.Clone(e.vector), true
}

// Put stores a copy of vector, refreshing its TTL.
func (c *VectorLRU) Put(key QueryKey, vector []float32) error {
	if len(vector) != c.dimensions {
		return errors.Wrapf(ErrDimensionMismatch, "got %d, want %d", len(vector), c.dimensions)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	expiresAt := c.now().Add(c.ttl)
	if elem, ok := c.entries[key]; ok {
		e := elem.Value.(*vectorEntry)
		e.vector = slices.Clone(vector)
		e.expiresAt = expiresAt
		c.order.MoveToFront(elem)
		return nil
	}

	for c.order.Len() >= c.capacity {
		c.remove(c.order.Back())
		c.evictions++
	}
	c.entries[key] = c.order.PushFront(&vectorEntry{key: key, vector: slices.Clone(vector), expiresAt: expiresAt})
	return nil
}

// Sweep removes expired entries and returns how many were removed.
func (c *VectorLRU) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for elem := c.order.Back(); elem != nil; {
		prev := elem.Prev()
		if !now.Before(elem.Value.(*vectorEntry).expiresAt) {
			c.remove(elem)
			removed++
		}
		elem = prev
	}
	return removed
}

// Len returns the number of cached vectors.
func (c *VectorLRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Evictions returns how many vectors were dropped for capacity.
func (c *VectorLRU) Evictions() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evictions
}

// Must be called with lock held.
func (c *VectorLRU) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.entries, elem.Value.(*vectorEntry).key)
}
