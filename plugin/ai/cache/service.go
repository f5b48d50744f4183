package cache

import (
	"context"
	"sync"
	"time"
)

// Config configures the in-process query embedding cache.
type Config struct {
	Capacity      int           // maximum number of vectors (default: 1000)
	TTL           time.Duration // vector lifetime (default: 1 hour)
	SweepInterval time.Duration // expired entry sweep (default: 1 minute)
}

// DefaultConfig returns the default cache configuration.
func DefaultConfig() Config {
	return Config{
		Capacity:      1000,
		TTL:           time.Hour,
		SweepInterval: time.Minute,
	}
}

// VectorCache is the L1 query embedding cache: a VectorLRU with a background
// sweep of expired vectors.
type VectorCache struct {
	*VectorLRU

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewVectorCache creates the cache for vectors of the given dimension and
// starts its sweep loop. Close stops it.
func NewVectorCache(dimensions int, cfg Config) *VectorCache {
	defaults := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = defaults.Capacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaults.TTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = defaults.SweepInterval
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &VectorCache{
		VectorLRU: NewVectorLRU(cfg.Capacity, dimensions, cfg.TTL),
		cancel:    cancel,
	}
	c.wg.Add(1)
	go c.sweepLoop(ctx, cfg.SweepInterval)
	return c
}

// Close stops the sweep loop.
func (c *VectorCache) Close() {
	c.cancel()
	c.wg.Wait()
}

func (c *VectorCache) sweepLoop(ctx context.Context, interval time.Duration) {
	defer c.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep()
		}
	}
}
