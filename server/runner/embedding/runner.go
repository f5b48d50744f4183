package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/hrygo/secondbrain/plugin/ai"
	"github.com/hrygo/secondbrain/plugin/ai/timeout"
	"github.com/hrygo/secondbrain/server/service/content"
	"github.com/hrygo/secondbrain/store"
)

// Store is the subset of the store the runner needs.
type Store interface {
	FindContentItemsWithoutEmbedding(ctx context.Context, limit int) ([]*store.ContentItem, error)
	UpdateContentItemEmbedding(ctx context.Context, id string, embedding []float32) error
}

// Runner fills in embeddings for items stored while the provider was unavailable.
type Runner struct {
	store            Store
	embeddingService ai.EmbeddingService
	interval         time.Duration
	batchSize        int
	poolSize         int

	embedded atomic.Int64
	failed   atomic.Int64
}

// Option configures a Runner.
type Option func(*Runner)

// WithInterval sets the time between backfill passes.
func WithInterval(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithBatchSize sets how many items share one EmbedBatch call.
func WithBatchSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.batchSize = n
		}
	}
}

// WithPoolSize sets how many batches are embedded concurrently.
func WithPoolSize(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.poolSize = n
		}
	}
}

// NewRunner creates a vector embedding runner.
// Small batches keep memory peaks low; a long interval keeps CPU contention low.
func NewRunner(st Store, embeddingService ai.EmbeddingService, opts ...Option) *Runner {
	r := &Runner{
		store:            st,
		embeddingService: embeddingService,
		interval:         2 * time.Minute,
		batchSize:        8,
		poolSize:         4,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run starts the background task. It returns when ctx is done.
func (r *Runner) Run(ctx context.Context) {
	// Process once on startup
	r.processPendingItems(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.processPendingItems(ctx)
		case <-ctx.Done():
			slog.Info("embedding runner stopped",
				"embedded", r.embedded.Load(),
				"failed", r.failed.Load(),
			)
			return
		}
	}
}

// RunOnce processes pending items once and returns the number embedded in this pass.
func (r *Runner) RunOnce(ctx context.Context) int {
	return r.processPendingItems(ctx)
}

// Stats returns the totals since the runner was created.
func (r *Runner) Stats() (embedded, failed int64) {
	return r.embedded.Load(), r.failed.Load()
}

func (r *Runner) processPendingItems(ctx context.Context) int {
	items, err := r.store.FindContentItemsWithoutEmbedding(ctx, r.batchSize*20)
	if err != nil {
		slog.Error("failed to find items without embedding", "error", err)
		return 0
	}
	if len(items) == 0 {
		return 0
	}

	slog.Info("processing items for embedding", "count", len(items))

	pool, err := ants.NewPool(r.poolSize)
	if err != nil {
		slog.Error("failed to create embedding worker pool", "error", err)
		return 0
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		embedded atomic.Int64
	)
	for i := 0; i < len(items); i += r.batchSize {
		if ctx.Err() != nil {
			slog.Info("embedding processing cancelled", "submitted", i, "total", len(items))
			break
		}

		end := min(i+r.batchSize, len(items))
		batch := items[i:end]
		progress := fmt.Sprintf("%d/%d", end, len(items))

		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			n, err := r.processBatch(ctx, batch)
			embedded.Add(int64(n))
			if err != nil {
				slog.Error("failed to process batch", "error", err, "count", len(batch))
				return
			}
			slog.Info("batch processed", "count", len(batch), "progress", progress)
		}); err != nil {
			wg.Done()
			slog.Error("failed to submit embedding batch", "error", err)
		}
	}
	wg.Wait()
	return int(embedded.Load())
}

func (r *Runner) processBatch(ctx context.Context, items []*store.ContentItem) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	batchCtx, cancel := context.WithTimeout(ctx, timeout.BackfillBatchTimeout)
	defer cancel()

	texts := make([]string, len(items))
	for i, item := range items {
		texts[i] = content.EmbeddingInput(item)
	}

	vectors, err := r.embeddingService.EmbedBatch(batchCtx, texts)
	if err != nil {
		r.failed.Add(int64(len(items)))
		return 0, err
	}
	if len(vectors) != len(items) {
		r.failed.Add(int64(len(items)))
		return 0, fmt.Errorf("embedding count mismatch: got %d, want %d", len(vectors), len(items))
	}

	done := 0
	for i, item := range items {
		if err := r.store.UpdateContentItemEmbedding(batchCtx, item.ID, vectors[i]); err != nil {
			r.failed.Add(1)
			slog.Error("failed to store embedding", "itemID", item.ID, "error", err)
			continue
		}
		done++
	}
	r.embedded.Add(int64(done))
	return done, nil
}
