package cache

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"math"
	"sync/atomic"
	"time"

	"github.com/hrygo/secondbrain/plugin/ai"
)

// EmbeddingStats counts cache lookups of a CachedEmbeddingService.
type EmbeddingStats struct {
	Hits      int64
	Misses    int64
	Entries   int
	Evictions int64
}

// CachedEmbeddingService memoizes query vectors in the in-process VectorLRU
// and, when configured, a shared byte cache such as Redis.
type CachedEmbeddingService struct {
	next  ai.EmbeddingService
	l1    *VectorLRU
	l2    CacheService
	model string
	ttl   time.Duration

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCachedEmbeddingService wraps next. l2 may be nil. Keys include model so
// switching models never serves stale vectors.
func NewCachedEmbeddingService(next ai.EmbeddingService, l1 *VectorLRU, l2 CacheService, model string, ttl time.Duration) *CachedEmbeddingService {
	return &CachedEmbeddingService{
		next:  next,
		l1:    l1,
		l2:    l2,
		model: model,
		ttl:   ttl,
	}
}

func (s *CachedEmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch serves cached vectors and sends only the misses upstream.
func (s *CachedEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	var missing []int
	for i, text := range texts {
		if vector, ok := s.lookup(ctx, NewQueryKey(s.model, text)); ok {
			vectors[i] = vector
			s.hits.Add(1)
			continue
		}
		s.misses.Add(1)
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return vectors, nil
	}

	pending := make([]string, len(missing))
	for j, i := range missing {
		pending[j] = texts[i]
	}
	fresh, err := s.next.EmbedBatch(ctx, pending)
	if err != nil {
		return nil, err
	}
	for j, i := range missing {
		vectors[i] = fresh[j]
		s.store(ctx, NewQueryKey(s.model, texts[i]), fresh[j])
	}
	return vectors, nil
}

func (s *CachedEmbeddingService) Dimensions() int {
	return s.next.Dimensions()
}

// Stats returns the lookup counters and L1 occupancy.
func (s *CachedEmbeddingService) Stats() EmbeddingStats {
	return EmbeddingStats{
		Hits:      s.hits.Load(),
		Misses:    s.misses.Load(),
		Entries:   s.l1.Len(),
		Evictions: s.l1.Evictions(),
	}
}

func (s *CachedEmbeddingService) lookup(ctx context.Context, key QueryKey) ([]float32, bool) {
	if vector, ok := s.l1.Get(key); ok {
		return vector, true
	}
	if s.l2 == nil {
		return nil, false
	}
	data, ok := s.l2.Get(ctx, sharedKey(key))
	if !ok {
		return nil, false
	}
	vector, ok := decodeVector(data, s.next.Dimensions())
	if !ok {
		return nil, false
	}
	// Promote to L1; the dimension already matched on decode.
	_ = s.l1.Put(key, vector)
	return vector, true
}

func (s *CachedEmbeddingService) store(ctx context.Context, key QueryKey, vector []float32) {
	if err := s.l1.Put(key, vector); err != nil {
		slog.Warn("embedding not cached", "model", key.Model, "error", err)
		return
	}
	if s.l2 != nil {
		if err := s.l2.Set(ctx, sharedKey(key), encodeVector(vector), s.ttl); err != nil {
			slog.Debug("shared embedding cache write failed", "error", err)
		}
	}
}

func sharedKey(key QueryKey) string {
	return "emb:" + key.Model + ":" + hex.EncodeToString(key.Digest[:])
}

func encodeVector(vector []float32) []byte {
	buf := make([]byte, 4*len(vector))
	for i, v := range vector {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

func decodeVector(data []byte, dimensions int) ([]float32, bool) {
	if len(data) != 4*dimensions {
		return nil, false
	}
	vector := make([]float32, dimensions)
	for i := range vector {
		vector[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vector, true
}

var _ ai.EmbeddingService = (*CachedEmbeddingService)(nil)
