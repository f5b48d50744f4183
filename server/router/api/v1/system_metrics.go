package v1

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/hrygo/secondbrain/server/internal/observability"
)

type embeddingCacheResponse struct {
	Hits      int64   `json:"hits"`
	Misses    int64   `json:"misses"`
	HitRate   float64 `json:"hitRate"`
	Entries   int     `json:"entries"`
	Evictions int64   `json:"evictions"`
}

// MetricsResponse is the counters snapshot of search and provider calls.
type MetricsResponse struct {
	Search         *observability.MetricsSnapshot `json:"search"`
	EmbeddingCache *embeddingCacheResponse         `json:"embeddingCache,omitempty"`
}

// GetMetrics returns the in-process counters.
// GET /api/v1/metrics
func (s *APIV1Service) GetMetrics(c echo.Context) error {
	response := MetricsResponse{Search: s.Ranker.Metrics().Snapshot()}
	if s.EmbeddingCache != nil {
		stats := s.EmbeddingCache.Stats()
		cacheResponse := &embeddingCacheResponse{
			Hits:      stats.Hits,
			Misses:    stats.Misses,
			Entries:   stats.Entries,
			Evictions: stats.Evictions,
		}
		if total := stats.Hits + stats.Misses; total > 0 {
			cacheResponse.HitRate = float64(stats.Hits) / float64(total)
		}
		response.EmbeddingCache = cacheResponse
	}
	return c.JSON(http.StatusOK, response)
}
