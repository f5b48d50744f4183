package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/hrygo/secondbrain/internal/profile"
	"github.com/hrygo/secondbrain/plugin/ai"
	"github.com/hrygo/secondbrain/plugin/ai/aitime"
	"github.com/hrygo/secondbrain/plugin/ai/cache"
	"github.com/hrygo/secondbrain/plugin/ai/timeout"
	"github.com/hrygo/secondbrain/server/internal/observability"
	sbmiddleware "github.com/hrygo/secondbrain/server/middleware"
	"github.com/hrygo/secondbrain/server/retrieval"
	apiv1 "github.com/hrygo/secondbrain/server/router/api/v1"
	"github.com/hrygo/secondbrain/server/runner/embedding"
	"github.com/hrygo/secondbrain/server/service/content"
	"github.com/hrygo/secondbrain/store"
)

const (
	embeddingCacheTTL      = 24 * time.Hour
	embeddingCacheCapacity = 2000
	rateLimiterPruneEvery  = 5 * time.Minute
)

// Server is the secondbrain HTTP server and its background runners.
type Server struct {
	Profile *profile.Profile
	Store   *store.Store

	echoServer  *echo.Echo
	rateLimiter *sbmiddleware.RateLimiter
	embedder    ai.EmbeddingService
	l1Cache     *cache.VectorCache
	redisCache  *cache.RedisCache

	runnerCancelFuncs []context.CancelFunc
	runnerWG          sync.WaitGroup
}

// NewServer wires the AI providers, services and routes. AI is optional:
// without an embedding provider, items are stored without embeddings and
// search answers UPSTREAM_UNAVAILABLE.
func NewServer(ctx context.Context, profile *profile.Profile, store *store.Store) (*Server, error) {
	s := &Server{
		Profile:     profile,
		Store:       store,
		rateLimiter: sbmiddleware.NewRateLimiter(),
	}

	echoServer := echo.New()
	echoServer.Debug = true
	echoServer.HideBanner = true
	echoServer.HidePort = true
	echoServer.Use(middleware.Recover())
	echoServer.Use(middleware.RequestID())
	echoServer.Use(middleware.BodyLimit("2M"))
	s.echoServer = echoServer

	var (
		synthesizer retrieval.AnswerSynthesizer
		cached      *cache.CachedEmbeddingService
	)
	if profile.IsAIEnabled() {
		aiConfig := ai.NewConfigFromProfile(profile)
		if err := aiConfig.Validate(); err != nil {
			return nil, errors.Wrap(err, "invalid AI configuration")
		}

		embedder, err := ai.NewEmbeddingService(&aiConfig.Embedding, ai.WithRequestTimeout(timeout.EmbeddingRequestTimeout))
		if err != nil {
			return nil, errors.Wrap(err, "failed to create embedding service")
		}
		s.l1Cache = cache.NewVectorCache(embedder.Dimensions(), cache.Config{Capacity: embeddingCacheCapacity, TTL: embeddingCacheTTL})
		var shared cache.CacheService
		if profile.RedisURL != "" {
			redisCache, err := cache.NewRedisCache(ctx, profile.RedisURL, "secondbrain:", embeddingCacheTTL)
			if err != nil {
				slog.Warn("redis unavailable, using in-process embedding cache only", "error", err)
			} else {
				s.redisCache = redisCache
				shared = redisCache
			}
		}
		cached = cache.NewCachedEmbeddingService(embedder, s.l1Cache.VectorLRU, shared, aiConfig.Embedding.Model, embeddingCacheTTL)
		s.embedder = cached

		if aiConfig.LLM.Provider != "" {
			llm, err := ai.NewLLMService(&aiConfig.LLM)
			if err != nil {
				slog.Warn("failed to create LLM service, answer synthesis disabled", "error", err)
			} else {
				synthesizer = ai.NewSynthesizer(llm)
			}
		}
	} else {
		slog.Info("AI is disabled: items are stored without embeddings")
	}

	dates := aitime.NewService(profile.Timezone)
	rankerOpts := []retrieval.RankerOption{
		retrieval.WithLocation(dates.Location()),
		retrieval.WithDefaultThreshold(profile.SearchThreshold),
		retrieval.WithMetrics(observability.NewMetrics(0)),
	}
	if synthesizer != nil {
		rankerOpts = append(rankerOpts, retrieval.WithSynthesizer(synthesizer))
	}

	ranker := retrieval.NewHybridRanker(store, s.embedder, dates, rankerOpts...)
	contentService := content.NewService(store, s.embedder)

	apiV1Service := apiv1.NewAPIV1Service(profile, contentService, ranker, s.rateLimiter)
	apiV1Service.EmbeddingCache = cached
	apiV1Service.RegisterRoutes(echoServer)

	return s, nil
}

// Start starts the background runners and serves HTTP until Shutdown.
func (s *Server) Start(ctx context.Context) error {
	address := net.JoinHostPort(s.Profile.Addr, fmt.Sprintf("%d", s.Profile.Port))
	listener, err := net.Listen("tcp", address)
	if err != nil {
		return errors.Wrap(err, "failed to listen")
	}

	s.startBackgroundRunners(ctx)

	go func() {
		if err := s.echoServer.Server.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("failed to start echo server", "error", err)
		}
	}()
	slog.Info("secondbrain started", "address", address, "version", s.Profile.Version, "mode", s.Profile.Mode)
	return nil
}

// Handler exposes the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.echoServer
}

// Shutdown stops the runners, the HTTP server, the caches and the store.
func (s *Server) Shutdown(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	slog.Info("server shutting down")

	for _, cancelFunc := range s.runnerCancelFuncs {
		cancelFunc()
	}
	s.runnerWG.Wait()

	if err := s.echoServer.Shutdown(ctx); err != nil {
		slog.Error("failed to shutdown server", "error", err)
	}

	if s.l1Cache != nil {
		s.l1Cache.Close()
	}
	if s.redisCache != nil {
		if err := s.redisCache.Close(); err != nil {
			slog.Error("failed to close redis cache", "error", err)
		}
	}
	if err := s.Store.Close(); err != nil {
		slog.Error("failed to close database", "error", err)
	}

	slog.Info("secondbrain stopped properly")
}

func (s *Server) startBackgroundRunners(ctx context.Context) {
	runnerCtx, cancel := context.WithCancel(ctx)
	s.runnerCancelFuncs = append(s.runnerCancelFuncs, cancel)

	if s.embedder != nil {
		runner := embedding.NewRunner(s.Store, s.embedder)
		s.runnerWG.Add(1)
		go func() {
			defer s.runnerWG.Done()
			runner.Run(runnerCtx)
		}()
		slog.Info("embedding runner started", "interval", "2m")
	}

	s.runnerWG.Add(1)
	go func() {
		defer s.runnerWG.Done()
		ticker := time.NewTicker(rateLimiterPruneEvery)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if n := s.rateLimiter.Prune(); n > 0 {
					slog.Debug("pruned idle rate limiters", "count", n)
				}
			case <-runnerCtx.Done():
				return
			}
		}
	}()
}
