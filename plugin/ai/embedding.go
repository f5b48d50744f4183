package ai

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/hrygo/secondbrain/plugin/ai/timeout"
)

// ErrDimensionMismatch is returned when the provider answers with vectors of the wrong length.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// EmbeddingService is the vector embedding service interface.
type EmbeddingService interface {
	// Embed generates vector for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates vectors for multiple texts, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector dimension.
	Dimensions() int
}

type embeddingService struct {
	client         *openai.Client
	model          string
	dimensions     int
	sendDimensions bool
	maxBytes       int
	requestTimeout time.Duration
	retry          RetryPolicy
}

// EmbeddingOption tunes an embedding service.
type EmbeddingOption func(*embeddingService)

// WithRetryPolicy overrides DefaultRetryPolicy.
func WithRetryPolicy(policy RetryPolicy) EmbeddingOption {
	return func(s *embeddingService) {
		s.retry = policy
	}
}

// WithRequestTimeout overrides the per-attempt timeout.
func WithRequestTimeout(d time.Duration) EmbeddingOption {
	return func(s *embeddingService) {
		s.requestTimeout = d
	}
}

// NewEmbeddingService creates a new EmbeddingService.
func NewEmbeddingService(cfg *EmbeddingConfig, opts ...EmbeddingOption) (EmbeddingService, error) {
	var clientConfig openai.ClientConfig

	switch cfg.Provider {
	case "openai", "siliconflow":
		clientConfig = openai.DefaultConfig(cfg.APIKey)
	case "ollama":
		// Ollama ignores the key but the client requires one.
		clientConfig = openai.DefaultConfig("ollama")
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}

	maxBytes := cfg.MaxBytes
	if maxBytes <= 0 {
		maxBytes = 8000
	}

	s := &embeddingService{
		client:     openai.NewClientWithConfig(clientConfig),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		// Only the text-embedding-3 family accepts a dimensions parameter.
		sendDimensions: cfg.Provider == "openai",
		maxBytes:       maxBytes,
		requestTimeout: timeout.EmbeddingRequestTimeout,
		retry:          DefaultRetryPolicy,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func (s *embeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := s.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (s *embeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts provided for embedding")
	}

	input := make([]string, len(texts))
	for i, text := range texts {
		input[i] = TruncateText(text, s.maxBytes)
	}

	req := openai.EmbeddingRequest{
		Input: input,
		Model: openai.EmbeddingModel(s.model),
	}
	if s.sendDimensions {
		req.Dimensions = s.dimensions
	}

	var resp openai.EmbeddingResponse
	err := RetryWithBackoff(ctx, s.retry, func(ctx context.Context) error {
		attemptCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()

		var err error
		resp, err = s.client.CreateEmbeddings(attemptCtx, req)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings failed: %w", err)
	}

	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool {
		return data[i].Index < data[j].Index
	})

	vectors := make([][]float32, len(data))
	for i, d := range data {
		if len(d.Embedding) != s.dimensions {
			return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(d.Embedding), s.dimensions)
		}
		vectors[i] = d.Embedding
	}
	return vectors, nil
}

func (s *embeddingService) Dimensions() int {
	return s.dimensions
}
