package retrieval

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/hrygo/secondbrain/plugin/ai"
	"github.com/hrygo/secondbrain/plugin/ai/aitime"
	"github.com/hrygo/secondbrain/plugin/ai/timeout"
	apierrors "github.com/hrygo/secondbrain/server/internal/errors"
	"github.com/hrygo/secondbrain/server/internal/observability"
	"github.com/hrygo/secondbrain/store"
)

const (
	// MaxQueryLength is the longest accepted query, in characters.
	MaxQueryLength = 1000
	// DefaultResultLimit is used when the request does not set a limit.
	DefaultResultLimit = 5
	// MaxResultLimit caps any requested limit.
	MaxResultLimit = 20
	// DefaultSimilarityThreshold is used when neither request nor ranker set one.
	DefaultSimilarityThreshold = 0.3
)

// Component names used in logs and metrics.
const (
	componentRanker     = "ranker"
	componentEmbedding  = "embedding"
	componentDateParser = "date_parser"
	componentSynthesis  = "synthesis"
)

// Warning describes a degraded but successful search.
type Warning string

const (
	WarningDateParseFailed         Warning = "date_parse_failed"
	WarningAnswerSynthesisFailed   Warning = "answer_synthesis_failed"
	WarningAnswerUnavailable       Warning = "answer_unavailable"
	WarningAnswerSynthesisDisabled Warning = "answer_synthesis_disabled"
)

// ContentSearcher runs the weighted-similarity query against stored items.
type ContentSearcher interface {
	HybridSearch(ctx context.Context, opts *store.HybridSearchOptions) ([]*store.ScoredContentItem, error)
}

// AnswerSynthesizer produces a short answer from one item's text.
type AnswerSynthesizer interface {
	Summarize(ctx context.Context, content, question string) (string, error)
}

// SearchRequest is a hybrid search request. Nil optional fields take their defaults.
type SearchRequest struct {
	OwnerID             string
	Query               string
	SimilarityThreshold *float64
	ResultLimit         *int
	UseAI               bool
}

// SearchResponse is the ranked result of a hybrid search.
type SearchResponse struct {
	Results []*store.ScoredContentItem
	// Answer and SourceItemID are set only when an answer was synthesized.
	Answer       string
	SourceItemID string
	ParsedDate   *time.Time
	Warnings     []Warning
}

// HybridRanker combines vector similarity, title matching and date matching
// into one ranked list of the owner's items.
type HybridRanker struct {
	searcher    ContentSearcher
	embedder    ai.EmbeddingService
	dates       aitime.DateParser
	synthesizer AnswerSynthesizer

	location  *time.Location
	threshold float64
	metrics   *observability.Metrics
	logger    *slog.Logger
}

// RankerOption configures a HybridRanker.
type RankerOption func(*HybridRanker)

// WithSynthesizer enables answer synthesis for useAI requests.
func WithSynthesizer(s AnswerSynthesizer) RankerOption {
	return func(r *HybridRanker) {
		r.synthesizer = s
	}
}

// WithLocation sets the time zone used for calendar date matching.
func WithLocation(loc *time.Location) RankerOption {
	return func(r *HybridRanker) {
		if loc != nil {
			r.location = loc
		}
	}
}

// WithDefaultThreshold overrides the similarity threshold used when a request omits it.
func WithDefaultThreshold(threshold float64) RankerOption {
	return func(r *HybridRanker) {
		if threshold >= 0 && threshold <= 1 {
			r.threshold = threshold
		}
	}
}

// WithMetrics records request and component counters.
func WithMetrics(m *observability.Metrics) RankerOption {
	return func(r *HybridRanker) {
		r.metrics = m
	}
}

// WithLogger sets the logger used when the request carries no request context.
func WithLogger(logger *slog.Logger) RankerOption {
	return func(r *HybridRanker) {
		r.logger = logger
	}
}

// NewHybridRanker creates a ranker. dates may be nil, in which case no date is ever matched.
func NewHybridRanker(searcher ContentSearcher, embedder ai.EmbeddingService, dates aitime.DateParser, opts ...RankerOption) *HybridRanker {
	r := &HybridRanker{
		searcher:  searcher,
		embedder:  embedder,
		dates:     dates,
		location:  time.UTC,
		threshold: DefaultSimilarityThreshold,
		metrics:   observability.NewMetrics(0),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Metrics returns the ranker's metrics collector.
func (r *HybridRanker) Metrics() *observability.Metrics {
	return r.metrics
}

type validatedRequest struct {
	ownerID   string
	query     string
	threshold float64
	limit     int
	useAI     bool
}

func (r *HybridRanker) validate(req *SearchRequest) (*validatedRequest, error) {
	if req == nil {
		return nil, apierrors.InvalidArgument("request is required")
	}
	owner := strings.TrimSpace(req.OwnerID)
	if owner == "" {
		return nil, apierrors.InvalidArgument("owner id is required")
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		return nil, apierrors.InvalidArgument("query is required")
	}
	if n := utf8.RuneCountInString(query); n > MaxQueryLength {
		return nil, apierrors.InvalidArgumentf("query too long: maximum %d characters, got %d", MaxQueryLength, n)
	}

	threshold := r.threshold
	if req.SimilarityThreshold != nil {
		threshold = *req.SimilarityThreshold
		if math.IsNaN(threshold) || threshold < 0 || threshold > 1 {
			return nil, apierrors.InvalidArgument("similarityThreshold must be between 0 and 1")
		}
	}

	limit := DefaultResultLimit
	if req.ResultLimit != nil {
		switch {
		case *req.ResultLimit < 0:
			return nil, apierrors.InvalidArgument("resultLimit must not be negative")
		case *req.ResultLimit == 0:
		case *req.ResultLimit > MaxResultLimit:
			limit = MaxResultLimit
		default:
			limit = *req.ResultLimit
		}
	}

	return &validatedRequest{
		ownerID:   owner,
		query:     query,
		threshold: threshold,
		limit:     limit,
		useAI:     req.UseAI,
	}, nil
}

// Search validates the request, embeds the query, parses an optional date,
// ranks the owner's items and optionally synthesizes an answer from the top one.
// AI failures after ranking are reported as warnings and never fail the search.
func (r *HybridRanker) Search(ctx context.Context, req *SearchRequest) (*SearchResponse, error) {
	r.metrics.RecordRequest()
	start := time.Now()
	defer func() { r.metrics.RecordDuration(time.Since(start)) }()

	v, err := r.validate(req)
	if err != nil {
		r.metrics.RecordFailure()
		return nil, err
	}

	reqCtx := r.requestContext(ctx, v.ownerID)
	reqCtx.Debug("hybrid search started",
		slog.Int(observability.LogFieldQueryLen, len(v.query)),
		slog.Float64("threshold", v.threshold),
		slog.Int("limit", v.limit),
		slog.Bool("use_ai", v.useAI),
	)

	resp := &SearchResponse{}
	vector, parsedDate, err := r.prepare(ctx, reqCtx, v, resp)
	if err != nil {
		r.metrics.RecordFailure()
		reqCtx.Error("query embedding failed", err,
			slog.String(observability.LogFieldErrorCode, string(apierrors.GetCodeFromError(err, apierrors.ErrCodeInternal))),
			slog.String("failing_component", componentEmbedding),
		)
		return nil, err
	}
	resp.ParsedDate = parsedDate

	results, err := r.searcher.HybridSearch(ctx, &store.HybridSearchOptions{
		OwnerID:    v.ownerID,
		Vector:     vector,
		Query:      v.query,
		ParsedDate: parsedDate,
		Location:   r.location,
		Threshold:  v.threshold,
		Limit:      v.limit,
		Weights:    store.DefaultHybridWeights,
	})
	if err != nil {
		r.metrics.RecordFailure()
		reqCtx.Error("hybrid query failed", err)
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apierrors.Timeout("search timed out", err)
		}
		return nil, apierrors.Internal("failed to search content", err)
	}
	if results == nil {
		results = []*store.ScoredContentItem{}
	}
	resp.Results = results
	if len(results) == 0 {
		r.metrics.RecordEmptyResult()
	}

	if v.useAI && len(results) > 0 {
		r.synthesize(ctx, reqCtx, v, resp)
	}

	reqCtx.Info("hybrid search completed",
		slog.Int(observability.LogFieldResultCount, len(results)),
		slog.Int64(observability.LogFieldDuration, time.Since(start).Milliseconds()),
		slog.Int("warnings", len(resp.Warnings)),
	)
	return resp, nil
}

// prepare embeds the query and parses a date concurrently. Only the embedding can fail the search.
func (r *HybridRanker) prepare(ctx context.Context, reqCtx *observability.RequestContext, v *validatedRequest, resp *SearchResponse) ([]float32, *time.Time, error) {
	if r.embedder == nil {
		return nil, nil, apierrors.UpstreamUnavailable("embedding provider is not configured", nil)
	}

	var (
		vector     []float32
		parsedDate *time.Time
		dateErr    error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		embedCtx, cancel := context.WithTimeout(gctx, timeout.EmbeddingTimeout)
		defer cancel()

		start := time.Now()
		vec, err := r.embedder.Embed(embedCtx, v.query)
		r.metrics.RecordCall(componentEmbedding, time.Since(start), err)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				return apierrors.Timeout("query embedding timed out", err)
			}
			return apierrors.UpstreamUnavailable("query embedding failed", err)
		}
		vector = vec
		return nil
	})
	if r.dates != nil {
		g.Go(func() error {
			dateCtx, cancel := context.WithTimeout(gctx, timeout.DateParseTimeout)
			defer cancel()

			start := time.Now()
			parsedDate, dateErr = r.dates.ParseDate(dateCtx, v.query)
			r.metrics.RecordCall(componentDateParser, time.Since(start), dateErr)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	if dateErr != nil {
		parsedDate = nil
		resp.Warnings = append(resp.Warnings, WarningDateParseFailed)
		r.metrics.RecordWarning(componentDateParser)
		reqCtx.Warn("date parsing failed, continuing without date",
			slog.String("error", dateErr.Error()),
		)
	}
	return vector, parsedDate, nil
}

func (r *HybridRanker) synthesize(ctx context.Context, reqCtx *observability.RequestContext, v *validatedRequest, resp *SearchResponse) {
	if r.synthesizer == nil {
		resp.Warnings = append(resp.Warnings, WarningAnswerSynthesisDisabled)
		return
	}

	top := resp.Results[0].Item
	content := top.Body
	if strings.TrimSpace(content) == "" {
		content = top.Title
	}

	synthCtx, cancel := context.WithTimeout(ctx, timeout.SynthesisTimeout)
	defer cancel()

	start := time.Now()
	answer, err := r.synthesizer.Summarize(synthCtx, content, v.query)
	r.metrics.RecordCall(componentSynthesis, time.Since(start), err)
	switch {
	case err != nil:
		resp.Warnings = append(resp.Warnings, WarningAnswerSynthesisFailed)
		r.metrics.RecordWarning(componentSynthesis)
		reqCtx.Warn("answer synthesis failed",
			slog.String("error", err.Error()),
			slog.String("failing_component", componentSynthesis),
		)
	case strings.TrimSpace(answer) == "":
		resp.Warnings = append(resp.Warnings, WarningAnswerUnavailable)
		r.metrics.RecordWarning(componentSynthesis)
	default:
		resp.Answer = strings.TrimSpace(answer)
		resp.SourceItemID = top.ID
	}
}

func (r *HybridRanker) requestContext(ctx context.Context, ownerID string) *observability.RequestContext {
	if reqCtx, ok := observability.FromContext(ctx); ok {
		return reqCtx.WithComponent(componentRanker)
	}
	return observability.NewRequestContext(r.logger, componentRanker, ownerID)
}
