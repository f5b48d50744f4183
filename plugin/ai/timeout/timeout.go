// Package timeout defines centralized timeout constants for AI operations.
package timeout

import "time"

const (
	// EmbeddingTimeout bounds one embedding call including retries.
	EmbeddingTimeout = 30 * time.Second

	// EmbeddingRequestTimeout bounds a single HTTP attempt to the embedding provider.
	EmbeddingRequestTimeout = 10 * time.Second

	// SynthesisTimeout bounds answer synthesis. It is independent of the search deadline.
	SynthesisTimeout = 20 * time.Second

	// DateParseTimeout bounds date extraction from the query.
	DateParseTimeout = 2 * time.Second

	// BackfillBatchTimeout bounds one backfill batch, embedding and writes.
	BackfillBatchTimeout = time.Minute
)
