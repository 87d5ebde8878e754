package driven

import "context"

// EmbeddingService generates vector embeddings from text via an
// external provider.
//
// Note: This is separate from VectorIndex which stores and searches
// vectors. EmbeddingService generates vectors; VectorIndex stores them.
//
// Implementations classify provider failures as transient
// (domain.ErrProviderTransient) or fatal (domain.ErrProviderFatal) and
// retry transient ones internally up to a configured budget before
// escalating them as fatal. A batch either succeeds completely or
// fails completely; callers never receive partial results.
type EmbeddingService interface {
	// Embed generates a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// input order. It batches provider calls up to the provider's
	// batch limit.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding vector size (e.g., 1536).
	// This is fixed by the model and must be constant across a session.
	Dimensions() int

	// ModelName returns the name of the embedding model in use.
	ModelName() string

	// Ping validates the provider is reachable with a lightweight
	// request that does not run inference.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}
