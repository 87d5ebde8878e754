package driven

import "context"

// IndexEntry is the unit stored in a vector index: one chunk's
// embedding keyed by chunk ID.
type IndexEntry struct {
	// ChunkID references a chunk in the same session.
	ChunkID string

	// Vector is the chunk's embedding.
	Vector []float32
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the cosine similarity to the query vector.
	Score float64
}

// VectorIndex provides nearest-neighbour similarity search over one
// session's chunk embeddings. Each session owns its own instance;
// instances are never shared across sessions.
//
// Search results are ordered by descending similarity with ties broken
// by insertion order (earlier entry wins). Serialize and Deserialize
// must round-trip exactly: a restored index returns identical results
// for identical queries.
type VectorIndex interface {
	// Insert appends entries to the index. The insert is atomic: on
	// error no entry from the call is retained. All vectors must share
	// the index's dimension; a mismatch fails with
	// domain.ErrDimensionMismatch.
	Insert(ctx context.Context, entries []IndexEntry) error

	// Search returns up to k hits for the query vector, best first.
	// Searching an empty index returns an empty slice, not an error.
	// A query dimension mismatch fails with domain.ErrDimensionMismatch.
	Search(ctx context.Context, query []float32, k int) ([]VectorHit, error)

	// Serialize encodes the index to a byte blob for persistence.
	Serialize() ([]byte, error)

	// Len returns the number of stored entries.
	Len() int

	// Dimensions returns the vector dimension, or 0 if empty.
	Dimensions() int
}

// VectorIndexFactory creates per-session vector index instances.
type VectorIndexFactory interface {
	// New returns a fresh, empty index.
	New() VectorIndex

	// Deserialize restores an index from a Serialize blob.
	Deserialize(blob []byte) (VectorIndex, error)
}
