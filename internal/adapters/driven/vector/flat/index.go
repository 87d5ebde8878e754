// Package flat provides an exact, in-memory vector index with cosine
// similarity search. Corpora are per-session PDF uploads, small enough
// that a flat scan outperforms graph structures while keeping results
// exact and serialization trivial.
package flat

import (
	"bytes"
	"context"
	"encoding/gob"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
)

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// Ensure Factory implements the interface.
var _ driven.VectorIndexFactory = (*Factory)(nil)

// entry is one stored vector. Seq is the explicit insertion sequence
// number used as the tiebreak key; ordering never depends on container
// iteration order.
type entry struct {
	ChunkID string
	Seq     uint64
	Vector  []float32
}

// Index is a flat cosine-similarity index over one session's chunk
// embeddings. Safe for concurrent use: searches take a read lock,
// inserts an exclusive lock.
type Index struct {
	mu      sync.RWMutex
	dims    int
	nextSeq uint64
	entries []entry
}

// NewIndex creates an empty index. The dimension is fixed by the first
// insert.
func NewIndex() *Index {
	return &Index{}
}

// Insert appends entries to the index. The whole call is validated
// before anything is stored, so a failed insert leaves the index
// untouched.
func (ix *Index) Insert(_ context.Context, entries []driven.IndexEntry) error {
	if len(entries) == 0 {
		return nil
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	dims := ix.dims
	if dims == 0 {
		dims = len(entries[0].Vector)
	}
	if dims == 0 {
		return fmt.Errorf("%w: empty vector for chunk %s", domain.ErrDimensionMismatch, entries[0].ChunkID)
	}
	for _, e := range entries {
		if len(e.Vector) != dims {
			return fmt.Errorf("%w: chunk %s has %d dimensions, index has %d",
				domain.ErrDimensionMismatch, e.ChunkID, len(e.Vector), dims)
		}
	}

	ix.dims = dims
	for _, e := range entries {
		vec := make([]float32, dims)
		copy(vec, e.Vector)
		ix.entries = append(ix.entries, entry{
			ChunkID: e.ChunkID,
			Seq:     ix.nextSeq,
			Vector:  vec,
		})
		ix.nextSeq++
	}

	return nil
}

// Search returns up to k hits sorted by descending cosine similarity,
// ties broken by insertion order. An empty index yields an empty
// result.
func (ix *Index) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if len(ix.entries) == 0 {
		return nil, nil
	}
	if len(query) != ix.dims {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d",
			domain.ErrDimensionMismatch, len(query), ix.dims)
	}
	if k <= 0 {
		return nil, nil
	}
	if k > len(ix.entries) {
		k = len(ix.entries)
	}

	queryNorm := norm(query)

	type scored struct {
		seq uint64
		hit driven.VectorHit
	}
	hits := make([]scored, 0, len(ix.entries))
	for _, e := range ix.entries {
		hits = append(hits, scored{
			seq: e.Seq,
			hit: driven.VectorHit{
				ChunkID: e.ChunkID,
				Score:   cosine(query, e.Vector, queryNorm),
			},
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].hit.Score != hits[j].hit.Score {
			return hits[i].hit.Score > hits[j].hit.Score
		}
		return hits[i].seq < hits[j].seq
	})

	results := make([]driven.VectorHit, k)
	for i := range results {
		results[i] = hits[i].hit
	}
	return results, nil
}

// Len returns the number of stored entries.
func (ix *Index) Len() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// Dimensions returns the vector dimension, or 0 if the index is empty.
func (ix *Index) Dimensions() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return ix.dims
}

// persistent is the gob wire form of an index. Vectors round-trip bit
// for bit, so a restored index returns identical search results.
type persistent struct {
	Dims    int
	NextSeq uint64
	Entries []entry
}

// Serialize encodes the index to a byte blob.
func (ix *Index) Serialize() ([]byte, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	var buf bytes.Buffer
	err := gob.NewEncoder(&buf).Encode(persistent{
		Dims:    ix.dims,
		NextSeq: ix.nextSeq,
		Entries: ix.entries,
	})
	if err != nil {
		return nil, fmt.Errorf("serialize index: %w", err)
	}
	return buf.Bytes(), nil
}

// Deserialize restores an index from a Serialize blob.
func Deserialize(blob []byte) (*Index, error) {
	var p persistent
	if err := gob.NewDecoder(bytes.NewReader(blob)).Decode(&p); err != nil {
		return nil, fmt.Errorf("deserialize index: %w", err)
	}
	return &Index{
		dims:    p.Dims,
		nextSeq: p.NextSeq,
		entries: p.Entries,
	}, nil
}

// Factory creates per-session flat indexes.
type Factory struct{}

// New returns a fresh, empty index.
func (Factory) New() driven.VectorIndex {
	return NewIndex()
}

// Deserialize restores an index from a Serialize blob.
func (Factory) Deserialize(blob []byte) (driven.VectorIndex, error) {
	return Deserialize(blob)
}

// cosine computes cosine similarity with float64 accumulation.
func cosine(query, vec []float32, queryNorm float64) float64 {
	var dot, vecNorm float64
	for i, v := range vec {
		dot += float64(query[i]) * float64(v)
		vecNorm += float64(v) * float64(v)
	}
	if queryNorm == 0 || vecNorm == 0 {
		return 0
	}
	return dot / (queryNorm * math.Sqrt(vecNorm))
}

// norm computes the L2 norm with float64 accumulation.
func norm(vec []float32) float64 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}
