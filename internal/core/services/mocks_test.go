package services

import (
	"context"
	"strings"
	"sync"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
)

// --- Mock implementations ---

// bowEmbedder is a deterministic bag-of-words embedder for tests: the
// vector counts occurrences of each vocabulary word in the text, so
// texts sharing terms score high cosine similarity.
type bowEmbedder struct {
	vocab []string

	mu         sync.Mutex
	batchCalls int

	// failOn makes the Nth EmbedBatch call fail (1-based); 0 disables.
	failOn  int
	failErr error

	// block, when non-nil, makes EmbedBatch wait until the channel is
	// closed or the context is cancelled.
	block chan struct{}
}

func newBowEmbedder(vocab ...string) *bowEmbedder {
	return &bowEmbedder{vocab: vocab}
}

func (m *bowEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(m.vocab))
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?\"'()")
		for i, v := range m.vocab {
			if word == v {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (m *bowEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	m.batchCalls++
	call := m.batchCalls
	m.mu.Unlock()

	if m.block != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-m.block:
		}
	}
	if m.failOn != 0 && call >= m.failOn {
		return nil, m.failErr
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (m *bowEmbedder) Dimensions() int { return len(m.vocab) }

func (m *bowEmbedder) ModelName() string { return "bow-test" }

func (m *bowEmbedder) Ping(_ context.Context) error { return nil }

func (m *bowEmbedder) Close() error { return nil }

func (m *bowEmbedder) calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.batchCalls
}

// failingSnapshotStore wraps a real store and fails saves on demand.
type failingSnapshotStore struct {
	driven.SnapshotStore
	saveErr error
}

func (f *failingSnapshotStore) SaveSession(ctx context.Context, snap *domain.Snapshot) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	return f.SnapshotStore.SaveSession(ctx, snap)
}
