package cli

import (
	"bytes"
	"context"
	"strings"

	"github.com/regcap-labs/regcap/internal/adapters/driven/storage/memory"
	"github.com/regcap-labs/regcap/internal/adapters/driven/vector/flat"
	"github.com/regcap-labs/regcap/internal/chunker"
	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
	"github.com/regcap-labs/regcap/internal/core/services"
)

// stubEmbedder is a deterministic word-count embedder for command tests.
type stubEmbedder struct {
	vocab []string
}

func (s *stubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, len(s.vocab))
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,:;!?\"'()")
		for i, v := range s.vocab {
			if word == v {
				vec[i]++
			}
		}
	}
	return vec, nil
}

func (s *stubEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := s.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (s *stubEmbedder) Dimensions() int { return len(s.vocab) }

func (s *stubEmbedder) ModelName() string { return "stub" }

func (s *stubEmbedder) Ping(_ context.Context) error { return nil }

func (s *stubEmbedder) Close() error { return nil }

// setupTestServices wires real in-memory services behind the commands
// and returns a cleanup restoring the previous wiring.
func setupTestServices() func() {
	return setupTestServicesOn(memory.NewSnapshotStore())
}

// setupTestServicesOn wires services over the given snapshot store, so
// a test can rebuild them over the same store the way each CLI
// invocation does.
func setupTestServicesOn(store driven.SnapshotStore) func() {
	prevSessions := sessionService
	prevRetrieval := retrievalService

	embedder := &stubEmbedder{vocab: []string{"capital", "requirements", "reporting", "deadlines"}}
	sessions := services.NewSessionService(
		chunker.New(), embedder, flat.Factory{}, store)
	retrieval := services.NewRetrievalService(sessions, embedder, domain.DefaultSettings().Retrieval)

	sessionService = sessions
	retrievalService = retrieval

	return func() {
		sessionService = prevSessions
		retrievalService = prevRetrieval
	}
}

// execute runs the root command with args, capturing output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(args)
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}
