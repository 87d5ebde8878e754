package services

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
	"github.com/regcap-labs/regcap/internal/core/ports/driving"
	"github.com/regcap-labs/regcap/internal/logger"
)

// Ensure RetrievalService implements the interface.
var _ driving.RetrievalService = (*RetrievalService)(nil)

// scoreEpsilon bounds the similarity difference under which two chunks
// are considered redundant candidates for deduplication.
const scoreEpsilon = 1e-3

// RetrievalService answers similarity queries against a session's
// indexed documents.
type RetrievalService struct {
	sessions *SessionService
	embedder driven.EmbeddingService
	defaults domain.RetrievalSettings
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(
	sessions *SessionService,
	embedder driven.EmbeddingService,
	defaults domain.RetrievalSettings,
) *RetrievalService {
	return &RetrievalService{
		sessions: sessions,
		embedder: embedder,
		defaults: defaults,
	}
}

// Retrieve embeds the question, searches the session's index and
// returns ranked, deduplicated results.
func (s *RetrievalService) Retrieve(
	ctx context.Context, sessionID, question string, topK int,
) ([]domain.RetrievalResult, error) {
	state, err := s.sessions.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is empty", domain.ErrInvalidInput)
	}
	if topK <= 0 {
		topK = s.defaults.TopK
	}

	logger.Section("Retrieval")
	logger.Debug("Session %s: query %q (top %d)", sessionID, question, topK)
	defer logger.Elapsed(time.Now(), "Retrieval finished")

	// A session with nothing indexed yields no results, not an error.
	if state.index.Len() == 0 {
		logger.Debug("Index empty, returning no results")
		return []domain.RetrievalResult{}, nil
	}

	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
	}

	// Embed outside the session lock so concurrent queries and
	// uploads in this session are not blocked by provider latency.
	query, err := s.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	// Over-fetch so deduplication can still fill topK.
	state.mu.RLock()
	hits, err := state.index.Search(ctx, query, topK*2)
	if err != nil {
		state.mu.RUnlock()
		return nil, fmt.Errorf("searching index: %w", err)
	}

	filenames := make(map[string]string, len(state.documents))
	for _, doc := range state.documents {
		filenames[doc.ID] = doc.Filename
	}

	results := make([]domain.RetrievalResult, 0, len(hits))
	spans := make([]domain.Chunk, 0, len(hits))
	for _, hit := range hits {
		chunk, ok := state.chunks[hit.ChunkID]
		if !ok {
			continue
		}
		results = append(results, domain.RetrievalResult{
			ChunkID: chunk.ID,
			Score:   hit.Score,
			Text:    chunk.Text,
			Citation: domain.Citation{
				Filename: filenames[chunk.DocumentID],
				Page:     chunk.Page,
				Ordinal:  chunk.Ordinal,
			},
		})
		spans = append(spans, chunk)
	}
	state.mu.RUnlock()

	results = dedupe(results, spans)
	if len(results) > topK {
		results = results[:topK]
	}

	logger.Debug("Returning %d results", len(results))
	return results, nil
}

// BuildContext assembles the answer context from retrieval results,
// truncated to the size budget with higher-scored chunks kept first.
func (s *RetrievalService) BuildContext(
	ctx context.Context, sessionID, question string, opts domain.RetrievalOptions,
) (*domain.QueryContext, error) {
	if opts.TopK <= 0 {
		opts.TopK = s.defaults.TopK
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = s.defaults.MaxContextChars
	}

	results, err := s.Retrieve(ctx, sessionID, question, opts.TopK)
	if err != nil {
		return nil, err
	}

	qc := &domain.QueryContext{Question: question}

	budget := opts.MaxContextChars
	seen := make(map[string]bool)
	for _, res := range results {
		if budget <= 0 {
			break
		}
		text := res.Text
		if len(text) > budget {
			// Truncate on a rune boundary, never mid-character.
			cut := budget
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
			text = text[:cut]
		}
		budget -= len(text)

		qc.Items = append(qc.Items, domain.ContextItem{
			Text:     text,
			Citation: res.Citation,
		})
		if ref := res.Citation.String(); !seen[ref] {
			seen[ref] = true
			qc.Sources = append(qc.Sources, ref)
		}
	}

	return qc, nil
}

// dedupe drops results that near-duplicate an earlier, better-ranked
// one: same document and page, near-identical score and a majority
// span overlap. Overlapping chunks score almost identically when the
// shared text dominates both, so only the best-ranked copy survives.
func dedupe(results []domain.RetrievalResult, spans []domain.Chunk) []domain.RetrievalResult {
	var kept []domain.RetrievalResult
	var keptSpans []domain.Chunk
	for i, cand := range results {
		redundant := false
		for j := range kept {
			if isNearDuplicate(keptSpans[j], spans[i], kept[j].Score, cand.Score) {
				redundant = true
				break
			}
		}
		if !redundant {
			kept = append(kept, cand)
			keptSpans = append(keptSpans, spans[i])
		}
	}
	return kept
}

func isNearDuplicate(a, b domain.Chunk, scoreA, scoreB float64) bool {
	if a.DocumentID != b.DocumentID || a.Page != b.Page {
		return false
	}
	if math.Abs(scoreA-scoreB) > scoreEpsilon {
		return false
	}
	return spanOverlap(a, b) > 0.5
}

// spanOverlap returns the shared fraction of the smaller chunk's span.
func spanOverlap(a, b domain.Chunk) float64 {
	lo := max(a.Start, b.Start)
	hi := min(a.End, b.End)
	if hi <= lo {
		return 0
	}
	smaller := min(a.End-a.Start, b.End-b.Start)
	if smaller <= 0 {
		return 0
	}
	return float64(hi-lo) / float64(smaller)
}
