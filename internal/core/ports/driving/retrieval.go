package driving

import (
	"context"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

// RetrievalService finds the chunks most relevant to a question within
// one session. It does not call a language model; its output is handed
// to the external answer-generation collaborator.
type RetrievalService interface {
	// Retrieve embeds the question, searches the session's index and
	// returns ranked, deduplicated results. A session with no indexed
	// documents yields an empty slice, not an error.
	Retrieve(ctx context.Context, sessionID, question string, topK int) ([]domain.RetrievalResult, error)

	// BuildContext assembles the answer context from retrieval
	// results, truncated to the configured size budget with
	// higher-scored chunks kept first.
	BuildContext(ctx context.Context, sessionID, question string, opts domain.RetrievalOptions) (*domain.QueryContext, error)
}
