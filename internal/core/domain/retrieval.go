package domain

import "fmt"

// Citation identifies where a retrieved chunk came from.
type Citation struct {
	// Filename is the source document's upload filename.
	Filename string

	// Page is the 1-based page number.
	Page int

	// Ordinal is the chunk's position within the document.
	Ordinal int
}

// String renders the citation as "filename, page N".
func (c Citation) String() string {
	return fmt.Sprintf("%s, page %d", c.Filename, c.Page)
}

// RetrievalResult is a scored chunk produced for a single query.
// Results are ephemeral: they are assembled per query and never
// persisted.
type RetrievalResult struct {
	// ChunkID is the matched chunk.
	ChunkID string

	// Score is the cosine similarity to the query vector.
	Score float64

	// Text is the chunk content.
	Text string

	// Citation locates the chunk for display.
	Citation Citation
}

// ContextItem is one entry of the assembled answer context.
type ContextItem struct {
	// Text is the chunk content.
	Text string

	// Citation locates the chunk for display.
	Citation Citation
}

// QueryContext is the assembled, ranked, deduplicated context handed
// to the external answer-generation collaborator together with the
// original question.
type QueryContext struct {
	// Question is the user's original question.
	Question string

	// Items are the context entries, highest score first.
	Items []ContextItem

	// Sources is the deduplicated list of "filename, page N"
	// references covered by Items, in first-seen order.
	Sources []string
}

// RetrievalOptions configures a retrieval request.
type RetrievalOptions struct {
	// TopK is the maximum number of results to return.
	TopK int

	// MaxContextChars caps the total text size of the assembled
	// context. Zero means no cap.
	MaxContextChars int
}
