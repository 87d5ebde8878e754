// Package chunker splits page text into overlapping segments for
// embedding and retrieval.
package chunker

import (
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

// DefaultSize is the default target chunk size in characters.
const DefaultSize = 1000

// DefaultOverlap is the default number of overlapping characters
// between consecutive chunks.
const DefaultOverlap = 100

// Chunker splits page text into chunks of a target character budget
// with fixed overlap. Segment boundaries prefer paragraph and sentence
// breaks over hard cuts. It is a pure transformation: no side effects,
// no external calls.
type Chunker struct {
	size    int
	overlap int
}

// Option configures the chunker.
type Option func(*Chunker)

// WithSize sets the target chunk size in characters.
func WithSize(size int) Option {
	return func(c *Chunker) {
		if size > 0 {
			c.size = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(c *Chunker) {
		if overlap >= 0 {
			c.overlap = overlap
		}
	}
}

// New creates a chunker with the given options.
func New(opts ...Option) *Chunker {
	c := &Chunker{
		size:    DefaultSize,
		overlap: DefaultOverlap,
	}

	for _, opt := range opts {
		opt(c)
	}

	// Overlap must leave room for forward progress.
	if c.overlap >= c.size {
		c.overlap = c.size / 4
	}

	return c
}

// ChunkPages splits the given pages into chunks for the document.
// Ordinals run across the whole document in page order. Empty or
// whitespace-only pages yield no chunks.
func (c *Chunker) ChunkPages(documentID string, pages []domain.Page) []domain.Chunk {
	var chunks []domain.Chunk
	ordinal := 0

	for _, page := range pages {
		if strings.TrimSpace(page.Text) == "" {
			continue
		}
		for _, span := range c.split(page.Text) {
			chunks = append(chunks, domain.Chunk{
				ID:         uuid.New().String(),
				DocumentID: documentID,
				Page:       page.Number,
				Ordinal:    ordinal,
				Text:       page.Text[span.start:span.end],
				Start:      span.start,
				End:        span.end,
			})
			ordinal++
		}
	}

	return chunks
}

type span struct {
	start int
	end   int
}

// split cuts text into [start, end) spans of at most the target size.
// When a cut would fall mid-text, it is moved back to the nearest
// paragraph break, then sentence break, as long as the break lies past
// the midpoint of the window.
func (c *Chunker) split(text string) []span {
	if len(text) <= c.size {
		return []span{{start: 0, end: len(text)}}
	}

	var spans []span
	start := 0

	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			spans = append(spans, span{start: start, end: len(text)})
			break
		}

		if cut := breakPoint(text, start, end, start+c.size/2); cut > 0 {
			end = cut
		} else {
			// A hard cut must not land inside a multi-byte rune.
			for end > start && !utf8.RuneStart(text[end]) {
				end--
			}
			if end == start {
				// Window smaller than the rune at start; keep it whole.
				_, n := utf8.DecodeRuneInString(text[start:])
				end = start + n
			}
		}

		spans = append(spans, span{start: start, end: end})

		next := end - c.overlap
		for next > start && !utf8.RuneStart(text[next]) {
			next--
		}
		// A break point before end-overlap would move the window
		// backwards; give up the overlap for this cut instead.
		if next <= start {
			next = end
		}
		start = next
	}

	return spans
}

// breakPoint finds a natural boundary in text[from:to] past min.
// Returns 0 when no acceptable boundary exists.
func breakPoint(text string, from, to, min int) int {
	if p := strings.LastIndex(text[from:to], "\n\n"); p >= 0 && from+p > min {
		return from + p + 2
	}
	if p := strings.LastIndex(text[from:to], ". "); p >= 0 && from+p > min {
		return from + p + 2
	}
	return 0
}
