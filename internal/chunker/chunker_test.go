package chunker

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

func TestNew_Defaults(t *testing.T) {
	c := New()
	assert.Equal(t, DefaultSize, c.size)
	assert.Equal(t, DefaultOverlap, c.overlap)
}

func TestNew_OverlapClampedBelowSize(t *testing.T) {
	c := New(WithSize(100), WithOverlap(100))
	assert.Equal(t, 25, c.overlap)
}

func TestChunkPages_EmptyPages(t *testing.T) {
	c := New()

	chunks := c.ChunkPages("doc-1", []domain.Page{
		{Number: 1, Text: ""},
		{Number: 2, Text: "   \n\t  "},
	})

	assert.Empty(t, chunks)
}

func TestChunkPages_ShortPageSingleChunk(t *testing.T) {
	c := New()

	chunks := c.ChunkPages("doc-1", []domain.Page{
		{Number: 3, Text: "A short page."},
	})

	require.Len(t, chunks, 1)
	assert.Equal(t, "doc-1", chunks[0].DocumentID)
	assert.Equal(t, 3, chunks[0].Page)
	assert.Equal(t, 0, chunks[0].Ordinal)
	assert.Equal(t, "A short page.", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len("A short page."), chunks[0].End)
	assert.NotEmpty(t, chunks[0].ID)
}

func TestChunkPages_SpansTileWithOverlap(t *testing.T) {
	c := New(WithSize(100), WithOverlap(20))
	// Uniform text with no natural breaks forces hard cuts.
	text := strings.Repeat("x", 450)

	chunks := c.ChunkPages("doc-1", []domain.Page{{Number: 1, Text: text}})

	require.NotEmpty(t, chunks)
	assert.Equal(t, 0, chunks[0].Start)
	for i, ch := range chunks {
		// Each chunk's text matches its recorded span.
		assert.Equal(t, text[ch.Start:ch.End], ch.Text)
		assert.LessOrEqual(t, ch.End-ch.Start, 100)
		if i > 0 {
			// Consecutive spans overlap by exactly the configured amount,
			// so the union reconstructs the page in order.
			assert.Equal(t, chunks[i-1].End-20, ch.Start)
		}
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}

func TestChunkPages_ReconstructsOriginalText(t *testing.T) {
	c := New(WithSize(120), WithOverlap(30))
	text := strings.Repeat("regulatory capital requirements apply. ", 40)

	chunks := c.ChunkPages("doc-1", []domain.Page{{Number: 1, Text: text}})
	require.NotEmpty(t, chunks)

	var rebuilt strings.Builder
	end := 0
	for _, ch := range chunks {
		require.LessOrEqual(t, ch.Start, end, "spans must not leave gaps")
		if ch.End > end {
			rebuilt.WriteString(text[max(ch.Start, end):ch.End])
			end = ch.End
		}
	}
	assert.Equal(t, text, rebuilt.String())
}

func TestChunkPages_PrefersSentenceBreak(t *testing.T) {
	c := New(WithSize(100), WithOverlap(10))
	// A sentence break sits past the window midpoint; the cut should
	// land after it rather than at the hard 100-char limit.
	text := strings.Repeat("a", 70) + ". " + strings.Repeat("b", 100)

	chunks := c.ChunkPages("doc-1", []domain.Page{{Number: 1, Text: text}})

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, strings.Repeat("a", 70)+". ", chunks[0].Text)
}

func TestChunkPages_PrefersParagraphBreak(t *testing.T) {
	c := New(WithSize(100), WithOverlap(10))
	text := strings.Repeat("a", 80) + "\n\n" + strings.Repeat("b", 100)

	chunks := c.ChunkPages("doc-1", []domain.Page{{Number: 1, Text: text}})

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, strings.Repeat("a", 80)+"\n\n", chunks[0].Text)
}

func TestChunkPages_IgnoresEarlyBreaks(t *testing.T) {
	c := New(WithSize(100), WithOverlap(10))
	// The only break is before the midpoint, so a hard cut applies.
	text := "Hi. " + strings.Repeat("c", 200)

	chunks := c.ChunkPages("doc-1", []domain.Page{{Number: 1, Text: text}})

	require.NotEmpty(t, chunks)
	assert.Len(t, chunks[0].Text, 100)
}

func TestChunkPages_LargeOverlapStillAdvances(t *testing.T) {
	c := New(WithSize(100), WithOverlap(80))
	// The sentence break just past the window midpoint keeps less text
	// than the configured overlap, so no overlap applies to that cut.
	text := strings.Repeat("A", 53) + ". " + strings.Repeat("B", 300)

	chunks := c.ChunkPages("doc-1", []domain.Page{{Number: 1, Text: text}})

	require.NotEmpty(t, chunks)
	for i := 1; i < len(chunks); i++ {
		assert.Greater(t, chunks[i].Start, chunks[i-1].Start)
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}

func TestChunkPages_HardCutsKeepRunesIntact(t *testing.T) {
	c := New(WithSize(100), WithOverlap(10))
	// Three-byte runes; 100 is never a rune boundary here, so hard cuts
	// and overlap starts must both back off to one.
	text := strings.Repeat("規制", 120)

	chunks := c.ChunkPages("doc-1", []domain.Page{{Number: 1, Text: text}})

	require.NotEmpty(t, chunks)
	for _, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Text), "chunk %d splits a rune", ch.Ordinal)
		assert.Equal(t, text[ch.Start:ch.End], ch.Text)
		assert.LessOrEqual(t, ch.End-ch.Start, 100)
	}
	assert.Equal(t, len(text), chunks[len(chunks)-1].End)
}

func TestChunkPages_OrdinalsRunAcrossPages(t *testing.T) {
	c := New(WithSize(50), WithOverlap(5))

	chunks := c.ChunkPages("doc-1", []domain.Page{
		{Number: 1, Text: strings.Repeat("p", 80)},
		{Number: 2, Text: ""},
		{Number: 3, Text: strings.Repeat("q", 80)},
	})

	require.NotEmpty(t, chunks)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.Ordinal)
	}
	assert.Equal(t, 1, chunks[0].Page)
	assert.Equal(t, 3, chunks[len(chunks)-1].Page)
}

func TestChunkPages_UniqueIDs(t *testing.T) {
	c := New(WithSize(50), WithOverlap(5))

	chunks := c.ChunkPages("doc-1", []domain.Page{
		{Number: 1, Text: strings.Repeat("z", 300)},
	})

	seen := make(map[string]bool)
	for _, ch := range chunks {
		assert.False(t, seen[ch.ID], "duplicate chunk ID %s", ch.ID)
		seen[ch.ID] = true
	}
}
