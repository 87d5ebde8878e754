package domain

import "time"

// Page is a single page of extracted document text.
// The PDF-extraction collaborator supplies these; RegCap never
// sees raw PDF bytes.
type Page struct {
	// Number is the 1-based page number in the source document.
	Number int

	// Text is the extracted plain text for the page, already
	// stripped of binary and layout artifacts.
	Text string
}

// Document represents an uploaded document within a session.
// It is immutable once created; re-uploading a file produces a
// new Document with a new ID.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// SessionID links to the owning Session.
	SessionID string

	// Filename is the original upload filename, used in citations.
	Filename string

	// UploadedAt is when the upload completed.
	UploadedAt time.Time

	// ChunkIDs lists the document's chunks in reading order.
	ChunkIDs []string
}

// Chunk represents the atomic retrieval unit: a bounded span of
// document text with positional metadata for stable citation.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// DocumentID links to the parent Document.
	DocumentID string

	// Page is the 1-based page number the chunk was cut from.
	Page int

	// Ordinal is the chunk's position within the document.
	Ordinal int

	// Text is the chunk content.
	Text string

	// Start is the byte offset of Text within the page.
	Start int

	// End is the byte offset one past the last byte of Text
	// within the page.
	End int
}
