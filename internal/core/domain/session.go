package domain

import "time"

// Session is an isolated bundle of documents, vector index and
// conversation history belonging to one user context. Sessions
// never share chunks, index entries or documents with each other.
type Session struct {
	// ID is the unique identifier for the session.
	ID string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// Documents are the session's uploaded documents in upload order.
	Documents []Document

	// Turns is the conversation history in chronological order.
	Turns []ConversationTurn

	// Unsynced is true when in-memory state has diverged from the
	// persisted snapshot (for example after a failed persist).
	Unsynced bool
}

// ConversationTurn is a single question/answer exchange.
type ConversationTurn struct {
	// Question is the user's question.
	Question string

	// Answer is the generated answer, recorded by the caller after
	// the answer-generation collaborator responds.
	Answer string

	// AskedAt is when the question was asked.
	AskedAt time.Time
}

// SessionInfo is a lightweight session listing entry.
type SessionInfo struct {
	// ID is the session identifier.
	ID string

	// CreatedAt is when the session was created.
	CreatedAt time.Time

	// DocumentCount is the number of uploaded documents.
	DocumentCount int
}

// Snapshot is the durable representation of a session: metadata,
// chunk texts and the serialized vector index. SaveSession and
// LoadSession must round-trip it exactly.
type Snapshot struct {
	// Session carries the session metadata, documents and turns.
	Session Session

	// Chunks holds every chunk across all of the session's documents.
	Chunks []Chunk

	// Index is the serialized vector index byte blob.
	Index []byte
}
