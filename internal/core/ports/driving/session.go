package driving

import (
	"context"
	"time"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

// JobStatus is the lifecycle state of a background upload job.
type JobStatus string

// Upload job states.
const (
	// JobPending means the job is queued but not yet running.
	JobPending JobStatus = "pending"

	// JobRunning means chunking/embedding/indexing is in progress.
	JobRunning JobStatus = "running"

	// JobDone means the document was fully indexed.
	JobDone JobStatus = "done"

	// JobFailed means the job aborted; no partial state was retained.
	JobFailed JobStatus = "failed"

	// JobCancelled means the job was cancelled; no partial state was
	// retained.
	JobCancelled JobStatus = "cancelled"
)

// Terminal returns true once the job can no longer change state.
func (s JobStatus) Terminal() bool {
	return s == JobDone || s == JobFailed || s == JobCancelled
}

// UploadJob reports the progress of a background document upload.
type UploadJob struct {
	// ID is the job identifier, returned by AddDocumentAsync.
	ID string

	// SessionID is the target session.
	SessionID string

	// Filename is the document being uploaded.
	Filename string

	// Status is the current lifecycle state.
	Status JobStatus

	// Document is set once Status is JobDone.
	Document *domain.Document

	// Error describes the failure when Status is JobFailed.
	Error string

	// StartedAt is when the job was accepted.
	StartedAt time.Time

	// FinishedAt is when the job reached a terminal state.
	FinishedAt time.Time
}

// SessionService owns the lifecycle of sessions and their documents.
//
// Sessions are mutually isolated; independent sessions never block one
// another. Within one session, document adds and queries are serialized
// against the vector index: a query observes either the pre-insert or
// the post-insert index state, never a partial one.
type SessionService interface {
	// Create allocates a fresh, empty session.
	Create(ctx context.Context) (*domain.Session, error)

	// Get returns a point-in-time view of a session.
	// Returns domain.ErrSessionNotFound if absent.
	Get(ctx context.Context, sessionID string) (*domain.Session, error)

	// List returns all known sessions, in-memory and persisted,
	// newest first.
	List(ctx context.Context) ([]domain.SessionInfo, error)

	// Delete removes all in-memory and persisted state for a session.
	// Returns domain.ErrSessionNotFound if absent.
	Delete(ctx context.Context, sessionID string) error

	// AddDocument chunks, embeds and indexes the given pages as one
	// logical unit. On any failure no Document, Chunk or index entry
	// from this call is retained.
	AddDocument(ctx context.Context, sessionID, filename string, pages []domain.Page) (*domain.Document, error)

	// AddDocumentAsync runs AddDocument on a background worker and
	// returns a job ID for polling.
	AddDocumentAsync(ctx context.Context, sessionID, filename string, pages []domain.Page) (string, error)

	// Job returns the state of a background upload.
	// Returns domain.ErrJobNotFound if absent.
	Job(ctx context.Context, jobID string) (*UploadJob, error)

	// CancelJob cancels an in-flight upload. Any partial index state
	// is rolled back. Cancelling a finished job is a no-op.
	CancelJob(ctx context.Context, jobID string) error

	// RecordExchange appends a question/answer turn to the session's
	// conversation history.
	RecordExchange(ctx context.Context, sessionID, question, answer string) error

	// Persist snapshots the session to durable storage. On failure the
	// session remains usable in memory but is flagged unsynced.
	Persist(ctx context.Context, sessionID string) error

	// Flush persists every session with unsaved changes.
	Flush(ctx context.Context) error

	// Load restores a session from durable storage, replacing any
	// in-memory state for that session ID.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)
}
