package driven

import (
	"context"

	"github.com/regcap-labs/regcap/internal/core/domain"
)

// SnapshotStore persists session snapshots for process restart
// recovery. Backed by SQLite; an in-memory implementation exists for
// tests.
//
// SaveSession followed by LoadSession must reproduce the snapshot
// exactly, including the index blob bit for bit.
type SnapshotStore interface {
	// SaveSession stores or replaces a session's snapshot.
	SaveSession(ctx context.Context, snap *domain.Snapshot) error

	// LoadSession retrieves a session's snapshot.
	// Returns domain.ErrSessionNotFound if absent.
	LoadSession(ctx context.Context, sessionID string) (*domain.Snapshot, error)

	// DeleteSession removes a session's persisted state.
	// Deleting an absent session is not an error.
	DeleteSession(ctx context.Context, sessionID string) error

	// ListSessions returns all persisted sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.SessionInfo, error)

	// Close releases resources.
	Close() error
}
