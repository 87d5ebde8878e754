// Package memory provides in-memory storage adapters, used as the
// default for tests and ephemeral runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
)

// Ensure SnapshotStore implements the interface.
var _ driven.SnapshotStore = (*SnapshotStore)(nil)

// SnapshotStore is an in-memory implementation of driven.SnapshotStore.
type SnapshotStore struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

// NewSnapshotStore creates a new in-memory snapshot store.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		snapshots: make(map[string]domain.Snapshot),
	}
}

// SaveSession stores or replaces a session's snapshot.
func (s *SnapshotStore) SaveSession(_ context.Context, snap *domain.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snapshots[snap.Session.ID] = cloneSnapshot(snap)
	return nil
}

// LoadSession retrieves a session's snapshot.
func (s *SnapshotStore) LoadSession(_ context.Context, sessionID string) (*domain.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snapshots[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	out := cloneSnapshot(&snap)
	return &out, nil
}

// DeleteSession removes a session's persisted state.
func (s *SnapshotStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snapshots, sessionID)
	return nil
}

// ListSessions returns all persisted sessions, newest first.
func (s *SnapshotStore) ListSessions(_ context.Context) ([]domain.SessionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]domain.SessionInfo, 0, len(s.snapshots))
	for _, snap := range s.snapshots {
		infos = append(infos, domain.SessionInfo{
			ID:            snap.Session.ID,
			CreatedAt:     snap.Session.CreatedAt,
			DocumentCount: len(snap.Session.Documents),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Close releases resources.
func (s *SnapshotStore) Close() error {
	return nil
}

// cloneSnapshot deep-copies a snapshot so callers cannot mutate
// stored state through shared slices.
func cloneSnapshot(snap *domain.Snapshot) domain.Snapshot {
	out := *snap

	out.Session.Documents = make([]domain.Document, len(snap.Session.Documents))
	for i, doc := range snap.Session.Documents {
		out.Session.Documents[i] = doc
		out.Session.Documents[i].ChunkIDs = append([]string(nil), doc.ChunkIDs...)
	}
	out.Session.Turns = append([]domain.ConversationTurn(nil), snap.Session.Turns...)
	out.Chunks = append([]domain.Chunk(nil), snap.Chunks...)
	out.Index = append([]byte(nil), snap.Index...)

	return out
}
