package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/regcap-labs/regcap/internal/chunker"
	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
	"github.com/regcap-labs/regcap/internal/core/ports/driving"
	"github.com/regcap-labs/regcap/internal/logger"
)

// Ensure SessionService implements the interface.
var _ driving.SessionService = (*SessionService)(nil)

// sessionState is the live, in-memory state of one session. Its
// mutex serializes document adds and queries within that session;
// independent sessions never contend on it.
type sessionState struct {
	mu sync.RWMutex

	id        string
	createdAt time.Time
	documents []domain.Document
	chunks    map[string]domain.Chunk
	index     driven.VectorIndex
	turns     []domain.ConversationTurn
	unsynced  bool
}

// SessionService manages session lifecycle, document ingestion and
// persistence.
type SessionService struct {
	mu       sync.RWMutex
	sessions map[string]*sessionState

	chunker   *chunker.Chunker
	embedder  driven.EmbeddingService
	factory   driven.VectorIndexFactory
	snapshots driven.SnapshotStore

	jobs *jobManager
}

// NewSessionService creates a new session service. The embedder may be
// nil when no provider is configured; document adds then fail with
// domain.ErrEmbeddingUnavailable.
func NewSessionService(
	ch *chunker.Chunker,
	embedder driven.EmbeddingService,
	factory driven.VectorIndexFactory,
	snapshots driven.SnapshotStore,
) *SessionService {
	return &SessionService{
		sessions:  make(map[string]*sessionState),
		chunker:   ch,
		embedder:  embedder,
		factory:   factory,
		snapshots: snapshots,
		jobs:      newJobManager(),
	}
}

// Create allocates a fresh, empty session. It counts as unsynced
// until the next flush or explicit persist.
func (s *SessionService) Create(_ context.Context) (*domain.Session, error) {
	state := &sessionState{
		id:        uuid.New().String(),
		createdAt: time.Now().UTC(),
		chunks:    make(map[string]domain.Chunk),
		index:     s.factory.New(),
		unsynced:  true,
	}

	s.mu.Lock()
	s.sessions[state.id] = state
	s.mu.Unlock()

	logger.Debug("Created session %s", state.id)
	return state.view(), nil
}

// Get returns a point-in-time view of a session.
func (s *SessionService) Get(ctx context.Context, sessionID string) (*domain.Session, error) {
	state, err := s.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return state.view(), nil
}

// List returns all known sessions, in-memory and persisted, newest
// first.
func (s *SessionService) List(ctx context.Context) ([]domain.SessionInfo, error) {
	seen := make(map[string]bool)
	var infos []domain.SessionInfo

	s.mu.RLock()
	for _, state := range s.sessions {
		state.mu.RLock()
		infos = append(infos, domain.SessionInfo{
			ID:            state.id,
			CreatedAt:     state.createdAt,
			DocumentCount: len(state.documents),
		})
		state.mu.RUnlock()
		seen[state.id] = true
	}
	s.mu.RUnlock()

	persisted, err := s.snapshots.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing persisted sessions: %w", err)
	}
	for _, info := range persisted {
		if !seen[info.ID] {
			infos = append(infos, info)
		}
	}

	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}

// Delete removes all in-memory and persisted state for a session.
func (s *SessionService) Delete(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	_, inMemory := s.sessions[sessionID]
	delete(s.sessions, sessionID)
	s.mu.Unlock()

	if !inMemory {
		// Only persisted (or unknown): confirm it exists before deleting.
		if _, err := s.snapshots.LoadSession(ctx, sessionID); err != nil {
			return err
		}
	}

	if err := s.snapshots.DeleteSession(ctx, sessionID); err != nil {
		return fmt.Errorf("deleting persisted session: %w", err)
	}

	logger.Debug("Deleted session %s", sessionID)
	return nil
}

// AddDocument chunks, embeds and indexes the given pages as one
// logical unit. Embedding happens outside the session lock so queries
// against already-indexed documents are not blocked; the index and
// registry mutations at the end are all-or-nothing.
func (s *SessionService) AddDocument(
	ctx context.Context, sessionID, filename string, pages []domain.Page,
) (*domain.Document, error) {
	state, err := s.state(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	logger.Section("Document Upload")
	logger.Debug("Session %s: chunking %q (%d pages)", sessionID, filename, len(pages))

	docID := uuid.New().String()
	chunks := s.chunker.ChunkPages(docID, pages)

	doc := domain.Document{
		ID:         docID,
		SessionID:  sessionID,
		Filename:   filename,
		ChunkIDs:   make([]string, 0, len(chunks)),
		UploadedAt: time.Now().UTC(),
	}
	for _, chunk := range chunks {
		doc.ChunkIDs = append(doc.ChunkIDs, chunk.ID)
	}

	var vectors [][]float32
	if len(chunks) > 0 {
		if s.embedder == nil {
			return nil, fmt.Errorf("%w: no embedding provider configured", domain.ErrEmbeddingUnavailable)
		}
		texts := make([]string, len(chunks))
		for i, chunk := range chunks {
			texts[i] = chunk.Text
		}

		logger.Debug("Embedding %d chunks", len(chunks))
		vectors, err = s.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embedding document: %w", err)
		}
		if len(vectors) != len(chunks) {
			return nil, fmt.Errorf("%w: provider returned %d vectors for %d chunks",
				domain.ErrProviderFatal, len(vectors), len(chunks))
		}
	}

	// A cancelled upload must leave no trace.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	state.mu.Lock()
	defer state.mu.Unlock()

	if len(chunks) > 0 {
		entries := make([]driven.IndexEntry, len(chunks))
		for i, chunk := range chunks {
			entries[i] = driven.IndexEntry{ChunkID: chunk.ID, Vector: vectors[i]}
		}
		if err := state.index.Insert(ctx, entries); err != nil {
			return nil, fmt.Errorf("indexing document: %w", err)
		}
	}

	for _, chunk := range chunks {
		state.chunks[chunk.ID] = chunk
	}
	state.documents = append(state.documents, doc)
	state.unsynced = true

	logger.Debug("Indexed %q: %d chunks", filename, len(chunks))
	return &doc, nil
}

// RecordExchange appends a question/answer turn to the session's
// conversation history.
func (s *SessionService) RecordExchange(ctx context.Context, sessionID, question, answer string) error {
	state, err := s.state(ctx, sessionID)
	if err != nil {
		return err
	}

	state.mu.Lock()
	defer state.mu.Unlock()
	state.turns = append(state.turns, domain.ConversationTurn{
		Question: question,
		Answer:   answer,
		AskedAt:  time.Now().UTC(),
	})
	state.unsynced = true
	return nil
}

// Persist snapshots the session to durable storage.
func (s *SessionService) Persist(ctx context.Context, sessionID string) error {
	state, err := s.state(ctx, sessionID)
	if err != nil {
		return err
	}

	state.mu.RLock()
	snap, err := state.snapshot()
	state.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("%w: serializing index: %v", domain.ErrPersistence, err)
	}

	if err := s.snapshots.SaveSession(ctx, snap); err != nil {
		// Session stays usable in memory; flag the divergence.
		state.mu.Lock()
		state.unsynced = true
		state.mu.Unlock()
		return fmt.Errorf("%w: %v", domain.ErrPersistence, err)
	}

	state.mu.Lock()
	state.unsynced = false
	state.mu.Unlock()

	logger.Debug("Persisted session %s", sessionID)
	return nil
}

// Flush persists every session with unsaved changes.
func (s *SessionService) Flush(ctx context.Context) error {
	s.mu.RLock()
	var dirty []string
	for id, state := range s.sessions {
		state.mu.RLock()
		if state.unsynced {
			dirty = append(dirty, id)
		}
		state.mu.RUnlock()
	}
	s.mu.RUnlock()

	for _, id := range dirty {
		if err := s.Persist(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

// Load restores a session from durable storage, replacing any
// in-memory state for that session ID.
func (s *SessionService) Load(ctx context.Context, sessionID string) (*domain.Session, error) {
	state, err := s.restore(ctx, sessionID, true)
	if err != nil {
		return nil, err
	}
	return state.view(), nil
}

// restore rebuilds in-memory state from a snapshot and registers it.
// With replace set an existing registry entry is overwritten;
// otherwise a concurrently registered entry wins.
func (s *SessionService) restore(ctx context.Context, sessionID string, replace bool) (*sessionState, error) {
	snap, err := s.snapshots.LoadSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	var index driven.VectorIndex
	if snap.Index == nil {
		index = s.factory.New()
	} else {
		index, err = s.factory.Deserialize(snap.Index)
		if err != nil {
			return nil, fmt.Errorf("%w: restoring index: %v", domain.ErrPersistence, err)
		}
	}

	state := &sessionState{
		id:        snap.Session.ID,
		createdAt: snap.Session.CreatedAt,
		documents: snap.Session.Documents,
		chunks:    make(map[string]domain.Chunk, len(snap.Chunks)),
		index:     index,
		turns:     snap.Session.Turns,
	}
	for _, chunk := range snap.Chunks {
		state.chunks[chunk.ID] = chunk
	}

	s.mu.Lock()
	if existing, ok := s.sessions[sessionID]; ok && !replace {
		s.mu.Unlock()
		return existing, nil
	}
	s.sessions[sessionID] = state
	s.mu.Unlock()

	logger.Debug("Restored session %s (%d documents, %d chunks)",
		sessionID, len(state.documents), len(state.chunks))
	return state, nil
}

// state looks up the live state for a session, falling back to
// durable storage so persisted sessions remain addressable after a
// restart.
func (s *SessionService) state(ctx context.Context, sessionID string) (*sessionState, error) {
	s.mu.RLock()
	state, ok := s.sessions[sessionID]
	s.mu.RUnlock()
	if ok {
		return state, nil
	}
	return s.restore(ctx, sessionID, false)
}

// view builds a point-in-time copy of the session for callers.
func (st *sessionState) view() *domain.Session {
	st.mu.RLock()
	defer st.mu.RUnlock()

	session := &domain.Session{
		ID:        st.id,
		CreatedAt: st.createdAt,
		Documents: make([]domain.Document, len(st.documents)),
		Turns:     append([]domain.ConversationTurn(nil), st.turns...),
		Unsynced:  st.unsynced,
	}
	for i, doc := range st.documents {
		session.Documents[i] = doc
		session.Documents[i].ChunkIDs = append([]string(nil), doc.ChunkIDs...)
	}
	return session
}

// snapshot builds the durable representation (caller must hold at
// least a read lock).
func (st *sessionState) snapshot() (*domain.Snapshot, error) {
	blob, err := st.index.Serialize()
	if err != nil {
		return nil, err
	}

	snap := &domain.Snapshot{
		Session: domain.Session{
			ID:        st.id,
			CreatedAt: st.createdAt,
			Documents: append([]domain.Document(nil), st.documents...),
			Turns:     append([]domain.ConversationTurn(nil), st.turns...),
		},
		Chunks: make([]domain.Chunk, 0, len(st.chunks)),
		Index:  blob,
	}

	// Chunks in document order so snapshots are deterministic.
	for _, doc := range st.documents {
		for _, chunkID := range doc.ChunkIDs {
			snap.Chunks = append(snap.Chunks, st.chunks[chunkID])
		}
	}
	return snap, nil
}

// errorsIsCancel reports whether err is a context cancellation.
func errorsIsCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
