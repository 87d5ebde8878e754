package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/regcap-labs/regcap/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/regcap-labs/regcap/internal/core/domain"
	"github.com/regcap-labs/regcap/internal/core/ports/driven"
)

// jsonNull is the JSON representation of null.
const jsonNull = "null"

// timeFormat round-trips timestamps without losing precision.
const timeFormat = time.RFC3339Nano

// Ensure Store implements the interface.
var _ driven.SnapshotStore = (*Store)(nil)

// Store is a SQLite-backed snapshot store.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.regcap/data/sessions.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".regcap", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, "sessions.db")

	// Open database with WAL mode for better concurrency
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate applies pending schema migrations from the embedded filesystem.
func (s *Store) migrate(fsys embed.FS) error {
	// Ensure schema_migrations table exists
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	// Find all up migrations
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	// Sort and run migrations
	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		// Read and execute migration
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}

		if _, err := s.db.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

// SaveSession stores or replaces a session's snapshot. The snapshot is
// written in a single transaction so a crash mid-save never leaves a
// partial session behind.
func (s *Store) SaveSession(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Replace any previous snapshot; cascades clear documents, chunks,
	// turns and the index blob.
	if _, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", snap.Session.ID); err != nil {
		return fmt.Errorf("clearing previous snapshot: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sessions (id, created_at) VALUES (?, ?)",
		snap.Session.ID, snap.Session.CreatedAt.Format(timeFormat)); err != nil {
		return fmt.Errorf("saving session: %w", err)
	}

	for i, doc := range snap.Session.Documents {
		chunkIDsJSON, err := json.Marshal(doc.ChunkIDs)
		if err != nil {
			return fmt.Errorf("marshalling chunk IDs: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO documents (id, session_id, filename, uploaded_at, chunk_ids, position)
			VALUES (?, ?, ?, ?, ?, ?)
		`, doc.ID, snap.Session.ID, doc.Filename, doc.UploadedAt.Format(timeFormat),
			string(chunkIDsJSON), i); err != nil {
			return fmt.Errorf("saving document: %w", err)
		}
	}

	if len(snap.Chunks) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO chunks (id, session_id, document_id, page, ordinal, start_off, end_off, content, position)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for i, chunk := range snap.Chunks {
			if _, err := stmt.ExecContext(ctx, chunk.ID, snap.Session.ID, chunk.DocumentID,
				chunk.Page, chunk.Ordinal, chunk.Start, chunk.End, chunk.Text, i); err != nil {
				return fmt.Errorf("saving chunk: %w", err)
			}
		}
	}

	for i, turn := range snap.Session.Turns {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO turns (session_id, position, question, answer, asked_at)
			VALUES (?, ?, ?, ?, ?)
		`, snap.Session.ID, i, turn.Question, turn.Answer, turn.AskedAt.Format(timeFormat)); err != nil {
			return fmt.Errorf("saving turn: %w", err)
		}
	}

	var blob any
	if snap.Index != nil {
		blob = snap.Index
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO index_blobs (session_id, blob) VALUES (?, ?)",
		snap.Session.ID, blob); err != nil {
		return fmt.Errorf("saving index blob: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// LoadSession retrieves a session's snapshot.
func (s *Store) LoadSession(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	var createdAtStr string
	row := s.db.QueryRowContext(ctx, "SELECT created_at FROM sessions WHERE id = ?", sessionID)
	if err := row.Scan(&createdAtStr); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}

	createdAt, err := time.Parse(timeFormat, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	snap := &domain.Snapshot{
		Session: domain.Session{
			ID:        sessionID,
			CreatedAt: createdAt,
		},
	}

	if snap.Session.Documents, err = s.loadDocuments(ctx, sessionID); err != nil {
		return nil, err
	}
	if snap.Chunks, err = s.loadChunks(ctx, sessionID); err != nil {
		return nil, err
	}
	if snap.Session.Turns, err = s.loadTurns(ctx, sessionID); err != nil {
		return nil, err
	}

	var blob []byte
	row = s.db.QueryRowContext(ctx, "SELECT blob FROM index_blobs WHERE session_id = ?", sessionID)
	if err := row.Scan(&blob); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("querying index blob: %w", err)
	}
	snap.Index = blob

	return snap, nil
}

func (s *Store) loadDocuments(ctx context.Context, sessionID string) ([]domain.Document, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, filename, uploaded_at, chunk_ids
		FROM documents WHERE session_id = ?
		ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying documents: %w", err)
	}
	defer rows.Close()

	var docs []domain.Document //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			doc          domain.Document
			uploadedStr  string
			chunkIDsJSON string
		)
		if err := rows.Scan(&doc.ID, &doc.Filename, &uploadedStr, &chunkIDsJSON); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.SessionID = sessionID
		if doc.UploadedAt, err = time.Parse(timeFormat, uploadedStr); err != nil {
			return nil, fmt.Errorf("parsing uploaded_at: %w", err)
		}
		if chunkIDsJSON != jsonNull {
			if err := json.Unmarshal([]byte(chunkIDsJSON), &doc.ChunkIDs); err != nil {
				return nil, fmt.Errorf("unmarshalling chunk IDs: %w", err)
			}
		}
		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating documents: %w", err)
	}
	return docs, nil
}

func (s *Store) loadChunks(ctx context.Context, sessionID string) ([]domain.Chunk, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, document_id, page, ordinal, start_off, end_off, content
		FROM chunks WHERE session_id = ?
		ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		var chunk domain.Chunk
		if err := rows.Scan(&chunk.ID, &chunk.DocumentID, &chunk.Page, &chunk.Ordinal,
			&chunk.Start, &chunk.End, &chunk.Text); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		chunks = append(chunks, chunk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

func (s *Store) loadTurns(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT question, answer, asked_at
		FROM turns WHERE session_id = ?
		ORDER BY position
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying turns: %w", err)
	}
	defer rows.Close()

	var turns []domain.ConversationTurn //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			turn     domain.ConversationTurn
			askedStr string
		)
		if err := rows.Scan(&turn.Question, &turn.Answer, &askedStr); err != nil {
			return nil, fmt.Errorf("scanning turn: %w", err)
		}
		if turn.AskedAt, err = time.Parse(timeFormat, askedStr); err != nil {
			return nil, fmt.Errorf("parsing asked_at: %w", err)
		}
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating turns: %w", err)
	}
	return turns, nil
}

// DeleteSession removes a session's persisted state.
func (s *Store) DeleteSession(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID); err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	return nil
}

// ListSessions returns all persisted sessions, newest first.
func (s *Store) ListSessions(ctx context.Context) ([]domain.SessionInfo, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT s.id, s.created_at, COUNT(d.id)
		FROM sessions s
		LEFT JOIN documents d ON d.session_id = s.id
		GROUP BY s.id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var infos []domain.SessionInfo //nolint:prealloc // size unknown from query
	for rows.Next() {
		var (
			info       domain.SessionInfo
			createdStr string
		)
		if err := rows.Scan(&info.ID, &createdStr, &info.DocumentCount); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		if info.CreatedAt, err = time.Parse(timeFormat, createdStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		infos = append(infos, info)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}

	// RFC3339Nano strings do not collate chronologically, so order here.
	sort.Slice(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID < infos[j].ID
	})
	return infos, nil
}
