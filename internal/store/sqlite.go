package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	sferrors "github.com/sfarag/slackfaq/internal/errors"
)

// currentSchemaVersion is the metadata database schema version.
const currentSchemaVersion = 1

// MetadataStore persists document payloads, the collection registry,
// and per-collection runtime state in SQLite.
type MetadataStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	closed bool
}

// NewMetadataStore opens (or creates) the metadata database at path.
// An empty path creates an in-memory database for testing.
// Uses WAL mode for concurrent reader access.
func NewMetadataStore(path string) (*MetadataStore, error) {
	dsn := ":memory:"
	if path != "" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single writer to prevent lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL mode must be set via PRAGMA for modernc.org/sqlite
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s := &MetadataStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// initSchema creates the metadata tables.
func (s *MetadataStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Collection registry: one row per logical collection
	CREATE TABLE IF NOT EXISTS collections (
		name       TEXT PRIMARY KEY,
		mode       TEXT NOT NULL,
		model      TEXT NOT NULL DEFAULT '',
		dimensions INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	-- Document payloads. Dense vectors live in the HNSW sidecar;
	-- sparse weights are stored here as JSON.
	CREATE TABLE IF NOT EXISTS documents (
		id          TEXT NOT NULL,
		collection  TEXT NOT NULL,
		channel     TEXT NOT NULL DEFAULT '',
		thread_ts   TEXT NOT NULL DEFAULT '',
		asked_by    TEXT NOT NULL DEFAULT '',
		answered_by TEXT NOT NULL DEFAULT '',
		question    TEXT NOT NULL,
		answer      TEXT NOT NULL,
		sparse_json TEXT,
		created_at  TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (collection, id)
	);
	CREATE INDEX IF NOT EXISTS idx_documents_collection ON documents(collection);

	-- Per-collection key-value runtime state (sparse vocabulary, etc.)
	CREATE TABLE IF NOT EXISTS state (
		collection TEXT NOT NULL,
		key        TEXT NOT NULL,
		value      TEXT NOT NULL,
		PRIMARY KEY (collection, key)
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`

	_, err := s.db.Exec(schema)
	return err
}

// RegisterCollection records a collection in the registry.
// Registering an existing name is an error.
func (s *MetadataStore) RegisterCollection(ctx context.Context, info CollectionInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO collections (name, mode, model, dimensions) VALUES (?, ?, ?, ?)`,
		info.Name, info.Mode, info.Model, info.Dimensions)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint") {
			return sferrors.ValidationError(
				fmt.Sprintf("collection %q already exists", info.Name), err)
		}
		return fmt.Errorf("register collection: %w", err)
	}
	return nil
}

// GetCollection looks up a collection by name.
func (s *MetadataStore) GetCollection(ctx context.Context, name string) (*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	var info CollectionInfo
	var createdAt string
	err := s.db.QueryRowContext(ctx,
		`SELECT name, mode, model, dimensions, created_at FROM collections WHERE name = ?`,
		name).Scan(&info.Name, &info.Mode, &info.Model, &info.Dimensions, &createdAt)
	if err == sql.ErrNoRows {
		return nil, sferrors.CollectionNotFound(name)
	}
	if err != nil {
		return nil, fmt.Errorf("get collection: %w", err)
	}

	if t, parseErr := time.Parse("2006-01-02 15:04:05", createdAt); parseErr == nil {
		info.CreatedAt = t
	}
	return &info, nil
}

// ListCollections returns all registered collections.
func (s *MetadataStore) ListCollections(ctx context.Context) ([]*CollectionInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, mode, model, dimensions FROM collections ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	defer rows.Close()

	var infos []*CollectionInfo
	for rows.Next() {
		var info CollectionInfo
		if err := rows.Scan(&info.Name, &info.Mode, &info.Model, &info.Dimensions); err != nil {
			return nil, fmt.Errorf("scan collection: %w", err)
		}
		infos = append(infos, &info)
	}
	return infos, rows.Err()
}

// SaveDocuments upserts document payloads for a collection.
func (s *MetadataStore) SaveDocuments(ctx context.Context, collection string, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO documents
		(id, collection, channel, thread_ts, asked_by, answered_by, question, answer, sparse_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, doc := range docs {
		var sparseJSON sql.NullString
		if len(doc.Sparse) > 0 {
			data, err := json.Marshal(doc.Sparse)
			if err != nil {
				return fmt.Errorf("marshal sparse weights for %s: %w", doc.ID, err)
			}
			sparseJSON = sql.NullString{String: string(data), Valid: true}
		}

		if _, err := stmt.ExecContext(ctx,
			doc.ID, collection, doc.Channel, doc.ThreadTS,
			doc.AskedBy, doc.AnsweredBy, doc.Question, doc.Answer, sparseJSON); err != nil {
			return fmt.Errorf("save document %s: %w", doc.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit documents: %w", err)
	}
	return nil
}

// GetDocuments fetches document payloads by ID, preserving input order.
// Missing IDs are silently skipped.
func (s *MetadataStore) GetDocuments(ctx context.Context, collection string, ids []string) ([]*Document, error) {
	if len(ids) == 0 {
		return []*Document{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	args := make([]any, 0, len(ids)+1)
	args = append(args, collection)
	for _, id := range ids {
		args = append(args, id)
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT id, channel, thread_ts, asked_by, answered_by, question, answer, sparse_json
		FROM documents WHERE collection = ? AND id IN (%s)`, placeholders), args...)
	if err != nil {
		return nil, fmt.Errorf("get documents: %w", err)
	}
	defer rows.Close()

	byID := make(map[string]*Document, len(ids))
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		byID[doc.ID] = doc
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan documents: %w", err)
	}

	result := make([]*Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := byID[id]; ok {
			result = append(result, doc)
		}
	}
	return result, nil
}

// scanDocument reads one documents row.
func scanDocument(rows *sql.Rows) (*Document, error) {
	var doc Document
	var sparseJSON sql.NullString
	if err := rows.Scan(&doc.ID, &doc.Channel, &doc.ThreadTS,
		&doc.AskedBy, &doc.AnsweredBy, &doc.Question, &doc.Answer, &sparseJSON); err != nil {
		return nil, fmt.Errorf("scan document: %w", err)
	}
	if sparseJSON.Valid {
		if err := json.Unmarshal([]byte(sparseJSON.String), &doc.Sparse); err != nil {
			return nil, fmt.Errorf("unmarshal sparse weights for %s: %w", doc.ID, err)
		}
	}
	return &doc, nil
}

// HasDocument reports whether a document ID exists in the collection.
func (s *MetadataStore) HasDocument(ctx context.Context, collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return false, fmt.Errorf("store is closed")
	}

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check document: %w", err)
	}
	return true, nil
}

// CountDocuments returns the number of documents in the collection.
func (s *MetadataStore) CountDocuments(ctx context.Context, collection string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return 0, fmt.Errorf("store is closed")
	}

	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// DeleteDocuments removes document payloads by ID.
func (s *MetadataStore) DeleteDocuments(ctx context.Context, collection string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}
	defer stmt.Close()

	for _, id := range ids {
		if _, err := stmt.ExecContext(ctx, collection, id); err != nil {
			return fmt.Errorf("delete document %s: %w", id, err)
		}
	}

	return tx.Commit()
}

// GetState reads a per-collection state value. Missing keys return "".
func (s *MetadataStore) GetState(ctx context.Context, collection, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", fmt.Errorf("store is closed")
	}

	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM state WHERE collection = ? AND key = ?`, collection, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get state %s: %w", key, err)
	}
	return value, nil
}

// SetState writes a per-collection state value.
func (s *MetadataStore) SetState(ctx context.Context, collection, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO state (collection, key, value) VALUES (?, ?, ?)`,
		collection, key, value)
	if err != nil {
		return fmt.Errorf("set state %s: %w", key, err)
	}
	return nil
}

// Close closes the database.
func (s *MetadataStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
