/*
Package sqlite provides a SQLite-backed implementation of the document store.

PURPOSE:
  Implements engine.DocumentStore using SQLite with JSON document bodies.
  Collections are rows in a single documents table; predicate queries
  compile to json_extract conditions. Also persists operation definitions
  so the gateway's registered operations survive restarts.

INTERFACES IMPLEMENTED:
  engine.DocumentStore: FindByID, FindWhere, Upsert, Exists

KEY TABLES:
  documents:   (collection, id, body JSON) - the mirrored backup records
  operations:  (name, config JSON) - registered operation definitions

STORE-NATIVE ORDER:
  FindWhere orders by rowid, i.e. insertion order. The reconciler's
  first-match tie-break depends on this being the store's natural order.

UPSERT SEMANTICS:
  Empty id -> INSERT with a fresh uuid.
  Non-empty id -> full-document replace of body. Fields absent from the
  input are NOT retained; the input is the entire new body.

WAL MODE:
  SQLite is opened with WAL for better concurrency: multiple readers don't
  block, single writer at a time, better crash recovery.

USAGE:
  store, err := sqlite.New("./data/gateway.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  reconciler := engine.NewReconciler(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper migration
  tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/docstore.go: Interface definition
  - engine/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/warp/procedure-gateway/engine"
)

// Store implements engine.DocumentStore plus operation-config persistence.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Mirrored backup documents, one JSON body per record
	CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		body TEXT NOT NULL,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	);

	CREATE INDEX IF NOT EXISTS idx_documents_collection
		ON documents(collection);

	-- Registered operation definitions (factory JSON)
	CREATE TABLE IF NOT EXISTS operations (
		name TEXT PRIMARY KEY,
		config_json TEXT NOT NULL,
		created_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// DOCUMENT STORE
// =============================================================================

func (s *Store) FindByID(ctx context.Context, collection, id string) (engine.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return engine.Document{}, engine.ErrDocumentNotFound
	}
	if err != nil {
		return engine.Document{}, fmt.Errorf("failed to load document: %w", err)
	}

	return decodeDocument(id, body)
}

// FindWhere compiles predicates to json_extract conditions, AND-combined,
// ordered by rowid (insertion order - the store-native order).
func (s *Store) FindWhere(ctx context.Context, collection string, preds []engine.Predicate) ([]engine.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `SELECT id, body FROM documents WHERE collection = ?`
	args := []any{collection}

	for _, p := range preds {
		op, err := sqlOperator(p.Op)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(" AND json_extract(body, ?) %s ?", op)
		args = append(args, "$."+p.Field, p.Value)
	}
	query += " ORDER BY rowid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []engine.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, err
		}
		doc, err := decodeDocument(id, body)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Upsert writes fields as the entire document body. Empty id creates with
// a fresh uuid; non-empty id replaces the body in place.
func (s *Store) Upsert(ctx context.Context, collection, id string, fields map[string]any) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("failed to encode document: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if id == "" {
		id = uuid.NewString()
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO documents (collection, id, body, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			body = excluded.body,
			updated_at = excluded.updated_at`,
		collection, id, string(body), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("failed to upsert document: %w", err)
	}
	return id, nil
}

func (s *Store) Exists(ctx context.Context, collection, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM documents WHERE collection = ? AND id = ?`,
		collection, id,
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// =============================================================================
// OPERATION CONFIGS
// =============================================================================

// OperationRecord is a stored operation definition.
type OperationRecord struct {
	Name       string
	ConfigJSON string
}

// SaveOperation inserts or replaces an operation definition.
func (s *Store) SaveOperation(ctx context.Context, rec OperationRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operations (name, config_json, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET config_json = excluded.config_json`,
		rec.Name, rec.ConfigJSON, now,
	)
	return err
}

// ListOperations returns all stored operation definitions, by name.
func (s *Store) ListOperations(ctx context.Context) ([]OperationRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT name, config_json FROM operations ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []OperationRecord
	for rows.Next() {
		var rec OperationRecord
		if err := rows.Scan(&rec.Name, &rec.ConfigJSON); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// =============================================================================
// HELPERS
// =============================================================================

func decodeDocument(id, body string) (engine.Document, error) {
	var fields map[string]any
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return engine.Document{}, fmt.Errorf("corrupt document body %q: %w", id, err)
	}
	return engine.Document{ID: id, Fields: fields}, nil
}

func sqlOperator(op engine.Operator) (string, error) {
	switch op {
	case engine.OpEqual:
		return "=", nil
	case engine.OpGreaterThan:
		return ">", nil
	case engine.OpLessThan:
		return "<", nil
	}
	return "", fmt.Errorf("unsupported operator %q", op)
}
