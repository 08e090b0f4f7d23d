/*
docstore.go - Persistence interface for document collections

PURPOSE:
  Defines the interface between the reconciler and the document store.
  Different implementations can use SQLite, MongoDB, or in-memory storage.

KEY OPERATIONS:
  FindByID:   Direct id lookup
  FindWhere:  Predicate query (logical AND of equality-style conditions)
  Upsert:     Create when id is empty, full-document replace when set
  Exists:     Cheap id presence check

UPSERT CONTRACT:
  Upsert with an empty id is a create; with an id it is a full overwrite of
  fields. Any field not present in the input is NOT implicitly retained -
  the caller's fields map is the entire new document body.

ORDERING:
  FindWhere returns records in store-native order, which is not guaranteed
  stable across implementations. The reconciler's first-match tie-break
  relies on this order; see reconcile.go.

IMPLEMENTATIONS:
  - store/sqlite/sqlite.go: Production SQLite-backed collections
  - engine/store/memory.go: In-memory for testing

SEE ALSO:
  - reconcile.go: The only in-core consumer of this interface
*/
package engine

import "context"

// DocumentStore is the minimal CRUD + predicate-query surface the
// reconciler consumes. Implementations are long-lived shared handles,
// safe for concurrent self-contained operations.
type DocumentStore interface {
	// FindByID returns the document or ErrDocumentNotFound.
	FindByID(ctx context.Context, collection, id string) (Document, error)

	// FindWhere returns every document satisfying ALL predicates, in
	// store-native order. Predicate evaluation order does not affect the
	// result set.
	FindWhere(ctx context.Context, collection string, preds []Predicate) ([]Document, error)

	// Upsert writes fields as the entire document body. Empty id creates
	// and returns a fresh id; non-empty id overwrites in place.
	Upsert(ctx context.Context, collection, id string, fields map[string]any) (string, error)

	// Exists checks id presence without loading the body.
	Exists(ctx context.Context, collection, id string) (bool, error)
}
