// Package store provides DocumentStore implementations.
package store

import (
	"context"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"github.com/warp/procedure-gateway/engine"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu          sync.RWMutex
	collections map[string][]*memDoc
	index       map[memKey]*memDoc
}

type memDoc struct {
	id     string
	fields map[string]any
}

type memKey struct {
	Collection string
	ID         string
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string][]*memDoc),
		index:       make(map[memKey]*memDoc),
	}
}

func (m *Memory) FindByID(_ context.Context, collection, id string) (engine.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.index[memKey{Collection: collection, ID: id}]
	if !ok {
		return engine.Document{}, engine.ErrDocumentNotFound
	}
	return engine.Document{ID: doc.id, Fields: cloneFields(doc.fields)}, nil
}

// FindWhere scans the collection in insertion order (the store-native order
// for this implementation) and returns documents matching ALL predicates.
func (m *Memory) FindWhere(_ context.Context, collection string, preds []engine.Predicate) ([]engine.Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var result []engine.Document
	for _, doc := range m.collections[collection] {
		if matchesAll(doc.fields, preds) {
			result = append(result, engine.Document{ID: doc.id, Fields: cloneFields(doc.fields)})
		}
	}
	return result, nil
}

// Upsert creates when id is empty, otherwise replaces the document body in
// place - same id, same position in store-native order.
func (m *Memory) Upsert(_ context.Context, collection, id string, fields map[string]any) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if id != "" {
		if existing, ok := m.index[memKey{Collection: collection, ID: id}]; ok {
			existing.fields = cloneFields(fields)
			return id, nil
		}
	}

	if id == "" {
		id = uuid.NewString()
	}
	doc := &memDoc{id: id, fields: cloneFields(fields)}
	m.collections[collection] = append(m.collections[collection], doc)
	m.index[memKey{Collection: collection, ID: id}] = doc
	return id, nil
}

func (m *Memory) Exists(_ context.Context, collection, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.index[memKey{Collection: collection, ID: id}]
	return ok, nil
}

// Count returns the number of documents in a collection. Test helper.
func (m *Memory) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

// =============================================================================
// PREDICATE MATCHING
// =============================================================================

func matchesAll(fields map[string]any, preds []engine.Predicate) bool {
	for _, p := range preds {
		if !matches(fields[p.Field], p) {
			return false
		}
	}
	return true
}

func matches(value any, p engine.Predicate) bool {
	switch p.Op {
	case engine.OpEqual:
		return equal(value, p.Value)
	case engine.OpGreaterThan:
		cmp, ok := compare(value, p.Value)
		return ok && cmp > 0
	case engine.OpLessThan:
		cmp, ok := compare(value, p.Value)
		return ok && cmp < 0
	}
	return false
}

// equal compares loosely enough to survive the JSON round-trip: numbers
// compare by value regardless of int/float representation. Structured
// values fall back to deep equality so no comparison can panic.
func equal(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
		return false
	}
	if isComparable(a) && isComparable(b) {
		return a == b
	}
	return reflect.DeepEqual(a, b)
}

func isComparable(v any) bool {
	if v == nil {
		return true
	}
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Func:
		return false
	}
	return true
}

func compare(a, b any) (int, bool) {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			}
			return 0, true
		}
		return 0, false
	}
	sa, aok := a.(string)
	sb, bok := b.(string)
	if aok && bok {
		switch {
		case sa < sb:
			return -1, true
		case sa > sb:
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
