/*
marshal.go - Positional parameter marshaling

PURPOSE:
  Orders a loosely-typed field bag into the positional argument list a
  stored procedure expects. The procedure's signature is positional; the
  caller's data is named. This file bridges the two.

RULES:
  - Absent field (or explicit nil) -> nil (SQL NULL)
  - Structured value (map, slice, struct) -> canonical JSON string
  - Scalar -> passed through unchanged

KNOWN LIMITATION:
  JSON key ordering of marshaled structures is canonical for maps (sorted)
  but this is not a contract callers may rely on. No type validation is
  performed against the target procedure's signature - mismatches surface
  as execution failures from the relational engine, not from here.

EXAMPLE:
  Marshal(FormData{"name": "John", "age": 30, "prefs": map[string]any{"c": "blue"}},
          []string{"name", "age", "address", "prefs"})
  => ["John", 30, nil, `{"c":"blue"}`]

SEE ALSO:
  - invoker.go: Feeds the marshaled list into the CALL expression
*/
package engine

import (
	"encoding/json"
	"fmt"
	"reflect"
	"time"
)

// Marshal orders data into a positional parameter list aligned 1:1 with
// order. Pure function: no side effects, deterministic given identical
// inputs (modulo JSON key order of nested structures).
func Marshal(data FormData, order []string) []any {
	params := make([]any, len(order))
	for i, name := range order {
		value, ok := data[name]
		if !ok || value == nil {
			params[i] = nil
			continue
		}
		if isStructured(value) {
			params[i] = serialize(value)
			continue
		}
		params[i] = value
	}
	return params
}

// isStructured reports whether a value needs serialization before it can
// travel as a single positional parameter. Byte slices and times are
// scalars as far as database drivers are concerned.
func isStructured(value any) bool {
	switch value.(type) {
	case []byte, time.Time:
		return false
	}
	switch reflect.ValueOf(value).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct:
		return true
	}
	return false
}

// serialize renders a structured value as its canonical JSON string.
// Unserializable values (channels, cycles) degrade to their fmt form
// rather than failing the whole marshal.
func serialize(value any) string {
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Sprintf("%v", value)
	}
	return string(b)
}
