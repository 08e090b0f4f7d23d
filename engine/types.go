/*
Package engine provides the core procedure-invocation and backup engine.

PURPOSE:
  This package contains the domain-agnostic machinery for calling relational
  stored procedures and mirroring their results into document-store
  collections. Whether the procedure registers a user, records a payment, or
  updates a profile, the same engine handles parameter marshaling, invocation,
  and reconciliation.

KEY CONCEPTS IN THIS FILE (types.go):
  - Result: The uniform {status, message, data} envelope every operation returns
  - CallSpec: Schema + procedure name + positional parameter order
  - FormData: The loosely-typed field bag supplied by callers
  - BackupSpec: Where and how a procedure result is mirrored
  - Predicate: Equality-style lookup condition for the document store
  - Document: A record owned by the document store

DESIGN PRINCIPLES:
  1. Uniform envelope: Callers branch only on Result.Status
  2. Best-effort mirroring: The relational write is the source of truth;
     the document-store backup is advisory
  3. Composition over inheritance: The invoker takes an injected engine
     handle rather than extending a connection wrapper

USAGE:
  spec := engine.CallSpec{
      Schema:         "accounts",
      Procedure:      "register_user",
      ParameterOrder: []string{"name", "email", "currency"},
  }
  result := invoker.Invoke(ctx, spec, engine.FormData{
      "name": "John", "email": "a@b.com",
  })

SEE ALSO:
  - marshal.go: FormData to positional parameter conversion
  - invoker.go: Procedure invocation
  - reconcile.go: Backup reconciliation
  - pipeline.go: Request guard pipeline
*/
package engine

import "fmt"

// =============================================================================
// RESULT - Uniform envelope returned by every public operation
// =============================================================================

type Status string

const (
	StatusSuccess Status = "success"
	StatusError   Status = "error"
)

// Result is the uniform envelope every public operation in this core returns.
// Callers branch only on Status. Data, when present, is keyed by logical
// labels (not positional).
type Result struct {
	Status  Status         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
}

// Success wraps data in a success envelope.
func Success(message string, data map[string]any) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// Failure builds an error envelope with a formatted message.
func Failure(format string, args ...any) Result {
	return Result{Status: StatusError, Message: fmt.Sprintf(format, args...)}
}

// OK reports whether the envelope carries a success status.
func (r Result) OK() bool {
	return r.Status == StatusSuccess
}

// =============================================================================
// CALL SPEC - Immutable description of one stored procedure
// =============================================================================

// CallSpec describes a stored procedure and its positional parameter mapping.
//
// INVARIANT: ParameterOrder defines the arity of the call. Duplicate names
// are permitted but produce ambiguous marshaling (caller responsibility).
type CallSpec struct {
	Schema         string
	Procedure      string
	ParameterOrder []string
}

// Qualified returns the schema-qualified procedure name.
func (s CallSpec) Qualified() string {
	return s.Schema + "." + s.Procedure
}

// Arity returns the number of positional parameters the call takes.
func (s CallSpec) Arity() int {
	return len(s.ParameterOrder)
}

// =============================================================================
// FORM DATA - Loosely-typed field bag supplied by callers
// =============================================================================

// FormData maps field names to scalar, nested-structure, or absent values.
// Constructed per call, read-only, discarded after marshaling.
type FormData map[string]any

// =============================================================================
// BACKUP SPEC - Where and how a procedure result is mirrored
// =============================================================================

// BackupSpec configures one document-store mirror target.
//
// ResultLabel selects the sub-record of Result.Data to persist.
// Either Reference or LookupKeys may be set (or neither, meaning
// "always create"); Reference takes precedence when present.
type BackupSpec struct {
	Collection  string
	LookupKeys  []string
	ResultLabel string
	Reference   string
}

// Outcome reports the result of one backup target's reconciliation.
// Err is advisory: a failed or skipped backup never changes the status
// of the procedure call itself.
type Outcome struct {
	Collection string `json:"collection"`
	Reference  string `json:"reference,omitempty"`
	Created    bool   `json:"created"`
	Skipped    bool   `json:"skipped"`
	Err        error  `json:"-"`
}

// ReferenceField is reserved to echo back the resolved document identity in
// an Outcome. It is stripped from payloads before writing, never persisted.
const ReferenceField = "reference"

// =============================================================================
// PREDICATES - Lookup conditions for the document store
// =============================================================================

type Operator string

const (
	OpEqual       Operator = "="
	OpGreaterThan Operator = ">"
	OpLessThan    Operator = "<"
)

// Predicate is a single field condition. Predicate sets combine with
// logical AND; there is no OR and no nesting in this core.
type Predicate struct {
	Field string   `json:"field"`
	Op    Operator `json:"op"`
	Value any      `json:"value"`
}

// Eq builds an equality predicate, the only kind the reconciler issues.
func Eq(field string, value any) Predicate {
	return Predicate{Field: field, Op: OpEqual, Value: value}
}

// =============================================================================
// DOCUMENT - Record owned by the document store
// =============================================================================

// Document is a single record in a document-store collection. Ownership
// stays with the store; the reconciler never caches one beyond a single
// reconciliation.
type Document struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}
