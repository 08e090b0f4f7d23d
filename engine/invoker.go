/*
invoker.go - Stored procedure invocation

PURPOSE:
  Executes a named stored procedure against a relational schema, given the
  positional parameters produced by the marshaler, and wraps the outcome in
  the uniform Result envelope. The relational engine itself is consumed as
  a black box behind the ProcedureEngine interface.

FLOW:
  1. Catalog pre-check: does schema.procedure exist? If not, error envelope
     immediately - the connection is never touched for execution.
  2. Marshal the form data into positional parameters.
  3. CALL schema.procedure(?, ...) with one placeholder per parameter.
  4. Extract the well-known "result" column from the first row.

RESULT EXTRACTION:
  Procedures by convention yield a single row whose "result" column carries
  a JSON object. That object becomes Result.Data. When the column holds
  something else, the row's labelled columns are used as-is. No row, or no
  result column, is still a success - with nil Data. Callers must not
  assume Data is present on success.

ERROR POLICY:
  Never retries. Any failure is surfaced once, as an error envelope with
  the underlying detail appended to the message. Raw errors never escape
  this boundary.

SEE ALSO:
  - marshal.go: Parameter ordering
  - store/mysql: Production ProcedureEngine implementation
*/
package engine

import (
	"context"
	"encoding/json"
)

// ResultColumn is the well-known column procedures use to return their
// payload.
const ResultColumn = "result"

// =============================================================================
// PROCEDURE ENGINE - Relational engine surface consumed by the invoker
// =============================================================================

// ProcedureEngine abstracts the relational engine. Implementations own the
// connection lifecycle: a handle is acquired for the duration of one call
// and released - success or failure - when the call completes.
type ProcedureEngine interface {
	// ProcedureExists checks the engine catalog for schema.procedure.
	ProcedureExists(ctx context.Context, schema, procedure string) (bool, error)

	// Call executes CALL schema.procedure(params...) and returns the first
	// result row keyed by column label, or nil if the procedure yielded
	// no row.
	Call(ctx context.Context, schema, procedure string, params []any) (map[string]any, error)
}

// =============================================================================
// INVOKER - Stateless; engine handle injected, not inherited
// =============================================================================

// Invoker executes stored procedures through an injected ProcedureEngine.
type Invoker struct {
	Engine ProcedureEngine
}

func NewInvoker(engine ProcedureEngine) *Invoker {
	return &Invoker{Engine: engine}
}

// Invoke runs spec's procedure with parameters marshaled from data.
// Always returns an envelope; never a raw error.
func (inv *Invoker) Invoke(ctx context.Context, spec CallSpec, data FormData) Result {
	exists, err := inv.Engine.ProcedureExists(ctx, spec.Schema, spec.Procedure)
	if err != nil {
		return Failure("could not verify procedure %s: %v", spec.Qualified(), err)
	}
	if !exists {
		notFound := &ProcedureNotFoundError{Schema: spec.Schema, Procedure: spec.Procedure}
		return Failure("%s", notFound.Error())
	}

	params := Marshal(data, spec.ParameterOrder)

	row, err := inv.Engine.Call(ctx, spec.Schema, spec.Procedure, params)
	if err != nil {
		return Failure("procedure %s failed: %v", spec.Qualified(), err)
	}

	return Success("procedure "+spec.Qualified()+" executed", extractData(row))
}

// extractData pulls the payload out of the first result row. A JSON object
// in the result column wins; a present-but-undecodable column falls back to
// the labelled columns; a missing column means the procedure returned
// nothing - nil.
func extractData(row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	raw, ok := row[ResultColumn]
	if !ok {
		return nil
	}

	var text string
	switch v := raw.(type) {
	case string:
		text = v
	case []byte:
		text = string(v)
	case map[string]any:
		return v
	default:
		return row
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(text), &decoded); err != nil {
		return row
	}
	return decoded
}
