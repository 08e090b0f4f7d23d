/*
Package factory provides JSON to Go operation conversion.

PURPOSE:
  Converts JSON operation definitions into engine.CallSpec and BackupSpec
  objects. This enables gateway configuration without code changes - an
  operator can define which stored procedure an operation calls, which
  guards gate it, and where its result is mirrored, all in JSON.

JSON SCHEMA:
  {
    "name": "register-user",
    "schema": "accounts",
    "procedure": "register_user",
    "params": ["name", "email", "currency"],
    "guards": ["app_key", "session"],
    "backups": [
      {
        "collection": "users",
        "lookup_keys": ["email"],
        "result_label": "user"
      }
    ]
  }

VALIDATION:
  - name, schema, procedure are required
  - every backup needs a collection and a result_label
  - a backup may set reference or lookup_keys (or neither, meaning
    always-create); reference takes precedence, both set is rejected as
    ambiguous configuration

USAGE:
  f := factory.NewOperationFactory()

  op, err := f.Parse(jsonString)

  // From domain-specific preset (recommended)
  import "github.com/warp/procedure-gateway/accounts"
  op, err := f.Parse(accounts.RegisterUserJSON())

SEE ALSO:
  - engine/types.go: CallSpec and BackupSpec definitions
  - accounts/operations.go: Pre-built operation configurations
*/
package factory

import (
	"encoding/json"
	"fmt"

	"github.com/warp/procedure-gateway/engine"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// OperationJSON is the JSON representation of an operation.
type OperationJSON struct {
	Name      string       `json:"name"`
	Schema    string       `json:"schema"`
	Procedure string       `json:"procedure"`
	Params    []string     `json:"params,omitempty"`
	Guards    []string     `json:"guards,omitempty"`
	Backups   []BackupJSON `json:"backups,omitempty"`
}

// BackupJSON represents one backup target configuration.
type BackupJSON struct {
	Collection  string   `json:"collection"`
	LookupKeys  []string `json:"lookup_keys,omitempty"`
	ResultLabel string   `json:"result_label"`
	Reference   string   `json:"reference,omitempty"`
}

// =============================================================================
// OPERATION - Parsed, immutable configuration
// =============================================================================

// Operation is a named, fully-resolved gateway operation: the procedure it
// calls, the guards that gate it, the backups that mirror its result.
// Immutable after parsing; owned by the registry.
type Operation struct {
	Name    string
	Call    engine.CallSpec
	Guards  []string
	Backups []engine.BackupSpec
}

// =============================================================================
// OPERATION FACTORY
// =============================================================================

// OperationFactory converts JSON operation definitions to Go structs.
type OperationFactory struct{}

// NewOperationFactory creates a new operation factory.
func NewOperationFactory() *OperationFactory {
	return &OperationFactory{}
}

// Parse converts a JSON string into an Operation.
func (f *OperationFactory) Parse(jsonStr string) (*Operation, error) {
	var oj OperationJSON
	if err := json.Unmarshal([]byte(jsonStr), &oj); err != nil {
		return nil, fmt.Errorf("invalid operation JSON: %w", err)
	}

	if oj.Name == "" {
		return nil, fmt.Errorf("operation name is required")
	}
	if oj.Schema == "" || oj.Procedure == "" {
		return nil, fmt.Errorf("operation %q: schema and procedure are required", oj.Name)
	}

	op := &Operation{
		Name: oj.Name,
		Call: engine.CallSpec{
			Schema:         oj.Schema,
			Procedure:      oj.Procedure,
			ParameterOrder: oj.Params,
		},
		Guards: oj.Guards,
	}

	for i, bj := range oj.Backups {
		spec, err := parseBackup(bj)
		if err != nil {
			return nil, fmt.Errorf("operation %q backup %d: %w", oj.Name, i, err)
		}
		op.Backups = append(op.Backups, spec)
	}

	return op, nil
}

func parseBackup(bj BackupJSON) (engine.BackupSpec, error) {
	if bj.Collection == "" {
		return engine.BackupSpec{}, fmt.Errorf("collection is required")
	}
	if bj.ResultLabel == "" {
		return engine.BackupSpec{}, fmt.Errorf("result_label is required")
	}
	if bj.Reference != "" && len(bj.LookupKeys) > 0 {
		return engine.BackupSpec{}, fmt.Errorf("reference and lookup_keys are mutually exclusive")
	}

	return engine.BackupSpec{
		Collection:  bj.Collection,
		LookupKeys:  bj.LookupKeys,
		ResultLabel: bj.ResultLabel,
		Reference:   bj.Reference,
	}, nil
}

// Render converts an Operation back to its canonical JSON form, e.g. for
// persisting to the operations table.
func (f *OperationFactory) Render(op *Operation) (string, error) {
	oj := OperationJSON{
		Name:      op.Name,
		Schema:    op.Call.Schema,
		Procedure: op.Call.Procedure,
		Params:    op.Call.ParameterOrder,
		Guards:    op.Guards,
	}
	for _, spec := range op.Backups {
		oj.Backups = append(oj.Backups, BackupJSON{
			Collection:  spec.Collection,
			LookupKeys:  spec.LookupKeys,
			ResultLabel: spec.ResultLabel,
			Reference:   spec.Reference,
		})
	}

	b, err := json.MarshalIndent(oj, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}
