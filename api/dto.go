/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal engine model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - factory/operation.go: OperationJSON wire form
*/
package api

import (
	"github.com/warp/procedure-gateway/engine"
	"github.com/warp/procedure-gateway/factory"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// InvokeResponse is the envelope returned by the invoke endpoint: the
// procedure result plus, when backups are configured, one outcome per
// backup target.
type InvokeResponse struct {
	Status  engine.Status  `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Backups []BackupDTO    `json:"backups,omitempty"`
}

// BackupDTO reports one backup target's outcome. Error carries only the
// message; a backup error never changes the envelope status.
type BackupDTO struct {
	Collection string `json:"collection"`
	Reference  string `json:"reference,omitempty"`
	Created    bool   `json:"created"`
	Skipped    bool   `json:"skipped"`
	Error      string `json:"error,omitempty"`
}

// OperationDTO describes a registered operation.
type OperationDTO struct {
	Name      string   `json:"name"`
	Schema    string   `json:"schema"`
	Procedure string   `json:"procedure"`
	Params    []string `json:"params"`
	Guards    []string `json:"guards,omitempty"`
	Backups   int      `json:"backups"`
}

// RegisterOperationRequest carries a raw operation definition.
type RegisterOperationRequest = factory.OperationJSON

// QueryRequest is a predicate query against one collection.
type QueryRequest struct {
	Predicates []PredicateDTO `json:"predicates"`
}

// PredicateDTO is the wire form of an engine.Predicate. Op defaults to
// equality when omitted.
type PredicateDTO struct {
	Field string `json:"field"`
	Op    string `json:"op,omitempty"`
	Value any    `json:"value"`
}

// DocumentDTO is a document-store record in API responses.
type DocumentDTO struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toOperationDTO(op *factory.Operation) OperationDTO {
	return OperationDTO{
		Name:      op.Name,
		Schema:    op.Call.Schema,
		Procedure: op.Call.Procedure,
		Params:    op.Call.ParameterOrder,
		Guards:    op.Guards,
		Backups:   len(op.Backups),
	}
}

func toBackupDTOs(outcomes []engine.Outcome) []BackupDTO {
	dtos := make([]BackupDTO, 0, len(outcomes))
	for _, o := range outcomes {
		dto := BackupDTO{
			Collection: o.Collection,
			Reference:  o.Reference,
			Created:    o.Created,
			Skipped:    o.Skipped,
		}
		if o.Err != nil {
			dto.Error = o.Err.Error()
		}
		dtos = append(dtos, dto)
	}
	return dtos
}

func toPredicates(dtos []PredicateDTO) []engine.Predicate {
	preds := make([]engine.Predicate, 0, len(dtos))
	for _, d := range dtos {
		op := engine.Operator(d.Op)
		if d.Op == "" {
			op = engine.OpEqual
		}
		preds = append(preds, engine.Predicate{Field: d.Field, Op: op, Value: d.Value})
	}
	return preds
}
