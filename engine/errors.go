/*
errors.go - Centralized error types for the procedure gateway engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Domain packages should wrap these errors with additional context.

ERROR CATEGORIES:
  1. Invocation errors - Missing procedures, failed executions
  2. Backup errors - Document-store failures during reconciliation
  3. Pipeline errors - Guard rejections and stalls

PROPAGATION POLICY:
  Errors inside the invoker and reconciler are caught at their own boundary
  and converted into the uniform Result envelope - they never escape as raw
  errors past this core. Guard rejections are the one case allowed to
  propagate, since the pipeline's contract is "validate-or-abort", not
  "validate-and-report".

USAGE:
  Domain packages can wrap engine errors:

    if errors.Is(err, engine.ErrGuardRejected) {
        return &DomainSpecificError{...}
    }

SEE ALSO:
  - invoker.go: Converts invocation errors into envelopes
  - reconcile.go: Records backup errors in Outcomes
  - pipeline.go: Propagates guard rejections raw
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrProcedureNotFound is returned when the named stored procedure does
	// not exist in the schema. No invocation is attempted.
	ErrProcedureNotFound = errors.New("procedure not found")

	// ErrExecutionFailed is returned when the relational engine rejected or
	// failed the call (bad parameters, constraint violation, connectivity).
	ErrExecutionFailed = errors.New("procedure execution failed")

	// ErrBackupFailed is returned when a document-store operation failed
	// during reconciliation. Logged, never retried, never changes the
	// overall call status.
	ErrBackupFailed = errors.New("backup failed")

	// ErrGuardRejected is returned when a pipeline guard determined the
	// caller is not authorized or not verified. Propagates raw; the
	// handler is never reached.
	ErrGuardRejected = errors.New("request rejected by guard")

	// ErrPipelineStalled is returned when a guard neither invoked its
	// continuation nor raised an error. The handler is not invoked.
	ErrPipelineStalled = errors.New("pipeline stalled: guard never continued")

	// ErrDocumentNotFound is returned by document stores on id misses.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrMissingResultLabel is recorded when a backup spec's result label
	// has no entry in the procedure result data. Soft failure: the backup
	// is skipped, the call still succeeds.
	ErrMissingResultLabel = errors.New("result label absent from procedure result")

	// ErrUnknownOperation is returned when a caller names an operation
	// that was never registered.
	ErrUnknownOperation = errors.New("unknown operation")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// ProcedureNotFoundError identifies the missing procedure.
type ProcedureNotFoundError struct {
	Schema    string
	Procedure string
}

func (e *ProcedureNotFoundError) Error() string {
	return fmt.Sprintf("procedure %s.%s does not exist", e.Schema, e.Procedure)
}

func (e *ProcedureNotFoundError) Unwrap() error {
	return ErrProcedureNotFound
}

// GuardRejectionError records which guard rejected the request and why.
type GuardRejectionError struct {
	Guard  string
	Reason string
}

func (e *GuardRejectionError) Error() string {
	return fmt.Sprintf("guard %q rejected request: %s", e.Guard, e.Reason)
}

func (e *GuardRejectionError) Unwrap() error {
	return ErrGuardRejected
}

// Reject builds a GuardRejectionError. Convenience for guard implementations.
func Reject(guard, reason string) error {
	return &GuardRejectionError{Guard: guard, Reason: reason}
}

// BackupError records which collection's mirror write failed.
type BackupError struct {
	Collection string
	Cause      error
}

func (e *BackupError) Error() string {
	return fmt.Sprintf("backup to %q failed: %v", e.Collection, e.Cause)
}

func (e *BackupError) Unwrap() error {
	return ErrBackupFailed
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsGuardRejection returns true if the error came from a pipeline guard.
func IsGuardRejection(err error) bool {
	return errors.Is(err, ErrGuardRejected)
}

// IsNotFound returns true if the error indicates a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrProcedureNotFound) ||
		errors.Is(err, ErrDocumentNotFound) ||
		errors.Is(err, ErrUnknownOperation)
}
