/*
pipeline.go - Continuation-based request validation pipeline

PURPOSE:
  Runs an ordered list of guard checks before a terminal handler,
  short-circuiting on the first failure. Guards gate access to the
  stored-procedure call: app-identity before user-identity, and so on.

STATE MACHINE:
  Pending(i) -> Pending(i+1)  when guard i invokes its continuation
  Pending(i) -> Failed        when guard i returns an error (propagates raw
                              to the pipeline caller; handler never invoked)
  Pending(len) -> Done        invokes the handler and returns its result

GUARANTEES:
  - Strictly sequential: guard i+1 never starts before guard i's
    continuation fires
  - Handler invoked at most once, and only if every guard continued
  - The first guard error propagates untouched
  - A handler failure surfaces to the pipeline caller even when a guard
    swallows the error returned by its continuation

STALLS:
  A guard that neither continues nor errors stalls the pipeline. The
  original event-loop form simply hung; the synchronous rendition here
  terminates the run with ErrPipelineStalled instead, handler still never
  invoked. No timeout is imposed by this component - callers needing
  bounded latency enforce it via ctx.

SEE ALSO:
  - errors.go: GuardRejectionError / ErrPipelineStalled
  - accounts/guards.go: Concrete guard implementations
*/
package engine

import "context"

// =============================================================================
// PIPELINE TYPES
// =============================================================================

// PipelineRequest is the opaque caller context passed unchanged through
// every guard and into the handler.
type PipelineRequest struct {
	// Form is the field bag destined for the procedure call.
	Form FormData

	// Meta carries caller credentials and transport metadata (app keys,
	// session tokens, request ids). Guards read it; nothing writes it.
	Meta map[string]string
}

// Continuation signals "this guard passed, run the rest of the pipeline".
// It returns whatever error the downstream pipeline produced, so a guard
// can observe (but should not swallow) downstream failures.
type Continuation func() error

// Guard is a single validation step. It either invokes next, returns an
// error (typically a GuardRejectionError), or does neither and stalls.
type Guard func(ctx context.Context, req *PipelineRequest, next Continuation) error

// Handler is the terminal step, invoked only after every guard continued.
type Handler func(ctx context.Context, req *PipelineRequest) (Result, error)

// =============================================================================
// PIPELINE - Sequential continuation-passing executor
// =============================================================================

// Pipeline is a finite ordered list of guards plus one terminal handler.
type Pipeline struct {
	Guards  []Guard
	Handler Handler
}

// NewPipeline builds a pipeline. Guards run in the given order.
func NewPipeline(handler Handler, guards ...Guard) *Pipeline {
	return &Pipeline{Guards: guards, Handler: handler}
}

// Run executes the pipeline: guards in order, then the handler. Returns the
// handler's result, or the first guard's error untouched.
func (p *Pipeline) Run(ctx context.Context, req *PipelineRequest) (Result, error) {
	var (
		result     Result
		handled    bool
		handlerErr error
	)

	var step func(i int) error
	step = func(i int) error {
		if i == len(p.Guards) {
			// At most once, even if a misbehaving guard re-fires its
			// continuation.
			if handled {
				return nil
			}
			handled = true
			res, err := p.Handler(ctx, req)
			if err != nil {
				handlerErr = err
				return err
			}
			result = res
			return nil
		}

		continued := false
		next := func() error {
			if continued {
				return nil
			}
			continued = true
			return step(i + 1)
		}

		if err := p.Guards[i](ctx, req, next); err != nil {
			return err
		}
		if !continued {
			return ErrPipelineStalled
		}
		return nil
	}

	if err := step(0); err != nil {
		return Result{}, err
	}
	if !handled {
		// A guard reported success without its continuation ever reaching
		// the handler (e.g. a swallowed downstream guard error).
		return Result{}, ErrPipelineStalled
	}
	if handlerErr != nil {
		// The handler failed but a guard swallowed the error on its way
		// back up. The handler's failure is authoritative.
		return Result{}, handlerErr
	}
	return result, nil
}
