/*
guards.go - Concrete pipeline guards for the account domain

PURPOSE:
  Implements the validation steps that gate procedure invocation:
  - RequireAppKey: is the calling application known?
  - RequireSession: does the caller hold a live session token?

ORDERING:
  The pipeline runs guards strictly in order; operation configs list
  app_key before session so the app-identity check always precedes the
  user-identity check.

REJECTION:
  Guards reject by returning an engine.GuardRejectionError, which the
  pipeline propagates raw to its caller. The handler is never reached.

SEE ALSO:
  - engine/pipeline.go: Pipeline contract
  - api/handlers.go: Wires guards by name from operation configs
*/
package accounts

import (
	"context"

	"github.com/warp/procedure-gateway/engine"
)

// Metadata keys guards read from the pipeline request.
const (
	MetaAppKey       = "x-app-key"
	MetaSessionToken = "x-session-token"
)

// SessionChecker validates session tokens. Implementations may hit a
// session store; the guard treats it as a black box.
type SessionChecker interface {
	Valid(ctx context.Context, token string) (bool, error)
}

// RequireAppKey builds a guard that admits only requests carrying a known
// application key.
func RequireAppKey(keys map[string]bool) engine.Guard {
	return func(ctx context.Context, req *engine.PipelineRequest, next engine.Continuation) error {
		key := req.Meta[MetaAppKey]
		if key == "" {
			return engine.Reject(GuardAppKey, "missing application key")
		}
		if !keys[key] {
			return engine.Reject(GuardAppKey, "unrecognized application key")
		}
		return next()
	}
}

// RequireSession builds a guard that admits only requests carrying a live
// session token.
func RequireSession(sessions SessionChecker) engine.Guard {
	return func(ctx context.Context, req *engine.PipelineRequest, next engine.Continuation) error {
		token := req.Meta[MetaSessionToken]
		if token == "" {
			return engine.Reject(GuardSession, "missing session token")
		}
		ok, err := sessions.Valid(ctx, token)
		if err != nil {
			return engine.Reject(GuardSession, "session lookup failed: "+err.Error())
		}
		if !ok {
			return engine.Reject(GuardSession, "expired or unknown session")
		}
		return next()
	}
}

// =============================================================================
// MEMORY SESSIONS - In-memory SessionChecker (for testing/dev)
// =============================================================================

type MemorySessions struct {
	tokens map[string]bool
}

func NewMemorySessions(tokens ...string) *MemorySessions {
	m := &MemorySessions{tokens: make(map[string]bool, len(tokens))}
	for _, t := range tokens {
		m.tokens[t] = true
	}
	return m
}

func (m *MemorySessions) Valid(_ context.Context, token string) (bool, error) {
	return m.tokens[token], nil
}
