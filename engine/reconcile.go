/*
reconcile.go - Cross-store backup reconciliation

PURPOSE:
  Given a successful procedure result and one or more backup specs, mirror
  the result into document-store collections without creating duplicates.
  The hard part is resolving each target's existing identity: explicit
  reference, predicate lookup, or "always create".

RESOLUTION, per backup spec, independently:
  1. Explicit Reference set       -> use it as the target id, skip lookup
  2. LookupKeys set               -> one equality predicate per key, values
                                     taken from result.Data[resultLabel]
                                     (NOT from the backup spec); first
                                     match in store-native order wins
  3. Neither                      -> create a new document

BEST-EFFORT SEMANTICS:
  All specs for one Reconcile call run concurrently. A failure in one
  spec's backup never prevents the others from completing and never alters
  the status of the procedure call itself. The relational write is the
  source of truth; the mirror is advisory.

FIRST-MATCH TIE-BREAK:
  A lookup returning more than one match silently takes the first element
  in store-native order. Deliberately preserved as-is: a new conflict
  policy could alter data written under the old behavior.

SEE ALSO:
  - docstore.go: The store surface consumed here
  - invoker.go: Produces the Result being mirrored
*/
package engine

import (
	"context"
	"fmt"
	"sync"
)

// Reconciler mirrors procedure results into document collections.
type Reconciler struct {
	Store DocumentStore
}

func NewReconciler(store DocumentStore) *Reconciler {
	return &Reconciler{Store: store}
}

// Reconcile fans out one backup per spec, concurrently, and returns one
// Outcome per spec in spec order. Only call on success results; error
// results have nothing to mirror.
//
// Idempotent for lookup-key specs: a second Reconcile with the same result
// data resolves to the same target id instead of creating a duplicate.
func (r *Reconciler) Reconcile(ctx context.Context, result Result, specs []BackupSpec) []Outcome {
	outcomes := make([]Outcome, len(specs))

	var wg sync.WaitGroup
	for i, spec := range specs {
		wg.Add(1)
		go func(i int, spec BackupSpec) {
			defer wg.Done()
			outcomes[i] = r.reconcileOne(ctx, result, spec)
		}(i, spec)
	}
	wg.Wait()

	return outcomes
}

func (r *Reconciler) reconcileOne(ctx context.Context, result Result, spec BackupSpec) Outcome {
	payload, ok := result.Data[spec.ResultLabel].(map[string]any)
	if !ok {
		// Soft failure: nothing to mirror for this spec.
		return Outcome{
			Collection: spec.Collection,
			Skipped:    true,
			Err:        fmt.Errorf("%w: %q", ErrMissingResultLabel, spec.ResultLabel),
		}
	}

	targetID := spec.Reference
	if targetID == "" && len(spec.LookupKeys) > 0 {
		preds := make([]Predicate, 0, len(spec.LookupKeys))
		for _, key := range spec.LookupKeys {
			preds = append(preds, Eq(key, payload[key]))
		}
		matches, err := r.Store.FindWhere(ctx, spec.Collection, preds)
		if err != nil {
			return Outcome{
				Collection: spec.Collection,
				Err:        &BackupError{Collection: spec.Collection, Cause: err},
			}
		}
		if len(matches) > 0 {
			targetID = matches[0].ID
		}
	}

	id, err := r.Store.Upsert(ctx, spec.Collection, targetID, stripReference(payload))
	if err != nil {
		return Outcome{
			Collection: spec.Collection,
			Err:        &BackupError{Collection: spec.Collection, Cause: err},
		}
	}

	return Outcome{
		Collection: spec.Collection,
		Reference:  id,
		Created:    targetID == "",
	}
}

// stripReference copies fields minus the reserved reference field. The
// payload itself is never mutated; it belongs to the Result.
func stripReference(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		if k == ReferenceField {
			continue
		}
		out[k] = v
	}
	return out
}
