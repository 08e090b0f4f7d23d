package engine_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/warp/procedure-gateway/engine"
	"github.com/warp/procedure-gateway/engine/store"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func successResult(data map[string]any) engine.Result {
	return engine.Success("procedure executed", data)
}

func userPayload(email string) map[string]any {
	return map[string]any{
		"user": map[string]any{"email": email, "name": "John", "status": "active"},
	}
}

// =============================================================================
// RESOLUTION TESTS
// =============================================================================

func TestReconcile_NoMatch_CreatesDocument(t *testing.T) {
	// GIVEN: An empty users collection and a lookup-keys spec
	// WHEN: Reconciling
	// THEN: A new document is created

	mem := store.NewMemory()
	r := engine.NewReconciler(mem)

	outcomes := r.Reconcile(context.Background(), successResult(userPayload("a@b.com")),
		[]engine.BackupSpec{{
			Collection:  "users",
			LookupKeys:  []string{"email"},
			ResultLabel: "user",
		}})

	if len(outcomes) != 1 {
		t.Fatalf("expected 1 outcome, got %d", len(outcomes))
	}
	o := outcomes[0]
	if o.Err != nil || o.Skipped {
		t.Fatalf("unexpected outcome: %+v", o)
	}
	if !o.Created || o.Reference == "" {
		t.Errorf("expected a created document with id, got %+v", o)
	}
	if mem.Count("users") != 1 {
		t.Errorf("expected 1 document, got %d", mem.Count("users"))
	}
}

func TestReconcile_ExistingMatch_UpdatesInPlace(t *testing.T) {
	// GIVEN: A users document already matching email a@b.com
	// WHEN: Reconciling with lookupKeys ["email"]
	// THEN: Upsert targets that document's id - an update, not a new id

	ctx := context.Background()
	mem := store.NewMemory()
	existingID, err := mem.Upsert(ctx, "users", "", map[string]any{"email": "a@b.com", "name": "Old Name"})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	r := engine.NewReconciler(mem)
	outcomes := r.Reconcile(ctx, successResult(userPayload("a@b.com")),
		[]engine.BackupSpec{{
			Collection:  "users",
			LookupKeys:  []string{"email"},
			ResultLabel: "user",
		}})

	o := outcomes[0]
	if o.Err != nil {
		t.Fatalf("unexpected error: %v", o.Err)
	}
	if o.Created {
		t.Error("expected an update, not a create")
	}
	if o.Reference != existingID {
		t.Errorf("expected reference %q, got %q", existingID, o.Reference)
	}
	if mem.Count("users") != 1 {
		t.Errorf("duplicate document created: count %d", mem.Count("users"))
	}

	doc, err := mem.FindByID(ctx, "users", existingID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	// Full-document replace: the old body is gone, the payload is the body.
	if doc.Fields["name"] != "John" || doc.Fields["status"] != "active" {
		t.Errorf("document not replaced: %v", doc.Fields)
	}
}

func TestReconcile_MultipleMatches_FirstInStoreOrderWins(t *testing.T) {
	// GIVEN: Two documents both matching email a@b.com
	// WHEN: Reconciling with lookupKeys ["email"]
	// THEN: The first document in store-native order is the update target;
	//       the later duplicate is left untouched

	ctx := context.Background()
	mem := store.NewMemory()
	firstID, err := mem.Upsert(ctx, "users", "", map[string]any{"email": "a@b.com", "name": "First"})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	secondID, err := mem.Upsert(ctx, "users", "", map[string]any{"email": "a@b.com", "name": "Second"})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	r := engine.NewReconciler(mem)
	outcomes := r.Reconcile(ctx, successResult(userPayload("a@b.com")),
		[]engine.BackupSpec{{
			Collection:  "users",
			LookupKeys:  []string{"email"},
			ResultLabel: "user",
		}})

	o := outcomes[0]
	if o.Err != nil || o.Created {
		t.Fatalf("expected an update outcome, got %+v", o)
	}
	if o.Reference != firstID {
		t.Errorf("expected first-inserted target %q, got %q", firstID, o.Reference)
	}
	if mem.Count("users") != 2 {
		t.Errorf("expected 2 documents, got %d", mem.Count("users"))
	}

	untouched, err := mem.FindByID(ctx, "users", secondID)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if untouched.Fields["name"] != "Second" {
		t.Errorf("later duplicate was modified: %v", untouched.Fields)
	}
}

func TestReconcile_Idempotent(t *testing.T) {
	// Calling reconcile twice with the same lookup-keys spec and the same
	// result data resolves to the same target id the second time.

	ctx := context.Background()
	mem := store.NewMemory()
	r := engine.NewReconciler(mem)
	spec := []engine.BackupSpec{{
		Collection:  "users",
		LookupKeys:  []string{"email"},
		ResultLabel: "user",
	}}

	first := r.Reconcile(ctx, successResult(userPayload("a@b.com")), spec)
	second := r.Reconcile(ctx, successResult(userPayload("a@b.com")), spec)

	if second[0].Reference != first[0].Reference {
		t.Errorf("second reconcile resolved %q, want %q", second[0].Reference, first[0].Reference)
	}
	if second[0].Created {
		t.Error("second reconcile must not create")
	}
	if mem.Count("users") != 1 {
		t.Errorf("expected 1 document after two reconciles, got %d", mem.Count("users"))
	}
}

func TestReconcile_ExplicitReference_SkipsLookup(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	r := engine.NewReconciler(mem)

	outcomes := r.Reconcile(ctx, successResult(userPayload("a@b.com")),
		[]engine.BackupSpec{{
			Collection:  "users",
			Reference:   "user-42",
			ResultLabel: "user",
		}})

	if outcomes[0].Reference != "user-42" {
		t.Errorf("expected explicit reference, got %q", outcomes[0].Reference)
	}
	if exists, _ := mem.Exists(ctx, "users", "user-42"); !exists {
		t.Error("document not written under explicit reference")
	}
}

func TestReconcile_MissingResultLabel_SoftSkip(t *testing.T) {
	// GIVEN: result.Data has no entry for the spec's label
	// THEN: That backup is skipped, not fatal, nothing written

	mem := store.NewMemory()
	r := engine.NewReconciler(mem)

	outcomes := r.Reconcile(context.Background(), successResult(map[string]any{}),
		[]engine.BackupSpec{{Collection: "users", ResultLabel: "user"}})

	o := outcomes[0]
	if !o.Skipped {
		t.Fatalf("expected a skip, got %+v", o)
	}
	if !errors.Is(o.Err, engine.ErrMissingResultLabel) {
		t.Errorf("expected ErrMissingResultLabel, got %v", o.Err)
	}
	if mem.Count("users") != 0 {
		t.Error("skip must not write")
	}
}

func TestReconcile_ReferenceFieldStrippedBeforeWrite(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemory()
	r := engine.NewReconciler(mem)

	result := successResult(map[string]any{
		"user": map[string]any{"email": "a@b.com", "reference": "transient"},
	})
	outcomes := r.Reconcile(ctx, result,
		[]engine.BackupSpec{{Collection: "users", ResultLabel: "user"}})

	doc, err := mem.FindByID(ctx, "users", outcomes[0].Reference)
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if _, present := doc.Fields["reference"]; present {
		t.Error("reserved reference field must not be persisted")
	}
	// The payload handed to Reconcile is not mutated.
	if result.Data["user"].(map[string]any)["reference"] != "transient" {
		t.Error("reconcile mutated the caller's result data")
	}
}

// =============================================================================
// FAULT ISOLATION AND CONCURRENCY
// =============================================================================

// faultyStore fails every operation against one collection and delegates
// the rest.
type faultyStore struct {
	engine.DocumentStore
	failCollection string
}

var errStoreDown = errors.New("store down")

func (f *faultyStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) (string, error) {
	if collection == f.failCollection {
		return "", errStoreDown
	}
	return f.DocumentStore.Upsert(ctx, collection, id, fields)
}

func TestReconcile_OneFailure_OthersComplete(t *testing.T) {
	// GIVEN: Two backup specs, one against a broken collection
	// THEN: The broken one reports its error; the other still completes

	ctx := context.Background()
	mem := store.NewMemory()
	r := engine.NewReconciler(&faultyStore{DocumentStore: mem, failCollection: "payments"})

	result := successResult(map[string]any{
		"payment": map[string]any{"amount": 100},
		"user":    map[string]any{"email": "a@b.com"},
	})
	outcomes := r.Reconcile(ctx, result, []engine.BackupSpec{
		{Collection: "payments", ResultLabel: "payment"},
		{Collection: "users", ResultLabel: "user"},
	})

	if !errors.Is(outcomes[0].Err, engine.ErrBackupFailed) {
		t.Errorf("expected backup failure for payments, got %v", outcomes[0].Err)
	}
	if outcomes[1].Err != nil {
		t.Errorf("users backup must complete: %v", outcomes[1].Err)
	}
	if mem.Count("users") != 1 {
		t.Error("users document missing")
	}
}

// gatedStore blocks upserts to one collection until released.
type gatedStore struct {
	engine.DocumentStore
	gateCollection string
	release        chan struct{}
}

func (g *gatedStore) Upsert(ctx context.Context, collection, id string, fields map[string]any) (string, error) {
	if collection == g.gateCollection {
		select {
		case <-g.release:
		case <-time.After(2 * time.Second):
			return "", errors.New("gate never released: specs did not run concurrently")
		}
	}
	id, err := g.DocumentStore.Upsert(ctx, collection, id, fields)
	if collection != g.gateCollection && err == nil {
		close(g.release)
	}
	return id, err
}

func TestReconcile_SpecsRunConcurrently(t *testing.T) {
	// GIVEN: A slow backup listed FIRST whose write only unblocks after the
	//        fast one finished
	// THEN: Both complete - the fast spec's outcome resolves independently
	//       of the slow one ahead of it

	ctx := context.Background()
	gated := &gatedStore{
		DocumentStore:  store.NewMemory(),
		gateCollection: "slow",
		release:        make(chan struct{}),
	}
	r := engine.NewReconciler(gated)

	result := successResult(map[string]any{
		"a": map[string]any{"v": 1},
		"b": map[string]any{"v": 2},
	})
	outcomes := r.Reconcile(ctx, result, []engine.BackupSpec{
		{Collection: "slow", ResultLabel: "a"},
		{Collection: "fast", ResultLabel: "b"},
	})

	for i, o := range outcomes {
		if o.Err != nil {
			t.Errorf("outcome %d failed: %v", i, o.Err)
		}
	}
}
