/*
handlers_test.go - Integration tests for the gateway API

Tests the full invoke path: guards, procedure invocation against a fake
engine, backup reconciliation into a real (in-memory SQLite) document
store, and the collection endpoints.
*/
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/warp/procedure-gateway/accounts"
	"github.com/warp/procedure-gateway/engine"
	"github.com/warp/procedure-gateway/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

// scriptedEngine serves canned first rows per procedure.
type scriptedEngine struct {
	rows map[string]map[string]any
}

func (s *scriptedEngine) ProcedureExists(_ context.Context, schema, procedure string) (bool, error) {
	_, ok := s.rows[schema+"."+procedure]
	return ok, nil
}

func (s *scriptedEngine) Call(_ context.Context, schema, procedure string, _ []any) (map[string]any, error) {
	return s.rows[schema+"."+procedure], nil
}

func newTestHandler(t *testing.T, eng engine.ProcedureEngine) *Handler {
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	guards := map[string]engine.Guard{
		accounts.GuardAppKey:  accounts.RequireAppKey(map[string]bool{"test-key": true}),
		accounts.GuardSession: accounts.RequireSession(accounts.NewMemorySessions("test-session")),
	}

	h := NewHandler(store, eng, guards)

	ctx := context.Background()
	if _, err := h.RegisterOperation(ctx, accounts.RegisterUserJSON("accounts")); err != nil {
		t.Fatalf("Failed to register operation: %v", err)
	}
	return h
}

func invoke(t *testing.T, router http.Handler, name, body string, headers map[string]string) (*httptest.ResponseRecorder, InvokeResponse) {
	req := httptest.NewRequest(http.MethodPost, "/api/operations/"+name+"/invoke", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var resp InvokeResponse
	if rec.Code == http.StatusOK {
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
	}
	return rec, resp
}

// =============================================================================
// INVOKE TESTS
// =============================================================================

func TestInvokeOperation_SuccessWithBackup(t *testing.T) {
	// GIVEN: A registered operation whose procedure succeeds
	// WHEN: Invoked twice with the same email
	// THEN: First invoke creates the mirror document, second updates it

	eng := &scriptedEngine{rows: map[string]map[string]any{
		"accounts.register_user": {
			"result": `{"user": {"email": "a@b.com", "name": "John"}}`,
		},
	}}
	h := newTestHandler(t, eng)
	router := NewRouter(h)
	headers := map[string]string{"X-App-Key": "test-key"}

	rec, resp := invoke(t, router, "register-user", `{"name":"John","email":"a@b.com"}`, headers)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Status != engine.StatusSuccess {
		t.Fatalf("expected success envelope, got %s: %s", resp.Status, resp.Message)
	}
	if len(resp.Backups) != 1 || !resp.Backups[0].Created {
		t.Fatalf("expected one created backup, got %+v", resp.Backups)
	}
	firstRef := resp.Backups[0].Reference

	_, resp = invoke(t, router, "register-user", `{"name":"John","email":"a@b.com"}`, headers)
	if resp.Backups[0].Created {
		t.Error("second invoke must update, not create")
	}
	if resp.Backups[0].Reference != firstRef {
		t.Errorf("second invoke resolved %q, want %q", resp.Backups[0].Reference, firstRef)
	}

	docs, err := h.Store.FindWhere(context.Background(), "users",
		[]engine.Predicate{engine.Eq("email", "a@b.com")})
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("expected exactly 1 mirrored document, got %d", len(docs))
	}
}

func TestInvokeOperation_MissingAppKey_Unauthorized(t *testing.T) {
	eng := &scriptedEngine{rows: map[string]map[string]any{
		"accounts.register_user": {"result": `{"user":{"email":"a@b.com"}}`},
	}}
	h := newTestHandler(t, eng)
	router := NewRouter(h)

	rec, _ := invoke(t, router, "register-user", `{"email":"a@b.com"}`, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestInvokeOperation_UnknownOperation(t *testing.T) {
	h := newTestHandler(t, &scriptedEngine{rows: map[string]map[string]any{}})
	router := NewRouter(h)

	rec, _ := invoke(t, router, "no-such-op", `{}`, map[string]string{"X-App-Key": "test-key"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestInvokeOperation_GhostProcedure_ErrorEnvelope(t *testing.T) {
	// The procedure is registered as an operation but absent from the
	// engine catalog: HTTP 200, error envelope, no backups attempted.
	h := newTestHandler(t, &scriptedEngine{rows: map[string]map[string]any{}})
	router := NewRouter(h)

	rec, resp := invoke(t, router, "register-user", `{}`, map[string]string{"X-App-Key": "test-key"})
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if resp.Status != engine.StatusError {
		t.Fatalf("expected error envelope, got %s", resp.Status)
	}
	if !strings.Contains(resp.Message, "does not exist") {
		t.Errorf("message %q should mention the missing procedure", resp.Message)
	}
	if len(resp.Backups) != 0 {
		t.Errorf("no backups should run on error results, got %+v", resp.Backups)
	}
}

// =============================================================================
// COLLECTION ENDPOINT TESTS
// =============================================================================

func TestCollectionEndpoints(t *testing.T) {
	h := newTestHandler(t, &scriptedEngine{rows: map[string]map[string]any{}})
	router := NewRouter(h)

	ctx := context.Background()
	id, err := h.Store.Upsert(ctx, "users", "", map[string]any{"email": "a@b.com", "name": "John"})
	if err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	// Fetch by id
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections/users/documents/"+id, nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var doc DocumentDTO
	if err := json.NewDecoder(rec.Body).Decode(&doc); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if doc.Fields["email"] != "a@b.com" {
		t.Errorf("unexpected document: %+v", doc)
	}

	// Predicate query
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/collections/users/query",
		strings.NewReader(`{"predicates":[{"field":"email","value":"a@b.com"}]}`)))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var docs []DocumentDTO
	if err := json.NewDecoder(rec.Body).Decode(&docs); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != id {
		t.Errorf("unexpected query result: %+v", docs)
	}

	// Miss
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/collections/users/documents/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

// =============================================================================
// REGISTRY TESTS
// =============================================================================

func TestLoadOperations_RestoresRegistry(t *testing.T) {
	// Operations saved by one handler are visible to a fresh handler
	// backed by the same store.
	store, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	eng := &scriptedEngine{rows: map[string]map[string]any{}}
	first := NewHandler(store, eng, nil)
	if _, err := first.RegisterOperation(context.Background(), accounts.UpdateProfileJSON("accounts")); err != nil {
		t.Fatalf("register failed: %v", err)
	}

	second := NewHandler(store, eng, nil)
	if err := second.LoadOperations(context.Background()); err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if _, ok := second.operation("update-profile"); !ok {
		t.Error("operation not restored from store")
	}
}
