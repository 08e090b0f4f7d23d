/*
handlers.go - HTTP API handlers for the procedure gateway

PURPOSE:
  Exposes procedure invocation over REST. Handles HTTP request/response,
  JSON serialization, and delegates to the engine: pipeline guards, then
  invoker, then reconciler.

ENDPOINTS:
  Operations:
    GET    /api/operations                       List registered operations
    POST   /api/operations                       Register an operation
    POST   /api/operations/{name}/invoke         Invoke (guarded)

  Collections:
    GET    /api/collections/{collection}/documents/{id}  Fetch one document
    POST   /api/collections/{collection}/query           Predicate query

  Misc:
    GET    /api/health

REQUEST FLOW (invoke):
  1. Resolve the named operation from the registry
  2. Build the pipeline request: JSON body as form data, headers as meta
  3. Run the operation's guards, in order, ahead of the handler
  4. Handler invokes the stored procedure
  5. On success, reconcile configured backups (best-effort, concurrent)
  6. Respond with the envelope plus backup outcomes

ERROR HANDLING:
  - 400: Malformed input
  - 401: Guard rejection (app key / session)
  - 404: Unknown operation or document
  - 500: Store failures
  Backup failures are logged and reported in the response body but never
  change the envelope status: the relational write is the source of truth.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/warp/procedure-gateway/engine"
	"github.com/warp/procedure-gateway/factory"
	"github.com/warp/procedure-gateway/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store      *sqlite.Store
	Invoker    *engine.Invoker
	Reconciler *engine.Reconciler
	Factory    *factory.OperationFactory

	// Named guards available to operation configs.
	guards map[string]engine.Guard

	// Registry of parsed operations, keyed by name.
	mu         sync.RWMutex
	operations map[string]*factory.Operation
}

// NewHandler creates a new handler. The store doubles as document store
// and operation-config persistence; guards are wired by name from
// operation configs.
func NewHandler(store *sqlite.Store, procEngine engine.ProcedureEngine, guards map[string]engine.Guard) *Handler {
	return &Handler{
		Store:      store,
		Invoker:    engine.NewInvoker(procEngine),
		Reconciler: engine.NewReconciler(store),
		Factory:    factory.NewOperationFactory(),
		guards:     guards,
		operations: make(map[string]*factory.Operation),
	}
}

// LoadOperations loads all stored operation definitions into the registry.
func (h *Handler) LoadOperations(ctx context.Context) error {
	records, err := h.Store.ListOperations(ctx)
	if err != nil {
		return err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, rec := range records {
		op, err := h.Factory.Parse(rec.ConfigJSON)
		if err != nil {
			log.Printf("skipping invalid operation config %q: %v", rec.Name, err)
			continue
		}
		h.operations[op.Name] = op
	}
	return nil
}

// RegisterOperation adds an operation to the registry and persists it.
func (h *Handler) RegisterOperation(ctx context.Context, configJSON string) (*factory.Operation, error) {
	op, err := h.Factory.Parse(configJSON)
	if err != nil {
		return nil, err
	}

	if err := h.Store.SaveOperation(ctx, sqlite.OperationRecord{
		Name:       op.Name,
		ConfigJSON: configJSON,
	}); err != nil {
		return nil, err
	}

	h.mu.Lock()
	h.operations[op.Name] = op
	h.mu.Unlock()
	return op, nil
}

func (h *Handler) operation(name string) (*factory.Operation, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	op, ok := h.operations[name]
	return op, ok
}

// =============================================================================
// OPERATION ENDPOINTS
// =============================================================================

// ListOperations returns all registered operations.
// GET /api/operations
func (h *Handler) ListOperations(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	dtos := make([]OperationDTO, 0, len(h.operations))
	for _, op := range h.operations {
		dtos = append(dtos, toOperationDTO(op))
	}
	h.mu.RUnlock()

	sort.Slice(dtos, func(i, j int) bool { return dtos[i].Name < dtos[j].Name })
	writeJSON(w, http.StatusOK, dtos)
}

// CreateOperation registers a new operation definition.
// POST /api/operations
func (h *Handler) CreateOperation(w http.ResponseWriter, r *http.Request) {
	var req RegisterOperationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	raw, err := json.Marshal(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid operation config", err)
		return
	}

	op, err := h.RegisterOperation(r.Context(), string(raw))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid operation config", err)
		return
	}
	writeJSON(w, http.StatusCreated, toOperationDTO(op))
}

// InvokeOperation runs an operation: guards, procedure call, backups.
// POST /api/operations/{name}/invoke
func (h *Handler) InvokeOperation(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	op, ok := h.operation(name)
	if !ok {
		writeError(w, http.StatusNotFound, "Unknown operation", engine.ErrUnknownOperation)
		return
	}

	var form engine.FormData
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid form data", err)
			return
		}
	}

	guards, err := h.resolveGuards(op)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Misconfigured operation", err)
		return
	}

	req := &engine.PipelineRequest{
		Form: form,
		Meta: headerMeta(r),
	}

	var outcomes []engine.Outcome
	pipeline := engine.NewPipeline(func(ctx context.Context, req *engine.PipelineRequest) (engine.Result, error) {
		result := h.Invoker.Invoke(ctx, op.Call, req.Form)
		if result.OK() && len(op.Backups) > 0 {
			outcomes = h.Reconciler.Reconcile(ctx, result, op.Backups)
			for _, o := range outcomes {
				if o.Err != nil {
					// Advisory only. The procedure already succeeded.
					log.Printf("operation %q: %v", op.Name, o.Err)
				}
			}
		}
		return result, nil
	}, guards...)

	result, err := pipeline.Run(r.Context(), req)
	if err != nil {
		if engine.IsGuardRejection(err) {
			writeError(w, http.StatusUnauthorized, "Request rejected", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Pipeline failed", err)
		return
	}

	writeJSON(w, http.StatusOK, InvokeResponse{
		Status:  result.Status,
		Message: result.Message,
		Data:    result.Data,
		Backups: toBackupDTOs(outcomes),
	})
}

func (h *Handler) resolveGuards(op *factory.Operation) ([]engine.Guard, error) {
	guards := make([]engine.Guard, 0, len(op.Guards))
	for _, name := range op.Guards {
		g, ok := h.guards[name]
		if !ok {
			return nil, errors.New("no such guard: " + name)
		}
		guards = append(guards, g)
	}
	return guards, nil
}

// headerMeta flattens request headers into the pipeline meta map,
// lower-cased, first value wins.
func headerMeta(r *http.Request) map[string]string {
	meta := make(map[string]string, len(r.Header))
	for k, vs := range r.Header {
		if len(vs) > 0 {
			meta[strings.ToLower(k)] = vs[0]
		}
	}
	return meta
}

// =============================================================================
// COLLECTION ENDPOINTS
// =============================================================================

// GetDocument fetches one document by id.
// GET /api/collections/{collection}/documents/{id}
func (h *Handler) GetDocument(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")
	id := chi.URLParam(r, "id")

	doc, err := h.Store.FindByID(r.Context(), collection, id)
	if err != nil {
		if errors.Is(err, engine.ErrDocumentNotFound) {
			writeError(w, http.StatusNotFound, "Document not found", err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to load document", err)
		return
	}
	writeJSON(w, http.StatusOK, DocumentDTO{ID: doc.ID, Fields: doc.Fields})
}

// QueryDocuments runs a predicate query against one collection.
// POST /api/collections/{collection}/query
func (h *Handler) QueryDocuments(w http.ResponseWriter, r *http.Request) {
	collection := chi.URLParam(r, "collection")

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid query", err)
		return
	}

	docs, err := h.Store.FindWhere(r.Context(), collection, toPredicates(req.Predicates))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Query failed", err)
		return
	}

	dtos := make([]DocumentDTO, 0, len(docs))
	for _, doc := range docs {
		dtos = append(dtos, DocumentDTO{ID: doc.ID, Fields: doc.Fields})
	}
	writeJSON(w, http.StatusOK, dtos)
}

// Health reports liveness.
// GET /api/health
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
