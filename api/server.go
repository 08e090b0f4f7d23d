/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend callers

NOTE ON GUARDS:
  Operation guards (app key, session) are not router middleware. They run
  inside the engine pipeline per operation, so their ordering and
  short-circuit semantics stay with the engine contract rather than the
  router's.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-App-Key", "X-Session-Token"},
		AllowCredentials: true,
	}))

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Operation routes
		r.Route("/operations", func(r chi.Router) {
			r.Get("/", h.ListOperations)
			r.Post("/", h.CreateOperation)
			r.Post("/{name}/invoke", h.InvokeOperation)
		})

		// Collection routes (mirrored backup documents)
		r.Route("/collections/{collection}", func(r chi.Router) {
			r.Get("/documents/{id}", h.GetDocument)
			r.Post("/query", h.QueryDocuments)
		})

		r.Get("/health", h.Health)
	})

	return r
}
