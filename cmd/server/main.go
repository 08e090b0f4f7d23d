/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the procedure gateway server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Parse command-line flags
  2. Initialize SQLite document store
  3. Open the MySQL procedure engine pool
  4. Seed default account operations (first run)
  5. Create API handler with dependencies
  6. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port     HTTP server port (default: 8080)
  -db       SQLite document store path (default: gateway.db)
            Use ":memory:" for an in-memory store
  -dsn      MySQL DSN for the relational engine
  -schema   Relational schema holding the account procedures
  -app-key  Application key accepted by the app_key guard (repeatable
            via comma separation)
  -session-token
            Session token accepted by the session guard (repeatable via
            comma separation). The in-memory session checker is a dev
            convenience; production deployments swap in a real
            SessionChecker.

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Close both store handles
  4. Exit

EXAMPLES:
  ./server -dsn="gateway:secret@tcp(localhost:3306)/accounts" -db="./data/gateway.db"
  ./server -db=":memory:" -app-key="dev-key" -session-token="dev-session"

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Document store implementation
  - store/mysql/mysql.go: Procedure engine implementation
*/
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/warp/procedure-gateway/accounts"
	"github.com/warp/procedure-gateway/api"
	"github.com/warp/procedure-gateway/engine"
	"github.com/warp/procedure-gateway/store/mysql"
	"github.com/warp/procedure-gateway/store/sqlite"
)

func main() {
	// Flags
	port := flag.Int("port", 8080, "HTTP server port")
	dbPath := flag.String("db", "gateway.db", "SQLite document store path")
	dsn := flag.String("dsn", "root@tcp(localhost:3306)/accounts", "MySQL DSN for the relational engine")
	schema := flag.String("schema", "accounts", "Relational schema holding the account procedures")
	appKeys := flag.String("app-key", "dev-key", "Comma-separated application keys accepted by the app_key guard")
	sessionTokens := flag.String("session-token", "dev-session", "Comma-separated session tokens accepted by the session guard")
	flag.Parse()

	// Initialize document store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize document store: %v", err)
	}
	defer store.Close()

	// Initialize relational engine (lazy pool; no traffic until first call)
	procEngine, err := mysql.New(*dsn)
	if err != nil {
		log.Fatalf("Failed to initialize procedure engine: %v", err)
	}
	defer procEngine.Close()

	ctx := context.Background()

	// Seed default operations on first run
	if err := seedOperations(ctx, store, *schema); err != nil {
		log.Fatalf("Failed to seed operations: %v", err)
	}

	// Wire guards by name
	keys := make(map[string]bool)
	for _, k := range splitList(*appKeys) {
		keys[k] = true
	}
	guards := map[string]engine.Guard{
		accounts.GuardAppKey:  accounts.RequireAppKey(keys),
		accounts.GuardSession: accounts.RequireSession(accounts.NewMemorySessions(splitList(*sessionTokens)...)),
	}

	// Initialize handler
	handler := api.NewHandler(store, procEngine, guards)
	if err := handler.LoadOperations(ctx); err != nil {
		log.Fatalf("Failed to load operations: %v", err)
	}

	// Start server
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", *port),
		Handler: api.NewRouter(handler),
	}

	go func() {
		log.Printf("Procedure gateway listening on :%d", *port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Forced shutdown: %v", err)
	}
	log.Println("Server stopped")
}

// splitList parses a comma-separated flag value, dropping empty entries.
func splitList(value string) []string {
	var out []string
	for _, v := range strings.Split(value, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// seedOperations stores the default account operations when the registry
// is empty. Existing definitions are never overwritten.
func seedOperations(ctx context.Context, store *sqlite.Store, schema string) error {
	existing, err := store.ListOperations(ctx)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		return nil
	}

	for _, configJSON := range accounts.DefaultOperationsJSON(schema) {
		var probe struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal([]byte(configJSON), &probe); err != nil {
			return err
		}
		if err := store.SaveOperation(ctx, sqlite.OperationRecord{
			Name:       probe.Name,
			ConfigJSON: configJSON,
		}); err != nil {
			return err
		}
		log.Printf("Seeded operation %q", probe.Name)
	}
	return nil
}
