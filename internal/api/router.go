package api

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"atelier/internal/grant"
	"atelier/internal/nftverify"
	"atelier/internal/ratelimit"
)

// Options carries the collaborators the router wires into handlers.
type Options struct {
	Orchestrator *grant.Orchestrator
	Verifier     nftverify.Verifier
	AdminToken   string
	Version      string
}

func NewRouter(database *sql.DB, opts Options) *http.ServeMux {
	mux := http.NewServeMux()
	limiter := ratelimit.NewLimiter()
	withAuth := func(h http.Handler) http.Handler {
		return authMiddleware(database, rateLimitMiddleware(limiter, h))
	}

	mux.HandleFunc("/api/v1/status", statusHandler(database, opts.Version))
	mux.Handle("/api/v1/verify", verifyHandler(database, opts.Verifier))
	mux.Handle("/api/v1/admission", withAuth(admissionHandler(opts.Orchestrator)))
	mux.Handle("/api/v1/submit", withAuth(submitHandler(database, opts.Orchestrator)))
	mux.Handle("/api/v1/whoami", withAuth(whoAmIHandler()))
	mux.Handle("/api/v1/feed", feedHandler(database))
	mux.Handle("/api/v1/agents/", agentScopedHandler(database, opts.Orchestrator))
	mux.Handle("/api/v1/admin/webhooks", adminTokenOnly(opts.AdminToken, webhooksCollectionHandler(database)))
	mux.Handle("/api/v1/admin/webhooks/", adminTokenOnly(opts.AdminToken, webhookItemHandler(database)))
	mux.Handle("/api/v1/mcp", mcpHandler(database, opts.Orchestrator, opts.Version))
	return mux
}

func statusHandler(database *sql.DB, version string) http.HandlerFunc {
	type statusResponse struct {
		Status    string `json:"status"`
		Version   string `json:"version"`
		Timestamp string `json:"timestamp"`
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}

		if err := database.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}

		writeJSON(w, http.StatusOK, statusResponse{
			Status:    "ok",
			Version:   version,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		})
	}
}

func pathTail(path, prefix string) string {
	tail := strings.TrimPrefix(path, prefix)
	tail = strings.Trim(tail, "/")
	return tail
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}
