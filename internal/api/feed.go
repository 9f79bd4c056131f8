package api

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"atelier/internal/db"
	"atelier/internal/grant"
)

const (
	defaultFeedLimit = 50
	maxFeedLimit     = 200
)

func feedHandler(database *sql.DB) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		limit := defaultFeedLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(n, maxFeedLimit)
		}

		posts, err := db.ListRecentPosts(r.Context(), database, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to list posts")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
	})
}

// agentScopedHandler serves /api/v1/agents/{id} (profile with current queue
// position) and /api/v1/agents/{id}/posts (history, newest first).
func agentScopedHandler(database *sql.DB, orch *grant.Orchestrator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		tail := pathTail(r.URL.Path, "/api/v1/agents/")
		idPart, rest, _ := strings.Cut(tail, "/")
		agentID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid agent id")
			return
		}

		switch rest {
		case "":
			agent, err := db.GetAgent(r.Context(), database, agentID)
			if err != nil {
				if errors.Is(err, sql.ErrNoRows) {
					writeError(w, http.StatusNotFound, "agent not found")
					return
				}
				writeError(w, http.StatusInternalServerError, "failed to read agent")
				return
			}
			decision, err := orch.CheckAdmission(r.Context(), agentID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to compute queue position")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{
				"agent":    agent,
				"decision": decision,
			})
		case "posts":
			posts, err := db.ListPostsByAgent(r.Context(), database, agentID)
			if err != nil {
				writeError(w, http.StatusInternalServerError, "failed to list posts")
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"posts": posts})
		default:
			writeError(w, http.StatusNotFound, "not found")
		}
	})
}
