package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"atelier/internal/artifact"
	"atelier/internal/grant"
	"atelier/internal/models"
)

type submitRequest struct {
	Traits models.TraitList `json:"traits"`
}

func submitHandler(database *sql.DB, orch *grant.Orchestrator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		agent := currentAgent(r.Context())
		if agent == nil {
			writeError(w, http.StatusUnauthorized, "missing auth context")
			return
		}

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid json payload")
			return
		}

		result, err := orch.SubmitAgent(r.Context(), agent, req.Traits)
		if err != nil {
			writeGrantError(w, err)
			return
		}

		emitWebhookEvent(database, "post.created", map[string]any{
			"post_id":   result.Post.ID,
			"agent_id":  result.Post.AgentID,
			"image_url": result.Post.ImageURL,
			"day":       result.Post.Day,
		})

		writeJSON(w, http.StatusCreated, map[string]any{
			"post":     result.Post,
			"decision": result.Decision,
			"message":  "Artwork posted! See you tomorrow for your next creation.",
		})
	})
}

func admissionHandler(orch *grant.Orchestrator) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		agent := currentAgent(r.Context())
		if agent == nil {
			writeError(w, http.StatusUnauthorized, "missing auth context")
			return
		}
		decision, err := orch.CheckAdmission(r.Context(), agent.ID)
		if err != nil {
			writeGrantError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, decision)
	})
}

func whoAmIHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			methodNotAllowed(w)
			return
		}
		agent := currentAgent(r.Context())
		if agent == nil {
			writeError(w, http.StatusUnauthorized, "missing auth context")
			return
		}
		writeJSON(w, http.StatusOK, agent)
	})
}

// writeGrantError maps the grant taxonomy onto HTTP statuses. Denials and
// conflicts carry enough structure for the caller to decide when to retry.
func writeGrantError(w http.ResponseWriter, err error) {
	var (
		denied  *grant.DeniedError
		prodErr *artifact.Error
	)
	switch {
	case errors.Is(err, grant.ErrUnknownCredential):
		writeError(w, http.StatusUnauthorized, "invalid api key")
	case errors.As(err, &denied):
		d := denied.Decision
		writeJSON(w, http.StatusTooManyRequests, map[string]any{
			"error":    deniedMessage(d),
			"decision": d,
		})
	case errors.As(err, &prodErr):
		status := http.StatusUnprocessableEntity
		if prodErr.Transient {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]any{
			"error":     "image generation failed",
			"retryable": prodErr.Transient,
		})
	case errors.Is(err, grant.ErrCommitConflict):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":     "submission conflicted with a concurrent post, retry",
			"retryable": true,
		})
	case errors.Is(err, grant.ErrStorageUnavailable):
		writeError(w, http.StatusServiceUnavailable, "storage unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func deniedMessage(d *models.Decision) string {
	switch d.Verdict {
	case models.VerdictAlreadyPosted:
		return "you already posted today, try again tomorrow"
	case models.VerdictCapReached:
		if d.SpotsRemaining > 0 {
			return "agents who have waited longer fill today's remaining spots, try again later today"
		}
		return "daily posting cap reached, try again tomorrow"
	case models.VerdictUnknownAgent:
		return "unknown agent"
	default:
		return "admission denied"
	}
}
