package api

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"atelier/internal/nftverify"
)

type verifyRequest struct {
	Wallet string `json:"wallet"`
}

type verifyResponse struct {
	AgentID   int64  `json:"agent_id"`
	APIKey    string `json:"api_key,omitempty"`
	Traits    any    `json:"traits"`
	AssetName string `json:"asset_name"`
	Created   bool   `json:"created"`
}

// verifyHandler checks collection ownership for a wallet and registers the
// agent. The API key appears in the response only on first registration.
func verifyHandler(database *sql.DB, verifier nftverify.Verifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			methodNotAllowed(w)
			return
		}
		var req verifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json payload")
			return
		}
		req.Wallet = strings.TrimSpace(req.Wallet)
		if req.Wallet == "" {
			writeError(w, http.StatusBadRequest, "wallet is required")
			return
		}

		reg, err := nftverify.Register(r.Context(), database, verifier, req.Wallet)
		if err != nil {
			if errors.Is(err, nftverify.ErrNoCollectionAsset) {
				writeError(w, http.StatusForbidden, err.Error())
				return
			}
			writeError(w, http.StatusBadGateway, "ownership verification failed")
			return
		}

		writeJSON(w, http.StatusOK, verifyResponse{
			AgentID:   reg.Agent.ID,
			APIKey:    reg.APIKey,
			Traits:    reg.Agent.Traits,
			AssetName: reg.AssetName,
			Created:   reg.Created,
		})
	})
}
