package nftverify

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atelier/internal/auth"
	"atelier/internal/db"
	"atelier/internal/models"
)

// Registration is the outcome of a verify call. APIKey is only set when the
// agent was created by this call: keys are stored hashed and cannot be
// recovered afterwards.
type Registration struct {
	Agent     *models.Agent
	APIKey    string
	AssetName string
	Created   bool
}

// Register verifies ownership and creates the agent if the wallet is new.
// Re-verifying an existing wallet is idempotent and returns the stored
// agent without issuing a new key.
func Register(ctx context.Context, database *sql.DB, verifier Verifier, wallet string) (*Registration, error) {
	ownership, err := verifier.Verify(ctx, wallet)
	if err != nil {
		return nil, err
	}

	existing, err := db.GetAgentByWallet(ctx, database, wallet)
	if err == nil {
		return &Registration{
			Agent:     existing,
			AssetName: ownership.Name,
		}, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("look up wallet: %w", err)
	}

	apiKey, err := auth.GenerateAPIKey()
	if err != nil {
		return nil, err
	}
	agent, err := db.CreateAgent(ctx, database, wallet, ownership.Mint, ownership.Traits, auth.HashAPIKey(apiKey))
	if err != nil {
		// Lost a race with a concurrent verify for the same wallet.
		if db.IsUniqueConstraint(err) {
			existing, getErr := db.GetAgentByWallet(ctx, database, wallet)
			if getErr != nil {
				return nil, getErr
			}
			return &Registration{
				Agent:     existing,
				AssetName: ownership.Name,
			}, nil
		}
		return nil, fmt.Errorf("create agent: %w", err)
	}

	return &Registration{
		Agent:     agent,
		APIKey:    apiKey,
		AssetName: ownership.Name,
		Created:   true,
	}, nil
}
