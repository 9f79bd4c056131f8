package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"atelier/internal/models"
)

func CreateAgent(ctx context.Context, database *sql.DB, wallet, mint string, traits models.TraitList, apiKeyHash string) (*models.Agent, error) {
	traitsJSON, err := json.Marshal(traits)
	if err != nil {
		return nil, fmt.Errorf("marshal traits: %w", err)
	}
	created := nowRFC3339()
	res, err := database.ExecContext(ctx, `
INSERT INTO agents (wallet, mint, traits, api_key, created)
VALUES (?, ?, ?, ?, ?)`,
		wallet, mint, string(traitsJSON), apiKeyHash, created)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Agent{
		ID:      id,
		Wallet:  wallet,
		Mint:    mint,
		Traits:  traits,
		Created: created,
	}, nil
}

func GetAgent(ctx context.Context, q Querier, id int64) (*models.Agent, error) {
	return scanAgent(q.QueryRowContext(ctx, agentSelect+` WHERE id = ?`, id))
}

func GetAgentByWallet(ctx context.Context, q Querier, wallet string) (*models.Agent, error) {
	return scanAgent(q.QueryRowContext(ctx, agentSelect+` WHERE wallet = ?`, wallet))
}

func GetAgentByAPIKeyHash(ctx context.Context, q Querier, apiKeyHash string) (*models.Agent, error) {
	return scanAgent(q.QueryRowContext(ctx, agentSelect+` WHERE api_key = ?`, apiKeyHash))
}

func ListAgents(ctx context.Context, database *sql.DB) ([]models.Agent, error) {
	rows, err := database.QueryContext(ctx, agentSelect+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]models.Agent, 0)
	for rows.Next() {
		a, err := scanAgentRows(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	return agents, rows.Err()
}

// AdvanceAgentTx moves the agent's grant cursor forward after a post lands.
// Runs inside the same transaction as the post insert so the two writes are
// indivisible to concurrent readers.
func AdvanceAgentTx(ctx context.Context, tx *sql.Tx, agentID int64, posted string) error {
	res, err := tx.ExecContext(ctx, `
UPDATE agents
SET last_posted = ?, total_posts = total_posts + 1
WHERE id = ?`, posted, agentID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const agentSelect = `
SELECT id, wallet, mint, traits, api_key, last_posted, total_posts, created
FROM agents`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAgent(row *sql.Row) (*models.Agent, error) {
	return scanAgentRows(row)
}

func scanAgentRows(row rowScanner) (*models.Agent, error) {
	var (
		a          models.Agent
		traitsRaw  string
		apiKeyHash string
	)
	if err := row.Scan(&a.ID, &a.Wallet, &a.Mint, &traitsRaw, &apiKeyHash, &a.LastPosted, &a.TotalPosts, &a.Created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(traitsRaw), &a.Traits); err != nil {
		return nil, fmt.Errorf("decode traits for agent %d: %w", a.ID, err)
	}
	return &a, nil
}
