package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"atelier/internal/models"
)

// Snapshot is a portable dump of the gallery: agents (with their credential
// hashes, so a restore keeps keys working) and every post.
type Snapshot struct {
	ExportedAt string          `json:"exported_at" yaml:"exported_at"`
	Agents     []SnapshotAgent `json:"agents" yaml:"agents"`
	Posts      []models.Post   `json:"posts" yaml:"posts"`
}

type SnapshotAgent struct {
	models.Agent `yaml:",inline"`
	APIKeyHash   string `json:"api_key_hash" yaml:"api_key_hash"`
}

func ExportSnapshot(ctx context.Context, database *sql.DB) (*Snapshot, error) {
	rows, err := database.QueryContext(ctx, agentSelect+` ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	agents := make([]SnapshotAgent, 0)
	for rows.Next() {
		var (
			a         SnapshotAgent
			traitsRaw string
		)
		if err := rows.Scan(&a.ID, &a.Wallet, &a.Mint, &traitsRaw, &a.APIKeyHash, &a.LastPosted, &a.TotalPosts, &a.Created); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(traitsRaw), &a.Traits); err != nil {
			return nil, fmt.Errorf("decode traits for agent %d: %w", a.ID, err)
		}
		agents = append(agents, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	postRows, err := database.QueryContext(ctx, `
SELECT id, agent_id, image_url, prompt, created, day
FROM posts ORDER BY id ASC`)
	if err != nil {
		return nil, err
	}
	defer postRows.Close()

	posts := make([]models.Post, 0)
	for postRows.Next() {
		var p models.Post
		if err := postRows.Scan(&p.ID, &p.AgentID, &p.ImageURL, &p.Prompt, &p.Created, &p.Day); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	if err := postRows.Err(); err != nil {
		return nil, err
	}

	return &Snapshot{
		ExportedAt: nowRFC3339(),
		Agents:     agents,
		Posts:      posts,
	}, nil
}

// WriteSnapshot marshals the snapshot to path, yaml or json by extension.
func WriteSnapshot(snap *Snapshot, path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(snap)
	case ".json":
		data, err = json.MarshalIndent(snap, "", "  ")
	default:
		return fmt.Errorf("unsupported snapshot extension %q (want .yaml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// ImportSnapshot loads a snapshot file into the database. Rows that collide
// with existing wallets, mints or posts are skipped, so importing into a
// non-empty gallery is additive.
func ImportSnapshot(ctx context.Context, database *sql.DB, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	var snap Snapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &snap)
	case ".json":
		err = json.Unmarshal(data, &snap)
	default:
		return fmt.Errorf("unsupported snapshot extension %q (want .yaml or .json)", filepath.Ext(path))
	}
	if err != nil {
		return fmt.Errorf("parse snapshot: %w", err)
	}

	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	idMap := make(map[int64]int64, len(snap.Agents))
	for _, a := range snap.Agents {
		traitsJSON, err := json.Marshal(a.Traits)
		if err != nil {
			return fmt.Errorf("marshal traits for wallet %s: %w", a.Wallet, err)
		}
		res, err := tx.ExecContext(ctx, `
INSERT INTO agents (wallet, mint, traits, api_key, last_posted, total_posts, created)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(wallet) DO NOTHING`,
			a.Wallet, a.Mint, string(traitsJSON), a.APIKeyHash, a.LastPosted, a.TotalPosts, a.Created)
		if err != nil {
			return fmt.Errorf("import agent %s: %w", a.Wallet, err)
		}
		if n, _ := res.RowsAffected(); n == 1 {
			newID, err := res.LastInsertId()
			if err != nil {
				return err
			}
			idMap[a.ID] = newID
			continue
		}
		existing, err := GetAgentByWallet(ctx, tx, a.Wallet)
		if err != nil {
			return fmt.Errorf("resolve existing agent %s: %w", a.Wallet, err)
		}
		idMap[a.ID] = existing.ID
	}

	for _, p := range snap.Posts {
		agentID, ok := idMap[p.AgentID]
		if !ok {
			return fmt.Errorf("post %d references unknown agent %d", p.ID, p.AgentID)
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO posts (agent_id, image_url, prompt, created, day)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(agent_id, day) DO NOTHING`,
			agentID, p.ImageURL, p.Prompt, p.Created, p.Day); err != nil {
			return fmt.Errorf("import post %d: %w", p.ID, err)
		}
	}

	return tx.Commit()
}
