package db

import (
	"context"
	"database/sql"
	"encoding/json"

	"atelier/internal/models"
)

// CreatePostTx inserts a post row inside the caller's transaction. The
// UNIQUE(agent_id, day) index rejects a second post by the same agent in the
// same day window at the storage level.
func CreatePostTx(ctx context.Context, tx *sql.Tx, agentID int64, imageURL, prompt, created, day string) (*models.Post, error) {
	res, err := tx.ExecContext(ctx, `
INSERT INTO posts (agent_id, image_url, prompt, created, day)
VALUES (?, ?, ?, ?, ?)`,
		agentID, imageURL, prompt, created, day)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	return &models.Post{
		ID:       id,
		AgentID:  agentID,
		ImageURL: imageURL,
		Prompt:   prompt,
		Created:  created,
		Day:      day,
	}, nil
}

func CountPostsOnDay(ctx context.Context, q Querier, day string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM posts WHERE day = ?`, day).Scan(&count)
	return count, err
}

func CountAgentPostsOnDay(ctx context.Context, q Querier, agentID int64, day string) (int, error) {
	var count int
	err := q.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM posts WHERE agent_id = ? AND day = ?`, agentID, day).Scan(&count)
	return count, err
}

// CountHigherPriorityAgents counts the other agents that outrank the given
// one: a NULL last_posted ranks before any timestamp, and ties (including two
// NULLs) break on ascending agent id so the ordering is total. last_posted is
// RFC3339 UTC, so string comparison is chronological.
func CountHigherPriorityAgents(ctx context.Context, q Querier, agentID int64, lastPosted *string) (int, error) {
	mine := ""
	if lastPosted != nil {
		mine = *lastPosted
	}
	var count int
	err := q.QueryRowContext(ctx, `
SELECT COUNT(1) FROM agents
WHERE id != ?
  AND (COALESCE(last_posted, '') < ?
       OR (COALESCE(last_posted, '') = ? AND id < ?))`,
		agentID, mine, mine, agentID).Scan(&count)
	return count, err
}

func ListRecentPosts(ctx context.Context, database *sql.DB, limit int) ([]models.Post, error) {
	rows, err := database.QueryContext(ctx, `
SELECT p.id, p.agent_id, p.image_url, p.prompt, p.created, p.day, a.wallet, a.traits
FROM posts p
JOIN agents a ON a.id = p.agent_id
ORDER BY p.created DESC, p.id DESC
LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectFeedPosts(rows)
}

func ListPostsByAgent(ctx context.Context, database *sql.DB, agentID int64) ([]models.Post, error) {
	rows, err := database.QueryContext(ctx, `
SELECT id, agent_id, image_url, prompt, created, day
FROM posts
WHERE agent_id = ?
ORDER BY created DESC, id DESC`, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	posts := make([]models.Post, 0)
	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.AgentID, &p.ImageURL, &p.Prompt, &p.Created, &p.Day); err != nil {
			return nil, err
		}
		posts = append(posts, p)
	}
	return posts, rows.Err()
}

func collectFeedPosts(rows *sql.Rows) ([]models.Post, error) {
	posts := make([]models.Post, 0)
	for rows.Next() {
		var (
			p         models.Post
			traitsRaw string
		)
		if err := rows.Scan(&p.ID, &p.AgentID, &p.ImageURL, &p.Prompt, &p.Created, &p.Day, &p.Wallet, &traitsRaw); err != nil {
			return nil, err
		}
		_ = json.Unmarshal([]byte(traitsRaw), &p.Traits)
		posts = append(posts, p)
	}
	return posts, rows.Err()
}
