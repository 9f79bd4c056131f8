package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"atelier/internal/models"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := Open(filepath.Join(t.TempDir(), "db-test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

func testTraits() models.TraitList {
	return models.TraitList{
		{TraitType: "Background", Value: "nebula"},
		{TraitType: "Type", Value: "dragon"},
		{TraitType: "Rarity", Value: 42},
	}
}

func TestApplyMigrationsIsIdempotent(t *testing.T) {
	database := openTestDB(t)
	if err := ApplyMigrations(database); err != nil {
		t.Fatalf("second migration run: %v", err)
	}

	var versions int
	if err := database.QueryRow(`SELECT COUNT(1) FROM schema_version`).Scan(&versions); err != nil {
		t.Fatalf("count versions: %v", err)
	}
	if versions != len(migrations) {
		t.Fatalf("schema_version rows = %d, want %d", versions, len(migrations))
	}
}

func TestCreateAndGetAgent(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	created, err := CreateAgent(ctx, database, "wallet-a", "mint-a", testTraits(), "hash-a")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	for name, fetch := range map[string]func() (*models.Agent, error){
		"by id":     func() (*models.Agent, error) { return GetAgent(ctx, database, created.ID) },
		"by wallet": func() (*models.Agent, error) { return GetAgentByWallet(ctx, database, "wallet-a") },
		"by key":    func() (*models.Agent, error) { return GetAgentByAPIKeyHash(ctx, database, "hash-a") },
	} {
		agent, err := fetch()
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if agent.ID != created.ID || agent.Wallet != "wallet-a" || agent.Mint != "mint-a" {
			t.Fatalf("%s: got %+v", name, agent)
		}
		if agent.LastPosted != nil || agent.TotalPosts != 0 {
			t.Fatalf("%s: fresh agent has posting state: %+v", name, agent)
		}
		if got := agent.Traits.Get("Type"); got != "dragon" {
			t.Fatalf("%s: trait Type = %q, want dragon", name, got)
		}
		if got := agent.Traits.Get("Rarity"); got != "42" {
			t.Fatalf("%s: trait Rarity = %q, want 42", name, got)
		}
	}

	if _, err := GetAgent(ctx, database, created.ID+100); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("missing agent err = %v, want sql.ErrNoRows", err)
	}
}

func TestCreateAgentDuplicateWallet(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	if _, err := CreateAgent(ctx, database, "wallet-a", "mint-a", nil, "hash-a"); err != nil {
		t.Fatalf("create agent: %v", err)
	}
	_, err := CreateAgent(ctx, database, "wallet-a", "mint-b", nil, "hash-b")
	if err == nil {
		t.Fatal("duplicate wallet accepted")
	}
	if !IsUniqueConstraint(err) {
		t.Fatalf("IsUniqueConstraint(%v) = false", err)
	}
}

func TestPostsUniquePerAgentPerDay(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	agent, err := CreateAgent(ctx, database, "wallet-a", "mint-a", nil, "hash-a")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	insert := func() error {
		tx, err := database.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := CreatePostTx(ctx, tx, agent.ID, "https://img.test/a.png", "prompt",
			"2026-09-01T12:00:00Z", "2026-09-01"); err != nil {
			return err
		}
		return tx.Commit()
	}

	if err := insert(); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	err = insert()
	if err == nil {
		t.Fatal("second post on the same day accepted")
	}
	if !IsUniqueConstraint(err) {
		t.Fatalf("IsUniqueConstraint(%v) = false", err)
	}
}

func TestAdvanceAgentTx(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	agent, err := CreateAgent(ctx, database, "wallet-a", "mint-a", nil, "hash-a")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}

	posted := "2026-09-01T12:00:00Z"
	tx, err := database.BeginTx(ctx, nil)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := AdvanceAgentTx(ctx, tx, agent.ID, posted); err != nil {
		t.Fatalf("advance: %v", err)
	}
	if err := AdvanceAgentTx(ctx, tx, agent.ID+100, posted); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("advance missing agent err = %v, want sql.ErrNoRows", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	got, err := GetAgent(ctx, database, agent.ID)
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if got.LastPosted == nil || *got.LastPosted != posted {
		t.Fatalf("last_posted = %v, want %s", got.LastPosted, posted)
	}
	if got.TotalPosts != 1 {
		t.Fatalf("total_posts = %d, want 1", got.TotalPosts)
	}
}

func TestCountHigherPriorityAgents(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	never, err := CreateAgent(ctx, database, "wallet-never", "mint-never", nil, "hash-never")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	old := createAgentPostedAt(t, database, "wallet-old", "2026-08-20T08:00:00Z")
	recent := createAgentPostedAt(t, database, "wallet-recent", "2026-08-31T08:00:00Z")

	cases := []struct {
		name  string
		agent *models.Agent
		want  int
	}{
		{"never posted ranks first", never, 0},
		{"old poster behind the null", old, 1},
		{"recent poster last", recent, 2},
	}
	for _, tc := range cases {
		got, err := CountHigherPriorityAgents(ctx, database, tc.agent.ID, tc.agent.LastPosted)
		if err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: count = %d, want %d", tc.name, got, tc.want)
		}
	}
}

func TestFeedOrderingAndAgentJoin(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	agentA, err := CreateAgent(ctx, database, "wallet-a", "mint-a", testTraits(), "hash-a")
	if err != nil {
		t.Fatalf("create agent a: %v", err)
	}
	agentB, err := CreateAgent(ctx, database, "wallet-b", "mint-b", nil, "hash-b")
	if err != nil {
		t.Fatalf("create agent b: %v", err)
	}

	base := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	seedPost(t, database, agentA.ID, base, "2026-09-01")
	seedPost(t, database, agentB.ID, base.Add(time.Hour), "2026-09-01")

	posts, err := ListRecentPosts(ctx, database, 10)
	if err != nil {
		t.Fatalf("list recent: %v", err)
	}
	if len(posts) != 2 {
		t.Fatalf("got %d posts, want 2", len(posts))
	}
	if posts[0].AgentID != agentB.ID {
		t.Fatalf("newest post first: got agent %d, want %d", posts[0].AgentID, agentB.ID)
	}
	if posts[0].Wallet != "wallet-b" || posts[1].Wallet != "wallet-a" {
		t.Fatalf("wallet join wrong: %q / %q", posts[0].Wallet, posts[1].Wallet)
	}
	if got := posts[1].Traits.Get("Background"); got != "nebula" {
		t.Fatalf("traits join wrong: Background = %q", got)
	}

	limited, err := ListRecentPosts(ctx, database, 1)
	if err != nil {
		t.Fatalf("list limited: %v", err)
	}
	if len(limited) != 1 || limited[0].AgentID != agentB.ID {
		t.Fatalf("limit 1: got %+v", limited)
	}

	byAgent, err := ListPostsByAgent(ctx, database, agentA.ID)
	if err != nil {
		t.Fatalf("list by agent: %v", err)
	}
	if len(byAgent) != 1 || byAgent[0].AgentID != agentA.ID {
		t.Fatalf("by agent: got %+v", byAgent)
	}
}

func TestWebhookLifecycle(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	hook, err := CreateWebhook(ctx, database, "https://hooks.test/a",
		[]string{"post.created", "post.created", ""}, "shh")
	if err != nil {
		t.Fatalf("create webhook: %v", err)
	}
	if len(hook.Events) != 1 || hook.Events[0] != "post.created" {
		t.Fatalf("events not deduped: %v", hook.Events)
	}

	if _, err := CreateWebhook(ctx, database, "https://hooks.test/b", nil, ""); err == nil {
		t.Fatal("webhook without events accepted")
	}

	hooks, err := ListWebhooks(ctx, database, true)
	if err != nil {
		t.Fatalf("list webhooks: %v", err)
	}
	if len(hooks) != 1 || hooks[0].ID != hook.ID || hooks[0].Secret != "shh" || !hooks[0].Active {
		t.Fatalf("listed: %+v", hooks)
	}

	if err := DeleteWebhook(ctx, database, hook.ID); err != nil {
		t.Fatalf("delete webhook: %v", err)
	}
	if err := DeleteWebhook(ctx, database, hook.ID); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("double delete err = %v, want sql.ErrNoRows", err)
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	database := openTestDB(t)
	ctx := context.Background()

	agent, err := CreateAgent(ctx, database, "wallet-a", "mint-a", testTraits(), "hash-a")
	if err != nil {
		t.Fatalf("create agent: %v", err)
	}
	seedPost(t, database, agent.ID, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC), "2026-09-01")

	snap, err := ExportSnapshot(ctx, database)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if len(snap.Agents) != 1 || len(snap.Posts) != 1 {
		t.Fatalf("snapshot sizes: %d agents, %d posts", len(snap.Agents), len(snap.Posts))
	}
	if snap.Agents[0].APIKeyHash != "hash-a" {
		t.Fatalf("api key hash lost: %q", snap.Agents[0].APIKeyHash)
	}

	path := filepath.Join(t.TempDir(), "snapshot.yaml")
	if err := WriteSnapshot(snap, path); err != nil {
		t.Fatalf("write snapshot: %v", err)
	}

	restored := openTestDB(t)
	if err := ImportSnapshot(ctx, restored, path); err != nil {
		t.Fatalf("import: %v", err)
	}

	got, err := GetAgentByAPIKeyHash(ctx, restored, "hash-a")
	if err != nil {
		t.Fatalf("restored agent lookup by key: %v", err)
	}
	if got.Wallet != "wallet-a" {
		t.Fatalf("restored wallet = %q", got.Wallet)
	}
	posts, err := ListPostsByAgent(ctx, restored, got.ID)
	if err != nil {
		t.Fatalf("restored posts: %v", err)
	}
	if len(posts) != 1 || posts[0].ImageURL != "https://img.test/a.png" {
		t.Fatalf("restored posts: %+v", posts)
	}

	// Importing twice is additive, not duplicating.
	if err := ImportSnapshot(ctx, restored, path); err != nil {
		t.Fatalf("second import: %v", err)
	}
	posts, err = ListPostsByAgent(ctx, restored, got.ID)
	if err != nil {
		t.Fatalf("posts after reimport: %v", err)
	}
	if len(posts) != 1 {
		t.Fatalf("reimport duplicated posts: %d", len(posts))
	}
}

func TestWriteSnapshotRejectsUnknownExtension(t *testing.T) {
	snap := &Snapshot{ExportedAt: "2026-09-01T00:00:00Z"}
	if err := WriteSnapshot(snap, filepath.Join(t.TempDir(), "snapshot.csv")); err == nil {
		t.Fatal("csv snapshot accepted")
	}
}

func createAgentPostedAt(t *testing.T, database *sql.DB, wallet, posted string) *models.Agent {
	t.Helper()
	agent, err := CreateAgent(context.Background(), database, wallet, "mint-"+wallet, nil, "hash-"+wallet)
	if err != nil {
		t.Fatalf("create agent %s: %v", wallet, err)
	}
	if _, err := database.Exec(`UPDATE agents SET last_posted = ? WHERE id = ?`, posted, agent.ID); err != nil {
		t.Fatalf("set last_posted: %v", err)
	}
	agent.LastPosted = &posted
	return agent
}

func seedPost(t *testing.T, database *sql.DB, agentID int64, created time.Time, day string) {
	t.Helper()
	if _, err := database.Exec(`
INSERT INTO posts (agent_id, image_url, prompt, created, day)
VALUES (?, 'https://img.test/a.png', 'prompt', ?, ?)`,
		agentID, created.UTC().Format(time.RFC3339), day); err != nil {
		t.Fatalf("seed post: %v", err)
	}
}
