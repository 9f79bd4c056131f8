// Package grant runs the decide-produce-commit protocol that turns an
// admission into exactly one persisted post. It is the only write path for
// posts and for the agents' last_posted/total_posts columns.
package grant

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"atelier/internal/artifact"
	"atelier/internal/auth"
	"atelier/internal/db"
	"atelier/internal/models"
	"atelier/internal/queue"
)

// A commit conflict means another submission changed the window between our
// decision and our write; re-deciding usually resolves to a clean denial, so
// a couple of retries is plenty.
const maxCommitAttempts = 3

type Orchestrator struct {
	DB       *sql.DB
	Producer artifact.Producer
	Queue    queue.Config

	// Now is the canonical clock; tests pin it. Nil means time.Now.
	Now func() time.Time
}

type Result struct {
	Post     *models.Post     `json:"post"`
	Decision *models.Decision `json:"decision"`
}

func (o *Orchestrator) now() time.Time {
	if o.Now != nil {
		return o.Now()
	}
	return time.Now()
}

// CheckAdmission is the read-only admission probe. Safe to poll: it never
// writes, and repeated calls do not change agent or post state.
func (o *Orchestrator) CheckAdmission(ctx context.Context, agentID int64) (*models.Decision, error) {
	agent, err := db.GetAgent(ctx, o.DB, agentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &models.Decision{Verdict: models.VerdictUnknownAgent}, nil
		}
		return nil, fmt.Errorf("%w: resolve agent: %v", ErrStorageUnavailable, err)
	}
	decision, err := queue.Decide(ctx, o.DB, o.Queue, agent, o.now())
	if err != nil {
		return nil, fmt.Errorf("%w: admission check: %v", ErrStorageUnavailable, err)
	}
	return decision, nil
}

// Submit resolves the credential and runs the grant protocol for the agent.
// traits override the agent's stored traits when non-empty.
func (o *Orchestrator) Submit(ctx context.Context, credential string, traits models.TraitList) (*Result, error) {
	agent, err := db.GetAgentByAPIKeyHash(ctx, o.DB, auth.HashAPIKey(credential))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUnknownCredential
		}
		return nil, fmt.Errorf("%w: resolve credential: %v", ErrStorageUnavailable, err)
	}
	return o.SubmitAgent(ctx, agent, traits)
}

// SubmitAgent runs the grant protocol for an already-resolved agent:
//
//	decide -> produce -> re-validate and commit
//
// A denial or a production failure terminates with no state change, so the
// agent keeps its daily slot and may resubmit. The commit transaction holds
// the sqlite write lock while it re-checks the throttle and the cap and then
// performs the post insert and the agent advance, making the whole sequence
// atomic against concurrent submissions. On a commit conflict the protocol
// restarts from the decision, which converts lost races into clean denials.
func (o *Orchestrator) SubmitAgent(ctx context.Context, agent *models.Agent, traits models.TraitList) (*Result, error) {
	if len(traits) == 0 {
		traits = agent.Traits
	}

	for attempt := 0; attempt < maxCommitAttempts; attempt++ {
		decision, err := queue.Decide(ctx, o.DB, o.Queue, agent, o.now())
		if err != nil {
			return nil, fmt.Errorf("%w: admission check: %v", ErrStorageUnavailable, err)
		}
		if !decision.Admitted() {
			return nil, &DeniedError{Decision: decision}
		}

		art, err := o.Producer.Produce(ctx, traits)
		if err != nil {
			return nil, fmt.Errorf("produce artifact: %w", err)
		}

		post, err := o.commit(ctx, agent, art)
		if err != nil {
			if errors.Is(err, ErrCommitConflict) {
				continue
			}
			return nil, err
		}
		return &Result{Post: post, Decision: decision}, nil
	}
	return nil, ErrCommitConflict
}

// commit re-validates the window invariants under the write lock and lands
// the post and the agent advance as one transaction. Cancellation is not
// honored past BeginTx: the transaction either commits or rolls back whole.
func (o *Orchestrator) commit(ctx context.Context, agent *models.Agent, art *artifact.Artifact) (*models.Post, error) {
	now := o.now()
	day := o.Queue.Day(now)

	tx, err := o.DB.BeginTx(ctx, nil)
	if err != nil {
		if db.IsBusy(err) {
			return nil, ErrCommitConflict
		}
		return nil, fmt.Errorf("%w: begin commit: %v", ErrStorageUnavailable, err)
	}
	defer tx.Rollback()

	mine, err := db.CountAgentPostsOnDay(ctx, tx, agent.ID, day)
	if err != nil {
		return nil, fmt.Errorf("%w: re-validate throttle: %v", ErrStorageUnavailable, err)
	}
	if mine >= 1 {
		return nil, ErrCommitConflict
	}
	total, err := db.CountPostsOnDay(ctx, tx, day)
	if err != nil {
		return nil, fmt.Errorf("%w: re-validate cap: %v", ErrStorageUnavailable, err)
	}
	if total >= o.Queue.Cap() {
		return nil, ErrCommitConflict
	}

	created := now.UTC().Format(time.RFC3339)
	post, err := db.CreatePostTx(ctx, tx, agent.ID, art.URL, art.Prompt, created, day)
	if err != nil {
		if db.IsUniqueConstraint(err) || db.IsBusy(err) {
			return nil, ErrCommitConflict
		}
		return nil, fmt.Errorf("%w: insert post: %v", ErrStorageUnavailable, err)
	}
	if err := db.AdvanceAgentTx(ctx, tx, agent.ID, created); err != nil {
		return nil, fmt.Errorf("%w: advance agent: %v", ErrStorageUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		if db.IsBusy(err) {
			return nil, ErrCommitConflict
		}
		return nil, fmt.Errorf("%w: commit: %v", ErrStorageUnavailable, err)
	}
	return post, nil
}
