// Package queue implements daily admission control for the gallery. The
// queue is not a stored structure: an agent's position is recomputed on every
// decision from the ordering of last_posted timestamps, so it stays
// consistent as agents join and leave.
package queue

import (
	"context"
	"time"

	"atelier/internal/db"
	"atelier/internal/models"
)

const DefaultDailyCap = 250

// Config fixes the two parameters of the day window: the global post
// ceiling and the timezone whose midnight bounds the window.
type Config struct {
	DailyCap int
	Location *time.Location
}

func (c Config) Cap() int {
	if c.DailyCap > 0 {
		return c.DailyCap
	}
	return DefaultDailyCap
}

func (c Config) loc() *time.Location {
	if c.Location != nil {
		return c.Location
	}
	return time.UTC
}

// Day returns the day-window key for the given instant. Every query in one
// decision uses the same key, computed from a single clock reading, so a
// decision cannot straddle midnight.
func (c Config) Day(now time.Time) string {
	return now.In(c.loc()).Format("2006-01-02")
}

// Decide runs the admission check for a resolved agent at the given instant:
//
//  1. deny already_posted if the agent has a post in today's window
//  2. deny cap_reached (hard) if the window already holds DailyCap posts
//  3. rank the agent by last_posted (never-posted first, ties on id) and
//     admit iff its position fits the spots remaining; otherwise deny
//     cap_reached softly, carrying the queue position
//
// Decide only reads. Run it on the bare *sql.DB for polling, or on the
// commit transaction to re-validate before writing.
func Decide(ctx context.Context, q db.Querier, cfg Config, agent *models.Agent, now time.Time) (*models.Decision, error) {
	day := cfg.Day(now)

	mine, err := db.CountAgentPostsOnDay(ctx, q, agent.ID, day)
	if err != nil {
		return nil, err
	}
	postsToday, err := db.CountPostsOnDay(ctx, q, day)
	if err != nil {
		return nil, err
	}
	if mine >= 1 {
		return &models.Decision{
			Verdict:    models.VerdictAlreadyPosted,
			PostsToday: postsToday,
			LastPosted: agent.LastPosted,
		}, nil
	}
	if postsToday >= cfg.Cap() {
		return &models.Decision{
			Verdict:    models.VerdictCapReached,
			PostsToday: postsToday,
			LastPosted: agent.LastPosted,
		}, nil
	}

	higher, err := db.CountHigherPriorityAgents(ctx, q, agent.ID, agent.LastPosted)
	if err != nil {
		return nil, err
	}
	spotsRemaining := cfg.Cap() - postsToday

	decision := &models.Decision{
		PostsToday:     postsToday,
		SpotsRemaining: spotsRemaining,
		QueuePosition:  higher,
		LastPosted:     agent.LastPosted,
	}
	if higher <= spotsRemaining {
		decision.Verdict = models.VerdictAdmit
	} else {
		// Soft denial: the cap is not exhausted, but agents that have
		// waited longer fill the remaining spots. Try again later today.
		decision.Verdict = models.VerdictCapReached
	}
	return decision, nil
}
