package models

// Verdict tags the outcome of an admission check.
type Verdict string

const (
	VerdictAdmit         Verdict = "admit"
	VerdictCapReached    Verdict = "cap_reached"
	VerdictAlreadyPosted Verdict = "already_posted"
	VerdictUnknownAgent  Verdict = "unknown_agent"
)

// Decision is the result of one admission check. QueuePosition counts the
// other agents that outrank this one (0 = front of the queue); a cap_reached
// verdict with SpotsRemaining > 0 is a soft denial, the agent is queued
// behind agents who have waited longer and may retry later today.
type Decision struct {
	Verdict        Verdict `json:"verdict"`
	PostsToday     int     `json:"posts_today"`
	SpotsRemaining int     `json:"spots_remaining"`
	QueuePosition  int     `json:"queue_position"`
	LastPosted     *string `json:"last_posted,omitempty"`
}

func (d Decision) Admitted() bool { return d.Verdict == VerdictAdmit }
