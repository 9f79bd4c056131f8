// Package artifact abstracts the image generation provider. The orchestrator
// decides whether a failed production is retried; nothing here retries.
package artifact

import (
	"context"
	"fmt"

	"atelier/internal/models"
)

type Artifact struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt"`
}

type Producer interface {
	Produce(ctx context.Context, traits models.TraitList) (*Artifact, error)
}

// Error classifies a production failure. Transient failures (timeouts,
// provider rate limits, 5xx) are safe to resubmit, since a failed production
// never consumes the agent's admission. Permanent failures (rejected input)
// should not be retried blindly.
type Error struct {
	Transient bool
	Err       error
}

func (e *Error) Error() string {
	kind := "permanent"
	if e.Transient {
		kind = "transient"
	}
	return fmt.Sprintf("production failed (%s): %v", kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
