package grant

import (
	"errors"
	"fmt"

	"atelier/internal/models"
)

var (
	// ErrUnknownCredential means the API key resolved to no agent. Not
	// retryable without a new credential.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrCommitConflict means the commit-time re-validation or the posts
	// uniqueness index rejected the write. Retryable: a fresh submission
	// re-evaluates admission from scratch.
	ErrCommitConflict = errors.New("commit conflict")

	// ErrStorageUnavailable means a storage operation failed outright.
	// Retryable; no partial write occurred.
	ErrStorageUnavailable = errors.New("storage unavailable")
)

// DeniedError carries the full decision so callers can tell a hard cap
// denial from a soft queue-position denial or a per-agent throttle.
type DeniedError struct {
	Decision *models.Decision
}

func (e *DeniedError) Error() string {
	return fmt.Sprintf("admission denied: %s (position %d, %d spots remaining)",
		e.Decision.Verdict, e.Decision.QueuePosition, e.Decision.SpotsRemaining)
}
