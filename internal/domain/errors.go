package domain

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrSyncAlreadyRunning is returned when the account already has an
	// in_progress attempt.
	ErrSyncAlreadyRunning = errors.New("sync already running")

	// ErrCredentialUnavailable is returned when the account has no linked, unexpired credential.
	ErrCredentialUnavailable = errors.New("credential unavailable")

	ErrAttemptNotFound   = errors.New("sync attempt not found")
	ErrInvalidTransition = errors.New("invalid sync attempt transition")

	// ErrAttemptConflict is returned by the ledger when a guarded update
	// matched no row because the attempt left the expected status.
	ErrAttemptConflict = errors.New("sync attempt status changed concurrently")
)

// RateLimitedError is surfaced to callers when the remote API throttles the
// very first page of a fresh attempt. ResetAt is zero when the provider did
// not say when the window ends.
type RateLimitedError struct {
	ResetAt time.Time
}

func (e *RateLimitedError) Error() string {
	if e.ResetAt.IsZero() {
		return "rate limited"
	}
	return fmt.Sprintf("rate limited until %s", e.ResetAt.UTC().Format(time.RFC3339))
}

func invalidTransition(event string, from SyncStatus) error {
	return fmt.Errorf("%w: %s from %s", ErrInvalidTransition, event, from)
}
