package domain

import "time"

type SyncMode string

const (
	SyncModeInitial     SyncMode = "initial"
	SyncModeIncremental SyncMode = "incremental"
)

type SyncStatus string

const (
	SyncStatusInProgress  SyncStatus = "in_progress"
	SyncStatusCompleted   SyncStatus = "completed"
	SyncStatusInterrupted SyncStatus = "interrupted"
)

// SyncAttempt is one ledger row. Its fields only change through the transition
// methods below, each of which returns the next state together with the
// delta the ledger store has to persist.
type SyncAttempt struct {
	ID               string     `db:"id"`
	AccountID        string     `db:"account_id"`
	Mode             SyncMode   `db:"mode"`
	Status           SyncStatus `db:"status"`
	EntriesSeen      int        `db:"entries_seen"`
	EntriesInserted  int        `db:"entries_inserted"`
	APICallCount     int        `db:"api_call_count"`
	EstimatedCost    float64    `db:"estimated_cost"`
	RateLimited      bool       `db:"rate_limited"`
	CutoffYear       *int       `db:"cutoff_year"`
	ResumeCursor     *string    `db:"resume_cursor"`
	RateLimitResetAt *time.Time `db:"rate_limit_reset_at"`
	DurationMs       int64      `db:"duration_ms"`
	CreatedAt        time.Time  `db:"created_at"`
	UpdatedAt        time.Time  `db:"updated_at"`
}

// NewSyncAttempt returns a fresh in_progress attempt. The caller assigns the ID.
func NewSyncAttempt(id, accountID string, mode SyncMode, cutoffYear *int, now time.Time) SyncAttempt {
	return SyncAttempt{
		ID:         id,
		AccountID:  accountID,
		Mode:       mode,
		Status:     SyncStatusInProgress,
		CutoffYear: cutoffYear,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// AttemptDelta lists the ledger columns a transition changed. Nil pointers are
// left untouched; the Clear flags write NULL.
type AttemptDelta struct {
	Status                *SyncStatus
	EntriesSeen           *int
	EntriesInserted       *int
	APICallCount          *int
	EstimatedCost         *float64
	RateLimited           *bool
	ResumeCursor          *string
	ClearResumeCursor     bool
	RateLimitResetAt      *time.Time
	ClearRateLimitResetAt bool
	DurationMs            *int64
}

// IsEmpty reports whether the delta changes nothing.
func (d AttemptDelta) IsEmpty() bool {
	return d == AttemptDelta{}
}

// PageOutcome summarizes one fetched and persisted page.
type PageOutcome struct {
	Seen       int
	Inserted   int
	NextCursor string
}

// PageFetched records a successful API call and the page it produced.
func (a SyncAttempt) PageFetched(p PageOutcome, unitCost float64) (SyncAttempt, AttemptDelta, error) {
	if a.Status != SyncStatusInProgress {
		return a, AttemptDelta{}, invalidTransition("page_fetched", a.Status)
	}

	a.EntriesSeen += p.Seen
	a.EntriesInserted += p.Inserted
	a.APICallCount++
	a.EstimatedCost = float64(a.EntriesSeen) * unitCost

	d := a.counterDelta()
	if p.NextCursor != "" {
		a.ResumeCursor = ptr(p.NextCursor)
		d.ResumeCursor = ptr(p.NextCursor)
	}
	return a, d, nil
}

// RateLimitHit ends the run as interrupted. The cursor saved by the last
// PageFetched stays in place so a later resume continues from it.
func (a SyncAttempt) RateLimitHit(resetAt time.Time, elapsed time.Duration) (SyncAttempt, AttemptDelta, error) {
	if a.Status != SyncStatusInProgress {
		return a, AttemptDelta{}, invalidTransition("rate_limited", a.Status)
	}

	a.APICallCount++
	a.Status = SyncStatusInterrupted
	a.RateLimited = true
	a.DurationMs += elapsed.Milliseconds()

	d := a.counterDelta()
	d.Status = ptr(a.Status)
	d.RateLimited = ptr(true)
	d.DurationMs = ptr(a.DurationMs)
	if !resetAt.IsZero() {
		a.RateLimitResetAt = ptr(resetAt)
		d.RateLimitResetAt = ptr(resetAt)
	} else {
		a.RateLimitResetAt = nil
		d.ClearRateLimitResetAt = true
	}
	return a, d, nil
}

// CallFailed ends the run as completed after an API call that produced no
// usable page.
func (a SyncAttempt) CallFailed(elapsed time.Duration) (SyncAttempt, AttemptDelta, error) {
	if a.Status != SyncStatusInProgress {
		return a, AttemptDelta{}, invalidTransition("call_failed", a.Status)
	}
	a.APICallCount++
	a, d, err := a.Complete(elapsed)
	d.APICallCount = ptr(a.APICallCount)
	return a, d, err
}

// Complete ends the run as completed: pagination exhausted, duplicate
// boundary reached, or an unexpected failure.
func (a SyncAttempt) Complete(elapsed time.Duration) (SyncAttempt, AttemptDelta, error) {
	if a.Status != SyncStatusInProgress {
		return a, AttemptDelta{}, invalidTransition("complete", a.Status)
	}

	a.Status = SyncStatusCompleted
	a.RateLimited = false
	a.ResumeCursor = nil
	a.RateLimitResetAt = nil
	a.DurationMs += elapsed.Milliseconds()

	return a, AttemptDelta{
		Status:                ptr(a.Status),
		RateLimited:           ptr(false),
		ClearResumeCursor:     true,
		ClearRateLimitResetAt: true,
		DurationMs:            ptr(a.DurationMs),
	}, nil
}

// Resume moves an interrupted attempt back to in_progress. Counters and the
// saved cursor are kept; the cursor is where the resumed run starts.
func (a SyncAttempt) Resume() (SyncAttempt, AttemptDelta, error) {
	if a.Status != SyncStatusInterrupted {
		return a, AttemptDelta{}, invalidTransition("resume", a.Status)
	}

	a.Status = SyncStatusInProgress
	a.RateLimited = false
	a.RateLimitResetAt = nil

	return a, AttemptDelta{
		Status:                ptr(a.Status),
		RateLimited:           ptr(false),
		ClearRateLimitResetAt: true,
	}, nil
}

// Cursor returns the saved pagination cursor or an empty string.
func (a SyncAttempt) Cursor() string {
	if a.ResumeCursor == nil {
		return ""
	}
	return *a.ResumeCursor
}

func (a SyncAttempt) counterDelta() AttemptDelta {
	return AttemptDelta{
		EntriesSeen:     ptr(a.EntriesSeen),
		EntriesInserted: ptr(a.EntriesInserted),
		APICallCount:    ptr(a.APICallCount),
		EstimatedCost:   ptr(a.EstimatedCost),
	}
}

// ResumeContext is supplied when re-entering an interrupted attempt.
type ResumeContext struct {
	AttemptID string
	Cursor    string
	Mode      SyncMode
}

// SyncResult summarizes one run of the sync engine. Counters cover this run
// only; the ledger row keeps the totals across resumes.
type SyncResult struct {
	AttemptID        string
	Mode             SyncMode
	Status           SyncStatus
	EntriesInserted  int
	EntriesSeen      int
	APICallCount     int
	Duration         time.Duration
	RateLimitResetAt *time.Time
	ResumeCursor     *string
	NewRecords       []ContentRecord
}

// ResumeOutcome reports what happened to one interrupted attempt during a
// resume pass.
type ResumeOutcome struct {
	AttemptID string
	AccountID string
	Result    *SyncResult
	Err       error
}

func ptr[T any](v T) *T {
	return &v
}
