package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncAttempt_PageFetched(t *testing.T) {
	a := NewSyncAttempt("a1", "acc", SyncModeInitial, nil, time.Now())

	next, delta, err := a.PageFetched(PageOutcome{Seen: 80, Inserted: 75, NextCursor: "c1"}, 0.005)
	require.NoError(t, err)

	assert.Equal(t, 80, next.EntriesSeen)
	assert.Equal(t, 75, next.EntriesInserted)
	assert.Equal(t, 1, next.APICallCount)
	assert.InDelta(t, 0.4, next.EstimatedCost, 1e-9)
	assert.Equal(t, "c1", next.Cursor())
	assert.Equal(t, SyncStatusInProgress, next.Status)

	require.NotNil(t, delta.ResumeCursor)
	assert.Equal(t, "c1", *delta.ResumeCursor)
	assert.Nil(t, delta.Status)
	assert.Equal(t, 1, *delta.APICallCount)

	// the receiver is a value; the original state is untouched
	assert.Equal(t, 0, a.APICallCount)
}

func TestSyncAttempt_PageFetchedKeepsCursorOnLastPage(t *testing.T) {
	a := NewSyncAttempt("a1", "acc", SyncModeInitial, nil, time.Now())
	a, _, err := a.PageFetched(PageOutcome{Seen: 1, Inserted: 1, NextCursor: "c1"}, 0)
	require.NoError(t, err)

	next, delta, err := a.PageFetched(PageOutcome{Seen: 1, Inserted: 1}, 0)
	require.NoError(t, err)

	assert.Equal(t, "c1", next.Cursor())
	assert.Nil(t, delta.ResumeCursor)
	assert.False(t, delta.ClearResumeCursor)
}

func TestSyncAttempt_RateLimitHit(t *testing.T) {
	reset := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	a := NewSyncAttempt("a1", "acc", SyncModeInitial, nil, time.Now())
	a, _, _ = a.PageFetched(PageOutcome{Seen: 5, Inserted: 5, NextCursor: "c1"}, 0)

	next, delta, err := a.RateLimitHit(reset, 2*time.Second)
	require.NoError(t, err)

	assert.Equal(t, SyncStatusInterrupted, next.Status)
	assert.True(t, next.RateLimited)
	assert.Equal(t, 2, next.APICallCount)
	assert.Equal(t, int64(2000), next.DurationMs)
	assert.Equal(t, "c1", next.Cursor())
	require.NotNil(t, next.RateLimitResetAt)
	assert.True(t, reset.Equal(*next.RateLimitResetAt))

	assert.Equal(t, SyncStatusInterrupted, *delta.Status)
	assert.True(t, *delta.RateLimited)
	assert.Nil(t, delta.ResumeCursor)
	assert.False(t, delta.ClearResumeCursor)
}

func TestSyncAttempt_RateLimitHitWithoutReset(t *testing.T) {
	a := NewSyncAttempt("a1", "acc", SyncModeInitial, nil, time.Now())

	next, delta, err := a.RateLimitHit(time.Time{}, 0)
	require.NoError(t, err)

	assert.Nil(t, next.RateLimitResetAt)
	assert.True(t, delta.ClearRateLimitResetAt)
}

func TestSyncAttempt_CompleteClearsResumeData(t *testing.T) {
	a := NewSyncAttempt("a1", "acc", SyncModeIncremental, nil, time.Now())
	a, _, _ = a.PageFetched(PageOutcome{Seen: 1, NextCursor: "c1"}, 0)

	next, delta, err := a.Complete(1500 * time.Millisecond)
	require.NoError(t, err)

	assert.Equal(t, SyncStatusCompleted, next.Status)
	assert.False(t, next.RateLimited)
	assert.Nil(t, next.ResumeCursor)
	assert.Nil(t, next.RateLimitResetAt)
	assert.Equal(t, int64(1500), next.DurationMs)
	assert.True(t, delta.ClearResumeCursor)
	assert.True(t, delta.ClearRateLimitResetAt)
}

func TestSyncAttempt_CallFailedCountsCall(t *testing.T) {
	a := NewSyncAttempt("a1", "acc", SyncModeInitial, nil, time.Now())

	next, delta, err := a.CallFailed(0)
	require.NoError(t, err)

	assert.Equal(t, SyncStatusCompleted, next.Status)
	assert.Equal(t, 1, next.APICallCount)
	require.NotNil(t, delta.APICallCount)
	assert.Equal(t, 1, *delta.APICallCount)
}

func TestSyncAttempt_Resume(t *testing.T) {
	a := NewSyncAttempt("a1", "acc", SyncModeInitial, nil, time.Now())
	a, _, _ = a.PageFetched(PageOutcome{Seen: 3, Inserted: 3, NextCursor: "c9"}, 0)
	a, _, _ = a.RateLimitHit(time.Now().Add(time.Minute), 0)

	next, delta, err := a.Resume()
	require.NoError(t, err)

	assert.Equal(t, SyncStatusInProgress, next.Status)
	assert.False(t, next.RateLimited)
	assert.Nil(t, next.RateLimitResetAt)
	assert.Equal(t, "c9", next.Cursor())
	assert.Equal(t, 3, next.EntriesInserted)
	assert.Equal(t, 2, next.APICallCount)
	assert.True(t, delta.ClearRateLimitResetAt)
	assert.False(t, delta.ClearResumeCursor)
}

func TestSyncAttempt_InvalidTransitions(t *testing.T) {
	inProgress := NewSyncAttempt("a1", "acc", SyncModeInitial, nil, time.Now())
	completed, _, _ := inProgress.Complete(0)
	interrupted, _, _ := inProgress.RateLimitHit(time.Time{}, 0)

	tests := []struct {
		name string
		fn   func() (SyncAttempt, AttemptDelta, error)
	}{
		{"resume in_progress", inProgress.Resume},
		{"resume completed", completed.Resume},
		{"page on completed", func() (SyncAttempt, AttemptDelta, error) {
			return completed.PageFetched(PageOutcome{Seen: 1}, 0)
		}},
		{"page on interrupted", func() (SyncAttempt, AttemptDelta, error) {
			return interrupted.PageFetched(PageOutcome{Seen: 1}, 0)
		}},
		{"rate limit on completed", func() (SyncAttempt, AttemptDelta, error) {
			return completed.RateLimitHit(time.Time{}, 0)
		}},
		{"complete interrupted", func() (SyncAttempt, AttemptDelta, error) {
			return interrupted.Complete(0)
		}},
		{"call failed on completed", func() (SyncAttempt, AttemptDelta, error) {
			return completed.CallFailed(0)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, delta, err := tt.fn()
			assert.True(t, errors.Is(err, ErrInvalidTransition))
			assert.True(t, delta.IsEmpty())
		})
	}
}

func TestRateLimitedError(t *testing.T) {
	reset := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)

	assert.Equal(t, "rate limited until 2025-03-04T05:06:07Z", (&RateLimitedError{ResetAt: reset}).Error())
	assert.Equal(t, "rate limited", (&RateLimitedError{}).Error())
}
