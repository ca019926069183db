package scheduler

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookmark_sync/internal/domain"
)

type countingResumer struct {
	calls    atomic.Int32
	deadline atomic.Bool
	err      error
}

func (r *countingResumer) ResumeDue(ctx context.Context) ([]domain.ResumeOutcome, error) {
	r.calls.Add(1)
	if _, ok := ctx.Deadline(); ok {
		r.deadline.Store(true)
	}
	return []domain.ResumeOutcome{
		{AttemptID: "a1", Result: &domain.SyncResult{Status: domain.SyncStatusInterrupted}},
		{AttemptID: "a2", Err: errors.New("boom")},
	}, r.err
}

func TestScheduler_RunsImmediatelyAndOnTick(t *testing.T) {
	resumer := &countingResumer{}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewScheduler(resumer, 20*time.Millisecond, time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()

	require.Eventually(t, func() bool { return resumer.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.True(t, resumer.deadline.Load())
}

func TestScheduler_KeepsRunningAfterError(t *testing.T) {
	resumer := &countingResumer{err: errors.New("db down")}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	s := NewScheduler(resumer, 10*time.Millisecond, time.Second, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Start(ctx) }()

	assert.Eventually(t, func() bool { return resumer.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
}
