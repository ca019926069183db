package service

import (
	"context"
	"fmt"

	"bookmark_sync/internal/domain"
)

// ResumeDue re-enters every interrupted attempt whose rate-limit window has
// passed. A failing attempt is reported in its outcome and does not stop the
// others.
func (s *SyncService) ResumeDue(ctx context.Context) ([]domain.ResumeOutcome, error) {
	due, err := s.attempts.ListResumable(ctx, s.now(), s.config.ResumeBatchSize)
	if err != nil {
		return nil, fmt.Errorf("list resumable attempts: %w", err)
	}

	if len(due) == 0 {
		s.logger.Debug("no interrupted attempts due")
		return nil, nil
	}

	s.logger.Info("resuming interrupted attempts", "count", len(due))

	outcomes := make([]domain.ResumeOutcome, 0, len(due))
	for _, attempt := range due {
		if ctx.Err() != nil {
			break
		}

		result, err := s.Sync(ctx, SyncRequest{
			AccountID:  attempt.AccountID,
			CutoffYear: attempt.CutoffYear,
			Resume: &domain.ResumeContext{
				AttemptID: attempt.ID,
				Cursor:    attempt.Cursor(),
				Mode:      attempt.Mode,
			},
		})
		if err != nil {
			s.logger.Error("resume failed",
				"attempt_id", attempt.ID,
				"account_id", attempt.AccountID,
				"error", err,
			)
		}

		outcomes = append(outcomes, domain.ResumeOutcome{
			AttemptID: attempt.ID,
			AccountID: attempt.AccountID,
			Result:    result,
			Err:       err,
		})
	}

	return outcomes, ctx.Err()
}
