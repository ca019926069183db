package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/mock/gomock"

	"bookmark_sync/internal/domain"
)

func (s *SyncServiceTestSuite) TestResumeDue_NothingDue() {
	ctx := context.Background()

	s.attempts.EXPECT().ListResumable(gomock.Any(), s.clock, s.cfg.ResumeBatchSize).Return(nil, nil)

	outcomes, err := s.service.ResumeDue(ctx)

	s.NoError(err)
	s.Empty(outcomes)
}

func (s *SyncServiceTestSuite) TestResumeDue_IsolatesFailures() {
	ctx := context.Background()

	broken := domain.SyncAttempt{
		ID:        "attempt-broken",
		AccountID: "acc-unlinked",
		Mode:      domain.SyncModeInitial,
		Status:    domain.SyncStatusInterrupted,
	}
	due := s.interruptedAttempt(domain.SyncModeInitial, "c1")
	s.ledger = due

	s.attempts.EXPECT().ListResumable(gomock.Any(), s.clock, s.cfg.ResumeBatchSize).
		Return([]domain.SyncAttempt{broken, due}, nil)
	s.credentials.EXPECT().Get(gomock.Any(), "acc-unlinked").Return(nil, nil)

	s.expectCredential()
	s.attempts.EXPECT().Get(gomock.Any(), attemptID).Return(&due, nil)
	s.expectPages(page("", bookmark("3", 2024)))
	s.classifier.EXPECT().PublishBatch(gomock.Any(), accountID, gomock.Len(1)).Return(nil)

	outcomes, err := s.service.ResumeDue(ctx)

	s.Require().NoError(err)
	s.Require().Len(outcomes, 2)

	s.Equal("attempt-broken", outcomes[0].AttemptID)
	s.ErrorIs(outcomes[0].Err, domain.ErrCredentialUnavailable)
	s.Nil(outcomes[0].Result)

	s.Equal(attemptID, outcomes[1].AttemptID)
	s.NoError(outcomes[1].Err)
	s.Require().NotNil(outcomes[1].Result)
	s.Equal(domain.SyncStatusCompleted, outcomes[1].Result.Status)
	s.Equal([]domain.PageRequest{{MaxResults: 80, Cursor: "c1"}}, s.requests)
}

func (s *SyncServiceTestSuite) TestResumeDue_InterruptedAgain() {
	ctx := context.Background()

	due := s.interruptedAttempt(domain.SyncModeIncremental, "c4")
	s.ledger = due
	resetAt := s.clock.Add(15 * time.Minute)

	s.attempts.EXPECT().ListResumable(gomock.Any(), s.clock, s.cfg.ResumeBatchSize).
		Return([]domain.SyncAttempt{due}, nil)
	s.expectCredential()
	s.attempts.EXPECT().Get(gomock.Any(), attemptID).Return(&due, nil)
	s.expectPages(
		page("c5", bookmark("4", 2025)),
		&domain.RateLimited{ResetAt: resetAt},
	)

	outcomes, err := s.service.ResumeDue(ctx)

	s.Require().NoError(err)
	s.Require().Len(outcomes, 1)
	s.Equal(domain.SyncStatusInterrupted, outcomes[0].Result.Status)
	s.Equal("c5", s.ledger.Cursor())
	s.True(resetAt.Equal(*s.ledger.RateLimitResetAt))
}

func (s *SyncServiceTestSuite) TestResumeDue_ListError() {
	ctx := context.Background()
	listErr := errors.New("db down")

	s.attempts.EXPECT().ListResumable(gomock.Any(), s.clock, s.cfg.ResumeBatchSize).Return(nil, listErr)

	outcomes, err := s.service.ResumeDue(ctx)

	s.Nil(outcomes)
	s.ErrorIs(err, listErr)
}
