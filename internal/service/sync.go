package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bookmark_sync/internal/config"
	"bookmark_sync/internal/domain"
	"bookmark_sync/internal/metrics"
)

type SyncService struct {
	fetcher     Fetcher
	contents    ContentStore
	attempts    SyncAttemptStore
	credentials CredentialProvider
	txManager   TransactionManager
	classifier  Classifier
	logger      *slog.Logger
	config      config.SyncConfig
	now         func() time.Time
	newID       func() string
}

func NewSyncService(
	fetcher Fetcher,
	contents ContentStore,
	attempts SyncAttemptStore,
	credentials CredentialProvider,
	txManager TransactionManager,
	classifier Classifier,
	logger *slog.Logger,
	cfg config.SyncConfig,
) *SyncService {
	return &SyncService{
		fetcher:     fetcher,
		contents:    contents,
		attempts:    attempts,
		credentials: credentials,
		txManager:   txManager,
		classifier:  classifier,
		logger:      logger.With("source", domain.ContentSourceXBookmark),
		config:      cfg,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// SyncRequest starts a fresh sync when Resume is nil and re-enters an
// interrupted attempt otherwise.
type SyncRequest struct {
	AccountID  string
	CutoffYear *int
	Resume     *domain.ResumeContext
}

// Sync runs one sync for the account until the remote bookmarks are
// exhausted, the already-synced boundary is reached or the API rate-limits
// the client. A rate limit after progress was made is not an error: the
// result carries status interrupted and the attempt is resumed later.
// ctx bounds the setup; the fetch loop itself is not cancelled by it.
func (s *SyncService) Sync(ctx context.Context, req SyncRequest) (*domain.SyncResult, error) {
	logger := s.logger.With("account_id", req.AccountID)

	cred, err := s.credentials.Get(ctx, req.AccountID)
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	if cred == nil {
		return nil, domain.ErrCredentialUnavailable
	}

	var (
		attempt domain.SyncAttempt
		cursor  string
	)
	if req.Resume != nil {
		attempt, cursor, err = s.resumeAttempt(ctx, req.AccountID, *req.Resume)
	} else {
		attempt, err = s.createAttempt(ctx, req)
	}
	if err != nil {
		if errors.Is(err, domain.ErrSyncAlreadyRunning) {
			logger.Info("sync already running")
		}
		return nil, err
	}

	r := &run{
		svc:      s,
		attempt:  attempt,
		start:    attempt,
		cred:     *cred,
		cursor:   cursor,
		resuming: req.Resume != nil,
		started:  s.now(),
		logger:   logger.With("attempt_id", attempt.ID, "mode", attempt.Mode),
	}

	r.logger.Info("starting sync", "resuming", r.resuming, "cursor", cursor)

	// Once claimed, the attempt runs to a ledger outcome. Cancelling the
	// caller would otherwise end a backfill as completed with its cursor lost.
	// Each remote call stays bounded by the client timeout.
	return r.execute(context.WithoutCancel(ctx))
}

// createAttempt checks for a running attempt, picks the mode and inserts the
// new ledger row in one transaction. The partial unique index on
// sync_attempts catches a concurrent insert that slips past the check.
func (s *SyncService) createAttempt(ctx context.Context, req SyncRequest) (domain.SyncAttempt, error) {
	var attempt domain.SyncAttempt

	err := s.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		running, err := s.attempts.FindInProgress(txCtx, req.AccountID)
		if err != nil {
			return fmt.Errorf("check running sync: %w", err)
		}
		if running != nil {
			return domain.ErrSyncAlreadyRunning
		}

		mode, err := s.selectMode(txCtx, req.AccountID)
		if err != nil {
			return err
		}

		attempt = domain.NewSyncAttempt(s.newID(), req.AccountID, mode, req.CutoffYear, s.now())
		if err := s.attempts.Create(txCtx, &attempt); err != nil {
			if errors.Is(err, domain.ErrSyncAlreadyRunning) {
				return err
			}
			return fmt.Errorf("create sync attempt: %w", err)
		}
		return nil
	})

	return attempt, err
}

func (s *SyncService) selectMode(ctx context.Context, accountID string) (domain.SyncMode, error) {
	count, err := s.contents.CountBySource(ctx, accountID, domain.ContentSourceXBookmark)
	if err != nil {
		return "", fmt.Errorf("count synced content: %w", err)
	}
	if count == 0 {
		return domain.SyncModeInitial, nil
	}
	return domain.SyncModeIncremental, nil
}

// resumeAttempt claims an interrupted attempt. Losing the claim to another
// resumer, or finding another running attempt for the account, is reported
// as ErrSyncAlreadyRunning.
func (s *SyncService) resumeAttempt(ctx context.Context, accountID string, rc domain.ResumeContext) (domain.SyncAttempt, string, error) {
	stored, err := s.attempts.Get(ctx, rc.AttemptID)
	if err != nil {
		return domain.SyncAttempt{}, "", fmt.Errorf("get sync attempt: %w", err)
	}
	if stored.AccountID != accountID {
		return domain.SyncAttempt{}, "", fmt.Errorf("sync attempt %s belongs to another account", rc.AttemptID)
	}
	if rc.Mode != "" && rc.Mode != stored.Mode {
		s.logger.Warn("resume mode differs from ledger, keeping ledger mode",
			"attempt_id", stored.ID,
			"requested", rc.Mode,
			"stored", stored.Mode,
		)
	}

	next, delta, err := stored.Resume()
	if err != nil {
		if stored.Status == domain.SyncStatusInProgress {
			return domain.SyncAttempt{}, "", domain.ErrSyncAlreadyRunning
		}
		return domain.SyncAttempt{}, "", err
	}

	if err := s.attempts.Apply(ctx, stored.ID, stored.Status, delta); err != nil {
		if errors.Is(err, domain.ErrAttemptConflict) || errors.Is(err, domain.ErrSyncAlreadyRunning) {
			return domain.SyncAttempt{}, "", domain.ErrSyncAlreadyRunning
		}
		return domain.SyncAttempt{}, "", fmt.Errorf("claim sync attempt: %w", err)
	}

	cursor := rc.Cursor
	if cursor == "" {
		cursor = next.Cursor()
	}
	return next, cursor, nil
}

// handOff passes newly inserted records to the classifier. Its outcome is
// logged and never changes the sync result.
func (s *SyncService) handOff(ctx context.Context, accountID string, records []domain.ContentRecord) {
	if s.classifier == nil || len(records) == 0 {
		return
	}

	if err := s.classifier.PublishBatch(ctx, accountID, domain.NewClassificationItems(records)); err != nil {
		metrics.ClassificationHandoffs.WithLabelValues("error").Inc()
		s.logger.Error("classification hand-off failed",
			"account_id", accountID,
			"records", len(records),
			"error", err,
		)
		return
	}
	metrics.ClassificationHandoffs.WithLabelValues("ok").Inc()
}

type transition func(domain.SyncAttempt) (domain.SyncAttempt, domain.AttemptDelta, error)

// run is the state of one sequential pass through the fetch, persist and
// ledger-update loop.
type run struct {
	svc      *SyncService
	attempt  domain.SyncAttempt
	start    domain.SyncAttempt
	cred     domain.Credential
	cursor   string
	resuming bool
	started  time.Time
	inserted []domain.ContentRecord
	logger   *slog.Logger
}

func (r *run) execute(ctx context.Context) (*domain.SyncResult, error) {
	var err error
	switch r.attempt.Mode {
	case domain.SyncModeInitial:
		err = r.initialLoop(ctx)
	case domain.SyncModeIncremental:
		err = r.incrementalLoop(ctx)
	default:
		err = fmt.Errorf("unknown sync mode %q", r.attempt.Mode)
	}

	if err != nil {
		r.finalize(ctx)
		metrics.SyncRuns.WithLabelValues(string(r.attempt.Mode), "failed").Inc()

		var rateLimited *domain.RateLimitedError
		if errors.As(err, &rateLimited) {
			r.logger.Warn("rate limited on first page", "reset_at", rateLimited.ResetAt)
			return nil, err
		}
		r.logger.Error("sync failed", "inserted", len(r.inserted), "error", err)
		return nil, fmt.Errorf("sync bookmarks: %w", err)
	}

	result := r.result()
	metrics.SyncRuns.WithLabelValues(string(result.Mode), string(result.Status)).Inc()

	r.logger.Info("sync finished",
		"status", result.Status,
		"inserted", result.EntriesInserted,
		"seen", result.EntriesSeen,
		"api_calls", result.APICallCount,
		"duration", result.Duration,
	)

	if result.Status == domain.SyncStatusCompleted {
		r.svc.handOff(ctx, r.attempt.AccountID, r.inserted)
	}

	return result, nil
}

// initialLoop walks every page with the large page size, persisting each page
// before asking for the next one.
func (r *run) initialLoop(ctx context.Context) error {
	for {
		page, interrupted, err := r.fetch(ctx, r.svc.config.InitialPageSize)
		if err != nil || interrupted {
			return err
		}

		if _, err := r.recordPage(ctx, page); err != nil {
			return err
		}

		if page.ResultCount == 0 || page.NextCursor == "" {
			return r.complete(ctx)
		}
	}
}

// incrementalLoop probes with a single entry first; if that entry is already
// stored nothing new was bookmarked. Otherwise it pages until it reaches
// content synced by an earlier run.
func (r *run) incrementalLoop(ctx context.Context) error {
	if !r.resuming {
		page, interrupted, err := r.fetch(ctx, 1)
		if err != nil || interrupted {
			return err
		}

		duplicate, err := r.recordPage(ctx, page)
		if err != nil {
			return err
		}
		if duplicate || page.ResultCount == 0 || page.NextCursor == "" {
			return r.complete(ctx)
		}
	}

	for {
		page, interrupted, err := r.fetch(ctx, r.svc.config.IncrementalPageSize)
		if err != nil || interrupted {
			return err
		}

		duplicate, err := r.recordPage(ctx, page)
		if err != nil {
			return err
		}
		if duplicate || page.ResultCount == 0 || page.NextCursor == "" {
			return r.complete(ctx)
		}
	}
}

// fetch requests one page. interrupted is true when a rate limit ended the
// run as interrupted.
func (r *run) fetch(ctx context.Context, size int) (*domain.Page, bool, error) {
	result := r.svc.fetcher.FetchBookmarks(ctx, r.cred, domain.PageRequest{
		MaxResults: size,
		Cursor:     r.cursor,
	})

	switch res := result.(type) {
	case *domain.Page:
		return res, false, nil

	case *domain.RateLimited:
		if !r.resuming && r.cursor == "" {
			// Nothing to resume from yet.
			r.stepOrLog(ctx, func(a domain.SyncAttempt) (domain.SyncAttempt, domain.AttemptDelta, error) {
				return a.CallFailed(r.elapsed())
			})
			return nil, false, &domain.RateLimitedError{ResetAt: res.ResetAt}
		}

		err := r.step(ctx, func(a domain.SyncAttempt) (domain.SyncAttempt, domain.AttemptDelta, error) {
			return a.RateLimitHit(res.ResetAt, r.elapsed())
		})
		if err != nil {
			return nil, false, err
		}
		r.logger.Info("sync interrupted by rate limit", "reset_at", res.ResetAt, "cursor", r.cursor)
		return nil, true, nil

	case *domain.FetchFailure:
		r.stepOrLog(ctx, func(a domain.SyncAttempt) (domain.SyncAttempt, domain.AttemptDelta, error) {
			return a.CallFailed(r.elapsed())
		})
		return nil, false, res

	default:
		return nil, false, fmt.Errorf("unexpected fetch result %T", result)
	}
}

// recordPage persists the page and then advances the ledger, so the saved
// cursor never runs ahead of what is durably stored.
func (r *run) recordPage(ctx context.Context, page *domain.Page) (bool, error) {
	records := r.applyCutoff(page.Records)
	outcome := r.svc.persistPage(ctx, records)

	err := r.step(ctx, func(a domain.SyncAttempt) (domain.SyncAttempt, domain.AttemptDelta, error) {
		return a.PageFetched(domain.PageOutcome{
			Seen:       page.ResultCount,
			Inserted:   len(outcome.Inserted),
			NextCursor: page.NextCursor,
		}, r.svc.config.UnitCost)
	})
	if err != nil {
		return false, err
	}

	if page.NextCursor != "" {
		r.cursor = page.NextCursor
	}
	r.inserted = append(r.inserted, outcome.Inserted...)

	r.logger.Debug("page recorded",
		"entries", page.ResultCount,
		"inserted", len(outcome.Inserted),
		"skipped", outcome.Skipped,
		"duplicate", outcome.Duplicate,
		"has_next", page.NextCursor != "",
	)

	return outcome.Duplicate, nil
}

func (r *run) applyCutoff(records []domain.ContentRecord) []domain.ContentRecord {
	if r.attempt.CutoffYear == nil {
		return records
	}
	cutoff := *r.attempt.CutoffYear

	kept := records[:0:0]
	for _, rec := range records {
		if !rec.OriginalCreatedAt.IsZero() && rec.OriginalCreatedAt.Year() < cutoff {
			metrics.RecordsSkipped.WithLabelValues("cutoff").Inc()
			continue
		}
		kept = append(kept, rec)
	}
	return kept
}

func (r *run) complete(ctx context.Context) error {
	return r.step(ctx, func(a domain.SyncAttempt) (domain.SyncAttempt, domain.AttemptDelta, error) {
		return a.Complete(r.elapsed())
	})
}

// finalize marks the attempt completed after a failure so it never stays
// in_progress. Work persisted before the failure is kept.
func (r *run) finalize(ctx context.Context) {
	if r.attempt.Status != domain.SyncStatusInProgress {
		return
	}
	r.stepOrLog(context.WithoutCancel(ctx), func(a domain.SyncAttempt) (domain.SyncAttempt, domain.AttemptDelta, error) {
		return a.Complete(r.elapsed())
	})
}

func (r *run) step(ctx context.Context, t transition) error {
	next, delta, err := t(r.attempt)
	if err != nil {
		return err
	}
	if err := r.svc.attempts.Apply(ctx, r.attempt.ID, r.attempt.Status, delta); err != nil {
		return fmt.Errorf("update sync attempt: %w", err)
	}
	r.attempt = next
	return nil
}

func (r *run) stepOrLog(ctx context.Context, t transition) {
	if err := r.step(ctx, t); err != nil {
		r.logger.Error("failed to update sync attempt", "error", err)
	}
}

func (r *run) elapsed() time.Duration {
	return r.svc.now().Sub(r.started)
}

func (r *run) result() *domain.SyncResult {
	result := &domain.SyncResult{
		AttemptID:       r.attempt.ID,
		Mode:            r.attempt.Mode,
		Status:          r.attempt.Status,
		EntriesInserted: r.attempt.EntriesInserted - r.start.EntriesInserted,
		EntriesSeen:     r.attempt.EntriesSeen - r.start.EntriesSeen,
		APICallCount:    r.attempt.APICallCount - r.start.APICallCount,
		Duration:        r.elapsed(),
		NewRecords:      r.inserted,
	}
	if r.attempt.Status == domain.SyncStatusInterrupted {
		result.RateLimitResetAt = r.attempt.RateLimitResetAt
		result.ResumeCursor = r.attempt.ResumeCursor
	}
	return result
}
