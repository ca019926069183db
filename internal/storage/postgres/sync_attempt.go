package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"bookmark_sync/internal/domain"
)

const uniqueViolation = "23505"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var attemptColumns = []string{
	"id", "account_id", "mode", "status",
	"entries_seen", "entries_inserted", "api_call_count", "estimated_cost",
	"rate_limited", "cutoff_year", "resume_cursor", "rate_limit_reset_at",
	"duration_ms", "created_at", "updated_at",
}

type SyncAttemptStore struct {
	db *sqlx.DB
}

func NewSyncAttemptStore(db *sqlx.DB) *SyncAttemptStore {
	return &SyncAttemptStore{db: db}
}

// Create inserts a new attempt. A second in_progress row for the same account
// violates sync_attempts_one_in_progress and surfaces as ErrSyncAlreadyRunning.
func (s *SyncAttemptStore) Create(ctx context.Context, a *domain.SyncAttempt) error {
	query, args, err := psql.Insert("sync_attempts").
		Columns("id", "account_id", "mode", "status", "cutoff_year", "created_at", "updated_at").
		Values(a.ID, a.AccountID, a.Mode, a.Status, a.CutoffYear, a.CreatedAt, a.UpdatedAt).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert: %w", err)
	}

	if _, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSyncAlreadyRunning
		}
		return fmt.Errorf("insert sync attempt: %w", err)
	}
	return nil
}

func (s *SyncAttemptStore) Get(ctx context.Context, id string) (*domain.SyncAttempt, error) {
	query, args, err := psql.Select(attemptColumns...).
		From("sync_attempts").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var a domain.SyncAttempt
	err = sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &a, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAttemptNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sync attempt: %w", err)
	}
	return &a, nil
}

// FindInProgress returns the account's running attempt, or nil when there is none.
func (s *SyncAttemptStore) FindInProgress(ctx context.Context, accountID string) (*domain.SyncAttempt, error) {
	query, args, err := psql.Select(attemptColumns...).
		From("sync_attempts").
		Where(sq.Eq{"account_id": accountID, "status": domain.SyncStatusInProgress}).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var a domain.SyncAttempt
	err = sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &a, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find in-progress attempt: %w", err)
	}
	return &a, nil
}

// ListResumable returns interrupted attempts whose rate-limit window has
// passed, oldest reset first. Rows without a reset time are always due.
func (s *SyncAttemptStore) ListResumable(ctx context.Context, now time.Time, limit int) ([]domain.SyncAttempt, error) {
	builder := psql.Select(attemptColumns...).
		From("sync_attempts").
		Where(sq.Eq{"status": domain.SyncStatusInterrupted}).
		Where(sq.Or{
			sq.Eq{"rate_limit_reset_at": nil},
			sq.LtOrEq{"rate_limit_reset_at": now},
		}).
		OrderBy("rate_limit_reset_at NULLS FIRST", "created_at")
	if limit > 0 {
		builder = builder.Limit(uint64(limit))
	}

	query, args, err := builder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select: %w", err)
	}

	var attempts []domain.SyncAttempt
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &attempts, query, args...); err != nil {
		return nil, fmt.Errorf("list resumable attempts: %w", err)
	}
	return attempts, nil
}

// Apply persists a transition delta, guarded on the status the transition
// started from. If the row moved on in the meantime nothing is written and
// domain.ErrAttemptConflict is returned.
func (s *SyncAttemptStore) Apply(ctx context.Context, id string, from domain.SyncStatus, delta domain.AttemptDelta) error {
	if delta.IsEmpty() {
		return nil
	}

	query, args, err := psql.Update("sync_attempts").
		SetMap(deltaColumns(delta)).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": id, "status": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update: %w", err)
	}

	res, err := GetExecutor(ctx, s.db).ExecContext(ctx, query, args...)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrSyncAlreadyRunning
		}
		return fmt.Errorf("update sync attempt: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrAttemptConflict
	}
	return nil
}

func deltaColumns(d domain.AttemptDelta) map[string]interface{} {
	cols := make(map[string]interface{})
	if d.Status != nil {
		cols["status"] = *d.Status
	}
	if d.EntriesSeen != nil {
		cols["entries_seen"] = *d.EntriesSeen
	}
	if d.EntriesInserted != nil {
		cols["entries_inserted"] = *d.EntriesInserted
	}
	if d.APICallCount != nil {
		cols["api_call_count"] = *d.APICallCount
	}
	if d.EstimatedCost != nil {
		cols["estimated_cost"] = *d.EstimatedCost
	}
	if d.RateLimited != nil {
		cols["rate_limited"] = *d.RateLimited
	}
	if d.ResumeCursor != nil {
		cols["resume_cursor"] = *d.ResumeCursor
	} else if d.ClearResumeCursor {
		cols["resume_cursor"] = nil
	}
	if d.RateLimitResetAt != nil {
		cols["rate_limit_reset_at"] = *d.RateLimitResetAt
	} else if d.ClearRateLimitResetAt {
		cols["rate_limit_reset_at"] = nil
	}
	if d.DurationMs != nil {
		cols["duration_ms"] = *d.DurationMs
	}
	return cols
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
