package service

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"
	"time"

	"bookmark_sync/internal/domain"
)

type ContentStore interface {
	Insert(ctx context.Context, record *domain.ContentRecord) (bool, error)
	CountBySource(ctx context.Context, accountID, source string) (int, error)
}

type SyncAttemptStore interface {
	Create(ctx context.Context, attempt *domain.SyncAttempt) error
	Get(ctx context.Context, id string) (*domain.SyncAttempt, error)
	FindInProgress(ctx context.Context, accountID string) (*domain.SyncAttempt, error)
	ListResumable(ctx context.Context, now time.Time, limit int) ([]domain.SyncAttempt, error)
	Apply(ctx context.Context, id string, from domain.SyncStatus, delta domain.AttemptDelta) error
}

type CredentialProvider interface {
	Get(ctx context.Context, accountID string) (*domain.Credential, error)
}

type Fetcher interface {
	FetchBookmarks(ctx context.Context, cred domain.Credential, req domain.PageRequest) domain.FetchResult
}

type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type Classifier interface {
	PublishBatch(ctx context.Context, accountID string, items []domain.ClassificationItem) error
	Close() error
}
