package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"bookmark_sync/internal/domain"
)

// ProviderX is the linked_accounts provider value for X.
const ProviderX = "x"

type CredentialStore struct {
	db       *sqlx.DB
	provider string
	now      func() time.Time
}

func NewCredentialStore(db *sqlx.DB) *CredentialStore {
	return &CredentialStore{db: db, provider: ProviderX, now: time.Now}
}

type linkedAccount struct {
	AccountID       string     `db:"account_id"`
	RemoteAccountID string     `db:"remote_account_id"`
	AccessToken     string     `db:"access_token"`
	ExpiresAt       *time.Time `db:"expires_at"`
}

// Get returns the account's X credential, or nil when the account is not
// linked or its token has expired.
func (s *CredentialStore) Get(ctx context.Context, accountID string) (*domain.Credential, error) {
	query := `
		SELECT account_id, remote_account_id, access_token, expires_at
		FROM linked_accounts
		WHERE account_id = $1 AND provider = $2`

	var row linkedAccount
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &row, query, accountID, s.provider)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get linked account: %w", err)
	}

	if row.AccessToken == "" || row.RemoteAccountID == "" {
		return nil, nil
	}
	if row.ExpiresAt != nil && !row.ExpiresAt.After(s.now()) {
		return nil, nil
	}

	return &domain.Credential{
		AccountID:       row.AccountID,
		AccessToken:     row.AccessToken,
		RemoteAccountID: row.RemoteAccountID,
	}, nil
}
