package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"bookmark_sync/internal/domain"
)

type ContentStore struct {
	db *sqlx.DB
}

func NewContentStore(db *sqlx.DB) *ContentStore {
	return &ContentStore{db: db}
}

// Insert stores the record unless its URL is already present. It reports
// whether a row was written and fills in ID and CreatedAt when it was.
func (s *ContentStore) Insert(ctx context.Context, record *domain.ContentRecord) (bool, error) {
	media := record.Media
	if media == nil {
		media = []domain.Media{}
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return false, fmt.Errorf("marshal media: %w", err)
	}

	id := record.ID
	if id == "" {
		id = uuid.NewString()
	}

	var originalCreatedAt *time.Time
	if !record.OriginalCreatedAt.IsZero() {
		originalCreatedAt = &record.OriginalCreatedAt
	}

	query := `
		INSERT INTO content_records (
			id, owner_account_id, source, url, kind, title, body,
			author_handle, media, original_created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
		ON CONFLICT (url) DO NOTHING
		RETURNING created_at`

	var createdAt time.Time
	err = GetExecutor(ctx, s.db).QueryRowxContext(ctx, query,
		id,
		record.OwnerAccountID,
		record.Source,
		record.URL,
		record.Kind,
		record.Title,
		record.Body,
		record.AuthorHandle,
		mediaJSON,
		originalCreatedAt,
	).Scan(&createdAt)

	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("insert content record: %w", err)
	}

	record.ID = id
	record.CreatedAt = createdAt
	return true, nil
}

// CountBySource counts the account's records that came from the given source.
func (s *ContentStore) CountBySource(ctx context.Context, accountID, source string) (int, error) {
	var count int
	err := sqlx.GetContext(ctx, GetExecutor(ctx, s.db), &count,
		"SELECT COUNT(*) FROM content_records WHERE owner_account_id = $1 AND source = $2",
		accountID, source,
	)
	if err != nil {
		return 0, fmt.Errorf("count content records: %w", err)
	}
	return count, nil
}

type contentRow struct {
	ID                string     `db:"id"`
	OwnerAccountID    string     `db:"owner_account_id"`
	Source            string     `db:"source"`
	URL               string     `db:"url"`
	Kind              string     `db:"kind"`
	Title             string     `db:"title"`
	Body              string     `db:"body"`
	AuthorHandle      string     `db:"author_handle"`
	Media             []byte     `db:"media"`
	OriginalCreatedAt *time.Time `db:"original_created_at"`
	CreatedAt         time.Time  `db:"created_at"`
}

// ListByOwner returns the account's records in the order they were inserted.
func (s *ContentStore) ListByOwner(ctx context.Context, accountID string) ([]domain.ContentRecord, error) {
	query := `
		SELECT id, owner_account_id, source, url, kind, title, body,
		       author_handle, media, original_created_at, created_at
		FROM content_records
		WHERE owner_account_id = $1
		ORDER BY created_at, original_created_at`

	var rows []contentRow
	if err := sqlx.SelectContext(ctx, GetExecutor(ctx, s.db), &rows, query, accountID); err != nil {
		return nil, fmt.Errorf("list content records: %w", err)
	}

	records := make([]domain.ContentRecord, 0, len(rows))
	for _, row := range rows {
		record := domain.ContentRecord{
			ID:             row.ID,
			OwnerAccountID: row.OwnerAccountID,
			Source:         row.Source,
			URL:            row.URL,
			Kind:           domain.ContentKind(row.Kind),
			Title:          row.Title,
			Body:           row.Body,
			AuthorHandle:   row.AuthorHandle,
			CreatedAt:      row.CreatedAt,
		}
		if row.OriginalCreatedAt != nil {
			record.OriginalCreatedAt = row.OriginalCreatedAt.UTC()
		}
		if err := json.Unmarshal(row.Media, &record.Media); err != nil {
			return nil, fmt.Errorf("unmarshal media for %s: %w", row.URL, err)
		}
		records = append(records, record)
	}
	return records, nil
}
