package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/history"
)

// Store persists history and favorites in the tables created by the
// migrations package. Entries are never trimmed on write; ListEntries caps
// what is returned.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (s *Store) AddEntry(ctx context.Context, entry history.Entry) (history.Entry, error) {
	query := `
INSERT INTO askdb_history (question, sql_text, row_count, success, error_message)
VALUES ($1, $2, $3, $4, $5)
RETURNING entry_id, created_at`
	if err := s.db.QueryRowContext(ctx, query, entry.Question, entry.SQL, entry.RowCount, entry.Success, entry.Error).Scan(&entry.ID, &entry.Timestamp); err != nil {
		return history.Entry{}, fmt.Errorf("add history entry: %w", err)
	}
	return entry, nil
}

func (s *Store) ListEntries(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = history.DefaultLimit
	}
	query := `
SELECT entry_id, question, sql_text, created_at, row_count, success, error_message
FROM askdb_history
ORDER BY created_at DESC, entry_id DESC
LIMIT $1`
	return s.queryEntries(ctx, "list history entries", query, limit)
}

func (s *Store) ClearEntries(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM askdb_history`); err != nil {
		return fmt.Errorf("clear history entries: %w", err)
	}
	return nil
}

func (s *Store) AddFavorite(ctx context.Context, favorite history.Favorite) (history.Favorite, error) {
	favorite.Tags = history.NormalizeTags(favorite.Tags)
	tags, err := json.Marshal(favorite.Tags)
	if err != nil {
		return history.Favorite{}, fmt.Errorf("encode favorite tags: %w", err)
	}

	query := `
INSERT INTO askdb_favorite (question, sql_text, tags)
VALUES ($1, $2, $3::jsonb)
RETURNING favorite_id, created_at`
	if err := s.db.QueryRowContext(ctx, query, favorite.Question, favorite.SQL, string(tags)).Scan(&favorite.ID, &favorite.Timestamp); err != nil {
		return history.Favorite{}, fmt.Errorf("add favorite: %w", err)
	}
	return favorite, nil
}

func (s *Store) ListFavorites(ctx context.Context) ([]history.Favorite, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT favorite_id, question, sql_text, created_at, tags
FROM askdb_favorite
ORDER BY created_at DESC, favorite_id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list favorites: %w", err)
	}
	defer func() { _ = rows.Close() }()

	favorites := make([]history.Favorite, 0)
	for rows.Next() {
		var (
			favorite history.Favorite
			rawTags  []byte
		)
		if err := rows.Scan(&favorite.ID, &favorite.Question, &favorite.SQL, &favorite.Timestamp, &rawTags); err != nil {
			return nil, fmt.Errorf("scan favorite row: %w", err)
		}
		favorite.Tags = []string{}
		if len(rawTags) > 0 {
			if err := json.Unmarshal(rawTags, &favorite.Tags); err != nil {
				return nil, fmt.Errorf("decode favorite %d tags: %w", favorite.ID, err)
			}
		}
		favorites = append(favorites, favorite)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate favorite rows: %w", err)
	}
	return favorites, nil
}

func (s *Store) DeleteFavorite(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM askdb_favorite WHERE favorite_id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete favorite: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete favorite rows affected: %w", err)
	}
	if affected == 0 {
		return history.ErrNotFound
	}
	return nil
}

// ListUnarchived returns the oldest entries not yet written to the archive.
func (s *Store) ListUnarchived(ctx context.Context, limit int) ([]history.Entry, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
SELECT entry_id, question, sql_text, created_at, row_count, success, error_message
FROM askdb_history
WHERE archived_at IS NULL
ORDER BY entry_id ASC
LIMIT $1`
	return s.queryEntries(ctx, "list unarchived entries", query, limit)
}

func (s *Store) MarkArchived(ctx context.Context, ids []int64, objectPath string, archivedAt time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := []any{archivedAt.UTC(), objectPath}
	placeholders := make([]string, 0, len(ids))
	for _, id := range ids {
		args = append(args, id)
		placeholders = append(placeholders, "$"+strconv.Itoa(len(args)))
	}
	query := `
UPDATE askdb_history
SET archived_at = $1, archive_path = $2
WHERE entry_id IN (` + strings.Join(placeholders, ", ") + `) AND archived_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark entries archived: %w", err)
	}
	return nil
}

func (s *Store) queryEntries(ctx context.Context, action, query string, args ...any) ([]history.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", action, err)
	}
	defer func() { _ = rows.Close() }()

	entries := make([]history.Entry, 0)
	for rows.Next() {
		var entry history.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.Question,
			&entry.SQL,
			&entry.Timestamp,
			&entry.RowCount,
			&entry.Success,
			&entry.Error,
		); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return entries, nil
}
