package postgres

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/askdb/askdb/internal/history"
)

func TestAddEntry(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO askdb_history (question, sql_text, row_count, success, error_message)
VALUES ($1, $2, $3, $4, $5)
RETURNING entry_id, created_at`)).
		WithArgs("Show me all customers", "SELECT * FROM customers", 3, true, "").
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "created_at"}).AddRow(int64(7), now))

	entry, err := store.AddEntry(context.Background(), history.Entry{
		Question: "Show me all customers",
		SQL:      "SELECT * FROM customers",
		RowCount: 3,
		Success:  true,
	})
	if err != nil {
		t.Fatalf("AddEntry() error = %v", err)
	}
	if entry.ID != 7 || !entry.Timestamp.Equal(now) {
		t.Fatalf("entry = %+v", entry)
	}
	assertSQLMock(t, mock)
}

func TestListEntriesDefaultsLimit(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(`FROM askdb_history\s+ORDER BY created_at DESC, entry_id DESC\s+LIMIT \$1`).
		WithArgs(history.DefaultLimit).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "question", "sql_text", "created_at", "row_count", "success", "error_message"}).
			AddRow(int64(2), "count orders", "SELECT COUNT(*) FROM orders", now, 1, true, "").
			AddRow(int64(1), "drop it", "DROP TABLE orders", now, 0, false, "Write operations are not allowed"))

	entries, err := store.ListEntries(context.Background(), 0)
	if err != nil {
		t.Fatalf("ListEntries() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[1].Success || entries[1].Error == "" {
		t.Fatalf("entries[1] = %+v", entries[1])
	}
	assertSQLMock(t, mock)
}

func TestAddAndListFavoritesRoundTripTags(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO askdb_favorite (question, sql_text, tags)
VALUES ($1, $2, $3::jsonb)
RETURNING favorite_id, created_at`)).
		WithArgs("big orders", "SELECT * FROM orders WHERE total_amount > 100", `["sales","weekly"]`).
		WillReturnRows(sqlmock.NewRows([]string{"favorite_id", "created_at"}).AddRow(int64(3), now))

	favorite, err := store.AddFavorite(context.Background(), history.Favorite{
		Question: "big orders",
		SQL:      "SELECT * FROM orders WHERE total_amount > 100",
		Tags:     []string{"Sales", "weekly", "sales"},
	})
	if err != nil {
		t.Fatalf("AddFavorite() error = %v", err)
	}
	if favorite.ID != 3 {
		t.Fatalf("ID = %d", favorite.ID)
	}

	mock.ExpectQuery(`FROM askdb_favorite`).
		WillReturnRows(sqlmock.NewRows([]string{"favorite_id", "question", "sql_text", "created_at", "tags"}).
			AddRow(int64(3), "big orders", "SELECT * FROM orders WHERE total_amount > 100", now, []byte(`["sales","weekly"]`)))

	favorites, err := store.ListFavorites(context.Background())
	if err != nil {
		t.Fatalf("ListFavorites() error = %v", err)
	}
	if len(favorites) != 1 || !reflect.DeepEqual(favorites[0].Tags, []string{"sales", "weekly"}) {
		t.Fatalf("favorites = %+v", favorites)
	}
	assertSQLMock(t, mock)
}

func TestDeleteFavoriteReturnsNotFound(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM askdb_favorite WHERE favorite_id = $1`)).
		WithArgs(int64(99)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := store.DeleteFavorite(context.Background(), 99)
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("DeleteFavorite() error = %v, want ErrNotFound", err)
	}
	assertSQLMock(t, mock)
}

func TestClearEntries(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM askdb_history`)).WillReturnResult(sqlmock.NewResult(0, 4))
	if err := store.ClearEntries(context.Background()); err != nil {
		t.Fatalf("ClearEntries() error = %v", err)
	}
	assertSQLMock(t, mock)
}

func TestListUnarchivedAndMarkArchived(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`WHERE archived_at IS NULL\s+ORDER BY entry_id ASC\s+LIMIT \$1`).
		WithArgs(25).
		WillReturnRows(sqlmock.NewRows([]string{"entry_id", "question", "sql_text", "created_at", "row_count", "success", "error_message"}).
			AddRow(int64(10), "q1", "SELECT 1", now, 1, true, "").
			AddRow(int64(11), "q2", "SELECT 2", now, 1, true, ""))

	entries, err := store.ListUnarchived(context.Background(), 25)
	if err != nil {
		t.Fatalf("ListUnarchived() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %d", len(entries))
	}

	mock.ExpectExec(regexp.QuoteMeta(`WHERE entry_id IN ($3, $4) AND archived_at IS NULL`)).
		WithArgs(now, "history/date=2026-03-02/part-1-00000.parquet", int64(10), int64(11)).
		WillReturnResult(sqlmock.NewResult(0, 2))

	if err := store.MarkArchived(context.Background(), []int64{10, 11}, "history/date=2026-03-02/part-1-00000.parquet", now); err != nil {
		t.Fatalf("MarkArchived() error = %v", err)
	}
	if err := store.MarkArchived(context.Background(), nil, "ignored", now); err != nil {
		t.Fatalf("MarkArchived(nil) error = %v", err)
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

var (
	_ history.Store         = (*Store)(nil)
	_ history.ArchiveSource = (*Store)(nil)
)
