package preview

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/askdb/askdb/internal/query/sqldb"
	"github.com/askdb/askdb/internal/safety"
)

func TestPreviewSQL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT * FROM customers LIMIT 500;", "SELECT * FROM customers LIMIT 10;"},
		{"select * from customers limit 5", "select * from customers limit 5"},
		{"SELECT id FROM orders;", "SELECT id FROM orders LIMIT 10;"},
		{"SELECT id FROM orders", "SELECT id FROM orders LIMIT 10"},
		{"WITH recent AS (SELECT id FROM orders) SELECT * FROM recent", "WITH recent AS (SELECT id FROM orders) SELECT * FROM recent LIMIT 10"},
		{"SELECT * FROM (SELECT id FROM orders LIMIT 50) s", "SELECT * FROM (SELECT id FROM orders LIMIT 50) s LIMIT 10"},
		{"SELECT * FROM orders LIMIT 20, 500", "SELECT * FROM orders LIMIT 20, 10"},
		{"SELECT * FROM orders LIMIT 100 OFFSET 5", "SELECT * FROM orders LIMIT 10 OFFSET 5"},
		{"SELECT id FROM orders -- newest first\n;", "SELECT id FROM orders LIMIT 10;"},
		{"PRAGMA table_info(orders)", "PRAGMA table_info(orders)"},
		{"SELECT url FROM pages WHERE url LIKE 'http://a--b%' ORDER BY url;", "SELECT url FROM pages WHERE url LIKE 'http://a--b%' ORDER BY url LIMIT 10;"},
		{"SELECT note FROM t WHERE note = 'x /* y' LIMIT 50", "SELECT note FROM t WHERE note = 'x /* y' LIMIT 10"},
	}
	for _, tc := range cases {
		if got := PreviewSQL(tc.in); got != tc.want {
			t.Fatalf("PreviewSQL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestCountSQL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"SELECT id, name FROM customers WHERE active = 1 ORDER BY name LIMIT 50;", "SELECT COUNT(*) FROM customers WHERE active = 1"},
		{"SELECT a FROM t WHERE id IN (SELECT id FROM u ORDER BY id LIMIT 3) ORDER BY a", "SELECT COUNT(*) FROM t WHERE id IN (SELECT id FROM u ORDER BY id LIMIT 3)"},
		{"SELECT (SELECT MAX(x) FROM u) AS m, a FROM t", "SELECT COUNT(*) FROM t"},
		{"select o.id from orders o join customers c on c.customer_id = o.customer_id", "SELECT COUNT(*) from orders o join customers c on c.customer_id = o.customer_id"},
		{"SELECT url FROM pages WHERE url LIKE 'x--y' ORDER BY url", "SELECT COUNT(*) FROM pages WHERE url LIKE 'x--y'"},
	}
	for _, tc := range cases {
		got, ok := CountSQL(tc.in)
		if !ok {
			t.Fatalf("CountSQL(%q) refused", tc.in)
		}
		if got != tc.want {
			t.Fatalf("CountSQL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}

	refused := []string{
		"WITH x AS (SELECT 1) SELECT * FROM x",
		"SELECT status, COUNT(*) FROM orders GROUP BY status",
		"SELECT DISTINCT status FROM orders",
		"SELECT id FROM a UNION SELECT id FROM b",
		"SELECT id FROM a; SELECT id FROM b",
		"SELECT 1",
		"",
	}
	for _, sql := range refused {
		if got, ok := CountSQL(sql); ok {
			t.Fatalf("CountSQL(%q) = %q, expected refusal", sql, got)
		}
	}
}

func TestPreviewExactEstimateBelowLimit(t *testing.T) {
	engine, mock := newTestEngine(t)

	rows := sqlmock.NewRows([]string{"customer_id", "first_name"})
	for i := 1; i <= 7; i++ {
		rows.AddRow(int64(i), "name")
	}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT customer_id, first_name FROM customers LIMIT 10")).WillReturnRows(rows)

	result := engine.Preview(context.Background(), "SELECT customer_id, first_name FROM customers;", false)
	if result.Failed() {
		t.Fatalf("Preview() error = %s", result.Error)
	}
	if result.PreviewSQL != "SELECT customer_id, first_name FROM customers LIMIT 10;" {
		t.Fatalf("PreviewSQL = %q", result.PreviewSQL)
	}
	if result.RowCount != 7 {
		t.Fatalf("RowCount = %d", result.RowCount)
	}
	if result.Estimate.Method != MethodExact || result.Estimate.Confidence != ConfidenceHigh {
		t.Fatalf("Estimate = %+v", result.Estimate)
	}
	if result.Estimate.Count == nil || *result.Estimate.Count != 7 || result.Estimate.Display != "7" {
		t.Fatalf("Estimate = %+v", result.Estimate)
	}
	if !result.GeneratedAt.Equal(fixedNow) {
		t.Fatalf("GeneratedAt = %s", result.GeneratedAt)
	}
	assertSQLMock(t, mock)
}

func TestPreviewRunsCountQueryAtLimit(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT order_id FROM orders ORDER BY order_id LIMIT 10")).WillReturnRows(tenRows("order_id"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders")).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12000)))

	result := engine.Preview(context.Background(), "SELECT order_id FROM orders ORDER BY order_id", false)
	if result.Failed() {
		t.Fatalf("Preview() error = %s", result.Error)
	}
	if result.Estimate.Method != MethodCountQuery || result.Estimate.Confidence != ConfidenceHigh {
		t.Fatalf("Estimate = %+v", result.Estimate)
	}
	if result.Estimate.Count == nil || *result.Estimate.Count != 12000 {
		t.Fatalf("Estimate = %+v", result.Estimate)
	}
	assertSQLMock(t, mock)
}

func TestPreviewExtrapolatesWhenCountIsUnsupported(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT status, COUNT(*) FROM orders GROUP BY status LIMIT 10")).WillReturnRows(tenRows("status"))

	result := engine.Preview(context.Background(), "SELECT status, COUNT(*) FROM orders GROUP BY status", false)
	if result.Estimate.Method != MethodExtrapolation || result.Estimate.Confidence != ConfidenceLow {
		t.Fatalf("Estimate = %+v", result.Estimate)
	}
	if result.Estimate.Display != "100+" || result.Estimate.Count != nil {
		t.Fatalf("Estimate = %+v", result.Estimate)
	}
	assertSQLMock(t, mock)
}

func TestPreviewUnknownWhenCountFails(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT order_id FROM orders LIMIT 10")).WillReturnRows(tenRows("order_id"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM orders")).WillReturnError(errors.New("timeout"))

	result := engine.Preview(context.Background(), "SELECT order_id FROM orders", false)
	if result.Failed() {
		t.Fatalf("Preview() error = %s", result.Error)
	}
	if result.Estimate.Method != MethodUnknown || result.Estimate.Display != "10+" || result.Estimate.Confidence != ConfidenceLow {
		t.Fatalf("Estimate = %+v", result.Estimate)
	}
	assertSQLMock(t, mock)
}

func TestPreviewCachesByFingerprint(t *testing.T) {
	engine, mock := newTestEngine(t)

	sql := "SELECT name FROM products"
	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM products LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Laptop"))

	first := engine.Preview(context.Background(), sql, false)
	if first.Cached {
		t.Fatal("first preview should not be cached")
	}
	second := engine.Preview(context.Background(), sql, false)
	if !second.Cached || second.RowCount != 1 {
		t.Fatalf("second preview = %+v", second)
	}
	if engine.CacheSize() != 1 {
		t.Fatalf("CacheSize() = %d", engine.CacheSize())
	}
	assertSQLMock(t, mock)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT name FROM products LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("Laptop").AddRow("Mouse"))
	refreshed := engine.Preview(context.Background(), sql, true)
	if refreshed.Cached || refreshed.RowCount != 2 {
		t.Fatalf("refreshed preview = %+v", refreshed)
	}
	assertSQLMock(t, mock)

	engine.ClearCache()
	if engine.CacheSize() != 0 {
		t.Fatalf("CacheSize() after clear = %d", engine.CacheSize())
	}
}

func TestPreviewRefusesWriteStatements(t *testing.T) {
	engine, mock := newTestEngine(t)

	for _, sql := range []string{"DROP TABLE customers;", "-- Error: generating SQL failed: boom"} {
		result := engine.Preview(context.Background(), sql, false)
		if result.Error != safety.ErrWriteNotAllowed {
			t.Fatalf("Preview(%q).Error = %q", sql, result.Error)
		}
	}
	stacked := engine.Preview(context.Background(), "SELECT '--' AS x; DROP TABLE customers", false)
	if stacked.Error != safety.ErrMultipleStatements {
		t.Fatalf("stacked Preview().Error = %q", stacked.Error)
	}
	if engine.CacheSize() != 0 {
		t.Fatal("refused previews must not be cached")
	}
	assertSQLMock(t, mock)
}

func TestPreviewReportsExecutionFailure(t *testing.T) {
	engine, mock := newTestEngine(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT * FROM nonexistent_table LIMIT 10")).
		WillReturnError(errors.New("no such table: nonexistent_table"))

	result := engine.Preview(context.Background(), "SELECT * FROM nonexistent_table", false)
	if !strings.HasPrefix(result.Error, "Preview failed:") || !strings.Contains(result.Error, "nonexistent_table") {
		t.Fatalf("Error = %q", result.Error)
	}
	if engine.CacheSize() != 0 {
		t.Fatal("failed previews must not be cached")
	}
	assertSQLMock(t, mock)
}

func TestFingerprintIsSHA256Hex(t *testing.T) {
	got := Fingerprint("SELECT 1")
	if len(got) != 64 {
		t.Fatalf("Fingerprint() length = %d", len(got))
	}
	if got == Fingerprint("SELECT 1 ") {
		t.Fatal("fingerprint must match exact text only")
	}
}

var fixedNow = time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T) (*Engine, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	engine := NewEngine(sqldb.NewEngine(db, time.Second, 100), DefaultRows)
	engine.Clock = func() time.Time { return fixedNow }
	return engine, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func tenRows(column string) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{column})
	for i := 1; i <= 10; i++ {
		rows.AddRow(int64(i))
	}
	return rows
}
