package sqldb

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/askdb/askdb/internal/query"
)

func TestExecuteReturnsRowsAndNormalizesBytes(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT name, email FROM customers`).
		WillReturnRows(sqlmock.NewRows([]string{"name", "email"}).
			AddRow([]byte("Ada"), "ada@example.com").
			AddRow("Grace", nil))

	engine := NewEngine(db, time.Second, 100)
	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT name, email FROM customers;"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if strings.Join(result.Columns, ",") != "name,email" {
		t.Fatalf("Columns = %v", result.Columns)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != "Ada" {
		t.Fatalf("first value = %#v", result.Rows[0][0])
	}
	if result.Rows[1][1] != nil {
		t.Fatalf("null value = %#v", result.Rows[1][1])
	}
	if result.Truncated {
		t.Fatal("Truncated should be false")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("sql expectations: %v", err)
	}
}

func TestExecuteCapsRowsAtMaxRows(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	rows := sqlmock.NewRows([]string{"id"})
	for i := 1; i <= 5; i++ {
		rows.AddRow(int64(i))
	}
	mock.ExpectQuery(`SELECT id FROM orders`).WillReturnRows(rows)

	engine := NewEngine(db, time.Second, 3)
	result, err := engine.Execute(context.Background(), query.Request{SQL: "SELECT id FROM orders", RowLimit: 50})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(result.Rows))
	}
	if !result.Truncated {
		t.Fatal("Truncated should be true")
	}
}

func TestExecuteHonorsSmallerRequestLimit(t *testing.T) {
	engine := &Engine{MaxRows: 100}
	if got := engine.rowLimit(5); got != 5 {
		t.Fatalf("rowLimit(5) = %d", got)
	}
	if got := engine.rowLimit(0); got != 100 {
		t.Fatalf("rowLimit(0) = %d", got)
	}
	if got := (&Engine{}).rowLimit(0); got != DefaultMaxRows {
		t.Fatalf("rowLimit default = %d", got)
	}
}

func TestExecuteWrapsQueryError(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	mock.ExpectQuery(`SELECT \* FROM missing`).WillReturnError(errors.New("no such table: missing"))

	_, err = NewEngine(db, 0, 0).Execute(context.Background(), query.Request{SQL: "SELECT * FROM missing"})
	if err == nil || !strings.Contains(err.Error(), "execute query") {
		t.Fatalf("Execute() error = %v", err)
	}
}

func TestExecuteRejectsEmptySQL(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	if _, err := NewEngine(db, 0, 0).Execute(context.Background(), query.Request{SQL: " ; "}); err == nil {
		t.Fatal("expected empty sql error")
	}
}

func TestExecuteRejectsStackedStatements(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	defer func() { _ = db.Close() }()

	_, err = NewEngine(db, 0, 0).Execute(context.Background(), query.Request{SQL: "SELECT '--' AS x; DROP TABLE customers"})
	if !errors.Is(err, ErrMultipleStatements) {
		t.Fatalf("Execute() error = %v, want ErrMultipleStatements", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unexpected database calls: %v", err)
	}
}
