package archive

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/history"
)

func TestEncodeEntriesToParquet(t *testing.T) {
	entries := []history.Entry{
		{ID: 1, Question: "Show me all customers", SQL: "SELECT * FROM customers", Timestamp: time.Date(2026, time.February, 19, 10, 0, 0, 0, time.UTC), RowCount: 3, Success: true},
		{ID: 2, Question: "drop customers", SQL: "DROP TABLE customers", Timestamp: time.Date(2026, time.February, 19, 11, 0, 0, 0, time.UTC), Error: "Write operations are not allowed"},
	}

	result, err := EncodeEntriesToParquet(entries)
	if err != nil {
		t.Fatalf("EncodeEntriesToParquet() error = %v", err)
	}
	if result.RecordCount != 2 {
		t.Fatalf("RecordCount = %d", result.RecordCount)
	}
	if result.MinCreatedAt == nil || result.MinCreatedAt.Hour() != 10 {
		t.Fatalf("MinCreatedAt = %v", result.MinCreatedAt)
	}
	if result.MaxCreatedAt == nil || result.MaxCreatedAt.Hour() != 11 {
		t.Fatalf("MaxCreatedAt = %v", result.MaxCreatedAt)
	}

	reader := parquet.NewGenericReader[parquetEntry](bytes.NewReader(result.Data))
	defer func() { _ = reader.Close() }()
	rows := make([]parquetEntry, 2)
	count, err := reader.Read(rows)
	if err != nil && !errors.Is(err, io.EOF) {
		t.Fatalf("reader.Read() error = %v", err)
	}
	if count != 2 {
		t.Fatalf("read rows = %d", count)
	}
	if rows[0].EntryID != 1 || !rows[0].Success || rows[1].Error == "" {
		t.Fatalf("unexpected rows: %+v", rows)
	}
}

func TestEncodeEntriesToParquetRejectsInvalidInput(t *testing.T) {
	if _, err := EncodeEntriesToParquet(nil); err == nil {
		t.Fatal("expected error for empty entries")
	}
	if _, err := EncodeEntriesToParquet([]history.Entry{{ID: 0}}); err == nil {
		t.Fatal("expected error for missing entry id")
	}
}
