package duckdb

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/storage"
)

type historyRow struct {
	ID       int64  `parquet:"id"`
	Question string `parquet:"question"`
	Success  bool   `parquet:"success"`
}

func TestExecuteReadsParquetThroughObjectStore(t *testing.T) {
	parquetBytes, err := buildParquet([]historyRow{
		{ID: 1, Question: "show all customers", Success: true},
		{ID: 2, Question: "count orders", Success: false},
	})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}

	key := "history/date=2026-03-02/part-1-00000.parquet"
	store := &memoryStore{objects: map[string][]byte{key: parquetBytes}}
	engine := NewEngine(store)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL: "SELECT COUNT(*) AS c FROM history WHERE success",
		Files: []query.TableFile{{
			TableName:     "history",
			ObjectPath:    key,
			FileSizeBytes: int64(len(parquetBytes)),
		}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 1 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if result.Rows[0][0] != int64(1) {
		t.Fatalf("count = %#v", result.Rows[0][0])
	}
	if result.ScannedFiles != 1 {
		t.Fatalf("ScannedFiles = %d", result.ScannedFiles)
	}
}

func TestExecuteSupportsTrailingSemicolonWithRowLimit(t *testing.T) {
	parquetBytes, err := buildParquet([]historyRow{{ID: 1, Question: "a"}, {ID: 2, Question: "b"}, {ID: 3, Question: "c"}})
	if err != nil {
		t.Fatalf("buildParquet() error = %v", err)
	}

	key := "history/date=2026-03-02/part-1-00000.parquet"
	store := &memoryStore{objects: map[string][]byte{key: parquetBytes}}
	engine := NewEngine(store)

	result, err := engine.Execute(context.Background(), query.Request{
		SQL:      "SELECT id FROM history ORDER BY id;",
		RowLimit: 2,
		Files:    []query.TableFile{{TableName: "history", ObjectPath: key}},
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if len(result.Rows) != 2 {
		t.Fatalf("rows = %d", len(result.Rows))
	}
	if !result.Truncated {
		t.Fatal("Truncated should be true")
	}
}

func TestExecuteRejectsInvalidViewName(t *testing.T) {
	engine := NewEngine(&memoryStore{objects: map[string][]byte{}})
	_, err := engine.Execute(context.Background(), query.Request{
		SQL:   "SELECT 1",
		Files: []query.TableFile{{TableName: "../etc", ObjectPath: "x.parquet"}},
	})
	if err == nil {
		t.Fatal("expected invalid view name error")
	}
}

func buildParquet(rows []historyRow) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[historyRow](buf)
	if _, err := writer.Write(rows); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Put(context.Context, string, io.Reader, int64, storage.PutOptions) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memoryStore) Stat(context.Context, string) (storage.ObjectInfo, error) {
	return storage.ObjectInfo{}, nil
}

func (m *memoryStore) Delete(context.Context, string) error {
	return nil
}

func (m *memoryStore) List(context.Context, string) ([]storage.ObjectInfo, error) {
	return nil, nil
}
