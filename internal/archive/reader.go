package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/safety"
	"github.com/askdb/askdb/internal/storage"
)

// ViewName is the relation archived entries are exposed as.
const ViewName = "history"

var (
	ErrWriteNotAllowed = errors.New(safety.ErrWriteNotAllowed)
	ErrNoArchive       = errors.New("no archived history files")
)

// Reader runs analytics SQL over archived history. Engine is normally the
// DuckDB engine backed by the same object store.
type Reader struct {
	Store    storage.ObjectStore
	Engine   query.Engine
	RowLimit int
}

// Objects lists archived Parquet files for one day, or for all days when day
// is zero.
func (r *Reader) Objects(ctx context.Context, day time.Time) ([]storage.ObjectInfo, error) {
	if r.Store == nil {
		return nil, fmt.Errorf("object store is required")
	}
	listed, err := r.Store.List(ctx, storage.HistoryArchivePrefix(day))
	if err != nil {
		return nil, fmt.Errorf("list archive objects: %w", err)
	}
	out := make([]storage.ObjectInfo, 0, len(listed))
	for _, object := range listed {
		if storage.IsParquetKey(object.Key) {
			out = append(out, object)
		}
	}
	return out, nil
}

func (r *Reader) Query(ctx context.Context, sql string, day time.Time) (query.Result, error) {
	if !safety.IsSingleReadOnly(sql) {
		return query.Result{}, ErrWriteNotAllowed
	}
	if r.Engine == nil {
		return query.Result{}, fmt.Errorf("query engine is required")
	}

	objects, err := r.Objects(ctx, day)
	if err != nil {
		return query.Result{}, err
	}
	if len(objects) == 0 {
		return query.Result{}, ErrNoArchive
	}

	files := make([]query.TableFile, 0, len(objects))
	for _, object := range objects {
		files = append(files, query.TableFile{
			TableName:     ViewName,
			ObjectPath:    object.Key,
			FileSizeBytes: object.Size,
		})
	}
	result, err := r.Engine.Execute(ctx, query.Request{SQL: sql, RowLimit: r.RowLimit, Files: files})
	if err != nil {
		return query.Result{}, fmt.Errorf("query archive: %w", err)
	}
	return result, nil
}
