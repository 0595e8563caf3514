// Package sqldb runs read-only statements against the connected target
// database through database/sql.
package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/safety"
)

var ErrMultipleStatements = errors.New("multiple statements are not allowed")

const (
	DefaultTimeout = 30 * time.Second
	DefaultMaxRows = 10000
)

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Engine executes statements with a per-query timeout. RowLimit on the request
// is clamped to MaxRows, and a request without a limit gets MaxRows.
type Engine struct {
	DB      queryer
	Timeout time.Duration
	MaxRows int
}

func NewEngine(db queryer, timeout time.Duration, maxRows int) *Engine {
	return &Engine{DB: db, Timeout: timeout, MaxRows: maxRows}
}

func (e *Engine) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	if e.DB == nil {
		return query.Result{}, fmt.Errorf("database handle is required")
	}
	sqlText := query.StripTrailingSemicolons(request.SQL)
	if sqlText == "" {
		return query.Result{}, fmt.Errorf("sql is required")
	}
	if safety.MultipleStatements(sqlText) {
		return query.Result{}, ErrMultipleStatements
	}

	timeout := e.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	queryCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	rows, err := e.DB.QueryContext(queryCtx, sqlText)
	if err != nil {
		return query.Result{}, fmt.Errorf("execute query: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columns, resultRows, truncated, err := query.ScanRows(rows, e.rowLimit(request.RowLimit))
	if err != nil {
		return query.Result{}, err
	}
	return query.Result{
		Columns:   columns,
		Rows:      resultRows,
		Truncated: truncated,
		Duration:  time.Since(start),
	}, nil
}

func (e *Engine) rowLimit(requested int) int {
	maxRows := e.MaxRows
	if maxRows <= 0 {
		maxRows = DefaultMaxRows
	}
	if requested <= 0 || requested > maxRows {
		return maxRows
	}
	return requested
}
