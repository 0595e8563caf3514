// Package preview runs a row-bounded variant of a candidate query and
// estimates how many rows the unbounded query would return.
package preview

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/safety"
)

type Method string

const (
	MethodExact         Method = "exact"
	MethodCountQuery    Method = "count_query"
	MethodExtrapolation Method = "extrapolation"
	MethodUnknown       Method = "unknown"
)

type Confidence string

const (
	ConfidenceHigh Confidence = "high"
	ConfidenceLow  Confidence = "low"
)

// Estimate describes the expected size of the unbounded result. Count is set
// only when the number is exact; Display always carries a printable form such
// as "7" or "100+".
type Estimate struct {
	Method     Method     `json:"method"`
	Count      *int64     `json:"estimated_count,omitempty"`
	Display    string     `json:"display"`
	Confidence Confidence `json:"confidence"`
}

type Preview struct {
	SQL         string    `json:"sql"`
	PreviewSQL  string    `json:"preview_sql"`
	Columns     []string  `json:"columns"`
	Rows        [][]any   `json:"rows"`
	RowCount    int       `json:"row_count"`
	DurationMS  int64     `json:"duration_ms"`
	Estimate    Estimate  `json:"estimate"`
	Cached      bool      `json:"cached"`
	Error       string    `json:"error,omitempty"`
	GeneratedAt time.Time `json:"generated_at"`
}

func (p Preview) Failed() bool {
	return p.Error != ""
}

// Fingerprint is the cache key for sql: the SHA-256 hex digest of the exact text.
func Fingerprint(sql string) string {
	sum := sha256.Sum256([]byte(sql))
	return hex.EncodeToString(sum[:])
}

type Engine struct {
	Executor query.Engine
	Rows     int
	Logger   *slog.Logger
	Clock    func() time.Time

	mu    sync.Mutex
	cache map[string]Preview
}

func NewEngine(executor query.Engine, rows int) *Engine {
	return &Engine{Executor: executor, Rows: rows}
}

// Preview never returns an error. Failures are reported through Preview.Error.
func (e *Engine) Preview(ctx context.Context, sql string, forceRefresh bool) Preview {
	key := Fingerprint(sql)
	rows := e.rowLimit()

	if !forceRefresh {
		if cached, ok := e.cached(key); ok {
			observability.ObservePreviewCache("hit")
			cached.Cached = true
			return cached
		}
	}
	observability.ObservePreviewCache("miss")

	result := Preview{SQL: sql, GeneratedAt: e.now().UTC()}
	if !safety.IsSingleReadOnly(sql) {
		result.Error = safety.ErrWriteNotAllowed
		if safety.MultipleStatements(sql) {
			result.Error = safety.ErrMultipleStatements
		}
		return result
	}
	if e.Executor == nil {
		result.Error = "no database connection"
		return result
	}

	result.PreviewSQL = limitSQL(sql, rows)
	start := time.Now()
	executed, err := e.Executor.Execute(ctx, query.Request{SQL: result.PreviewSQL, RowLimit: rows})
	elapsed := time.Since(start)
	observability.ObservePreview(elapsed)
	result.DurationMS = elapsed.Milliseconds()
	if err != nil {
		if e.Logger != nil {
			e.Logger.Warn("preview query failed", "error", err)
		}
		result.Error = fmt.Sprintf("Preview failed: %v", err)
		return result
	}

	result.Columns = executed.Columns
	result.Rows = executed.Rows
	result.RowCount = len(executed.Rows)
	result.Estimate = e.estimate(ctx, sql, result.RowCount, rows)

	e.store(key, result)
	return result
}

func (e *Engine) ClearCache() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.cache = nil
}

func (e *Engine) CacheSize() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.cache)
}

func (e *Engine) estimate(ctx context.Context, sql string, previewRows, limit int) Estimate {
	if previewRows < limit {
		return exactEstimate(MethodExact, int64(previewRows))
	}

	countSQL, ok := CountSQL(sql)
	if !ok {
		return Estimate{
			Method:     MethodExtrapolation,
			Display:    fmt.Sprintf("%d+", previewRows*10),
			Confidence: ConfidenceLow,
		}
	}

	unknown := Estimate{Method: MethodUnknown, Display: fmt.Sprintf("%d+", limit), Confidence: ConfidenceLow}
	counted, err := e.Executor.Execute(ctx, query.Request{SQL: countSQL, RowLimit: 1})
	if err != nil {
		if e.Logger != nil {
			e.Logger.Debug("count query failed", "sql", countSQL, "error", err)
		}
		return unknown
	}
	if len(counted.Rows) == 0 || len(counted.Rows[0]) == 0 {
		return unknown
	}
	total, ok := toInt64(counted.Rows[0][0])
	if !ok {
		return unknown
	}
	return exactEstimate(MethodCountQuery, total)
}

func (e *Engine) rowLimit() int {
	if e.Rows <= 0 {
		return DefaultRows
	}
	return e.Rows
}

func (e *Engine) now() time.Time {
	if e.Clock == nil {
		return time.Now()
	}
	return e.Clock()
}

func (e *Engine) cached(key string) (Preview, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	entry, ok := e.cache[key]
	return entry, ok
}

func (e *Engine) store(key string, entry Preview) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cache == nil {
		e.cache = map[string]Preview{}
	}
	e.cache[key] = entry
}

func exactEstimate(method Method, count int64) Estimate {
	return Estimate{
		Method:     method,
		Count:      &count,
		Display:    strconv.FormatInt(count, 10),
		Confidence: ConfidenceHigh,
	}
}

func toInt64(value any) (int64, bool) {
	switch typed := value.(type) {
	case int64:
		return typed, true
	case int:
		return int64(typed), true
	case int32:
		return int64(typed), true
	case uint64:
		return int64(typed), true
	case float64:
		return int64(typed), true
	case string:
		parsed, err := strconv.ParseInt(typed, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}
