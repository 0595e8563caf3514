package query

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

type TableFile struct {
	TableName     string
	ObjectPath    string
	FileSizeBytes int64
}

// Request is one read-only statement. RowLimit caps the returned rows; zero
// means no cap. Files are only consulted by engines that read archived data.
type Request struct {
	SQL      string
	RowLimit int
	Files    []TableFile
}

type Result struct {
	Columns      []string      `json:"columns"`
	Rows         [][]any       `json:"rows"`
	Truncated    bool          `json:"truncated"`
	ScannedFiles int           `json:"scanned_files,omitempty"`
	ScannedBytes int64         `json:"scanned_bytes,omitempty"`
	Duration     time.Duration `json:"-"`
}

type Engine interface {
	Execute(ctx context.Context, request Request) (Result, error)
}

// ScanRows drains rows into memory. When limit is positive at most limit rows
// are kept and truncated reports whether more were available.
func ScanRows(rows *sql.Rows, limit int) (columns []string, out [][]any, truncated bool, err error) {
	columns, err = rows.Columns()
	if err != nil {
		return nil, nil, false, fmt.Errorf("query columns: %w", err)
	}

	out = make([][]any, 0)
	for rows.Next() {
		if limit > 0 && len(out) >= limit {
			truncated = true
			break
		}
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, nil, false, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, NormalizeValues(values))
	}
	if err := rows.Err(); err != nil {
		return nil, nil, false, fmt.Errorf("iterate rows: %w", err)
	}
	return columns, out, truncated, nil
}

func NormalizeValues(values []any) []any {
	normalized := make([]any, len(values))
	for i, value := range values {
		switch typed := value.(type) {
		case []byte:
			normalized[i] = string(typed)
		default:
			normalized[i] = typed
		}
	}
	return normalized
}

func StripTrailingSemicolons(sqlText string) string {
	trimmed := strings.TrimSpace(sqlText)
	for strings.HasSuffix(trimmed, ";") {
		trimmed = strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	}
	return trimmed
}
