package archive

import (
	"bytes"
	"fmt"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/askdb/askdb/internal/history"
)

type EncodeResult struct {
	Data         []byte
	RecordCount  int64
	MinCreatedAt *time.Time
	MaxCreatedAt *time.Time
}

// parquetEntry is the archived row layout. Column names are what analytics
// queries see through the history view.
type parquetEntry struct {
	EntryID         int64  `parquet:"entry_id"`
	Question        string `parquet:"question"`
	SQL             string `parquet:"sql"`
	CreatedAtUnixMs int64  `parquet:"created_at_unix_ms"`
	RowCount        int64  `parquet:"row_count"`
	Success         bool   `parquet:"success"`
	Error           string `parquet:"error"`
}

func EncodeEntriesToParquet(entries []history.Entry) (EncodeResult, error) {
	if len(entries) == 0 {
		return EncodeResult{}, fmt.Errorf("entries are required")
	}

	rows := make([]parquetEntry, 0, len(entries))
	var minTime *time.Time
	var maxTime *time.Time

	for _, entry := range entries {
		if entry.ID <= 0 {
			return EncodeResult{}, fmt.Errorf("invalid entry id %d", entry.ID)
		}
		rows = append(rows, parquetEntry{
			EntryID:         entry.ID,
			Question:        entry.Question,
			SQL:             entry.SQL,
			CreatedAtUnixMs: entry.Timestamp.UnixMilli(),
			RowCount:        int64(entry.RowCount),
			Success:         entry.Success,
			Error:           entry.Error,
		})

		if entry.Timestamp.IsZero() {
			continue
		}
		createdAt := entry.Timestamp.UTC()
		if minTime == nil || createdAt.Before(*minTime) {
			copy := createdAt
			minTime = &copy
		}
		if maxTime == nil || createdAt.After(*maxTime) {
			copy := createdAt
			maxTime = &copy
		}
	}

	buf := bytes.NewBuffer(nil)
	writer := parquet.NewGenericWriter[parquetEntry](buf)
	if _, err := writer.Write(rows); err != nil {
		return EncodeResult{}, fmt.Errorf("write parquet rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		return EncodeResult{}, fmt.Errorf("close parquet writer: %w", err)
	}

	return EncodeResult{
		Data:         buf.Bytes(),
		RecordCount:  int64(len(rows)),
		MinCreatedAt: minTime,
		MaxCreatedAt: maxTime,
	}, nil
}
