package storage

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"
)

const HistoryArchiveRoot = "history"

var pathComponentPattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,127}$`)

// BuildHistoryArchivePath returns history/date=YYYY-MM-DD/part-<batch>-<seq>.parquet.
func BuildHistoryArchivePath(archivedAt time.Time, batchID int64, sequence int) (string, error) {
	if batchID <= 0 {
		return "", fmt.Errorf("batch id must be > 0")
	}
	if sequence < 0 {
		return "", fmt.Errorf("sequence must be >= 0")
	}
	ts := archivedAt.UTC()
	return path.Join(
		HistoryArchiveRoot,
		fmt.Sprintf("date=%04d-%02d-%02d", ts.Year(), ts.Month(), ts.Day()),
		fmt.Sprintf("part-%d-%05d.parquet", batchID, sequence),
	), nil
}

// HistoryArchivePrefix narrows a listing to one day, or to the whole archive
// when day is zero.
func HistoryArchivePrefix(day time.Time) string {
	if day.IsZero() {
		return HistoryArchiveRoot + "/"
	}
	ts := day.UTC()
	return fmt.Sprintf("%s/date=%04d-%02d-%02d/", HistoryArchiveRoot, ts.Year(), ts.Month(), ts.Day())
}

func IsParquetKey(key string) bool {
	return strings.HasSuffix(strings.ToLower(key), ".parquet")
}

func ValidatePathComponent(value, field string) error {
	if !pathComponentPattern.MatchString(value) {
		return fmt.Errorf("invalid %s: %q", field, value)
	}
	return nil
}

// HistoryArchiveDay extracts the date partition from an archive key.
func HistoryArchiveDay(key string) (time.Time, bool) {
	rest, ok := strings.CutPrefix(key, HistoryArchiveRoot+"/date=")
	if !ok {
		return time.Time{}, false
	}
	partition, _, ok := strings.Cut(rest, "/")
	if !ok {
		return time.Time{}, false
	}
	day, err := time.Parse("2006-01-02", partition)
	if err != nil {
		return time.Time{}, false
	}
	return day, true
}
