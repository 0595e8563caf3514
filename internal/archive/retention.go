package archive

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/storage"
)

type RetentionSummary struct {
	FilesScanned int `json:"files_scanned"`
	FilesDeleted int `json:"files_deleted"`
	Failures     int `json:"failures"`
}

// RunRetentionOnce deletes archive files whose date partition is older than
// Config.Retention. It is a no-op when Retention is zero.
func (s *Service) RunRetentionOnce(ctx context.Context) (RetentionSummary, error) {
	s.ensureDefaults()
	if s.Config.Retention <= 0 {
		return RetentionSummary{}, nil
	}
	if s.ObjectStore == nil {
		return RetentionSummary{}, fmt.Errorf("object store is required")
	}

	objects, err := s.ObjectStore.List(ctx, storage.HistoryArchivePrefix(time.Time{}))
	if err != nil {
		return RetentionSummary{}, fmt.Errorf("list archive objects: %w", err)
	}

	cutoff := s.Clock().UTC().Add(-s.Config.Retention)
	summary := RetentionSummary{FilesScanned: len(objects)}
	failures := make([]string, 0)
	for _, object := range objects {
		day, ok := storage.HistoryArchiveDay(object.Key)
		if !ok || !storage.IsParquetKey(object.Key) {
			continue
		}
		// A partition is expired once its whole day lies before the cutoff.
		if !day.AddDate(0, 0, 1).Before(cutoff) {
			continue
		}
		if err := s.ObjectStore.Delete(ctx, object.Key); err != nil {
			summary.Failures++
			failures = append(failures, fmt.Sprintf("delete object %s: %v", object.Key, err))
			continue
		}
		summary.FilesDeleted++
	}
	observability.AddArchiveFilesDeleted(summary.FilesDeleted)

	if s.Logger != nil && (summary.FilesDeleted > 0 || summary.Failures > 0) {
		s.Logger.InfoContext(ctx, "archive retention completed",
			slog.Int("files_scanned", summary.FilesScanned),
			slog.Int("files_deleted", summary.FilesDeleted),
			slog.Int("failures", summary.Failures),
		)
	}
	if len(failures) > 0 {
		return summary, fmt.Errorf("retention encountered %d failure(s): %s", len(failures), strings.Join(failures, "; "))
	}
	return summary, nil
}
