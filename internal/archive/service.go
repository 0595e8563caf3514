// Package archive moves query history into Parquet files on object storage
// and answers read-only analytics queries over them.
package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/storage"
)

type Service struct {
	Source      history.ArchiveSource
	ObjectStore storage.ObjectStore
	Config      Config
	Logger      *slog.Logger
	Clock       func() time.Time
}

type Config struct {
	PollInterval time.Duration
	BatchLimit   int
	// Retention bounds how long archive files are kept. Zero keeps them.
	Retention time.Duration
}

func (s *Service) Run(ctx context.Context) error {
	s.ensureDefaults()

	ticker := time.NewTicker(s.Config.PollInterval)
	defer ticker.Stop()

	for {
		if _, err := s.ProcessOnce(ctx); err != nil {
			if s.Logger != nil {
				s.Logger.ErrorContext(ctx, "archive cycle failed", slog.Any("error", err))
			}
		}
		if _, err := s.RunRetentionOnce(ctx); err != nil {
			if s.Logger != nil {
				s.Logger.ErrorContext(ctx, "archive retention failed", slog.Any("error", err))
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// ProcessOnce archives one batch of entries and returns how many were written.
func (s *Service) ProcessOnce(ctx context.Context) (int, error) {
	s.ensureDefaults()
	if s.Source == nil || s.ObjectStore == nil {
		return 0, fmt.Errorf("archive source and object store are required")
	}

	entries, err := s.Source.ListUnarchived(ctx, s.Config.BatchLimit)
	if err != nil {
		return 0, fmt.Errorf("list unarchived entries: %w", err)
	}
	if len(entries) == 0 {
		return 0, nil
	}

	encoded, err := EncodeEntriesToParquet(entries)
	if err != nil {
		return 0, fmt.Errorf("encode entries to parquet: %w", err)
	}

	now := s.Clock().UTC()
	objectPath, err := storage.BuildHistoryArchivePath(now, entries[0].ID, 0)
	if err != nil {
		return 0, fmt.Errorf("build archive path: %w", err)
	}

	putInfo, err := s.ObjectStore.Put(ctx, objectPath, bytes.NewReader(encoded.Data), int64(len(encoded.Data)), storage.PutOptions{ContentType: "application/octet-stream"})
	if err != nil {
		return 0, fmt.Errorf("put parquet object: %w", err)
	}

	ids := make([]int64, 0, len(entries))
	for _, entry := range entries {
		ids = append(ids, entry.ID)
	}
	if err := s.Source.MarkArchived(ctx, ids, objectPath, now); err != nil {
		return 0, fmt.Errorf("mark entries archived: %w", err)
	}
	observability.AddHistoryArchived(len(entries))

	if s.Logger != nil {
		s.Logger.InfoContext(ctx, "archived history batch",
			slog.Int("entry_count", len(entries)),
			slog.Int64("first_entry_id", ids[0]),
			slog.Int64("last_entry_id", ids[len(ids)-1]),
			slog.Int64("size_bytes", putInfo.Size),
			slog.String("object_path", objectPath),
		)
	}
	return len(entries), nil
}

func (s *Service) ensureDefaults() {
	if s.Clock == nil {
		s.Clock = time.Now
	}
	if s.Config.BatchLimit <= 0 {
		s.Config.BatchLimit = 500
	}
	if s.Config.PollInterval <= 0 {
		s.Config.PollInterval = time.Minute
	}
}
