// Package history records asked questions and saved favorite queries.
package history

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrNotFound = errors.New("history: not found")

// DefaultLimit is the number of entries kept by the in-memory store and
// returned by List when no limit is given.
const DefaultLimit = 50

type Entry struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Timestamp time.Time `json:"timestamp"`
	RowCount  int       `json:"row_count"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

type Favorite struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	SQL       string    `json:"sql"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags"`
}

type Store interface {
	AddEntry(ctx context.Context, entry Entry) (Entry, error)
	ListEntries(ctx context.Context, limit int) ([]Entry, error)
	ClearEntries(ctx context.Context) error
	AddFavorite(ctx context.Context, favorite Favorite) (Favorite, error)
	ListFavorites(ctx context.Context) ([]Favorite, error)
	DeleteFavorite(ctx context.Context, id int64) error
}

// ArchiveSource is implemented by stores whose entries can be moved to the
// Parquet archive.
type ArchiveSource interface {
	ListUnarchived(ctx context.Context, limit int) ([]Entry, error)
	MarkArchived(ctx context.Context, ids []int64, objectPath string, archivedAt time.Time) error
}

// NormalizeTags trims, lowercases and dedupes tags while keeping their order.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := map[string]struct{}{}
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	return out
}
