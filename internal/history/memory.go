package history

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// MemoryStore keeps the newest Limit entries. Entries evicted from memory are
// never archived.
type MemoryStore struct {
	Limit int
	Clock func() time.Time

	mu        sync.Mutex
	nextID    int64
	entries   []Entry
	archived  map[int64]string
	favorites []Favorite
}

func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{Limit: limit}
}

func (m *MemoryStore) AddEntry(_ context.Context, entry Entry) (Entry, error) {
	if strings.TrimSpace(entry.SQL) == "" && strings.TrimSpace(entry.Question) == "" {
		return Entry{}, fmt.Errorf("entry requires a question or sql")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	entry.ID = m.nextID
	if entry.Timestamp.IsZero() {
		entry.Timestamp = m.now()
	}
	m.entries = append([]Entry{entry}, m.entries...)
	if limit := m.limit(); len(m.entries) > limit {
		for _, evicted := range m.entries[limit:] {
			delete(m.archived, evicted.ID)
		}
		m.entries = m.entries[:limit]
	}
	return entry, nil
}

func (m *MemoryStore) ListEntries(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit <= 0 || limit > len(m.entries) {
		limit = len(m.entries)
	}
	return append([]Entry(nil), m.entries[:limit]...), nil
}

func (m *MemoryStore) ClearEntries(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = nil
	m.archived = nil
	return nil
}

func (m *MemoryStore) AddFavorite(_ context.Context, favorite Favorite) (Favorite, error) {
	if strings.TrimSpace(favorite.SQL) == "" {
		return Favorite{}, fmt.Errorf("favorite sql is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	favorite.ID = m.nextID
	favorite.Tags = NormalizeTags(favorite.Tags)
	if favorite.Timestamp.IsZero() {
		favorite.Timestamp = m.now()
	}
	m.favorites = append([]Favorite{favorite}, m.favorites...)
	return favorite, nil
}

func (m *MemoryStore) ListFavorites(context.Context) ([]Favorite, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Favorite(nil), m.favorites...), nil
}

func (m *MemoryStore) DeleteFavorite(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, favorite := range m.favorites {
		if favorite.ID == id {
			m.favorites = append(m.favorites[:i], m.favorites[i+1:]...)
			return nil
		}
	}
	return ErrNotFound
}

// ListUnarchived returns entries oldest first.
func (m *MemoryStore) ListUnarchived(_ context.Context, limit int) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Entry, 0)
	for i := len(m.entries) - 1; i >= 0; i-- {
		if _, done := m.archived[m.entries[i].ID]; done {
			continue
		}
		out = append(out, m.entries[i])
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (m *MemoryStore) MarkArchived(_ context.Context, ids []int64, objectPath string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.archived == nil {
		m.archived = map[int64]string{}
	}
	for _, id := range ids {
		m.archived[id] = objectPath
	}
	return nil
}

func (m *MemoryStore) limit() int {
	if m.Limit <= 0 {
		return DefaultLimit
	}
	return m.Limit
}

func (m *MemoryStore) now() time.Time {
	if m.Clock == nil {
		return time.Now().UTC()
	}
	return m.Clock().UTC()
}
