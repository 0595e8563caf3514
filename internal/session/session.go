package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/preview"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/query/sqldb"
	"github.com/askdb/askdb/internal/schema"
)

var ErrNotConnected = errors.New("no database connection")

// Connection identifies the target database a session talks to.
type Connection struct {
	DB     *sql.DB
	Kind   database.Kind
	Name   string
	Schema string
	ID     string
}

type Options struct {
	QueryTimeout time.Duration
	MaxRows      int
	PreviewRows  int
	Logger       *slog.Logger
	Clock        func() time.Time
}

// Session owns the active connection, its schema snapshot and the preview
// cache. Connect and Refresh swap state under the lock so readers never see a
// snapshot that does not belong to the current connection.
type Session struct {
	logger *slog.Logger
	clock  func() time.Time
	opts   Options

	previews *preview.Engine

	mu       sync.RWMutex
	conn     Connection
	executor *sqldb.Engine
	snapshot *schema.Snapshot
}

func New(opts Options) *Session {
	s := &Session{logger: opts.Logger, clock: opts.Clock, opts: opts}
	if s.clock == nil {
		s.clock = time.Now
	}
	s.previews = preview.NewEngine(s, opts.PreviewRows)
	s.previews.Logger = opts.Logger
	s.previews.Clock = s.clock
	return s
}

// Connect introspects conn and, on success, makes it the active connection.
// The previous handle is closed when it differs from the new one.
func (s *Session) Connect(ctx context.Context, conn Connection) (*schema.Snapshot, error) {
	if conn.DB == nil {
		return nil, ErrNotConnected
	}
	snapshot, err := s.introspect(ctx, conn)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	previous := s.conn.DB
	s.conn = conn
	s.executor = sqldb.NewEngine(conn.DB, s.opts.QueryTimeout, s.opts.MaxRows)
	s.snapshot = snapshot
	s.mu.Unlock()
	s.previews.ClearCache()

	if previous != nil && previous != conn.DB {
		if err := previous.Close(); err != nil && s.logger != nil {
			s.logger.Warn("close previous connection failed", "error", err)
		}
	}
	if s.logger != nil {
		s.logger.Info("session connected", "kind", conn.Kind, "database", conn.Name, "tables", len(snapshot.Tables))
	}
	return snapshot, nil
}

// Refresh rebuilds the snapshot for the current connection. On failure the
// previous snapshot stays in place.
func (s *Session) Refresh(ctx context.Context) (*schema.Snapshot, error) {
	conn := s.Connection()
	if conn.DB == nil {
		return nil, ErrNotConnected
	}
	snapshot, err := s.introspect(ctx, conn)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.conn.DB != conn.DB {
		s.mu.Unlock()
		return nil, fmt.Errorf("refresh schema: connection changed during refresh")
	}
	s.snapshot = snapshot
	s.mu.Unlock()
	s.previews.ClearCache()
	return snapshot, nil
}

func (s *Session) introspect(ctx context.Context, conn Connection) (*schema.Snapshot, error) {
	introspector := &schema.Introspector{
		DB:           conn.DB,
		Kind:         conn.Kind,
		DatabaseName: conn.Name,
		Schema:       conn.Schema,
		ConnectionID: conn.ID,
		Logger:       s.logger,
		Clock:        s.clock,
	}
	return introspector.Introspect(ctx)
}

func (s *Session) Snapshot() *schema.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshot
}

func (s *Session) Connection() Connection {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn
}

func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.conn.DB != nil && s.snapshot != nil
}

func (s *Session) Previews() *preview.Engine {
	return s.previews
}

// Execute runs request against the current connection. It satisfies
// query.Engine so previews follow connection changes.
func (s *Session) Execute(ctx context.Context, request query.Request) (query.Result, error) {
	s.mu.RLock()
	executor := s.executor
	s.mu.RUnlock()
	if executor == nil {
		return query.Result{}, ErrNotConnected
	}
	return executor.Execute(ctx, request)
}

// Ping checks the current connection.
func (s *Session) Ping(ctx context.Context) error {
	conn := s.Connection()
	if conn.DB == nil {
		return ErrNotConnected
	}
	if err := conn.DB.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %w", schema.ErrConnection, err)
	}
	return nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	db := s.conn.DB
	s.conn = Connection{}
	s.executor = nil
	s.snapshot = nil
	s.mu.Unlock()
	s.previews.ClearCache()
	if db == nil {
		return nil
	}
	return db.Close()
}
