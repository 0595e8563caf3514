package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
)

// Kind is the closed set of database families the assistant can introspect.
type Kind string

const (
	KindSQLite   Kind = "sqlite"
	KindMySQL    Kind = "mysql"
	KindPostgres Kind = "postgres"
)

func ParseKind(raw string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case KindSQLite, "sqlite3":
		return KindSQLite, nil
	case KindMySQL, "mariadb":
		return KindMySQL, nil
	case KindPostgres, "postgresql", "pgx":
		return KindPostgres, nil
	default:
		return "", fmt.Errorf("unsupported database kind %q", raw)
	}
}

// DriverName returns the database/sql driver registered for the kind.
func (k Kind) DriverName() string {
	switch k {
	case KindSQLite:
		return "sqlite3"
	case KindMySQL:
		return "mysql"
	case KindPostgres:
		return "pgx"
	default:
		return ""
	}
}

type Config struct {
	Kind            Kind
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
	PingTimeout     time.Duration
}

func Open(ctx context.Context, cfg Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("database dsn is required")
	}
	driver := cfg.Kind.DriverName()
	if driver == "" {
		return nil, fmt.Errorf("unsupported database kind %q", cfg.Kind)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", cfg.Kind, err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingTimeout := cfg.PingTimeout
	if pingTimeout <= 0 {
		pingTimeout = 5 * time.Second
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", cfg.Kind, err)
	}

	return db, nil
}

// NameFromDSN derives a display name for the connected database.
func NameFromDSN(kind Kind, dsn string) string {
	dsn = strings.TrimSpace(dsn)
	switch kind {
	case KindSQLite:
		name := strings.TrimPrefix(dsn, "file:")
		if idx := strings.Index(name, "?"); idx >= 0 {
			name = name[:idx]
		}
		if idx := strings.LastIndexAny(name, `/\`); idx >= 0 {
			name = name[idx+1:]
		}
		return strings.TrimSuffix(strings.TrimSuffix(name, ".db"), ".sqlite")
	case KindMySQL:
		if idx := strings.LastIndex(dsn, "/"); idx >= 0 {
			name := dsn[idx+1:]
			if q := strings.Index(name, "?"); q >= 0 {
				name = name[:q]
			}
			return name
		}
	case KindPostgres:
		if strings.Contains(dsn, "://") {
			rest := dsn[strings.Index(dsn, "://")+3:]
			if idx := strings.Index(rest, "/"); idx >= 0 {
				name := rest[idx+1:]
				if q := strings.Index(name, "?"); q >= 0 {
					name = name[:q]
				}
				return name
			}
			return ""
		}
		for _, part := range strings.Fields(dsn) {
			if value, ok := strings.CutPrefix(part, "dbname="); ok {
				return value
			}
		}
	}
	return ""
}
