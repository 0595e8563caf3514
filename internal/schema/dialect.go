package schema

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/database"
)

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rawColumn struct {
	Name       string
	Type       string
	Nullable   bool
	Default    *string
	PrimaryKey bool
}

type foreignKey struct {
	Constraint string
	Column     string
	RefTable   string
	RefColumn  string
}

type tableCatalog struct {
	Columns     []rawColumn
	ForeignKeys []foreignKey
	Unique      map[string]bool
}

type dialect interface {
	listTables(ctx context.Context, q querier) ([]string, error)
	describeTable(ctx context.Context, q querier, table string) (tableCatalog, error)
	qualify(table string) string
	quote(identifier string) string
}

func dialectFor(kind database.Kind, schemaName string) (dialect, error) {
	switch kind {
	case database.KindSQLite:
		return sqliteDialect{}, nil
	case database.KindMySQL:
		return mysqlDialect{}, nil
	case database.KindPostgres:
		if strings.TrimSpace(schemaName) == "" {
			schemaName = "public"
		}
		return postgresDialect{schema: schemaName}, nil
	default:
		return nil, fmt.Errorf("unsupported database kind %q", kind)
	}
}

func collectStrings(rows *sql.Rows) ([]string, error) {
	defer func() { _ = rows.Close() }()
	out := make([]string, 0)
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func nullableString(value sql.NullString) *string {
	if !value.Valid {
		return nil
	}
	out := value.String
	return &out
}

type sqliteDialect struct{}

func (sqliteDialect) quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (d sqliteDialect) qualify(table string) string {
	return d.quote(table)
}

func (sqliteDialect) listTables(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (d sqliteDialect) describeTable(ctx context.Context, q querier, table string) (tableCatalog, error) {
	columns, err := d.columns(ctx, q, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read columns: %w", err)
	}
	foreignKeys, err := d.foreignKeys(ctx, q, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read foreign keys: %w", err)
	}
	unique, err := d.uniqueColumns(ctx, q, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read unique constraints: %w", err)
	}
	return tableCatalog{Columns: columns, ForeignKeys: foreignKeys, Unique: unique}, nil
}

func (d sqliteDialect) columns(ctx context.Context, q querier, table string) ([]rawColumn, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA table_info("+d.quote(table)+")")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]rawColumn, 0)
	for rows.Next() {
		var (
			cid        int
			name       string
			columnType string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &columnType, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		out = append(out, rawColumn{
			Name:       name,
			Type:       columnType,
			Nullable:   notNull == 0 && pk == 0,
			Default:    nullableString(defaultVal),
			PrimaryKey: pk > 0,
		})
	}
	return out, rows.Err()
}

func (d sqliteDialect) foreignKeys(ctx context.Context, q querier, table string) ([]foreignKey, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA foreign_key_list("+d.quote(table)+")")
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := make([]foreignKey, 0)
	for rows.Next() {
		var (
			id       int
			seq      int
			refTable string
			from     string
			to       sql.NullString
			onUpdate string
			onDelete string
			match    string
		)
		if err := rows.Scan(&id, &seq, &refTable, &from, &to, &onUpdate, &onDelete, &match); err != nil {
			return nil, err
		}
		out = append(out, foreignKey{
			Constraint: fmt.Sprintf("fk_%d", id),
			Column:     from,
			RefTable:   refTable,
			RefColumn:  to.String,
		})
	}
	return out, rows.Err()
}

func (d sqliteDialect) uniqueColumns(ctx context.Context, q querier, table string) (map[string]bool, error) {
	rows, err := q.QueryContext(ctx, "PRAGMA index_list("+d.quote(table)+")")
	if err != nil {
		return nil, err
	}
	indexes := make([]string, 0)
	for rows.Next() {
		var (
			seq     int
			name    string
			unique  int
			origin  string
			partial int
		)
		if err := rows.Scan(&seq, &name, &unique, &origin, &partial); err != nil {
			_ = rows.Close()
			return nil, err
		}
		if unique == 1 && origin != "pk" {
			indexes = append(indexes, name)
		}
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	_ = rows.Close()

	out := make(map[string]bool)
	for _, index := range indexes {
		infoRows, err := q.QueryContext(ctx, "PRAGMA index_info("+d.quote(index)+")")
		if err != nil {
			return nil, err
		}
		for infoRows.Next() {
			var (
				seqNo int
				cid   int
				name  sql.NullString
			)
			if err := infoRows.Scan(&seqNo, &cid, &name); err != nil {
				_ = infoRows.Close()
				return nil, err
			}
			if name.Valid {
				out[name.String] = true
			}
		}
		if err := infoRows.Err(); err != nil {
			_ = infoRows.Close()
			return nil, err
		}
		_ = infoRows.Close()
	}
	return out, nil
}

type mysqlDialect struct{}

func (mysqlDialect) quote(identifier string) string {
	return "`" + strings.ReplaceAll(identifier, "`", "``") + "`"
}

func (d mysqlDialect) qualify(table string) string {
	return d.quote(table)
}

func (mysqlDialect) listTables(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = DATABASE() AND table_type = 'BASE TABLE' ORDER BY table_name`)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (mysqlDialect) describeTable(ctx context.Context, q querier, table string) (tableCatalog, error) {
	rows, err := q.QueryContext(ctx, `SELECT column_name, column_type, is_nullable, column_default, column_key
FROM information_schema.columns
WHERE table_schema = DATABASE() AND table_name = ?
ORDER BY ordinal_position`, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read columns: %w", err)
	}
	defer func() { _ = rows.Close() }()

	catalog := tableCatalog{Unique: make(map[string]bool)}
	for rows.Next() {
		var (
			name       string
			columnType string
			nullable   string
			defaultVal sql.NullString
			key        string
		)
		if err := rows.Scan(&name, &columnType, &nullable, &defaultVal, &key); err != nil {
			return tableCatalog{}, fmt.Errorf("scan column: %w", err)
		}
		if key == "UNI" {
			catalog.Unique[name] = true
		}
		catalog.Columns = append(catalog.Columns, rawColumn{
			Name:       name,
			Type:       columnType,
			Nullable:   strings.EqualFold(nullable, "YES"),
			Default:    nullableString(defaultVal),
			PrimaryKey: key == "PRI",
		})
	}
	if err := rows.Err(); err != nil {
		return tableCatalog{}, fmt.Errorf("iterate columns: %w", err)
	}
	_ = rows.Close()

	fkRows, err := q.QueryContext(ctx, `SELECT constraint_name, column_name, referenced_table_name, referenced_column_name
FROM information_schema.key_column_usage
WHERE table_schema = DATABASE() AND table_name = ? AND referenced_table_name IS NOT NULL
ORDER BY constraint_name, ordinal_position`, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read foreign keys: %w", err)
	}
	defer func() { _ = fkRows.Close() }()
	for fkRows.Next() {
		var fk foreignKey
		if err := fkRows.Scan(&fk.Constraint, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return tableCatalog{}, fmt.Errorf("scan foreign key: %w", err)
		}
		catalog.ForeignKeys = append(catalog.ForeignKeys, fk)
	}
	if err := fkRows.Err(); err != nil {
		return tableCatalog{}, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return catalog, nil
}

type postgresDialect struct {
	schema string
}

func (postgresDialect) quote(identifier string) string {
	return `"` + strings.ReplaceAll(identifier, `"`, `""`) + `"`
}

func (d postgresDialect) qualify(table string) string {
	return d.quote(d.schema) + "." + d.quote(table)
}

func (d postgresDialect) listTables(ctx context.Context, q querier) ([]string, error) {
	rows, err := q.QueryContext(ctx, `SELECT table_name FROM information_schema.tables WHERE table_schema = $1 AND table_type = 'BASE TABLE' ORDER BY table_name`, d.schema)
	if err != nil {
		return nil, err
	}
	return collectStrings(rows)
}

func (d postgresDialect) describeTable(ctx context.Context, q querier, table string) (tableCatalog, error) {
	catalog := tableCatalog{Unique: make(map[string]bool)}
	primary := make(map[string]bool)

	constraintRows, err := q.QueryContext(ctx, `SELECT kcu.column_name, tc.constraint_type
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type IN ('PRIMARY KEY', 'UNIQUE')`, d.schema, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read key constraints: %w", err)
	}
	for constraintRows.Next() {
		var column, constraintType string
		if err := constraintRows.Scan(&column, &constraintType); err != nil {
			_ = constraintRows.Close()
			return tableCatalog{}, fmt.Errorf("scan key constraint: %w", err)
		}
		if constraintType == "PRIMARY KEY" {
			primary[column] = true
		} else {
			catalog.Unique[column] = true
		}
	}
	if err := constraintRows.Err(); err != nil {
		_ = constraintRows.Close()
		return tableCatalog{}, fmt.Errorf("iterate key constraints: %w", err)
	}
	_ = constraintRows.Close()

	rows, err := q.QueryContext(ctx, `SELECT column_name, data_type, character_maximum_length, is_nullable, column_default
FROM information_schema.columns
WHERE table_schema = $1 AND table_name = $2
ORDER BY ordinal_position`, d.schema, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read columns: %w", err)
	}
	for rows.Next() {
		var (
			name       string
			dataType   string
			maxLength  sql.NullInt64
			nullable   string
			defaultVal sql.NullString
		)
		if err := rows.Scan(&name, &dataType, &maxLength, &nullable, &defaultVal); err != nil {
			_ = rows.Close()
			return tableCatalog{}, fmt.Errorf("scan column: %w", err)
		}
		rawType := dataType
		if maxLength.Valid {
			rawType = fmt.Sprintf("%s(%d)", dataType, maxLength.Int64)
		}
		catalog.Columns = append(catalog.Columns, rawColumn{
			Name:       name,
			Type:       rawType,
			Nullable:   strings.EqualFold(nullable, "YES"),
			Default:    nullableString(defaultVal),
			PrimaryKey: primary[name],
		})
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return tableCatalog{}, fmt.Errorf("iterate columns: %w", err)
	}
	_ = rows.Close()

	fkRows, err := q.QueryContext(ctx, `SELECT tc.constraint_name, kcu.column_name, ccu.table_name, ccu.column_name
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND tc.table_name = $2
ORDER BY tc.constraint_name, kcu.ordinal_position`, d.schema, table)
	if err != nil {
		return tableCatalog{}, fmt.Errorf("read foreign keys: %w", err)
	}
	defer func() { _ = fkRows.Close() }()
	for fkRows.Next() {
		var fk foreignKey
		if err := fkRows.Scan(&fk.Constraint, &fk.Column, &fk.RefTable, &fk.RefColumn); err != nil {
			return tableCatalog{}, fmt.Errorf("scan foreign key: %w", err)
		}
		catalog.ForeignKeys = append(catalog.ForeignKeys, fk)
	}
	if err := fkRows.Err(); err != nil {
		return tableCatalog{}, fmt.Errorf("iterate foreign keys: %w", err)
	}
	return catalog, nil
}
