package schema

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/database"
	"github.com/askdb/askdb/internal/observability"
)

// Introspector builds a Snapshot from a live connection's catalog.
type Introspector struct {
	DB           querier
	Kind         database.Kind
	DatabaseName string
	Schema       string
	ConnectionID string
	Logger       *slog.Logger
	Clock        func() time.Time
}

func (i *Introspector) Introspect(ctx context.Context) (*Snapshot, error) {
	if i.DB == nil {
		return nil, fmt.Errorf("%w: database handle is nil", ErrConnection)
	}
	clock := i.Clock
	if clock == nil {
		clock = time.Now
	}
	d, err := dialectFor(i.Kind, i.Schema)
	if err != nil {
		return nil, err
	}

	started := time.Now()
	names, err := d.listTables(ctx, i.DB)
	if err != nil {
		return nil, fmt.Errorf("%w: list tables: %w", ErrConnection, err)
	}

	tables := make([]Table, 0, len(names))
	catalogs := make(map[string]tableCatalog, len(names))
	for _, name := range names {
		catalog, err := d.describeTable(ctx, i.DB, name)
		if err != nil {
			if i.Logger != nil {
				i.Logger.WarnContext(ctx, "table analysis failed", slog.String("table", name), slog.Any("error", err))
			}
			tables = append(tables, Table{Name: name, Columns: []Column{}, Description: "Analysis failed: " + err.Error()})
			continue
		}
		catalogs[name] = catalog
		tables = append(tables, i.buildTable(ctx, d, name, catalog))
	}

	sort.SliceStable(tables, func(a, b int) bool {
		left := tables[a].PrimaryKeyCount() + tables[a].ForeignKeyCount()
		right := tables[b].PrimaryKeyCount() + tables[b].ForeignKeyCount()
		if left != right {
			return left > right
		}
		return tables[a].Name < tables[b].Name
	})

	snapshot := &Snapshot{
		DatabaseName:  i.DatabaseName,
		Kind:          i.Kind,
		Tables:        tables,
		ConnectionID:  i.ConnectionID,
		Relationships: buildRelationships(names, catalogs),
		CapturedAt:    clock().UTC(),
	}
	observability.ObserveIntrospection(time.Since(started), len(tables))
	return snapshot, nil
}

func (i *Introspector) buildTable(ctx context.Context, d dialect, name string, catalog tableCatalog) Table {
	rowCount := i.rowCount(ctx, d, name)
	stats := i.columnStats(ctx, d, name, catalog.Columns)

	references := make(map[string]foreignKey, len(catalog.ForeignKeys))
	for _, fk := range catalog.ForeignKeys {
		if _, exists := references[fk.Column]; !exists {
			references[fk.Column] = fk
		}
	}

	columns := make([]Column, 0, len(catalog.Columns))
	for idx, raw := range catalog.Columns {
		column := Column{
			Name:       raw.Name,
			DataType:   NormalizeType(raw.Type),
			RawType:    raw.Type,
			Nullable:   raw.Nullable,
			PrimaryKey: raw.PrimaryKey,
			Unique:     catalog.Unique[raw.Name],
			Default:    raw.Default,
			MaxLength:  MaxLength(raw.Type),
			Stats:      stats[idx],
		}
		if fk, ok := references[raw.Name]; ok {
			column.ForeignKey = true
			column.ForeignTable = fk.RefTable
			column.ForeignColumn = fk.RefColumn
		}
		column.Description = describeColumn(column.Name, column.Stats, column.Unique)
		columns = append(columns, column)
	}

	return Table{
		Name:        name,
		Columns:     columns,
		RowCount:    rowCount,
		Description: describeTable(name, columns, rowCount),
	}
}

func (i *Introspector) rowCount(ctx context.Context, d dialect, table string) *int64 {
	var count int64
	if err := i.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+d.qualify(table)).Scan(&count); err != nil {
		if i.Logger != nil {
			i.Logger.DebugContext(ctx, "row count unavailable", slog.String("table", table), slog.Any("error", err))
		}
		return nil
	}
	return &count
}

// columnStats gathers distinct and null counts for every column in one aggregate
// query, retrying column by column when the batched form is rejected.
func (i *Introspector) columnStats(ctx context.Context, d dialect, table string, columns []rawColumn) []ColumnStats {
	stats := make([]ColumnStats, len(columns))
	if len(columns) == 0 {
		return stats
	}

	expressions := []string{"COUNT(*)"}
	for _, column := range columns {
		expressions = append(expressions, statExpressions(d, column.Name)...)
	}
	values := make([]sql.NullInt64, len(expressions))
	targets := make([]any, len(values))
	for idx := range values {
		targets[idx] = &values[idx]
	}
	query := "SELECT " + strings.Join(expressions, ", ") + " FROM " + d.qualify(table)
	err := i.DB.QueryRowContext(ctx, query).Scan(targets...)
	if err == nil {
		total := values[0].Int64
		for idx := range columns {
			stats[idx] = ColumnStats{
				DistinctCount: values[1+idx*2].Int64,
				NullCount:     values[2+idx*2].Int64,
				TotalCount:    total,
			}
		}
		return stats
	}
	if i.Logger != nil {
		i.Logger.DebugContext(ctx, "batched column statistics failed", slog.String("table", table), slog.Any("error", err))
	}

	for idx, column := range columns {
		var distinct, nulls, total sql.NullInt64
		columnQuery := "SELECT " + strings.Join(statExpressions(d, column.Name), ", ") + ", COUNT(*) FROM " + d.qualify(table)
		if err := i.DB.QueryRowContext(ctx, columnQuery).Scan(&distinct, &nulls, &total); err != nil {
			continue
		}
		stats[idx] = ColumnStats{DistinctCount: distinct.Int64, NullCount: nulls.Int64, TotalCount: total.Int64}
	}
	return stats
}

func statExpressions(d dialect, column string) []string {
	quoted := d.quote(column)
	return []string{
		"COUNT(DISTINCT " + quoted + ")",
		"COUNT(*) - COUNT(" + quoted + ")",
	}
}

func buildRelationships(tables []string, catalogs map[string]tableCatalog) map[string][]Relationship {
	out := make(map[string][]Relationship)
	for _, table := range tables {
		catalog, ok := catalogs[table]
		if !ok {
			continue
		}
		for _, group := range groupForeignKeys(catalog.ForeignKeys) {
			source := make([]string, 0, len(group))
			target := make([]string, 0, len(group))
			for _, fk := range group {
				source = append(source, fk.Column)
				target = append(target, fk.RefColumn)
			}
			refTable := group[0].RefTable
			out[table] = append(out[table], Relationship{
				SourceTable:   table,
				SourceColumns: source,
				TargetTable:   refTable,
				TargetColumns: target,
				Direction:     DirectionForeignKey,
			})
			out[refTable] = append(out[refTable], Relationship{
				SourceTable:   table,
				SourceColumns: append([]string(nil), source...),
				TargetTable:   refTable,
				TargetColumns: append([]string(nil), target...),
				Direction:     DirectionReferencedBy,
			})
		}
	}
	return out
}

func groupForeignKeys(keys []foreignKey) [][]foreignKey {
	groups := make([][]foreignKey, 0)
	index := make(map[string]int)
	for _, fk := range keys {
		key := fk.Constraint + "\x00" + fk.RefTable
		pos, ok := index[key]
		if !ok {
			pos = len(groups)
			index[key] = pos
			groups = append(groups, nil)
		}
		groups[pos] = append(groups[pos], fk)
	}
	return groups
}
