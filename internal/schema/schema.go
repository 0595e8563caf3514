package schema

import (
	"errors"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/database"
)

// ErrConnection marks failures that prevent a snapshot from being produced at all.
var ErrConnection = errors.New("schema: connection failure")

type ColumnStats struct {
	DistinctCount int64 `json:"distinct_count"`
	NullCount     int64 `json:"null_count"`
	TotalCount    int64 `json:"total_count"`
}

// Uniqueness is the distinct/total ratio, zero for empty tables.
func (s ColumnStats) Uniqueness() float64 {
	if s.TotalCount <= 0 {
		return 0
	}
	return float64(s.DistinctCount) / float64(s.TotalCount)
}

type Column struct {
	Name          string      `json:"name"`
	DataType      string      `json:"data_type"`
	RawType       string      `json:"raw_type"`
	Nullable      bool        `json:"nullable"`
	PrimaryKey    bool        `json:"primary_key"`
	ForeignKey    bool        `json:"foreign_key"`
	ForeignTable  string      `json:"foreign_table,omitempty"`
	ForeignColumn string      `json:"foreign_column,omitempty"`
	Unique        bool        `json:"unique"`
	Default       *string     `json:"default,omitempty"`
	MaxLength     *int        `json:"max_length,omitempty"`
	Description   string      `json:"description,omitempty"`
	Stats         ColumnStats `json:"stats"`
}

func (c Column) IsKey() bool {
	return c.PrimaryKey || c.ForeignKey
}

type Table struct {
	Name        string   `json:"name"`
	Columns     []Column `json:"columns"`
	RowCount    *int64   `json:"row_count,omitempty"`
	Description string   `json:"description,omitempty"`
}

func (t Table) PrimaryKeyCount() int {
	count := 0
	for _, column := range t.Columns {
		if column.PrimaryKey {
			count++
		}
	}
	return count
}

func (t Table) ForeignKeyCount() int {
	count := 0
	for _, column := range t.Columns {
		if column.ForeignKey {
			count++
		}
	}
	return count
}

func (t Table) Column(name string) (Column, bool) {
	for _, column := range t.Columns {
		if strings.EqualFold(column.Name, name) {
			return column, true
		}
	}
	return Column{}, false
}

type Direction string

const (
	DirectionForeignKey   Direction = "foreign_key"
	DirectionReferencedBy Direction = "referenced_by"
)

type Relationship struct {
	SourceTable   string    `json:"source_table"`
	SourceColumns []string  `json:"source_columns"`
	TargetTable   string    `json:"target_table"`
	TargetColumns []string  `json:"target_columns"`
	Direction     Direction `json:"direction"`
}

// Snapshot is one introspection pass. It is never mutated after Introspect returns;
// a refresh builds a new one.
type Snapshot struct {
	DatabaseName  string                    `json:"database_name"`
	Kind          database.Kind             `json:"kind"`
	Tables        []Table                   `json:"tables"`
	ConnectionID  string                    `json:"connection_id"`
	Relationships map[string][]Relationship `json:"relationships"`
	CapturedAt    time.Time                 `json:"captured_at"`
}

func (s *Snapshot) TableNames() []string {
	if s == nil {
		return nil
	}
	names := make([]string, 0, len(s.Tables))
	for _, table := range s.Tables {
		names = append(names, table.Name)
	}
	return names
}

func (s *Snapshot) Table(name string) (Table, bool) {
	if s == nil {
		return Table{}, false
	}
	for _, table := range s.Tables {
		if strings.EqualFold(table.Name, name) {
			return table, true
		}
	}
	return Table{}, false
}
