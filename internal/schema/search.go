package schema

import (
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

type TableMatch struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Columns     int    `json:"columns"`
	Rows        *int64 `json:"rows,omitempty"`
}

type ColumnMatch struct {
	Table       string `json:"table"`
	Column      string `json:"column"`
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	IsKey       bool   `json:"is_key"`
}

type RelationshipMatch struct {
	Direction Direction `json:"direction"`
	FromTable string    `json:"from_table"`
	ToTable   string    `json:"to_table"`
	Columns   []string  `json:"columns"`
}

type SearchResult struct {
	Tables        []TableMatch        `json:"tables"`
	Columns       []ColumnMatch       `json:"columns"`
	Relationships []RelationshipMatch `json:"relationships"`
	Suggestions   []string            `json:"suggestions"`
}

func (r SearchResult) empty() bool {
	return len(r.Tables) == 0 && len(r.Columns) == 0 && len(r.Relationships) == 0
}

const maxSearchSuggestions = 5

// Search finds tables, columns and relationships whose names contain term.
// When nothing matches it suggests the closest table and column names.
func (s *Snapshot) Search(term string) SearchResult {
	result := SearchResult{
		Tables:        []TableMatch{},
		Columns:       []ColumnMatch{},
		Relationships: []RelationshipMatch{},
		Suggestions:   []string{},
	}
	needle := strings.ToLower(strings.TrimSpace(term))
	if s == nil || needle == "" {
		return result
	}

	for _, table := range s.Tables {
		if strings.Contains(strings.ToLower(table.Name), needle) || strings.Contains(strings.ToLower(table.Description), needle) {
			result.Tables = append(result.Tables, TableMatch{
				Name:        table.Name,
				Description: table.Description,
				Columns:     len(table.Columns),
				Rows:        table.RowCount,
			})
		}
		for _, column := range table.Columns {
			if strings.Contains(strings.ToLower(column.Name), needle) {
				result.Columns = append(result.Columns, ColumnMatch{
					Table:       table.Name,
					Column:      column.Name,
					Type:        column.DataType,
					Description: column.Description,
					IsKey:       column.IsKey(),
				})
			}
		}
	}

	owners := make([]string, 0, len(s.Relationships))
	for name := range s.Relationships {
		owners = append(owners, name)
	}
	sort.Strings(owners)
	for _, owner := range owners {
		for _, rel := range s.Relationships[owner] {
			if !strings.Contains(strings.ToLower(owner), needle) &&
				!strings.Contains(strings.ToLower(rel.TargetTable), needle) &&
				!strings.Contains(strings.ToLower(rel.SourceTable), needle) {
				continue
			}
			to := rel.TargetTable
			if rel.Direction == DirectionReferencedBy {
				to = rel.SourceTable
			}
			result.Relationships = append(result.Relationships, RelationshipMatch{
				Direction: rel.Direction,
				FromTable: owner,
				ToTable:   to,
				Columns:   rel.SourceColumns,
			})
		}
	}

	if result.empty() {
		result.Suggestions = s.closestNames(needle, maxSearchSuggestions)
	}
	return result
}

func (s *Snapshot) closestNames(needle string, limit int) []string {
	type candidate struct {
		label    string
		distance int
	}
	candidates := make([]candidate, 0)
	for _, table := range s.Tables {
		candidates = append(candidates, candidate{
			label:    "Table: " + table.Name,
			distance: levenshtein.DistanceForStrings([]rune(needle), []rune(strings.ToLower(table.Name)), levenshtein.DefaultOptions),
		})
		for _, column := range table.Columns {
			candidates = append(candidates, candidate{
				label:    "Column: " + table.Name + "." + column.Name,
				distance: levenshtein.DistanceForStrings([]rune(needle), []rune(strings.ToLower(column.Name)), levenshtein.DefaultOptions),
			})
		}
	}
	threshold := len([]rune(needle))/2 + 1
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].label < candidates[j].label
	})
	out := make([]string, 0, limit)
	for _, c := range candidates {
		if c.distance > threshold || len(out) == limit {
			break
		}
		out = append(out, c.label)
	}
	return out
}
