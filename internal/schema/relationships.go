package schema

import (
	"sort"
	"strings"
)

// RelatedTables lists the tables a table references plus the tables referencing it.
func (s *Snapshot) RelatedTables(table string) []string {
	if s == nil {
		return nil
	}
	seen := make(map[string]struct{})
	for _, rel := range s.relationshipsFor(table) {
		var other string
		switch rel.Direction {
		case DirectionForeignKey:
			other = rel.TargetTable
		case DirectionReferencedBy:
			other = rel.SourceTable
		}
		if other == "" || strings.EqualFold(other, table) {
			continue
		}
		seen[other] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *Snapshot) relationshipsFor(table string) []Relationship {
	if rels, ok := s.Relationships[table]; ok {
		return rels
	}
	for name, rels := range s.Relationships {
		if strings.EqualFold(name, table) {
			return rels
		}
	}
	return nil
}

type JoinSuggestion struct {
	Type       string `json:"type"`
	Table1     string `json:"table1"`
	Table2     string `json:"table2"`
	Condition  string `json:"condition"`
	Suggestion string `json:"suggestion"`
}

// SuggestJoins proposes INNER JOINs for every pair of the given tables connected
// by a foreign key in either direction.
func (s *Snapshot) SuggestJoins(tables []string) []JoinSuggestion {
	if s == nil {
		return nil
	}
	out := make([]JoinSuggestion, 0)
	for i, left := range tables {
		for _, right := range tables[i+1:] {
			out = append(out, s.forwardJoins(left, right)...)
			out = append(out, s.forwardJoins(right, left)...)
		}
	}
	return out
}

func (s *Snapshot) forwardJoins(from, to string) []JoinSuggestion {
	out := make([]JoinSuggestion, 0)
	for _, rel := range s.relationshipsFor(from) {
		if rel.Direction != DirectionForeignKey || !strings.EqualFold(rel.TargetTable, to) {
			continue
		}
		if len(rel.SourceColumns) == 0 || len(rel.TargetColumns) == 0 {
			continue
		}
		condition := from + "." + rel.SourceColumns[0] + " = " + to + "." + rel.TargetColumns[0]
		out = append(out, JoinSuggestion{
			Type:       "INNER JOIN",
			Table1:     from,
			Table2:     to,
			Condition:  condition,
			Suggestion: "INNER JOIN " + to + " ON " + condition,
		})
	}
	return out
}
