package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	DefaultTokenBudget = 3000
	charsPerToken      = 4
	maxOtherColumns    = 5
	maxRelatedTables   = 3
	relationshipTables = 5
	truncationMarker   = "\n... (schema truncated to fit token limit)"
)

type SummaryOptions struct {
	// TokenBudget bounds the general summary, at roughly four characters per token.
	TokenBudget int
	// Tables switches to a focused summary of just these tables.
	Tables []string
}

// Summarize renders the snapshot as prompt context.
func Summarize(snapshot *Snapshot, opts SummaryOptions) string {
	if snapshot == nil {
		return ""
	}
	if len(opts.Tables) > 0 {
		return focusedSummary(snapshot, opts.Tables)
	}
	budget := opts.TokenBudget
	if budget <= 0 {
		budget = DefaultTokenBudget
	}
	return generalSummary(snapshot, budget*charsPerToken)
}

func importance(table Table) float64 {
	score := float64(3*table.PrimaryKeyCount() + 2*table.ForeignKeyCount())
	if table.RowCount != nil {
		score += float64(*table.RowCount) / 1000
	}
	return score
}

func rankTables(snapshot *Snapshot) []Table {
	ranked := append([]Table(nil), snapshot.Tables...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return importance(ranked[i]) > importance(ranked[j])
	})
	return ranked
}

func generalSummary(snapshot *Snapshot, limit int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s (%s)\nTables: %d", snapshot.DatabaseName, snapshot.Kind, len(snapshot.Tables))

	ranked := rankTables(snapshot)
	for _, table := range ranked {
		block, ok := tableBlock(table, limit-b.Len())
		if !ok || b.Len()+len(block) > limit {
			b.WriteString(truncationMarker)
			return b.String()
		}
		b.WriteString(block)
	}

	if float64(b.Len()) <= float64(limit)*0.8 {
		lines := make([]string, 0, relationshipTables)
		for _, table := range ranked[:min(relationshipTables, len(ranked))] {
			related := snapshot.RelatedTables(table.Name)
			if len(related) == 0 {
				continue
			}
			lines = append(lines, table.Name+" -> "+strings.Join(related[:min(maxRelatedTables, len(related))], ", "))
		}
		if len(lines) > 0 {
			section := "\n\nKey Relationships:\n" + strings.Join(lines, "\n")
			if b.Len()+len(section) <= limit {
				b.WriteString(section)
			}
		}
	}
	return b.String()
}

// tableBlock renders a table within room characters. Key columns are
// required: ok is false when the header and every key column cannot fit.
// Other columns, the overflow note and the row count are added while they fit.
func tableBlock(table Table, room int) (block string, ok bool) {
	var b strings.Builder
	b.WriteString("\n\nTable: " + table.Name)
	if table.Description != "" {
		b.WriteString("\n  Purpose: " + table.Description)
	}
	fits := func(line string) bool { return b.Len()+len(line) <= room }

	others := make([]Column, 0, len(table.Columns))
	for _, column := range table.Columns {
		if !column.IsKey() {
			others = append(others, column)
			continue
		}
		flags := make([]string, 0, 3)
		if column.PrimaryKey {
			flags = append(flags, "PK")
		}
		if column.ForeignKey {
			flags = append(flags, "FK→"+column.ForeignTable+"."+column.ForeignColumn)
		}
		if !column.Nullable {
			flags = append(flags, "NOT NULL")
		}
		line := "\n  - " + column.Name + ": " + column.DataType + " (" + strings.Join(flags, ", ") + ")"
		if !fits(line) {
			return "", false
		}
		b.WriteString(line)
	}
	for _, column := range others[:min(maxOtherColumns, len(others))] {
		line := "\n  - " + column.Name + ": " + column.DataType
		if !column.Nullable {
			line += " (NOT NULL)"
		}
		if !fits(line) {
			break
		}
		b.WriteString(line)
	}
	if len(others) > maxOtherColumns {
		if note := fmt.Sprintf("\n  ... and %d more columns", len(others)-maxOtherColumns); fits(note) {
			b.WriteString(note)
		}
	}
	if table.RowCount != nil {
		if line := "\n  Rows: ~" + formatCount(*table.RowCount); fits(line) {
			b.WriteString(line)
		}
	}
	return b.String(), true
}

func focusedSummary(snapshot *Snapshot, names []string) string {
	parts := make([]string, 0)
	mentioned := make(map[string]struct{}, len(names))
	for _, name := range names {
		table, ok := snapshot.Table(name)
		if !ok {
			continue
		}
		mentioned[strings.ToLower(table.Name)] = struct{}{}
		parts = append(parts, "\nTable: "+table.Name)
		if table.Description != "" {
			parts = append(parts, "  Purpose: "+table.Description)
		}
		for _, column := range table.Columns {
			flags := make([]string, 0, 3)
			if column.PrimaryKey {
				flags = append(flags, "PRIMARY KEY")
			}
			if column.ForeignKey {
				flags = append(flags, "FOREIGN KEY → "+column.ForeignTable+"."+column.ForeignColumn)
			}
			if !column.Nullable {
				flags = append(flags, "NOT NULL")
			}
			line := "  - " + column.Name + ": " + column.DataType
			if len(flags) > 0 {
				line += " (" + strings.Join(flags, ", ") + ")"
			}
			if column.Description != "" {
				line += " -- " + column.Description
			}
			parts = append(parts, line)
		}
		if table.RowCount != nil && *table.RowCount > 0 {
			parts = append(parts, "  Approximate rows: "+formatCount(*table.RowCount))
		}
	}

	related := make([]string, 0)
	seen := make(map[string]struct{})
	for _, name := range names {
		for _, other := range snapshot.RelatedTables(name) {
			key := strings.ToLower(other)
			if _, isMentioned := mentioned[key]; isMentioned {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			related = append(related, other)
		}
	}
	if len(related) > 0 {
		parts = append(parts, "\nRelated Available Tables:")
		for _, name := range related[:min(maxRelatedTables, len(related))] {
			table, ok := snapshot.Table(name)
			if !ok {
				continue
			}
			keys := make([]string, 0, 3)
			for _, column := range table.Columns {
				if column.IsKey() && len(keys) < 3 {
					keys = append(keys, column.Name+"("+column.DataType+")")
				}
			}
			parts = append(parts, "  - "+table.Name+": "+strings.Join(keys, ", "))
		}
	}
	return strings.Join(parts, "\n")
}

func formatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	negative := strings.HasPrefix(digits, "-")
	digits = strings.TrimPrefix(digits, "-")
	var b strings.Builder
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if negative {
		return "-" + b.String()
	}
	return b.String()
}
