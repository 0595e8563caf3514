package nl2sql

import (
	"fmt"
	"strings"

	"github.com/askdb/askdb/internal/intent"
	"github.com/askdb/askdb/internal/schema"
)

const (
	complexIntentScore = 7
	largeTableRows     = 100000
)

// Warnings lists performance and safety notes for a generated query.
func Warnings(snapshot *schema.Snapshot, sql string, in intent.Intent, readOnly bool) []string {
	warnings := make([]string, 0)
	if !readOnly {
		warnings = append(warnings, "This query contains write operations and will be blocked")
	}
	if in.ComplexityScore > complexIntentScore {
		warnings = append(warnings, "Complex query detected - may impact performance")
	}
	if in.RequiresJoins {
		switch tables := len(in.Tables); {
		case tables > 3:
			warnings = append(warnings, fmt.Sprintf("Multiple table JOINs (%d tables) - consider performance impact", tables))
		case tables == 2:
			warnings = append(warnings, "Tip: Ensure JOIN columns are indexed for better performance")
		}
	}

	upper := strings.ToUpper(sql)
	if strings.Contains(upper, "SELECT *") {
		warnings = append(warnings, "Consider selecting specific columns instead of * for better performance")
	}
	if strings.Contains(upper, "ORDER BY") && !strings.Contains(upper, "LIMIT") {
		warnings = append(warnings, "Consider adding LIMIT to ORDER BY queries to improve performance")
	}
	if strings.Count(upper, "SELECT") > 1 {
		warnings = append(warnings, "Subqueries detected - consider JOIN alternatives for better performance")
	}

	large := make([]string, 0)
	for _, name := range in.Tables {
		table, ok := snapshot.Table(name)
		if ok && table.RowCount != nil && *table.RowCount > largeTableRows {
			large = append(large, name)
		}
	}
	if len(large) > 0 {
		warnings = append(warnings, fmt.Sprintf("Large tables detected: %s - consider adding WHERE clauses", strings.Join(large, ", ")))
	}
	return warnings
}

// Suggestions proposes improvements to a generated query.
func Suggestions(sql string, in intent.Intent) []string {
	out := make([]string, 0)
	upper := strings.ToUpper(sql)
	if in.RequiresJoins {
		out = append(out, "Consider creating indexes on JOIN columns for better performance")
	}
	if strings.Contains(upper, "SELECT *") {
		out = append(out, "Replace SELECT * with specific column names to reduce data transfer")
	}
	if strings.Contains(upper, "ORDER BY") && !strings.Contains(upper, "LIMIT") {
		out = append(out, "Add LIMIT clause to ORDER BY queries when you don't need all results")
	}
	if len(in.Tables) > 2 {
		out = append(out, "For complex queries, consider breaking into smaller steps or using views")
	}
	return out
}

// Alternatives sketches other ways to phrase the query for the mentioned tables.
func Alternatives(snapshot *schema.Snapshot, in intent.Intent) []string {
	if len(in.Tables) == 0 {
		return []string{}
	}
	out := make([]string, 0)
	if in.Kind == intent.KindSelect && len(in.Tables) == 1 {
		name := in.Tables[0]
		columns := "column1, column2"
		sortColumn := "column_name"
		if table, ok := snapshot.Table(name); ok && len(table.Columns) > 0 {
			picked := make([]string, 0, 2)
			for _, column := range table.Columns[:min(2, len(table.Columns))] {
				picked = append(picked, column.Name)
			}
			columns = strings.Join(picked, ", ")
			sortColumn = table.Columns[0].Name
		}
		out = append(out,
			fmt.Sprintf("-- Alternative: Select specific columns\nSELECT %s FROM %s;", columns, name),
			fmt.Sprintf("-- Alternative: Add filtering\nSELECT * FROM %s WHERE condition = 'value';", name),
			fmt.Sprintf("-- Alternative: Add sorting\nSELECT * FROM %s ORDER BY %s;", name, sortColumn),
		)
	}
	if in.RequiresJoins && len(in.Tables) >= 2 {
		out = append(out,
			"-- Alternative: Use LEFT JOIN to include records with no matches",
			"-- Alternative: Use EXISTS instead of JOIN for existence checks",
		)
	}
	return out
}
