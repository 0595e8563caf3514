package schema

import (
	"fmt"
	"strings"
)

type nameHint struct {
	fragments   []string
	description string
}

var columnNameHints = []nameHint{
	{fragments: []string{"id"}, description: "Identifier"},
	{fragments: []string{"name"}, description: "Name field"},
	{fragments: []string{"email"}, description: "Email address"},
	{fragments: []string{"phone"}, description: "Phone number"},
	{fragments: []string{"date"}, description: "Date field"},
	{fragments: []string{"time"}, description: "Time field"},
	{fragments: []string{"created"}, description: "Creation timestamp"},
	{fragments: []string{"updated"}, description: "Update timestamp"},
	{fragments: []string{"status"}, description: "Status field"},
	{fragments: []string{"amount", "price"}, description: "Monetary value"},
	{fragments: []string{"count", "quantity"}, description: "Quantity field"},
}

var tableNameHints = []nameHint{
	{fragments: []string{"user", "customer"}, description: "User/customer data"},
	{fragments: []string{"order"}, description: "Order/transaction data"},
	{fragments: []string{"product"}, description: "Product catalog"},
	{fragments: []string{"log"}, description: "Log data"},
	{fragments: []string{"config", "setting"}, description: "Configuration data"},
}

func matchHint(name string, hints []nameHint) string {
	lower := strings.ToLower(name)
	for _, hint := range hints {
		for _, fragment := range hint.fragments {
			if strings.Contains(lower, fragment) {
				return hint.description
			}
		}
	}
	return ""
}

func describeColumn(name string, stats ColumnStats, unique bool) string {
	parts := make([]string, 0, 2)
	if hint := matchHint(name, columnNameHints); hint != "" {
		parts = append(parts, hint)
	}
	if stats.DistinctCount > 0 && stats.TotalCount > 0 {
		switch uniqueness := stats.Uniqueness(); {
		case uniqueness > 0.95:
			parts = append(parts, "Highly unique")
		case uniqueness < 0.1:
			parts = append(parts, "Low cardinality")
		}
	}
	description := strings.Join(parts, ", ")
	if unique {
		description = strings.TrimSpace(description + " (Unique)")
	}
	return description
}

func describeTable(name string, columns []Column, rowCount *int64) string {
	parts := make([]string, 0, 3)
	if hint := matchHint(name, tableNameHints); hint != "" {
		parts = append(parts, hint)
	}
	foreignKeys := 0
	for _, column := range columns {
		if column.ForeignKey {
			foreignKeys++
		}
	}
	if foreignKeys > 0 {
		parts = append(parts, fmt.Sprintf("Has %d foreign key(s)", foreignKeys))
	}
	if rowCount != nil {
		switch {
		case *rowCount > 10000:
			parts = append(parts, "Large table")
		case *rowCount < 100:
			parts = append(parts, "Small table")
		}
	}
	if len(parts) == 0 {
		return fmt.Sprintf("Table with %d columns", len(columns))
	}
	return strings.Join(parts, ", ")
}
