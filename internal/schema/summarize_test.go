package schema

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/askdb/askdb/internal/database"
)

func TestSummarizeGeneralListsKeyColumnsFirst(t *testing.T) {
	out := Summarize(shopSnapshot(), SummaryOptions{TokenBudget: 3000})

	if !strings.HasPrefix(out, "Database: shop (sqlite)\nTables: 3") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	ordersAt := strings.Index(out, "Table: orders")
	customersAt := strings.Index(out, "Table: customers")
	if ordersAt < 0 || customersAt < 0 || ordersAt > customersAt {
		t.Fatalf("orders should rank ahead of customers:\n%s", out)
	}
	if !strings.Contains(out, "  - customer_id: INTEGER (FK→customers.customer_id, NOT NULL)") {
		t.Fatalf("missing foreign key flag:\n%s", out)
	}
	if !strings.Contains(out, "  Rows: ~12,000") {
		t.Fatalf("missing row count:\n%s", out)
	}
	if !strings.Contains(out, "Key Relationships:\norders -> customers") {
		t.Fatalf("missing relationships:\n%s", out)
	}
	if strings.Contains(out, "truncated") {
		t.Fatalf("unexpected truncation:\n%s", out)
	}
}

func TestSummarizeCapsNonKeyColumns(t *testing.T) {
	snapshot := &Snapshot{DatabaseName: "wide", Kind: database.KindSQLite}
	table := Table{Name: "wide_table"}
	for _, name := range []string{"a", "b", "c", "d", "e", "f", "g"} {
		table.Columns = append(table.Columns, Column{Name: name, DataType: "TEXT", Nullable: true})
	}
	snapshot.Tables = []Table{table}

	out := Summarize(snapshot, SummaryOptions{TokenBudget: 1000})
	if strings.Contains(out, "  - f: TEXT") {
		t.Fatalf("sixth non-key column should be omitted:\n%s", out)
	}
	if !strings.Contains(out, "... and 2 more columns") {
		t.Fatalf("missing overflow note:\n%s", out)
	}
}

func TestSummarizeRespectsBudget(t *testing.T) {
	snapshot := shopSnapshot()
	for _, budget := range []int{10, 40, 60, 100, 3000} {
		out := Summarize(snapshot, SummaryOptions{TokenBudget: budget})
		limit := budget*charsPerToken + len(truncationMarker)
		header := len("Database: shop (sqlite)\nTables: 3")
		if len(out) > limit && len(out) > header+len(truncationMarker) {
			t.Fatalf("budget %d: length %d exceeds %d:\n%s", budget, len(out), limit, out)
		}
	}
	out := Summarize(snapshot, SummaryOptions{TokenBudget: 40})
	if !strings.HasSuffix(out, truncationMarker) {
		t.Fatalf("expected truncation marker:\n%s", out)
	}
}

func TestSummarizeKeepsTableThatOnlyPartlyFits(t *testing.T) {
	table := Table{Name: "wide", Columns: []Column{{Name: "id", DataType: "INTEGER", PrimaryKey: true}}}
	for i := 0; i < 5; i++ {
		table.Columns = append(table.Columns, Column{Name: fmt.Sprintf("col_%d", i), DataType: "TEXT", Nullable: true})
	}
	snapshot := &Snapshot{DatabaseName: "wide", Kind: database.KindSQLite, Tables: []Table{table}}

	out := Summarize(snapshot, SummaryOptions{TokenBudget: 20})
	if !strings.Contains(out, "\n\nTable: wide\n  - id: INTEGER (PK, NOT NULL)") {
		t.Fatalf("table header and key column should fit:\n%s", out)
	}
	if strings.Contains(out, "col_0") {
		t.Fatalf("non-key column should be dropped once the budget is spent:\n%s", out)
	}
	if len(out) > 20*charsPerToken {
		t.Fatalf("length %d exceeds budget:\n%s", len(out), out)
	}
}

func TestSummarizeCapsRelatedTablesPerLine(t *testing.T) {
	hub := Table{Name: "hub", Columns: []Column{{Name: "id", DataType: "INTEGER", PrimaryKey: true}}}
	snapshot := &Snapshot{DatabaseName: "star", Kind: database.KindSQLite, Relationships: map[string][]Relationship{}}
	for _, name := range []string{"a", "b", "c", "d"} {
		hub.Columns = append(hub.Columns, Column{Name: name + "_id", DataType: "INTEGER", ForeignKey: true, ForeignTable: name, ForeignColumn: "id"})
		snapshot.Tables = append(snapshot.Tables, Table{Name: name})
		snapshot.Relationships["hub"] = append(snapshot.Relationships["hub"], Relationship{
			SourceTable: "hub", SourceColumns: []string{name + "_id"},
			TargetTable: name, TargetColumns: []string{"id"},
			Direction: DirectionForeignKey,
		})
	}
	snapshot.Tables = append([]Table{hub}, snapshot.Tables...)

	out := Summarize(snapshot, SummaryOptions{TokenBudget: 3000})
	if !strings.Contains(out, "Key Relationships:\nhub -> a, b, c") {
		t.Fatalf("missing relationships:\n%s", out)
	}
	if strings.Contains(out, "hub -> a, b, c, d") {
		t.Fatalf("relationship line should list at most %d tables:\n%s", maxRelatedTables, out)
	}
}

func TestSummarizeIsDeterministic(t *testing.T) {
	snapshot := shopSnapshot()
	first := Summarize(snapshot, SummaryOptions{TokenBudget: 500})
	for i := 0; i < 5; i++ {
		if got := Summarize(snapshot, SummaryOptions{TokenBudget: 500}); got != first {
			t.Fatalf("summary changed between calls:\n%s\n---\n%s", first, got)
		}
	}
}

func TestSummarizeFocusedTables(t *testing.T) {
	out := Summarize(shopSnapshot(), SummaryOptions{Tables: []string{"orders"}})

	if !strings.Contains(out, "\nTable: orders\n  Purpose: Order/transaction data") {
		t.Fatalf("missing focused header:\n%s", out)
	}
	if !strings.Contains(out, "  - customer_id: INTEGER (FOREIGN KEY → customers.customer_id, NOT NULL)") {
		t.Fatalf("missing foreign key detail:\n%s", out)
	}
	if !strings.Contains(out, "  - notes: TEXT") {
		t.Fatalf("focused summary should list every column:\n%s", out)
	}
	if !strings.Contains(out, "\nRelated Available Tables:\n  - customers: customer_id(INTEGER)") {
		t.Fatalf("missing related tables:\n%s", out)
	}
	if strings.Contains(out, "Table: products") {
		t.Fatalf("unrelated table leaked into focused summary:\n%s", out)
	}
}

func TestRelatedTablesAndJoins(t *testing.T) {
	snapshot := shopSnapshot()
	if got := snapshot.RelatedTables("customers"); !reflect.DeepEqual(got, []string{"orders"}) {
		t.Fatalf("RelatedTables(customers) = %v", got)
	}
	if got := snapshot.RelatedTables("products"); len(got) != 0 {
		t.Fatalf("RelatedTables(products) = %v", got)
	}

	joins := snapshot.SuggestJoins([]string{"customers", "orders"})
	if len(joins) != 1 {
		t.Fatalf("SuggestJoins() = %+v", joins)
	}
	want := JoinSuggestion{
		Type:       "INNER JOIN",
		Table1:     "orders",
		Table2:     "customers",
		Condition:  "orders.customer_id = customers.customer_id",
		Suggestion: "INNER JOIN customers ON orders.customer_id = customers.customer_id",
	}
	if joins[0] != want {
		t.Fatalf("SuggestJoins()[0] = %+v, want %+v", joins[0], want)
	}
}

func TestSearch(t *testing.T) {
	snapshot := shopSnapshot()

	result := snapshot.Search("customer")
	if len(result.Tables) != 1 || result.Tables[0].Name != "customers" {
		t.Fatalf("Search tables = %+v", result.Tables)
	}
	if len(result.Columns) != 2 {
		t.Fatalf("Search columns = %+v", result.Columns)
	}
	if len(result.Relationships) == 0 {
		t.Fatal("Search should match relationships")
	}
	if len(result.Suggestions) != 0 {
		t.Fatalf("Suggestions = %v, want none", result.Suggestions)
	}

	miss := snapshot.Search("custmr")
	if len(miss.Tables) != 0 || len(miss.Columns) != 0 {
		t.Fatalf("unexpected matches: %+v", miss)
	}
	if len(miss.Suggestions) == 0 || miss.Suggestions[0] != "Table: customers" {
		t.Fatalf("Suggestions = %v", miss.Suggestions)
	}
}

func shopSnapshot() *Snapshot {
	customersRows := int64(3)
	ordersRows := int64(12000)
	productsRows := int64(40)
	return &Snapshot{
		DatabaseName: "shop",
		Kind:         database.KindSQLite,
		Tables: []Table{
			{
				Name:        "orders",
				Description: "Order/transaction data",
				RowCount:    &ordersRows,
				Columns: []Column{
					{Name: "order_id", DataType: "INTEGER", PrimaryKey: true},
					{Name: "customer_id", DataType: "INTEGER", ForeignKey: true, ForeignTable: "customers", ForeignColumn: "customer_id"},
					{Name: "total_amount", DataType: "REAL", Nullable: true},
					{Name: "notes", DataType: "TEXT", Nullable: true},
				},
			},
			{
				Name:        "customers",
				Description: "User/customer data",
				RowCount:    &customersRows,
				Columns: []Column{
					{Name: "customer_id", DataType: "INTEGER", PrimaryKey: true},
					{Name: "first_name", DataType: "TEXT"},
					{Name: "last_name", DataType: "TEXT"},
					{Name: "email", DataType: "TEXT", Nullable: true},
				},
			},
			{
				Name:     "products",
				RowCount: &productsRows,
				Columns: []Column{
					{Name: "sku", DataType: "TEXT", Nullable: true},
					{Name: "price", DataType: "REAL", Nullable: true},
				},
			},
		},
		Relationships: map[string][]Relationship{
			"orders": {{
				SourceTable: "orders", SourceColumns: []string{"customer_id"},
				TargetTable: "customers", TargetColumns: []string{"customer_id"},
				Direction: DirectionForeignKey,
			}},
			"customers": {{
				SourceTable: "orders", SourceColumns: []string{"customer_id"},
				TargetTable: "customers", TargetColumns: []string{"customer_id"},
				Direction: DirectionReferencedBy,
			}},
		},
	}
}
