// Package intent classifies a natural-language question with keyword heuristics.
package intent

import (
	"math"
	"strings"

	"github.com/askdb/askdb/internal/schema"
)

type Kind string

const (
	KindSelect  Kind = "SELECT"
	KindInsert  Kind = "INSERT"
	KindUpdate  Kind = "UPDATE"
	KindDelete  Kind = "DELETE"
	KindCreate  Kind = "CREATE"
	KindDrop    Kind = "DROP"
	KindUnknown Kind = "UNKNOWN"
)

type Intent struct {
	Kind            Kind     `json:"query_type"`
	Confidence      float64  `json:"confidence"`
	Tables          []string `json:"tables_mentioned"`
	Columns         []string `json:"columns_mentioned"`
	RequiresJoins   bool     `json:"requires_joins"`
	ComplexityScore int      `json:"complexity_score"`
}

type keywordFamily struct {
	kind     Kind
	keywords []string
}

type lookup struct {
	keyword    string
	candidates []string
}

var kindFamilies = []keywordFamily{
	{kind: KindSelect, keywords: []string{"show", "get", "find", "list", "select", "what", "how many"}},
	{kind: KindInsert, keywords: []string{"add", "insert", "create new"}},
	{kind: KindUpdate, keywords: []string{"update", "change", "modify"}},
	{kind: KindDelete, keywords: []string{"delete", "remove"}},
}

var businessTables = []lookup{
	{keyword: "customer", candidates: []string{"customers", "users", "clients"}},
	{keyword: "order", candidates: []string{"orders", "purchases", "transactions"}},
	{keyword: "product", candidates: []string{"products", "items", "inventory"}},
	{keyword: "sale", candidates: []string{"orders", "order_items", "transactions"}},
	{keyword: "user", candidates: []string{"customers", "users", "accounts"}},
	{keyword: "purchase", candidates: []string{"orders", "purchases", "transactions"}},
	{keyword: "payment", candidates: []string{"payments", "transactions", "billing"}},
}

var columnKeywords = []lookup{
	{keyword: "name", candidates: []string{"name", "first_name", "last_name", "product_name"}},
	{keyword: "email", candidates: []string{"email", "email_address"}},
	{keyword: "phone", candidates: []string{"phone", "phone_number", "telephone"}},
	{keyword: "price", candidates: []string{"price", "cost", "amount", "total"}},
	{keyword: "date", candidates: []string{"date", "created_at", "updated_at", "order_date"}},
	{keyword: "status", candidates: []string{"status", "state", "condition"}},
	{keyword: "quantity", candidates: []string{"quantity", "qty", "count"}},
}

var (
	joinWords          = []string{"join", "with", "and", "related", "together"}
	multiTablePhrases  = []string{"customer orders", "order items", "product sales", "user purchases"}
	aggregateWords     = []string{"sum", "count", "avg", "max", "min", "total", "average", "top", "bottom"}
	groupingWords      = []string{"group", "by", "each", "per"}
	rankingWords       = []string{"top", "bottom", "best", "worst", "highest", "lowest"}
	relativeDateWords  = []string{"yesterday", "today", "last", "this month", "year"}
	confidenceKeywords = []string{"select", "show", "get", "find", "list"}
)

const (
	minComplexity = 1
	maxComplexity = 10
)

// Classifier holds the snapshot the heuristics resolve table and column names against.
type Classifier struct {
	Snapshot *schema.Snapshot
}

// Classify never fails; text without recognizable keywords yields KindUnknown and
// empty mentions.
func (c Classifier) Classify(question string) Intent {
	text := strings.ToLower(question)

	tables := c.mentionedTables(text)
	columns := c.mentionedColumns(text, tables)
	joins := requiresJoins(text, tables)

	return Intent{
		Kind:            classifyKind(text),
		Confidence:      confidence(text, tables, columns),
		Tables:          tables,
		Columns:         columns,
		RequiresJoins:   joins,
		ComplexityScore: complexity(text, tables, columns, joins),
	}
}

func classifyKind(text string) Kind {
	for _, family := range kindFamilies {
		if containsAny(text, family.keywords) {
			return family.kind
		}
	}
	return KindUnknown
}

func (c Classifier) mentionedTables(text string) []string {
	names := c.Snapshot.TableNames()
	out := make([]string, 0)
	for _, name := range names {
		if strings.Contains(text, strings.ToLower(name)) {
			out = append(out, name)
		}
	}
	if len(out) > 0 {
		return out
	}

	existing := make(map[string]string, len(names))
	for _, name := range names {
		existing[strings.ToLower(name)] = name
	}
	seen := make(map[string]struct{})
	for _, entry := range businessTables {
		if !strings.Contains(text, entry.keyword) {
			continue
		}
		for _, candidate := range entry.candidates {
			name, ok := existing[candidate]
			if !ok {
				continue
			}
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func (c Classifier) mentionedColumns(text string, tables []string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, entry := range columnKeywords {
		if !strings.Contains(text, entry.keyword) {
			continue
		}
		for _, tableName := range tables {
			table, ok := c.Snapshot.Table(tableName)
			if !ok {
				continue
			}
			for _, column := range table.Columns {
				if !contains(entry.candidates, strings.ToLower(column.Name)) {
					continue
				}
				id := tableName + "." + column.Name
				if _, dup := seen[id]; dup {
					continue
				}
				seen[id] = struct{}{}
				out = append(out, id)
			}
		}
	}
	return out
}

func requiresJoins(text string, tables []string) bool {
	return len(tables) > 1 || containsAny(text, joinWords) || containsAny(text, multiTablePhrases)
}

func complexity(text string, tables, columns []string, joins bool) int {
	score := 1.0
	score += float64(len(tables))
	score += 0.5 * float64(len(columns))
	if joins {
		score += 2 * float64(len(tables))
	}
	for _, word := range aggregateWords {
		if strings.Contains(text, word) {
			score += 2
		}
	}
	if containsAny(text, groupingWords) {
		score += 2
	}
	if containsAny(text, rankingWords) {
		score++
	}
	if containsAny(text, relativeDateWords) {
		score += 2
	}
	return int(math.Max(minComplexity, math.Min(maxComplexity, math.Floor(score))))
}

func confidence(text string, tables, columns []string) float64 {
	value := 0.5
	if len(tables) > 0 {
		value += 0.2
	}
	if len(columns) > 0 {
		value += 0.1
	}
	if containsAny(text, confidenceKeywords) {
		value += 0.2
	}
	return math.Max(0, math.Min(1, value))
}

func containsAny(text string, words []string) bool {
	for _, word := range words {
		if strings.Contains(text, word) {
			return true
		}
	}
	return false
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
