package nl2sql

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/askdb/askdb/internal/intent"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/schema"
)

const (
	sqlSystemPrompt         = "You are an expert SQL query generator with deep database knowledge."
	explanationSystemPrompt = "You explain SQL queries to business users in plain language."
	maxJoinHints            = 2
	defaultMaxTokens        = 1000
)

type Generator struct {
	LLM         TextGenerator
	Temperature float64
	MaxTokens   int
	// TokenBudget bounds the general schema summary used when no table is mentioned.
	TokenBudget int
	Logger      *slog.Logger
}

// GenerateSQL makes one generation call. Failures never return an error; they
// produce an "-- Error:" comment in place of SQL.
func (g *Generator) GenerateSQL(ctx context.Context, snapshot *schema.Snapshot, question string, in intent.Intent) Generation {
	out := Generation{Provider: openAIProvider}
	if namer, ok := g.LLM.(ModelNamer); ok {
		out.Model = namer.ModelName()
	}
	if g.LLM == nil {
		out.Err = "text generation is not configured"
		out.SQL = "-- Error: " + out.Err
		observability.IncrementGenerationFailure("sql")
		return out
	}

	started := time.Now()
	raw, err := g.LLM.Generate(ctx, Prompt{
		System:      sqlSystemPrompt,
		Text:        BuildPrompt(snapshot, question, in, g.TokenBudget),
		Temperature: g.Temperature,
		MaxTokens:   g.maxTokens(),
	})
	observability.ObserveLLMLatency(time.Since(started))
	if err != nil {
		g.logFailure(ctx, "sql", err)
		observability.IncrementGenerationFailure("sql")
		out.Err = err.Error()
		out.SQL = "-- Error: generating SQL failed: " + singleLine(err.Error())
		return out
	}

	sql := stripMarkdownSQL(raw)
	if sql == "" {
		observability.IncrementGenerationFailure("sql")
		out.Err = "empty response"
		out.SQL = "-- Error: No response from text generator"
		return out
	}
	out.SQL = sql
	return out
}

// Explain asks the model to describe sql. Any failure falls back to a description
// derived from the SQL text.
func (g *Generator) Explain(ctx context.Context, snapshot *schema.Snapshot, sql, question string) string {
	if g.LLM == nil {
		return FallbackExplanation(snapshot, sql, question)
	}
	started := time.Now()
	raw, err := g.LLM.Generate(ctx, Prompt{
		System:      explanationSystemPrompt,
		Text:        buildExplanationPrompt(sql, question),
		Temperature: g.Temperature,
		MaxTokens:   g.maxTokens(),
	})
	observability.ObserveLLMLatency(time.Since(started))
	if err != nil {
		g.logFailure(ctx, "explanation", err)
		observability.IncrementGenerationFailure("explanation")
		return FallbackExplanation(snapshot, sql, question)
	}
	explanation := strings.TrimSpace(raw)
	if explanation == "" {
		observability.IncrementGenerationFailure("explanation")
		return FallbackExplanation(snapshot, sql, question)
	}
	return explanation
}

func (g *Generator) maxTokens() int {
	if g.MaxTokens > 0 {
		return g.MaxTokens
	}
	return defaultMaxTokens
}

func (g *Generator) logFailure(ctx context.Context, stage string, err error) {
	if g.Logger == nil {
		return
	}
	g.Logger.WarnContext(ctx, "text generation failed", slog.String("stage", stage), slog.Any("error", err))
}

// BuildPrompt assembles the SQL generation prompt from the question, its intent and
// the schema context.
func BuildPrompt(snapshot *schema.Snapshot, question string, in intent.Intent, tokenBudget int) string {
	var schemaContext string
	if len(in.Tables) > 0 {
		schemaContext = schema.Summarize(snapshot, schema.SummaryOptions{Tables: in.Tables})
	} else {
		schemaContext = schema.Summarize(snapshot, schema.SummaryOptions{TokenBudget: tokenBudget})
	}

	tables := "To be determined"
	if len(in.Tables) > 0 {
		tables = strings.Join(in.Tables, ", ")
	}
	kind := in.Kind
	if kind == "" || kind == intent.KindUnknown {
		kind = intent.KindSelect
	}
	dialect := "SQL"
	if snapshot != nil && snapshot.Kind != "" {
		dialect = string(snapshot.Kind)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Natural Language Query: %q\n\n", strings.TrimSpace(question))
	b.WriteString("Query Analysis:\n")
	fmt.Fprintf(&b, "- Type: %s\n", in.Kind)
	fmt.Fprintf(&b, "- Tables involved: %s\n", tables)
	fmt.Fprintf(&b, "- Complexity: %d/10\n", in.ComplexityScore)
	fmt.Fprintf(&b, "- Requires JOINs: %t\n\n", in.RequiresJoins)
	b.WriteString("Database Schema Context:\n")
	b.WriteString(strings.TrimSpace(schemaContext))
	b.WriteString("\n\n")

	if in.RequiresJoins && len(in.Tables) > 1 && snapshot != nil {
		joins := snapshot.SuggestJoins(in.Tables)
		if len(joins) > 0 {
			b.WriteString("JOIN Suggestions:\n")
			for _, join := range joins[:min(maxJoinHints, len(joins))] {
				b.WriteString("Consider: " + join.Suggestion + "\n")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString("Requirements:\n")
	fmt.Fprintf(&b, "- Generate a %s query\n", kind)
	fmt.Fprintf(&b, "- Use proper %s syntax for the given schema\n", dialect)
	b.WriteString("- Include appropriate JOINs if needed\n")
	b.WriteString("- Return only the SQL query, no explanations or markdown\n")
	b.WriteString("- List explicit columns instead of SELECT *\n")
	b.WriteString("- Ensure the query is safe and read-only for SELECT operations\n")
	b.WriteString("- Use table aliases for better readability when joining multiple tables\n\n")
	b.WriteString("SQL Query:")
	return b.String()
}

func buildExplanationPrompt(sql, question string) string {
	return fmt.Sprintf(`Explain this SQL query in simple, business-friendly terms:

Original request: %q

SQL Query:
%s

Please provide:
1. What this query does in plain English
2. Which tables it accesses and why
3. Any JOINs and what they accomplish
4. Performance considerations for this query

Keep the explanation clear and practical.`, strings.TrimSpace(question), strings.TrimSpace(sql))
}

var fallbackAggregates = []string{"COUNT", "SUM", "AVG", "MAX", "MIN"}

// FallbackExplanation describes sql from its leading verb, the known tables it names,
// and whether it joins or aggregates.
func FallbackExplanation(snapshot *schema.Snapshot, sql, question string) string {
	parts := []string{fmt.Sprintf("This query responds to: '%s'", strings.TrimSpace(question))}
	upper := strings.ToUpper(strings.TrimSpace(sql))

	switch {
	case strings.HasPrefix(upper, "SELECT"), strings.HasPrefix(upper, "WITH"):
		parts = append(parts, "It retrieves data from the database.")
	case strings.HasPrefix(upper, "INSERT"):
		parts = append(parts, "It adds new data to the database.")
	case strings.HasPrefix(upper, "UPDATE"):
		parts = append(parts, "It modifies existing data in the database.")
	case strings.HasPrefix(upper, "DELETE"):
		parts = append(parts, "It removes data from the database.")
	}

	tables := make([]string, 0)
	for _, name := range snapshot.TableNames() {
		if strings.Contains(upper, strings.ToUpper(name)) {
			tables = append(tables, name)
		}
	}
	if len(tables) > 0 {
		parts = append(parts, "Tables involved: "+strings.Join(tables, ", "))
	}
	if strings.Contains(upper, "JOIN") {
		parts = append(parts, "The query combines data from multiple tables using JOINs.")
	}
	for _, fn := range fallbackAggregates {
		if strings.Contains(upper, fn) {
			parts = append(parts, "The query performs calculations on groups of data.")
			break
		}
	}
	return strings.Join(parts, " ")
}

func singleLine(value string) string {
	return strings.Join(strings.Fields(value), " ")
}
