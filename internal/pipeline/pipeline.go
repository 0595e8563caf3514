// Package pipeline wires the question-to-SQL flow: intent classification, SQL
// generation, safety validation, preview and full execution.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/askdb/askdb/internal/history"
	"github.com/askdb/askdb/internal/intent"
	"github.com/askdb/askdb/internal/nl2sql"
	"github.com/askdb/askdb/internal/observability"
	"github.com/askdb/askdb/internal/preview"
	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/safety"
	"github.com/askdb/askdb/internal/schema"
	"github.com/askdb/askdb/internal/session"
)

var (
	ErrUnsafeQuery   = errors.New("query is not read-only")
	ErrEmptyQuestion = errors.New("question is required")
	ErrEmptySQL      = errors.New("sql is required")
)

const DefaultRowLimit = 100

// Answer is the outcome of one asked question.
type Answer struct {
	Question     string           `json:"question"`
	SQL          string           `json:"sql"`
	Intent       intent.Intent    `json:"intent"`
	Explanation  string           `json:"explanation"`
	Warnings     []string         `json:"warnings"`
	IsSafe       bool             `json:"is_safe"`
	Validation   safety.Report    `json:"validation"`
	Suggestions  []string         `json:"suggestions"`
	Alternatives []string         `json:"alternatives"`
	Provider     string           `json:"provider,omitempty"`
	Model        string           `json:"model,omitempty"`
	Preview      *preview.Preview `json:"preview,omitempty"`
}

type AskOptions struct {
	// Preview runs a bounded preview of the generated SQL when it is safe.
	Preview bool
}

type ExecuteRequest struct {
	Question string
	SQL      string
	RowLimit int
}

type Pipeline struct {
	Session   *session.Session
	Generator *nl2sql.Generator
	History   history.Store
	// RowLimit applies to Execute requests that do not set one.
	RowLimit int
	Logger   *slog.Logger
}

func (p *Pipeline) snapshot() (*schema.Snapshot, error) {
	if p.Session == nil {
		return nil, session.ErrNotConnected
	}
	snapshot := p.Session.Snapshot()
	if snapshot == nil {
		return nil, session.ErrNotConnected
	}
	return snapshot, nil
}

func (p *Pipeline) Intent(question string) (intent.Intent, error) {
	if strings.TrimSpace(question) == "" {
		return intent.Intent{}, ErrEmptyQuestion
	}
	snapshot, err := p.snapshot()
	if err != nil {
		return intent.Intent{}, err
	}
	return intent.Classifier{Snapshot: snapshot}.Classify(question), nil
}

// Ask turns question into SQL and annotates it. Generation failures are reported
// in the answer, not as an error; only a missing connection fails the call.
func (p *Pipeline) Ask(ctx context.Context, question string, opts AskOptions) (Answer, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Answer{}, ErrEmptyQuestion
	}
	snapshot, err := p.snapshot()
	if err != nil {
		return Answer{}, err
	}

	in := intent.Classifier{Snapshot: snapshot}.Classify(question)
	observability.ObserveQuestion(string(in.Kind))

	generator := p.Generator
	if generator == nil {
		generator = &nl2sql.Generator{}
	}
	generation := generator.GenerateSQL(ctx, snapshot, question, in)
	safe := isSafe(generation.SQL)
	if !safe {
		observability.IncrementUnsafeQuery()
	}

	answer := Answer{
		Question:     question,
		SQL:          generation.SQL,
		Intent:       in,
		IsSafe:       safe,
		Validation:   safety.Validate(generation.SQL, snapshot.TableNames()),
		Warnings:     nl2sql.Warnings(snapshot, generation.SQL, in, safe),
		Suggestions:  nl2sql.Suggestions(generation.SQL, in),
		Alternatives: nl2sql.Alternatives(snapshot, in),
		Provider:     generation.Provider,
		Model:        generation.Model,
	}
	answer.Warnings = append(answer.Warnings, answer.Validation.TableValidation.Errors...)
	answer.Warnings = append(answer.Warnings, answer.Validation.TableValidation.Warnings...)
	if generation.Failed() {
		answer.Explanation = "Unable to generate SQL: " + generation.Err
	} else {
		answer.Explanation = generator.Explain(ctx, snapshot, generation.SQL, question)
	}

	if opts.Preview && safe {
		result := p.Session.Previews().Preview(ctx, generation.SQL, false)
		answer.Preview = &result
	}
	if p.Logger != nil {
		p.Logger.InfoContext(ctx, "question answered",
			slog.String("kind", string(in.Kind)),
			slog.Bool("safe", safe),
			slog.Bool("generation_failed", generation.Failed()),
		)
	}
	return answer, nil
}

// Validate checks sql against the current snapshot.
func (p *Pipeline) Validate(sql string) (safety.Report, error) {
	if strings.TrimSpace(sql) == "" {
		return safety.Report{}, ErrEmptySQL
	}
	snapshot, err := p.snapshot()
	if err != nil {
		return safety.Report{}, err
	}
	return safety.Validate(sql, snapshot.TableNames()), nil
}

// Preview refuses unsafe SQL before it reaches the preview engine.
func (p *Pipeline) Preview(ctx context.Context, sql string, force bool) (preview.Preview, error) {
	if strings.TrimSpace(sql) == "" {
		return preview.Preview{}, ErrEmptySQL
	}
	if _, err := p.snapshot(); err != nil {
		return preview.Preview{}, err
	}
	if !isSafe(sql) {
		observability.IncrementUnsafeQuery()
		return preview.Preview{}, ErrUnsafeQuery
	}
	return p.Session.Previews().Preview(ctx, sql, force), nil
}

// Execute runs safe SQL in full, bounded by the row limit, and records the
// attempt in history. Execution failures are returned after being recorded.
func (p *Pipeline) Execute(ctx context.Context, request ExecuteRequest) (query.Result, error) {
	if strings.TrimSpace(request.SQL) == "" {
		return query.Result{}, ErrEmptySQL
	}
	if _, err := p.snapshot(); err != nil {
		return query.Result{}, err
	}
	if !isSafe(request.SQL) {
		observability.IncrementUnsafeQuery()
		return query.Result{}, ErrUnsafeQuery
	}

	limit := request.RowLimit
	if limit <= 0 {
		limit = p.RowLimit
	}
	if limit <= 0 {
		limit = DefaultRowLimit
	}
	result, execErr := p.Session.Execute(ctx, query.Request{SQL: request.SQL, RowLimit: limit})

	entry := history.Entry{Question: request.Question, SQL: request.SQL, Success: execErr == nil}
	if execErr != nil {
		entry.Error = execErr.Error()
	} else {
		entry.RowCount = len(result.Rows)
	}
	p.record(ctx, entry)

	if execErr != nil {
		return query.Result{}, execErr
	}
	return result, nil
}

// Context renders the schema summary used as LLM prompt context.
func (p *Pipeline) Context(opts schema.SummaryOptions) (string, error) {
	snapshot, err := p.snapshot()
	if err != nil {
		return "", err
	}
	if opts.TokenBudget <= 0 && p.Generator != nil {
		opts.TokenBudget = p.Generator.TokenBudget
	}
	return schema.Summarize(snapshot, opts), nil
}

func (p *Pipeline) record(ctx context.Context, entry history.Entry) {
	if p.History == nil {
		return
	}
	if _, err := p.History.AddEntry(ctx, entry); err != nil && p.Logger != nil {
		p.Logger.WarnContext(ctx, "record history failed", slog.Any("error", fmt.Errorf("add history entry: %w", err)))
	}
}

func isSafe(sql string) bool {
	return safety.IsSingleReadOnly(sql)
}
