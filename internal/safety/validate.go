package safety

import (
	"strings"
)

type SyntaxCheck struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

type Report struct {
	IsValid         bool            `json:"is_valid"`
	Errors          []string        `json:"errors"`
	Warnings        []string        `json:"warnings"`
	SafetyCheck     bool            `json:"safety_check"`
	SyntaxCheck     bool            `json:"syntax_check"`
	TableValidation TableValidation `json:"table_validation"`
	Complexity      Complexity      `json:"complexity_analysis"`
}

const ErrWriteNotAllowed = "Write operations are not allowed"

var statementKeywords = map[string]bool{
	"SELECT": true, "WITH": true, "INSERT": true, "UPDATE": true, "DELETE": true,
	"DROP": true, "CREATE": true, "ALTER": true, "TRUNCATE": true, "REPLACE": true,
	"EXPLAIN": true, "SHOW": true, "DESCRIBE": true, "PRAGMA": true, "VALUES": true,
	"FROM": true, "WHERE": true, "MERGE": true, "GRANT": true, "REVOKE": true,
}

// CheckSyntax is a minimal structural check: the text must tokenize cleanly, have
// balanced parentheses and contain an SQL keyword in its first statement.
func CheckSyntax(sql string) SyntaxCheck {
	tokens, err := tokenize(sql)
	if err != nil {
		return SyntaxCheck{Errors: []string{"Syntax error: " + err.Error()}}
	}
	first := make([]token, 0, len(tokens))
	for _, tok := range tokens {
		if tok.kind == tokenSymbol && tok.text == ";" {
			if len(first) > 0 {
				break
			}
			continue
		}
		first = append(first, tok)
	}
	if len(first) == 0 {
		return SyntaxCheck{Errors: []string{"Invalid SQL syntax"}}
	}

	depth := 0
	hasKeyword := false
	for _, tok := range tokens {
		switch {
		case tok.kind == tokenSymbol && tok.text == "(":
			depth++
		case tok.kind == tokenSymbol && tok.text == ")":
			depth--
			if depth < 0 {
				return SyntaxCheck{Errors: []string{"Syntax error: unbalanced parentheses"}}
			}
		}
	}
	if depth != 0 {
		return SyntaxCheck{Errors: []string{"Syntax error: unbalanced parentheses"}}
	}
	for _, tok := range first {
		if tok.kind == tokenWord && statementKeywords[tok.upper()] {
			hasKeyword = true
			break
		}
	}
	if !hasKeyword {
		return SyntaxCheck{Errors: []string{"Query must contain SQL keywords"}}
	}
	return SyntaxCheck{Valid: true, Errors: []string{}}
}

// Validate runs every check against sql. The query is valid only when it parses,
// is read-only and references no unknown table.
func Validate(sql string, knownTables []string) Report {
	report := Report{
		Errors:      []string{},
		Warnings:    []string{},
		SafetyCheck: true,
	}

	syntax := CheckSyntax(sql)
	report.SyntaxCheck = syntax.Valid
	report.Errors = append(report.Errors, syntax.Errors...)

	if !IsReadOnly(sql) {
		report.SafetyCheck = false
		report.Errors = append(report.Errors, ErrWriteNotAllowed)
	}
	if MultipleStatements(sql) {
		report.SafetyCheck = false
		report.Errors = append(report.Errors, ErrMultipleStatements)
	}

	report.TableValidation = ValidateTables(sql, knownTables)
	report.Errors = append(report.Errors, report.TableValidation.Errors...)
	report.Warnings = append(report.Warnings, report.TableValidation.Warnings...)

	report.Complexity = EstimateComplexity(sql)
	report.Warnings = append(report.Warnings, report.Complexity.Warnings...)

	report.IsValid = report.SyntaxCheck && report.SafetyCheck && len(report.Errors) == 0
	return report
}

// IsSentinel reports whether sql is a generator error comment rather than a query.
func IsSentinel(sql string) bool {
	return strings.HasPrefix(strings.TrimSpace(sql), "-- Error:")
}
