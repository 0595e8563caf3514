// Package safety decides whether candidate SQL may run against the target database.
// The checks are keyword heuristics over the SQL text, not a grammar.
package safety

import (
	"strings"
	"unicode"
)

// WriteKeywords make a statement unsafe wherever they appear outside comments.
// A SELECT that mentions one inside a string literal is also rejected.
var WriteKeywords = []string{"INSERT", "UPDATE", "DELETE", "DROP", "CREATE", "ALTER", "TRUNCATE", "REPLACE"}

const ErrMultipleStatements = "Multiple statements are not allowed"

type segmentKind int

const (
	segmentCode segmentKind = iota
	segmentLiteral
	segmentComment
)

// walkSQL splits sql into code, quoted text and comments, in order. Quotes
// follow the same rules as tokenize: '' and "" escape inside their own quote.
// An unterminated quote or block comment runs to the end of the text.
func walkSQL(sql string, emit func(text string, kind segmentKind)) {
	start := 0
	flush := func(end int) {
		if end > start {
			emit(sql[start:end], segmentCode)
		}
	}
	for i := 0; i < len(sql); {
		c := sql[i]
		end := -1
		kind := segmentComment
		switch {
		case c == '-' && i+1 < len(sql) && sql[i+1] == '-':
			end = len(sql)
			if nl := strings.IndexByte(sql[i:], '\n'); nl >= 0 {
				end = i + nl
			}
		case c == '/' && i+1 < len(sql) && sql[i+1] == '*':
			end = len(sql)
			if closeAt := strings.Index(sql[i+2:], "*/"); closeAt >= 0 {
				end = i + 2 + closeAt + 2
			}
		case c == '\'' || c == '"' || c == '`':
			end = closingQuote(sql, i)
			kind = segmentLiteral
		}
		if end < 0 {
			i++
			continue
		}
		flush(i)
		emit(sql[i:end], kind)
		i, start = end, end
	}
	flush(len(sql))
}

func closingQuote(sql string, open int) int {
	quote := sql[open]
	for j := open + 1; j < len(sql); j++ {
		if sql[j] != quote {
			continue
		}
		if j+1 < len(sql) && sql[j+1] == quote {
			j++
			continue
		}
		return j + 1
	}
	return len(sql)
}

// StripComments removes line and block comments. Comment markers inside string
// literals and quoted identifiers are left alone.
func StripComments(sql string) string {
	var b strings.Builder
	walkSQL(sql, func(text string, kind segmentKind) {
		switch kind {
		case segmentCode, segmentLiteral:
			b.WriteString(text)
		case segmentComment:
			if strings.HasPrefix(text, "/*") {
				b.WriteByte(' ')
			}
		}
	})
	return b.String()
}

// MultipleStatements reports whether anything other than whitespace, comments
// or further semicolons follows a top-level semicolon.
func MultipleStatements(sql string) bool {
	terminated, multiple := false, false
	walkSQL(sql, func(text string, kind segmentKind) {
		if multiple || kind == segmentComment {
			return
		}
		if kind == segmentLiteral {
			multiple = terminated
			return
		}
		for _, r := range text {
			switch {
			case r == ';':
				terminated = true
			case unicode.IsSpace(r):
			case terminated:
				multiple = true
				return
			}
		}
	})
	return multiple
}

// IsReadOnly reports whether sql contains no write keyword and starts with SELECT or WITH.
func IsReadOnly(sql string) bool {
	clean := strings.ToUpper(strings.TrimSpace(StripComments(sql)))
	for _, keyword := range WriteKeywords {
		if strings.Contains(clean, keyword) {
			return false
		}
	}
	return strings.HasPrefix(clean, "SELECT") || strings.HasPrefix(clean, "WITH")
}

// IsSingleReadOnly is IsReadOnly restricted to one statement. Everything that
// executes SQL gates on it.
func IsSingleReadOnly(sql string) bool {
	return !IsSentinel(sql) && IsReadOnly(sql) && !MultipleStatements(sql)
}
