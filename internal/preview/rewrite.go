package preview

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/askdb/askdb/internal/query"
	"github.com/askdb/askdb/internal/safety"
)

// DefaultRows bounds every preview query.
const DefaultRows = 10

var (
	limitPattern    = regexp.MustCompile(`(?i)\bLIMIT\s+(\d+)(\s*,\s*(\d+))?`)
	fromPattern     = regexp.MustCompile(`(?i)\bFROM\b`)
	orderByPattern  = regexp.MustCompile(`(?i)\bORDER\s+BY\b`)
	tailPattern     = regexp.MustCompile(`(?i)\b(LIMIT|OFFSET|FETCH)\b`)
	groupByPattern  = regexp.MustCompile(`(?i)\bGROUP\s+BY\b`)
	setOpPattern    = regexp.MustCompile(`(?i)\b(UNION|INTERSECT|EXCEPT)\b`)
	distinctPattern = regexp.MustCompile(`(?i)\bDISTINCT\b`)
	statementBreak  = regexp.MustCompile(`;`)
)

// PreviewSQL bounds sql to at most DefaultRows rows.
func PreviewSQL(sql string) string {
	return limitSQL(sql, DefaultRows)
}

// limitSQL caps an existing top-level LIMIT at maxRows or appends one to a
// SELECT/WITH statement. Anything else is returned unchanged.
func limitSQL(sql string, maxRows int) string {
	text := strings.TrimSpace(safety.StripComments(sql))
	body := query.StripTrailingSemicolons(text)
	terminator := ""
	if body != text {
		terminator = ";"
	}
	if body == "" || firstTopLevel(body, statementBreak) >= 0 {
		return sql
	}

	if loc := lastTopLevelSubmatch(body, limitPattern); loc != nil {
		countStart, countEnd := loc[2], loc[3]
		if loc[6] >= 0 {
			countStart, countEnd = loc[6], loc[7]
		}
		existing, err := strconv.Atoi(body[countStart:countEnd])
		if err != nil {
			return sql
		}
		return body[:countStart] + strconv.Itoa(min(existing, maxRows)) + body[countEnd:] + terminator
	}

	upper := strings.ToUpper(body)
	if strings.HasPrefix(upper, "SELECT") || strings.HasPrefix(upper, "WITH") {
		return fmt.Sprintf("%s LIMIT %d%s", body, maxRows, terminator)
	}
	return sql
}

// CountSQL rewrites a single SELECT into SELECT COUNT(*) over the same FROM
// clause with ORDER BY and LIMIT removed. CTEs, grouping, DISTINCT, set
// operations and multiple statements are refused.
func CountSQL(sql string) (string, bool) {
	body := query.StripTrailingSemicolons(strings.TrimSpace(safety.StripComments(sql)))
	if body == "" || firstTopLevel(body, statementBreak) >= 0 {
		return "", false
	}
	if !strings.HasPrefix(strings.ToUpper(body), "SELECT") {
		return "", false
	}
	if groupByPattern.MatchString(body) || setOpPattern.MatchString(body) || distinctPattern.MatchString(body) {
		return "", false
	}

	from := firstTopLevel(body, fromPattern)
	if from < 0 {
		return "", false
	}
	tail := body[from:]
	cut := len(tail)
	for _, pattern := range []*regexp.Regexp{orderByPattern, tailPattern} {
		if index := firstTopLevel(tail, pattern); index >= 0 && index < cut {
			cut = index
		}
	}
	return "SELECT COUNT(*) " + strings.TrimSpace(tail[:cut]), true
}

// topLevelMask marks the bytes of sql that sit outside parentheses and quotes.
func topLevelMask(sql string) []bool {
	mask := make([]bool, len(sql))
	depth := 0
	var quote byte
	for i := 0; i < len(sql); i++ {
		ch := sql[i]
		if quote != 0 {
			if ch == quote {
				quote = 0
			}
			continue
		}
		switch ch {
		case '\'', '"', '`':
			quote = ch
			continue
		case '(':
			depth++
			continue
		case ')':
			if depth > 0 {
				depth--
			}
			continue
		}
		mask[i] = depth == 0
	}
	return mask
}

func firstTopLevel(sql string, pattern *regexp.Regexp) int {
	mask := topLevelMask(sql)
	for _, loc := range pattern.FindAllStringIndex(sql, -1) {
		if mask[loc[0]] {
			return loc[0]
		}
	}
	return -1
}

func lastTopLevelSubmatch(sql string, pattern *regexp.Regexp) []int {
	mask := topLevelMask(sql)
	var last []int
	for _, loc := range pattern.FindAllStringSubmatchIndex(sql, -1) {
		if mask[loc[0]] {
			last = loc
		}
	}
	return last
}
