package schema

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	typeModifierPattern = regexp.MustCompile(`\([^)]*\)`)
	maxLengthPattern    = regexp.MustCompile(`\((\d+)\)`)
)

var exactTypes = map[string]string{
	"VARCHAR":    "TEXT",
	"CHAR":       "TEXT",
	"NVARCHAR":   "TEXT",
	"NCHAR":      "TEXT",
	"CLOB":       "TEXT",
	"LONGTEXT":   "TEXT",
	"MEDIUMTEXT": "TEXT",
	"TINYTEXT":   "TEXT",
	"TEXT":       "TEXT",
	"INT":        "INTEGER",
	"INTEGER":    "INTEGER",
	"BIGINT":     "INTEGER",
	"SMALLINT":   "INTEGER",
	"TINYINT":    "INTEGER",
	"MEDIUMINT":  "INTEGER",
	"FLOAT":      "REAL",
	"DOUBLE":     "REAL",
	"DECIMAL":    "REAL",
	"NUMERIC":    "REAL",
	"REAL":       "REAL",
	"DATETIME":   "TIMESTAMP",
	"TIMESTAMP":  "TIMESTAMP",
	"DATE":       "DATE",
	"TIME":       "TIME",
}

type typeRule struct {
	prefixes   []string
	normalized string
}

// Ordered: TIMESTAMP must be tried before TIME, INTERVAL must never reach the INT rule.
var prefixTypeRules = []typeRule{
	{prefixes: []string{"INTERVAL"}, normalized: "INTERVAL"},
	{prefixes: []string{"CHARACTER", "VARCHAR", "NVARCHAR", "NCHAR", "CHAR", "CLOB", "TEXT", "STRING", "CITEXT"}, normalized: "TEXT"},
	{prefixes: []string{"BIGSERIAL", "SMALLSERIAL", "SERIAL", "BIGINT", "SMALLINT", "TINYINT", "MEDIUMINT", "INTEGER", "INT"}, normalized: "INTEGER"},
	{prefixes: []string{"DOUBLE", "FLOAT", "DECIMAL", "NUMERIC", "REAL", "MONEY"}, normalized: "REAL"},
	{prefixes: []string{"DATETIME", "TIMESTAMP"}, normalized: "TIMESTAMP"},
	{prefixes: []string{"DATE"}, normalized: "DATE"},
	{prefixes: []string{"TIME"}, normalized: "TIME"},
	{prefixes: []string{"BOOL"}, normalized: "BOOLEAN"},
	{prefixes: []string{"BLOB", "BYTEA", "VARBINARY", "BINARY", "LONGBLOB", "MEDIUMBLOB", "TINYBLOB"}, normalized: "BLOB"},
}

// NormalizeType maps a vendor type string onto the small shared vocabulary.
func NormalizeType(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	base := strings.TrimSpace(typeModifierPattern.ReplaceAllString(upper, ""))
	base = strings.TrimSpace(strings.TrimSuffix(base, "UNSIGNED"))
	base = strings.Join(strings.Fields(base), " ")
	if base == "" {
		return "UNKNOWN"
	}
	if normalized, ok := exactTypes[base]; ok {
		return normalized
	}
	for _, rule := range prefixTypeRules {
		for _, prefix := range rule.prefixes {
			if strings.HasPrefix(base, prefix) {
				return rule.normalized
			}
		}
	}
	return base
}

// MaxLength returns the single parenthesized length modifier, if any.
func MaxLength(raw string) *int {
	match := maxLengthPattern.FindStringSubmatch(raw)
	if len(match) != 2 {
		return nil
	}
	value, err := strconv.Atoi(match[1])
	if err != nil {
		return nil
	}
	return &value
}
