package safety

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"
)

type TableValidation struct {
	ValidTables   []string `json:"valid_tables"`
	InvalidTables []string `json:"invalid_tables"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
}

var tablePositionKeywords = map[string]bool{
	"FROM":   true,
	"JOIN":   true,
	"INTO":   true,
	"UPDATE": true,
	"TABLE":  true,
}

// Words that may sit between a table keyword and the table itself.
var tableModifiers = map[string]bool{
	"ONLY":         true,
	"LATERAL":      true,
	"IF":           true,
	"NOT":          true,
	"EXISTS":       true,
	"IGNORE":       true,
	"LOW_PRIORITY": true,
}

var clauseKeywords = map[string]bool{
	"SELECT": true, "WHERE": true, "GROUP": true, "ORDER": true, "HAVING": true,
	"LIMIT": true, "OFFSET": true, "ON": true, "USING": true, "UNION": true,
	"INTERSECT": true, "EXCEPT": true, "SET": true, "VALUES": true, "WINDOW": true,
	"RETURNING": true, "FETCH": true, "FOR": true,
}

// Functions whose argument syntax uses FROM without naming a table.
var fromArgumentFunctions = map[string]bool{
	"EXTRACT":   true,
	"SUBSTRING": true,
	"TRIM":      true,
	"POSITION":  true,
	"OVERLAY":   true,
}

var pseudoTables = map[string]bool{"DUAL": true}

const maxTableSuggestions = 3

// ExtractTables returns the identifiers found in table positions, deduplicated in
// order of first appearance. Names defined by a WITH clause are excluded.
func ExtractTables(sql string) ([]string, error) {
	tokens, err := tokenize(sql)
	if err != nil {
		return nil, err
	}
	ctes := cteNames(tokens)

	type paren struct {
		fromArgument bool
	}
	var (
		parens      []paren
		listDepths  []int
		expectTable bool
		seen        = make(map[string]struct{})
		out         = make([]string, 0)
	)
	insideFromArgument := func() bool {
		return len(parens) > 0 && parens[len(parens)-1].fromArgument
	}

	for i := 0; i < len(tokens); i++ {
		tok := tokens[i]
		depth := len(parens)

		if tok.kind == tokenSymbol {
			switch tok.text {
			case "(":
				fromArgument := i > 0 && tokens[i-1].kind == tokenWord && fromArgumentFunctions[tokens[i-1].upper()]
				parens = append(parens, paren{fromArgument: fromArgument})
				expectTable = false
			case ")":
				if len(parens) > 0 {
					parens = parens[:len(parens)-1]
				}
				for len(listDepths) > 0 && listDepths[len(listDepths)-1] > len(parens) {
					listDepths = listDepths[:len(listDepths)-1]
				}
			case ",":
				if len(listDepths) > 0 && listDepths[len(listDepths)-1] == depth {
					expectTable = true
				}
			case ";":
				listDepths = listDepths[:0]
				expectTable = false
			}
			continue
		}

		if tok.kind == tokenWord {
			upper := tok.upper()
			if tablePositionKeywords[upper] && !insideFromArgument() {
				expectTable = true
				if upper == "FROM" && (len(listDepths) == 0 || listDepths[len(listDepths)-1] != depth) {
					listDepths = append(listDepths, depth)
				}
				continue
			}
			if expectTable && tableModifiers[upper] {
				continue
			}
			if clauseKeywords[upper] {
				for len(listDepths) > 0 && listDepths[len(listDepths)-1] == depth {
					listDepths = listDepths[:len(listDepths)-1]
				}
				expectTable = false
				continue
			}
		}

		if !expectTable || !tok.isIdentifier() {
			continue
		}
		expectTable = false

		name := tok.text
		for i+2 < len(tokens) && tokens[i+1].kind == tokenSymbol && tokens[i+1].text == "." && tokens[i+2].isIdentifier() {
			name = tokens[i+2].text
			i += 2
		}
		if i+1 < len(tokens) && tokens[i+1].kind == tokenSymbol && tokens[i+1].text == "(" {
			continue
		}
		key := strings.ToLower(name)
		if _, isCTE := ctes[key]; isCTE || pseudoTables[strings.ToUpper(name)] {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, name)
	}
	return out, nil
}

func cteNames(tokens []token) map[string]struct{} {
	names := make(map[string]struct{})
	i := 0
	for i < len(tokens) && !(tokens[i].kind == tokenWord && tokens[i].upper() == "WITH") {
		if tokens[i].kind != tokenSymbol || tokens[i].text != "(" {
			return names
		}
		i++
	}
	if i >= len(tokens) {
		return names
	}
	i++
	if i < len(tokens) && tokens[i].kind == tokenWord && tokens[i].upper() == "RECURSIVE" {
		i++
	}
	for i < len(tokens) && tokens[i].isIdentifier() {
		names[strings.ToLower(tokens[i].text)] = struct{}{}
		i++
		if i < len(tokens) && tokens[i].text == "(" {
			i = skipParens(tokens, i)
		}
		if i < len(tokens) && tokens[i].kind == tokenWord && tokens[i].upper() == "AS" {
			i++
		}
		for i < len(tokens) && tokens[i].kind == tokenWord && (tokens[i].upper() == "NOT" || tokens[i].upper() == "MATERIALIZED") {
			i++
		}
		if i < len(tokens) && tokens[i].text == "(" {
			i = skipParens(tokens, i)
		}
		if i < len(tokens) && tokens[i].kind == tokenSymbol && tokens[i].text == "," {
			i++
			continue
		}
		break
	}
	return names
}

// skipParens returns the index just past the parenthesis group opening at start.
func skipParens(tokens []token, start int) int {
	depth := 0
	for i := start; i < len(tokens); i++ {
		if tokens[i].kind != tokenSymbol {
			continue
		}
		switch tokens[i].text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return len(tokens)
}

// ValidateTables checks every table referenced by sql against the known names.
func ValidateTables(sql string, known []string) TableValidation {
	result := TableValidation{
		ValidTables:   []string{},
		InvalidTables: []string{},
		Errors:        []string{},
		Warnings:      []string{},
	}
	tables, err := ExtractTables(sql)
	if err != nil {
		return result
	}
	available := make(map[string]struct{}, len(known))
	for _, name := range known {
		available[strings.ToLower(name)] = struct{}{}
	}
	for _, table := range tables {
		if _, ok := available[strings.ToLower(table)]; ok {
			result.ValidTables = append(result.ValidTables, table)
			continue
		}
		result.InvalidTables = append(result.InvalidTables, table)
		result.Errors = append(result.Errors, fmt.Sprintf("Table '%s' does not exist in schema", table))
		if suggestions := SuggestTables(table, known, maxTableSuggestions); len(suggestions) > 0 {
			result.Warnings = append(result.Warnings, fmt.Sprintf("Did you mean: %s?", strings.Join(suggestions, ", ")))
		}
	}
	return result
}

// SuggestTables ranks known names that contain, or are contained in, name by edit
// distance; close misspellings are included too.
func SuggestTables(name string, known []string, limit int) []string {
	needle := strings.ToLower(name)
	type candidate struct {
		name     string
		distance int
	}
	threshold := len([]rune(needle))/3 + 1
	candidates := make([]candidate, 0)
	for _, table := range known {
		lower := strings.ToLower(table)
		distance := levenshtein.DistanceForStrings([]rune(needle), []rune(lower), levenshtein.DefaultOptions)
		if strings.Contains(lower, needle) || strings.Contains(needle, lower) || distance <= threshold {
			candidates = append(candidates, candidate{name: table, distance: distance})
		}
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance != candidates[j].distance {
			return candidates[i].distance < candidates[j].distance
		}
		return candidates[i].name < candidates[j].name
	})
	out := make([]string, 0, limit)
	for _, c := range candidates {
		if len(out) == limit {
			break
		}
		out = append(out, c.name)
	}
	return out
}
