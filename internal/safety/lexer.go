package safety

import (
	"errors"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokenWord tokenKind = iota
	tokenQuoted
	tokenString
	tokenNumber
	tokenSymbol
)

type token struct {
	kind tokenKind
	text string
}

func (t token) isIdentifier() bool {
	return t.kind == tokenWord || t.kind == tokenQuoted
}

func (t token) upper() string {
	return strings.ToUpper(t.text)
}

var (
	errUnterminatedString = errors.New("unterminated string literal")
	errUnterminatedQuote  = errors.New("unterminated quoted identifier")
	errUnterminatedBlock  = errors.New("unterminated block comment")
)

// tokenize splits sql into words, quoted identifiers, literals and symbols.
// Comments are dropped; quoted identifiers keep their unquoted text.
func tokenize(sql string) ([]token, error) {
	runes := []rune(sql)
	tokens := make([]token, 0, len(runes)/4)
	for i := 0; i < len(runes); {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case r == '-' && i+1 < len(runes) && runes[i+1] == '-':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == '/' && i+1 < len(runes) && runes[i+1] == '*':
			j := i + 2
			for j+1 < len(runes) && !(runes[j] == '*' && runes[j+1] == '/') {
				j++
			}
			if j+1 >= len(runes) {
				return nil, errUnterminatedBlock
			}
			i = j + 2
		case r == '\'':
			j := i + 1
			var b strings.Builder
			closed := false
			for j < len(runes) {
				if runes[j] == '\'' {
					if j+1 < len(runes) && runes[j+1] == '\'' {
						b.WriteRune('\'')
						j += 2
						continue
					}
					closed = true
					break
				}
				b.WriteRune(runes[j])
				j++
			}
			if !closed {
				return nil, errUnterminatedString
			}
			tokens = append(tokens, token{kind: tokenString, text: b.String()})
			i = j + 1
		case r == '"' || r == '`':
			j := i + 1
			for j < len(runes) && runes[j] != r {
				j++
			}
			if j >= len(runes) {
				return nil, errUnterminatedQuote
			}
			tokens = append(tokens, token{kind: tokenQuoted, text: string(runes[i+1 : j])})
			i = j + 1
		case unicode.IsLetter(r) || r == '_':
			j := i
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_' || runes[j] == '$') {
				j++
			}
			tokens = append(tokens, token{kind: tokenWord, text: string(runes[i:j])})
			i = j
		case unicode.IsDigit(r):
			j := i
			for j < len(runes) && (unicode.IsDigit(runes[j]) || runes[j] == '.') {
				j++
			}
			tokens = append(tokens, token{kind: tokenNumber, text: string(runes[i:j])})
			i = j
		default:
			tokens = append(tokens, token{kind: tokenSymbol, text: string(r)})
			i++
		}
	}
	return tokens, nil
}
