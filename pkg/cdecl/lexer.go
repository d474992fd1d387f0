// Package cdecl parses C declarators: the pointer, array, reference,
// argument-list and calling-convention decorations around a declared
// name. It produces the modifier lists the registry stores; resolving
// type specifiers and aggregate bodies is the construct parser's job.
package cdecl

import "strings"

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokEOF TokenKind = iota
	TokIdent
	TokNumber
	TokString
	TokChar
	TokPunct
)

// Token is one lexical token with its 1-based source line.
type Token struct {
	Kind TokenKind
	Text string
	Line int
}

// multi-character punctuators, longest first.
var punct2 = []string{
	"...", "<<=", ">>=",
	"<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "->", "::",
	"+=", "-=", "*=", "/=",
}

// Lex tokenizes C declaration text. Comments are assumed to be already
// stripped.
func Lex(src string) []Token {
	var toks []Token
	line := 1
	i := 0
	for i < len(src) {
		c := src[i]

		if c == '\n' {
			line++
			i++
			continue
		}
		if c == ' ' || c == '\t' || c == '\r' {
			i++
			continue
		}

		if isIdentStart(c) {
			j := i + 1
			for j < len(src) && isIdentPart(src[j]) {
				j++
			}
			toks = append(toks, Token{Kind: TokIdent, Text: src[i:j], Line: line})
			i = j
			continue
		}

		if c >= '0' && c <= '9' || (c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9') {
			j := i + 1
			for j < len(src) {
				d := src[j]
				if isIdentPart(d) || d == '.' {
					j++
					continue
				}
				if (d == '+' || d == '-') && (src[j-1] == 'e' || src[j-1] == 'E' ||
					src[j-1] == 'p' || src[j-1] == 'P') {
					j++
					continue
				}
				break
			}
			toks = append(toks, Token{Kind: TokNumber, Text: src[i:j], Line: line})
			i = j
			continue
		}

		if c == '"' || c == '\'' {
			j := i + 1
			for j < len(src) && src[j] != c {
				if src[j] == '\\' && j+1 < len(src) {
					j++
				}
				j++
			}
			if j < len(src) {
				j++
			}
			kind := TokString
			if c == '\'' {
				kind = TokChar
			}
			toks = append(toks, Token{Kind: kind, Text: src[i:j], Line: line})
			i = j
			continue
		}

		matched := false
		for _, op := range punct2 {
			if strings.HasPrefix(src[i:], op) {
				toks = append(toks, Token{Kind: TokPunct, Text: op, Line: line})
				i += len(op)
				matched = true
				break
			}
		}
		if !matched {
			toks = append(toks, Token{Kind: TokPunct, Text: string(c), Line: line})
			i++
		}
	}
	return toks
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}
