// Package cexpr evaluates the restricted constant-expression language
// found in header files: numeric and string literals, previously resolved
// named constants, casts (recognized and discarded), and the standard C
// arithmetic, comparison, logical, bitwise and ternary operators. It
// parses into tokens and evaluates only the supported operator set; there
// is no fallback to any general-purpose evaluator.
package cexpr

import "strings"

type tokenKind int

const (
	tokEOF tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokChar
	tokPunct
)

type token struct {
	kind tokenKind
	text string
}

// lex scans an expression into tokens. Unknown bytes become one-byte
// punctuators; the parser rejects what it does not understand.
func lex(src string) []token {
	var toks []token
	i := 0
	n := len(src)

	isIdentStart := func(c byte) bool {
		return c == '_' || c == '$' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
	}
	isIdent := func(c byte) bool {
		return isIdentStart(c) || (c >= '0' && c <= '9')
	}
	isDigit := func(c byte) bool { return c >= '0' && c <= '9' }

	for i < n {
		c := src[i]

		if c == ' ' || c == '\t' || c == '\n' || c == '\r' {
			i++
			continue
		}

		if isIdentStart(c) {
			start := i
			for i < n && isIdent(src[i]) {
				i++
			}
			toks = append(toks, token{tokIdent, src[start:i]})
			continue
		}

		if isDigit(c) || (c == '.' && i+1 < n && isDigit(src[i+1])) {
			start := i
			for i < n {
				c := src[i]
				if isIdent(c) || c == '.' {
					// Exponent sign is part of the number.
					if (c == 'e' || c == 'E' || c == 'p' || c == 'P') && i+1 < n &&
						(src[i+1] == '+' || src[i+1] == '-') && !strings.HasPrefix(src[start:], "0x") && !strings.HasPrefix(src[start:], "0X") {
						i += 2
						continue
					}
					i++
					continue
				}
				break
			}
			toks = append(toks, token{tokNumber, src[start:i]})
			continue
		}

		if c == '"' {
			start := i
			i++
			for i < n && src[i] != '"' {
				if src[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
			toks = append(toks, token{tokString, src[start:i]})
			continue
		}

		if c == '\'' {
			start := i
			i++
			for i < n && src[i] != '\'' {
				if src[i] == '\\' && i+1 < n {
					i++
				}
				i++
			}
			if i < n {
				i++
			}
			toks = append(toks, token{tokChar, src[start:i]})
			continue
		}

		// Multi-character punctuators first.
		rest := src[i:]
		matched := false
		for _, p := range []string{"<<", ">>", "<=", ">=", "==", "!=", "&&", "||", "->", "::"} {
			if strings.HasPrefix(rest, p) {
				toks = append(toks, token{tokPunct, p})
				i += len(p)
				matched = true
				break
			}
		}
		if matched {
			continue
		}

		toks = append(toks, token{tokPunct, string(c)})
		i++
	}

	return toks
}

// SplitArgs parses a parenthesized, comma-delimited argument list
// starting at the opening paren of s. It returns the textual arguments
// and the byte offset just past the closing paren. Nested parentheses,
// brackets, braces and quoted strings are respected, so nested macro
// calls survive intact.
func SplitArgs(s string) ([]string, int, error) {
	if len(s) == 0 || s[0] != '(' {
		return nil, 0, ErrNoArgList
	}

	var args []string
	depth := 0
	start := 1
	i := 0
	for i < len(s) {
		c := s[i]
		switch c {
		case '(', '[', '{':
			depth++
		case ']', '}':
			depth--
		case ')':
			depth--
			if depth == 0 {
				arg := strings.TrimSpace(s[start:i])
				if arg != "" || len(args) > 0 {
					args = append(args, arg)
				}
				return args, i + 1, nil
			}
		case ',':
			if depth == 1 {
				args = append(args, strings.TrimSpace(s[start:i]))
				start = i + 1
			}
		case '"', '\'':
			quote := c
			i++
			for i < len(s) && s[i] != quote {
				if s[i] == '\\' && i+1 < len(s) {
					i++
				}
				i++
			}
		}
		i++
	}
	return nil, 0, ErrUnterminatedArgs
}
