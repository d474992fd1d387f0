package cpp

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/clibparse/clibparse/pkg/cexpr"
	"github.com/clibparse/clibparse/pkg/registry"
)

var identRe = regexp.MustCompile(`[a-zA-Z_][a-zA-Z0-9_]*`)

// CompileFnMacro turns a function macro body into a substitution
// template. Parameter occurrences become {} placeholders, recorded in
// ArgOrder as indexes into the formal parameter list; literal braces are
// doubled so expansion can tell them apart from placeholders.
func CompileFnMacro(body string, params []string) (registry.FnMacro, error) {
	index := make(map[string]int, len(params))
	for i, p := range params {
		if p == "" {
			return registry.FnMacro{}, fmt.Errorf("empty macro parameter name")
		}
		index[p] = i
	}

	body = strings.ReplaceAll(body, "{", "{{")
	body = strings.ReplaceAll(body, "}", "}}")

	var order []int
	tmpl := identRe.ReplaceAllStringFunc(body, func(word string) string {
		i, ok := index[word]
		if !ok {
			return word
		}
		order = append(order, i)
		return "{}"
	})

	return registry.FnMacro{
		Template: tmpl,
		ArgOrder: order,
		NumArgs:  len(params),
	}, nil
}

// expandFnMacro instantiates a compiled macro with the given actual
// arguments.
func expandFnMacro(m registry.FnMacro, args []string) (string, error) {
	if len(args) != m.NumArgs {
		return "", fmt.Errorf("macro expects %d args, got %d", m.NumArgs, len(args))
	}

	var out strings.Builder
	tmpl := m.Template
	next := 0
	for i := 0; i < len(tmpl); {
		switch {
		case strings.HasPrefix(tmpl[i:], "{{"):
			out.WriteByte('{')
			i += 2
		case strings.HasPrefix(tmpl[i:], "}}"):
			out.WriteByte('}')
			i += 2
		case strings.HasPrefix(tmpl[i:], "{}"):
			if next >= len(m.ArgOrder) {
				return "", fmt.Errorf("template has more placeholders than recorded")
			}
			out.WriteString(args[m.ArgOrder[next]])
			next++
			i += 2
		default:
			out.WriteByte(tmpl[i])
			i++
		}
	}
	return out.String(), nil
}

// ExpandMacros rewrites all defined macro invocations in a line of text,
// recursing into replacement text. A function macro name that is not
// followed by an argument list is left alone and reported through the
// preprocessor's logger.
func (p *Preprocessor) ExpandMacros(text string) string {
	return p.expand(text, nil)
}

func (p *Preprocessor) expand(text string, active []string) string {
	var out strings.Builder
	i := 0
	for i < len(text) {
		c := text[i]

		// Skip string and character literals untouched.
		if c == '"' || c == '\'' {
			quote := c
			out.WriteByte(c)
			i++
			for i < len(text) {
				out.WriteByte(text[i])
				if text[i] == '\\' && i+1 < len(text) {
					i++
					out.WriteByte(text[i])
				} else if text[i] == quote {
					i++
					break
				}
				i++
			}
			continue
		}

		if !isIdentStart(c) {
			out.WriteByte(c)
			i++
			continue
		}

		j := i + 1
		for j < len(text) && isIdentPart(text[j]) {
			j++
		}
		word := text[i:j]

		if contains(active, word) {
			out.WriteString(word)
			i = j
			continue
		}

		if repl, ok := p.reg.Global.Macros[word]; ok {
			out.WriteString(p.expand(repl, append(active, word)))
			i = j
			continue
		}

		if m, ok := p.reg.Global.FnMacros[word]; ok {
			rest := text[j:]
			k := 0
			for k < len(rest) && (rest[k] == ' ' || rest[k] == '\t') {
				k++
			}
			args, n, err := cexpr.SplitArgs(rest[k:])
			if err != nil {
				p.logf("macro %s used without argument list: %v", word, err)
				out.WriteString(word)
				i = j
				continue
			}
			for ai := range args {
				args[ai] = p.expand(args[ai], append(active, word))
			}
			repl, err := expandFnMacro(m, args)
			if err != nil {
				p.logf("cannot expand macro %s: %v", word, err)
				out.WriteString(word)
				i = j
				continue
			}
			out.WriteString(p.expand(repl, append(active, word)))
			i = j + k + n
			continue
		}

		out.WriteString(word)
		i = j
	}
	return out.String()
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
