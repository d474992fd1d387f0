package cdecl

import (
	"fmt"
	"strings"

	"github.com/clibparse/clibparse/pkg/ctypes"
)

// Parser parses declarators. Eval resolves constant expressions found in
// array sizes and argument defaults; when nil only plain integer sizes
// resolve.
type Parser struct {
	Eval func(expr string) (ctypes.Value, error)
}

// Result is one parsed declarator: the declared name (empty for abstract
// declarators) and its modifiers, outermost first. For int *x[10] the
// modifiers are the array then the pointer.
type Result struct {
	Name     string
	CallConv string
	Mods     []ctypes.Modifier
}

// ParseDeclarator parses a declarator starting at toks[i]. It stops at
// the first token that cannot extend the declarator (',', ';', '=', ')'
// and so on) and returns the next index.
func (p *Parser) ParseDeclarator(toks []Token, i int) (Result, int, error) {
	var res Result
	stars := 0
	ref := false

	for i < len(toks) {
		t := toks[i]
		if t.Kind == TokPunct && t.Text == "*" {
			stars++
			i++
			continue
		}
		if t.Kind == TokPunct && t.Text == "&" {
			ref = true
			i++
			continue
		}
		if t.Kind == TokIdent {
			if ctypes.IsQualifier(t.Text) || ctypes.IsMSModifier(t.Text) {
				i++
				i = skipModifierPayload(toks, i)
				continue
			}
			if ctypes.IsCallConv(t.Text) {
				res.CallConv = t.Text
				i++
				continue
			}
		}
		break
	}

	var inner []ctypes.Modifier
	if i < len(toks) {
		t := toks[i]
		switch {
		case t.Kind == TokIdent && !ctypes.IsTypeKeyword(t.Text):
			res.Name = t.Text
			i++
		case t.Kind == TokPunct && t.Text == "(" && isGrouping(toks, i):
			ir, ni, err := p.ParseDeclarator(toks, i+1)
			if err != nil {
				return Result{}, i, err
			}
			if ni >= len(toks) || toks[ni].Text != ")" {
				return Result{}, i, fmt.Errorf("line %d: expected ')' in declarator", t.Line)
			}
			i = ni + 1
			inner = ir.Mods
			res.Name = ir.Name
			if res.CallConv == "" {
				res.CallConv = ir.CallConv
			}
		}
		// Anything else leaves an abstract declarator.
	}

	var suffix []ctypes.Modifier
	for i < len(toks) {
		t := toks[i]
		if t.Kind == TokPunct && t.Text == "[" {
			var dims ctypes.Array
			for i < len(toks) && toks[i].Kind == TokPunct && toks[i].Text == "[" {
				sizeToks, ni, err := collectBracket(toks, i)
				if err != nil {
					return Result{}, i, err
				}
				n, err := p.evalSize(sizeToks)
				if err != nil {
					return Result{}, i, fmt.Errorf("line %d: array size: %v", t.Line, err)
				}
				dims = append(dims, n)
				i = ni
			}
			suffix = append(suffix, dims)
			continue
		}
		if t.Kind == TokPunct && t.Text == "(" {
			args, ni, err := p.parseParams(toks, i)
			if err != nil {
				return Result{}, i, err
			}
			suffix = append(suffix, args)
			i = ni
			continue
		}
		break
	}

	mods := make([]ctypes.Modifier, 0, len(inner)+len(suffix)+2)
	mods = append(mods, inner...)
	mods = append(mods, suffix...)
	if stars > 0 {
		mods = append(mods, ctypes.Pointer(stars))
	}
	if ref {
		mods = append(mods, ctypes.Ref{})
	}

	if res.CallConv != "" {
		cc := ctypes.CallConv(res.CallConv)
		idx := -1
		for k, m := range mods {
			if _, ok := m.(ctypes.Args); ok {
				idx = k
				break
			}
		}
		if idx >= 0 {
			mods = append(mods[:idx], append([]ctypes.Modifier{cc}, mods[idx:]...)...)
		} else {
			mods = append(mods, cc)
		}
	}

	res.Mods = mods
	return res, i, nil
}

// skipModifierPayload advances past the parenthesized argument some
// Microsoft modifiers carry, as in __declspec(dllexport).
func skipModifierPayload(toks []Token, i int) int {
	if i >= len(toks) || toks[i].Text != "(" {
		return i
	}
	depth := 0
	for ; i < len(toks); i++ {
		switch toks[i].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				return i + 1
			}
		}
	}
	return i
}

// isGrouping distinguishes a parenthesized inner declarator from a
// parameter list by looking at the first token inside the parens.
func isGrouping(toks []Token, i int) bool {
	if i+1 >= len(toks) {
		return false
	}
	t := toks[i+1]
	if t.Kind == TokPunct {
		return t.Text == "*" || t.Text == "&" || t.Text == "("
	}
	if t.Kind == TokIdent {
		if ctypes.IsCallConv(t.Text) || ctypes.IsQualifier(t.Text) || ctypes.IsMSModifier(t.Text) {
			return true
		}
		return !ctypes.IsTypeKeyword(t.Text) && t.Text != "struct" &&
			t.Text != "union" && t.Text != "enum"
	}
	return false
}

// collectBracket gathers the tokens between a '[' at toks[i] and its
// matching ']', returning them and the index past the ']'.
func collectBracket(toks []Token, i int) ([]Token, int, error) {
	depth := 0
	start := i + 1
	for ; i < len(toks); i++ {
		switch toks[i].Text {
		case "[":
			depth++
		case "]":
			depth--
			if depth == 0 {
				return toks[start:i], i + 1, nil
			}
		}
	}
	return nil, i, fmt.Errorf("unmatched '['")
}

// parseParams parses a parenthesized parameter list with toks[i] at the
// '('. A lone void means no parameters.
func (p *Parser) parseParams(toks []Token, i int) (ctypes.Args, int, error) {
	if toks[i].Text != "(" {
		return nil, i, fmt.Errorf("line %d: expected '('", toks[i].Line)
	}
	i++
	if i < len(toks) && toks[i].Text == ")" {
		return ctypes.Args{}, i + 1, nil
	}

	args := ctypes.Args{}
	var cur []Token
	depth := 1
	for ; i < len(toks); i++ {
		t := toks[i]
		if t.Kind == TokPunct {
			switch t.Text {
			case "(", "[":
				depth++
			case "]":
				depth--
			case ")":
				depth--
				if depth == 0 {
					arg, err := p.parseArg(cur)
					if err != nil {
						return nil, i, err
					}
					args = append(args, arg)
					if len(args) == 1 && args[0].Name == "" &&
						args[0].Type.Base == "void" && len(args[0].Type.Mods) == 0 {
						args = ctypes.Args{}
					}
					return args, i + 1, nil
				}
			case ",":
				if depth == 1 {
					arg, err := p.parseArg(cur)
					if err != nil {
						return nil, i, err
					}
					args = append(args, arg)
					cur = nil
					continue
				}
			}
		}
		cur = append(cur, t)
	}
	return nil, i, fmt.Errorf("unmatched '(' in parameter list")
}

// parseArg parses one parameter: type specifier words, a possibly
// abstract declarator, and an optional default value.
func (p *Parser) parseArg(toks []Token) (ctypes.Arg, error) {
	if len(toks) == 0 {
		return ctypes.Arg{}, fmt.Errorf("empty parameter")
	}
	if len(toks) == 1 && toks[0].Text == "..." {
		return ctypes.Arg{Name: "...", Type: ctypes.NewType("...")}, nil
	}

	var defToks []Token
	depth := 0
	for i, t := range toks {
		switch t.Text {
		case "(", "[":
			depth++
		case ")", "]":
			depth--
		case "=":
			if depth == 0 && t.Kind == TokPunct {
				defToks = toks[i+1:]
				toks = toks[:i]
			}
		}
		if defToks != nil {
			break
		}
	}

	var baseWords []string
	i := 0
	for i < len(toks) {
		t := toks[i]
		if t.Kind != TokIdent {
			break
		}
		switch {
		case t.Text == "struct" || t.Text == "union" || t.Text == "enum":
			if i+1 >= len(toks) || toks[i+1].Kind != TokIdent {
				return ctypes.Arg{}, fmt.Errorf("line %d: expected tag after %s", t.Line, t.Text)
			}
			baseWords = append(baseWords, t.Text+" "+toks[i+1].Text)
			i += 2
		case ctypes.IsQualifier(t.Text) || ctypes.IsMSModifier(t.Text):
			i++
			i = skipModifierPayload(toks, i)
		case ctypes.IsCallConv(t.Text):
			// Belongs to the declarator.
			goto declarator
		case ctypes.IsTypeKeyword(t.Text):
			baseWords = append(baseWords, t.Text)
			i++
		case len(baseWords) == 0:
			baseWords = append(baseWords, t.Text)
			i++
		default:
			goto declarator
		}
	}
declarator:
	if len(baseWords) == 0 {
		return ctypes.Arg{}, fmt.Errorf("line %d: missing type in parameter", toks[0].Line)
	}

	res, ni, err := p.ParseDeclarator(toks, i)
	if err != nil {
		return ctypes.Arg{}, err
	}
	if ni < len(toks) {
		return ctypes.Arg{}, fmt.Errorf("line %d: trailing tokens in parameter: %s",
			toks[ni].Line, joinTokens(toks[ni:]))
	}

	arg := ctypes.Arg{
		Name: res.Name,
		Type: ctypes.Type{Base: strings.Join(baseWords, " "), Mods: res.Mods},
	}
	if defToks != nil && p.Eval != nil {
		if v, err := p.Eval(joinTokens(defToks)); err == nil && v.Resolved() {
			arg.Default = &v
		}
	}
	return arg, nil
}

// evalSize resolves an array dimension. Empty brackets give the
// incomplete size -1.
func (p *Parser) evalSize(toks []Token) (int64, error) {
	if len(toks) == 0 {
		return -1, nil
	}
	expr := joinTokens(toks)
	if p.Eval == nil {
		return 0, fmt.Errorf("cannot resolve size %q", expr)
	}
	v, err := p.Eval(expr)
	if err != nil {
		return 0, err
	}
	if v.Kind != ctypes.IntKind {
		return 0, fmt.Errorf("size %q is not an integer", expr)
	}
	return v.Int, nil
}

// joinTokens rebuilds expression text from tokens.
func joinTokens(toks []Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}
