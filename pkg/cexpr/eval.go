package cexpr

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/clibparse/clibparse/pkg/ctypes"
)

var (
	ErrNoArgList        = errors.New("expected argument list")
	ErrUnterminatedArgs = errors.New("unterminated argument list")
)

// Evaluator evaluates constant expressions against a table of previously
// resolved named constants. The zero value evaluates literal-only
// expressions.
type Evaluator struct {
	// Lookup resolves a named constant. Nil means no names resolve.
	Lookup func(name string) (ctypes.Value, bool)
	// IsType reports whether a name is a known type, used to recognize
	// and discard casts. Nil means only built-in type keywords are
	// recognized in casts.
	IsType func(name string) bool
	// UndefinedIsZero makes unknown identifiers evaluate to 0, which is
	// the preprocessor's rule for #if expressions.
	UndefinedIsZero bool
}

// Eval evaluates an expression to a constant value. An empty expression
// yields the unresolved value with no error; anything the grammar or
// operator set cannot handle returns an error for the caller to downgrade
// to an unresolved value.
func (e *Evaluator) Eval(expr string) (ctypes.Value, error) {
	toks := lex(expr)
	if len(toks) == 0 {
		return ctypes.Value{}, nil
	}
	p := &parser{toks: toks, ev: e}
	v, err := p.parseConditional()
	if err != nil {
		return ctypes.Value{}, err
	}
	if p.pos < len(p.toks) {
		return ctypes.Value{}, fmt.Errorf("unexpected token after expression: %s", p.toks[p.pos].text)
	}
	return v, nil
}

// EvalBool evaluates a preprocessor conditional: unknown identifiers read
// as 0 and the result is its truth value.
func (e *Evaluator) EvalBool(expr string) (bool, error) {
	pp := *e
	pp.UndefinedIsZero = true
	v, err := pp.Eval(expr)
	if err != nil {
		return false, err
	}
	return v.Truthy(), nil
}

// parser is a precedence-climbing expression parser that evaluates as it
// goes. Precedence: conditional -> logicalOr -> logicalAnd -> bitwiseOr
// -> bitwiseXor -> bitwiseAnd -> equality -> relational -> shift ->
// additive -> multiplicative -> unary -> primary.
type parser struct {
	toks []token
	pos  int
	ev   *Evaluator
}

func (p *parser) peek() token {
	if p.pos >= len(p.toks) {
		return token{kind: tokEOF}
	}
	return p.toks[p.pos]
}

func (p *parser) advance() token {
	tok := p.peek()
	if p.pos < len(p.toks) {
		p.pos++
	}
	return tok
}

func (p *parser) match(text string) bool {
	if p.peek().kind == tokPunct && p.peek().text == text {
		p.advance()
		return true
	}
	return false
}

func (p *parser) parseConditional() (ctypes.Value, error) {
	cond, err := p.parseLogicalOr()
	if err != nil {
		return ctypes.Value{}, err
	}
	if p.match("?") {
		thenVal, err := p.parseConditional()
		if err != nil {
			return ctypes.Value{}, err
		}
		if !p.match(":") {
			return ctypes.Value{}, fmt.Errorf("expected ':' in conditional expression")
		}
		elseVal, err := p.parseConditional()
		if err != nil {
			return ctypes.Value{}, err
		}
		if cond.Truthy() {
			return thenVal, nil
		}
		return elseVal, nil
	}
	return cond, nil
}

func boolVal(b bool) ctypes.Value {
	if b {
		return ctypes.IntValue(1)
	}
	return ctypes.IntValue(0)
}

func (p *parser) parseLogicalOr() (ctypes.Value, error) {
	left, err := p.parseLogicalAnd()
	if err != nil {
		return ctypes.Value{}, err
	}
	for p.match("||") {
		right, err := p.parseLogicalAnd()
		if err != nil {
			return ctypes.Value{}, err
		}
		left = boolVal(left.Truthy() || right.Truthy())
	}
	return left, nil
}

func (p *parser) parseLogicalAnd() (ctypes.Value, error) {
	left, err := p.parseBitwiseOr()
	if err != nil {
		return ctypes.Value{}, err
	}
	for p.match("&&") {
		right, err := p.parseBitwiseOr()
		if err != nil {
			return ctypes.Value{}, err
		}
		left = boolVal(left.Truthy() && right.Truthy())
	}
	return left, nil
}

func (p *parser) parseBitwiseOr() (ctypes.Value, error) {
	left, err := p.parseBitwiseXor()
	if err != nil {
		return ctypes.Value{}, err
	}
	for p.peek().kind == tokPunct && p.peek().text == "|" {
		p.advance()
		right, err := p.parseBitwiseXor()
		if err != nil {
			return ctypes.Value{}, err
		}
		left, err = intOp(left, right, func(a, b int64) (int64, error) { return a | b, nil })
		if err != nil {
			return ctypes.Value{}, err
		}
	}
	return left, nil
}

func (p *parser) parseBitwiseXor() (ctypes.Value, error) {
	left, err := p.parseBitwiseAnd()
	if err != nil {
		return ctypes.Value{}, err
	}
	for p.peek().kind == tokPunct && p.peek().text == "^" {
		p.advance()
		right, err := p.parseBitwiseAnd()
		if err != nil {
			return ctypes.Value{}, err
		}
		left, err = intOp(left, right, func(a, b int64) (int64, error) { return a ^ b, nil })
		if err != nil {
			return ctypes.Value{}, err
		}
	}
	return left, nil
}

func (p *parser) parseBitwiseAnd() (ctypes.Value, error) {
	left, err := p.parseEquality()
	if err != nil {
		return ctypes.Value{}, err
	}
	for p.peek().kind == tokPunct && p.peek().text == "&" {
		p.advance()
		right, err := p.parseEquality()
		if err != nil {
			return ctypes.Value{}, err
		}
		left, err = intOp(left, right, func(a, b int64) (int64, error) { return a & b, nil })
		if err != nil {
			return ctypes.Value{}, err
		}
	}
	return left, nil
}

func (p *parser) parseEquality() (ctypes.Value, error) {
	left, err := p.parseRelational()
	if err != nil {
		return ctypes.Value{}, err
	}
	for {
		switch {
		case p.match("=="):
			right, err := p.parseRelational()
			if err != nil {
				return ctypes.Value{}, err
			}
			left = boolVal(valueEq(left, right))
		case p.match("!="):
			right, err := p.parseRelational()
			if err != nil {
				return ctypes.Value{}, err
			}
			left = boolVal(!valueEq(left, right))
		default:
			return left, nil
		}
	}
}

func (p *parser) parseRelational() (ctypes.Value, error) {
	left, err := p.parseShift()
	if err != nil {
		return ctypes.Value{}, err
	}
	for {
		var cmp func(a, b float64) bool
		switch {
		case p.match("<="):
			cmp = func(a, b float64) bool { return a <= b }
		case p.match(">="):
			cmp = func(a, b float64) bool { return a >= b }
		case p.peek().kind == tokPunct && p.peek().text == "<":
			p.advance()
			cmp = func(a, b float64) bool { return a < b }
		case p.peek().kind == tokPunct && p.peek().text == ">":
			p.advance()
			cmp = func(a, b float64) bool { return a > b }
		default:
			return left, nil
		}
		right, err := p.parseShift()
		if err != nil {
			return ctypes.Value{}, err
		}
		if !left.IsNumeric() || !right.IsNumeric() {
			return ctypes.Value{}, fmt.Errorf("cannot compare non-numeric values")
		}
		left = boolVal(cmp(left.AsFloat(), right.AsFloat()))
	}
}

func (p *parser) parseShift() (ctypes.Value, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return ctypes.Value{}, err
	}
	for {
		switch {
		case p.match("<<"):
			right, err := p.parseAdditive()
			if err != nil {
				return ctypes.Value{}, err
			}
			left, err = intOp(left, right, func(a, b int64) (int64, error) { return a << uint(b), nil })
			if err != nil {
				return ctypes.Value{}, err
			}
		case p.match(">>"):
			right, err := p.parseAdditive()
			if err != nil {
				return ctypes.Value{}, err
			}
			left, err = intOp(left, right, func(a, b int64) (int64, error) { return a >> uint(b), nil })
			if err != nil {
				return ctypes.Value{}, err
			}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseAdditive() (ctypes.Value, error) {
	left, err := p.parseMultiplicative()
	if err != nil {
		return ctypes.Value{}, err
	}
	for {
		switch {
		case p.peek().kind == tokPunct && p.peek().text == "+":
			p.advance()
			right, err := p.parseMultiplicative()
			if err != nil {
				return ctypes.Value{}, err
			}
			left, err = numOp(left, right,
				func(a, b int64) (int64, error) { return a + b, nil },
				func(a, b float64) (float64, error) { return a + b, nil })
			if err != nil {
				return ctypes.Value{}, err
			}
		case p.peek().kind == tokPunct && p.peek().text == "-":
			p.advance()
			right, err := p.parseMultiplicative()
			if err != nil {
				return ctypes.Value{}, err
			}
			left, err = numOp(left, right,
				func(a, b int64) (int64, error) { return a - b, nil },
				func(a, b float64) (float64, error) { return a - b, nil })
			if err != nil {
				return ctypes.Value{}, err
			}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseMultiplicative() (ctypes.Value, error) {
	left, err := p.parseUnary()
	if err != nil {
		return ctypes.Value{}, err
	}
	for {
		switch {
		case p.peek().kind == tokPunct && p.peek().text == "*":
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return ctypes.Value{}, err
			}
			left, err = numOp(left, right,
				func(a, b int64) (int64, error) { return a * b, nil },
				func(a, b float64) (float64, error) { return a * b, nil })
			if err != nil {
				return ctypes.Value{}, err
			}
		case p.peek().kind == tokPunct && p.peek().text == "/":
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return ctypes.Value{}, err
			}
			left, err = numOp(left, right,
				func(a, b int64) (int64, error) {
					if b == 0 {
						return 0, fmt.Errorf("division by zero")
					}
					return a / b, nil
				},
				func(a, b float64) (float64, error) {
					if b == 0 {
						return 0, fmt.Errorf("division by zero")
					}
					return a / b, nil
				})
			if err != nil {
				return ctypes.Value{}, err
			}
		case p.peek().kind == tokPunct && p.peek().text == "%":
			p.advance()
			right, err := p.parseUnary()
			if err != nil {
				return ctypes.Value{}, err
			}
			left, err = intOp(left, right, func(a, b int64) (int64, error) {
				if b == 0 {
					return 0, fmt.Errorf("modulo by zero")
				}
				return a % b, nil
			})
			if err != nil {
				return ctypes.Value{}, err
			}
		default:
			return left, nil
		}
	}
}

func (p *parser) parseUnary() (ctypes.Value, error) {
	if p.peek().kind == tokPunct {
		switch p.peek().text {
		case "!":
			p.advance()
			v, err := p.parseUnary()
			if err != nil {
				return ctypes.Value{}, err
			}
			return boolVal(!v.Truthy()), nil
		case "-":
			p.advance()
			v, err := p.parseUnary()
			if err != nil {
				return ctypes.Value{}, err
			}
			switch v.Kind {
			case ctypes.IntKind:
				return ctypes.IntValue(-v.Int), nil
			case ctypes.FloatKind:
				return ctypes.FloatValue(-v.Float), nil
			}
			return ctypes.Value{}, fmt.Errorf("cannot negate %v", v)
		case "+":
			p.advance()
			return p.parseUnary()
		case "~":
			p.advance()
			v, err := p.parseUnary()
			if err != nil {
				return ctypes.Value{}, err
			}
			if v.Kind != ctypes.IntKind {
				return ctypes.Value{}, fmt.Errorf("cannot complement %v", v)
			}
			return ctypes.IntValue(^v.Int), nil
		}
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (ctypes.Value, error) {
	tok := p.peek()

	if tok.kind == tokPunct && tok.text == "(" {
		// A parenthesized type is a cast: recognize, discard, and
		// evaluate the casted operand. Casts never change a header
		// constant's value here.
		if end, ok := p.castEnd(); ok {
			p.pos = end
			return p.parseUnary()
		}
		p.advance()
		v, err := p.parseConditional()
		if err != nil {
			return ctypes.Value{}, err
		}
		if !p.match(")") {
			return ctypes.Value{}, fmt.Errorf("expected ')'")
		}
		return v, nil
	}

	if tok.kind == tokNumber {
		p.advance()
		return parseNumber(tok.text)
	}

	if tok.kind == tokChar {
		p.advance()
		n, err := parseCharConst(tok.text)
		if err != nil {
			return ctypes.Value{}, err
		}
		return ctypes.IntValue(n), nil
	}

	if tok.kind == tokString {
		p.advance()
		s := tok.text
		if len(s) >= 2 {
			s = s[1 : len(s)-1]
		}
		return ctypes.StrValue(s), nil
	}

	if tok.kind == tokIdent {
		p.advance()
		if p.ev.Lookup != nil {
			if v, ok := p.ev.Lookup(tok.text); ok {
				return v, nil
			}
		}
		if p.ev.UndefinedIsZero {
			return ctypes.IntValue(0), nil
		}
		return ctypes.Value{}, fmt.Errorf("unknown identifier %q", tok.text)
	}

	return ctypes.Value{}, fmt.Errorf("unexpected token in expression: %q", tok.text)
}

// castEnd checks whether the tokens from the current '(' to its matching
// ')' form a type name (keywords, qualifiers, known type names, pointers
// and array brackets) followed by something an expression can start
// with. It returns the token index just past the ')' when so.
func (p *parser) castEnd() (int, bool) {
	depth := 0
	i := p.pos
	for ; i < len(p.toks); i++ {
		t := p.toks[i]
		if t.kind != tokPunct {
			continue
		}
		if t.text == "(" {
			depth++
		} else if t.text == ")" {
			depth--
			if depth == 0 {
				break
			}
		}
	}
	if i >= len(p.toks) {
		return 0, false
	}

	inner := p.toks[p.pos+1 : i]
	if len(inner) == 0 {
		return 0, false
	}
	sawType := false
	for j, t := range inner {
		switch t.kind {
		case tokIdent:
			switch {
			case ctypes.IsTypeKeyword(t.text) || t.text == "struct" ||
				t.text == "union" || t.text == "enum":
				sawType = true
			case ctypes.IsQualifier(t.text) || ctypes.IsCallConv(t.text) ||
				ctypes.IsMSModifier(t.text):
				// ignored
			case p.ev.IsType != nil && p.ev.IsType(t.text):
				sawType = true
			case sawType && j == len(inner)-1:
				// A trailing identifier after a type is tolerated
				// (e.g. a named abstract declarator); still a cast.
			default:
				return 0, false
			}
		case tokNumber:
			// array dimension inside the declarator
		case tokPunct:
			switch t.text {
			case "*", "&", "[", "]", "(", ")":
			default:
				return 0, false
			}
		default:
			return 0, false
		}
	}
	if !sawType {
		return 0, false
	}

	// The cast must be followed by an operand.
	if i+1 >= len(p.toks) {
		return 0, false
	}
	next := p.toks[i+1]
	switch next.kind {
	case tokNumber, tokString, tokChar, tokIdent:
		return i + 1, true
	case tokPunct:
		switch next.text {
		case "(", "-", "+", "~", "!":
			return i + 1, true
		}
	}
	return 0, false
}

func intOp(a, b ctypes.Value, f func(int64, int64) (int64, error)) (ctypes.Value, error) {
	if a.Kind != ctypes.IntKind || b.Kind != ctypes.IntKind {
		return ctypes.Value{}, fmt.Errorf("integer operation on non-integer values")
	}
	r, err := f(a.Int, b.Int)
	if err != nil {
		return ctypes.Value{}, err
	}
	return ctypes.IntValue(r), nil
}

func numOp(a, b ctypes.Value, fi func(int64, int64) (int64, error),
	ff func(float64, float64) (float64, error)) (ctypes.Value, error) {

	if !a.IsNumeric() || !b.IsNumeric() {
		return ctypes.Value{}, fmt.Errorf("arithmetic on non-numeric values")
	}
	if a.Kind == ctypes.IntKind && b.Kind == ctypes.IntKind {
		r, err := fi(a.Int, b.Int)
		if err != nil {
			return ctypes.Value{}, err
		}
		return ctypes.IntValue(r), nil
	}
	r, err := ff(a.AsFloat(), b.AsFloat())
	if err != nil {
		return ctypes.Value{}, err
	}
	return ctypes.FloatValue(r), nil
}

func valueEq(a, b ctypes.Value) bool {
	if a.IsNumeric() && b.IsNumeric() {
		return a.AsFloat() == b.AsFloat()
	}
	return a.Equal(b)
}

// parseNumber parses an integer or floating constant, trimming the usual
// integer suffixes (U, L, UL, LL, ...).
func parseNumber(s string) (ctypes.Value, error) {
	s = strings.TrimRight(s, "lLuU")

	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		val, err := strconv.ParseUint(s[2:], 16, 64)
		if err != nil {
			return ctypes.Value{}, err
		}
		return ctypes.IntValue(int64(val)), nil
	}
	if strings.HasPrefix(s, "0b") || strings.HasPrefix(s, "0B") {
		val, err := strconv.ParseInt(s[2:], 2, 64)
		if err != nil {
			return ctypes.Value{}, err
		}
		return ctypes.IntValue(val), nil
	}

	if strings.ContainsAny(s, ".eE") {
		s = strings.TrimRight(s, "fF")
		val, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return ctypes.Value{}, err
		}
		return ctypes.FloatValue(val), nil
	}

	if strings.HasPrefix(s, "0") && len(s) > 1 && s[1] >= '0' && s[1] <= '7' {
		val, err := strconv.ParseInt(s[1:], 8, 64)
		if err != nil {
			return ctypes.Value{}, err
		}
		return ctypes.IntValue(val), nil
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return ctypes.Value{}, err
	}
	return ctypes.IntValue(val), nil
}

// parseCharConst parses a character constant like 'a' or '\n'.
func parseCharConst(s string) (int64, error) {
	if len(s) < 2 || s[0] != '\'' || s[len(s)-1] != '\'' {
		return 0, fmt.Errorf("invalid character constant: %s", s)
	}
	inner := s[1 : len(s)-1]
	if len(inner) == 0 {
		return 0, fmt.Errorf("empty character constant")
	}

	if inner[0] == '\\' {
		if len(inner) < 2 {
			return 0, fmt.Errorf("invalid escape sequence")
		}
		switch inner[1] {
		case 'n':
			return '\n', nil
		case 't':
			return '\t', nil
		case 'r':
			return '\r', nil
		case '\\':
			return '\\', nil
		case '\'':
			return '\'', nil
		case '"':
			return '"', nil
		case '0':
			return 0, nil
		case 'a':
			return '\a', nil
		case 'b':
			return '\b', nil
		case 'f':
			return '\f', nil
		case 'v':
			return '\v', nil
		case 'x':
			if len(inner) < 3 {
				return 0, fmt.Errorf("invalid hex escape")
			}
			return strconv.ParseInt(inner[2:], 16, 64)
		default:
			if inner[1] >= '0' && inner[1] <= '7' {
				return strconv.ParseInt(inner[1:], 8, 64)
			}
			return 0, fmt.Errorf("unknown escape sequence: %s", inner)
		}
	}

	return int64(inner[0]), nil
}
