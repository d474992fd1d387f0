package cparse

import (
	"fmt"
	"strings"

	"github.com/clibparse/clibparse/pkg/cdecl"
	"github.com/clibparse/clibparse/pkg/ctypes"
	"github.com/clibparse/clibparse/pkg/registry"
)

// scanner walks the token stream of one preprocessed unit and registers
// every construct it can recognize. Unrecognizable stretches are skipped
// to the next statement boundary and kept as residue.
type scanner struct {
	p    *Parser
	unit string
	toks []cdecl.Token
	pos  int
}

// parseDefs scans a preprocessed unit for typedefs, variables, function
// prototypes and definitions, and struct/union/enum definitions.
func (p *Parser) parseDefs(unit, text string) {
	p.reg.SetCurrentUnit(unit)
	s := &scanner{p: p, unit: unit, toks: cdecl.Lex(text)}

	for s.pos < len(s.toks) {
		// Stray '}' closes an extern "C" block entered earlier.
		if s.is(";") || s.is("}") {
			s.pos++
			continue
		}
		start := s.pos
		if err := s.parseConstruct(); err != nil {
			s.pos = start
			skipped := s.skipStatement()
			p.logf("%s:%d: %v (skipping %q)", unit, s.toks[start].Line, err, skipped)
			if p.residue == nil {
				p.residue = make(map[string][]string)
			}
			p.residue[unit] = append(p.residue[unit], skipped)
		}
	}
}

func (s *scanner) cur() cdecl.Token {
	if s.pos >= len(s.toks) {
		return cdecl.Token{Kind: cdecl.TokEOF}
	}
	return s.toks[s.pos]
}

func (s *scanner) is(text string) bool {
	t := s.cur()
	return t.Kind != cdecl.TokEOF && t.Text == text
}

func (s *scanner) line() int {
	if s.pos < len(s.toks) {
		return s.toks[s.pos].Line
	}
	if len(s.toks) > 0 {
		return s.toks[len(s.toks)-1].Line
	}
	return 0
}

// skipStatement consumes tokens through the next ';' at bracket depth
// zero and returns the skipped text.
func (s *scanner) skipStatement() string {
	start := s.pos
	depth := 0
	for s.pos < len(s.toks) {
		switch s.toks[s.pos].Text {
		case "(", "[", "{":
			depth++
		case ")", "]":
			depth--
		case "}":
			depth--
			if depth <= 0 {
				s.pos++
				return tokenText(s.toks[start:s.pos])
			}
		case ";":
			if depth <= 0 {
				s.pos++
				return tokenText(s.toks[start:s.pos])
			}
		}
		s.pos++
	}
	return tokenText(s.toks[start:])
}

func tokenText(toks []cdecl.Token) string {
	parts := make([]string, len(toks))
	for i, t := range toks {
		parts[i] = t.Text
	}
	return strings.Join(parts, " ")
}

// parseConstruct parses one top-level construct starting at the current
// position.
func (s *scanner) parseConstruct() error {
	// Linkage specifiers carry no type information. An extern "C" block
	// is entered; its contents parse as ordinary constructs.
	if s.is("extern") {
		s.pos++
		if s.cur().Kind == cdecl.TokString {
			s.pos++
		}
		if s.is("{") {
			s.pos++
			return nil
		}
		return s.parseConstruct()
	}

	if s.is("typedef") {
		s.pos++
		return s.parseTypedef()
	}

	base, err := s.parseTypeSpec()
	if err != nil {
		return err
	}

	// A bare struct/union/enum definition ends here.
	if s.is(";") {
		s.pos++
		return nil
	}
	return s.parseDeclList(base)
}

func (s *scanner) parseTypedef() error {
	base, err := s.parseTypeSpec()
	if err != nil {
		return err
	}
	for {
		res, ni, err := s.p.decl.ParseDeclarator(s.toks, s.pos)
		if err != nil {
			return err
		}
		s.pos = ni
		if res.Name == "" {
			return fmt.Errorf("typedef without a name")
		}
		s.p.reg.AddType(res.Name, ctypes.Type{Base: base, Mods: res.Mods})

		if s.is(",") {
			s.pos++
			continue
		}
		if s.is(";") {
			s.pos++
			return nil
		}
		return fmt.Errorf("expected ';' after typedef, got %q", s.cur().Text)
	}
}

// parseDeclList parses the comma-delimited declarators of a variable
// declaration, function prototype, or function definition.
func (s *scanner) parseDeclList(base string) error {
	for {
		res, ni, err := s.p.decl.ParseDeclarator(s.toks, s.pos)
		if err != nil {
			return err
		}
		s.pos = ni
		if res.Name == "" {
			return fmt.Errorf("declaration without a name")
		}
		typ := ctypes.Type{Base: base, Mods: res.Mods}

		// Function definition: body is discarded, the signature kept.
		if s.is("{") {
			if !typ.IsFunction() {
				return fmt.Errorf("unexpected '{' after declarator %s", res.Name)
			}
			if err := s.skipBraces(); err != nil {
				return err
			}
			args, ret := splitFunction(typ)
			s.p.reg.AddFunction(res.Name, registry.Function{Args: args, Return: ret})
			return nil
		}

		val := ctypes.Value{}
		if s.is("=") {
			s.pos++
			val = s.parseInitializer()
		}

		if typ.IsFunction() {
			args, ret := splitFunction(typ)
			s.p.reg.AddFunction(res.Name, registry.Function{Args: args, Return: ret})
		} else {
			s.p.reg.AddVariable(res.Name, registry.Variable{Value: val, Type: typ})
			s.p.reg.AddValue(res.Name, val)
		}

		if s.is(",") {
			s.pos++
			continue
		}
		if s.is(";") {
			s.pos++
			return nil
		}
		return fmt.Errorf("expected ';' after declaration, got %q", s.cur().Text)
	}
}

// parseInitializer evaluates the expression or brace-list after '='.
// Failure to evaluate is not an error; the value stays unresolved.
func (s *scanner) parseInitializer() ctypes.Value {
	if s.is("{") {
		s.pos++
		var vals []ctypes.Value
		resolved := true
		for !s.is("}") && s.cur().Kind != cdecl.TokEOF {
			toks := s.gatherExpr(",", "}")
			v, err := s.p.evalExpr(tokenText(toks))
			if err != nil || !v.Resolved() {
				resolved = false
			}
			vals = append(vals, v)
			if s.is(",") {
				s.pos++
			}
		}
		if s.is("}") {
			s.pos++
		}
		if !resolved {
			return ctypes.Value{}
		}
		return ctypes.ListValue(vals)
	}

	toks := s.gatherExpr(",", ";")
	v, err := s.p.evalExpr(tokenText(toks))
	if err != nil {
		return ctypes.Value{}
	}
	return v
}

// gatherExpr collects tokens up to, but not including, any of the stop
// punctuators at bracket depth zero.
func (s *scanner) gatherExpr(stops ...string) []cdecl.Token {
	start := s.pos
	depth := 0
	for s.pos < len(s.toks) {
		text := s.toks[s.pos].Text
		if depth == 0 {
			for _, stop := range stops {
				if text == stop {
					return s.toks[start:s.pos]
				}
			}
		}
		switch text {
		case "(", "[", "{":
			depth++
		case ")", "]", "}":
			if depth == 0 {
				return s.toks[start:s.pos]
			}
			depth--
		}
		s.pos++
	}
	return s.toks[start:]
}

// skipBraces consumes a balanced brace block starting at '{'.
func (s *scanner) skipBraces() error {
	if !s.is("{") {
		return fmt.Errorf("expected '{'")
	}
	depth := 0
	for s.pos < len(s.toks) {
		switch s.toks[s.pos].Text {
		case "{":
			depth++
		case "}":
			depth--
			if depth == 0 {
				s.pos++
				return nil
			}
		}
		s.pos++
	}
	return fmt.Errorf("unbalanced braces")
}

// splitFunction separates a function type into its argument tuple and
// return type. The outermost Args modifier is removed; everything else,
// including a calling convention, stays with the return type.
func splitFunction(t ctypes.Type) (ctypes.Args, ctypes.Type) {
	for i, m := range t.Mods {
		if args, ok := m.(ctypes.Args); ok {
			rest := make([]ctypes.Modifier, 0, len(t.Mods)-1)
			rest = append(rest, t.Mods[:i]...)
			rest = append(rest, t.Mods[i+1:]...)
			return args, ctypes.Type{Base: t.Base, Mods: rest}
		}
	}
	return nil, t
}
