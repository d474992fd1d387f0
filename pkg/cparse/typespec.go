package cparse

import (
	"fmt"
	"strings"

	"github.com/clibparse/clibparse/pkg/cdecl"
	"github.com/clibparse/clibparse/pkg/ctypes"
	"github.com/clibparse/clibparse/pkg/registry"
)

// parseTypeSpec parses a type specifier and returns its base type name.
// Inline struct, union and enum definitions are processed and
// registered as a side effect; the returned base is then the tagged
// name, e.g. "struct point" or "enum anonEnum0".
func (s *scanner) parseTypeSpec() (string, error) {
	var words []string
	for {
		t := s.cur()
		if t.Kind != cdecl.TokIdent {
			break
		}
		switch {
		case ctypes.IsQualifier(t.Text) || ctypes.IsMSModifier(t.Text):
			s.pos++
			s.skipModifierPayload()
		case t.Text == "struct" || t.Text == "union":
			if len(words) > 0 {
				return "", fmt.Errorf("unexpected %q in type specifier", t.Text)
			}
			base, err := s.parseStructType(t.Text)
			if err != nil {
				return "", err
			}
			s.skipTrailingQualifiers()
			return base, nil
		case t.Text == "enum":
			if len(words) > 0 {
				return "", fmt.Errorf("unexpected enum in type specifier")
			}
			base, err := s.parseEnumType()
			if err != nil {
				return "", err
			}
			s.skipTrailingQualifiers()
			return base, nil
		case ctypes.IsTypeKeyword(t.Text):
			words = append(words, t.Text)
			s.pos++
		case len(words) == 0 && !ctypes.IsCallConv(t.Text):
			// A named type: a typedef or an unresolved foreign name.
			words = append(words, t.Text)
			s.pos++
			s.skipTrailingQualifiers()
			return words[0], nil
		default:
			// Start of the declarator.
			goto done
		}
	}
done:
	if len(words) == 0 {
		return "", fmt.Errorf("expected type specifier, got %q", s.cur().Text)
	}
	return strings.Join(words, " "), nil
}

func (s *scanner) skipTrailingQualifiers() {
	for {
		t := s.cur()
		if t.Kind == cdecl.TokIdent && (ctypes.IsQualifier(t.Text) || ctypes.IsMSModifier(t.Text)) {
			s.pos++
			s.skipModifierPayload()
			continue
		}
		return
	}
}

// skipModifierPayload consumes the parenthesized argument some
// Microsoft modifiers carry, as in __declspec(dllexport).
func (s *scanner) skipModifierPayload() {
	if !s.is("(") {
		return
	}
	depth := 0
	for s.pos < len(s.toks) {
		switch s.toks[s.pos].Text {
		case "(":
			depth++
		case ")":
			depth--
			if depth == 0 {
				s.pos++
				return
			}
		}
		s.pos++
	}
}

// parseStructType parses "struct"/"union", an optional tag, and an
// optional member body, registering the result. Anonymous aggregates
// get a synthesized tag like anon_struct0.
func (s *scanner) parseStructType(kw string) (string, error) {
	line := s.cur().Line
	s.pos++ // struct / union

	cat := registry.CatStructs
	if kw == "union" {
		cat = registry.CatUnions
	}

	name := ""
	if t := s.cur(); t.Kind == cdecl.TokIdent {
		name = t.Text
		s.pos++
	}

	if !s.is("{") {
		if name == "" {
			return "", fmt.Errorf("anonymous %s without a body", kw)
		}
		// A pure reference still claims the tag so later lookups see it.
		if _, ok := s.p.reg.HasStruct(cat, name); !ok {
			s.p.reg.AddStruct(cat, name, registry.Struct{})
			s.p.reg.AddType(kw+" "+name, ctypes.NewType(kw+" "+name))
		}
		return kw + " " + name, nil
	}

	members, err := s.parseStructBody()
	if err != nil {
		return "", err
	}

	if name == "" {
		name = s.p.reg.AnonName(cat, "anon_"+kw)
	}
	// An empty body never displaces a previously recorded member list.
	if existing, ok := s.p.reg.HasStruct(cat, name); !ok || len(members) > 0 || len(existing.Members) == 0 {
		pack := s.p.pp.PackingAt(s.unit, line)
		s.p.reg.AddStruct(cat, name, registry.Struct{Pack: pack, Members: members})
		s.p.reg.AddType(kw+" "+name, ctypes.NewType(kw+" "+name))
	}
	return kw + " " + name, nil
}

// parseStructBody parses the brace-delimited member list. Bitfield
// widths are read and discarded; unnamed padding bitfields produce no
// member at all. A nested definition with no declarator becomes an
// anonymous member.
func (s *scanner) parseStructBody() ([]registry.Member, error) {
	s.pos++ // {
	var members []registry.Member

memberLoop:
	for {
		if s.is("}") {
			s.pos++
			return members, nil
		}
		if s.cur().Kind == cdecl.TokEOF {
			return nil, fmt.Errorf("unterminated member list")
		}
		if s.is(";") {
			s.pos++
			continue
		}

		base, err := s.parseTypeSpec()
		if err != nil {
			return nil, err
		}

		if s.is(";") {
			s.pos++
			members = append(members, registry.Member{Type: ctypes.NewType(base)})
			continue
		}

		for {
			// An unnamed bitfield reserves space only.
			if s.is(":") {
				s.pos++
				s.gatherExpr(",", ";")
				if s.is(",") {
					s.pos++
					continue
				}
				break
			}

			res, ni, err := s.p.decl.ParseDeclarator(s.toks, s.pos)
			if err != nil {
				return nil, err
			}
			s.pos = ni
			if res.Name == "" {
				return nil, fmt.Errorf("member without a name")
			}

			// An inline method body contributes no member.
			if s.is("{") {
				if err := s.skipBraces(); err != nil {
					return nil, err
				}
				if s.is(";") {
					s.pos++
				}
				continue memberLoop
			}

			if s.is(":") {
				s.pos++
				s.gatherExpr(",", ";")
			}

			m := registry.Member{
				Name: res.Name,
				Type: ctypes.Type{Base: base, Mods: res.Mods},
			}
			if s.is("=") {
				s.pos++
				if v := s.parseInitializer(); v.Resolved() {
					m.Value = &v
				}
			}
			members = append(members, m)

			if s.is(",") {
				s.pos++
				continue
			}
			break
		}
		if !s.is(";") {
			return nil, fmt.Errorf("expected ';' after member, got %q", s.cur().Text)
		}
		s.pos++
	}
}

// parseEnumType parses "enum", an optional tag, and an optional member
// body. Member values count up from zero unless set explicitly or
// aliased to an earlier member.
func (s *scanner) parseEnumType() (string, error) {
	s.pos++ // enum

	name := ""
	if t := s.cur(); t.Kind == cdecl.TokIdent {
		name = t.Text
		s.pos++
	}

	if !s.is("{") {
		if name == "" {
			return "", fmt.Errorf("anonymous enum without a body")
		}
		if _, ok := s.p.reg.Global.Enums[name]; !ok {
			s.p.reg.AddEnum(name, registry.Enum{})
			s.p.reg.AddType("enum "+name, ctypes.NewType("enum "+name))
		}
		return "enum " + name, nil
	}

	s.pos++ // {
	enum := registry.Enum{}
	var order []string
	next := int64(0)
	for {
		if s.is("}") {
			s.pos++
			break
		}
		t := s.cur()
		if t.Kind != cdecl.TokIdent {
			return "", fmt.Errorf("expected enum member name, got %q", t.Text)
		}
		member := t.Text
		s.pos++

		if s.is("=") {
			s.pos++
			toks := s.gatherExpr(",", "}")
			if len(toks) == 1 && toks[0].Kind == cdecl.TokIdent {
				alias, ok := enum[toks[0].Text]
				if !ok {
					return "", fmt.Errorf("enum member %s aliases unknown %s", member, toks[0].Text)
				}
				next = alias
			} else {
				v, err := s.p.evalExpr(tokenText(toks))
				if err != nil {
					return "", fmt.Errorf("enum member %s: %v", member, err)
				}
				if v.Kind != ctypes.IntKind {
					return "", fmt.Errorf("enum member %s: value is not an integer", member)
				}
				next = v.Int
			}
		}

		enum[member] = next
		order = append(order, member)
		next++

		if s.is(",") {
			s.pos++
			continue
		}
		if !s.is("}") {
			return "", fmt.Errorf("expected ',' or '}' in enum, got %q", s.cur().Text)
		}
	}

	if name == "" {
		name = s.p.reg.AnonName(registry.CatEnums, "anonEnum")
	}
	if _, ok := s.p.reg.Global.Enums[name]; !ok {
		for _, member := range order {
			s.p.reg.AddValue(member, ctypes.IntValue(enum[member]))
		}
		s.p.reg.AddEnum(name, enum)
		s.p.reg.AddType("enum "+name, ctypes.NewType("enum "+name))
	}
	return "enum " + name, nil
}
