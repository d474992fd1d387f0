// Package ctypes defines the canonical representation of resolved C types:
// a base type name followed by an ordered list of modifiers, outermost
// first. This mirrors how C declarators read right-to-left from the
// identifier: int *x[10] resolves to base "int" with modifiers
// [array(10), pointer].
package ctypes

import (
	"fmt"
	"strings"
)

// Modifier is one element of a type's modifier list.
type Modifier interface {
	implModifier()
	String() string
}

// Pointer represents one or more pointer levels ("*", "**", ...).
type Pointer int

// Array represents one or more array dimensions. A length of -1 marks an
// incomplete dimension (empty brackets or an unresolvable size expression).
type Array []int64

// Args represents a function's argument tuple. A non-nil empty Args is a
// function taking no arguments; its presence is what classifies a
// declarator as a function.
type Args []Arg

// Ref marks a C++ style reference declarator ("&").
type Ref struct{}

// CallConv records a calling convention tag such as __stdcall.
type CallConv string

func (Pointer) implModifier()  {}
func (Array) implModifier()    {}
func (Args) implModifier()     {}
func (Ref) implModifier()      {}
func (CallConv) implModifier() {}

func (p Pointer) String() string { return strings.Repeat("*", int(p)) }

func (a Array) String() string {
	var sb strings.Builder
	for _, n := range a {
		if n < 0 {
			sb.WriteString("[]")
		} else {
			fmt.Fprintf(&sb, "[%d]", n)
		}
	}
	return sb.String()
}

func (a Args) String() string {
	parts := make([]string, len(a))
	for i, arg := range a {
		parts[i] = arg.Type.String()
		if arg.Name != "" {
			parts[i] += " " + arg.Name
		}
	}
	return "(" + strings.Join(parts, ", ") + ")"
}

func (Ref) String() string        { return "&" }
func (c CallConv) String() string { return string(c) }

// Arg is one function argument: an optional name, a resolved type, and an
// optional default value.
type Arg struct {
	Name    string
	Type    Type
	Default *Value
}

// Type is a base type name plus its modifier list.
type Type struct {
	Base string
	Mods []Modifier
}

// NewType builds a Type from a base name and modifiers.
func NewType(base string, mods ...Modifier) Type {
	return Type{Base: base, Mods: mods}
}

func (t Type) String() string {
	sb := strings.Builder{}
	sb.WriteString(t.Base)
	for _, m := range t.Mods {
		sb.WriteString(" ")
		sb.WriteString(m.String())
	}
	return sb.String()
}

// IsFunction reports whether the outermost modifier is an argument
// tuple, which is how function prototypes are distinguished from
// variables such as function pointers. A leading calling-convention tag
// is skipped.
func (t Type) IsFunction() bool {
	for _, m := range t.Mods {
		switch m.(type) {
		case CallConv:
			continue
		case Args:
			return true
		default:
			return false
		}
	}
	return false
}

// Equal compares two types structurally.
func (t Type) Equal(o Type) bool {
	if t.Base != o.Base || len(t.Mods) != len(o.Mods) {
		return false
	}
	for i := range t.Mods {
		if !modEqual(t.Mods[i], o.Mods[i]) {
			return false
		}
	}
	return true
}

func modEqual(a, b Modifier) bool {
	switch am := a.(type) {
	case Pointer:
		bm, ok := b.(Pointer)
		return ok && am == bm
	case Ref:
		_, ok := b.(Ref)
		return ok
	case CallConv:
		bm, ok := b.(CallConv)
		return ok && am == bm
	case Array:
		bm, ok := b.(Array)
		if !ok || len(am) != len(bm) {
			return false
		}
		for i := range am {
			if am[i] != bm[i] {
				return false
			}
		}
		return true
	case Args:
		bm, ok := b.(Args)
		if !ok || len(am) != len(bm) {
			return false
		}
		for i := range am {
			if am[i].Name != bm[i].Name || !am[i].Type.Equal(bm[i].Type) {
				return false
			}
			ad, bd := am[i].Default, bm[i].Default
			if (ad == nil) != (bd == nil) {
				return false
			}
			if ad != nil && !ad.Equal(*bd) {
				return false
			}
		}
		return true
	}
	return false
}

// Base type vocabulary, matching the subset of C the parser recognizes.
var (
	numTypes      = []string{"int", "float", "double", "__int64"}
	BaseTypes     = append([]string{"char", "bool", "void"}, numTypes...)
	SizeModifiers = []string{"short", "long"}
	SignModifiers = []string{"signed", "unsigned"}
	Qualifiers    = []string{"const", "static", "volatile", "inline",
		"restrict", "near", "far"}
	MSModifiers = []string{"__based", "__declspec", "__fastcall",
		"__restrict", "__sptr", "__uptr", "__w64", "__unaligned",
		"__nullterminated"}
	CallConvs = []string{"__cdecl", "__stdcall"}
)

var fundWords = func() map[string]bool {
	m := make(map[string]bool)
	for _, w := range BaseTypes {
		m[w] = true
	}
	for _, w := range SizeModifiers {
		m[w] = true
	}
	for _, w := range SignModifiers {
		m[w] = true
	}
	return m
}()

// IsFundamental reports whether base is expressed purely in C built-in
// keywords or is a struct/union/enum tag reference.
func IsFundamental(base string) bool {
	if strings.HasPrefix(base, "struct ") || strings.HasPrefix(base, "union ") ||
		strings.HasPrefix(base, "enum ") {
		return true
	}
	for _, w := range strings.Fields(base) {
		if !fundWords[w] {
			return false
		}
	}
	return true
}

// IsQualifier reports whether word is a type qualifier that carries no
// type information and is discarded during parsing.
func IsQualifier(word string) bool {
	for _, q := range Qualifiers {
		if word == q {
			return true
		}
	}
	return false
}

// IsMSModifier reports whether word is a Microsoft-specific modifier that
// is discarded (calling conventions are kept and are not in this set).
func IsMSModifier(word string) bool {
	for _, m := range MSModifiers {
		if word == m {
			return true
		}
	}
	return false
}

// IsCallConv reports whether word is a recognized calling convention tag.
func IsCallConv(word string) bool {
	for _, c := range CallConvs {
		if word == c {
			return true
		}
	}
	return false
}

// IsTypeKeyword reports whether word can begin or continue a fundamental
// type name (sign/size modifiers and base types).
func IsTypeKeyword(word string) bool {
	return fundWords[word]
}

// StripSigned removes the redundant "signed" keyword from a fundamental
// type name: "signed int" and "int" canonicalize to "int". "unsigned" is
// always retained.
func StripSigned(base string) string {
	words := strings.Fields(base)
	out := words[:0]
	for _, w := range words {
		if w != "signed" {
			out = append(out, w)
		}
	}
	return strings.Join(out, " ")
}
