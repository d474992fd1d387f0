package ctypes

import (
	"fmt"
	"strconv"
)

// ValueKind discriminates the variants of Value.
type ValueKind int

const (
	// Unresolved marks a constant whose expression could not be
	// evaluated. It is the zero value of Value.
	Unresolved ValueKind = iota
	IntKind
	FloatKind
	StrKind
	ListKind
)

// Value is a resolved constant: integer, float, string, or a list of
// these (array initializers). The zero Value is Unresolved.
type Value struct {
	Kind  ValueKind
	Int   int64
	Float float64
	Str   string
	List  []Value
}

// IntValue builds an integer constant.
func IntValue(v int64) Value { return Value{Kind: IntKind, Int: v} }

// FloatValue builds a floating-point constant.
func FloatValue(v float64) Value { return Value{Kind: FloatKind, Float: v} }

// StrValue builds a string constant.
func StrValue(v string) Value { return Value{Kind: StrKind, Str: v} }

// ListValue builds a list constant.
func ListValue(vs []Value) Value { return Value{Kind: ListKind, List: vs} }

// Resolved reports whether the value carries a usable constant.
func (v Value) Resolved() bool { return v.Kind != Unresolved }

// IsNumeric reports whether the value is an int or float.
func (v Value) IsNumeric() bool {
	return v.Kind == IntKind || v.Kind == FloatKind
}

// AsFloat returns the numeric value widened to float64.
func (v Value) AsFloat() float64 {
	if v.Kind == IntKind {
		return float64(v.Int)
	}
	return v.Float
}

// AsInt returns the numeric value narrowed to int64.
func (v Value) AsInt() int64 {
	if v.Kind == FloatKind {
		return int64(v.Float)
	}
	return v.Int
}

// Truthy reports whether the value is nonzero in a boolean context.
func (v Value) Truthy() bool {
	switch v.Kind {
	case IntKind:
		return v.Int != 0
	case FloatKind:
		return v.Float != 0
	case StrKind:
		return v.Str != ""
	case ListKind:
		return len(v.List) > 0
	}
	return false
}

// Equal compares two values structurally.
func (v Value) Equal(o Value) bool {
	if v.Kind != o.Kind {
		return false
	}
	switch v.Kind {
	case IntKind:
		return v.Int == o.Int
	case FloatKind:
		return v.Float == o.Float
	case StrKind:
		return v.Str == o.Str
	case ListKind:
		if len(v.List) != len(o.List) {
			return false
		}
		for i := range v.List {
			if !v.List[i].Equal(o.List[i]) {
				return false
			}
		}
	}
	return true
}

func (v Value) String() string {
	switch v.Kind {
	case IntKind:
		return strconv.FormatInt(v.Int, 10)
	case FloatKind:
		return strconv.FormatFloat(v.Float, 'g', -1, 64)
	case StrKind:
		return fmt.Sprintf("%q", v.Str)
	case ListKind:
		s := "{"
		for i, e := range v.List {
			if i > 0 {
				s += ", "
			}
			s += e.String()
		}
		return s + "}"
	}
	return "<unresolved>"
}
