package ctypes

import (
	"testing"

	"gopkg.in/yaml.v3"
)

func TestIsFundamental(t *testing.T) {
	tests := []struct {
		base string
		want bool
	}{
		{"int", true},
		{"unsigned int", true},
		{"signed char", true},
		{"long long", true},
		{"struct point", true},
		{"union u", true},
		{"enum color", true},
		{"UINT", false},
		{"HANDLE", false},
		{"unsigned UINT", false},
	}

	for _, tt := range tests {
		if got := IsFundamental(tt.base); got != tt.want {
			t.Errorf("IsFundamental(%q) = %v, want %v", tt.base, got, tt.want)
		}
	}
}

func TestStripSigned(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"signed int", "int"},
		{"int", "int"},
		{"unsigned int", "unsigned int"},
		{"signed", ""},
		{"long signed int", "long int"},
	}

	for _, tt := range tests {
		if got := StripSigned(tt.in); got != tt.want {
			t.Errorf("StripSigned(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestTypeEqual(t *testing.T) {
	a := NewType("int", Array{10}, Pointer(1))
	b := NewType("int", Array{10}, Pointer(1))
	c := NewType("int", Pointer(1), Array{10})

	if !a.Equal(b) {
		t.Errorf("expected %v to equal %v", a, b)
	}
	if a.Equal(c) {
		t.Errorf("did not expect %v to equal %v", a, c)
	}
}

func TestTypeIsFunction(t *testing.T) {
	fn := NewType("char", Args{{Name: "x", Type: NewType("int")}})
	if !fn.IsFunction() {
		t.Errorf("expected %v to be a function", fn)
	}

	ptr := NewType("int", Pointer(1))
	if ptr.IsFunction() {
		t.Errorf("did not expect %v to be a function", ptr)
	}

	noargs := NewType("void", Args{})
	if !noargs.IsFunction() {
		t.Errorf("expected %v to be a function", noargs)
	}

	fnptr := NewType("void", Pointer(1), Args{})
	if fnptr.IsFunction() {
		t.Errorf("did not expect function pointer %v to be a function", fnptr)
	}

	conv := NewType("int", CallConv("__stdcall"), Args{})
	if !conv.IsFunction() {
		t.Errorf("expected %v to be a function", conv)
	}
}

func TestTypeYAMLRoundTrip(t *testing.T) {
	def := IntValue(0)
	tests := []Type{
		NewType("int"),
		NewType("int", Array{10}, Pointer(1)),
		NewType("unsigned int", Pointer(2), Ref{}),
		NewType("struct s", CallConv("__stdcall"), Args{
			{Name: "x", Type: NewType("int"), Default: &def},
			{Type: NewType("char", Pointer(1))},
		}),
		NewType("void", Args{}),
		NewType("char", Array{-1, 4}),
	}

	for _, tt := range tests {
		data, err := yaml.Marshal(tt)
		if err != nil {
			t.Fatalf("marshal %v: %v", tt, err)
		}
		var got Type
		if err := yaml.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", tt, err)
		}
		if !got.Equal(tt) {
			t.Errorf("round trip changed %v into %v (yaml: %s)", tt, got, data)
		}
	}
}

func TestValueYAMLRoundTrip(t *testing.T) {
	tests := []Value{
		{},
		IntValue(42),
		IntValue(-7),
		FloatValue(1.5),
		StrValue("hello world"),
		ListValue([]Value{IntValue(1), FloatValue(2.5), StrValue("x")}),
	}

	for _, tt := range tests {
		data, err := yaml.Marshal(tt)
		if err != nil {
			t.Fatalf("marshal %v: %v", tt, err)
		}
		var got Value
		if err := yaml.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %v: %v", tt, err)
		}
		if !got.Equal(tt) {
			t.Errorf("round trip changed %v into %v (yaml: %s)", tt, got, data)
		}
	}
}
