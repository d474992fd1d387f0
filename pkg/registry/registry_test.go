package registry

import (
	"errors"
	"testing"

	"github.com/clibparse/clibparse/pkg/ctypes"
)

func TestAddTracksGlobalAndUnit(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	r.AddMacro("FOO", "1")
	r.SetCurrentUnit("b.h")
	r.AddMacro("BAR", "2")

	if _, ok := r.Global.Macros["FOO"]; !ok {
		t.Errorf("FOO missing from global view")
	}
	if _, ok := r.Global.Macros["BAR"]; !ok {
		t.Errorf("BAR missing from global view")
	}
	if _, ok := r.Units["a.h"].Macros["FOO"]; !ok {
		t.Errorf("FOO missing from unit a.h")
	}
	if _, ok := r.Units["a.h"].Macros["BAR"]; ok {
		t.Errorf("BAR should not be recorded under a.h")
	}
}

func TestRemoveMacro(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	r.AddMacro("FOO", "1")
	r.RemoveMacro("FOO")

	if r.IsMacro("FOO") {
		t.Errorf("FOO still defined after removal")
	}
	// Removing an absent macro must not panic or error.
	r.RemoveMacro("NEVER_DEFINED")
}

func TestEvalTypeChain(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	r.AddType("UINT", ctypes.NewType("unsigned int"))
	r.AddType("PUINT", ctypes.NewType("UINT", ctypes.Pointer(1)))

	got, err := r.EvalType(ctypes.NewType("PUINT", ctypes.Array{4}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := ctypes.NewType("unsigned int", ctypes.Pointer(1), ctypes.Array{4})
	if !got.Equal(want) {
		t.Errorf("EvalType = %v, want %v", got, want)
	}
}

func TestEvalTypeStripsSigned(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	r.AddType("SINT", ctypes.NewType("signed int"))

	got, err := r.EvalType(ctypes.NewType("SINT"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Base != "int" {
		t.Errorf("base = %q, want %q", got.Base, "int")
	}
}

func TestEvalTypeUnknown(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	r.AddType("ALIAS", ctypes.NewType("MISSING"))

	_, err := r.EvalType(ctypes.NewType("ALIAS"))
	if !errors.Is(err, ErrUnknownType) {
		t.Errorf("expected ErrUnknownType, got %v", err)
	}
}

func TestEvalTypeRecursive(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	r.AddType("A", ctypes.NewType("B"))
	r.AddType("B", ctypes.NewType("A"))

	_, err := r.EvalType(ctypes.NewType("A"))
	if !errors.Is(err, ErrRecursiveType) {
		t.Errorf("expected ErrRecursiveType, got %v", err)
	}
}

func TestAnonName(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	if got := r.AnonName(CatStructs, "anon_struct"); got != "anon_struct0" {
		t.Errorf("first anon name = %q, want anon_struct0", got)
	}
	r.AddStruct(CatStructs, "anon_struct0", Struct{})
	if got := r.AnonName(CatStructs, "anon_struct"); got != "anon_struct1" {
		t.Errorf("second anon name = %q, want anon_struct1", got)
	}
}

func TestFind(t *testing.T) {
	r := New()
	r.SetCurrentUnit("a.h")
	r.AddMacro("MAX_PATH", "260")
	r.SetCurrentUnit("b.h")
	r.AddType("MAX_T", ctypes.NewType("int"))
	r.AddValue("other", ctypes.IntValue(1))

	res, err := r.Find("MAX_")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res) != 2 {
		t.Fatalf("got %d matches, want 2: %v", len(res), res)
	}
	if res[0].Unit != "a.h" || res[0].Category != CatMacros || res[0].Name != "MAX_PATH" {
		t.Errorf("unexpected first match: %+v", res[0])
	}
	if res[1].Unit != "b.h" || res[1].Category != CatTypes || res[1].Name != "MAX_T" {
		t.Errorf("unexpected second match: %+v", res[1])
	}
}

func TestImportDefs(t *testing.T) {
	src := New()
	src.SetCurrentUnit("a.h")
	src.AddMacro("FOO", "1")
	src.AddType("UINT", ctypes.NewType("unsigned int"))

	dst := New()
	dst.ImportDefs(src.Units)

	if dst.Global.Macros["FOO"] != "1" {
		t.Errorf("FOO not imported into global view")
	}
	if _, ok := dst.Units["a.h"]; !ok {
		t.Fatalf("unit partition a.h not imported")
	}
	if _, ok := dst.Units["a.h"].Types["UINT"]; !ok {
		t.Errorf("UINT not imported under a.h")
	}
}
