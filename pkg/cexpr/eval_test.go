package cexpr

import (
	"testing"

	"github.com/clibparse/clibparse/pkg/ctypes"
)

func TestEvalArithmetic(t *testing.T) {
	tests := []struct {
		expr string
		want ctypes.Value
	}{
		{"1 + 2", ctypes.IntValue(3)},
		{"2 * 3 + 4", ctypes.IntValue(10)},
		{"2 + 3 * 4", ctypes.IntValue(14)},
		{"(2 + 3) * 4", ctypes.IntValue(20)},
		{"10 / 3", ctypes.IntValue(3)},
		{"10 % 3", ctypes.IntValue(1)},
		{"10 / 4.0", ctypes.FloatValue(2.5)},
		{"-5", ctypes.IntValue(-5)},
		{"-(2 + 3)", ctypes.IntValue(-5)},
		{"1 << 4", ctypes.IntValue(16)},
		{"256 >> 2", ctypes.IntValue(64)},
		{"0xff & 0x0f", ctypes.IntValue(0x0f)},
		{"0xf0 | 0x0f", ctypes.IntValue(0xff)},
		{"0xff ^ 0x0f", ctypes.IntValue(0xf0)},
		{"~0", ctypes.IntValue(-1)},
		{"1.5e3", ctypes.FloatValue(1500)},
		{"0x10", ctypes.IntValue(16)},
		{"010", ctypes.IntValue(8)},
		{"0b101", ctypes.IntValue(5)},
		{"100UL", ctypes.IntValue(100)},
		{"42u", ctypes.IntValue(42)},
		{"3.5f", ctypes.FloatValue(3.5)},
		{"'A'", ctypes.IntValue(65)},
		{"'\\n'", ctypes.IntValue(10)},
		{"'\\x41'", ctypes.IntValue(65)},
	}
	var ev Evaluator
	for _, tt := range tests {
		got, err := ev.Eval(tt.expr)
		if err != nil {
			t.Errorf("Eval(%q): unexpected error: %v", tt.expr, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvalLogic(t *testing.T) {
	tests := []struct {
		expr string
		want int64
	}{
		{"1 && 1", 1},
		{"1 && 0", 0},
		{"0 || 1", 1},
		{"0 || 0", 0},
		{"!0", 1},
		{"!5", 0},
		{"1 == 1", 1},
		{"1 != 1", 0},
		{"2 < 3", 1},
		{"3 <= 3", 1},
		{"4 > 5", 0},
		{"5 >= 5", 1},
		{"1 ? 10 : 20", 10},
		{"0 ? 10 : 20", 20},
		{"1 < 2 ? 1 + 1 : 9", 2},
	}
	var ev Evaluator
	for _, tt := range tests {
		got, err := ev.Eval(tt.expr)
		if err != nil {
			t.Errorf("Eval(%q): unexpected error: %v", tt.expr, err)
			continue
		}
		if got.Kind != ctypes.IntKind || got.Int != tt.want {
			t.Errorf("Eval(%q) = %v, want %d", tt.expr, got, tt.want)
		}
	}
}

func TestEvalLookup(t *testing.T) {
	consts := map[string]ctypes.Value{
		"FOO": ctypes.IntValue(7),
		"BAR": ctypes.FloatValue(0.5),
	}
	ev := Evaluator{
		Lookup: func(name string) (ctypes.Value, bool) {
			v, ok := consts[name]
			return v, ok
		},
	}

	got, err := ev.Eval("FOO * 2")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Int != 14 {
		t.Errorf("FOO * 2 = %v, want 14", got)
	}

	got, err = ev.Eval("FOO + BAR")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != ctypes.FloatKind || got.Float != 7.5 {
		t.Errorf("FOO + BAR = %v, want 7.5", got)
	}

	if _, err := ev.Eval("MISSING + 1"); err == nil {
		t.Error("expected error for unknown identifier")
	}
}

func TestEvalUndefinedIsZero(t *testing.T) {
	ev := Evaluator{UndefinedIsZero: true}

	got, err := ev.Eval("MISSING + 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Int != 1 {
		t.Errorf("MISSING + 1 = %v, want 1", got)
	}

	ok, err := ev.EvalBool("defined_elsewhere")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Error("undefined identifier should be false in conditionals")
	}
}

func TestEvalCasts(t *testing.T) {
	ev := Evaluator{
		IsType: func(name string) bool { return name == "DWORD" },
	}
	tests := []struct {
		expr string
		want ctypes.Value
	}{
		{"(int)3.7", ctypes.FloatValue(3.7)},
		{"(unsigned long)42", ctypes.IntValue(42)},
		{"(DWORD)0x10", ctypes.IntValue(16)},
		{"(char*)0", ctypes.IntValue(0)},
		{"(int)(1 + 2)", ctypes.IntValue(3)},
	}
	for _, tt := range tests {
		got, err := ev.Eval(tt.expr)
		if err != nil {
			t.Errorf("Eval(%q): unexpected error: %v", tt.expr, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Eval(%q) = %v, want %v", tt.expr, got, tt.want)
		}
	}
}

func TestEvalErrors(t *testing.T) {
	var ev Evaluator
	exprs := []string{
		"1 / 0",
		"5 % 0",
		"1 +",
		"(1 + 2",
		"1 ? 2",
	}
	for _, expr := range exprs {
		if _, err := ev.Eval(expr); err == nil {
			t.Errorf("Eval(%q): expected error", expr)
		}
	}
}

func TestEvalEmpty(t *testing.T) {
	var ev Evaluator
	got, err := ev.Eval("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Resolved() {
		t.Errorf("empty expression should be unresolved, got %v", got)
	}
}

func TestEvalStrings(t *testing.T) {
	var ev Evaluator
	got, err := ev.Eval(`"hello"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Kind != ctypes.StrKind || got.Str != "hello" {
		t.Errorf("got %v, want string hello", got)
	}

	got, err = ev.Eval(`"abc" == "abc"`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Int != 1 {
		t.Errorf("string equality: got %v, want 1", got)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		src      string
		want     []string
		wantRest string
	}{
		{"(a, b)", []string{"a", "b"}, ""},
		{"(a, b) + 1", []string{"a", "b"}, " + 1"},
		{"(f(x, y), z)", []string{"f(x, y)", "z"}, ""},
		{"(a[i, j], b)", []string{"a[i, j]", "b"}, ""},
		{`("x,y", z)`, []string{`"x,y"`, "z"}, ""},
		{"()", nil, ""},
		{"(single)", []string{"single"}, ""},
		{"( spaced , out )", []string{"spaced", "out"}, ""},
	}
	for _, tt := range tests {
		args, n, err := SplitArgs(tt.src)
		if err != nil {
			t.Errorf("SplitArgs(%q): unexpected error: %v", tt.src, err)
			continue
		}
		if len(args) != len(tt.want) {
			t.Errorf("SplitArgs(%q) = %v, want %v", tt.src, args, tt.want)
			continue
		}
		for i := range args {
			if args[i] != tt.want[i] {
				t.Errorf("SplitArgs(%q) arg %d = %q, want %q", tt.src, i, args[i], tt.want[i])
			}
		}
		if rest := tt.src[n:]; rest != tt.wantRest {
			t.Errorf("SplitArgs(%q) rest = %q, want %q", tt.src, rest, tt.wantRest)
		}
	}
}

func TestSplitArgsErrors(t *testing.T) {
	if _, _, err := SplitArgs("no parens"); err != ErrNoArgList {
		t.Errorf("expected ErrNoArgList, got %v", err)
	}
	if _, _, err := SplitArgs("(a, b"); err != ErrUnterminatedArgs {
		t.Errorf("expected ErrUnterminatedArgs, got %v", err)
	}
}
