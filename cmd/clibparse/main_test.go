package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func resetFlags() {
	defineFlags = nil
	replaceFlags = nil
	cachePath = ""
	findPattern = ""
	findText = ""
	dumpPP = false
	showResidue = false
	verbose = false
}

func writeHeader(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
	return path
}

func TestVersion(t *testing.T) {
	if version == "" {
		t.Error("version should not be empty")
	}
}

func TestFlagsExist(t *testing.T) {
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)

	for _, name := range []string{"define", "replace", "cache", "find", "find-text", "preprocess", "residue", "verbose"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("expected flag --%s to exist", name)
		}
	}
}

func TestDumpDefinitions(t *testing.T) {
	resetFlags()
	header := writeHeader(t, "api.h", `
typedef unsigned int uint_t;
#define LIMIT 64
int counters[LIMIT];
`)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{header})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := out.String()
	for _, want := range []string{"api.h", "uint_t", "LIMIT", "counters"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestDefineFlag(t *testing.T) {
	resetFlags()
	header := writeHeader(t, "cond.h", `
#if FEATURE
int enabled;
#else
int disabled;
#endif
`)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-D", "FEATURE=1", header})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "enabled") {
		t.Errorf("expected enabled branch in output:\n%s", got)
	}
	if strings.Contains(got, "disabled") {
		t.Errorf("disabled branch should have been skipped:\n%s", got)
	}
}

func TestPreprocessOnly(t *testing.T) {
	resetFlags()
	header := writeHeader(t, "pp.h", `#define N 4
int buf[N];
`)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"-E", header})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "int buf[4]") {
		t.Errorf("expected expanded source, got:\n%s", got)
	}
	if strings.Contains(got, "#define") {
		t.Errorf("directives should not survive preprocessing:\n%s", got)
	}
}

func TestFindFlag(t *testing.T) {
	resetFlags()
	header := writeHeader(t, "names.h", `
int frob_count;
void frob_reset(void);
int other;
`)

	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{"--find", "frob_", header})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("execute: %v", err)
	}

	got := out.String()
	if !strings.Contains(got, "frob_count") || !strings.Contains(got, "frob_reset") {
		t.Errorf("expected both frob_ names:\n%s", got)
	}
	if strings.Contains(got, "other") {
		t.Errorf("non-matching name leaked into output:\n%s", got)
	}
}

func TestMissingFileFails(t *testing.T) {
	resetFlags()
	var out, errOut bytes.Buffer
	cmd := newRootCmd(&out, &errOut)
	cmd.SetArgs([]string{filepath.Join(t.TempDir(), "nope.h")})
	if err := cmd.Execute(); err == nil {
		t.Fatal("expected error for missing file without cache")
	}
}

func TestParseDefines(t *testing.T) {
	m := parseDefines([]string{"A", "B=2"})
	if v, ok := m["A"]; !ok || v != "" {
		t.Errorf("A = %q, %v; want empty, true", v, ok)
	}
	if m["B"] != "2" {
		t.Errorf("B = %q; want 2", m["B"])
	}
	if parseDefines(nil) != nil {
		t.Error("empty input should yield nil map")
	}
}

func TestParseReplaceFlags(t *testing.T) {
	rules, err := parseReplaceFlags([]string{`DLLEXPORT\s*=`})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(rules) != 1 || rules[0].Pattern != `DLLEXPORT\s*` || rules[0].Repl != "" {
		t.Errorf("unexpected rules %+v", rules)
	}
	if _, err := parseReplaceFlags([]string{"no-separator"}); err == nil {
		t.Error("expected error for rule without =")
	}
}
