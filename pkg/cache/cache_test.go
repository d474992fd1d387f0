package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/clibparse/clibparse/pkg/ctypes"
	"github.com/clibparse/clibparse/pkg/registry"
)

func sampleRecord(files []string) *Record {
	defs := registry.NewDefs()
	defs.Types["UINT"] = ctypes.NewType("unsigned int")
	defs.Macros["VERSION"] = "3"
	defs.Values["VERSION"] = ctypes.IntValue(3)
	defs.Structs["point"] = registry.Struct{
		Members: []registry.Member{
			{Name: "x", Type: ctypes.NewType("int")},
			{Name: "y", Type: ctypes.NewType("int")},
		},
	}
	return &Record{
		Version: FormatVersion,
		Options: Options{Files: files},
		Units:   map[string]*registry.Defs{"sample.h": defs},
	}
}

func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")

	rec := sampleRecord([]string{"sample.h"})
	if err := Write(path, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Version != FormatVersion {
		t.Errorf("version = %q", got.Version)
	}
	defs, ok := got.Units["sample.h"]
	if !ok {
		t.Fatal("sample.h unit missing")
	}
	if !defs.Types["UINT"].Equal(ctypes.NewType("unsigned int")) {
		t.Errorf("UINT = %v", defs.Types["UINT"])
	}
	if defs.Values["VERSION"].Int != 3 {
		t.Errorf("VERSION = %v", defs.Values["VERSION"])
	}
	if len(defs.Structs["point"].Members) != 2 {
		t.Errorf("point members = %v", defs.Structs["point"].Members)
	}
}

func TestWriteCreatesDirectories(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "deep", "cache.yaml")
	if err := Write(path, sampleRecord(nil)); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("cache file missing: %v", err)
	}
}

func TestValid(t *testing.T) {
	dir := t.TempDir()
	hdr := filepath.Join(dir, "a.h")
	if err := os.WriteFile(hdr, []byte("int x;\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "cache.yaml")
	opts := Options{Files: []string{hdr}}
	rec := sampleRecord(opts.Files)
	rec.Options = opts
	if err := Write(path, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}

	if !Valid(path, rec, opts) {
		t.Error("fresh cache should be valid")
	}

	if Valid(path, rec, Options{Files: []string{hdr}, Macros: map[string]string{"A": "1"}}) {
		t.Error("changed options should invalidate")
	}

	// The same base names reached through different paths still match.
	if !Valid(path, rec, Options{Files: []string{filepath.Join(dir, "..", filepath.Base(dir), "a.h")}}) {
		t.Error("file identity is the base name, not the full path")
	}

	wrong := *rec
	wrong.Version = "clibparse-0"
	if Valid(path, &wrong, opts) {
		t.Error("version mismatch should invalidate")
	}

	// A source newer than the cache invalidates it.
	future := time.Now().Add(time.Hour)
	if err := os.Chtimes(hdr, future, future); err != nil {
		t.Fatal(err)
	}
	if Valid(path, rec, opts) {
		t.Error("newer source should invalidate")
	}
}

func TestValidMissingSourceTolerated(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache.yaml")
	gone := filepath.Join(dir, "gone.h")
	opts := Options{Files: []string{gone}}
	rec := sampleRecord(opts.Files)
	rec.Options = opts
	if err := Write(path, rec); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if !Valid(path, rec, opts) {
		t.Error("a vanished source file should not invalidate the cache")
	}
}
