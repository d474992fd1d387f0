// Package cache persists parsed definition sets so unchanged header
// sets are not reparsed. A cache entry is only reused when its format
// version, its recorded parse options, and the modification times of
// every surviving source file all check out.
package cache

import (
	"fmt"
	"os"
	"path/filepath"
	"reflect"

	"gopkg.in/yaml.v3"

	"github.com/clibparse/clibparse/pkg/ctypes"
	"github.com/clibparse/clibparse/pkg/registry"
)

// FormatVersion is bumped whenever the stored shape or the parser's
// semantics change, invalidating older caches wholesale.
const FormatVersion = "clibparse-1"

// ReplaceRule is a textual preprocessing substitution applied to raw
// source before parsing. An empty File applies the rule to every unit;
// otherwise only the unit with that base name is rewritten.
type ReplaceRule struct {
	File    string `yaml:"file,omitempty"`
	Pattern string `yaml:"pattern"`
	Repl    string `yaml:"repl"`
}

// Options captures every input that affects parse results. Two parses
// with different Options must never share a cache entry.
type Options struct {
	Files   []string               `yaml:"files"`
	Replace []ReplaceRule          `yaml:"replace,omitempty"`
	Types   map[string]ctypes.Type `yaml:"types,omitempty"`
	Macros  map[string]string      `yaml:"macros,omitempty"`
}

// Record is the serialized form of one finished parse.
type Record struct {
	Version string                    `yaml:"version"`
	Options Options                   `yaml:"options"`
	Units   map[string]*registry.Defs `yaml:"units"`
}

// Write stores a record at path, creating parent directories as needed.
func Write(path string, rec *Record) error {
	data, err := yaml.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating cache dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing cache: %w", err)
	}
	return nil
}

// Load reads a record from path.
func Load(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var rec Record
	if err := yaml.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decoding cache %s: %w", path, err)
	}
	return &rec, nil
}

// Valid reports whether the record at path can stand in for a parse
// with the given options: the format version matches exactly, the
// options are identical, and no source file that still exists is newer
// than the cache file. Missing source files do not invalidate; the
// cache is then the only place their definitions survive.
func Valid(path string, rec *Record, opts Options) bool {
	if rec == nil || rec.Version != FormatVersion {
		return false
	}
	// Units are identified by base file name, so moving a header tree
	// does not invalidate its cache.
	if !reflect.DeepEqual(normalize(rec.Options), normalize(opts)) {
		return false
	}
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	for _, f := range opts.Files {
		fi, err := os.Stat(f)
		if err != nil {
			continue
		}
		if fi.ModTime().After(info.ModTime()) {
			return false
		}
	}
	return true
}

func normalize(opts Options) Options {
	files := make([]string, len(opts.Files))
	for i, f := range opts.Files {
		files[i] = filepath.Base(f)
	}
	opts.Files = files
	return opts
}
