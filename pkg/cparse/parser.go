// Package cparse drives header parsing end to end: it loads source
// units, runs them through the preprocessor, scans the surviving text
// for typedef, variable, function, struct, union and enum constructs,
// and registers everything it finds. Parsed results can be cached and
// reloaded without touching the sources again.
package cparse

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/clibparse/clibparse/pkg/cache"
	"github.com/clibparse/clibparse/pkg/cdecl"
	"github.com/clibparse/clibparse/pkg/cexpr"
	"github.com/clibparse/clibparse/pkg/cpp"
	"github.com/clibparse/clibparse/pkg/ctypes"
	"github.com/clibparse/clibparse/pkg/registry"
)

// Options configures a Parser. Everything here affects parse results,
// so the whole set participates in cache validation.
type Options struct {
	// CachePath enables the definition cache when non-empty.
	CachePath string
	// Types seeds the registry with externally known typedefs, e.g.
	// platform integer types.
	Types map[string]ctypes.Type
	// Macros seeds object macros before any unit is read.
	Macros map[string]string
	// Replace lists regexp substitutions applied to raw source text
	// before preprocessing, for quirks no grammar should have to know.
	// A rule naming a unit base name rewrites only that unit.
	Replace []cache.ReplaceRule
	// Logger receives diagnostics; nil keeps the parser silent.
	Logger *log.Logger
}

// Parser extracts definitions from a set of header source units.
type Parser struct {
	opts Options
	reg  *registry.Registry
	pp   *cpp.Preprocessor
	decl *cdecl.Parser

	units     []string
	sources   map[string]string
	files     []string
	missing   []string
	processed map[string]string
	residue   map[string][]string
	replRe    []*regexp.Regexp

	fromCache bool
}

// New builds a parser and seeds the registry from the options.
func New(opts Options) (*Parser, error) {
	p := &Parser{
		opts:      opts,
		reg:       registry.New(),
		sources:   make(map[string]string),
		processed: make(map[string]string),
	}
	p.pp = cpp.New(p.reg, opts.Logger)
	p.decl = &cdecl.Parser{Eval: p.evalExpr}

	for _, r := range opts.Replace {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("replace rule %q: %w", r.Pattern, err)
		}
		p.replRe = append(p.replRe, re)
	}

	// Seeds live in the global view only; per-unit partitions hold what
	// the units themselves define.
	for name, t := range opts.Types {
		p.reg.Global.Types[name] = t
	}
	for name, text := range opts.Macros {
		p.reg.Global.Macros[name] = text
	}
	return p, nil
}

// Registry exposes the parsed definitions.
func (p *Parser) Registry() *registry.Registry { return p.reg }

func (p *Parser) logf(format string, args ...interface{}) {
	if p.opts.Logger != nil {
		p.opts.Logger.Printf(format, args...)
	}
}

// LoadFile queues a header file for parsing. A missing file is only a
// warning at this point: its definitions may still come from the cache,
// and ProcessAll fails if they cannot.
func (p *Parser) LoadFile(path string) error {
	p.files = append(p.files, path)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			p.missing = append(p.missing, path)
			p.logf("header not found, relying on cache: %s", path)
			return nil
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	p.addUnit(filepath.Base(path), string(data))
	return nil
}

// AddSource queues in-memory header text under a unit name.
func (p *Parser) AddSource(unit, src string) {
	p.addUnit(unit, src)
}

func (p *Parser) addUnit(unit, src string) {
	if _, ok := p.sources[unit]; !ok {
		p.units = append(p.units, unit)
	}
	p.sources[unit] = src
}

// FromCache reports whether the last ProcessAll was served entirely
// from the cache.
func (p *Parser) FromCache() bool { return p.fromCache }

// ProcessAll parses every queued unit in order. With a valid cache the
// stored definitions are imported instead and no source is read. Parse
// problems inside units are recoverable: they are logged and the
// affected construct is skipped.
func (p *Parser) ProcessAll() error {
	copts := p.cacheOptions()

	if p.opts.CachePath != "" {
		if rec, err := cache.Load(p.opts.CachePath); err == nil {
			if cache.Valid(p.opts.CachePath, rec, copts) {
				p.reg.ImportDefs(rec.Units)
				p.fromCache = true
				p.logf("loaded %d unit(s) from cache %s", len(rec.Units), p.opts.CachePath)
				return nil
			}
			p.logf("cache %s is stale, reparsing", p.opts.CachePath)
		}
	}
	p.fromCache = false

	if len(p.missing) > 0 {
		return fmt.Errorf("missing header files with no usable cache: %s",
			strings.Join(p.missing, ", "))
	}

	for _, unit := range p.units {
		src := p.applyReplace(unit, p.sources[unit])
		text, err := p.pp.ProcessUnit(unit, src)
		if err != nil {
			p.logf("preprocessing %s:\n%v", unit, err)
		}
		p.processed[unit] = text
		p.parseDefs(unit, text)
	}

	if p.opts.CachePath != "" {
		rec := &cache.Record{
			Version: cache.FormatVersion,
			Options: copts,
			Units:   p.reg.Units,
		}
		if err := cache.Write(p.opts.CachePath, rec); err != nil {
			p.logf("cannot write cache: %v", err)
		}
	}
	return nil
}

func (p *Parser) cacheOptions() cache.Options {
	return cache.Options{
		Files:   p.files,
		Replace: p.opts.Replace,
		Types:   p.opts.Types,
		Macros:  p.opts.Macros,
	}
}

func (p *Parser) applyReplace(unit, src string) string {
	for i, re := range p.replRe {
		rule := p.opts.Replace[i]
		if rule.File != "" && rule.File != unit {
			continue
		}
		src = re.ReplaceAllString(src, rule.Repl)
	}
	return src
}

// Find searches all units for definition names matching the pattern,
// anchored at the start of the name.
func (p *Parser) Find(pattern string) ([]registry.Match, error) {
	return p.reg.Find(pattern)
}

// TextMatch is one FindText hit.
type TextMatch struct {
	Unit string
	Line int
	Text string
}

// FindText scans the preprocessed text of all units for lines containing
// the given substring. Useful for locating where a symbol the registry
// cannot explain comes from. Lines are 1-based.
func (p *Parser) FindText(text string) []TextMatch {
	var res []TextMatch
	for _, unit := range p.units {
		processed, ok := p.processed[unit]
		if !ok {
			continue
		}
		for i, line := range strings.Split(processed, "\n") {
			if strings.Contains(line, text) {
				res = append(res, TextMatch{Unit: unit, Line: i + 1, Text: line})
			}
		}
	}
	return res
}

// PreprocessedText returns a unit's post-preprocessing text. It is
// empty after a cache hit, since cached parses skip preprocessing.
func (p *Parser) PreprocessedText(unit string) (string, bool) {
	text, ok := p.processed[unit]
	return text, ok
}

// Residue returns the text stretches of a unit that matched no known
// construct and were skipped.
func (p *Parser) Residue(unit string) []string {
	return p.residue[unit]
}

// PackingAt returns the struct packing in effect at a line of a unit.
func (p *Parser) PackingAt(unit string, line int) *int {
	return p.pp.PackingAt(unit, line)
}

// evalExpr evaluates a constant expression against the resolved values
// collected so far.
func (p *Parser) evalExpr(expr string) (ctypes.Value, error) {
	ev := cexpr.Evaluator{
		Lookup: func(name string) (ctypes.Value, bool) {
			v, ok := p.reg.Global.Values[name]
			return v, ok
		},
		IsType: func(name string) bool {
			_, ok := p.reg.Global.Types[name]
			return ok
		},
	}
	return ev.Eval(expr)
}
