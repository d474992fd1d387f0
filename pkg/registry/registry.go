// Package registry stores the definitions extracted from header source
// units: macros, types, aggregates, enums, functions, variables, and
// resolved constant values. Every definition is recorded twice, in a
// global view and in a per-unit partition keyed by the unit's base name,
// so callers and the cache layer can operate per unit.
package registry

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/clibparse/clibparse/pkg/ctypes"
)

// Category names one of the definition stores.
type Category string

const (
	CatTypes     Category = "types"
	CatVariables Category = "variables"
	CatFnMacros  Category = "fnmacros"
	CatMacros    Category = "macros"
	CatStructs   Category = "structs"
	CatUnions    Category = "unions"
	CatEnums     Category = "enums"
	CatFunctions Category = "functions"
	CatValues    Category = "values"
)

// Categories lists all categories in their canonical order.
var Categories = []Category{
	CatTypes, CatVariables, CatFnMacros, CatMacros, CatStructs,
	CatUnions, CatEnums, CatFunctions, CatValues,
}

// FnMacro is a compiled function-like macro: a substitution template with
// {} placeholders and, for each placeholder in left-to-right order, the
// index of the formal parameter that fills it.
type FnMacro struct {
	Template string `yaml:"template"`
	ArgOrder []int  `yaml:"argOrder,flow"`
	NumArgs  int    `yaml:"numArgs"`
}

// Member is one struct or union member. An anonymous member has an empty
// name; Value holds the member's evaluated initializer if one was given.
type Member struct {
	Name  string        `yaml:"name,omitempty"`
	Type  ctypes.Type   `yaml:"type"`
	Value *ctypes.Value `yaml:"value,omitempty"`
}

// Struct describes a struct or union layout. Pack is the #pragma pack
// value active at the definition, nil when none was in effect.
type Struct struct {
	Pack    *int     `yaml:"pack"`
	Members []Member `yaml:"members"`
}

// Enum maps member names to their resolved integer values.
type Enum map[string]int64

// Function is a function signature: argument tuples plus return type.
type Function struct {
	Args   ctypes.Args `yaml:"args"`
	Return ctypes.Type `yaml:"return"`
}

// Variable is a declared variable: its evaluated initializer (unresolved
// when absent) and its type.
type Variable struct {
	Value ctypes.Value `yaml:"value"`
	Type  ctypes.Type  `yaml:"type"`
}

// Defs holds one complete set of definitions, used both for the global
// view and for each per-unit partition.
type Defs struct {
	Types     map[string]ctypes.Type  `yaml:"types"`
	Variables map[string]Variable     `yaml:"variables"`
	FnMacros  map[string]FnMacro      `yaml:"fnmacros"`
	Macros    map[string]string       `yaml:"macros"`
	Structs   map[string]Struct       `yaml:"structs"`
	Unions    map[string]Struct       `yaml:"unions"`
	Enums     map[string]Enum         `yaml:"enums"`
	Functions map[string]Function     `yaml:"functions"`
	Values    map[string]ctypes.Value `yaml:"values"`
}

// NewDefs returns an empty definition set.
func NewDefs() *Defs {
	return &Defs{
		Types:     make(map[string]ctypes.Type),
		Variables: make(map[string]Variable),
		FnMacros:  make(map[string]FnMacro),
		Macros:    make(map[string]string),
		Structs:   make(map[string]Struct),
		Unions:    make(map[string]Struct),
		Enums:     make(map[string]Enum),
		Functions: make(map[string]Function),
		Values:    make(map[string]ctypes.Value),
	}
}

// Names returns the defined names in a category, sorted.
func (d *Defs) Names(cat Category) []string {
	var names []string
	switch cat {
	case CatTypes:
		for n := range d.Types {
			names = append(names, n)
		}
	case CatVariables:
		for n := range d.Variables {
			names = append(names, n)
		}
	case CatFnMacros:
		for n := range d.FnMacros {
			names = append(names, n)
		}
	case CatMacros:
		for n := range d.Macros {
			names = append(names, n)
		}
	case CatStructs:
		for n := range d.Structs {
			names = append(names, n)
		}
	case CatUnions:
		for n := range d.Unions {
			names = append(names, n)
		}
	case CatEnums:
		for n := range d.Enums {
			names = append(names, n)
		}
	case CatFunctions:
		for n := range d.Functions {
			names = append(names, n)
		}
	case CatValues:
		for n := range d.Values {
			names = append(names, n)
		}
	}
	sort.Strings(names)
	return names
}

// Registry is the definition store shared by the whole pipeline. All
// mutation goes through Add*/RemoveMacro so the global view and the
// current unit's partition stay in sync.
type Registry struct {
	Global *Defs
	Units  map[string]*Defs

	currentUnit string
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		Global: NewDefs(),
		Units:  make(map[string]*Defs),
	}
}

// SetCurrentUnit selects the per-unit partition that subsequent additions
// are recorded under. The name should be a unit base name. The partition
// is created right away so every processed unit shows up in exports,
// defining anything or not.
func (r *Registry) SetCurrentUnit(unit string) {
	r.currentUnit = unit
	if _, ok := r.Units[unit]; !ok {
		r.Units[unit] = NewDefs()
	}
}

// CurrentUnit returns the active per-unit partition name.
func (r *Registry) CurrentUnit() string { return r.currentUnit }

func (r *Registry) unitDefs() *Defs {
	d, ok := r.Units[r.currentUnit]
	if !ok {
		d = NewDefs()
		r.Units[r.currentUnit] = d
	}
	return d
}

// AddType registers a typedef or tag type.
func (r *Registry) AddType(name string, t ctypes.Type) {
	r.Global.Types[name] = t
	r.unitDefs().Types[name] = t
}

// AddVariable registers a variable declaration.
func (r *Registry) AddVariable(name string, v Variable) {
	r.Global.Variables[name] = v
	r.unitDefs().Variables[name] = v
}

// AddFnMacro registers a compiled function-like macro.
func (r *Registry) AddFnMacro(name string, m FnMacro) {
	r.Global.FnMacros[name] = m
	r.unitDefs().FnMacros[name] = m
}

// AddMacro registers an object-like macro's replacement text.
func (r *Registry) AddMacro(name, text string) {
	r.Global.Macros[name] = text
	r.unitDefs().Macros[name] = text
}

// AddStruct registers a struct or union layout under the given category.
func (r *Registry) AddStruct(cat Category, name string, s Struct) {
	switch cat {
	case CatStructs:
		r.Global.Structs[name] = s
		r.unitDefs().Structs[name] = s
	case CatUnions:
		r.Global.Unions[name] = s
		r.unitDefs().Unions[name] = s
	}
}

// AddEnum registers an enum's member values.
func (r *Registry) AddEnum(name string, e Enum) {
	r.Global.Enums[name] = e
	r.unitDefs().Enums[name] = e
}

// AddFunction registers a function signature.
func (r *Registry) AddFunction(name string, f Function) {
	r.Global.Functions[name] = f
	r.unitDefs().Functions[name] = f
}

// AddValue registers a resolved constant.
func (r *Registry) AddValue(name string, v ctypes.Value) {
	r.Global.Values[name] = v
	r.unitDefs().Values[name] = v
}

// RemoveMacro deletes a macro (object or function-like) from both views.
// Removing an absent macro is not an error.
func (r *Registry) RemoveMacro(name string) {
	delete(r.Global.Macros, name)
	delete(r.Global.FnMacros, name)
	if d, ok := r.Units[r.currentUnit]; ok {
		delete(d.Macros, name)
		delete(d.FnMacros, name)
	}
}

// IsMacro reports whether name is a defined object or function macro.
func (r *Registry) IsMacro(name string) bool {
	_, obj := r.Global.Macros[name]
	_, fn := r.Global.FnMacros[name]
	return obj || fn
}

// HasStruct reports whether the named struct/union exists and returns it.
func (r *Registry) HasStruct(cat Category, name string) (Struct, bool) {
	switch cat {
	case CatStructs:
		s, ok := r.Global.Structs[name]
		return s, ok
	case CatUnions:
		s, ok := r.Global.Unions[name]
		return s, ok
	}
	return Struct{}, false
}

// AnonName synthesizes a unique name with the given prefix by taking the
// smallest non-negative suffix not already used in the category.
func (r *Registry) AnonName(cat Category, prefix string) string {
	for n := 0; ; n++ {
		name := fmt.Sprintf("%s%d", prefix, n)
		switch cat {
		case CatStructs:
			if _, ok := r.Global.Structs[name]; !ok {
				return name
			}
		case CatUnions:
			if _, ok := r.Global.Unions[name]; !ok {
				return name
			}
		case CatEnums:
			if _, ok := r.Global.Enums[name]; !ok {
				return name
			}
		default:
			return name
		}
	}
}

// ImportDefs merges per-unit definition sets into the registry, both the
// per-unit partitions and the global view. Used by the cache layer and
// when copying definitions from another parser.
func (r *Registry) ImportDefs(units map[string]*Defs) {
	saved := r.currentUnit
	// Deterministic import order.
	var names []string
	for u := range units {
		names = append(names, u)
	}
	sort.Strings(names)
	for _, u := range names {
		d := units[u]
		r.SetCurrentUnit(u)
		for n, v := range d.Types {
			r.AddType(n, v)
		}
		for n, v := range d.Variables {
			r.AddVariable(n, v)
		}
		for n, v := range d.FnMacros {
			r.AddFnMacro(n, v)
		}
		for n, v := range d.Macros {
			r.AddMacro(n, v)
		}
		for n, v := range d.Structs {
			r.AddStruct(CatStructs, n, v)
		}
		for n, v := range d.Unions {
			r.AddStruct(CatUnions, n, v)
		}
		for n, v := range d.Enums {
			r.AddEnum(n, v)
		}
		for n, v := range d.Functions {
			r.AddFunction(n, v)
		}
		for n, v := range d.Values {
			r.AddValue(n, v)
		}
	}
	r.currentUnit = saved
}

// Match is one hit from a Find query.
type Match struct {
	Unit     string
	Category Category
	Name     string
}

// Find searches all per-unit partitions for names matching the regular
// expression, anchored at the start like the original's re.match.
func (r *Registry) Find(pattern string) ([]Match, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}
	var units []string
	for u := range r.Units {
		units = append(units, u)
	}
	sort.Strings(units)

	var res []Match
	for _, u := range units {
		d := r.Units[u]
		for _, cat := range Categories {
			for _, name := range d.Names(cat) {
				loc := re.FindStringIndex(name)
				if loc != nil && loc[0] == 0 {
					res = append(res, Match{Unit: u, Category: cat, Name: name})
				}
			}
		}
	}
	return res, nil
}

// Lookup returns the names defined under a category in one unit, or in
// the global view when unit is empty.
func (r *Registry) Lookup(unit string, cat Category) []string {
	if unit == "" {
		return r.Global.Names(cat)
	}
	if d, ok := r.Units[unit]; ok {
		return d.Names(cat)
	}
	return nil
}

// EvalType resolves a named type to its fundamental form by repeatedly
// substituting typedef definitions, accumulating modifiers. It fails hard
// on typedef cycles and on references to unknown types; these indicate an
// inconsistent header set the caller must deal with.
func (r *Registry) EvalType(t ctypes.Type) (ctypes.Type, error) {
	var used []string
	for {
		if ctypes.IsFundamental(t.Base) {
			t.Base = ctypes.StripSigned(t.Base)
			return t, nil
		}

		parent := t.Base
		for _, u := range used {
			if u == parent {
				return ctypes.Type{}, fmt.Errorf("%w: %s",
					ErrRecursiveType, strings.Join(append(used, parent), " -> "))
			}
		}
		used = append(used, parent)

		pt, ok := r.Global.Types[parent]
		if !ok {
			return ctypes.Type{}, fmt.Errorf("%w %q (typedefs are %s)",
				ErrUnknownType, parent, strings.Join(used, " -> "))
		}
		mods := make([]ctypes.Modifier, 0, len(pt.Mods)+len(t.Mods))
		mods = append(mods, pt.Mods...)
		mods = append(mods, t.Mods...)
		t = ctypes.Type{Base: pt.Base, Mods: mods}
	}
}
