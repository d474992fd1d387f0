package cpp

import (
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/clibparse/clibparse/pkg/cexpr"
	"github.com/clibparse/clibparse/pkg/ctypes"
	"github.com/clibparse/clibparse/pkg/registry"
)

var (
	directiveRe = regexp.MustCompile(`^#\s*(\w+)\s*(.*)$`)
	definedRe   = regexp.MustCompile(`defined\s*\(\s*(\w+)\s*\)|defined\s+(\w+)`)
)

// Preprocessor runs headers through conditional evaluation, macro
// definition and expansion, and pragma tracking, writing definitions
// into a shared registry. One Preprocessor serves all units of a parse;
// it keeps a separate pack timeline per unit.
type Preprocessor struct {
	reg   *registry.Registry
	log   *log.Logger
	packs map[string]*packState
}

// New returns a preprocessor writing into reg. A nil logger silences
// diagnostics.
func New(reg *registry.Registry, logger *log.Logger) *Preprocessor {
	return &Preprocessor{
		reg:   reg,
		log:   logger,
		packs: make(map[string]*packState),
	}
}

func (p *Preprocessor) logf(format string, args ...interface{}) {
	if p.log != nil {
		p.log.Printf(format, args...)
	}
}

// condFrame is one level of #if nesting. active means this branch's text
// is kept; taken means some branch of the group already matched, so
// later #elif/#else branches stay off.
type condFrame struct {
	parentActive bool
	active       bool
	taken        bool
}

// ProcessUnit preprocesses one unit's source and returns the surviving
// text. The result has exactly as many lines as the input: directive
// lines, suppressed branches, and spliced continuations become empty
// lines, so line numbers stay valid for the pack timeline. Recoverable
// problems are joined into the returned error; the text is usable either
// way.
func (p *Preprocessor) ProcessUnit(unit, src string) (string, error) {
	p.reg.SetCurrentUnit(unit)
	ps := &packState{}
	p.packs[unit] = ps

	lines := spliceLines(strings.Split(StripComments(src), "\n"))
	out := make([]string, len(lines))
	var errs []string
	var stack []condFrame

	active := func() bool {
		return len(stack) == 0 || stack[len(stack)-1].active
	}

	for idx, line := range lines {
		lineNo := idx + 1
		trimmed := strings.TrimSpace(line)

		if !strings.HasPrefix(trimmed, "#") {
			if active() {
				out[idx] = p.ExpandMacros(line)
			}
			continue
		}

		m := directiveRe.FindStringSubmatch(trimmed)
		if m == nil {
			errs = append(errs, fmt.Sprintf("%s:%d: malformed directive: %s", unit, lineNo, trimmed))
			continue
		}
		name, rest := m[1], strings.TrimSpace(m[2])

		switch name {
		case "if":
			parent := active()
			val := false
			if parent {
				var err error
				val, err = p.evalCond(rest)
				if err != nil {
					errs = append(errs, fmt.Sprintf("%s:%d: #if %s: %v", unit, lineNo, rest, err))
				}
			}
			stack = append(stack, condFrame{parentActive: parent, active: parent && val, taken: val})

		case "ifdef", "ifndef":
			parent := active()
			val := p.reg.IsMacro(firstWord(rest))
			if name == "ifndef" {
				val = !val
			}
			stack = append(stack, condFrame{parentActive: parent, active: parent && val, taken: val})

		case "elif":
			if len(stack) == 0 {
				errs = append(errs, fmt.Sprintf("%s:%d: #elif without #if", unit, lineNo))
				continue
			}
			top := &stack[len(stack)-1]
			top.active = false
			if top.parentActive && !top.taken {
				val, err := p.evalCond(rest)
				if err != nil {
					errs = append(errs, fmt.Sprintf("%s:%d: #elif %s: %v", unit, lineNo, rest, err))
				}
				top.active = val
				top.taken = val
			}

		case "else":
			if len(stack) == 0 {
				errs = append(errs, fmt.Sprintf("%s:%d: #else without #if", unit, lineNo))
				continue
			}
			top := &stack[len(stack)-1]
			top.active = top.parentActive && !top.taken
			top.taken = true

		case "endif":
			if len(stack) == 0 {
				errs = append(errs, fmt.Sprintf("%s:%d: #endif without #if", unit, lineNo))
				continue
			}
			stack = stack[:len(stack)-1]

		case "define":
			if active() {
				if err := p.define(rest); err != nil {
					errs = append(errs, fmt.Sprintf("%s:%d: #define %s: %v", unit, lineNo, rest, err))
				}
			}

		case "undef":
			if active() {
				p.reg.RemoveMacro(firstWord(rest))
			}

		case "pragma":
			if active() {
				if err := p.pragma(ps, rest, lineNo); err != nil {
					errs = append(errs, fmt.Sprintf("%s:%d: %v", unit, lineNo, err))
				}
			}

		case "include", "include_next", "import":
			// Header inclusion is outside our job; each unit is read on
			// its own.
			p.logf("%s:%d: skipping #%s %s", unit, lineNo, name, rest)

		case "error":
			if active() {
				errs = append(errs, fmt.Sprintf("%s:%d: #error %s", unit, lineNo, rest))
			}

		case "warning", "line", "ident":
			// Harmless; nothing to do.

		default:
			p.logf("%s:%d: ignoring directive #%s", unit, lineNo, name)
		}
	}

	if len(stack) != 0 {
		errs = append(errs, fmt.Sprintf("%s: %d unterminated #if block(s)", unit, len(stack)))
	}

	text := strings.Join(out, "\n")
	if len(errs) > 0 {
		return text, fmt.Errorf("%s", strings.Join(errs, "\n"))
	}
	return text, nil
}

// PackingAt returns the packing value in effect at a line of a processed
// unit, nil for default alignment or an unknown unit.
func (p *Preprocessor) PackingAt(unit string, line int) *int {
	ps, ok := p.packs[unit]
	if !ok {
		return nil
	}
	return ps.packingAt(line)
}

// Timeline returns the sequence of packing changes recorded for a unit.
func (p *Preprocessor) Timeline(unit string) []PackEntry {
	if ps, ok := p.packs[unit]; ok {
		return ps.timeline
	}
	return nil
}

// evalCond evaluates a conditional expression: defined operators are
// resolved first, then macros are expanded, then the remainder is
// evaluated with unknown identifiers reading as zero.
func (p *Preprocessor) evalCond(expr string) (bool, error) {
	expr = definedRe.ReplaceAllStringFunc(expr, func(s string) string {
		sub := definedRe.FindStringSubmatch(s)
		name := sub[1]
		if name == "" {
			name = sub[2]
		}
		if p.reg.IsMacro(name) {
			return "1"
		}
		return "0"
	})
	expr = p.ExpandMacros(expr)

	ev := cexpr.Evaluator{
		Lookup: func(name string) (ctypes.Value, bool) {
			v, ok := p.reg.Global.Values[name]
			return v, ok
		},
	}
	return ev.EvalBool(expr)
}

// define handles the text after #define.
func (p *Preprocessor) define(rest string) error {
	i := 0
	for i < len(rest) && isIdentPart(rest[i]) {
		i++
	}
	if i == 0 || !isIdentStart(rest[0]) {
		return fmt.Errorf("missing macro name")
	}
	name := rest[:i]

	// A parameter list only counts when the paren touches the name.
	if i < len(rest) && rest[i] == '(' {
		params, n, err := cexpr.SplitArgs(rest[i:])
		if err != nil {
			return err
		}
		body := strings.TrimSpace(rest[i+n:])
		m, err := CompileFnMacro(body, params)
		if err != nil {
			return err
		}
		p.reg.AddFnMacro(name, m)
		return nil
	}

	body := strings.TrimSpace(rest[i:])

	// An object define whose body is exactly the name of a function
	// macro aliases it.
	if m, ok := p.reg.Global.FnMacros[body]; ok {
		p.reg.AddFnMacro(name, m)
		return nil
	}

	p.reg.AddMacro(name, body)

	// Resolve the macro to a constant when it is one; plenty of macros
	// are not, which is fine.
	if body == "" {
		return nil
	}
	ev := cexpr.Evaluator{
		Lookup: func(n string) (ctypes.Value, bool) {
			v, ok := p.reg.Global.Values[n]
			return v, ok
		},
	}
	if v, err := ev.Eval(p.ExpandMacros(body)); err == nil && v.Resolved() {
		p.reg.AddValue(name, v)
	}
	return nil
}

// pragma handles the text after #pragma. Only pack is interpreted.
func (p *Preprocessor) pragma(ps *packState, rest string, line int) error {
	if !strings.HasPrefix(rest, "pack") {
		p.logf("ignoring #pragma %s", rest)
		return nil
	}
	tail := strings.TrimSpace(strings.TrimPrefix(rest, "pack"))
	if tail == "" {
		// "#pragma pack" with no list resets to default.
		return ps.apply(nil, line)
	}
	args, _, err := cexpr.SplitArgs(tail)
	if err != nil {
		return fmt.Errorf("pragma pack: %v", err)
	}
	return ps.apply(args, line)
}

// spliceLines joins backslash-continued lines. The joined text lands on
// the first physical line and the continuation lines become empty, so
// the line count is unchanged.
func spliceLines(lines []string) []string {
	out := make([]string, len(lines))
	for i := 0; i < len(lines); i++ {
		line := lines[i]
		j := i
		for strings.HasSuffix(strings.TrimRight(line, " \t"), "\\") && j+1 < len(lines) {
			line = strings.TrimSuffix(strings.TrimRight(line, " \t"), "\\")
			j++
			line += " " + strings.TrimSpace(lines[j])
		}
		out[i] = line
		i = j
	}
	return out
}

func firstWord(s string) string {
	s = strings.TrimSpace(s)
	for i := 0; i < len(s); i++ {
		if !isIdentPart(s[i]) {
			return s[:i]
		}
	}
	return s
}
