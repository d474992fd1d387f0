package cpp

import (
	"fmt"
	"strconv"
	"strings"
)

// PackEntry records that a new packing value took effect on a line of
// the preprocessed unit. A nil Pack means default alignment.
type PackEntry struct {
	Line int
	Pack *int
}

// packFrame is one entry of the pack(push)/pack(pop) stack. It stores
// the value that was current when the push happened, so a pop can
// restore it, plus the optional identifier tag.
type packFrame struct {
	saved *int
	tag   string
}

// packState tracks the #pragma pack status of one unit: the current
// value, the push stack, and the line-ordered timeline of changes.
type packState struct {
	current  *int
	stack    []packFrame
	timeline []PackEntry
}

func (ps *packState) record(line int) {
	ps.timeline = append(ps.timeline, PackEntry{Line: line, Pack: ps.current})
}

// apply interprets the argument list of a #pragma pack directive and
// records the resulting value against the given line.
func (ps *packState) apply(args []string, line int) error {
	defer ps.record(line)

	if len(args) == 0 {
		// pack() resets to default alignment.
		ps.current = nil
		return nil
	}

	switch strings.ToLower(args[0]) {
	case "push":
		frame := packFrame{saved: ps.current}
		for _, a := range args[1:] {
			if n, err := strconv.Atoi(a); err == nil {
				v := n
				ps.current = &v
			} else {
				frame.tag = a
			}
		}
		ps.stack = append(ps.stack, frame)
		return nil

	case "pop":
		var tag string
		var setTo *int
		for _, a := range args[1:] {
			if n, err := strconv.Atoi(a); err == nil {
				v := n
				setTo = &v
			} else {
				tag = a
			}
		}
		if len(ps.stack) == 0 {
			return fmt.Errorf("pragma pack(pop) with empty stack")
		}
		if tag == "" {
			frame := ps.stack[len(ps.stack)-1]
			ps.stack = ps.stack[:len(ps.stack)-1]
			ps.current = frame.saved
		} else {
			// Pop to the nearest enclosing frame with this tag; the
			// whole directive is ignored when no frame matches.
			idx := -1
			for i := len(ps.stack) - 1; i >= 0; i-- {
				if ps.stack[i].tag == tag {
					idx = i
					break
				}
			}
			if idx < 0 {
				return fmt.Errorf("pragma pack(pop, %s): no matching push", tag)
			}
			ps.current = ps.stack[idx].saved
			ps.stack = ps.stack[:idx]
		}
		if setTo != nil {
			ps.current = setTo
		}
		return nil

	default:
		n, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("pragma pack: bad argument %q", args[0])
		}
		v := n
		ps.current = &v
		return nil
	}
}

// packingAt returns the packing value in effect at the given line,
// scanning the timeline for the last change at or before it.
func (ps *packState) packingAt(line int) *int {
	var p *int
	for _, e := range ps.timeline {
		if e.Line > line {
			break
		}
		p = e.Pack
	}
	return p
}
