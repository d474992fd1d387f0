// YAML codecs for Type, Modifier and Value so registry snapshots can be
// written to and read from cache files. Modifiers encode compactly:
// pointers as "*"/"**", references as "&", calling conventions as their
// tag, array dimensions as an integer sequence, and argument tuples as a
// mapping with an "args" key.
package ctypes

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

type typeYAML struct {
	Base string      `yaml:"base"`
	Mods []yaml.Node `yaml:"mods,omitempty"`
}

type argYAML struct {
	Name    string `yaml:"name,omitempty"`
	Type    Type   `yaml:"type"`
	Default *Value `yaml:"default,omitempty"`
}

type argsYAML struct {
	Args []argYAML `yaml:"args"`
}

// MarshalYAML implements yaml.Marshaler.
func (t Type) MarshalYAML() (interface{}, error) {
	out := struct {
		Base string        `yaml:"base"`
		Mods []interface{} `yaml:"mods,omitempty"`
	}{Base: t.Base}
	for _, m := range t.Mods {
		enc, err := encodeMod(m)
		if err != nil {
			return nil, err
		}
		out.Mods = append(out.Mods, enc)
	}
	return out, nil
}

func encodeMod(m Modifier) (interface{}, error) {
	switch mod := m.(type) {
	case Pointer:
		return strings.Repeat("*", int(mod)), nil
	case Ref:
		return "&", nil
	case CallConv:
		return string(mod), nil
	case Array:
		return []int64(mod), nil
	case Args:
		enc := argsYAML{Args: []argYAML{}}
		for _, a := range mod {
			enc.Args = append(enc.Args, argYAML{
				Name:    a.Name,
				Type:    a.Type,
				Default: a.Default,
			})
		}
		return enc, nil
	}
	return nil, fmt.Errorf("unknown modifier %T", m)
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (t *Type) UnmarshalYAML(n *yaml.Node) error {
	var raw typeYAML
	if err := n.Decode(&raw); err != nil {
		return err
	}
	t.Base = raw.Base
	t.Mods = nil
	for i := range raw.Mods {
		m, err := decodeMod(&raw.Mods[i])
		if err != nil {
			return err
		}
		t.Mods = append(t.Mods, m)
	}
	return nil
}

func decodeMod(n *yaml.Node) (Modifier, error) {
	switch n.Kind {
	case yaml.ScalarNode:
		s := n.Value
		if s == "&" {
			return Ref{}, nil
		}
		if s != "" && strings.Trim(s, "*") == "" {
			return Pointer(len(s)), nil
		}
		return CallConv(s), nil
	case yaml.SequenceNode:
		var dims []int64
		if err := n.Decode(&dims); err != nil {
			return nil, err
		}
		return Array(dims), nil
	case yaml.MappingNode:
		var raw argsYAML
		if err := n.Decode(&raw); err != nil {
			return nil, err
		}
		args := Args{}
		for _, a := range raw.Args {
			args = append(args, Arg{Name: a.Name, Type: a.Type, Default: a.Default})
		}
		return args, nil
	}
	return nil, fmt.Errorf("cannot decode modifier from yaml node kind %d", n.Kind)
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (interface{}, error) {
	switch v.Kind {
	case IntKind:
		return v.Int, nil
	case FloatKind:
		return v.Float, nil
	case StrKind:
		return v.Str, nil
	case ListKind:
		return v.List, nil
	}
	return nil, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (v *Value) UnmarshalYAML(n *yaml.Node) error {
	switch {
	case n.Tag == "!!null":
		*v = Value{}
		return nil
	case n.Kind == yaml.SequenceNode:
		var list []Value
		if err := n.Decode(&list); err != nil {
			return err
		}
		*v = ListValue(list)
		return nil
	case n.Tag == "!!int":
		i, err := strconv.ParseInt(n.Value, 0, 64)
		if err != nil {
			return err
		}
		*v = IntValue(i)
		return nil
	case n.Tag == "!!float":
		f, err := strconv.ParseFloat(n.Value, 64)
		if err != nil {
			return err
		}
		*v = FloatValue(f)
		return nil
	case n.Kind == yaml.ScalarNode:
		*v = StrValue(n.Value)
		return nil
	}
	return fmt.Errorf("cannot decode value from yaml node kind %d", n.Kind)
}
