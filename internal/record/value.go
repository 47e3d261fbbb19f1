package record

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"gopkg.in/yaml.v3"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindString Kind = iota + 1
	KindNumber
	KindBool
	KindMap
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindMap:
		return "map"
	case KindList:
		return "list"
	default:
		return "invalid"
	}
}

// Value is a dynamically typed field value decoded from YAML. It holds
// exactly one of: string, non-negative integer, boolean, mapping or sequence.
// There is no null variant; a missing field is an absent map key.
//
// The zero Value is invalid and never produced by decoding.
type Value struct {
	kind Kind
	str  string
	num  uint64
	b    bool
	m    map[string]Value
	list []Value
}

// String returns a string Value.
func String(s string) Value { return Value{kind: KindString, str: s} }

// Number returns a number Value.
func Number(n uint64) Value { return Value{kind: KindNumber, num: n} }

// Bool returns a boolean Value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Map returns a mapping Value. A nil map is stored as an empty one.
func Map(m map[string]Value) Value {
	if m == nil {
		m = map[string]Value{}
	}
	return Value{kind: KindMap, m: m}
}

// List returns a sequence Value.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a variant.
func (v Value) IsValid() bool { return v.kind != 0 }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsNumber() (uint64, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsMap() (map[string]Value, bool) { return v.m, v.kind == KindMap }

func (v Value) AsList() ([]Value, bool) { return v.list, v.kind == KindList }

// Equal reports whether v and o hold the same variant with equal contents.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindString:
		return v.str == o.str
	case KindNumber:
		return v.num == o.num
	case KindBool:
		return v.b == o.b
	case KindMap:
		return maps.EqualFunc(v.m, o.m, Value.Equal)
	case KindList:
		return slices.EqualFunc(v.list, o.list, Value.Equal)
	}
	return true
}

// Clone returns a deep copy of v.
func (v Value) Clone() Value {
	switch v.kind {
	case KindMap:
		m := make(map[string]Value, len(v.m))
		for k, item := range v.m {
			m[k] = item.Clone()
		}
		return Map(m)
	case KindList:
		list := make([]Value, len(v.list))
		for i, item := range v.list {
			list[i] = item.Clone()
		}
		return List(list...)
	}
	return v
}

// Interface converts v to plain Go values (string, uint64, bool,
// map[string]any, []any).
func (v Value) Interface() any {
	switch v.kind {
	case KindString:
		return v.str
	case KindNumber:
		return v.num
	case KindBool:
		return v.b
	case KindMap:
		out := make(map[string]any, len(v.m))
		for k, item := range v.m {
			out[k] = item.Interface()
		}
		return out
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	}
	return nil
}

func (v Value) GoString() string {
	return fmt.Sprintf("record.Value{%s: %v}", v.kind, v.Interface())
}

// MarshalYAML implements yaml.Marshaler.
func (v Value) MarshalYAML() (any, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("record: marshal invalid value")
	}
	return v.Interface(), nil
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	if !v.IsValid() {
		return nil, fmt.Errorf("record: marshal invalid value")
	}
	return json.Marshal(v.Interface())
}

// UnmarshalYAML implements yaml.Unmarshaler. Variants are tried in a fixed
// order: string, number, boolean, mapping, sequence. The first one the node
// fits wins, so "123" is a string and 123 is a number.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	out, err := decodeNode(node)
	if err != nil {
		return err
	}
	*v = out
	return nil
}

func decodeNode(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return Value{}, fmt.Errorf("record: empty document")
		}
		return decodeNode(node.Content[0])
	case yaml.AliasNode:
		return decodeNode(node.Alias)
	case yaml.ScalarNode:
		return decodeScalar(node)
	case yaml.MappingNode:
		m := make(map[string]Value, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			key := node.Content[i]
			if key.Kind == yaml.AliasNode {
				key = key.Alias
			}
			if key.Kind != yaml.ScalarNode {
				return Value{}, fmt.Errorf("record: line %d: mapping key must be a scalar", key.Line)
			}
			item, err := decodeNode(node.Content[i+1])
			if err != nil {
				return Value{}, err
			}
			m[key.Value] = item
		}
		return Map(m), nil
	case yaml.SequenceNode:
		list := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			item, err := decodeNode(child)
			if err != nil {
				return Value{}, err
			}
			list = append(list, item)
		}
		return List(list...), nil
	}
	return Value{}, fmt.Errorf("record: line %d: unsupported node", node.Line)
}

func decodeScalar(node *yaml.Node) (Value, error) {
	switch node.ShortTag() {
	case "!!str", "!!timestamp":
		return String(node.Value), nil
	case "!!int":
		var n uint64
		if err := node.Decode(&n); err == nil {
			return Number(n), nil
		}
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err == nil {
			return Bool(b), nil
		}
	}
	return Value{}, fmt.Errorf("record: line %d: %s value %q matches no variant", node.Line, node.ShortTag(), node.Value)
}
