// Package parser converts record files to field mappings and back.
package parser

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/record"
)

// ParseYAML decodes a whole-file YAML document into a field mapping.
// Anything that is not a valid top-level mapping yields an empty mapping;
// a YAML record with no usable structure simply has no fields.
func ParseYAML(data []byte) map[string]record.Value {
	fields, err := decodeMapping(data)
	if err != nil {
		return map[string]record.Value{}
	}
	return fields
}

// ParseMapping decodes a YAML (or JSON) mapping strictly: malformed input or
// a document that is not a mapping is an error wrapping apperr.ErrDecode.
func ParseMapping(data []byte) (map[string]record.Value, error) {
	fields, err := decodeMapping(data)
	if err != nil {
		return nil, fmt.Errorf("parser: mapping: %w: %w", apperr.ErrDecode, err)
	}
	return fields, nil
}

// MarshalYAML encodes fields as a top-level YAML mapping.
func MarshalYAML(fields map[string]record.Value) ([]byte, error) {
	if fields == nil {
		fields = map[string]record.Value{}
	}
	out, err := yaml.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("parser: marshal yaml: %w", err)
	}
	return out, nil
}

// ParseValue decodes a single YAML value such as `42`, `"42"`, `true` or
// `[a, b]`. Empty input is the empty string.
func ParseValue(text string) (record.Value, error) {
	if text == "" {
		return record.String(""), nil
	}
	var v record.Value
	if err := yaml.Unmarshal([]byte(text), &v); err != nil {
		return record.Value{}, fmt.Errorf("parser: value %q: %w", text, err)
	}
	if !v.IsValid() {
		return record.String(text), nil
	}
	return v, nil
}

// decodeMapping requires the document to be a mapping. An empty document
// decodes to an empty mapping.
func decodeMapping(data []byte) (map[string]record.Value, error) {
	var v record.Value
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, err
	}
	if !v.IsValid() {
		return map[string]record.Value{}, nil
	}
	m, ok := v.AsMap()
	if !ok {
		return nil, fmt.Errorf("document is a %s, not a mapping", v.Kind())
	}
	return m, nil
}
