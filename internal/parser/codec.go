package parser

import (
	"fmt"

	"github.com/starford/siena/internal/record"
)

// Format is the on-disk encoding of a record file.
type Format int

const (
	FormatNone Format = iota
	FormatYAML
	FormatFrontMatter
)

func (f Format) String() string {
	switch f {
	case FormatYAML:
		return "yaml"
	case FormatFrontMatter:
		return "frontmatter"
	default:
		return "none"
	}
}

// FormatOf selects the codec for a file name by extension.
func FormatOf(fileName string) Format {
	switch ext := fileName[len(record.IDFromFileName(fileName)):]; ext {
	case ".yml", ".yaml":
		return FormatYAML
	case ".md", ".markdown":
		return FormatFrontMatter
	default:
		return FormatNone
	}
}

// Decode parses file contents with the codec implied by fileName.
func Decode(fileName string, data []byte) (map[string]record.Value, error) {
	switch FormatOf(fileName) {
	case FormatYAML:
		return ParseYAML(data), nil
	case FormatFrontMatter:
		return ParseFrontMatter(data)
	default:
		return nil, fmt.Errorf("parser: unsupported file %q", fileName)
	}
}

// Encode serialises fields with the codec implied by fileName. Front matter
// files take their body from the content_raw field; a missing or non-string
// content_raw writes an empty body.
func Encode(fileName string, fields map[string]record.Value) ([]byte, error) {
	switch FormatOf(fileName) {
	case FormatYAML:
		return MarshalYAML(fields)
	case FormatFrontMatter:
		body, _ := fields[record.KeyContentRaw].AsString()
		return MarshalFrontMatter(fields, body)
	default:
		return nil, fmt.Errorf("parser: unsupported file %q", fileName)
	}
}
