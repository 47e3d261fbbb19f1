package parser

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/starford/siena/internal/apperr"
	"github.com/starford/siena/internal/record"
)

// headerRe matches the first `---` ... `---` block whose delimiters sit on
// their own lines. The lazy body means a later horizontal rule in the
// Markdown never extends the header.
var headerRe = regexp.MustCompile(`(?s)(?:\A|\n)---\r?\n(?:(.*?)\r?\n)??---(?:\r?\n|\z)`)

// DecodeError reports a front matter header that is not valid YAML.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return "parser: decode front matter: " + e.Err.Error()
}

func (e *DecodeError) Unwrap() []error {
	return []error{apperr.ErrDecode, e.Err}
}

// Document is a front matter file split into header fields and body.
type Document struct {
	Header map[string]record.Value
	Body   string
	// Found is false when the input had no header block.
	Found bool
}

// SplitFrontMatter separates the YAML header from the Markdown body. Without
// a header block the header is empty and the body is the whole trimmed input.
func SplitFrontMatter(data []byte) (Document, error) {
	text := string(data)
	loc := headerRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return Document{
			Header: map[string]record.Value{},
			Body:   strings.TrimSpace(text),
		}, nil
	}

	var header map[string]record.Value
	if loc[2] >= 0 {
		var err error
		header, err = decodeMapping([]byte(text[loc[2]:loc[3]]))
		if err != nil {
			return Document{}, &DecodeError{Err: err}
		}
	} else {
		header = map[string]record.Value{}
	}

	body := strings.TrimSpace(text[:loc[0]] + "\n" + text[loc[1]:])
	return Document{Header: header, Body: body, Found: true}, nil
}

// ParseFrontMatter decodes a front matter document into a field mapping.
// The body is exposed twice: rendered to HTML under "content" and verbatim
// under "content_raw"; both replace author fields of the same name. A
// document without a header block yields an empty mapping.
func ParseFrontMatter(data []byte) (map[string]record.Value, error) {
	doc, err := SplitFrontMatter(data)
	if err != nil {
		return nil, err
	}
	if !doc.Found {
		return map[string]record.Value{}, nil
	}
	fields := doc.Header
	fields[record.KeyContent] = record.String(Render(doc.Body))
	fields[record.KeyContentRaw] = record.String(doc.Body)
	return fields, nil
}

// MarshalFrontMatter writes fields as a YAML header followed by body.
// The synthetic content keys are left out of the header.
func MarshalFrontMatter(fields map[string]record.Value, body string) ([]byte, error) {
	header := make(map[string]record.Value, len(fields))
	for k, v := range fields {
		if k == record.KeyContent || k == record.KeyContentRaw {
			continue
		}
		header[k] = v
	}

	var buf bytes.Buffer
	buf.WriteString("---\n")
	if len(header) > 0 {
		out, err := MarshalYAML(header)
		if err != nil {
			return nil, fmt.Errorf("parser: marshal front matter: %w", err)
		}
		buf.Write(out)
	}
	buf.WriteString("---\n")
	if body != "" {
		buf.WriteString("\n")
		buf.WriteString(body)
		buf.WriteString("\n")
	}
	return buf.Bytes(), nil
}
