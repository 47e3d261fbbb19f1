package parser

import (
	"bytes"
	"log/slog"

	"github.com/yuin/goldmark"
)

var md = goldmark.New()

// Render converts Markdown to HTML with goldmark's default CommonMark
// configuration.
func Render(markdown string) string {
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		// Convert only fails when the writer does; a bytes.Buffer never does.
		slog.Warn("markdown render failed", slog.String("error", err.Error()))
		return ""
	}
	return buf.String()
}
