// Package output renders extraction and test-report analysis results as
// text, JSON, or tables.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Format represents an output format type.
type Format string

const (
	FormatText  Format = "text"
	FormatJSON  Format = "json"
	FormatTable Format = "table"
)

// ParseFormat converts a string to a Format, defaulting to text.
func ParseFormat(s string) Format {
	switch strings.ToLower(s) {
	case "json":
		return FormatJSON
	case "table":
		return FormatTable
	default:
		return FormatText
	}
}

// Writer handles writing formatted output.
type Writer struct {
	w        io.Writer
	format   Format
	colorize bool
}

// New creates a new output Writer. Color is off until SetColorMode enables
// it.
func New(w io.Writer, format Format) *Writer {
	return &Writer{w: w, format: format}
}

// SetColorMode decides whether text output is colored. ColorAuto colors
// only when the underlying writer is a terminal.
func (wr *Writer) SetColorMode(mode ColorMode) *Writer {
	wr.colorize = shouldColorize(mode, wr.w)
	return wr
}

// WriteJSON outputs any value as indented JSON.
func (wr *Writer) WriteJSON(v any) error {
	enc := json.NewEncoder(wr.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// skipNote renders a labelled note for an input that produced no result.
func skipNote(file, reason string) string {
	return fmt.Sprintf("[skipped] %s: %s", file, reason)
}

// clip shortens s to n runes for table cells.
func clip(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
