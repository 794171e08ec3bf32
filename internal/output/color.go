package output

import (
	"os"

	"golang.org/x/term"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/junit"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
)

// ColorMode determines when to use colored output.
type ColorMode int

const (
	ColorAuto   ColorMode = iota // Auto-detect based on TTY
	ColorAlways                  // Always use colors
	ColorNever                   // Never use colors
)

// ParseColorMode converts "auto", "always" or "never" to a ColorMode.
func ParseColorMode(s string) ColorMode {
	switch s {
	case "always":
		return ColorAlways
	case "never":
		return ColorNever
	default:
		return ColorAuto
	}
}

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func shouldColorize(mode ColorMode, w any) bool {
	switch mode {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	}
	if f, ok := w.(*os.File); ok {
		return isTerminal(f)
	}
	return false
}

// ColorizeTier colors a section header by its severity tier.
func ColorizeTier(tier extract.Severity, text string) string {
	switch tier {
	case extract.SeverityCritical:
		return colorBold + colorRed + text + colorReset
	case extract.SeverityError:
		return colorRed + text + colorReset
	case extract.SeverityWarning:
		return colorYellow + text + colorReset
	default:
		return text
	}
}

// ColorizeKind colors a failure line by its classification.
func ColorizeKind(kind junit.Kind, text string) string {
	switch kind {
	case junit.KindException:
		return colorRed + text + colorReset
	case junit.KindAssertion:
		return colorYellow + text + colorReset
	default:
		return text
	}
}

func (wr *Writer) paint(code, text string) string {
	if !wr.colorize {
		return text
	}
	return code + text + colorReset
}
