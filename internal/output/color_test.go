package output

import (
	"bytes"
	"os"
	"strings"
	"testing"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/junit"
)

func TestColorizeTier(t *testing.T) {
	tests := []struct {
		name          string
		tier          extract.Severity
		expectColor   bool
		expectedColor string
	}{
		{"CRITICAL - bold red", extract.SeverityCritical, true, colorBold + colorRed},
		{"ERROR - red", extract.SeverityError, true, colorRed},
		{"WARNING - yellow", extract.SeverityWarning, true, colorYellow},
		{"NONE - no color", extract.SeverityNone, false, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := "--- " + tt.tier.String() + " near line 3 ---"
			result := ColorizeTier(tt.tier, line)

			if !tt.expectColor {
				if result != line {
					t.Errorf("Expected line to be unchanged, got: %s", result)
				}
				return
			}
			if !strings.HasPrefix(result, tt.expectedColor) {
				t.Errorf("Expected result to start with color code %q, got: %q", tt.expectedColor, result)
			}
			if !strings.HasSuffix(result, colorReset) {
				t.Errorf("Expected result to end with reset code, got: %q", result)
			}
			if !strings.Contains(result, line) {
				t.Errorf("Expected result to contain line %q, got: %s", line, result)
			}
		})
	}
}

func TestColorizeKind(t *testing.T) {
	if got := ColorizeKind(junit.KindException, "x"); got != colorRed+"x"+colorReset {
		t.Errorf("ColorizeKind(exception) = %q", got)
	}
	if got := ColorizeKind(junit.KindAssertion, "x"); got != colorYellow+"x"+colorReset {
		t.Errorf("ColorizeKind(assertion) = %q", got)
	}
	if got := ColorizeKind(junit.KindUnknown, "x"); got != "x" {
		t.Errorf("ColorizeKind(unknown) = %q, want unchanged", got)
	}
}

func TestShouldColorize(t *testing.T) {
	tests := []struct {
		name     string
		mode     ColorMode
		writer   any
		expected bool
	}{
		{"ColorAlways - any writer", ColorAlways, &bytes.Buffer{}, true},
		{"ColorNever - any writer", ColorNever, os.Stdout, false},
		{"ColorAuto - non-file writer", ColorAuto, &bytes.Buffer{}, false},
		{"ColorAuto - file writer (stdout)", ColorAuto, os.Stdout, isTerminal(os.Stdout)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := shouldColorize(tt.mode, tt.writer); got != tt.expected {
				t.Errorf("shouldColorize() = %v, expected %v", got, tt.expected)
			}
		})
	}
}

func TestParseColorMode(t *testing.T) {
	tests := map[string]ColorMode{
		"always": ColorAlways,
		"never":  ColorNever,
		"auto":   ColorAuto,
		"":       ColorAuto,
		"bogus":  ColorAuto,
	}
	for in, want := range tests {
		if got := ParseColorMode(in); got != want {
			t.Errorf("ParseColorMode(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestANSIColorCodes(t *testing.T) {
	codes := []struct {
		name  string
		value string
	}{
		{"reset", colorReset},
		{"red", colorRed},
		{"yellow", colorYellow},
		{"cyan", colorCyan},
		{"gray", colorGray},
		{"bold", colorBold},
	}

	for _, code := range codes {
		t.Run(code.name, func(t *testing.T) {
			if !strings.HasPrefix(code.value, "\033[") || !strings.HasSuffix(code.value, "m") {
				t.Errorf("Color code %q is not an ANSI SGR sequence", code.name)
			}
		})
	}
}
