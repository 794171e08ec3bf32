package extract

import (
	"strings"
	"unicode/utf8"
)

const (
	// messageKeyChars bounds the normalized message kept in a fingerprint.
	messageKeyChars = 100

	// fallbackTokenChars bounds the line prefix used when no exception
	// token is found.
	fallbackTokenChars = 60
)

// normalize strips volatile tokens so that repeats of the same failure
// produce the same fingerprint.
func (t *ruleTable) normalize(line string) string {
	for _, v := range t.volatile {
		line = v.Regex.ReplaceAllLiteralString(line, v.Placeholder)
	}
	return strings.TrimSpace(line)
}

// exceptionToken extracts the most specific failure name from a line.
func (t *ruleTable) exceptionToken(line string) string {
	if t.token != nil {
		if m := t.token.FindStringSubmatch(line); m != nil {
			for _, g := range m[1:] {
				if g != "" {
					return g
				}
			}
			return m[0]
		}
	}
	return truncateRunes(line, fallbackTokenChars)
}

// truncateRunes cuts s to at most n runes without splitting a character.
func truncateRunes(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// truncateBytes cuts s to at most n bytes, backing off to a rune boundary.
func truncateBytes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
