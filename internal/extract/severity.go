package extract

import (
	"encoding/json"
	"strings"
)

// Severity is the tier a log line is assigned by the rule table.
// Higher values are more severe.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// tierOrder is the order in which tiers are emitted and budgeted.
var tierOrder = [...]Severity{SeverityCritical, SeverityError, SeverityWarning}

// String returns the upper-case tier name.
func (s Severity) String() string {
	switch s {
	case SeverityCritical:
		return "CRITICAL"
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	default:
		return "NONE"
	}
}

// MarshalJSON implements json.Marshaler for Severity.
func (s Severity) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON implements json.Unmarshaler for Severity.
func (s *Severity) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	*s = ParseSeverity(str)
	return nil
}

// ParseSeverity converts a tier name to a Severity. Unknown names map to
// SeverityNone.
func ParseSeverity(s string) Severity {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "critical", "crit", "fatal":
		return SeverityCritical
	case "error", "err":
		return SeverityError
	case "warning", "warn":
		return SeverityWarning
	default:
		return SeverityNone
	}
}
