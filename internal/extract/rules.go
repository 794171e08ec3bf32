package extract

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

// Rule maps a line pattern to a severity tier.
type Rule struct {
	Name    string
	Tier    Severity
	Pattern *regexp.Regexp
}

// VolatilePattern describes a token that varies between otherwise identical
// lines (timestamps, ids, addresses). Matches are replaced with Placeholder
// before fingerprinting.
type VolatilePattern struct {
	Name        string
	Regex       *regexp.Regexp
	Placeholder string
}

// Rules is the complete, ordered rule configuration of an Engine.
//
// Evaluation order is the source of behavioral truth: severity rules are
// evaluated CRITICAL first, then ERROR, then WARNING, and in slice order within
// a tier. Stage rules name the new stage with their first non-empty capture
// group. Volatile patterns are applied in slice order.
type Rules struct {
	Severity       []Rule
	Stages         []*regexp.Regexp
	Continuations  []*regexp.Regexp
	ExceptionToken *regexp.Regexp
	Volatile       []VolatilePattern
}

// DefaultRules returns the built-in rule tables tuned for Jenkins, Maven,
// Gradle, npm, Python and Go console output.
func DefaultRules() Rules {
	return Rules{
		Severity: []Rule{
			{Name: "fatal", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)\bFATAL\b`)},
			{Name: "sigkill", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)SIGKILL`)},
			{Name: "sigsegv", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)SIGSEGV`)},
			{Name: "oom-error", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)OutOfMemoryError`)},
			{Name: "out-of-memory", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)\bout of memory\b`)},
			{Name: "core-dumped", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)core dumped`)},
			{Name: "build-failure", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)BUILD FAILURE`)},
			{Name: "gradle-failure", Tier: SeverityCritical, Pattern: regexp.MustCompile(`(?i)FAILURE:\s+Build failed`)},

			{Name: "error", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)\bERROR\b`)},
			{Name: "exception", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)Exception\b`)},
			{Name: "traceback", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)Traceback`)},
			{Name: "npm-err", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)npm ERR!`)},
			{Name: "failed", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)\bFAILED\b`)},
			{Name: "assertion", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)AssertionError`)},
			{Name: "killed", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)\bkilled\b`)},
			{Name: "caused-by", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)Caused by:`)},
			{Name: "panic", Tier: SeverityError, Pattern: regexp.MustCompile(`(?i)panic:`)},

			{Name: "warning", Tier: SeverityWarning, Pattern: regexp.MustCompile(`(?i)\bWARN(?:ING)?\b`)},
			{Name: "deprecated", Tier: SeverityWarning, Pattern: regexp.MustCompile(`(?i)\bDEPRECATED\b`)},
			{Name: "unstable", Tier: SeverityWarning, Pattern: regexp.MustCompile(`(?i)\bUNSTABLE\b`)},
		},
		Stages: []*regexp.Regexp{
			regexp.MustCompile(`\[Pipeline\]\s*\{\s*\((.+?)\)`),
			regexp.MustCompile(`^\[INFO\]\s*---\s*(.+?)\s*---`),
			regexp.MustCompile(`^\[INFO\]\s*Building\s+(.+)`),
			regexp.MustCompile(`Stage\s+"(.+?)"`),
			regexp.MustCompile(`\[Stage:\s*(.+?)\]`),
			regexp.MustCompile(`Entering stage\s+(.+)`),
		},
		Continuations: []*regexp.Regexp{
			regexp.MustCompile(`^\s+at\s+\S`),
			regexp.MustCompile(`^\s+\.\.\.\s*\d+\s+more`),
			regexp.MustCompile(`^\s+File\s+"`),
			regexp.MustCompile(`^goroutine\s+\d+\s+\[`),
		},
		ExceptionToken: regexp.MustCompile(
			`(?i)(\w+(?:Error|Exception|Failure))` +
				`|(\bFATAL\b)` +
				`|(\bSIGKILL\b|\bSIGSEGV\b)` +
				`|(\bcore dumped\b)` +
				`|(\bBUILD FAILURE\b)` +
				`|(npm ERR!)` +
				`|(\bTraceback\b)` +
				`|(\bpanic:)` +
				`|(\bCaused by:)`),
		Volatile: DefaultVolatilePatterns(),
	}
}

// DefaultVolatilePatterns returns the normalization table applied before
// fingerprinting. Leading timestamps and ANSI codes are removed outright;
// embedded ids are replaced with typed placeholders.
func DefaultVolatilePatterns() []VolatilePattern {
	return []VolatilePattern{
		{Name: "ansi", Regex: regexp.MustCompile(`\x1b\[[0-9;]*m`)},
		{Name: "leading_iso_timestamp", Regex: regexp.MustCompile(`^\s*\d{4}[-/]\d{2}[-/]\d{2}[\sT]\d{2}:\d{2}:\d{2}[.,]?\d*Z?\s*`)},
		{Name: "leading_bracket_timestamp", Regex: regexp.MustCompile(`^\s*\[\d{2}/\d{2}/\d{2}\s+\d{2}:\d{2}:\d{2}\]\s*`)},
		{Name: "leading_timestamper", Regex: regexp.MustCompile(`^\s*\[\d{4}-\d{2}-\d{2}T[\d:.]+Z?\]\s*`)},
		{Name: "timestamp", Regex: regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(?:[.,]\d+)?(?:Z|[+-]\d{2}:?\d{2})?`), Placeholder: "<ts>"},
		{Name: "uuid", Regex: regexp.MustCompile(`\b[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12}\b`), Placeholder: "<uuid>"},
		{Name: "hex_id", Regex: regexp.MustCompile(`\b0x[0-9a-fA-F]+\b|\b[0-9a-f]{12,}\b`), Placeholder: "<hex>"},
		{Name: "ipv4", Regex: regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), Placeholder: "<ip>"},
	}
}

// ruleTable is the validated, precedence-ordered form of Rules.
type ruleTable struct {
	severity      []Rule
	stages        []*regexp.Regexp
	continuations []*regexp.Regexp
	token         *regexp.Regexp
	volatile      []VolatilePattern
}

func compileRules(r Rules) (*ruleTable, error) {
	var errs []error
	severity := make([]Rule, 0, len(r.Severity))
	for i, rule := range r.Severity {
		switch {
		case rule.Pattern == nil:
			errs = append(errs, fmt.Errorf("severity rule %d (%s): missing pattern", i, rule.Name))
		case rule.Tier == SeverityNone:
			errs = append(errs, fmt.Errorf("severity rule %d (%s): tier must be critical, error or warning", i, rule.Name))
		default:
			severity = append(severity, rule)
		}
	}
	// Stable so that source order survives within each tier.
	sort.SliceStable(severity, func(i, j int) bool {
		return severity[i].Tier > severity[j].Tier
	})

	for i, re := range r.Stages {
		if re == nil {
			errs = append(errs, fmt.Errorf("stage rule %d: missing pattern", i))
		}
	}
	for i, re := range r.Continuations {
		if re == nil {
			errs = append(errs, fmt.Errorf("continuation rule %d: missing pattern", i))
		}
	}
	for i, v := range r.Volatile {
		if v.Regex == nil {
			errs = append(errs, fmt.Errorf("volatile pattern %d (%s): missing pattern", i, v.Name))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return &ruleTable{
		severity:      severity,
		stages:        append([]*regexp.Regexp(nil), r.Stages...),
		continuations: append([]*regexp.Regexp(nil), r.Continuations...),
		token:         r.ExceptionToken,
		volatile:      append([]VolatilePattern(nil), r.Volatile...),
	}, nil
}

// classify returns the tier of the first matching rule, or SeverityNone.
func (t *ruleTable) classify(line string) Severity {
	for _, rule := range t.severity {
		if rule.Pattern.MatchString(line) {
			return rule.Tier
		}
	}
	return SeverityNone
}

// stageName reports the stage a boundary line opens.
func (t *ruleTable) stageName(line string) (string, bool) {
	for _, re := range t.stages {
		m := re.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		for _, g := range m[1:] {
			if g != "" {
				return strings.TrimSpace(g), true
			}
		}
	}
	return "", false
}

func (t *ruleTable) isContinuation(line string) bool {
	for _, re := range t.continuations {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}
