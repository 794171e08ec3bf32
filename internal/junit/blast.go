package junit

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

const (
	// DefaultBlastMinSize is the smallest group reported as a blast radius.
	DefaultBlastMinSize = 3
	// DefaultBlastThreshold is the minimum share of a suite's failures a
	// group must hold.
	DefaultBlastThreshold = 0.60
	// DefaultSignatureChars caps the length of an error signature.
	DefaultSignatureChars = 100

	noMessage = "(no message)"
)

// BlastConfig controls blast-radius detection.
type BlastConfig struct {
	MinSize        int     `json:"min_size"`
	Threshold      float64 `json:"threshold"`
	SignatureChars int     `json:"signature_chars"`
}

// DefaultBlastConfig returns the standard thresholds: three cases holding
// at least sixty percent of a suite's failures.
func DefaultBlastConfig() BlastConfig {
	return BlastConfig{
		MinSize:        DefaultBlastMinSize,
		Threshold:      DefaultBlastThreshold,
		SignatureChars: DefaultSignatureChars,
	}
}

// Validate reports whether the config can be used.
func (c BlastConfig) Validate() error {
	var errs []error
	if c.MinSize < 2 {
		errs = append(errs, fmt.Errorf("blast min size must be at least 2, got %d", c.MinSize))
	}
	if c.Threshold <= 0 || c.Threshold > 1 {
		errs = append(errs, fmt.Errorf("blast threshold must be in (0, 1], got %g", c.Threshold))
	}
	if c.SignatureChars <= 0 {
		errs = append(errs, fmt.Errorf("signature chars must be positive, got %d", c.SignatureChars))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// BlastGroup is a cluster of failing cases in one suite sharing an error
// signature.
type BlastGroup struct {
	Suite          string     `json:"suite"`
	Signature      string     `json:"signature"`
	Members        []TestCase `json:"members"`
	Representative TestCase   `json:"representative"`
	TotalFailures  int        `json:"total_failures"` // failing cases in the suite
}

// Size is the number of member cases.
func (g BlastGroup) Size() int {
	return len(g.Members)
}

// Share is the fraction of the suite's failures the group holds.
func (g BlastGroup) Share() float64 {
	if g.TotalFailures == 0 {
		return 0
	}
	return float64(len(g.Members)) / float64(g.TotalFailures)
}

var messageTypePattern = regexp.MustCompile(`[\w.$]*(?:Exception|Error)\b`)

// Signature returns the normalized error signature of a failing case: its
// exception type followed by the first non-empty line of its message, or of
// its detail when the message is empty.
func Signature(tc TestCase, maxChars int) string {
	line := firstLine(tc.Message)
	if line == "" {
		line = firstLine(tc.Detail)
	}

	typ := strings.TrimSpace(tc.FailureType)
	if typ == "" {
		typ = messageTypePattern.FindString(line)
	}

	var sig string
	switch {
	case typ != "" && line != "" && !strings.HasPrefix(line, typ):
		sig = typ + ": " + line
	case line != "":
		sig = line
	case typ != "":
		sig = typ
	default:
		sig = noMessage
	}
	if maxChars > 0 {
		sig = truncate(sig, maxChars)
	}
	return sig
}

// firstLine returns the first non-blank line of s with runs of whitespace
// collapsed.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if f := strings.Fields(line); len(f) > 0 {
			return strings.Join(f, " ")
		}
	}
	return ""
}

// DetectSuite groups the failing cases of one suite by signature. Groups are
// disjoint and returned in first-seen order; the first member of each group
// is its representative. Failing cases outside every group are returned as
// standalone, in document order.
func DetectSuite(suite TestSuite, cfg BlastConfig) (groups []BlastGroup, standalone []TestCase) {
	failing := suite.Failing()
	if len(failing) < cfg.MinSize {
		return nil, failing
	}

	var order []string
	buckets := make(map[string][]int)
	for i, tc := range failing {
		sig := Signature(tc, cfg.SignatureChars)
		if _, ok := buckets[sig]; !ok {
			order = append(order, sig)
		}
		buckets[sig] = append(buckets[sig], i)
	}

	grouped := make([]bool, len(failing))
	for _, sig := range order {
		idx := buckets[sig]
		if len(idx) < cfg.MinSize || float64(len(idx))/float64(len(failing)) < cfg.Threshold {
			continue
		}
		g := BlastGroup{
			Suite:          suite.Name,
			Signature:      sig,
			Members:        make([]TestCase, 0, len(idx)),
			Representative: failing[idx[0]],
			TotalFailures:  len(failing),
		}
		for _, i := range idx {
			g.Members = append(g.Members, failing[i])
			grouped[i] = true
		}
		groups = append(groups, g)
	}

	for i, tc := range failing {
		if !grouped[i] {
			standalone = append(standalone, tc)
		}
	}
	return groups, standalone
}

// DetectBlastRadius runs DetectSuite over every suite of report, in order.
// cfg is expected to have passed Validate.
func DetectBlastRadius(report *Report, cfg BlastConfig) []BlastGroup {
	if report == nil {
		return nil
	}
	var out []BlastGroup
	for _, s := range report.Suites {
		groups, _ := DetectSuite(s, cfg)
		out = append(out, groups...)
	}
	return out
}
