// Package junit parses JUnit/xUnit XML test reports and condenses their
// failures into classification counts and blast-radius groups.
//
// Supported producers include Maven Surefire, Gradle, pytest --junitxml and
// go-junit-report: any document rooted at <testsuites> or <testsuite>.
// Parsing never panics or returns an error for bad content; a document that
// is not a test report yields a Rejected Outcome carrying the reason.
package junit

import "encoding/json"

// Status is the outcome of a single test case.
type Status string

const (
	StatusPass    Status = "pass"
	StatusFail    Status = "fail"
	StatusError   Status = "error"
	StatusSkipped Status = "skipped"
)

// Failing reports whether the status counts as a failure.
func (s Status) Failing() bool {
	return s == StatusFail || s == StatusError
}

// TestCase is one <testcase> element. Missing attributes and elements are
// represented by zero values.
type TestCase struct {
	Suite       string  `json:"suite"`
	ClassName   string  `json:"class_name,omitempty"`
	Name        string  `json:"name"`
	Status      Status  `json:"status"`
	Duration    float64 `json:"duration_s"`
	Message     string  `json:"message,omitempty"`
	Detail      string  `json:"detail,omitempty"`
	FailureType string  `json:"failure_type,omitempty"`
	Tag         string  `json:"tag,omitempty"` // "failure" or "error" for failing cases
	SkipReason  string  `json:"skip_reason,omitempty"`
	Stdout      string  `json:"stdout,omitempty"`
	Stderr      string  `json:"stderr,omitempty"`
}

// QualifiedName joins the class name and case name.
func (c TestCase) QualifiedName() string {
	if c.ClassName == "" {
		return c.Name
	}
	return c.ClassName + "." + c.Name
}

// TestSuite is one <testsuite> element with its cases in document order.
type TestSuite struct {
	Name     string     `json:"name"`
	Duration float64    `json:"duration_s"`
	Tests    int        `json:"tests"` // declared counts, as reported by the producer
	Failures int        `json:"failures"`
	Errors   int        `json:"errors"`
	Skipped  int        `json:"skipped"`
	Stdout   string     `json:"stdout,omitempty"`
	Stderr   string     `json:"stderr,omitempty"`
	Cases    []TestCase `json:"cases"`
}

// Failing returns the failing cases of the suite in document order.
func (s TestSuite) Failing() []TestCase {
	var out []TestCase
	for _, c := range s.Cases {
		if c.Status.Failing() {
			out = append(out, c)
		}
	}
	return out
}

// Report is a parsed test-report document.
type Report struct {
	Suites []TestSuite `json:"suites"`
}

// Totals counts cases by status.
type Totals struct {
	Tests   int `json:"tests"`
	Passed  int `json:"passed"`
	Failed  int `json:"failed"`
	Errored int `json:"errored"`
	Skipped int `json:"skipped"`
}

// Add accumulates other into t.
func (t *Totals) Add(other Totals) {
	t.Tests += other.Tests
	t.Passed += other.Passed
	t.Failed += other.Failed
	t.Errored += other.Errored
	t.Skipped += other.Skipped
}

// Totals counts the cases of the report by status.
func (r *Report) Totals() Totals {
	var t Totals
	for _, s := range r.Suites {
		for _, c := range s.Cases {
			t.Tests++
			switch c.Status {
			case StatusPass:
				t.Passed++
			case StatusFail:
				t.Failed++
			case StatusError:
				t.Errored++
			case StatusSkipped:
				t.Skipped++
			}
		}
	}
	return t
}

// Kind is the assertion-versus-exception classification of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindAssertion
	KindException
)

// String returns the lower-case kind name.
func (k Kind) String() string {
	switch k {
	case KindAssertion:
		return "assertion"
	case KindException:
		return "exception"
	default:
		return "unknown"
	}
}

// MarshalJSON implements json.Marshaler for Kind.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// ParseKind converts a kind name to a Kind.
func ParseKind(s string) Kind {
	switch s {
	case "assertion", "assert":
		return KindAssertion
	case "exception", "error":
		return KindException
	default:
		return KindUnknown
	}
}
