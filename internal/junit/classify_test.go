package junit

import (
	"regexp"
	"testing"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := NewClassifier(DefaultClassifierConfig())
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}
	return c
}

func TestClassifierKind(t *testing.T) {
	tests := []struct {
		name string
		tc   TestCase
		want Kind
	}{
		{
			name: "type attribute wins over message",
			tc: TestCase{
				Status: StatusFail, Tag: "failure",
				FailureType: "java.lang.AssertionError",
				Message:     "expected no NullPointerException",
			},
			want: KindAssertion,
		},
		{
			name: "exception type under failure tag",
			tc:   TestCase{Status: StatusFail, Tag: "failure", FailureType: "java.lang.IllegalStateException"},
			want: KindException,
		},
		{
			name: "comparison failure type",
			tc:   TestCase{Status: StatusError, Tag: "error", FailureType: "org.junit.ComparisonFailure"},
			want: KindAssertion,
		},
		{
			name: "unrecognized type falls through to message",
			tc:   TestCase{Status: StatusFail, Tag: "failure", FailureType: "pytest.Flaky", Message: "raised KeyError in fixture"},
			want: KindException,
		},
		{
			name: "message keyword without type",
			tc:   TestCase{Status: StatusError, Tag: "error", Message: "assertion failed: x == 1"},
			want: KindAssertion,
		},
		{
			name: "failure tag fallback",
			tc:   TestCase{Status: StatusFail, Tag: "failure", Message: "values differ"},
			want: KindAssertion,
		},
		{
			name: "error tag fallback",
			tc:   TestCase{Status: StatusError, Tag: "error", Message: "process exited"},
			want: KindException,
		},
		{
			name: "unknown tag leans exception",
			tc:   TestCase{Status: StatusError, Tag: "crash"},
			want: KindException,
		},
		{
			name: "passing case",
			tc:   TestCase{Status: StatusPass, FailureType: "AssertionError"},
			want: KindUnknown,
		},
		{
			name: "skipped case",
			tc:   TestCase{Status: StatusSkipped},
			want: KindUnknown,
		},
	}

	c := newTestClassifier(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := c.Kind(tt.tc); got != tt.want {
				t.Errorf("Kind() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassifierClassify(t *testing.T) {
	report := &Report{Suites: []TestSuite{
		{Name: "a", Cases: []TestCase{
			{Status: StatusPass},
			{Status: StatusFail, Tag: "failure", FailureType: "AssertionError"},
			{Status: StatusFail, Tag: "failure", FailureType: "TimeoutError"},
		}},
		{Name: "b", Cases: []TestCase{
			{Status: StatusError, Tag: "error"},
			{Status: StatusSkipped},
			{Status: StatusFail, Tag: "failure"},
		}},
	}}

	got := newTestClassifier(t).Classify(report)
	if got.Assertions != 2 || got.Exceptions != 2 {
		t.Errorf("Classify() = %+v, want 2 assertions and 2 exceptions", got)
	}
	if got.TotalFailed() != 4 {
		t.Errorf("TotalFailed() = %d, want 4", got.TotalFailed())
	}

	if empty := newTestClassifier(t).Classify(nil); empty.TotalFailed() != 0 {
		t.Errorf("Classify(nil) = %+v, want zero", empty)
	}
}

func TestClassifierCustomTables(t *testing.T) {
	cfg := ClassifierConfig{
		TypeRules: []KindRule{
			{Pattern: regexp.MustCompile(`^Check`), Kind: KindAssertion},
		},
		TagKinds: map[string]Kind{"failure": KindException},
	}
	c, err := NewClassifier(cfg)
	if err != nil {
		t.Fatalf("NewClassifier() error = %v", err)
	}

	if got := c.Kind(TestCase{Status: StatusFail, Tag: "failure", FailureType: "CheckFailed"}); got != KindAssertion {
		t.Errorf("Kind(CheckFailed) = %v, want assertion", got)
	}
	if got := c.Kind(TestCase{Status: StatusFail, Tag: "failure", FailureType: "AssertionError"}); got != KindException {
		t.Errorf("Kind(AssertionError) = %v, want exception from the tag table", got)
	}
}

func TestNewClassifierRejectsInvalidRules(t *testing.T) {
	tests := []struct {
		name string
		cfg  ClassifierConfig
	}{
		{"nil pattern", ClassifierConfig{TypeRules: []KindRule{{Kind: KindAssertion}}}},
		{"unknown kind", ClassifierConfig{KeywordRules: []KindRule{{Pattern: regexp.MustCompile("x")}}}},
		{"unknown tag kind", ClassifierConfig{TagKinds: map[string]Kind{"failure": KindUnknown}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewClassifier(tt.cfg); err == nil {
				t.Error("NewClassifier() error = nil, want error")
			}
		})
	}
}
