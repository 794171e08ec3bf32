package junit

import (
	"errors"
	"fmt"
	"regexp"
)

// KindRule maps a pattern to the failure kind it indicates.
type KindRule struct {
	Pattern *regexp.Regexp
	Kind    Kind
}

// ClassifierConfig holds the three ordered tables used to resolve a
// failure's kind. Each tier is consulted only when the previous one is
// inconclusive.
type ClassifierConfig struct {
	// TypeRules match the failure's type attribute.
	TypeRules []KindRule
	// KeywordRules match the type attribute and message joined by a space.
	KeywordRules []KindRule
	// TagKinds maps the structural tag ("failure", "error") to a kind.
	// Tags missing from the map classify as exceptions.
	TagKinds map[string]Kind
}

var (
	assertionPattern     = regexp.MustCompile(`(?i)Assertion|ComparisonFailure|ExpectationFailure`)
	exceptionTypePattern = regexp.MustCompile(`(?i)Exception|Error|Timeout|Refused`)
	exceptionWordPattern = regexp.MustCompile(`(?i)\w+Exception\b|\w+Error\b|Timeout\b|Refused\b`)
)

// DefaultClassifierConfig returns tables tuned for JVM, Python and Go
// report producers.
func DefaultClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		TypeRules: []KindRule{
			{Pattern: assertionPattern, Kind: KindAssertion},
			{Pattern: exceptionTypePattern, Kind: KindException},
		},
		KeywordRules: []KindRule{
			{Pattern: assertionPattern, Kind: KindAssertion},
			{Pattern: exceptionWordPattern, Kind: KindException},
		},
		TagKinds: map[string]Kind{
			"failure": KindAssertion,
			"error":   KindException,
		},
	}
}

// Validate reports whether every rule is usable.
func (c ClassifierConfig) Validate() error {
	var errs []error
	check := func(table string, rules []KindRule) {
		for i, r := range rules {
			if r.Pattern == nil {
				errs = append(errs, fmt.Errorf("%s rule %d has no pattern", table, i))
			}
			if r.Kind == KindUnknown {
				errs = append(errs, fmt.Errorf("%s rule %d has no kind", table, i))
			}
		}
	}
	check("type", c.TypeRules)
	check("keyword", c.KeywordRules)
	for tag, k := range c.TagKinds {
		if k == KindUnknown {
			errs = append(errs, fmt.Errorf("tag %q has no kind", tag))
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// ClassificationCounts tallies failing cases by kind.
type ClassificationCounts struct {
	Assertions int `json:"assertions"`
	Exceptions int `json:"exceptions"`
}

// TotalFailed is the number of classified failing cases.
func (c ClassificationCounts) TotalFailed() int {
	return c.Assertions + c.Exceptions
}

// Add accumulates other into c.
func (c *ClassificationCounts) Add(other ClassificationCounts) {
	c.Assertions += other.Assertions
	c.Exceptions += other.Exceptions
}

// Classifier resolves assertion-versus-exception for failing cases.
type Classifier struct {
	cfg ClassifierConfig
}

// NewClassifier creates a Classifier from cfg.
func NewClassifier(cfg ClassifierConfig) (*Classifier, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	tags := make(map[string]Kind, len(cfg.TagKinds))
	for k, v := range cfg.TagKinds {
		tags[k] = v
	}
	cfg.TagKinds = tags
	return &Classifier{cfg: cfg}, nil
}

// Kind classifies one case. Passing and skipped cases are KindUnknown.
func (c *Classifier) Kind(tc TestCase) Kind {
	if !tc.Status.Failing() {
		return KindUnknown
	}

	if tc.FailureType != "" {
		if k, ok := firstMatch(c.cfg.TypeRules, tc.FailureType); ok {
			return k
		}
	}

	if k, ok := firstMatch(c.cfg.KeywordRules, tc.FailureType+" "+tc.Message); ok {
		return k
	}

	if k, ok := c.cfg.TagKinds[tc.Tag]; ok {
		return k
	}
	return KindException
}

func firstMatch(rules []KindRule, text string) (Kind, bool) {
	for _, r := range rules {
		if r.Pattern.MatchString(text) {
			return r.Kind, true
		}
	}
	return KindUnknown, false
}

// Classify counts the failing cases of report by kind.
func (c *Classifier) Classify(report *Report) ClassificationCounts {
	var counts ClassificationCounts
	if report == nil {
		return counts
	}
	for _, s := range report.Suites {
		for _, tc := range s.Cases {
			switch c.Kind(tc) {
			case KindAssertion:
				counts.Assertions++
			case KindException:
				counts.Exceptions++
			}
		}
	}
	return counts
}
