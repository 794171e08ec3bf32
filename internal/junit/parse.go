package junit

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
)

// ErrInvalidConfig is returned when a parser, classifier or blast-radius
// configuration cannot be honored.
var ErrInvalidConfig = errors.New("invalid junit config")

const (
	// DefaultMaxDetailChars caps the failure body kept per case.
	DefaultMaxDetailChars = 5000
	// DefaultMaxOutputChars caps captured system-out and system-err text.
	DefaultMaxOutputChars = 2000
)

// ParseConfig controls which documents are accepted and how much text is
// kept from each.
type ParseConfig struct {
	// SuitesRoots are root elements that wrap a list of suites.
	SuitesRoots []string `json:"suites_roots"`
	// SuiteRoots are root elements that are themselves a suite.
	SuiteRoots     []string `json:"suite_roots"`
	MaxDetailChars int      `json:"max_detail_chars"`
	MaxOutputChars int      `json:"max_output_chars"`
}

// DefaultParseConfig accepts <testsuites> and <testsuite> roots.
func DefaultParseConfig() ParseConfig {
	return ParseConfig{
		SuitesRoots:    []string{"testsuites"},
		SuiteRoots:     []string{"testsuite"},
		MaxDetailChars: DefaultMaxDetailChars,
		MaxOutputChars: DefaultMaxOutputChars,
	}
}

// Validate reports whether the config can be used.
func (c ParseConfig) Validate() error {
	var errs []error
	if len(c.SuitesRoots)+len(c.SuiteRoots) == 0 {
		errs = append(errs, errors.New("at least one root element is required"))
	}
	for _, name := range append(append([]string(nil), c.SuitesRoots...), c.SuiteRoots...) {
		if strings.TrimSpace(name) == "" {
			errs = append(errs, errors.New("root element names must not be empty"))
			break
		}
	}
	if c.MaxDetailChars <= 0 {
		errs = append(errs, fmt.Errorf("max detail chars must be positive, got %d", c.MaxDetailChars))
	}
	if c.MaxOutputChars <= 0 {
		errs = append(errs, fmt.Errorf("max output chars must be positive, got %d", c.MaxOutputChars))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// OutcomeKind distinguishes an accepted document from a rejected one.
type OutcomeKind int

const (
	Parsed OutcomeKind = iota
	Rejected
)

// String returns the lower-case outcome name.
func (k OutcomeKind) String() string {
	if k == Rejected {
		return "rejected"
	}
	return "parsed"
}

// Outcome is the result of parsing one document. Report is set only when
// Kind is Parsed; Reason only when Kind is Rejected.
type Outcome struct {
	Kind   OutcomeKind
	Report *Report
	Reason string
}

// Accepted reports whether the document parsed as a test report.
func (o Outcome) Accepted() bool {
	return o.Kind == Parsed
}

func reject(format string, args ...any) Outcome {
	return Outcome{Kind: Rejected, Reason: fmt.Sprintf(format, args...)}
}

// Parser converts raw XML documents into Reports. A Parser is immutable and
// safe for concurrent use.
type Parser struct {
	suitesRoots map[string]bool
	suiteRoots  map[string]bool
	maxDetail   int
	maxOutput   int
}

// NewParser creates a Parser from cfg.
func NewParser(cfg ParseConfig) (*Parser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Parser{
		suitesRoots: make(map[string]bool, len(cfg.SuitesRoots)),
		suiteRoots:  make(map[string]bool, len(cfg.SuiteRoots)),
		maxDetail:   cfg.MaxDetailChars,
		maxOutput:   cfg.MaxOutputChars,
	}
	for _, name := range cfg.SuitesRoots {
		p.suitesRoots[name] = true
	}
	for _, name := range cfg.SuiteRoots {
		p.suiteRoots[name] = true
	}
	return p, nil
}

// xml shapes shared by every producer we accept.
type (
	xmlSuites struct {
		Suites []xmlSuite `xml:"testsuite"`
	}

	xmlSuite struct {
		Name      string     `xml:"name,attr"`
		Time      string     `xml:"time,attr"`
		Tests     string     `xml:"tests,attr"`
		Failures  string     `xml:"failures,attr"`
		Errors    string     `xml:"errors,attr"`
		Skipped   string     `xml:"skipped,attr"`
		SystemOut []string   `xml:"system-out"`
		SystemErr []string   `xml:"system-err"`
		Cases     []xmlCase  `xml:"testcase"`
		Suites    []xmlSuite `xml:"testsuite"`
	}

	xmlCase struct {
		Name      string       `xml:"name,attr"`
		ClassName string       `xml:"classname,attr"`
		Time      string       `xml:"time,attr"`
		Failures  []xmlProblem `xml:"failure"`
		Errors    []xmlProblem `xml:"error"`
		Skipped   []xmlProblem `xml:"skipped"`
		SystemOut []string     `xml:"system-out"`
		SystemErr []string     `xml:"system-err"`
	}

	xmlProblem struct {
		Message string `xml:"message,attr"`
		Type    string `xml:"type,attr"`
		Body    string `xml:",chardata"`
	}
)

// Parse decodes one document. It never returns an error: malformed XML,
// empty input and unrecognized roots produce a Rejected Outcome.
func (p *Parser) Parse(raw []byte) Outcome {
	if len(bytes.TrimSpace(raw)) == 0 {
		return reject("empty document")
	}

	dec := xml.NewDecoder(bytes.NewReader(raw))
	dec.CharsetReader = charset.NewReaderLabel

	root, err := firstElement(dec)
	if err != nil {
		return reject("malformed XML: %v", err)
	}

	name := root.Name.Local
	switch {
	case p.suitesRoots[name]:
		var doc xmlSuites
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return reject("malformed XML: %v", err)
		}
		if err := trailing(dec); err != nil {
			return reject("malformed XML: %v", err)
		}
		report := &Report{}
		for _, s := range doc.Suites {
			p.flatten(s, report)
		}
		return Outcome{Kind: Parsed, Report: report}
	case p.suiteRoots[name]:
		var doc xmlSuite
		if err := dec.DecodeElement(&doc, &root); err != nil {
			return reject("malformed XML: %v", err)
		}
		if err := trailing(dec); err != nil {
			return reject("malformed XML: %v", err)
		}
		report := &Report{}
		p.flatten(doc, report)
		return Outcome{Kind: Parsed, Report: report}
	default:
		return reject("unrecognized root element <%s>", name)
	}
}

func firstElement(dec *xml.Decoder) (xml.StartElement, error) {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return xml.StartElement{}, errors.New("no root element")
		}
		if err != nil {
			return xml.StartElement{}, err
		}
		if start, ok := tok.(xml.StartElement); ok {
			return start, nil
		}
	}
}

// trailing drains the decoder after the root element. Only whitespace,
// comments and processing instructions may follow it.
func trailing(dec *xml.Decoder) error {
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.Comment, xml.ProcInst:
		case xml.CharData:
			if len(bytes.TrimSpace(t)) > 0 {
				return errors.New("text after root element")
			}
		case xml.StartElement:
			return fmt.Errorf("element <%s> after root element", t.Name.Local)
		default:
			return errors.New("content after root element")
		}
	}
}

// flatten appends s and every suite nested inside it, depth first.
func (p *Parser) flatten(s xmlSuite, report *Report) {
	suite := TestSuite{
		Name:     s.Name,
		Duration: safeFloat(s.Time),
		Tests:    safeInt(s.Tests),
		Failures: safeInt(s.Failures),
		Errors:   safeInt(s.Errors),
		Skipped:  safeInt(s.Skipped),
		Stdout:   truncate(first(s.SystemOut), p.maxOutput),
		Stderr:   truncate(first(s.SystemErr), p.maxOutput),
		Cases:    make([]TestCase, 0, len(s.Cases)),
	}
	for _, c := range s.Cases {
		suite.Cases = append(suite.Cases, p.testCase(s.Name, c))
	}
	report.Suites = append(report.Suites, suite)

	for _, nested := range s.Suites {
		p.flatten(nested, report)
	}
}

// testCase converts one <testcase>. When several outcome elements are
// present, failure wins over error and error over skipped.
func (p *Parser) testCase(suite string, c xmlCase) TestCase {
	tc := TestCase{
		Suite:     suite,
		ClassName: c.ClassName,
		Name:      c.Name,
		Status:    StatusPass,
		Duration:  safeFloat(c.Time),
		Stdout:    truncate(first(c.SystemOut), p.maxOutput),
		Stderr:    truncate(first(c.SystemErr), p.maxOutput),
	}

	switch {
	case len(c.Failures) > 0:
		f := c.Failures[0]
		tc.Status = StatusFail
		tc.Tag = "failure"
		tc.Message = f.Message
		tc.FailureType = f.Type
		tc.Detail = truncate(strings.TrimSpace(f.Body), p.maxDetail)
	case len(c.Errors) > 0:
		e := c.Errors[0]
		tc.Status = StatusError
		tc.Tag = "error"
		tc.Message = e.Message
		tc.FailureType = e.Type
		tc.Detail = truncate(strings.TrimSpace(e.Body), p.maxDetail)
	case len(c.Skipped) > 0:
		tc.Status = StatusSkipped
		tc.SkipReason = c.Skipped[0].Message
		if tc.SkipReason == "" {
			tc.SkipReason = strings.TrimSpace(c.Skipped[0].Body)
		}
	}
	return tc
}

func first(values []string) string {
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// truncate keeps at most n characters of s.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// safeFloat parses a duration attribute, rounded to milliseconds. Thousands
// separators are tolerated and anything unparseable becomes zero.
func safeFloat(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Round(f*1000) / 1000
}

func safeInt(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}
