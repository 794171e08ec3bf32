package junit

// Document is one raw report supplied by a caller.
type Document struct {
	Name    string
	Content []byte
}

// ProvenanceEntry records what happened to one input document. SkipReason
// is set if and only if Parsed is false.
type ProvenanceEntry struct {
	File         string `json:"file"`
	Parsed       bool   `json:"parsed"`
	TestCount    int    `json:"test_count"`
	FailureCount int    `json:"failure_count"`
	SkipReason   string `json:"skip_reason,omitempty"`
}

// Failure is a failing case with its resolved kind.
type Failure struct {
	TestCase
	Kind Kind `json:"kind"`
}

// Evaluation is the analysis of a single document.
type Evaluation struct {
	Report      *Report
	Counts      ClassificationCounts
	BlastGroups []BlastGroup
	Standalone  []Failure
	Provenance  ProvenanceEntry
}

// AnalysisResult merges the evaluations of many documents. Provenance holds
// one entry per input document, in input order.
type AnalysisResult struct {
	Suites      []TestSuite          `json:"suites"`
	Totals      Totals               `json:"totals"`
	Counts      ClassificationCounts `json:"counts"`
	BlastGroups []BlastGroup         `json:"blast_groups"`
	Standalone  []Failure            `json:"standalone"`
	Provenance  []ProvenanceEntry    `json:"provenance"`
}

// Skipped returns the provenance of documents that were never parsed.
func (r *AnalysisResult) Skipped() []ProvenanceEntry {
	var out []ProvenanceEntry
	for _, p := range r.Provenance {
		if !p.Parsed {
			out = append(out, p)
		}
	}
	return out
}

// Analyzer runs the parse, classify and blast-radius stages over report
// documents. It is immutable and safe for concurrent use.
//
// Usage:
//
//	analyzer, err := junit.NewAnalyzer(junit.WithBlastConfig(cfg))
//	if err != nil {
//	    return err
//	}
//	result := analyzer.Analyze(docs)
type Analyzer struct {
	parser     *Parser
	classifier *Classifier
	blast      BlastConfig
}

// Option configures an Analyzer.
type Option func(*analyzerOptions)

type analyzerOptions struct {
	parse    ParseConfig
	classify ClassifierConfig
	blast    BlastConfig
}

// WithParseConfig replaces the default parser settings.
func WithParseConfig(cfg ParseConfig) Option {
	return func(o *analyzerOptions) {
		o.parse = cfg
	}
}

// WithClassifierConfig replaces the default classification tables.
func WithClassifierConfig(cfg ClassifierConfig) Option {
	return func(o *analyzerOptions) {
		o.classify = cfg
	}
}

// WithBlastConfig replaces the default blast-radius thresholds.
func WithBlastConfig(cfg BlastConfig) Option {
	return func(o *analyzerOptions) {
		o.blast = cfg
	}
}

// NewAnalyzer creates an Analyzer. Every configuration is validated before
// any document is processed.
func NewAnalyzer(opts ...Option) (*Analyzer, error) {
	o := analyzerOptions{
		parse:    DefaultParseConfig(),
		classify: DefaultClassifierConfig(),
		blast:    DefaultBlastConfig(),
	}
	for _, opt := range opts {
		opt(&o)
	}

	parser, err := NewParser(o.parse)
	if err != nil {
		return nil, err
	}
	classifier, err := NewClassifier(o.classify)
	if err != nil {
		return nil, err
	}
	if err := o.blast.Validate(); err != nil {
		return nil, err
	}

	return &Analyzer{parser: parser, classifier: classifier, blast: o.blast}, nil
}

// Parser returns the analyzer's parser.
func (a *Analyzer) Parser() *Parser {
	return a.parser
}

// Classifier returns the analyzer's classifier.
func (a *Analyzer) Classifier() *Classifier {
	return a.classifier
}

// Evaluate analyzes one document. A rejected document yields an Evaluation
// with only its provenance set.
func (a *Analyzer) Evaluate(doc Document) Evaluation {
	out := a.parser.Parse(doc.Content)
	if !out.Accepted() {
		return Skipped(doc.Name, out.Reason)
	}

	ev := Evaluation{
		Report: out.Report,
		Counts: a.classifier.Classify(out.Report),
	}
	for _, s := range out.Report.Suites {
		groups, standalone := DetectSuite(s, a.blast)
		ev.BlastGroups = append(ev.BlastGroups, groups...)
		for _, tc := range standalone {
			ev.Standalone = append(ev.Standalone, Failure{TestCase: tc, Kind: a.classifier.Kind(tc)})
		}
	}

	totals := out.Report.Totals()
	ev.Provenance = ProvenanceEntry{
		File:         doc.Name,
		Parsed:       true,
		TestCount:    totals.Tests,
		FailureCount: totals.Failed + totals.Errored,
	}
	return ev
}

// Skipped returns the Evaluation of a document the caller declined to
// parse, for example because it was too large or binary.
func Skipped(name, reason string) Evaluation {
	if reason == "" {
		reason = "skipped"
	}
	return Evaluation{
		Provenance: ProvenanceEntry{File: name, SkipReason: reason},
	}
}

// Combine merges evaluations in the order given.
func Combine(evals []Evaluation) *AnalysisResult {
	res := &AnalysisResult{
		Provenance: make([]ProvenanceEntry, 0, len(evals)),
	}
	for _, ev := range evals {
		res.Provenance = append(res.Provenance, ev.Provenance)
		if ev.Report == nil {
			continue
		}
		res.Suites = append(res.Suites, ev.Report.Suites...)
		res.Totals.Add(ev.Report.Totals())
		res.Counts.Add(ev.Counts)
		res.BlastGroups = append(res.BlastGroups, ev.BlastGroups...)
		res.Standalone = append(res.Standalone, ev.Standalone...)
	}
	return res
}

// Analyze evaluates each document independently and merges the results.
func (a *Analyzer) Analyze(docs []Document) *AnalysisResult {
	evals := make([]Evaluation, 0, len(docs))
	for _, d := range docs {
		evals = append(evals, a.Evaluate(d))
	}
	return Combine(evals)
}
