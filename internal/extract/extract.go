package extract

import (
	"fmt"
	"io"
	"strings"
)

// DefaultMaxBodyLines caps the lines captured for one matched block.
const DefaultMaxBodyLines = 40

// Engine extracts budgeted excerpts from console logs.
//
// Usage:
//
//	engine, err := extract.New(
//	    extract.WithRules(rules),
//	    extract.WithContextLines(2),
//	)
//	if err != nil {
//	    return err
//	}
//	result, err := engine.Extract(text, extract.DefaultBudget())
type Engine struct {
	rules        *ruleTable
	contextLines int
	maxBodyLines int
	maxLineBytes int
}

// Option configures an Engine.
type Option func(*engineOptions)

type engineOptions struct {
	rules        Rules
	contextLines int
	maxBodyLines int
	maxLineBytes int
}

// WithRules replaces the default rule tables.
func WithRules(r Rules) Option {
	return func(o *engineOptions) {
		o.rules = r
	}
}

// WithContextLines attaches up to n unmatched lines after a match to its
// block. Default is 0.
func WithContextLines(n int) Option {
	return func(o *engineOptions) {
		o.contextLines = n
	}
}

// WithMaxBodyLines caps the lines captured per block.
// Default is 40.
func WithMaxBodyLines(n int) Option {
	return func(o *engineOptions) {
		o.maxBodyLines = n
	}
}

// WithMaxLineBytes caps the length of a single input line.
// Default is 64 KiB.
func WithMaxLineBytes(n int) Option {
	return func(o *engineOptions) {
		o.maxLineBytes = n
	}
}

// New creates an Engine. It fails only when the rule tables are invalid.
func New(opts ...Option) (*Engine, error) {
	o := engineOptions{
		rules:        DefaultRules(),
		maxBodyLines: DefaultMaxBodyLines,
		maxLineBytes: DefaultMaxLineBytes,
	}
	for _, opt := range opts {
		opt(&o)
	}

	if o.contextLines < 0 {
		return nil, fmt.Errorf("%w: context lines must not be negative, got %d", ErrInvalidConfig, o.contextLines)
	}
	if o.maxBodyLines <= 0 {
		return nil, fmt.Errorf("%w: max body lines must be positive, got %d", ErrInvalidConfig, o.maxBodyLines)
	}
	if o.maxLineBytes <= 0 {
		return nil, fmt.Errorf("%w: max line bytes must be positive, got %d", ErrInvalidConfig, o.maxLineBytes)
	}

	table, err := compileRules(o.rules)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Engine{
		rules:        table,
		contextLines: o.contextLines,
		maxBodyLines: o.maxBodyLines,
		maxLineBytes: o.maxLineBytes,
	}, nil
}

// Counts tallies what the extraction found.
type Counts struct {
	Critical      int `json:"critical"` // unique groups per tier
	Error         int `json:"error"`
	Warning       int `json:"warning"`
	Matches       int `json:"matches"`        // matched blocks before dedup
	Duplicates    int `json:"duplicates"`     // blocks collapsed into an earlier group
	OmittedGroups int `json:"omitted_groups"` // groups with no section after budgeting
}

// Result is the bounded excerpt of one console log.
type Result struct {
	Sections   []Section     `json:"sections"`
	Head       []string      `json:"head"`
	Tail       []string      `json:"tail"`
	Stages     []StageWindow `json:"stages"`
	Counts     Counts        `json:"counts"`
	InputLines int           `json:"input_lines"`
	TotalLines int           `json:"total_lines"`

	// Truncated is set when the hard limit removed content.
	Truncated bool `json:"truncated,omitempty"`
	// Fallback is set when nothing matched and the tail was widened.
	Fallback bool `json:"fallback,omitempty"`
}

// AllLines returns every emitted line: the head anchor, each section's header
// and lines, then the tail anchor.
func (r *Result) AllLines() []string {
	out := make([]string, 0, r.TotalLines)
	out = append(out, r.Head...)
	for _, s := range r.Sections {
		out = append(out, s.Header)
		out = append(out, s.Lines...)
	}
	return append(out, r.Tail...)
}

// Extract runs the pipeline over an in-memory console log.
func (e *Engine) Extract(raw string, budget BudgetConfig) (*Result, error) {
	return e.ExtractReader(strings.NewReader(raw), budget)
}

// ExtractReader runs the pipeline over a stream. Memory use is bounded by
// the budget and the rule tables, not by the size of the input.
func (e *Engine) ExtractReader(r io.Reader, budget BudgetConfig) (*Result, error) {
	if err := budget.Validate(); err != nil {
		return nil, err
	}

	headCap := 0
	if budget.IncludeHead {
		headCap = budget.HeadLines
	}
	tailCap := 0
	if budget.IncludeTail {
		tailCap = budget.TailLines
		if budget.FallbackToTail && budget.MaxLines > tailCap {
			tailCap = budget.MaxLines
		}
	}

	var (
		head   = make([]string, 0, headCap)
		tail   = newRing(tailCap)
		stages = stageTracker{rules: e.rules}
		groups = newGrouper(e.rules, budget.MaxLines)
		lines  = newLineReader(DecodeReader(r), e.maxLineBytes)
		open   *block
		idx    int
	)
	flush := func() {
		if open != nil {
			groups.add(open)
			open = nil
		}
	}

	for ; ; idx++ {
		line, ok, err := lines.next()
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if len(head) < headCap {
			head = append(head, line)
		}
		tail.push(line)

		if stages.observe(idx, line) {
			flush()
		}
		stage := stages.current()

		if tier := e.rules.classify(line); tier != SeverityNone {
			// Blocks never mix tiers.
			if open == nil || open.stage != stage || open.tier != tier {
				flush()
				open = &block{start: idx, stage: stage, tier: tier, keyLine: line}
			}
			open.add(line, e.maxBodyLines)
			open.trailing = 0
			continue
		}

		if open == nil {
			continue
		}
		switch {
		case e.rules.isContinuation(line):
			open.add(line, e.maxBodyLines)
			open.trailing = 0
		case open.trailing < e.contextLines && strings.TrimSpace(line) != "":
			open.add(line, e.maxBodyLines)
			open.trailing++
		default:
			flush()
		}
	}
	flush()

	res := &Result{
		InputLines: idx,
		Stages:     stages.finish(idx),
		Head:       head,
	}

	res.Counts.Critical = groups.unique[SeverityCritical]
	res.Counts.Error = groups.unique[SeverityError]
	res.Counts.Warning = groups.unique[SeverityWarning]
	res.Counts.Duplicates = groups.duplicates
	res.Counts.Matches = groups.matches
	res.Sections, res.Counts.OmittedGroups = allocate(groups.groups(), budget.MaxLines)
	res.Counts.OmittedGroups += groups.overflowed

	if budget.IncludeTail {
		want := budget.TailLines
		if budget.FallbackToTail && groups.matches == 0 && budget.MaxLines > want {
			// The widened part takes the place of sections and must not
			// crowd the head out under the hard limit.
			want = max(budget.TailLines, min(budget.MaxLines, budget.HardLimit-len(head)))
			res.Fallback = true
		}
		// The tail never repeats a line already emitted in the head.
		if avail := idx - len(head); want > avail {
			want = avail
		}
		res.Tail = tail.last(want)
	}

	res.enforceHardLimit(budget.HardLimit)
	return res, nil
}

// enforceHardLimit trims section content first, then the head anchor from
// its end, then the tail anchor from its start.
func (r *Result) enforceHardLimit(limit int) {
	total := len(r.Head) + len(r.Tail)
	for _, s := range r.Sections {
		total += s.cost()
	}
	over := total - limit

	for over > 0 && len(r.Sections) > 0 {
		r.Truncated = true
		last := &r.Sections[len(r.Sections)-1]
		if n := len(last.Lines); n > 0 {
			cut := min(over, n)
			last.Lines = last.Lines[:n-cut]
			last.Clipped = true
			over -= cut
			continue
		}
		r.Sections = r.Sections[:len(r.Sections)-1]
		over--
	}
	if over > 0 && len(r.Head) > 0 {
		r.Truncated = true
		cut := min(over, len(r.Head))
		r.Head = r.Head[:len(r.Head)-cut]
		over -= cut
	}
	if over > 0 && len(r.Tail) > 0 {
		r.Truncated = true
		cut := min(over, len(r.Tail))
		r.Tail = r.Tail[cut:]
		over -= cut
	}

	r.TotalLines = len(r.Head) + len(r.Tail)
	for _, s := range r.Sections {
		r.TotalLines += s.cost()
	}
}
