package extract

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConfig is returned when a BudgetConfig cannot be honored.
var ErrInvalidConfig = errors.New("invalid extraction config")

const (
	// DefaultMaxLines is the default soft budget for tier sections.
	DefaultMaxLines = 250
	// DefaultHardLimit is the default absolute cap on emitted lines.
	DefaultHardLimit = 350
	// DefaultHeadLines is the default size of the head anchor.
	DefaultHeadLines = 5
	// DefaultTailLines is the default size of the tail anchor.
	DefaultTailLines = 30

	// minClipLines is the smallest clipped body that is split into a head
	// and tail slice around the omission marker.
	minClipLines = 5
)

// BudgetConfig bounds the size of an extraction.
type BudgetConfig struct {
	MaxLines    int  `json:"max_lines"`  // soft budget for tier sections
	HardLimit   int  `json:"hard_limit"` // absolute cap on all emitted lines
	IncludeHead bool `json:"include_head"`
	IncludeTail bool `json:"include_tail"`
	HeadLines   int  `json:"head_lines"`
	TailLines   int  `json:"tail_lines"`

	// FallbackToTail widens the tail anchor to MaxLines when nothing in the
	// input matched a severity rule.
	FallbackToTail bool `json:"fallback_to_tail"`
}

// DefaultBudget returns the budget used for full console logs.
func DefaultBudget() BudgetConfig {
	return BudgetConfig{
		MaxLines:       DefaultMaxLines,
		HardLimit:      DefaultHardLimit,
		IncludeHead:    true,
		IncludeTail:    true,
		HeadLines:      DefaultHeadLines,
		TailLines:      DefaultTailLines,
		FallbackToTail: true,
	}
}

// Validate reports whether the budget can be honored. A zero MaxLines is
// valid and yields no tier sections.
func (c BudgetConfig) Validate() error {
	var errs []error
	if c.MaxLines < 0 {
		errs = append(errs, fmt.Errorf("max lines must not be negative, got %d", c.MaxLines))
	}
	if c.HardLimit < c.MaxLines {
		errs = append(errs, fmt.Errorf("hard limit %d is below max lines %d", c.HardLimit, c.MaxLines))
	}
	if c.HeadLines < 0 {
		errs = append(errs, fmt.Errorf("head lines must not be negative, got %d", c.HeadLines))
	}
	if c.TailLines < 0 {
		errs = append(errs, fmt.Errorf("tail lines must not be negative, got %d", c.TailLines))
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Section is the rendered form of one MatchGroup.
type Section struct {
	Tier        Severity `json:"tier"`
	Header      string   `json:"header"`
	Lines       []string `json:"lines"`
	FirstLine   int      `json:"first_line"`
	Stage       string   `json:"stage"`
	RepeatCount int      `json:"repeat_count"`
	Clipped     bool     `json:"clipped,omitempty"`
}

// cost is the number of output lines the section occupies.
func (s Section) cost() int {
	return 1 + len(s.Lines)
}

// header renders the one-line summary of a group.
func header(g *MatchGroup) string {
	var b strings.Builder
	fmt.Fprintf(&b, "--- %s near line %d", g.Fingerprint.Tier, g.FirstLine)
	if g.Fingerprint.Stage != Unstaged {
		fmt.Fprintf(&b, " | Stage: %q", g.Fingerprint.Stage)
	}
	if g.Fingerprint.Token != "" {
		fmt.Fprintf(&b, " | %s", g.Fingerprint.Token)
	}
	switch {
	case g.RepeatCount == 1:
		b.WriteString(" [repeated 1 more time]")
	case g.RepeatCount > 1:
		fmt.Fprintf(&b, " [repeated %d more times]", g.RepeatCount)
	}
	b.WriteString(" ---")
	return b.String()
}

func omissionMarker(n int) string {
	return fmt.Sprintf("    [...%d lines omitted...]", n)
}

// body returns the captured lines of a group, with a marker standing in for
// lines beyond the capture cap.
func body(g *MatchGroup) []string {
	if g.Dropped == 0 {
		return g.Body
	}
	out := make([]string, 0, len(g.Body)+1)
	out = append(out, g.Body...)
	return append(out, omissionMarker(g.Dropped))
}

// render formats a group into at most remaining lines. A group is never
// dropped: with fewer than three lines left only its header is kept.
func render(g *MatchGroup, remaining int) Section {
	sec := Section{
		Tier:        g.Fingerprint.Tier,
		Header:      header(g),
		FirstLine:   g.FirstLine,
		Stage:       g.Fingerprint.Stage,
		RepeatCount: g.RepeatCount,
	}
	lines := body(g)
	if 1+len(lines) <= remaining {
		sec.Lines = append([]string(nil), lines...)
		return sec
	}

	sec.Clipped = true
	if remaining < 3 {
		sec.Lines = []string{}
		return sec
	}

	available := remaining - 2
	if available < minClipLines {
		kept := lines[:available]
		sec.Lines = append(append([]string(nil), kept...), omissionMarker(len(lines)-len(kept)))
		return sec
	}

	top := (available + 1) / 2
	bottom := available - top
	clipped := make([]string, 0, available+1)
	clipped = append(clipped, lines[:top]...)
	clipped = append(clipped, omissionMarker(len(lines)-top-bottom))
	clipped = append(clipped, lines[len(lines)-bottom:]...)
	sec.Lines = clipped
	return sec
}

// allocate fills the soft budget tier by tier. Once the budget is spent,
// remaining groups of the current tier and every lower tier are omitted.
func allocate(groups []*MatchGroup, maxLines int) (sections []Section, omitted int) {
	used := 0
	exhausted := false
	for _, tier := range tierOrder {
		for _, g := range groups {
			if g.Fingerprint.Tier != tier {
				continue
			}
			if exhausted || used >= maxLines {
				exhausted = true
				omitted++
				continue
			}
			sec := render(g, maxLines-used)
			used += sec.cost()
			sections = append(sections, sec)
		}
	}
	return sections, omitted
}
