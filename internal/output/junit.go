package output

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bimmerbailey/cisift/internal/junit"
)

// maxListedMembers caps the member names printed per blast group.
const maxListedMembers = 10

// ReportSummary is the one-line overview printed above a report analysis.
func ReportSummary(res *junit.AnalysisResult) string {
	t := res.Totals
	return fmt.Sprintf("[JUnit: %d tests | %d passed, %d failed, %d errored, %d skipped | %d assertion, %d exception | %d files, %d skipped]",
		t.Tests, t.Passed, t.Failed, t.Errored, t.Skipped,
		res.Counts.Assertions, res.Counts.Exceptions,
		len(res.Provenance), len(res.Skipped()))
}

// WriteAnalysis outputs a report analysis in the configured format.
func (wr *Writer) WriteAnalysis(res *junit.AnalysisResult) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(res)
	case FormatTable:
		return wr.writeAnalysisTable(res)
	default:
		return wr.writeAnalysisText(res)
	}
}

func (wr *Writer) writeAnalysisText(res *junit.AnalysisResult) error {
	var b strings.Builder
	b.WriteString(ReportSummary(res))
	b.WriteString("\n")

	for _, g := range res.BlastGroups {
		header := fmt.Sprintf("\n--- BLAST RADIUS in %s: %d of %d failures share one cause ---",
			g.Suite, g.Size(), g.TotalFailures)
		b.WriteString(wr.paint(colorBold+colorRed, header))
		fmt.Fprintf(&b, "\n  signature: %s\n", g.Signature)
		fmt.Fprintf(&b, "  representative: %s\n", g.Representative.QualifiedName())
		if d := firstDetailLine(g.Representative); d != "" {
			fmt.Fprintf(&b, "    %s\n", d)
		}
		names := make([]string, 0, maxListedMembers)
		for i, m := range g.Members {
			if i == maxListedMembers {
				names = append(names, fmt.Sprintf("... %d more", len(g.Members)-maxListedMembers))
				break
			}
			names = append(names, m.QualifiedName())
		}
		fmt.Fprintf(&b, "  affected: %s\n", strings.Join(names, ", "))
	}

	if len(res.Standalone) > 0 {
		b.WriteString("\n--- Failures ---\n")
		for _, f := range res.Standalone {
			line := fmt.Sprintf("%s [%s] %s", strings.ToUpper(string(f.Status)), f.Kind, f.QualifiedName())
			if wr.colorize {
				line = ColorizeKind(f.Kind, line)
			}
			b.WriteString(line)
			b.WriteString("\n")
			if msg := firstLine(f.Message); msg != "" {
				fmt.Fprintf(&b, "    %s\n", msg)
			} else if d := firstDetailLine(f.TestCase); d != "" {
				fmt.Fprintf(&b, "    %s\n", d)
			}
		}
	}

	if skipped := res.Skipped(); len(skipped) > 0 {
		b.WriteString("\n")
		for _, p := range skipped {
			b.WriteString(wr.paint(colorGray, skipNote(p.File, p.SkipReason)))
			b.WriteString("\n")
		}
	}

	_, err := fmt.Fprint(wr.w, b.String())
	return err
}

func (wr *Writer) writeAnalysisTable(res *junit.AnalysisResult) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STATUS\tKIND\tSUITE\tTEST\tMESSAGE")
	fmt.Fprintln(tw, "------\t----\t-----\t----\t-------")

	for _, g := range res.BlastGroups {
		fmt.Fprintf(tw, "BLAST x%d\t-\t%s\t%s\t%s\n",
			g.Size(), g.Suite, g.Representative.QualifiedName(), clip(g.Signature, 80))
	}
	for _, f := range res.Standalone {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			strings.ToUpper(string(f.Status)), f.Kind, f.Suite, f.QualifiedName(), clip(f.Message, 80))
	}
	for _, p := range res.Skipped() {
		fmt.Fprintf(tw, "SKIPPED\t-\t-\t%s\t%s\n", p.File, clip(p.SkipReason, 80))
	}
	return tw.Flush()
}

func firstLine(s string) string {
	for _, l := range strings.Split(s, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			return l
		}
	}
	return ""
}

func firstDetailLine(tc junit.TestCase) string {
	return firstLine(tc.Detail)
}
