package output

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/bimmerbailey/cisift/internal/extract"
	"github.com/bimmerbailey/cisift/internal/scan"
)

// Summary is the one-line overview printed above an extraction.
func Summary(res *extract.Result) string {
	return fmt.Sprintf("[Log analysis: %d total lines | %d critical, %d error, %d warning (unique matches) | %d duplicates collapsed]",
		res.InputLines, res.Counts.Critical, res.Counts.Error, res.Counts.Warning, res.Counts.Duplicates)
}

// WriteLogs outputs console log extractions in the configured format.
// Skipped files render as labelled notes.
func (wr *Writer) WriteLogs(results []scan.LogResult) error {
	switch wr.format {
	case FormatJSON:
		return wr.WriteJSON(results)
	case FormatTable:
		return wr.writeLogTable(results)
	default:
		for i, r := range results {
			if i > 0 {
				fmt.Fprintln(wr.w)
			}
			if len(results) > 1 {
				fmt.Fprintln(wr.w, wr.paint(colorCyan, fmt.Sprintf("==> %s <==", r.File)))
			}
			if r.Result == nil {
				fmt.Fprintln(wr.w, wr.paint(colorGray, skipNote(r.File, r.Skipped)))
				continue
			}
			if err := wr.WriteExtraction(r.Result); err != nil {
				return err
			}
		}
		return nil
	}
}

// WriteExtraction renders one extraction as text.
func (wr *Writer) WriteExtraction(res *extract.Result) error {
	var b strings.Builder
	b.WriteString(Summary(res))
	b.WriteString("\n")

	if len(res.Head) > 0 {
		fmt.Fprintf(&b, "\n--- Log start (first %d lines) ---\n", len(res.Head))
		writeLines(&b, res.Head)
	}

	for _, s := range res.Sections {
		b.WriteString("\n")
		header := s.Header
		if wr.colorize {
			header = ColorizeTier(s.Tier, header)
		}
		b.WriteString(header)
		b.WriteString("\n")
		writeLines(&b, s.Lines)
	}
	if res.Counts.OmittedGroups > 0 {
		fmt.Fprintf(&b, "\n%s\n", wr.paint(colorGray,
			fmt.Sprintf("[%d lower-priority match groups omitted to fit the line budget]", res.Counts.OmittedGroups)))
	}

	if res.Fallback {
		fmt.Fprintf(&b, "\n[No error patterns matched in %d lines. Showing the raw log end]\n", res.InputLines)
	}
	if len(res.Tail) > 0 {
		b.WriteString("\n")
		fmt.Fprintf(&b, "--- Log end (last %d lines) ---\n", len(res.Tail))
		writeLines(&b, res.Tail)
	}

	if res.Truncated {
		fmt.Fprintf(&b, "%s\n", wr.paint(colorGray,
			fmt.Sprintf("[Output truncated at %d lines: hard safety limit]", res.TotalLines)))
	}

	_, err := fmt.Fprint(wr.w, b.String())
	return err
}

func writeLines(b *strings.Builder, lines []string) {
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
}

func (wr *Writer) writeLogTable(results []scan.LogResult) error {
	tw := tabwriter.NewWriter(wr.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tTIER\tLINE\tSTAGE\tREPEATS\tFIRST LINE")
	fmt.Fprintln(tw, "----\t----\t----\t-----\t-------\t----------")

	for _, r := range results {
		if r.Result == nil {
			fmt.Fprintf(tw, "%s\tSKIPPED\t-\t-\t-\t%s\n", r.File, clip(r.Skipped, 80))
			continue
		}
		if len(r.Result.Sections) == 0 {
			fmt.Fprintf(tw, "%s\t-\t-\t-\t-\t(no matches)\n", r.File)
			continue
		}
		for _, s := range r.Result.Sections {
			first := ""
			if len(s.Lines) > 0 {
				first = s.Lines[0]
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%d\t%s\n",
				r.File, s.Tier, s.FirstLine, s.Stage, s.RepeatCount, clip(first, 80))
		}
	}
	return tw.Flush()
}
