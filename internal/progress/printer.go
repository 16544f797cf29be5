package progress

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// boxWidth is the width of formatted status output.
const boxWidth = 60

// Printer renders reports for the CLI.
type Printer struct {
	out io.Writer
}

// NewPrinter creates a Printer that writes to the given writer.
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) line(format string, args ...any) {
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, fmt.Sprintf(format, args...))
}

// PrintReport renders a full status report.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintReport(r Report) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	p.line("Ingredient sync, run %s", shorten(r.RunID, 8))
	fmt.Fprintf(p.out, "├%s┤\n", border)

	p.line("Position     %s, page %d", r.Partition, r.Page)
	if r.TotalEstimated > 0 {
		p.line("Processed    %d / ~%d (%.1f%%)", r.Processed, r.TotalEstimated, r.PercentComplete)
	} else {
		p.line("Processed    %d", r.Processed)
	}
	p.line("Written      %d inserted, %d duplicates", r.Inserted, r.Skipped)
	p.line("Errors       %d", r.ErrorCount)
	p.line("Elapsed      %s", r.Elapsed.Round(time.Second))
	if r.ItemsPerMinute > 0 {
		p.line("Throughput   %.1f items/min", r.ItemsPerMinute)
	}
	if r.EstimatedDoneAt != nil {
		p.line("ETA          %s", r.EstimatedDoneAt.Format(time.RFC3339))
	} else {
		p.line("ETA          not yet available")
	}
	p.line("Checkpointed %s", r.LastCheckpointAt.Format(time.RFC3339))

	if len(r.RecentErrors) > 0 {
		fmt.Fprintf(p.out, "├%s┤\n", border)
		p.line("Recent errors:")
		for _, msg := range r.RecentErrors {
			p.line("  %s", shorten(msg, boxWidth-8))
		}
	}
	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func shorten(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
