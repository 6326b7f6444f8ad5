// Package observability provides formatted output utilities for the CLI.
package observability

import (
	"fmt"
	"io"
	"strings"

	"github.com/jonathan/pdf-signer/internal/audit"
	"github.com/jonathan/pdf-signer/internal/signing"
)

const (
	// boxWidth is the default width for formatted output boxes
	boxWidth = 60
	// maxItemsToShow is the default number of items to display in lists
	maxItemsToShow = 5
	// hashPrefix is how much of a digest fits on one boxed line
	hashPrefix = 16
)

// Printer handles formatted output for the CLI
type Printer struct {
	out io.Writer
}

// NewPrinter creates a new Printer that writes to the given writer
func NewPrinter(out io.Writer) *Printer {
	return &Printer{out: out}
}

// JobOutcome is the result of one batch job.
type JobOutcome struct {
	Name    string
	Out     string
	Placed  int
	Skipped int
	Err     error
}

// printBox prints a formatted box with a title and content
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) printBox(title string, content string) {
	border := strings.Repeat("─", boxWidth-2)
	fmt.Fprintf(p.out, "┌%s┐\n", border)
	fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, title)
	fmt.Fprintf(p.out, "├%s┤\n", border)

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		// Truncate long lines
		if len(line) > boxWidth-4 {
			line = line[:boxWidth-7] + "..."
		}
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, line)
	}

	fmt.Fprintf(p.out, "└%s┘\n", border)
}

func shortHash(h string) string {
	if len(h) <= hashPrefix {
		return h
	}
	return h[:hashPrefix] + "..."
}

// PrintSignResult outputs a summary of one signing run.
func (p *Printer) PrintSignResult(out string, result *signing.Result) {
	if result == nil {
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Output:    %s\n", out))
	sb.WriteString(fmt.Sprintf("Algorithm: %s\n", result.Algorithm))
	sb.WriteString(fmt.Sprintf("Original:  %s\n", shortHash(result.OriginalHash)))
	sb.WriteString(fmt.Sprintf("Signed:    %s\n", shortHash(result.SignedHash)))
	sb.WriteString(fmt.Sprintf("Placed:    %d\n", result.Placed))

	if len(result.Skipped) > 0 {
		sb.WriteString(fmt.Sprintf("\nSkipped %d fields:\n", len(result.Skipped)))
		count := min(len(result.Skipped), maxItemsToShow)
		for i := 0; i < count; i++ {
			d := result.Skipped[i]
			label := fmt.Sprintf("#%d", d.Index)
			if d.Index < 0 {
				label = "asset"
			}
			sb.WriteString(fmt.Sprintf("⚠ %s %s\n", label, d.Reason))
			if d.Message != "" {
				sb.WriteString(fmt.Sprintf("  %s\n", d.Message))
			}
		}
		if len(result.Skipped) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(result.Skipped)-maxItemsToShow))
		}
	}

	p.printBox("SIGNED DOCUMENT", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintBatchSummary outputs one line per job, failures first.
func (p *Printer) PrintBatchSummary(outcomes []JobOutcome) {
	if len(outcomes) == 0 {
		return
	}

	var failed, ok []JobOutcome
	for _, o := range outcomes {
		if o.Err != nil {
			failed = append(failed, o)
		} else {
			ok = append(ok, o)
		}
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Jobs: %d  ok: %d  failed: %d\n", len(outcomes), len(ok), len(failed)))

	if len(failed) > 0 {
		sb.WriteString("\n")
		for _, o := range failed {
			sb.WriteString(fmt.Sprintf("✗ %s\n", o.Name))
			sb.WriteString(fmt.Sprintf("  %v\n", o.Err))
		}
	}

	if len(ok) > 0 {
		sb.WriteString("\n")
		count := min(len(ok), maxItemsToShow)
		for i := 0; i < count; i++ {
			o := ok[i]
			sb.WriteString(fmt.Sprintf("✓ %s placed=%d skipped=%d\n", o.Out, o.Placed, o.Skipped))
		}
		if len(ok) > maxItemsToShow {
			sb.WriteString(fmt.Sprintf("  ... and %d more\n", len(ok)-maxItemsToShow))
		}
	}

	p.printBox("BATCH SUMMARY", strings.TrimSuffix(sb.String(), "\n"))
}

// PrintDigest outputs a checksum line in the coreutils layout.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintDigest(hash, path string) {
	fmt.Fprintf(p.out, "%s  %s\n", hash, path)
}

// PrintAudits outputs audit records for one document.
//
//nolint:errcheck // writing to stdout; errors are not recoverable
func (p *Printer) PrintAudits(pdfID string, records []audit.Record) {
	if len(records) == 0 {
		fmt.Fprintf(p.out, "┌%s┐\n", strings.Repeat("─", boxWidth-2))
		fmt.Fprintf(p.out, "│ %-*s │\n", boxWidth-4, "NO AUDIT RECORDS FOR "+pdfID)
		fmt.Fprintf(p.out, "└%s┘\n", strings.Repeat("─", boxWidth-2))
		return
	}

	var sb strings.Builder
	for i, r := range records {
		sb.WriteString(fmt.Sprintf("%s  %s\n", r.CreatedAt.Format("2006-01-02 15:04:05"), r.SignedPdfID))
		sb.WriteString(fmt.Sprintf("  %s -> %s\n", shortHash(r.OriginalHash), shortHash(r.SignedHash)))
		if i < len(records)-1 {
			sb.WriteString("\n")
		}
	}

	p.printBox("AUDIT TRAIL "+pdfID, sb.String())
}
