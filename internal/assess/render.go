package assess

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/claimlink/internal/model"
)

// Renderer writes reports as JSON, Markdown and a terminal summary
type Renderer struct {
	breakdown bool // Include per-kind penalties in Markdown
}

// NewRenderer creates a renderer
func NewRenderer(breakdown bool) *Renderer {
	return &Renderer{breakdown: breakdown}
}

// WriteJSON writes report as indented JSON
func (r *Renderer) WriteJSON(w io.Writer, report *model.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}

// RenderJSON writes report to path as JSON
func (r *Renderer) RenderJSON(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteJSON(w, report) })
}

// RenderMarkdown writes report to path as Markdown
func (r *Renderer) RenderMarkdown(report *model.Report, path string) error {
	return writeFile(path, func(w io.Writer) error { return r.WriteMarkdown(w, report) })
}

// WriteMarkdown writes a reviewer-facing Markdown report
func (r *Renderer) WriteMarkdown(w io.Writer, report *model.Report) error {
	var b strings.Builder
	v := report.Verdict

	fmt.Fprintf(&b, "# Claim %s\n\n", report.Reference)
	fmt.Fprintf(&b, "- **Status:** %s\n", v.Status)
	fmt.Fprintf(&b, "- **Severity:** %s\n", v.Severity)
	fmt.Fprintf(&b, "- **Aggregate risk score:** %.3f\n", v.Aggregate)
	fmt.Fprintf(&b, "- **Assessed:** %s\n", report.AssessedAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(&b, "- **Assessment ID:** `%s`\n\n", report.AssessmentID)

	b.WriteString("## Reasons\n\n")
	if len(v.Reasons) == 0 {
		b.WriteString("No inconsistencies detected.\n")
	}
	for _, reason := range v.Reasons {
		fmt.Fprintf(&b, "- %s\n", reason)
	}

	b.WriteString("\n## Documents\n\n| Document | State | Source |\n|---|---|---|\n")
	for _, o := range report.Extraction {
		state := string(o.State)
		if o.Cached {
			state += " (cached)"
		}
		fmt.Fprintf(&b, "| %s | %s | %s |\n", o.Document, state, o.Source)
	}

	if r.breakdown && len(report.Checks) > 0 {
		b.WriteString("\n## Checks\n\n| Check | Document | Error kind | Flagged |\n|---|---|---|---|\n")
		for _, c := range report.Checks {
			flagged := ""
			if c.Flagged {
				flagged = "yes"
			}
			fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", c.Check, c.Document, c.Kind, flagged)
		}
	}

	if r.breakdown && len(v.Breakdown) > 0 {
		b.WriteString("\n## Score breakdown\n\n| Error kind | Raw | Weight | Penalty |\n|---|---|---|---|\n")
		for _, c := range v.Breakdown {
			raw := "null"
			if c.RawScore != nil {
				raw = fmt.Sprintf("%.1f", *c.RawScore)
			}
			fmt.Fprintf(&b, "| %s | %s | %.2f | %.3f |\n", c.Kind, raw, c.Weight, c.Penalty)
		}
	}

	if report.Ledger != nil {
		fmt.Fprintf(&b, "\n## Ledger\n\nDigest `%s` at %s/%d@%d\n",
			report.Ledger.Digest, report.Ledger.Topic, report.Ledger.Partition, report.Ledger.Offset)
	}

	if n := report.ReviewerNote; n != nil && n.NoteMD != "" {
		fmt.Fprintf(&b, "\n## Reviewer note (%s/%s)\n\n%s\n", n.Provider, n.Model, n.NoteMD)
		for _, warning := range n.Warnings {
			fmt.Fprintf(&b, "\n> ⚠ %s\n", warning)
		}
		b.WriteString("\n_Generated note. It does not affect the verdict._\n")
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// RenderSummary prints a short summary of report to w
func (r *Renderer) RenderSummary(w io.Writer, report *model.Report) {
	v := report.Verdict
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
	fmt.Fprintf(w, "Claim:     %s\n", report.Reference)
	fmt.Fprintf(w, "Status:    %s\n", v.Status)
	fmt.Fprintf(w, "Severity:  %s (aggregate %.3f)\n", v.Severity, v.Aggregate)
	if len(v.Reasons) > 0 {
		fmt.Fprintln(w, "Reasons:")
		for _, reason := range v.Reasons {
			fmt.Fprintf(w, "  - %s\n", reason)
		}
	}
	fmt.Fprintln(w, "═══════════════════════════════════════════════════════")
}

func writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := write(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}
