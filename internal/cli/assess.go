package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimlink/internal/assess"
	"github.com/ppiankov/claimlink/internal/worker"
)

var (
	outJSON       string
	outMD         string
	assessTimeout time.Duration
	noCache       bool
	llmEnabled    bool
	breakdown     bool
)

// assessCmd represents the assess command
var assessCmd = &cobra.Command{
	Use:   "assess <submission.json|yaml>",
	Short: "Assess a single claim submission",
	Long: `Assess checks one claim submission:
- Extract records from uploaded passport, flight ticket and baggage tag
- Compare them against each other and against the declared details
- Weight every inconsistency into an aggregate risk score
- Classify severity and status, persist and notarize the verdict

Example:
  claimlink assess claim.json
  claimlink assess claim.yaml --json verdict.json --md verdict.md
  claimlink assess claim.json --llm`,
	Args: cobra.ExactArgs(1),
	RunE: runAssess,
}

func init() {
	rootCmd.AddCommand(assessCmd)

	// Output flags
	assessCmd.Flags().StringVar(&outJSON, "json", "", "output JSON path (default: stdout)")
	assessCmd.Flags().StringVar(&outMD, "md", "", "output Markdown path (optional)")
	assessCmd.Flags().BoolVar(&breakdown, "breakdown", true, "include the per-kind score breakdown in Markdown")

	assessCmd.Flags().DurationVar(&assessTimeout, "timeout", 3*time.Minute, "overall assessment timeout")
	assessCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable extraction cache (force fresh OCR)")
	assessCmd.Flags().BoolVar(&llmEnabled, "llm", false, "draft a reviewer note for claims that need review")
}

// applyRunFlags copies command flags that override configuration
func applyRunFlags(cmd *cobra.Command) {
	if cmd.Flags().Changed("no-cache") {
		viper.Set("cache.enabled", !noCache)
	}
	if cmd.Flags().Changed("llm") {
		viper.Set("llm.enabled", llmEnabled)
	}
}

func runAssess(cmd *cobra.Command, args []string) error {
	path := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), assessTimeout)
	defer cancel()

	applyRunFlags(cmd)
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	sub, err := worker.LoadSubmission(path)
	if err != nil {
		return err
	}

	a, err := newApp(ctx, cfg, slog.Default(), uploadsLocal)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	if cfg.Output.Verbose {
		fmt.Fprintf(os.Stderr, "⚙️  Assessing: %s\n", path)
	}

	report, err := a.pipeline.Assess(ctx, sub)
	if err != nil {
		return fmt.Errorf("assessment failed: %w", err)
	}

	if cfg.Output.Verbose {
		for _, o := range report.Extraction {
			fmt.Fprintf(os.Stderr, "✓ %s: %s\n", o.Document, o.State)
		}
		if report.Ledger != nil {
			fmt.Fprintf(os.Stderr, "✓ Notarized: %s\n", report.Ledger.Digest)
		}
		if report.ReviewerNote != nil {
			fmt.Fprintf(os.Stderr, "✓ Drafted reviewer note using %s/%s\n", report.ReviewerNote.Provider, report.ReviewerNote.Model)
		}
		fmt.Fprintln(os.Stderr)
	}

	renderer := assess.NewRenderer(breakdown)
	if outJSON == "" {
		if err := renderer.WriteJSON(cmd.OutOrStdout(), report); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
	} else {
		if err := renderer.RenderJSON(report, outJSON); err != nil {
			return fmt.Errorf("render JSON: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote JSON: %s\n", outJSON)
		}
	}
	if outMD != "" {
		if err := renderer.RenderMarkdown(report, outMD); err != nil {
			return fmt.Errorf("render markdown: %w", err)
		}
		if cfg.Output.Verbose {
			fmt.Fprintf(os.Stderr, "✓ Wrote Markdown: %s\n", outMD)
		}
	}

	renderer.RenderSummary(os.Stderr, report)
	return nil
}
