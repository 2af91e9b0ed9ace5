package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimlink/internal/assess"
	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/worker"
)

var (
	concurrency  int
	outputDir    string
	batchTimeout time.Duration
)

// batchCmd represents the batch command
var batchCmd = &cobra.Command{
	Use:   "batch <dir|list-file>",
	Short: "Assess many claim submissions in parallel",
	Long: `Batch assesses claim submissions concurrently:
- Read submissions from a directory (*.json, *.yaml) or a list file (one path per line)
- Assess them in parallel with a configurable worker count
- Write one JSON and one Markdown report per claim

Example:
  claimlink batch ./claims
  claimlink batch claims.txt --concurrency 8 --output-dir ./verdicts`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)

	batchCmd.Flags().IntVar(&concurrency, "concurrency", 0, "number of concurrent workers (default: concurrency.workers)")
	batchCmd.Flags().StringVar(&outputDir, "output-dir", "./claimlink-reports", "output directory for reports")
	batchCmd.Flags().DurationVar(&batchTimeout, "timeout", 30*time.Minute, "total timeout for batch processing")
	batchCmd.Flags().BoolVar(&noCache, "no-cache", false, "disable extraction cache (force fresh OCR)")
	batchCmd.Flags().BoolVar(&llmEnabled, "llm", false, "draft reviewer notes for claims that need review")
}

func runBatch(cmd *cobra.Command, args []string) error {
	target := args[0]
	ctx, cancel := context.WithTimeout(cmd.Context(), batchTimeout)
	defer cancel()

	applyRunFlags(cmd)
	if concurrency > 0 {
		viper.Set("concurrency.workers", concurrency)
	}
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  claimlink Batch Assessment\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Input:        %s\n", target)
	fmt.Fprintf(os.Stderr, "  Workers:      %d\n", cfg.Concurrency.Workers)
	fmt.Fprintf(os.Stderr, "  Output dir:   %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "  Timeout:      %v\n", batchTimeout)
	fmt.Fprintf(os.Stderr, "\n")

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	a, err := newApp(ctx, cfg, slog.Default(), uploadsLocal)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	processor := worker.NewBatchProcessor(a.pipeline, cfg.Concurrency, slog.Default())

	fmt.Fprintf(os.Stderr, "⚙️  Assessing submissions with %d workers...\n\n", cfg.Concurrency.Workers)
	results, err := processor.ProcessTarget(ctx, target)
	if err != nil {
		return fmt.Errorf("process %s: %w", target, err)
	}

	renderer := assess.NewRenderer(true)
	for _, result := range results {
		if result.Error != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", result.Source, result.Error)
			continue
		}

		slug := sanitizeFilename(result.Report.Reference)
		if err := renderer.RenderJSON(result.Report, filepath.Join(outputDir, slug+".json")); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write JSON: %v\n", result.Source, err)
			continue
		}
		if err := renderer.RenderMarkdown(result.Report, filepath.Join(outputDir, slug+".md")); err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: failed to write Markdown: %v\n", result.Source, err)
			continue
		}

		v := result.Report.Verdict
		fmt.Fprintf(os.Stderr, "✓ %s %s (%s, %.3f)\n", result.Report.Reference, v.Status, v.Severity, v.Aggregate)
	}

	summary := worker.Summarize(results)
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Total:           %d claims\n", summary.Total)
	for _, status := range []model.Status{model.StatusApproved, model.StatusToBeReviewed, model.StatusRejected} {
		fmt.Fprintf(os.Stderr, "  %-16s %d\n", string(status)+":", summary.ByStatus[status])
	}
	fmt.Fprintf(os.Stderr, "  Failures:        %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Output:          %s\n", outputDir)
	fmt.Fprintf(os.Stderr, "\n")

	return nil
}

// sanitizeFilename makes s safe to use as a file name
func sanitizeFilename(s string) string {
	s = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|':
			return '_'
		case ' ':
			return '-'
		}
		return r
	}, strings.TrimSpace(s))

	if s == "" || s == "." || s == ".." {
		s = "claim"
	}
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
