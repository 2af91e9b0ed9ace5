package cli

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/store"
)

var (
	exportStatus string
	exportLimit  int
	exportOut    string
)

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored claims as CSV",
	Long: `Export writes assessed claims from the configured store as CSV, newest first.

Example:
  claimlink export --status "To Be Reviewed" --out review-queue.csv
  claimlink export --limit 100`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportStatus, "status", "", "only export claims with this status (Approved, To Be Reviewed, Rejected)")
	exportCmd.Flags().IntVar(&exportLimit, "limit", 0, "maximum number of claims (0 = all)")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output CSV path (default: stdout)")
}

func runExport(cmd *cobra.Command, args []string) error {
	status := model.Status(exportStatus)
	if status != "" && !status.Valid() {
		return fmt.Errorf("unknown status %q", exportStatus)
	}

	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}

	st, err := store.Open(cmd.Context(), cfg.Store)
	if err != nil {
		return fmt.Errorf("store: %w", err)
	}
	defer func() { _ = st.Close() }()

	recs, err := st.List(cmd.Context(), store.Filter{Status: status, Limit: exportLimit})
	if err != nil {
		return fmt.Errorf("list claims: %w", err)
	}

	w := cmd.OutOrStdout()
	if exportOut != "" {
		f, err := os.Create(exportOut)
		if err != nil {
			return fmt.Errorf("create %s: %w", exportOut, err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	if err := writeClaimsCSV(w, recs); err != nil {
		return err
	}
	if exportOut != "" {
		fmt.Fprintf(os.Stderr, "✓ Exported %d claims: %s\n", len(recs), exportOut)
	}
	return nil
}

var csvHeader = []string{
	"claim_id", "reference_number", "customer_name", "customer_email",
	"date_of_loss", "status", "severity", "aggregate_risk_score",
	"error_kinds", "reasons", "ledger_digest", "created_at",
}

// writeClaimsCSV writes one row per record
func writeClaimsCSV(w io.Writer, recs []*model.ClaimRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range recs {
		kinds := make([]string, 0, len(rec.Errors))
		for _, k := range rec.Errors.Kinds() {
			kinds = append(kinds, string(k))
		}
		digest := ""
		if rec.Ledger != nil {
			digest = rec.Ledger.Digest
		}
		row := []string{
			rec.ClaimID,
			rec.Reference,
			rec.Customer.Name,
			rec.Customer.Email,
			rec.Claim.DateOfLoss,
			string(rec.Status),
			string(rec.Severity),
			strconv.FormatFloat(rec.Aggregate, 'f', 3, 64),
			strings.Join(kinds, ";"),
			strings.Join(rec.Reasons, "; "),
			digest,
			rec.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
