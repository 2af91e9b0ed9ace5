package assess

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/claimlink/internal/compare"
	"github.com/ppiankov/claimlink/internal/extract"
	"github.com/ppiankov/claimlink/internal/ledger"
	"github.com/ppiankov/claimlink/internal/llm"
	"github.com/ppiankov/claimlink/internal/metrics"
	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/score"
	"github.com/ppiankov/claimlink/internal/store"
)

var fixedNow = time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

func consistentSubmission() *model.Submission {
	return &model.Submission{
		Personal: model.PersonalDetails{
			Name:   "John Doe",
			DOB:    "1990-03-14",
			Gender: "M",
		},
		Claim: model.ClaimDetails{
			DateOfLoss:  "2025-05-20",
			Description: "Bag delayed 48 hours",
		},
		Documents: model.Documents{
			Passport: &model.PassportRecord{
				Name:           model.String("john doe"),
				DOB:            model.String("1990/03/14"),
				Gender:         model.String("M"),
				Expiry:         model.String("20300101"),
				Authentication: &model.Authentication{Score: 0.92},
			},
			FlightTicket: &model.FlightTicketRecord{
				Name:             model.String("JOHN DOE"),
				BookingReference: model.String("ABC123"),
				AirlineName:      model.String("Emirates"),
				FlightNumber:     model.String("EK202"),
			},
			BaggageTag: &model.BaggageTagRecord{
				AirlineName:      model.String("Emirates"),
				BookingReference: model.String("ABC123"),
				PassengerName:    model.String("John Doe"),
				Barcode:          model.String("0176123456"),
			},
		},
	}
}

func newTestPipeline(t *testing.T, cfg model.Config, extractor extract.Extractor, opts ...Option) *Pipeline {
	t.Helper()
	router := extract.NewRouter().Handle("file", extract.NewFileSource(0))
	resolver := extract.NewResolver(router, extractor)
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	p, err := NewPipelineFromConfig(cfg, resolver, opts...)
	if err != nil {
		t.Fatalf("NewPipelineFromConfig failed: %v", err)
	}
	return p
}

func TestAssess_ConsistentDocumentsApproved(t *testing.T) {
	p := newTestPipeline(t, model.DefaultConfig(), nil)

	report, err := p.Assess(context.Background(), consistentSubmission())
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	v := report.Verdict
	if len(v.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", v.Errors.Kinds())
	}
	if v.Aggregate != 0 {
		t.Errorf("Expected aggregate 0, got %v", v.Aggregate)
	}
	if v.Severity != model.SeverityLow || v.Status != model.StatusApproved {
		t.Errorf("Expected Low/Approved, got %s/%s", v.Severity, v.Status)
	}
	if report.AssessmentID == "" || report.ClaimID == "" {
		t.Error("Expected assessment and claim IDs to be assigned")
	}
	if !strings.HasPrefix(report.Reference, "CLM-") {
		t.Errorf("Expected CLM- reference, got %q", report.Reference)
	}
	if !report.AssessedAt.Equal(fixedNow) {
		t.Errorf("Expected AssessedAt %v, got %v", fixedNow, report.AssessedAt)
	}
	for _, o := range report.Extraction {
		if o.State != model.ExtractionInline {
			t.Errorf("Expected %s to be inline, got %s", o.Document, o.State)
		}
	}
}

func TestAssess_UnreadableTicketNeedsReview(t *testing.T) {
	p := newTestPipeline(t, model.DefaultConfig(), nil)

	sub := consistentSubmission()
	sub.Documents.FlightTicket = &model.FlightTicketRecord{}

	report, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	v := report.Verdict
	if len(v.Errors) != 1 || !v.Errors.Has(model.ErrIncorrectFlightTicket) {
		t.Fatalf("Expected only incorrect_flight_ticket, got %v", v.Errors.Kinds())
	}
	if v.Errors[model.ErrIncorrectFlightTicket] != nil {
		t.Error("Expected a null score for the unreadable ticket")
	}
	if v.Aggregate < 0.1-1e-9 || v.Aggregate > 0.1+1e-9 {
		t.Errorf("Expected aggregate 0.1, got %v", v.Aggregate)
	}
	if v.Severity != model.SeverityLow || v.Status != model.StatusToBeReviewed {
		t.Errorf("Expected Low/To Be Reviewed, got %s/%s", v.Severity, v.Status)
	}

	if len(report.Checks) != len(compare.Kinds()) {
		t.Fatalf("Expected %d checks in the report, got %d", len(compare.Kinds()), len(report.Checks))
	}
	for _, c := range report.Checks {
		if c.Flagged != (c.Kind == model.ErrIncorrectFlightTicket) {
			t.Errorf("Check %s (%s): flagged=%v", c.Check, c.Kind, c.Flagged)
		}
	}
}

func TestAssess_NotAuthenticIsFullPenalty(t *testing.T) {
	p := newTestPipeline(t, model.DefaultConfig(), nil)

	sub := consistentSubmission()
	sub.Documents.Passport.Authentication.Score = 0.3

	report, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	v := report.Verdict
	if !v.Errors.Has(model.ErrNotAuthentic) || v.Errors[model.ErrNotAuthentic] != nil {
		t.Fatalf("Expected not_authentic with null score, got %v", v.Errors)
	}
	if v.Aggregate < 0.6-1e-9 || v.Aggregate > 0.6+1e-9 {
		t.Errorf("Expected full 0.6 penalty, got %v", v.Aggregate)
	}
	if v.Severity != model.SeverityHigh || v.Status != model.StatusToBeReviewed {
		t.Errorf("Expected High/To Be Reviewed, got %s/%s", v.Severity, v.Status)
	}
}

func TestAssess_MissingWeightIsConfigurationError(t *testing.T) {
	cfg := model.DefaultConfig()
	delete(cfg.Scoring.Weights, model.ErrIncorrectFlightTicket)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := store.NewMemoryStore()
	p := newTestPipeline(t, cfg, nil, WithStore(s), WithMetrics(m))

	sub := consistentSubmission()
	sub.Documents.FlightTicket = &model.FlightTicketRecord{}

	report, err := p.Assess(context.Background(), sub)
	if err == nil {
		t.Fatal("Expected configuration error, got nil")
	}
	if report != nil {
		t.Error("Expected no report for an unscorable claim")
	}
	if !errors.Is(err, score.ErrUnknownErrorKind) {
		t.Errorf("Expected ErrUnknownErrorKind, got %v", err)
	}
	var cfgErr *score.ConfigurationError
	if !errors.As(err, &cfgErr) || cfgErr.Kind != model.ErrIncorrectFlightTicket {
		t.Errorf("Expected ConfigurationError for incorrect_flight_ticket, got %v", err)
	}

	if _, err := s.Get(context.Background(), sub.ClaimID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("Expected nothing persisted, got %v", err)
	}
	if got := testutil.ToFloat64(m.ConfigErrorsTotal); got != 1 {
		t.Errorf("Expected 1 configuration error, got %v", got)
	}
}

func TestAssess_MissingDocumentsNeverApproved(t *testing.T) {
	p := newTestPipeline(t, model.DefaultConfig(), nil)

	sub := consistentSubmission()
	sub.Documents = model.Documents{}

	report, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	v := report.Verdict
	for _, kind := range []model.ErrorKind{
		model.ErrUnrecognized,
		model.ErrIncorrectFlightTicket,
		model.ErrIncorrectBaggageTag,
	} {
		if !v.Errors.Has(kind) {
			t.Errorf("Expected %s for missing documents", kind)
		}
	}
	if v.Status == model.StatusApproved {
		t.Error("Expected claim without documents not to be approved")
	}
	for _, o := range report.Extraction {
		if o.State != model.ExtractionMissing {
			t.Errorf("Expected %s to be missing, got %s", o.Document, o.State)
		}
	}
}

type fakeExtractor struct {
	passport *model.PassportRecord
	err      error
}

func (f *fakeExtractor) ExtractPassport(ctx context.Context, doc extract.Document) (*model.PassportRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.passport, nil
}

func (f *fakeExtractor) ExtractFlightTicket(ctx context.Context, doc extract.Document) (*model.FlightTicketRecord, error) {
	return nil, extract.ErrUnreadable
}

func (f *fakeExtractor) ExtractBaggageTag(ctx context.Context, doc extract.Document) (*model.BaggageTagRecord, error) {
	return nil, extract.ErrUnreadable
}

func TestAssess_ExtractsUploads(t *testing.T) {
	dir := t.TempDir()
	scan := filepath.Join(dir, "passport.jpg")
	if err := os.WriteFile(scan, []byte("passport-scan"), 0o644); err != nil {
		t.Fatal(err)
	}

	ext := &fakeExtractor{passport: consistentSubmission().Documents.Passport}
	p := newTestPipeline(t, model.DefaultConfig(), ext)

	sub := consistentSubmission()
	sub.Documents.Passport = nil
	sub.Uploads.Passport = scan

	report, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if report.Verdict.Status != model.StatusApproved {
		t.Errorf("Expected Approved, got %s (%v)", report.Verdict.Status, report.Verdict.Errors.Kinds())
	}
	if report.Extraction[0].State != model.ExtractionOK || report.Extraction[0].Source != scan {
		t.Errorf("Unexpected passport outcome %+v", report.Extraction[0])
	}
}

func TestAssess_FailedExtractionIsFullPenalty(t *testing.T) {
	dir := t.TempDir()
	scan := filepath.Join(dir, "passport.jpg")
	if err := os.WriteFile(scan, []byte("passport-scan"), 0o644); err != nil {
		t.Fatal(err)
	}

	p := newTestPipeline(t, model.DefaultConfig(), &fakeExtractor{err: errors.New("ocr down")})

	sub := consistentSubmission()
	sub.Documents.Passport = nil
	sub.Uploads.Passport = scan

	report, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if report.Extraction[0].State != model.ExtractionFailed {
		t.Errorf("Expected failed passport extraction, got %s", report.Extraction[0].State)
	}
	if !report.Verdict.Errors.Has(model.ErrUnrecognized) {
		t.Errorf("Expected unrecognized passport, got %v", report.Verdict.Errors.Kinds())
	}
}

type fakeNotarizer struct {
	snapshots []ledger.Snapshot
	err       error
}

func (f *fakeNotarizer) Notarize(ctx context.Context, s ledger.Snapshot) (*model.LedgerReceipt, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.snapshots = append(f.snapshots, s)
	digest, err := s.Digest()
	if err != nil {
		return nil, err
	}
	return &model.LedgerReceipt{Digest: digest, Topic: "claims", Offset: int64(len(f.snapshots) - 1)}, nil
}

func (f *fakeNotarizer) Close() error { return nil }

func TestAssess_PersistsAndNotarizes(t *testing.T) {
	n := &fakeNotarizer{}
	s := store.NewMemoryStore()
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	p := newTestPipeline(t, model.DefaultConfig(), nil, WithStore(s), WithLedger(n), WithMetrics(m))

	sub := consistentSubmission()
	sub.Reference = "CLM-00000001"

	report, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if len(n.snapshots) != 1 {
		t.Fatalf("Expected 1 snapshot, got %d", len(n.snapshots))
	}
	if report.Ledger == nil || !ledger.Verify(n.snapshots[0], report.Ledger.Digest) {
		t.Error("Expected report to carry a verifiable ledger receipt")
	}

	rec, err := s.GetByReference(context.Background(), "CLM-00000001")
	if err != nil {
		t.Fatalf("Expected stored claim, got %v", err)
	}
	if rec.Status != model.StatusApproved || rec.AssessmentID != report.AssessmentID {
		t.Errorf("Unexpected stored record %+v", rec)
	}
	if rec.Ledger == nil || rec.Ledger.Digest != report.Ledger.Digest {
		t.Error("Expected stored record to carry the ledger receipt")
	}
	if rec.Claim.Description != "Bag delayed 48 hours" {
		t.Errorf("Expected claim details to be stored, got %+v", rec.Claim)
	}

	if got := testutil.ToFloat64(m.AssessmentsTotal.WithLabelValues("Approved", "Low")); got != 1 {
		t.Errorf("Expected 1 approved assessment, got %v", got)
	}
	if got := testutil.ToFloat64(m.LedgerPublishTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("Expected 1 ledger publish, got %v", got)
	}
}

func TestAssess_LedgerFailureKeepsVerdict(t *testing.T) {
	s := store.NewMemoryStore()
	p := newTestPipeline(t, model.DefaultConfig(), nil,
		WithStore(s), WithLedger(&fakeNotarizer{err: errors.New("broker unavailable")}))

	report, err := p.Assess(context.Background(), consistentSubmission())
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if report.Ledger != nil {
		t.Error("Expected no receipt after ledger failure")
	}
	if report.Verdict.Status != model.StatusApproved {
		t.Errorf("Expected verdict unchanged, got %s", report.Verdict.Status)
	}
	if _, err := s.Get(context.Background(), report.ClaimID); err != nil {
		t.Errorf("Expected claim to be stored despite ledger failure, got %v", err)
	}
}

type stubProvider struct{ calls int }

func (s *stubProvider) Name() string { return "stub" }

func (s *stubProvider) Draft(ctx context.Context, req llm.NoteRequest) (*llm.NoteResponse, error) {
	s.calls++
	return &llm.NoteResponse{Note: "- Ask for a clearer ticket scan.", Model: "stub-1"}, nil
}

func TestAssess_ReviewerNoteOnlyForReview(t *testing.T) {
	provider := &stubProvider{}
	p := newTestPipeline(t, model.DefaultConfig(), nil, WithReviewer(llm.NewReviewer(provider)))

	approved, err := p.Assess(context.Background(), consistentSubmission())
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if approved.ReviewerNote != nil || provider.calls != 0 {
		t.Error("Expected no reviewer note for an approved claim")
	}

	sub := consistentSubmission()
	sub.Documents.FlightTicket = &model.FlightTicketRecord{}
	review, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if review.ReviewerNote == nil || review.ReviewerNote.Provider != "stub" {
		t.Fatalf("Expected reviewer note, got %+v", review.ReviewerNote)
	}
	if review.Verdict.Status != model.StatusToBeReviewed {
		t.Errorf("Expected note not to change the verdict, got %s", review.Verdict.Status)
	}
}

func TestAssess_NilSubmission(t *testing.T) {
	p := newTestPipeline(t, model.DefaultConfig(), nil)
	if _, err := p.Assess(context.Background(), nil); err == nil {
		t.Error("Expected error for nil submission")
	}
}

func TestNewPipeline_ExplicitParts(t *testing.T) {
	scorer, err := score.NewScorerFromConfig(model.DefaultConfig().Scoring)
	if err != nil {
		t.Fatal(err)
	}
	set := compare.NewSet(compare.DefaultOptions(), compare.WithClock(func() time.Time { return fixedNow }))
	p := NewPipeline(extract.NewResolver(nil, nil), set, scorer)

	report, err := p.Assess(context.Background(), consistentSubmission())
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}
	if report.Verdict.Status != model.StatusApproved {
		t.Errorf("Expected Approved, got %s", report.Verdict.Status)
	}
}

func TestRenderer(t *testing.T) {
	p := newTestPipeline(t, model.DefaultConfig(), nil)
	sub := consistentSubmission()
	sub.Documents.FlightTicket = &model.FlightTicketRecord{}
	report, err := p.Assess(context.Background(), sub)
	if err != nil {
		t.Fatalf("Assess failed: %v", err)
	}

	r := NewRenderer(true)

	var md bytes.Buffer
	if err := r.WriteMarkdown(&md, report); err != nil {
		t.Fatalf("WriteMarkdown failed: %v", err)
	}
	for _, want := range []string{"# Claim " + report.Reference, "To Be Reviewed", "Flight ticket could not be read", "| incorrect_flight_ticket | null | 0.10 | 0.100 |", "| ticket_readability | flight_ticket | incorrect_flight_ticket | yes |"} {
		if !strings.Contains(md.String(), want) {
			t.Errorf("Expected Markdown to contain %q", want)
		}
	}

	path := filepath.Join(t.TempDir(), "out", "report.json")
	if err := r.RenderJSON(report, path); err != nil {
		t.Fatalf("RenderJSON failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"incorrect_flight_ticket": null`) {
		t.Errorf("Expected null score in JSON, got %s", data)
	}

	var summary bytes.Buffer
	r.RenderSummary(&summary, report)
	if !strings.Contains(summary.String(), "Status:    To Be Reviewed") {
		t.Errorf("Unexpected summary %q", summary.String())
	}
}
