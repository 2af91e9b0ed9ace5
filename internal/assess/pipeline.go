// Package assess runs a claim submission through extraction, comparison,
// scoring and the post-verdict side effects.
package assess

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/ppiankov/claimlink/internal/compare"
	"github.com/ppiankov/claimlink/internal/extract"
	"github.com/ppiankov/claimlink/internal/ledger"
	"github.com/ppiankov/claimlink/internal/llm"
	"github.com/ppiankov/claimlink/internal/metrics"
	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/score"
	"github.com/ppiankov/claimlink/internal/store"
)

const tracerName = "github.com/ppiankov/claimlink/internal/assess"

// Pipeline orchestrates the complete assessment of one claim
type Pipeline struct {
	resolver *extract.Resolver
	set      *compare.Set
	scorer   *score.Scorer

	// Optional side effects
	store    store.Store
	ledger   ledger.Notarizer
	metrics  *metrics.Metrics
	reviewer *llm.Reviewer

	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(p *Pipeline) { p.logger = l }
}

// WithStore persists every scored claim
func WithStore(s store.Store) Option {
	return func(p *Pipeline) { p.store = s }
}

// WithLedger notarizes every scored claim
func WithLedger(n ledger.Notarizer) Option {
	return func(p *Pipeline) { p.ledger = n }
}

// WithMetrics records assessment metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithReviewer attaches reviewer notes to claims that need manual review
func WithReviewer(r *llm.Reviewer) Option {
	return func(p *Pipeline) { p.reviewer = r }
}

// WithClock overrides the clock used for timestamps
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline. resolver, set and scorer are required.
func NewPipeline(resolver *extract.Resolver, set *compare.Set, scorer *score.Scorer, opts ...Option) *Pipeline {
	p := &Pipeline{
		resolver: resolver,
		set:      set,
		scorer:   scorer,
		logger:   slog.Default(),
		tracer:   otel.Tracer(tracerName),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// NewPipelineFromConfig builds the comparator set and scorer from cfg
func NewPipelineFromConfig(cfg model.Config, resolver *extract.Resolver, opts ...Option) (*Pipeline, error) {
	scorer, err := score.NewScorerFromConfig(cfg.Scoring)
	if err != nil {
		return nil, fmt.Errorf("scorer: %w", err)
	}
	p := NewPipeline(resolver, nil, scorer, opts...)
	p.set = compare.NewSet(compare.OptionsFromConfig(cfg.Scoring), compare.WithClock(p.now))
	return p, nil
}

// Assess resolves the submission's documents, scores them and returns the
// report. A *score.ConfigurationError aborts the assessment: nothing is
// persisted or published and the claim must be reviewed manually.
func (p *Pipeline) Assess(ctx context.Context, sub *model.Submission) (*model.Report, error) {
	if sub == nil {
		return nil, errors.New("nil submission")
	}
	start := time.Now()
	sub.EnsureIdentity()

	ctx, span := p.tracer.Start(ctx, "assess.Assess", trace.WithAttributes(
		attribute.String("claim.id", sub.ClaimID),
		attribute.String("claim.reference", sub.Reference),
	))
	defer span.End()

	logger := p.logger.With("claim_id", sub.ClaimID, "reference", sub.Reference)

	// 1. Resolve documents concurrently
	in, outcomes := p.resolve(ctx, sub)
	for _, o := range outcomes {
		p.metrics.ObserveExtraction(o)
		if o.State == model.ExtractionFailed {
			logger.Warn("document extraction failed", "document", o.Document, "source", o.Source, "error", o.Error)
		}
	}
	if err := ctx.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cancelled")
		return nil, fmt.Errorf("resolve documents: %w", err)
	}

	// 2. Compare, stage by stage
	errs, results := p.set.Evaluate(in)
	checks := make([]model.CheckOutcome, 0, len(results))
	for _, r := range results {
		checks = append(checks, r.Check())
		if r.Emitted {
			logger.Debug("check flagged", "check", r.Kind, "error_kind", r.Kind.ErrorKind())
		}
	}

	// 3. Score and classify
	verdict, err := p.scorer.Evaluate(errs)
	if err != nil {
		var cfgErr *score.ConfigurationError
		if errors.As(err, &cfgErr) {
			p.metrics.IncConfigError()
			logger.Error("claim could not be scored", "error_kind", cfgErr.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "scoring failed")
		return nil, fmt.Errorf("score claim %s: %w", sub.Reference, err)
	}
	span.SetAttributes(
		attribute.String("verdict.status", string(verdict.Status)),
		attribute.String("verdict.severity", string(verdict.Severity)),
		attribute.Float64("verdict.aggregate", verdict.Aggregate),
	)

	report := &model.Report{
		AssessmentID: uuid.NewString(),
		ClaimID:      sub.ClaimID,
		Reference:    sub.Reference,
		AssessedAt:   p.now().UTC(),
		Extraction:   outcomes,
		Checks:       checks,
		Verdict:      verdict,
	}
	p.metrics.ObserveVerdict(verdict, start)
	logger.Info("claim assessed",
		"status", verdict.Status,
		"severity", verdict.Severity,
		"aggregate", verdict.Aggregate,
		"errors", len(verdict.Errors),
	)

	// 4. Notarize (never changes the verdict)
	p.notarize(ctx, report, logger)

	// 5. Persist
	if p.store != nil {
		if err := p.store.Save(ctx, model.NewClaimRecord(sub, report)); err != nil {
			span.RecordError(err)
			return report, fmt.Errorf("save claim %s: %w", sub.Reference, err)
		}
	}

	// 6. Reviewer note (after scoring, never affects the verdict)
	if p.reviewer.IsEnabled() {
		note, err := p.reviewer.Note(ctx, *report)
		if err != nil {
			logger.Warn("reviewer note failed", "error", err)
		} else {
			report.ReviewerNote = note
		}
	}

	return report, nil
}

func (p *Pipeline) resolve(ctx context.Context, sub *model.Submission) (*compare.Input, []model.ExtractionOutcome) {
	ctx, span := p.tracer.Start(ctx, "assess.resolve")
	defer span.End()

	var (
		passport extract.Result[model.PassportRecord]
		ticket   extract.Result[model.FlightTicketRecord]
		tag      extract.Result[model.BaggageTagRecord]
	)

	// Results carry their own errors; the group only joins the goroutines.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		passport = p.resolver.Passport(gctx, sub.Documents.Passport, sub.Uploads.Passport)
		return nil
	})
	g.Go(func() error {
		ticket = p.resolver.FlightTicket(gctx, sub.Documents.FlightTicket, sub.Uploads.FlightTicket)
		return nil
	})
	g.Go(func() error {
		tag = p.resolver.BaggageTag(gctx, sub.Documents.BaggageTag, sub.Uploads.BaggageTag)
		return nil
	})
	_ = g.Wait()

	in := &compare.Input{
		Personal: sub.Personal,
		Passport: passport.Record,
		Ticket:   ticket.Record,
		Tag:      tag.Record,
	}
	outcomes := []model.ExtractionOutcome{
		passport.Outcome(model.DocumentPassport),
		ticket.Outcome(model.DocumentFlightTicket),
		tag.Outcome(model.DocumentBaggageTag),
	}
	return in, outcomes
}

func (p *Pipeline) notarize(ctx context.Context, report *model.Report, logger *slog.Logger) {
	if p.ledger == nil {
		return
	}
	receipt, err := p.ledger.Notarize(ctx, ledger.NewSnapshot(report))
	if errors.Is(err, ledger.ErrDisabled) {
		return
	}
	p.metrics.ObserveLedger(err)
	if err != nil {
		logger.Warn("ledger notarization failed", "error", err)
		return
	}
	report.Ledger = receipt
	logger.Debug("claim notarized", "digest", receipt.Digest, "offset", receipt.Offset)
}
