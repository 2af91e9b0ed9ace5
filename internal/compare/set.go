package compare

import (
	"time"

	"github.com/ppiankov/claimlink/internal/model"
)

// Outcome records one comparator invocation
type Outcome struct {
	Kind    Kind
	Signal  model.Signal
	Emitted bool
}

// Check describes the outcome for reports
func (o Outcome) Check() model.CheckOutcome {
	return model.CheckOutcome{
		Check:    o.Kind.String(),
		Document: o.Kind.Stage(),
		Kind:     o.Kind.ErrorKind(),
		Flagged:  o.Emitted,
	}
}

// Set runs comparators stage by stage
type Set struct {
	opts  Options
	clock func() time.Time
}

// SetOption configures a Set
type SetOption func(*Set)

// WithClock overrides the clock used for the expiry comparator
func WithClock(clock func() time.Time) SetOption {
	return func(s *Set) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// NewSet creates a comparator set
func NewSet(opts Options, setOpts ...SetOption) *Set {
	s := &Set{opts: opts, clock: time.Now}
	for _, opt := range setOpts {
		opt(s)
	}
	return s
}

// Options returns the set's comparator constants
func (s *Set) Options() Options {
	return s.opts
}

// Run invokes a single comparator
func (s *Set) Run(kind Kind, in *Input) (model.Signal, bool) {
	s.fillNow(in)
	return bindings[kind].fn(in, s.opts)
}

// RunStage invokes every comparator of one stage and records emitted
// signals into errs, replacing earlier entries of the same kind.
func (s *Set) RunStage(stage model.DocumentType, in *Input, errs model.ErrorScoreMap) []Outcome {
	s.fillNow(in)
	kinds := StageKinds(stage)
	outcomes := make([]Outcome, 0, len(kinds))
	for _, k := range kinds {
		sig, ok := bindings[k].fn(in, s.opts)
		if ok {
			errs.Set(sig)
		}
		outcomes = append(outcomes, Outcome{Kind: k, Signal: sig, Emitted: ok})
	}
	return outcomes
}

// Evaluate runs the passport, flight ticket and baggage tag stages in that
// order and returns the resulting error map.
func (s *Set) Evaluate(in *Input) (model.ErrorScoreMap, []Outcome) {
	errs := model.ErrorScoreMap{}
	var outcomes []Outcome
	for _, stage := range model.DocumentTypes {
		outcomes = append(outcomes, s.RunStage(stage, in, errs)...)
	}
	return errs, outcomes
}

func (s *Set) fillNow(in *Input) {
	if in.Now.IsZero() {
		in.Now = s.clock()
	}
}
