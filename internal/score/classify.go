package score

import (
	"math"

	"github.com/ppiankov/claimlink/internal/model"
)

// Tier is one row of the ascending threshold table
type Tier struct {
	Severity model.Severity
	Max      float64 // Inclusive upper bound
}

// Classifier maps an aggregate score and error set to a verdict
type Classifier struct {
	tiers           []Tier
	autoRejectAbove float64
	reasons         map[model.ErrorKind]string
}

// NewClassifier builds a classifier. The High tier is unbounded so every
// aggregate maps to a severity. autoRejectAbove of 0 disables Rejected.
func NewClassifier(low, medium, autoRejectAbove float64, reasons map[model.ErrorKind]string) *Classifier {
	r := make(map[model.ErrorKind]string, len(reasons))
	for k, v := range reasons {
		r[k] = v
	}
	return &Classifier{
		tiers: []Tier{
			{Severity: model.SeverityLow, Max: low},
			{Severity: model.SeverityMedium, Max: medium},
			{Severity: model.SeverityHigh, Max: math.Inf(1)},
		},
		autoRejectAbove: autoRejectAbove,
		reasons:         r,
	}
}

// Tiers returns a copy of the threshold table
func (c *Classifier) Tiers() []Tier {
	out := make([]Tier, len(c.tiers))
	copy(out, c.tiers)
	return out
}

// Severity returns the first tier whose bound the aggregate does not exceed
func (c *Classifier) Severity(aggregate float64) model.Severity {
	for _, t := range c.tiers {
		if aggregate <= t.Max {
			return t.Severity
		}
	}
	// NaN compares false against every bound
	return model.SeverityHigh
}

// Status decides the claim disposition
func (c *Classifier) Status(severity model.Severity, aggregate float64, errs model.ErrorScoreMap) model.Status {
	if severity == model.SeverityLow && len(errs) == 0 {
		return model.StatusApproved
	}
	if c.autoRejectAbove > 0 && aggregate > c.autoRejectAbove {
		return model.StatusRejected
	}
	return model.StatusToBeReviewed
}

// Reasons returns one reason per present error kind in sorted kind order.
// Kinds with no configured reason render as "".
func (c *Classifier) Reasons(errs model.ErrorScoreMap) []string {
	kinds := errs.Kinds()
	out := make([]string, 0, len(kinds))
	for _, k := range kinds {
		out = append(out, c.reasons[k])
	}
	return out
}

// Classify builds the verdict for an aggregate score
func (c *Classifier) Classify(aggregate float64, errs model.ErrorScoreMap) model.Verdict {
	severity := c.Severity(aggregate)
	return model.Verdict{
		Severity:  severity,
		Status:    c.Status(severity, aggregate, errs),
		Reasons:   c.Reasons(errs),
		Aggregate: aggregate,
		Errors:    errs.Clone(),
	}
}
