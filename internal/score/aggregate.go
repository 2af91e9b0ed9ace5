package score

import (
	"errors"
	"fmt"

	"github.com/ppiankov/claimlink/internal/model"
)

// ErrUnknownErrorKind is returned when a signal's kind has no weight
var ErrUnknownErrorKind = errors.New("no weight configured for error kind")

// ConfigurationError reports a weight table that cannot score an observed signal
type ConfigurationError struct {
	Kind model.ErrorKind
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v: %q", ErrUnknownErrorKind, e.Kind)
}

func (e *ConfigurationError) Unwrap() error {
	return ErrUnknownErrorKind
}

// Normalize rescales raw from [lo,hi] to a fraction in [0,1]
func Normalize(raw, lo, hi float64) float64 {
	if hi <= lo {
		return 0
	}
	v := (raw - lo) / (hi - lo)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// WeightTable maps error kinds to positive weights. It is immutable once built.
type WeightTable struct {
	weights map[model.ErrorKind]float64
}

// NewWeightTable copies weights into a new table. Every weight must be positive.
func NewWeightTable(weights map[model.ErrorKind]float64) (WeightTable, error) {
	table := make(map[model.ErrorKind]float64, len(weights))
	for kind, w := range weights {
		if w <= 0 {
			return WeightTable{}, fmt.Errorf("weight for %q must be positive, got %v", kind, w)
		}
		table[kind] = w
	}
	return WeightTable{weights: table}, nil
}

// Weight returns the weight for kind, or a *ConfigurationError
func (t WeightTable) Weight(kind model.ErrorKind) (float64, error) {
	w, ok := t.weights[kind]
	if !ok {
		return 0, &ConfigurationError{Kind: kind}
	}
	return w, nil
}

// Len returns the number of configured kinds
func (t WeightTable) Len() int {
	return len(t.weights)
}

// Contribute computes one entry's penalty. A nil raw score is a full penalty.
func Contribute(kind model.ErrorKind, raw *float64, weights WeightTable) (model.Contribution, error) {
	w, err := weights.Weight(kind)
	if err != nil {
		return model.Contribution{}, err
	}
	if raw == nil {
		return model.Contribution{
			Kind:    kind,
			Weight:  w,
			Penalty: w,
			Formula: "weight",
		}, nil
	}
	n := Normalize(*raw, model.MinRawScore, model.MaxRawScore)
	return model.Contribution{
		Kind:       kind,
		RawScore:   raw,
		Normalized: &n,
		Weight:     w,
		Penalty:    (1 - n) * w,
		Formula:    "(1 - (raw_score - 0) / (100 - 0)) * weight",
	}, nil
}

// Aggregate sums the weighted penalties of every entry in errs. Entries are
// visited in sorted kind order so the result is deterministic. An entry with
// no weight aborts aggregation with a *ConfigurationError.
func Aggregate(errs model.ErrorScoreMap, weights WeightTable) (float64, []model.Contribution, error) {
	var total float64
	contributions := make([]model.Contribution, 0, len(errs))
	for _, kind := range errs.Kinds() {
		c, err := Contribute(kind, errs[kind], weights)
		if err != nil {
			return 0, nil, err
		}
		total += c.Penalty
		contributions = append(contributions, c)
	}
	return total, contributions, nil
}
