// Package score turns comparator signals into an aggregate risk score and a verdict.
package score

import (
	"fmt"

	"github.com/ppiankov/claimlink/internal/model"
)

// Scorer aggregates an error map and classifies the result
type Scorer struct {
	weights    WeightTable
	classifier *Classifier
}

// NewScorer creates a scorer from explicit parts
func NewScorer(weights WeightTable, classifier *Classifier) *Scorer {
	return &Scorer{weights: weights, classifier: classifier}
}

// NewScorerFromConfig builds the weight table and classifier from config
func NewScorerFromConfig(cfg model.ScoringConfig) (*Scorer, error) {
	weights, err := NewWeightTable(cfg.Weights)
	if err != nil {
		return nil, fmt.Errorf("weight table: %w", err)
	}
	classifier := NewClassifier(cfg.LowThreshold, cfg.MediumThreshold, cfg.AutoRejectAbove, cfg.Reasons)
	return NewScorer(weights, classifier), nil
}

// Weights returns the scorer's weight table
func (s *Scorer) Weights() WeightTable {
	return s.weights
}

// Classifier returns the scorer's classifier
func (s *Scorer) Classifier() *Classifier {
	return s.classifier
}

// Evaluate scores errs and returns the verdict. A *ConfigurationError means
// the claim could not be scored and must go to manual review.
func (s *Scorer) Evaluate(errs model.ErrorScoreMap) (model.Verdict, error) {
	aggregate, contributions, err := Aggregate(errs, s.weights)
	if err != nil {
		return model.Verdict{}, err
	}
	verdict := s.classifier.Classify(aggregate, errs)
	verdict.Breakdown = contributions
	return verdict, nil
}
