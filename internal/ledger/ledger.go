// Package ledger notarizes assessed claims by publishing a digest-stamped
// snapshot to an append-only Kafka topic.
package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ppiankov/claimlink/internal/model"
)

// ErrDisabled is returned by the no-op notarizer
var ErrDisabled = errors.New("ledger disabled")

// Notarizer publishes claim snapshots
type Notarizer interface {
	Notarize(ctx context.Context, snap Snapshot) (*model.LedgerReceipt, error)
	Close() error
}

// Snapshot is the notarized view of an assessed claim
type Snapshot struct {
	ClaimID      string              `json:"claim_id"`
	Reference    string              `json:"reference_number"`
	AssessmentID string              `json:"assessment_id"`
	Status       model.Status        `json:"status"`
	Severity     model.Severity      `json:"severity"`
	Aggregate    float64             `json:"aggregate_risk_score"`
	Reasons      []string            `json:"reasons"`
	Errors       model.ErrorScoreMap `json:"errors"`
	AssessedAt   time.Time           `json:"assessed_at"`
}

// NewSnapshot builds the snapshot for a report
func NewSnapshot(report *model.Report) Snapshot {
	return Snapshot{
		ClaimID:      report.ClaimID,
		Reference:    report.Reference,
		AssessmentID: report.AssessmentID,
		Status:       report.Verdict.Status,
		Severity:     report.Verdict.Severity,
		Aggregate:    report.Verdict.Aggregate,
		Reasons:      report.Verdict.Reasons,
		Errors:       report.Verdict.Errors,
		AssessedAt:   report.AssessedAt.UTC(),
	}
}

// Canonical returns the snapshot's canonical JSON encoding. Map keys are
// sorted by encoding/json, so equal snapshots encode identically.
func (s Snapshot) Canonical() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// Digest returns the hex SHA-256 of the canonical encoding
func (s Snapshot) Digest() (string, error) {
	data, err := s.Canonical()
	if err != nil {
		return "", err
	}
	return digestOf(data), nil
}

// Verify reports whether digest matches the snapshot
func Verify(s Snapshot, digest string) bool {
	got, err := s.Digest()
	return err == nil && got == digest
}

func digestOf(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Noop is the notarizer used when the ledger is disabled
type Noop struct{}

func (Noop) Notarize(context.Context, Snapshot) (*model.LedgerReceipt, error) {
	return nil, ErrDisabled
}

func (Noop) Close() error { return nil }

// New returns a Kafka notarizer when cfg enables the ledger, otherwise Noop
func New(ctx context.Context, cfg model.LedgerConfig, opts ...Option) (Notarizer, error) {
	if !cfg.Enabled {
		return Noop{}, nil
	}
	k, err := NewKafka(ctx, cfg, opts...)
	if err != nil {
		return nil, err
	}
	return k, nil
}
