package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PersonalDetails are the customer's self-declared details
type PersonalDetails struct {
	Name   string `json:"name"`
	Email  string `json:"email,omitempty"`
	Phone  string `json:"phone,omitempty"`
	DOB    string `json:"dob,omitempty"`    // YYYY-MM-DD
	Gender string `json:"gender,omitempty"` // M, F, X
}

// ClaimDetails describe the loss event being claimed
type ClaimDetails struct {
	DateOfLoss  string   `json:"date_of_loss,omitempty"` // YYYY-MM-DD
	Description string   `json:"description,omitempty"`
	Amount      float64  `json:"amount,omitempty"`
	Coverage    []string `json:"coverage,omitempty"` // Coverage items, e.g. "baggage_delay"
}

// Submission is one claim attempt handed to the assessment pipeline
type Submission struct {
	ClaimID   string          `json:"claim_id,omitempty"`
	Reference string          `json:"reference_number,omitempty"`
	Personal  PersonalDetails `json:"personal"`
	Claim     ClaimDetails    `json:"claim"`
	Documents Documents       `json:"documents"`
	Uploads   Uploads         `json:"uploads"`
}

// EnsureIdentity fills in a claim ID and reference number when absent
func (s *Submission) EnsureIdentity() {
	if s.ClaimID == "" {
		s.ClaimID = uuid.NewString()
	}
	if s.Reference == "" {
		s.Reference = NewReferenceNumber()
	}
}

// NewReferenceNumber returns a human-friendly claim reference, e.g. CLM-1A2B3C4D
func NewReferenceNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("CLM-%s", strings.ToUpper(id[:8]))
}

// ClaimRecord is the persisted form of an assessed claim
type ClaimRecord struct {
	ClaimID      string          `json:"claim_id"`
	Reference    string          `json:"reference_number"`
	AssessmentID string          `json:"assessment_id"`
	Customer     PersonalDetails `json:"customer"`
	Claim        ClaimDetails    `json:"claim"`
	Severity     Severity        `json:"severity"`
	Status       Status          `json:"status"`
	Reasons      []string        `json:"reasons"`
	Aggregate    float64         `json:"aggregate_risk_score"`
	Errors       ErrorScoreMap   `json:"errors"`
	Ledger       *LedgerReceipt  `json:"ledger,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewClaimRecord builds the persisted record for a submission and its report
func NewClaimRecord(sub *Submission, report *Report) *ClaimRecord {
	return &ClaimRecord{
		ClaimID:      sub.ClaimID,
		Reference:    sub.Reference,
		AssessmentID: report.AssessmentID,
		Customer:     sub.Personal,
		Claim:        sub.Claim,
		Severity:     report.Verdict.Severity,
		Status:       report.Verdict.Status,
		Reasons:      report.Verdict.Reasons,
		Aggregate:    report.Verdict.Aggregate,
		Errors:       report.Verdict.Errors,
		Ledger:       report.Ledger,
	}
}
