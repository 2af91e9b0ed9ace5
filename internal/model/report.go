package model

import "time"

// Severity is the coarse risk tier derived from the aggregate score
type Severity string

const (
	SeverityLow    Severity = "Low"
	SeverityMedium Severity = "Medium"
	SeverityHigh   Severity = "High"
)

// Status is the claim disposition
type Status string

const (
	StatusApproved     Status = "Approved"
	StatusToBeReviewed Status = "To Be Reviewed"
	StatusRejected     Status = "Rejected"
)

// DefaultStatus is the status of a claim that has not been scored
const DefaultStatus = StatusToBeReviewed

// Valid reports whether s is one of the known statuses
func (s Status) Valid() bool {
	switch s {
	case StatusApproved, StatusToBeReviewed, StatusRejected:
		return true
	}
	return false
}

// Verdict is the engine's final decision for one claim submission
type Verdict struct {
	Severity  Severity      `json:"severity"`
	Status    Status        `json:"status"`
	Reasons   []string      `json:"reasons"`
	Aggregate float64       `json:"aggregate_risk_score"` // Sum of weighted penalties
	Errors    ErrorScoreMap `json:"errors"`               // Violations that produced the score

	Breakdown []Contribution `json:"breakdown,omitempty"` // Per-kind penalties, for transparency
}

// Contribution is one error kind's share of the aggregate score
type Contribution struct {
	Kind       ErrorKind `json:"error_kind"`
	RawScore   *float64  `json:"raw_score"`
	Normalized *float64  `json:"normalized,omitempty"` // raw_score rescaled to [0,1]
	Weight     float64   `json:"weight"`
	Penalty    float64   `json:"penalty"`
	Formula    string    `json:"formula"`
}

// ExtractionState describes what happened when a document was extracted
type ExtractionState string

const (
	ExtractionInline  ExtractionState = "inline"  // Record supplied with the submission
	ExtractionOK      ExtractionState = "ok"      // Extracted from an upload
	ExtractionMissing ExtractionState = "missing" // Nothing submitted
	ExtractionFailed  ExtractionState = "failed"  // Extractor error, timeout or malformed response
)

// ExtractionOutcome reports one document's extraction
type ExtractionOutcome struct {
	Document DocumentType    `json:"document"`
	State    ExtractionState `json:"state"`
	Source   string          `json:"source,omitempty"` // Upload URI
	Cached   bool            `json:"cached,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// CheckOutcome reports one consistency check and whether it flagged the claim
type CheckOutcome struct {
	Check    string       `json:"check"`
	Document DocumentType `json:"document"`
	Kind     ErrorKind    `json:"error_kind"`
	Flagged  bool         `json:"flagged"`
}

// Report is the complete result of assessing one claim submission
type Report struct {
	AssessmentID string              `json:"assessment_id"`
	ClaimID      string              `json:"claim_id"`
	Reference    string              `json:"reference_number"`
	AssessedAt   time.Time           `json:"assessed_at"`
	Extraction   []ExtractionOutcome `json:"extraction"`
	Checks       []CheckOutcome      `json:"checks,omitempty"`
	Verdict      Verdict             `json:"verdict"`

	Ledger       *LedgerReceipt `json:"ledger,omitempty"`        // Notarization receipt, when published
	ReviewerNote *ReviewerNote  `json:"reviewer_note,omitempty"` // Optional LLM note (never affects the verdict)
}

// LedgerReceipt identifies a notarized claim snapshot
type LedgerReceipt struct {
	Digest      string    `json:"digest"` // sha256 of the canonical snapshot
	Topic       string    `json:"topic"`
	Partition   int32     `json:"partition"`
	Offset      int64     `json:"offset"`
	PublishedAt time.Time `json:"published_at"`
}

// ReviewerNote contains an optional LLM-generated note for manual reviewers.
// It is informational only and never changes severity or status.
type ReviewerNote struct {
	Provider string   `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
	NoteMD   string   `json:"note_md,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}
