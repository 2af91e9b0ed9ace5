// Package extract turns uploaded travel documents into structured records.
package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/ppiankov/claimlink/internal/model"
)

// Document is an uploaded document's content
type Document struct {
	URI         string
	Name        string
	ContentType string
	Data        []byte
}

// Digest returns the hex sha256 of the document content
func (d Document) Digest() string {
	sum := sha256.Sum256(d.Data)
	return hex.EncodeToString(sum[:])
}

// Extractor extracts structured records from document content.
// A returned error means the document could not be read; callers convert it
// into a nil record.
type Extractor interface {
	ExtractPassport(ctx context.Context, doc Document) (*model.PassportRecord, error)
	ExtractFlightTicket(ctx context.Context, doc Document) (*model.FlightTicketRecord, error)
	ExtractBaggageTag(ctx context.Context, doc Document) (*model.BaggageTagRecord, error)
}

// Result is the outcome of obtaining one document's record. It separates a
// record that was supplied or extracted from one that was never submitted
// and one whose extraction failed.
type Result[T any] struct {
	Record *T
	State  model.ExtractionState
	Source string
	Cached bool
	Err    error
}

// Inline wraps a record that arrived with the submission
func Inline[T any](rec *T) Result[T] {
	return Result[T]{Record: rec, State: model.ExtractionInline}
}

// Missing reports that no document was submitted
func Missing[T any]() Result[T] {
	return Result[T]{State: model.ExtractionMissing}
}

// Failed reports an extraction failure
func Failed[T any](source string, err error) Result[T] {
	return Result[T]{State: model.ExtractionFailed, Source: source, Err: err}
}

// Extracted wraps a record extracted from an upload
func Extracted[T any](source string, rec *T, cached bool) Result[T] {
	return Result[T]{Record: rec, State: model.ExtractionOK, Source: source, Cached: cached}
}

// Outcome describes the result for reports
func (r Result[T]) Outcome(doc model.DocumentType) model.ExtractionOutcome {
	out := model.ExtractionOutcome{
		Document: doc,
		State:    r.State,
		Source:   r.Source,
		Cached:   r.Cached,
	}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return out
}
