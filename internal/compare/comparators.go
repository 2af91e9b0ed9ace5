// Package compare implements the field comparators that detect
// inconsistencies between a claim's documents and declared details.
package compare

import (
	"strings"
	"time"

	"github.com/ppiankov/claimlink/internal/model"
	"github.com/ppiankov/claimlink/internal/normalize"
)

// Kind enumerates the comparators
type Kind int

const (
	// Passport stage
	KindPassportName Kind = iota
	KindDOB
	KindGender
	KindExpiry
	KindAuthenticity
	KindRecognition

	// Flight ticket stage (reads the passport name)
	KindTicketReadability
	KindPersonalTicketName
	KindPassportTicketName

	// Baggage tag stage (reads ticket fields)
	KindTagReadability
	KindAirlineName
	KindBookingReference
	KindPassengerName
	KindEmiratesBarcode

	kindCount
)

// Options holds the tunable comparator constants
type Options struct {
	SimilarityThreshold float64 // Names and references below this similarity mismatch
	AuthenticityCutoff  float64 // Authenticity scores at or below this fail
}

// DefaultOptions returns the canonical comparator constants
func DefaultOptions() Options {
	return Options{SimilarityThreshold: 80, AuthenticityCutoff: 0.5}
}

// OptionsFromConfig extracts comparator options from the scoring config
func OptionsFromConfig(cfg model.ScoringConfig) Options {
	return Options{
		SimilarityThreshold: cfg.SimilarityThreshold,
		AuthenticityCutoff:  cfg.AuthenticityCutoff,
	}
}

// Input carries every operand a comparator may read. Nil records mean the
// document could not be extracted.
type Input struct {
	Personal model.PersonalDetails
	Passport *model.PassportRecord
	Ticket   *model.FlightTicketRecord
	Tag      *model.BaggageTagRecord
	Now      time.Time
}

// Func is a comparator. ok is false when there is nothing to report.
type Func func(in *Input, opts Options) (sig model.Signal, ok bool)

type binding struct {
	name  string
	stage model.DocumentType
	kind  model.ErrorKind
	fn    Func
}

var bindings = [kindCount]binding{
	KindPassportName:       {"passport_name", model.DocumentPassport, model.ErrNameMismatch, passportName},
	KindDOB:                {"dob", model.DocumentPassport, model.ErrDOBMismatch, dob},
	KindGender:             {"gender", model.DocumentPassport, model.ErrGenderMismatch, gender},
	KindExpiry:             {"expiry", model.DocumentPassport, model.ErrExpiredPassport, expiry},
	KindAuthenticity:       {"authenticity", model.DocumentPassport, model.ErrNotAuthentic, authenticity},
	KindRecognition:        {"recognition", model.DocumentPassport, model.ErrUnrecognized, recognition},
	KindTicketReadability:  {"ticket_readability", model.DocumentFlightTicket, model.ErrIncorrectFlightTicket, ticketReadability},
	KindPersonalTicketName: {"personal_ticket_name", model.DocumentFlightTicket, model.ErrPersonalTicketNameMismatch, personalTicketName},
	KindPassportTicketName: {"passport_ticket_name", model.DocumentFlightTicket, model.ErrPassportTicketNameMismatch, passportTicketName},
	KindTagReadability:     {"tag_readability", model.DocumentBaggageTag, model.ErrIncorrectBaggageTag, tagReadability},
	KindAirlineName:        {"airline_name", model.DocumentBaggageTag, model.ErrAirlineNameMismatch, airlineName},
	KindBookingReference:   {"booking_reference", model.DocumentBaggageTag, model.ErrBookingReferenceMismatch, bookingReference},
	KindPassengerName:      {"passenger_name", model.DocumentBaggageTag, model.ErrPassengerNameMismatch, passengerName},
	KindEmiratesBarcode:    {"emirates_barcode", model.DocumentBaggageTag, model.ErrInvalidEmiratesBarcode, emiratesBarcode},
}

func (k Kind) String() string {
	if k < 0 || k >= kindCount {
		return "unknown"
	}
	return bindings[k].name
}

// Stage returns the document stage the comparator belongs to
func (k Kind) Stage() model.DocumentType {
	return bindings[k].stage
}

// ErrorKind returns the error kind the comparator emits
func (k Kind) ErrorKind() model.ErrorKind {
	return bindings[k].kind
}

// Kinds returns every comparator in evaluation order
func Kinds() []Kind {
	out := make([]Kind, 0, kindCount)
	for k := Kind(0); k < kindCount; k++ {
		out = append(out, k)
	}
	return out
}

// StageKinds returns the comparators of one document stage
func StageKinds(stage model.DocumentType) []Kind {
	var out []Kind
	for k := Kind(0); k < kindCount; k++ {
		if bindings[k].stage == stage {
			out = append(out, k)
		}
	}
	return out
}

// similar emits kind when two present values are less similar than the threshold
func similar(kind model.ErrorKind, a, b *string, opts Options) (model.Signal, bool) {
	av, aok := normalize.Field(a)
	bv, bok := normalize.Field(b)
	if !aok || !bok {
		return model.Signal{}, false
	}
	score := Similarity(av, bv)
	if score < opts.SimilarityThreshold {
		return model.NewSignal(kind, score), true
	}
	return model.Signal{}, false
}

func passportName(in *Input, opts Options) (model.Signal, bool) {
	if in.Passport == nil {
		return model.Signal{}, false
	}
	return similar(model.ErrNameMismatch, &in.Personal.Name, in.Passport.Name, opts)
}

func dob(in *Input, _ Options) (model.Signal, bool) {
	if in.Passport == nil {
		return model.Signal{}, false
	}
	passportDOB, ok := normalize.DateField(in.Passport.DOB, normalize.PassportDateLayouts)
	if !ok {
		return model.Signal{}, false
	}
	declaredDOB, ok := normalize.Date(in.Personal.DOB, normalize.DeclaredDateLayouts)
	if !ok {
		return model.Signal{}, false
	}
	if !passportDOB.Equal(declaredDOB) {
		return model.NewSignal(model.ErrDOBMismatch, model.MinRawScore), true
	}
	return model.Signal{}, false
}

func gender(in *Input, _ Options) (model.Signal, bool) {
	if in.Passport == nil {
		return model.Signal{}, false
	}
	passportGender, ok := normalize.Field(in.Passport.Gender)
	if !ok {
		return model.Signal{}, false
	}
	declaredGender, ok := normalize.Field(&in.Personal.Gender)
	if !ok {
		return model.Signal{}, false
	}
	if passportGender != declaredGender {
		return model.NewSignal(model.ErrGenderMismatch, model.MinRawScore), true
	}
	return model.Signal{}, false
}

func expiry(in *Input, _ Options) (model.Signal, bool) {
	if in.Passport == nil {
		return model.Signal{}, false
	}
	expires, ok := normalize.DateField(in.Passport.Expiry, normalize.PassportDateLayouts)
	if !ok {
		return model.Signal{}, false
	}
	if expires.Before(normalize.Day(in.Now)) {
		return model.NewSignal(model.ErrExpiredPassport, model.MinRawScore), true
	}
	return model.Signal{}, false
}

func authenticity(in *Input, opts Options) (model.Signal, bool) {
	if in.Passport == nil || in.Passport.Authentication == nil {
		return model.Signal{}, false
	}
	if in.Passport.Authentication.Score <= opts.AuthenticityCutoff {
		return model.NullSignal(model.ErrNotAuthentic), true
	}
	return model.Signal{}, false
}

func recognition(in *Input, _ Options) (model.Signal, bool) {
	if in.Passport == nil || in.Passport.Authentication == nil {
		return model.NullSignal(model.ErrUnrecognized), true
	}
	return model.Signal{}, false
}

func ticketReadability(in *Input, _ Options) (model.Signal, bool) {
	if in.Ticket.Unreadable() {
		return model.NullSignal(model.ErrIncorrectFlightTicket), true
	}
	return model.Signal{}, false
}

func personalTicketName(in *Input, opts Options) (model.Signal, bool) {
	return similar(model.ErrPersonalTicketNameMismatch, &in.Personal.Name, in.Ticket.PassengerName(), opts)
}

func passportTicketName(in *Input, opts Options) (model.Signal, bool) {
	if in.Passport == nil {
		return model.Signal{}, false
	}
	return similar(model.ErrPassportTicketNameMismatch, in.Passport.Name, in.Ticket.PassengerName(), opts)
}

func tagReadability(in *Input, _ Options) (model.Signal, bool) {
	if in.Tag == nil {
		return model.NullSignal(model.ErrIncorrectBaggageTag), true
	}
	return model.Signal{}, false
}

func airlineName(in *Input, opts Options) (model.Signal, bool) {
	if in.Ticket == nil || in.Tag == nil {
		return model.Signal{}, false
	}
	return similar(model.ErrAirlineNameMismatch, in.Ticket.AirlineName, in.Tag.AirlineName, opts)
}

func bookingReference(in *Input, opts Options) (model.Signal, bool) {
	if in.Ticket == nil || in.Tag == nil {
		return model.Signal{}, false
	}
	return similar(model.ErrBookingReferenceMismatch, in.Ticket.BookingReference, in.Tag.BookingReference, opts)
}

func passengerName(in *Input, opts Options) (model.Signal, bool) {
	if in.Ticket == nil || in.Tag == nil {
		return model.Signal{}, false
	}
	return similar(model.ErrPassengerNameMismatch, in.Ticket.PassengerName(), in.Tag.PassengerName, opts)
}

func emiratesBarcode(in *Input, _ Options) (model.Signal, bool) {
	if in.Tag == nil {
		return model.Signal{}, false
	}
	airline, ok := normalize.Field(in.Tag.AirlineName)
	if !ok || airline != "emirates" {
		return model.Signal{}, false
	}
	barcode := strings.TrimSpace(model.Value(in.Tag.Barcode))
	if barcode == "" {
		return model.Signal{}, false
	}
	if barcode[0] != '0' {
		return model.NullSignal(model.ErrInvalidEmiratesBarcode), true
	}
	return model.Signal{}, false
}
